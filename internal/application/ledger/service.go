// Package ledger содержит прикладной сервис прогресса: он владеет единственной
// записью процесса, сериализует вызовы, загружает и сохраняет запись и
// публикует события для слоя представления.
package ledger

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/MirasRuslanJR/PyShark/internal/domain/progress"
	"github.com/MirasRuslanJR/PyShark/internal/domain/shared"
	"github.com/MirasRuslanJR/PyShark/pkg/logger"
	"github.com/MirasRuslanJR/PyShark/pkg/timeutil"
)

const domainName = "ledger"

// DefaultStoreTimeout ограничивает одно обращение к хранилищу.
const DefaultStoreTimeout = 3 * time.Second

// ══════════════════════════════════════════════════════════════════════════════
// RESULT
// ══════════════════════════════════════════════════════════════════════════════

// Result - итог одной операции.
type Result struct {
	// Record - копия записи после операции.
	Record progress.Record

	// Events - события в порядке возникновения.
	Events []shared.Event

	// Persisted - false, если запись не удалось сохранить. Состояние в памяти
	// при этом не откатывается.
	Persisted bool

	// NewlyCompleted заполняется только CompleteLesson.
	NewlyCompleted bool

	// MascotClicks заполняется только RegisterMascotClick.
	MascotClicks int
}

// AchievementView - правило каталога с отметкой о получении.
type AchievementView struct {
	progress.Rule
	Unlocked bool `json:"unlocked"`
}

// ══════════════════════════════════════════════════════════════════════════════
// METRICS PORT
// ══════════════════════════════════════════════════════════════════════════════

// Recorder принимает технические метрики сервиса.
type Recorder interface {
	ObserveOperation(op string, elapsed time.Duration, err error)
	PersistFailure(op string)
	CorruptRecordRecovered()
}

type noopRecorder struct{}

func (noopRecorder) ObserveOperation(string, time.Duration, error) {}
func (noopRecorder) PersistFailure(string)                         {}
func (noopRecorder) CorruptRecordRecovered()                       {}

// ══════════════════════════════════════════════════════════════════════════════
// SERVICE
// ══════════════════════════════════════════════════════════════════════════════

// Service - владелец сессии. Безопасен для конкурентного использования.
type Service struct {
	store      progress.Store
	curriculum progress.Curriculum
	catalog    *progress.Catalog
	publisher  shared.EventPublisher
	clock      timeutil.Clock
	loc        *time.Location
	key        string
	timeout    time.Duration
	logger     *zap.Logger
	recorder   Recorder

	mu     sync.Mutex
	ledger *progress.Ledger
	// synced - запись хотя бы раз успешно прочитана из хранилища.
	// До этого изменения живут только в памяти и не сохраняются.
	synced bool
}

// Option настраивает Service.
type Option func(*Service)

// WithClock подменяет часы (в тестах).
func WithClock(c timeutil.Clock) Option {
	return func(s *Service) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithLocation задаёт часовой пояс календарных дней.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithKey задаёт ключ записи в хранилище.
func WithKey(key string) Option {
	return func(s *Service) {
		if key != "" {
			s.key = key
		}
	}
}

// WithStoreTimeout ограничивает одно обращение к хранилищу.
func WithStoreTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithPublisher задаёт шину событий.
func WithPublisher(p shared.EventPublisher) Option {
	return func(s *Service) {
		s.publisher = p
	}
}

// WithLogger задаёт логгер.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithRecorder задаёт приёмник метрик.
func WithRecorder(r Recorder) Option {
	return func(s *Service) {
		if r != nil {
			s.recorder = r
		}
	}
}

// WithCatalog заменяет каталог достижений.
func WithCatalog(c *progress.Catalog) Option {
	return func(s *Service) {
		if c != nil {
			s.catalog = c
		}
	}
}

// NewService создаёт сервис. Запись загружается лениво при первом обращении
// или явно через Load.
func NewService(store progress.Store, curriculum progress.Curriculum, opts ...Option) *Service {
	s := &Service{
		store:      store,
		curriculum: curriculum,
		catalog:    progress.DefaultCatalog(),
		clock:      timeutil.SystemClock{},
		loc:        time.UTC,
		key:        progress.DefaultStorageKey,
		timeout:    DefaultStoreTimeout,
		logger:     logger.Nop(),
		recorder:   noopRecorder{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(logger.Component("ledger_service"), logger.StorageKey(s.key))
	return s
}

// Key возвращает ключ записи.
func (s *Service) Key() string { return s.key }

// Location возвращает часовой пояс сервиса.
func (s *Service) Location() *time.Location { return s.loc }

// Catalog возвращает каталог достижений.
func (s *Service) Catalog() *progress.Catalog { return s.catalog }

// ──────────────────────────────────────────────────────────────────────────────
// Session
// ──────────────────────────────────────────────────────────────────────────────

// Load читает запись из хранилища (или начинает с значений по умолчанию),
// обновляет серию дней и ежедневную цель и сохраняет запись, если она
// изменилась. Повторный вызов перечитывает хранилище.
//
// Если хранилище недоступно, возвращается StorageUnavailable, но сессия
// остаётся рабочей: открытая ранее запись сохраняется, иначе сервис работает
// в памяти на значениях по умолчанию.
func (s *Service) Load(ctx context.Context) (Result, error) {
	start := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	dirty, err := s.open(ctx, s.clock.Now(), true)
	res := s.touch(ctx, dirty)
	s.recorder.ObserveOperation("Load", time.Since(start), err)
	return res, err
}

// visit открывает сессию, если она ещё не синхронизирована с хранилищем,
// и отмечает посещение. Вызывается под mu.
func (s *Service) visit(ctx context.Context) Result {
	dirty, _ := s.open(ctx, s.clock.Now(), false)
	return s.touch(ctx, dirty)
}

// open читает запись из хранилища, пока сессия не синхронизирована (или при
// reload). После вызова s.ledger не nil. Возвращает true, если запись нужно
// сохранить.
//
// Пока хранилище недоступно, сессия живёт в памяти. Когда чтение удаётся,
// сохранённая запись заменяет накопленное в памяти; если в хранилище записи нет
// или она повреждена, остаётся состояние из памяти.
func (s *Service) open(ctx context.Context, now time.Time, reload bool) (bool, error) {
	if s.synced && !reload {
		return false, nil
	}

	record, fresh, err := s.read(ctx, now)
	if err != nil {
		if s.ledger == nil {
			s.ledger = s.newLedger(progress.DefaultRecord(timeutil.DateOf(now, s.loc)))
			s.logger.Warn("store unavailable, serving defaults in memory until it recovers")
		}
		return false, err
	}

	if fresh && s.ledger != nil && !s.synced {
		s.synced = true
		return true, nil
	}
	s.ledger = s.newLedger(record)
	s.synced = true
	return fresh, nil
}

// touch применяет посещение и сохраняет запись, если она изменилась.
func (s *Service) touch(ctx context.Context, dirty bool) Result {
	changed, events := s.ledger.Visit(s.clock.Now())
	if !changed && !dirty && len(events) == 0 {
		return s.result(nil, s.synced)
	}
	return s.commit(ctx, "Visit", events)
}

func (s *Service) newLedger(record progress.Record) *progress.Ledger {
	return progress.NewLedger(record, s.curriculum,
		progress.WithLocation(s.loc),
		progress.WithAggregateID(s.key),
		progress.WithCatalog(s.catalog),
	)
}

// read возвращает запись из хранилища. fresh = true, если запись создана
// заново (её нет или она повреждена) и её нужно сохранить.
func (s *Service) read(ctx context.Context, now time.Time) (progress.Record, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	today := timeutil.DateOf(now, s.loc)

	data, err := s.store.Load(ctx, s.key)
	switch {
	case shared.IsNotFound(err):
		s.logger.Info("no stored progress, starting from defaults")
		return progress.DefaultRecord(today), true, nil
	case err != nil:
		s.logger.Error("failed to load progress", zap.Error(err))
		if shared.IsStorageUnavailable(err) {
			return progress.Record{}, false, err
		}
		return progress.Record{}, false, shared.StorageUnavailable(domainName, "Load", err)
	}

	record, err := progress.Decode(data)
	if err != nil {
		s.logger.Warn("stored progress is corrupt, falling back to defaults", zap.Error(err))
		s.recorder.CorruptRecordRecovered()
		return progress.DefaultRecord(today), true, nil
	}
	return record, false, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Queries
// ──────────────────────────────────────────────────────────────────────────────

// Snapshot возвращает запись с производными значениями.
func (s *Service) Snapshot(ctx context.Context) (progress.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.visit(ctx)
	return s.ledger.Snapshot(), nil
}

// Record возвращает копию текущей записи.
func (s *Service) Record(ctx context.Context) (progress.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.visit(ctx)
	return s.ledger.Record(), nil
}

// Accuracy возвращает процент верных ответов.
func (s *Service) Accuracy(ctx context.Context) (int, error) {
	snap, err := s.Snapshot(ctx)
	return snap.Accuracy, err
}

// OverallProgressPercent возвращает процент пройденной программы.
func (s *Service) OverallProgressPercent(ctx context.Context) (int, error) {
	snap, err := s.Snapshot(ctx)
	return snap.OverallProgress, err
}

// NextLesson возвращает следующий непройденный урок.
func (s *Service) NextLesson(ctx context.Context) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.visit(ctx)
	id, ok := s.ledger.NextLesson()
	return id, ok, nil
}

// Achievements возвращает каталог с отметками о полученных достижениях.
func (s *Service) Achievements(ctx context.Context) ([]AchievementView, error) {
	record, err := s.Record(ctx)
	if err != nil {
		return nil, err
	}
	rules := s.catalog.Rules()
	views := make([]AchievementView, 0, len(rules))
	for _, rule := range rules {
		views = append(views, AchievementView{Rule: rule, Unlocked: record.HasAchievement(rule.ID)})
	}
	return views, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Mutations
// ──────────────────────────────────────────────────────────────────────────────

// CompleteLesson отмечает урок пройденным. Повтор - не ошибка и ничего не меняет.
func (s *Service) CompleteLesson(ctx context.Context, lessonID string, scorePercent int) (Result, error) {
	var newly bool
	res, err := s.mutate(ctx, "CompleteLesson", func(l *progress.Ledger, now time.Time) ([]shared.Event, error) {
		var (
			events []shared.Event
			err    error
		)
		newly, events, err = l.CompleteLesson(lessonID, scorePercent, now)
		return events, err
	})
	res.NewlyCompleted = newly
	if err == nil && newly {
		s.logger.Info("lesson completed",
			logger.LessonID(lessonID),
			zap.Int("score", scorePercent),
			logger.XPAmount(res.Record.XP),
			logger.Level(res.Record.Level),
		)
	}
	return res, err
}

// StartLesson запоминает текущий урок.
func (s *Service) StartLesson(ctx context.Context, lessonID string) (Result, error) {
	return s.mutate(ctx, "StartLesson", func(l *progress.Ledger, now time.Time) ([]shared.Event, error) {
		return l.StartLesson(lessonID, now)
	})
}

// AddXP начисляет опыт.
func (s *Service) AddXP(ctx context.Context, amount int) (Result, error) {
	return s.mutate(ctx, "AddXP", func(l *progress.Ledger, now time.Time) ([]shared.Event, error) {
		return l.AddXP(amount, now)
	})
}

// AnswerQuestion учитывает ответ на вопрос.
func (s *Service) AnswerQuestion(ctx context.Context, correct bool) (Result, error) {
	return s.mutate(ctx, "AnswerQuestion", func(l *progress.Ledger, now time.Time) ([]shared.Event, error) {
		l.AnswerQuestion(correct, now)
		return nil, nil
	})
}

// RecordCodeRun учитывает запуск кода.
func (s *Service) RecordCodeRun(ctx context.Context) (Result, error) {
	return s.mutate(ctx, "RecordCodeRun", func(l *progress.Ledger, now time.Time) ([]shared.Event, error) {
		l.RecordCodeRun(now)
		return nil, nil
	})
}

// AddTimeSpent добавляет минуты обучения.
func (s *Service) AddTimeSpent(ctx context.Context, minutes int) (Result, error) {
	return s.mutate(ctx, "AddTimeSpent", func(l *progress.Ledger, now time.Time) ([]shared.Event, error) {
		return nil, l.AddTimeSpent(minutes, now)
	})
}

// SetDailyGoalTarget меняет дневную цель.
func (s *Service) SetDailyGoalTarget(ctx context.Context, target int) (Result, error) {
	return s.mutate(ctx, "SetDailyGoalTarget", func(l *progress.Ledger, now time.Time) ([]shared.Event, error) {
		return nil, l.SetDailyGoalTarget(target, now)
	})
}

// RegisterMascotClick считает клик по талисману.
func (s *Service) RegisterMascotClick(ctx context.Context) (Result, error) {
	var clicks int
	res, err := s.mutate(ctx, "RegisterMascotClick", func(l *progress.Ledger, now time.Time) ([]shared.Event, error) {
		var events []shared.Event
		clicks, events = l.RegisterMascotClick(now)
		return events, nil
	})
	res.MascotClicks = clicks
	return res, err
}

// RefreshDay сбрасывает дневную цель, если наступил новый день. Вызывается
// планировщиком в полночь. Возвращает true, если запись изменилась.
func (s *Service) RefreshDay(ctx context.Context) (bool, error) {
	start := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	defer func() { s.recorder.ObserveOperation("RefreshDay", time.Since(start), nil) }()

	if !s.synced {
		s.visit(ctx)
	}
	if !s.ledger.ResetDailyGoalIfNewDay(s.clock.Now()) {
		return false, nil
	}
	s.commit(ctx, "RefreshDay", nil)
	return true, nil
}

// Reset заменяет запись значениями по умолчанию. Без подтверждения ничего
// не меняет и возвращает InvalidArgument.
func (s *Service) Reset(ctx context.Context, confirmed bool) (Result, error) {
	res, err := s.mutate(ctx, "Reset", func(l *progress.Ledger, now time.Time) ([]shared.Event, error) {
		return l.Reset(confirmed, now)
	})
	if err == nil {
		s.logger.Warn("progress reset")
	}
	return res, err
}

// Export возвращает копию записи для резервной копии.
func (s *Service) Export(ctx context.Context) (progress.Record, error) {
	return s.Record(ctx)
}

// Import заменяет запись целиком. Невалидная запись отклоняется с
// CorruptState, текущая запись остаётся прежней.
func (s *Service) Import(ctx context.Context, record progress.Record) (Result, error) {
	res, err := s.mutate(ctx, "Import", func(l *progress.Ledger, _ time.Time) ([]shared.Event, error) {
		return nil, l.Replace(record)
	})
	if err == nil {
		s.logger.Info("progress imported", logger.XPAmount(res.Record.XP), logger.Level(res.Record.Level))
	}
	return res, err
}

// ──────────────────────────────────────────────────────────────────────────────
// Internals
// ──────────────────────────────────────────────────────────────────────────────

type mutation func(l *progress.Ledger, now time.Time) ([]shared.Event, error)

// mutate открывает сессию при необходимости, выполняет изменение, сохраняет
// запись и публикует события. События посещения идут перед событиями операции.
func (s *Service) mutate(ctx context.Context, op string, fn mutation) (res Result, err error) {
	start := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	defer func() { s.recorder.ObserveOperation(op, time.Since(start), err) }()

	visited := s.visit(ctx)

	events, err := fn(s.ledger, s.clock.Now())
	if err != nil {
		s.logger.Debug("operation rejected", logger.Operation(op), zap.Error(err))
		return s.result(visited.Events, visited.Persisted), err
	}

	res = s.commit(ctx, op, events)
	res.Events = append(visited.Events, res.Events...)
	res.Persisted = res.Persisted && visited.Persisted
	return res, nil
}

// commit сохраняет запись (best effort) и публикует события. Вызывается под mu.
func (s *Service) commit(ctx context.Context, op string, events []shared.Event) Result {
	persisted := s.persist(ctx, op)
	s.publish(events)
	return s.result(events, persisted)
}

func (s *Service) persist(ctx context.Context, op string) bool {
	if !s.synced {
		s.logger.Debug("store not loaded yet, keeping progress in memory", logger.Operation(op))
		s.recorder.PersistFailure(op)
		return false
	}
	data, err := progress.Encode(s.ledger.Record())
	if err != nil {
		s.logger.Error("refusing to persist invalid record", logger.Operation(op), zap.Error(err))
		s.recorder.PersistFailure(op)
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.store.Save(ctx, s.key, data); err != nil {
		s.logger.Error("failed to persist progress, keeping in-memory state",
			logger.Operation(op),
			zap.Error(err),
		)
		s.recorder.PersistFailure(op)
		return false
	}
	return true
}

func (s *Service) publish(events []shared.Event) {
	if s.publisher == nil {
		return
	}
	for _, e := range events {
		if err := s.publisher.Publish(e); err != nil {
			s.logger.Warn("failed to publish event", logger.EventType(string(e.EventType())), zap.Error(err))
		}
	}
}

func (s *Service) result(events []shared.Event, persisted bool) Result {
	if events == nil {
		events = []shared.Event{}
	}
	return Result{Record: s.ledger.Record(), Events: events, Persisted: persisted}
}

// IsUserError сообщает, что ошибка вызвана входными данными клиента.
func IsUserError(err error) bool {
	return shared.IsInvalidArgument(err) || shared.IsCorruptState(err)
}
