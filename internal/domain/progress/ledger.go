package progress

import (
	"time"

	"github.com/MirasRuslanJR/PyShark/internal/domain/shared"
	"github.com/MirasRuslanJR/PyShark/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEDGER
// Ledger владеет записью и выполняет все изменения с соблюдением инвариантов.
// Текущее время передаётся в каждую операцию явно. Ledger не потокобезопасен:
// синхронизация - забота владельца (application/ledger.Service).
// ══════════════════════════════════════════════════════════════════════════════

const domainName = "progress"

// Ledger - чистая модель прогресса без ввода-вывода.
type Ledger struct {
	record       Record
	catalog      *Catalog
	curriculum   Curriculum
	loc          *time.Location
	aggregateID  string
	mascotClicks int
}

// Option настраивает Ledger.
type Option func(*Ledger)

// WithLocation задаёт часовой пояс, в котором считаются календарные дни и часы.
func WithLocation(loc *time.Location) Option {
	return func(l *Ledger) {
		if loc != nil {
			l.loc = loc
		}
	}
}

// WithAggregateID задаёт идентификатор записи в событиях (обычно ключ хранилища).
func WithAggregateID(id string) Option {
	return func(l *Ledger) {
		if id != "" {
			l.aggregateID = id
		}
	}
}

// WithCatalog заменяет каталог достижений.
func WithCatalog(c *Catalog) Option {
	return func(l *Ledger) {
		if c != nil {
			l.catalog = c
		}
	}
}

// NewLedger создаёт Ledger поверх уже проверенной записи.
func NewLedger(record Record, curriculum Curriculum, opts ...Option) *Ledger {
	l := &Ledger{
		record:      record.Clone(),
		catalog:     DefaultCatalog(),
		curriculum:  curriculum,
		loc:         time.UTC,
		aggregateID: DefaultStorageKey,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// ──────────────────────────────────────────────────────────────────────────────
// Queries
// ──────────────────────────────────────────────────────────────────────────────

// Record возвращает копию текущей записи.
func (l *Ledger) Record() Record {
	return l.record.Clone()
}

// Catalog возвращает каталог достижений.
func (l *Ledger) Catalog() *Catalog {
	return l.catalog
}

// MascotClicks возвращает число кликов по талисману в этой сессии.
func (l *Ledger) MascotClicks() int {
	return l.mascotClicks
}

// Today возвращает календарный день момента now.
func (l *Ledger) Today(now time.Time) timeutil.Date {
	return timeutil.DateOf(now, l.loc)
}

// Accuracy возвращает процент верных ответов, 0 если ответов не было.
func (l *Ledger) Accuracy() int {
	s := l.record.Stats
	if s.QuestionsAnswered == 0 {
		return 0
	}
	return roundDiv(100*s.CorrectAnswers, s.QuestionsAnswered)
}

// OverallProgressPercent возвращает процент пройденных уроков программы (0..100).
func (l *Ledger) OverallProgressPercent() int {
	total := l.curriculum.TotalLessonCount()
	if total <= 0 {
		return 0
	}
	return min(100, roundDiv(100*len(l.record.CompletedLessons), total))
}

// NextLesson возвращает следующий непройденный урок.
func (l *Ledger) NextLesson() (string, bool) {
	return l.curriculum.NextLesson(l.record.CompletedLessons)
}

// Snapshot - запись вместе с производными значениями.
type Snapshot struct {
	Record          Record  `json:"record"`
	Accuracy        int     `json:"accuracy"`
	OverallProgress int     `json:"overallProgress"`
	LevelProgress   float64 `json:"levelProgress"`
	XPToNextLevel   int     `json:"xpToNextLevel"`
	NextLevelXP     int     `json:"nextLevelXP"`
	NextLesson      string  `json:"nextLesson,omitempty"`
	MascotClicks    int     `json:"mascotClicks"`
}

// Snapshot собирает текущее состояние для отображения.
func (l *Ledger) Snapshot() Snapshot {
	next, _ := l.NextLesson()
	return Snapshot{
		Record:          l.Record(),
		Accuracy:        l.Accuracy(),
		OverallProgress: l.OverallProgressPercent(),
		LevelProgress:   ProgressFractionWithinLevel(l.record.XP),
		XPToNextLevel:   XPToNextLevel(l.record.XP),
		NextLevelXP:     XPThresholdForLevel(l.record.Level + 1),
		NextLesson:      next,
		MascotClicks:    l.mascotClicks,
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Session start
// ──────────────────────────────────────────────────────────────────────────────

// Visit выполняется при загрузке: обновляет серию дней и ежедневную цель,
// проверяет достижения. Возвращает true, если запись изменилась.
func (l *Ledger) Visit(now time.Time) (bool, []shared.Event) {
	today := l.Today(now)
	changed := l.updateStreak(today)
	if l.ResetDailyGoalIfNewDay(now) {
		changed = true
	}
	events := l.settle(now, ActionNone)
	return changed || len(events) > 0, events
}

// updateStreak применяет правило серии дней:
// тот же день - без изменений, следующий день - +1, иначе серия начинается заново.
func (l *Ledger) updateStreak(today timeutil.Date) bool {
	if last := l.record.LastVisitDate; last != nil {
		switch gap := timeutil.DaysBetween(*last, today); {
		case gap <= 0:
			// Тот же день (или часы ушли назад) - ничего не меняем
			return false
		case gap == 1:
			l.record.Streak++
		default:
			l.record.Streak = 1
		}
	} else {
		l.record.Streak = 1
	}
	l.record.LastVisitDate = &today
	return true
}

// ResetDailyGoalIfNewDay обнуляет счётчик цели, если наступил новый день.
// Идемпотентна в пределах одного дня.
func (l *Ledger) ResetDailyGoalIfNewDay(now time.Time) bool {
	today := l.Today(now)
	if l.record.DailyGoal.LastResetDate == today {
		return false
	}
	l.record.DailyGoal.Completed = 0
	l.record.DailyGoal.LastResetDate = today
	return true
}

// ──────────────────────────────────────────────────────────────────────────────
// Mutations
// ──────────────────────────────────────────────────────────────────────────────

// CompleteLesson отмечает урок пройденным. Повторное прохождение ничего не меняет.
// Возвращает true, если урок пройден впервые.
func (l *Ledger) CompleteLesson(lessonID string, scorePercent int, now time.Time) (bool, []shared.Event, error) {
	const op = "CompleteLesson"
	if scorePercent < 0 || scorePercent > 100 {
		return false, nil, shared.InvalidArgument(domainName, op, "score must be within [0, 100], got %d", scorePercent)
	}
	reward, err := l.lessonReward(op, lessonID)
	if err != nil {
		return false, nil, err
	}

	l.ResetDailyGoalIfNewDay(now)
	if l.record.HasCompleted(lessonID) {
		return false, nil, nil
	}
	awarded := LessonXP(reward, scorePercent)
	if awarded > MaxXP-l.record.XP {
		return false, nil, shared.InvalidArgument(domainName, op, "xp would exceed %d", MaxXP)
	}

	l.record.CompletedLessons = append(l.record.CompletedLessons, lessonID)
	l.record.Stats.TotalLessonsCompleted++
	goalWasReached := l.record.DailyGoal.IsReached()
	l.record.DailyGoal.Completed++
	if scorePercent == PerfectScore {
		l.record.Stats.PerfectScores++
	}

	events := []shared.Event{
		shared.NewLessonCompletedEvent(l.aggregateID, lessonID, scorePercent, awarded, now),
	}
	events = append(events, l.grant(awarded, now)...)

	if !goalWasReached && l.record.DailyGoal.IsReached() {
		events = append(events, shared.NewDailyGoalCompletedEvent(
			l.aggregateID, l.record.DailyGoal.Target, DailyGoalRewardXP, now))
		events = append(events, l.grant(DailyGoalRewardXP, now)...)
	}

	events = append(events, l.settle(now, ActionLessonComplete)...)
	return true, events, nil
}

// StartLesson запоминает текущий урок и проверяет утренние достижения.
func (l *Ledger) StartLesson(lessonID string, now time.Time) ([]shared.Event, error) {
	if _, err := l.lessonReward("StartLesson", lessonID); err != nil {
		return nil, err
	}
	l.ResetDailyGoalIfNewDay(now)
	l.record.CurrentLesson = lessonID
	return l.settle(now, ActionLessonStart), nil
}

// AddXP начисляет XP. Отрицательное значение или выход за MaxXP - ошибка,
// запись при этом не меняется.
func (l *Ledger) AddXP(amount int, now time.Time) ([]shared.Event, error) {
	if amount < 0 {
		return nil, shared.InvalidArgument(domainName, "AddXP", "amount must be >= 0, got %d", amount)
	}
	if amount > MaxXP-l.record.XP {
		return nil, shared.InvalidArgument(domainName, "AddXP", "xp would exceed %d, got +%d", MaxXP, amount)
	}
	l.ResetDailyGoalIfNewDay(now)
	events := l.grant(amount, now)
	return append(events, l.settle(now, ActionNone)...), nil
}

// AnswerQuestion учитывает ответ на вопрос.
func (l *Ledger) AnswerQuestion(correct bool, now time.Time) {
	l.ResetDailyGoalIfNewDay(now)
	l.record.Stats.QuestionsAnswered++
	if correct {
		l.record.Stats.CorrectAnswers++
	}
}

// RecordCodeRun учитывает запуск кода в песочнице.
func (l *Ledger) RecordCodeRun(now time.Time) {
	l.ResetDailyGoalIfNewDay(now)
	l.record.Stats.CodeRuns++
}

// AddTimeSpent добавляет минуты обучения.
func (l *Ledger) AddTimeSpent(minutes int, now time.Time) error {
	if minutes < 0 {
		return shared.InvalidArgument(domainName, "AddTimeSpent", "minutes must be >= 0, got %d", minutes)
	}
	l.ResetDailyGoalIfNewDay(now)
	l.record.Stats.TimeSpentMinutes += minutes
	return nil
}

// SetDailyGoalTarget меняет цель на день.
func (l *Ledger) SetDailyGoalTarget(target int, now time.Time) error {
	if target < 1 {
		return shared.InvalidArgument(domainName, "SetDailyGoalTarget", "target must be >= 1, got %d", target)
	}
	l.ResetDailyGoalIfNewDay(now)
	l.record.DailyGoal.Target = target
	return nil
}

// RegisterMascotClick считает клики по талисману. Счётчик живёт только в сессии
// и не входит в запись.
func (l *Ledger) RegisterMascotClick(now time.Time) (int, []shared.Event) {
	l.mascotClicks++
	return l.mascotClicks, l.settle(now, ActionNone)
}

// Reset заменяет запись значениями по умолчанию. Требует подтверждения.
func (l *Ledger) Reset(confirmed bool, now time.Time) ([]shared.Event, error) {
	if !confirmed {
		return nil, shared.InvalidArgument(domainName, "Reset", "confirmation required")
	}
	l.record = DefaultRecord(l.Today(now))
	l.mascotClicks = 0
	return []shared.Event{shared.NewProgressResetEvent(l.aggregateID, now)}, nil
}

// Replace полностью заменяет запись (восстановление из резервной копии).
// Невалидная запись отклоняется, текущая остаётся без изменений.
func (l *Ledger) Replace(r Record) error {
	if err := r.Validate(); err != nil {
		return shared.CorruptState(domainName, "Replace", err, "record violates invariants")
	}
	l.record = r.Clone()
	return nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Internals
// ──────────────────────────────────────────────────────────────────────────────

func (l *Ledger) lessonReward(op, lessonID string) (int, error) {
	if !ValidLessonID(lessonID) {
		return 0, shared.InvalidArgument(domainName, op, "malformed lesson id %q", lessonID)
	}
	reward, ok := l.curriculum.XPReward(lessonID)
	if !ok {
		return 0, shared.InvalidArgument(domainName, op, "unknown lesson %q", lessonID)
	}
	return reward, nil
}

// grant добавляет XP и пересчитывает уровень. Эмитит levelUp при росте уровня.
// XP не поднимается выше MaxXP.
func (l *Ledger) grant(amount int, now time.Time) []shared.Event {
	if room := MaxXP - l.record.XP; amount > room {
		amount = max(room, 0)
	}
	if amount == 0 {
		return nil
	}
	before := l.record.Level
	l.record.XP += amount
	l.record.Level = LevelFromXP(l.record.XP)
	if l.record.Level > before {
		return []shared.Event{shared.NewLevelUpEvent(l.aggregateID, l.record.Level, now)}
	}
	return nil
}

// settle открывает все достижения, условия которых выполнены, и начисляет их награды.
// Награды могут поднять уровень и открыть новые достижения, поэтому проверка
// повторяется, пока появляются новые. Каталог конечен, цикл завершается.
func (l *Ledger) settle(now time.Time, action Action) []shared.Event {
	var events []shared.Event
	for {
		unlocked := l.catalog.Evaluate(l.record, l.evalContext(now, action))
		if len(unlocked) == 0 {
			return events
		}
		for _, rule := range unlocked {
			l.record.Achievements = append(l.record.Achievements, rule.ID)
			events = append(events, shared.NewAchievementUnlockedEvent(l.aggregateID, rule.ID, rule.RewardXP, now))
			events = append(events, l.grant(rule.RewardXP, now)...)
		}
	}
}

func (l *Ledger) evalContext(now time.Time, action Action) EvalContext {
	inCurriculum := 0
	for _, id := range l.record.CompletedLessons {
		if _, ok := l.curriculum.XPReward(id); ok {
			inCurriculum++
		}
	}
	return EvalContext{
		TotalLessons:          l.curriculum.TotalLessonCount(),
		CompletedInCurriculum: inCurriculum,
		Hour:                  timeutil.HourIn(now, l.loc),
		Action:                action,
		MascotClicks:          l.mascotClicks,
	}
}
