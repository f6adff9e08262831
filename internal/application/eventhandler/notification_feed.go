// Package eventhandler содержит обработчики доменных событий.
package eventhandler

import (
	"sync"

	"go.uber.org/zap"

	"github.com/MirasRuslanJR/PyShark/internal/domain/shared"
	"github.com/MirasRuslanJR/PyShark/pkg/logger"
)

// ═══════════════════════════════════════════════════════════════════════════
// NOTIFICATION FEED
// Хранит последние события для слоя представления: тосты о новом уровне,
// достижениях и выполненной дневной цели. Клиент, пропустивший ответ на
// запрос, может забрать их через GET /api/v1/notifications.
// ═══════════════════════════════════════════════════════════════════════════

// DefaultFeedSize - размер ленты по умолчанию.
const DefaultFeedSize = 50

// NotificationFeed - кольцевой буфер последних событий.
type NotificationFeed struct {
	mu     sync.RWMutex
	items  []shared.EventEnvelope
	next   int
	full   bool
	logger *zap.Logger
}

// NewNotificationFeed создаёт ленту на size событий.
func NewNotificationFeed(size int, log *zap.Logger) *NotificationFeed {
	if size <= 0 {
		size = DefaultFeedSize
	}
	if log == nil {
		log = logger.Nop()
	}
	return &NotificationFeed{
		items:  make([]shared.EventEnvelope, size),
		logger: log.With(logger.Component("notification_feed")),
	}
}

// Handle добавляет событие в ленту.
// Реализует интерфейс shared.EventHandler.
func (f *NotificationFeed) Handle(event shared.Event) error {
	env, err := shared.Envelope(event)
	if err != nil {
		f.logger.Warn("skipping event with unserializable payload",
			logger.EventType(string(event.EventType())),
			zap.Error(err),
		)
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.items[f.next] = env
	f.next = (f.next + 1) % len(f.items)
	if f.next == 0 {
		f.full = true
	}
	return nil
}

// Recent возвращает до limit последних событий, новые в конце.
// limit <= 0 возвращает всю ленту.
func (f *NotificationFeed) Recent(limit int) []shared.EventEnvelope {
	f.mu.RLock()
	defer f.mu.RUnlock()

	n := f.next
	if f.full {
		n = len(f.items)
	}
	if limit <= 0 || limit > n {
		limit = n
	}

	out := make([]shared.EventEnvelope, 0, limit)
	start := f.next - limit
	for i := 0; i < limit; i++ {
		idx := (start + i + len(f.items)) % len(f.items)
		out = append(out, f.items[idx])
	}
	return out
}

// Len возвращает число событий в ленте.
func (f *NotificationFeed) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.full {
		return len(f.items)
	}
	return f.next
}

// Clear очищает ленту. Вызывается при сбросе прогресса.
func (f *NotificationFeed) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	clear(f.items)
	f.next = 0
	f.full = false
}

// Subscribe подписывает ленту на все события шины. Сброс прогресса очищает
// ленту, само событие сброса остаётся в ней.
func (f *NotificationFeed) Subscribe(bus shared.EventSubscriber) error {
	if err := bus.Subscribe(shared.EventProgressReset, func(shared.Event) error {
		f.Clear()
		return nil
	}); err != nil {
		return err
	}
	return bus.SubscribeAll(f.Handle)
}
