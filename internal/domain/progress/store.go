package progress

import (
	"context"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// PORTS
// Эти интерфейсы определяют контракт с хранилищем и учебной программой.
// Реализации находятся в infrastructure/persistence и domain/curriculum.
// ══════════════════════════════════════════════════════════════════════════════

// Store хранит один сериализованный документ под ключом.
// Бизнес-логики здесь нет.
type Store interface {
	// Load возвращает сохранённый документ.
	// Возвращает shared.ErrNotFound, если по ключу ничего нет.
	Load(ctx context.Context, key string) ([]byte, error)

	// Save полностью заменяет документ под ключом.
	Save(ctx context.Context, key string, data []byte) error
}

// HealthChecker реализуется хранилищами, которые умеют проверять соединение.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// XPChange - одна запись истории опыта.
type XPChange struct {
	OldXP     int       `json:"oldXp"`
	NewXP     int       `json:"newXp"`
	Level     int       `json:"level"`
	ChangedAt time.Time `json:"changedAt"`
}

// HistoryReader реализуется хранилищами, которые ведут историю опыта.
type HistoryReader interface {
	// XPHistory возвращает до limit последних изменений, старые первыми.
	XPHistory(ctx context.Context, key string, limit int) ([]XPChange, error)
}

// Curriculum - внешний источник списка уроков.
type Curriculum interface {
	// TotalLessonCount возвращает общее число уроков.
	TotalLessonCount() int

	// XPReward возвращает награду за урок и false, если урока нет в программе.
	XPReward(lessonID string) (int, bool)

	// NextLesson возвращает первый непройденный урок в порядке программы.
	NextLesson(completed []string) (string, bool)
}
