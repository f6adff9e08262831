// Package progress содержит доменную модель прогресса ученика PyShark:
// XP, уровень, серию дней, пройденные уроки, ежедневную цель и достижения.
// Это ядро бизнес-логики - здесь нет инфраструктурных зависимостей.
package progress

import (
	"fmt"
	"regexp"
	"slices"

	"github.com/MirasRuslanJR/PyShark/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONSTANTS
// ══════════════════════════════════════════════════════════════════════════════

const (
	// DefaultStorageKey - ключ, под которым хранится запись прогресса.
	DefaultStorageKey = "pyshark_progress"

	// DefaultDailyGoalTarget - сколько уроков в день считается целью по умолчанию.
	DefaultDailyGoalTarget = 3

	// DailyGoalRewardXP - бонус за выполнение ежедневной цели.
	DailyGoalRewardXP = 50

	// PerfectScore - результат урока, который считается идеальным.
	PerfectScore = 100
)

// lessonIDPattern ограничивает идентификаторы уроков (b1, i13, a6, ...).
var lessonIDPattern = regexp.MustCompile(`^[a-z0-9_-]{1,64}$`)

// ValidLessonID проверяет синтаксис идентификатора урока.
func ValidLessonID(id string) bool {
	return lessonIDPattern.MatchString(id)
}

// ══════════════════════════════════════════════════════════════════════════════
// RECORD
// ══════════════════════════════════════════════════════════════════════════════

// DailyGoal - счётчик уроков за текущий календарный день.
type DailyGoal struct {
	Target        int           `json:"target"`
	Completed     int           `json:"completed"`
	LastResetDate timeutil.Date `json:"lastResetDate"`
}

// IsReached возвращает true, если цель на сегодня выполнена.
func (g DailyGoal) IsReached() bool {
	return g.Completed >= g.Target
}

// Stats - монотонные счётчики активности.
type Stats struct {
	TotalLessonsCompleted int `json:"totalLessonsCompleted"`
	QuestionsAnswered     int `json:"questionsAnswered"`
	CorrectAnswers        int `json:"correctAnswers"`
	PerfectScores         int `json:"perfectScores"`
	CodeRuns              int `json:"codeRuns"`
	TimeSpentMinutes      int `json:"timeSpentMinutes"`
}

// Record - единственная сохраняемая сущность.
// Level всегда равен LevelFromXP(XP) и никогда не задаётся извне.
type Record struct {
	XP               int            `json:"xp"`
	Level            int            `json:"level"`
	Streak           int            `json:"streak"`
	LastVisitDate    *timeutil.Date `json:"lastVisitDate"`
	CompletedLessons []string       `json:"completedLessons"`
	Achievements     []string       `json:"achievements"`
	DailyGoal        DailyGoal      `json:"dailyGoal"`
	Stats            Stats          `json:"stats"`
	CurrentLesson    string         `json:"currentLesson,omitempty"`
}

// DefaultRecord возвращает нулевое состояние нового ученика.
func DefaultRecord(today timeutil.Date) Record {
	return Record{
		XP:               0,
		Level:            1,
		Streak:           0,
		LastVisitDate:    nil,
		CompletedLessons: []string{},
		Achievements:     []string{},
		DailyGoal: DailyGoal{
			Target:        DefaultDailyGoalTarget,
			Completed:     0,
			LastResetDate: today,
		},
	}
}

// Clone возвращает глубокую копию записи.
func (r Record) Clone() Record {
	out := r
	out.CompletedLessons = slices.Clone(r.CompletedLessons)
	out.Achievements = slices.Clone(r.Achievements)
	if out.CompletedLessons == nil {
		out.CompletedLessons = []string{}
	}
	if out.Achievements == nil {
		out.Achievements = []string{}
	}
	if r.LastVisitDate != nil {
		d := *r.LastVisitDate
		out.LastVisitDate = &d
	}
	return out
}

// HasCompleted проверяет, пройден ли урок.
func (r Record) HasCompleted(lessonID string) bool {
	return slices.Contains(r.CompletedLessons, lessonID)
}

// HasAchievement проверяет, открыто ли достижение.
func (r Record) HasAchievement(id string) bool {
	return slices.Contains(r.Achievements, id)
}

// Validate проверяет все инварианты записи.
// Возвращает первое найденное нарушение.
func (r Record) Validate() error {
	switch {
	case r.XP < 0:
		return fmt.Errorf("xp must be >= 0, got %d", r.XP)
	case r.XP > MaxXP:
		return fmt.Errorf("xp must be <= %d, got %d", MaxXP, r.XP)
	case r.Level != LevelFromXP(r.XP):
		return fmt.Errorf("level %d does not match xp %d", r.Level, r.XP)
	case r.Streak < 0:
		return fmt.Errorf("streak must be >= 0, got %d", r.Streak)
	case r.DailyGoal.Target < 1:
		return fmt.Errorf("dailyGoal.target must be >= 1, got %d", r.DailyGoal.Target)
	case r.DailyGoal.Completed < 0:
		return fmt.Errorf("dailyGoal.completed must be >= 0, got %d", r.DailyGoal.Completed)
	case r.DailyGoal.LastResetDate.IsZero():
		return fmt.Errorf("dailyGoal.lastResetDate is required")
	}

	if err := r.Stats.validate(); err != nil {
		return err
	}
	if err := uniqueIDs("completedLessons", r.CompletedLessons); err != nil {
		return err
	}
	if err := uniqueIDs("achievements", r.Achievements); err != nil {
		return err
	}
	if r.CurrentLesson != "" && !ValidLessonID(r.CurrentLesson) {
		return fmt.Errorf("currentLesson %q is not a valid lesson id", r.CurrentLesson)
	}
	return nil
}

func (s Stats) validate() error {
	counters := []struct {
		name  string
		value int
	}{
		{"totalLessonsCompleted", s.TotalLessonsCompleted},
		{"questionsAnswered", s.QuestionsAnswered},
		{"correctAnswers", s.CorrectAnswers},
		{"perfectScores", s.PerfectScores},
		{"codeRuns", s.CodeRuns},
		{"timeSpentMinutes", s.TimeSpentMinutes},
	}
	for _, c := range counters {
		if c.value < 0 {
			return fmt.Errorf("stats.%s must be >= 0, got %d", c.name, c.value)
		}
	}
	if s.CorrectAnswers > s.QuestionsAnswered {
		return fmt.Errorf("stats.correctAnswers %d exceeds questionsAnswered %d",
			s.CorrectAnswers, s.QuestionsAnswered)
	}
	return nil
}

func uniqueIDs(field string, ids []string) error {
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id == "" {
			return fmt.Errorf("%s contains an empty id", field)
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("%s contains duplicate id %q", field, id)
		}
		seen[id] = struct{}{}
	}
	return nil
}
