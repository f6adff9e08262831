package progress

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/MirasRuslanJR/PyShark/internal/domain/shared"
	"github.com/MirasRuslanJR/PyShark/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// CODEC
// Запись хранится как один JSON-документ. Decode принимает также старый формат
// браузерной версии (lastVisit, stats.totalLessons, даты вида "Tue Oct 14 2026").
// ══════════════════════════════════════════════════════════════════════════════

// legacyDateLayout - формат Date.prototype.toDateString().
const legacyDateLayout = "Mon Jan 02 2006"

// errMissing fills the Err field of corrupt-state errors for absent fields.
var errMissing = errors.New("missing field")

type wireDailyGoal struct {
	Target        *int    `json:"target"`
	Completed     *int    `json:"completed"`
	LastResetDate *string `json:"lastResetDate"`
	LastReset     *string `json:"lastReset"`
}

type wireStats struct {
	TotalLessonsCompleted *int `json:"totalLessonsCompleted"`
	TotalLessons          *int `json:"totalLessons"`
	QuestionsAnswered     *int `json:"questionsAnswered"`
	CorrectAnswers        *int `json:"correctAnswers"`
	PerfectScores         *int `json:"perfectScores"`
	PerfectScore          *int `json:"perfectScore"`
	CodeRuns              *int `json:"codeRuns"`
	TimeSpentMinutes      *int `json:"timeSpentMinutes"`
}

type wireRecord struct {
	XP               *int           `json:"xp"`
	Level            *int           `json:"level"`
	Streak           *int           `json:"streak"`
	LastVisitDate    *string        `json:"lastVisitDate"`
	LastVisit        *string        `json:"lastVisit"`
	CompletedLessons *[]string      `json:"completedLessons"`
	Achievements     *[]string      `json:"achievements"`
	DailyGoal        *wireDailyGoal `json:"dailyGoal"`
	Stats            *wireStats     `json:"stats"`
	CurrentLesson    *string        `json:"currentLesson"`
}

// Encode сериализует запись в сохраняемый JSON.
func Encode(r Record) ([]byte, error) {
	if err := r.Validate(); err != nil {
		return nil, shared.CorruptState("progress", "Encode", err, "record violates invariants")
	}
	data, err := json.Marshal(r)
	if err != nil {
		return nil, shared.CorruptState("progress", "Encode", err, "marshal record")
	}
	return data, nil
}

// Decode разбирает и полностью проверяет запись.
// Любая ошибка имеет вид shared.ErrCorruptState; частично разобранная запись не возвращается.
// Уровень всегда пересчитывается из XP.
func Decode(data []byte) (Record, error) {
	var w wireRecord
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&w); err != nil {
		return Record{}, shared.CorruptState("progress", "Decode", err, "malformed JSON")
	}
	if dec.More() {
		return Record{}, shared.CorruptState("progress", "Decode", nil, "trailing data after record")
	}

	r, err := w.toRecord()
	if err != nil {
		return Record{}, shared.CorruptState("progress", "Decode", err, "invalid record")
	}
	if err := r.Validate(); err != nil {
		return Record{}, shared.CorruptState("progress", "Decode", err, "invalid record")
	}
	return r, nil
}

func (w wireRecord) toRecord() (Record, error) {
	var r Record

	if w.XP == nil {
		return r, missing("xp")
	}
	if w.Streak == nil {
		return r, missing("streak")
	}
	if w.CompletedLessons == nil {
		return r, missing("completedLessons")
	}
	if w.Achievements == nil {
		return r, missing("achievements")
	}
	if w.DailyGoal == nil {
		return r, missing("dailyGoal")
	}
	if w.Stats == nil {
		return r, missing("stats")
	}
	if *w.XP < 0 {
		return r, fmt.Errorf("xp must be >= 0, got %d", *w.XP)
	}
	if w.Level != nil && *w.Level < 1 {
		return r, fmt.Errorf("level must be >= 1, got %d", *w.Level)
	}

	r.XP = *w.XP
	r.Level = LevelFromXP(r.XP)
	r.Streak = *w.Streak
	r.CompletedLessons = append([]string{}, (*w.CompletedLessons)...)
	r.Achievements = append([]string{}, (*w.Achievements)...)
	if w.CurrentLesson != nil {
		r.CurrentLesson = *w.CurrentLesson
	}

	visit := w.LastVisitDate
	if visit == nil {
		visit = w.LastVisit
	}
	if visit != nil {
		d, err := parseStoredDate(*visit)
		if err != nil {
			return r, fmt.Errorf("lastVisitDate: %w", err)
		}
		r.LastVisitDate = &d
	}

	goal, err := w.DailyGoal.toDailyGoal()
	if err != nil {
		return r, err
	}
	r.DailyGoal = goal
	r.Stats = w.Stats.toStats()
	return r, nil
}

func (w wireDailyGoal) toDailyGoal() (DailyGoal, error) {
	var g DailyGoal
	if w.Target == nil {
		return g, missing("dailyGoal.target")
	}
	if w.Completed == nil {
		return g, missing("dailyGoal.completed")
	}
	reset := w.LastResetDate
	if reset == nil {
		reset = w.LastReset
	}
	if reset == nil {
		return g, missing("dailyGoal.lastResetDate")
	}
	d, err := parseStoredDate(*reset)
	if err != nil {
		return g, fmt.Errorf("dailyGoal.lastResetDate: %w", err)
	}
	g.Target = *w.Target
	g.Completed = *w.Completed
	g.LastResetDate = d
	return g, nil
}

func (w wireStats) toStats() Stats {
	return Stats{
		TotalLessonsCompleted: firstOf(w.TotalLessonsCompleted, w.TotalLessons),
		QuestionsAnswered:     firstOf(w.QuestionsAnswered),
		CorrectAnswers:        firstOf(w.CorrectAnswers),
		PerfectScores:         firstOf(w.PerfectScores, w.PerfectScore),
		CodeRuns:              firstOf(w.CodeRuns),
		TimeSpentMinutes:      firstOf(w.TimeSpentMinutes),
	}
}

// firstOf возвращает первое заданное значение или 0.
func firstOf(values ...*int) int {
	for _, v := range values {
		if v != nil {
			return *v
		}
	}
	return 0
}

func parseStoredDate(value string) (timeutil.Date, error) {
	if d, err := timeutil.ParseDate(value); err == nil {
		return d, nil
	}
	t, err := time.Parse(legacyDateLayout, value)
	if err != nil {
		return timeutil.Date{}, fmt.Errorf("%w: %q", timeutil.ErrInvalidDate, value)
	}
	return timeutil.NewDate(t.Year(), t.Month(), t.Day()), nil
}

func missing(field string) error {
	return fmt.Errorf("%w: %s", errMissing, field)
}
