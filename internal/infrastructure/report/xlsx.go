// Package report renders a progress workbook with excelize.
package report

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/MirasRuslanJR/PyShark/internal/application/ledger"
	"github.com/MirasRuslanJR/PyShark/internal/domain/curriculum"
	"github.com/MirasRuslanJR/PyShark/internal/domain/progress"
)

// Sheet names.
const (
	SheetSummary      = "Summary"
	SheetAchievements = "Achievements"
	SheetLessons      = "Lessons"
	SheetHistory      = "XP History"
)

// DefaultHistoryLimit caps the history sheet.
const DefaultHistoryLimit = 500

// Input is everything one workbook shows.
type Input struct {
	Snapshot     progress.Snapshot
	Achievements []ledger.AchievementView
	Lessons      []curriculum.Lesson
	History      []progress.XPChange
	GeneratedAt  time.Time
}

// Source is the part of ledger.Service the report reads.
type Source interface {
	Snapshot(ctx context.Context) (progress.Snapshot, error)
	Achievements(ctx context.Context) ([]ledger.AchievementView, error)
	Key() string
}

// Collect gathers an Input. A nil history reader leaves the history sheet out.
func Collect(ctx context.Context, src Source, lessons []curriculum.Lesson, history progress.HistoryReader, now time.Time) (Input, error) {
	snap, err := src.Snapshot(ctx)
	if err != nil {
		return Input{}, fmt.Errorf("report: snapshot: %w", err)
	}
	views, err := src.Achievements(ctx)
	if err != nil {
		return Input{}, fmt.Errorf("report: achievements: %w", err)
	}
	in := Input{
		Snapshot:     snap,
		Achievements: views,
		Lessons:      lessons,
		GeneratedAt:  now,
	}
	if history != nil {
		in.History, err = history.XPHistory(ctx, src.Key(), DefaultHistoryLimit)
		if err != nil {
			return Input{}, fmt.Errorf("report: xp history: %w", err)
		}
	}
	return in, nil
}

// Build renders the workbook. The caller closes the file.
func Build(in Input) (*excelize.File, error) {
	f := excelize.NewFile()
	f.SetSheetName("Sheet1", SheetSummary)

	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#DDEBF7"}},
	})
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("report: header style: %w", err)
	}

	steps := []func(*excelize.File, Input, int) error{writeSummary, writeAchievements, writeLessons}
	if len(in.History) > 0 {
		steps = append(steps, writeHistory)
	}
	for _, step := range steps {
		if err := step(f, in, header); err != nil {
			_ = f.Close()
			return nil, err
		}
	}
	return f, nil
}

// Write renders the workbook to w.
func Write(w io.Writer, in Input) error {
	f, err := Build(in)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("report: write workbook: %w", err)
	}
	return nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Sheets
// ──────────────────────────────────────────────────────────────────────────────

func writeSummary(f *excelize.File, in Input, header int) error {
	r := in.Snapshot.Record
	lastVisit := "-"
	if r.LastVisitDate != nil {
		lastVisit = r.LastVisitDate.String()
	}

	rows := [][]interface{}{
		{"Metric", "Value"},
		{"XP", r.XP},
		{"Level", r.Level},
		{"Level progress %", int(in.Snapshot.LevelProgress*100 + 0.5)},
		{"XP to next level", in.Snapshot.XPToNextLevel},
		{"Streak (days)", r.Streak},
		{"Last visit", lastVisit},
		{"Lessons completed", fmt.Sprintf("%d / %d", len(r.CompletedLessons), len(in.Lessons))},
		{"Overall progress %", in.Snapshot.OverallProgress},
		{"Next lesson", in.Snapshot.NextLesson},
		{"Accuracy %", in.Snapshot.Accuracy},
		{"Questions answered", r.Stats.QuestionsAnswered},
		{"Correct answers", r.Stats.CorrectAnswers},
		{"Perfect scores", r.Stats.PerfectScores},
		{"Code runs", r.Stats.CodeRuns},
		{"Time spent (min)", r.Stats.TimeSpentMinutes},
		{"Daily goal", fmt.Sprintf("%d / %d", r.DailyGoal.Completed, r.DailyGoal.Target)},
		{"Achievements", len(r.Achievements)},
		{"Generated at", in.GeneratedAt.UTC().Format(time.RFC3339)},
	}
	return writeTable(f, SheetSummary, rows, header, []float64{24, 24})
}

func writeAchievements(f *excelize.File, in Input, header int) error {
	rows := [][]interface{}{{"ID", "Title", "Description", "Reward XP", "Unlocked"}}
	for _, a := range in.Achievements {
		rows = append(rows, []interface{}{a.ID, a.Title, a.Description, a.RewardXP, yesNo(a.Unlocked)})
	}
	return writeTable(f, SheetAchievements, rows, header, []float64{16, 24, 48, 12, 10})
}

func writeLessons(f *excelize.File, in Input, header int) error {
	done := make(map[string]bool, len(in.Snapshot.Record.CompletedLessons))
	for _, id := range in.Snapshot.Record.CompletedLessons {
		done[id] = true
	}

	rows := [][]interface{}{{"ID", "Track", "Title", "XP", "Completed"}}
	for _, l := range in.Lessons {
		rows = append(rows, []interface{}{l.ID, string(l.Track), l.Title, l.XPReward, yesNo(done[l.ID])})
	}
	return writeTable(f, SheetLessons, rows, header, []float64{8, 14, 40, 8, 12})
}

func writeHistory(f *excelize.File, in Input, header int) error {
	rows := [][]interface{}{{"Changed at", "Old XP", "New XP", "Delta", "Level"}}
	for _, c := range in.History {
		rows = append(rows, []interface{}{
			c.ChangedAt.UTC().Format(time.RFC3339), c.OldXP, c.NewXP, c.NewXP - c.OldXP, c.Level,
		})
	}
	return writeTable(f, SheetHistory, rows, header, []float64{24, 10, 10, 10, 8})
}

// writeTable writes rows from A1 and styles the first row. NewSheet is a
// no-op for an existing sheet.
func writeTable(f *excelize.File, sheet string, rows [][]interface{}, header int, widths []float64) error {
	f.NewSheet(sheet)

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		values := row
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return fmt.Errorf("report: %s row %d: %w", sheet, i+1, err)
		}
	}

	last, err := excelize.CoordinatesToCellName(len(rows[0]), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", last, header); err != nil {
		return fmt.Errorf("report: %s header: %w", sheet, err)
	}
	for i, w := range widths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(sheet, col, col, w); err != nil {
			return fmt.Errorf("report: %s width: %w", sheet, err)
		}
	}
	return nil
}

func yesNo(v bool) string {
	if v {
		return "Yes"
	}
	return "No"
}
