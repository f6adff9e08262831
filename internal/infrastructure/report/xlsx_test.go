package report

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/MirasRuslanJR/PyShark/internal/application/ledger"
	"github.com/MirasRuslanJR/PyShark/internal/domain/curriculum"
	"github.com/MirasRuslanJR/PyShark/internal/domain/progress"
	"github.com/MirasRuslanJR/PyShark/internal/infrastructure/persistence/memory"
	"github.com/MirasRuslanJR/PyShark/pkg/timeutil"
)

var now = time.Date(2026, time.October, 14, 12, 0, 0, 0, time.UTC)

type staticHistory []progress.XPChange

func (h staticHistory) XPHistory(context.Context, string, int) ([]progress.XPChange, error) {
	return h, nil
}

func collect(t *testing.T, history progress.HistoryReader) Input {
	t.Helper()
	ctx := context.Background()
	cat := curriculum.Default()
	svc := ledger.NewService(memory.NewStore(), cat,
		ledger.WithClock(timeutil.FixedClock(now)), ledger.WithLocation(time.UTC))

	_, err := svc.CompleteLesson(ctx, "b1", 80)
	require.NoError(t, err)

	in, err := Collect(ctx, svc, cat.Lessons(), history, now)
	require.NoError(t, err)
	return in
}

func TestWrite_Workbook(t *testing.T) {
	in := collect(t, staticHistory{
		{OldXP: 0, NewXP: 40, Level: 1, ChangedAt: now},
	})

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, in))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetSummary, SheetAchievements, SheetLessons, SheetHistory}, f.GetSheetList())

	summary, err := f.GetRows(SheetSummary)
	require.NoError(t, err)
	assert.Equal(t, []string{"Metric", "Value"}, summary[0])
	assert.Equal(t, []string{"XP", "40"}, summary[1])
	assert.Equal(t, []string{"Level", "1"}, summary[2])

	achievements, err := f.GetRows(SheetAchievements)
	require.NoError(t, err)
	require.Len(t, achievements, len(in.Achievements)+1)
	assert.Equal(t, "first_lesson", achievements[1][0])
	assert.Equal(t, "Yes", achievements[1][4])

	lessons, err := f.GetRows(SheetLessons)
	require.NoError(t, err)
	require.Len(t, lessons, len(in.Lessons)+1)
	assert.Equal(t, "b1", lessons[1][0])
	assert.Equal(t, "Yes", lessons[1][4])

	history, err := f.GetRows(SheetHistory)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "40", history[1][3])
}

func TestBuild_WithoutHistory(t *testing.T) {
	in := collect(t, nil)
	assert.Empty(t, in.History)

	f, err := Build(in)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetSummary, SheetAchievements, SheetLessons}, f.GetSheetList())
}
