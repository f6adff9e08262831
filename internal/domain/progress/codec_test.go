package progress

import (
	"testing"
	"time"

	"github.com/MirasRuslanJR/PyShark/internal/domain/shared"
	"github.com/MirasRuslanJR/PyShark/pkg/timeutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRecord() Record {
	visit := timeutil.NewDate(2026, time.October, 13)
	r := DefaultRecord(timeutil.NewDate(2026, time.October, 14))
	r.XP = 1234
	r.Level = LevelFromXP(r.XP)
	r.Streak = 4
	r.LastVisitDate = &visit
	r.CompletedLessons = []string{"b1", "b2", "b3"}
	r.Achievements = []string{AchievementFirstLesson, AchievementSpeedLearner}
	r.DailyGoal.Completed = 3
	r.Stats = Stats{
		TotalLessonsCompleted: 3,
		QuestionsAnswered:     10,
		CorrectAnswers:        7,
		PerfectScores:         1,
		CodeRuns:              12,
		TimeSpentMinutes:      95,
	}
	r.CurrentLesson = "b4"
	return r
}

func TestCodec_RoundTrip(t *testing.T) {
	for _, r := range []Record{DefaultRecord(timeutil.NewDate(2026, time.January, 1)), sampleRecord()} {
		data, err := Encode(r)
		require.NoError(t, err)

		decoded, err := Decode(data)
		require.NoError(t, err)
		assert.Equal(t, r, decoded)
	}
}

func TestEncode_Layout(t *testing.T) {
	data, err := Encode(DefaultRecord(timeutil.NewDate(2026, time.October, 14)))
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"xp": 0,
		"level": 1,
		"streak": 0,
		"lastVisitDate": null,
		"completedLessons": [],
		"achievements": [],
		"dailyGoal": {"target": 3, "completed": 0, "lastResetDate": "2026-10-14"},
		"stats": {"totalLessonsCompleted": 0, "questionsAnswered": 0, "correctAnswers": 0,
		          "perfectScores": 0, "codeRuns": 0, "timeSpentMinutes": 0}
	}`, string(data))
}

func TestEncode_RejectsInvalid(t *testing.T) {
	r := sampleRecord()
	r.Level = 7

	_, err := Encode(r)
	assert.ErrorIs(t, err, shared.ErrCorruptState)
}

func TestDecode_RecomputesLevel(t *testing.T) {
	data := []byte(`{"xp":450,"level":1,"streak":0,"lastVisitDate":null,"completedLessons":[],
		"achievements":[],"dailyGoal":{"target":3,"completed":0,"lastResetDate":"2026-10-14"},"stats":{}}`)

	r, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, 3, r.Level)
}

func TestDecode_LegacyBrowserRecord(t *testing.T) {
	data := []byte(`{
		"xp": 120, "level": 2, "streak": 2,
		"lastVisit": "Tue Oct 13 2026",
		"completedLessons": ["b1", "b2"],
		"currentLesson": null,
		"achievements": ["first_lesson"],
		"dailyGoal": {"target": 3, "completed": 1, "lastReset": "Tue Oct 13 2026"},
		"stats": {"totalLessons": 2, "perfectScore": 1, "questionsAnswered": 4, "correctAnswers": 3}
	}`)

	r, err := Decode(data)
	require.NoError(t, err)
	require.NotNil(t, r.LastVisitDate)
	assert.Equal(t, timeutil.NewDate(2026, time.October, 13), *r.LastVisitDate)
	assert.Equal(t, timeutil.NewDate(2026, time.October, 13), r.DailyGoal.LastResetDate)
	assert.Equal(t, 2, r.Stats.TotalLessonsCompleted)
	assert.Equal(t, 1, r.Stats.PerfectScores)
	assert.Equal(t, 0, r.Stats.CodeRuns)
	assert.Empty(t, r.CurrentLesson)
}

func TestDecode_Rejects(t *testing.T) {
	valid := `"completedLessons":[],"achievements":[],"dailyGoal":{"target":3,"completed":0,"lastResetDate":"2026-10-14"},"stats":{}`

	tests := []struct {
		name string
		data string
	}{
		{"not json", `xp=10`},
		{"array", `[]`},
		{"truncated", `{"xp": 10, "level": 1`},
		{"trailing garbage", `{"xp":0,"streak":0,` + valid + `} {}`},
		{"missing xp", `{"streak":0,` + valid + `}`},
		{"missing streak", `{"xp":0,` + valid + `}`},
		{"negative xp", `{"xp":-1,"streak":0,` + valid + `}`},
		{"xp above cap", `{"xp":1000000001,"streak":0,` + valid + `}`},
		{"zero level", `{"xp":0,"level":0,"streak":0,` + valid + `}`},
		{"negative streak", `{"xp":0,"streak":-2,` + valid + `}`},
		{"string xp", `{"xp":"10","streak":0,` + valid + `}`},
		{"null lessons", `{"xp":0,"streak":0,"completedLessons":null,"achievements":[],"dailyGoal":{"target":3,"completed":0,"lastResetDate":"2026-10-14"},"stats":{}}`},
		{"duplicate lesson", `{"xp":0,"streak":0,"completedLessons":["b1","b1"],"achievements":[],"dailyGoal":{"target":3,"completed":0,"lastResetDate":"2026-10-14"},"stats":{}}`},
		{"duplicate achievement", `{"xp":0,"streak":0,"completedLessons":[],"achievements":["level_5","level_5"],"dailyGoal":{"target":3,"completed":0,"lastResetDate":"2026-10-14"},"stats":{}}`},
		{"zero target", `{"xp":0,"streak":0,"completedLessons":[],"achievements":[],"dailyGoal":{"target":0,"completed":0,"lastResetDate":"2026-10-14"},"stats":{}}`},
		{"missing reset date", `{"xp":0,"streak":0,"completedLessons":[],"achievements":[],"dailyGoal":{"target":3,"completed":0},"stats":{}}`},
		{"bad date", `{"xp":0,"streak":0,"lastVisitDate":"yesterday",` + valid + `}`},
		{"negative counter", `{"xp":0,"streak":0,"completedLessons":[],"achievements":[],"dailyGoal":{"target":3,"completed":0,"lastResetDate":"2026-10-14"},"stats":{"codeRuns":-1}}`},
		{"missing stats", `{"xp":0,"streak":0,"completedLessons":[],"achievements":[],"dailyGoal":{"target":3,"completed":0,"lastResetDate":"2026-10-14"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.data))
			require.Error(t, err)
			assert.True(t, shared.IsCorruptState(err), "got %v", err)
		})
	}
}

func TestDecode_IgnoresUnknownFields(t *testing.T) {
	data := []byte(`{"xp":0,"streak":0,"theme":"dark","completedLessons":[],"achievements":[],
		"dailyGoal":{"target":3,"completed":0,"lastResetDate":"2026-10-14"},"stats":{}}`)

	_, err := Decode(data)
	assert.NoError(t, err)
}
