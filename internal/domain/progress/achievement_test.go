package progress

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalog(t *testing.T) {
	c := DefaultCatalog()
	assert.Equal(t, 14, c.Len())

	rule, ok := c.Get(AchievementFirstLesson)
	require.True(t, ok)
	assert.Equal(t, 0, rule.RewardXP)

	rule, ok = c.Get(AchievementAllLessons)
	require.True(t, ok)
	assert.Equal(t, 500, rule.RewardXP)

	_, ok = c.Get("level_3")
	assert.False(t, ok)
}

func TestNewCatalog_SkipsDuplicatesAndNilPredicates(t *testing.T) {
	always := func(Record, EvalContext) bool { return true }
	c := NewCatalog(
		Rule{ID: "a", Predicate: always},
		Rule{ID: "a", Predicate: always, RewardXP: 99},
		Rule{ID: "b"},
	)

	assert.Equal(t, 1, c.Len())
	rule, _ := c.Get("a")
	assert.Equal(t, 0, rule.RewardXP)
}

func TestEvaluate(t *testing.T) {
	c := DefaultCatalog()
	r := DefaultRecord(day)
	r.Stats.TotalLessonsCompleted = 5
	r.Stats.PerfectScores = 5

	ids := func(rules []Rule) []string {
		out := make([]string, 0, len(rules))
		for _, rule := range rules {
			out = append(out, rule.ID)
		}
		return out
	}

	matched := c.Evaluate(r, EvalContext{Hour: 12})
	assert.Equal(t, []string{AchievementFirstLesson, AchievementFiveLessons, AchievementPerfectionist}, ids(matched))
	assert.Empty(t, r.Achievements, "evaluation must not mutate the record")

	r.Achievements = []string{AchievementFirstLesson, AchievementPerfectionist}
	matched = c.Evaluate(r, EvalContext{Hour: 12})
	assert.Equal(t, []string{AchievementFiveLessons}, ids(matched))
}

func TestEvaluate_ActionBoundRules(t *testing.T) {
	c := DefaultCatalog()
	r := DefaultRecord(day)

	tests := []struct {
		name string
		ctx  EvalContext
		want []string
	}{
		{"early start", EvalContext{Hour: 6, Action: ActionLessonStart}, []string{AchievementEarlyBird}},
		{"early but no action", EvalContext{Hour: 6}, nil},
		{"late completion", EvalContext{Hour: 23, Action: ActionLessonComplete}, []string{AchievementNightOwl}},
		{"late start", EvalContext{Hour: 23, Action: ActionLessonStart}, nil},
		{"mascot clicks", EvalContext{Hour: 12, MascotClicks: 10}, []string{AchievementSharkFriend}},
		{"all lessons with empty program", EvalContext{Hour: 12, TotalLessons: 0}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			for _, rule := range c.Evaluate(r, tt.ctx) {
				got = append(got, rule.ID)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}
