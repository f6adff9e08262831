package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type funcJob struct {
	name string
	run  func(ctx context.Context) error
}

func (j funcJob) Name() string                  { return j.name }
func (j funcJob) Description() string           { return "test job " + j.name }
func (j funcJob) Run(ctx context.Context) error { return j.run(ctx) }

func TestScheduler_RegisterAndRunNow(t *testing.T) {
	s := NewScheduler(SchedulerConfig{})
	calls := 0
	job := funcJob{name: "count", run: func(context.Context) error { calls++; return nil }}

	require.NoError(t, s.RegisterDaily(job, "00:00"))
	assert.ErrorIs(t, s.RegisterDaily(job, "00:00"), ErrJobAlreadyExists)
	assert.ErrorIs(t, s.RegisterDaily(nil, "00:00"), ErrNilJob)

	var completed []JobResult
	s.OnJobComplete(func(r JobResult) { completed = append(completed, r) })

	res, err := s.RunNow(context.Background(), "count")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 1, calls)
	require.Len(t, completed, 1)

	jobs := s.ListJobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, "count", jobs[0].Name)
	assert.Equal(t, "00:00", jobs[0].At)
	assert.Equal(t, int64(1), jobs[0].RunCount)

	_, err = s.RunNow(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestScheduler_FailuresAndPanics(t *testing.T) {
	s := NewScheduler(SchedulerConfig{Timezone: time.UTC})
	require.NoError(t, s.RegisterDaily(funcJob{name: "fail", run: func(context.Context) error {
		return errors.New("store down")
	}}, "03:00"))
	require.NoError(t, s.RegisterDaily(funcJob{name: "panic", run: func(context.Context) error {
		panic("boom")
	}}, "03:00"))

	res, err := s.RunNow(context.Background(), "fail")
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.EqualError(t, res.Error, "store down")

	res, err = s.RunNow(context.Background(), "panic")
	require.NoError(t, err)
	assert.ErrorIs(t, res.Error, ErrJobPanic)

	for _, info := range s.ListJobs() {
		assert.Equal(t, int64(1), info.FailCount, info.Name)
	}
}

func TestScheduler_RejectsBadTime(t *testing.T) {
	s := NewScheduler(SchedulerConfig{})
	err := s.RegisterDaily(funcJob{name: "x", run: func(context.Context) error { return nil }}, "25:99")
	assert.Error(t, err)
}

func TestScheduler_Lifecycle(t *testing.T) {
	s := NewScheduler(SchedulerConfig{})
	assert.ErrorIs(t, s.Stop(), ErrSchedulerNotRunning)

	require.NoError(t, s.Start(context.Background()))
	assert.True(t, s.IsRunning())
	assert.ErrorIs(t, s.Start(context.Background()), ErrSchedulerAlreadyRunning)

	require.NoError(t, s.Stop())
	assert.False(t, s.IsRunning())
}
