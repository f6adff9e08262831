package jobs

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type refresher struct {
	changed bool
	err     error
	calls   int
}

func (r *refresher) RefreshDay(context.Context) (bool, error) {
	r.calls++
	return r.changed, r.err
}

type backuper struct{ err error }

func (b backuper) Backup(context.Context) (string, error) { return "progress/x.json", b.err }

func TestDayRolloverJob(t *testing.T) {
	r := &refresher{changed: true}
	job := NewDayRolloverJob(r, nil)

	assert.Equal(t, "day_rollover", job.Name())
	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, 1, r.calls)

	r.err = errors.New("store down")
	assert.EqualError(t, job.Run(context.Background()), "store down")
}

func TestBackupJob(t *testing.T) {
	assert.NoError(t, NewBackupJob(backuper{}).Run(context.Background()))
	assert.Error(t, NewBackupJob(backuper{err: errors.New("bucket missing")}).Run(context.Background()))
}
