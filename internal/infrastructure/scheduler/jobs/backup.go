package jobs

import (
	"context"
)

// Backuper is the part of backup.Archiver the backup job needs.
type Backuper interface {
	Backup(ctx context.Context) (string, error)
}

// BackupJob uploads an export document once a day.
type BackupJob struct {
	archiver Backuper
}

// NewBackupJob creates the job.
func NewBackupJob(a Backuper) *BackupJob {
	return &BackupJob{archiver: a}
}

// Name implements scheduler.Job.
func (j *BackupJob) Name() string { return "nightly_backup" }

// Description implements scheduler.Job.
func (j *BackupJob) Description() string {
	return "Upload the progress record to the backup bucket"
}

// Run implements scheduler.Job.
func (j *BackupJob) Run(ctx context.Context) error {
	_, err := j.archiver.Backup(ctx)
	return err
}
