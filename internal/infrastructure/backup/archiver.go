package backup

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/MirasRuslanJR/PyShark/internal/application/ledger"
	"github.com/MirasRuslanJR/PyShark/internal/domain/progress"
	"github.com/MirasRuslanJR/PyShark/pkg/logger"
)

// Ledger is the part of ledger.Service the archiver needs.
type Ledger interface {
	Export(ctx context.Context) (progress.Record, error)
	Import(ctx context.Context, record progress.Record) (ledger.Result, error)
}

// Sink stores and fetches raw documents.
type Sink interface {
	Put(ctx context.Context, name string, data []byte) error
	Get(ctx context.Context, name string) ([]byte, error)
}

// Archiver moves export documents between the ledger and a Sink.
type Archiver struct {
	ledger Ledger
	sink   Sink
	prefix string
	now    func() time.Time
	log    *zap.Logger
}

// NewArchiver creates an archiver writing objects under prefix.
func NewArchiver(l Ledger, sink Sink, prefix string, log *zap.Logger) *Archiver {
	if log == nil {
		log = logger.Nop()
	}
	return &Archiver{
		ledger: l,
		sink:   sink,
		prefix: prefix,
		now:    time.Now,
		log:    log.With(logger.Component("backup")),
	}
}

// Backup exports the record and uploads it. Returns the object name.
func (a *Archiver) Backup(ctx context.Context) (string, error) {
	record, err := a.ledger.Export(ctx)
	if err != nil {
		return "", err
	}
	now := a.now()
	data, err := Marshal(record, now)
	if err != nil {
		return "", err
	}

	name := ObjectName(a.prefix, now)
	if err := a.sink.Put(ctx, name, data); err != nil {
		return "", err
	}
	a.log.Info("backup uploaded", logger.ObjectName(name), logger.XPAmount(record.XP))
	return name, nil
}

// Restore downloads name and imports it. The live record is untouched on error.
func (a *Archiver) Restore(ctx context.Context, name string) (ledger.Result, error) {
	data, err := a.sink.Get(ctx, name)
	if err != nil {
		return ledger.Result{}, err
	}
	record, err := Unmarshal(data)
	if err != nil {
		return ledger.Result{}, err
	}
	res, err := a.ledger.Import(ctx, record)
	if err != nil {
		return ledger.Result{}, err
	}
	a.log.Info("backup restored", logger.ObjectName(name), logger.XPAmount(res.Record.XP))
	return res, nil
}
