// Package ledgerctl implements the operator CLI for a PyShark progress record:
// inspection, export and import, reset, XLSX reports and object-store backups.
package ledgerctl

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/MirasRuslanJR/PyShark/internal/application/ledger"
	"github.com/MirasRuslanJR/PyShark/internal/domain/curriculum"
	"github.com/MirasRuslanJR/PyShark/internal/domain/progress"
	"github.com/MirasRuslanJR/PyShark/internal/infrastructure/backup"
	"github.com/MirasRuslanJR/PyShark/internal/infrastructure/report"
)

// ErrUsage is returned for an unknown command or bad flags.
var ErrUsage = errors.New("usage error")

// Ledger is the part of ledger.Service the CLI drives.
type Ledger interface {
	Key() string
	Snapshot(ctx context.Context) (progress.Snapshot, error)
	Achievements(ctx context.Context) ([]ledger.AchievementView, error)
	Export(ctx context.Context) (progress.Record, error)
	Import(ctx context.Context, record progress.Record) (ledger.Result, error)
	Reset(ctx context.Context, confirmed bool) (ledger.Result, error)
}

// Archiver uploads and restores backup documents.
type Archiver interface {
	Backup(ctx context.Context) (string, error)
	Restore(ctx context.Context, name string) (ledger.Result, error)
}

// Lister lists stored backup objects, newest first.
type Lister interface {
	List(ctx context.Context) ([]backup.ObjectInfo, error)
}

// App holds what the commands operate on.
type App struct {
	Ledger  Ledger
	Lessons []curriculum.Lesson

	// History feeds the report's XP history sheet. Optional.
	History progress.HistoryReader

	// Archiver and Backups are nil when no object store is configured.
	Archiver Archiver
	Backups  Lister

	Out io.Writer
	Err io.Writer
	Now func() time.Time
}

type command struct {
	summary string
	run     func(ctx context.Context, app App, args []string) error
}

var commands = map[string]command{
	"show":    {"print the progress snapshot as JSON", runShow},
	"export":  {"write a backup document (-o file, default stdout)", runExport},
	"import":  {"replace the record from a backup document (-i file)", runImport},
	"reset":   {"wipe progress (requires -yes)", runReset},
	"report":  {"write an XLSX progress report (-o file.xlsx)", runReport},
	"backup":  {"upload a backup document to the object store", runBackup},
	"backups": {"list backup documents in the object store", runBackups},
	"restore": {"restore the record from a stored backup (-object name)", runRestore},
}

// Run dispatches args[0] to a command.
func Run(ctx context.Context, app App, args []string) error {
	if app.Out == nil {
		app.Out = io.Discard
	}
	if app.Err == nil {
		app.Err = io.Discard
	}
	if app.Now == nil {
		app.Now = time.Now
	}
	if app.Ledger == nil {
		return errors.New("ledger is required")
	}

	if len(args) == 0 {
		Usage(app.Err)
		return ErrUsage
	}
	cmd, ok := commands[args[0]]
	if !ok {
		Usage(app.Err)
		return fmt.Errorf("%w: unknown command %q", ErrUsage, args[0])
	}
	return cmd.run(ctx, app, args[1:])
}

// Usage prints the command list.
func Usage(w io.Writer) {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintln(w, "usage: ledgerctl <command> [flags]")
	fmt.Fprintln(w)
	for _, name := range names {
		fmt.Fprintf(w, "  %-8s %s\n", name, commands[name].summary)
	}
}

func newFlagSet(app App, name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(app.Err)
	return fs
}

func parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", ErrUsage, err)
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("%w: unexpected arguments: %s", ErrUsage, strings.Join(fs.Args(), " "))
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// COMMANDS
// ══════════════════════════════════════════════════════════════════════════════

func runShow(ctx context.Context, app App, args []string) error {
	if err := parse(newFlagSet(app, "show"), args); err != nil {
		return err
	}
	snap, err := app.Ledger.Snapshot(ctx)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(app.Out)
	enc.SetIndent("", "  ")
	return enc.Encode(snap)
}

func runExport(ctx context.Context, app App, args []string) error {
	fs := newFlagSet(app, "export")
	out := fs.String("o", "", "output file (default stdout)")
	if err := parse(fs, args); err != nil {
		return err
	}

	record, err := app.Ledger.Export(ctx)
	if err != nil {
		return err
	}
	data, err := backup.Marshal(record, app.Now())
	if err != nil {
		return err
	}
	if *out == "" {
		_, err = app.Out.Write(data)
		return err
	}
	if err := os.WriteFile(*out, data, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", *out, err)
	}
	fmt.Fprintf(app.Out, "exported xp=%d level=%d to %s\n", record.XP, record.Level, *out)
	return nil
}

func runImport(ctx context.Context, app App, args []string) error {
	fs := newFlagSet(app, "import")
	in := fs.String("i", "", "backup document to import")
	if err := parse(fs, args); err != nil {
		return err
	}
	if *in == "" {
		return fmt.Errorf("%w: -i is required", ErrUsage)
	}

	data, err := os.ReadFile(*in)
	if err != nil {
		return fmt.Errorf("read %s: %w", *in, err)
	}
	record, err := backup.Unmarshal(data)
	if err != nil {
		return err
	}
	res, err := app.Ledger.Import(ctx, record)
	if err != nil {
		return err
	}
	return printResult(app, "imported", res)
}

func runReset(ctx context.Context, app App, args []string) error {
	fs := newFlagSet(app, "reset")
	yes := fs.Bool("yes", false, "confirm the reset")
	if err := parse(fs, args); err != nil {
		return err
	}
	res, err := app.Ledger.Reset(ctx, *yes)
	if err != nil {
		return err
	}
	return printResult(app, "reset", res)
}

func runReport(ctx context.Context, app App, args []string) error {
	fs := newFlagSet(app, "report")
	out := fs.String("o", "", "output .xlsx file")
	if err := parse(fs, args); err != nil {
		return err
	}
	if *out == "" {
		return fmt.Errorf("%w: -o is required", ErrUsage)
	}

	in, err := report.Collect(ctx, app.Ledger, app.Lessons, app.History, app.Now())
	if err != nil {
		return err
	}

	f, err := os.Create(*out)
	if err != nil {
		return fmt.Errorf("create %s: %w", *out, err)
	}
	if err := report.Write(f, in); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Fprintf(app.Out, "report written to %s\n", *out)
	return nil
}

func runBackup(ctx context.Context, app App, args []string) error {
	if err := parse(newFlagSet(app, "backup"), args); err != nil {
		return err
	}
	if app.Archiver == nil {
		return backup.ErrDisabled
	}
	name, err := app.Archiver.Backup(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(app.Out, name)
	return nil
}

func runBackups(ctx context.Context, app App, args []string) error {
	if err := parse(newFlagSet(app, "backups"), args); err != nil {
		return err
	}
	if app.Backups == nil {
		return backup.ErrDisabled
	}
	objects, err := app.Backups.List(ctx)
	if err != nil {
		return err
	}
	for _, o := range objects {
		fmt.Fprintf(app.Out, "%s\t%d\t%s\n", o.Name, o.Size, o.LastModified.UTC().Format(time.RFC3339))
	}
	return nil
}

func runRestore(ctx context.Context, app App, args []string) error {
	fs := newFlagSet(app, "restore")
	object := fs.String("object", "", "object name to restore")
	if err := parse(fs, args); err != nil {
		return err
	}
	if *object == "" {
		return fmt.Errorf("%w: -object is required", ErrUsage)
	}
	if app.Archiver == nil {
		return backup.ErrDisabled
	}
	res, err := app.Archiver.Restore(ctx, *object)
	if err != nil {
		return err
	}
	return printResult(app, "restored", res)
}

func printResult(app App, verb string, res ledger.Result) error {
	_, err := fmt.Fprintf(app.Out, "%s: xp=%d level=%d lessons=%d achievements=%d persisted=%t\n",
		verb, res.Record.XP, res.Record.Level, len(res.Record.CompletedLessons), len(res.Record.Achievements), res.Persisted)
	return err
}
