package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MirasRuslanJR/PyShark/internal/domain/shared"
)

func openTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nested", "pyshark.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, path
}

func TestStore_LoadMissing(t *testing.T) {
	s, _ := openTestStore(t)

	_, err := s.Load(context.Background(), "pyshark_progress")
	assert.True(t, shared.IsNotFound(err))
	assert.NoError(t, s.Ping(context.Background()))
}

func TestStore_SaveOverwritesAndSurvivesReopen(t *testing.T) {
	s, path := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, "pyshark_progress", []byte(`{"xp":40,"level":1}`)))
	require.NoError(t, s.Save(ctx, "pyshark_progress", []byte(`{"xp":150,"level":2}`)))
	require.NoError(t, s.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Load(ctx, "pyshark_progress")
	require.NoError(t, err)
	assert.Equal(t, `{"xp":150,"level":2}`, string(got))
}

func TestStore_KeysAreIndependent(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, "a", []byte(`{"xp":1,"level":1}`)))
	require.NoError(t, s.Save(ctx, "b", []byte(`{"xp":2,"level":1}`)))

	a, err := s.Load(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, `{"xp":1,"level":1}`, string(a))
}

func TestStore_XPHistory(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	for _, doc := range []string{
		`{"xp":0,"level":1}`,
		`{"xp":40,"level":1}`,
		`{"xp":40,"level":1}`,
		`{"xp":150,"level":2}`,
	} {
		require.NoError(t, s.Save(ctx, "pyshark_progress", []byte(doc)))
	}

	history, err := s.XPHistory(ctx, "pyshark_progress", 10)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, []int{0, 40, 150}, []int{history[0].NewXP, history[1].NewXP, history[2].NewXP})
	assert.Equal(t, 40, history[2].OldXP)
	assert.Equal(t, 2, history[2].Level)
	assert.False(t, history[0].ChangedAt.IsZero())

	last, err := s.XPHistory(ctx, "pyshark_progress", 1)
	require.NoError(t, err)
	require.Len(t, last, 1)
	assert.Equal(t, 150, last[0].NewXP)
}

func TestStore_RejectsNonJSON(t *testing.T) {
	s, _ := openTestStore(t)

	err := s.Save(context.Background(), "pyshark_progress", []byte("garbage"))
	assert.True(t, shared.IsCorruptState(err))
}

func TestOpen_MigrationsAreIdempotent(t *testing.T) {
	s, path := openTestStore(t)
	require.NoError(t, s.Close())

	again, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, again.Close())
}

func TestOpen_EmptyPath(t *testing.T) {
	_, err := Open("  ")
	assert.Error(t, err)
}

func TestExtractUpMigration(t *testing.T) {
	sql := "-- +migrate Up\nCREATE TABLE t (id INTEGER);\n-- +migrate Down\nDROP TABLE t;\n"
	assert.Equal(t, "\nCREATE TABLE t (id INTEGER);\n", extractUpMigration(sql))
	assert.Equal(t, "SELECT 1;", extractUpMigration("SELECT 1;"))
}
