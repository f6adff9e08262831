package redis

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MirasRuslanJR/PyShark/internal/domain/shared"
)

// Set PYSHARK_TEST_REDIS_ADDR (e.g. localhost:6379) to run against a real server.
func testStore(t *testing.T) *Store {
	t.Helper()
	addr := os.Getenv("PYSHARK_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("PYSHARK_TEST_REDIS_ADDR not set")
	}

	cfg := DefaultConfig()
	cfg.Addr = addr
	cfg.KeyPrefix = "pyshark:test:" + uuid.NewString() + ":"

	s, err := NewStore(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_LoadSave(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	_, err := s.Load(ctx, "pyshark_progress")
	assert.True(t, shared.IsNotFound(err))

	require.NoError(t, s.Save(ctx, "pyshark_progress", []byte(`{"xp":1}`)))
	got, err := s.Load(ctx, "pyshark_progress")
	require.NoError(t, err)
	assert.JSONEq(t, `{"xp":1}`, string(got))

	require.NoError(t, s.Save(ctx, "pyshark_progress", []byte(`{"xp":2}`)))
	got, err = s.Load(ctx, "pyshark_progress")
	require.NoError(t, err)
	assert.JSONEq(t, `{"xp":2}`, string(got))

	require.NoError(t, s.Delete(ctx, "pyshark_progress"))
	assert.NoError(t, s.Ping(ctx))
}

func TestStore_EmptyKey(t *testing.T) {
	s := NewStoreFromClient(nil, "", 0)

	_, err := s.Load(context.Background(), "")
	assert.ErrorIs(t, err, ErrKeyEmpty)
	assert.ErrorIs(t, s.Save(context.Background(), "", nil), ErrKeyEmpty)
	assert.NoError(t, s.Close())
}
