package backup

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MirasRuslanJR/PyShark/config"
	"github.com/MirasRuslanJR/PyShark/internal/domain/shared"
)

func TestNewObjectSink_Disabled(t *testing.T) {
	_, err := NewObjectSink(config.BackupConfig{})
	assert.ErrorIs(t, err, ErrDisabled)
}

func TestNewObjectSink_NoRequestMade(t *testing.T) {
	sink, err := NewObjectSink(config.BackupConfig{
		Endpoint: "127.0.0.1:1",
		Bucket:   "pyshark-backups",
		Prefix:   "progress/",
	})
	require.NoError(t, err)
	assert.Equal(t, "progress/", sink.Prefix())
}

// Set PYSHARK_TEST_MINIO_ENDPOINT (with PYSHARK_TEST_MINIO_ACCESS_KEY and
// PYSHARK_TEST_MINIO_SECRET_KEY) to run against a real server.
func TestObjectSink_RoundTrip(t *testing.T) {
	endpoint := os.Getenv("PYSHARK_TEST_MINIO_ENDPOINT")
	if endpoint == "" {
		t.Skip("PYSHARK_TEST_MINIO_ENDPOINT not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	sink, err := NewObjectSink(config.BackupConfig{
		Endpoint:  endpoint,
		AccessKey: os.Getenv("PYSHARK_TEST_MINIO_ACCESS_KEY"),
		SecretKey: os.Getenv("PYSHARK_TEST_MINIO_SECRET_KEY"),
		Bucket:    "pyshark-test",
		Prefix:    "test-" + time.Now().UTC().Format("20060102150405") + "/",
	})
	require.NoError(t, err)
	require.NoError(t, sink.EnsureBucket(ctx))

	data, err := Marshal(sampleRecord(), exportedAt)
	require.NoError(t, err)

	name := ObjectName(sink.Prefix(), exportedAt)
	require.NoError(t, sink.Put(ctx, name, data))

	got, err := sink.Get(ctx, name)
	require.NoError(t, err)
	assert.Equal(t, data, got)

	list, err := sink.List(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, list)
	assert.Equal(t, name, list[0].Name)

	_, err = sink.Get(ctx, sink.Prefix()+"missing.json")
	assert.True(t, shared.IsNotFound(err))
}
