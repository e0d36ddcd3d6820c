//go:build integration

package indexpg

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startPostgres(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	ctr, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("vigil_index_test"),
		postgres.WithUsername("vigil"),
		postgres.WithPassword("vigil"),
		postgres.BasicWaitStrategies(),
		wait.ForListeningPort("5432/tcp"),
		testcontainers.WithLogger(testcontainers.TestLogger(t)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ctr.Terminate(ctx) })

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	return dsn
}

func TestIndexPutAndLatest(t *testing.T) {
	dsn := startPostgres(t)

	idx, err := Open(Config{DSN: dsn})
	require.NoError(t, err)
	defer idx.Close()

	_, _, ok, err := idx.Latest("host1", "/tmp/x")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, idx.Put("host1", "/tmp/x", 100, 1000))
	offset, mtime, ok, err := idx.Latest("host1", "/tmp/x")
	require.NoError(t, err)
	require.True(t, ok)
	require.EqualValues(t, 100, offset)
	require.EqualValues(t, 1000, mtime)
}

func TestIndexPutIgnoresOlderMtime(t *testing.T) {
	dsn := startPostgres(t)

	idx, err := Open(Config{DSN: dsn})
	require.NoError(t, err)
	defer idx.Close()

	require.NoError(t, idx.Put("host1", "/tmp/x", 200, 2000))
	require.NoError(t, idx.Put("host1", "/tmp/x", 100, 1000))

	offset, mtime, ok, err := idx.Latest("host1", "/tmp/x")
	require.NoError(t, err)
	require.True(t, ok)
	require.EqualValues(t, 200, offset)
	require.EqualValues(t, 2000, mtime)
}
