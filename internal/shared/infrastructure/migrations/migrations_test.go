package migrations_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/felixgeelhaar/convoy/internal/shared/infrastructure/database"
	_ "github.com/felixgeelhaar/convoy/internal/shared/infrastructure/database/sqlite"
	"github.com/felixgeelhaar/convoy/internal/shared/infrastructure/migrations"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_SQLiteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	conn, err := database.NewConnection(ctx, database.Config{
		Driver:     database.DriverSQLite,
		SQLitePath: filepath.Join(t.TempDir(), "convoy.db"),
	})
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, migrations.Run(ctx, conn))
	require.NoError(t, migrations.Run(ctx, conn))

	for _, table := range []string{"routes", "route_stops", "route_review_flags", "route_series", "drivers", "vehicles", "outbox"} {
		var name string
		err := conn.QueryRow(ctx, `SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name)
		require.NoError(t, err, table)
		assert.Equal(t, table, name)
	}
}
