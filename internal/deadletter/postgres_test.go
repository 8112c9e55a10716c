package deadletter_test

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/azhengyongqin/mail-taskhub/internal/deadletter"
	"github.com/azhengyongqin/mail-taskhub/internal/deadletter/storetest"
	"github.com/azhengyongqin/mail-taskhub/internal/storage/postgres"
)

func TestPostgresStore_Contract(t *testing.T) {
	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_DSN 未设置，跳过 Postgres 集成测试")
	}
	ctx := context.Background()

	sqlDB, err := postgres.OpenStdlib(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	migrator, err := postgres.NewMigrator(sqlDB, nil)
	require.NoError(t, err)
	require.NoError(t, migrator.Up(ctx))

	db, err := postgres.OpenGorm(ctx, dsn, postgres.DefaultPoolConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	storetest.Run(t, func(t *testing.T) deadletter.Store {
		require.NoError(t, db.Exec("delete from dead_letter").Error)
		return deadletter.NewPostgresStore(db.DB)
	})
}
