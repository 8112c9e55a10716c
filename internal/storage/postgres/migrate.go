package postgres

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"

	"github.com/azhengyongqin/mail-taskhub/internal/logger"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// Migrations 返回内置的迁移文件（根目录即 .sql 所在目录）
func Migrations() fs.FS {
	sub, err := fs.Sub(embedMigrations, "migrations")
	if err != nil {
		// embed 路径在编译期固定
		panic(err)
	}
	return sub
}

// Migrator 基于 goose Provider 的迁移执行器
type Migrator struct {
	provider *goose.Provider
}

// NewMigrator fsys 为空时使用内置迁移
func NewMigrator(db *sql.DB, fsys fs.FS) (*Migrator, error) {
	if fsys == nil {
		fsys = Migrations()
	}
	p, err := goose.NewProvider(goose.DialectPostgres, db, fsys)
	if err != nil {
		return nil, fmt.Errorf("create goose provider: %w", err)
	}
	return &Migrator{provider: p}, nil
}

// Up 执行全部未应用的迁移
func (m *Migrator) Up(ctx context.Context) error {
	results, err := m.provider.Up(ctx)
	logResults(results)
	if err != nil {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}

// UpTo 迁移到指定版本（含）
func (m *Migrator) UpTo(ctx context.Context, version int64) error {
	results, err := m.provider.UpTo(ctx, version)
	logResults(results)
	if err != nil {
		return fmt.Errorf("migrate up to %d: %w", version, err)
	}
	return nil
}

// Version 当前数据库版本
func (m *Migrator) Version(ctx context.Context) (int64, error) {
	return m.provider.GetDBVersion(ctx)
}

// LatestVersion 内置迁移的最高版本
func (m *Migrator) LatestVersion() int64 {
	var latest int64
	for _, s := range m.provider.ListSources() {
		if s.Version > latest {
			latest = s.Version
		}
	}
	return latest
}

func logResults(results []*goose.MigrationResult) {
	for _, r := range results {
		if r == nil || r.Source == nil {
			continue
		}
		ev := logger.Info()
		if r.Error != nil {
			ev = logger.Error().Err(r.Error)
		}
		ev.Int64("version", r.Source.Version).
			Str("path", r.Source.Path).
			Dur("duration", r.Duration).
			Msg("应用数据库迁移")
	}
}
