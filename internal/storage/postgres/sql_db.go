package postgres

import (
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// OpenStdlib goose 需要 database/sql；迁移串行执行，两个连接足够
func OpenStdlib(dsn string) (*sql.DB, error) {
	if err := validateDSN(dsn); err != nil {
		return nil, err
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open migration connection: %w", err)
	}
	db.SetMaxOpenConns(2)
	return db, nil
}
