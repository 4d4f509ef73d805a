package db

import (
	"context"
	"database/sql"
	_ "embed"
	stderrors "errors"
	"fmt"

	"github.com/aspirant2018/niqatech-backend/internal/config"

	"github.com/go-sql-driver/mysql"
)

//go:embed schema.sql
var schema string

func NewConnection(cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open("mysql", cfg.DatabaseDSN())
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(cfg.Database.MaxConnections)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConnections)
	db.SetConnMaxLifetime(cfg.Database.ConnectionLifetime)

	if err := db.Ping(); err != nil {
		return nil, err
	}

	return db, nil
}

// Migrate creates missing tables. The connection must allow multiple
// statements per query.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

const errDuplicateEntry = 1062

func isDuplicate(err error) bool {
	var merr *mysql.MySQLError
	return stderrors.As(err, &merr) && merr.Number == errDuplicateEntry
}
