package repository

import (
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"payment-records/internal/config"
)

// Open connects to the configured database and sizes the pool.
func Open(cfg config.DBConfig) (*sqlx.DB, error) {
	db, err := sqlx.Connect(cfg.Driver, cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", cfg.Driver, err)
	}

	if cfg.Driver == "sqlite3" {
		// one writer at a time, or SQLite answers "database is locked"
		db.SetMaxOpenConns(1)
		return db, nil
	}

	db.SetMaxIdleConns(5)
	db.SetMaxOpenConns(20)
	db.SetConnMaxLifetime(time.Hour)

	return db, nil
}
