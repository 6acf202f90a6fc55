// Package migrations creates the users and payments tables.
package migrations

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
)

var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		email VARCHAR(255) NOT NULL,
		password_hash VARCHAR(255) NOT NULL,
		user_type ENUM('admin', 'user') NOT NULL DEFAULT 'user',
		created_at TIMESTAMP NULL,
		updated_at TIMESTAMP NULL,
		UNIQUE KEY users_email_unique (email),
		KEY users_user_type_name_index (user_type, name)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS payments (
		id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		payment_type ENUM('khalti', 'esewa', 'bank') NOT NULL,
		user_id BIGINT UNSIGNED NOT NULL,
		amount DECIMAL(10, 2) NOT NULL,
		payment_date DATE NOT NULL,
		next_renew_date DATE NOT NULL,
		created_at TIMESTAMP NULL,
		updated_at TIMESTAMP NULL,
		KEY payments_created_at_index (created_at),
		CONSTRAINT payments_user_id_foreign FOREIGN KEY (user_id) REFERENCES users (id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// SQLite needs foreign_keys enabled on the connection for the cascade to fire.
var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		user_type TEXT NOT NULL DEFAULT 'user' CHECK (user_type IN ('admin', 'user')),
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE IF NOT EXISTS payments (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		payment_type TEXT NOT NULL CHECK (payment_type IN ('khalti', 'esewa', 'bank')),
		user_id INTEGER NOT NULL REFERENCES users (id) ON DELETE CASCADE,
		amount DECIMAL(10, 2) NOT NULL,
		payment_date DATE NOT NULL,
		next_renew_date DATE NOT NULL,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE INDEX IF NOT EXISTS payments_created_at_index ON payments (created_at)`,
}

// Up creates the schema for the driver behind db. It is safe to run repeatedly.
// A nil logger falls back to slog.Default.
func Up(ctx context.Context, db *sqlx.DB, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	var stmts []string
	switch db.DriverName() {
	case "mysql":
		stmts = mysqlSchema
	case "sqlite3":
		stmts = sqliteSchema
	default:
		return fmt.Errorf("migrations: unsupported driver %q", db.DriverName())
	}

	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrations: %w", err)
		}
	}

	logger.InfoContext(ctx, "schema is up to date", "driver", db.DriverName(), "statements", len(stmts))
	return nil
}
