// Package testutil provides throwaway SQLite databases for package tests.
package testutil

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"payment-records/internal/migrations"
	"payment-records/internal/model"
)

// NewDB opens a migrated SQLite database in a temp dir. It is closed on cleanup.
func NewDB(t *testing.T) *sqlx.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "payments.db")
	db, err := sqlx.Connect("sqlite3", fmt.Sprintf("file:%s?_foreign_keys=on", path))
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	if err := migrations.Up(context.Background(), db, slog.New(slog.NewTextHandler(io.Discard, nil))); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}
	return db
}

// InsertPrincipal stores a principal with a fixed id so tests can refer to it.
func InsertPrincipal(t *testing.T, db *sqlx.DB, id int64, name string, role model.Role) model.Principal {
	t.Helper()

	now := time.Now().UTC().Truncate(time.Second)
	p := model.Principal{
		ID:           id,
		Name:         name,
		Email:        fmt.Sprintf("user%d@example.com", id),
		PasswordHash: "x",
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	_, err := db.NamedExec(`
		INSERT INTO users (id, name, email, password_hash, user_type, created_at, updated_at)
		VALUES (:id, :name, :email, :password_hash, :user_type, :created_at, :updated_at)`, p)
	if err != nil {
		t.Fatalf("Failed to insert principal %d: %v", id, err)
	}
	return p
}

// CountPayments returns the number of rows in the payments table.
func CountPayments(t *testing.T, db *sqlx.DB) int {
	t.Helper()

	var n int
	if err := db.Get(&n, `SELECT COUNT(*) FROM payments`); err != nil {
		t.Fatalf("Failed to count payments: %v", err)
	}
	return n
}
