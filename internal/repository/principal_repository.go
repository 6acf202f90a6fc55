package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"

	"payment-records/internal/model"
)

var (
	ErrDuplicateEmail    = errors.New("email is already registered")
	ErrPrincipalNotFound = errors.New("principal not found")
)

type PrincipalRepository interface {
	Create(ctx context.Context, p *model.Principal) error
	GetByID(ctx context.Context, id int64) (*model.Principal, error)
	GetByEmail(ctx context.Context, email string) (*model.Principal, error)
	ListByRole(ctx context.Context, role model.Role) ([]model.Principal, error)
	UpdateRole(ctx context.Context, id int64, role model.Role) error
}

type SQLPrincipalRepository struct {
	db *sqlx.DB
}

func NewPrincipalRepository(db *sqlx.DB) PrincipalRepository {
	return &SQLPrincipalRepository{
		db: db,
	}
}

const principalColumns = `id, name, email, password_hash, user_type, created_at, updated_at`

func (r *SQLPrincipalRepository) Create(ctx context.Context, p *model.Principal) error {
	now := time.Now().UTC().Truncate(time.Second)
	p.CreatedAt = now
	p.UpdatedAt = now

	query := `
		INSERT INTO users (name, email, password_hash, user_type, created_at, updated_at)
		VALUES (:name, :email, :password_hash, :user_type, :created_at, :updated_at)
	`

	res, err := r.db.NamedExecContext(ctx, query, p)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateEmail
		}
		return err
	}

	p.ID, err = res.LastInsertId()
	return err
}

func (r *SQLPrincipalRepository) GetByID(ctx context.Context, id int64) (*model.Principal, error) {
	var p model.Principal

	query := `SELECT ` + principalColumns + ` FROM users WHERE id = ?`

	err := r.db.GetContext(ctx, &p, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return &p, nil
}

func (r *SQLPrincipalRepository) GetByEmail(ctx context.Context, email string) (*model.Principal, error) {
	var p model.Principal

	query := `SELECT ` + principalColumns + ` FROM users WHERE email = ?`

	err := r.db.GetContext(ctx, &p, query, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return &p, nil
}

func (r *SQLPrincipalRepository) ListByRole(ctx context.Context, role model.Role) ([]model.Principal, error) {
	principals := []model.Principal{}

	query := `SELECT ` + principalColumns + ` FROM users WHERE user_type = ? ORDER BY name ASC, id ASC`

	if err := r.db.SelectContext(ctx, &principals, query, role); err != nil {
		return nil, err
	}

	return principals, nil
}

func (r *SQLPrincipalRepository) UpdateRole(ctx context.Context, id int64, role model.Role) error {
	query := `UPDATE users SET user_type = ?, updated_at = ? WHERE id = ?`

	res, err := r.db.ExecContext(ctx, query, role, time.Now().UTC().Truncate(time.Second), id)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrPrincipalNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1062
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}

func isForeignKeyViolation(err error) bool {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1452
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintForeignKey
	}
	return false
}
