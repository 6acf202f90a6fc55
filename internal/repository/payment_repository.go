package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"payment-records/internal/model"
	"payment-records/internal/policy"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

var (
	// ErrOwnerNotFound is returned by writes whose user_id has no users row.
	ErrOwnerNotFound    = errors.New("payment owner does not exist")
	ErrInvalidSort      = errors.New("invalid sort column")
	ErrInvalidDirection = errors.New("sort direction must be 'asc' or 'desc'")
)

// sortColumns maps list sort keys to SQL expressions.
var sortColumns = map[string]string{
	"id":              "p.id",
	"user_name":       "u.name",
	"payment_type":    "p.payment_type",
	"amount":          "p.amount",
	"payment_date":    "p.payment_date",
	"next_renew_date": "p.next_renew_date",
	"created_at":      "p.created_at",
}

type ListQuery struct {
	PaymentType model.PaymentMethod
	Search      string
	Sort        string
	Direction   string
	Page        int
	PageSize    int
	// All disables pagination.
	All bool
}

// Normalize fills defaults (created_at desc, page 1, 20 rows) and clamps the page size.
func (q *ListQuery) Normalize() error {
	if q.Sort == "" {
		q.Sort = "created_at"
		if q.Direction == "" {
			q.Direction = "desc"
		}
	}
	if _, ok := sortColumns[q.Sort]; !ok {
		return fmt.Errorf("%w: %q", ErrInvalidSort, q.Sort)
	}

	q.Direction = strings.ToLower(q.Direction)
	switch q.Direction {
	case "":
		q.Direction = "asc"
	case "asc", "desc":
	default:
		return ErrInvalidDirection
	}

	if q.Page <= 0 {
		q.Page = 1
	}
	switch {
	case q.PageSize > MaxPageSize:
		q.PageSize = MaxPageSize
	case q.PageSize <= 0:
		q.PageSize = DefaultPageSize
	}
	return nil
}

type PaymentRepository interface {
	Create(ctx context.Context, p *model.Payment) error
	GetByID(ctx context.Context, id int64) (*model.PaymentRow, error)
	Update(ctx context.Context, p *model.Payment) error
	Delete(ctx context.Context, id int64) error
	DeleteMany(ctx context.Context, ids []int64) (int64, error)
	List(ctx context.Context, q ListQuery, vis policy.Visibility) ([]model.PaymentRow, int64, error)
}

type SQLPaymentRepository struct {
	db *sqlx.DB
}

func NewPaymentRepository(db *sqlx.DB) PaymentRepository {
	return &SQLPaymentRepository{
		db: db,
	}
}

const paymentRowSelect = `
	SELECT p.id, p.payment_type, p.user_id, p.amount, p.payment_date, p.next_renew_date,
		p.created_at, p.updated_at, u.name AS user_name
	FROM payments p
	JOIN users u ON u.id = p.user_id
`

func (r *SQLPaymentRepository) Create(ctx context.Context, p *model.Payment) error {
	now := time.Now().UTC().Truncate(time.Second)
	p.CreatedAt = now
	p.UpdatedAt = now

	query := `
		INSERT INTO payments (
			payment_type, user_id, amount, payment_date,
			next_renew_date, created_at, updated_at
		) VALUES (
			:payment_type, :user_id, :amount, :payment_date,
			:next_renew_date, :created_at, :updated_at
		)
	`

	res, err := r.db.NamedExecContext(ctx, query, p)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrOwnerNotFound
		}
		return err
	}

	p.ID, err = res.LastInsertId()
	return err
}

func (r *SQLPaymentRepository) GetByID(ctx context.Context, id int64) (*model.PaymentRow, error) {
	var row model.PaymentRow

	err := r.db.GetContext(ctx, &row, paymentRowSelect+` WHERE p.id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return &row, nil
}

func (r *SQLPaymentRepository) Update(ctx context.Context, p *model.Payment) error {
	p.UpdatedAt = time.Now().UTC().Truncate(time.Second)

	query := `
		UPDATE payments SET
			payment_type = :payment_type,
			user_id = :user_id,
			amount = :amount,
			payment_date = :payment_date,
			next_renew_date = :next_renew_date,
			updated_at = :updated_at
		WHERE id = :id
	`

	_, err := r.db.NamedExecContext(ctx, query, p)
	if isForeignKeyViolation(err) {
		return ErrOwnerNotFound
	}
	return err
}

func (r *SQLPaymentRepository) Delete(ctx context.Context, id int64) error {
	query := `DELETE FROM payments WHERE id = ?`
	_, err := r.db.ExecContext(ctx, query, id)
	return err
}

func (r *SQLPaymentRepository) DeleteMany(ctx context.Context, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	query, args, err := sqlx.In(`DELETE FROM payments WHERE id IN (?)`, ids)
	if err != nil {
		return 0, err
	}

	res, err := r.db.ExecContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		return 0, err
	}

	return res.RowsAffected()
}

// List returns one page of rows matching q and vis, plus the total match count.
func (r *SQLPaymentRepository) List(ctx context.Context, q ListQuery, vis policy.Visibility) ([]model.PaymentRow, int64, error) {
	if err := q.Normalize(); err != nil {
		return nil, 0, err
	}

	var where []string
	var args []interface{}

	if vis.Restricted {
		where = append(where, "p.user_id = ?")
		args = append(args, vis.OwnerID)
	}
	if q.PaymentType != "" {
		where = append(where, "p.payment_type = ?")
		args = append(args, q.PaymentType)
	}
	if search := strings.TrimSpace(q.Search); search != "" {
		where = append(where, "LOWER(u.name) LIKE ?")
		args = append(args, "%"+strings.ToLower(search)+"%")
	}

	filter := ""
	if len(where) > 0 {
		filter = " WHERE " + strings.Join(where, " AND ")
	}

	var total int64
	countQuery := `SELECT COUNT(*) FROM payments p JOIN users u ON u.id = p.user_id` + filter
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, err
	}

	query := paymentRowSelect + filter +
		fmt.Sprintf(" ORDER BY %s %s, p.id DESC", sortColumns[q.Sort], strings.ToUpper(q.Direction))
	if !q.All {
		query += " LIMIT ? OFFSET ?"
		args = append(args, q.PageSize, (q.Page-1)*q.PageSize)
	}

	rows := []model.PaymentRow{}
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, err
	}

	return rows, total, nil
}
