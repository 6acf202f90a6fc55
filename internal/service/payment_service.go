package service

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"payment-records/internal/model"
	"payment-records/internal/policy"
	"payment-records/internal/repository"
)

var (
	ErrPaymentNotFound = errors.New("payment not found")
	ErrNoPaymentIDs    = errors.New("no payment ids given")
)

// PaymentItem is a payment row annotated with what the caller may do to it.
type PaymentItem struct {
	model.PaymentRow
	CanEdit   bool
	CanDelete bool
}

type PaymentPage struct {
	Items         []PaymentItem
	Total         int64
	Page          int
	PageSize      int
	CanBulkDelete bool
}

func (p *PaymentPage) TotalPages() int {
	if p.PageSize <= 0 {
		return 0
	}
	return int((p.Total + int64(p.PageSize) - 1) / int64(p.PageSize))
}

type PaymentService interface {
	OwnerField(ctx context.Context, actor model.Actor) (policy.FieldPolicy, error)
	RenewDate(paymentDate model.Date) model.Date
	List(ctx context.Context, actor model.Actor, q repository.ListQuery) (*PaymentPage, error)
	Get(ctx context.Context, actor model.Actor, id int64) (*PaymentItem, error)
	Create(ctx context.Context, actor model.Actor, in model.PaymentInput) (*PaymentItem, error)
	Update(ctx context.Context, actor model.Actor, id int64, in model.PaymentInput) (*PaymentItem, error)
	Delete(ctx context.Context, actor model.Actor, id int64) error
	BulkDelete(ctx context.Context, actor model.Actor, ids []int64) (int64, error)
	Export(ctx context.Context, actor model.Actor, q repository.ListQuery, w io.Writer) error
}

type DefaultPaymentService struct {
	paymentRepo repository.PaymentRepository
	// principals is read directly for every owner role check.
	principals repository.PrincipalRepository
	// profiles serves display-only lookups and may be cached.
	profiles policy.PrincipalDirectory
	logger   *slog.Logger
}

// NewPaymentService builds the service. profiles may be nil, in which case
// principals serves display lookups too.
func NewPaymentService(paymentRepo repository.PaymentRepository, principals repository.PrincipalRepository, profiles policy.PrincipalDirectory, logger *slog.Logger) PaymentService {
	if profiles == nil {
		profiles = principals
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultPaymentService{
		paymentRepo: paymentRepo,
		principals:  principals,
		profiles:    profiles,
		logger:      logger,
	}
}

func (s *DefaultPaymentService) OwnerField(ctx context.Context, actor model.Actor) (policy.FieldPolicy, error) {
	var candidates []model.Principal

	if actor.IsAdmin() {
		users, err := s.principals.ListByRole(ctx, model.RoleUser)
		if err != nil {
			return policy.FieldPolicy{}, err
		}
		candidates = users
	} else {
		self, err := s.profiles.GetByID(ctx, actor.ID)
		if err != nil {
			return policy.FieldPolicy{}, err
		}
		if self != nil {
			candidates = append(candidates, *self)
		}
	}

	return policy.ResolveOwnerField(actor, candidates), nil
}

func (s *DefaultPaymentService) RenewDate(paymentDate model.Date) model.Date {
	return policy.DeriveRenewDate(paymentDate)
}

func (s *DefaultPaymentService) List(ctx context.Context, actor model.Actor, q repository.ListQuery) (*PaymentPage, error) {
	if err := q.Normalize(); err != nil {
		return nil, err
	}

	rows, total, err := s.paymentRepo.List(ctx, q, policy.VisibilityPredicate(actor))
	if err != nil {
		return nil, err
	}

	page := &PaymentPage{
		Items:         make([]PaymentItem, 0, len(rows)),
		Total:         total,
		Page:          q.Page,
		PageSize:      q.PageSize,
		CanBulkDelete: policy.CanBulkDelete(actor),
	}
	for _, row := range rows {
		page.Items = append(page.Items, annotate(actor, row))
	}
	return page, nil
}

func (s *DefaultPaymentService) Get(ctx context.Context, actor model.Actor, id int64) (*PaymentItem, error) {
	row, err := s.paymentRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if row == nil {
		return nil, ErrPaymentNotFound
	}

	if !policy.VisibilityPredicate(actor).Allows(&row.Payment) {
		return nil, &policy.AuthorizationError{Action: policy.ActionView}
	}

	item := annotate(actor, *row)
	return &item, nil
}

func (s *DefaultPaymentService) Create(ctx context.Context, actor model.Actor, in model.PaymentInput) (*PaymentItem, error) {
	payment, err := s.prepare(ctx, actor, in)
	if err != nil {
		return nil, err
	}

	if err := s.paymentRepo.Create(ctx, payment); err != nil {
		return nil, ownerGone(err)
	}

	s.logger.InfoContext(ctx, "payment created",
		"payment_id", payment.ID,
		"owner_id", payment.UserID,
		"actor_id", actor.ID,
	)
	return s.reload(ctx, actor, payment.ID)
}

func (s *DefaultPaymentService) Update(ctx context.Context, actor model.Actor, id int64, in model.PaymentInput) (*PaymentItem, error) {
	existing, err := s.paymentRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if existing == nil {
		return nil, ErrPaymentNotFound
	}

	if !policy.CanMutate(actor, &existing.Payment) {
		s.logger.WarnContext(ctx, "payment edit denied", "payment_id", id, "actor_id", actor.ID)
		return nil, &policy.AuthorizationError{Action: policy.ActionEdit}
	}

	payment, err := s.prepare(ctx, actor, in)
	if err != nil {
		return nil, err
	}

	payment.ID = existing.ID
	payment.CreatedAt = existing.CreatedAt

	if err := s.paymentRepo.Update(ctx, payment); err != nil {
		return nil, ownerGone(err)
	}

	s.logger.InfoContext(ctx, "payment updated",
		"payment_id", payment.ID,
		"owner_id", payment.UserID,
		"actor_id", actor.ID,
	)
	return s.reload(ctx, actor, payment.ID)
}

func (s *DefaultPaymentService) Delete(ctx context.Context, actor model.Actor, id int64) error {
	existing, err := s.paymentRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if existing == nil {
		return ErrPaymentNotFound
	}

	if !policy.CanMutate(actor, &existing.Payment) {
		s.logger.WarnContext(ctx, "payment delete denied", "payment_id", id, "actor_id", actor.ID)
		return &policy.AuthorizationError{Action: policy.ActionDelete}
	}

	if err := s.paymentRepo.Delete(ctx, id); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "payment deleted", "payment_id", id, "actor_id", actor.ID)
	return nil
}

// BulkDelete removes the given payments in one statement. Ids that do not
// exist are skipped; the returned count is what was actually removed.
func (s *DefaultPaymentService) BulkDelete(ctx context.Context, actor model.Actor, ids []int64) (int64, error) {
	if !policy.CanBulkDelete(actor) {
		s.logger.WarnContext(ctx, "bulk delete denied", "actor_id", actor.ID, "count", len(ids))
		return 0, &policy.AuthorizationError{Action: policy.ActionBulkDelete}
	}

	if len(ids) == 0 {
		return 0, ErrNoPaymentIDs
	}

	n, err := s.paymentRepo.DeleteMany(ctx, ids)
	if err != nil {
		return 0, err
	}

	s.logger.InfoContext(ctx, "payments bulk deleted", "requested", len(ids), "deleted", n, "actor_id", actor.ID)
	return n, nil
}

// Export writes every payment visible to actor that matches q as an xlsx workbook.
func (s *DefaultPaymentService) Export(ctx context.Context, actor model.Actor, q repository.ListQuery, w io.Writer) error {
	q.All = true
	if err := q.Normalize(); err != nil {
		return err
	}

	rows, _, err := s.paymentRepo.List(ctx, q, policy.VisibilityPredicate(actor))
	if err != nil {
		return err
	}

	return writePaymentsWorkbook(w, rows)
}

// prepare runs the owner rules and then payload validation. Owner errors and
// field errors are reported together.
func (s *DefaultPaymentService) prepare(ctx context.Context, actor model.Actor, in model.PaymentInput) (*model.Payment, error) {
	clean, err := policy.SanitizeBeforeWrite(ctx, actor, in, s.principals)

	var ownerErrs policy.ValidationErrors
	if err != nil && !errors.As(err, &ownerErrs) {
		return nil, err
	}

	payment, err := policy.ValidatePayload(clean)
	if len(ownerErrs) > 0 {
		var fieldErrs policy.ValidationErrors
		if errors.As(err, &fieldErrs) {
			for _, fe := range fieldErrs {
				if fe.Field != policy.FieldOwner {
					ownerErrs = append(ownerErrs, fe)
				}
			}
		}
		s.logger.WarnContext(ctx, "payment owner rejected", "actor_id", actor.ID, "errors", ownerErrs.Error())
		return nil, ownerErrs
	}
	if err != nil {
		return nil, err
	}

	return payment, nil
}

func (s *DefaultPaymentService) reload(ctx context.Context, actor model.Actor, id int64) (*PaymentItem, error) {
	row, err := s.paymentRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if row == nil {
		return nil, ErrPaymentNotFound
	}

	item := annotate(actor, *row)
	return &item, nil
}

// ownerGone reports an owner deleted between the owner check and the write
// the same way the owner check does.
func ownerGone(err error) error {
	if errors.Is(err, repository.ErrOwnerNotFound) {
		return policy.ValidationErrors{{Field: policy.FieldOwner, Message: policy.MessageOwnerMissing}}
	}
	return err
}

func annotate(actor model.Actor, row model.PaymentRow) PaymentItem {
	can := policy.CanMutate(actor, &row.Payment)
	return PaymentItem{
		PaymentRow: row,
		CanEdit:    can,
		CanDelete:  can,
	}
}
