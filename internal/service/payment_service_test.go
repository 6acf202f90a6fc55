package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/xuri/excelize/v2"

	"payment-records/internal/model"
	"payment-records/internal/policy"
	"payment-records/internal/repository"
	"payment-records/internal/testutil"
)

var (
	root   = model.Actor{ID: 1, Role: model.RoleAdmin}
	asha   = model.Actor{ID: 5, Role: model.RoleUser}
	bikash = model.Actor{ID: 9, Role: model.RoleUser}
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newPaymentService(t *testing.T) (PaymentService, *sqlx.DB) {
	t.Helper()

	db := testutil.NewDB(t)
	testutil.InsertPrincipal(t, db, 1, "Root", model.RoleAdmin)
	testutil.InsertPrincipal(t, db, 2, "Deputy", model.RoleAdmin)
	testutil.InsertPrincipal(t, db, 5, "Asha", model.RoleUser)
	testutil.InsertPrincipal(t, db, 9, "Bikash", model.RoleUser)

	svc := NewPaymentService(
		repository.NewPaymentRepository(db),
		repository.NewPrincipalRepository(db),
		nil,
		discardLogger(),
	)
	return svc, db
}

func mustDate(t *testing.T, s string) *model.Date {
	t.Helper()
	d, err := model.ParseDate(s)
	if err != nil {
		t.Fatalf("ParseDate(%q): %v", s, err)
	}
	return &d
}

func paymentInput(t *testing.T, owner int64, method model.PaymentMethod, amount, date string) model.PaymentInput {
	t.Helper()
	return model.PaymentInput{
		UserID:      &owner,
		PaymentType: method,
		Amount:      json.Number(amount),
		PaymentDate: date,
	}
}

func mustCreate(t *testing.T, svc PaymentService, actor model.Actor, in model.PaymentInput) *PaymentItem {
	t.Helper()
	item, err := svc.Create(context.Background(), actor, in)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return item
}

func TestCreate_UserOwnerIsForcedToSelf(t *testing.T) {
	svc, _ := newPaymentService(t)

	item := mustCreate(t, svc, asha, paymentInput(t, 9, model.PaymentMethodEsewa, "500.00", "2025-03-01"))

	if item.UserID != 5 {
		t.Errorf("owner = %d, want 5", item.UserID)
	}
	if item.UserName != "Asha" {
		t.Errorf("owner name = %q, want Asha", item.UserName)
	}
	if got := item.NextRenewDate.String(); got != "2025-03-31" {
		t.Errorf("next_renew_date = %s, want 2025-03-31", got)
	}
	if got := item.Amount.StringFixed(2); got != "500.00" {
		t.Errorf("amount = %s, want 500.00", got)
	}
	if !item.CanEdit || !item.CanDelete {
		t.Error("owner should be able to edit and delete their own payment")
	}
}

func TestCreate_AdminOwnerRules(t *testing.T) {
	tests := []struct {
		name      string
		owner     int64
		wantField string
	}{
		{name: "assign to another admin", owner: 2, wantField: policy.FieldOwner},
		{name: "assign to self", owner: 1, wantField: policy.FieldOwner},
		{name: "assign to missing principal", owner: 42, wantField: policy.FieldOwner},
		{name: "assign to user", owner: 9},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, db := newPaymentService(t)

			item, err := svc.Create(context.Background(), root, paymentInput(t, tt.owner, model.PaymentMethodBank, "1500", "2025-01-15"))

			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("Create: %v", err)
				}
				if item.UserID != tt.owner {
					t.Errorf("owner = %d, want %d", item.UserID, tt.owner)
				}
				return
			}

			var verrs policy.ValidationErrors
			if !errors.As(err, &verrs) {
				t.Fatalf("err = %v, want ValidationErrors", err)
			}
			if !verrs.Has(tt.wantField) {
				t.Errorf("errors %v do not mention %s", verrs.Fields(), tt.wantField)
			}
			if n := testutil.CountPayments(t, db); n != 0 {
				t.Errorf("%d payments persisted after rejected write", n)
			}
		})
	}
}

func TestCreate_OwnerAndFieldErrorsReportedTogether(t *testing.T) {
	svc, _ := newPaymentService(t)

	_, err := svc.Create(context.Background(), root, paymentInput(t, 2, model.PaymentMethodKhalti, "5", "2025-01-15"))

	var verrs policy.ValidationErrors
	if !errors.As(err, &verrs) {
		t.Fatalf("err = %v, want ValidationErrors", err)
	}
	fields := verrs.Fields()
	if _, ok := fields[policy.FieldOwner]; !ok {
		t.Errorf("missing owner error in %v", fields)
	}
	if _, ok := fields[policy.FieldAmount]; !ok {
		t.Errorf("missing amount error in %v", fields)
	}
}

func TestCreate_KeepsExplicitRenewDate(t *testing.T) {
	svc, _ := newPaymentService(t)

	in := paymentInput(t, 9, model.PaymentMethodKhalti, "250.5", "2025-01-15")
	in.NextRenewDate = "2025-06-01"

	item := mustCreate(t, svc, root, in)
	if got := item.NextRenewDate.String(); got != "2025-06-01" {
		t.Errorf("next_renew_date = %s, want 2025-06-01", got)
	}
}

func TestCreate_AdminWithoutOwner(t *testing.T) {
	svc, db := newPaymentService(t)

	in := paymentInput(t, 0, model.PaymentMethodKhalti, "250", "2025-01-15")
	in.UserID = nil

	_, err := svc.Create(context.Background(), root, in)

	var verrs policy.ValidationErrors
	if !errors.As(err, &verrs) || !verrs.Has(policy.FieldOwner) {
		t.Fatalf("err = %v, want owner ValidationErrors", err)
	}
	if n := testutil.CountPayments(t, db); n != 0 {
		t.Errorf("%d payments persisted", n)
	}
}

func TestUpdate(t *testing.T) {
	svc, _ := newPaymentService(t)
	ctx := context.Background()

	theirs := mustCreate(t, svc, bikash, paymentInput(t, 9, model.PaymentMethodEsewa, "700", "2025-02-01"))

	t.Run("user cannot edit another owner's payment", func(t *testing.T) {
		_, err := svc.Update(ctx, asha, theirs.ID, paymentInput(t, 5, model.PaymentMethodBank, "10", "2025-02-02"))

		var authErr *policy.AuthorizationError
		if !errors.As(err, &authErr) {
			t.Fatalf("err = %v, want AuthorizationError", err)
		}
		if authErr.Action != policy.ActionEdit {
			t.Errorf("action = %q, want %q", authErr.Action, policy.ActionEdit)
		}

		got, err := svc.Get(ctx, root, theirs.ID)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if got.Amount.StringFixed(2) != "700.00" || got.PaymentType != model.PaymentMethodEsewa {
			t.Errorf("payment changed after denied edit: %+v", got.Payment)
		}
	})

	t.Run("owner edit cannot move the payment away", func(t *testing.T) {
		got, err := svc.Update(ctx, bikash, theirs.ID, paymentInput(t, 5, model.PaymentMethodKhalti, "800.25", "2025-02-10"))
		if err != nil {
			t.Fatalf("Update: %v", err)
		}
		if got.UserID != 9 {
			t.Errorf("owner = %d, want 9", got.UserID)
		}
		if got.NextRenewDate.String() != "2025-03-12" {
			t.Errorf("next_renew_date = %s, want 2025-03-12", got.NextRenewDate)
		}
		if !got.CreatedAt.Equal(theirs.CreatedAt) {
			t.Errorf("created_at changed from %v to %v", theirs.CreatedAt, got.CreatedAt)
		}
	})

	t.Run("admin can reassign to another user", func(t *testing.T) {
		got, err := svc.Update(ctx, root, theirs.ID, paymentInput(t, 5, model.PaymentMethodBank, "900", "2025-02-10"))
		if err != nil {
			t.Fatalf("Update: %v", err)
		}
		if got.UserID != 5 || got.UserName != "Asha" {
			t.Errorf("owner = %d (%s), want 5 (Asha)", got.UserID, got.UserName)
		}
	})

	t.Run("missing payment", func(t *testing.T) {
		_, err := svc.Update(ctx, root, 9999, paymentInput(t, 5, model.PaymentMethodBank, "900", "2025-02-10"))
		if !errors.Is(err, ErrPaymentNotFound) {
			t.Errorf("err = %v, want ErrPaymentNotFound", err)
		}
	})
}

func TestDelete(t *testing.T) {
	svc, db := newPaymentService(t)
	ctx := context.Background()

	mine := mustCreate(t, svc, asha, paymentInput(t, 5, model.PaymentMethodEsewa, "100", "2025-02-01"))
	theirs := mustCreate(t, svc, bikash, paymentInput(t, 9, model.PaymentMethodEsewa, "100", "2025-02-01"))

	var authErr *policy.AuthorizationError
	if err := svc.Delete(ctx, asha, theirs.ID); !errors.As(err, &authErr) {
		t.Fatalf("Delete someone else's payment: err = %v, want AuthorizationError", err)
	}
	if n := testutil.CountPayments(t, db); n != 2 {
		t.Fatalf("count = %d after denied delete, want 2", n)
	}

	if err := svc.Delete(ctx, asha, mine.ID); err != nil {
		t.Fatalf("Delete own payment: %v", err)
	}
	if err := svc.Delete(ctx, root, theirs.ID); err != nil {
		t.Fatalf("admin Delete: %v", err)
	}
	if n := testutil.CountPayments(t, db); n != 0 {
		t.Errorf("count = %d, want 0", n)
	}

	if err := svc.Delete(ctx, root, theirs.ID); !errors.Is(err, ErrPaymentNotFound) {
		t.Errorf("second Delete: err = %v, want ErrPaymentNotFound", err)
	}
}

func TestBulkDelete(t *testing.T) {
	svc, db := newPaymentService(t)
	ctx := context.Background()

	a := mustCreate(t, svc, asha, paymentInput(t, 5, model.PaymentMethodEsewa, "100", "2025-02-01"))
	b := mustCreate(t, svc, asha, paymentInput(t, 5, model.PaymentMethodBank, "200", "2025-02-02"))
	c := mustCreate(t, svc, bikash, paymentInput(t, 9, model.PaymentMethodKhalti, "300", "2025-02-03"))

	var authErr *policy.AuthorizationError
	if _, err := svc.BulkDelete(ctx, asha, []int64{a.ID, b.ID}); !errors.As(err, &authErr) {
		t.Fatalf("user BulkDelete: err = %v, want AuthorizationError", err)
	}
	if authErr.Action != policy.ActionBulkDelete {
		t.Errorf("action = %q, want %q", authErr.Action, policy.ActionBulkDelete)
	}
	if n := testutil.CountPayments(t, db); n != 3 {
		t.Fatalf("count = %d after denied bulk delete, want 3", n)
	}

	if _, err := svc.BulkDelete(ctx, root, nil); !errors.Is(err, ErrNoPaymentIDs) {
		t.Errorf("empty BulkDelete: err = %v, want ErrNoPaymentIDs", err)
	}

	n, err := svc.BulkDelete(ctx, root, []int64{a.ID, c.ID, 9999})
	if err != nil {
		t.Fatalf("admin BulkDelete: %v", err)
	}
	if n != 2 {
		t.Errorf("deleted = %d, want 2", n)
	}
	if left := testutil.CountPayments(t, db); left != 1 {
		t.Errorf("count = %d, want 1", left)
	}
}

func TestListAndGet_Visibility(t *testing.T) {
	svc, _ := newPaymentService(t)
	ctx := context.Background()

	mustCreate(t, svc, asha, paymentInput(t, 5, model.PaymentMethodEsewa, "100", "2025-02-01"))
	mustCreate(t, svc, asha, paymentInput(t, 5, model.PaymentMethodBank, "200", "2025-02-02"))
	theirs := mustCreate(t, svc, bikash, paymentInput(t, 9, model.PaymentMethodKhalti, "300", "2025-02-03"))

	page, err := svc.List(ctx, asha, repository.ListQuery{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if page.Total != 2 || len(page.Items) != 2 {
		t.Fatalf("user sees %d/%d rows, want 2", len(page.Items), page.Total)
	}
	if page.CanBulkDelete {
		t.Error("user page should not allow bulk delete")
	}
	for _, item := range page.Items {
		if item.UserID != 5 {
			t.Errorf("user sees payment %d owned by %d", item.ID, item.UserID)
		}
		if !item.CanEdit || !item.CanDelete {
			t.Errorf("payment %d: owner should be able to edit and delete", item.ID)
		}
	}

	page, err = svc.List(ctx, root, repository.ListQuery{PageSize: 2})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if page.Total != 3 || len(page.Items) != 2 || page.TotalPages() != 2 {
		t.Errorf("admin page: total=%d items=%d pages=%d, want 3/2/2", page.Total, len(page.Items), page.TotalPages())
	}
	if !page.CanBulkDelete {
		t.Error("admin page should allow bulk delete")
	}

	if _, err := svc.List(ctx, root, repository.ListQuery{Sort: "password_hash"}); !errors.Is(err, repository.ErrInvalidSort) {
		t.Errorf("bad sort: err = %v, want ErrInvalidSort", err)
	}

	var authErr *policy.AuthorizationError
	if _, err := svc.Get(ctx, asha, theirs.ID); !errors.As(err, &authErr) {
		t.Errorf("Get other's payment: err = %v, want AuthorizationError", err)
	}
	if _, err := svc.Get(ctx, asha, 9999); !errors.Is(err, ErrPaymentNotFound) {
		t.Errorf("Get missing: err = %v, want ErrPaymentNotFound", err)
	}

	got, err := svc.Get(ctx, root, theirs.ID)
	if err != nil {
		t.Fatalf("admin Get: %v", err)
	}
	if !got.CanEdit || !got.CanDelete {
		t.Error("admin should be able to edit and delete any payment")
	}
}

func TestOwnerField(t *testing.T) {
	svc, _ := newPaymentService(t)
	ctx := context.Background()

	fp, err := svc.OwnerField(ctx, root)
	if err != nil {
		t.Fatalf("OwnerField(admin): %v", err)
	}
	if !fp.Editable || fp.ForcedValue != nil {
		t.Errorf("admin field should be editable and unforced: %+v", fp)
	}
	if len(fp.Options) != 2 || fp.Options[0].Label != "Asha" || fp.Options[1].Label != "Bikash" {
		t.Errorf("admin options = %+v, want Asha, Bikash", fp.Options)
	}

	fp, err = svc.OwnerField(ctx, bikash)
	if err != nil {
		t.Fatalf("OwnerField(user): %v", err)
	}
	if fp.Editable || fp.ForcedValue == nil || *fp.ForcedValue != 9 {
		t.Errorf("user field should be forced to 9: %+v", fp)
	}
	if !fp.Submitted {
		t.Error("read-only owner should still be submitted")
	}
	if len(fp.Options) != 1 || fp.Options[0].Value != 9 {
		t.Errorf("user options = %+v, want only self", fp.Options)
	}
}

func TestRenewDate(t *testing.T) {
	svc, _ := newPaymentService(t)

	if got := svc.RenewDate(*mustDate(t, "2024-12-15")).String(); got != "2025-01-14" {
		t.Errorf("RenewDate = %s, want 2025-01-14", got)
	}
}

func TestExport(t *testing.T) {
	svc, _ := newPaymentService(t)
	ctx := context.Background()

	mustCreate(t, svc, asha, paymentInput(t, 5, model.PaymentMethodEsewa, "1234.5", "2025-03-01"))
	mustCreate(t, svc, bikash, paymentInput(t, 9, model.PaymentMethodKhalti, "300", "2025-02-03"))

	readRows := func(t *testing.T, actor model.Actor) [][]string {
		t.Helper()
		var buf bytes.Buffer
		if err := svc.Export(ctx, actor, repository.ListQuery{Sort: "id", Direction: "asc"}, &buf); err != nil {
			t.Fatalf("Export: %v", err)
		}
		f, err := excelize.OpenReader(&buf)
		if err != nil {
			t.Fatalf("OpenReader: %v", err)
		}
		defer f.Close()
		rows, err := f.GetRows(exportSheet)
		if err != nil {
			t.Fatalf("GetRows: %v", err)
		}
		return rows
	}

	t.Run("admin gets every row", func(t *testing.T) {
		rows := readRows(t, root)
		if len(rows) != 3 {
			t.Fatalf("got %d rows, want header + 2", len(rows))
		}
		want := []string{"ID", "User", "Method", "Amount", "Payment Date", "Next Renew Date", "Created At"}
		for i, h := range want {
			if rows[0][i] != h {
				t.Errorf("header[%d] = %q, want %q", i, rows[0][i], h)
			}
		}
	})

	t.Run("user gets only own rows", func(t *testing.T) {
		rows := readRows(t, asha)
		if len(rows) != 2 {
			t.Fatalf("got %d rows, want header + 1", len(rows))
		}
		row := rows[1]
		if row[1] != "Asha" || row[2] != "eSewa" || row[3] != "NPR 1,234.50" {
			t.Errorf("row = %v", row)
		}
		if row[4] != "Mar 1, 2025" || row[5] != "Mar 31, 2025" {
			t.Errorf("dates = %q, %q", row[4], row[5])
		}
	})
}
