package repository

import (
	"context"
	"errors"
	"testing"

	"payment-records/internal/model"
	"payment-records/internal/testutil"
)

func TestPrincipalRepository(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewPrincipalRepository(db)
	ctx := context.Background()

	principals := []*model.Principal{
		{Name: "Sita", Email: "sita@example.com", PasswordHash: "h1", Role: model.RoleUser},
		{Name: "Root", Email: "root@example.com", PasswordHash: "h2", Role: model.RoleAdmin},
		{Name: "Asha", Email: "asha@example.com", PasswordHash: "h3", Role: model.RoleUser},
	}
	for _, p := range principals {
		if err := repo.Create(ctx, p); err != nil {
			t.Fatalf("Create(%s): %v", p.Email, err)
		}
		if p.ID == 0 {
			t.Fatalf("Create(%s) did not assign an id", p.Email)
		}
	}

	t.Run("Given an existing id When GetByID Then principal is returned", func(t *testing.T) {
		got, err := repo.GetByID(ctx, principals[1].ID)
		if err != nil {
			t.Fatal(err)
		}
		if got == nil || got.Email != "root@example.com" || got.Role != model.RoleAdmin {
			t.Errorf("GetByID = %+v", got)
		}
	})

	t.Run("Given an unknown id When GetByID Then nil without error", func(t *testing.T) {
		got, err := repo.GetByID(ctx, 12345)
		if err != nil || got != nil {
			t.Errorf("GetByID = %v, %v; want nil, nil", got, err)
		}
	})

	t.Run("Given an email with spaces When GetByEmail Then it is trimmed", func(t *testing.T) {
		got, err := repo.GetByEmail(ctx, "  asha@example.com ")
		if err != nil {
			t.Fatal(err)
		}
		if got == nil || got.Name != "Asha" || got.PasswordHash != "h3" {
			t.Errorf("GetByEmail = %+v", got)
		}
	})

	t.Run("Given role user When ListByRole Then users ordered by name", func(t *testing.T) {
		got, err := repo.ListByRole(ctx, model.RoleUser)
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 2 || got[0].Name != "Asha" || got[1].Name != "Sita" {
			t.Errorf("ListByRole = %+v", got)
		}
	})

	t.Run("Given a taken email When Create Then ErrDuplicateEmail", func(t *testing.T) {
		err := repo.Create(ctx, &model.Principal{Name: "Dup", Email: "sita@example.com", PasswordHash: "x", Role: model.RoleUser})
		if !errors.Is(err, ErrDuplicateEmail) {
			t.Errorf("err = %v, want ErrDuplicateEmail", err)
		}
	})

	t.Run("Given a user When UpdateRole Then the new role is stored", func(t *testing.T) {
		if err := repo.UpdateRole(ctx, principals[0].ID, model.RoleAdmin); err != nil {
			t.Fatalf("UpdateRole: %v", err)
		}
		got, err := repo.GetByID(ctx, principals[0].ID)
		if err != nil {
			t.Fatal(err)
		}
		if got.Role != model.RoleAdmin {
			t.Errorf("Role = %q, want admin", got.Role)
		}
	})

	t.Run("Given an unknown id When UpdateRole Then ErrPrincipalNotFound", func(t *testing.T) {
		if err := repo.UpdateRole(ctx, 12345, model.RoleUser); !errors.Is(err, ErrPrincipalNotFound) {
			t.Errorf("err = %v, want ErrPrincipalNotFound", err)
		}
	})
}
