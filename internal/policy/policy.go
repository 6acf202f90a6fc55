// Package policy decides who may see and change payment records, and sanitizes
// payment payloads before they are written.
package policy

import (
	"context"
	"fmt"
	"sort"

	"payment-records/internal/model"
)

// RenewalPeriodDays is the gap between a payment and its next renewal.
const RenewalPeriodDays = 30

// MessageOwnerMissing is the owner field error for an id with no principal behind it.
const MessageOwnerMissing = "the selected user does not exist"

// PrincipalDirectory resolves owner ids during sanitization.
// A missing principal is reported as (nil, nil).
type PrincipalDirectory interface {
	GetByID(ctx context.Context, id int64) (*model.Principal, error)
}

type Option struct {
	Value int64  `json:"value"`
	Label string `json:"label"`
}

// FieldPolicy describes how the owner field is presented to an actor.
// Submitted is always true: a read-only owner still travels with the payload,
// and the server overrides it regardless.
type FieldPolicy struct {
	Field       string   `json:"field"`
	Editable    bool     `json:"editable"`
	Submitted   bool     `json:"submitted"`
	Default     int64    `json:"default"`
	ForcedValue *int64   `json:"forced_value,omitempty"`
	Options     []Option `json:"options"`
}

// ResolveOwnerField builds the owner field for actor out of the candidate principals.
// Admins pick among user-role principals only; users are pinned to themselves.
func ResolveOwnerField(actor model.Actor, candidates []model.Principal) FieldPolicy {
	fp := FieldPolicy{
		Field:     FieldOwner,
		Submitted: true,
		Default:   actor.ID,
		Options:   []Option{},
	}

	switch actor.Role {
	case model.RoleAdmin:
		fp.Editable = true
		for _, p := range candidates {
			if p.Role == model.RoleUser {
				fp.Options = append(fp.Options, Option{Value: p.ID, Label: p.Name})
			}
		}
		sort.SliceStable(fp.Options, func(i, j int) bool {
			return fp.Options[i].Label < fp.Options[j].Label
		})
	default:
		forced := actor.ID
		fp.ForcedValue = &forced
		for _, p := range candidates {
			if p.ID == actor.ID {
				fp.Options = append(fp.Options, Option{Value: p.ID, Label: p.Name})
			}
		}
	}

	return fp
}

// Visibility is a row filter over payments. The zero value matches everything.
type Visibility struct {
	Restricted bool
	OwnerID    int64
}

func VisibilityPredicate(actor model.Actor) Visibility {
	if actor.IsAdmin() {
		return Visibility{}
	}
	return Visibility{Restricted: true, OwnerID: actor.ID}
}

func (v Visibility) Allows(p *model.Payment) bool {
	return !v.Restricted || p.UserID == v.OwnerID
}

func CanMutate(actor model.Actor, p *model.Payment) bool {
	return actor.IsAdmin() || p.UserID == actor.ID
}

func CanBulkDelete(actor model.Actor) bool {
	return actor.IsAdmin()
}

// SanitizeBeforeWrite applies the owner rules to a create or update payload.
// Users always write as themselves, whatever owner they submitted. Admins may
// pick any existing user-role principal, never an admin.
func SanitizeBeforeWrite(ctx context.Context, actor model.Actor, in model.PaymentInput, dir PrincipalDirectory) (model.PaymentInput, error) {
	switch actor.Role {
	case model.RoleUser:
		owner := actor.ID
		in.UserID = &owner
		return in, nil

	case model.RoleAdmin:
		if in.UserID == nil {
			return in, nil
		}
		target, err := dir.GetByID(ctx, *in.UserID)
		if err != nil {
			return in, fmt.Errorf("look up payment owner %d: %w", *in.UserID, err)
		}
		if target == nil {
			return in, fieldError(FieldOwner, MessageOwnerMissing)
		}
		if target.Role == model.RoleAdmin {
			return in, fieldError(FieldOwner, "cannot assign a payment to another admin")
		}
		return in, nil
	}

	return in, &AuthorizationError{Action: ActionWrite}
}

// DeriveRenewDate returns the calendar date RenewalPeriodDays after paymentDate.
func DeriveRenewDate(paymentDate model.Date) model.Date {
	return paymentDate.AddDays(RenewalPeriodDays)
}
