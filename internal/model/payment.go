package model

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

type PaymentMethod string

const (
	PaymentMethodKhalti PaymentMethod = "khalti"
	PaymentMethodEsewa  PaymentMethod = "esewa"
	PaymentMethodBank   PaymentMethod = "bank"
)

// PaymentMethods lists the accepted methods in display order.
var PaymentMethods = []PaymentMethod{PaymentMethodKhalti, PaymentMethodEsewa, PaymentMethodBank}

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodKhalti, PaymentMethodEsewa, PaymentMethodBank:
		return true
	}
	return false
}

func (m PaymentMethod) Label() string {
	switch m {
	case PaymentMethodKhalti:
		return "Khalti"
	case PaymentMethodEsewa:
		return "eSewa"
	case PaymentMethodBank:
		return "Bank"
	}
	return string(m)
}

type Payment struct {
	ID            int64           `json:"id" db:"id"`
	PaymentType   PaymentMethod   `json:"payment_type" db:"payment_type"`
	UserID        int64           `json:"user_id" db:"user_id"`
	Amount        decimal.Decimal `json:"amount" db:"amount"`
	PaymentDate   Date            `json:"payment_date" db:"payment_date"`
	NextRenewDate Date            `json:"next_renew_date" db:"next_renew_date"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at" db:"updated_at"`
}

// PaymentRow is a payment joined with its owner's name.
type PaymentRow struct {
	Payment
	UserName string `json:"user_name" db:"user_name"`
}

// PaymentInput is the create/edit payload as submitted by a client.
// UserID is a pointer so "not submitted" differs from zero. Dates stay as
// submitted text until validation parses them.
type PaymentInput struct {
	UserID        *int64        `json:"user_id" validate:"required"`
	PaymentType   PaymentMethod `json:"payment_type" validate:"required,oneof=khalti esewa bank"`
	Amount        json.Number   `json:"amount" validate:"required,amount"`
	PaymentDate   string        `json:"payment_date" validate:"required,calendar_date"`
	NextRenewDate string        `json:"next_renew_date" validate:"omitempty,calendar_date"`
}
