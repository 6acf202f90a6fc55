package controller

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"payment-records/internal/model"
)

// PaymentRequest is the create/update body. Scalars are kept raw so that a
// malformed value becomes a field error instead of a bind failure.
type PaymentRequest struct {
	UserID        json.RawMessage     `json:"user_id"`
	PaymentType   model.PaymentMethod `json:"payment_type"`
	Amount        json.RawMessage     `json:"amount"`
	PaymentDate   string              `json:"payment_date"`
	NextRenewDate string              `json:"next_renew_date"`
}

// Input converts the request into a payment payload. An owner that is not a
// number is treated as absent; the owner rules decide what that means. Dates
// are passed through as text and checked by payload validation, after the
// caller has been authorized.
func (r *PaymentRequest) Input() model.PaymentInput {
	return model.PaymentInput{
		UserID:        parseOwner(r.UserID),
		PaymentType:   r.PaymentType,
		Amount:        json.Number(rawScalar(r.Amount)),
		PaymentDate:   strings.TrimSpace(r.PaymentDate),
		NextRenewDate: strings.TrimSpace(r.NextRenewDate),
	}
}

// rawScalar returns a JSON number or string as plain text. null and other
// shapes come back empty.
func rawScalar(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return ""
		}
		return s
	}
	if raw[0] == '{' || raw[0] == '[' {
		return ""
	}
	return string(raw)
}

func parseOwner(raw json.RawMessage) *int64 {
	s := rawScalar(raw)
	if s == "" {
		return nil
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil
	}
	return &id
}
