package policy

import (
	"fmt"
	"strings"
)

// Payload field names, as submitted by the form.
const (
	FieldOwner         = "user_id"
	FieldPaymentType   = "payment_type"
	FieldAmount        = "amount"
	FieldPaymentDate   = "payment_date"
	FieldNextRenewDate = "next_renew_date"
)

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors rejects a write as a whole. Nothing is persisted when it is returned.
type ValidationErrors []FieldError

func (v ValidationErrors) Error() string {
	parts := make([]string, 0, len(v))
	for _, fe := range v {
		parts = append(parts, fe.Field+": "+fe.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Fields returns the first message per field.
func (v ValidationErrors) Fields() map[string]string {
	fields := make(map[string]string, len(v))
	for _, fe := range v {
		if _, ok := fields[fe.Field]; !ok {
			fields[fe.Field] = fe.Message
		}
	}
	return fields
}

func (v ValidationErrors) Has(field string) bool {
	for _, fe := range v {
		if fe.Field == field {
			return true
		}
	}
	return false
}

func fieldError(field, message string) ValidationErrors {
	return ValidationErrors{{Field: field, Message: message}}
}

type Action string

const (
	ActionView       Action = "view"
	ActionWrite      Action = "write"
	ActionEdit       Action = "edit"
	ActionDelete     Action = "delete"
	ActionBulkDelete Action = "bulk delete"
)

type AuthorizationError struct {
	Action Action
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("not allowed to %s payments", e.Action)
}
