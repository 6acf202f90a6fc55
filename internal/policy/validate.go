package policy

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"payment-records/internal/model"
)

var (
	MinAmount = decimal.NewFromInt(10)
	MaxAmount = decimal.NewFromInt(1_000_000)

	amountPattern = regexp.MustCompile(`^\d+(\.\d{1,2})?$`)

	validate = newValidator()
)

var ErrInvalidAmount = errors.New("amount must be between 10 and 1000000 with at most 2 decimal places")

// Validator returns the shared validator, with payload field names reported by
// their json tag and the "amount" rule registered.
func Validator() *validator.Validate {
	return validate
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	if err := v.RegisterValidation("amount", func(fl validator.FieldLevel) bool {
		_, err := ParseAmount(fl.Field().String())
		return err == nil
	}); err != nil {
		panic(err)
	}
	if err := v.RegisterValidation("calendar_date", func(fl validator.FieldLevel) bool {
		_, err := model.ParseDate(fl.Field().String())
		return err == nil
	}); err != nil {
		panic(err)
	}
	return v
}

// ParseAmount accepts plain decimals with up to two fractional digits inside
// [MinAmount, MaxAmount].
func ParseAmount(raw string) (decimal.Decimal, error) {
	if !amountPattern.MatchString(raw) {
		return decimal.Decimal{}, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, ErrInvalidAmount
	}
	if d.LessThan(MinAmount) || d.GreaterThan(MaxAmount) {
		return decimal.Decimal{}, ErrInvalidAmount
	}
	return d, nil
}

// ValidatePayload checks a sanitized payload and turns it into a storable payment.
// next_renew_date is derived from payment_date when the client did not send one.
func ValidatePayload(in model.PaymentInput) (*model.Payment, error) {
	var out ValidationErrors
	if err := validate.Struct(in); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return nil, fmt.Errorf("validate payment: %w", err)
		}
		for _, fe := range verrs {
			out = append(out, FieldError{Field: fe.Field(), Message: messageFor(fe)})
		}
	}

	// 0001-01-01 parses, but it is the zero time and stands for "no date".
	paymentDate, err := model.ParseDate(in.PaymentDate)
	if err == nil && paymentDate.IsZero() {
		out = append(out, FieldError{Field: FieldPaymentDate, Message: "is required"})
	}

	if len(out) > 0 {
		return nil, out
	}

	amount, err := ParseAmount(in.Amount.String())
	if err != nil {
		return nil, fieldError(FieldAmount, err.Error())
	}

	p := &model.Payment{
		UserID:        *in.UserID,
		PaymentType:   in.PaymentType,
		Amount:        amount,
		PaymentDate:   paymentDate,
		NextRenewDate: DeriveRenewDate(paymentDate),
	}
	if in.NextRenewDate != "" {
		renew, err := model.ParseDate(in.NextRenewDate)
		if err != nil {
			return nil, fieldError(FieldNextRenewDate, dateFormatMessage)
		}
		if !renew.IsZero() {
			p.NextRenewDate = renew
		}
	}
	return p, nil
}

const dateFormatMessage = "must be a date in YYYY-MM-DD format"

func messageFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return "must be one of " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "amount":
		return ErrInvalidAmount.Error()
	case "calendar_date":
		return dateFormatMessage
	}
	return "is invalid"
}
