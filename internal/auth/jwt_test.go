package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"payment-records/internal/model"
)

func TestIssuer_IssueAndParse(t *testing.T) {
	iss := NewIssuer("test-secret", time.Hour)
	p := &model.Principal{ID: 42, Role: model.RoleUser}

	token, exp, err := iss.Issue(p)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if time.Until(exp) <= 59*time.Minute {
		t.Errorf("expiry %v is not about an hour away", exp)
	}

	id, err := iss.Parse(token)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if id != 42 {
		t.Errorf("Parse id = %d, want 42", id)
	}
}

func TestIssuer_Rejects(t *testing.T) {
	p := &model.Principal{ID: 7, Role: model.RoleAdmin}
	good := NewIssuer("test-secret", time.Hour)

	expired, _, err := NewIssuer("test-secret", -time.Minute).Issue(p)
	if err != nil {
		t.Fatal(err)
	}
	forged, _, err := NewIssuer("other-secret", time.Hour).Issue(p)
	if err != nil {
		t.Fatal(err)
	}
	noneAlg, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "7",
			Issuer:    issuerName,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatal(err)
	}
	badSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "admin",
			Issuer:    issuerName,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatal(err)
	}

	tests := map[string]string{
		"expired":      expired,
		"wrong secret": forged,
		"alg none":     noneAlg,
		"bad subject":  badSubject,
		"garbage":      "not-a-token",
		"empty":        "",
	}
	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := good.Parse(token); !errors.Is(err, ErrInvalidToken) {
				t.Errorf("Parse err = %v, want ErrInvalidToken", err)
			}
		})
	}
}
