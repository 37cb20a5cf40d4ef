package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestIssueAndParse(t *testing.T) {
	m := NewTokenManager([]byte("test-secret"), time.Hour)

	token, err := m.Issue("5b0c6c9e-8f7e-4c61-9d8b-0a1f0c2d3e4f", "staff")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	claims, err := m.Parse(token)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if claims.Subject != "5b0c6c9e-8f7e-4c61-9d8b-0a1f0c2d3e4f" || claims.Role != "staff" {
		t.Errorf("unexpected claims: %+v", claims)
	}
}

func TestParseRejects(t *testing.T) {
	m := NewTokenManager([]byte("test-secret"), time.Hour)

	other, _ := NewTokenManager([]byte("other-secret"), time.Hour).Issue("user", "staff")
	expired, _ := NewTokenManager([]byte("test-secret"), time.Nanosecond).Issue("user", "staff")
	time.Sleep(time.Millisecond)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "user"})
	unsigned, _ := none.SignedString(jwt.UnsafeAllowNoneSignatureType)

	tests := map[string]string{
		"wrong secret": other,
		"expired":      expired,
		"alg none":     unsigned,
		"garbage":      "not-a-token",
	}
	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := m.Parse(token); !errors.Is(err, ErrInvalidToken) {
				t.Errorf("expected ErrInvalidToken, got %v", err)
			}
		})
	}
}
