package service_test

import (
	"errors"
	"testing"
	"time"

	"github.com/boddenberg/stockledger-go/internal/domain"
	"github.com/boddenberg/stockledger-go/internal/service"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret-with-enough-length"

func signToken(t *testing.T, method jwt.SigningMethod, key any, claims jwt.Claims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

func TestTokenVerifier_ValidToken(t *testing.T) {
	v := service.NewTokenVerifier(testSecret, "authenticated")
	token := signToken(t, jwt.SigningMethodHS256, []byte(testSecret), service.AccessClaims{
		Email: "ana@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "owner-42",
			Audience:  jwt.ClaimStrings{"authenticated"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	ownerID, err := v.Verify(token)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ownerID != "owner-42" {
		t.Errorf("owner = %s, want owner-42", ownerID)
	}
}

func TestTokenVerifier_Rejects(t *testing.T) {
	v := service.NewTokenVerifier(testSecret, "authenticated")
	valid := jwt.RegisteredClaims{
		Subject:   "owner-42",
		Audience:  jwt.ClaimStrings{"authenticated"},
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}

	expired := valid
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))

	noSubject := valid
	noSubject.Subject = ""

	wrongAudience := valid
	wrongAudience.Audience = jwt.ClaimStrings{"anon"}

	cases := []struct {
		name  string
		token string
	}{
		{"garbage", "not-a-token"},
		{"wrong secret", signToken(t, jwt.SigningMethodHS256, []byte("other-secret"), valid)},
		{"expired", signToken(t, jwt.SigningMethodHS256, []byte(testSecret), expired)},
		{"no subject", signToken(t, jwt.SigningMethodHS256, []byte(testSecret), noSubject)},
		{"wrong audience", signToken(t, jwt.SigningMethodHS256, []byte(testSecret), wrongAudience)},
		{"alg none", signToken(t, jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, valid)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := v.Verify(tc.token)
			var unauth *domain.ErrUnauthorized
			if !errors.As(err, &unauth) {
				t.Fatalf("expected ErrUnauthorized, got %v", err)
			}
		})
	}
}
