package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestTokenIssuerIssuesTokens(t *testing.T) {
	issuer := NewTokenIssuer(TokenIssuerConfig{
		SigningSecret: []byte("super-secret"),
		Issuer:        "brandbond-auth",
		Audience:      "brandbond-api",
		TokenTTL:      30 * time.Minute,
	})

	tokenString, expiresIn, err := issuer.IssueToken(context.Background(), "user-123")
	if err != nil {
		t.Fatalf("expected successful issuance: %v", err)
	}
	if expiresIn <= 0 {
		t.Fatalf("expected positive expiry seconds, got %d", expiresIn)
	}

	claims := &jwt.RegisteredClaims{}
	_, err = jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte("super-secret"), nil
	})
	if err != nil {
		t.Fatalf("failed to parse generated token: %v", err)
	}

	if claims.Subject != "user-123" {
		t.Fatalf("unexpected subject %s", claims.Subject)
	}
	if claims.Issuer != "brandbond-auth" {
		t.Fatalf("unexpected issuer %s", claims.Issuer)
	}
	if len(claims.Audience) == 0 || claims.Audience[0] != "brandbond-api" {
		t.Fatalf("unexpected audience %#v", claims.Audience)
	}
}

func TestTokenIssuerRejectsMissingSecret(t *testing.T) {
	issuer := NewTokenIssuer(TokenIssuerConfig{
		Issuer:   "brandbond-auth",
		Audience: "brandbond-api",
	})
	if _, _, err := issuer.IssueToken(context.Background(), "user-1"); err == nil {
		t.Fatalf("expected issuance error for missing secret")
	}
}

func TestTokenIssuerValidatesIssuedTokens(t *testing.T) {
	issuer := NewTokenIssuer(TokenIssuerConfig{
		SigningSecret: []byte("another-secret"),
		Issuer:        "brandbond-auth",
		Audience:      "brandbond-api",
		TokenTTL:      15 * time.Minute,
	})

	tokenString, _, err := issuer.IssueToken(context.Background(), "user-321")
	if err != nil {
		t.Fatalf("unexpected error issuing token: %v", err)
	}

	subject, err := issuer.ValidateToken(tokenString)
	if err != nil {
		t.Fatalf("expected validation success: %v", err)
	}
	if subject != "user-321" {
		t.Fatalf("unexpected subject %s", subject)
	}

	if _, err := issuer.ValidateToken("invalid.token"); err == nil {
		t.Fatalf("expected validation to fail for malformed token")
	}
}

func TestTokenIssuerRejectsExpiredTokens(t *testing.T) {
	issued := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	issuer := NewTokenIssuer(TokenIssuerConfig{
		SigningSecret: []byte("secret"),
		Issuer:        "brandbond-auth",
		Audience:      "brandbond-api",
		TokenTTL:      time.Minute,
		Clock:         func() time.Time { return issued },
	})

	tokenString, _, err := issuer.IssueToken(context.Background(), "user-9")
	if err != nil {
		t.Fatalf("unexpected error issuing token: %v", err)
	}

	later := NewTokenIssuer(TokenIssuerConfig{
		SigningSecret: []byte("secret"),
		Issuer:        "brandbond-auth",
		Audience:      "brandbond-api",
		TokenTTL:      time.Minute,
		Clock:         func() time.Time { return issued.Add(2 * time.Minute) },
	})
	if _, err := later.ValidateToken(tokenString); err == nil {
		t.Fatalf("expected expired token to be rejected")
	}
}

func TestHashPasswordRoundTrip(t *testing.T) {
	hash, err := HashPassword("correct-horse")
	if err != nil {
		t.Fatalf("unexpected hash error: %v", err)
	}
	if err := VerifyPassword(hash, "correct-horse"); err != nil {
		t.Fatalf("expected password to verify: %v", err)
	}
	if err := VerifyPassword(hash, "wrong-horse"); err == nil {
		t.Fatalf("expected mismatch error for wrong password")
	}
}

func TestHashPasswordRejectsShortPasswords(t *testing.T) {
	if _, err := HashPassword("short"); err == nil {
		t.Fatalf("expected error for short password")
	}
}
