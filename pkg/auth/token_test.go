package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/mealkart/cartsync-backend/pkg/config"
)

var testJWT = config.JWTConfig{Secret: "test-secret", Issuer: "mealkart-auth"}

func TestMintAndParseRoundTrip(t *testing.T) {
	token, err := MintAccessToken(testJWT, time.Now(), "user-42", time.Hour)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	claims, err := ParseAccessToken(testJWT, token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.UserID != "user-42" {
		t.Fatalf("unexpected user id %q", claims.UserID)
	}
}

func TestParseRejectsExpiredToken(t *testing.T) {
	token, err := MintAccessToken(testJWT, time.Now().Add(-2*time.Hour), "user-42", time.Hour)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, err := ParseAccessToken(testJWT, token); err == nil {
		t.Fatalf("expected expiry rejection")
	}
}

func TestParseRejectsWrongIssuer(t *testing.T) {
	other := config.JWTConfig{Secret: testJWT.Secret, Issuer: "someone-else"}
	token, err := MintAccessToken(other, time.Now(), "user-42", time.Hour)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, err := ParseAccessToken(testJWT, token); err == nil {
		t.Fatalf("expected issuer rejection")
	}
}

func TestParseRejectsWrongSecret(t *testing.T) {
	other := config.JWTConfig{Secret: "different", Issuer: testJWT.Issuer}
	token, err := MintAccessToken(other, time.Now(), "user-42", time.Hour)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, err := ParseAccessToken(testJWT, token); err == nil {
		t.Fatalf("expected signature rejection")
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	if _, err := ParseAccessToken(testJWT, "not.a.jwt"); err == nil {
		t.Fatalf("expected parse failure")
	}
	if _, err := ParseAccessToken(testJWT, "  "); err == nil {
		t.Fatalf("expected empty-token rejection")
	}
}

func TestSessionKey(t *testing.T) {
	guest := Session{ID: "abc"}
	if guest.Authenticated() {
		t.Fatalf("guest must not read authenticated")
	}
	if !strings.HasPrefix(guest.Key(), "guest:") {
		t.Fatalf("unexpected guest key %q", guest.Key())
	}

	user := Session{ID: "abc", UserID: "u9", Token: "tok"}
	if !user.Authenticated() {
		t.Fatalf("expected authenticated session")
	}
	if user.Key() != "user:u9" {
		t.Fatalf("unexpected user key %q", user.Key())
	}
}
