package app

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/l0lusurname/DonutShopAutoDeliver/internal/platform/errors"
)

func newGrantKeyPair(t *testing.T) (ed25519.PublicKey, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return pub, priv
}

func signGrant(t *testing.T, priv ed25519.PrivateKey, claims triggerGrantClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	signed, err := token.SignedString(priv)
	if err != nil {
		t.Fatalf("sign grant: %v", err)
	}
	return signed
}

func grantConfig(pub ed25519.PublicKey, now time.Time) TriggerGrantConfig {
	return TriggerGrantConfig{
		Issuer:   "donut-deliver",
		Audience: "deliver",
		Key:      pub,
		Now:      func() time.Time { return now },
	}
}

func validClaims(now time.Time) triggerGrantClaims {
	return triggerGrantClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "donut-deliver",
			Audience:  jwt.ClaimStrings{"deliver"},
			ExpiresAt: jwt.NewNumericDate(now.Add(5 * time.Minute)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        "grant-1",
		},
		RecipientName: "Steve",
	}
}

func TestLoadTriggerGrantConfigDisabledWhenUnset(t *testing.T) {
	t.Setenv("DONUT_DELIVER_TRIGGER_GRANT_ISSUER", "")
	t.Setenv("DONUT_DELIVER_TRIGGER_GRANT_AUDIENCE", "")
	t.Setenv("DONUT_DELIVER_TRIGGER_GRANT_PUBLIC_KEY", "")

	cfg, err := LoadTriggerGrantConfigFromEnv(nil)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Enabled() {
		t.Fatal("expected verification disabled when env is unset")
	}
}

func TestLoadTriggerGrantConfigRequiresAllValues(t *testing.T) {
	t.Setenv("DONUT_DELIVER_TRIGGER_GRANT_ISSUER", "donut-deliver")
	t.Setenv("DONUT_DELIVER_TRIGGER_GRANT_AUDIENCE", "")
	t.Setenv("DONUT_DELIVER_TRIGGER_GRANT_PUBLIC_KEY", "")

	if _, err := LoadTriggerGrantConfigFromEnv(nil); err == nil {
		t.Fatal("expected error for partial configuration")
	}
}

func TestLoadTriggerGrantConfigFromEnv(t *testing.T) {
	pub, _ := newGrantKeyPair(t)
	t.Setenv("DONUT_DELIVER_TRIGGER_GRANT_ISSUER", "donut-deliver")
	t.Setenv("DONUT_DELIVER_TRIGGER_GRANT_AUDIENCE", "deliver")
	t.Setenv("DONUT_DELIVER_TRIGGER_GRANT_PUBLIC_KEY", base64.StdEncoding.EncodeToString(pub))

	cfg, err := LoadTriggerGrantConfigFromEnv(nil)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if !cfg.Enabled() {
		t.Fatal("expected verification enabled")
	}
	if cfg.Issuer != "donut-deliver" || cfg.Audience != "deliver" {
		t.Fatalf("unexpected config %+v", cfg)
	}
}

func TestValidateTriggerGrant(t *testing.T) {
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	pub, priv := newGrantKeyPair(t)
	cfg := grantConfig(pub, now)

	grant := signGrant(t, priv, validClaims(now))
	claims, err := ValidateTriggerGrant(grant, "Steve", cfg)
	if err != nil {
		t.Fatalf("validate grant: %v", err)
	}
	if claims.RecipientName != "Steve" || claims.JWTID != "grant-1" {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestValidateTriggerGrantRecipientCaseInsensitive(t *testing.T) {
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	pub, priv := newGrantKeyPair(t)

	grant := signGrant(t, priv, validClaims(now))
	if _, err := ValidateTriggerGrant(grant, "steve", grantConfig(pub, now)); err != nil {
		t.Fatalf("expected case-insensitive recipient match, got %v", err)
	}
}

func TestValidateTriggerGrantRejectsWrongRecipient(t *testing.T) {
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	pub, priv := newGrantKeyPair(t)

	grant := signGrant(t, priv, validClaims(now))
	_, err := ValidateTriggerGrant(grant, "Alex", grantConfig(pub, now))
	if !apperrors.IsCode(err, apperrors.CodeTriggerGrantInvalid) {
		t.Fatalf("expected trigger grant invalid, got %v", err)
	}
}

func TestValidateTriggerGrantRejectsExpired(t *testing.T) {
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	pub, priv := newGrantKeyPair(t)

	claims := validClaims(now)
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(-time.Minute))
	grant := signGrant(t, priv, claims)

	_, err := ValidateTriggerGrant(grant, "Steve", grantConfig(pub, now))
	if !apperrors.IsCode(err, apperrors.CodeTriggerGrantExpired) {
		t.Fatalf("expected trigger grant expired, got %v", err)
	}
}

func TestValidateTriggerGrantRejectsWrongKey(t *testing.T) {
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	pub, _ := newGrantKeyPair(t)
	_, otherPriv := newGrantKeyPair(t)

	grant := signGrant(t, otherPriv, validClaims(now))
	_, err := ValidateTriggerGrant(grant, "Steve", grantConfig(pub, now))
	if !apperrors.IsCode(err, apperrors.CodeTriggerGrantInvalid) {
		t.Fatalf("expected trigger grant invalid, got %v", err)
	}
}

func TestValidateTriggerGrantRejectsWrongIssuer(t *testing.T) {
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	pub, priv := newGrantKeyPair(t)

	claims := validClaims(now)
	claims.Issuer = "someone-else"
	grant := signGrant(t, priv, claims)

	_, err := ValidateTriggerGrant(grant, "Steve", grantConfig(pub, now))
	if !apperrors.IsCode(err, apperrors.CodeTriggerGrantInvalid) {
		t.Fatalf("expected trigger grant invalid, got %v", err)
	}
}

func TestValidateTriggerGrantRequiresToken(t *testing.T) {
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	pub, _ := newGrantKeyPair(t)

	_, err := ValidateTriggerGrant("  ", "Steve", grantConfig(pub, now))
	if !apperrors.IsCode(err, apperrors.CodeTriggerGrantInvalid) {
		t.Fatalf("expected trigger grant invalid, got %v", err)
	}
}
