package app

import (
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/l0lusurname/DonutShopAutoDeliver/internal/platform/errors"
)

// triggerGrantEnv holds raw env values before post-parse validation.
type triggerGrantEnv struct {
	Issuer    string `env:"DONUT_DELIVER_TRIGGER_GRANT_ISSUER"`
	Audience  string `env:"DONUT_DELIVER_TRIGGER_GRANT_AUDIENCE"`
	PublicKey string `env:"DONUT_DELIVER_TRIGGER_GRANT_PUBLIC_KEY"`
}

// TriggerGrantConfig defines how manual delivery trigger grants are verified.
// A zero config disables verification; the trigger endpoint then accepts
// unauthenticated requests, which is only acceptable for single-operator
// deployments behind a private network.
type TriggerGrantConfig struct {
	Issuer   string
	Audience string
	Key      ed25519.PublicKey
	Now      func() time.Time
}

// Enabled reports whether grant verification is configured.
func (c TriggerGrantConfig) Enabled() bool {
	return len(c.Key) == ed25519.PublicKeySize
}

// TriggerGrantClaims captures validated trigger grant claims.
type TriggerGrantClaims struct {
	Issuer        string
	Audience      []string
	ExpiresAt     time.Time
	IssuedAt      time.Time
	JWTID         string
	RecipientName string
}

// triggerGrantClaims is the internal claims type used for JWT parsing.
type triggerGrantClaims struct {
	jwt.RegisteredClaims
	RecipientName string `json:"recipient_name"`
}

// LoadTriggerGrantConfigFromEnv reads trigger grant verification
// configuration. All three variables must be set together; when none are
// set, verification is disabled.
func LoadTriggerGrantConfigFromEnv(now func() time.Time) (TriggerGrantConfig, error) {
	var raw triggerGrantEnv
	if err := env.Parse(&raw); err != nil {
		return TriggerGrantConfig{}, fmt.Errorf("parse trigger grant env: %w", err)
	}
	issuer := strings.TrimSpace(raw.Issuer)
	audience := strings.TrimSpace(raw.Audience)
	publicKey := strings.TrimSpace(raw.PublicKey)
	if issuer == "" && audience == "" && publicKey == "" {
		return TriggerGrantConfig{}, nil
	}
	if issuer == "" {
		return TriggerGrantConfig{}, fmt.Errorf("DONUT_DELIVER_TRIGGER_GRANT_ISSUER is required")
	}
	if audience == "" {
		return TriggerGrantConfig{}, fmt.Errorf("DONUT_DELIVER_TRIGGER_GRANT_AUDIENCE is required")
	}
	if publicKey == "" {
		return TriggerGrantConfig{}, fmt.Errorf("DONUT_DELIVER_TRIGGER_GRANT_PUBLIC_KEY is required")
	}
	keyBytes, err := decodeBase64(publicKey)
	if err != nil {
		return TriggerGrantConfig{}, fmt.Errorf("decode trigger grant public key: %w", err)
	}
	if len(keyBytes) != ed25519.PublicKeySize {
		return TriggerGrantConfig{}, fmt.Errorf("trigger grant public key must be %d bytes", ed25519.PublicKeySize)
	}
	if now == nil {
		now = time.Now
	}
	return TriggerGrantConfig{
		Issuer:   issuer,
		Audience: audience,
		Key:      ed25519.PublicKey(keyBytes),
		Now:      now,
	}, nil
}

// ValidateTriggerGrant verifies a manual trigger grant token and checks the
// claimed recipient against the requested one.
func ValidateTriggerGrant(grant string, expectedRecipient string, cfg TriggerGrantConfig) (TriggerGrantClaims, error) {
	grant = strings.TrimSpace(grant)
	if grant == "" {
		return TriggerGrantClaims{}, apperrors.New(apperrors.CodeTriggerGrantInvalid, "trigger grant is required")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if !cfg.Enabled() || cfg.Issuer == "" || cfg.Audience == "" {
		return TriggerGrantClaims{}, errors.New("trigger grant verifier is not configured")
	}

	var parsed triggerGrantClaims
	_, err := jwt.ParseWithClaims(grant, &parsed, func(token *jwt.Token) (any, error) {
		return cfg.Key, nil
	},
		jwt.WithValidMethods([]string{"EdDSA"}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return TriggerGrantClaims{}, mapJWTError(err)
	}

	if parsed.Issuer == "" || parsed.Issuer != cfg.Issuer {
		return TriggerGrantClaims{}, apperrors.WithMetadata(
			apperrors.CodeTriggerGrantInvalid,
			"trigger grant issuer mismatch",
			map[string]string{"Field": "issuer"},
		)
	}
	if !audienceContains(parsed.Audience, cfg.Audience) {
		return TriggerGrantClaims{}, apperrors.WithMetadata(
			apperrors.CodeTriggerGrantInvalid,
			"trigger grant audience mismatch",
			map[string]string{"Field": "audience"},
		)
	}
	if parsed.ID == "" {
		return TriggerGrantClaims{}, apperrors.New(apperrors.CodeTriggerGrantInvalid, "trigger grant jti is required")
	}
	if parsed.ExpiresAt == nil {
		return TriggerGrantClaims{}, apperrors.New(apperrors.CodeTriggerGrantInvalid, "trigger grant exp is required")
	}

	now := cfg.Now().UTC()
	exp := parsed.ExpiresAt.Time.UTC()
	if !exp.After(now) {
		return TriggerGrantClaims{}, apperrors.New(apperrors.CodeTriggerGrantExpired, "trigger grant is expired")
	}
	if parsed.NotBefore != nil && now.Before(parsed.NotBefore.Time.UTC()) {
		return TriggerGrantClaims{}, apperrors.New(apperrors.CodeTriggerGrantInvalid, "trigger grant not active yet")
	}

	claimedRecipient := strings.TrimSpace(parsed.RecipientName)
	if claimedRecipient == "" || !strings.EqualFold(claimedRecipient, strings.TrimSpace(expectedRecipient)) {
		return TriggerGrantClaims{}, apperrors.WithMetadata(
			apperrors.CodeTriggerGrantInvalid,
			"trigger grant recipient mismatch",
			map[string]string{"Field": "recipient_name"},
		)
	}

	claims := TriggerGrantClaims{
		Issuer:        parsed.Issuer,
		Audience:      []string(parsed.Audience),
		ExpiresAt:     exp,
		JWTID:         parsed.ID,
		RecipientName: claimedRecipient,
	}
	if parsed.IssuedAt != nil {
		claims.IssuedAt = parsed.IssuedAt.Time.UTC()
	}
	return claims, nil
}

// mapJWTError translates jwt library errors to application errors.
func mapJWTError(err error) error {
	if errors.Is(err, jwt.ErrTokenSignatureInvalid) || errors.Is(err, jwt.ErrEd25519Verification) {
		return apperrors.New(apperrors.CodeTriggerGrantInvalid, "trigger grant signature is invalid")
	}
	if errors.Is(err, jwt.ErrTokenUnverifiable) {
		return apperrors.New(apperrors.CodeTriggerGrantInvalid, "trigger grant alg is invalid")
	}
	return apperrors.New(apperrors.CodeTriggerGrantInvalid, "trigger grant is invalid")
}

// audienceContains reports whether the audience list contains the given value.
func audienceContains(aud jwt.ClaimStrings, value string) bool {
	for _, item := range aud {
		if item == value {
			return true
		}
	}
	return false
}

func decodeBase64(value string) ([]byte, error) {
	if value == "" {
		return nil, errors.New("empty base64 value")
	}
	decoded, err := base64.RawStdEncoding.DecodeString(value)
	if err == nil {
		return decoded, nil
	}
	return base64.StdEncoding.DecodeString(value)
}
