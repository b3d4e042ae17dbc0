package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	errMissingSigningSecret = errors.New("token issuer: signing secret must be provided")
	errMissingIssuer        = errors.New("token issuer: issuer must be provided")
	errNonPositiveTTL       = errors.New("token issuer: ttl must be positive")
	errMissingPlannerID     = errors.New("token issuer: planner id must be provided")
)

// TokenIssuerConfig configures the session JWT issuer.
type TokenIssuerConfig struct {
	SigningSecret []byte
	Issuer        string
	TokenTTL      time.Duration
	Clock         func() time.Time
}

// PlannerIdentity is the subject a session token is minted for.
type PlannerIdentity struct {
	PlannerID   string
	Email       string
	DisplayName string
}

// TokenIssuer mints HS256 session tokens that SessionValidator accepts. It
// backs the token command for local and scripted use.
type TokenIssuer struct {
	signingSecret []byte
	issuer        string
	ttl           time.Duration
	clock         func() time.Time
}

// NewTokenIssuer constructs a TokenIssuer.
func NewTokenIssuer(cfg TokenIssuerConfig) (*TokenIssuer, error) {
	if len(cfg.SigningSecret) == 0 {
		return nil, errMissingSigningSecret
	}
	issuer := strings.TrimSpace(cfg.Issuer)
	if issuer == "" {
		return nil, errMissingIssuer
	}
	if cfg.TokenTTL <= 0 {
		return nil, errNonPositiveTTL
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &TokenIssuer{
		signingSecret: append([]byte(nil), cfg.SigningSecret...),
		issuer:        issuer,
		ttl:           cfg.TokenTTL,
		clock:         clock,
	}, nil
}

// IssueSessionToken produces a signed JWT and its expiry time.
func (i *TokenIssuer) IssueSessionToken(identity PlannerIdentity) (string, time.Time, error) {
	plannerID := strings.TrimSpace(identity.PlannerID)
	if plannerID == "" {
		return "", time.Time{}, errMissingPlannerID
	}

	now := i.clock().UTC()
	expiresAt := now.Add(i.ttl)
	claims := SessionClaims{
		PlannerID:   plannerID,
		Email:       strings.TrimSpace(identity.Email),
		DisplayName: strings.TrimSpace(identity.DisplayName),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   plannerID,
			Issuer:    i.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.signingSecret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}
