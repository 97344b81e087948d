package security

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type TokenPurpose string

const (
	PurposeConfirm TokenPurpose = "confirm"
	PurposeReset   TokenPurpose = "reset"
)

// DefaultTokenTTL applies to both confirmation and reset links.
const DefaultTokenTTL = 1800 * time.Second

var (
	ErrTokenInvalid   = errors.New("token invalid")
	ErrTokenExpired   = errors.New("token expired")
	ErrTokenSpent     = errors.New("token already used")
	ErrMissingSecret  = errors.New("token signing secret is empty")
	ErrUnknownPurpose = errors.New("unknown token purpose")
)

// TokenPayload is the typed body of a confirm or reset token.
type TokenPayload struct {
	Purpose   TokenPurpose
	Email     string
	UserID    int64
	ID        string
	ExpiresAt time.Time
}

type tokenClaims struct {
	Purpose TokenPurpose `json:"purpose"`
	Email   string       `json:"email,omitempty"`
	UserID  int64        `json:"user_id,omitempty"`
	jwt.RegisteredClaims
}

// SpentTokenStore records tokens that were consumed. Consume reports
// ErrTokenSpent on the second call for the same id; the record may be
// forgotten after ttl.
type SpentTokenStore interface {
	Consume(ctx context.Context, id string, ttl time.Duration) error
}

// TokenService issues and verifies self-contained HS256 tokens.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
	spent  SpentTokenStore
}

type TokenOption func(*TokenService)

func WithClock(now func() time.Time) TokenOption {
	return func(s *TokenService) { s.now = now }
}

func WithTTL(ttl time.Duration) TokenOption {
	return func(s *TokenService) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

func WithSpentStore(store SpentTokenStore) TokenOption {
	return func(s *TokenService) { s.spent = store }
}

func NewTokenService(secret []byte, opts ...TokenOption) (*TokenService, error) {
	if len(secret) == 0 {
		return nil, ErrMissingSecret
	}
	s := &TokenService{
		secret: append([]byte(nil), secret...),
		ttl:    DefaultTokenTTL,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

// IssueConfirm signs a confirmation token for email with the default TTL.
func (s *TokenService) IssueConfirm(email string) (string, error) {
	return s.Issue(PurposeConfirm, TokenPayload{Email: email}, s.ttl)
}

// IssueReset signs a password-reset token for userID with the default TTL.
func (s *TokenService) IssueReset(userID int64) (string, error) {
	return s.Issue(PurposeReset, TokenPayload{UserID: userID}, s.ttl)
}

func (s *TokenService) Issue(purpose TokenPurpose, payload TokenPayload, ttl time.Duration) (string, error) {
	claims := tokenClaims{Purpose: purpose}
	switch purpose {
	case PurposeConfirm:
		claims.Email = payload.Email
	case PurposeReset:
		claims.UserID = payload.UserID
	default:
		return "", ErrUnknownPurpose
	}

	now := s.now()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiryCeil(now.Add(ttl))),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", purpose, err)
	}
	return signed, nil
}

// expiryCeil rounds up to the whole second the exp claim can carry, so a
// token never expires before its full TTL has passed.
func expiryCeil(t time.Time) time.Time {
	if whole := t.Truncate(time.Second); whole.Before(t) {
		return whole.Add(time.Second)
	}
	return t
}

// Verify checks the signature first and the expiry second. An expired
// token with a valid signature returns its payload with ErrTokenExpired.
func (s *TokenService) Verify(token string, purpose TokenPurpose) (*TokenPayload, error) {
	claims := &tokenClaims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (interface{}, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return nil, ErrTokenInvalid
	}
	if claims.Purpose != purpose || claims.ExpiresAt == nil {
		return nil, ErrTokenInvalid
	}

	payload := &TokenPayload{
		Purpose:   claims.Purpose,
		Email:     claims.Email,
		UserID:    claims.UserID,
		ID:        claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}
	switch purpose {
	case PurposeConfirm:
		if payload.Email == "" {
			return nil, ErrTokenInvalid
		}
	case PurposeReset:
		if payload.UserID == 0 {
			return nil, ErrTokenInvalid
		}
	}

	if s.now().After(payload.ExpiresAt) {
		return payload, ErrTokenExpired
	}
	return payload, nil
}

// Consume marks a verified token as used when a spent store is
// configured. Without one, tokens stay reusable until they expire.
func (s *TokenService) Consume(ctx context.Context, payload *TokenPayload) error {
	if s.spent == nil || payload == nil || payload.ID == "" {
		return nil
	}
	ttl := payload.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return ErrTokenExpired
	}
	return s.spent.Consume(ctx, payload.ID, ttl)
}
