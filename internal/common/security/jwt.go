package security

import (
	"errors"
	"time"

	"ctf_zone/internal/domain/model"

	"github.com/go-chi/jwtauth/v5"
)

// TokenAuth signs and verifies session bearer tokens.
var TokenAuth *jwtauth.JWTAuth

var sessionTTL = 72 * time.Hour

func InitJWT(key []byte, ttl time.Duration) {
	TokenAuth = jwtauth.New("HS256", key, nil)
	if ttl > 0 {
		sessionTTL = ttl
	}
}

// GenerateToken issues a session token. The role is informational; the
// API reloads the user on every request.
func GenerateToken(userID int64, role model.Role) (string, error) {
	if TokenAuth == nil {
		return "", errors.New("session signer not initialised")
	}
	now := time.Now()
	claims := map[string]interface{}{
		"user_id": userID,
		"role":    string(role),
		"exp":     now.Add(sessionTTL).Unix(),
		"iat":     now.Unix(),
	}
	_, tokenString, err := TokenAuth.Encode(claims)
	return tokenString, err
}

// IsSessionClaims reports whether claims belong to a session token.
// Confirm and reset tokens carry a purpose claim and never authenticate
// a request, even when signed with the session key.
func IsSessionClaims(claims map[string]interface{}) bool {
	_, scoped := claims["purpose"]
	return !scoped
}

// GetUserIDFromClaims accepts the numeric forms a decoded claim can take.
func GetUserIDFromClaims(claims map[string]interface{}) (int64, error) {
	switch v := claims["user_id"].(type) {
	case float64:
		return int64(v), nil
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	default:
		return 0, errors.New("user_id claim is missing or not a number")
	}
}
