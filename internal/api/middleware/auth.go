package middleware

import (
	"context"
	"errors"
	"net/http"

	"ctf_zone/internal/app/policy"
	"ctf_zone/internal/common"
	"ctf_zone/internal/common/security"
	"ctf_zone/internal/domain/model"
	"ctf_zone/internal/domain/repository"

	"github.com/go-chi/jwtauth/v5"
	log "github.com/sirupsen/logrus"
)

type contextKey string

const ActorCtxKey contextKey = "actor"

// Identify resolves the bearer token left by jwtauth.Verifier to a user
// and stores it in the request context. Requests without a usable token,
// or whose user is gone, banned or unverified, continue anonymously.
// Confirm and reset tokens never identify a session.
func Identify(users repository.UserRepository) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, claims, err := jwtauth.FromContext(r.Context())
			if err != nil || token == nil || !security.IsSessionClaims(claims) {
				next.ServeHTTP(w, r)
				return
			}

			userID, err := security.GetUserIDFromClaims(claims)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}
			user, err := users.FindByID(r.Context(), userID)
			if err != nil {
				if !errors.Is(err, common.ErrNotFound) {
					log.WithError(err).WithField("user_id", userID).Error("failed to load session user")
				}
				next.ServeHTTP(w, r)
				return
			}
			if policy.CanAuthenticate(user) != nil {
				next.ServeHTTP(w, r)
				return
			}

			user.HashedPassword = ""
			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), user)))
		})
	}
}

func WithActor(ctx context.Context, user *model.User) context.Context {
	return context.WithValue(ctx, ActorCtxKey, user)
}

// ActorFromContext returns nil for anonymous requests.
func ActorFromContext(ctx context.Context) *model.User {
	user, _ := ctx.Value(ActorCtxKey).(*model.User)
	return user
}

func Authenticator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ActorFromContext(r.Context()) == nil {
			common.RespondWithError(w, http.StatusUnauthorized, "Authorization token required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func AdminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor := ActorFromContext(r.Context())
		if actor == nil {
			common.RespondWithError(w, http.StatusUnauthorized, "Authorization token required")
			return
		}
		if !actor.IsAdmin() {
			common.RespondWithError(w, http.StatusForbidden, "Admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
