package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"givingchain/internal/identity"
	"givingchain/pkg/requestcontext"
)

// SessionResumer exchanges a bearer token for an authenticated actor and its
// session ID.
type SessionResumer interface {
	ResumeSession(ctx context.Context, token string) (identity.Actor, string, error)
}

// Authenticate resolves the Authorization header into an actor on the
// context. Requests without a valid token proceed unauthenticated; each
// GraphQL operation decides for itself whether an actor is required, so an
// anonymous query like getTrackables still works.
func Authenticate(resumer SessionResumer, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const bearerPrefix = "Bearer "
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), bearerPrefix)
			if !ok || token == "" {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			actor, sessionID, err := resumer.ResumeSession(ctx, token)
			if err != nil {
				logger.WarnContext(ctx, "rejected bearer token",
					"error", err,
					"request_id", requestcontext.RequestID(ctx),
				)
				next.ServeHTTP(w, r)
				return
			}

			ctx = identity.WithActor(ctx, actor)
			ctx = requestcontext.WithSessionID(ctx, sessionID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
