package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/mealkart/cartsync-backend/api/responses"
	"github.com/mealkart/cartsync-backend/pkg/auth"
	"github.com/mealkart/cartsync-backend/pkg/config"
	pkgerrors "github.com/mealkart/cartsync-backend/pkg/errors"
	"github.com/mealkart/cartsync-backend/pkg/logger"
)

const (
	guestSessionHeader = "X-Guest-Session"
	guestSessionCookie = "mk_guest_session"
)

type sessionCtxKey struct{}

// SessionFromContext returns the session resolved by the Session middleware.
func SessionFromContext(ctx context.Context) auth.Session {
	if session, ok := ctx.Value(sessionCtxKey{}).(auth.Session); ok {
		return session
	}
	return auth.Session{}
}

// Session resolves the caller: a valid bearer token makes the session
// authenticated, otherwise the guest id comes from the header or cookie (a
// fresh one is minted and set when absent). A malformed bearer token is
// rejected rather than silently downgraded to guest.
func Session(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session := auth.Session{ID: guestID(w, r)}

			if header := strings.TrimSpace(r.Header.Get("Authorization")); header != "" {
				token := strings.TrimPrefix(header, "Bearer ")
				claims, err := auth.ParseAccessToken(cfg, token)
				if err != nil {
					responses.WriteError(r.Context(), logg, w,
						pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid access token"))
					return
				}
				session.UserID = claims.UserID
				session.Token = token
			}

			ctx := context.WithValue(r.Context(), sessionCtxKey{}, session)
			if logg != nil {
				ctx = logg.WithSessionID(ctx, session.Key())
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func guestID(w http.ResponseWriter, r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get(guestSessionHeader)); id != "" {
		return id
	}
	if cookie, err := r.Cookie(guestSessionCookie); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     guestSessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}
