package middleware

import (
	"context"
	"net/http"
	"strings"

	goAccounts "github.com/MrEthical07/goAccounts"
)

// Authenticator verifies a bearer session token. *goAccounts.Engine implements it.
type Authenticator interface {
	Authenticate(ctx context.Context, sessionToken string) (string, error)
}

// Guard rejects requests without a valid bearer session token with 401 and otherwise
// attaches the caller id via goAccounts.WithCurrentUserID.
func Guard(auth Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, ok := authenticate(r, auth)
			if !ok {
				unauthorized(w)
				return
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Optional attaches the caller id when a valid bearer token is present and passes the
// request through unchanged otherwise. An invalid token is treated like no token.
func Optional(auth Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if ctx, ok := authenticate(r, auth); ok {
				r = r.WithContext(ctx)
			}
			next.ServeHTTP(w, r)
		})
	}
}

func authenticate(r *http.Request, auth Authenticator) (context.Context, bool) {
	if auth == nil {
		return nil, false
	}

	token, ok := bearerToken(r.Header.Get("Authorization"))
	if !ok {
		return nil, false
	}

	userID, err := auth.Authenticate(r.Context(), token)
	if err != nil || userID == "" {
		return nil, false
	}

	return goAccounts.WithCurrentUserID(r.Context(), userID), true
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="goaccounts"`)
	http.Error(w, goAccounts.ErrUnauthenticated.Error(), http.StatusUnauthorized)
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if len(value) < len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}
