package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"ashram.org/internal/account"
	"ashram.org/internal/profile"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

type actorContextKey struct{}

// protected wraps a handler behind the route guard. The guard re-runs on
// every request; no allow decision is cached server-side.
func (a *API) protected(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next(w, r)
			return
		}
		token, err := extractBearerToken(r.Header.Get(authHeader))
		if err != nil {
			token = ""
		}
		decision := a.guard.Authorize(r.Context(), token, true)
		if !decision.Allow {
			payload := map[string]any{
				"error":       "unauthorized",
				"redirect_to": decision.RedirectTo,
			}
			writeJSON(w, http.StatusUnauthorized, payload)
			return
		}
		ctx := account.ContextWithSession(r.Context(), decision.Session)
		if decision.Profile != nil {
			ctx = context.WithValue(ctx, actorContextKey{}, decision.Profile)
		}
		next(w, r.WithContext(ctx))
	}
}

// actorFromContext returns the guard-resolved profile of the caller.
func actorFromContext(ctx context.Context) *profile.Profile {
	if ctx == nil {
		return nil
	}
	v, _ := ctx.Value(actorContextKey{}).(*profile.Profile)
	return v
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}
