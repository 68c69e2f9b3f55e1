package httpapi

import (
	"errors"
	"net/http"

	"ashram.org/internal/account"
	"ashram.org/internal/audit"
	"ashram.org/internal/bootstrap"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	sess, err := a.accounts.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, http.StatusUnauthorized, "invalid credentials")
		return
	}
	_ = audit.LogEvent(r.Context(), "auth.login", map[string]any{
		"account_id": sess.AccountID,
	})
	writeJSON(w, http.StatusOK, sess)
}

// handleTempLogin is the general-audience entry point for temporary
// users; an expired temp user is signed back out and rejected.
func (a *API) handleTempLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	sess, err := a.flow.SignInTempUser(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, bootstrap.ErrExpired) {
			writeError(w, r, http.StatusForbidden, "temporary user has expired")
			return
		}
		writeError(w, r, http.StatusUnauthorized, "invalid credentials")
		return
	}
	_ = audit.LogEvent(r.Context(), "auth.temp_login", map[string]any{
		"account_id": sess.AccountID,
	})
	writeJSON(w, http.StatusOK, sess)
}

func (a *API) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req refreshRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	sess, err := a.accounts.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		writeError(w, r, http.StatusUnauthorized, "invalid refresh token")
		return
	}
	_ = audit.LogEvent(r.Context(), "auth.refresh", map[string]any{
		"account_id": sess.AccountID,
	})
	writeJSON(w, http.StatusOK, sess)
}

// handleLogout always succeeds: an unusable token still yields 200 so the
// client can drop its local state.
func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if token, err := extractBearerToken(r.Header.Get(authHeader)); err == nil {
		if sess, err := a.accounts.GetSession(r.Context(), token); err == nil {
			a.accounts.SignOut(r.Context(), sess.AccountID)
			ctx := account.ContextWithSession(r.Context(), sess)
			_ = audit.LogEvent(ctx, "auth.logout", nil)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "signed_out"})
}

func (a *API) handleSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	token, err := extractBearerToken(r.Header.Get(authHeader))
	if err != nil {
		writeError(w, r, http.StatusUnauthorized, err.Error())
		return
	}
	sess, err := a.accounts.GetSession(r.Context(), token)
	if err != nil {
		writeError(w, r, http.StatusUnauthorized, "invalid token")
		return
	}
	writeJSON(w, http.StatusOK, sess)
}
