package httpapi

import (
	"errors"
	"net/http"

	"ashram.org/internal/account"
	"ashram.org/internal/audit"
	"ashram.org/internal/bootstrap"
)

type createTempUserRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type createAdminRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// handleSetupTempUser is the one-time setup path: it needs no session
// because it exists to bootstrap the very first administrator.
func (a *API) handleSetupTempUser(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req createTempUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	p, err := a.flow.CreateTempUser(r.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		handleBootstrapError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "setup.temp_user.created", map[string]any{
		"account_id": p.AccountID,
		"expires_at": p.ExpiresAt,
	})
	writeJSON(w, http.StatusCreated, p)
}

func (a *API) handleTempProfile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	sess, _ := account.SessionFromContext(r.Context())
	p := a.flow.TempUserProfile(r.Context(), sess.AccountID)
	if p == nil {
		writeError(w, r, http.StatusNotFound, "no temporary user profile found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"profile": p,
		"expired": a.flow.CheckTempUserExpiry(r.Context(), sess.AccountID),
	})
}

func (a *API) handleTempCreateAdmin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req createAdminRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	sess, _ := account.SessionFromContext(r.Context())
	adminID, err := a.flow.CreateAdminFromTempUser(r.Context(), sess.AccountID, req.Email, req.Password, req.Name)
	if err != nil {
		handleBootstrapError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "bootstrap.admin.created", map[string]any{
		"admin_account_id": adminID,
		"temp_account_id":  sess.AccountID,
	})
	writeJSON(w, http.StatusCreated, map[string]any{
		"account_id": adminID,
		"email":      req.Email,
	})
}

func handleBootstrapError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, bootstrap.ErrInvalidInput), errors.Is(err, account.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, bootstrap.ErrNoProfile):
		writeError(w, r, http.StatusForbidden, err.Error())
	case errors.Is(err, bootstrap.ErrExpired):
		writeError(w, r, http.StatusForbidden, err.Error())
	case errors.Is(err, bootstrap.ErrAlreadyUsed):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, account.ErrConflict):
		writeError(w, r, http.StatusConflict, err.Error())
	default:
		writeError(w, r, http.StatusInternalServerError, "bootstrap operation failed")
	}
}
