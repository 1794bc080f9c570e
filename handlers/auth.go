package handlers

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"time"

	"suggesterr/internal/auth"
	"suggesterr/services/accounts"
	"suggesterr/services/families"
	"suggesterr/services/sessions"
)

const (
	// SessionCookieName carries the session token for browser clients.
	SessionCookieName = "suggesterr_session"
	// CSRFCookieName carries the double-submit CSRF token.
	CSRFCookieName = "suggesterr_csrf"
)

// AuthHandler handles authentication and profile-session endpoints.
type AuthHandler struct {
	accounts *accounts.Service
	sessions *sessions.Service
	families *families.Service
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(accountsSvc *accounts.Service, sessionsSvc *sessions.Service, familiesSvc *families.Service) *AuthHandler {
	return &AuthHandler{
		accounts: accountsSvc,
		sessions: sessionsSvc,
		families: familiesSvc,
	}
}

// LoginRequest represents the login request body.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse represents the login response.
type LoginResponse struct {
	Token     string `json:"token"`
	CSRFToken string `json:"csrfToken"`
	ExpiresAt string `json:"expiresAt"`
	AccountID string `json:"accountId"`
	Username  string `json:"username"`
	IsMaster  bool   `json:"isMaster"`
}

// AccountResponse represents account info response.
type AccountResponse struct {
	ID              string `json:"id"`
	Username        string `json:"username"`
	IsMaster        bool   `json:"isMaster"`
	ActiveProfileID string `json:"activeProfileId,omitempty"`
}

// Login authenticates a parent account and returns a session token. The
// token and a CSRF token are also set as cookies for browser clients.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	account, err := h.accounts.Authenticate(req.Username, req.Password)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid username or password")
		return
	}

	session, err := h.sessions.Create(account.ID, account.IsMaster, r.Header.Get("User-Agent"), getClientIPAddress(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create session")
		return
	}

	csrfToken, err := generateCSRFToken()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create session")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    session.Token,
		Path:     "/",
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	// Readable by scripts so clients can echo it in X-CSRFToken
	http.SetCookie(w, &http.Cookie{
		Name:     CSRFCookieName,
		Value:    csrfToken,
		Path:     "/",
		Expires:  session.ExpiresAt,
		SameSite: http.SameSiteLaxMode,
	})

	writeJSON(w, http.StatusOK, LoginResponse{
		Token:     session.Token,
		CSRFToken: csrfToken,
		ExpiresAt: session.ExpiresAt.UTC().Format(time.RFC3339),
		AccountID: account.ID,
		Username:  account.Username,
		IsMaster:  account.IsMaster,
	})
}

// Logout invalidates the current session.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token := sessionToken(r)
	if token == "" {
		writeError(w, http.StatusBadRequest, "no session token")
		return
	}

	if err := h.sessions.Revoke(token); err != nil {
		// Session not found is OK - might already be expired
		if err != sessions.ErrSessionNotFound {
			writeError(w, http.StatusInternalServerError, "failed to revoke session")
			return
		}
	}

	http.SetCookie(w, &http.Cookie{Name: SessionCookieName, Value: "", Path: "/", MaxAge: -1, HttpOnly: true})
	http.SetCookie(w, &http.Cookie{Name: CSRFCookieName, Value: "", Path: "/", MaxAge: -1})

	writeJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

// Me returns the current authenticated account info, including the active
// family profile if one is selected.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	accountID := auth.GetAccountID(r)
	account, ok := h.accounts.Get(accountID)
	if !ok {
		writeError(w, http.StatusNotFound, "account not found")
		return
	}

	writeJSON(w, http.StatusOK, AccountResponse{
		ID:              account.ID,
		Username:        account.Username,
		IsMaster:        account.IsMaster,
		ActiveProfileID: auth.GetProfileID(r),
	})
}

// Refresh extends the session expiration.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	token := sessionToken(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	session, err := h.sessions.Refresh(token)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid or expired session")
		return
	}

	account, ok := h.accounts.Get(session.AccountID)
	if !ok {
		writeError(w, http.StatusNotFound, "account not found")
		return
	}

	writeJSON(w, http.StatusOK, LoginResponse{
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt.UTC().Format(time.RFC3339),
		AccountID: account.ID,
		Username:  account.Username,
		IsMaster:  account.IsMaster,
	})
}

// ChangePasswordRequest represents password change request.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// ChangePassword changes the current account's password.
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	accountID := auth.GetAccountID(r)

	var req ChangePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	account, ok := h.accounts.Get(accountID)
	if !ok {
		writeError(w, http.StatusNotFound, "account not found")
		return
	}

	if _, err := h.accounts.Authenticate(account.Username, req.CurrentPassword); err != nil {
		writeError(w, http.StatusUnauthorized, "current password is incorrect")
		return
	}

	if err := h.accounts.UpdatePassword(accountID, req.NewPassword); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to update password")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "password changed"})
}

// SwitchProfile activates a family profile on the current session. All
// browsing and requesting after this call is scoped to the profile.
func (h *AuthHandler) SwitchProfile(w http.ResponseWriter, r *http.Request) {
	profileID := muxVar(r, "profileID")

	profile, err := h.families.Profile(profileID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load profile")
		return
	}
	if profile == nil {
		writeError(w, http.StatusNotFound, "profile not found")
		return
	}

	// Only the owning parent (or master) can assume a profile
	accountID := auth.GetAccountID(r)
	if !auth.IsMaster(r) && !h.families.OwnedBy(profileID, accountID) {
		writeError(w, http.StatusNotFound, "profile not found")
		return
	}

	if !profile.Active {
		writeError(w, http.StatusForbidden, "profile is deactivated")
		return
	}

	session, err := h.sessions.SwitchProfile(sessionToken(r), profileID)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid or expired session")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":            "profile switched",
		"active_profile_id": session.ActiveProfileID,
		"profile":           profile,
	})
}

// ClearProfile drops the active profile from the current session, returning
// it to unrestricted parent browsing.
func (h *AuthHandler) ClearProfile(w http.ResponseWriter, r *http.Request) {
	if _, err := h.sessions.ClearProfile(sessionToken(r)); err != nil {
		writeError(w, http.StatusUnauthorized, "invalid or expired session")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "profile cleared"})
}

func generateCSRFToken() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
