package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"suggesterr/services/accounts"
	"suggesterr/services/sessions"
)

// AccountsHandler serves master-only parent account administration.
type AccountsHandler struct {
	accounts *accounts.Service
	sessions *sessions.Service
}

// NewAccountsHandler creates a new accounts handler.
func NewAccountsHandler(accountsSvc *accounts.Service, sessionsSvc *sessions.Service) *AccountsHandler {
	return &AccountsHandler{accounts: accountsSvc, sessions: sessionsSvc}
}

func writeAccountError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, accounts.ErrAccountNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, accounts.ErrUsernameExists):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, accounts.ErrUsernameRequired),
		errors.Is(err, accounts.ErrPasswordRequired):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, accounts.ErrCannotDeleteMaster),
		errors.Is(err, accounts.ErrCannotDeleteLastAcct):
		writeError(w, http.StatusForbidden, err.Error())
	default:
		log.Printf("[handlers] account error: %v", err)
		writeError(w, http.StatusInternalServerError, "account operation failed")
	}
}

// List serves GET /api/accounts/.
func (h *AccountsHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"accounts": h.accounts.List()})
}

// CreateAccountBody is the body for POST /api/accounts/.
type CreateAccountBody struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Create serves POST /api/accounts/.
func (h *AccountsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var body CreateAccountBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	account, err := h.accounts.Create(body.Username, body.Password)
	if err != nil {
		writeAccountError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, account)
}

// Delete serves DELETE /api/accounts/{accountID}/. All of the account's
// sessions are revoked on deletion.
func (h *AccountsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	accountID := muxVar(r, "accountID")

	if err := h.accounts.Delete(accountID); err != nil {
		writeAccountError(w, err)
		return
	}
	h.sessions.RevokeAllForAccount(accountID)

	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// RenameAccountBody is the body for PUT /api/accounts/{accountID}/rename/.
type RenameAccountBody struct {
	Username string `json:"username"`
}

// Rename serves PUT /api/accounts/{accountID}/rename/.
func (h *AccountsHandler) Rename(w http.ResponseWriter, r *http.Request) {
	accountID := muxVar(r, "accountID")

	var body RenameAccountBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.accounts.Rename(accountID, body.Username); err != nil {
		writeAccountError(w, err)
		return
	}

	account, _ := h.accounts.Get(accountID)
	writeJSON(w, http.StatusOK, account)
}
