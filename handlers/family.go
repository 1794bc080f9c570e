package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"suggesterr/internal/auth"
	"suggesterr/models"
	"suggesterr/services/access"
	"suggesterr/services/families"
	"suggesterr/services/requests"
	"suggesterr/services/sessions"
)

// FamilyHandler serves the parental-control surface: profile management,
// content-request moderation, blocks, limits and the dashboard.
type FamilyHandler struct {
	families *families.Service
	requests *requests.Service
	access   *access.Service
	sessions *sessions.Service
}

// NewFamilyHandler creates a new family handler.
func NewFamilyHandler(familiesSvc *families.Service, requestsSvc *requests.Service, accessSvc *access.Service, sessionsSvc *sessions.Service) *FamilyHandler {
	return &FamilyHandler{
		families: familiesSvc,
		requests: requestsSvc,
		access:   accessSvc,
		sessions: sessionsSvc,
	}
}

// writeFamilyError maps families service errors to HTTP responses.
func writeFamilyError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, families.ErrProfileNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, families.ErrProfileLimit),
		errors.Is(err, families.ErrNameRequired),
		errors.Is(err, families.ErrNameTaken),
		errors.Is(err, families.ErrInvalidAge),
		errors.Is(err, families.ErrInvalidRating):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		log.Printf("[handlers] family error: %v", err)
		writeError(w, http.StatusInternalServerError, "family operation failed")
	}
}

// ListProfiles serves GET /accounts/api/family/profiles/.
func (h *FamilyHandler) ListProfiles(w http.ResponseWriter, r *http.Request) {
	profiles := h.families.ListByParent(auth.GetAccountID(r))
	writeJSON(w, http.StatusOK, map[string]any{"profiles": profiles})
}

// CreateProfile serves POST /accounts/api/family/profiles/.
func (h *FamilyHandler) CreateProfile(w http.ResponseWriter, r *http.Request) {
	var input families.ProfileInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	profile, err := h.families.Create(auth.GetAccountID(r), input)
	if err != nil {
		writeFamilyError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, profile)
}

// GetProfile serves GET /accounts/api/family/profiles/{profileID}/.
func (h *FamilyHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := h.families.Profile(muxVar(r, "profileID"))
	if err != nil {
		writeFamilyError(w, err)
		return
	}
	if profile == nil {
		writeError(w, http.StatusNotFound, "profile not found")
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// UpdateProfile serves PUT /accounts/api/family/profiles/{profileID}/.
func (h *FamilyHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var input families.ProfileInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	profile, err := h.families.Update(muxVar(r, "profileID"), input)
	if err != nil {
		writeFamilyError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, profile)
}

// DeleteProfile serves DELETE /accounts/api/family/profiles/{profileID}/.
func (h *FamilyHandler) DeleteProfile(w http.ResponseWriter, r *http.Request) {
	profileID := muxVar(r, "profileID")

	if err := h.families.Delete(profileID); err != nil {
		writeFamilyError(w, err)
		return
	}

	// Any session still browsing as this profile falls back to the parent
	h.sessions.ClearProfileEverywhere(profileID)

	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// ToggleActive serves POST /accounts/api/family/profiles/{profileID}/toggle_active/.
func (h *FamilyHandler) ToggleActive(w http.ResponseWriter, r *http.Request) {
	profileID := muxVar(r, "profileID")

	active, err := h.families.ToggleActive(profileID)
	if err != nil {
		writeFamilyError(w, err)
		return
	}

	if !active {
		h.sessions.ClearProfileEverywhere(profileID)
	}

	writeJSON(w, http.StatusOK, map[string]any{"is_active": active})
}

// GetLimits serves GET /accounts/api/family/profiles/{profileID}/limits/.
func (h *FamilyHandler) GetLimits(w http.ResponseWriter, r *http.Request) {
	limits, err := h.families.Limits(muxVar(r, "profileID"))
	if err != nil {
		writeFamilyError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, limits)
}

// UpdateLimits serves PUT /accounts/api/family/profiles/{profileID}/limits/.
func (h *FamilyHandler) UpdateLimits(w http.ResponseWriter, r *http.Request) {
	profileID := muxVar(r, "profileID")

	var limits models.ProfileLimits
	if err := json.NewDecoder(r.Body).Decode(&limits); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.families.UpdateLimits(profileID, limits); err != nil {
		writeFamilyError(w, err)
		return
	}

	updated, err := h.families.Limits(profileID)
	if err != nil {
		writeFamilyError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// PendingRequests serves GET /accounts/api/family/content-requests/pending/.
func (h *FamilyHandler) PendingRequests(w http.ResponseWriter, r *http.Request) {
	pending, err := h.requests.Pending(auth.GetAccountID(r))
	if err != nil {
		log.Printf("[handlers] pending requests: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list pending requests")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"pending_requests": pending, "count": len(pending)})
}

// ownsRequest reports whether the request id is pending under one of the
// parent's profiles. Master accounts own everything.
func (h *FamilyHandler) ownsRequest(r *http.Request, requestID string) bool {
	if auth.IsMaster(r) {
		return true
	}
	pending, err := h.requests.Pending(auth.GetAccountID(r))
	if err != nil {
		return false
	}
	for _, req := range pending {
		if req.ID == requestID {
			return true
		}
	}
	return false
}

// ModerationBody is the body for approve/deny endpoints.
type ModerationBody struct {
	Response   string     `json:"parent_response"`
	Temporary  bool       `json:"temporary_access"`
	ExpiresAt  *time.Time `json:"access_expires_at"`
	RequestIDs []string   `json:"request_ids"` // bulk variants only
}

// writeRequestError maps requests service errors to HTTP responses.
func writeRequestError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, requests.ErrRequestNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, requests.ErrAlreadyResolved),
		errors.Is(err, requests.ErrExpiryRequired),
		errors.Is(err, requests.ErrExpiryInPast),
		errors.Is(err, requests.ErrTargetRequired),
		errors.Is(err, requests.ErrDuplicateRequest),
		errors.Is(err, requests.ErrLimitExceeded):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		log.Printf("[handlers] request moderation: %v", err)
		writeError(w, http.StatusInternalServerError, "request operation failed")
	}
}

// ApproveRequest serves POST /accounts/api/family/content-requests/{requestID}/approve/.
func (h *FamilyHandler) ApproveRequest(w http.ResponseWriter, r *http.Request) {
	requestID := muxVar(r, "requestID")

	var body ModerationBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if !h.ownsRequest(r, requestID) {
		writeError(w, http.StatusNotFound, "request not found")
		return
	}

	approved, err := h.requests.Approve(requestID, auth.GetAccountID(r), body.Response, body.Temporary, body.ExpiresAt)
	if err != nil {
		writeRequestError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, approved)
}

// DenyRequest serves POST /accounts/api/family/content-requests/{requestID}/deny/.
func (h *FamilyHandler) DenyRequest(w http.ResponseWriter, r *http.Request) {
	requestID := muxVar(r, "requestID")

	var body ModerationBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if !h.ownsRequest(r, requestID) {
		writeError(w, http.StatusNotFound, "request not found")
		return
	}

	denied, err := h.requests.Deny(requestID, auth.GetAccountID(r), body.Response)
	if err != nil {
		writeRequestError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, denied)
}

// ownedIDs filters the submitted ids down to requests the caller moderates.
func (h *FamilyHandler) ownedIDs(r *http.Request, ids []string) []string {
	if auth.IsMaster(r) {
		return ids
	}
	pending, err := h.requests.Pending(auth.GetAccountID(r))
	if err != nil {
		return nil
	}
	owned := make(map[string]bool, len(pending))
	for _, req := range pending {
		owned[req.ID] = true
	}
	filtered := make([]string, 0, len(ids))
	for _, id := range ids {
		if owned[id] {
			filtered = append(filtered, id)
		}
	}
	return filtered
}

// BulkApprove serves POST /accounts/api/family/content-requests/bulk_approve/.
func (h *FamilyHandler) BulkApprove(w http.ResponseWriter, r *http.Request) {
	var body ModerationBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(body.RequestIDs) == 0 {
		writeError(w, http.StatusBadRequest, "request_ids is required")
		return
	}

	ids := h.ownedIDs(r, body.RequestIDs)
	result := h.requests.BulkApprove(ids, auth.GetAccountID(r), body.Response, body.Temporary, body.ExpiresAt)
	result.Failed += len(body.RequestIDs) - len(ids)

	writeJSON(w, http.StatusOK, result)
}

// BulkDeny serves POST /accounts/api/family/content-requests/bulk_deny/.
func (h *FamilyHandler) BulkDeny(w http.ResponseWriter, r *http.Request) {
	var body ModerationBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(body.RequestIDs) == 0 {
		writeError(w, http.StatusBadRequest, "request_ids is required")
		return
	}

	ids := h.ownedIDs(r, body.RequestIDs)
	result := h.requests.BulkDeny(ids, auth.GetAccountID(r), body.Response)
	result.Failed += len(body.RequestIDs) - len(ids)

	writeJSON(w, http.StatusOK, result)
}

// Dashboard serves GET /accounts/api/family/dashboard/.
func (h *FamilyHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	dashboard, err := h.requests.DashboardFor(auth.GetAccountID(r))
	if err != nil {
		log.Printf("[handlers] dashboard: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to build dashboard")
		return
	}
	writeJSON(w, http.StatusOK, dashboard)
}

// BlockBody is the body for block/unblock endpoints.
type BlockBody struct {
	ContentType models.MediaType `json:"content_type"`
	ContentID   int64            `json:"content_id"`
	Reason      string           `json:"reason,omitempty"`
}

// ListBlocks serves GET /accounts/api/family/profiles/{profileID}/blocks/.
func (h *FamilyHandler) ListBlocks(w http.ResponseWriter, r *http.Request) {
	blocks, err := h.access.Blocks(muxVar(r, "profileID"))
	if err != nil {
		log.Printf("[handlers] list blocks: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list blocks")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"blocks": blocks})
}

// BlockContent serves POST /accounts/api/family/profiles/{profileID}/blocks/.
func (h *FamilyHandler) BlockContent(w http.ResponseWriter, r *http.Request) {
	var body BlockBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !body.ContentType.Valid() || body.ContentID <= 0 {
		writeError(w, http.StatusBadRequest, "content_type and content_id are required")
		return
	}

	if err := h.access.Block(muxVar(r, "profileID"), body.ContentType, body.ContentID, body.Reason); err != nil {
		log.Printf("[handlers] block content: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to block content")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"status": "blocked"})
}

// UnblockContent serves DELETE /accounts/api/family/profiles/{profileID}/blocks/.
func (h *FamilyHandler) UnblockContent(w http.ResponseWriter, r *http.Request) {
	var body BlockBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.access.Unblock(muxVar(r, "profileID"), body.ContentType, body.ContentID); err != nil {
		log.Printf("[handlers] unblock content: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to unblock content")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "unblocked"})
}
