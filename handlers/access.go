package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"suggesterr/internal/auth"
	"suggesterr/models"
	"suggesterr/services/access"
	"suggesterr/services/requests"
)

// AccessHandler serves the viewer-side access surface: the pre-navigation
// access check and the "ask a parent" request flow.
type AccessHandler struct {
	access   *access.Service
	requests *requests.Service
}

// NewAccessHandler creates a new access handler.
func NewAccessHandler(accessSvc *access.Service, requestsSvc *requests.Service) *AccessHandler {
	return &AccessHandler{access: accessSvc, requests: requestsSvc}
}

// CheckAccess serves GET /accounts/content-access-check/?content_type=&content_id=.
// It always answers 200 for a resolvable title; a denial is a decision with
// access_granted false, not an HTTP error.
func (h *AccessHandler) CheckAccess(w http.ResponseWriter, r *http.Request) {
	contentType := models.MediaType(r.URL.Query().Get("content_type"))
	if !contentType.Valid() {
		writeError(w, http.StatusBadRequest, "content_type must be 'movie' or 'tv'")
		return
	}
	contentID, err := strconv.ParseInt(r.URL.Query().Get("content_id"), 10, 64)
	if err != nil || contentID <= 0 {
		writeError(w, http.StatusBadRequest, "content_id must be a positive integer")
		return
	}

	decision, err := h.access.CheckAccess(r.Context(), auth.GetProfileID(r), contentType, contentID)
	if err != nil {
		log.Printf("[handlers] access check %s/%d: %v", contentType, contentID, err)
		writeError(w, http.StatusInternalServerError, "access check failed")
		return
	}

	writeJSON(w, http.StatusOK, decision)
}

// AccessRequestBody is the body for POST /accounts/request-content-access/.
type AccessRequestBody struct {
	ContentType models.MediaType `json:"content_type"`
	ContentID   int64            `json:"content_id"`
	Title       string           `json:"title"`
	Message     string           `json:"message,omitempty"`
}

// RequestAccess serves POST /accounts/request-content-access/. The request is
// filed against the session's active profile.
func (h *AccessHandler) RequestAccess(w http.ResponseWriter, r *http.Request) {
	profileID := auth.GetProfileID(r)
	if profileID == "" {
		writeError(w, http.StatusBadRequest, "no active profile on this session")
		return
	}

	var body AccessRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	input := requests.CreateInput{Title: body.Title, Message: body.Message}
	switch body.ContentType {
	case models.MediaTypeMovie:
		input.MovieID = &body.ContentID
	case models.MediaTypeTV:
		input.TVShowID = &body.ContentID
	default:
		writeError(w, http.StatusBadRequest, "content_type must be 'movie' or 'tv'")
		return
	}

	created, err := h.requests.Create(profileID, input)
	if err != nil {
		switch {
		case errors.Is(err, requests.ErrDuplicateRequest):
			writeError(w, http.StatusConflict, err.Error())
		case errors.Is(err, requests.ErrTargetRequired),
			errors.Is(err, requests.ErrLimitExceeded):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			log.Printf("[handlers] create access request: %v", err)
			writeError(w, http.StatusInternalServerError, "failed to create request")
		}
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"success":    true,
		"request_id": created.ID,
	})
}

// MyRequests serves GET /accounts/my-content-requests/ for the active profile.
func (h *AccessHandler) MyRequests(w http.ResponseWriter, r *http.Request) {
	profileID := auth.GetProfileID(r)
	if profileID == "" {
		writeJSON(w, http.StatusOK, map[string]any{"requests": []models.ContentRequest{}})
		return
	}

	list, err := h.requests.ListByProfile(profileID)
	if err != nil {
		log.Printf("[handlers] list my requests: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list requests")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"requests": list})
}
