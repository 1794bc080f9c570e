package models

import "time"

// RequestStatus is the lifecycle state of a content request.
type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestApproved RequestStatus = "approved"
	RequestDenied   RequestStatus = "denied"
)

// ContentRequest is a restricted profile's ask to view or acquire a title.
// Exactly one of MovieID/TVShowID is set. Requests are never deleted; once
// resolved they simply drop out of pending views.
type ContentRequest struct {
	ID          string        `json:"id"`
	ProfileID   string        `json:"profileId"`
	MovieID     *int64        `json:"movie,omitempty"`
	TVShowID    *int64        `json:"tv_show,omitempty"`
	Title       string        `json:"content_title"`
	Message     string        `json:"request_message,omitempty"`
	Status      RequestStatus `json:"status"`
	Response    string        `json:"parent_response,omitempty"`
	ReviewedBy  string        `json:"reviewed_by,omitempty"`
	ReviewedAt  *time.Time    `json:"reviewed_at,omitempty"`
	Temporary   bool          `json:"temporary_access"`
	AccessUntil *time.Time    `json:"access_expires_at,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// ContentType returns the media type of the request target.
func (r ContentRequest) ContentType() MediaType {
	if r.MovieID != nil {
		return MediaTypeMovie
	}
	return MediaTypeTV
}

// ContentID returns the identifier of the request target.
func (r ContentRequest) ContentID() int64 {
	if r.MovieID != nil {
		return *r.MovieID
	}
	if r.TVShowID != nil {
		return *r.TVShowID
	}
	return 0
}
