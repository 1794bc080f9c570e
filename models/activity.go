package models

import "time"

// ActivityType categorizes entries in a profile's activity log.
type ActivityType string

const (
	ActivityContentView     ActivityType = "content_view"
	ActivityContentRequest  ActivityType = "content_request"
	ActivityRequestApproved ActivityType = "request_approved"
	ActivityRequestDenied   ActivityType = "request_denied"
	ActivityContentBlocked  ActivityType = "content_blocked"
	ActivityLimitExceeded   ActivityType = "limit_exceeded"
	ActivityProfileToggled  ActivityType = "profile_toggled"
)

// ProfileActivity is one entry in the parental dashboard's activity feed.
type ProfileActivity struct {
	ID          string       `json:"id"`
	ProfileID   string       `json:"profileId"`
	Type        ActivityType `json:"activity_type"`
	ContentType MediaType    `json:"content_type,omitempty"`
	ContentID   int64        `json:"content_id,omitempty"`
	Description string       `json:"description,omitempty"`
	Timestamp   time.Time    `json:"timestamp"`
}
