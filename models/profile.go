package models

import "time"

// Movie and TV rating ceilings follow the standard ratings-board hierarchies.
const (
	DefaultMaxMovieRating = "G"
	DefaultMaxTVRating    = "TV-Y"

	// MaxProfilesPerParent limits how many family profiles a parent account
	// may create.
	MaxProfilesPerParent = 6
)

// FamilyProfile is a restricted viewing context under a parent account.
// The two rating ceilings gate what the profile may see and request.
type FamilyProfile struct {
	ID             string    `json:"id"`
	ParentID       string    `json:"parentId"`
	Name           string    `json:"profile_name"`
	Age            int       `json:"age"`
	MaxMovieRating string    `json:"max_movie_rating"`
	MaxTVRating    string    `json:"max_tv_rating"`
	Active         bool      `json:"is_active"`
	AvatarURL      string    `json:"avatar_url,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// RatingCeiling returns the profile's ceiling for the given media type.
func (p FamilyProfile) RatingCeiling(mediaType MediaType) string {
	if mediaType == MediaTypeMovie {
		return p.MaxMovieRating
	}
	return p.MaxTVRating
}

// ProfileLimits holds request quotas and viewing-hour restrictions for a
// profile. Hours use 24-hour local time.
type ProfileLimits struct {
	ProfileID           string    `json:"profileId"`
	DailyRequestLimit   int       `json:"daily_request_limit"`
	WeeklyRequestLimit  int       `json:"weekly_request_limit"`
	MonthlyRequestLimit int       `json:"monthly_request_limit"`
	BedtimeHour         int       `json:"bedtime_hour"`
	WakeupHour          int       `json:"wakeup_hour"`
	WeekendExtended     bool      `json:"weekend_extended_hours"`
	WeekendBedtimeHour  int       `json:"weekend_bedtime_hour"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// DefaultProfileLimits returns the limits assigned to a freshly created profile.
func DefaultProfileLimits(profileID string) ProfileLimits {
	return ProfileLimits{
		ProfileID:           profileID,
		DailyRequestLimit:   10,
		WeeklyRequestLimit:  50,
		MonthlyRequestLimit: 200,
		BedtimeHour:         21,
		WakeupHour:          7,
		WeekendExtended:     true,
		WeekendBedtimeHour:  23,
		UpdatedAt:           time.Now().UTC(),
	}
}

// ContentBlock is an explicit per-profile block on a specific title.
type ContentBlock struct {
	ID          string    `json:"id"`
	ProfileID   string    `json:"profileId"`
	ContentType MediaType `json:"content_type"`
	ContentID   int64     `json:"content_id"`
	Reason      string    `json:"reason,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// ApprovedContent records a parent's approval of a specific title for a
// profile, either permanently or until ExpiresAt.
type ApprovedContent struct {
	ID          string     `json:"id"`
	ProfileID   string     `json:"profileId"`
	ContentType MediaType  `json:"content_type"`
	ContentID   int64      `json:"content_id"`
	ApprovedBy  string     `json:"approved_by"`
	Reason      string     `json:"approval_reason,omitempty"`
	Permanent   bool       `json:"permanent_access"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Expired reports whether a temporary approval has lapsed.
func (a ApprovedContent) Expired(now time.Time) bool {
	if a.Permanent {
		return false
	}
	return a.ExpiresAt != nil && now.After(*a.ExpiresAt)
}
