package access

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"suggesterr/internal/database"
	"suggesterr/models"
	"suggesterr/services/tmdb"
)

// Decision reasons surfaced to clients.
const (
	ReasonAllowed         = "allowed"
	ReasonContentNotFound = "content_not_found"
	ReasonProfileInactive = "profile_inactive"
	ReasonTimeRestricted  = "time_restricted"
	ReasonBlocked         = "blocked"
	ReasonParentApproved  = "parent_approved"
	ReasonRatingExceeded  = "rating_exceeded"
)

// Decision is the outcome of an access check. A denial is a normal outcome,
// not an error.
type Decision struct {
	AccessGranted bool   `json:"access_granted"`
	Reason        string `json:"reason"`
	Message       string `json:"message,omitempty"`
	CanRequest    bool   `json:"can_request"`
}

// ProfileSource provides profiles and their limits to the access checker.
type ProfileSource interface {
	Profile(id string) (*models.FamilyProfile, error)
	Limits(profileID string) (models.ProfileLimits, error)
}

// Service answers "may this profile watch this title right now".
type Service struct {
	profiles ProfileSource
	store    *database.AccessRepository
	activity *database.ActivityRepository
	tmdb     *tmdb.Service
	now      func() time.Time
}

// NewService creates the access service.
func NewService(profiles ProfileSource, store *database.AccessRepository, activity *database.ActivityRepository, tmdbService *tmdb.Service) *Service {
	return &Service{
		profiles: profiles,
		store:    store,
		activity: activity,
		tmdb:     tmdbService,
		now:      time.Now,
	}
}

// SetClock overrides the wall clock. Used in tests.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// CheckAccess runs the decision chain for one title. The checks run in a
// fixed order; the first one that fires decides. A nil profileID (empty
// string) means an unrestricted viewer and is always granted.
func (s *Service) CheckAccess(ctx context.Context, profileID string, contentType models.MediaType, contentID int64) (Decision, error) {
	if profileID == "" {
		return Decision{AccessGranted: true, Reason: ReasonAllowed}, nil
	}

	profile, err := s.profiles.Profile(profileID)
	if err != nil {
		return Decision{}, fmt.Errorf("load profile: %w", err)
	}
	if profile == nil {
		return Decision{}, fmt.Errorf("profile %s not found", profileID)
	}

	item, err := s.tmdb.Details(ctx, contentType, contentID)
	if errors.Is(err, tmdb.ErrNotFound) {
		return Decision{Reason: ReasonContentNotFound, Message: "Content not found."}, nil
	}
	if err != nil {
		return Decision{}, err
	}

	if !profile.Active {
		return Decision{Reason: ReasonProfileInactive, Message: "This profile is currently disabled."}, nil
	}

	if restricted, message := s.timeRestricted(profile.ID); restricted {
		s.logActivity(profile.ID, models.ActivityLimitExceeded, contentType, contentID, message)
		return Decision{Reason: ReasonTimeRestricted, Message: message}, nil
	}

	blocked, err := s.store.IsBlocked(profile.ID, contentType, contentID)
	if err != nil {
		return Decision{}, err
	}
	if blocked {
		s.logActivity(profile.ID, models.ActivityContentBlocked, contentType, contentID, item.Title)
		return Decision{Reason: ReasonBlocked, Message: "This title has been blocked by a parent."}, nil
	}

	approval, err := s.store.GetApproval(profile.ID, contentType, contentID)
	if err != nil {
		return Decision{}, err
	}
	if approval != nil && !approval.Expired(s.now()) {
		s.logView(profile.ID, contentType, contentID, item.Title)
		return Decision{AccessGranted: true, Reason: ReasonParentApproved}, nil
	}

	if !IsAppropriate(item.Certification, contentType, profile) {
		return Decision{
			Reason:     ReasonRatingExceeded,
			Message:    fmt.Sprintf("%s is rated %s, above this profile's limit.", item.Title, item.Certification),
			CanRequest: true,
		}, nil
	}

	s.logView(profile.ID, contentType, contentID, item.Title)
	return Decision{AccessGranted: true, Reason: ReasonAllowed}, nil
}

// timeRestricted reports whether the profile's viewing hours forbid watching
// right now. The bedtime window wraps midnight: bedtime 21 / wakeup 7 blocks
// 21:00-06:59.
func (s *Service) timeRestricted(profileID string) (bool, string) {
	limits, err := s.profiles.Limits(profileID)
	if err != nil {
		log.Printf("[access] limits lookup failed for %s: %v", profileID, err)
		return false, ""
	}
	if limits.BedtimeHour == limits.WakeupHour {
		// Degenerate window; no restriction.
		return false, ""
	}

	now := s.now()
	bedtime := limits.BedtimeHour
	if limits.WeekendExtended && isWeekend(now) {
		bedtime = limits.WeekendBedtimeHour
	}

	hour := now.Hour()
	var restricted bool
	if bedtime > limits.WakeupHour {
		// Window wraps midnight.
		restricted = hour >= bedtime || hour < limits.WakeupHour
	} else {
		restricted = hour >= bedtime && hour < limits.WakeupHour
	}
	if !restricted {
		return false, ""
	}
	return true, fmt.Sprintf("Viewing is paused between %d:00 and %d:00.", bedtime, limits.WakeupHour)
}

func isWeekend(now time.Time) bool {
	day := now.Weekday()
	return day == time.Saturday || day == time.Sunday
}

// Block records an explicit block on a title for a profile.
func (s *Service) Block(profileID string, contentType models.MediaType, contentID int64, reason string) error {
	block := &models.ContentBlock{
		ID:          uuid.NewString(),
		ProfileID:   profileID,
		ContentType: contentType,
		ContentID:   contentID,
		Reason:      reason,
		CreatedAt:   s.now().UTC(),
	}
	return s.store.InsertBlock(block)
}

// Unblock removes an explicit block; removing a missing block is a no-op.
func (s *Service) Unblock(profileID string, contentType models.MediaType, contentID int64) error {
	_, err := s.store.DeleteBlock(profileID, contentType, contentID)
	return err
}

// Blocks lists a profile's explicit blocks.
func (s *Service) Blocks(profileID string) ([]models.ContentBlock, error) {
	return s.store.ListBlocks(profileID)
}

// Approve grants a profile access to one title. A nil expiresAt means
// permanent access.
func (s *Service) Approve(profileID string, contentType models.MediaType, contentID int64, approvedBy, reason string, expiresAt *time.Time) error {
	approval := &models.ApprovedContent{
		ID:          uuid.NewString(),
		ProfileID:   profileID,
		ContentType: contentType,
		ContentID:   contentID,
		ApprovedBy:  approvedBy,
		Reason:      reason,
		Permanent:   expiresAt == nil,
		ExpiresAt:   expiresAt,
		CreatedAt:   s.now().UTC(),
	}
	return s.store.UpsertApproval(approval)
}

func (s *Service) logView(profileID string, contentType models.MediaType, contentID int64, title string) {
	s.logActivity(profileID, models.ActivityContentView, contentType, contentID, title)
}

// logActivity is best-effort; a full activity table never blocks viewing.
func (s *Service) logActivity(profileID string, activityType models.ActivityType, contentType models.MediaType, contentID int64, description string) {
	if s.activity == nil {
		return
	}
	entry := &models.ProfileActivity{
		ID:          uuid.NewString(),
		ProfileID:   profileID,
		Type:        activityType,
		ContentType: contentType,
		ContentID:   contentID,
		Description: description,
		Timestamp:   s.now().UTC(),
	}
	if err := s.activity.Insert(entry); err != nil {
		log.Printf("[access] failed to record activity: %v", err)
	}
}
