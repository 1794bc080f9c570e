package requests

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"

	"suggesterr/internal/database"
	"suggesterr/models"
)

var (
	ErrTargetRequired   = errors.New("exactly one of movie or tv show must be set")
	ErrRequestNotFound  = errors.New("request not found")
	ErrAlreadyResolved  = errors.New("request has already been resolved")
	ErrExpiryRequired   = errors.New("temporary access requires an expiry")
	ErrExpiryInPast     = errors.New("access expiry must be in the future")
	ErrDuplicateRequest = errors.New("a pending request for this title already exists")
	ErrLimitExceeded    = errors.New("request limit reached")
)

// bulkWorkers bounds concurrent resolutions in bulk approve/deny.
const bulkWorkers = 4

// ProfileDirectory supplies profile data to the request workflow.
type ProfileDirectory interface {
	Profile(id string) (*models.FamilyProfile, error)
	Limits(profileID string) (models.ProfileLimits, error)
	ProfileIDsForParent(parentID string) []string
}

// Granter records content approvals so access checks can honor them.
type Granter interface {
	Approve(profileID string, contentType models.MediaType, contentID int64, approvedBy, reason string, expiresAt *time.Time) error
}

// Service runs the content-request workflow between restricted profiles and
// their parents.
type Service struct {
	store    *database.RequestRepository
	activity *database.ActivityRepository
	profiles ProfileDirectory
	granter  Granter
	now      func() time.Time
}

// NewService creates the requests service.
func NewService(store *database.RequestRepository, activity *database.ActivityRepository, profiles ProfileDirectory, granter Granter) *Service {
	return &Service{
		store:    store,
		activity: activity,
		profiles: profiles,
		granter:  granter,
		now:      time.Now,
	}
}

// SetClock overrides the wall clock. Used in tests.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// CreateInput carries the requester-settable fields.
type CreateInput struct {
	MovieID  *int64 `json:"movie,omitempty"`
	TVShowID *int64 `json:"tv_show,omitempty"`
	Title    string `json:"content_title"`
	Message  string `json:"request_message"`
}

// Create files a request from a profile. Exactly one target must be set, the
// title must not already have a pending request from this profile, and the
// profile's daily/weekly/monthly quotas must allow it.
func (s *Service) Create(profileID string, input CreateInput) (models.ContentRequest, error) {
	if (input.MovieID == nil) == (input.TVShowID == nil) {
		return models.ContentRequest{}, ErrTargetRequired
	}

	profile, err := s.profiles.Profile(profileID)
	if err != nil {
		return models.ContentRequest{}, fmt.Errorf("load profile: %w", err)
	}
	if profile == nil {
		return models.ContentRequest{}, fmt.Errorf("profile %s not found", profileID)
	}

	now := s.now().UTC()
	request := models.ContentRequest{
		ID:        uuid.NewString(),
		ProfileID: profileID,
		MovieID:   input.MovieID,
		TVShowID:  input.TVShowID,
		Title:     input.Title,
		Message:   input.Message,
		Status:    models.RequestPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	exists, err := s.store.PendingExists(profileID, request.ContentType(), request.ContentID())
	if err != nil {
		return models.ContentRequest{}, err
	}
	if exists {
		return models.ContentRequest{}, ErrDuplicateRequest
	}

	if err := s.checkQuotas(profileID, now); err != nil {
		return models.ContentRequest{}, err
	}

	if err := s.store.Insert(&request); err != nil {
		return models.ContentRequest{}, err
	}

	s.logActivity(profileID, models.ActivityContentRequest, request.ContentType(), request.ContentID(), request.Title)
	return request, nil
}

func (s *Service) checkQuotas(profileID string, now time.Time) error {
	limits, err := s.profiles.Limits(profileID)
	if err != nil {
		return fmt.Errorf("load limits: %w", err)
	}

	windows := []struct {
		name  string
		since time.Time
		limit int
	}{
		{"daily", now.Add(-24 * time.Hour), limits.DailyRequestLimit},
		{"weekly", now.Add(-7 * 24 * time.Hour), limits.WeeklyRequestLimit},
		{"monthly", now.Add(-30 * 24 * time.Hour), limits.MonthlyRequestLimit},
	}
	for _, w := range windows {
		if w.limit <= 0 {
			continue
		}
		count, err := s.store.CountSince(profileID, w.since)
		if err != nil {
			return err
		}
		if count >= w.limit {
			s.logActivity(profileID, models.ActivityLimitExceeded, "", 0,
				fmt.Sprintf("%s request limit of %d reached", w.name, w.limit))
			return fmt.Errorf("%w: %s limit is %d", ErrLimitExceeded, w.name, w.limit)
		}
	}
	return nil
}

// Approve resolves a pending request in the requester's favor. When
// temporary, expiresAt is required and must be in the future; the check runs
// before any write.
func (s *Service) Approve(id, reviewer, response string, temporary bool, expiresAt *time.Time) (models.ContentRequest, error) {
	if temporary {
		if expiresAt == nil {
			return models.ContentRequest{}, ErrExpiryRequired
		}
		if !expiresAt.After(s.now()) {
			return models.ContentRequest{}, ErrExpiryInPast
		}
	} else {
		expiresAt = nil
	}

	request, err := s.pendingRequest(id)
	if err != nil {
		return models.ContentRequest{}, err
	}

	now := s.now().UTC()
	request.Status = models.RequestApproved
	request.Response = response
	request.ReviewedBy = reviewer
	request.ReviewedAt = &now
	request.Temporary = temporary
	request.AccessUntil = expiresAt
	request.UpdatedAt = now

	if err := s.store.Update(request); err != nil {
		return models.ContentRequest{}, err
	}

	if s.granter != nil {
		if err := s.granter.Approve(request.ProfileID, request.ContentType(), request.ContentID(), reviewer, response, expiresAt); err != nil {
			// The request record is already resolved; the approval grant
			// failing only affects the access check, so surface it.
			return models.ContentRequest{}, fmt.Errorf("record approval: %w", err)
		}
	}

	s.logActivity(request.ProfileID, models.ActivityRequestApproved, request.ContentType(), request.ContentID(), request.Title)
	return *request, nil
}

// Deny resolves a pending request against the requester.
func (s *Service) Deny(id, reviewer, response string) (models.ContentRequest, error) {
	request, err := s.pendingRequest(id)
	if err != nil {
		return models.ContentRequest{}, err
	}

	now := s.now().UTC()
	request.Status = models.RequestDenied
	request.Response = response
	request.ReviewedBy = reviewer
	request.ReviewedAt = &now
	request.UpdatedAt = now

	if err := s.store.Update(request); err != nil {
		return models.ContentRequest{}, err
	}

	s.logActivity(request.ProfileID, models.ActivityRequestDenied, request.ContentType(), request.ContentID(), request.Title)
	return *request, nil
}

func (s *Service) pendingRequest(id string) (*models.ContentRequest, error) {
	request, err := s.store.Get(id)
	if err != nil {
		return nil, err
	}
	if request == nil {
		return nil, ErrRequestNotFound
	}
	if request.Status != models.RequestPending {
		return nil, ErrAlreadyResolved
	}
	return request, nil
}

// BulkResult reports the outcome of a bulk resolution. Failures carry the
// per-request error text; successes are not rolled back.
type BulkResult struct {
	Succeeded int               `json:"succeeded"`
	Failed    int               `json:"failed"`
	Errors    map[string]string `json:"errors,omitempty"`
}

// BulkApprove approves each request independently.
func (s *Service) BulkApprove(ids []string, reviewer, response string, temporary bool, expiresAt *time.Time) BulkResult {
	return s.bulkResolve(ids, func(id string) error {
		_, err := s.Approve(id, reviewer, response, temporary, expiresAt)
		return err
	})
}

// BulkDeny denies each request independently.
func (s *Service) BulkDeny(ids []string, reviewer, response string) BulkResult {
	return s.bulkResolve(ids, func(id string) error {
		_, err := s.Deny(id, reviewer, response)
		return err
	})
}

func (s *Service) bulkResolve(ids []string, resolve func(id string) error) BulkResult {
	var mu sync.Mutex
	result := BulkResult{Errors: make(map[string]string)}

	workers := pool.New().WithMaxGoroutines(bulkWorkers)
	for _, id := range ids {
		id := id
		workers.Go(func() {
			err := resolve(id)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Failed++
				result.Errors[id] = err.Error()
				return
			}
			result.Succeeded++
		})
	}
	workers.Wait()

	if len(result.Errors) == 0 {
		result.Errors = nil
	}
	return result
}

// ListByProfile returns a profile's requests, newest first.
func (s *Service) ListByProfile(profileID string) ([]models.ContentRequest, error) {
	return s.store.ListByProfile(profileID)
}

// Pending returns pending requests across a parent's profiles, oldest first.
func (s *Service) Pending(parentID string) ([]models.ContentRequest, error) {
	return s.store.ListPendingForProfiles(s.profiles.ProfileIDsForParent(parentID))
}

// Dashboard summarizes a parent's request queue and recent activity.
type Dashboard struct {
	PendingCount  int                      `json:"pending_count"`
	ApprovedCount int                      `json:"approved_count"`
	DeniedCount   int                      `json:"denied_count"`
	Pending       []models.ContentRequest  `json:"pending_requests"`
	Activity      []models.ProfileActivity `json:"recent_activity"`
}

// DashboardFor builds the dashboard for a parent account.
func (s *Service) DashboardFor(parentID string) (Dashboard, error) {
	profileIDs := s.profiles.ProfileIDsForParent(parentID)

	counts, err := s.store.CountByStatus(profileIDs)
	if err != nil {
		return Dashboard{}, err
	}
	pending, err := s.store.ListPendingForProfiles(profileIDs)
	if err != nil {
		return Dashboard{}, err
	}
	activity, err := s.activity.Recent(profileIDs, 25)
	if err != nil {
		return Dashboard{}, err
	}

	return Dashboard{
		PendingCount:  counts[models.RequestPending],
		ApprovedCount: counts[models.RequestApproved],
		DeniedCount:   counts[models.RequestDenied],
		Pending:       pending,
		Activity:      activity,
	}, nil
}

// RequestedSet returns the content IDs a profile has pending or approved
// requests for. Used to decorate catalog rows.
func (s *Service) RequestedSet(profileID string, mediaType models.MediaType) (map[int64]bool, error) {
	all, err := s.store.ListByProfile(profileID)
	if err != nil {
		return nil, err
	}
	set := make(map[int64]bool)
	for _, request := range all {
		if request.Status == models.RequestDenied {
			continue
		}
		if request.ContentType() == mediaType {
			set[request.ContentID()] = true
		}
	}
	return set, nil
}

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
		log.Printf("[requests] failed to record activity: %v", err)
	}
}
