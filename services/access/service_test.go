package access

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"suggesterr/internal/database"
	"suggesterr/models"
	"suggesterr/services/tmdb"
)

type fakeProfiles struct {
	profiles map[string]*models.FamilyProfile
	limits   map[string]models.ProfileLimits
}

func (f *fakeProfiles) Profile(id string) (*models.FamilyProfile, error) {
	return f.profiles[id], nil
}

func (f *fakeProfiles) Limits(profileID string) (models.ProfileLimits, error) {
	if limits, ok := f.limits[profileID]; ok {
		return limits, nil
	}
	return models.DefaultProfileLimits(profileID), nil
}

type accessFixture struct {
	service  *Service
	store    *database.AccessRepository
	profiles *fakeProfiles
}

// setupAccess wires the service against a stub TMDB serving one R-rated
// movie (id 603) and a real sqlite store.
func setupAccess(t *testing.T) *accessFixture {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/movie/603":
			w.Write([]byte(`{"id": 603, "title": "The Matrix"}`))
		case "/movie/603/release_dates":
			w.Write([]byte(`{"results": [{"iso_3166_1": "US", "release_dates": [{"certification": "R"}]}]}`))
		default:
			http.Error(w, `{"status_message":"not found"}`, http.StatusNotFound)
		}
	}))
	t.Cleanup(server.Close)

	client := tmdb.NewClient("test-key", "en-US")
	client.SetBaseURL(server.URL)
	tmdbService := tmdb.NewService(client, t.TempDir(), 24)

	db, err := database.NewDB(database.Config{DatabasePath: filepath.Join(t.TempDir(), "test.db")})
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	profiles := &fakeProfiles{
		profiles: map[string]*models.FamilyProfile{
			"kid": {ID: "kid", Name: "Kid", MaxMovieRating: "PG", MaxTVRating: "TV-Y7", Active: true},
		},
		limits: map[string]models.ProfileLimits{},
	}

	store := database.NewAccessRepository(db.Connection())
	service := NewService(profiles, store, database.NewActivityRepository(db.Connection()), tmdbService)
	// Pin the clock to a weekday mid-afternoon so viewing hours never fire
	// unless a test moves the clock.
	service.SetClock(func() time.Time {
		return time.Date(2026, 3, 4, 15, 0, 0, 0, time.UTC) // Wednesday 15:00
	})

	return &accessFixture{service: service, store: store, profiles: profiles}
}

func TestCheckAccess_NoProfileAlwaysGranted(t *testing.T) {
	fx := setupAccess(t)

	decision, err := fx.service.CheckAccess(context.Background(), "", models.MediaTypeMovie, 603)
	if err != nil {
		t.Fatalf("CheckAccess failed: %v", err)
	}
	if !decision.AccessGranted {
		t.Error("expected unrestricted viewer to be granted")
	}
}

func TestCheckAccess_ContentNotFound(t *testing.T) {
	fx := setupAccess(t)

	decision, err := fx.service.CheckAccess(context.Background(), "kid", models.MediaTypeMovie, 999)
	if err != nil {
		t.Fatalf("CheckAccess failed: %v", err)
	}
	if decision.AccessGranted {
		t.Error("expected denial for missing content")
	}
	if decision.Reason != ReasonContentNotFound {
		t.Errorf("expected reason %q, got %q", ReasonContentNotFound, decision.Reason)
	}
}

func TestCheckAccess_InactiveProfile(t *testing.T) {
	fx := setupAccess(t)
	fx.profiles.profiles["kid"].Active = false

	decision, err := fx.service.CheckAccess(context.Background(), "kid", models.MediaTypeMovie, 603)
	if err != nil {
		t.Fatalf("CheckAccess failed: %v", err)
	}
	if decision.Reason != ReasonProfileInactive {
		t.Errorf("expected reason %q, got %q", ReasonProfileInactive, decision.Reason)
	}
}

func TestCheckAccess_TimeRestriction(t *testing.T) {
	fx := setupAccess(t)
	fx.service.SetClock(func() time.Time {
		return time.Date(2026, 3, 4, 22, 30, 0, 0, time.UTC) // Wednesday 22:30, past bedtime 21
	})

	decision, err := fx.service.CheckAccess(context.Background(), "kid", models.MediaTypeMovie, 603)
	if err != nil {
		t.Fatalf("CheckAccess failed: %v", err)
	}
	if decision.Reason != ReasonTimeRestricted {
		t.Errorf("expected reason %q, got %q", ReasonTimeRestricted, decision.Reason)
	}
}

func TestCheckAccess_TimeRestrictionWrapsMidnight(t *testing.T) {
	fx := setupAccess(t)
	fx.service.SetClock(func() time.Time {
		return time.Date(2026, 3, 5, 5, 0, 0, 0, time.UTC) // Thursday 05:00, before wakeup 7
	})

	decision, err := fx.service.CheckAccess(context.Background(), "kid", models.MediaTypeMovie, 603)
	if err != nil {
		t.Fatalf("CheckAccess failed: %v", err)
	}
	if decision.Reason != ReasonTimeRestricted {
		t.Errorf("expected early-morning denial, got %q", decision.Reason)
	}
}

func TestCheckAccess_WeekendExtendedBedtime(t *testing.T) {
	fx := setupAccess(t)
	fx.service.SetClock(func() time.Time {
		return time.Date(2026, 3, 7, 22, 0, 0, 0, time.UTC) // Saturday 22:00, weekend bedtime 23
	})

	// Rating still applies, so expect the rating denial rather than the
	// time denial.
	decision, err := fx.service.CheckAccess(context.Background(), "kid", models.MediaTypeMovie, 603)
	if err != nil {
		t.Fatalf("CheckAccess failed: %v", err)
	}
	if decision.Reason == ReasonTimeRestricted {
		t.Error("weekend extension should keep 22:00 viewable")
	}
}

func TestCheckAccess_ExplicitBlockBeatsApproval(t *testing.T) {
	fx := setupAccess(t)

	if err := fx.service.Approve("kid", models.MediaTypeMovie, 603, "parent-1", "", nil); err != nil {
		t.Fatalf("Approve failed: %v", err)
	}
	if err := fx.service.Block("kid", models.MediaTypeMovie, 603, "nightmares"); err != nil {
		t.Fatalf("Block failed: %v", err)
	}

	decision, err := fx.service.CheckAccess(context.Background(), "kid", models.MediaTypeMovie, 603)
	if err != nil {
		t.Fatalf("CheckAccess failed: %v", err)
	}
	if decision.Reason != ReasonBlocked {
		t.Errorf("expected block to win over approval, got %q", decision.Reason)
	}
}

func TestCheckAccess_ParentApprovalOverridesRating(t *testing.T) {
	fx := setupAccess(t)

	if err := fx.service.Approve("kid", models.MediaTypeMovie, 603, "parent-1", "movie night", nil); err != nil {
		t.Fatalf("Approve failed: %v", err)
	}

	decision, err := fx.service.CheckAccess(context.Background(), "kid", models.MediaTypeMovie, 603)
	if err != nil {
		t.Fatalf("CheckAccess failed: %v", err)
	}
	if !decision.AccessGranted {
		t.Fatalf("expected approval to grant access, got %+v", decision)
	}
	if decision.Reason != ReasonParentApproved {
		t.Errorf("expected reason %q, got %q", ReasonParentApproved, decision.Reason)
	}
}

func TestCheckAccess_ExpiredApprovalFallsThroughToRating(t *testing.T) {
	fx := setupAccess(t)

	expired := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	if err := fx.service.Approve("kid", models.MediaTypeMovie, 603, "parent-1", "", &expired); err != nil {
		t.Fatalf("Approve failed: %v", err)
	}

	decision, err := fx.service.CheckAccess(context.Background(), "kid", models.MediaTypeMovie, 603)
	if err != nil {
		t.Fatalf("CheckAccess failed: %v", err)
	}
	if decision.AccessGranted {
		t.Fatal("expected expired approval to deny")
	}
	if decision.Reason != ReasonRatingExceeded {
		t.Errorf("expected reason %q, got %q", ReasonRatingExceeded, decision.Reason)
	}
	if !decision.CanRequest {
		t.Error("rating denial should invite a request")
	}
}

func TestCheckAccess_RatingDenialCanRequest(t *testing.T) {
	fx := setupAccess(t)

	decision, err := fx.service.CheckAccess(context.Background(), "kid", models.MediaTypeMovie, 603)
	if err != nil {
		t.Fatalf("CheckAccess failed: %v", err)
	}
	if decision.AccessGranted {
		t.Fatal("R-rated movie should be denied for PG ceiling")
	}
	if decision.Reason != ReasonRatingExceeded || !decision.CanRequest {
		t.Errorf("expected requestable rating denial, got %+v", decision)
	}
}
