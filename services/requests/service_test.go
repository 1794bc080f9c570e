package requests

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"suggesterr/internal/database"
	"suggesterr/models"
)

type fakeDirectory struct {
	profiles map[string]*models.FamilyProfile
	limits   map[string]models.ProfileLimits
	byParent map[string][]string
}

func (f *fakeDirectory) Profile(id string) (*models.FamilyProfile, error) {
	return f.profiles[id], nil
}

func (f *fakeDirectory) Limits(profileID string) (models.ProfileLimits, error) {
	if limits, ok := f.limits[profileID]; ok {
		return limits, nil
	}
	return models.DefaultProfileLimits(profileID), nil
}

func (f *fakeDirectory) ProfileIDsForParent(parentID string) []string {
	return f.byParent[parentID]
}

type fakeGranter struct {
	mu     sync.Mutex
	grants []string
	err    error
}

func (f *fakeGranter) Approve(profileID string, contentType models.MediaType, contentID int64, approvedBy, reason string, expiresAt *time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.grants = append(f.grants, fmt.Sprintf("%s/%s/%d", profileID, contentType, contentID))
	return nil
}

type requestsFixture struct {
	service   *Service
	store     *database.RequestRepository
	directory *fakeDirectory
	granter   *fakeGranter
}

func setupRequests(t *testing.T) *requestsFixture {
	t.Helper()

	db, err := database.NewDB(database.Config{DatabasePath: filepath.Join(t.TempDir(), "test.db")})
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	directory := &fakeDirectory{
		profiles: map[string]*models.FamilyProfile{
			"kid": {ID: "kid", ParentID: "parent-1", Name: "Kid", Active: true},
		},
		limits:   map[string]models.ProfileLimits{},
		byParent: map[string][]string{"parent-1": {"kid"}},
	}
	granter := &fakeGranter{}
	store := database.NewRequestRepository(db.Connection())
	service := NewService(store, database.NewActivityRepository(db.Connection()), directory, granter)

	return &requestsFixture{service: service, store: store, directory: directory, granter: granter}
}

func movieInput(id int64) CreateInput {
	return CreateInput{MovieID: &id, Title: "Some Movie"}
}

func TestCreate_ExactlyOneTarget(t *testing.T) {
	fx := setupRequests(t)

	movieID, tvID := int64(1), int64(2)
	cases := []CreateInput{
		{},
		{MovieID: &movieID, TVShowID: &tvID},
	}
	for _, input := range cases {
		if _, err := fx.service.Create("kid", input); !errors.Is(err, ErrTargetRequired) {
			t.Errorf("expected ErrTargetRequired for %+v, got %v", input, err)
		}
	}
}

func TestCreate_ReturnsIDAndPendingStatus(t *testing.T) {
	fx := setupRequests(t)

	request, err := fx.service.Create("kid", movieInput(603))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if request.ID == "" {
		t.Error("expected request ID to be surfaced")
	}
	if request.Status != models.RequestPending {
		t.Errorf("expected pending status, got %q", request.Status)
	}
}

func TestCreate_DuplicatePendingRejected(t *testing.T) {
	fx := setupRequests(t)

	if _, err := fx.service.Create("kid", movieInput(603)); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := fx.service.Create("kid", movieInput(603)); !errors.Is(err, ErrDuplicateRequest) {
		t.Errorf("expected ErrDuplicateRequest, got %v", err)
	}
}

func TestCreate_DailyLimit(t *testing.T) {
	fx := setupRequests(t)
	fx.directory.limits["kid"] = models.ProfileLimits{DailyRequestLimit: 2}

	for i := int64(1); i <= 2; i++ {
		if _, err := fx.service.Create("kid", movieInput(i)); err != nil {
			t.Fatalf("Create %d failed: %v", i, err)
		}
	}

	_, err := fx.service.Create("kid", movieInput(3))
	if !errors.Is(err, ErrLimitExceeded) {
		t.Fatalf("expected ErrLimitExceeded, got %v", err)
	}
}

func TestApprove_GrantsAccess(t *testing.T) {
	fx := setupRequests(t)

	request, err := fx.service.Create("kid", movieInput(603))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	approved, err := fx.service.Approve(request.ID, "parent-1", "have fun", false, nil)
	if err != nil {
		t.Fatalf("Approve failed: %v", err)
	}
	if approved.Status != models.RequestApproved {
		t.Errorf("expected approved status, got %q", approved.Status)
	}
	if approved.ReviewedBy != "parent-1" || approved.ReviewedAt == nil {
		t.Errorf("expected reviewer metadata, got %+v", approved)
	}
	if len(fx.granter.grants) != 1 || fx.granter.grants[0] != "kid/movie/603" {
		t.Errorf("expected one grant for kid/movie/603, got %v", fx.granter.grants)
	}
}

func TestApprove_TemporaryExpiryValidation(t *testing.T) {
	fx := setupRequests(t)

	request, err := fx.service.Create("kid", movieInput(603))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if _, err := fx.service.Approve(request.ID, "parent-1", "", true, nil); !errors.Is(err, ErrExpiryRequired) {
		t.Errorf("expected ErrExpiryRequired, got %v", err)
	}

	past := time.Now().Add(-time.Hour)
	if _, err := fx.service.Approve(request.ID, "parent-1", "", true, &past); !errors.Is(err, ErrExpiryInPast) {
		t.Errorf("expected ErrExpiryInPast, got %v", err)
	}

	// Failed validation must leave the request pending.
	got, err := fx.store.Get(request.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Status != models.RequestPending {
		t.Errorf("expected request to remain pending, got %q", got.Status)
	}

	future := time.Now().Add(48 * time.Hour)
	approved, err := fx.service.Approve(request.ID, "parent-1", "weekend only", true, &future)
	if err != nil {
		t.Fatalf("Approve failed: %v", err)
	}
	if !approved.Temporary || approved.AccessUntil == nil {
		t.Errorf("expected temporary approval with expiry, got %+v", approved)
	}
}

func TestApprove_PendingOnly(t *testing.T) {
	fx := setupRequests(t)

	request, err := fx.service.Create("kid", movieInput(603))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := fx.service.Deny(request.ID, "parent-1", "not tonight"); err != nil {
		t.Fatalf("Deny failed: %v", err)
	}

	if _, err := fx.service.Approve(request.ID, "parent-1", "", false, nil); !errors.Is(err, ErrAlreadyResolved) {
		t.Errorf("expected ErrAlreadyResolved, got %v", err)
	}
	if _, err := fx.service.Deny(request.ID, "parent-1", ""); !errors.Is(err, ErrAlreadyResolved) {
		t.Errorf("expected ErrAlreadyResolved on double deny, got %v", err)
	}
}

func TestApprove_Missing(t *testing.T) {
	fx := setupRequests(t)
	if _, err := fx.service.Approve("nope", "parent-1", "", false, nil); !errors.Is(err, ErrRequestNotFound) {
		t.Errorf("expected ErrRequestNotFound, got %v", err)
	}
}

func TestBulkApprove_PartialFailure(t *testing.T) {
	fx := setupRequests(t)

	var ids []string
	for i := int64(1); i <= 3; i++ {
		request, err := fx.service.Create("kid", movieInput(i))
		if err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		ids = append(ids, request.ID)
	}
	// One already resolved, one unknown.
	if _, err := fx.service.Deny(ids[1], "parent-1", ""); err != nil {
		t.Fatalf("Deny failed: %v", err)
	}
	ids = append(ids, "missing")

	result := fx.service.BulkApprove(ids, "parent-1", "", false, nil)
	if result.Succeeded != 2 {
		t.Errorf("expected 2 successes, got %d", result.Succeeded)
	}
	if result.Failed != 2 {
		t.Errorf("expected 2 failures, got %d", result.Failed)
	}
	if len(result.Errors) != 2 {
		t.Errorf("expected per-id errors, got %v", result.Errors)
	}
}

func TestBulkDeny_AllSucceed(t *testing.T) {
	fx := setupRequests(t)

	var ids []string
	for i := int64(1); i <= 5; i++ {
		request, err := fx.service.Create("kid", movieInput(i))
		if err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		ids = append(ids, request.ID)
	}

	result := fx.service.BulkDeny(ids, "parent-1", "library cleanup")
	if result.Succeeded != 5 || result.Failed != 0 {
		t.Errorf("expected 5/0, got %d/%d", result.Succeeded, result.Failed)
	}

	pending, err := fx.service.Pending("parent-1")
	if err != nil {
		t.Fatalf("Pending failed: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("expected empty pending queue, got %d", len(pending))
	}
}

func TestDashboardFor_Counts(t *testing.T) {
	fx := setupRequests(t)

	a, _ := fx.service.Create("kid", movieInput(1))
	b, _ := fx.service.Create("kid", movieInput(2))
	if _, err := fx.service.Create("kid", movieInput(3)); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := fx.service.Approve(a.ID, "parent-1", "", false, nil); err != nil {
		t.Fatalf("Approve failed: %v", err)
	}
	if _, err := fx.service.Deny(b.ID, "parent-1", ""); err != nil {
		t.Fatalf("Deny failed: %v", err)
	}

	dashboard, err := fx.service.DashboardFor("parent-1")
	if err != nil {
		t.Fatalf("DashboardFor failed: %v", err)
	}
	if dashboard.PendingCount != 1 || dashboard.ApprovedCount != 1 || dashboard.DeniedCount != 1 {
		t.Errorf("unexpected counts: %+v", dashboard)
	}
	if len(dashboard.Pending) != 1 {
		t.Errorf("expected 1 pending request, got %d", len(dashboard.Pending))
	}
	if len(dashboard.Activity) == 0 {
		t.Error("expected recent activity entries")
	}
}

func TestRequestedSet_ExcludesDenied(t *testing.T) {
	fx := setupRequests(t)

	a, _ := fx.service.Create("kid", movieInput(1))
	fx.service.Create("kid", movieInput(2))
	if _, err := fx.service.Deny(a.ID, "parent-1", ""); err != nil {
		t.Fatalf("Deny failed: %v", err)
	}

	set, err := fx.service.RequestedSet("kid", models.MediaTypeMovie)
	if err != nil {
		t.Fatalf("RequestedSet failed: %v", err)
	}
	if set[1] {
		t.Error("denied request should not mark the title requested")
	}
	if !set[2] {
		t.Error("pending request should mark the title requested")
	}
}
