package families

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"suggesterr/internal/database"
	"suggesterr/models"
	"suggesterr/services/access"
)

var (
	ErrStorageDirRequired = errors.New("storage directory not provided")
	ErrProfileNotFound    = errors.New("profile not found")
	ErrProfileLimit       = errors.New("profile limit reached for this account")
	ErrNameRequired       = errors.New("profile name is required")
	ErrNameTaken          = errors.New("a profile with this name already exists")
	ErrInvalidAge         = errors.New("age must be between 1 and 99")
	ErrInvalidRating      = errors.New("unknown rating label")
)

// ProfileInput carries the caller-settable profile fields.
type ProfileInput struct {
	Name           string `json:"profile_name"`
	Age            int    `json:"age"`
	MaxMovieRating string `json:"max_movie_rating"`
	MaxTVRating    string `json:"max_tv_rating"`
	AvatarURL      string `json:"avatar_url"`
}

type storage struct {
	Profiles map[string]models.FamilyProfile `json:"profiles"`
	Limits   map[string]models.ProfileLimits `json:"limits"`
}

// Service manages family profiles and their limits. Profiles live in a JSON
// file; the activity trail goes to sqlite.
type Service struct {
	mu       sync.RWMutex
	path     string
	profiles map[string]models.FamilyProfile
	limits   map[string]models.ProfileLimits
	activity *database.ActivityRepository
}

// NewService creates a families service storing data inside the provided
// directory. activity may be nil.
func NewService(storageDir string, activity *database.ActivityRepository) (*Service, error) {
	if strings.TrimSpace(storageDir) == "" {
		return nil, ErrStorageDirRequired
	}

	if err := os.MkdirAll(storageDir, 0o755); err != nil {
		return nil, fmt.Errorf("create families dir: %w", err)
	}

	svc := &Service{
		path:     filepath.Join(storageDir, "families.json"),
		profiles: make(map[string]models.FamilyProfile),
		limits:   make(map[string]models.ProfileLimits),
		activity: activity,
	}

	if err := svc.load(); err != nil {
		return nil, err
	}

	return svc, nil
}

// Create adds a profile under a parent account. New profiles are active and
// carry default limits.
func (s *Service) Create(parentID string, input ProfileInput) (models.FamilyProfile, error) {
	input, err := normalizeInput(input)
	if err != nil {
		return models.FamilyProfile{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, p := range s.profiles {
		if p.ParentID != parentID {
			continue
		}
		count++
		if strings.EqualFold(p.Name, input.Name) {
			return models.FamilyProfile{}, ErrNameTaken
		}
	}
	if count >= models.MaxProfilesPerParent {
		return models.FamilyProfile{}, ErrProfileLimit
	}

	now := time.Now().UTC()
	profile := models.FamilyProfile{
		ID:             uuid.NewString(),
		ParentID:       parentID,
		Name:           input.Name,
		Age:            input.Age,
		MaxMovieRating: input.MaxMovieRating,
		MaxTVRating:    input.MaxTVRating,
		Active:         true,
		AvatarURL:      input.AvatarURL,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	s.profiles[profile.ID] = profile
	s.limits[profile.ID] = models.DefaultProfileLimits(profile.ID)

	if err := s.saveLocked(); err != nil {
		delete(s.profiles, profile.ID)
		delete(s.limits, profile.ID)
		return models.FamilyProfile{}, err
	}

	return profile, nil
}

// Profile returns a profile by ID, or nil when it does not exist.
func (s *Service) Profile(id string) (*models.FamilyProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p, ok := s.profiles[id]; ok {
		return &p, nil
	}
	return nil, nil
}

// ListByParent returns a parent's profiles sorted by creation time.
func (s *Service) ListByParent(parentID string) []models.FamilyProfile {
	s.mu.RLock()
	defer s.mu.RUnlock()

	profiles := make([]models.FamilyProfile, 0)
	for _, p := range s.profiles {
		if p.ParentID == parentID {
			profiles = append(profiles, p)
		}
	}
	sort.Slice(profiles, func(i, j int) bool {
		return profiles[i].CreatedAt.Before(profiles[j].CreatedAt)
	})
	return profiles
}

// ProfileIDsForParent returns the IDs of a parent's profiles.
func (s *Service) ProfileIDsForParent(parentID string) []string {
	profiles := s.ListByParent(parentID)
	ids := make([]string, len(profiles))
	for i, p := range profiles {
		ids[i] = p.ID
	}
	return ids
}

// OwnedBy reports whether the profile belongs to the parent account.
func (s *Service) OwnedBy(profileID, parentID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[profileID]
	return ok && p.ParentID == parentID
}

// Update rewrites a profile's caller-settable fields.
func (s *Service) Update(id string, input ProfileInput) (models.FamilyProfile, error) {
	input, err := normalizeInput(input)
	if err != nil {
		return models.FamilyProfile{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	profile, ok := s.profiles[id]
	if !ok {
		return models.FamilyProfile{}, ErrProfileNotFound
	}

	for otherID, p := range s.profiles {
		if otherID != id && p.ParentID == profile.ParentID && strings.EqualFold(p.Name, input.Name) {
			return models.FamilyProfile{}, ErrNameTaken
		}
	}

	profile.Name = input.Name
	profile.Age = input.Age
	profile.MaxMovieRating = input.MaxMovieRating
	profile.MaxTVRating = input.MaxTVRating
	profile.AvatarURL = input.AvatarURL
	profile.UpdatedAt = time.Now().UTC()
	s.profiles[id] = profile

	if err := s.saveLocked(); err != nil {
		return models.FamilyProfile{}, err
	}
	return profile, nil
}

// Delete removes a profile and its limits.
func (s *Service) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.profiles[id]; !ok {
		return ErrProfileNotFound
	}
	delete(s.profiles, id)
	delete(s.limits, id)
	return s.saveLocked()
}

// ToggleActive flips a profile's active flag and returns the new state.
func (s *Service) ToggleActive(id string) (bool, error) {
	s.mu.Lock()

	profile, ok := s.profiles[id]
	if !ok {
		s.mu.Unlock()
		return false, ErrProfileNotFound
	}

	profile.Active = !profile.Active
	profile.UpdatedAt = time.Now().UTC()
	s.profiles[id] = profile

	err := s.saveLocked()
	active := profile.Active
	s.mu.Unlock()

	if err != nil {
		return false, err
	}

	s.logToggle(id, active)
	return active, nil
}

// Limits returns a profile's limits, falling back to defaults for profiles
// created before limits existed.
func (s *Service) Limits(profileID string) (models.ProfileLimits, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.profiles[profileID]; !ok {
		return models.ProfileLimits{}, ErrProfileNotFound
	}
	if limits, ok := s.limits[profileID]; ok {
		return limits, nil
	}
	return models.DefaultProfileLimits(profileID), nil
}

// UpdateLimits replaces a profile's limits.
func (s *Service) UpdateLimits(profileID string, limits models.ProfileLimits) error {
	if limits.DailyRequestLimit < 0 || limits.WeeklyRequestLimit < 0 || limits.MonthlyRequestLimit < 0 {
		return errors.New("request limits must not be negative")
	}
	if limits.BedtimeHour < 0 || limits.BedtimeHour > 23 ||
		limits.WakeupHour < 0 || limits.WakeupHour > 23 ||
		limits.WeekendBedtimeHour < 0 || limits.WeekendBedtimeHour > 23 {
		return errors.New("hours must be between 0 and 23")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.profiles[profileID]; !ok {
		return ErrProfileNotFound
	}
	limits.ProfileID = profileID
	limits.UpdatedAt = time.Now().UTC()
	s.limits[profileID] = limits
	return s.saveLocked()
}

func (s *Service) logToggle(profileID string, active bool) {
	if s.activity == nil {
		return
	}
	state := "disabled"
	if active {
		state = "enabled"
	}
	entry := &models.ProfileActivity{
		ID:          uuid.NewString(),
		ProfileID:   profileID,
		Type:        models.ActivityProfileToggled,
		Description: "profile " + state,
		Timestamp:   time.Now().UTC(),
	}
	if err := s.activity.Insert(entry); err != nil {
		log.Printf("[families] failed to record toggle: %v", err)
	}
}

func normalizeInput(input ProfileInput) (ProfileInput, error) {
	input.Name = strings.TrimSpace(input.Name)
	if input.Name == "" {
		return input, ErrNameRequired
	}
	if input.Age < 1 || input.Age > 99 {
		return input, ErrInvalidAge
	}

	if input.MaxMovieRating == "" {
		input.MaxMovieRating = models.DefaultMaxMovieRating
	}
	if input.MaxTVRating == "" {
		input.MaxTVRating = models.DefaultMaxTVRating
	}
	if access.RatingLevel(input.MaxMovieRating, models.MediaTypeMovie) == 0 {
		return input, fmt.Errorf("%w: %q", ErrInvalidRating, input.MaxMovieRating)
	}
	if access.RatingLevel(input.MaxTVRating, models.MediaTypeTV) == 0 {
		return input, fmt.Errorf("%w: %q", ErrInvalidRating, input.MaxTVRating)
	}
	return input, nil
}

func (s *Service) load() error {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read families file: %w", err)
	}

	var stored storage
	if err := json.Unmarshal(data, &stored); err != nil {
		return fmt.Errorf("decode families file: %w", err)
	}
	if stored.Profiles != nil {
		s.profiles = stored.Profiles
	}
	if stored.Limits != nil {
		s.limits = stored.Limits
	}
	return nil
}

// saveLocked writes storage to disk. Must be called with mu held.
func (s *Service) saveLocked() error {
	tmp := s.path + ".tmp"
	file, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create families temp file: %w", err)
	}

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(storage{Profiles: s.profiles, Limits: s.limits}); err != nil {
		file.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("encode families file: %w", err)
	}

	if err := file.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("close families temp file: %w", err)
	}

	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace families file: %w", err)
	}

	return nil
}
