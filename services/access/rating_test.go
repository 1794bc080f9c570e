package access

import (
	"testing"

	"suggesterr/models"
)

func restrictedProfile(maxMovie, maxTV string) *models.FamilyProfile {
	return &models.FamilyProfile{
		ID:             "profile-1",
		Name:           "Kid",
		MaxMovieRating: maxMovie,
		MaxTVRating:    maxTV,
		Active:         true,
	}
}

func TestIsAppropriate_NilProfileAllowsEverything(t *testing.T) {
	t.Parallel()
	if !IsAppropriate("NC-17", models.MediaTypeMovie, nil) {
		t.Error("nil profile should allow any rating")
	}
	if !IsAppropriate("TV-MA", models.MediaTypeTV, nil) {
		t.Error("nil profile should allow any tv rating")
	}
}

func TestIsAppropriate_MovieHierarchy(t *testing.T) {
	t.Parallel()
	profile := restrictedProfile("PG-13", "TV-14")

	cases := []struct {
		rating string
		want   bool
	}{
		{"G", true},
		{"PG", true},
		{"PG-13", true}, // boundary is inclusive
		{"R", false},
		{"NC-17", false},
		{"", true},        // unrated passes
		{"NR", false},     // NR ranks above every ceiling
		{"BANANA", false}, // unknown label blocked
	}

	for _, tc := range cases {
		if got := IsAppropriate(tc.rating, models.MediaTypeMovie, profile); got != tc.want {
			t.Errorf("IsAppropriate(%q) = %v, want %v", tc.rating, got, tc.want)
		}
	}
}

func TestIsAppropriate_TVHierarchy(t *testing.T) {
	t.Parallel()
	profile := restrictedProfile("G", "TV-Y7")

	cases := []struct {
		rating string
		want   bool
	}{
		{"TV-Y", true},
		{"TV-Y7", true},
		{"TV-Y7-FV", true}, // ranks with TV-Y7
		{"TV-G", false},
		{"TV-PG", false},
		{"TV-MA", false},
		{"tv-y", true}, // case-insensitive
	}

	for _, tc := range cases {
		if got := IsAppropriate(tc.rating, models.MediaTypeTV, profile); got != tc.want {
			t.Errorf("IsAppropriate(%q) = %v, want %v", tc.rating, got, tc.want)
		}
	}
}

func TestIsAppropriate_EmptyCeilingAllows(t *testing.T) {
	t.Parallel()
	profile := restrictedProfile("", "")
	if !IsAppropriate("NC-17", models.MediaTypeMovie, profile) {
		t.Error("empty ceiling should allow everything")
	}
}

func TestRatingLevel_Ordering(t *testing.T) {
	t.Parallel()
	movie := []string{"G", "PG", "PG-13", "R", "NC-17", "NR"}
	for i := 1; i < len(movie); i++ {
		prev := RatingLevel(movie[i-1], models.MediaTypeMovie)
		cur := RatingLevel(movie[i], models.MediaTypeMovie)
		if prev >= cur {
			t.Errorf("expected %s < %s, got levels %d >= %d", movie[i-1], movie[i], prev, cur)
		}
	}

	tv := []string{"TV-Y", "TV-Y7", "TV-G", "TV-PG", "TV-14", "TV-MA", "NR"}
	for i := 1; i < len(tv); i++ {
		prev := RatingLevel(tv[i-1], models.MediaTypeTV)
		cur := RatingLevel(tv[i], models.MediaTypeTV)
		if prev >= cur {
			t.Errorf("expected %s < %s, got levels %d >= %d", tv[i-1], tv[i], prev, cur)
		}
	}
}
