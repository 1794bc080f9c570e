package access

import (
	"strings"

	"suggesterr/models"
)

// Rating hierarchies - lower number = more restrictive
var movieRatingOrder = map[string]int{
	"G":     1,
	"PG":    2,
	"PG-13": 3,
	"R":     4,
	"NC-17": 5,
	"NR":    6, // Not Rated - treat as most permissive
}

var tvRatingOrder = map[string]int{
	"TV-Y":     1,
	"TV-Y7":    2,
	"TV-Y7-FV": 2, // Fantasy violence variant of TV-Y7
	"TV-G":     3,
	"TV-PG":    4,
	"TV-14":    5,
	"TV-MA":    6,
	"NR":       7, // Not Rated - treat as most permissive
}

// RatingLevel returns the restrictiveness level for a certification.
// Lower numbers are more restrictive. Returns 0 if the label is unknown.
func RatingLevel(certification string, mediaType models.MediaType) int {
	cert := strings.ToUpper(strings.TrimSpace(certification))
	if cert == "" {
		return 0
	}
	if mediaType == models.MediaTypeMovie {
		return movieRatingOrder[cert]
	}
	return tvRatingOrder[cert]
}

// IsAppropriate reports whether content with the given certification is
// viewable under the profile's rating ceiling. A nil profile means an
// unrestricted viewer; everything is appropriate. The boundary is inclusive:
// content rated exactly at the ceiling passes. Unrated content passes —
// parents handle it by explicit blocks. A label that is neither empty nor in
// the hierarchy is denied.
func IsAppropriate(certification string, mediaType models.MediaType, profile *models.FamilyProfile) bool {
	if profile == nil {
		return true
	}

	maxRating := strings.TrimSpace(profile.RatingCeiling(mediaType))
	if maxRating == "" {
		return true
	}

	certification = strings.TrimSpace(certification)
	if certification == "" {
		return true
	}

	contentLevel := RatingLevel(certification, mediaType)
	maxLevel := RatingLevel(maxRating, mediaType)

	// Unknown labels on either side block for safety.
	if contentLevel == 0 || maxLevel == 0 {
		return false
	}

	return contentLevel <= maxLevel
}
