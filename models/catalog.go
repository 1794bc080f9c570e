package models

// MediaType identifies whether a catalog item is a movie or a TV show.
type MediaType string

const (
	MediaTypeMovie MediaType = "movie"
	MediaTypeTV    MediaType = "tv"
)

// Valid reports whether the media type is one of the known values.
func (m MediaType) Valid() bool {
	return m == MediaTypeMovie || m == MediaTypeTV
}

// CatalogItem is a single movie or TV show as served by the catalog API.
// Items are built fresh from every upstream fetch and are never cached;
// the acquisition flags are flipped only after a confirmed backend response.
type CatalogItem struct {
	ID            int64     `json:"id"`
	Title         string    `json:"title"`
	OriginalTitle string    `json:"original_title,omitempty"`
	Overview      string    `json:"overview"`
	ReleaseDate   string    `json:"release_date,omitempty"`
	Rating        *float64  `json:"vote_average"` // nil means not rated yet ("N/A")
	VoteCount     int64     `json:"vote_count,omitempty"`
	Popularity    float64   `json:"popularity,omitempty"`
	PosterPath    string    `json:"poster_path,omitempty"`
	BackdropPath  string    `json:"backdrop_path,omitempty"`
	GenreIDs      []int64   `json:"genre_ids,omitempty"`
	Certification string    `json:"certification,omitempty"`
	MediaType     MediaType `json:"media_type"`

	// Acquisition state, decorated after fetch.
	Requested bool `json:"requested"`
	Available bool `json:"available"`
}

// CatalogPage is the single internal shape every upstream catalog payload is
// normalized into at the client boundary. Bare-array payloads become a page
// with Page=1, TotalPages=1; paged payloads map their fields through.
type CatalogPage struct {
	Items      []CatalogItem `json:"results"`
	Page       int           `json:"page"`
	TotalPages int           `json:"total_pages"`
}

// Genre is a TMDB genre entry.
type Genre struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}
