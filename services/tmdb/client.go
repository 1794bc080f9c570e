package tmdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"suggesterr/models"
)

const (
	defaultBaseURL = "https://api.themoviedb.org/3"
	imageBaseURL   = "https://image.tmdb.org/t/p/w500"
)

// ErrNotConfigured is returned when no TMDB API key is set.
var ErrNotConfigured = errors.New("tmdb api key not configured")

// ErrNotFound is returned for titles TMDB does not know.
var ErrNotFound = errors.New("title not found")

// FetchError reports a non-2xx response from TMDB, keeping the endpoint so
// callers can surface which catalog row failed.
type FetchError struct {
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("tmdb %s returned %d: %s", e.Endpoint, e.StatusCode, e.Body)
}

// MovieCategory values map to TMDB movie list endpoints.
const (
	MoviePopular    = "popular"
	MovieTopRated   = "top_rated"
	MovieNowPlaying = "now_playing"
	MovieUpcoming   = "upcoming"
)

// TVCategory values map to TMDB tv list endpoints.
const (
	TVPopular     = "popular"
	TVTopRated    = "top_rated"
	TVAiringToday = "airing_today"
	TVOnTheAir    = "on_the_air"
)

// DiscoverOptions narrows a discover query.
type DiscoverOptions struct {
	GenreIDs     []int64
	SortBy       string
	VoteCountGTE int
	Page         int
}

// Client talks to the TMDB v3 API. The API key and language can be swapped
// at runtime when settings change.
type Client struct {
	httpClient *http.Client
	baseURL    string

	mu       sync.RWMutex
	apiKey   string
	language string
}

// NewClient creates a TMDB client.
func NewClient(apiKey, language string) *Client {
	if language == "" {
		language = "en-US"
	}
	return &Client{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		baseURL:    defaultBaseURL,
		apiKey:     apiKey,
		language:   language,
	}
}

// SetBaseURL overrides the API base URL. Used in tests.
func (c *Client) SetBaseURL(baseURL string) {
	c.baseURL = strings.TrimRight(baseURL, "/")
}

// UpdateSettings swaps the API key and language for subsequent requests.
func (c *Client) UpdateSettings(apiKey, language string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.apiKey = apiKey
	if language != "" {
		c.language = language
	}
}

func (c *Client) credentials() (apiKey, language string, err error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.apiKey == "" {
		return "", "", ErrNotConfigured
	}
	return c.apiKey, c.language, nil
}

// MovieCategory fetches one page of a movie list endpoint.
func (c *Client) MovieCategory(ctx context.Context, category string, page int) (models.CatalogPage, error) {
	return c.fetchPage(ctx, "/movie/"+category, nil, page, models.MediaTypeMovie)
}

// TVCategory fetches one page of a tv list endpoint.
func (c *Client) TVCategory(ctx context.Context, category string, page int) (models.CatalogPage, error) {
	return c.fetchPage(ctx, "/tv/"+category, nil, page, models.MediaTypeTV)
}

// SearchMovies fetches one page of movie search results.
func (c *Client) SearchMovies(ctx context.Context, query string, page int) (models.CatalogPage, error) {
	return c.fetchPage(ctx, "/search/movie", url.Values{"query": {query}}, page, models.MediaTypeMovie)
}

// SearchTV fetches one page of tv search results.
func (c *Client) SearchTV(ctx context.Context, query string, page int) (models.CatalogPage, error) {
	return c.fetchPage(ctx, "/search/tv", url.Values{"query": {query}}, page, models.MediaTypeTV)
}

// DiscoverMovies fetches one page of the movie discover endpoint.
func (c *Client) DiscoverMovies(ctx context.Context, opts DiscoverOptions) (models.CatalogPage, error) {
	return c.fetchPage(ctx, "/discover/movie", discoverValues(opts), opts.Page, models.MediaTypeMovie)
}

// DiscoverTV fetches one page of the tv discover endpoint.
func (c *Client) DiscoverTV(ctx context.Context, opts DiscoverOptions) (models.CatalogPage, error) {
	return c.fetchPage(ctx, "/discover/tv", discoverValues(opts), opts.Page, models.MediaTypeTV)
}

func discoverValues(opts DiscoverOptions) url.Values {
	values := url.Values{}
	if len(opts.GenreIDs) > 0 {
		ids := make([]string, len(opts.GenreIDs))
		for i, id := range opts.GenreIDs {
			ids[i] = strconv.FormatInt(id, 10)
		}
		values.Set("with_genres", strings.Join(ids, ","))
	}
	if opts.VoteCountGTE > 0 {
		values.Set("vote_count.gte", strconv.Itoa(opts.VoteCountGTE))
	}
	sortBy := opts.SortBy
	if sortBy == "" {
		sortBy = "popularity.desc"
	}
	values.Set("sort_by", sortBy)
	return values
}

// Genres fetches the genre list for a media type.
func (c *Client) Genres(ctx context.Context, mediaType models.MediaType) ([]models.Genre, error) {
	var payload struct {
		Genres []models.Genre `json:"genres"`
	}
	if err := c.getJSON(ctx, "/genre/"+string(mediaType)+"/list", nil, &payload); err != nil {
		return nil, err
	}
	return payload.Genres, nil
}

// MovieDetails fetches full details for one movie.
func (c *Client) MovieDetails(ctx context.Context, id int64) (*models.CatalogItem, error) {
	var raw itemPayload
	err := c.getJSON(ctx, fmt.Sprintf("/movie/%d", id), nil, &raw)
	if err != nil {
		return nil, err
	}
	item := raw.toCatalogItem(models.MediaTypeMovie)
	return &item, nil
}

// TVDetails fetches full details for one tv show.
func (c *Client) TVDetails(ctx context.Context, id int64) (*models.CatalogItem, error) {
	var raw itemPayload
	err := c.getJSON(ctx, fmt.Sprintf("/tv/%d", id), nil, &raw)
	if err != nil {
		return nil, err
	}
	item := raw.toCatalogItem(models.MediaTypeTV)
	return &item, nil
}

// MovieCertification returns the US certification for a movie, or "" when
// TMDB has none on file.
func (c *Client) MovieCertification(ctx context.Context, id int64) (string, error) {
	var payload struct {
		Results []struct {
			Country  string `json:"iso_3166_1"`
			Releases []struct {
				Certification string `json:"certification"`
			} `json:"release_dates"`
		} `json:"results"`
	}
	if err := c.getJSON(ctx, fmt.Sprintf("/movie/%d/release_dates", id), nil, &payload); err != nil {
		return "", err
	}
	for _, result := range payload.Results {
		if result.Country != "US" {
			continue
		}
		for _, release := range result.Releases {
			if release.Certification != "" {
				return release.Certification, nil
			}
		}
	}
	return "", nil
}

// TVCertification returns the US content rating for a tv show, or "" when
// TMDB has none on file.
func (c *Client) TVCertification(ctx context.Context, id int64) (string, error) {
	var payload struct {
		Results []struct {
			Country string `json:"iso_3166_1"`
			Rating  string `json:"rating"`
		} `json:"results"`
	}
	if err := c.getJSON(ctx, fmt.Sprintf("/tv/%d/content_ratings", id), nil, &payload); err != nil {
		return "", err
	}
	for _, result := range payload.Results {
		if result.Country == "US" && result.Rating != "" {
			return result.Rating, nil
		}
	}
	return "", nil
}

// fetchPage performs a paginated list request and normalizes the response
// shape. TMDB list endpoints answer {results, page, total_pages}, but a few
// proxy deployments answer a bare array; a bare array is treated as a single
// complete page.
func (c *Client) fetchPage(ctx context.Context, path string, values url.Values, page int, mediaType models.MediaType) (models.CatalogPage, error) {
	if page < 1 {
		page = 1
	}
	if values == nil {
		values = url.Values{}
	}
	values.Set("page", strconv.Itoa(page))

	body, err := c.get(ctx, path, values)
	if err != nil {
		return models.CatalogPage{}, err
	}

	return normalizePage(body, mediaType)
}

func normalizePage(body []byte, mediaType models.MediaType) (models.CatalogPage, error) {
	trimmed := strings.TrimLeftFunc(string(body), func(r rune) bool {
		return r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})

	if strings.HasPrefix(trimmed, "[") {
		var items []itemPayload
		if err := json.Unmarshal(body, &items); err != nil {
			return models.CatalogPage{}, fmt.Errorf("decode catalog array: %w", err)
		}
		return models.CatalogPage{
			Items:      toCatalogItems(items, mediaType),
			Page:       1,
			TotalPages: 1,
		}, nil
	}

	var paged struct {
		Results    []itemPayload `json:"results"`
		Page       int           `json:"page"`
		TotalPages int           `json:"total_pages"`
	}
	if err := json.Unmarshal(body, &paged); err != nil {
		return models.CatalogPage{}, fmt.Errorf("decode catalog page: %w", err)
	}
	if paged.Page < 1 {
		paged.Page = 1
	}
	if paged.TotalPages < 1 {
		paged.TotalPages = 1
	}
	return models.CatalogPage{
		Items:      toCatalogItems(paged.Results, mediaType),
		Page:       paged.Page,
		TotalPages: paged.TotalPages,
	}, nil
}

// itemPayload covers both movie and tv result objects; tv uses name and
// first_air_date where movies use title and release_date.
type itemPayload struct {
	ID            int64          `json:"id"`
	Title         string         `json:"title"`
	Name          string         `json:"name"`
	OriginalTitle string         `json:"original_title"`
	OriginalName  string         `json:"original_name"`
	Overview      string         `json:"overview"`
	ReleaseDate   string         `json:"release_date"`
	FirstAirDate  string         `json:"first_air_date"`
	VoteAverage   *float64       `json:"vote_average"`
	VoteCount     int64          `json:"vote_count"`
	Popularity    float64        `json:"popularity"`
	PosterPath    string         `json:"poster_path"`
	BackdropPath  string         `json:"backdrop_path"`
	GenreIDs      []int64        `json:"genre_ids"`
	Genres        []models.Genre `json:"genres"`
}

func (p itemPayload) toCatalogItem(mediaType models.MediaType) models.CatalogItem {
	item := models.CatalogItem{
		ID:            p.ID,
		Title:         p.Title,
		OriginalTitle: p.OriginalTitle,
		Overview:      p.Overview,
		ReleaseDate:   p.ReleaseDate,
		Rating:        p.VoteAverage,
		VoteCount:     p.VoteCount,
		Popularity:    p.Popularity,
		PosterPath:    prefixImage(p.PosterPath),
		BackdropPath:  prefixImage(p.BackdropPath),
		GenreIDs:      p.GenreIDs,
		MediaType:     mediaType,
	}
	if mediaType == models.MediaTypeTV {
		item.Title = p.Name
		item.OriginalTitle = p.OriginalName
		item.ReleaseDate = p.FirstAirDate
	}
	// Detail responses carry genre objects instead of genre_ids.
	if len(item.GenreIDs) == 0 && len(p.Genres) > 0 {
		item.GenreIDs = make([]int64, len(p.Genres))
		for i, g := range p.Genres {
			item.GenreIDs[i] = g.ID
		}
	}
	return item
}

func toCatalogItems(payloads []itemPayload, mediaType models.MediaType) []models.CatalogItem {
	items := make([]models.CatalogItem, 0, len(payloads))
	for _, p := range payloads {
		items = append(items, p.toCatalogItem(mediaType))
	}
	return items
}

// prefixImage turns a TMDB image path into a full w500 URL. Paths already
// carrying a scheme pass through unchanged.
func prefixImage(path string) string {
	if path == "" || strings.HasPrefix(path, "http") {
		return path
	}
	return imageBaseURL + path
}

func (c *Client) getJSON(ctx context.Context, path string, values url.Values, v any) error {
	body, err := c.get(ctx, path, values)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, values url.Values) ([]byte, error) {
	apiKey, language, err := c.credentials()
	if err != nil {
		return nil, err
	}

	if values == nil {
		values = url.Values{}
	}
	values.Set("api_key", apiKey)
	values.Set("language", language)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+values.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tmdb api request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &FetchError{
			Endpoint:   path,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(respBody)),
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return body, nil
}
