package radarr

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

var (
	// ErrNotConfigured is returned when no Radarr URL or API key is set.
	ErrNotConfigured = errors.New("radarr is not configured")
	// ErrMovieNotFound is returned when the lookup finds no match.
	ErrMovieNotFound = errors.New("movie not found in radarr lookup")
	// ErrQualityProfileRequired is returned before any network call when
	// the request names no quality profile.
	ErrQualityProfileRequired = errors.New("quality profile is required")
)

const defaultRootFolder = "/movies"

// APIError carries the most specific message Radarr returned.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("radarr returned %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("radarr returned %d", e.StatusCode)
}

// QualityProfile is a Radarr quality profile.
type QualityProfile struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Movie is a Radarr library or lookup entry.
type Movie struct {
	ID        int64  `json:"id,omitempty"`
	Title     string `json:"title"`
	TitleSlug string `json:"titleSlug"`
	Year      int    `json:"year"`
	TMDBID    int64  `json:"tmdbId"`
	HasFile   bool   `json:"hasFile"`
	Images    []struct {
		CoverType string `json:"coverType"`
		URL       string `json:"remoteUrl"`
	} `json:"images"`
}

// Client talks to the Radarr v3 API.
type Client struct {
	httpClient *http.Client

	mu      sync.RWMutex
	baseURL string
	apiKey  string
}

// NewClient creates a Radarr API client.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
	}
}

// UpdateSettings swaps the URL and API key for subsequent requests.
func (c *Client) UpdateSettings(baseURL, apiKey string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.baseURL = strings.TrimRight(baseURL, "/")
	c.apiKey = apiKey
}

// Configured reports whether the client can reach a Radarr instance.
func (c *Client) Configured() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.baseURL != "" && c.apiKey != ""
}

func (c *Client) endpoint() (baseURL, apiKey string, err error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.baseURL == "" || c.apiKey == "" {
		return "", "", ErrNotConfigured
	}
	return c.baseURL, c.apiKey, nil
}

// RequestMovie looks up a movie by TMDB ID and adds it to Radarr. Adding a
// movie Radarr already has counts as success.
func (c *Client) RequestMovie(ctx context.Context, tmdbID int64, qualityProfileID int64, searchNow bool) error {
	if qualityProfileID <= 0 {
		return ErrQualityProfileRequired
	}

	movie, err := c.lookup(ctx, tmdbID)
	if err != nil {
		return err
	}

	rootFolder, err := c.rootFolder(ctx)
	if err != nil {
		rootFolder = defaultRootFolder
	}

	payload := map[string]any{
		"title":            movie.Title,
		"titleSlug":        movie.TitleSlug,
		"year":             movie.Year,
		"tmdbId":           movie.TMDBID,
		"images":           movie.Images,
		"qualityProfileId": qualityProfileID,
		"rootFolderPath":   rootFolder,
		"monitored":        true,
		"addOptions": map[string]any{
			"searchForMovie": searchNow,
		},
	}

	_, err = c.do(ctx, http.MethodPost, "/api/v3/movie", nil, payload)
	if err != nil {
		var apiErr *APIError
		// Radarr answers 400 with MovieExistsValidator when the movie is
		// already in the library; that is success for our purposes.
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusBadRequest &&
			strings.Contains(apiErr.Message, "MovieExistsValidator") {
			return nil
		}
		return err
	}
	return nil
}

func (c *Client) lookup(ctx context.Context, tmdbID int64) (*Movie, error) {
	values := url.Values{"term": {fmt.Sprintf("tmdb:%d", tmdbID)}}
	body, err := c.do(ctx, http.MethodGet, "/api/v3/movie/lookup", values, nil)
	if err != nil {
		return nil, err
	}

	var results []Movie
	if err := json.Unmarshal(body, &results); err != nil {
		return nil, fmt.Errorf("decode lookup response: %w", err)
	}
	if len(results) == 0 || results[0].Title == "" {
		return nil, ErrMovieNotFound
	}
	return &results[0], nil
}

func (c *Client) rootFolder(ctx context.Context) (string, error) {
	body, err := c.do(ctx, http.MethodGet, "/api/v3/rootfolder", nil, nil)
	if err != nil {
		return "", err
	}
	var folders []struct {
		Path string `json:"path"`
	}
	if err := json.Unmarshal(body, &folders); err != nil {
		return "", fmt.Errorf("decode rootfolder response: %w", err)
	}
	if len(folders) == 0 || folders[0].Path == "" {
		return "", errors.New("no root folders configured")
	}
	return folders[0].Path, nil
}

// QualityProfiles returns the configured quality profiles.
func (c *Client) QualityProfiles(ctx context.Context) ([]QualityProfile, error) {
	body, err := c.do(ctx, http.MethodGet, "/api/v3/qualityprofile", nil, nil)
	if err != nil {
		return nil, err
	}
	var profiles []QualityProfile
	if err := json.Unmarshal(body, &profiles); err != nil {
		return nil, fmt.Errorf("decode quality profiles: %w", err)
	}
	return profiles, nil
}

// Library returns all movies in the Radarr library.
func (c *Client) Library(ctx context.Context) ([]Movie, error) {
	body, err := c.do(ctx, http.MethodGet, "/api/v3/movie", nil, nil)
	if err != nil {
		return nil, err
	}
	var movies []Movie
	if err := json.Unmarshal(body, &movies); err != nil {
		return nil, fmt.Errorf("decode library: %w", err)
	}
	return movies, nil
}

// LibraryTMDBIDs returns the TMDB IDs present in the library. An
// unconfigured client reports an empty library.
func (c *Client) LibraryTMDBIDs(ctx context.Context) (map[int64]bool, error) {
	if !c.Configured() {
		return map[int64]bool{}, nil
	}
	movies, err := c.Library(ctx)
	if err != nil {
		return nil, err
	}
	ids := make(map[int64]bool, len(movies))
	for _, m := range movies {
		ids[m.TMDBID] = true
	}
	return ids, nil
}

func (c *Client) do(ctx context.Context, method, path string, values url.Values, payload any) ([]byte, error) {
	baseURL, apiKey, err := c.endpoint()
	if err != nil {
		return nil, err
	}

	requestURL := baseURL + path
	if len(values) > 0 {
		requestURL += "?" + values.Encode()
	}

	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, requestURL, reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("X-Api-Key", apiKey)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("radarr api request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	}
	return body, nil
}
