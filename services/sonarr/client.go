package sonarr

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
	// ErrNotConfigured is returned when no Sonarr URL or API key is set.
	ErrNotConfigured = errors.New("sonarr is not configured")
	// ErrSeriesNotFound is returned when neither lookup finds a match.
	ErrSeriesNotFound = errors.New("series not found in sonarr lookup")
	// ErrQualityProfileRequired is returned before any network call when
	// the request names no quality profile.
	ErrQualityProfileRequired = errors.New("quality profile is required")
	// ErrSeasonsRequired is returned before any network call when the
	// request names no seasons to monitor.
	ErrSeasonsRequired = errors.New("at least one season is required")
)

const defaultRootFolder = "/tv"

// APIError carries the most specific message Sonarr returned.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("sonarr returned %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("sonarr returned %d", e.StatusCode)
}

// QualityProfile is a Sonarr quality profile.
type QualityProfile struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Season is one season entry on a series.
type Season struct {
	SeasonNumber int  `json:"seasonNumber"`
	Monitored    bool `json:"monitored"`
}

// Series is a Sonarr library or lookup entry.
type Series struct {
	ID        int64    `json:"id,omitempty"`
	Title     string   `json:"title"`
	TitleSlug string   `json:"titleSlug"`
	Year      int      `json:"year"`
	TVDBID    int64    `json:"tvdbId"`
	TMDBID    int64    `json:"tmdbId"`
	Seasons   []Season `json:"seasons"`
	Images    []struct {
		CoverType string `json:"coverType"`
		URL       string `json:"remoteUrl"`
	} `json:"images"`
}

// Client talks to the Sonarr v3 API.
type Client struct {
	httpClient *http.Client

	mu      sync.RWMutex
	baseURL string
	apiKey  string
}

// NewClient creates a Sonarr API client.
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

// Configured reports whether the client can reach a Sonarr instance.
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

// RequestSeries looks up a series and adds it to Sonarr with the given
// seasons monitored. Adding a series Sonarr already has counts as success.
func (c *Client) RequestSeries(ctx context.Context, title string, tmdbID int64, qualityProfileID int64, seasons []int, searchNow bool) error {
	if qualityProfileID <= 0 {
		return ErrQualityProfileRequired
	}
	if len(seasons) == 0 {
		return ErrSeasonsRequired
	}

	series, err := c.lookup(ctx, title, tmdbID)
	if err != nil {
		return err
	}

	rootFolder, err := c.rootFolder(ctx)
	if err != nil {
		rootFolder = defaultRootFolder
	}

	wanted := make(map[int]bool, len(seasons))
	for _, n := range seasons {
		wanted[n] = true
	}
	monitored := series.Seasons
	if len(monitored) == 0 {
		// Lookup gave no season list; build one from the request.
		for n := range wanted {
			monitored = append(monitored, Season{SeasonNumber: n})
		}
	}
	for i := range monitored {
		monitored[i].Monitored = wanted[monitored[i].SeasonNumber]
	}

	payload := map[string]any{
		"title":            series.Title,
		"titleSlug":        series.TitleSlug,
		"year":             series.Year,
		"tvdbId":           series.TVDBID,
		"images":           series.Images,
		"seasons":          monitored,
		"qualityProfileId": qualityProfileID,
		"rootFolderPath":   rootFolder,
		"monitored":        true,
		"addOptions": map[string]any{
			"searchForMissingEpisodes": searchNow,
		},
	}

	_, err = c.do(ctx, http.MethodPost, "/api/v3/series", nil, payload)
	if err != nil {
		var apiErr *APIError
		// SeriesExistsValidator means the series is already in the
		// library; that is success for our purposes.
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusBadRequest &&
			strings.Contains(apiErr.Message, "SeriesExistsValidator") {
			return nil
		}
		return err
	}
	return nil
}

// lookup finds a series by TMDB ID, falling back to a title search when the
// ID lookup comes back empty.
func (c *Client) lookup(ctx context.Context, title string, tmdbID int64) (*Series, error) {
	results, err := c.search(ctx, fmt.Sprintf("tmdb:%d", tmdbID))
	if err != nil {
		return nil, err
	}
	if len(results) == 0 && title != "" {
		results, err = c.search(ctx, title)
		if err != nil {
			return nil, err
		}
	}
	if len(results) == 0 || results[0].Title == "" {
		return nil, ErrSeriesNotFound
	}
	return &results[0], nil
}

func (c *Client) search(ctx context.Context, term string) ([]Series, error) {
	values := url.Values{"term": {term}}
	body, err := c.do(ctx, http.MethodGet, "/api/v3/series/lookup", values, nil)
	if err != nil {
		return nil, err
	}
	var results []Series
	if err := json.Unmarshal(body, &results); err != nil {
		return nil, fmt.Errorf("decode lookup response: %w", err)
	}
	return results, nil
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

// Library returns all series in the Sonarr library.
func (c *Client) Library(ctx context.Context) ([]Series, error) {
	body, err := c.do(ctx, http.MethodGet, "/api/v3/series", nil, nil)
	if err != nil {
		return nil, err
	}
	var series []Series
	if err := json.Unmarshal(body, &series); err != nil {
		return nil, fmt.Errorf("decode library: %w", err)
	}
	return series, nil
}

// LibraryTMDBIDs returns the TMDB IDs present in the library. An
// unconfigured client reports an empty library.
func (c *Client) LibraryTMDBIDs(ctx context.Context) (map[int64]bool, error) {
	if !c.Configured() {
		return map[int64]bool{}, nil
	}
	series, err := c.Library(ctx)
	if err != nil {
		return nil, err
	}
	ids := make(map[int64]bool, len(series))
	for _, s := range series {
		if s.TMDBID != 0 {
			ids[s.TMDBID] = true
		}
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
		return nil, fmt.Errorf("sonarr api request: %w", err)
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
