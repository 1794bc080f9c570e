package sonarr

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(server.URL, "test-key")
}

func lookupResponse() string {
	return `[{
		"title": "Bluey", "titleSlug": "bluey", "year": 2018, "tvdbId": 362085, "tmdbId": 82728,
		"seasons": [
			{"seasonNumber": 1, "monitored": false},
			{"seasonNumber": 2, "monitored": false},
			{"seasonNumber": 3, "monitored": false}
		]
	}]`
}

func TestRequestSeries_MonitorsRequestedSeasonsOnly(t *testing.T) {
	t.Parallel()
	var added struct {
		Seasons []Season `json:"seasons"`
		TVDBID  int64    `json:"tvdbId"`
	}
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v3/series/lookup":
			w.Write([]byte(lookupResponse()))
		case "/api/v3/rootfolder":
			w.Write([]byte(`[{"path": "/data/tv"}]`))
		case "/api/v3/series":
			if err := json.NewDecoder(r.Body).Decode(&added); err != nil {
				t.Errorf("decode add payload: %v", err)
			}
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{"id": 1}`))
		default:
			t.Errorf("unexpected path %q", r.URL.Path)
		}
	})

	if err := client.RequestSeries(context.Background(), "Bluey", 82728, 6, []int{1, 3}, false); err != nil {
		t.Fatalf("RequestSeries failed: %v", err)
	}
	if added.TVDBID != 362085 {
		t.Errorf("expected tvdb id from lookup, got %d", added.TVDBID)
	}

	want := map[int]bool{1: true, 2: false, 3: true}
	for _, season := range added.Seasons {
		if season.Monitored != want[season.SeasonNumber] {
			t.Errorf("season %d monitored = %v, want %v", season.SeasonNumber, season.Monitored, want[season.SeasonNumber])
		}
	}
}

func TestRequestSeries_TitleFallbackLookup(t *testing.T) {
	t.Parallel()
	var terms []string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v3/series/lookup":
			term := r.URL.Query().Get("term")
			terms = append(terms, term)
			if term == "Bluey" {
				w.Write([]byte(lookupResponse()))
			} else {
				w.Write([]byte(`[]`))
			}
		case "/api/v3/rootfolder":
			w.Write([]byte(`[{"path": "/tv"}]`))
		case "/api/v3/series":
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{"id": 1}`))
		}
	})

	if err := client.RequestSeries(context.Background(), "Bluey", 82728, 6, []int{1}, false); err != nil {
		t.Fatalf("RequestSeries failed: %v", err)
	}
	if len(terms) != 2 || terms[0] != "tmdb:82728" || terms[1] != "Bluey" {
		t.Errorf("expected tmdb lookup then title fallback, got %v", terms)
	}
}

func TestRequestSeries_Validation(t *testing.T) {
	t.Parallel()
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("no network call expected, got %s", r.URL.Path)
	})

	if err := client.RequestSeries(context.Background(), "Bluey", 82728, 0, []int{1}, false); !errors.Is(err, ErrQualityProfileRequired) {
		t.Errorf("expected ErrQualityProfileRequired, got %v", err)
	}
	if err := client.RequestSeries(context.Background(), "Bluey", 82728, 6, nil, false); !errors.Is(err, ErrSeasonsRequired) {
		t.Errorf("expected ErrSeasonsRequired, got %v", err)
	}
}

func TestRequestSeries_AlreadyExistsIsSuccess(t *testing.T) {
	t.Parallel()
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v3/series/lookup":
			w.Write([]byte(lookupResponse()))
		case "/api/v3/rootfolder":
			w.Write([]byte(`[{"path": "/tv"}]`))
		case "/api/v3/series":
			http.Error(w, `[{"errorCode": "SeriesExistsValidator", "errorMessage": "This series has already been added"}]`, http.StatusBadRequest)
		}
	})

	if err := client.RequestSeries(context.Background(), "Bluey", 82728, 6, []int{1}, false); err != nil {
		t.Fatalf("expected existing series to count as success, got %v", err)
	}
}

func TestRequestSeries_LookupMiss(t *testing.T) {
	t.Parallel()
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	})

	if err := client.RequestSeries(context.Background(), "Nope", 1, 6, []int{1}, false); !errors.Is(err, ErrSeriesNotFound) {
		t.Fatalf("expected ErrSeriesNotFound, got %v", err)
	}
}
