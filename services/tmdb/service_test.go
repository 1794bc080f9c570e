package tmdb

import (
	"context"
	"net/http"
	"sync/atomic"
	"testing"

	"suggesterr/models"
)

func TestService_GenresCached(t *testing.T) {
	t.Parallel()
	var calls atomic.Int64
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`{"genres": [{"id": 35, "name": "Comedy"}]}`))
	})
	svc := NewService(client, t.TempDir(), 24)

	for i := 0; i < 3; i++ {
		genres, err := svc.Genres(context.Background(), models.MediaTypeMovie)
		if err != nil {
			t.Fatalf("Genres failed: %v", err)
		}
		if len(genres) != 1 || genres[0].Name != "Comedy" {
			t.Fatalf("unexpected genres: %+v", genres)
		}
	}

	if calls.Load() != 1 {
		t.Errorf("expected 1 upstream call, got %d", calls.Load())
	}
}

func TestService_UpdateSettingsClearsCache(t *testing.T) {
	t.Parallel()
	var calls atomic.Int64
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`{"genres": []}`))
	})
	svc := NewService(client, t.TempDir(), 24)

	if _, err := svc.Genres(context.Background(), models.MediaTypeMovie); err != nil {
		t.Fatalf("Genres failed: %v", err)
	}
	svc.UpdateSettings("new-key", "en-US")
	if _, err := svc.Genres(context.Background(), models.MediaTypeMovie); err != nil {
		t.Fatalf("Genres failed: %v", err)
	}

	if calls.Load() != 2 {
		t.Errorf("expected cache wipe to force refetch, got %d calls", calls.Load())
	}
}

func TestService_DetailsIncludesCertification(t *testing.T) {
	t.Parallel()
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/movie/603":
			w.Write([]byte(`{"id": 603, "title": "The Matrix", "genres": [{"id": 28, "name": "Action"}]}`))
		case "/movie/603/release_dates":
			w.Write([]byte(`{"results": [{"iso_3166_1": "US", "release_dates": [{"certification": "R"}]}]}`))
		default:
			t.Errorf("unexpected path %q", r.URL.Path)
			http.NotFound(w, r)
		}
	})
	svc := NewService(client, t.TempDir(), 24)

	item, err := svc.Details(context.Background(), models.MediaTypeMovie, 603)
	if err != nil {
		t.Fatalf("Details failed: %v", err)
	}
	if item.Certification != "R" {
		t.Errorf("expected certification R, got %q", item.Certification)
	}
	if len(item.GenreIDs) != 1 || item.GenreIDs[0] != 28 {
		t.Errorf("expected genre IDs from detail genres, got %v", item.GenreIDs)
	}
}
