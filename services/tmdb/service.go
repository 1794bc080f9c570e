package tmdb

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/avast/retry-go/v4"

	"suggesterr/models"
)

// Service wraps the TMDB client with a file cache for slow-moving metadata
// (genres, details, certifications). Catalog list pages are never cached so
// new releases show up immediately.
type Service struct {
	client *Client
	cache  *fileCache
}

// NewService creates the TMDB service. cacheDir holds the metadata cache.
func NewService(client *Client, cacheDir string, cacheTTLHours int) *Service {
	if cacheTTLHours <= 0 {
		cacheTTLHours = 24
	}
	return &Service{
		client: client,
		cache:  newFileCache(cacheDir, cacheTTLHours),
	}
}

// Client returns the underlying TMDB client for uncached list fetches.
func (s *Service) Client() *Client {
	return s.client
}

// UpdateSettings swaps credentials and wipes the metadata cache so nothing
// fetched under the old key is served.
func (s *Service) UpdateSettings(apiKey, language string) {
	s.client.UpdateSettings(apiKey, language)
	if err := s.cache.clear(); err != nil {
		log.Printf("[tmdb] failed to clear metadata cache: %v", err)
	}
}

// Genres returns the genre list for a media type, cached on disk.
func (s *Service) Genres(ctx context.Context, mediaType models.MediaType) ([]models.Genre, error) {
	key := "genres_" + string(mediaType)
	var genres []models.Genre
	if ok, _ := s.cache.get(key, &genres); ok {
		return genres, nil
	}

	genres, err := s.client.Genres(ctx, mediaType)
	if err != nil {
		return nil, err
	}
	if err := s.cache.set(key, genres); err != nil {
		log.Printf("[tmdb] failed to cache genres: %v", err)
	}
	return genres, nil
}

// Details returns full details for a title, cached on disk.
func (s *Service) Details(ctx context.Context, mediaType models.MediaType, id int64) (*models.CatalogItem, error) {
	key := fmt.Sprintf("details_%s_%d", mediaType, id)
	var cached models.CatalogItem
	if ok, _ := s.cache.get(key, &cached); ok {
		return &cached, nil
	}

	var item *models.CatalogItem
	var err error
	if mediaType == models.MediaTypeMovie {
		item, err = s.client.MovieDetails(ctx, id)
	} else {
		item, err = s.client.TVDetails(ctx, id)
	}
	if err != nil {
		return nil, err
	}

	cert, err := s.Certification(ctx, mediaType, id)
	if err != nil {
		// A title without a rating is still viewable; the rating gate
		// treats it as unrated.
		log.Printf("[tmdb] certification lookup failed for %s %d: %v", mediaType, id, err)
	}
	item.Certification = cert

	if err := s.cache.set(key, item); err != nil {
		log.Printf("[tmdb] failed to cache details: %v", err)
	}
	return item, nil
}

// Certification returns the US rating of a title, cached on disk. Unrated
// titles cache an empty string.
func (s *Service) Certification(ctx context.Context, mediaType models.MediaType, id int64) (string, error) {
	key := fmt.Sprintf("cert_%s_%d", mediaType, id)
	var cert string
	if ok, _ := s.cache.get(key, &cert); ok {
		return cert, nil
	}

	var err error
	if mediaType == models.MediaTypeMovie {
		cert, err = s.client.MovieCertification(ctx, id)
	} else {
		cert, err = s.client.TVCertification(ctx, id)
	}
	if err != nil {
		return "", err
	}
	if err := s.cache.set(key, cert); err != nil {
		log.Printf("[tmdb] failed to cache certification: %v", err)
	}
	return cert, nil
}

// WarmGenres pre-fetches both genre lists at startup. TMDB is occasionally
// slow right after boot on flaky networks, so this retries with backoff;
// failure is logged and not fatal since Genres fetches lazily too.
func (s *Service) WarmGenres(ctx context.Context) {
	for _, mediaType := range []models.MediaType{models.MediaTypeMovie, models.MediaTypeTV} {
		mediaType := mediaType
		err := retry.Do(
			func() error {
				_, err := s.Genres(ctx, mediaType)
				return err
			},
			retry.Context(ctx),
			retry.Attempts(3),
			retry.Delay(2*time.Second),
			retry.DelayType(retry.BackOffDelay),
			retry.RetryIf(func(err error) bool {
				return !errors.Is(err, ErrNotConfigured)
			}),
			retry.LastErrorOnly(true),
		)
		if err != nil {
			log.Printf("[tmdb] genre warm-up for %s failed: %v", mediaType, err)
		}
	}
}
