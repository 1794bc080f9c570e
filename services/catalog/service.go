package catalog

import (
	"context"
	"errors"
	"fmt"

	"suggesterr/models"
	"suggesterr/services/tmdb"
)

// Category names a catalog row on the browse screen.
type Category string

const (
	CategoryPopular     Category = "popular"
	CategoryTopRated    Category = "top_rated"
	CategoryNowPlaying  Category = "now_playing"
	CategoryUpcoming    Category = "upcoming"
	CategoryAiringToday Category = "airing_today"
	CategoryOnTheAir    Category = "on_the_air"
	CategoryByGenre     Category = "by_genre"
	CategorySearch      Category = "search"
	CategoryMood        Category = "mood"
	CategoryAIPicks     Category = "ai_recommendations"
)

// ErrUnknownCategory is returned for category names the dispatcher does not
// recognize for the requested media type.
var ErrUnknownCategory = errors.New("unknown catalog category")

// ErrQueryRequired is returned for search requests without a query.
var ErrQueryRequired = errors.New("search query required")

// moodGenres maps a browsing mood to TMDB movie genre IDs.
var moodGenres = map[string][]int64{
	"happy":      {35, 10751},
	"sad":        {18},
	"excited":    {28, 12, 53},
	"scared":     {27, 9648},
	"romantic":   {10749},
	"thoughtful": {99, 36},
	"relaxed":    {16, 10402},
}

// MoodGenres returns the genre IDs behind a mood, if the mood is known.
func MoodGenres(mood string) ([]int64, bool) {
	genres, ok := moodGenres[mood]
	return genres, ok
}

// PageRequest describes one catalog page fetch.
type PageRequest struct {
	MediaType models.MediaType
	Category  Category
	Page      int

	// Query applies to CategorySearch.
	Query string
	// GenreID applies to CategoryByGenre.
	GenreID int64
	// Mood applies to CategoryMood.
	Mood string
}

// Service dispatches catalog fetches to TMDB and decorates the results for
// the active profile.
type Service struct {
	tmdb     *tmdb.Service
	requests RequestMarker
	movies   LibraryChecker
	shows    LibraryChecker
}

// RequestMarker reports which titles a profile has open or approved
// requests for.
type RequestMarker interface {
	RequestedSet(profileID string, mediaType models.MediaType) (map[int64]bool, error)
}

// LibraryChecker reports which TMDB IDs are already in the media library.
type LibraryChecker interface {
	LibraryTMDBIDs(ctx context.Context) (map[int64]bool, error)
}

// NewService creates the catalog service. requests, movies and shows may be
// nil; decoration skips what it cannot answer.
func NewService(tmdbService *tmdb.Service, requests RequestMarker, movies, shows LibraryChecker) *Service {
	return &Service{
		tmdb:     tmdbService,
		requests: requests,
		movies:   movies,
		shows:    shows,
	}
}

// FetchPage fetches one catalog page. It mutates no state; callers own
// cursoring and appending.
func (s *Service) FetchPage(ctx context.Context, req PageRequest) (models.CatalogPage, error) {
	if !req.MediaType.Valid() {
		return models.CatalogPage{}, fmt.Errorf("%w: media type %q", ErrUnknownCategory, req.MediaType)
	}

	client := s.tmdb.Client()
	switch req.Category {
	case CategoryPopular, CategoryTopRated:
		if req.MediaType == models.MediaTypeMovie {
			return client.MovieCategory(ctx, string(req.Category), req.Page)
		}
		return client.TVCategory(ctx, string(req.Category), req.Page)

	case CategoryNowPlaying, CategoryUpcoming:
		if req.MediaType != models.MediaTypeMovie {
			return models.CatalogPage{}, fmt.Errorf("%w: %s for tv", ErrUnknownCategory, req.Category)
		}
		return client.MovieCategory(ctx, string(req.Category), req.Page)

	case CategoryAiringToday, CategoryOnTheAir:
		if req.MediaType != models.MediaTypeTV {
			return models.CatalogPage{}, fmt.Errorf("%w: %s for movies", ErrUnknownCategory, req.Category)
		}
		return client.TVCategory(ctx, string(req.Category), req.Page)

	case CategorySearch:
		if req.Query == "" {
			return models.CatalogPage{}, ErrQueryRequired
		}
		if req.MediaType == models.MediaTypeMovie {
			return client.SearchMovies(ctx, req.Query, req.Page)
		}
		return client.SearchTV(ctx, req.Query, req.Page)

	case CategoryByGenre:
		opts := tmdb.DiscoverOptions{GenreIDs: []int64{req.GenreID}, Page: req.Page}
		if req.MediaType == models.MediaTypeMovie {
			return client.DiscoverMovies(ctx, opts)
		}
		return client.DiscoverTV(ctx, opts)

	case CategoryMood:
		if req.MediaType != models.MediaTypeMovie {
			return models.CatalogPage{}, fmt.Errorf("%w: mood browsing is movie-only", ErrUnknownCategory)
		}
		genres, ok := MoodGenres(req.Mood)
		if !ok {
			return models.CatalogPage{}, fmt.Errorf("%w: mood %q", ErrUnknownCategory, req.Mood)
		}
		return client.DiscoverMovies(ctx, tmdb.DiscoverOptions{GenreIDs: genres, Page: req.Page})

	case CategoryAIPicks:
		return s.aiPicks(ctx, req.MediaType)

	default:
		return models.CatalogPage{}, fmt.Errorf("%w: %q", ErrUnknownCategory, req.Category)
	}
}

// aiPicks serves a single curated page of widely loved titles. The row is
// one-shot: TotalPages is 1 so pagers stop after the first fetch.
func (s *Service) aiPicks(ctx context.Context, mediaType models.MediaType) (models.CatalogPage, error) {
	opts := tmdb.DiscoverOptions{
		SortBy:       "vote_average.desc",
		VoteCountGTE: 1000,
		Page:         1,
	}
	var page models.CatalogPage
	var err error
	if mediaType == models.MediaTypeMovie {
		page, err = s.tmdb.Client().DiscoverMovies(ctx, opts)
	} else {
		page, err = s.tmdb.Client().DiscoverTV(ctx, opts)
	}
	if err != nil {
		return models.CatalogPage{}, err
	}
	page.Page = 1
	page.TotalPages = 1
	return page, nil
}

// Genres returns the genre list for a media type.
func (s *Service) Genres(ctx context.Context, mediaType models.MediaType) ([]models.Genre, error) {
	return s.tmdb.Genres(ctx, mediaType)
}

// Details returns decorated details for one title.
func (s *Service) Details(ctx context.Context, mediaType models.MediaType, id int64, profile *models.FamilyProfile) (*models.CatalogItem, error) {
	item, err := s.tmdb.Details(ctx, mediaType, id)
	if err != nil {
		return nil, err
	}
	page := models.CatalogPage{Items: []models.CatalogItem{*item}, Page: 1, TotalPages: 1}
	decorated, err := s.Decorate(ctx, page, profile)
	if err != nil {
		return nil, err
	}
	if len(decorated.Items) == 0 {
		// Filtered out by the profile's rating ceiling.
		return nil, nil
	}
	return &decorated.Items[0], nil
}
