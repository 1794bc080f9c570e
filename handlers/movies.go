package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"suggesterr/internal/auth"
	"suggesterr/models"
	"suggesterr/services/catalog"
	"suggesterr/services/families"
	"suggesterr/services/radarr"
	"suggesterr/services/tmdb"
)

// MoviesHandler serves the movie catalog and acquisition endpoints.
type MoviesHandler struct {
	catalog  *catalog.Service
	families *families.Service
	radarr   *radarr.Client
}

// NewMoviesHandler creates a new movies handler.
func NewMoviesHandler(catalogSvc *catalog.Service, familiesSvc *families.Service, radarrClient *radarr.Client) *MoviesHandler {
	return &MoviesHandler{
		catalog:  catalogSvc,
		families: familiesSvc,
		radarr:   radarrClient,
	}
}

// activeProfile loads the family profile attached to the session, if any.
// A parent browsing without a profile gets nil (unrestricted).
func activeProfile(r *http.Request, familiesSvc *families.Service) *models.FamilyProfile {
	profileID := auth.GetProfileID(r)
	if profileID == "" {
		return nil
	}
	profile, err := familiesSvc.Profile(profileID)
	if err != nil {
		log.Printf("[handlers] failed to load active profile %s: %v", profileID, err)
		return nil
	}
	return profile
}

// serveCatalogPage fetches and decorates one catalog page, mapping errors to
// the response. Shared between the movie and TV handlers.
func serveCatalogPage(w http.ResponseWriter, r *http.Request, catalogSvc *catalog.Service, familiesSvc *families.Service, req catalog.PageRequest) {
	page, err := catalogSvc.FetchPage(r.Context(), req)
	if err != nil {
		writeCatalogError(w, err)
		return
	}

	page, err = catalogSvc.Decorate(r.Context(), page, activeProfile(r, familiesSvc))
	if err != nil {
		writeCatalogError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, page)
}

// writeCatalogError maps catalog and upstream errors to HTTP responses,
// surfacing the most specific upstream text available.
func writeCatalogError(w http.ResponseWriter, err error) {
	var fetchErr *tmdb.FetchError
	switch {
	case errors.Is(err, catalog.ErrUnknownCategory), errors.Is(err, catalog.ErrQueryRequired):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, tmdb.ErrNotFound):
		writeError(w, http.StatusNotFound, "title not found")
	case errors.Is(err, tmdb.ErrNotConfigured):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.As(err, &fetchErr):
		log.Printf("[handlers] upstream fetch failed: %v", err)
		writeError(w, http.StatusBadGateway, fetchErr.Error())
	default:
		log.Printf("[handlers] catalog error: %v", err)
		writeError(w, http.StatusInternalServerError, "catalog fetch failed")
	}
}

// Category serves GET /api/movies/{category}/?page=N.
func (h *MoviesHandler) Category(w http.ResponseWriter, r *http.Request) {
	serveCatalogPage(w, r, h.catalog, h.families, catalog.PageRequest{
		MediaType: models.MediaTypeMovie,
		Category:  catalog.Category(muxVar(r, "category")),
		Page:      queryPage(r),
	})
}

// Search serves GET /api/movies/search/?q=.
func (h *MoviesHandler) Search(w http.ResponseWriter, r *http.Request) {
	serveCatalogPage(w, r, h.catalog, h.families, catalog.PageRequest{
		MediaType: models.MediaTypeMovie,
		Category:  catalog.CategorySearch,
		Query:     strings.TrimSpace(r.URL.Query().Get("q")),
		Page:      queryPage(r),
	})
}

// ByGenre serves GET /api/movies/genre/?genre_id=.
func (h *MoviesHandler) ByGenre(w http.ResponseWriter, r *http.Request) {
	genreID, err := strconv.ParseInt(r.URL.Query().Get("genre_id"), 10, 64)
	if err != nil || genreID <= 0 {
		writeError(w, http.StatusBadRequest, "invalid genre_id")
		return
	}

	serveCatalogPage(w, r, h.catalog, h.families, catalog.PageRequest{
		MediaType: models.MediaTypeMovie,
		Category:  catalog.CategoryByGenre,
		GenreID:   genreID,
		Page:      queryPage(r),
	})
}

// ByMood serves GET /api/movies/mood/?mood=.
func (h *MoviesHandler) ByMood(w http.ResponseWriter, r *http.Request) {
	mood := strings.TrimSpace(r.URL.Query().Get("mood"))
	if _, ok := catalog.MoodGenres(mood); !ok {
		writeError(w, http.StatusBadRequest, "unknown mood")
		return
	}

	serveCatalogPage(w, r, h.catalog, h.families, catalog.PageRequest{
		MediaType: models.MediaTypeMovie,
		Category:  catalog.CategoryMood,
		Mood:      mood,
		Page:      queryPage(r),
	})
}

// Genres serves GET /api/movies/genres/.
func (h *MoviesHandler) Genres(w http.ResponseWriter, r *http.Request) {
	genres, err := h.catalog.Genres(r.Context(), models.MediaTypeMovie)
	if err != nil {
		writeCatalogError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"genres": genres})
}

// Details serves GET /api/movies/{id}/.
func (h *MoviesHandler) Details(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	item, err := h.catalog.Details(r.Context(), models.MediaTypeMovie, id, activeProfile(r, h.families))
	if err != nil {
		writeCatalogError(w, err)
		return
	}
	if item == nil {
		// Filtered out by the active profile's rating ceiling
		writeError(w, http.StatusNotFound, "title not found")
		return
	}

	writeJSON(w, http.StatusOK, item)
}

// RequestMovieBody is the body for POST /api/movies/{id}/request_movie/.
type RequestMovieBody struct {
	QualityProfileID  int64 `json:"quality_profile_id"`
	SearchImmediately bool  `json:"search_immediately"`
}

// RequestMovie serves POST /api/movies/{id}/request_movie/: sends the title
// to Radarr for acquisition. The requested flag flips only after Radarr
// confirms.
func (h *MoviesHandler) RequestMovie(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var body RequestMovieBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err := h.radarr.RequestMovie(r.Context(), id, body.QualityProfileID, body.SearchImmediately)
	if err != nil {
		writeAcquisitionError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"status": "requested", "movie_id": id})
}

// QualityProfiles serves GET /api/movies/quality-profiles/.
func (h *MoviesHandler) QualityProfiles(w http.ResponseWriter, r *http.Request) {
	profiles, err := h.radarr.QualityProfiles(r.Context())
	if err != nil {
		writeAcquisitionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profiles)
}

// writeAcquisitionError maps Radarr/Sonarr errors to HTTP responses.
// Validation sentinels become 400s; backend error text is surfaced verbatim
// when present.
func writeAcquisitionError(w http.ResponseWriter, err error) {
	var radarrErr *radarr.APIError
	switch {
	case errors.Is(err, radarr.ErrQualityProfileRequired):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, radarr.ErrNotConfigured):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, radarr.ErrMovieNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &radarrErr):
		log.Printf("[handlers] radarr request failed: %v", err)
		writeError(w, http.StatusBadGateway, radarrErr.Error())
	default:
		writeSonarrError(w, err)
	}
}
