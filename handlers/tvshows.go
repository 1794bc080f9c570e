package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"suggesterr/models"
	"suggesterr/services/catalog"
	"suggesterr/services/families"
	"suggesterr/services/sonarr"
)

// TVShowsHandler serves the TV catalog and acquisition endpoints.
type TVShowsHandler struct {
	catalog  *catalog.Service
	families *families.Service
	sonarr   *sonarr.Client
}

// NewTVShowsHandler creates a new TV shows handler.
func NewTVShowsHandler(catalogSvc *catalog.Service, familiesSvc *families.Service, sonarrClient *sonarr.Client) *TVShowsHandler {
	return &TVShowsHandler{
		catalog:  catalogSvc,
		families: familiesSvc,
		sonarr:   sonarrClient,
	}
}

// Category serves GET /api/tv-shows/{category}/?page=N.
func (h *TVShowsHandler) Category(w http.ResponseWriter, r *http.Request) {
	serveCatalogPage(w, r, h.catalog, h.families, catalog.PageRequest{
		MediaType: models.MediaTypeTV,
		Category:  catalog.Category(muxVar(r, "category")),
		Page:      queryPage(r),
	})
}

// Search serves GET /api/tv-shows/search/?q=.
func (h *TVShowsHandler) Search(w http.ResponseWriter, r *http.Request) {
	serveCatalogPage(w, r, h.catalog, h.families, catalog.PageRequest{
		MediaType: models.MediaTypeTV,
		Category:  catalog.CategorySearch,
		Query:     strings.TrimSpace(r.URL.Query().Get("q")),
		Page:      queryPage(r),
	})
}

// ByGenre serves GET /api/tv-shows/genre/?genre_id=.
func (h *TVShowsHandler) ByGenre(w http.ResponseWriter, r *http.Request) {
	genreID, err := strconv.ParseInt(r.URL.Query().Get("genre_id"), 10, 64)
	if err != nil || genreID <= 0 {
		writeError(w, http.StatusBadRequest, "invalid genre_id")
		return
	}

	serveCatalogPage(w, r, h.catalog, h.families, catalog.PageRequest{
		MediaType: models.MediaTypeTV,
		Category:  catalog.CategoryByGenre,
		GenreID:   genreID,
		Page:      queryPage(r),
	})
}

// Genres serves GET /api/tv-shows/genres/.
func (h *TVShowsHandler) Genres(w http.ResponseWriter, r *http.Request) {
	genres, err := h.catalog.Genres(r.Context(), models.MediaTypeTV)
	if err != nil {
		writeCatalogError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"genres": genres})
}

// Details serves GET /api/tv-shows/{id}/.
func (h *TVShowsHandler) Details(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	item, err := h.catalog.Details(r.Context(), models.MediaTypeTV, id, activeProfile(r, h.families))
	if err != nil {
		writeCatalogError(w, err)
		return
	}
	if item == nil {
		writeError(w, http.StatusNotFound, "title not found")
		return
	}

	writeJSON(w, http.StatusOK, item)
}

// RequestTVShowBody is the body for POST /api/tv-shows/{id}/request_tv_show/.
type RequestTVShowBody struct {
	Title             string `json:"title"`
	QualityProfileID  int64  `json:"quality_profile_id"`
	Seasons           []int  `json:"seasons"`
	SearchImmediately bool   `json:"search_immediately"`
}

// RequestTVShow serves POST /api/tv-shows/{id}/request_tv_show/: sends the
// series to Sonarr with the chosen seasons monitored.
func (h *TVShowsHandler) RequestTVShow(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var body RequestTVShowBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err := h.sonarr.RequestSeries(r.Context(), body.Title, id, body.QualityProfileID, body.Seasons, body.SearchImmediately)
	if err != nil {
		writeSonarrError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"status": "requested", "tv_show_id": id})
}

// QualityProfiles serves GET /api/tv-shows/quality-profiles/.
func (h *TVShowsHandler) QualityProfiles(w http.ResponseWriter, r *http.Request) {
	profiles, err := h.sonarr.QualityProfiles(r.Context())
	if err != nil {
		writeSonarrError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profiles)
}

func writeSonarrError(w http.ResponseWriter, err error) {
	var sonarrErr *sonarr.APIError
	switch {
	case errors.Is(err, sonarr.ErrQualityProfileRequired), errors.Is(err, sonarr.ErrSeasonsRequired):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, sonarr.ErrNotConfigured):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, sonarr.ErrSeriesNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &sonarrErr):
		log.Printf("[handlers] sonarr request failed: %v", err)
		writeError(w, http.StatusBadGateway, sonarrErr.Error())
	default:
		log.Printf("[handlers] acquisition error: %v", err)
		writeError(w, http.StatusInternalServerError, "acquisition request failed")
	}
}
