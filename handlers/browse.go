package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"suggesterr/internal/auth"
	"suggesterr/models"
	"suggesterr/services/catalog"
	"suggesterr/services/families"
	"suggesterr/services/pager"
)

type browseProfileKey struct{}

// BrowseHandler exposes the incremental pager to thin clients: one cursor
// per (account, container) pair, advanced server-side from client-reported
// scroll metrics.
type BrowseHandler struct {
	catalog  *catalog.Service
	families *families.Service
	pager    *pager.Pager

	mu         sync.Mutex
	containers map[string]catalog.PageRequest
}

// NewBrowseHandler creates a browse handler with its own pager.
func NewBrowseHandler(catalogSvc *catalog.Service, familiesSvc *families.Service) *BrowseHandler {
	h := &BrowseHandler{
		catalog:    catalogSvc,
		families:   familiesSvc,
		containers: make(map[string]catalog.PageRequest),
	}
	h.pager = pager.New(h.fetch)
	return h
}

// fetch resolves a container key to its registered page request and serves
// the decorated page. The active profile rides in on the context.
func (h *BrowseHandler) fetch(ctx context.Context, key string, page int) (models.CatalogPage, error) {
	h.mu.Lock()
	req, ok := h.containers[key]
	h.mu.Unlock()
	if !ok {
		return models.CatalogPage{}, catalog.ErrUnknownCategory
	}
	req.Page = page

	result, err := h.catalog.FetchPage(ctx, req)
	if err != nil {
		return models.CatalogPage{}, err
	}

	profile, _ := ctx.Value(browseProfileKey{}).(*models.FamilyProfile)
	return h.catalog.Decorate(ctx, result, profile)
}

// containerKey scopes cursors per account so two parents browsing the same
// row do not share scroll state.
func containerKey(r *http.Request, container string) string {
	return auth.GetAccountID(r) + "/" + container
}

// LoadMoreBody is the body for POST /api/browse/{container}/more/.
type LoadMoreBody struct {
	MediaType models.MediaType    `json:"media_type"`
	Category  catalog.Category    `json:"category"`
	Query     string              `json:"query,omitempty"`
	GenreID   int64               `json:"genre_id,omitempty"`
	Mood      string              `json:"mood,omitempty"`
	Scroll    pager.ScrollMetrics `json:"scroll"`

	// Force skips the scroll-metrics gate and loads unconditionally.
	Force bool `json:"force,omitempty"`
}

// LoadMore serves POST /api/browse/{container}/more/. The server-side pager
// decides whether the metrics warrant a fetch and returns either the
// appended page or a skip marker.
func (h *BrowseHandler) LoadMore(w http.ResponseWriter, r *http.Request) {
	container := muxVar(r, "container")

	var body LoadMoreBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !body.MediaType.Valid() {
		writeError(w, http.StatusBadRequest, "invalid media_type")
		return
	}

	key := containerKey(r, container)
	h.mu.Lock()
	h.containers[key] = catalog.PageRequest{
		MediaType: body.MediaType,
		Category:  body.Category,
		Query:     body.Query,
		GenreID:   body.GenreID,
		Mood:      body.Mood,
	}
	h.mu.Unlock()

	ctx := context.WithValue(r.Context(), browseProfileKey{}, activeProfile(r, h.families))

	var result pager.Result
	var err error
	if body.Force {
		result, err = h.pager.LoadMore(ctx, key)
	} else {
		result, err = h.pager.MaybeLoadMore(ctx, key, body.Scroll)
	}
	if err != nil {
		writeCatalogError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// Reset serves POST /api/browse/{container}/reset/: the container starts
// over from page 1 on its next load.
func (h *BrowseHandler) Reset(w http.ResponseWriter, r *http.Request) {
	key := containerKey(r, muxVar(r, "container"))
	h.pager.Reset(key)

	page, endOfData, _ := h.pager.Cursor(key)
	writeJSON(w, http.StatusOK, map[string]any{"page": page, "end_of_data": endOfData})
}
