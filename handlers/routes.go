package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"suggesterr/api"
	"suggesterr/services/families"
	"suggesterr/services/sessions"
	"suggesterr/utils"
)

// Handlers bundles every HTTP handler for route registration.
type Handlers struct {
	Auth     *AuthHandler
	Movies   *MoviesHandler
	TVShows  *TVShowsHandler
	Browse   *BrowseHandler
	Access   *AccessHandler
	Family   *FamilyHandler
	Accounts *AccountsHandler
	Settings *SettingsHandler
	Backup   *BackupHandler
}

// NewRouter builds the full route table. Login is the only endpoint outside
// the session middleware; it is rate limited per client IP instead.
func NewRouter(h Handlers, sessionsSvc *sessions.Service, familiesSvc *families.Service, loginLimiter *api.IPRateLimiter) *mux.Router {
	root := utils.NewRouter()

	root.HandleFunc("/api/auth/login/", api.RateLimitHandlerFunc(loginLimiter, h.Auth.Login)).Methods(http.MethodPost, http.MethodOptions)

	authed := root.PathPrefix("/").Subrouter()
	authed.Use(api.AccountAuthMiddleware(sessionsSvc))
	authed.Use(api.CSRFMiddleware())

	// Session
	authed.HandleFunc("/api/auth/logout/", h.Auth.Logout).Methods(http.MethodPost, http.MethodOptions)
	authed.HandleFunc("/api/auth/me/", h.Auth.Me).Methods(http.MethodGet, http.MethodOptions)
	authed.HandleFunc("/api/auth/refresh/", h.Auth.Refresh).Methods(http.MethodPost, http.MethodOptions)
	authed.HandleFunc("/api/auth/change-password/", h.Auth.ChangePassword).Methods(http.MethodPost, http.MethodOptions)
	authed.HandleFunc("/accounts/switch-profile/{profileID}/", h.Auth.SwitchProfile).Methods(http.MethodPost, http.MethodOptions)
	authed.HandleFunc("/accounts/clear-profile/", h.Auth.ClearProfile).Methods(http.MethodPost, http.MethodOptions)

	// Movies. Numeric ids route to details, everything else is a category.
	authed.HandleFunc("/api/movies/genres/", h.Movies.Genres).Methods(http.MethodGet, http.MethodOptions)
	authed.HandleFunc("/api/movies/search/", h.Movies.Search).Methods(http.MethodGet, http.MethodOptions)
	authed.HandleFunc("/api/movies/genre/", h.Movies.ByGenre).Methods(http.MethodGet, http.MethodOptions)
	authed.HandleFunc("/api/movies/mood/", h.Movies.ByMood).Methods(http.MethodGet, http.MethodOptions)
	authed.HandleFunc("/api/movies/quality-profiles/", h.Movies.QualityProfiles).Methods(http.MethodGet, http.MethodOptions)
	authed.HandleFunc("/api/movies/{id:[0-9]+}/", h.Movies.Details).Methods(http.MethodGet, http.MethodOptions)
	authed.HandleFunc("/api/movies/{id:[0-9]+}/request_movie/", h.Movies.RequestMovie).Methods(http.MethodPost, http.MethodOptions)
	authed.HandleFunc("/api/movies/{category}/", h.Movies.Category).Methods(http.MethodGet, http.MethodOptions)

	// TV shows
	authed.HandleFunc("/api/tv-shows/genres/", h.TVShows.Genres).Methods(http.MethodGet, http.MethodOptions)
	authed.HandleFunc("/api/tv-shows/search/", h.TVShows.Search).Methods(http.MethodGet, http.MethodOptions)
	authed.HandleFunc("/api/tv-shows/genre/", h.TVShows.ByGenre).Methods(http.MethodGet, http.MethodOptions)
	authed.HandleFunc("/api/tv-shows/quality-profiles/", h.TVShows.QualityProfiles).Methods(http.MethodGet, http.MethodOptions)
	authed.HandleFunc("/api/tv-shows/{id:[0-9]+}/", h.TVShows.Details).Methods(http.MethodGet, http.MethodOptions)
	authed.HandleFunc("/api/tv-shows/{id:[0-9]+}/request_tv_show/", h.TVShows.RequestTVShow).Methods(http.MethodPost, http.MethodOptions)
	authed.HandleFunc("/api/tv-shows/{category}/", h.TVShows.Category).Methods(http.MethodGet, http.MethodOptions)

	// Infinite scroll
	authed.HandleFunc("/api/browse/{container}/more/", h.Browse.LoadMore).Methods(http.MethodPost, http.MethodOptions)
	authed.HandleFunc("/api/browse/{container}/reset/", h.Browse.Reset).Methods(http.MethodPost, http.MethodOptions)

	// Viewer-side access flow
	authed.HandleFunc("/accounts/content-access-check/", h.Access.CheckAccess).Methods(http.MethodGet, http.MethodOptions)
	authed.HandleFunc("/accounts/request-content-access/", h.Access.RequestAccess).Methods(http.MethodPost, http.MethodOptions)
	authed.HandleFunc("/accounts/my-content-requests/", h.Access.MyRequests).Methods(http.MethodGet, http.MethodOptions)

	// Parent-side family management
	authed.HandleFunc("/accounts/api/family/profiles/", h.Family.ListProfiles).Methods(http.MethodGet, http.MethodOptions)
	authed.HandleFunc("/accounts/api/family/profiles/", h.Family.CreateProfile).Methods(http.MethodPost)
	authed.HandleFunc("/accounts/api/family/content-requests/pending/", h.Family.PendingRequests).Methods(http.MethodGet, http.MethodOptions)
	authed.HandleFunc("/accounts/api/family/content-requests/bulk_approve/", h.Family.BulkApprove).Methods(http.MethodPost, http.MethodOptions)
	authed.HandleFunc("/accounts/api/family/content-requests/bulk_deny/", h.Family.BulkDeny).Methods(http.MethodPost, http.MethodOptions)
	authed.HandleFunc("/accounts/api/family/content-requests/{requestID}/approve/", h.Family.ApproveRequest).Methods(http.MethodPost, http.MethodOptions)
	authed.HandleFunc("/accounts/api/family/content-requests/{requestID}/deny/", h.Family.DenyRequest).Methods(http.MethodPost, http.MethodOptions)
	authed.HandleFunc("/accounts/api/family/dashboard/", h.Family.Dashboard).Methods(http.MethodGet, http.MethodOptions)

	// Per-profile routes; ownership is checked against the session account.
	profiles := authed.PathPrefix("/accounts/api/family/profiles/{profileID}").Subrouter()
	profiles.Use(api.ProfileOwnershipMiddleware(familiesSvc))
	profiles.HandleFunc("/", h.Family.GetProfile).Methods(http.MethodGet, http.MethodOptions)
	profiles.HandleFunc("/", h.Family.UpdateProfile).Methods(http.MethodPut)
	profiles.HandleFunc("/", h.Family.DeleteProfile).Methods(http.MethodDelete)
	profiles.HandleFunc("/toggle_active/", h.Family.ToggleActive).Methods(http.MethodPost, http.MethodOptions)
	profiles.HandleFunc("/limits/", h.Family.GetLimits).Methods(http.MethodGet, http.MethodOptions)
	profiles.HandleFunc("/limits/", h.Family.UpdateLimits).Methods(http.MethodPut)
	profiles.HandleFunc("/blocks/", h.Family.ListBlocks).Methods(http.MethodGet, http.MethodOptions)
	profiles.HandleFunc("/blocks/", h.Family.BlockContent).Methods(http.MethodPost)
	profiles.HandleFunc("/blocks/", h.Family.UnblockContent).Methods(http.MethodDelete)

	// Master-only administration
	admin := authed.PathPrefix("/api").Subrouter()
	admin.Use(api.MasterOnlyMiddleware())
	admin.HandleFunc("/accounts/", h.Accounts.List).Methods(http.MethodGet, http.MethodOptions)
	admin.HandleFunc("/accounts/", h.Accounts.Create).Methods(http.MethodPost)
	admin.HandleFunc("/accounts/{accountID}/", h.Accounts.Delete).Methods(http.MethodDelete, http.MethodOptions)
	admin.HandleFunc("/accounts/{accountID}/rename/", h.Accounts.Rename).Methods(http.MethodPut, http.MethodOptions)
	admin.HandleFunc("/settings/", h.Settings.Get).Methods(http.MethodGet, http.MethodOptions)
	admin.HandleFunc("/settings/", h.Settings.Update).Methods(http.MethodPut)
	admin.HandleFunc("/backups/", h.Backup.List).Methods(http.MethodGet, http.MethodOptions)
	admin.HandleFunc("/backups/", h.Backup.Create).Methods(http.MethodPost)
	admin.HandleFunc("/backups/cleanup/", h.Backup.Cleanup).Methods(http.MethodPost, http.MethodOptions)
	admin.HandleFunc("/backups/{filename}/", h.Backup.Delete).Methods(http.MethodDelete, http.MethodOptions)
	admin.HandleFunc("/backups/{filename}/download/", h.Backup.Download).Methods(http.MethodGet, http.MethodOptions)
	admin.HandleFunc("/backups/{filename}/restore/", h.Backup.Restore).Methods(http.MethodPost, http.MethodOptions)

	return root
}
