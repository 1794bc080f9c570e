package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"suggesterr/internal/auth"
	"suggesterr/services/families"
	"suggesterr/services/sessions"
)

// Re-export from auth package for handler convenience
var (
	GetAccountID = auth.GetAccountID
	IsMaster     = auth.IsMaster
	GetProfileID = auth.GetProfileID
)

// AccountAuthMiddleware creates middleware that validates session tokens.
// Tokens can be provided via Authorization header or session cookie. The
// session's active profile ID, if any, is injected into the request context
// so downstream handlers apply profile-scoped filtering.
func AccountAuthMiddleware(sessionsSvc *sessions.Service) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Always allow OPTIONS for CORS
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			token := extractToken(r)
			if token == "" {
				writeAuthError(w, http.StatusUnauthorized, "authentication required")
				return
			}

			if sessionsSvc == nil {
				writeAuthError(w, http.StatusInternalServerError, "session service unavailable")
				return
			}

			session, err := sessionsSvc.Validate(token)
			if err != nil {
				writeAuthError(w, http.StatusUnauthorized, "invalid or expired session")
				return
			}

			ctx := context.WithValue(r.Context(), auth.ContextKeyAccountID, session.AccountID)
			ctx = context.WithValue(ctx, auth.ContextKeyIsMaster, session.IsMaster)
			ctx = context.WithValue(ctx, auth.ContextKeySession, session)
			ctx = context.WithValue(ctx, auth.ContextKeyProfileID, session.ActiveProfileID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// MasterOnlyMiddleware creates middleware that only allows master accounts.
func MasterOnlyMiddleware() mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			if !IsMaster(r) {
				writeAuthError(w, http.StatusForbidden, "master account required")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ProfileOwnershipMiddleware creates middleware that verifies family profile
// ownership for routes carrying a {profileID} variable. Master accounts can
// access any profile; regular accounts only their own.
func ProfileOwnershipMiddleware(familiesSvc *families.Service) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			if IsMaster(r) {
				next.ServeHTTP(w, r)
				return
			}

			vars := mux.Vars(r)
			profileID := vars["profileID"]
			if profileID == "" {
				next.ServeHTTP(w, r)
				return
			}

			accountID := GetAccountID(r)
			if !familiesSvc.OwnedBy(profileID, accountID) {
				// 404 rather than 403 so profile IDs are not enumerable
				writeAuthError(w, http.StatusNotFound, "profile not found")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func writeAuthError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// extractToken extracts the session token from the request.
// Priority: Authorization header > session cookie.
func extractToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			if token := strings.TrimSpace(parts[1]); token != "" {
				return token
			}
		}
	}

	if cookie, err := r.Cookie("suggesterr_session"); err == nil {
		if token := strings.TrimSpace(cookie.Value); token != "" {
			return token
		}
	}

	return ""
}
