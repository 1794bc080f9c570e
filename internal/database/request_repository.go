package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"suggesterr/models"
)

// RequestRepository persists content requests.
type RequestRepository struct {
	db *sql.DB
}

// NewRequestRepository creates a repository backed by the given connection.
func NewRequestRepository(db *sql.DB) *RequestRepository {
	return &RequestRepository{db: db}
}

const requestColumns = `id, profile_id, movie_id, tv_show_id, content_title, request_message,
	status, parent_response, reviewed_by, reviewed_at, temporary_access, access_expires_at,
	created_at, updated_at`

// Insert stores a new request.
func (r *RequestRepository) Insert(req *models.ContentRequest) error {
	_, err := r.db.Exec(`
		INSERT INTO content_requests (`+requestColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		req.ID, req.ProfileID, req.MovieID, req.TVShowID, req.Title, req.Message,
		string(req.Status), req.Response, req.ReviewedBy, req.ReviewedAt,
		req.Temporary, req.AccessUntil, req.CreatedAt, req.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert request: %w", err)
	}
	return nil
}

// Get returns a request by ID, or nil when it does not exist.
func (r *RequestRepository) Get(id string) (*models.ContentRequest, error) {
	row := r.db.QueryRow(`SELECT `+requestColumns+` FROM content_requests WHERE id = ?`, id)
	req, err := scanRequest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get request: %w", err)
	}
	return req, nil
}

// Update rewrites the mutable fields of a request.
func (r *RequestRepository) Update(req *models.ContentRequest) error {
	res, err := r.db.Exec(`
		UPDATE content_requests
		SET status = ?, parent_response = ?, reviewed_by = ?, reviewed_at = ?,
			temporary_access = ?, access_expires_at = ?, updated_at = ?
		WHERE id = ?`,
		string(req.Status), req.Response, req.ReviewedBy, req.ReviewedAt,
		req.Temporary, req.AccessUntil, req.UpdatedAt, req.ID,
	)
	if err != nil {
		return fmt.Errorf("update request: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update request: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("update request: no row with id %s", req.ID)
	}
	return nil
}

// ListByProfile returns a profile's requests, newest first.
func (r *RequestRepository) ListByProfile(profileID string) ([]models.ContentRequest, error) {
	return r.list(`SELECT `+requestColumns+` FROM content_requests
		WHERE profile_id = ? ORDER BY created_at DESC`, profileID)
}

// ListPendingForProfiles returns pending requests across the given profiles,
// oldest first so parents review in arrival order.
func (r *RequestRepository) ListPendingForProfiles(profileIDs []string) ([]models.ContentRequest, error) {
	if len(profileIDs) == 0 {
		return nil, nil
	}
	query := `SELECT ` + requestColumns + ` FROM content_requests
		WHERE status = 'pending' AND profile_id IN (` + placeholders(len(profileIDs)) + `)
		ORDER BY created_at ASC`
	args := make([]any, len(profileIDs))
	for i, id := range profileIDs {
		args[i] = id
	}
	return r.list(query, args...)
}

// PendingExists reports whether the profile already has a pending request for
// the same title.
func (r *RequestRepository) PendingExists(profileID string, contentType models.MediaType, contentID int64) (bool, error) {
	column := "movie_id"
	if contentType == models.MediaTypeTV {
		column = "tv_show_id"
	}
	var exists int
	err := r.db.QueryRow(`SELECT COUNT(1) FROM content_requests
		WHERE profile_id = ? AND status = 'pending' AND `+column+` = ?`,
		profileID, contentID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check pending request: %w", err)
	}
	return exists > 0, nil
}

// CountSince counts a profile's requests created at or after the cutoff.
// Used to enforce daily/weekly/monthly quotas.
func (r *RequestRepository) CountSince(profileID string, since time.Time) (int, error) {
	var n int
	err := r.db.QueryRow(`SELECT COUNT(1) FROM content_requests
		WHERE profile_id = ? AND created_at >= ?`, profileID, since).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count requests: %w", err)
	}
	return n, nil
}

// CountByStatus returns request counts per status across the given profiles.
func (r *RequestRepository) CountByStatus(profileIDs []string) (map[models.RequestStatus]int, error) {
	counts := make(map[models.RequestStatus]int)
	if len(profileIDs) == 0 {
		return counts, nil
	}
	query := `SELECT status, COUNT(1) FROM content_requests
		WHERE profile_id IN (` + placeholders(len(profileIDs)) + `) GROUP BY status`
	args := make([]any, len(profileIDs))
	for i, id := range profileIDs {
		args[i] = id
	}
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("count requests by status: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan request count: %w", err)
		}
		counts[models.RequestStatus(status)] = n
	}
	return counts, rows.Err()
}

func (r *RequestRepository) list(query string, args ...any) ([]models.ContentRequest, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	defer rows.Close()

	var requests []models.ContentRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan request: %w", err)
		}
		requests = append(requests, *req)
	}
	return requests, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (*models.ContentRequest, error) {
	var req models.ContentRequest
	var status string
	err := row.Scan(
		&req.ID, &req.ProfileID, &req.MovieID, &req.TVShowID, &req.Title, &req.Message,
		&status, &req.Response, &req.ReviewedBy, &req.ReviewedAt,
		&req.Temporary, &req.AccessUntil, &req.CreatedAt, &req.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	req.Status = models.RequestStatus(status)
	return &req, nil
}

func placeholders(n int) string {
	out := make([]byte, 0, n*2)
	for i := 0; i < n; i++ {
		if i > 0 {
			out = append(out, ',')
		}
		out = append(out, '?')
	}
	return string(out)
}
