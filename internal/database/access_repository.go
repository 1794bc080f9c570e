package database

import (
	"database/sql"
	"errors"
	"fmt"

	"suggesterr/models"
)

// AccessRepository persists per-title approvals and blocks for profiles.
type AccessRepository struct {
	db *sql.DB
}

// NewAccessRepository creates a repository backed by the given connection.
func NewAccessRepository(db *sql.DB) *AccessRepository {
	return &AccessRepository{db: db}
}

// UpsertApproval stores an approval, replacing any earlier approval for the
// same title so an extended expiry wins.
func (r *AccessRepository) UpsertApproval(a *models.ApprovedContent) error {
	_, err := r.db.Exec(`
		INSERT INTO approved_content (id, profile_id, content_type, content_id, approved_by,
			approval_reason, permanent_access, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (profile_id, content_type, content_id) DO UPDATE SET
			approved_by = excluded.approved_by,
			approval_reason = excluded.approval_reason,
			permanent_access = excluded.permanent_access,
			expires_at = excluded.expires_at,
			created_at = excluded.created_at`,
		a.ID, a.ProfileID, string(a.ContentType), a.ContentID, a.ApprovedBy,
		a.Reason, a.Permanent, a.ExpiresAt, a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert approval: %w", err)
	}
	return nil
}

// GetApproval returns the approval for a title, or nil when none exists.
func (r *AccessRepository) GetApproval(profileID string, contentType models.MediaType, contentID int64) (*models.ApprovedContent, error) {
	row := r.db.QueryRow(`
		SELECT id, profile_id, content_type, content_id, approved_by, approval_reason,
			permanent_access, expires_at, created_at
		FROM approved_content
		WHERE profile_id = ? AND content_type = ? AND content_id = ?`,
		profileID, string(contentType), contentID)

	var a models.ApprovedContent
	var contentTypeCol string
	err := row.Scan(&a.ID, &a.ProfileID, &contentTypeCol, &a.ContentID, &a.ApprovedBy,
		&a.Reason, &a.Permanent, &a.ExpiresAt, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get approval: %w", err)
	}
	a.ContentType = models.MediaType(contentTypeCol)
	return &a, nil
}

// InsertBlock records an explicit block. Blocking an already blocked title is
// a no-op.
func (r *AccessRepository) InsertBlock(b *models.ContentBlock) error {
	_, err := r.db.Exec(`
		INSERT INTO content_blocks (id, profile_id, content_type, content_id, reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (profile_id, content_type, content_id) DO UPDATE SET
			reason = excluded.reason`,
		b.ID, b.ProfileID, string(b.ContentType), b.ContentID, b.Reason, b.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert block: %w", err)
	}
	return nil
}

// DeleteBlock removes a block and reports whether one existed.
func (r *AccessRepository) DeleteBlock(profileID string, contentType models.MediaType, contentID int64) (bool, error) {
	res, err := r.db.Exec(`DELETE FROM content_blocks
		WHERE profile_id = ? AND content_type = ? AND content_id = ?`,
		profileID, string(contentType), contentID)
	if err != nil {
		return false, fmt.Errorf("delete block: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete block: %w", err)
	}
	return n > 0, nil
}

// IsBlocked reports whether the title is explicitly blocked for the profile.
func (r *AccessRepository) IsBlocked(profileID string, contentType models.MediaType, contentID int64) (bool, error) {
	var n int
	err := r.db.QueryRow(`SELECT COUNT(1) FROM content_blocks
		WHERE profile_id = ? AND content_type = ? AND content_id = ?`,
		profileID, string(contentType), contentID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check block: %w", err)
	}
	return n > 0, nil
}

// ListBlocks returns all blocks for a profile, newest first.
func (r *AccessRepository) ListBlocks(profileID string) ([]models.ContentBlock, error) {
	rows, err := r.db.Query(`
		SELECT id, profile_id, content_type, content_id, reason, created_at
		FROM content_blocks WHERE profile_id = ? ORDER BY created_at DESC`, profileID)
	if err != nil {
		return nil, fmt.Errorf("list blocks: %w", err)
	}
	defer rows.Close()

	var blocks []models.ContentBlock
	for rows.Next() {
		var b models.ContentBlock
		var contentType string
		if err := rows.Scan(&b.ID, &b.ProfileID, &contentType, &b.ContentID, &b.Reason, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan block: %w", err)
		}
		b.ContentType = models.MediaType(contentType)
		blocks = append(blocks, b)
	}
	return blocks, rows.Err()
}
