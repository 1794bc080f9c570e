package database

import (
	"database/sql"
	"fmt"

	"suggesterr/models"
)

// ActivityRepository persists the per-profile activity log shown on the
// parental dashboard.
type ActivityRepository struct {
	db *sql.DB
}

// NewActivityRepository creates a repository backed by the given connection.
func NewActivityRepository(db *sql.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

// Insert appends an activity entry.
func (r *ActivityRepository) Insert(entry *models.ProfileActivity) error {
	_, err := r.db.Exec(`
		INSERT INTO profile_activity (id, profile_id, activity_type, content_type, content_id, description, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.ProfileID, string(entry.Type), string(entry.ContentType),
		entry.ContentID, entry.Description, entry.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert activity: %w", err)
	}
	return nil
}

// Recent returns the newest entries across the given profiles, newest first.
func (r *ActivityRepository) Recent(profileIDs []string, limit int) ([]models.ProfileActivity, error) {
	if len(profileIDs) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT id, profile_id, activity_type, content_type, content_id, description, timestamp
		FROM profile_activity
		WHERE profile_id IN (` + placeholders(len(profileIDs)) + `)
		ORDER BY timestamp DESC LIMIT ?`
	args := make([]any, 0, len(profileIDs)+1)
	for _, id := range profileIDs {
		args = append(args, id)
	}
	args = append(args, limit)

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}
	defer rows.Close()

	var entries []models.ProfileActivity
	for rows.Next() {
		var entry models.ProfileActivity
		var activityType, contentType string
		if err := rows.Scan(&entry.ID, &entry.ProfileID, &activityType, &contentType,
			&entry.ContentID, &entry.Description, &entry.Timestamp); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		entry.Type = models.ActivityType(activityType)
		entry.ContentType = models.MediaType(contentType)
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
