package models

import "time"

const (
	// MasterAccountUsername is the default username for the master account.
	MasterAccountUsername = "admin"
)

// Account represents a parent account that owns family profiles.
// Master accounts can manage all profiles and other accounts.
type Account struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"` // bcrypt hash, excluded from JSON API responses (security)
	IsMaster     bool      `json:"isMaster"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// AccountStorage is the internal representation used for file persistence.
// Unlike Account, this includes the password hash for storage.
type AccountStorage struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"passwordHash"` // Included for storage only
	IsMaster     bool      `json:"isMaster"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// ToStorage converts an Account to AccountStorage for persistence.
func (a Account) ToStorage() AccountStorage {
	return AccountStorage{
		ID:           a.ID,
		Username:     a.Username,
		PasswordHash: a.PasswordHash,
		IsMaster:     a.IsMaster,
		CreatedAt:    a.CreatedAt,
		UpdatedAt:    a.UpdatedAt,
	}
}

// ToAccount converts an AccountStorage back to Account.
func (as AccountStorage) ToAccount() Account {
	return Account{
		ID:           as.ID,
		Username:     as.Username,
		PasswordHash: as.PasswordHash,
		IsMaster:     as.IsMaster,
		CreatedAt:    as.CreatedAt,
		UpdatedAt:    as.UpdatedAt,
	}
}
