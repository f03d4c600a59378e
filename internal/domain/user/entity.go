package user

import "time"

// User represents a user entity in the system.
type User struct {
	ID           string    // ID is the random, immutable identifier assigned at registration
	Name         string    // Name is the display name of the user
	Email        string    // Email is the normalized, unique email address of the user
	PasswordHash string    // PasswordHash is the encoded argon2id record, never the plaintext
	CreatedAt    time.Time // CreatedAt is set by storage on insert
	UpdatedAt    time.Time // UpdatedAt is set by storage on insert and update
}

// Public is the projection of a User that may leave the service.
type Public struct {
	ID    string
	Name  string
	Email string
}

// Public returns the public-safe projection of the user.
func (u *User) Public() Public {
	return Public{
		ID:    u.ID,
		Name:  u.Name,
		Email: u.Email,
	}
}
