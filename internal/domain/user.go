package domain

import "time"

// User is a member account.
type User struct {
	Syncable
	Name         string `json:"name"`
	Username     string `json:"username"`
	Email        string `json:"email"`
	Title        string `json:"title"`
	Bio          string `json:"bio"`
	PhotoID      string `json:"photo_id,omitempty"`
	PhotoURL     string `json:"photo_url,omitempty"`
	PasswordHash string `json:"-"`
}

// AuthProviderLocal is the provider recorded for password accounts.
const AuthProviderLocal = "local"

// UserAuth links a user to an identity provider account.
type UserAuth struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	Provider   string    `json:"provider"`
	ProviderID string    `json:"provider_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// UserEmail is an address registered to a user.
type UserEmail struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	IsPrimary bool      `json:"is_primary"`
	CreatedAt time.Time `json:"created_at"`
}

// Session is a refresh-token session kept in the KV store.
type Session struct {
	ID               string    `json:"id"`
	UserID           string    `json:"user_id"`
	RefreshTokenHash string    `json:"refresh_token_hash,omitempty"`
	ExpiresAt        time.Time `json:"expires_at"`
	CreatedAt        time.Time `json:"created_at"`
	LastSeenAt       time.Time `json:"last_seen_at"`
	IPAddress        string    `json:"ip_address,omitempty"`
	UserAgent        string    `json:"user_agent,omitempty"`
}

// IsExpired reports whether the session can no longer be refreshed.
func (s *Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}

// Touch updates the last seen timestamp.
func (s *Session) Touch() {
	s.LastSeenAt = time.Now()
}
