package oauth

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ProviderGoogle is the only calendar provider currently supported.
const ProviderGoogle = "google"

// ErrNotConnected is returned when the user has no stored credential for
// the provider.
var ErrNotConnected = errors.New("calendar provider not connected")

// ErrAuthExpired is returned when a stored credential can no longer be
// refreshed and the user must re-authorize.
var ErrAuthExpired = errors.New("calendar authorization expired")

// Credential is a decrypted provider credential for one user.
type Credential struct {
	UserID       uuid.UUID
	Provider     string
	AccessToken  string
	RefreshToken string
	TokenType    string
	Expiry       time.Time
	CalendarID   string
}

// StoredCredential is the persisted form of a Credential. Token material
// is encrypted at rest.
type StoredCredential struct {
	UserID       uuid.UUID
	Provider     string
	AccessToken  []byte
	RefreshToken []byte
	TokenType    string
	Expiry       time.Time
	CalendarID   string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Repository persists encrypted credentials.
type Repository interface {
	// Save inserts or replaces the credential for (user, provider).
	Save(ctx context.Context, cred *StoredCredential) error
	// FindByUser returns the credential for (user, provider), or nil
	// when none is stored.
	FindByUser(ctx context.Context, userID uuid.UUID, provider string) (*StoredCredential, error)
	// Delete removes the credential for (user, provider).
	Delete(ctx context.Context, userID uuid.UUID, provider string) error
}
