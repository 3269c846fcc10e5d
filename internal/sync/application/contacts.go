package application

import (
	"context"

	"github.com/google/uuid"

	"github.com/relaycrm/calsync/internal/identity/application/oauth"
	"github.com/relaycrm/calsync/internal/sync/domain"
)

// Contact is the slice of a CRM contact the sync services need.
type Contact struct {
	ID     uuid.UUID
	UserID uuid.UUID
	Name   string
	Email  string
	Stage  domain.Stage
}

// ContactDirectory is the narrow contact contract consumed by the sync
// services: lookup by email, lookup by ID, creation, and stage advance.
type ContactDirectory interface {
	// FindByEmail returns the user's contact with the given email,
	// matched case-insensitively, or nil when there is none.
	FindByEmail(ctx context.Context, userID uuid.UUID, email string) (*Contact, error)
	// FindByID returns the contact, or nil when absent.
	FindByID(ctx context.Context, id uuid.UUID) (*Contact, error)
	// Create adds a contact at the given pipeline stage.
	Create(ctx context.Context, userID uuid.UUID, name, email string, stage domain.Stage) (*Contact, error)
	// AdvanceStage moves the contact forward to stage. Implementations
	// never move a contact backwards.
	AdvanceStage(ctx context.Context, contactID uuid.UUID, stage domain.Stage) error
}

// CredentialSource provides fresh provider credentials for a user.
type CredentialSource interface {
	Get(ctx context.Context, userID uuid.UUID) (*oauth.Credential, error)
	EnsureFresh(ctx context.Context, cred *oauth.Credential) (*oauth.Credential, error)
}
