package application

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/relaycrm/calsync/internal/identity/application/oauth"
	sharedApp "github.com/relaycrm/calsync/internal/shared/application"
	"github.com/relaycrm/calsync/internal/shared/infrastructure/outbox"
	"github.com/relaycrm/calsync/internal/sync/domain"
)

// ResolutionQueue turns confirmed pending attendees into contacts and
// mirrored call records.
type ResolutionQueue struct {
	contacts   ContactDirectory
	records    domain.CallRecordRepository
	outboxRepo outbox.Repository
	uow        sharedApp.UnitOfWork
	logger     *slog.Logger
}

// NewResolutionQueue creates a resolution queue.
func NewResolutionQueue(
	contacts ContactDirectory,
	records domain.CallRecordRepository,
	outboxRepo outbox.Repository,
	uow sharedApp.UnitOfWork,
	logger *slog.Logger,
) *ResolutionQueue {
	return &ResolutionQueue{
		contacts:   contacts,
		records:    records,
		outboxRepo: outboxRepo,
		uow:        uow,
		logger:     logger,
	}
}

// Confirm creates a contact and a mirrored call record for each entry.
// Entries are independent: a failure on one is logged and the rest
// proceed. It returns the number of entries fully resolved.
func (q *ResolutionQueue) Confirm(ctx context.Context, userID uuid.UUID, entries []domain.PendingAttendee) (int, error) {
	created := 0
	for _, entry := range entries {
		if err := q.confirmOne(ctx, userID, entry); err != nil {
			q.logger.WarnContext(ctx, "pending attendee resolution failed",
				slog.String("user_id", userID.String()),
				slog.String("email", entry.Email),
				slog.String("event_id", entry.ExternalEventID),
				slog.String("error", err.Error()),
			)
			continue
		}
		created++
	}
	return created, nil
}

func (q *ResolutionQueue) confirmOne(ctx context.Context, userID uuid.UUID, entry domain.PendingAttendee) error {
	email := domain.NormalizeEmail(entry.Email)
	name := entry.DisplayName
	if name == "" {
		name = email
	}
	title := entry.Title
	if title == "" {
		title = "Call with " + name
	}

	return sharedApp.WithUnitOfWork(ctx, q.uow, func(txCtx context.Context) error {
		// The contact may have appeared since the sync pass queued the entry.
		contact, err := q.contacts.FindByEmail(txCtx, userID, email)
		if err != nil {
			return err
		}
		if contact == nil {
			contact, err = q.contacts.Create(txCtx, userID, name, email, domain.StageCallScheduled)
			if err != nil {
				return err
			}
		} else if contact.Stage.Precedes(domain.StageCallScheduled) {
			if err := q.contacts.AdvanceStage(txCtx, contact.ID, domain.StageCallScheduled); err != nil {
				return err
			}
		}

		record, err := domain.NewCallRecord(userID, title, entry.StartsAt, entry.EndsAt, entry.Location, entry.Notes)
		if err != nil {
			return err
		}
		record.LinkContact(contact.ID)
		if err := record.MarkMirrored(oauth.ProviderGoogle, entry.ExternalEventID); err != nil {
			return err
		}
		return persistRecord(txCtx, q.records, q.outboxRepo, record)
	})
}
