package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	calendarApp "github.com/relaycrm/calsync/internal/calendar/application"
	"github.com/relaycrm/calsync/internal/identity/application/oauth"
	sharedApp "github.com/relaycrm/calsync/internal/shared/application"
	"github.com/relaycrm/calsync/internal/shared/infrastructure/outbox"
	"github.com/relaycrm/calsync/internal/sync/domain"
)

// ErrRecordNotFound is returned when the call record does not exist.
var ErrRecordNotFound = errors.New("call record not found")

// PushAction is an outbound change to propagate to the provider.
type PushAction string

const (
	PushCreate PushAction = "create"
	PushUpdate PushAction = "update"
	PushDelete PushAction = "delete"
)

// PushOptions tunes a push.
type PushOptions struct {
	// Notify asks the provider to email the contact about the change.
	Notify bool
}

// PushGateway propagates local call record changes to the provider
// calendar. Create on an already-mirrored record becomes an update;
// update on an unmirrored record, or on one whose provider event has
// vanished, becomes a create.
type PushGateway struct {
	credentials CredentialSource
	client      calendarApp.Client
	records     domain.CallRecordRepository
	contacts    ContactDirectory
	outboxRepo  outbox.Repository
	uow         sharedApp.UnitOfWork
	logger      *slog.Logger
}

// NewPushGateway creates a push gateway.
func NewPushGateway(
	credentials CredentialSource,
	client calendarApp.Client,
	records domain.CallRecordRepository,
	contacts ContactDirectory,
	outboxRepo outbox.Repository,
	uow sharedApp.UnitOfWork,
	logger *slog.Logger,
) *PushGateway {
	return &PushGateway{
		credentials: credentials,
		client:      client,
		records:     records,
		contacts:    contacts,
		outboxRepo:  outboxRepo,
		uow:         uow,
		logger:      logger,
	}
}

// Apply pushes the record change to the provider and persists the
// resulting external reference.
func (g *PushGateway) Apply(ctx context.Context, recordID uuid.UUID, action PushAction, opts PushOptions) (*domain.CallRecord, error) {
	record, err := g.records.FindByID(ctx, recordID)
	if err != nil {
		return nil, fmt.Errorf("load call record: %w", err)
	}
	if record == nil {
		return nil, ErrRecordNotFound
	}

	cred, err := g.credentials.Get(ctx, record.UserID())
	if err != nil {
		return nil, err
	}
	cred, err = g.credentials.EnsureFresh(ctx, cred)
	if err != nil {
		return nil, err
	}

	switch action {
	case PushCreate, PushUpdate:
		return g.upsert(ctx, cred, record, action, opts)
	case PushDelete:
		return g.delete(ctx, cred, record)
	default:
		return nil, fmt.Errorf("unknown push action %q", action)
	}
}

func (g *PushGateway) upsert(ctx context.Context, cred *oauth.Credential, record *domain.CallRecord, action PushAction, opts PushOptions) (*domain.CallRecord, error) {
	body, err := g.buildBody(ctx, record, opts)
	if err != nil {
		return nil, err
	}

	if action == PushUpdate && record.IsMirrored() {
		err := g.client.UpdateEvent(ctx, cred, cred.CalendarID, record.ExternalEventID(), body)
		if err == nil {
			g.logger.InfoContext(ctx, "provider event updated",
				slog.String("record_id", record.ID().String()),
				slog.String("event_id", record.ExternalEventID()),
			)
			return record, nil
		}
		if !calendarApp.IsNotFound(err) {
			return nil, fmt.Errorf("update provider event: %w", err)
		}
		// The upstream event vanished: recreate it under a new ID.
		record.ClearExternalRef()
	}

	if record.IsMirrored() {
		// Create on an already-mirrored record redirects to update.
		if err := g.client.UpdateEvent(ctx, cred, cred.CalendarID, record.ExternalEventID(), body); err != nil {
			return nil, fmt.Errorf("update provider event: %w", err)
		}
		return record, nil
	}

	eventID, err := g.client.CreateEvent(ctx, cred, cred.CalendarID, body)
	if err != nil {
		return nil, fmt.Errorf("create provider event: %w", err)
	}
	if err := record.SetExternalRef(oauth.ProviderGoogle, eventID); err != nil {
		return nil, err
	}
	if err := g.persist(ctx, record); err != nil {
		return nil, err
	}

	g.logger.InfoContext(ctx, "provider event created",
		slog.String("record_id", record.ID().String()),
		slog.String("event_id", eventID),
	)
	return record, nil
}

// delete removes the provider event and detaches the record from it.
// The local record always ends up unlinked; a missing upstream event is
// not an error.
func (g *PushGateway) delete(ctx context.Context, cred *oauth.Credential, record *domain.CallRecord) (*domain.CallRecord, error) {
	if record.IsMirrored() {
		if err := g.client.DeleteEvent(ctx, cred, cred.CalendarID, record.ExternalEventID()); err != nil {
			return nil, fmt.Errorf("delete provider event: %w", err)
		}
		record.ClearExternalRef()
		if err := g.persist(ctx, record); err != nil {
			return nil, err
		}
		g.logger.InfoContext(ctx, "provider event deleted",
			slog.String("record_id", record.ID().String()))
	}
	return record, nil
}

// buildBody assembles the provider payload: the record's notes plus a
// contact-identity line, and the contact as the single attendee.
func (g *PushGateway) buildBody(ctx context.Context, record *domain.CallRecord, opts PushOptions) (calendarApp.EventBody, error) {
	body := calendarApp.EventBody{
		Title:       record.Title(),
		Description: record.Notes(),
		Location:    record.Location(),
		Start:       record.StartsAt(),
		End:         record.EndsAt(),
		Notify:      opts.Notify,
	}

	if record.ContactID() != nil {
		contact, err := g.contacts.FindByID(ctx, *record.ContactID())
		if err != nil {
			return calendarApp.EventBody{}, fmt.Errorf("load contact: %w", err)
		}
		if contact != nil {
			line := fmt.Sprintf("Contact: %s <%s>", contact.Name, contact.Email)
			if body.Description != "" {
				body.Description += "\n\n"
			}
			body.Description += line
			body.AttendeeEmail = contact.Email
		}
	}
	return body, nil
}

func (g *PushGateway) persist(ctx context.Context, record *domain.CallRecord) error {
	return sharedApp.WithUnitOfWork(ctx, g.uow, func(txCtx context.Context) error {
		return persistRecord(txCtx, g.records, g.outboxRepo, record)
	})
}
