// Package application implements the sync pass, the push gateway, and
// the pending-attendee resolution queue.
package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	calendarApp "github.com/relaycrm/calsync/internal/calendar/application"
	"github.com/relaycrm/calsync/internal/identity/application/oauth"
	sharedApp "github.com/relaycrm/calsync/internal/shared/application"
	"github.com/relaycrm/calsync/internal/shared/infrastructure/lease"
	"github.com/relaycrm/calsync/internal/shared/infrastructure/outbox"
	"github.com/relaycrm/calsync/internal/sync/domain"
)

// ErrSyncInProgress is returned when another sync pass already holds
// the user's lease.
var ErrSyncInProgress = errors.New("sync already in progress for user")

// PassResult summarizes one sync pass.
type PassResult struct {
	Synced  int
	Skipped int
	Pending []domain.PendingAttendee
}

// Engine pulls provider events into local call records. At most one
// pass runs per user at a time; concurrent attempts fail fast with
// ErrSyncInProgress.
type Engine struct {
	credentials CredentialSource
	client      calendarApp.Client
	records     domain.CallRecordRepository
	contacts    ContactDirectory
	outboxRepo  outbox.Repository
	uow         sharedApp.UnitOfWork
	locker      lease.Locker
	leaseTTL    time.Duration
	logger      *slog.Logger
}

// NewEngine creates a sync engine.
func NewEngine(
	credentials CredentialSource,
	client calendarApp.Client,
	records domain.CallRecordRepository,
	contacts ContactDirectory,
	outboxRepo outbox.Repository,
	uow sharedApp.UnitOfWork,
	locker lease.Locker,
	leaseTTL time.Duration,
	logger *slog.Logger,
) *Engine {
	return &Engine{
		credentials: credentials,
		client:      client,
		records:     records,
		contacts:    contacts,
		outboxRepo:  outboxRepo,
		uow:         uow,
		locker:      locker,
		leaseTTL:    leaseTTL,
		logger:      logger,
	}
}

// Run executes one sync pass over the window. Events are examined in
// provider order; each event either produces a mirrored call record, is
// skipped, or contributes its unmatched guests to the pending list.
// A failure on one event never aborts the pass.
func (e *Engine) Run(ctx context.Context, userID uuid.UUID, window calendarApp.Window) (*PassResult, error) {
	release, err := e.locker.Acquire(ctx, "sync:"+userID.String(), e.leaseTTL)
	if errors.Is(err, lease.ErrHeld) {
		return nil, ErrSyncInProgress
	}
	if err != nil {
		return nil, err
	}
	defer release(ctx)

	cred, err := e.credentials.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	cred, err = e.credentials.EnsureFresh(ctx, cred)
	if err != nil {
		return nil, err
	}

	mirrored, err := e.records.FindMirroredEventIDs(ctx, userID, cred.Provider)
	if err != nil {
		return nil, fmt.Errorf("load mirrored event ids: %w", err)
	}

	events, err := e.client.ListEvents(ctx, cred, cred.CalendarID, window)
	if err != nil {
		return nil, fmt.Errorf("list provider events: %w", err)
	}

	result := &PassResult{}
	pending := make(map[string]domain.PendingAttendee)
	var pendingOrder []string

	for _, event := range events {
		if event.IsCancelled() {
			result.Skipped++
			continue
		}
		if _, ok := mirrored[event.ID]; ok {
			result.Skipped++
			continue
		}
		guests := event.Guests()
		if len(guests) == 0 {
			result.Skipped++
			continue
		}

		synced, unmatched, err := e.syncEvent(ctx, userID, event, guests)
		if err != nil {
			e.logger.WarnContext(ctx, "event sync failed",
				slog.String("user_id", userID.String()),
				slog.String("event_id", event.ID),
				slog.String("error", err.Error()),
			)
			result.Skipped++
			continue
		}
		if synced {
			mirrored[event.ID] = struct{}{}
			result.Synced++
			continue
		}

		// No guest matched: queue them, first occurrence of an email wins.
		for _, guest := range unmatched {
			email := domain.NormalizeEmail(guest.Email)
			if _, seen := pending[email]; seen {
				continue
			}
			pending[email] = domain.PendingAttendee{
				Email:           email,
				DisplayName:     guest.DisplayName,
				ExternalEventID: event.ID,
				Title:           event.Title,
				StartsAt:        event.Start,
				EndsAt:          event.End,
				Location:        event.Location,
				Notes:           event.Description,
			}
			pendingOrder = append(pendingOrder, email)
		}
	}

	for _, email := range pendingOrder {
		result.Pending = append(result.Pending, pending[email])
	}

	e.logger.InfoContext(ctx, "sync pass finished",
		slog.String("user_id", userID.String()),
		slog.Int("synced", result.Synced),
		slog.Int("skipped", result.Skipped),
		slog.Int("pending", len(result.Pending)),
	)
	return result, nil
}

// syncEvent mirrors the event for the first guest whose email matches a
// contact. It returns the guests left unmatched when no contact matched.
func (e *Engine) syncEvent(ctx context.Context, userID uuid.UUID, event calendarApp.Event, guests []calendarApp.Attendee) (bool, []calendarApp.Attendee, error) {
	for _, guest := range guests {
		match, err := e.contacts.FindByEmail(ctx, userID, domain.NormalizeEmail(guest.Email))
		if err != nil {
			return false, nil, fmt.Errorf("match contact %s: %w", guest.Email, err)
		}
		if match == nil {
			continue
		}

		err = sharedApp.WithUnitOfWork(ctx, e.uow, func(txCtx context.Context) error {
			record, err := domain.NewCallRecord(userID, eventTitle(event, guest), event.Start, event.End, event.Location, event.Description)
			if err != nil {
				return err
			}
			record.LinkContact(match.ID)
			if err := record.MarkMirrored(oauth.ProviderGoogle, event.ID); err != nil {
				return err
			}
			if err := persistRecord(txCtx, e.records, e.outboxRepo, record); err != nil {
				return err
			}
			if match.Stage.Precedes(domain.StageCallScheduled) {
				if err := e.contacts.AdvanceStage(txCtx, match.ID, domain.StageCallScheduled); err != nil {
					return fmt.Errorf("advance contact stage: %w", err)
				}
			}
			return nil
		})
		if err != nil {
			return false, nil, err
		}
		return true, nil, nil
	}
	return false, guests, nil
}

func eventTitle(event calendarApp.Event, guest calendarApp.Attendee) string {
	if event.Title != "" {
		return event.Title
	}
	if guest.DisplayName != "" {
		return "Call with " + guest.DisplayName
	}
	return "Call with " + guest.Email
}

// persistRecord saves the record and enqueues its uncommitted domain
// events in the outbox within the ambient transaction.
func persistRecord(ctx context.Context, records domain.CallRecordRepository, outboxRepo outbox.Repository, record *domain.CallRecord) error {
	if err := records.Save(ctx, record); err != nil {
		return fmt.Errorf("save call record: %w", err)
	}

	events := record.DomainEvents()
	if len(events) == 0 {
		return nil
	}
	msgs := make([]*outbox.Message, 0, len(events))
	for _, event := range events {
		msg, err := outbox.NewMessage(event)
		if err != nil {
			return fmt.Errorf("build outbox message: %w", err)
		}
		msgs = append(msgs, msg)
	}
	if err := outboxRepo.SaveBatch(ctx, msgs); err != nil {
		return fmt.Errorf("enqueue outbox messages: %w", err)
	}
	record.ClearDomainEvents()
	return nil
}
