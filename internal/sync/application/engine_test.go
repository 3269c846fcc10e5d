package application

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	calendarApp "github.com/relaycrm/calsync/internal/calendar/application"
	"github.com/relaycrm/calsync/internal/identity/application/oauth"
	"github.com/relaycrm/calsync/internal/shared/infrastructure/lease"
	"github.com/relaycrm/calsync/internal/sync/domain"
)

type engineFixture struct {
	engine      *Engine
	credentials *fakeCredentials
	client      *fakeClient
	records     *memoryRecordRepo
	directory   *memoryDirectory
	outbox      *memoryOutbox
	locker      *lease.MemoryLocker
	userID      uuid.UUID
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()
	userID := uuid.New()
	f := &engineFixture{
		credentials: &fakeCredentials{cred: freshCred(userID)},
		client:      &fakeClient{},
		records:     newMemoryRecordRepo(),
		directory:   newMemoryDirectory(),
		outbox:      &memoryOutbox{},
		locker:      lease.NewMemoryLocker(),
		userID:      userID,
	}
	f.engine = NewEngine(
		f.credentials, f.client, f.records, f.directory,
		f.outbox, noopUnitOfWork{}, f.locker, time.Minute, testLogger(t),
	)
	return f
}

func providerEvent(id, title string, attendees ...calendarApp.Attendee) calendarApp.Event {
	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	return calendarApp.Event{
		ID:        id,
		Title:     title,
		Status:    "confirmed",
		Start:     start,
		End:       start.Add(time.Hour),
		Attendees: attendees,
	}
}

func owner() calendarApp.Attendee {
	return calendarApp.Attendee{Email: "me@relaycrm.test", Self: true, Organizer: true}
}

func TestEngineRun(t *testing.T) {
	ctx := context.Background()

	t.Run("mirrors events whose guest matches a contact", func(t *testing.T) {
		f := newEngineFixture(t)
		contact := f.directory.add(f.userID, "Jamie Doe", "jamie@example.com", domain.StageReplied)
		f.client.events = []calendarApp.Event{
			providerEvent("evt-1", "Intro call", owner(),
				calendarApp.Attendee{Email: "Jamie@Example.com", DisplayName: "Jamie Doe"}),
		}

		result, err := f.engine.Run(ctx, f.userID, mustWindow(t))
		require.NoError(t, err)
		assert.Equal(t, 1, result.Synced)
		assert.Equal(t, 0, result.Skipped)
		assert.Empty(t, result.Pending)

		records, err := f.records.FindByUser(ctx, f.userID)
		require.NoError(t, err)
		require.Len(t, records, 1)
		record := records[0]
		assert.Equal(t, "Intro call", record.Title())
		assert.Equal(t, "evt-1", record.ExternalEventID())
		require.NotNil(t, record.ContactID())
		assert.Equal(t, contact.ID, *record.ContactID())

		got, err := f.directory.FindByID(ctx, contact.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.StageCallScheduled, got.Stage, "stage advances to call_scheduled")

		assert.NotEmpty(t, f.outbox.msgs, "domain events land in the outbox")
	})

	t.Run("never moves a contact stage backwards", func(t *testing.T) {
		f := newEngineFixture(t)
		contact := f.directory.add(f.userID, "Sam", "sam@example.com", domain.StageClosed)
		f.client.events = []calendarApp.Event{
			providerEvent("evt-1", "Follow-up", owner(),
				calendarApp.Attendee{Email: "sam@example.com"}),
		}

		result, err := f.engine.Run(ctx, f.userID, mustWindow(t))
		require.NoError(t, err)
		assert.Equal(t, 1, result.Synced)

		got, err := f.directory.FindByID(ctx, contact.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.StageClosed, got.Stage)
	})

	t.Run("skips cancelled, guestless, and already-mirrored events", func(t *testing.T) {
		f := newEngineFixture(t)
		f.directory.add(f.userID, "Jamie Doe", "jamie@example.com", domain.StageReplied)

		cancelled := providerEvent("evt-cancelled", "Old call", owner(),
			calendarApp.Attendee{Email: "jamie@example.com"})
		cancelled.Status = calendarApp.StatusCancelled

		f.client.events = []calendarApp.Event{
			cancelled,
			providerEvent("evt-solo", "Focus time", owner()),
			providerEvent("evt-1", "Intro call", owner(),
				calendarApp.Attendee{Email: "jamie@example.com"}),
		}

		result, err := f.engine.Run(ctx, f.userID, mustWindow(t))
		require.NoError(t, err)
		assert.Equal(t, 1, result.Synced)
		assert.Equal(t, 2, result.Skipped)
		assert.Empty(t, result.Pending)
	})

	t.Run("a second pass over the same window creates nothing new", func(t *testing.T) {
		f := newEngineFixture(t)
		f.directory.add(f.userID, "Jamie Doe", "jamie@example.com", domain.StageReplied)
		f.client.events = []calendarApp.Event{
			providerEvent("evt-1", "Intro call", owner(),
				calendarApp.Attendee{Email: "jamie@example.com"}),
		}

		first, err := f.engine.Run(ctx, f.userID, mustWindow(t))
		require.NoError(t, err)
		assert.Equal(t, 1, first.Synced)

		second, err := f.engine.Run(ctx, f.userID, mustWindow(t))
		require.NoError(t, err)
		assert.Equal(t, 0, second.Synced)
		assert.Equal(t, 1, second.Skipped)

		records, err := f.records.FindByUser(ctx, f.userID)
		require.NoError(t, err)
		assert.Len(t, records, 1)
	})

	t.Run("queues unmatched guests, first occurrence of an email wins", func(t *testing.T) {
		f := newEngineFixture(t)
		f.client.events = []calendarApp.Event{
			providerEvent("evt-1", "First chat", owner(),
				calendarApp.Attendee{Email: "new@example.com", DisplayName: "New Person"}),
			providerEvent("evt-2", "Second chat", owner(),
				calendarApp.Attendee{Email: "NEW@example.com"}),
		}

		result, err := f.engine.Run(ctx, f.userID, mustWindow(t))
		require.NoError(t, err)
		assert.Equal(t, 0, result.Synced)
		require.Len(t, result.Pending, 1)
		assert.Equal(t, "new@example.com", result.Pending[0].Email)
		assert.Equal(t, "evt-1", result.Pending[0].ExternalEventID)
		assert.Equal(t, "First chat", result.Pending[0].Title)
	})

	t.Run("matching is exact and case-insensitive, never fuzzy", func(t *testing.T) {
		f := newEngineFixture(t)
		f.directory.add(f.userID, "Jamie Doe", "jamie@example.com", domain.StageReplied)
		f.client.events = []calendarApp.Event{
			providerEvent("evt-1", "Chat", owner(),
				calendarApp.Attendee{Email: "jamie+alias@example.com"}),
		}

		result, err := f.engine.Run(ctx, f.userID, mustWindow(t))
		require.NoError(t, err)
		assert.Equal(t, 0, result.Synced)
		require.Len(t, result.Pending, 1)
		assert.Equal(t, "jamie+alias@example.com", result.Pending[0].Email)
	})

	t.Run("fails fast when a pass is already running", func(t *testing.T) {
		f := newEngineFixture(t)
		release, err := f.locker.Acquire(ctx, "sync:"+f.userID.String(), time.Minute)
		require.NoError(t, err)
		defer release(ctx)

		_, err = f.engine.Run(ctx, f.userID, mustWindow(t))
		assert.ErrorIs(t, err, ErrSyncInProgress)
	})

	t.Run("propagates missing credentials", func(t *testing.T) {
		f := newEngineFixture(t)
		f.credentials.getErr = oauth.ErrNotConnected

		_, err := f.engine.Run(ctx, f.userID, mustWindow(t))
		assert.ErrorIs(t, err, oauth.ErrNotConnected)
	})

	t.Run("propagates expired authorization without retrying", func(t *testing.T) {
		f := newEngineFixture(t)
		f.credentials.freshErr = oauth.ErrAuthExpired

		_, err := f.engine.Run(ctx, f.userID, mustWindow(t))
		assert.ErrorIs(t, err, oauth.ErrAuthExpired)
	})

	t.Run("one failing event does not abort the pass", func(t *testing.T) {
		f := newEngineFixture(t)
		f.directory.add(f.userID, "Jamie Doe", "jamie@example.com", domain.StageReplied)
		f.records.saveErr = nil
		f.client.events = []calendarApp.Event{
			// No title makes NewCallRecord fall back, so break it with an
			// inverted range instead.
			func() calendarApp.Event {
				e := providerEvent("evt-bad", "Broken", owner(),
					calendarApp.Attendee{Email: "jamie@example.com"})
				e.End = e.Start
				return e
			}(),
			providerEvent("evt-good", "Intro call", owner(),
				calendarApp.Attendee{Email: "jamie@example.com"}),
		}

		result, err := f.engine.Run(ctx, f.userID, mustWindow(t))
		require.NoError(t, err)
		assert.Equal(t, 1, result.Synced)
		assert.Equal(t, 1, result.Skipped)
	})
}
