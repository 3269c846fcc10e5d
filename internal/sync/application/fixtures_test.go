package application

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	calendarApp "github.com/relaycrm/calsync/internal/calendar/application"
	"github.com/relaycrm/calsync/internal/identity/application/oauth"
	"github.com/relaycrm/calsync/internal/shared/infrastructure/outbox"
	"github.com/relaycrm/calsync/internal/sync/domain"
)

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}

func testLogger(t *testing.T) *slog.Logger {
	t.Helper()
	return slog.New(slog.NewTextHandler(testWriter{t}, nil))
}

type fakeCredentials struct {
	cred      *oauth.Credential
	getErr    error
	freshErr  error
	refreshed int
}

func (f *fakeCredentials) Get(_ context.Context, _ uuid.UUID) (*oauth.Credential, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.cred, nil
}

func (f *fakeCredentials) EnsureFresh(_ context.Context, cred *oauth.Credential) (*oauth.Credential, error) {
	if f.freshErr != nil {
		return nil, f.freshErr
	}
	f.refreshed++
	return cred, nil
}

type createdEvent struct {
	calendarID string
	body       calendarApp.EventBody
}

type fakeClient struct {
	events    []calendarApp.Event
	listErr   error
	createErr error
	updateErr error
	deleteErr error

	nextID  string
	created []createdEvent
	updated []string
	deleted []string
}

func (f *fakeClient) ListEvents(_ context.Context, _ *oauth.Credential, _ string, _ calendarApp.Window) ([]calendarApp.Event, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.events, nil
}

func (f *fakeClient) CreateEvent(_ context.Context, _ *oauth.Credential, calendarID string, body calendarApp.EventBody) (string, error) {
	if f.createErr != nil {
		return "", f.createErr
	}
	f.created = append(f.created, createdEvent{calendarID: calendarID, body: body})
	if f.nextID == "" {
		return "created-evt", nil
	}
	return f.nextID, nil
}

func (f *fakeClient) UpdateEvent(_ context.Context, _ *oauth.Credential, _, eventID string, _ calendarApp.EventBody) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.updated = append(f.updated, eventID)
	return nil
}

func (f *fakeClient) DeleteEvent(_ context.Context, _ *oauth.Credential, _, eventID string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, eventID)
	return nil
}

type memoryRecordRepo struct {
	mu      sync.Mutex
	records map[uuid.UUID]*domain.CallRecord
	saveErr error
}

func newMemoryRecordRepo() *memoryRecordRepo {
	return &memoryRecordRepo{records: make(map[uuid.UUID]*domain.CallRecord)}
}

func (r *memoryRecordRepo) Save(_ context.Context, record *domain.CallRecord) error {
	if r.saveErr != nil {
		return r.saveErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.records {
		if existing.ID() != record.ID() &&
			existing.IsMirrored() && record.IsMirrored() &&
			existing.UserID() == record.UserID() &&
			existing.Provider() == record.Provider() &&
			existing.ExternalEventID() == record.ExternalEventID() {
			return errors.New("unique constraint: external event already mirrored")
		}
	}
	r.records[record.ID()] = record
	return nil
}

func (r *memoryRecordRepo) FindByID(_ context.Context, id uuid.UUID) (*domain.CallRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.records[id], nil
}

func (r *memoryRecordRepo) FindByUser(_ context.Context, userID uuid.UUID) ([]*domain.CallRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.CallRecord
	for _, record := range r.records {
		if record.UserID() == userID {
			out = append(out, record)
		}
	}
	return out, nil
}

func (r *memoryRecordRepo) FindMirroredEventIDs(_ context.Context, userID uuid.UUID, provider string) (map[string]struct{}, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make(map[string]struct{})
	for _, record := range r.records {
		if record.UserID() == userID && record.Provider() == provider && record.IsMirrored() {
			ids[record.ExternalEventID()] = struct{}{}
		}
	}
	return ids, nil
}

type memoryDirectory struct {
	mu        sync.Mutex
	contacts  map[uuid.UUID]*Contact
	findErr   error
	createErr error
	advanced  []domain.Stage
}

func newMemoryDirectory() *memoryDirectory {
	return &memoryDirectory{contacts: make(map[uuid.UUID]*Contact)}
}

func (d *memoryDirectory) add(userID uuid.UUID, name, email string, stage domain.Stage) *Contact {
	d.mu.Lock()
	defer d.mu.Unlock()
	contact := &Contact{ID: uuid.New(), UserID: userID, Name: name, Email: email, Stage: stage}
	d.contacts[contact.ID] = contact
	return contact
}

func (d *memoryDirectory) FindByEmail(_ context.Context, userID uuid.UUID, email string) (*Contact, error) {
	if d.findErr != nil {
		return nil, d.findErr
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, contact := range d.contacts {
		if contact.UserID == userID && domain.NormalizeEmail(contact.Email) == domain.NormalizeEmail(email) {
			copied := *contact
			return &copied, nil
		}
	}
	return nil, nil
}

func (d *memoryDirectory) FindByID(_ context.Context, id uuid.UUID) (*Contact, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	contact, ok := d.contacts[id]
	if !ok {
		return nil, nil
	}
	copied := *contact
	return &copied, nil
}

func (d *memoryDirectory) Create(_ context.Context, userID uuid.UUID, name, email string, stage domain.Stage) (*Contact, error) {
	if d.createErr != nil {
		return nil, d.createErr
	}
	return d.add(userID, name, email, stage), nil
}

func (d *memoryDirectory) AdvanceStage(_ context.Context, contactID uuid.UUID, stage domain.Stage) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	contact, ok := d.contacts[contactID]
	if !ok {
		return errors.New("contact not found")
	}
	if contact.Stage.Precedes(stage) {
		contact.Stage = stage
		d.advanced = append(d.advanced, stage)
	}
	return nil
}

type memoryOutbox struct {
	mu   sync.Mutex
	msgs []*outbox.Message
}

func (o *memoryOutbox) Save(_ context.Context, msg *outbox.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.msgs = append(o.msgs, msg)
	return nil
}

func (o *memoryOutbox) SaveBatch(_ context.Context, msgs []*outbox.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.msgs = append(o.msgs, msgs...)
	return nil
}

func (o *memoryOutbox) GetUnpublished(_ context.Context, _ int) ([]*outbox.Message, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.msgs, nil
}

func (o *memoryOutbox) MarkPublished(_ context.Context, _ int64) error { return nil }

func (o *memoryOutbox) MarkFailed(_ context.Context, _ int64, _ string) error { return nil }

// noopUnitOfWork satisfies UnitOfWork for fakes that have no transactions.
type noopUnitOfWork struct{}

func (noopUnitOfWork) Begin(ctx context.Context) (context.Context, error) { return ctx, nil }
func (noopUnitOfWork) Commit(context.Context) error                      { return nil }
func (noopUnitOfWork) Rollback(context.Context) error                    { return nil }

func freshCred(userID uuid.UUID) *oauth.Credential {
	return &oauth.Credential{
		UserID:      userID,
		Provider:    oauth.ProviderGoogle,
		AccessToken: "token",
		Expiry:      time.Now().Add(time.Hour),
		CalendarID:  "primary",
	}
}

func mustWindow(t *testing.T) calendarApp.Window {
	t.Helper()
	start := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	window, err := calendarApp.NewWindow(start, start.AddDate(0, 0, 7))
	if err != nil {
		t.Fatalf("build window: %v", err)
	}
	return window
}
