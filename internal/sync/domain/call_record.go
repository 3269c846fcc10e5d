// Package domain holds the call record aggregate and the pipeline
// stage model shared by the sync services.
package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	sharedDomain "github.com/relaycrm/calsync/internal/shared/domain"
)

// CallRecord statuses.
const (
	StatusScheduled = "scheduled"
	StatusCompleted = "completed"
	StatusCanceled  = "canceled"
)

// ErrAlreadyMirrored is returned when a record is bound to an external
// event a second time.
var ErrAlreadyMirrored = errors.New("call record already bound to an external event")

// CallRecord is a local record of a call with a contact. It may mirror
// a provider calendar event, in which case provider and externalEventID
// identify the upstream resource.
type CallRecord struct {
	sharedDomain.BaseAggregateRoot

	userID          uuid.UUID
	contactID       *uuid.UUID
	title           string
	startsAt        time.Time
	endsAt          time.Time
	location        string
	notes           string
	status          string
	provider        string
	externalEventID string
}

// NewCallRecord creates a scheduled call record.
func NewCallRecord(userID uuid.UUID, title string, startsAt, endsAt time.Time, location, notes string) (*CallRecord, error) {
	if userID == uuid.Nil {
		return nil, errors.New("user id is required")
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, errors.New("title is required")
	}
	if !endsAt.After(startsAt) {
		return nil, errors.New("call end must be after start")
	}

	record := &CallRecord{
		BaseAggregateRoot: sharedDomain.NewBaseAggregateRoot(),
		userID:            userID,
		title:             title,
		startsAt:          startsAt.UTC(),
		endsAt:            endsAt.UTC(),
		location:          location,
		notes:             notes,
		status:            StatusScheduled,
	}
	record.AddDomainEvent(NewCallRecordCreatedEvent(record))
	return record, nil
}

// RehydrateCallRecord recreates a call record from persisted state
// without raising events.
func RehydrateCallRecord(
	id uuid.UUID,
	userID uuid.UUID,
	contactID *uuid.UUID,
	title string,
	startsAt, endsAt time.Time,
	location, notes, status string,
	provider, externalEventID string,
	createdAt, updatedAt time.Time,
) *CallRecord {
	return &CallRecord{
		BaseAggregateRoot: sharedDomain.RehydrateBaseAggregateRoot(
			sharedDomain.RehydrateBaseEntity(id, createdAt, updatedAt),
		),
		userID:          userID,
		contactID:       contactID,
		title:           title,
		startsAt:        startsAt,
		endsAt:          endsAt,
		location:        location,
		notes:           notes,
		status:          status,
		provider:        provider,
		externalEventID: externalEventID,
	}
}

func (c *CallRecord) UserID() uuid.UUID       { return c.userID }
func (c *CallRecord) ContactID() *uuid.UUID   { return c.contactID }
func (c *CallRecord) Title() string           { return c.title }
func (c *CallRecord) StartsAt() time.Time     { return c.startsAt }
func (c *CallRecord) EndsAt() time.Time       { return c.endsAt }
func (c *CallRecord) Location() string        { return c.location }
func (c *CallRecord) Notes() string           { return c.notes }
func (c *CallRecord) Status() string          { return c.status }
func (c *CallRecord) Provider() string        { return c.provider }
func (c *CallRecord) ExternalEventID() string { return c.externalEventID }

// IsMirrored reports whether the record is bound to a provider event.
func (c *CallRecord) IsMirrored() bool {
	return c.externalEventID != ""
}

// LinkContact binds the record to a contact.
func (c *CallRecord) LinkContact(contactID uuid.UUID) {
	c.contactID = &contactID
	c.Touch()
}

// MarkMirrored binds the record to the provider event it was created
// from. A record mirrors at most one external event.
func (c *CallRecord) MarkMirrored(provider, externalEventID string) error {
	if provider == "" || externalEventID == "" {
		return errors.New("provider and external event id are required")
	}
	if c.IsMirrored() {
		if c.provider == provider && c.externalEventID == externalEventID {
			return nil
		}
		return fmt.Errorf("%w: %s/%s", ErrAlreadyMirrored, c.provider, c.externalEventID)
	}
	c.provider = provider
	c.externalEventID = externalEventID
	c.Touch()
	c.AddDomainEvent(NewCallRecordMirroredEvent(c))
	return nil
}

// SetExternalRef records the provider event created by a push.
func (c *CallRecord) SetExternalRef(provider, externalEventID string) error {
	if provider == "" || externalEventID == "" {
		return errors.New("provider and external event id are required")
	}
	c.provider = provider
	c.externalEventID = externalEventID
	c.Touch()
	c.AddDomainEvent(NewCallRecordPushedEvent(c))
	return nil
}

// ClearExternalRef detaches the record from its provider event. The
// local record itself is kept.
func (c *CallRecord) ClearExternalRef() {
	if !c.IsMirrored() {
		return
	}
	c.provider = ""
	c.externalEventID = ""
	c.Touch()
	c.AddDomainEvent(NewCallRecordReleasedEvent(c))
}

// Reschedule moves the call to a new time range.
func (c *CallRecord) Reschedule(startsAt, endsAt time.Time) error {
	if !endsAt.After(startsAt) {
		return errors.New("call end must be after start")
	}
	c.startsAt = startsAt.UTC()
	c.endsAt = endsAt.UTC()
	c.Touch()
	return nil
}

// UpdateDetails rewrites the descriptive fields.
func (c *CallRecord) UpdateDetails(title, location, notes string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return errors.New("title is required")
	}
	c.title = title
	c.location = location
	c.notes = notes
	c.Touch()
	return nil
}

// Complete marks the call as held.
func (c *CallRecord) Complete() {
	c.status = StatusCompleted
	c.Touch()
}

// Cancel marks the call as canceled.
func (c *CallRecord) Cancel() {
	c.status = StatusCanceled
	c.Touch()
}
