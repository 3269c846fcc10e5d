// Package google implements the calendar client against the Google
// Calendar v3 REST API.
package google

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker/v2"

	calendarApp "github.com/relaycrm/calsync/internal/calendar/application"
	"github.com/relaycrm/calsync/internal/identity/application/oauth"
)

const defaultBaseURL = "https://www.googleapis.com/calendar/v3"

// maxListResults caps a single list call. Windows are short enough that
// pagination is not needed.
const maxListResults = 250

// Client calls the Google Calendar v3 API. Requests run behind a
// circuit breaker so a failing provider sheds load quickly; only
// transient provider errors count toward tripping it.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
	breaker    *gobreaker.CircuitBreaker[[]byte]
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithBaseURL overrides the API base URL, used by tests.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) { c.baseURL = baseURL }
}

// NewClient creates a Google Calendar client.
func NewClient(logger *slog.Logger, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    defaultBaseURL,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.breaker = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:    "google-calendar",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			var pe *calendarApp.ProviderError
			if errors.As(err, &pe) {
				return !pe.Retryable()
			}
			return false
		},
	})
	return c
}

type listResponse struct {
	Items []eventResource `json:"items"`
}

type eventResource struct {
	ID          string             `json:"id,omitempty"`
	Summary     string             `json:"summary,omitempty"`
	Description string             `json:"description,omitempty"`
	Location    string             `json:"location,omitempty"`
	Status      string             `json:"status,omitempty"`
	Start       *eventTime         `json:"start,omitempty"`
	End         *eventTime         `json:"end,omitempty"`
	Attendees   []attendeeResource `json:"attendees,omitempty"`
}

type eventTime struct {
	DateTime string `json:"dateTime,omitempty"`
	Date     string `json:"date,omitempty"`
}

type attendeeResource struct {
	Email       string `json:"email,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
	Self        bool   `json:"self,omitempty"`
	Organizer   bool   `json:"organizer,omitempty"`
}

// ListEvents returns single-instance events overlapping the window,
// ordered by start time. All-day events are skipped.
func (c *Client) ListEvents(ctx context.Context, cred *oauth.Credential, calendarID string, window calendarApp.Window) ([]calendarApp.Event, error) {
	if err := validateCred(cred); err != nil {
		return nil, err
	}
	if calendarID == "" {
		return nil, fmt.Errorf("calendar id is required")
	}
	if !window.End.After(window.Start) {
		return nil, calendarApp.ErrInvalidWindow
	}

	query := url.Values{}
	query.Set("timeMin", window.Start.UTC().Format(time.RFC3339))
	query.Set("timeMax", window.End.UTC().Format(time.RFC3339))
	query.Set("singleEvents", "true")
	query.Set("orderBy", "startTime")
	query.Set("maxResults", fmt.Sprintf("%d", maxListResults))

	body, err := c.do(ctx, cred, http.MethodGet, c.eventsPath(calendarID), query, nil)
	if err != nil {
		return nil, err
	}

	var resp listResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode events list: %w", err)
	}

	events := make([]calendarApp.Event, 0, len(resp.Items))
	for _, item := range resp.Items {
		event, ok := c.toEvent(item)
		if !ok {
			continue
		}
		events = append(events, event)
	}
	return events, nil
}

// CreateEvent creates an event and returns the provider event ID.
func (c *Client) CreateEvent(ctx context.Context, cred *oauth.Credential, calendarID string, body calendarApp.EventBody) (string, error) {
	if err := validateCred(cred); err != nil {
		return "", err
	}
	if err := validateBody(calendarID, body); err != nil {
		return "", err
	}

	respBody, err := c.do(ctx, cred, http.MethodPost, c.eventsPath(calendarID), notifyQuery(body.Notify), toResource(body))
	if err != nil {
		return "", err
	}

	var created eventResource
	if err := json.Unmarshal(respBody, &created); err != nil {
		return "", fmt.Errorf("decode created event: %w", err)
	}
	if created.ID == "" {
		return "", fmt.Errorf("provider returned event without id")
	}
	return created.ID, nil
}

// UpdateEvent rewrites an existing provider event.
func (c *Client) UpdateEvent(ctx context.Context, cred *oauth.Credential, calendarID, eventID string, body calendarApp.EventBody) error {
	if err := validateCred(cred); err != nil {
		return err
	}
	if eventID == "" {
		return fmt.Errorf("event id is required")
	}
	if err := validateBody(calendarID, body); err != nil {
		return err
	}

	path := c.eventsPath(calendarID) + "/" + url.PathEscape(eventID)
	_, err := c.do(ctx, cred, http.MethodPut, path, notifyQuery(body.Notify), toResource(body))
	return err
}

// DeleteEvent removes a provider event. A 404 or 410 means the event is
// already gone and is treated as success.
func (c *Client) DeleteEvent(ctx context.Context, cred *oauth.Credential, calendarID, eventID string) error {
	if err := validateCred(cred); err != nil {
		return err
	}
	if calendarID == "" {
		return fmt.Errorf("calendar id is required")
	}
	if eventID == "" {
		return fmt.Errorf("event id is required")
	}

	path := c.eventsPath(calendarID) + "/" + url.PathEscape(eventID)
	_, err := c.do(ctx, cred, http.MethodDelete, path, nil, nil)
	if calendarApp.IsNotFound(err) {
		c.logger.DebugContext(ctx, "event already deleted upstream",
			slog.String("event_id", eventID))
		return nil
	}
	return err
}

func (c *Client) eventsPath(calendarID string) string {
	return "/calendars/" + url.PathEscape(calendarID) + "/events"
}

func (c *Client) do(ctx context.Context, cred *oauth.Credential, method, path string, query url.Values, payload any) ([]byte, error) {
	return c.breaker.Execute(func() ([]byte, error) {
		var reqBody io.Reader
		if payload != nil {
			raw, err := json.Marshal(payload)
			if err != nil {
				return nil, fmt.Errorf("encode request body: %w", err)
			}
			reqBody = bytes.NewReader(raw)
		}

		endpoint := c.baseURL + path
		if len(query) > 0 {
			endpoint += "?" + query.Encode()
		}

		req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+cred.AccessToken)
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("call provider: %w", err)
		}
		defer resp.Body.Close()

		raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return nil, fmt.Errorf("read provider response: %w", err)
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, &calendarApp.ProviderError{Status: resp.StatusCode, Body: string(raw)}
		}
		return raw, nil
	})
}

func (c *Client) toEvent(item eventResource) (calendarApp.Event, bool) {
	if item.Start == nil || item.End == nil {
		return calendarApp.Event{}, false
	}
	// All-day events carry date instead of dateTime.
	if item.Start.DateTime == "" || item.End.DateTime == "" {
		return calendarApp.Event{}, false
	}
	start, err := time.Parse(time.RFC3339, item.Start.DateTime)
	if err != nil {
		return calendarApp.Event{}, false
	}
	end, err := time.Parse(time.RFC3339, item.End.DateTime)
	if err != nil {
		return calendarApp.Event{}, false
	}

	event := calendarApp.Event{
		ID:          item.ID,
		Title:       item.Summary,
		Description: item.Description,
		Location:    item.Location,
		Status:      item.Status,
		Start:       start,
		End:         end,
	}
	for _, a := range item.Attendees {
		event.Attendees = append(event.Attendees, calendarApp.Attendee{
			Email:       a.Email,
			DisplayName: a.DisplayName,
			Self:        a.Self,
			Organizer:   a.Organizer,
		})
	}
	return event, true
}

func toResource(body calendarApp.EventBody) eventResource {
	resource := eventResource{
		Summary:     body.Title,
		Description: body.Description,
		Location:    body.Location,
		Start:       &eventTime{DateTime: body.Start.Format(time.RFC3339)},
		End:         &eventTime{DateTime: body.End.Format(time.RFC3339)},
	}
	if body.AttendeeEmail != "" {
		resource.Attendees = []attendeeResource{{Email: body.AttendeeEmail}}
	}
	return resource
}

func notifyQuery(notify bool) url.Values {
	query := url.Values{}
	if notify {
		query.Set("sendUpdates", "all")
	} else {
		query.Set("sendUpdates", "none")
	}
	return query
}

func validateCred(cred *oauth.Credential) error {
	if cred == nil || cred.AccessToken == "" {
		return oauth.ErrNotConnected
	}
	return nil
}

func validateBody(calendarID string, body calendarApp.EventBody) error {
	if calendarID == "" {
		return fmt.Errorf("calendar id is required")
	}
	if body.Title == "" {
		return fmt.Errorf("event title is required")
	}
	if !body.End.After(body.Start) {
		return fmt.Errorf("event end must be after start")
	}
	return nil
}
