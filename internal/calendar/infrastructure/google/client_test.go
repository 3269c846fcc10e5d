package google

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	calendarApp "github.com/relaycrm/calsync/internal/calendar/application"
	"github.com/relaycrm/calsync/internal/identity/application/oauth"
)

func testCred() *oauth.Credential {
	return &oauth.Credential{
		UserID:      uuid.New(),
		Provider:    oauth.ProviderGoogle,
		AccessToken: "test-token",
		Expiry:      time.Now().Add(time.Hour),
		CalendarID:  "primary",
	}
}

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	logger := slog.New(slog.NewTextHandler(testWriter{t}, nil))
	return NewClient(logger, WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}

func mustWindow(t *testing.T) calendarApp.Window {
	t.Helper()
	start := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	window, err := calendarApp.NewWindow(start, start.Add(7*24*time.Hour))
	require.NoError(t, err)
	return window
}

func TestClientListEvents(t *testing.T) {
	ctx := context.Background()

	t.Run("sends the expected query and decodes events", func(t *testing.T) {
		var gotQuery map[string]string
		client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodGet, r.Method)
			assert.Equal(t, "/calendars/primary/events", r.URL.Path)
			assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
			gotQuery = map[string]string{
				"singleEvents": r.URL.Query().Get("singleEvents"),
				"orderBy":      r.URL.Query().Get("orderBy"),
				"maxResults":   r.URL.Query().Get("maxResults"),
				"timeMin":      r.URL.Query().Get("timeMin"),
				"timeMax":      r.URL.Query().Get("timeMax"),
			}
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"items": [
				{
					"id": "evt-1",
					"summary": "Intro call",
					"status": "confirmed",
					"start": {"dateTime": "2026-03-02T10:00:00Z"},
					"end": {"dateTime": "2026-03-02T11:00:00Z"},
					"attendees": [
						{"email": "me@relaycrm.test", "self": true, "organizer": true},
						{"email": "Jamie@Example.com", "displayName": "Jamie Doe"}
					]
				},
				{
					"id": "evt-allday",
					"summary": "Conference",
					"status": "confirmed",
					"start": {"date": "2026-03-03"},
					"end": {"date": "2026-03-04"}
				}
			]}`))
		}))

		events, err := client.ListEvents(ctx, testCred(), "primary", mustWindow(t))
		require.NoError(t, err)

		assert.Equal(t, "true", gotQuery["singleEvents"])
		assert.Equal(t, "startTime", gotQuery["orderBy"])
		assert.Equal(t, "250", gotQuery["maxResults"])
		assert.NotEmpty(t, gotQuery["timeMin"])
		assert.NotEmpty(t, gotQuery["timeMax"])

		require.Len(t, events, 1, "all-day events are excluded")
		assert.Equal(t, "evt-1", events[0].ID)
		assert.Equal(t, "Intro call", events[0].Title)
		require.Len(t, events[0].Attendees, 2)

		guests := events[0].Guests()
		require.Len(t, guests, 1)
		assert.Equal(t, "Jamie@Example.com", guests[0].Email)
	})

	t.Run("rejects an invalid window before any network call", func(t *testing.T) {
		called := false
		client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
		}))

		start := time.Now()
		_, err := client.ListEvents(ctx, testCred(), "primary", calendarApp.Window{Start: start, End: start})
		assert.ErrorIs(t, err, calendarApp.ErrInvalidWindow)
		assert.False(t, called)
	})

	t.Run("returns ErrNotConnected without a credential", func(t *testing.T) {
		client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		_, err := client.ListEvents(ctx, nil, "primary", mustWindow(t))
		assert.ErrorIs(t, err, oauth.ErrNotConnected)
	})

	t.Run("surfaces provider errors with retryability", func(t *testing.T) {
		client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "rate limited", http.StatusTooManyRequests)
		}))

		_, err := client.ListEvents(ctx, testCred(), "primary", mustWindow(t))
		var pe *calendarApp.ProviderError
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, http.StatusTooManyRequests, pe.Status)
		assert.True(t, pe.Retryable())
	})
}

func TestClientCreateEvent(t *testing.T) {
	ctx := context.Background()
	body := calendarApp.EventBody{
		Title:         "Catch-up with Jamie",
		Description:   "Notes\nContact: Jamie Doe <jamie@example.com>",
		Start:         time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
		End:           time.Date(2026, 3, 2, 11, 0, 0, 0, time.UTC),
		AttendeeEmail: "jamie@example.com",
		Notify:        true,
	}

	t.Run("posts the event and returns the provider id", func(t *testing.T) {
		client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "all", r.URL.Query().Get("sendUpdates"))

			var resource map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&resource))
			assert.Equal(t, "Catch-up with Jamie", resource["summary"])

			attendees, ok := resource["attendees"].([]any)
			require.True(t, ok)
			require.Len(t, attendees, 1)

			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id": "created-1"}`))
		}))

		id, err := client.CreateEvent(ctx, testCred(), "primary", body)
		require.NoError(t, err)
		assert.Equal(t, "created-1", id)
	})

	t.Run("suppresses notifications when notify is off", func(t *testing.T) {
		client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "none", r.URL.Query().Get("sendUpdates"))
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id": "created-2"}`))
		}))

		quiet := body
		quiet.Notify = false
		_, err := client.CreateEvent(ctx, testCred(), "primary", quiet)
		require.NoError(t, err)
	})

	t.Run("validates the body before any network call", func(t *testing.T) {
		called := false
		client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
		}))

		invalid := body
		invalid.Title = ""
		_, err := client.CreateEvent(ctx, testCred(), "primary", invalid)
		assert.Error(t, err)
		assert.False(t, called)
	})
}

func TestClientUpdateEvent(t *testing.T) {
	ctx := context.Background()
	body := calendarApp.EventBody{
		Title: "Catch-up with Jamie",
		Start: time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
		End:   time.Date(2026, 3, 2, 11, 0, 0, 0, time.UTC),
	}

	t.Run("puts to the event resource", func(t *testing.T) {
		client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPut, r.Method)
			assert.Equal(t, "/calendars/primary/events/evt-1", r.URL.Path)
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id": "evt-1"}`))
		}))

		require.NoError(t, client.UpdateEvent(ctx, testCred(), "primary", "evt-1", body))
	})

	t.Run("propagates a 404 so callers can fall back to create", func(t *testing.T) {
		client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "not found", http.StatusNotFound)
		}))

		err := client.UpdateEvent(ctx, testCred(), "primary", "gone", body)
		assert.True(t, calendarApp.IsNotFound(err))
	})
}

func TestClientDeleteEvent(t *testing.T) {
	ctx := context.Background()

	t.Run("deletes the event", func(t *testing.T) {
		client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodDelete, r.Method)
			assert.Equal(t, "/calendars/primary/events/evt-1", r.URL.Path)
			w.WriteHeader(http.StatusNoContent)
		}))

		assert.NoError(t, client.DeleteEvent(ctx, testCred(), "primary", "evt-1"))
	})

	t.Run("treats 404 and 410 as success", func(t *testing.T) {
		for _, status := range []int{http.StatusNotFound, http.StatusGone} {
			client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "gone", status)
			}))
			assert.NoError(t, client.DeleteEvent(ctx, testCred(), "primary", "evt-1"))
		}
	})

	t.Run("propagates server errors", func(t *testing.T) {
		client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}))

		err := client.DeleteEvent(ctx, testCred(), "primary", "evt-1")
		var pe *calendarApp.ProviderError
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, http.StatusInternalServerError, pe.Status)
	})
}
