package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ashfaaq98/secboard/internal/enrich"
	"github.com/Ashfaaq98/secboard/internal/model"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := NewClient(Options{BaseURL: srv.URL + "/", Token: "s3cret", BaseDelay: time.Millisecond})
	require.NoError(t, err)
	return c
}

func TestListTicketsSendsHeaders(t *testing.T) {
	var gotPath, gotAuth, gotReqID string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotReqID = r.Header.Get("X-Request-ID")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id":"t1","title":"Leak","status":"Processing","priority":"High"}]`))
	})

	tickets, err := c.ListTickets(context.Background())
	require.NoError(t, err)
	require.Len(t, tickets, 1)
	assert.Equal(t, "Leak", tickets[0].Title)
	assert.Equal(t, "High", tickets[0].Priority)

	assert.Equal(t, "/api/tickets", gotPath)
	assert.Equal(t, "Bearer s3cret", gotAuth)
	_, err = uuid.Parse(gotReqID)
	assert.NoError(t, err)
}

func TestListNullBodyIsEmpty(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`null`))
	})
	members, err := c.ListMembers(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, members)
	assert.Empty(t, members)
}

func TestGetThreatNotFound(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "no such threat", http.StatusNotFound)
	})

	_, err := c.GetThreat(context.Background(), "th-9")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))

	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusNotFound, se.Code)
	assert.Equal(t, "/api/threats/th-9", se.Path)
	assert.Contains(t, se.Error(), "no such threat")
	assert.Equal(t, int32(1), calls.Load(), "4xx is not retried")
}

func TestGetThreatRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"id":"th-1","name":"Spoofed login","riskScore":7.5}`))
	})

	th, err := c.GetThreat(context.Background(), "th-1")
	require.NoError(t, err)
	assert.Equal(t, "Spoofed login", th.Name)
	assert.Equal(t, 7.5, th.Risk())
	assert.Equal(t, int32(3), calls.Load())
}

func TestGetThreatGivesUpAfterAttempts(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := c.GetThreat(context.Background(), "th-1")
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusInternalServerError, se.Code)
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, int32(3), calls.Load())
}

func TestListRejectsNonJSON(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>login</html>`))
	})
	_, err := c.List(context.Background(), model.KindThreat)
	assert.Error(t, err)
}

func TestNewClientValidatesURL(t *testing.T) {
	_, err := NewClient(Options{})
	assert.Error(t, err)
	_, err = NewClient(Options{BaseURL: "not a url"})
	assert.Error(t, err)
}

func TestThreatSourceFeedsFetcher(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/threats/th-2":
			http.NotFound(w, r)
		default:
			_, _ = w.Write([]byte(`{"id":"` + r.URL.Path[len("/api/threats/"):] + `","name":"x"}`))
		}
	})

	f := enrich.NewFetcher[model.Threat](ThreatSource{Client: c}, enrich.Options{Workers: 2})
	res, err := f.Enrich(context.Background(), []string{"th-1", "th-2", "th-3"})
	require.NoError(t, err)
	assert.Equal(t, 2, res.SuccessCount)
	assert.Equal(t, 1, res.ErrorCount)
	assert.ErrorIs(t, res.Errors["th-2"], ErrNotFound)
	assert.Equal(t, "th-3", res.Cache["th-3"].ID)
}

func TestRetryStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := retry(ctx, 5, time.Hour, func() (bool, error) {
		calls++
		cancel()
		return true, errors.New("boom")
	})
	assert.EqualError(t, err, "boom")
	assert.Equal(t, 1, calls)
}
