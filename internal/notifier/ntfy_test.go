package notifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jikku/phishsim/internal/config"
	"github.com/jikku/phishsim/internal/models"
)

type recorder struct {
	mu       sync.Mutex
	payloads []payload
	status   int
}

func (rec *recorder) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var p payload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&p))

		rec.mu.Lock()
		rec.payloads = append(rec.payloads, p)
		status := rec.status
		rec.mu.Unlock()

		if status == 0 {
			status = http.StatusOK
		}
		w.WriteHeader(status)
	}
}

func (rec *recorder) all() []payload {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return append([]payload(nil), rec.payloads...)
}

func TestNotifyCredentials(t *testing.T) {
	rec := &recorder{}
	srv := httptest.NewServer(rec.handler(t))
	defer srv.Close()

	client := New(config.NtfyConfig{URL: srv.URL, Topic: "campaign"}, nil)
	ev := models.NewCredentialsEvent(time.Date(2026, 1, 2, 3, 4, 5, 0, time.Local), "10.0.0.9", "alice", "wonderland")

	require.NoError(t, client.Notify(context.Background(), ev))

	got := rec.all()
	require.Len(t, got, 1)
	assert.Equal(t, "campaign", got[0].Topic)
	assert.Equal(t, PriorityHigh, got[0].Priority)
	assert.Contains(t, got[0].Message, "alice")
	assert.Contains(t, got[0].Message, "10.0.0.9")
	assert.NotContains(t, got[0].Message, "wonderland")
	assert.NotContains(t, got[0].Title, "wonderland")
}

func TestNotifyOpensOnlyWhenEnabled(t *testing.T) {
	rec := &recorder{}
	srv := httptest.NewServer(rec.handler(t))
	defer srv.Close()

	ev := models.NewOpenEvent(time.Now(), "r-42", "10.0.0.1")

	quiet := New(config.NtfyConfig{URL: srv.URL, Topic: "campaign"}, nil)
	require.NoError(t, quiet.Notify(context.Background(), ev))
	assert.Empty(t, rec.all())

	loud := New(config.NtfyConfig{URL: srv.URL + "/", Topic: "campaign", NotifyOpens: true}, nil)
	require.NoError(t, loud.Notify(context.Background(), ev))

	got := rec.all()
	require.Len(t, got, 1)
	assert.Contains(t, got[0].Message, "r-42")
	assert.Equal(t, PriorityLow, got[0].Priority)
}

func TestNotifyDisabledWithoutTopic(t *testing.T) {
	client := New(config.NtfyConfig{URL: "http://127.0.0.1:1"}, nil)
	ev := models.NewCredentialsEvent(time.Now(), "ip", "u", "p")
	assert.NoError(t, client.Notify(context.Background(), ev))
}

func TestNotifyServerError(t *testing.T) {
	rec := &recorder{status: http.StatusInternalServerError}
	srv := httptest.NewServer(rec.handler(t))
	defer srv.Close()

	client := New(config.NtfyConfig{URL: srv.URL, Topic: "campaign"}, nil)
	err := client.Notify(context.Background(), models.NewCredentialsEvent(time.Now(), "ip", "u", "p"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
}
