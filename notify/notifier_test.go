package notify

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"snsm/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestNewWebhookNotifier_EmptyURL(t *testing.T) {
	assert.Nil(t, NewWebhookNotifier("", time.Second, nil))
}

func TestNotifyBlock_DeliversPayload(t *testing.T) {
	received := make(chan blockEvent, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		var event blockEvent
		require.NoError(t, json.Unmarshal(body, &event))
		received <- event
	}))
	defer server.Close()

	notifier := NewWebhookNotifier(server.URL, time.Second, zaptest.NewLogger(t).Sugar())
	expires := time.Now().UTC().Add(time.Hour)
	notifier.NotifyBlock(&core.BlocklistEntry{
		IPAddress:   "203.0.113.10",
		Reason:      "Auto-blocked: threat_score=82.0",
		Source:      core.BlockSourceCorrelation,
		ThreatScore: 82,
		ExpiresAt:   &expires,
	})

	select {
	case event := <-received:
		assert.Equal(t, "blocked", event.Event)
		assert.Equal(t, "203.0.113.10", event.IPAddress)
		assert.Equal(t, "correlation", event.Source)
		assert.Equal(t, 82.0, event.ThreatScore)
	case <-time.After(2 * time.Second):
		t.Fatal("webhook was never called")
	}
}

func TestNotifyUnblock_DeliversPayload(t *testing.T) {
	received := make(chan blockEvent, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var event blockEvent
		require.NoError(t, json.NewDecoder(r.Body).Decode(&event))
		received <- event
	}))
	defer server.Close()

	notifier := NewWebhookNotifier(server.URL, time.Second, zaptest.NewLogger(t).Sugar())
	notifier.NotifyUnblock("203.0.113.10")

	select {
	case event := <-received:
		assert.Equal(t, "unblocked", event.Event)
		assert.Equal(t, "203.0.113.10", event.IPAddress)
	case <-time.After(2 * time.Second):
		t.Fatal("webhook was never called")
	}
}

func TestNotifier_SuspendsAfterRepeatedFailures(t *testing.T) {
	var calls int
	done := make(chan struct{}, 8)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
		done <- struct{}{}
	}))
	defer server.Close()

	notifier := NewWebhookNotifier(server.URL, time.Second, zaptest.NewLogger(t).Sugar())

	// each failure must land before the next send, to count consecutively
	for i := 0; i < maxConsecutiveFailures; i++ {
		notifier.NotifyUnblock("203.0.113.10")
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("webhook was never called")
		}
		require.Eventually(t, func() bool {
			notifier.mu.Lock()
			defer notifier.mu.Unlock()
			return notifier.failures == (i+1)%maxConsecutiveFailures
		}, 2*time.Second, 10*time.Millisecond)
	}

	assert.True(t, notifier.suspended())

	// suspended delivery never reaches the endpoint
	before := calls
	notifier.NotifyUnblock("203.0.113.10")
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, before, calls)
}

func TestNotifier_SuccessResetsFailureCount(t *testing.T) {
	fail := true
	done := make(chan struct{}, 4)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail {
			w.WriteHeader(http.StatusInternalServerError)
		}
		done <- struct{}{}
	}))
	defer server.Close()

	notifier := NewWebhookNotifier(server.URL, time.Second, zaptest.NewLogger(t).Sugar())

	notifier.NotifyUnblock("203.0.113.10")
	<-done
	require.Eventually(t, func() bool {
		notifier.mu.Lock()
		defer notifier.mu.Unlock()
		return notifier.failures == 1
	}, 2*time.Second, 10*time.Millisecond)

	fail = false
	notifier.NotifyUnblock("203.0.113.10")
	<-done
	require.Eventually(t, func() bool {
		notifier.mu.Lock()
		defer notifier.mu.Unlock()
		return notifier.failures == 0
	}, 2*time.Second, 10*time.Millisecond)

	assert.False(t, notifier.suspended())
}
