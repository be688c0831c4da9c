package lp

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webitel/shardscope/internal/domain/registry"
)

func TestPollReturnsNextSnapshot(t *testing.T) {
	hub := registry.NewHub()
	h := NewLPHandler(hub, time.Second)

	rec := httptest.NewRecorder()
	done := make(chan struct{})
	go func() {
		defer close(done)
		h.Poll(rec, httptest.NewRequest(http.MethodGet, "/poll/fleet", nil))
	}()

	require.Eventually(t, func() bool { return hub.Watchers() == 1 }, time.Second, time.Millisecond)
	hub.Broadcast([]byte(`{"id":"s1"}`))
	<-done

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id":"s1"}`, rec.Body.String())
	assert.Zero(t, hub.Watchers())
}

func TestPollTimesOut(t *testing.T) {
	hub := registry.NewHub()
	rec := httptest.NewRecorder()

	NewLPHandler(hub, 10*time.Millisecond).Poll(rec, httptest.NewRequest(http.MethodGet, "/poll/fleet", nil))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Zero(t, hub.Watchers())
}

func TestPollAfterShutdown(t *testing.T) {
	hub := registry.NewHub()
	hub.Shutdown()
	rec := httptest.NewRecorder()

	NewLPHandler(hub, time.Second).Poll(rec, httptest.NewRequest(http.MethodGet, "/poll/fleet", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
