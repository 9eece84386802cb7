package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trafficwaker/pkg/autoscaler"
	"trafficwaker/pkg/interfaces"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeSignaler struct {
	calls  int
	result *autoscaler.ApplyResult
	err    error
}

func (f *fakeSignaler) HandleSignal(ctx context.Context) (*autoscaler.ApplyResult, error) {
	f.calls++
	return f.result, f.err
}

type fakeReconciler struct {
	enabled      bool
	settings     autoscaler.Settings
	events       []*interfaces.WakeEvent
	lastLimit    int
	reconciled   int
	reconcileErr error
}

func (f *fakeReconciler) GetStatus(ctx context.Context) (*autoscaler.Status, error) {
	return &autoscaler.Status{Enabled: f.enabled, Namespace: "shop", Mode: "replicas", State: autoscaler.StateAsleep}, nil
}

func (f *fakeReconciler) GetHistory(ctx context.Context, limit int) ([]*interfaces.WakeEvent, error) {
	f.lastLimit = limit
	return f.events, nil
}

func (f *fakeReconciler) Enable()  { f.enabled = true }
func (f *fakeReconciler) Disable() { f.enabled = false }

func (f *fakeReconciler) GetSettings() autoscaler.Settings { return f.settings }

func (f *fakeReconciler) UpdateSettings(ctx context.Context, s autoscaler.Settings) error {
	if s.IdleTimeout <= 0 {
		return fmt.Errorf("%w: idle timeout must be > 0", interfaces.ErrConfigInvalid)
	}
	f.settings = s
	return nil
}

func (f *fakeReconciler) Reconcile(ctx context.Context) error {
	f.reconciled++
	return f.reconcileErr
}

func serve(engine *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestWakeHandler(t *testing.T) {
	t.Run("200 once the wake is issued", func(t *testing.T) {
		signaler := &fakeSignaler{result: &autoscaler.ApplyResult{Mutations: 2, Workloads: []string{"web", "api"}}}
		engine := gin.New()
		engine.Any("/wake", NewWakeHandler(signaler).Wake)

		for _, method := range []string{http.MethodGet, http.MethodPost, http.MethodHead} {
			w := serve(engine, method, "/wake", "")
			assert.Equal(t, http.StatusOK, w.Code, method)
		}
		assert.Equal(t, 3, signaler.calls)

		w := serve(engine, http.MethodGet, "/wake", "")
		var body map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "awake", body["status"])
		assert.Equal(t, float64(2), body["mutations"])
	})

	t.Run("disabled reconciler acknowledges without claiming a wake", func(t *testing.T) {
		signaler := &fakeSignaler{result: &autoscaler.ApplyResult{Disabled: true}}
		engine := gin.New()
		engine.Any("/wake", NewWakeHandler(signaler).Wake)

		w := serve(engine, http.MethodPost, "/wake", "")
		require.Equal(t, http.StatusOK, w.Code)
		var body map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "recorded", body["status"])
		assert.Equal(t, float64(0), body["mutations"])
		assert.Equal(t, 1, signaler.calls)
	})

	t.Run("500 when the wake mutation failed", func(t *testing.T) {
		signaler := &fakeSignaler{err: fmt.Errorf("failed to wake shop: %w", interfaces.ErrBackendUnavailable)}
		engine := gin.New()
		engine.Any("/wake", NewWakeHandler(signaler).Wake)

		w := serve(engine, http.MethodGet, "/wake", "")
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Contains(t, w.Body.String(), "failed to wake shop")
		assert.Equal(t, 1, signaler.calls)
	})
}

func newWakerEngine(r Reconciler) *gin.Engine {
	h := NewWakerHandler(r)
	engine := gin.New()
	g := engine.Group("/api/v1/waker")
	g.GET("/status", h.GetStatus)
	g.GET("/events", h.GetEvents)
	g.POST("/enable", h.Enable)
	g.POST("/disable", h.Disable)
	g.POST("/reconcile", h.Reconcile)
	g.GET("/settings", h.GetSettings)
	g.PUT("/settings", h.UpdateSettings)
	return engine
}

func TestWakerHandler_StatusAndToggle(t *testing.T) {
	r := &fakeReconciler{enabled: true}
	engine := newWakerEngine(r)

	w := serve(engine, http.MethodPost, "/api/v1/waker/disable", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.False(t, r.enabled)

	w = serve(engine, http.MethodGet, "/api/v1/waker/status", "")
	require.Equal(t, http.StatusOK, w.Code)
	var status map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, false, status["enabled"])
	assert.Equal(t, "asleep", status["state"])

	w = serve(engine, http.MethodPost, "/api/v1/waker/enable", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, r.enabled)
}

func TestWakerHandler_Events(t *testing.T) {
	r := &fakeReconciler{events: []*interfaces.WakeEvent{{ID: "evt_1", Action: "wake"}}}
	engine := newWakerEngine(r)

	w := serve(engine, http.MethodGet, "/api/v1/waker/events?limit=5", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 5, r.lastLimit)
	assert.Contains(t, w.Body.String(), "evt_1")

	serve(engine, http.MethodGet, "/api/v1/waker/events?limit=bogus", "")
	assert.Equal(t, 20, r.lastLimit)
}

func TestWakerHandler_Reconcile(t *testing.T) {
	r := &fakeReconciler{}
	engine := newWakerEngine(r)

	w := serve(engine, http.MethodPost, "/api/v1/waker/reconcile", "")
	assert.Equal(t, http.StatusOK, w.Code)

	r.reconcileErr = errors.New("lock lost")
	w = serve(engine, http.MethodPost, "/api/v1/waker/reconcile", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, 2, r.reconciled)
}

func TestWakerHandler_Settings(t *testing.T) {
	r := &fakeReconciler{settings: autoscaler.Settings{Enabled: true, WakeThreshold: 1, IdleTimeout: 2 * time.Minute}}
	engine := newWakerEngine(r)

	w := serve(engine, http.MethodGet, "/api/v1/waker/settings", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"enabled":true,"wakeThreshold":1,"idleTimeout":"2m0s"}`, w.Body.String())

	w = serve(engine, http.MethodPut, "/api/v1/waker/settings", `{"idleTimeout":"5m","wakeThreshold":3}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 5*time.Minute, r.settings.IdleTimeout)
	assert.Equal(t, 3.0, r.settings.WakeThreshold)
	assert.True(t, r.settings.Enabled)

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"idleTimeout":`},
		{"bad duration", `{"idleTimeout":"soon"}`},
		{"rejected by reconciler", `{"idleTimeout":"-1m"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(engine, http.MethodPut, "/api/v1/waker/settings", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
	assert.Equal(t, 5*time.Minute, r.settings.IdleTimeout)
}
