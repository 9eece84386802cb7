package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trafficwaker/pkg/config"
	"trafficwaker/pkg/interfaces"
	"trafficwaker/pkg/notification"
)

func TestInitEventStore(t *testing.T) {
	t.Run("no backends leaves history off", func(t *testing.T) {
		app := NewApplication()
		app.config = &config.Config{}

		app.initEventStore()
		assert.Nil(t, app.eventStore)
		assert.Empty(t, app.cleanupFuncs)
	})

	t.Run("cleanup flushes pending notifications", func(t *testing.T) {
		var delivered atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(50 * time.Millisecond)
			delivered.Add(1)
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"code":0}`))
		}))
		defer srv.Close()

		app := NewApplication()
		app.config = &config.Config{Notification: config.NotificationConfig{FeishuWebhookURL: srv.URL}}

		app.initEventStore()
		require.IsType(t, &notification.FeishuNotifier{}, app.eventStore)
		require.Len(t, app.cleanupFuncs, 1)

		err := app.eventStore.Record(context.Background(), &interfaces.WakeEvent{
			ID:        "evt_1",
			Namespace: "shop",
			Action:    "wake",
			Timestamp: time.Date(2025, 3, 4, 3, 0, 0, 0, time.UTC),
		})
		require.NoError(t, err)

		for _, cleanup := range app.cleanupFuncs {
			cleanup()
		}
		assert.Equal(t, int32(1), delivered.Load())
	})
}
