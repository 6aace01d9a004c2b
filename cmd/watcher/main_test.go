package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/afroash/holdtrack/internal/catalog"
	"github.com/afroash/holdtrack/internal/client"
	"github.com/afroash/holdtrack/internal/measurements"
	"github.com/afroash/holdtrack/internal/models"
	"github.com/afroash/holdtrack/internal/server"
	"github.com/afroash/holdtrack/internal/service"
	"github.com/afroash/holdtrack/internal/storage"
)

func TestDrain(t *testing.T) {
	buffer := client.NewEventBuffer(10, true)
	buffer.Push(models.HoldEvent{Action: models.HoldCreated, DeviceID: "D1"})
	buffer.Push(models.HoldEvent{Action: models.HoldReleased, DeviceID: "D1"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out bytes.Buffer
	drain(ctx, buffer, &out, zerolog.Nop())

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	var event models.HoldEvent
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &event))
	assert.Equal(t, models.HoldReleased, event.Action)
	assert.True(t, buffer.IsEmpty())
}

// TestWatcherReceivesLifecycle runs the server stack in-process and follows
// a hold through create and release on the stream
func TestWatcherReceivesLifecycle(t *testing.T) {
	logger := zerolog.Nop()
	store := storage.NewMemoryStore()
	hub := server.NewHub("secret", server.NewEventHistory(10), server.NewMetrics(), logger)
	defer hub.Close()

	svc := service.New(store, catalog.NewSeededCatalog(5), measurements.NewSyntheticSource(0, 1), logger,
		service.WithPublisher(hub))
	router := server.NewRouter(server.RouterConfig{
		API:     server.NewAPIHandler(svc, store, nil, hub, logger),
		Hub:     hub,
		Metrics: server.NewMetrics(),
		Version: version,
		Logger:  logger,
	})
	ts := httptest.NewServer(router)
	defer ts.Close()

	buffer := client.NewEventBuffer(10, true)
	conn := client.NewConnection(client.ConnectionConfig{
		URL:                  "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/stream/holds",
		AuthToken:            "secret",
		ReconnectInterval:    100 * time.Millisecond,
		MaxReconnectInterval: time.Second,
		PingInterval:         time.Second,
		PongTimeout:          5 * time.Second,
	}, models.NewWatcherInfo("test-watcher", version), buffer, nil, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	go conn.Run(ctx)
	defer conn.Close()

	require.Eventually(t, conn.IsConnected, 2*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return len(hub.Watchers()) == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, svc.CreateAccount(ctx, "A1", nil, nil))
	require.NoError(t, svc.CreateDevice(ctx, "A1", "D1", nil))
	start := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err := svc.CreateHold(ctx, "D1", service.CreateHoldRequest{Label: "QWER0001", Start: start})
	require.NoError(t, err)
	_, err = svc.ReleaseHold(ctx, "D1", service.ReleaseHoldRequest{End: start.Add(24 * time.Hour)})
	require.NoError(t, err)

	require.Eventually(t, func() bool { return buffer.Size() == 2 }, 2*time.Second, 10*time.Millisecond)
	events := buffer.PopBatch(2)
	assert.Equal(t, models.HoldCreated, events[0].Action)
	assert.Equal(t, models.HoldReleased, events[1].Action)
	require.NotNil(t, events[1].Hold)
	assert.Equal(t, "QWER0001", events[1].Hold.Label)
	assert.EqualValues(t, 2, conn.Received())
}
