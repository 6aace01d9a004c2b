package server

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/afroash/holdtrack/internal/models"
)

// Constants for WebSocket timeouts
const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 64
)

// Hub fans committed hold events out to WebSocket watchers
type Hub struct {
	upgrader       websocket.Upgrader
	authToken      string
	history        *EventHistory
	metrics        *Metrics
	logger         zerolog.Logger
	watchers       map[*watcherConn]struct{}
	allowedOrigins []string
	mutex          sync.RWMutex
}

// watcherConn is a single connected watcher
type watcherConn struct {
	id          string
	conn        *websocket.Conn
	send        chan *models.Message
	lastSeen    time.Time
	connectedAt time.Time
}

// WatcherStatus describes a connected watcher for the stats endpoint
type WatcherStatus struct {
	WatcherID   string    `json:"watcher_id"`
	RemoteAddr  string    `json:"remote_addr"`
	LastSeen    time.Time `json:"last_seen"`
	ConnectedAt time.Time `json:"connected_at"`
}

// NewHub creates a stream hub. An empty authToken accepts any watcher.
func NewHub(authToken string, history *EventHistory, metrics *Metrics, logger zerolog.Logger, allowedOrigins ...string) *Hub {
	if history == nil {
		history = NewEventHistory(0)
	}
	h := &Hub{
		authToken:      authToken,
		history:        history,
		metrics:        metrics,
		logger:         logger,
		watchers:       make(map[*watcherConn]struct{}),
		allowedOrigins: allowedOrigins,
	}

	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}

	return h
}

// checkOrigin validates the incoming request's Origin against the configured allowlist
func (h *Hub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	// No Origin header means same-origin request
	if origin == "" {
		return true
	}

	for _, allowed := range h.allowedOrigins {
		if origin == allowed {
			return true
		}
	}

	h.logger.Warn().Str("origin", origin).Msg("Rejected WebSocket connection: origin not in allowlist")
	return false
}

// validateToken checks the "Bearer <token>" Authorization header
func (h *Hub) validateToken(authHeader string) bool {
	if h.authToken == "" {
		return true
	}
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return false
	}
	return strings.TrimPrefix(authHeader, "Bearer ") == h.authToken
}

// Publish records event and forwards it to every watcher. Watchers whose
// send buffer is full are disconnected.
func (h *Hub) Publish(event models.HoldEvent) {
	msg, err := models.NewMessage(models.MessageTypeHoldEvent, event)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to encode hold event")
		return
	}
	if h.metrics != nil {
		h.metrics.HoldEventsTotal.WithLabelValues(string(event.Action)).Inc()
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()

	h.history.Add(event)
	for w := range h.watchers {
		select {
		case w.send <- msg:
		default:
			h.logger.Warn().Str("watcher_id", w.id).Msg("Watcher too slow, disconnecting")
			h.dropLocked(w)
		}
	}
}

// ServeHTTP upgrades the request and streams hold events until the watcher leaves
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.validateToken(r.Header.Get("Authorization")) {
		writeJSON(w, http.StatusUnauthorized, errorResponse{
			Error:     "Unauthorized",
			Code:      http.StatusUnauthorized,
			RequestID: RequestIDFromContext(r.Context()),
		})
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to upgrade connection")
		return
	}

	h.handleConnection(conn)
}

// handleConnection manages a single WebSocket connection
func (h *Hub) handleConnection(conn *websocket.Conn) {
	wc := &watcherConn{
		id:          conn.RemoteAddr().String(), // Replaced by the watcher id from its first heartbeat
		conn:        conn,
		send:        make(chan *models.Message, sendBuffer),
		lastSeen:    time.Now(),
		connectedAt: time.Now(),
	}

	h.register(wc)
	go h.writeLoop(wc)
	defer h.unregister(wc)

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var msg models.Message
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				h.logger.Warn().Err(err).Msg("WebSocket error")
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))
		h.handleMessage(wc, &msg)
	}
}

// register replays history and adds the watcher under one lock so no
// event is missed or delivered twice
func (h *Hub) register(wc *watcherConn) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	replayed := 0
	for _, event := range h.history.Latest(sendBuffer) {
		msg, err := models.NewMessage(models.MessageTypeHoldEvent, event)
		if err != nil {
			continue
		}
		wc.send <- msg
		replayed++
	}
	h.watchers[wc] = struct{}{}
	if h.metrics != nil {
		h.metrics.StreamWatchers.Set(float64(len(h.watchers)))
	}

	h.logger.Info().
		Str("remote_addr", wc.conn.RemoteAddr().String()).
		Int("replayed", replayed).
		Msg("Watcher connected")
}

// unregister removes the watcher and stops its writer
func (h *Hub) unregister(wc *watcherConn) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.dropLocked(wc)
}

func (h *Hub) dropLocked(wc *watcherConn) {
	if _, ok := h.watchers[wc]; !ok {
		return
	}
	delete(h.watchers, wc)
	close(wc.send)
	if h.metrics != nil {
		h.metrics.StreamWatchers.Set(float64(len(h.watchers)))
	}
	h.logger.Info().Str("watcher_id", wc.id).Msg("Watcher disconnected")
}

// writeLoop is the only goroutine writing to the connection
func (h *Hub) writeLoop(wc *watcherConn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		wc.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-wc.send:
			wc.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				wc.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := wc.conn.WriteJSON(msg); err != nil {
				h.logger.Warn().Err(err).Str("remote_addr", wc.conn.RemoteAddr().String()).Msg("Failed to write to watcher")
				return
			}
		case <-ticker.C:
			wc.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := wc.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage processes a single message from a watcher
func (h *Hub) handleMessage(wc *watcherConn, msg *models.Message) {
	h.logger.Debug().Str("type", string(msg.Type)).Msg("Received message")

	switch msg.Type {
	case models.MessageTypeHeartbeat:
		h.handleHeartbeat(wc, msg)
		h.sendAck(wc)
	default:
		h.logger.Warn().Str("type", string(msg.Type)).Msg("Unknown message type")
	}
}

// handleHeartbeat processes a heartbeat message
func (h *Hub) handleHeartbeat(wc *watcherConn, msg *models.Message) {
	var heartbeat models.HeartbeatMessage
	if err := msg.UnmarshalPayload(&heartbeat); err != nil {
		h.logger.Error().Err(err).Msg("Failed to unmarshal heartbeat")
		return
	}

	h.mutex.Lock()
	if heartbeat.WatcherID != "" {
		wc.id = heartbeat.WatcherID
	}
	wc.lastSeen = time.Now()
	h.mutex.Unlock()

	h.logger.Debug().
		Str("watcher_id", heartbeat.WatcherID).
		Int64("uptime", heartbeat.Uptime).
		Int64("received", heartbeat.Received).
		Msg("Heartbeat received")
}

// sendAck queues an acknowledgment message
func (h *Hub) sendAck(wc *watcherConn) {
	msg, err := models.NewMessage(models.MessageTypeAck, models.AckMessage{Status: "ok"})
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to create ack message")
		return
	}

	h.mutex.RLock()
	defer h.mutex.RUnlock()
	if _, ok := h.watchers[wc]; !ok {
		return
	}
	select {
	case wc.send <- msg:
	default:
	}
}

// Watchers returns the currently connected watchers
func (h *Hub) Watchers() []WatcherStatus {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	watchers := make([]WatcherStatus, 0, len(h.watchers))
	for wc := range h.watchers {
		watchers = append(watchers, WatcherStatus{
			WatcherID:   wc.id,
			RemoteAddr:  wc.conn.RemoteAddr().String(),
			LastSeen:    wc.lastSeen,
			ConnectedAt: wc.connectedAt,
		})
	}
	return watchers
}

// History exposes the replay buffer
func (h *Hub) History() *EventHistory {
	return h.history
}

// Close disconnects every watcher
func (h *Hub) Close() {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	for wc := range h.watchers {
		h.dropLocked(wc)
	}
}
