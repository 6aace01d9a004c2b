package client

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/afroash/holdtrack/internal/models"
)

// ConnectionState represents the current state of the connection
type ConnectionState int

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
)

func (cs ConnectionState) String() string {
	switch cs {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "unknown"
	}
}

// EventHandler is called for every hold event received from the stream
type EventHandler func(event models.HoldEvent)

// Connection subscribes to the server's hold event stream
type Connection struct {
	URL                      string
	AuthToken                string
	conn                     *websocket.Conn
	state                    ConnectionState
	stateMutex               sync.RWMutex
	writeMutex               sync.Mutex
	logger                   zerolog.Logger
	watcherInfo              *models.WatcherInfo
	buffer                   *EventBuffer
	onEvent                  EventHandler
	received                 atomic.Int64
	connectTimeout           time.Duration
	reconnectInterval        time.Duration
	maxReconnectInterval     time.Duration
	currentReconnectInterval time.Duration
	pingInterval             time.Duration
	pongTimeout              time.Duration
	lastPong                 time.Time
	lastPongMutex            sync.RWMutex
}

// ConnectionConfig holds configuration for the connection
type ConnectionConfig struct {
	URL                  string
	AuthToken            string
	ConnectTimeout       time.Duration
	ReconnectInterval    time.Duration
	MaxReconnectInterval time.Duration
	PingInterval         time.Duration
	PongTimeout          time.Duration
}

// NewConnection creates a new stream subscription. Received events are pushed
// to buffer when it is non-nil and passed to onEvent when it is non-nil.
func NewConnection(config ConnectionConfig, watcherInfo *models.WatcherInfo, buffer *EventBuffer, onEvent EventHandler, logger zerolog.Logger) *Connection {
	connectTimeout := config.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 10 * time.Second
	}
	return &Connection{
		URL:                      config.URL,
		AuthToken:                config.AuthToken,
		state:                    StateDisconnected,
		logger:                   logger,
		watcherInfo:              watcherInfo,
		buffer:                   buffer,
		onEvent:                  onEvent,
		connectTimeout:           connectTimeout,
		reconnectInterval:        config.ReconnectInterval,
		maxReconnectInterval:     config.MaxReconnectInterval,
		currentReconnectInterval: config.ReconnectInterval,
		pingInterval:             config.PingInterval,
		pongTimeout:              config.PongTimeout,
	}
}

// setState safely updates the connection state
func (c *Connection) setState(state ConnectionState) {
	c.stateMutex.Lock()
	defer c.stateMutex.Unlock()
	c.state = state
	c.logger.Info().Str("state", state.String()).Msg("Connection state updated")
}

// State returns the current connection state
func (c *Connection) State() ConnectionState {
	c.stateMutex.RLock()
	defer c.stateMutex.RUnlock()
	return c.state
}

// IsConnected returns true if currently connected
func (c *Connection) IsConnected() bool {
	return c.State() == StateConnected
}

// Received returns the number of hold events received since start
func (c *Connection) Received() int64 {
	return c.received.Load()
}

// Connect establishes a WebSocket connection to the stream endpoint
func (c *Connection) Connect(ctx context.Context) error {
	c.setState(StateConnecting)
	c.logger.Info().Str("url", c.URL).Msg("Connecting to hold stream...")

	dialer := websocket.Dialer{
		HandshakeTimeout: c.connectTimeout,
	}

	header := http.Header{}
	if c.AuthToken != "" {
		header.Set("Authorization", "Bearer "+c.AuthToken)
	}

	conn, resp, err := dialer.DialContext(ctx, c.URL, header)
	if err != nil {
		c.setState(StateDisconnected)
		if resp != nil {
			return fmt.Errorf("dial failed with status %d: %w", resp.StatusCode, err)
		}
		return fmt.Errorf("dial failed: %w", err)
	}
	defer resp.Body.Close()

	c.stateMutex.Lock()
	c.conn = conn
	c.stateMutex.Unlock()
	c.setState(StateConnected)
	c.currentReconnectInterval = c.reconnectInterval // reset backoff
	c.logger.Info().Msg("Connected to hold stream")

	if err := c.sendHeartbeat(); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to send registration")
		c.disconnect()
		return err
	}

	return nil
}

// Run starts the subscription with auto-reconnect
// Blocks until context is cancelled
func (c *Connection) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := c.Connect(ctx); err != nil {
			c.logger.Warn().Err(err).Msg("Connection failed")
			c.waitBeforeReconnect(ctx)
			continue
		}

		c.runMessageLoops(ctx)

		c.logger.Info().Msg("Connection lost, will reconnect")
		c.waitBeforeReconnect(ctx)
	}
}

// waitBeforeReconnect waits before next reconnection attempt with exponential backoff
func (c *Connection) waitBeforeReconnect(ctx context.Context) {
	c.logger.Info().Dur("delay", c.currentReconnectInterval).Msg("Waiting before reconnect")
	select {
	case <-time.After(c.currentReconnectInterval):
	case <-ctx.Done():
		return
	}
	c.currentReconnectInterval *= 2
	if c.currentReconnectInterval > c.maxReconnectInterval {
		c.currentReconnectInterval = c.maxReconnectInterval
	}
}

// runMessageLoops runs read and heartbeat loops until the connection fails
func (c *Connection) runMessageLoops(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer cancel()
		c.readLoop()
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		c.heartbeatLoop(ctx)
		// Unblock the read loop
		c.disconnect()
	}()

	wg.Wait()
	c.disconnect()
}

// disconnect closes the WebSocket connection
func (c *Connection) disconnect() {
	c.stateMutex.Lock()
	defer c.stateMutex.Unlock()
	if c.conn != nil {
		c.conn.Close()
	}
	if c.state != StateDisconnected {
		c.state = StateDisconnected
		c.logger.Info().Msg("Connection disconnected")
	}
}

// sendMessage sends a message over the WebSocket
func (c *Connection) sendMessage(msg *models.Message) error {
	c.stateMutex.RLock()
	conn := c.conn
	c.stateMutex.RUnlock()
	if conn == nil {
		return fmt.Errorf("not connected")
	}

	c.writeMutex.Lock()
	defer c.writeMutex.Unlock()
	conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return conn.WriteJSON(msg)
}

// readLoop reads messages from the server until the connection fails
func (c *Connection) readLoop() {
	c.logger.Debug().Msg("Starting read loop")
	defer c.logger.Debug().Msg("Read loop stopped")

	c.stateMutex.RLock()
	conn := c.conn
	c.stateMutex.RUnlock()

	conn.SetPingHandler(func(data string) error {
		c.updateLastPong()
		c.writeMutex.Lock()
		defer c.writeMutex.Unlock()
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(time.Second))
	})

	for {
		var msg models.Message
		if err := conn.ReadJSON(&msg); err != nil {
			c.logger.Warn().Err(err).Msg("Read error")
			return
		}
		c.handleMessage(&msg)
	}
}

// handleMessage processes a message received from the server
func (c *Connection) handleMessage(msg *models.Message) {
	c.logger.Debug().Str("type", string(msg.Type)).Msg("Received message")
	switch msg.Type {
	case models.MessageTypeHoldEvent:
		var event models.HoldEvent
		if err := msg.UnmarshalPayload(&event); err != nil {
			c.logger.Error().Err(err).Msg("Failed to unmarshal hold event")
			return
		}
		c.received.Add(1)
		c.updateLastPong()
		if c.buffer != nil {
			c.buffer.Push(event)
		}
		if c.onEvent != nil {
			c.onEvent(event)
		}
	case models.MessageTypeAck:
		c.logger.Debug().Msg("Received ack")
		c.updateLastPong()
	case models.MessageTypeError:
		var errMsg models.ErrorMessage
		if err := msg.UnmarshalPayload(&errMsg); err == nil {
			c.logger.Warn().Str("code", errMsg.Code).Str("msg", errMsg.Message).Msg("Server error")
		}
	default:
		c.logger.Debug().Str("type", string(msg.Type)).Msg("Unknown message type")
	}
}

// updateLastPong records that the server is alive
func (c *Connection) updateLastPong() {
	c.lastPongMutex.Lock()
	defer c.lastPongMutex.Unlock()
	c.lastPong = time.Now()
}

// timeSinceLastPong returns duration since the server was last heard from
func (c *Connection) timeSinceLastPong() time.Duration {
	c.lastPongMutex.RLock()
	defer c.lastPongMutex.RUnlock()
	return time.Since(c.lastPong)
}

// heartbeatLoop sends periodic heartbeats and monitors connection health
func (c *Connection) heartbeatLoop(ctx context.Context) {
	c.logger.Debug().Msg("Starting heartbeat loop")
	defer c.logger.Debug().Msg("Heartbeat loop stopped")

	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()
	c.updateLastPong()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.sendHeartbeat(); err != nil {
				c.logger.Warn().Err(err).Msg("Failed to send heartbeat")
				return
			}
			if c.timeSinceLastPong() > c.pongTimeout {
				c.logger.Warn().Msg("No ack received, connection appears dead")
				return
			}
		}
	}
}

// sendHeartbeat sends a heartbeat message to the server
func (c *Connection) sendHeartbeat() error {
	heartbeat := models.HeartbeatMessage{
		WatcherID: c.watcherInfo.ID,
		Uptime:    int64(c.watcherInfo.Uptime().Seconds()),
		Received:  c.received.Load(),
	}
	msg, err := models.NewMessage(models.MessageTypeHeartbeat, heartbeat)
	if err != nil {
		return err
	}
	return c.sendMessage(msg)
}

// Close gracefully shuts down the connection
func (c *Connection) Close() error {
	c.logger.Info().Msg("Closing connection")

	c.stateMutex.RLock()
	conn := c.conn
	c.stateMutex.RUnlock()

	if conn != nil {
		c.writeMutex.Lock()
		conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		c.writeMutex.Unlock()
		conn.Close()
	}

	c.setState(StateDisconnected)
	c.logger.Info().Msg("Connection closed")
	return nil
}
