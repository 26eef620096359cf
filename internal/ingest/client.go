package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/furnace-core/internal/infrastructure/config"
	"github.com/nerrad567/furnace-core/internal/session"
	"github.com/nerrad567/furnace-core/internal/telemetry"
)

const (
	defaultHandshakeTimeout = 10 * time.Second
	writeTimeout            = 10 * time.Second

	// maxMessageSize bounds one hub frame. state_changed events carry full
	// attribute maps and can be large.
	maxMessageSize = 4 << 20
)

var (
	// ErrAuthInvalid is returned by Run when the hub rejects the token.
	ErrAuthInvalid = errors.New("ingest: hub rejected access token")

	// ErrConnectionClosed is returned by Run when the transport fails or the hub closes.
	ErrConnectionClosed = errors.New("ingest: hub connection closed")
)

// State is the client's connection state.
type State int32

// Connection states.
const (
	StateDisconnected State = iota
	StateConnecting
	StateAuthPending
	StateSubscribed
	StateError
	StateClosed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateConnecting:
		return "CONNECTING"
	case StateAuthPending:
		return "AUTH_PENDING"
	case StateSubscribed:
		return "SUBSCRIBED"
	case StateError:
		return "ERROR"
	case StateClosed:
		return "CLOSED"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Logger defines the logging interface used by the Client.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Router resolves an entity id to its active routing entry.
// *session.Registry satisfies it.
type Router interface {
	GetSensorInfo(entityID string) (session.RoutingEntry, bool)
}

// Enqueuer accepts resolved readings. *telemetry.Writer satisfies it.
type Enqueuer interface {
	Enqueue(ctx context.Context, ev telemetry.Event) error
}

// Stats are the client's counters since construction.
type Stats struct {
	State     string                `json:"state"`
	Received  uint64                `json:"received"`
	Enqueued  uint64                `json:"enqueued"`
	Dropped   map[DropReason]uint64 `json:"dropped"`
	Malformed uint64                `json:"malformed"`
}

// Client ingests hub events. Run it once; it does not reconnect.
type Client struct {
	cfg    config.HubConfig
	router Router
	sink   Enqueuer
	logger Logger
	dialer *websocket.Dialer
	now    func() time.Time

	state    atomic.Int32
	authSent bool

	received  atomic.Uint64
	enqueued  atomic.Uint64
	malformed atomic.Uint64

	dropMu  sync.Mutex
	dropped map[DropReason]uint64
}

// NewClient creates a client for cfg that routes through router and
// hands readings to sink.
func NewClient(cfg config.HubConfig, router Router, sink Enqueuer) *Client {
	handshake := cfg.GetHandshakeTimeout()
	if handshake <= 0 {
		handshake = defaultHandshakeTimeout
	}
	if cfg.EventType == "" {
		cfg.EventType = EventStateChanged
	}
	return &Client{
		cfg:    cfg,
		router: router,
		sink:   sink,
		logger: noopLogger{},
		dialer: &websocket.Dialer{
			HandshakeTimeout: handshake,
			Proxy:            websocket.DefaultDialer.Proxy,
		},
		now:     time.Now,
		dropped: make(map[DropReason]uint64),
	}
}

// SetLogger sets the logger. Call before Run.
func (c *Client) SetLogger(logger Logger) {
	c.logger = logger
}

// State returns the current connection state.
func (c *Client) State() State {
	return State(c.state.Load())
}

func (c *Client) setState(s State) {
	old := State(c.state.Swap(int32(s)))
	if old != s {
		c.logger.Debug("hub state changed", "from", old.String(), "to", s.String())
	}
}

// Stats returns a snapshot of the counters.
func (c *Client) Stats() Stats {
	c.dropMu.Lock()
	dropped := make(map[DropReason]uint64, len(c.dropped))
	for k, v := range c.dropped {
		dropped[k] = v
	}
	c.dropMu.Unlock()

	return Stats{
		State:     c.State().String(),
		Received:  c.received.Load(),
		Enqueued:  c.enqueued.Load(),
		Dropped:   dropped,
		Malformed: c.malformed.Load(),
	}
}

func (c *Client) drop(reason DropReason) {
	c.dropMu.Lock()
	c.dropped[reason]++
	c.dropMu.Unlock()
}

// Run connects, authenticates, subscribes and processes events until the
// connection ends.
//
// Returns:
//   - nil: ctx was cancelled
//   - ErrAuthInvalid: the hub rejected the token (state ERROR)
//   - ErrConnectionClosed: dial failure, transport error or hub close (state CLOSED)
func (c *Client) Run(ctx context.Context) error {
	c.setState(StateDisconnected)
	c.logger.Info("connecting to hub", "url", c.cfg.URL, "token_present", c.cfg.Token != "")

	conn, resp, err := c.dialer.DialContext(ctx, c.cfg.URL, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close() //nolint:errcheck // Handshake response body is unused
	}
	if err != nil {
		c.setState(StateClosed)
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("%w: dial %s: %w", ErrConnectionClosed, c.cfg.URL, err)
	}
	defer conn.Close()

	c.setState(StateConnecting)
	c.logger.Info("hub connection open")

	conn.SetReadLimit(maxMessageSize)

	// Closing the connection is the only way to unblock ReadMessage.
	stop := context.AfterFunc(ctx, func() {
		conn.Close() //nolint:errcheck // Unblocks the read loop
	})
	defer stop()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				c.setState(StateClosed)
				c.logger.Info("hub connection stopped")
				return nil
			}
			c.setState(StateClosed)
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Error("hub connection lost", "error", err)
			} else {
				c.logger.Warn("hub connection closed", "error", err)
			}
			return fmt.Errorf("%w: %w", ErrConnectionClosed, err)
		}

		if err := c.handleMessage(ctx, conn, data); err != nil {
			if errors.Is(err, ErrAuthInvalid) {
				return err
			}
			c.setState(StateClosed)
			return err
		}
	}
}

// handleMessage dispatches one frame. Only auth rejection and write
// failures are returned; everything else is logged and skipped.
func (c *Client) handleMessage(ctx context.Context, conn *websocket.Conn, data []byte) error {
	var msg inbound
	if err := json.Unmarshal(data, &msg); err != nil {
		c.malformed.Add(1)
		c.logger.Debug("skipping malformed hub frame", "error", err, "bytes", len(data))
		return nil
	}

	switch msg.Type {
	case TypeAuthRequired:
		if c.authSent {
			c.logger.Warn("hub asked for auth twice, ignoring")
			return nil
		}
		c.logger.Info("sending hub auth", "hub_version", msg.Version)
		if err := c.write(conn, authMessage{Type: TypeAuth, AccessToken: c.cfg.Token}); err != nil {
			return err
		}
		c.authSent = true
		c.setState(StateAuthPending)

	case TypeAuthOK:
		if c.State() != StateAuthPending {
			c.logger.Warn("unexpected auth_ok", "state", c.State().String())
			return nil
		}
		c.logger.Info("hub auth ok, subscribing", "event_type", c.cfg.EventType)
		sub := subscribeMessage{ID: subscriptionID, Type: TypeSubscribeEvents, EventType: c.cfg.EventType}
		if err := c.write(conn, sub); err != nil {
			return err
		}
		c.setState(StateSubscribed)

	case TypeAuthInvalid:
		c.setState(StateError)
		c.logger.Error("hub auth invalid", "message", msg.Message)
		return fmt.Errorf("%w: %s", ErrAuthInvalid, msg.Message)

	case TypeResult:
		if msg.Success != nil && !*msg.Success {
			args := []any{"id", msg.ID}
			if msg.Error != nil {
				args = append(args, "code", msg.Error.Code, "message", msg.Error.Message)
			}
			c.logger.Error("hub rejected request", args...)
		}

	case TypeEvent:
		if c.State() != StateSubscribed || msg.Event == nil {
			return nil
		}
		if msg.Event.EventType != EventStateChanged {
			return nil
		}
		c.handleStateChanged(ctx, msg.Event.Data)
	}

	return nil
}

func (c *Client) write(conn *websocket.Conn, v any) error {
	//nolint:errcheck // Best-effort deadline; write error caught below
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteJSON(v); err != nil {
		c.logger.Error("hub write failed", "error", err)
		return fmt.Errorf("%w: write: %w", ErrConnectionClosed, err)
	}
	return nil
}

// handleStateChanged filters, resolves and enqueues one reading.
func (c *Client) handleStateChanged(ctx context.Context, data stateChangedData) {
	c.received.Add(1)

	var raw json.RawMessage
	if data.NewState != nil {
		raw = data.NewState.State
	}
	v, reason, ok := parseReading(raw)
	if !ok {
		c.drop(reason)
		return
	}

	route, found := c.router.GetSensorInfo(data.EntityID)
	if !found {
		c.drop(DropUnrouted)
		return
	}

	ev := telemetry.Event{
		SessionID:  route.SessionID,
		PartID:     route.PartID,
		SensorID:   route.SensorID,
		EntityID:   data.EntityID,
		GroupName:  route.GroupName,
		Value:      formatValue(v),
		CapturedAt: c.now().UTC(),
	}
	if err := c.sink.Enqueue(ctx, ev); err != nil {
		c.drop(DropEnqueue)
		c.logger.Warn("telemetry not queued", "entity_id", data.EntityID, "error", err)
		return
	}
	c.enqueued.Add(1)
	c.logger.Debug("telemetry queued",
		"session_id", route.SessionID,
		"sensor_id", route.SensorID,
		"entity_id", data.EntityID,
		"group", route.GroupName,
		"value", ev.Value,
	)
}
