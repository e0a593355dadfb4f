package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/devinterview/collab/backend/model"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	defaultHandshakeTimeout = 3 * time.Second
	defaultWriteDeadline    = 5 * time.Second
)

var (
	ErrDial = errors.New("unable to dial relay")
)

// State is the adapter's connection state. There is exactly one
// authoritative value per adapter instance.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

type Handler func(model.Envelope)

type Config struct {
	Logger *zerolog.Logger
	// BaseURL is the relay endpoint, e.g. ws://localhost:8888.
	BaseURL string
	RoomID  string
	UserID  string
}

// Adapter owns one physical connection to the relay. It is constructed
// once per room session and handed to dependents by reference; only the
// room session controller drives Connect/Disconnect.
//
// All inbound envelopes are dispatched sequentially on the reader
// goroutine, so subscriber handlers never run concurrently with each
// other.
type Adapter struct {
	logger  zerolog.Logger
	baseURL string
	roomID  string
	userID  string

	mx        sync.Mutex
	state     State
	conn      *websocket.Conn
	nextSub   int
	subs      map[string]map[int]Handler
	stateSubs map[int]func(State)
}

func NewAdapter(cfg Config) *Adapter {
	return &Adapter{
		logger: cfg.Logger.With().
			Str("component", "channel").
			Str("roomID", cfg.RoomID).
			Logger(),
		baseURL:   cfg.BaseURL,
		roomID:    cfg.RoomID,
		userID:    cfg.UserID,
		subs:      make(map[string]map[int]Handler),
		stateSubs: make(map[int]func(State)),
	}
}

func (a *Adapter) State() State {
	a.mx.Lock()
	defer a.mx.Unlock()
	return a.state
}

// OnStateChange registers a connection-state observer and returns its
// unsubscribe func.
func (a *Adapter) OnStateChange(fn func(State)) func() {
	a.mx.Lock()
	defer a.mx.Unlock()
	id := a.nextSub
	a.nextSub++
	a.stateSubs[id] = fn
	return func() {
		a.mx.Lock()
		defer a.mx.Unlock()
		delete(a.stateSubs, id)
	}
}

// Subscribe registers a handler for one message kind and returns its
// unsubscribe func.
func (a *Adapter) Subscribe(kind string, h Handler) func() {
	a.mx.Lock()
	defer a.mx.Unlock()
	id := a.nextSub
	a.nextSub++
	if a.subs[kind] == nil {
		a.subs[kind] = make(map[int]Handler)
	}
	a.subs[kind][id] = h
	return func() {
		a.mx.Lock()
		defer a.mx.Unlock()
		delete(a.subs[kind], id)
	}
}

// Connect dials the relay. Calling it while already connecting or
// connected is a no-op.
func (a *Adapter) Connect(ctx context.Context) error {
	a.mx.Lock()
	if a.state != StateDisconnected {
		a.mx.Unlock()
		return nil
	}
	a.state = StateConnecting
	a.mx.Unlock()
	a.notify(StateConnecting)

	dialer := &websocket.Dialer{HandshakeTimeout: defaultHandshakeTimeout}
	url := fmt.Sprintf("%s/sync/room/%s/user/%s", a.baseURL, a.roomID, a.userID)
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		a.mx.Lock()
		a.state = StateDisconnected
		a.mx.Unlock()
		a.notify(StateDisconnected)
		return errors.Join(ErrDial, err)
	}

	a.mx.Lock()
	a.conn = conn
	a.state = StateConnected
	a.mx.Unlock()
	a.logger.Debug().Str("url", url).Msg("connected")
	a.notify(StateConnected)

	go a.readLoop(conn)
	return nil
}

// Disconnect closes the connection. Idempotent.
func (a *Adapter) Disconnect() {
	a.mx.Lock()
	conn := a.conn
	a.conn = nil
	wasConnected := a.state != StateDisconnected
	a.state = StateDisconnected
	a.mx.Unlock()

	if conn != nil {
		_ = conn.WriteControl(websocket.CloseMessage, []byte{}, time.Now().Add(time.Second))
		_ = conn.Close()
	}
	if wasConnected {
		a.notify(StateDisconnected)
	}
}

// Send marshals payload into an envelope and writes it out. While not
// connected it silently drops the message: losing one stale update
// beats buffering unbounded history across a reconnect.
func (a *Adapter) Send(kind string, payload any) {
	a.mx.Lock()
	defer a.mx.Unlock()

	if a.state != StateConnected || a.conn == nil {
		a.logger.Debug().Str("kind", kind).Msg("send dropped, not connected")
		return
	}

	env, err := model.NewEnvelope(kind, a.roomID, a.userID, payload)
	if err != nil {
		a.logger.Error().Err(err).Str("kind", kind).Msg("failed to marshall payload")
		return
	}
	b, err := json.Marshal(&env)
	if err != nil {
		a.logger.Error().Err(err).Str("kind", kind).Msg("failed to marshall envelope")
		return
	}

	if err := a.conn.SetWriteDeadline(time.Now().Add(defaultWriteDeadline)); err != nil {
		a.logger.Error().Err(err).Msg("failed to set write deadline")
		return
	}
	if err := a.conn.WriteMessage(websocket.TextMessage, b); err != nil {
		// the read loop will notice the dead connection and transition
		a.logger.Error().Err(err).Str("kind", kind).Msg("send failed")
		_ = a.conn.Close()
	}
}

func (a *Adapter) readLoop(conn *websocket.Conn) {
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway) {
				a.logger.Debug().Err(err).Msg("connection closed")
			} else {
				a.logger.Warn().Err(err).Msg("receive failed")
			}
			break
		}

		var env model.Envelope
		if err := json.Unmarshal(msg, &env); err != nil {
			a.logger.Error().Err(err).Msg("failed to unmarshall incoming envelope")
			continue
		}
		a.dispatch(env)
	}
	a.teardown(conn)
}

func (a *Adapter) dispatch(env model.Envelope) {
	a.mx.Lock()
	handlers := make([]Handler, 0, len(a.subs[env.Kind]))
	for _, h := range a.subs[env.Kind] {
		handlers = append(handlers, h)
	}
	a.mx.Unlock()

	if len(handlers) == 0 {
		// unknown or unhandled kinds are ignored, never fatal
		a.logger.Trace().Str("kind", env.Kind).Msg("no subscriber for kind")
		return
	}
	for _, h := range handlers {
		h(env)
	}
}

func (a *Adapter) teardown(conn *websocket.Conn) {
	a.mx.Lock()
	if a.conn != conn {
		// already torn down by an explicit Disconnect
		a.mx.Unlock()
		return
	}
	a.conn = nil
	a.state = StateDisconnected
	a.mx.Unlock()

	_ = conn.Close()
	a.notify(StateDisconnected)
}

func (a *Adapter) notify(s State) {
	a.mx.Lock()
	fns := make([]func(State), 0, len(a.stateSubs))
	for _, fn := range a.stateSubs {
		fns = append(fns, fn)
	}
	a.mx.Unlock()

	for _, fn := range fns {
		fn(s)
	}
}
