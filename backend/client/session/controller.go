package session

import (
	"context"
	"sync"

	"github.com/devinterview/collab/backend/client/channel"
	"github.com/devinterview/collab/backend/model"
	"github.com/rs/zerolog"
)

type (
	// Channel is what the controller needs from the channel adapter.
	// The controller is the only component allowed to drive the
	// connection lifecycle; everyone else just sends typed payloads.
	Channel interface {
		Connect(ctx context.Context) error
		Disconnect()
		Send(kind string, payload any)
		Subscribe(kind string, h channel.Handler) func()
		OnStateChange(fn func(channel.State)) func()
		State() channel.State
	}

	// Hooks receive decoded remote updates. Nil hooks are skipped.
	Hooks struct {
		OnCodeChange       func(model.CodePayload)
		OnCursorMove       func(model.CursorPayload)
		OnWhiteboardUpdate func(model.ChangeSet)
		OnCustomQuestion   func(model.Question)
		OnExecutionResult  func(model.ExecutionResult)
	}

	Config struct {
		Logger  *zerolog.Logger
		Channel Channel
		RoomID  string
		Self    model.Participant
		Hooks   Hooks
	}

	// Controller joins the room when the channel comes up, clears the
	// roster when it goes down, and demultiplexes every inbound kind.
	Controller struct {
		logger   zerolog.Logger
		ch       Channel
		roomID   string
		self     model.Participant
		presence *Presence
		hooks    Hooks

		mx      sync.Mutex
		unsubs  []func()
		started bool
	}
)

func NewController(cfg Config) *Controller {
	return &Controller{
		logger: cfg.Logger.With().
			Str("component", "room-controller").
			Str("roomID", cfg.RoomID).
			Logger(),
		ch:       cfg.Channel,
		roomID:   cfg.RoomID,
		self:     cfg.Self,
		presence: NewPresence(),
		hooks:    cfg.Hooks,
	}
}

func (c *Controller) Presence() *Presence {
	return c.presence
}

func (c *Controller) Self() model.Participant {
	return c.self
}

// Start acquires all subscriptions, then brings the channel up. The
// join_room announcement rides on the connected transition, so a later
// reconnect re-announces without any extra bookkeeping.
func (c *Controller) Start(ctx context.Context) error {
	c.mx.Lock()
	if c.started {
		c.mx.Unlock()
		return nil
	}
	c.started = true

	kinds := []string{
		model.KindRoomUsers,
		model.KindUserJoined,
		model.KindUserLeft,
		model.KindCodeChange,
		model.KindCursorMove,
		model.KindWhiteboardUpdate,
		model.KindCustomQuestion,
		model.KindExecutionResult,
	}
	for _, kind := range kinds {
		c.unsubs = append(c.unsubs, c.ch.Subscribe(kind, c.handle))
	}
	c.unsubs = append(c.unsubs, c.ch.OnStateChange(c.stateChanged))
	c.mx.Unlock()

	if c.ch.State() == channel.StateConnected {
		c.announce()
		return nil
	}
	return c.ch.Connect(ctx)
}

// Stop leaves the room, releases every subscription and tears the
// channel down. A debounced update pending elsewhere is simply dropped.
func (c *Controller) Stop() {
	c.mx.Lock()
	if !c.started {
		c.mx.Unlock()
		return
	}
	c.started = false
	unsubs := c.unsubs
	c.unsubs = nil
	c.mx.Unlock()

	c.ch.Send(model.KindLeaveRoom, model.UserLeftPayload{UserID: c.self.ID})
	for _, unsub := range unsubs {
		unsub()
	}
	c.ch.Disconnect()
	c.presence.Clear()
}

func (c *Controller) stateChanged(s channel.State) {
	switch s {
	case channel.StateConnected:
		c.announce()
	case channel.StateDisconnected:
		// presence is rebuilt from the next room_users snapshot
		c.presence.Clear()
	}
}

func (c *Controller) announce() {
	c.ch.Send(model.KindJoinRoom, model.JoinPayload{User: c.self})
}

func (c *Controller) handle(env model.Envelope) {
	switch env.Kind {
	case model.KindRoomUsers:
		var p model.RoomUsersPayload
		if !c.decode(env, &p) {
			return
		}
		c.presence.Replace(p.Users)

	case model.KindUserJoined, model.KindUserLeft:
		// informational only, the snapshot broadcast is authoritative
		c.logger.Debug().
			Str("kind", env.Kind).
			Str("userID", env.UserID).
			Msg("membership notification")

	case model.KindCodeChange:
		if c.isOwnEcho(env) {
			return
		}
		var p model.CodePayload
		if c.decode(env, &p) && c.hooks.OnCodeChange != nil {
			c.hooks.OnCodeChange(p)
		}

	case model.KindCursorMove:
		if c.isOwnEcho(env) {
			return
		}
		var p model.CursorPayload
		if c.decode(env, &p) && c.hooks.OnCursorMove != nil {
			c.hooks.OnCursorMove(p)
		}

	case model.KindWhiteboardUpdate:
		if c.isOwnEcho(env) {
			return
		}
		var p model.WhiteboardPayload
		if c.decode(env, &p) && c.hooks.OnWhiteboardUpdate != nil {
			c.hooks.OnWhiteboardUpdate(p.Changes)
		}

	case model.KindCustomQuestion:
		if c.isOwnEcho(env) {
			return
		}
		var p model.QuestionPayload
		if c.decode(env, &p) && c.hooks.OnCustomQuestion != nil {
			c.hooks.OnCustomQuestion(p.Question)
		}

	case model.KindExecutionResult:
		if c.isOwnEcho(env) {
			return
		}
		var p model.ExecutionResult
		if c.decode(env, &p) && c.hooks.OnExecutionResult != nil {
			c.hooks.OnExecutionResult(p)
		}

	default:
		c.logger.Trace().Str("kind", env.Kind).Msg("ignoring unknown kind")
	}
}

// isOwnEcho recognizes messages this participant authored that the
// relay broadcast back (custom_question and execution_result reach the
// whole room, sender included).
func (c *Controller) isOwnEcho(env model.Envelope) bool {
	return env.UserID == c.self.ID
}

func (c *Controller) decode(env model.Envelope, v any) bool {
	if err := env.DecodePayload(v); err != nil {
		c.logger.Error().Err(err).Str("kind", env.Kind).Msg("malformed payload")
		return false
	}
	return true
}
