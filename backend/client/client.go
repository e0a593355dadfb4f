// Package client is the in-process protocol layer one participant
// embeds: a channel adapter to the relay, a room session controller,
// presence, and the reconciliation components for code, whiteboard and
// side-channel state.
package client

import (
	"context"
	"time"

	"github.com/devinterview/collab/backend/client/channel"
	"github.com/devinterview/collab/backend/client/session"
	"github.com/devinterview/collab/backend/client/sync"
	"github.com/devinterview/collab/backend/model"
	"github.com/rs/zerolog"
)

type Config struct {
	Logger *zerolog.Logger
	// RelayURL is the sync relay endpoint, e.g. ws://localhost:8888.
	RelayURL  string
	SessionID string
	Self      model.Participant
	// Store, when set, persists debounced code outside the stream.
	Store       sync.CodeStore
	QuietPeriod time.Duration
	Language    string

	// UI notification hooks, all optional.
	OnCodeApplied       func(model.CodePayload)
	OnWhiteboardApplied func(model.ChangeSet)
	OnQuestion          func(model.Question)
	OnResult            func(model.ExecutionResult)
	OnCursor            func(model.CursorPayload)
	OnState             func(channel.State)
}

// Client wires the sync engine together. Construct one per room
// session; the embedded adapter owns the only physical connection.
type Client struct {
	logger     zerolog.Logger
	adapter    *channel.Adapter
	controller *session.Controller

	Code  *sync.CodeSync
	Board *sync.Whiteboard
	Side  *sync.SideChannel
}

func New(cfg Config) *Client {
	logger := cfg.Logger.With().Str("sessionID", cfg.SessionID).Logger()

	adapter := channel.NewAdapter(channel.Config{
		Logger:  &logger,
		BaseURL: cfg.RelayURL,
		RoomID:  cfg.SessionID,
		UserID:  cfg.Self.ID,
	})

	code := sync.NewCodeSync(sync.CodeConfig{
		Logger:    &logger,
		SessionID: cfg.SessionID,
		Emit: func(p model.CodePayload) {
			adapter.Send(model.KindCodeChange, p)
		},
		Store:       cfg.Store,
		OnApplied:   cfg.OnCodeApplied,
		QuietPeriod: cfg.QuietPeriod,
		Language:    cfg.Language,
	})

	board := sync.NewWhiteboard(sync.WhiteboardConfig{
		Logger: &logger,
		Emit: func(cs model.ChangeSet) {
			adapter.Send(model.KindWhiteboardUpdate, model.WhiteboardPayload{Changes: cs})
		},
		OnApplied: cfg.OnWhiteboardApplied,
	})

	side := sync.NewSideChannel(sync.SideChannelConfig{
		Logger: &logger,
		EmitQuestion: func(q model.Question) {
			adapter.Send(model.KindCustomQuestion, model.QuestionPayload{Question: q})
		},
		EmitResult: func(r model.ExecutionResult) {
			adapter.Send(model.KindExecutionResult, r)
		},
		OnQuestion: cfg.OnQuestion,
		OnResult:   cfg.OnResult,
	})

	controller := session.NewController(session.Config{
		Logger:  &logger,
		Channel: adapter,
		RoomID:  cfg.SessionID,
		Self:    cfg.Self,
		Hooks: session.Hooks{
			OnCodeChange:       code.ApplyRemote,
			OnWhiteboardUpdate: board.ApplyRemote,
			OnCustomQuestion:   side.ApplyQuestion,
			OnExecutionResult:  side.ApplyResult,
			OnCursorMove:       cfg.OnCursor,
		},
	})

	if cfg.OnState != nil {
		adapter.OnStateChange(cfg.OnState)
	}

	return &Client{
		logger:     logger,
		adapter:    adapter,
		controller: controller,
		Code:       code,
		Board:      board,
		Side:       side,
	}
}

// Start joins the room: subscriptions first, then the dial, with the
// join_room announcement riding on the connected transition.
func (c *Client) Start(ctx context.Context) error {
	return c.controller.Start(ctx)
}

// Stop leaves the room and drops any pending debounce.
func (c *Client) Stop() {
	c.Code.Close()
	c.controller.Stop()
}

func (c *Client) Presence() *session.Presence {
	return c.controller.Presence()
}

func (c *Client) Connected() bool {
	return c.adapter.State() == channel.StateConnected
}

// SendCursor shares the local caret position. Fire-and-forget.
func (c *Client) SendCursor(line, column int) {
	c.adapter.Send(model.KindCursorMove, model.CursorPayload{Line: line, Column: column})
}
