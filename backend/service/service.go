package service

import (
	"context"
	"errors"

	"github.com/devinterview/collab/backend/model"
	"github.com/rs/zerolog"
)

var (
	ErrConnect    = errors.New("unable to connect")
	ErrDisconnect = errors.New("unable to disconnect")
	ErrJoin       = errors.New("unable to join room")
)

type (
	RosterStore interface {
		Join(roomID string, p model.Participant) (*model.Room, error)
		Leave(roomID, userID string) error
		Snapshot(roomID string) ([]model.Participant, error)
	}

	Switch interface {
		Connect(roomID, userID string, wire model.Wire) error
		Disconnect(roomID, userID string) error
		Broadcast(ctx context.Context, roomID string, env model.Envelope, skipUserID string) error
	}

	Collector interface {
		WireOpened(roomID string)
		WireClosed(roomID string)
		MessageRouted(roomID, kind string)
	}

	Service struct {
		roster  RosterStore
		sw      Switch
		metrics Collector
		logger  zerolog.Logger
	}

	Config struct {
		Roster  RosterStore
		Switch  Switch
		Metrics Collector
		Logger  *zerolog.Logger
	}
)

func NewService(cfg Config) *Service {
	m := cfg.Metrics
	if m == nil {
		m = noopCollector{}
	}
	return &Service{
		roster:  cfg.Roster,
		sw:      cfg.Switch,
		metrics: m,
		logger:  cfg.Logger.With().Str("component", "sync-service").Logger(),
	}
}

// CreateSyncSession attaches a wire to the room and starts routing its
// inbound envelopes. Roster membership happens later, when the client
// announces itself with join_room.
func (svc *Service) CreateSyncSession(ctx context.Context, roomID, userID string, wire model.Wire) error {
	if err := svc.sw.Connect(roomID, userID, wire); err != nil {
		return errors.Join(ErrConnect, err)
	}
	svc.metrics.WireOpened(roomID)
	svc.logger.Debug().
		Str("roomID", roomID).
		Str("userID", userID).
		Msg("sync session connected")

	go svc.handleEnvelopes(ctx, roomID, userID, wire.RX)
	return nil
}

// DeleteSyncSession tears the wire down and, if the participant had
// joined the roster, announces the departure with a fresh snapshot.
func (svc *Service) DeleteSyncSession(ctx context.Context, roomID, userID string) error {
	if err := svc.sw.Disconnect(roomID, userID); err != nil {
		return errors.Join(ErrDisconnect, err)
	}
	svc.metrics.WireClosed(roomID)

	if err := svc.roster.Leave(roomID, userID); err == nil {
		svc.broadcastSnapshot(ctx, roomID)
		svc.broadcastLeft(ctx, roomID, userID)
	}
	svc.logger.Debug().
		Str("roomID", roomID).
		Str("userID", userID).
		Msg("sync session deleted")
	return nil
}

func (svc *Service) handleEnvelopes(ctx context.Context, roomID, userID string, rx <-chan model.Envelope) {
	for {
		select {
		case <-ctx.Done():
			return
		case env, ok := <-rx:
			if !ok {
				return
			}
			// connection identity always wins over whatever the client claims
			env.RoomID = roomID
			env.UserID = userID
			svc.route(ctx, env)
		}
	}
}

func (svc *Service) route(ctx context.Context, env model.Envelope) {
	svc.metrics.MessageRouted(env.RoomID, env.Kind)

	switch env.Kind {
	case model.KindJoinRoom:
		var p model.JoinPayload
		if err := env.DecodePayload(&p); err != nil {
			svc.logger.Error().Err(err).Msg("malformed join payload")
			return
		}
		p.User.ID = env.UserID
		p.User.Active = true
		if _, err := svc.roster.Join(env.RoomID, p.User); err != nil {
			svc.logger.Warn().Err(errors.Join(ErrJoin, err)).
				Str("roomID", env.RoomID).
				Str("userID", env.UserID).
				Msg("join rejected")
			return
		}
		svc.broadcastSnapshot(ctx, env.RoomID)
		joined, err := model.NewEnvelope(model.KindUserJoined, env.RoomID, env.UserID, p)
		if err == nil {
			_ = svc.sw.Broadcast(ctx, env.RoomID, joined, "")
		}

	case model.KindLeaveRoom:
		if err := svc.roster.Leave(env.RoomID, env.UserID); err != nil {
			return
		}
		svc.broadcastSnapshot(ctx, env.RoomID)
		svc.broadcastLeft(ctx, env.RoomID, env.UserID)

	case model.KindCodeChange, model.KindCursorMove, model.KindWhiteboardUpdate:
		// continuous state never echoes back to its author
		_ = svc.sw.Broadcast(ctx, env.RoomID, env, env.UserID)

	case model.KindCustomQuestion, model.KindExecutionResult:
		// discrete events reach the whole room, sender included
		_ = svc.sw.Broadcast(ctx, env.RoomID, env, "")

	default:
		svc.logger.Debug().
			Str("kind", env.Kind).
			Str("roomID", env.RoomID).
			Msg("ignoring unknown kind")
	}
}

func (svc *Service) broadcastSnapshot(ctx context.Context, roomID string) {
	users, err := svc.roster.Snapshot(roomID)
	if err != nil {
		svc.logger.Error().Err(err).Str("roomID", roomID).Msg("snapshot failed")
		return
	}
	env, err := model.NewEnvelope(model.KindRoomUsers, roomID, "", model.RoomUsersPayload{Users: users})
	if err != nil {
		svc.logger.Error().Err(err).Msg("failed to build snapshot envelope")
		return
	}
	_ = svc.sw.Broadcast(ctx, roomID, env, "")
}

func (svc *Service) broadcastLeft(ctx context.Context, roomID, userID string) {
	env, err := model.NewEnvelope(model.KindUserLeft, roomID, userID, model.UserLeftPayload{UserID: userID})
	if err != nil {
		return
	}
	_ = svc.sw.Broadcast(ctx, roomID, env, "")
}

type noopCollector struct{}

func (noopCollector) WireOpened(string)            {}
func (noopCollector) WireClosed(string)            {}
func (noopCollector) MessageRouted(string, string) {}
