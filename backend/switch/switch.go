package _switch

import (
	"context"
	"sync"
	"time"

	"github.com/devinterview/collab/backend/model"
	"github.com/rs/zerolog"
)

const (
	defaultFwdTimeout = time.Second
)

// Switch holds one TX wire per connected participant, grouped by room,
// and fans envelopes out to them.
type Switch struct {
	logger zerolog.Logger
	mx     *sync.RWMutex
	fwd    map[string]map[string]model.Wire
}

func NewSwitch(logger *zerolog.Logger) *Switch {
	return &Switch{
		logger: logger.With().Str("component", "switch").Logger(),
		mx:     &sync.RWMutex{},
		fwd:    make(map[string]map[string]model.Wire),
	}
}

func (sw *Switch) Connect(roomID, userID string, wire model.Wire) error {
	sw.mx.Lock()
	defer func() {
		sw.mx.Unlock()
		sw.logger.Debug().
			Str("roomID", roomID).
			Str("userID", userID).
			Msg("wire connected")
	}()

	room, ok := sw.fwd[roomID]
	if !ok {
		room = make(map[string]model.Wire)
	}
	room[userID] = wire
	sw.fwd[roomID] = room
	return nil
}

func (sw *Switch) Disconnect(roomID, userID string) error {
	sw.mx.Lock()
	defer func() {
		sw.mx.Unlock()
		sw.logger.Debug().
			Str("roomID", roomID).
			Str("userID", userID).
			Msg("wire disconnected")
	}()

	room, ok := sw.fwd[roomID]
	if ok {
		delete(room, userID)
		if len(room) == 0 {
			delete(sw.fwd, roomID)
		}
	}
	return nil
}

// Broadcast forwards env to every wire in the room. A non-empty skipUserID
// excludes that participant, which is how continuous-state kinds avoid
// echoing straight back to their author.
func (sw *Switch) Broadcast(ctx context.Context, roomID string, env model.Envelope, skipUserID string) error {
	sw.mx.RLock()
	room := sw.fwd[roomID]
	wires := make(map[string]model.Wire, len(room))
	for id, wire := range room {
		wires[id] = wire
	}
	sw.mx.RUnlock()

	var sent bool
	for userID, wire := range wires {
		if userID == skipUserID {
			continue
		}
		envSent, canceled := send(ctx, env, wire.TX, &sw.logger)
		if canceled {
			break
		}
		if envSent {
			sent = true
		}
	}
	if !sent {
		sw.logger.Debug().
			Str("roomID", roomID).
			Str("kind", env.Kind).
			Str("src", env.UserID).
			Msg("broadcast did not reach anyone")
	}
	return nil
}

// Wires reports the number of connected wires across all rooms.
func (sw *Switch) Wires() int {
	sw.mx.RLock()
	defer sw.mx.RUnlock()
	var n int
	for _, room := range sw.fwd {
		n += len(room)
	}
	return n
}

func send(ctx context.Context, env model.Envelope, tx chan<- model.Envelope, logger *zerolog.Logger) (bool, bool) {
	var sent, canceled bool
	tCh := time.NewTimer(defaultFwdTimeout)
	select {
	case <-ctx.Done():
		canceled = true
	case <-tCh.C:
		logger.Error().Str("kind", env.Kind).Msg("dead wire")
	case tx <- env:
		sent = true
	}
	tCh.Stop()
	return sent, canceled
}
