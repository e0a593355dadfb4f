package service

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/devinterview/collab/backend/model"
	"github.com/devinterview/collab/backend/storage/memory"
	sw "github.com/devinterview/collab/backend/switch"
	"github.com/rs/zerolog"
)

const recvTimeout = 2 * time.Second

func newTestService() *Service {
	logger := zerolog.New(os.Stderr).Level(zerolog.Disabled)
	return NewService(Config{
		Roster: memory.NewMemStore(),
		Switch: sw.NewSwitch(&logger),
		Logger: &logger,
	})
}

func bufferedWire() model.Wire {
	return model.Wire{
		RX: make(chan model.Envelope, 8),
		TX: make(chan model.Envelope, 8),
	}
}

func recvKind(t *testing.T, wire model.Wire, kind string) model.Envelope {
	t.Helper()
	deadline := time.After(recvTimeout)
	for {
		select {
		case env := <-wire.TX:
			if env.Kind == kind {
				return env
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", kind)
		}
	}
}

func join(t *testing.T, wire model.Wire, userID, name string, role model.Role) {
	t.Helper()
	env, err := model.NewEnvelope(model.KindJoinRoom, "room1", userID, model.JoinPayload{
		User: model.Participant{ID: userID, Name: name, Role: role},
	})
	if err != nil {
		t.Fatalf("failed to build join: %v", err)
	}
	wire.RX <- env
}

func TestJoinBroadcastsSnapshot(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	w1, w2 := bufferedWire(), bufferedWire()
	if err := svc.CreateSyncSession(ctx, "room1", "u1", w1); err != nil {
		t.Fatalf("create sync session failed: %v", err)
	}
	if err := svc.CreateSyncSession(ctx, "room1", "u2", w2); err != nil {
		t.Fatalf("create sync session failed: %v", err)
	}

	join(t, w1, "u1", "Sarah", model.RoleCandidate)
	env := recvKind(t, w1, model.KindRoomUsers)
	var p model.RoomUsersPayload
	if err := env.DecodePayload(&p); err != nil {
		t.Fatalf("bad snapshot payload: %v", err)
	}
	if len(p.Users) != 1 || p.Users[0].ID != "u1" {
		t.Fatalf("unexpected first snapshot: %+v", p.Users)
	}
	if !p.Users[0].Active {
		t.Error("relay must mark the joined participant active")
	}

	join(t, w2, "u2", "Marcus", model.RoleInterviewer)
	env = recvKind(t, w1, model.KindRoomUsers)
	p = model.RoomUsersPayload{}
	if err := env.DecodePayload(&p); err != nil {
		t.Fatalf("bad snapshot payload: %v", err)
	}
	if len(p.Users) != 2 {
		t.Fatalf("expected both participants in snapshot, got %+v", p.Users)
	}
}

func TestContinuousKindsSkipSender(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	w1, w2 := bufferedWire(), bufferedWire()
	_ = svc.CreateSyncSession(ctx, "room1", "u1", w1)
	_ = svc.CreateSyncSession(ctx, "room1", "u2", w2)

	env, _ := model.NewEnvelope(model.KindCodeChange, "room1", "u1", model.CodePayload{Code: "x = 1"})
	w1.RX <- env

	got := recvKind(t, w2, model.KindCodeChange)
	if got.UserID != "u1" {
		t.Errorf("envelope must carry the author id, got %q", got.UserID)
	}
	select {
	case echoed := <-w1.TX:
		t.Fatalf("code_change must not echo to its author, got %s", echoed.Kind)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestDiscreteKindsReachWholeRoom(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	w1, w2 := bufferedWire(), bufferedWire()
	_ = svc.CreateSyncSession(ctx, "room1", "u1", w1)
	_ = svc.CreateSyncSession(ctx, "room1", "u2", w2)

	env, _ := model.NewEnvelope(model.KindCustomQuestion, "room1", "u1", model.QuestionPayload{
		Question: model.Question{ID: "q1", Title: "Two Sum"},
	})
	w1.RX <- env

	recvKind(t, w1, model.KindCustomQuestion)
	recvKind(t, w2, model.KindCustomQuestion)
}

func TestIdentitySpoofingOverridden(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	w1, w2 := bufferedWire(), bufferedWire()
	_ = svc.CreateSyncSession(ctx, "room1", "u1", w1)
	_ = svc.CreateSyncSession(ctx, "room1", "u2", w2)

	// client claims to be someone else; the connection identity wins
	env, _ := model.NewEnvelope(model.KindExecutionResult, "other-room", "u99", model.ExecutionResult{Output: "ok"})
	w1.RX <- env

	got := recvKind(t, w2, model.KindExecutionResult)
	if got.UserID != "u1" || got.RoomID != "room1" {
		t.Fatalf("connection identity must override claims, got room=%q user=%q", got.RoomID, got.UserID)
	}
}

func TestUnknownKindIgnored(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	w1, w2 := bufferedWire(), bufferedWire()
	_ = svc.CreateSyncSession(ctx, "room1", "u1", w1)
	_ = svc.CreateSyncSession(ctx, "room1", "u2", w2)

	env, _ := model.NewEnvelope("mystery_kind", "room1", "u1", nil)
	w1.RX <- env

	select {
	case got := <-w2.TX:
		t.Fatalf("unknown kind must be dropped, got %s", got.Kind)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestDeleteSyncSessionAnnouncesDeparture(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	w1, w2 := bufferedWire(), bufferedWire()
	_ = svc.CreateSyncSession(ctx, "room1", "u1", w1)
	_ = svc.CreateSyncSession(ctx, "room1", "u2", w2)
	join(t, w1, "u1", "Sarah", model.RoleCandidate)
	join(t, w2, "u2", "Marcus", model.RoleInterviewer)
	recvKind(t, w2, model.KindUserJoined)

	if err := svc.DeleteSyncSession(ctx, "room1", "u1"); err != nil {
		t.Fatalf("delete sync session failed: %v", err)
	}

	env := recvKind(t, w2, model.KindUserLeft)
	var left model.UserLeftPayload
	if err := env.DecodePayload(&left); err != nil {
		t.Fatalf("bad user_left payload: %v", err)
	}
	if left.UserID != "u1" {
		t.Errorf("expected u1 departure, got %q", left.UserID)
	}
}
