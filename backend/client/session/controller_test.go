package session

import (
	"context"
	"os"
	"sync"
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/devinterview/collab/backend/client/channel"
	"github.com/devinterview/collab/backend/model"
	"github.com/rs/zerolog"
)

func testLogger() *zerolog.Logger {
	logger := zerolog.New(os.Stderr).Level(zerolog.Disabled)
	return &logger
}

type sentMsg struct {
	kind    string
	payload any
}

// fakeChannel satisfies Channel without a transport. deliver() pushes
// an envelope through the registered subscriptions like a real inbound
// frame would.
type fakeChannel struct {
	mx       sync.Mutex
	state    channel.State
	sent     []sentMsg
	subs     map[string][]channel.Handler
	stateFns []func(channel.State)
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{subs: make(map[string][]channel.Handler)}
}

func (f *fakeChannel) Connect(context.Context) error {
	f.setState(channel.StateConnected)
	return nil
}

func (f *fakeChannel) Disconnect() {
	f.setState(channel.StateDisconnected)
}

func (f *fakeChannel) setState(s channel.State) {
	f.mx.Lock()
	f.state = s
	fns := make([]func(channel.State), len(f.stateFns))
	copy(fns, f.stateFns)
	f.mx.Unlock()
	for _, fn := range fns {
		fn(s)
	}
}

func (f *fakeChannel) Send(kind string, payload any) {
	f.mx.Lock()
	defer f.mx.Unlock()
	f.sent = append(f.sent, sentMsg{kind: kind, payload: payload})
}

func (f *fakeChannel) Subscribe(kind string, h channel.Handler) func() {
	f.mx.Lock()
	defer f.mx.Unlock()
	f.subs[kind] = append(f.subs[kind], h)
	return func() {}
}

func (f *fakeChannel) OnStateChange(fn func(channel.State)) func() {
	f.mx.Lock()
	defer f.mx.Unlock()
	f.stateFns = append(f.stateFns, fn)
	return func() {}
}

func (f *fakeChannel) State() channel.State {
	f.mx.Lock()
	defer f.mx.Unlock()
	return f.state
}

func (f *fakeChannel) deliver(t *testing.T, kind, userID string, payload any) {
	t.Helper()
	env, err := model.NewEnvelope(kind, "sess-001", userID, payload)
	if err != nil {
		t.Fatalf("failed to build envelope: %v", err)
	}
	f.mx.Lock()
	handlers := make([]channel.Handler, len(f.subs[kind]))
	copy(handlers, f.subs[kind])
	f.mx.Unlock()
	for _, h := range handlers {
		h(env)
	}
}

func (f *fakeChannel) sentKinds() []string {
	f.mx.Lock()
	defer f.mx.Unlock()
	kinds := make([]string, 0, len(f.sent))
	for _, m := range f.sent {
		kinds = append(kinds, m.kind)
	}
	return kinds
}

var self = model.Participant{
	ID:     "u1",
	Name:   "Sarah",
	Role:   model.RoleCandidate,
	Active: true,
}

func newTestController(ch *fakeChannel, hooks Hooks) *Controller {
	return NewController(Config{
		Logger:  testLogger(),
		Channel: ch,
		RoomID:  "sess-001",
		Self:    self,
		Hooks:   hooks,
	})
}

func TestStartAnnouncesJoin(t *testing.T) {
	ch := newFakeChannel()
	ctrl := newTestController(ch, Hooks{})

	if err := ctrl.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	var joins int
	for _, m := range ch.sent {
		if m.kind != model.KindJoinRoom {
			continue
		}
		joins++
		p, ok := m.payload.(model.JoinPayload)
		if !ok {
			t.Fatalf("join payload has wrong type:\n%s", spew.Sdump(m.payload))
		}
		if p.User != self {
			t.Errorf("join must carry own identity, got %+v", p.User)
		}
	}
	if joins != 1 {
		t.Fatalf("expected exactly 1 join_room, sent kinds: %v", ch.sentKinds())
	}
}

func TestRosterFollowsSnapshots(t *testing.T) {
	ch := newFakeChannel()
	ctrl := newTestController(ch, Hooks{})
	if err := ctrl.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	ch.deliver(t, model.KindRoomUsers, "", model.RoomUsersPayload{Users: []model.Participant{
		self,
		{ID: "u2", Name: "Marcus", Role: model.RoleInterviewer, Active: true},
	}})

	if ctrl.Presence().Count() != 2 {
		t.Fatalf("expected 2 after snapshot, got %d", ctrl.Presence().Count())
	}

	// user_joined alone must not grow the roster
	ch.deliver(t, model.KindUserJoined, "u3", model.JoinPayload{
		User: model.Participant{ID: "u3", Name: "Ghost"},
	})
	if ctrl.Presence().Count() != 2 {
		t.Error("user_joined notification must not mutate the roster")
	}

	ch.deliver(t, model.KindRoomUsers, "", model.RoomUsersPayload{Users: []model.Participant{self}})
	if ctrl.Presence().Count() != 1 {
		t.Errorf("expected 1 after shrinking snapshot, got %d", ctrl.Presence().Count())
	}
}

func TestOwnEchoDropped(t *testing.T) {
	ch := newFakeChannel()
	var applied []model.CodePayload
	ctrl := newTestController(ch, Hooks{
		OnCodeChange: func(p model.CodePayload) { applied = append(applied, p) },
	})
	if err := ctrl.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	ch.deliver(t, model.KindCodeChange, self.ID, model.CodePayload{Code: "mine"})
	if len(applied) != 0 {
		t.Fatal("own echo must never reach the hook")
	}

	ch.deliver(t, model.KindCodeChange, "u2", model.CodePayload{Code: "theirs"})
	if len(applied) != 1 || applied[0].Code != "theirs" {
		t.Fatalf("peer update must reach the hook, got %+v", applied)
	}
}

func TestMalformedPayloadIgnored(t *testing.T) {
	ch := newFakeChannel()
	var applied int
	ctrl := newTestController(ch, Hooks{
		OnWhiteboardUpdate: func(model.ChangeSet) { applied++ },
	})
	if err := ctrl.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	env := model.Envelope{
		Kind:    model.KindWhiteboardUpdate,
		RoomID:  "sess-001",
		UserID:  "u2",
		Payload: []byte(`{"changes":`),
	}
	ch.mx.Lock()
	handlers := append([]channel.Handler(nil), ch.subs[model.KindWhiteboardUpdate]...)
	ch.mx.Unlock()
	for _, h := range handlers {
		h(env)
	}

	if applied != 0 {
		t.Fatal("malformed payload must not reach the hook")
	}
}

func TestStopLeavesAndClears(t *testing.T) {
	ch := newFakeChannel()
	ctrl := newTestController(ch, Hooks{})
	if err := ctrl.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	ch.deliver(t, model.KindRoomUsers, "", model.RoomUsersPayload{Users: []model.Participant{self}})

	ctrl.Stop()

	kinds := ch.sentKinds()
	if kinds[len(kinds)-1] != model.KindLeaveRoom {
		t.Errorf("expected trailing leave_room, sent kinds: %v", kinds)
	}
	if ch.State() != channel.StateDisconnected {
		t.Error("channel must be torn down on stop")
	}
	if ctrl.Presence().Count() != 0 {
		t.Error("roster must be cleared on stop")
	}
}

func TestReconnectReannounces(t *testing.T) {
	ch := newFakeChannel()
	ctrl := newTestController(ch, Hooks{})
	if err := ctrl.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	ch.deliver(t, model.KindRoomUsers, "", model.RoomUsersPayload{Users: []model.Participant{self}})

	// transport drop and recovery
	ch.setState(channel.StateDisconnected)
	if ctrl.Presence().Count() != 0 {
		t.Fatal("roster must clear on disconnect")
	}
	ch.setState(channel.StateConnected)

	var joins int
	for _, kind := range ch.sentKinds() {
		if kind == model.KindJoinRoom {
			joins++
		}
	}
	if joins != 2 {
		t.Fatalf("expected re-announce after reconnect, got %d joins", joins)
	}
}
