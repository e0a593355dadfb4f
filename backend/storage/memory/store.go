package memory

import (
	"errors"
	"sort"
	"sync"

	"github.com/devinterview/collab/backend/model"
)

const (
	defaultMaxParticipants = 8
)

var (
	ErrRoomIsFull   = errors.New("room is full")
	ErrRoomNotFound = errors.New("room is not found")
)

// MemStore tracks the live roster of every room. It is the relay's
// source for room_users snapshots and holds nothing durable.
type MemStore struct {
	mx    *sync.Mutex
	rooms map[string]*model.Room
}

func NewMemStore() *MemStore {
	return &MemStore{
		mx:    &sync.Mutex{},
		rooms: make(map[string]*model.Room),
	}
}

func (ms *MemStore) Join(roomID string, p model.Participant) (*model.Room, error) {
	ms.mx.Lock()
	defer ms.mx.Unlock()

	room, ok := ms.rooms[roomID]
	if !ok {
		room = &model.Room{
			ID:           roomID,
			Participants: map[string]model.Participant{p.ID: p},
		}
		ms.rooms[roomID] = room
		return room, nil
	}

	if len(room.Participants) >= defaultMaxParticipants {
		if _, ok := room.Participants[p.ID]; !ok {
			return nil, ErrRoomIsFull
		}
	}

	room.Participants[p.ID] = p
	return room, nil
}

func (ms *MemStore) Leave(roomID, userID string) error {
	ms.mx.Lock()
	defer ms.mx.Unlock()

	room, ok := ms.rooms[roomID]
	if !ok {
		return ErrRoomNotFound
	}
	delete(room.Participants, userID)
	if len(room.Participants) == 0 {
		delete(ms.rooms, roomID)
	}
	return nil
}

// Snapshot returns the room's participants ordered by id. The full list
// is broadcast on every membership change, replacing whatever roster
// peers held before.
func (ms *MemStore) Snapshot(roomID string) ([]model.Participant, error) {
	ms.mx.Lock()
	defer ms.mx.Unlock()

	room, ok := ms.rooms[roomID]
	if !ok {
		return nil, nil
	}
	users := make([]model.Participant, 0, len(room.Participants))
	for _, p := range room.Participants {
		users = append(users, p)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

func (ms *MemStore) GetRoom(roomID string) (*model.Room, error) {
	ms.mx.Lock()
	defer ms.mx.Unlock()

	room, ok := ms.rooms[roomID]
	if !ok {
		return nil, ErrRoomNotFound
	}
	return room, nil
}
