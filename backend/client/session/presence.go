package session

import (
	"sort"
	"sync"

	"github.com/devinterview/collab/backend/model"
)

// Presence holds the room roster. Every room_users broadcast is a
// complete authoritative snapshot: the previous roster is discarded
// wholesale, never merged. user_joined/user_left events are not applied
// here at all.
type Presence struct {
	mx    sync.RWMutex
	users map[string]model.Participant
}

func NewPresence() *Presence {
	return &Presence{users: make(map[string]model.Participant)}
}

func (p *Presence) Replace(users []model.Participant) {
	next := make(map[string]model.Participant, len(users))
	for _, u := range users {
		next[u.ID] = u
	}
	p.mx.Lock()
	p.users = next
	p.mx.Unlock()
}

// Clear drops the roster. Called on disconnect; the roster is
// reconstructed from the next snapshot after reconnecting.
func (p *Presence) Clear() {
	p.mx.Lock()
	p.users = make(map[string]model.Participant)
	p.mx.Unlock()
}

func (p *Presence) Get(id string) (model.Participant, bool) {
	p.mx.RLock()
	defer p.mx.RUnlock()
	u, ok := p.users[id]
	return u, ok
}

func (p *Presence) Count() int {
	p.mx.RLock()
	defer p.mx.RUnlock()
	return len(p.users)
}

// Participants returns the roster ordered by id.
func (p *Presence) Participants() []model.Participant {
	p.mx.RLock()
	users := make([]model.Participant, 0, len(p.users))
	for _, u := range p.users {
		users = append(users, u)
	}
	p.mx.RUnlock()

	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users
}
