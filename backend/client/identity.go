package client

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/devinterview/collab/backend/model"
	"github.com/google/uuid"
)

const guestIDFile = "guest_id"

// ResolveIdentity returns the given user as-is, or falls back to a
// guest identity persisted under stateDir so the same participant id
// survives restarts.
func ResolveIdentity(user *model.Participant, stateDir string, role model.Role) (model.Participant, error) {
	if user != nil && user.ID != "" {
		return *user, nil
	}
	return GuestIdentity(stateDir, role)
}

// GuestIdentity loads or mints a locally persisted guest participant.
func GuestIdentity(stateDir string, role model.Role) (model.Participant, error) {
	path := filepath.Join(stateDir, guestIDFile)

	var id string
	if b, err := os.ReadFile(path); err == nil {
		id = strings.TrimSpace(string(b))
	}
	if id == "" {
		id = "guest-" + strings.Split(uuid.NewString(), "-")[0]
		if err := os.MkdirAll(stateDir, 0o755); err != nil {
			return model.Participant{}, err
		}
		if err := os.WriteFile(path, []byte(id+"\n"), 0o600); err != nil {
			return model.Participant{}, err
		}
	}

	return model.Participant{
		ID:     id,
		Name:   "Guest",
		Role:   role,
		Active: true,
	}, nil
}
