package model

import (
	"encoding/json"
	"time"
)

// Message kinds carried by Envelope. Clients emit the "out" kinds,
// the relay fans them back out to room peers.
const (
	KindJoinRoom         = "join_room"
	KindLeaveRoom        = "leave_room"
	KindRoomUsers        = "room_users"
	KindUserJoined       = "user_joined"
	KindUserLeft         = "user_left"
	KindCodeChange       = "code_change"
	KindCursorMove       = "cursor_move"
	KindWhiteboardUpdate = "whiteboard_update"
	KindCustomQuestion   = "custom_question"
	KindExecutionResult  = "execution_result"
)

type Role string

const (
	RoleInterviewer Role = "interviewer"
	RoleCandidate   Role = "candidate"
)

type Participant struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Role   Role   `json:"role"`
	Active bool   `json:"isActive"`
}

type Room struct {
	ID           string                 `json:"room_id"`
	Participants map[string]Participant `json:"participants"`
}

// Envelope is the wire format for every sync message. RoomID and UserID
// are always set so peers can attribute a message and recognize their
// own echo.
type Envelope struct {
	Kind    string          `json:"kind"`
	RoomID  string          `json:"roomId"`
	UserID  string          `json:"userId"`
	SentAt  int64           `json:"sentAt,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func NewEnvelope(kind, roomID, userID string, payload any) (Envelope, error) {
	env := Envelope{
		Kind:   kind,
		RoomID: roomID,
		UserID: userID,
		SentAt: time.Now().UnixMilli(),
	}
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return Envelope{}, err
		}
		env.Payload = b
	}
	return env, nil
}

func (e Envelope) DecodePayload(v any) error {
	if len(e.Payload) == 0 {
		return nil
	}
	return json.Unmarshal(e.Payload, v)
}

type JoinPayload struct {
	User Participant `json:"user"`
}

type RoomUsersPayload struct {
	Users []Participant `json:"users"`
}

type UserLeftPayload struct {
	UserID string `json:"userId"`
}

type CodePayload struct {
	Code     string `json:"code"`
	Language string `json:"language"`
}

type CursorPayload struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// Record is an opaque whiteboard unit. Only its identity matters to the
// sync layer; internal fields pass through untouched.
type Record map[string]any

type RecordUpdate struct {
	From Record `json:"from,omitempty"`
	To   Record `json:"to"`
}

// ChangeSet is a structured whiteboard delta. A given record id appears
// in at most one of the three maps. Apply order is added, updated,
// removed, so removal wins within one set.
type ChangeSet struct {
	Added   map[string]Record       `json:"added,omitempty"`
	Updated map[string]RecordUpdate `json:"updated,omitempty"`
	Removed map[string]Record       `json:"removed,omitempty"`
}

func (cs ChangeSet) Empty() bool {
	return len(cs.Added) == 0 && len(cs.Updated) == 0 && len(cs.Removed) == 0
}

type WhiteboardPayload struct {
	Changes ChangeSet `json:"changes"`
}

type Question struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Difficulty string `json:"difficulty"`
	Category   string `json:"category"`
}

type QuestionPayload struct {
	Question Question `json:"question"`
}

type ExecutionResult struct {
	Output string `json:"output,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Session statuses as stored in the session metadata store.
const (
	SessionScheduled = "scheduled"
	SessionActive    = "active"
	SessionCompleted = "completed"
)

type Session struct {
	ID             string    `json:"id"`
	CandidateName  string    `json:"candidateName"`
	CandidateEmail string    `json:"candidateEmail"`
	Date           time.Time `json:"date"`
	Duration       int       `json:"duration"`
	Score          *int      `json:"score,omitempty"`
	Status         string    `json:"status"`
	Language       string    `json:"language"`
	Notes          string    `json:"notes,omitempty"`
}

// Wire is the pair of channels backing one relay connection.
type Wire struct {
	RX chan Envelope
	TX chan Envelope
}

func NewWire() Wire {
	return Wire{
		RX: make(chan Envelope),
		TX: make(chan Envelope),
	}
}

// SessionPatch carries partial updates for a session. Nil fields are
// left untouched.
type SessionPatch struct {
	Score    *int    `json:"score,omitempty"`
	Notes    *string `json:"notes,omitempty"`
	Status   *string `json:"status,omitempty"`
	Duration *int    `json:"duration,omitempty"`
	Language *string `json:"language,omitempty"`
}
