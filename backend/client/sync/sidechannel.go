package sync

import (
	"sync"

	"github.com/devinterview/collab/backend/model"
	"github.com/rs/zerolog"
)

type SideChannelConfig struct {
	Logger       *zerolog.Logger
	EmitQuestion func(model.Question)
	EmitResult   func(model.ExecutionResult)
	OnQuestion   func(model.Question)
	OnResult     func(model.ExecutionResult)
}

// SideChannel carries the discrete broadcast-and-replace events: the
// custom question and the execution result. There is nothing to merge
// and nothing to suppress — the receiver just replaces what it shows.
type SideChannel struct {
	logger       zerolog.Logger
	emitQuestion func(model.Question)
	emitResult   func(model.ExecutionResult)
	onQuestion   func(model.Question)
	onResult     func(model.ExecutionResult)

	mx       sync.Mutex
	question *model.Question
	result   *model.ExecutionResult
}

func NewSideChannel(cfg SideChannelConfig) *SideChannel {
	return &SideChannel{
		logger:       cfg.Logger.With().Str("component", "side-channel").Logger(),
		emitQuestion: cfg.EmitQuestion,
		emitResult:   cfg.EmitResult,
		onQuestion:   cfg.OnQuestion,
		onResult:     cfg.OnResult,
	}
}

// SetQuestion publishes a locally authored question to the room.
func (s *SideChannel) SetQuestion(q model.Question) {
	s.mx.Lock()
	s.question = &q
	s.mx.Unlock()
	if s.emitQuestion != nil {
		s.emitQuestion(q)
	}
}

// ApplyQuestion replaces the displayed question with a remote one.
func (s *SideChannel) ApplyQuestion(q model.Question) {
	s.mx.Lock()
	s.question = &q
	s.mx.Unlock()
	if s.onQuestion != nil {
		s.onQuestion(q)
	}
}

// PublishResult shares a locally triggered run's outcome with peers.
func (s *SideChannel) PublishResult(r model.ExecutionResult) {
	s.mx.Lock()
	s.result = &r
	s.mx.Unlock()
	if s.emitResult != nil {
		s.emitResult(r)
	}
}

// ApplyResult replaces the displayed result with a remote one.
func (s *SideChannel) ApplyResult(r model.ExecutionResult) {
	s.mx.Lock()
	s.result = &r
	s.mx.Unlock()
	if s.onResult != nil {
		s.onResult(r)
	}
}

func (s *SideChannel) Question() (model.Question, bool) {
	s.mx.Lock()
	defer s.mx.Unlock()
	if s.question == nil {
		return model.Question{}, false
	}
	return *s.question, true
}

func (s *SideChannel) Result() (model.ExecutionResult, bool) {
	s.mx.Lock()
	defer s.mx.Unlock()
	if s.result == nil {
		return model.ExecutionResult{}, false
	}
	return *s.result, true
}
