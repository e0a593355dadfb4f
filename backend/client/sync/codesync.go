// Package sync implements the client-side reconciliation engine: the
// code debouncer, the whiteboard reconciler and the discrete side
// channels. Each component is a mutex-protected single-writer state; an
// applyingRemote flag inside the same critical section as the mutation
// is what keeps a just-applied remote update from being re-broadcast as
// a fresh local edit.
package sync

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/devinterview/collab/backend/model"
	"github.com/rs/zerolog"
)

const (
	defaultQuietPeriod = time.Second
	defaultSaveTimeout = 5 * time.Second
)

type CodeStore interface {
	SaveCode(ctx context.Context, sessionID, code, language string) error
}

type CodeConfig struct {
	Logger    *zerolog.Logger
	SessionID string
	// Emit publishes the coalesced code_change payload.
	Emit func(model.CodePayload)
	// Store, when set, persists the same value the moment it is emitted.
	Store CodeStore
	// OnApplied notifies the embedding UI about a remote update. It runs
	// while the suppression flag is armed, so an editor echoing the
	// change back through SetCode does not re-arm the debouncer.
	OnApplied   func(model.CodePayload)
	QuietPeriod time.Duration
	Language    string
	Scaffolds   map[string]string
}

// CodeSync coalesces rapid local edits into one outbound code_change
// per quiet period and applies inbound updates last-write-wins.
type CodeSync struct {
	logger    zerolog.Logger
	sessionID string
	emit      func(model.CodePayload)
	store     CodeStore
	onApplied func(model.CodePayload)
	quiet     time.Duration
	scaffolds map[string]string

	mx             sync.Mutex
	code           string
	language       string
	applyingRemote bool
	timer          *time.Timer
	closed         bool
}

func NewCodeSync(cfg CodeConfig) *CodeSync {
	quiet := cfg.QuietPeriod
	if quiet == 0 {
		quiet = defaultQuietPeriod
	}
	scaffolds := cfg.Scaffolds
	if scaffolds == nil {
		scaffolds = model.Scaffolds
	}
	language := cfg.Language
	if language == "" {
		language = "python"
	}
	return &CodeSync{
		logger:    cfg.Logger.With().Str("component", "code-sync").Logger(),
		sessionID: cfg.SessionID,
		emit:      cfg.Emit,
		store:     cfg.Store,
		onApplied: cfg.OnApplied,
		quiet:     quiet,
		scaffolds: scaffolds,
		code:      scaffolds[language],
		language:  language,
	}
}

// SetCode records a local edit and (re)starts the quiet-period timer.
// Intermediate keystrokes inside the quiet period are never
// individually transmitted.
func (c *CodeSync) SetCode(text string) {
	c.mx.Lock()
	defer c.mx.Unlock()
	if c.applyingRemote || c.closed || text == c.code {
		return
	}
	c.code = text
	c.armLocked()
}

// SetLanguage switches the active language. The buffer is reset to the
// new language's scaffold only while it is empty or still equals the
// old language's unmodified scaffold; an explicit edit survives the
// switch.
func (c *CodeSync) SetLanguage(language string) {
	c.mx.Lock()
	defer c.mx.Unlock()
	if c.applyingRemote || c.closed || language == c.language {
		return
	}
	if strings.TrimSpace(c.code) == "" || c.code == c.scaffolds[c.language] {
		c.code = c.scaffolds[language]
	}
	c.language = language
	c.armLocked()
}

// ApplyRemote applies an inbound update directly: last received wins.
// A pending local debounce is cancelled, since its value has just been
// superseded.
func (c *CodeSync) ApplyRemote(p model.CodePayload) {
	c.mx.Lock()
	if c.closed {
		c.mx.Unlock()
		return
	}
	c.applyingRemote = true
	c.code = p.Code
	if p.Language != "" {
		c.language = p.Language
	}
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.mx.Unlock()

	if c.onApplied != nil {
		c.onApplied(p)
	}

	// cleared synchronously so the very next local edit still transmits
	c.mx.Lock()
	c.applyingRemote = false
	c.mx.Unlock()
}

func (c *CodeSync) Code() (string, string) {
	c.mx.Lock()
	defer c.mx.Unlock()
	return c.code, c.language
}

// Close drops any pending debounce. Nothing is flushed on the way out.
func (c *CodeSync) Close() {
	c.mx.Lock()
	defer c.mx.Unlock()
	c.closed = true
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *CodeSync) armLocked() {
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = time.AfterFunc(c.quiet, c.flush)
}

func (c *CodeSync) flush() {
	c.mx.Lock()
	if c.closed {
		c.mx.Unlock()
		return
	}
	c.timer = nil
	payload := model.CodePayload{Code: c.code, Language: c.language}
	c.mx.Unlock()

	if c.emit != nil {
		c.emit(payload)
	}
	if c.store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), defaultSaveTimeout)
		defer cancel()
		if err := c.store.SaveCode(ctx, c.sessionID, payload.Code, payload.Language); err != nil {
			c.logger.Error().Err(err).Msg("failed to persist code")
		}
	}
}
