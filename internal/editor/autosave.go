package editor

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/AnshRaj112/quill-backend/internal/models"
	"github.com/AnshRaj112/quill-backend/internal/services"
	"github.com/google/uuid"
)

// AutosaveDelay is the idle time before a change is persisted.
const AutosaveDelay = 2 * time.Second

// EntrySaver persists autosaved content. *services.EntryService implements it.
type EntrySaver interface {
	Autosave(ctx context.Context, user models.AuthUser, entryID *uuid.UUID, content string) (services.SaveResult, error)
}

// SaveFunc receives every attempted save.
type SaveFunc func(res services.SaveResult, err error)

// AutosaverOptions configures an Autosaver. Zero values pick the defaults.
type AutosaverOptions struct {
	EntryID *uuid.UUID

	// Saved is the content already stored for EntryID.
	Saved  string
	Delay  time.Duration
	Clock  Clock
	OnSave SaveFunc
}

// Autosaver debounces editor content into entry saves. Saves are serialized; only the most recent
// content is written.
type Autosaver struct {
	mu      sync.Mutex
	ctx     context.Context
	saver   EntrySaver
	user    models.AuthUser
	clock   Clock
	delay   time.Duration
	onSave  SaveFunc
	entryID *uuid.UUID
	saved   string
	pending string
	dirty   bool
	timer   Timer
	gen     uint64
	stopped bool
}

func NewAutosaver(ctx context.Context, saver EntrySaver, user models.AuthUser, opts AutosaverOptions) *Autosaver {
	if opts.Delay <= 0 {
		opts.Delay = AutosaveDelay
	}
	if opts.Clock == nil {
		opts.Clock = RealClock{}
	}
	if opts.OnSave == nil {
		opts.OnSave = func(services.SaveResult, error) {}
	}
	return &Autosaver{
		ctx:     ctx,
		saver:   saver,
		user:    user,
		clock:   opts.Clock,
		delay:   opts.Delay,
		onSave:  opts.OnSave,
		entryID: opts.EntryID,
		saved:   opts.Saved,
	}
}

// EntryID is the entry being edited, nil until the first save creates it.
func (a *Autosaver) EntryID() *uuid.UUID {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.entryID
}

// Changed records new content and restarts the idle timer.
func (a *Autosaver) Changed(content string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stopped {
		return
	}
	a.pending = content
	a.dirty = true
	if a.timer != nil {
		a.timer.Stop()
	}
	a.gen++
	gen := a.gen
	a.timer = a.clock.AfterFunc(a.delay, func() { a.fire(gen) })
}

func (a *Autosaver) fire(gen uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stopped || gen != a.gen {
		return
	}
	a.timer = nil
	a.saveLocked(a.ctx)
}

// Flush writes pending content now. Used when the editor goes away.
func (a *Autosaver) Flush(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	a.gen++
	a.saveLocked(ctx)
}

// Stop cancels the timer; pending content is dropped unless Flush was called first.
func (a *Autosaver) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stopped = true
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
}

func (a *Autosaver) saveLocked(ctx context.Context) {
	if !a.dirty {
		return
	}
	content := a.pending
	a.dirty = false
	if strings.TrimSpace(content) == "" || content == a.saved {
		return
	}

	res, err := a.saver.Autosave(ctx, a.user, a.entryID, content)
	if err != nil {
		// keep it pending so the next change or flush retries
		a.dirty = true
		a.onSave(res, err)
		return
	}
	// a skip with an entry means the store already holds this content
	if !res.Skipped || res.Entry != nil {
		a.saved = content
	}
	if res.Created && res.Entry != nil {
		id := res.Entry.ID
		a.entryID = &id
	}
	a.onSave(res, nil)
}
