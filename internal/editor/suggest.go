package editor

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/AnshRaj112/quill-backend/internal/models"
)

const (
	// SuggestDelay is the idle time before a prompt is requested.
	SuggestDelay = 2 * time.Second
	// SuggestMinInterval spaces prompt requests for one editor.
	SuggestMinInterval = 10 * time.Second
)

// PromptReply is a generated prompt and the usage after it.
type PromptReply struct {
	Prompt string
	Usage  *models.Usage
}

// PromptRequester asks for one reflective prompt for content.
type PromptRequester interface {
	RequestPrompt(ctx context.Context, content string) (PromptReply, error)
}

// RequestError is a classified prompt failure.
type RequestError struct {
	Kind    ErrorKind
	Message string
	Usage   *models.Usage
}

func (e *RequestError) Error() string { return e.Message }

// SuggestionUpdate is pushed to the client on every visible change. Content is set when accepting
// a prompt rewrote the editor text; Usage when a response carried new usage.
type SuggestionUpdate struct {
	State   State         `json:"state"`
	Prompt  string        `json:"prompt,omitempty"`
	Error   string        `json:"error,omitempty"`
	Content string        `json:"content,omitempty"`
	Usage   *models.Usage `json:"usage,omitempty"`
}

// SuggesterOptions configures a Suggester. Zero values pick the defaults.
type SuggesterOptions struct {
	Delay       time.Duration
	MinInterval time.Duration
	Clock       Clock
	Usage       *models.Usage
	OnUpdate    func(SuggestionUpdate)
}

// Suggester drives the suggestion machine for one editor. OnUpdate runs with the Suggester's lock
// held and must not call back into it.
type Suggester struct {
	mu          sync.Mutex
	ctx         context.Context
	requester   PromptRequester
	clock       Clock
	delay       time.Duration
	minInterval time.Duration
	onUpdate    func(SuggestionUpdate)

	m        Machine
	usage    *models.Usage
	timer    Timer
	gen      uint64
	lastCall time.Time
	inFlight map[string]bool
	stopped  bool
}

func NewSuggester(ctx context.Context, requester PromptRequester, opts SuggesterOptions) *Suggester {
	if opts.Delay <= 0 {
		opts.Delay = SuggestDelay
	}
	if opts.MinInterval <= 0 {
		opts.MinInterval = SuggestMinInterval
	}
	if opts.Clock == nil {
		opts.Clock = RealClock{}
	}
	if opts.OnUpdate == nil {
		opts.OnUpdate = func(SuggestionUpdate) {}
	}
	return &Suggester{
		ctx:         ctx,
		requester:   requester,
		clock:       opts.Clock,
		delay:       opts.Delay,
		minInterval: opts.MinInterval,
		onUpdate:    opts.OnUpdate,
		usage:       opts.Usage,
		inFlight:    make(map[string]bool),
	}
}

// State returns a copy of the machine.
func (s *Suggester) State() Machine {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.m
}

// Changed feeds new editor content.
func (s *Suggester) Changed(content string) {
	s.dispatch(Event{Kind: ContentChanged, Content: content})
}

// Accept appends the shown prompt to the text. It returns the new content, or "" when nothing was
// showing.
func (s *Suggester) Accept() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.m.State != Showing {
		return ""
	}
	s.applyLocked(Event{Kind: UserAccepted})
	return s.m.Content
}

// Dismiss hides the prompt or error for the current text.
func (s *Suggester) Dismiss() {
	s.dispatch(Event{Kind: UserDismissed})
}

// Stop cancels the timer. Responses still in flight are ignored.
func (s *Suggester) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Suggester) dispatch(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applyLocked(ev)
}

func (s *Suggester) applyLocked(ev Event) {
	if s.stopped {
		return
	}
	var effects []Effect
	s.m, effects = Transition(s.m, ev)
	for _, eff := range effects {
		s.runLocked(eff)
	}
}

func (s *Suggester) runLocked(eff Effect) {
	switch eff.Kind {
	case CancelTimer:
		if s.timer != nil {
			s.timer.Stop()
			s.timer = nil
		}
		s.gen++
	case StartTimer:
		s.gen++
		gen := s.gen
		s.timer = s.clock.AfterFunc(s.delay, func() { s.fire(gen) })
	case Request:
		s.startRequestLocked(eff.Content)
	case Show:
		s.onUpdate(SuggestionUpdate{State: s.m.State, Prompt: eff.Prompt, Usage: s.usage})
	case ShowError:
		s.onUpdate(SuggestionUpdate{State: s.m.State, Error: eff.Message, Usage: s.usage})
	case AppendPrompt:
		s.onUpdate(SuggestionUpdate{State: s.m.State, Content: eff.Content})
	case Hide:
		s.onUpdate(SuggestionUpdate{State: s.m.State})
	}
}

func (s *Suggester) fire(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped || gen != s.gen {
		return
	}
	s.timer = nil
	s.applyLocked(Event{Kind: TimerFired, Block: s.guardLocked()})
}

// guardLocked checks, in order, call spacing, quota and duplicate in-flight content.
func (s *Suggester) guardLocked() Block {
	if !s.lastCall.IsZero() && s.clock.Now().Sub(s.lastCall) < s.minInterval {
		return BlockInterval
	}
	if s.usage != nil && s.usage.Exhausted() {
		return BlockQuota
	}
	if s.inFlight[s.m.Content] {
		return BlockInFlight
	}
	return BlockNone
}

func (s *Suggester) startRequestLocked(content string) {
	s.lastCall = s.clock.Now()
	s.inFlight[content] = true
	go func() {
		reply, err := s.requester.RequestPrompt(s.ctx, content)

		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.inFlight, content)
		if err != nil {
			var re *RequestError
			if !errors.As(err, &re) {
				re = &RequestError{Kind: ErrorGeneric, Message: "Failed to generate prompt"}
			}
			if re.Usage != nil {
				s.usage = re.Usage
			}
			if re.Kind == ErrorRateLimited || re.Kind == ErrorBlocked {
				// let the next attempt wait a full interval from now
				s.lastCall = s.clock.Now()
			}
			s.applyLocked(Event{Kind: ResponseError, Content: content, ErrorKind: re.Kind, Message: re.Message})
			return
		}
		if reply.Usage != nil {
			s.usage = reply.Usage
		}
		s.applyLocked(Event{Kind: ResponseOK, Content: content, Prompt: reply.Prompt})
	}()
}
