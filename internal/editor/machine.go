package editor

import (
	"fmt"
	"strings"

	"github.com/AnshRaj112/quill-backend/pkg/utils"
)

// State is where the suggestion flow is for the current editor content.
type State int

const (
	Idle State = iota
	Debouncing
	Requesting
	Showing
	Dismissed
	Errored
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Debouncing:
		return "debouncing"
	case Requesting:
		return "requesting"
	case Showing:
		return "showing"
	case Dismissed:
		return "dismissed"
	case Errored:
		return "errored"
	}
	return "unknown"
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(b []byte) error {
	for st := Idle; st <= Errored; st++ {
		if st.String() == string(b) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown suggestion state %q", b)
}

// EventKind names an input to the suggestion machine.
type EventKind int

const (
	ContentChanged EventKind = iota
	TimerFired
	ResponseOK
	ResponseError
	UserAccepted
	UserDismissed
)

// Block is the guard that stopped a timer from turning into a request.
type Block int

const (
	BlockNone Block = iota
	BlockInterval
	BlockQuota
	BlockInFlight
)

// ErrorKind separates errors that should stay quiet until the text changes.
type ErrorKind int

const (
	ErrorGeneric ErrorKind = iota
	ErrorQuota
	ErrorRateLimited
	// ErrorBlocked is a server-side interval or in-flight rejection. It is not shown.
	ErrorBlocked
)

// QuotaMessage is shown when the monthly allowance is used up.
const QuotaMessage = "You've reached your monthly limit. Upgrade to Premium for unlimited prompts."

// Event is one input. Content is the editor text for ContentChanged and the text a response was
// generated for on ResponseOK/ResponseError.
type Event struct {
	Kind      EventKind
	Content   string
	Prompt    string
	Block     Block
	ErrorKind ErrorKind
	Message   string
}

// EffectKind is an action the driver must perform.
type EffectKind int

const (
	StartTimer EffectKind = iota
	CancelTimer
	Request
	Show
	AppendPrompt
	ShowError
	Hide
)

// Effect carries the data an action needs.
type Effect struct {
	Kind    EffectKind
	Content string
	Prompt  string
	Message string
}

// Machine is the suggestion state plus the data the transitions read.
type Machine struct {
	State      State
	Content    string
	Prompt     string
	Error      string
	Suppressed bool
	dismissed  string
	dismissSet bool
}

// Transition is the pure step function of the suggestion flow.
func Transition(m Machine, ev Event) (Machine, []Effect) {
	switch ev.Kind {
	case ContentChanged:
		return contentChanged(m, ev.Content)
	case TimerFired:
		return timerFired(m, ev.Block)
	case ResponseOK:
		return responseOK(m, ev)
	case ResponseError:
		return responseError(m, ev)
	case UserAccepted:
		return accepted(m)
	case UserDismissed:
		return dismissed(m)
	}
	return m, nil
}

func contentChanged(m Machine, content string) (Machine, []Effect) {
	if content == m.Content && m.State != Idle {
		return m, nil
	}
	changed := content != m.Content
	m.Content = content
	if changed {
		m.Suppressed = false
	}

	// A request is already out; its response is compared against the new text.
	if m.State == Requesting {
		return m, nil
	}

	var effects []Effect
	if m.State == Showing || m.State == Errored {
		effects = append(effects, Effect{Kind: Hide})
		m.Prompt, m.Error = "", ""
	}

	if utils.ContentLength(content) < utils.MinPromptContentLength {
		m.State = Idle
		return m, append(effects, Effect{Kind: CancelTimer})
	}
	if m.dismissSet && content == m.dismissed {
		m.State = Dismissed
		return m, append(effects, Effect{Kind: CancelTimer})
	}
	m.State = Debouncing
	return m, append(effects, Effect{Kind: CancelTimer}, Effect{Kind: StartTimer})
}

func timerFired(m Machine, block Block) (Machine, []Effect) {
	if m.State != Debouncing {
		return m, nil
	}
	switch block {
	case BlockQuota:
		m.State = Errored
		m.Error = QuotaMessage
		m.Suppressed = true
		return m, []Effect{{Kind: ShowError, Message: QuotaMessage}}
	case BlockInterval, BlockInFlight:
		m.State = Idle
		return m, nil
	}
	m.State = Requesting
	return m, []Effect{{Kind: Request, Content: m.Content}}
}

// rearm handles a response for text the user has since changed.
func rearm(m Machine) (Machine, []Effect) {
	if utils.ContentLength(m.Content) < utils.MinPromptContentLength {
		m.State = Idle
		return m, nil
	}
	if m.dismissSet && m.Content == m.dismissed {
		m.State = Dismissed
		return m, nil
	}
	m.State = Debouncing
	return m, []Effect{{Kind: StartTimer}}
}

func responseOK(m Machine, ev Event) (Machine, []Effect) {
	if m.State != Requesting {
		return m, nil
	}
	if ev.Content != m.Content {
		return rearm(m)
	}
	m.State = Showing
	m.Prompt = ev.Prompt
	m.Error = ""
	return m, []Effect{{Kind: Show, Prompt: ev.Prompt}}
}

func responseError(m Machine, ev Event) (Machine, []Effect) {
	if m.State != Requesting {
		return m, nil
	}
	if ev.Content != m.Content {
		return rearm(m)
	}
	if ev.ErrorKind == ErrorBlocked {
		m.State = Idle
		return m, nil
	}
	m.State = Errored
	m.Error = ev.Message
	m.Suppressed = ev.ErrorKind == ErrorQuota || ev.ErrorKind == ErrorRateLimited
	return m, []Effect{{Kind: ShowError, Message: ev.Message}}
}

func accepted(m Machine) (Machine, []Effect) {
	if m.State != Showing {
		return m, nil
	}
	prompt := m.Prompt
	next := AppendPromptText(m.Content, prompt)
	m.State = Dismissed
	m.Content = next
	m.Prompt = ""
	m.dismissed, m.dismissSet = next, true
	return m, []Effect{{Kind: Hide}, {Kind: AppendPrompt, Content: next, Prompt: prompt}}
}

func dismissed(m Machine) (Machine, []Effect) {
	if m.State != Showing && m.State != Errored {
		return m, nil
	}
	m.State = Dismissed
	m.Prompt, m.Error = "", ""
	m.dismissed, m.dismissSet = m.Content, true
	return m, []Effect{{Kind: Hide}}
}

// AppendPromptText is the editor text after accepting prompt.
func AppendPromptText(content, prompt string) string {
	return strings.TrimSpace(content) + "\n\n" + prompt + "\n\n"
}
