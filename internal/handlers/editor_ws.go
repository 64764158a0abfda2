package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/AnshRaj112/quill-backend/internal/editor"
	"github.com/AnshRaj112/quill-backend/internal/metrics"
	"github.com/AnshRaj112/quill-backend/internal/middleware"
	"github.com/AnshRaj112/quill-backend/internal/models"
	"github.com/AnshRaj112/quill-backend/internal/services"
	"github.com/AnshRaj112/quill-backend/pkg/utils"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// editorReadLimit fits a content frame for the longest valid entry, allowing six bytes per
// character for JSON escapes.
const editorReadLimit = 6*utils.MaxEntryContentLength + 4096

const (
	editorReadTimeout  = 90 * time.Second
	editorPingInterval = 30 * time.Second
	editorWriteTimeout = 10 * time.Second
	editorFlushTimeout = 5 * time.Second
)

// Client frame types.
const (
	frameContent = "content"
	frameAccept  = "accept"
	frameDismiss = "dismiss"
	framePing    = "ping"
)

// Server frame types.
const (
	frameSaved      = "saved"
	frameCreated    = "created"
	frameSuggestion = "suggestion"
	frameError      = "error"
	framePong       = "pong"
)

// EditorClientMessage is a frame sent by the editor.
type EditorClientMessage struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
}

// EditorServerMessage is a frame sent to the editor.
type EditorServerMessage struct {
	Type       string                   `json:"type"`
	Entry      *models.JournalEntry     `json:"entry,omitempty"`
	Suggestion *editor.SuggestionUpdate `json:"suggestion,omitempty"`
	Error      string                   `json:"error,omitempty"`
}

// EditorOptions tunes editor sessions. Zero values pick the editor package defaults.
type EditorOptions struct {
	AllowedOrigins []string
	Clock          editor.Clock
	SaveDelay      time.Duration
	SuggestDelay   time.Duration
	MinInterval    time.Duration
}

// EditorHandler runs one autosave and suggestion loop per WebSocket connection.
type EditorHandler struct {
	entries  EntryService
	prompts  PromptService
	usage    UsageReader
	opts     EditorOptions
	upgrader websocket.Upgrader
	metrics  *metrics.Metrics
	log      logrus.FieldLogger
}

func NewEditorHandler(entries EntryService, prompts PromptService, usage UsageReader, opts EditorOptions, m *metrics.Metrics, log logrus.FieldLogger) *EditorHandler {
	h := &EditorHandler{entries: entries, prompts: prompts, usage: usage, opts: opts, metrics: m, log: log}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// checkOrigin accepts non-browser clients and the configured frontend origins.
func (h *EditorHandler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(h.opts.AllowedOrigins) == 0 {
		return true
	}
	return middleware.OriginAllowed(origin, h.opts.AllowedOrigins)
}

// editorConn serializes writes to one connection.
type editorConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *editorConn) send(msg EditorServerMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(editorWriteTimeout))
	return c.conn.WriteJSON(msg)
}

// Serve handles GET /ws/editor?entry_id=. Without entry_id the first non-blank save creates the entry.
func (h *EditorHandler) Serve(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	var (
		entryID *uuid.UUID
		saved   string
	)
	if raw := strings.TrimSpace(r.URL.Query().Get("entry_id")); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid entry id", "")
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
		entry, err := h.entries.Get(ctx, user.ID, id)
		cancel()
		if errors.Is(err, services.ErrEntryNotFound) {
			writeError(w, http.StatusNotFound, "Entry not found", "")
			return
		}
		if err != nil {
			h.log.WithError(err).Error("failed to load entry for editor")
			writeError(w, http.StatusInternalServerError, "Failed to load entry", "")
			return
		}
		entryID, saved = &entry.ID, entry.Content
	}

	var usage *models.Usage
	if u, err := h.usage.Get(r.Context(), user.ID); err == nil {
		usage = &u
	} else {
		h.log.WithError(err).WithField("user_id", user.ID).Warn("editor starting without usage")
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	h.metrics.EditorSessionOpened()
	defer h.metrics.EditorSessionClosed()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := &editorConn{conn: conn}
	log := h.log.WithField("user_id", user.ID)

	saver := editor.NewAutosaver(ctx, h.entries, user, editor.AutosaverOptions{
		EntryID: entryID,
		Saved:   saved,
		Delay:   h.opts.SaveDelay,
		Clock:   h.opts.Clock,
		OnSave: func(res services.SaveResult, err error) {
			switch {
			case err != nil:
				log.WithError(err).Warn("autosave failed")
				_ = out.send(EditorServerMessage{Type: frameError, Error: "Failed to save entry"})
			case res.Skipped:
			case res.Created:
				_ = out.send(EditorServerMessage{Type: frameCreated, Entry: res.Entry})
			default:
				_ = out.send(EditorServerMessage{Type: frameSaved, Entry: res.Entry})
			}
		},
	})
	suggester := editor.NewSuggester(ctx, editorPrompts{prompts: h.prompts, user: user}, editor.SuggesterOptions{
		Delay:       h.opts.SuggestDelay,
		MinInterval: h.opts.MinInterval,
		Clock:       h.opts.Clock,
		Usage:       usage,
		OnUpdate: func(u editor.SuggestionUpdate) {
			_ = out.send(EditorServerMessage{Type: frameSuggestion, Suggestion: &u})
		},
	})
	defer func() {
		suggester.Stop()
		flushCtx, flushCancel := context.WithTimeout(context.Background(), editorFlushTimeout)
		saver.Flush(flushCtx)
		flushCancel()
		saver.Stop()
	}()
	if saved != "" {
		suggester.Changed(saved)
	}

	conn.SetReadLimit(editorReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(editorReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(editorReadTimeout))
	})

	// Keepalive pings; WriteControl may run alongside other writes.
	go func() {
		ticker := time.NewTicker(editorPingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(editorWriteTimeout)); err != nil {
					return
				}
			}
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(editorReadTimeout))

		var msg EditorClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}

		switch msg.Type {
		case frameContent:
			if err := utils.ValidateEntryContent(msg.Content); err != nil {
				_ = out.send(EditorServerMessage{Type: frameError, Error: err.Error()})
				continue
			}
			saver.Changed(msg.Content)
			suggester.Changed(msg.Content)
		case frameAccept:
			if content := suggester.Accept(); content != "" {
				saver.Changed(content)
			}
		case frameDismiss:
			suggester.Dismiss()
		case framePing:
			_ = out.send(EditorServerMessage{Type: framePong})
		default:
			// Ignore unknown types
		}
	}
}
