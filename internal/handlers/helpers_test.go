package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/AnshRaj112/quill-backend/internal/middleware"
	"github.com/AnshRaj112/quill-backend/internal/models"
	"github.com/AnshRaj112/quill-backend/internal/services"
	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
)

var (
	alice = models.AuthUser{ID: uuid.MustParse("0b6f4b1c-8f0e-4c47-9a1e-5b0f2d1e7a10"), Email: "alice@example.com"}
	bob   = models.AuthUser{ID: uuid.MustParse("9d3e2a55-61c4-4f0b-8d2e-7c1a0b9e4f22"), Email: "bob@example.com"}
)

const longEntry = "Today I felt overwhelmed at work and needed a break from all the meetings."

func nullLogger() logrus.FieldLogger {
	l, _ := logtest.NewNullLogger()
	return l
}

func newReplayStore(t *testing.T) *services.IdempotencyStore {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return services.NewIdempotencyStore(rdb)
}

// request builds a request as user; a zero user sends it anonymously.
func request(method, target string, body interface{}, user models.AuthUser) *http.Request {
	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rd = bytes.NewBufferString(b)
	default:
		data, _ := json.Marshal(b)
		rd = bytes.NewReader(data)
	}
	r := httptest.NewRequest(method, target, rd)
	if user.ID != uuid.Nil {
		r = r.WithContext(middleware.WithUser(r.Context(), user))
	}
	return r
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dst), rec.Body.String())
}

// fakeEntryService keeps entries in memory, scoped by owner.
type fakeEntryService struct {
	mu        sync.Mutex
	rows      map[uuid.UUID]models.JournalEntry
	creates   int
	autosaves []string
	failSave  error
	lastList  struct {
		query         string
		limit, offset int
	}
}

func newFakeEntryService() *fakeEntryService {
	return &fakeEntryService{rows: map[uuid.UUID]models.JournalEntry{}}
}

func (f *fakeEntryService) add(owner uuid.UUID, content string) models.JournalEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now().UTC()
	e := models.JournalEntry{ID: uuid.New(), UserID: owner, Content: content, CreatedAt: now, UpdatedAt: now}
	f.rows[e.ID] = e
	return e
}

func (f *fakeEntryService) List(_ context.Context, userID uuid.UUID, query string, limit, offset int) (services.EntryList, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastList.query, f.lastList.limit, f.lastList.offset = query, limit, offset
	out := services.EntryList{Entries: []models.EntrySummary{}}
	for _, e := range f.rows {
		if e.UserID == userID {
			out.Entries = append(out.Entries, e.Summary())
		}
	}
	out.Total = len(out.Entries)
	return out, nil
}

func (f *fakeEntryService) Get(_ context.Context, userID, id uuid.UUID) (*models.JournalEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.rows[id]
	if !ok || e.UserID != userID {
		return nil, services.ErrEntryNotFound
	}
	return &e, nil
}

func (f *fakeEntryService) Create(_ context.Context, user models.AuthUser, content string) (*models.JournalEntry, error) {
	f.mu.Lock()
	f.creates++
	f.mu.Unlock()
	e := f.add(user.ID, content)
	return &e, nil
}

func (f *fakeEntryService) Update(_ context.Context, userID, id uuid.UUID, content string) (*models.JournalEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.rows[id]
	if !ok || e.UserID != userID {
		return nil, services.ErrEntryNotFound
	}
	e.Content = content
	e.UpdatedAt = time.Now().UTC()
	f.rows[id] = e
	return &e, nil
}

func (f *fakeEntryService) Delete(_ context.Context, userID, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.rows[id]
	if !ok || e.UserID != userID {
		return services.ErrEntryNotFound
	}
	delete(f.rows, id)
	return nil
}

func (f *fakeEntryService) Autosave(ctx context.Context, user models.AuthUser, entryID *uuid.UUID, content string) (services.SaveResult, error) {
	f.mu.Lock()
	f.autosaves = append(f.autosaves, content)
	fail := f.failSave
	f.mu.Unlock()
	if fail != nil {
		return services.SaveResult{}, fail
	}
	if entryID == nil {
		e, err := f.Create(ctx, user, content)
		return services.SaveResult{Entry: e, Created: true}, err
	}
	if stored, err := f.Get(ctx, user.ID, *entryID); err == nil && stored.Content == content {
		return services.SaveResult{Entry: stored, Skipped: true}, nil
	}
	e, err := f.Update(ctx, user.ID, *entryID, content)
	return services.SaveResult{Entry: e}, err
}

func (f *fakeEntryService) savedContents() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.autosaves...)
}

// fakePromptService answers with a fixed prompt or err.
type fakePromptService struct {
	mu    sync.Mutex
	calls []services.PromptRequest
	err   error
	usage models.Usage
}

func (f *fakePromptService) Generate(_ context.Context, _ models.AuthUser, req services.PromptRequest) (*services.PromptResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	if f.err != nil {
		return nil, f.err
	}
	f.usage.PromptsUsed++
	return &services.PromptResult{
		PromptText: "What made the break feel necessary?",
		ID:         uuid.New(),
		CreatedAt:  time.Now().UTC(),
		Usage:      f.usage,
	}, nil
}

func (f *fakePromptService) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeUsage struct {
	usage models.Usage
	err   error
}

func (f fakeUsage) Get(context.Context, uuid.UUID) (models.Usage, error) {
	return f.usage, f.err
}

var freeUsage = models.Usage{PromptsUsed: 2, PromptsLimit: 10, Remaining: 8}
