package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/AnshRaj112/quill-backend/internal/editor"
	"github.com/AnshRaj112/quill-backend/internal/models"
	"github.com/AnshRaj112/quill-backend/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateRejectsNonPost(t *testing.T) {
	h := NewPromptHandler(&fakePromptService{}, newReplayStore(t), nullLogger())
	rec := httptest.NewRecorder()
	h.Generate(rec, request(http.MethodGet, "/api/prompts", nil, alice))

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.JSONEq(t, `{"error":"Method not allowed"}`, rec.Body.String())
}

func TestGenerateRejectsBadBody(t *testing.T) {
	svc := &fakePromptService{}
	h := NewPromptHandler(svc, newReplayStore(t), nullLogger())
	rec := httptest.NewRecorder()
	h.Generate(rec, request(http.MethodPost, "/api/prompts", "[1,2", alice))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"Invalid request body"}`, rec.Body.String())
	assert.Zero(t, svc.callCount())
}

func TestGenerateSuccess(t *testing.T) {
	svc := &fakePromptService{usage: freeUsage}
	h := NewPromptHandler(svc, newReplayStore(t), nullLogger())
	rec := httptest.NewRecorder()
	h.Generate(rec, request(http.MethodPost, "/api/prompts", PromptRequestBody{Content: longEntry, EntryID: "abc"}, alice))

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	decodeBody(t, rec, &body)
	assert.Equal(t, "What made the break feel necessary?", body["prompt_text"])
	assert.NotEmpty(t, body["id"])
	assert.NotEmpty(t, body["created_at"])
	assert.Equal(t, float64(3), body["usage"].(map[string]interface{})["prompts_used"])
	assert.Equal(t, services.PromptRequest{Content: longEntry, EntryID: "abc"}, svc.calls[0])
}

func TestGenerateReplaysIdempotencyKey(t *testing.T) {
	svc := &fakePromptService{usage: freeUsage}
	h := NewPromptHandler(svc, newReplayStore(t), nullLogger())

	var ids []string
	for i := 0; i < 2; i++ {
		r := request(http.MethodPost, "/api/prompts", PromptRequestBody{Content: longEntry}, alice)
		r.Header.Set("Idempotency-Key", "prompt-1")
		rec := httptest.NewRecorder()
		h.Generate(rec, r)
		require.Equal(t, http.StatusOK, rec.Code)
		var res services.PromptResult
		decodeBody(t, rec, &res)
		ids = append(ids, res.ID.String())
	}
	assert.Equal(t, ids[0], ids[1])
	assert.Equal(t, 1, svc.callCount())

	// keys are per user
	r := request(http.MethodPost, "/api/prompts", PromptRequestBody{Content: longEntry}, bob)
	r.Header.Set("Idempotency-Key", "prompt-1")
	rec := httptest.NewRecorder()
	h.Generate(rec, r)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, svc.callCount())
}

func TestGenerateErrorMapping(t *testing.T) {
	exhausted := models.Usage{PromptsUsed: 10, PromptsLimit: 10}
	tests := []struct {
		name   string
		err    error
		status int
		msg    string
	}{
		{"too short", services.ErrContentTooShort, http.StatusBadRequest, "Content must be at least 50 characters"},
		{"nothing to reflect on", services.ErrContentRequired, http.StatusBadRequest, "content or entry_id is required"},
		{"bad entry id", services.ErrInvalidEntryID, http.StatusBadRequest, "Invalid entry_id"},
		{"missing entry", services.ErrEntryNotFound, http.StatusNotFound, "Entry not found"},
		{"quota", &services.QuotaError{Usage: exhausted}, http.StatusTooManyRequests, editor.QuotaMessage},
		{"interval", services.ErrRateLimited, http.StatusTooManyRequests, msgRateLimited},
		{"in flight", services.ErrPromptInFlight, http.StatusConflict, msgPromptInFlight},
		{"empty prompt", services.ErrEmptyPrompt, http.StatusBadGateway, "No prompt generated"},
		{"upstream quota", &services.UpstreamError{Kind: services.UpstreamQuota, StatusCode: 429, Message: "insufficient_quota"}, http.StatusPaymentRequired, msgUpstreamQuota},
		{"upstream busy", &services.UpstreamError{Kind: services.UpstreamRateLimited, StatusCode: 429}, http.StatusTooManyRequests, msgUpstreamBusy},
		{"upstream key", &services.UpstreamError{Kind: services.UpstreamInvalidKey, StatusCode: 401}, http.StatusBadGateway, "AI service is misconfigured (invalid API key)"},
		{"upstream down", &services.UpstreamError{Kind: services.UpstreamUnavailable, Message: "timeout"}, http.StatusBadGateway, msgUpstreamDown},
		{"wrapped upstream", fmt.Errorf("generate: %w", &services.UpstreamError{Kind: services.UpstreamServer, StatusCode: 503}), http.StatusBadGateway, msgUpstreamDown},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "Failed to generate prompt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewPromptHandler(&fakePromptService{err: tt.err}, newReplayStore(t), nullLogger())
			rec := httptest.NewRecorder()
			h.Generate(rec, request(http.MethodPost, "/api/prompts", PromptRequestBody{Content: longEntry}, alice))

			assert.Equal(t, tt.status, rec.Code)
			var body ErrorResponse
			decodeBody(t, rec, &body)
			assert.Equal(t, tt.msg, body.Error)
		})
	}
}

func TestQuotaResponseCarriesUsage(t *testing.T) {
	exhausted := models.Usage{PromptsUsed: 10, PromptsLimit: 10}
	h := NewPromptHandler(&fakePromptService{err: &services.QuotaError{Usage: exhausted}}, newReplayStore(t), nullLogger())
	rec := httptest.NewRecorder()
	h.Generate(rec, request(http.MethodPost, "/api/prompts", PromptRequestBody{Content: longEntry}, alice))

	var body ErrorResponse
	decodeBody(t, rec, &body)
	require.NotNil(t, body.Usage)
	assert.Equal(t, 10, body.Usage.PromptsUsed)
}

func TestRequestErrorKinds(t *testing.T) {
	tests := []struct {
		err  error
		kind editor.ErrorKind
	}{
		{&services.QuotaError{}, editor.ErrorQuota},
		{&services.UpstreamError{Kind: services.UpstreamQuota}, editor.ErrorQuota},
		{services.ErrRateLimited, editor.ErrorBlocked},
		{services.ErrPromptInFlight, editor.ErrorBlocked},
		{fmt.Errorf("guard: %w", services.ErrRateLimited), editor.ErrorBlocked},
		{&services.UpstreamError{Kind: services.UpstreamRateLimited}, editor.ErrorRateLimited},
		{&services.UpstreamError{Kind: services.UpstreamInvalidKey}, editor.ErrorGeneric},
		{errors.New("boom"), editor.ErrorGeneric},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.kind, requestError(tt.err).Kind, tt.err.Error())
	}
}

func TestEditorPromptsAdapter(t *testing.T) {
	svc := &fakePromptService{usage: freeUsage}
	p := editorPrompts{prompts: svc, user: alice}

	reply, err := p.RequestPrompt(context.Background(), longEntry)
	require.NoError(t, err)
	assert.Equal(t, "What made the break feel necessary?", reply.Prompt)
	require.NotNil(t, reply.Usage)
	assert.Equal(t, 3, reply.Usage.PromptsUsed)
	assert.Equal(t, longEntry, svc.calls[0].Content)

	svc.err = services.ErrRateLimited
	_, err = p.RequestPrompt(context.Background(), longEntry)
	var re *editor.RequestError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, editor.ErrorBlocked, re.Kind)

	svc.err = &services.UpstreamError{Kind: services.UpstreamRateLimited, Message: "slow down"}
	_, err = p.RequestPrompt(context.Background(), longEntry)
	require.ErrorAs(t, err, &re)
	assert.Equal(t, editor.ErrorRateLimited, re.Kind)
	assert.Equal(t, msgUpstreamBusy, re.Message)
}
