package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"
)

const (
	// PromptTimeout bounds the language model call
	PromptTimeout = 30 * time.Second

	promptTemperature = 0.7
	promptMaxTokens   = 120

	systemInstruction = "You are a supportive journaling companion. Read the user's journal entry and ask exactly one " +
		"thoughtful, open-ended question that helps them reflect more deeply on what they wrote. " +
		"Do not give advice, diagnoses, or instructions. Respond with the question only, without numbering."
)

// UpstreamKind classifies language model failures.
type UpstreamKind string

const (
	UpstreamQuota       UpstreamKind = "quota_exceeded"
	UpstreamRateLimited UpstreamKind = "rate_limited"
	UpstreamInvalidKey  UpstreamKind = "invalid_key"
	UpstreamServer      UpstreamKind = "server_error"
	UpstreamUnavailable UpstreamKind = "unavailable"
)

// UpstreamError is a failed call to the language model API.
type UpstreamError struct {
	Kind       UpstreamKind
	StatusCode int
	Message    string
}

func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("llm upstream %s (%d): %s", e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("llm upstream %s: %s", e.Kind, e.Message)
}

// PromptGenerator turns journal text into raw model output.
type PromptGenerator interface {
	Generate(ctx context.Context, content string) (string, error)
}

// OpenAIClient calls the chat completions endpoint.
type OpenAIClient struct {
	apiKey  string
	model   string
	baseURL string
	http    *http.Client
}

// NewOpenAIClient creates a client. baseURL defaults to https://api.openai.com/v1.
func NewOpenAIClient(apiKey, model, baseURL string, httpClient *http.Client) *OpenAIClient {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	if model == "" {
		model = "gpt-4.1-mini"
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: PromptTimeout}
	}
	return &OpenAIClient{apiKey: apiKey, model: model, baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

type apiErrorBody struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

func (c *OpenAIClient) Generate(ctx context.Context, content string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, PromptTimeout)
	defer cancel()

	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemInstruction},
			{Role: "user", Content: "Here is the user's journal entry:\n\n" + content + "\n\nAsk one follow-up question."},
		},
		Temperature: promptTemperature,
		MaxTokens:   promptMaxTokens,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		msg := err.Error()
		if errors.Is(err, context.DeadlineExceeded) {
			msg = "request timed out"
		}
		return "", &UpstreamError{Kind: UpstreamUnavailable, Message: msg}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", &UpstreamError{Kind: UpstreamUnavailable, Message: err.Error()}
	}
	if resp.StatusCode != http.StatusOK {
		return "", classifyUpstream(resp.StatusCode, respBody)
	}

	var out chatResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return "", &UpstreamError{Kind: UpstreamServer, StatusCode: resp.StatusCode, Message: "malformed response"}
	}
	if len(out.Choices) == 0 {
		return "", nil
	}
	return out.Choices[0].Message.Content, nil
}

func classifyUpstream(status int, body []byte) *UpstreamError {
	var apiErr apiErrorBody
	msg := strings.TrimSpace(string(body))
	if json.Unmarshal(body, &apiErr) == nil && apiErr.Error.Message != "" {
		msg = apiErr.Error.Message
	}

	e := &UpstreamError{StatusCode: status, Message: msg}
	switch {
	case apiErr.Error.Code == "insufficient_quota" || apiErr.Error.Type == "insufficient_quota":
		e.Kind = UpstreamQuota
	case status == http.StatusTooManyRequests:
		e.Kind = UpstreamRateLimited
	case status == http.StatusUnauthorized:
		e.Kind = UpstreamInvalidKey
	default:
		e.Kind = UpstreamServer
	}
	return e
}

var (
	leadingNumber = regexp.MustCompile(`^\d+[\).\s]*`)
	leadingBullet = regexp.MustCompile(`^[-*•]+\s*`)
)

// CleanPrompt returns the first non-empty line with numbering, bullets and wrapping quotes removed.
func CleanPrompt(raw string) string {
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		line = leadingNumber.ReplaceAllString(line, "")
		line = leadingBullet.ReplaceAllString(line, "")
		line = strings.Trim(strings.TrimSpace(line), `"“”'`)
		line = strings.TrimSpace(line)
		if line != "" {
			return line
		}
	}
	return ""
}

// MockGenerator answers from a fixed list when no API key is configured.
type MockGenerator struct{}

var mockPrompts = []string{
	"What emotions are you experiencing as you write this?",
	"Can you explore this thought from a different perspective?",
	"What would you tell a friend who was going through this?",
	"What patterns do you notice in your thinking?",
	"How does this situation relate to your values?",
	"What would you like to understand better about this?",
	"What feels most important about what you've written?",
	"How might you approach this differently?",
}

var mockTopics = []struct {
	words  []string
	prompt string
}{
	{[]string{"stress", "anxious", "overwhelmed"}, "What specific aspects of this situation are causing you stress?"},
	{[]string{"happy", "excited"}, "What made this moment special? How can you create more of these moments?"},
	{[]string{"sad", "disappointed"}, "What support do you need right now? How can you be kind to yourself?"},
	{[]string{"work", "job"}, "How does this work situation align with your personal goals?"},
	{[]string{"relationship", "friend"}, "What does this relationship mean to you? What do you value about it?"},
}

func (MockGenerator) Generate(_ context.Context, content string) (string, error) {
	lower := strings.ToLower(content)
	for _, topic := range mockTopics {
		for _, w := range topic.words {
			if strings.Contains(lower, w) {
				return topic.prompt, nil
			}
		}
	}
	h := fnv.New32a()
	h.Write([]byte(content))
	return mockPrompts[h.Sum32()%uint32(len(mockPrompts))], nil
}
