package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Defaults for the OpenAI-compatible backend
const (
	DefaultOpenAIURL   = "https://api.openai.com/v1"
	DefaultOpenAIModel = "gpt-4o"
)

// OpenAIOption configures the OpenAI client
type OpenAIOption func(*OpenAI)

// WithMaxTokens sets the response token limit
func WithMaxTokens(n int) OpenAIOption {
	return func(c *OpenAI) { c.maxTokens = n }
}

// WithTemperature overrides the sampling temperature
func WithTemperature(t float64) OpenAIOption {
	return func(c *OpenAI) { c.temperature = t }
}

// OpenAI implements the Model interface against an OpenAI-compatible
// chat-completions endpoint
type OpenAI struct {
	baseURL     string
	apiKey      string
	model       string
	temperature float64
	maxTokens   int
	http        *http.Client
}

// NewOpenAI creates an OpenAI chat client
func NewOpenAI(baseURL, apiKey, modelName string, opts ...OpenAIOption) (*OpenAI, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}
	if baseURL == "" {
		baseURL = DefaultOpenAIURL
	}
	if modelName == "" {
		modelName = DefaultOpenAIModel
	}

	c := &OpenAI{
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		apiKey:      apiKey,
		model:       modelName,
		temperature: 1,
		maxTokens:   4096,
		http:        &http.Client{Timeout: 5 * time.Minute},
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// ── Wire types ───────────────────────────────────────────────────

type chatMessage struct {
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

// contentPart is a polymorphic content block (text or image_url)
type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatPayload struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Generate sends a chat-completion request and returns the assistant's reply
func (c *OpenAI) Generate(ctx context.Context, req Request) (string, error) {
	var messages []chatMessage
	if req.System != "" {
		messages = append(messages, chatMessage{
			Role:    "system",
			Content: []contentPart{{Type: "text", Text: req.System}},
		})
	}

	user := chatMessage{Role: "user", Content: []contentPart{{Type: "text", Text: req.Prompt}}}
	for _, img := range req.Images {
		uri := fmt.Sprintf("data:%s;base64,%s", img.MIMEType, base64.StdEncoding.EncodeToString(img.Data))
		user.Content = append(user.Content, contentPart{Type: "image_url", ImageURL: &imageURL{URL: uri}})
	}
	messages = append(messages, user)

	jsonData, err := json.Marshal(chatPayload{
		Model:       c.model,
		Messages:    messages,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("openai: marshal payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("openai: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", transportError("openai", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", transportError("openai", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", statusError("openai", resp.StatusCode, string(respBody))
	}

	var result chatResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", &ServiceError{Provider: "openai", Kind: KindStatus, StatusCode: resp.StatusCode, Err: fmt.Errorf("unmarshal response: %w", err)}
	}

	if len(result.Choices) == 0 || strings.TrimSpace(result.Choices[0].Message.Content) == "" {
		return "", emptyError("openai")
	}
	return result.Choices[0].Message.Content, nil
}

// Name returns the provider and model name
func (c *OpenAI) Name() string {
	return "openai/" + c.model
}

// Close is a no-op for the HTTP client
func (c *OpenAI) Close() error {
	return nil
}
