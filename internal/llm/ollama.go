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

// Defaults for the local Ollama backend
const (
	DefaultOllamaURL   = "http://localhost:11434"
	DefaultOllamaModel = "llava"
)

// Ollama implements the Model interface using a local Ollama server
type Ollama struct {
	baseURL string
	model   string
	client  *http.Client
}

// NewOllama creates a new Ollama Model instance.
// Vision requests need a multimodal model such as llava, llava:1.6 or qwen2-vl.
func NewOllama(baseURL string, modelName string) (*Ollama, error) {
	if baseURL == "" {
		baseURL = DefaultOllamaURL
	}
	if modelName == "" {
		modelName = DefaultOllamaModel
	}

	return &Ollama{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		model:   modelName,
		client: &http.Client{
			Timeout: 5 * time.Minute, // Upper bound; callers pass their own deadline
		},
	}, nil
}

// ollamaChatRequest represents the request body for Ollama's chat API
type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
}

type ollamaMessage struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
}

// ollamaChatResponse represents the response from Ollama's chat API
type ollamaChatResponse struct {
	Message ollamaMessage `json:"message"`
	Done    bool          `json:"done"`
}

// Generate sends the request to /api/chat with images attached to the user message
func (o *Ollama) Generate(ctx context.Context, req Request) (string, error) {
	user := ollamaMessage{Role: "user", Content: req.Prompt}
	for _, img := range req.Images {
		user.Images = append(user.Images, base64.StdEncoding.EncodeToString(img.Data))
	}

	reqBody := ollamaChatRequest{Model: o.model, Stream: false}
	if req.System != "" {
		reqBody.Messages = append(reqBody.Messages, ollamaMessage{Role: "system", Content: req.System})
	}
	reqBody.Messages = append(reqBody.Messages, user)

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	url := fmt.Sprintf("%s/api/chat", o.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(httpReq)
	if err != nil {
		return "", transportError("ollama", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", statusError("ollama", resp.StatusCode, string(body))
	}

	var chatResp ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return "", &ServiceError{Provider: "ollama", Kind: KindStatus, StatusCode: resp.StatusCode, Err: fmt.Errorf("decoding response: %w", err)}
	}

	if strings.TrimSpace(chatResp.Message.Content) == "" {
		return "", emptyError("ollama")
	}
	return chatResp.Message.Content, nil
}

// Name returns the provider and model name
func (o *Ollama) Name() string {
	return "ollama/" + o.model
}

// Close closes the Ollama client (no-op for HTTP client)
func (o *Ollama) Close() error {
	return nil
}
