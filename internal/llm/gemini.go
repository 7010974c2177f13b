package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/googleapis/gax-go/v2/apierror"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
)

// DefaultGeminiModel is used when no model name is configured
const DefaultGeminiModel = "gemini-1.5-pro"

// Gemini implements the Model interface using Google Gemini
type Gemini struct {
	client *genai.Client
	model  *genai.GenerativeModel
	name   string
}

// NewGemini creates a new Gemini Model instance
func NewGemini(apiKey string, modelName string) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if modelName == "" {
		modelName = DefaultGeminiModel
	}

	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	model.SetTemperature(1)
	model.SetTopP(0.95)
	model.SetTopK(64)
	model.SetMaxOutputTokens(8192)

	return &Gemini{
		client: client,
		model:  model,
		name:   modelName,
	}, nil
}

// Generate sends the images and prompt in a single request
func (g *Gemini) Generate(ctx context.Context, req Request) (string, error) {
	parts := make([]genai.Part, 0, len(req.Images)+2)
	for _, img := range req.Images {
		// genai.ImageData expects just the format suffix (e.g., "png"), not the full MIME type
		parts = append(parts, genai.ImageData(strings.TrimPrefix(img.MIMEType, "image/"), img.Data))
	}
	if req.System != "" {
		parts = append(parts, genai.Text(req.System))
	}
	parts = append(parts, genai.Text(req.Prompt))

	resp, err := g.model.GenerateContent(ctx, parts...)
	if err != nil {
		return "", g.classify(err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", emptyError(g.provider())
	}

	var responseText strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			responseText.WriteString(string(text))
		}
	}
	if strings.TrimSpace(responseText.String()) == "" {
		return "", emptyError(g.provider())
	}

	return responseText.String(), nil
}

// classify maps Gemini client errors onto ServiceError kinds
func (g *Gemini) classify(err error) *ServiceError {
	provider := g.provider()

	var blocked *genai.BlockedError
	if errors.As(err, &blocked) {
		return &ServiceError{Provider: provider, Kind: KindBlocked, Err: err}
	}

	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		se := statusError(provider, gErr.Code, gErr.Message)
		se.Err = err
		return se
	}

	var apiErr *apierror.APIError
	if errors.As(err, &apiErr) {
		if code := apiErr.HTTPCode(); code > 0 {
			se := statusError(provider, code, apiErr.Error())
			se.Err = err
			return se
		}
		kind, status := KindStatus, 0
		switch apiErr.GRPCStatus().Code() {
		case codes.Unauthenticated, codes.PermissionDenied:
			kind = KindAuth
		case codes.ResourceExhausted:
			kind = KindRateLimit
		case codes.DeadlineExceeded:
			kind = KindTimeout
		case codes.Unavailable:
			kind = KindNetwork
		case codes.InvalidArgument, codes.FailedPrecondition, codes.NotFound, codes.Unimplemented:
			status = http.StatusBadRequest
		}
		return &ServiceError{Provider: provider, Kind: kind, StatusCode: status, Err: err}
	}

	return transportError(provider, err)
}

func (g *Gemini) provider() string {
	return "gemini"
}

// Name returns the provider and model name
func (g *Gemini) Name() string {
	return "gemini/" + g.name
}

// Close closes the Gemini client
func (g *Gemini) Close() error {
	return g.client.Close()
}
