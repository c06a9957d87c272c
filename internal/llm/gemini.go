package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// GeminiClient talks to Google Gemini models.
type GeminiClient struct {
	client *genai.Client
	model  string
}

func NewGeminiClient(ctx context.Context, apiKey, model string) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini: api key is required")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiClient{
		client: client,
		model:  model,
	}, nil
}

func (g *GeminiClient) Close() {
	g.client.Close()
}

func (g *GeminiClient) Model() string { return g.model }

func (g *GeminiClient) Complete(ctx context.Context, req Request) (string, error) {
	resp, err := g.generativeModel(req).GenerateContent(ctx, genai.Text(req.User))
	if err != nil {
		return "", fmt.Errorf("%w: gemini generate: %w", ErrProvider, err)
	}
	return responseText(resp), nil
}

func (g *GeminiClient) Stream(ctx context.Context, req Request, handle DeltaHandler) error {
	iter := g.generativeModel(req).GenerateContentStream(ctx, genai.Text(req.User))
	for {
		resp, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: gemini stream: %w", ErrProvider, err)
		}
		if text := responseText(resp); text != "" {
			if err := handle(text); err != nil {
				return err
			}
		}
	}
}

// generativeModel is built per call: GenerativeModel carries mutable
// generation settings.
func (g *GeminiClient) generativeModel(req Request) *genai.GenerativeModel {
	model := g.client.GenerativeModel(g.model)
	model.SetTemperature(float32(req.Temperature))
	model.SetTopP(0.95)
	if req.MaxOutputTokens > 0 {
		model.SetMaxOutputTokens(int32(req.MaxOutputTokens))
	}
	if req.System != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.System)}}
	}
	return model
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			sb.WriteString(string(t))
		}
	}
	return sb.String()
}
