package llm

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"
	"github.com/openai/openai-go/shared"
)

// OpenAIClient talks to OpenAI-compatible endpoints through the Responses API.
type OpenAIClient struct {
	client *openai.Client
	model  string
}

// NewOpenAIClient creates a client for model. baseURL may be empty.
func NewOpenAIClient(apiKey, model, baseURL string) (*OpenAIClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai: api key is required")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	client := openai.NewClient(opts...)
	return &OpenAIClient{client: &client, model: model}, nil
}

func (c *OpenAIClient) Model() string { return c.model }

func (c *OpenAIClient) Complete(ctx context.Context, req Request) (string, error) {
	result, err := c.client.Responses.New(ctx, c.buildParams(req))
	if err != nil {
		return "", fmt.Errorf("%w: openai generate: %w", ErrProvider, err)
	}
	return result.OutputText(), nil
}

func (c *OpenAIClient) Stream(ctx context.Context, req Request, handle DeltaHandler) error {
	stream := c.client.Responses.NewStreaming(ctx, c.buildParams(req))
	defer stream.Close()

	for stream.Next() {
		switch ev := stream.Current().AsAny().(type) {
		case responses.ResponseTextDeltaEvent:
			if ev.Delta == "" {
				continue
			}
			if err := handle(ev.Delta); err != nil {
				return err
			}
		case responses.ResponseErrorEvent:
			return fmt.Errorf("%w: openai stream: %s", ErrProvider, ev.Message)
		case responses.ResponseFailedEvent:
			return fmt.Errorf("%w: openai stream: response failed", ErrProvider)
		}
	}

	if err := stream.Err(); err != nil {
		return fmt.Errorf("%w: openai stream: %w", ErrProvider, err)
	}
	return nil
}

func (c *OpenAIClient) buildParams(req Request) responses.ResponseNewParams {
	input := responses.ResponseInputParam{
		responses.ResponseInputItemParamOfMessage(req.System, responses.EasyInputMessageRoleSystem),
		responses.ResponseInputItemParamOfMessage(req.User, responses.EasyInputMessageRoleUser),
	}

	params := responses.ResponseNewParams{
		Model: shared.ResponsesModel(c.model),
		Input: responses.ResponseNewParamsInputUnion{
			OfInputItemList: input,
		},
		Temperature: openai.Float(req.Temperature),
	}
	if req.MaxOutputTokens > 0 {
		params.MaxOutputTokens = openai.Int(int64(req.MaxOutputTokens))
	}
	return params
}
