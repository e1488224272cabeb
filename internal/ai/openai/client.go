package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.uber.org/zap"

	"github.com/spigell/vacancy-matcher/internal/utils"
)

const defaultModel = "gpt-4o-mini"

// assessmentResponse mirrors the JSON object the prompt asks for.
type assessmentResponse struct {
	Fit     bool    `json:"fit" jsonschema_description:"true when the candidate meets the hard requirements"`
	Score   float64 `json:"score" jsonschema_description:"fit score between 0 and 1"`
	Reason  string  `json:"reason" jsonschema_description:"short justification"`
	Message string  `json:"message" jsonschema_description:"message to the candidate"`
}

func generateSchema[T any]() any {
	// Structured outputs accept a subset of JSON schema only.
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	return reflector.Reflect(v)
}

var assessmentSchema = generateSchema[assessmentResponse]()

// Client completes prompts with the chat completions API and a strict JSON schema.
type Client struct {
	client  openai.Client
	model   string
	backoff utils.Backoff
	logger  *zap.Logger
}

// New creates a client. An empty baseURL keeps the SDK default.
func New(apiKey, model, baseURL string, maxRetries int, logger *zap.Logger) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("openai api key is required")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL = strings.TrimSpace(baseURL); baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	if model = strings.TrimSpace(model); model == "" {
		model = defaultModel
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Client{
		client: openai.NewClient(opts...),
		model:  model,
		logger: logger,
	}
	c.backoff = utils.Backoff{
		Attempts:  maxRetries,
		BaseDelay: 500 * time.Millisecond,
		MaxDelay:  10 * time.Second,
		Retryable: isRetryable,
		OnRetry: func(attempt int, delay time.Duration, err error) {
			c.logger.Warn("openai request failed, retrying",
				zap.Int("attempt", attempt),
				zap.Duration("wait", delay),
				zap.Error(err),
			)
		},
	}

	return c, nil
}

// Complete sends the system and user messages and returns the assistant content.
func (c *Client) Complete(ctx context.Context, system, message string) (string, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return "", errors.New("prompt must not be empty")
	}

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if system = strings.TrimSpace(system); system != "" {
		messages = append(messages, openai.SystemMessage(system))
	}
	messages = append(messages, openai.UserMessage(message))

	params := openai.ChatCompletionNewParams{
		Messages:    messages,
		Model:       openai.ChatModel(c.model),
		Temperature: openai.Float(0),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:        "fit_assessment",
					Description: openai.String("Candidate to vacancy fit assessment"),
					Schema:      assessmentSchema,
					Strict:      openai.Bool(true),
				},
			},
		},
	}

	var content string
	err := utils.Retry(ctx, c.backoff, func(ctx context.Context) error {
		completion, err := c.client.Chat.Completions.New(ctx, params)
		if err != nil {
			return err
		}
		if len(completion.Choices) == 0 {
			return errors.New("openai returned no choices")
		}
		content = strings.TrimSpace(completion.Choices[0].Message.Content)
		if content == "" {
			return errors.New("openai returned empty content")
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}

	return content, nil
}

func (c *Client) Model() string {
	if c == nil {
		return ""
	}
	return c.model
}

func isRetryable(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= http.StatusInternalServerError
	}
	return false
}
