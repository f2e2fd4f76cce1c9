// Package vision calls an OpenAI-compatible chat-completions endpoint with an
// image and decodes the question and solution it transcribes.
package vision

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/kirillkom/gapdrill/internal/core/domain"
	"github.com/kirillkom/gapdrill/internal/infrastructure/resilience"
)

const (
	defaultMaxTokens      = 2000
	defaultAttemptTimeout = 60 * time.Second
	operation             = "recognize"
)

var tracer = otel.Tracer("github.com/kirillkom/gapdrill/internal/infrastructure/recognition/vision")

type Options struct {
	BaseURL   string
	APIKey    string
	Model     string
	MaxTokens int

	// AttemptTimeout bounds a single call; the policy may make several.
	AttemptTimeout time.Duration
	HTTPClient     *http.Client
	Policy         resilience.Policy
}

type Client struct {
	baseURL        string
	apiKey         string
	model          string
	maxTokens      int
	attemptTimeout time.Duration
	httpClient     *http.Client
	policy         resilience.Policy
}

func New(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	attemptTimeout := opts.AttemptTimeout
	if attemptTimeout <= 0 {
		attemptTimeout = defaultAttemptTimeout
	}
	policy := opts.Policy
	if policy == nil {
		policy = resilience.NewExecutor(resilience.DefaultConfig())
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	return &Client{
		baseURL:        strings.TrimRight(opts.BaseURL, "/"),
		apiKey:         opts.APIKey,
		model:          opts.Model,
		maxTokens:      maxTokens,
		attemptTimeout: attemptTimeout,
		httpClient:     httpClient,
		policy:         policy,
	}
}

type chatRequest struct {
	Model          string         `json:"model"`
	Messages       []chatMessage  `json:"messages"`
	MaxTokens      int            `json:"max_tokens,omitempty"`
	Temperature    float64        `json:"temperature"`
	ResponseFormat map[string]any `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// Recognize transcribes the exam question and its solution from the image at imageRef.
func (c *Client) Recognize(ctx context.Context, imageRef string) (domain.Recognition, error) {
	ctx, span := tracer.Start(ctx, "vision.recognize")
	defer span.End()
	span.SetAttributes(attribute.String("vision.model", c.model))

	req := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: []contentPart{{Type: "text", Text: systemPrompt}}},
			{Role: "user", Content: []contentPart{
				{Type: "text", Text: userPrompt},
				{Type: "image_url", ImageURL: &imageURL{URL: imageRef}},
			}},
		},
		MaxTokens:      c.maxTokens,
		ResponseFormat: map[string]any{"type": "json_object"},
	}

	var resp chatResponse
	err := c.policy.Execute(ctx, "vision."+operation, func(callCtx context.Context) error {
		attemptCtx, cancel := context.WithTimeout(callCtx, c.attemptTimeout)
		defer cancel()
		resp = chatResponse{}
		return c.postJSON(attemptCtx, "/chat/completions", req, &resp)
	}, attemptClassifier(ctx))
	if err != nil {
		span.RecordError(err)
		return domain.Recognition{}, domain.WrapError(domain.ErrUpstream, "vision recognize", markTemporary(ctx, err))
	}

	if len(resp.Choices) == 0 {
		return domain.Recognition{}, domain.WrapError(domain.ErrUpstream, "vision recognize", errors.New("response has no choices"))
	}
	out, err := parseRecognition(resp.Choices[0].Message.Content)
	if err != nil {
		span.RecordError(err)
		return domain.Recognition{}, domain.WrapError(domain.ErrUpstream, "vision recognize", err)
	}
	return out, nil
}

func parseRecognition(raw string) (domain.Recognition, error) {
	var out domain.Recognition
	if err := json.Unmarshal([]byte(extractJSONObject(raw)), &out); err != nil {
		return domain.Recognition{}, fmt.Errorf("parse recognition json: %w", err)
	}
	out.Question = strings.TrimSpace(out.Question)
	out.Solution = strings.TrimSpace(out.Solution)
	if out.Question == "" || out.Solution == "" {
		return domain.Recognition{}, errors.New("recognition json is missing question or solution")
	}
	return out, nil
}

func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}
