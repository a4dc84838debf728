package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/jinzhu/copier"
	"github.com/koscakluka/ema-voice/core/conversations"
	"github.com/koscakluka/ema-voice/core/llms"
	"github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	defaultModel        = openai.GPT4oMini
	defaultSystemPrompt = "You are a friendly voice assistant. Answer in one to three short spoken sentences without markdown."
)

var ErrEmptyResponse = errors.New("model returned no choices")

// Client generates responses with the chat completions API. Any OpenAI
// compatible endpoint (Groq included) works through WithBaseURL.
type Client struct {
	client       *openai.Client
	model        string
	systemPrompt string
	maxTokens    int
	temperature  float32
}

type clientOptions struct {
	baseURL      string
	httpClient   *http.Client
	model        string
	systemPrompt string
	maxTokens    int
	temperature  float32
}

type ClientOption func(*clientOptions)

func WithModel(model string) ClientOption {
	return func(o *clientOptions) { o.model = model }
}

func WithBaseURL(baseURL string) ClientOption {
	return func(o *clientOptions) { o.baseURL = baseURL }
}

func WithSystemPrompt(prompt string) ClientOption {
	return func(o *clientOptions) { o.systemPrompt = prompt }
}

func WithMaxTokens(maxTokens int) ClientOption {
	return func(o *clientOptions) { o.maxTokens = maxTokens }
}

func WithTemperature(temperature float32) ClientOption {
	return func(o *clientOptions) { o.temperature = temperature }
}

// WithHTTPClient replaces the default client. Its transport is still wrapped
// for tracing.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(o *clientOptions) { o.httpClient = client }
}

// NewClient falls back to OPENAI_API_KEY when apiKey is empty.
func NewClient(apiKey string, opts ...ClientOption) (*Client, error) {
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("openai api key not found")
	}

	options := clientOptions{
		model:        defaultModel,
		systemPrompt: defaultSystemPrompt,
		maxTokens:    300,
		temperature:  0.7,
	}
	for _, opt := range opts {
		opt(&options)
	}

	config := openai.DefaultConfig(apiKey)
	if options.baseURL != "" {
		config.BaseURL = options.baseURL
	}

	httpClient := options.httpClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	transport := httpClient.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	config.HTTPClient = &http.Client{
		Transport: otelhttp.NewTransport(transport),
		Timeout:   httpClient.Timeout,
	}

	return &Client{
		client:       openai.NewClientWithConfig(config),
		model:        options.model,
		systemPrompt: options.systemPrompt,
		maxTokens:    options.maxTokens,
		temperature:  options.temperature,
	}, nil
}

func (c *Client) Generate(ctx context.Context, transcript string, history []conversations.Exchange) (string, error) {
	ctx, span := tracer.Start(ctx, "generate response")
	defer span.End()
	span.SetAttributes(
		attribute.String("llm.model", c.model),
		attribute.Int("llm.history_length", len(history)),
	)

	var messages []openai.ChatCompletionMessage
	if err := copier.Copy(&messages, llms.ToMessages(c.systemPrompt, history, transcript)); err != nil {
		return "", fmt.Errorf("failed to build chat messages: %w", err)
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "chat completion failed")
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		span.SetStatus(codes.Error, ErrEmptyResponse.Error())
		return "", ErrEmptyResponse
	}

	span.SetAttributes(attribute.Int("llm.total_tokens", resp.Usage.TotalTokens))
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

var _ llms.Generator = (*Client)(nil)
