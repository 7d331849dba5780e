// Package responder produces replies for settled composite messages using
// the OpenAI Chat Completions API. Retrieval is a seam: a Retriever can
// inject reference passages into the prompt, but indexing mechanics live
// outside this repository.
package responder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/zapbotio/zapbot/internal/config"
)

// ErrGeneration marks generation failures and timeouts.
var ErrGeneration = errors.New("response generation failed")

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one prior exchange unit given to the model as context.
type Turn struct {
	Role string
	Text string
}

// Retriever supplies reference passages for a question.
type Retriever interface {
	Retrieve(ctx context.Context, query string) ([]string, error)
}

// OpenAI answers questions with conversation history spliced into the
// chat-completion request.
type OpenAI struct {
	client      openai.Client
	model       string
	temperature float64
	maxTokens   int
	timeout     time.Duration
	retriever   Retriever
	logger      *slog.Logger
}

func NewOpenAI(log *slog.Logger, cfg config.OpenAIConfig) *OpenAI {
	if log == nil {
		log = slog.Default()
	}
	return &OpenAI{
		client:      openai.NewClient(option.WithAPIKey(cfg.APIKey)),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		timeout:     config.Duration(cfg.Timeout),
		logger:      log.With(slog.String("service", "responder")),
	}
}

// SetRetriever registers an optional reference-passage source.
func (o *OpenAI) SetRetriever(r Retriever) {
	o.retriever = r
}

// Respond generates a reply for the question given prior turns. Carries an
// upper-bound timeout; a timeout fails like any other generation error.
func (o *OpenAI) Respond(ctx context.Context, question string, history []Turn) (string, error) {
	if question == "" {
		return "", fmt.Errorf("%w: question is empty", ErrGeneration)
	}
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	var docs []string
	if o.retriever != nil {
		var err error
		docs, err = o.retriever.Retrieve(ctx, question)
		if err != nil {
			o.logger.Warn("retrieval failed, answering without references", slog.Any("error", err))
			docs = nil
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:       o.model,
		Messages:    buildMessages(question, history, docs),
		Temperature: openai.Float(o.temperature),
	}
	if o.maxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(o.maxTokens))
	}

	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrGeneration, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices returned", ErrGeneration)
	}
	reply := strings.TrimSpace(resp.Choices[0].Message.Content)
	if reply == "" {
		return "", fmt.Errorf("%w: empty completion", ErrGeneration)
	}
	return reply, nil
}
