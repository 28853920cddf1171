package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// Client is the minimal interface needed by core logic to call a chat model.
// It mirrors CreateChatCompletion so any OpenAI-compatible or local backend
// can be adapted.
type Client interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// ModelLister is an optional capability that allows listing available models.
type ModelLister interface {
	ListModels(ctx context.Context) (openai.ModelsList, error)
}

// OpenAIProvider adapts *openai.Client to the Client/ModelLister interfaces.
type OpenAIProvider struct {
	Inner *openai.Client
}

func (p *OpenAIProvider) CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	return p.Inner.CreateChatCompletion(ctx, request)
}

func (p *OpenAIProvider) ListModels(ctx context.Context) (openai.ModelsList, error) {
	return p.Inner.ListModels(ctx)
}

// Backend identifies the extraction and report backend.
type Backend struct {
	BaseURL string
	Model   string
	APIKey  string
}

// Configured reports whether a backend can be called at all. A model is
// required, plus either credentials or an explicit endpoint such as a local
// OpenAI-compatible server.
func (b Backend) Configured() bool {
	if strings.TrimSpace(b.Model) == "" {
		return false
	}
	return strings.TrimSpace(b.APIKey) != "" || strings.TrimSpace(b.BaseURL) != ""
}

// NewOpenAI builds a provider for b. hc may be nil.
func NewOpenAI(b Backend, hc *http.Client) *OpenAIProvider {
	cfg := openai.DefaultConfig(b.APIKey)
	if b.BaseURL != "" {
		cfg.BaseURL = b.BaseURL
	}
	if hc != nil {
		cfg.HTTPClient = hc
	}
	return &OpenAIProvider{Inner: openai.NewClientWithConfig(cfg)}
}

// ErrEmptyResponse is returned when the backend answers without any choice.
var ErrEmptyResponse = errors.New("empty completion response")

// Call is the explicit outcome of one completion request. Exactly one of
// Content or Err is meaningful.
type Call struct {
	Content string
	Err     error
}

// OK reports whether the call produced content.
func (c Call) OK() bool { return c.Err == nil }

// Complete issues req and folds every failure, including a panicking client,
// into the returned Call.
func Complete(ctx context.Context, client Client, req openai.ChatCompletionRequest) (call Call) {
	if client == nil {
		return Call{Err: errors.New("no client")}
	}
	defer func() {
		if r := recover(); r != nil {
			call = Call{Err: fmt.Errorf("completion panicked: %v", r)}
		}
	}()
	resp, err := client.CreateChatCompletion(ctx, req)
	if err != nil {
		return Call{Err: err}
	}
	if len(resp.Choices) == 0 {
		return Call{Err: ErrEmptyResponse}
	}
	return Call{Content: resp.Choices[0].Message.Content}
}
