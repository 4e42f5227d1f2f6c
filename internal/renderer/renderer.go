package renderer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aescanero/dago-libs/pkg/domain"
	"github.com/aescanero/dago-libs/pkg/ports"
	"github.com/aescanero/dago-node-prompt/internal/registry"
	"go.uber.org/zap"
)

const (
	defaultModel     = "claude-sonnet-4-20250514"
	defaultMaxTokens = 1024
)

// ErrNoLLMClient is returned when a completion is requested without an LLM client
var ErrNoLLMClient = errors.New("llm client not configured")

// Request asks for a named prompt to be rendered
type Request struct {
	RequestID string                 `json:"request_id"`
	Template  string                 `json:"template"`
	Args      []interface{}          `json:"args,omitempty"`
	Kwargs    map[string]interface{} `json:"kwargs,omitempty"`
	// Complete sends the rendered prompt to the LLM and returns its answer too
	Complete  bool   `json:"complete,omitempty"`
	Model     string `json:"model,omitempty"`
	MaxTokens int    `json:"max_tokens,omitempty"`
}

// Result is a rendered prompt
type Result struct {
	RequestID  string `json:"request_id"`
	Template   string `json:"template"`
	Prompt     string `json:"prompt"`
	Completion string `json:"completion,omitempty"`
	Model      string `json:"model,omitempty"`
}

// Options configures the completion step
type Options struct {
	Model     string
	MaxTokens int
	Timeout   time.Duration
}

// Renderer renders registered prompts and optionally completes them
type Renderer struct {
	registry  *registry.Registry
	llmClient ports.LLMClient
	opts      Options
	logger    *zap.Logger
}

// NewRenderer creates a new renderer. llmClient may be nil.
func NewRenderer(reg *registry.Registry, llmClient ports.LLMClient, opts Options, logger *zap.Logger) *Renderer {
	if opts.Model == "" {
		opts.Model = defaultModel
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = defaultMaxTokens
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Renderer{
		registry:  reg,
		llmClient: llmClient,
		opts:      opts,
		logger:    logger,
	}
}

// Render renders the requested prompt
func (r *Renderer) Render(ctx context.Context, req *Request) (*Result, error) {
	if req == nil {
		return nil, fmt.Errorf("request is nil")
	}
	if req.Template == "" {
		return nil, fmt.Errorf("template name is required")
	}
	if req.Complete && r.llmClient == nil {
		return nil, ErrNoLLMClient
	}

	r.logger.Info("rendering prompt",
		zap.String("request_id", req.RequestID),
		zap.String("template", req.Template),
	)

	tmpl, err := r.registry.Get(ctx, req.Template)
	if err != nil {
		return nil, err
	}

	prompt, err := tmpl.Call(req.Args, req.Kwargs)
	if err != nil {
		r.logger.Warn("prompt rendering failed",
			zap.String("request_id", req.RequestID),
			zap.String("template", req.Template),
			zap.Error(err),
		)
		return nil, err
	}

	result := &Result{
		RequestID: req.RequestID,
		Template:  req.Template,
		Prompt:    prompt,
	}

	if !req.Complete {
		return result, nil
	}

	result.Model = r.model(req)

	r.logger.Debug("calling llm for completion",
		zap.String("request_id", req.RequestID),
		zap.String("model", result.Model),
		zap.String("prompt", prompt),
	)

	completion, err := r.callLLM(ctx, prompt, result.Model, r.maxTokens(req))
	if err != nil {
		r.logger.Error("llm call failed",
			zap.String("request_id", req.RequestID),
			zap.Error(err),
		)
		return nil, err
	}
	result.Completion = completion

	return result, nil
}

func (r *Renderer) model(req *Request) string {
	if req.Model != "" {
		return req.Model
	}
	return r.opts.Model
}

func (r *Renderer) maxTokens(req *Request) int {
	if req.MaxTokens > 0 {
		return req.MaxTokens
	}
	return r.opts.MaxTokens
}

// callLLM sends prompt as a single user message
func (r *Renderer) callLLM(ctx context.Context, prompt, model string, maxTokens int) (string, error) {
	if r.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.Timeout)
		defer cancel()
	}

	req := &domain.LLMRequest{
		Model: model,
		Messages: []domain.Message{
			{
				Role:    "user",
				Content: prompt,
			},
		},
		MaxTokens: maxTokens,
	}

	respInterface, err := r.llmClient.GenerateCompletion(ctx, req)
	if err != nil {
		return "", &CompletionError{Err: err}
	}

	resp, ok := respInterface.(*domain.LLMResponse)
	if !ok {
		return "", &CompletionError{Err: fmt.Errorf("unexpected response type %T", respInterface)}
	}

	return resp.Content, nil
}
