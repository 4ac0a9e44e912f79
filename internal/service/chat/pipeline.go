package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/king-app/king/backend/internal/model/chat"
	"github.com/king-app/king/backend/internal/model/persona"
	"github.com/king-app/king/backend/internal/observability"
	"github.com/king-app/king/backend/internal/service/ai"
)

// ErrorFragmentPrefix starts the single fragment emitted when the provider
// fails after the stream was handed to the caller.
const ErrorFragmentPrefix = "Error occurred during streaming: "

// DefaultBuffer is the number of fragments the producer may run ahead of
// the consumer.
const DefaultBuffer = 16

// Config tunes the reply pipeline.
type Config struct {
	Params ai.ModelParams
	// Buffer bounds the fragment channel. The producer blocks when full.
	Buffer int
	// SavePartialOnCancel persists the text delivered so far when the
	// caller goes away mid-stream. Empty partials are never saved.
	SavePartialOnCancel bool
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		Params: ai.DefaultParams(),
		Buffer: DefaultBuffer,
	}
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithConfig replaces the pipeline configuration.
func WithConfig(cfg Config) Option {
	return func(p *Pipeline) { p.cfg = cfg }
}

// WithGuard enables one active stream per user.
func WithGuard(g *Guard) Option {
	return func(p *Pipeline) { p.guard = g }
}

// WithDispatcher sets the executor used for assistant turn writes.
func WithDispatcher(d *Dispatcher) Option {
	return func(p *Pipeline) { p.dispatcher = d }
}

// WithMetrics attaches prometheus collectors.
func WithMetrics(m *observability.StreamingMetrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithLogger sets the pipeline logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// Pipeline turns a user message plus stored history into a streamed,
// persisted assistant reply.
type Pipeline struct {
	history    HistoryStore
	provider   ai.Provider
	prompts    *ai.PromptBuilder
	guard      *Guard
	dispatcher *Dispatcher
	metrics    *observability.StreamingMetrics
	logger     *slog.Logger
	cfg        Config
}

// NewPipeline wires the pipeline collaborators.
func NewPipeline(history HistoryStore, provider ai.Provider, prompts *ai.PromptBuilder, opts ...Option) *Pipeline {
	p := &Pipeline{
		history:  history,
		provider: provider,
		prompts:  prompts,
		cfg:      DefaultConfig(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.prompts == nil {
		p.prompts = ai.NewPromptBuilder()
	}
	if p.dispatcher == nil {
		p.dispatcher = NewDispatcher(0, 0)
	}
	if p.cfg.Buffer <= 0 {
		p.cfg.Buffer = DefaultBuffer
	}
	return p
}

// StreamReply records the user's message and returns the reply stream.
//
// Errors returned here happen before any fragment exists: bad input,
// a busy user, or an unreadable/unwritable history. Once a stream is
// returned every provider failure arrives as a final error fragment.
// The provider is contacted on the first Recv.
func (p *Pipeline) StreamReply(ctx context.Context, userID int64, message string, ps persona.Persona) (*ReplyStream, error) {
	if userID <= 0 {
		p.metrics.StreamRejected(ps.ID)
		return nil, fmt.Errorf("%w: user id required", ErrInvalidInput)
	}
	if strings.TrimSpace(message) == "" {
		p.metrics.StreamRejected(ps.ID)
		return nil, fmt.Errorf("%w: message is empty", ErrInvalidInput)
	}

	release, err := p.guard.Acquire(ctx, userID)
	if err != nil {
		p.metrics.StreamRejected(ps.ID)
		return nil, err
	}

	prompt, err := p.prepare(ctx, userID, message, ps)
	if err != nil {
		release()
		p.metrics.StreamRejected(ps.ID)
		return nil, err
	}

	rs := newReplyStream(ctx, p, newSession(userID, ps.ID), prompt, release)
	rs.logger.Debug("prompt built", "prompt_len", len(prompt))
	return rs, nil
}

// prepare reads the dialogue, stores the user turn and builds the prompt,
// in that order.
func (p *Pipeline) prepare(ctx context.Context, userID int64, message string, ps persona.Persona) (string, error) {
	turns, err := p.history.FindByUserID(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrHistoryUnavailable, err)
	}
	dialogue, err := chat.Dialogue(turns)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	if err := p.history.SaveChatHistory(ctx, userID, chat.RoleUser, message, chat.KindMessage); err != nil {
		return "", fmt.Errorf("%w: save user turn: %w", ErrHistoryUnavailable, err)
	}

	return p.prompts.Build(ps, dialogue, message), nil
}

// Shutdown waits for pending assistant turn writes.
func (p *Pipeline) Shutdown(ctx context.Context) error {
	return p.dispatcher.Shutdown(ctx)
}
