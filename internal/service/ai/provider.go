package ai

import (
	"context"
	"errors"
)

// Default generation parameters used by the chat pipeline.
const (
	DefaultModel       = "gpt-4o-mini"
	DefaultTemperature = 0.7
)

// ErrProviderUnavailable is returned when no provider could be configured.
var ErrProviderUnavailable = errors.New("language model provider unavailable")

// ModelParams are the fixed generation parameters sent with every prompt.
type ModelParams struct {
	Model       string
	Temperature float64
	Streaming   bool
	// IncludeUsage asks providers that support it to append a usage-only
	// chunk at the end of the stream.
	IncludeUsage bool
}

// DefaultParams returns the parameters the product ships with.
func DefaultParams() ModelParams {
	return ModelParams{
		Model:        DefaultModel,
		Temperature:  DefaultTemperature,
		Streaming:    true,
		IncludeUsage: true,
	}
}

// Output carries the text payload of a result.
type Output struct {
	Text string
}

// Result is one raw item yielded by a provider stream. Output is nil for
// items without a text payload (usage reports, keep-alives, role headers).
type Result struct {
	Output *Output
}

// Text returns the payload and whether it is usable.
func (r *Result) Text() (string, bool) {
	if r == nil || r.Output == nil || r.Output.Text == "" {
		return "", false
	}
	return r.Output.Text, true
}

// ResultStream is a single-consumption sequence of results. Recv returns
// io.EOF once the provider finished normally.
type ResultStream interface {
	Recv() (*Result, error)
	Close() error
}

// Provider wraps a language model vendor's streaming call.
type Provider interface {
	Stream(ctx context.Context, prompt string, params ModelParams) (ResultStream, error)
}
