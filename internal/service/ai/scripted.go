package ai

import (
	"context"
	"io"
	"strings"
	"sync"
	"time"
)

// ScriptedProvider replays a fixed list of chunks. It backs the "mock"
// provider in local development and the pipeline tests.
type ScriptedProvider struct {
	// Chunks are emitted in order. An empty string is emitted as a result
	// without payload.
	Chunks []string
	// OpenErr, when set, is returned by Stream before anything is emitted.
	OpenErr error
	// StreamErr, when set, is returned by Recv after all chunks.
	StreamErr error
	// Delay is waited before each chunk.
	Delay time.Duration

	mu      sync.Mutex
	prompts []string
	params  []ModelParams
	closed  int
}

// NewScriptedProvider returns a provider emitting chunks.
func NewScriptedProvider(chunks ...string) *ScriptedProvider {
	return &ScriptedProvider{Chunks: chunks}
}

// NewMockProvider returns the development provider: a canned reply split
// into word-sized chunks.
func NewMockProvider() *ScriptedProvider {
	reply := "This is a mock reply from the development provider. Configure AI_PROVIDER to talk to a real model."
	words := strings.SplitAfter(reply, " ")
	p := NewScriptedProvider(words...)
	p.Delay = 40 * time.Millisecond
	return p
}

// Stream implements Provider.
func (p *ScriptedProvider) Stream(ctx context.Context, prompt string, params ModelParams) (ResultStream, error) {
	p.mu.Lock()
	p.prompts = append(p.prompts, prompt)
	p.params = append(p.params, params)
	p.mu.Unlock()

	if p.OpenErr != nil {
		return nil, p.OpenErr
	}
	return &scriptedStream{
		ctx:      ctx,
		provider: p,
		chunks:   append([]string(nil), p.Chunks...),
	}, nil
}

// Prompts returns every prompt received so far.
func (p *ScriptedProvider) Prompts() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.prompts...)
}

// Params returns the parameters of every call so far.
func (p *ScriptedProvider) Params() []ModelParams {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]ModelParams(nil), p.params...)
}

// Closed returns how many streams were closed.
func (p *ScriptedProvider) Closed() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

type scriptedStream struct {
	ctx      context.Context
	provider *ScriptedProvider
	chunks   []string
	once     sync.Once
}

func (s *scriptedStream) Recv() (*Result, error) {
	if err := s.ctx.Err(); err != nil {
		return nil, err
	}
	if len(s.chunks) == 0 {
		if s.provider.StreamErr != nil {
			return nil, s.provider.StreamErr
		}
		return nil, io.EOF
	}
	if s.provider.Delay > 0 {
		timer := time.NewTimer(s.provider.Delay)
		select {
		case <-s.ctx.Done():
			timer.Stop()
			return nil, s.ctx.Err()
		case <-timer.C:
		}
	}
	chunk := s.chunks[0]
	s.chunks = s.chunks[1:]
	if chunk == "" {
		return &Result{}, nil
	}
	return &Result{Output: &Output{Text: chunk}}, nil
}

func (s *scriptedStream) Close() error {
	s.once.Do(func() {
		s.provider.mu.Lock()
		s.provider.closed++
		s.provider.mu.Unlock()
	})
	return nil
}
