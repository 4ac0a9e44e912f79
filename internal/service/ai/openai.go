package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// OpenAIProvider streams completions from an OpenAI-compatible endpoint.
type OpenAIProvider struct {
	client *openai.Client
}

// NewOpenAIProvider builds a provider. baseURL may be empty to use the
// public OpenAI API.
func NewOpenAIProvider(apiKey, baseURL string) (*OpenAIProvider, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, fmt.Errorf("%w: openai api key required", ErrProviderUnavailable)
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/"); baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIProvider{client: openai.NewClientWithConfig(cfg)}, nil
}

// Stream implements Provider. When params.Streaming is false the completion
// is fetched in one call and replayed as a single result.
func (p *OpenAIProvider) Stream(ctx context.Context, prompt string, params ModelParams) (ResultStream, error) {
	req := openai.ChatCompletionRequest{
		Model:       params.Model,
		Temperature: float32(params.Temperature),
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}

	if !params.Streaming {
		resp, err := p.client.CreateChatCompletion(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("openai completion: %w", err)
		}
		results := make([]*Result, 0, len(resp.Choices))
		for _, choice := range resp.Choices {
			results = append(results, &Result{Output: &Output{Text: choice.Message.Content}})
		}
		return newSliceStream(results), nil
	}

	req.Stream = true
	if params.IncludeUsage {
		req.StreamOptions = &openai.StreamOptions{IncludeUsage: true}
	}
	stream, err := p.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("openai stream: %w", err)
	}
	return &openAIStream{stream: stream}, nil
}

type openAIStream struct {
	stream *openai.ChatCompletionStream
}

func (s *openAIStream) Recv() (*Result, error) {
	resp, err := s.stream.Recv()
	if errors.Is(err, io.EOF) {
		return nil, io.EOF
	}
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return &Result{}, nil
	}
	return &Result{Output: &Output{Text: resp.Choices[0].Delta.Content}}, nil
}

func (s *openAIStream) Close() error {
	return s.stream.Close()
}

// sliceStream replays precomputed results.
type sliceStream struct {
	items []*Result
}

func newSliceStream(items []*Result) *sliceStream {
	return &sliceStream{items: items}
}

func (s *sliceStream) Recv() (*Result, error) {
	if len(s.items) == 0 {
		return nil, io.EOF
	}
	item := s.items[0]
	s.items = s.items[1:]
	return item, nil
}

func (s *sliceStream) Close() error {
	s.items = nil
	return nil
}
