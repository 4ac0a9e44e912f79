package ai

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// ChatModelProvider adapts an eino chat model (Ark by default) to Provider.
type ChatModelProvider struct {
	chatModel model.BaseChatModel
}

// NewChatModelProvider wraps an already constructed eino chat model.
func NewChatModelProvider(chatModel model.BaseChatModel) *ChatModelProvider {
	return &ChatModelProvider{chatModel: chatModel}
}

// ArkConfig holds the Volcengine Ark credentials.
type ArkConfig struct {
	APIKey    string
	AccessKey string
	SecretKey string
	BaseURL   string
	Region    string
	Model     string
}

// Enabled reports whether the required credentials are present.
func (c ArkConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewArkProvider creates an Ark chat model and wraps it.
func NewArkProvider(ctx context.Context, cfg ArkConfig) (*ChatModelProvider, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("%w: ark credentials or model missing", ErrProviderUnavailable)
	}
	chatModel, err := ark.NewChatModel(ctx, &ark.ChatModelConfig{
		BaseURL:   cfg.BaseURL,
		Region:    cfg.Region,
		APIKey:    cfg.APIKey,
		AccessKey: cfg.AccessKey,
		SecretKey: cfg.SecretKey,
		Model:     cfg.Model,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create ark chat model: %w", err)
	}
	return NewChatModelProvider(chatModel), nil
}

// Stream implements Provider.
func (p *ChatModelProvider) Stream(ctx context.Context, prompt string, params ModelParams) (ResultStream, error) {
	messages := []*schema.Message{schema.UserMessage(prompt)}
	opts := []model.Option{model.WithTemperature(float32(params.Temperature))}
	if params.Model != "" {
		opts = append(opts, model.WithModel(params.Model))
	}

	if !params.Streaming {
		msg, err := p.chatModel.Generate(ctx, messages, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to generate chat model output: %w", err)
		}
		return newSliceStream([]*Result{messageResult(msg)}), nil
	}

	reader, err := p.chatModel.Stream(ctx, messages, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to stream chat model output: %w", err)
	}
	return &chatModelStream{reader: reader}, nil
}

type chatModelStream struct {
	reader *schema.StreamReader[*schema.Message]
}

func (s *chatModelStream) Recv() (*Result, error) {
	msg, err := s.reader.Recv()
	if errors.Is(err, io.EOF) {
		return nil, io.EOF
	}
	if err != nil {
		return nil, err
	}
	return messageResult(msg), nil
}

func (s *chatModelStream) Close() error {
	s.reader.Close()
	return nil
}

func messageResult(msg *schema.Message) *Result {
	if msg == nil {
		return &Result{}
	}
	return &Result{Output: &Output{Text: msg.Content}}
}
