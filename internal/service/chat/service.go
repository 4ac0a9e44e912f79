package chat

import (
	"context"
	"fmt"

	"github.com/king-app/king/backend/internal/model/chat"
)

// Service exposes history maintenance for the HTTP layer.
type Service struct {
	store HistoryStore
}

// NewService wraps a history store.
func NewService(store HistoryStore) *Service {
	return &Service{store: store}
}

// History returns every turn recorded for the user, oldest first.
func (s *Service) History(ctx context.Context, userID int64) ([]chat.ChatTurn, error) {
	if userID <= 0 {
		return nil, fmt.Errorf("%w: user id required", ErrInvalidInput)
	}
	turns, err := s.store.FindByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrHistoryUnavailable, err)
	}
	return turns, nil
}

// Save appends a turn supplied by the client.
func (s *Service) Save(ctx context.Context, turn chat.ChatTurn) error {
	if err := turn.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	if err := s.store.SaveChatHistory(ctx, turn.UserID, turn.Role, turn.Content, turn.Kind); err != nil {
		return fmt.Errorf("%w: %w", ErrHistoryUnavailable, err)
	}
	return nil
}

// Delete removes the user's whole history.
func (s *Service) Delete(ctx context.Context, userID int64) error {
	if userID <= 0 {
		return fmt.Errorf("%w: user id required", ErrInvalidInput)
	}
	if err := s.store.DeleteByUserID(ctx, userID); err != nil {
		return fmt.Errorf("%w: %w", ErrHistoryUnavailable, err)
	}
	return nil
}
