package store

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/king-app/king/backend/internal/model/chat"
)

// MemoryStore keeps chat history in process. It backs local development
// and tests.
type MemoryStore struct {
	mu    sync.RWMutex
	turns map[int64][]chat.ChatTurn
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{turns: make(map[int64][]chat.ChatTurn)}
}

// FindByUserID returns a copy of the user's turns, oldest first.
func (s *MemoryStore) FindByUserID(_ context.Context, userID int64) ([]chat.ChatTurn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	turns := s.turns[userID]
	copied := make([]chat.ChatTurn, len(turns))
	copy(copied, turns)
	return copied, nil
}

// SaveChatHistory appends one turn.
func (s *MemoryStore) SaveChatHistory(_ context.Context, userID int64, role chat.Role, content string, kind chat.Kind) error {
	if err := checkWrite(userID, role, kind); err != nil {
		return err
	}

	turn := chat.ChatTurn{
		ID:        uuid.NewString(),
		UserID:    userID,
		Role:      role,
		Content:   content,
		Kind:      kind,
		CreatedAt: now(),
	}

	s.mu.Lock()
	s.turns[userID] = append(s.turns[userID], turn)
	s.mu.Unlock()
	return nil
}

// DeleteByUserID drops the user's history.
func (s *MemoryStore) DeleteByUserID(_ context.Context, userID int64) error {
	s.mu.Lock()
	delete(s.turns, userID)
	s.mu.Unlock()
	return nil
}
