package chat

import (
	"context"

	"github.com/king-app/king/backend/internal/model/chat"
)

// HistoryStore is the durable, append-only record of chat turns per user.
// FindByUserID returns turns oldest first.
type HistoryStore interface {
	FindByUserID(ctx context.Context, userID int64) ([]chat.ChatTurn, error)
	SaveChatHistory(ctx context.Context, userID int64, role chat.Role, content string, kind chat.Kind) error
	DeleteByUserID(ctx context.Context, userID int64) error
}
