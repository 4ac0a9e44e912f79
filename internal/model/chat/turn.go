package chat

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Role identifies who authored a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Kind separates conversational messages from bookkeeping entries.
type Kind string

const (
	KindMessage Kind = "message"
	KindSystem  Kind = "system"
)

// ErrInvalidTurn is returned when a turn fails validation.
var ErrInvalidTurn = errors.New("invalid chat turn")

// ChatTurn is one persisted entry of a user's chat history. Turns are
// immutable once stored and ordered by CreatedAt (ties broken by insertion).
type ChatTurn struct {
	ID        string    `json:"id"`
	UserID    int64     `json:"userId" validate:"gt=0"`
	Role      Role      `json:"role" validate:"required,oneof=user assistant"`
	Content   string    `json:"content"`
	Kind      Kind      `json:"type" validate:"required,oneof=message system"`
	CreatedAt time.Time `json:"createdAt"`
}

// DialogueTurn is the role/content pair handed to the prompt builder.
type DialogueTurn struct {
	Role    Role
	Content string
}

var turnValidate = validator.New()

// Validate checks role, kind and owner of the turn.
func (t ChatTurn) Validate() error {
	if err := turnValidate.Struct(t); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTurn, err)
	}
	return nil
}

// ValidRole reports whether r is one of the roles a dialogue may contain.
func ValidRole(r Role) bool {
	return r == RoleUser || r == RoleAssistant
}

// Dialogue filters turns down to message-kind entries, keeping their order.
// Turns whose role is not user or assistant are rejected.
func Dialogue(turns []ChatTurn) ([]DialogueTurn, error) {
	out := make([]DialogueTurn, 0, len(turns))
	for _, turn := range turns {
		if turn.Kind != KindMessage {
			continue
		}
		if !ValidRole(turn.Role) {
			return nil, fmt.Errorf("%w: unexpected role %q in turn %s", ErrInvalidTurn, turn.Role, turn.ID)
		}
		out = append(out, DialogueTurn{Role: turn.Role, Content: turn.Content})
	}
	return out, nil
}
