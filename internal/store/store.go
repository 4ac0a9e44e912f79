// Package store holds the History Store backends: in-memory, Postgres via
// GORM, and SQLite.
package store

import (
	"errors"
	"fmt"
	"time"

	"github.com/king-app/king/backend/internal/model/chat"
)

// ErrInvalidTurn is returned for writes that would record a malformed turn.
var ErrInvalidTurn = errors.New("invalid chat turn")

func checkWrite(userID int64, role chat.Role, kind chat.Kind) error {
	if userID <= 0 {
		return fmt.Errorf("%w: user id %d", ErrInvalidTurn, userID)
	}
	if !chat.ValidRole(role) {
		return fmt.Errorf("%w: role %q", ErrInvalidTurn, role)
	}
	if kind == "" {
		return fmt.Errorf("%w: kind required", ErrInvalidTurn)
	}
	return nil
}

func now() time.Time {
	return time.Now().UTC()
}
