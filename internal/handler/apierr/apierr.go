// Package apierr maps service errors onto HTTP responses.
package apierr

import (
	"errors"
	"net/http"

	"github.com/king-app/king/backend/internal/auth"
	chatService "github.com/king-app/king/backend/internal/service/chat"
	"github.com/king-app/king/backend/pkg/utils"
)

// Status returns the HTTP status for err.
func Status(err error) int {
	switch {
	case errors.Is(err, chatService.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, chatService.ErrStreamInProgress):
		return http.StatusConflict
	case errors.Is(err, chatService.ErrHistoryUnavailable),
		errors.Is(err, chatService.ErrLockUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrWrongTokenType):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// Message returns the client-facing text for err. Causes from storage or
// infrastructure are never included.
func Message(err error) string {
	switch Status(err) {
	case http.StatusInternalServerError:
		return "internal error"
	case http.StatusServiceUnavailable:
		if errors.Is(err, chatService.ErrLockUnavailable) {
			return chatService.ErrLockUnavailable.Error()
		}
		return chatService.ErrHistoryUnavailable.Error()
	default:
		return err.Error()
	}
}

// Write responds with the mapped status and message.
func Write(w http.ResponseWriter, err error) {
	utils.RespondError(w, Status(err), Message(err))
}
