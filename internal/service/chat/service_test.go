package chat

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/king-app/king/backend/internal/model/chat"
)

func TestServiceSaveAndHistory(t *testing.T) {
	svc := NewService(newFaultyStore())
	ctx := context.Background()

	require.NoError(t, svc.Save(ctx, chat.ChatTurn{UserID: 3, Role: chat.RoleUser, Content: "hi", Kind: chat.KindMessage}))
	require.NoError(t, svc.Save(ctx, chat.ChatTurn{UserID: 3, Role: chat.RoleAssistant, Content: "hello", Kind: chat.KindMessage}))

	turns, err := svc.History(ctx, 3)
	require.NoError(t, err)
	require.Len(t, turns, 2)
	require.Equal(t, "hi", turns[0].Content)
	require.Equal(t, chat.RoleAssistant, turns[1].Role)

	require.NoError(t, svc.Delete(ctx, 3))
	turns, err = svc.History(ctx, 3)
	require.NoError(t, err)
	require.Empty(t, turns)
}

func TestServiceRejectsInvalidInput(t *testing.T) {
	svc := NewService(newFaultyStore())
	ctx := context.Background()

	err := svc.Save(ctx, chat.ChatTurn{UserID: 3, Role: "narrator", Content: "x", Kind: chat.KindMessage})
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.History(ctx, 0)
	require.ErrorIs(t, err, ErrInvalidInput)

	require.ErrorIs(t, svc.Delete(ctx, -1), ErrInvalidInput)
}

func TestServiceWrapsStoreFailures(t *testing.T) {
	fs := newFaultyStore()
	boom := errors.New("disk gone")
	fs.findErr = boom
	fs.saveErr[chat.RoleUser] = boom
	svc := NewService(fs)
	ctx := context.Background()

	_, err := svc.History(ctx, 3)
	require.ErrorIs(t, err, ErrHistoryUnavailable)
	require.ErrorIs(t, err, boom)

	err = svc.Save(ctx, chat.ChatTurn{UserID: 3, Role: chat.RoleUser, Content: "hi", Kind: chat.KindMessage})
	require.ErrorIs(t, err, ErrHistoryUnavailable)
	require.ErrorIs(t, err, boom)
}
