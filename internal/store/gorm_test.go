package store_test

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/king-app/king/backend/internal/store"
)

func TestGormStoreAgainstPostgres(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	s, err := store.NewGormStore(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	ctx := context.Background()
	require.NoError(t, s.DeleteByUserID(ctx, 10))
	require.NoError(t, s.DeleteByUserID(ctx, 11))
	exerciseHistoryStore(t, s)
	require.NoError(t, s.DeleteByUserID(ctx, 11))
}

func TestChatHistoryModelTableName(t *testing.T) {
	require.Equal(t, "chat_histories", store.ChatHistoryModel{}.TableName())
}
