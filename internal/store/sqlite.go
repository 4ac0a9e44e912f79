package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	_ "github.com/glebarez/go-sqlite"

	"github.com/king-app/king/backend/internal/model/chat"
)

// SQLiteStore persists chat history in a local SQLite file. It suits single
// node deployments that do not run Postgres.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and creates) the database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		path = "history.db"
	}
	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=busy_timeout(10000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS chat_histories (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		type TEXT NOT NULL DEFAULT 'message',
		created_at DATETIME NOT NULL
	);`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create chat_histories: %w", err)
	}
	if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_chat_histories_user_id ON chat_histories (user_id);`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create chat_histories index: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// FindByUserID returns the user's turns in insertion order.
func (s *SQLiteStore) FindByUserID(ctx context.Context, userID int64) ([]chat.ChatTurn, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, role, content, type, created_at FROM chat_histories WHERE user_id = ? ORDER BY id ASC;`, userID)
	if err != nil {
		return nil, fmt.Errorf("query chat history: %w", err)
	}
	defer rows.Close()

	var turns []chat.ChatTurn
	for rows.Next() {
		var (
			id   int64
			turn chat.ChatTurn
		)
		if err := rows.Scan(&id, &turn.UserID, &turn.Role, &turn.Content, &turn.Kind, &turn.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan chat history: %w", err)
		}
		turn.ID = strconv.FormatInt(id, 10)
		turns = append(turns, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chat history: %w", err)
	}
	return turns, nil
}

// SaveChatHistory appends one turn.
func (s *SQLiteStore) SaveChatHistory(ctx context.Context, userID int64, role chat.Role, content string, kind chat.Kind) error {
	if err := checkWrite(userID, role, kind); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO chat_histories (user_id, role, content, type, created_at) VALUES (?,?,?,?,?);`,
		userID, string(role), content, string(kind), now()); err != nil {
		return fmt.Errorf("insert chat history: %w", err)
	}
	return nil
}

// DeleteByUserID removes every turn of the user.
func (s *SQLiteStore) DeleteByUserID(ctx context.Context, userID int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM chat_histories WHERE user_id = ?;`, userID); err != nil {
		return fmt.Errorf("delete chat history: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
