package store

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/king-app/king/backend/internal/model/chat"
)

// ChatHistoryModel is the chat_histories table row.
type ChatHistoryModel struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement"`
	UserID    int64     `gorm:"index:idx_chat_histories_user_id;not null"`
	Role      string    `gorm:"size:16;not null"`
	Content   string    `gorm:"type:text;not null"`
	Type      string    `gorm:"size:16;not null;default:message"`
	CreatedAt time.Time `gorm:"not null"`
}

// TableName pins the table name.
func (ChatHistoryModel) TableName() string {
	return "chat_histories"
}

func (m ChatHistoryModel) turn() chat.ChatTurn {
	return chat.ChatTurn{
		ID:        strconv.FormatUint(m.ID, 10),
		UserID:    m.UserID,
		Role:      chat.Role(m.Role),
		Content:   m.Content,
		Kind:      chat.Kind(m.Type),
		CreatedAt: m.CreatedAt,
	}
}

// GormStore persists chat history in Postgres through GORM.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and migrates the history table.
func NewGormStore(dsn string) (*GormStore, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	return NewGormStoreFromDB(db)
}

// NewGormStoreFromDB wraps an open connection and migrates the schema.
func NewGormStoreFromDB(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&ChatHistoryModel{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	return &GormStore{db: db}, nil
}

// FindByUserID returns the user's turns in insertion order.
func (s *GormStore) FindByUserID(ctx context.Context, userID int64) ([]chat.ChatTurn, error) {
	var rows []ChatHistoryModel
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("find chat history: %w", err)
	}
	turns := make([]chat.ChatTurn, 0, len(rows))
	for _, row := range rows {
		turns = append(turns, row.turn())
	}
	return turns, nil
}

// SaveChatHistory appends one turn.
func (s *GormStore) SaveChatHistory(ctx context.Context, userID int64, role chat.Role, content string, kind chat.Kind) error {
	if err := checkWrite(userID, role, kind); err != nil {
		return err
	}
	row := ChatHistoryModel{
		UserID:    userID,
		Role:      string(role),
		Content:   content,
		Type:      string(kind),
		CreatedAt: now(),
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("save chat history: %w", err)
	}
	return nil
}

// DeleteByUserID removes every turn of the user.
func (s *GormStore) DeleteByUserID(ctx context.Context, userID int64) error {
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&ChatHistoryModel{}).Error; err != nil {
		return fmt.Errorf("delete chat history: %w", err)
	}
	return nil
}

// Close releases the underlying pool.
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
