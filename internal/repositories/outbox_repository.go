package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"

	"shopilent/internal/database"
	"shopilent/internal/models"
)

// OutboxRepository stores domain events until they are processed.
type OutboxRepository interface {
	Add(ctx context.Context, message *models.OutboxMessage) error
	FetchPending(ctx context.Context, now time.Time, maxAttempts, limit int) ([]models.OutboxMessage, error)
	MarkProcessed(ctx context.Context, id uuid.UUID, at time.Time) error
	MarkFailed(ctx context.Context, id uuid.UUID, attempts int, lastError string, retryAt time.Time) error
	CountPending(ctx context.Context) (int64, error)
}

// GORMOutboxRepository is a GORM implementation of OutboxRepository.
type GORMOutboxRepository struct {
	db *database.DB
}

// NewGORMOutboxRepository creates a new instance of GORMOutboxRepository.
func NewGORMOutboxRepository(db *database.DB) *GORMOutboxRepository {
	return &GORMOutboxRepository{db: db}
}

// Add inserts the message in the transaction carried by ctx, if any.
func (r *GORMOutboxRepository) Add(ctx context.Context, message *models.OutboxMessage) error {
	if err := r.db.Conn(ctx).Create(message).Error; err != nil {
		return translateError("outbox message", err)
	}
	return nil
}

// FetchPending returns due, unprocessed messages, oldest first.
func (r *GORMOutboxRepository) FetchPending(ctx context.Context, now time.Time, maxAttempts, limit int) ([]models.OutboxMessage, error) {
	var messages []models.OutboxMessage
	err := r.db.Conn(ctx).
		Where("processed_at IS NULL AND attempts < ? AND scheduled_at <= ?", maxAttempts, now).
		Order("occurred_at ASC").
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, translateError("outbox messages", err)
	}
	return messages, nil
}

func (r *GORMOutboxRepository) MarkProcessed(ctx context.Context, id uuid.UUID, at time.Time) error {
	err := r.db.Conn(ctx).Model(&models.OutboxMessage{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"processed_at": at, "last_error": ""}).Error
	return translateError("outbox message", err)
}

func (r *GORMOutboxRepository) MarkFailed(ctx context.Context, id uuid.UUID, attempts int, lastError string, retryAt time.Time) error {
	err := r.db.Conn(ctx).Model(&models.OutboxMessage{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"attempts":     attempts,
			"last_error":   lastError,
			"scheduled_at": retryAt,
		}).Error
	return translateError("outbox message", err)
}

func (r *GORMOutboxRepository) CountPending(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.Conn(ctx).Model(&models.OutboxMessage{}).Where("processed_at IS NULL").Count(&count).Error
	if err != nil {
		return 0, translateError("outbox messages", err)
	}
	return count, nil
}
