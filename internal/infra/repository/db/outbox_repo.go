package db

import (
	"context"
	"time"

	"github.com/RoyceAzure/lab/storefront/internal/domain/model"
)

type OutboxRepo struct {
	db *DbDao
}

func NewOutboxRepo(db *DbDao) *OutboxRepo {
	return &OutboxRepo{db: db}
}

func (r *OutboxRepo) InsertOutbox(ctx context.Context, msg *model.OutboxMessage) error {
	return classifyError(r.db.WithContext(ctx).Create(msg).Error)
}

func (r *OutboxRepo) FetchPendingOutbox(ctx context.Context, limit int) ([]model.OutboxMessage, error) {
	var msgs []model.OutboxMessage
	err := r.db.WithContext(ctx).
		Where("sent_at IS NULL").
		Order("id").
		Limit(limit).
		Find(&msgs).Error
	return msgs, classifyError(err)
}

func (r *OutboxRepo) MarkOutboxSent(ctx context.Context, id int64) error {
	err := r.db.WithContext(ctx).Model(&model.OutboxMessage{}).
		Where("id = ?", id).
		Update("sent_at", time.Now()).Error
	return classifyError(err)
}
