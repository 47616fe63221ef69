package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"ecoprado/internal/model"

	"gorm.io/gorm"
)

// OutboxRepository 结算事件发件箱
type OutboxRepository interface {
	Create(ctx context.Context, msg *model.OutboxMessage) error
	GetPendingMessages(ctx context.Context, limit int) ([]*model.OutboxMessage, error)
	UpdateStatus(ctx context.Context, id int64, status string) error
	IncrementRetryCount(ctx context.Context, id int64) error
	MarkAsFailed(ctx context.Context, id int64) error
}

// ============================================================================
// MySQL 实现（mysql.enabled 时使用，进程重启后未投递的事件不会丢失）
// ============================================================================

type gormOutboxRepository struct {
	db *gorm.DB
}

func NewGormOutboxRepository(db *gorm.DB) OutboxRepository {
	return &gormOutboxRepository{db: db}
}

func (r *gormOutboxRepository) Create(ctx context.Context, msg *model.OutboxMessage) error {
	if msg.Status == "" {
		msg.Status = model.OutboxStatusPending
	}
	return r.db.WithContext(ctx).Create(msg).Error
}

func (r *gormOutboxRepository) GetPendingMessages(ctx context.Context, limit int) ([]*model.OutboxMessage, error) {
	var messages []*model.OutboxMessage
	err := r.db.WithContext(ctx).
		Where("status = ?", model.OutboxStatusPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&messages).Error
	return messages, err
}

func (r *gormOutboxRepository) UpdateStatus(ctx context.Context, id int64, status string) error {
	return r.db.WithContext(ctx).
		Model(&model.OutboxMessage{}).
		Where("id = ?", id).
		Update("status", status).Error
}

func (r *gormOutboxRepository) IncrementRetryCount(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).
		Model(&model.OutboxMessage{}).
		Where("id = ?", id).
		UpdateColumn("retry_count", gorm.Expr("retry_count + 1")).Error
}

func (r *gormOutboxRepository) MarkAsFailed(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).
		Model(&model.OutboxMessage{}).
		Where("id = ?", id).
		Update("status", model.OutboxStatusFailed).Error
}

// ============================================================================
// 内存实现
// ============================================================================

type memoryOutboxRepository struct {
	mu       sync.Mutex
	nextID   int64
	messages map[int64]*model.OutboxMessage
}

func NewMemoryOutboxRepository() OutboxRepository {
	return &memoryOutboxRepository{messages: make(map[int64]*model.OutboxMessage)}
}

func (r *memoryOutboxRepository) Create(ctx context.Context, msg *model.OutboxMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	msg.ID = r.nextID
	if msg.Status == "" {
		msg.Status = model.OutboxStatusPending
	}
	now := time.Now()
	msg.CreatedAt = now
	msg.UpdatedAt = now

	stored := *msg
	r.messages[stored.ID] = &stored
	return nil
}

func (r *memoryOutboxRepository) GetPendingMessages(ctx context.Context, limit int) ([]*model.OutboxMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var pending []*model.OutboxMessage
	for _, m := range r.messages {
		if m.Status == model.OutboxStatusPending {
			copied := *m
			pending = append(pending, &copied)
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].ID < pending[j].ID })
	if limit > 0 && len(pending) > limit {
		pending = pending[:limit]
	}
	return pending, nil
}

// UpdateStatus 内存实现不保留已结束的消息：SENT / FAILED 直接移除
func (r *memoryOutboxRepository) UpdateStatus(ctx context.Context, id int64, status string) error {
	if status != model.OutboxStatusPending {
		r.remove(id)
		return nil
	}
	return r.update(id, func(m *model.OutboxMessage) { m.Status = status })
}

func (r *memoryOutboxRepository) IncrementRetryCount(ctx context.Context, id int64) error {
	return r.update(id, func(m *model.OutboxMessage) { m.RetryCount++ })
}

func (r *memoryOutboxRepository) MarkAsFailed(ctx context.Context, id int64) error {
	r.remove(id)
	return nil
}

func (r *memoryOutboxRepository) remove(id int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.messages, id)
}

func (r *memoryOutboxRepository) update(id int64, fn func(m *model.OutboxMessage)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if m, ok := r.messages[id]; ok {
		fn(m)
		m.UpdatedAt = time.Now()
	}
	return nil
}
