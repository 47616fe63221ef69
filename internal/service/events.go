package service

import (
	"context"
	"encoding/json"

	"ecoprado/internal/model"
	"ecoprado/internal/repository"
	"ecoprado/pkg/idgen"

	"go.uber.org/zap"
)

// EventWriter 把结算结果写入发件箱，由 OutboxSender 投递到 Kafka
type EventWriter struct {
	outbox repository.OutboxRepository
	topic  string
	logger *zap.Logger
}

// NewEventWriter outbox 为 nil 时不写任何事件
func NewEventWriter(outbox repository.OutboxRepository, topic string, log *zap.Logger) *EventWriter {
	return &EventWriter{outbox: outbox, topic: topic, logger: log}
}

func (w *EventWriter) emit(ctx context.Context, eventType string, payload interface{}) {
	if w == nil || w.outbox == nil {
		return
	}

	body, err := json.Marshal(payload)
	if err != nil {
		w.logger.Error("[Outbox] 序列化事件失败", zap.String("event", eventType), zap.Error(err))
		return
	}

	msg := &model.OutboxMessage{
		MessageKey: idgen.GenerateEventNo(),
		EventType:  eventType,
		Topic:      w.topic,
		Payload:    string(body),
		Status:     model.OutboxStatusPending,
	}
	if err := w.outbox.Create(ctx, msg); err != nil {
		w.logger.Error("[Outbox] 写入事件失败", zap.String("event", eventType), zap.Error(err))
	}
}
