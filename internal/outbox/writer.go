// Package outbox records domain events in the same transaction as the state
// change that produced them and later dispatches them to handlers.
package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"shopilent/internal/models"
	"shopilent/internal/repositories"
)

// Writer serialises domain events into the outbox table.
type Writer struct {
	repo repositories.OutboxRepository
	now  func() time.Time
}

func NewWriter(repo repositories.OutboxRepository) *Writer {
	return &Writer{repo: repo, now: time.Now}
}

// Add stores event using the transaction carried by ctx.
func (w *Writer) Add(ctx context.Context, event models.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", event.EventType(), err)
	}
	now := w.now().UTC()
	return w.repo.Add(ctx, &models.OutboxMessage{
		Type:        event.EventType(),
		AggregateID: event.AggregateID(),
		Payload:     string(payload),
		OccurredAt:  now,
		ScheduledAt: now,
	})
}
