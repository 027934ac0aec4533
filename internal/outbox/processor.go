package outbox

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"shopilent/internal/metrics"
	"shopilent/internal/models"
	"shopilent/internal/repositories"
	"shopilent/pkg/logger"
)

// Wildcard registers a handler for every event type.
const Wildcard = "*"

// Handler reacts to one outbox message. Handlers must be idempotent because
// a failed message is retried against every handler registered for it.
type Handler interface {
	Handle(ctx context.Context, msg models.OutboxMessage) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, msg models.OutboxMessage) error

func (f HandlerFunc) Handle(ctx context.Context, msg models.OutboxMessage) error {
	return f(ctx, msg)
}

// Config controls batching and retry.
type Config struct {
	Interval    time.Duration
	BatchSize   int
	MaxAttempts int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

// Processor dispatches pending outbox messages to registered handlers.
type Processor struct {
	repo     repositories.OutboxRepository
	cfg      Config
	metrics  *metrics.Metrics
	now      func() time.Time
	handlers map[string][]Handler

	// one batch at a time, so the worker and a direct call never race
	runMu sync.Mutex
}

func NewProcessor(repo repositories.OutboxRepository, cfg Config, m *metrics.Metrics) *Processor {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = time.Second
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 5 * time.Minute
	}
	return &Processor{
		repo:     repo,
		cfg:      cfg,
		metrics:  m,
		now:      time.Now,
		handlers: make(map[string][]Handler),
	}
}

// Register adds h for eventType. Register before starting Run.
func (p *Processor) Register(eventType string, h Handler) {
	p.handlers[eventType] = append(p.handlers[eventType], h)
}

// ProcessOutboxMessages handles one batch of due messages and returns how
// many were marked processed. Handler failures are recorded on the message
// and do not fail the batch.
func (p *Processor) ProcessOutboxMessages(ctx context.Context) (int, error) {
	p.runMu.Lock()
	defer p.runMu.Unlock()

	messages, err := p.repo.FetchPending(ctx, p.now().UTC(), p.cfg.MaxAttempts, p.cfg.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch outbox messages: %w", err)
	}

	processed := 0
	for _, msg := range messages {
		if err := ctx.Err(); err != nil {
			return processed, err
		}

		if herr := p.dispatch(ctx, msg); herr != nil {
			attempts := msg.Attempts + 1
			retryAt := p.now().UTC().Add(p.backoff(attempts))
			logger.Warn(ctx, "Outbox message failed",
				"id", msg.ID, "type", msg.Type, "attempts", attempts, "error", herr)
			if err := p.repo.MarkFailed(ctx, msg.ID, attempts, herr.Error(), retryAt); err != nil {
				return processed, err
			}
			p.metrics.RecordOutboxMessage(msg.Type, false)
			continue
		}

		if err := p.repo.MarkProcessed(ctx, msg.ID, p.now().UTC()); err != nil {
			return processed, err
		}
		p.metrics.RecordOutboxMessage(msg.Type, true)
		processed++
	}

	if pending, err := p.repo.CountPending(ctx); err == nil {
		p.metrics.SetOutboxPending(pending)
	}
	return processed, nil
}

func (p *Processor) dispatch(ctx context.Context, msg models.OutboxMessage) error {
	var errs []error
	for _, h := range p.handlers[msg.Type] {
		if err := h.Handle(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	for _, h := range p.handlers[Wildcard] {
		if err := h.Handle(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// backoff doubles from BaseBackoff per attempt, capped at MaxBackoff.
func (p *Processor) backoff(attempts int) time.Duration {
	d := p.cfg.BaseBackoff
	for i := 1; i < attempts; i++ {
		d *= 2
		if d >= p.cfg.MaxBackoff {
			return p.cfg.MaxBackoff
		}
	}
	return d
}

// Run processes batches on every tick until ctx is cancelled.
func (p *Processor) Run(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	logger.Info(ctx, "Outbox processor started", "interval", p.cfg.Interval, "batch_size", p.cfg.BatchSize)
	for {
		select {
		case <-ctx.Done():
			logger.Info(context.Background(), "Outbox processor stopped")
			return
		case <-ticker.C:
			n, err := p.ProcessOutboxMessages(ctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error(ctx, "Outbox processing failed", "error", err)
				continue
			}
			if n > 0 {
				logger.Debug(ctx, "Outbox messages processed", "count", n)
			}
		}
	}
}
