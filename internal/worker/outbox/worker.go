package outbox

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/corray333/backend-labs/fulfillment/internal/config"
	"github.com/corray333/backend-labs/fulfillment/internal/dal/interfaces/ioutboxrepo"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/outbox"
	"golang.org/x/sync/errgroup"
)

const publishConcurrency = 8

// MaxRetryDelay caps the backoff between two delivery attempts.
const MaxRetryDelay = 24 * time.Hour

// Publisher delivers one outbox message to a broker.
type Publisher interface {
	Publish(ctx context.Context, msg outbox.OutboxMessage) error
}

// Worker relays fulfillment events from the outbox table to a broker.
type Worker struct {
	outboxRepo ioutboxrepo.IOutboxRepository
	publisher  Publisher
	every      time.Duration
	batch      int
	baseDelay  time.Duration
	now        func() time.Time
	stopCh     chan struct{}
	stopOnce   sync.Once
}

// NewWorker builds a relay. Zero config values fall back to 10s polling,
// batches of 100 and a 30s base retry delay.
func NewWorker(
	outboxRepo ioutboxrepo.IOutboxRepository,
	publisher Publisher,
	cfg config.OutboxConfig,
) *Worker {
	return &Worker{
		outboxRepo: outboxRepo,
		publisher:  publisher,
		every:      orDefault(cfg.PollInterval, 10*time.Second),
		batch:      orDefault(cfg.BatchSize, 100),
		baseDelay:  orDefault(cfg.RetryInterval, 30*time.Second),
		now:        time.Now,
		stopCh:     make(chan struct{}),
	}
}

func orDefault[T int | time.Duration](v, def T) T {
	if v <= 0 {
		return def
	}

	return v
}

// Start polls the outbox until ctx is done or Stop is called.
func (w *Worker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.every)
	defer ticker.Stop()

	slog.Info("Event relay started", "poll_interval", w.every, "batch_size", w.batch)

	for {
		select {
		case <-ctx.Done():
			slog.Info("Event relay shutting down")

			return
		case <-w.stopCh:
			slog.Info("Event relay stopped")

			return
		case <-ticker.C:
			w.ProcessMessages(ctx)
		}
	}
}

// Stop ends Start. Calling it more than once is safe.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
}

// ProcessMessages relays one batch of due events.
func (w *Worker) ProcessMessages(ctx context.Context) {
	due, err := w.outboxRepo.ListDue(ctx, w.now(), w.batch)
	if err != nil {
		slog.Error("Failed to list due events", "error", err)

		return
	}
	if len(due) == 0 {
		return
	}

	var delivered, deferred atomic.Int32
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(publishConcurrency)
	for _, msg := range due {
		g.Go(func() error {
			if w.relay(gctx, msg) {
				delivered.Add(1)
			} else {
				deferred.Add(1)
			}

			return nil
		})
	}
	_ = g.Wait()

	slog.Info("Relayed outbox batch",
		"due", len(due),
		"delivered", delivered.Load(),
		"deferred", deferred.Load(),
	)
}

// RetryDelay doubles the base delay with every failed attempt, up to MaxRetryDelay.
func (w *Worker) RetryDelay(attempt int) time.Duration {
	d := min(w.baseDelay, MaxRetryDelay)
	for range attempt {
		if d >= MaxRetryDelay/2 {
			return MaxRetryDelay
		}
		d *= 2
	}

	return d
}

// relay publishes msg and reports whether it left the outbox.
func (w *Worker) relay(ctx context.Context, msg outbox.OutboxMessage) bool {
	log := slog.With("outbox_id", msg.ID, "message_id", msg.MessageID, "event_type", msg.EventType)

	if err := w.publisher.Publish(ctx, msg); err != nil {
		attempt := msg.RetryCount + 1
		at := w.now().Add(w.RetryDelay(attempt))
		if attempt >= msg.MaxRetries {
			log.Error("Event delivery failed, retries exhausted", "attempt", attempt, "error", err)
		} else {
			log.Warn("Event delivery failed", "attempt", attempt, "next_attempt", at, "error", err)
		}

		if err := w.outboxRepo.Reschedule(ctx, msg.ID, attempt, err.Error(), at); err != nil {
			log.Error("Failed to reschedule event", "error", err)
		}

		return false
	}

	if err := w.outboxRepo.Delete(ctx, msg.ID); err != nil {
		// the event stays due and will be published again
		log.Error("Failed to drop delivered event", "error", err)

		return false
	}

	log.Debug("Event delivered", "order_id", msg.AggregateID)

	return true
}
