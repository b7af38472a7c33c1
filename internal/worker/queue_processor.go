package worker

import (
	"context"
	"time"

	"github.com/blockpreventer/bridge/internal/service/queue"
	"github.com/blockpreventer/bridge/pkg/logger"
)

// QueueProcessor drives the delivery loop: every tick it drains due queue
// items through the queue service.
type QueueProcessor struct {
	queue    *queue.Service
	interval time.Duration
	logger   *logger.Logger
}

func NewQueueProcessor(q *queue.Service, interval time.Duration, log *logger.Logger) *QueueProcessor {
	if interval <= 0 {
		interval = 3 * time.Second
	}
	return &QueueProcessor{
		queue:    q,
		interval: interval,
		logger:   log.WithComponent("queue_processor"),
	}
}

func (w *QueueProcessor) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("starting queue processor", "interval", w.interval.String())

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("shutting down queue processor")
			return
		case <-ticker.C:
			if err := w.queue.Tick(ctx); err != nil {
				w.logger.Error(err, "queue tick failed")
			}
		}
	}
}
