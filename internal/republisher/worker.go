package republisher

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"gitlab.com/havenrow/api/lead-lifecycle-service/internal/config"
	internal_js "gitlab.com/havenrow/api/lead-lifecycle-service/internal/jetstream"
	"gitlab.com/havenrow/api/lead-lifecycle-service/internal/model"
	"gitlab.com/havenrow/api/lead-lifecycle-service/internal/observer"
	"gitlab.com/havenrow/api/lead-lifecycle-service/internal/storage"
)

// Worker drains parked stage-change events from the outbox back to NATS.
// Rows land in the outbox only when the inline publish failed, so this
// loop is what keeps delivery at-least-once across broker outages.
type Worker struct {
	cfg    *config.Config
	logger *zap.Logger
	js     internal_js.ClientInterface
	store  storage.OutboxRepo
	stopWg sync.WaitGroup
	cancel context.CancelFunc
}

// NewWorker creates a new outbox republisher.
func NewWorker(cfg *config.Config, logger *zap.Logger, jsClient internal_js.ClientInterface, outboxRepo storage.OutboxRepo) *Worker {
	return &Worker{
		cfg:    cfg,
		logger: logger.Named("outbox_republisher"),
		js:     jsClient,
		store:  outboxRepo,
	}
}

// Start begins the periodic drain loop.
func (w *Worker) Start(ctx context.Context) error {
	derivedCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	w.logger.Info("Starting outbox republisher...",
		zap.Duration("interval", w.cfg.Outbox.RepublishInterval),
		zap.Int("batch_size", w.cfg.Outbox.BatchSize),
		zap.Int("max_attempts", w.cfg.Outbox.MaxAttempts),
	)

	w.stopWg.Add(1)
	go w.drainLoop(derivedCtx)

	return nil
}

// Stop gracefully shuts down the republisher.
func (w *Worker) Stop() {
	w.logger.Info("Stopping outbox republisher...")
	if w.cancel != nil {
		w.cancel()
	}
	w.stopWg.Wait()
	w.logger.Info("Outbox republisher stopped")
}

// drainLoop ticks at the configured interval and drains a batch per tick.
func (w *Worker) drainLoop(ctx context.Context) {
	defer w.stopWg.Done()

	ticker := time.NewTicker(w.cfg.Outbox.RepublishInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Drain loop stopping due to context cancellation")
			return
		case <-ticker.C:
			w.drainOnce(ctx)
		}
	}
}

// drainOnce republishes one batch of pending outbox rows.
func (w *Worker) drainOnce(ctx context.Context) {
	rows, err := w.store.FindPending(ctx, w.cfg.Outbox.BatchSize)
	if err != nil {
		w.logger.Error("Failed to fetch pending outbox rows", zap.Error(err))
		return
	}

	for _, row := range rows {
		select {
		case <-ctx.Done():
			return
		default:
		}
		w.processRow(ctx, row)
	}

	pending, err := w.store.CountPending(ctx)
	if err != nil {
		w.logger.Warn("Failed to count pending outbox rows", zap.Error(err))
		return
	}
	observer.SetOutboxPendingRows(int(pending))
}

// processRow republishes a single row, dropping it to the DLQ once the
// attempt budget is spent.
func (w *Worker) processRow(ctx context.Context, row model.StageEventOutbox) {
	log := w.logger.With(
		zap.Int64("outbox_id", row.ID),
		zap.String("event_id", row.EventID),
		zap.String("lead_id", row.LeadID),
		zap.String("subject", row.Subject),
		zap.Int("attempts", row.Attempts),
	)

	if row.Attempts >= w.cfg.Outbox.MaxAttempts {
		w.dropToDLQ(ctx, log, row)
		return
	}

	headers := map[string]string{
		"Nats-Msg-Id": row.EventID,
	}
	if err := w.js.Publish(row.Subject, []byte(row.Payload), headers); err != nil {
		log.Warn("Failed to republish outbox row", zap.Error(err))
		if markErr := w.store.MarkAttempt(ctx, row.ID, err.Error()); markErr != nil {
			log.Error("Failed to record outbox attempt", zap.Error(markErr))
		}
		return
	}

	if err := w.store.Delete(ctx, row.ID); err != nil {
		// The event went out; a duplicate on the next tick is absorbed by
		// the Nats-Msg-Id header downstream.
		log.Error("Failed to delete outbox row after republish", zap.Error(err))
		return
	}

	observer.IncOutboxRepublished(row.CompanyID)
	log.Info("Outbox row republished")
}

// dropToDLQ moves an exhausted row to the dead letter subject and removes it.
func (w *Worker) dropToDLQ(ctx context.Context, log *zap.Logger, row model.StageEventOutbox) {
	log.Warn("Outbox row exhausted attempt budget, moving to DLQ")

	dlqPayload := model.DLQPayload{
		SourceSubject:   row.Subject,
		Company:         row.CompanyID,
		OriginalPayload: json.RawMessage(row.Payload),
		Error:           row.LastError,
		ErrorType:       "retryable",
		RetryCount:      uint64(row.Attempts),
		MaxRetry:        w.cfg.Outbox.MaxAttempts,
		Timestamp:       time.Now().UTC(),
	}

	dlqData, err := json.Marshal(dlqPayload)
	if err != nil {
		log.Error("Failed to marshal DLQ payload for outbox row", zap.Error(err))
		return
	}

	dlqSubject := fmt.Sprintf("%s.%s", w.cfg.NATS.DLQSubject, row.CompanyID)
	if err := w.js.Publish(dlqSubject, dlqData, map[string]string{"Original-Nats-Msg-Id": row.EventID}); err != nil {
		log.Error("Failed to publish outbox row to DLQ", zap.Error(err), zap.String("dlq_subject", dlqSubject))
		if markErr := w.store.MarkAttempt(ctx, row.ID, err.Error()); markErr != nil {
			log.Error("Failed to record outbox attempt after DLQ failure", zap.Error(markErr))
		}
		return
	}

	if err := w.store.Delete(ctx, row.ID); err != nil {
		log.Error("Failed to delete outbox row after DLQ publish", zap.Error(err))
		return
	}

	observer.IncOutboxDropped(row.CompanyID)
	log.Info("Outbox row moved to DLQ", zap.String("dlq_subject", dlqSubject))
}
