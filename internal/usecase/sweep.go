package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"gitlab.com/havenrow/api/lead-lifecycle-service/internal/config"
	"gitlab.com/havenrow/api/lead-lifecycle-service/internal/model"
	"gitlab.com/havenrow/api/lead-lifecycle-service/internal/observer"
	"gitlab.com/havenrow/api/lead-lifecycle-service/pkg/logger"
)

// SweepFailure records a single lead whose evaluation failed during a sweep.
type SweepFailure = model.SweepFailure

// SweepSummary reports the outcome of a decay sweep.
type SweepSummary = model.SweepSummary

// SweepTaskData holds the data for one per-lead sweep evaluation.
type SweepTaskData struct {
	Ctx    context.Context // The sweep's context, carrying the tenant and logger
	LeadID string
	Now    time.Time
	Done   func(leadID string, event *model.StageChangeEvent, err error)
}

// ISweepWorker defines the interface for the sweep worker pool.
type ISweepWorker interface {
	SubmitTask(taskData SweepTaskData) error
	Stop()
}

// SweepWorker manages the worker pool that evaluates leads during a sweep.
type SweepWorker struct {
	pool       *ants.PoolWithFunc
	engine     *Engine
	cfg        config.SweepWorkerPoolConfig
	baseLogger *zap.Logger
}

// Ensure SweepWorker implements ISweepWorker
var _ ISweepWorker = (*SweepWorker)(nil)

// NewSweepWorker creates and initializes a new sweep worker pool.
func NewSweepWorker(
	cfg config.SweepWorkerPoolConfig,
	engine *Engine,
	baseLogger *zap.Logger,
) (*SweepWorker, error) {
	worker := &SweepWorker{
		engine:     engine,
		cfg:        cfg,
		baseLogger: baseLogger.Named("sweep_worker"),
	}

	pool, err := ants.NewPoolWithFunc(cfg.PoolSize, func(i interface{}) {
		taskData, ok := i.(SweepTaskData)
		if !ok {
			worker.baseLogger.Error("Invalid task data type received", zap.Any("data", i))
			return
		}
		worker.processSweepTask(taskData)
	},
		ants.WithExpiryDuration(cfg.ExpiryTime),
		ants.WithNonblocking(false),
		ants.WithMaxBlockingTasks(cfg.QueueSize),
		ants.WithPanicHandler(func(err interface{}) {
			worker.baseLogger.Error("Panic recovered in sweep worker", zap.Any("panic_error", err), zap.Stack("stack"))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create sweep worker pool: %w", err)
	}
	worker.pool = pool
	worker.baseLogger.Info("Sweep worker pool initialized",
		zap.Int("pool_size", cfg.PoolSize),
		zap.Int("queue_size", cfg.QueueSize),
		zap.Duration("expiry_time", cfg.ExpiryTime),
		zap.Duration("max_block_time", cfg.MaxBlock),
	)
	return worker, nil
}

// SubmitTask submits a per-lead evaluation task to the worker pool.
func (w *SweepWorker) SubmitTask(taskData SweepTaskData) error {
	observer.SetSweepQueueLength(w.pool.Waiting())

	err := w.pool.Invoke(taskData)
	if err != nil {
		w.baseLogger.Warn("Failed to submit sweep task to pool",
			zap.String("lead_id", taskData.LeadID),
			zap.Error(err),
		)
		if errors.Is(err, ants.ErrPoolOverload) {
			return fmt.Errorf("sweep pool overload: %w", err)
		}
		return fmt.Errorf("failed to invoke sweep task: %w", err)
	}
	return nil
}

// processSweepTask contains the actual logic executed by a worker goroutine.
func (w *SweepWorker) processSweepTask(taskData SweepTaskData) {
	log := logger.FromContextOr(taskData.Ctx, w.baseLogger).With(
		zap.String("task_lead_id", taskData.LeadID),
	)
	log.Debug("Processing sweep task")

	event, err := w.engine.EvaluateAndApply(taskData.Ctx, taskData.LeadID, taskData.Now)
	taskData.Done(taskData.LeadID, event, err)
}

// Stop gracefully shuts down the worker pool.
func (w *SweepWorker) Stop() {
	w.baseLogger.Info("Stopping sweep worker pool...")
	w.pool.Release()
	w.baseLogger.Info("Sweep worker pool stopped")
}

// RunSweep re-evaluates every lead whose stage can still decay against the
// given instant. Each lead is its own unit of work: a failing lead is
// collected into the summary and never aborts the rest of the sweep.
func (e *Engine) RunSweep(ctx context.Context, now time.Time) (*SweepSummary, error) {
	companyID := companyFromContext(ctx)
	log := logger.FromContext(ctx)
	start := time.Now()

	summary := &SweepSummary{}
	var mu sync.Mutex
	var wg sync.WaitGroup

	record := func(leadID string, event *model.StageChangeEvent, err error) {
		defer wg.Done()
		mu.Lock()
		defer mu.Unlock()
		summary.Evaluated++
		if err != nil {
			summary.Failed = append(summary.Failed, SweepFailure{LeadID: leadID, Error: err.Error()})
			return
		}
		if event != nil {
			summary.Transitioned++
		}
	}

	// Snapshot the due lead IDs before applying anything. Every applied
	// transition rewrites last_stage_changed_at, so paging must not overlap
	// the transitions: the keyset cursor keeps pages stable while paging,
	// and the fan-out only starts once the snapshot is complete.
	var due []string
	seen := make(map[string]struct{})
	cursorAt := time.Time{}
	cursorID := ""
	for {
		leads, err := e.leadRepo.FindDueForEvaluation(ctx, cursorAt, cursorID, e.sweepBatchSize)
		if err != nil {
			// The repository being unreachable is fatal for the whole
			// sweep, unlike a per-lead failure.
			return nil, err
		}
		if len(leads) == 0 {
			break
		}

		for i := range leads {
			// A concurrent trigger can move a row past the cursor while
			// paging; each lead is still evaluated exactly once per sweep.
			if _, dup := seen[leads[i].ID]; dup {
				continue
			}
			seen[leads[i].ID] = struct{}{}
			due = append(due, leads[i].ID)
		}

		last := leads[len(leads)-1]
		cursorAt, cursorID = last.LastStageChangedAt, last.ID
		if len(leads) < e.sweepBatchSize {
			break
		}
	}

	for _, leadID := range due {
		wg.Add(1)
		if e.sweepWorker != nil {
			observer.IncSweepTasksSubmitted(companyID)
			if submitErr := e.sweepWorker.SubmitTask(SweepTaskData{
				Ctx:    ctx,
				LeadID: leadID,
				Now:    now,
				Done:   record,
			}); submitErr != nil {
				record(leadID, nil, submitErr)
			}
		} else {
			event, evalErr := e.EvaluateAndApply(ctx, leadID, now)
			record(leadID, event, evalErr)
		}
	}

	wg.Wait()

	observer.ObserveSweepDuration(companyID, time.Since(start))
	observer.AddSweepLeadsEvaluated(companyID, summary.Evaluated)
	observer.AddSweepLeadsFailed(companyID, len(summary.Failed))

	log.Info("Decay sweep completed",
		zap.Int("evaluated", summary.Evaluated),
		zap.Int("transitioned", summary.Transitioned),
		zap.Int("failed", len(summary.Failed)),
		zap.Duration("duration", time.Since(start)))

	return summary, nil
}
