package usecase

import (
	"context"
	"fmt"

	"gitlab.com/havenrow/api/lead-lifecycle-service/internal/config"
	"gitlab.com/havenrow/api/lead-lifecycle-service/internal/ingestion"
	"gitlab.com/havenrow/api/lead-lifecycle-service/internal/ingestion/handler"
	"gitlab.com/havenrow/api/lead-lifecycle-service/internal/jetstream"
	"gitlab.com/havenrow/api/lead-lifecycle-service/internal/model"
	"gitlab.com/havenrow/api/lead-lifecycle-service/pkg/logger"
	"go.uber.org/zap"
)

// Processor orchestrates event processing
type Processor struct {
	engine            *Engine
	jsClient          jetstream.ClientInterface
	lifecycleConsumer *ingestion.LifecycleConsumer
	eventRouter       ingestion.RouterInterface
	lifecycleHandler  handler.EventHandlerInterface
}

// NewProcessor creates a new processor with all components wired up.
// Accepts the main config object to access NATS settings.
func NewProcessor(engine *Engine, jsClient jetstream.ClientInterface, cfg *config.Config, companyID string) *Processor {
	router := ingestion.NewRouter()

	lifecycleHandler := handler.NewLifecycleHandler(engine)

	// Append companyID to consumer names for uniqueness
	lifecycleCfg := cfg.NATS.Lifecycle
	lifecycleCfg.Consumer = lifecycleCfg.Consumer + companyID
	lifecycleCfg.QueueGroup = lifecycleCfg.QueueGroup + companyID
	lifecycleConsumer := ingestion.NewLifecycleConsumer(jsClient, router, lifecycleCfg, companyID, cfg.NATS.DLQSubject)

	return &Processor{
		engine:            engine,
		jsClient:          jsClient,
		lifecycleConsumer: lifecycleConsumer,
		eventRouter:       router,
		lifecycleHandler:  lifecycleHandler,
	}
}

// GetRouter returns the processor's event router.
func (p *Processor) GetRouter() ingestion.RouterInterface {
	return p.eventRouter
}

// Setup registers event handlers and sets up the consumer
func (p *Processor) Setup() error {
	p.eventRouter.Register(model.V1VisitCreated, p.lifecycleHandler.HandleEvent)
	p.eventRouter.Register(model.V1ActivityLogged, p.lifecycleHandler.HandleEvent)
	p.eventRouter.Register(model.V1LeadReactivate, p.lifecycleHandler.HandleEvent)
	p.eventRouter.Register(model.V1SweepTrigger, p.lifecycleHandler.HandleEvent)

	// Default handler for unknown event types
	p.eventRouter.RegisterDefault(func(ctx context.Context, eventType model.EventType, metadata *model.MessageMetadata, rawEvent []byte) error {
		logger.FromContext(ctx).Warn("Unhandled event type",
			zap.String("type", string(eventType)),
			zap.String("version", eventType.GetVersion()),
			zap.String("base_type", string(eventType.GetBaseType())),
		)
		return nil
	})

	if err := p.lifecycleConsumer.Setup(); err != nil {
		return fmt.Errorf("failed to setup lifecycle consumer: %w", err)
	}

	logger.Log.Info("Processor setup complete")
	return nil
}

// Start starts the processor by starting the consumer
func (p *Processor) Start() error {
	logger.Log.Info("Starting event processor...")

	defer func() {
		if r := recover(); r != nil {
			logger.Log.Error("[panic] Recovered from panic in processor",
				zap.Any("panic", r),
				zap.Stack("stack"),
			)
		}
	}()

	if err := p.lifecycleConsumer.Start(); err != nil {
		return fmt.Errorf("failed to start lifecycle consumer: %w", err)
	}

	logger.Log.Info("Lifecycle consumer started successfully")
	return nil
}

// Stop stops the processor by stopping the consumer
func (p *Processor) Stop() {
	logger.Log.Info("Stopping event processor...")
	p.lifecycleConsumer.Stop()
	logger.Log.Info("Lifecycle consumer stopped")
}
