package usecase

import (
	"errors"
	"testing"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"gitlab.com/havenrow/api/lead-lifecycle-service/internal/config"
	handlermock "gitlab.com/havenrow/api/lead-lifecycle-service/internal/ingestion/handler/mock"
	ingestionmock "gitlab.com/havenrow/api/lead-lifecycle-service/internal/ingestion/mock"
	jsmock "gitlab.com/havenrow/api/lead-lifecycle-service/internal/jetstream/mock"
	"gitlab.com/havenrow/api/lead-lifecycle-service/internal/model"
	storagemock "gitlab.com/havenrow/api/lead-lifecycle-service/internal/storage/mock"
	"gitlab.com/havenrow/api/lead-lifecycle-service/pkg/logger"
	"go.uber.org/zap/zaptest"
)

// createProcessorConfig creates a minimal config for processor tests
func createProcessorConfig(companyID string) *config.Config {
	var cfg config.Config

	cfg.Company.ID = companyID
	cfg.NATS.Lifecycle = config.ConsumerNatsConfig{
		Stream:      "lifecycle-stream",
		Consumer:    "lifecycle-consumer-",
		QueueGroup:  "lifecycle-group-",
		SubjectList: []string{"v1.visits.created", "v1.leads.activity", "v1.leads.reactivate", "v1.leads.sweep"},
		MaxAge:      30,
		MaxDeliver:  5,
	}
	cfg.NATS.DLQSubject = "v1.dlq"
	cfg.NATS.StageSubject = "v1.leads.stage"
	cfg.Lifecycle.QualifyWindowDays = 7
	cfg.Lifecycle.QualifiedIdleDays = 7
	cfg.Lifecycle.AtRiskLeadIdleDays = 14
	cfg.Lifecycle.ActiveVisitorIdleDays = 7
	cfg.Lifecycle.AtRiskVisitorIdleDays = 14
	cfg.Lifecycle.MaxConflictRetries = 3

	return &cfg
}

// newProcessorEngine builds an engine on repo mocks for wiring tests.
func newProcessorEngine(cfg *config.Config, jsClient *jsmock.ClientMock) *Engine {
	leadRepo := new(storagemock.LeadRepoMock)
	visitRepo := new(storagemock.VisitRepoMock)
	outboxRepo := new(storagemock.OutboxRepoMock)
	return NewEngine(cfg, leadRepo, visitRepo, outboxRepo, jsClient)
}

func TestNewProcessor(t *testing.T) {
	originalLogger := logger.Log
	logger.Log = zaptest.NewLogger(t).Named("TestNewProcessor")
	defer func() { logger.Log = originalLogger }()

	mockJSClient := new(jsmock.ClientMock)
	companyID := "test-company"
	cfg := createProcessorConfig(companyID)
	engine := newProcessorEngine(cfg, mockJSClient)

	processor := NewProcessor(engine, mockJSClient, cfg, companyID)

	assert.NotNil(t, processor)
	assert.Equal(t, engine, processor.engine)
	assert.Equal(t, mockJSClient, processor.jsClient)
	assert.NotNil(t, processor.lifecycleConsumer)
	assert.NotNil(t, processor.eventRouter)
	assert.NotNil(t, processor.lifecycleHandler)
	assert.Equal(t, processor.eventRouter, processor.GetRouter())
}

func TestProcessor_Setup(t *testing.T) {
	originalLogger := logger.Log
	logger.Log = zaptest.NewLogger(t).Named("TestProcessor_Setup")
	defer func() { logger.Log = originalLogger }()

	mockJSClient := new(jsmock.ClientMock)
	mockRouter := new(ingestionmock.RouterMock)
	mockHandler := new(handlermock.MockLifecycleHandler)
	companyID := "setup-test"
	cfg := createProcessorConfig(companyID)
	engine := newProcessorEngine(cfg, mockJSClient)

	processor := NewProcessor(engine, mockJSClient, cfg, companyID)
	// Override router and handler with mocks for expectation setting
	processor.eventRouter = mockRouter
	processor.lifecycleHandler = mockHandler

	mockRouter.On("Register", model.V1VisitCreated, mock.Anything).Return()
	mockRouter.On("Register", model.V1ActivityLogged, mock.Anything).Return()
	mockRouter.On("Register", model.V1LeadReactivate, mock.Anything).Return()
	mockRouter.On("Register", model.V1SweepTrigger, mock.Anything).Return()
	mockRouter.On("RegisterDefault", mock.Anything).Return()

	// Expectations for the real consumer's Setup against the mocked client
	mockJSClient.On("SetupStream", mock.Anything, mock.AnythingOfType("*nats.StreamConfig")).Return(nil).Once()
	mockJSClient.On("SetupConsumer", mock.Anything, cfg.NATS.Lifecycle.Stream, mock.AnythingOfType("*nats.ConsumerConfig")).Return(nil).Once()

	err := processor.Setup()

	assert.NoError(t, err)
	mockRouter.AssertExpectations(t)
	mockJSClient.AssertExpectations(t)
}

func TestProcessor_Setup_ConsumerError(t *testing.T) {
	originalLogger := logger.Log
	logger.Log = zaptest.NewLogger(t).Named("TestProcessor_Setup_ConsumerError")
	defer func() { logger.Log = originalLogger }()

	mockJSClient := new(jsmock.ClientMock)
	companyID := "setup-err-test"
	cfg := createProcessorConfig(companyID)
	engine := newProcessorEngine(cfg, mockJSClient)

	processor := NewProcessor(engine, mockJSClient, cfg, companyID)

	expectedErr := errors.New("stream setup failed")
	mockJSClient.On("SetupStream", mock.Anything, mock.AnythingOfType("*nats.StreamConfig")).Return(expectedErr)

	err := processor.Setup()

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to setup lifecycle consumer")
	assert.Contains(t, err.Error(), expectedErr.Error())
	mockJSClient.AssertExpectations(t)
}

func TestProcessor_StartStop(t *testing.T) {
	originalLogger := logger.Log
	logger.Log = zaptest.NewLogger(t).Named("TestProcessor_StartStop")
	defer func() { logger.Log = originalLogger }()

	mockJSClient := new(jsmock.ClientMock)
	companyID := "startstop-test"
	cfg := createProcessorConfig(companyID)
	engine := newProcessorEngine(cfg, mockJSClient)

	processor := NewProcessor(engine, mockJSClient, cfg, companyID)

	expectedConsumer := cfg.NATS.Lifecycle.Consumer + companyID
	expectedGroup := cfg.NATS.Lifecycle.QueueGroup + companyID
	mockJSClient.On("SubscribePush", "", expectedConsumer, expectedGroup, cfg.NATS.Lifecycle.Stream, mock.AnythingOfType("nats.MsgHandler")).
		Return(jsmock.MockSubscription(), nil).Once()

	err := processor.Start()
	assert.NoError(t, err)

	processor.Stop()
	mockJSClient.AssertExpectations(t)
}

func TestProcessor_Start_Error(t *testing.T) {
	originalLogger := logger.Log
	logger.Log = zaptest.NewLogger(t).Named("TestProcessor_Start_Error")
	defer func() { logger.Log = originalLogger }()

	mockJSClient := new(jsmock.ClientMock)
	companyID := "start-err-test"
	cfg := createProcessorConfig(companyID)
	engine := newProcessorEngine(cfg, mockJSClient)

	processor := NewProcessor(engine, mockJSClient, cfg, companyID)

	expectedErr := errors.New("subscribe push failed")
	mockJSClient.On("SubscribePush", "", mock.Anything, mock.Anything, mock.Anything, mock.AnythingOfType("nats.MsgHandler")).
		Return((*nats.Subscription)(nil), expectedErr).Once()

	err := processor.Start()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to start lifecycle consumer")
	mockJSClient.AssertExpectations(t)
}
