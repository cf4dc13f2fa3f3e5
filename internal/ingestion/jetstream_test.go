package ingestion

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"gitlab.com/havenrow/api/lead-lifecycle-service/internal/apperrors"
	"gitlab.com/havenrow/api/lead-lifecycle-service/internal/config"
	clientmock "gitlab.com/havenrow/api/lead-lifecycle-service/internal/jetstream/mock"
	"gitlab.com/havenrow/api/lead-lifecycle-service/internal/model"
	"gitlab.com/havenrow/api/lead-lifecycle-service/pkg/logger"
	"go.uber.org/zap/zaptest"
)

// MockHandler is a mock of the EventHandler function
type MockHandler struct {
	mock.Mock
}

// Handle implements the EventHandler function signature
func (m *MockHandler) Handle(ctx context.Context, eventType model.EventType, metadata *model.MessageMetadata, rawEvent []byte) error {
	args := m.Called(ctx, eventType, metadata, rawEvent)
	return args.Error(0)
}

// Setup test environment helper
func setupTest(t *testing.T) (*clientmock.ClientMock, *Router) {
	logger.Log = zaptest.NewLogger(t).Named("test")
	mockClient := new(clientmock.ClientMock)
	router := NewRouter()
	return mockClient, router
}

// --- Tests for LifecycleConsumer ---

func TestLifecycleConsumer_Setup(t *testing.T) {
	mockClient, router := setupTest(t)
	companyID := "test-brokerage-lc"
	dlqSubject := "v1.dlq"
	cfg := config.ConsumerNatsConfig{
		Stream:      "lifecycle-stream",
		Consumer:    "lifecycle-consumer-", // Base name
		QueueGroup:  "lifecycle-group-",    // Base name
		SubjectList: []string{"v1.visits.created", "v1.activities.logged"},
		MaxAge:      30, // 30 days
		MaxDeliver:  5,
	}

	// --- Mimic processor behavior: Modify cfg before passing ---
	cfg.Consumer = cfg.Consumer + companyID
	cfg.QueueGroup = cfg.QueueGroup + companyID
	// ---------------------------------------------------------

	lifecycleConsumer := NewLifecycleConsumer(mockClient, router, cfg, companyID, dlqSubject)

	expectedStreamCfg := &nats.StreamConfig{
		Name:      cfg.Stream,
		Storage:   nats.FileStorage,
		Retention: nats.LimitsPolicy,
		MaxAge:    30 * 24 * time.Hour,
	}
	expectedConsumerSubjects := []string{"v1.visits.created." + companyID, "v1.activities.logged." + companyID}
	expectedConsumerCfg := &nats.ConsumerConfig{
		Durable:        cfg.Consumer,
		DeliverGroup:   cfg.QueueGroup,
		FilterSubjects: expectedConsumerSubjects,
		AckPolicy:      nats.AckExplicitPolicy,
		MaxDeliver:     cfg.MaxDeliver,
		AckWait:        30 * time.Second,
		MaxAckPending:  1000,
		ReplayPolicy:   nats.ReplayInstantPolicy,
		DeliverPolicy:  nats.DeliverLastPolicy,
	}

	mockClient.On("SetupStream", mock.Anything, mock.MatchedBy(func(sc *nats.StreamConfig) bool {
		expectedStreamSubs, _ := modifySubjects(cfg.SubjectList, companyID)
		return sc.Name == expectedStreamCfg.Name &&
			sc.Storage == expectedStreamCfg.Storage &&
			sc.Retention == expectedStreamCfg.Retention &&
			sc.MaxAge == expectedStreamCfg.MaxAge &&
			assert.ElementsMatch(t, expectedStreamSubs, sc.Subjects)
	})).Return(nil)
	mockClient.On("SetupConsumer", mock.Anything, cfg.Stream, mock.MatchedBy(func(cc *nats.ConsumerConfig) bool {
		// DeliverSubject is a fresh inbox every time, skip it
		return cc.Durable == expectedConsumerCfg.Durable &&
			cc.DeliverGroup == expectedConsumerCfg.DeliverGroup &&
			assert.ElementsMatch(t, expectedConsumerCfg.FilterSubjects, cc.FilterSubjects) &&
			cc.AckPolicy == expectedConsumerCfg.AckPolicy &&
			cc.MaxDeliver == expectedConsumerCfg.MaxDeliver &&
			cc.AckWait == expectedConsumerCfg.AckWait &&
			cc.MaxAckPending == expectedConsumerCfg.MaxAckPending &&
			cc.ReplayPolicy == expectedConsumerCfg.ReplayPolicy &&
			cc.DeliverPolicy == expectedConsumerCfg.DeliverPolicy
	})).Return(nil)

	err := lifecycleConsumer.Setup()

	assert.NoError(t, err)
	assert.Equal(t, "v1.>", lifecycleConsumer.filterSubject)
	mockClient.AssertExpectations(t)
}

func TestLifecycleConsumer_Setup_StreamError(t *testing.T) {
	mockClient, router := setupTest(t)
	companyID := "test-brokerage-lc-se"
	cfg := config.ConsumerNatsConfig{Stream: "lifecycle-stream-se", SubjectList: []string{"v1.visits.created"}, MaxDeliver: 5}
	lifecycleConsumer := NewLifecycleConsumer(mockClient, router, cfg, companyID, "v1.dlq")

	expectedErr := errors.New("stream setup failed")
	mockClient.On("SetupStream", mock.Anything, mock.AnythingOfType("*nats.StreamConfig")).Return(expectedErr)

	err := lifecycleConsumer.Setup()

	assert.Error(t, err)
	assert.Contains(t, err.Error(), expectedErr.Error())
	assert.Contains(t, err.Error(), "failed to setup lifecycle stream")
	mockClient.AssertExpectations(t)
	mockClient.AssertNotCalled(t, "SetupConsumer", mock.Anything, mock.Anything, mock.Anything)
}

func TestLifecycleConsumer_Setup_ConsumerError(t *testing.T) {
	mockClient, router := setupTest(t)
	companyID := "test-brokerage-lc-ce"
	cfg := config.ConsumerNatsConfig{Stream: "lifecycle-stream-ce", Consumer: "lifecycle-con-ce", SubjectList: []string{"v1.visits.created"}, MaxDeliver: 5}
	lifecycleConsumer := NewLifecycleConsumer(mockClient, router, cfg, companyID, "v1.dlq")

	expectedErr := errors.New("consumer setup failed")
	mockClient.On("SetupStream", mock.Anything, mock.AnythingOfType("*nats.StreamConfig")).Return(nil)
	mockClient.On("SetupConsumer", mock.Anything, cfg.Stream, mock.AnythingOfType("*nats.ConsumerConfig")).Return(expectedErr)

	err := lifecycleConsumer.Setup()

	assert.Error(t, err)
	assert.Contains(t, err.Error(), expectedErr.Error())
	assert.Contains(t, err.Error(), "failed to setup lifecycle consumer")
	mockClient.AssertExpectations(t)
}

func TestLifecycleConsumer_Start(t *testing.T) {
	mockClient, router := setupTest(t)
	companyID := "test-brokerage-lc-start"
	cfg := config.ConsumerNatsConfig{
		Consumer:   "lifecycle-con-start-",
		QueueGroup: "lifecycle-grp-start-",
		MaxDeliver: 5,
	}

	modifiedCfg := cfg
	modifiedCfg.Consumer = cfg.Consumer + companyID
	modifiedCfg.QueueGroup = cfg.QueueGroup + companyID

	lifecycleConsumer := NewLifecycleConsumer(mockClient, router, modifiedCfg, companyID, "v1.dlq")

	mockSubscription := clientmock.MockSubscription()
	mockClient.On("SubscribePush", "", modifiedCfg.Consumer, modifiedCfg.QueueGroup, cfg.Stream, mock.AnythingOfType("nats.MsgHandler")).Return(mockSubscription, nil)

	err := lifecycleConsumer.Start()

	assert.NoError(t, err)
	assert.Equal(t, mockSubscription, lifecycleConsumer.sub)
	mockClient.AssertExpectations(t)
}

func TestLifecycleConsumer_Start_Error(t *testing.T) {
	mockClient, router := setupTest(t)
	companyID := "test-brokerage-lc-start-err"
	cfg := config.ConsumerNatsConfig{
		Consumer:     "lifecycle-con-start-err-",
		QueueGroup:   "lifecycle-grp-start-err-",
		MaxDeliver:   5,
		NakBaseDelay: 1 * time.Second,
		NakMaxDelay:  10 * time.Second,
	}
	lifecycleConsumer := NewLifecycleConsumer(mockClient, router, cfg, companyID, "v1.dlq")

	expectedErr := errors.New("subscribe push failed")
	mockClient.On("SubscribePush", "", cfg.Consumer, cfg.QueueGroup, cfg.Stream, mock.AnythingOfType("nats.MsgHandler")).Return((*nats.Subscription)(nil), expectedErr)

	err := lifecycleConsumer.Start()

	assert.Error(t, err)
	assert.Contains(t, err.Error(), expectedErr.Error())
	assert.Contains(t, err.Error(), "failed to subscribe lifecycle consumer")
	assert.Nil(t, lifecycleConsumer.sub)
	mockClient.AssertExpectations(t)
}

func TestLifecycleConsumer_Stop(t *testing.T) {
	mockClient, router := setupTest(t)
	companyID := "test-brokerage-lc-stop"
	cfg := config.ConsumerNatsConfig{Consumer: "lifecycle-con-stop-", MaxDeliver: 5}
	lifecycleConsumer := NewLifecycleConsumer(mockClient, router, cfg, companyID, "v1.dlq")

	lifecycleConsumer.sub = clientmock.MockSubscription()
	ctx := lifecycleConsumer.base.ctx

	lifecycleConsumer.Stop()

	select {
	case <-ctx.Done():
		// Context canceled as expected
	case <-time.After(100 * time.Millisecond):
		assert.Fail(t, "Context was not canceled within timeout")
	}
	mockClient.AssertExpectations(t)
}

func TestDetermineAckNakAction(t *testing.T) {
	baseDelay := 1 * time.Second
	maxDelay := 16 * time.Second
	maxDeliver := 5

	tests := []struct {
		name           string
		processingErr  error
		numDelivered   uint64
		expectedAction AckNakAction
		expectedDelay  time.Duration
	}{
		{
			name:           "Success case",
			processingErr:  nil,
			numDelivered:   1,
			expectedAction: ActionAck,
			expectedDelay:  0,
		},
		{
			name:           "Retryable error, first attempt",
			processingErr:  apperrors.NewRetryable(errors.New("transient"), "transient"),
			numDelivered:   1,
			expectedAction: ActionNakDelay,
			expectedDelay:  1 * time.Second, // base * 2^0
		},
		{
			name:           "Retryable error, second attempt",
			processingErr:  apperrors.NewRetryable(errors.New("transient"), "transient"),
			numDelivered:   2,
			expectedAction: ActionNakDelay,
			expectedDelay:  2 * time.Second, // base * 2^1
		},
		{
			name:           "Retryable error, third attempt",
			processingErr:  apperrors.NewRetryable(errors.New("transient"), "transient"),
			numDelivered:   3,
			expectedAction: ActionNakDelay,
			expectedDelay:  4 * time.Second, // base * 2^2
		},
		{
			name:           "Retryable error, fourth attempt",
			processingErr:  apperrors.NewRetryable(errors.New("transient"), "transient"),
			numDelivered:   4,
			expectedAction: ActionNakDelay,
			expectedDelay:  8 * time.Second, // base * 2^3
		},
		{
			name:           "Retryable error, maxDeliver reached",
			processingErr:  apperrors.NewRetryable(errors.New("transient"), "transient"),
			numDelivered:   5,
			expectedAction: ActionDLQ,
			expectedDelay:  0,
		},
		{
			name:           "Fatal error, first attempt",
			processingErr:  apperrors.NewFatal(errors.New("fatal"), "fatal"),
			numDelivered:   1,
			expectedAction: ActionDLQ,
			expectedDelay:  0,
		},
		{
			name:           "Fatal error, later attempt",
			processingErr:  apperrors.NewFatal(errors.New("fatal"), "fatal"),
			numDelivered:   3,
			expectedAction: ActionDLQ,
			expectedDelay:  0,
		},
		{
			name:           "Non-app error (treated as fatal), first attempt",
			processingErr:  errors.New("some other error"),
			numDelivered:   1,
			expectedAction: ActionDLQ,
			expectedDelay:  0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			metadata := &nats.MsgMetadata{
				NumDelivered: tt.numDelivered,
			}
			action, delay := determineAckNakAction(tt.processingErr, metadata, maxDeliver, baseDelay, maxDelay)
			assert.Equal(t, tt.expectedAction, action, "Action should match")
			assert.Equal(t, tt.expectedDelay, delay, "Delay should match")
		})
	}
}

// --- Helper Function Tests ---

func TestModifySubjects(t *testing.T) {
	tests := []struct {
		name                 string
		inputSubjects        []string
		companyID            string
		expectedStreamSubs   []string
		expectedConsumerSubs []string
	}{
		{
			name:                 "basic case",
			inputSubjects:        []string{"v1.visits.created", "v1.activities.logged"},
			companyID:            "brokerageA",
			expectedStreamSubs:   []string{"v1.visits.created.*", "v1.activities.logged.*"},
			expectedConsumerSubs: []string{"v1.visits.created.brokerageA", "v1.activities.logged.brokerageA"},
		},
		{
			name:                 "single subject",
			inputSubjects:        []string{"v1.leads.reactivate"},
			companyID:            "brokerageB",
			expectedStreamSubs:   []string{"v1.leads.reactivate.*"},
			expectedConsumerSubs: []string{"v1.leads.reactivate.brokerageB"},
		},
		{
			name:                 "empty input list",
			inputSubjects:        []string{},
			companyID:            "brokerageC",
			expectedStreamSubs:   []string{},
			expectedConsumerSubs: []string{},
		},
		{
			name:                 "empty tenant ID", // Should still append dot
			inputSubjects:        []string{"v1.sweep"},
			companyID:            "",
			expectedStreamSubs:   []string{"v1.sweep.*"},
			expectedConsumerSubs: []string{"v1.sweep."},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			streamSubs, consumerSubs := modifySubjects(tt.inputSubjects, tt.companyID)
			assert.ElementsMatch(t, tt.expectedStreamSubs, streamSubs, "Stream subjects should match")
			assert.ElementsMatch(t, tt.expectedConsumerSubs, consumerSubs, "Consumer subjects should match")
		})
	}
}
