package mock

import (
	"context"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/mock"
	"gitlab.com/havenrow/api/lead-lifecycle-service/internal/jetstream"
)

// ClientMock is a mock implementation of the JetStream Client
type ClientMock struct {
	mock.Mock
}

// Ensure ClientMock implements jetstream.ClientInterface
var _ jetstream.ClientInterface = (*ClientMock)(nil)

// SetupStream mocks the SetupStream method
func (m *ClientMock) SetupStream(ctx context.Context, streamConfig *nats.StreamConfig) error {
	args := m.Called(ctx, streamConfig)
	return args.Error(0)
}

// SetupConsumer mocks the SetupConsumer method
func (m *ClientMock) SetupConsumer(ctx context.Context, streamName string, consumerConfig *nats.ConsumerConfig) error {
	args := m.Called(ctx, streamName, consumerConfig)
	return args.Error(0)
}

// Subscribe mocks the Subscribe method
func (m *ClientMock) Subscribe(subject, consumer, group string, handler nats.MsgHandler) (*nats.Subscription, error) {
	args := m.Called(subject, consumer, group, handler)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*nats.Subscription), args.Error(1)
}

// SubscribePush mocks the SubscribePush method
func (m *ClientMock) SubscribePush(subject, consumer, group, stream string, handler nats.MsgHandler) (*nats.Subscription, error) {
	args := m.Called(subject, consumer, group, stream, handler)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*nats.Subscription), args.Error(1)
}

// Publish mocks the Publish method
func (m *ClientMock) Publish(subject string, data []byte, headers map[string]string) error {
	args := m.Called(subject, data, headers)
	return args.Error(0)
}

// NatsConn returns the underlying *nats.Conn (mocked)
func (m *ClientMock) NatsConn() *nats.Conn {
	return nil
}

// Close mocks the Close method
func (m *ClientMock) Close() {
	m.Called()
}

// MockSubscription is a helper for creating a mock nats.Subscription
// This is needed because we can't directly create nats.Subscription instances
func MockSubscription() *nats.Subscription {
	// Return a nil pointer that will be type cast to *nats.Subscription
	// This is a common pattern for mocking interfaces with concrete types
	return nil
}
