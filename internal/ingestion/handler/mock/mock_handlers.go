package mock

import (
	"context"

	"github.com/stretchr/testify/mock"
	"gitlab.com/havenrow/api/lead-lifecycle-service/internal/ingestion/handler"
	"gitlab.com/havenrow/api/lead-lifecycle-service/internal/model"
)

// MockLifecycleHandler is a mock for the EventHandlerInterface
type MockLifecycleHandler struct {
	mock.Mock
}

// Ensure MockLifecycleHandler implements EventHandlerInterface
var _ handler.EventHandlerInterface = (*MockLifecycleHandler)(nil)

// HandleEvent mocks the HandleEvent method
func (m *MockLifecycleHandler) HandleEvent(ctx context.Context, eventType model.EventType, metadata *model.MessageMetadata, rawEvent []byte) error {
	args := m.Called(ctx, eventType, metadata, rawEvent)
	return args.Error(0)
}
