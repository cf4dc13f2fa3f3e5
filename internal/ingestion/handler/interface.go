package handler

import (
	"context"

	"gitlab.com/havenrow/api/lead-lifecycle-service/internal/model"
)

// EventHandlerInterface defines the common interface for event handlers
type EventHandlerInterface interface {
	// HandleEvent processes an event
	HandleEvent(ctx context.Context, eventType model.EventType, metadata *model.MessageMetadata, rawEvent []byte) error
}

// Ensure the handler implements the interface
var _ EventHandlerInterface = (*LifecycleHandler)(nil)
