package tenant

import (
	"context"
	"errors"
)

// Key for brokerage company ID in context
type contextKey string

const (
	companyIDKey contextKey = "companyID"
	requestIDKey contextKey = "requestID"
)

// ErrCompanyIDNotFound is returned when no brokerage company ID is found in context
var ErrCompanyIDNotFound = errors.New("company ID not found in context")

// WithCompanyID adds a brokerage company ID to the context
func WithCompanyID(ctx context.Context, companyID string) context.Context {
	return context.WithValue(ctx, companyIDKey, companyID)
}

// FromContext extracts the brokerage company ID from the context
func FromContext(ctx context.Context) (string, error) {
	companyID, ok := ctx.Value(companyIDKey).(string)
	if !ok || companyID == "" {
		return "", ErrCompanyIDNotFound
	}
	return companyID, nil
}

// MustFromContext extracts the brokerage company ID from the context or panics
func MustFromContext(ctx context.Context) string {
	companyID, err := FromContext(ctx)
	if err != nil {
		panic(err)
	}
	return companyID
}

// ErrNoRequestIDInContext is returned when no request ID is found in context
var ErrNoRequestIDInContext = errors.New("no request ID found in context")

// WithRequestID adds a request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// FromRequestIDContext extracts the request ID from the context
func FromRequestIDContext(ctx context.Context) (string, error) {
	requestID, ok := ctx.Value(requestIDKey).(string)
	if !ok || requestID == "" {
		return "", ErrNoRequestIDInContext
	}
	return requestID, nil
}
