package history

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/dyluth/frontdesk/pkg/helpdesk"
	"github.com/google/uuid"
)

// RequestGetter is the store read needed to show one help request.
type RequestGetter interface {
	GetRequest(ctx context.Context, requestID string) (*helpdesk.HelpRequest, error)
}

// GetRequest retrieves a single help request by ID and writes it as pretty-printed JSON.
func GetRequest(ctx context.Context, store RequestGetter, requestID string, w io.Writer) error {
	if _, err := uuid.Parse(requestID); err != nil {
		return fmt.Errorf("invalid request ID format: must be a valid UUID")
	}

	r, err := store.GetRequest(ctx, requestID)
	if err != nil {
		if helpdesk.IsNotFound(err) {
			return &RequestNotFoundError{RequestID: requestID}
		}
		return fmt.Errorf("failed to fetch help request: %w", err)
	}

	if err := FormatSingleJSON(w, r); err != nil {
		return fmt.Errorf("failed to format help request: %w", err)
	}

	return nil
}

// RequestNotFoundError represents a specific "request not found" error.
type RequestNotFoundError struct {
	RequestID string
}

func (e *RequestNotFoundError) Error() string {
	return fmt.Sprintf("help request with ID '%s' not found", e.RequestID)
}

// IsNotFound returns true if the error is a RequestNotFoundError.
func IsNotFound(err error) bool {
	var target *RequestNotFoundError
	return errors.As(err, &target)
}
