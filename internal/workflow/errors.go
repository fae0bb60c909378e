package workflow

import (
	"errors"
	"fmt"

	"renovationAi/internal/vision"
)

// EndpointError reports a transport or service failure of the image endpoint.
type EndpointError struct {
	Op  string
	Err error
}

func (e *EndpointError) Error() string {
	return fmt.Sprintf("workflow: image service failed during %s: %v", e.Op, e.Err)
}

func (e *EndpointError) Unwrap() error {
	return e.Err
}

// IsNoImage reports whether err means the endpoint answered without an image.
func IsNoImage(err error) bool {
	return errors.Is(err, vision.ErrNoImageReturned)
}

func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if IsNoImage(err) {
		return fmt.Errorf("workflow: %s: %w", op, err)
	}
	return &EndpointError{Op: op, Err: err}
}
