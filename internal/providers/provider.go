// Package providers holds the external channels that turn a session excerpt
// into a short summary.
package providers

import (
	"context"
	"errors"
)

// ErrEmptyResponse is returned when a channel answered without any text.
var ErrEmptyResponse = errors.New("providers: empty response")

// Channel is one way of reaching a summarization model.
type Channel interface {
	Name() string
	Complete(ctx context.Context, prompt string) (string, error)
}
