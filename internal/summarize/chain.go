package summarize

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"
	"unicode/utf8"

	"github.com/rocky2431/ultra-builder-pro/internal/providers"
)

// ErrNoSummary means no channel produced a usable summary.
var ErrNoSummary = errors.New("summarize: no channel produced a summary")

// minSummary is the shortest answer accepted as a summary.
const minSummary = 20

// Chain tries channels in order until one answers.
type Chain struct {
	channels []providers.Channel
	timeout  time.Duration
	logger   *log.Logger
}

// NewChain builds a chain. Each channel call is bounded by timeout.
func NewChain(channels []providers.Channel, timeout time.Duration, logger *log.Logger) *Chain {
	if logger == nil {
		logger = log.New(log.Writer(), "[summarize] ", 0)
	}
	return &Chain{channels: channels, timeout: timeout, logger: logger}
}

// Summarize returns the first acceptable answer and the channel that gave it.
func (c *Chain) Summarize(ctx context.Context, prompt string) (string, string, error) {
	if len(c.channels) == 0 {
		return "", "", fmt.Errorf("%w: no channels configured", ErrNoSummary)
	}

	for _, ch := range c.channels {
		out, err := c.try(ctx, ch, prompt)
		if err != nil {
			c.logger.Printf("channel=%s failed: %v", ch.Name(), err)
			if ctx.Err() != nil {
				return "", "", fmt.Errorf("%w: %v", ErrNoSummary, ctx.Err())
			}
			continue
		}
		if utf8.RuneCountInString(out) <= minSummary {
			c.logger.Printf("channel=%s answer too short (%q)", ch.Name(), out)
			continue
		}
		return out, ch.Name(), nil
	}
	return "", "", ErrNoSummary
}

func (c *Chain) try(ctx context.Context, ch providers.Channel, prompt string) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	return ch.Complete(ctx, prompt)
}
