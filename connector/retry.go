package connector

import (
	"context"
	"time"
)

// retryConnect runs connect with exponential backoff per cfg. The context
// bounds the whole attempt sequence.
func retryConnect(ctx context.Context, cfg *RetryConfig, connect func(context.Context) error) error {
	base := cfg.BaseDelay
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	maxDelay := cfg.MaxDelay
	if maxDelay <= 0 {
		maxDelay = 10 * time.Second
	}
	backoff := cfg.Backoff
	if backoff < 1 {
		backoff = 2
	}

	var err error
	delay := base
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if err = connect(ctx); err == nil {
			return nil
		}
		if attempt == cfg.MaxRetries {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay = time.Duration(float64(delay) * backoff)
		if delay > maxDelay {
			delay = maxDelay
		}
	}
	return err
}
