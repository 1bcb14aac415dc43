package retry

import (
	"context"
	"log/slog"
	"time"
)

// Policy is a bounded exponential backoff. Whether a given failure is
// worth retrying at all is the caller's decision, expressed through
// Retryable; everything else propagates immediately.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Retryable   func(error) bool
}

func Default(retryable func(error) bool) Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond * 500,
		MaxDelay:    time.Second * 8,
		Retryable:   retryable,
	}
}

func (p Policy) Do(ctx context.Context, op func() error) error {
	delay := p.BaseDelay
	var err error

	for attempt := 1; ; attempt++ {
		err = op()
		if err == nil {
			return nil
		}
		if p.Retryable != nil && !p.Retryable(err) {
			return err
		}
		if attempt >= p.MaxAttempts {
			return err
		}

		slog.WarnContext(
			ctx, "retrying after transient failure",
			"attempt", attempt,
			"delay", delay,
			"err", err,
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		delay *= 2
		if delay > p.MaxDelay {
			delay = p.MaxDelay
		}
	}
}
