package fetcher

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/avast/retry-go/v4"
)

// Backoff describes how a failing fetch is retried.
type Backoff struct {
	Attempts int
	Min      time.Duration
	Max      time.Duration
}

// DefaultBackoff tries three times, waiting 4s and then 8s, capped at 10s.
var DefaultBackoff = Backoff{Attempts: 3, Min: 4 * time.Second, Max: 10 * time.Second}

// options maps b onto retry-go. BackOffDelay already doubles the base delay
// before the first wait, so the base is half of Min.
func (b Backoff) options(ctx context.Context, name string, extra ...retry.Option) []retry.Option {
	attempts := max(b.Attempts, 1)

	opts := []retry.Option{
		retry.Context(ctx),
		retry.Attempts(uint(attempts)),
		retry.Delay(b.Min / 2),
		retry.MaxDelay(b.Max),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			if int(n)+1 >= attempts {
				return
			}
			slog.Warn("fetch failed, retrying",
				"source", name,
				"attempt", n+1,
				"max_attempts", attempts,
				"err", err,
			)
		}),
	}

	return append(opts, extra...)
}

func withRetry(ctx context.Context, name string, b Backoff, op func(context.Context) error, extra ...retry.Option) error {
	err := retry.Do(func() error {
		return op(ctx)
	}, b.options(ctx, name, extra...)...)
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("retry abandoned: %w", ctxErr)
	}

	return fmt.Errorf("after %d attempts: %w", max(b.Attempts, 1), err)
}
