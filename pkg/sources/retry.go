package sources

import (
	"context"
	"time"

	"github.com/longboxhq/longbox/pkg/errors"
	"github.com/longboxhq/longbox/pkg/logging"
)

// DefaultMaxRetries is the attempt count adapters use unless configured.
const DefaultMaxRetries = 3

// DefaultRetryDelay is the backoff before the first retry; it doubles on
// each subsequent attempt.
const DefaultRetryDelay = time.Second

// sleeper lets tests replace real waiting.
type sleeper func(ctx context.Context, d time.Duration) error

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return errors.ErrCanceled
	case <-timer.C:
		return nil
	}
}

// Retry runs fn up to maxRetries times with doubling backoff, retrying only
// transient failures (rate limits, 5xx, timeouts). Permanent errors such as
// not-found return immediately. The loop is iterative so a long retry chain
// never grows the stack, and it honors context cancellation between
// attempts.
func Retry(ctx context.Context, source Name, maxRetries int, fn func() error) error {
	return retry(ctx, source, maxRetries, DefaultRetryDelay, sleepCtx, fn)
}

func retry(ctx context.Context, source Name, maxRetries int, delay time.Duration, sleep sleeper, fn func() error) error {
	if maxRetries < 1 {
		maxRetries = DefaultMaxRetries
	}

	var err error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		if ctx.Err() != nil {
			return errors.ErrCanceled
		}

		err = fn()
		if err == nil {
			return nil
		}
		if !errors.Transient(err) {
			return err
		}
		if attempt == maxRetries {
			break
		}

		logging.Warn().
			Str("source", source.String()).
			Int("attempt", attempt).
			Dur("backoff", delay).
			Err(err).
			Msg("transient source failure, retrying")

		if serr := sleep(ctx, delay); serr != nil {
			return serr
		}
		delay *= 2
	}

	return err
}
