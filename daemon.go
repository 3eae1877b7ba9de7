package ddns

import (
	"context"
	"errors"
	"time"

	"github.com/go-logr/logr"
	"github.com/robfig/cron/v3"
)

// DefaultInterval is the time between reconciliation cycles when no schedule is configured.
const DefaultInterval = 10 * time.Minute

// Every returns a schedule firing every interval, but never more often than once a minute.
func Every(interval time.Duration) cron.Schedule {
	if interval < 1*time.Minute {
		interval = 1 * time.Minute
	}
	return cron.Every(interval)
}

// RunDaemon starts ddnsClient as a goroutine.
//
// The first cycle runs immediately.
// The next run time is taken from schedule only after the previous cycle has returned,
// so cycles never overlap and a slow provider simply delays the next one.
// Errors are logged and never stop the loop.
// The returned channel is closed once ctx is done and the goroutine has exited.
//
// logger is used as given; the zero Logger and logr.Discard() both silence the loop.
// It is not inherited from the client, so pass the same logger given to WithLogger to share it.
func RunDaemon(ctx context.Context, ddnsClient DDNSClient, schedule cron.Schedule, logger logr.Logger) <-chan struct{} {
	if schedule == nil {
		schedule = Every(DefaultInterval)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			runOnce(ctx, ddnsClient, logger)

			timer := time.NewTimer(time.Until(schedule.Next(time.Now())))
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
		}
	}()
	return done
}

func runOnce(ctx context.Context, ddnsClient DDNSClient, logger logr.Logger) {
	outcome, err := ddnsClient.RunDDNS(ctx)
	switch {
	case err == nil:
		logger.Info("ddns cycle complete", "outcome", outcome.String())
	case ctx.Err() != nil:
		logger.V(1).Info("ddns cycle cancelled", "error", err.Error())
	case errors.Is(err, ErrUnexpected):
		logger.Error(err, "ddns cycle failed: internal invariant violated", "kind", ErrorKind(err), "severity", "critical")
	default:
		logger.Error(err, "ddns cycle failed", "kind", ErrorKind(err))
	}
}
