package teleop

import (
	"context"
	"errors"

	"github.com/gwillem/looidrive/pkg/robot"
)

// commandLoop resends the current motion vector every CommandInterval until
// ctx ends. It never skips unchanged values.
func (c *Controller) commandLoop(ctx context.Context, r *robot.Robot) {
	b := Backoff{Interval: c.timing.CommandInterval, Retry: c.timing.CommandRetry}
	failures := 0
	for ctx.Err() == nil {
		err := r.SendMotion(ctx, c.sess.Motion())
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			if errors.Is(err, robot.ErrReleased) {
				c.logger.Error("link lost", "err", err)
				c.stop(err)
				return
			}
			failures++
			if shouldReport(failures) {
				c.logger.Warn("motion write failed", "failures", failures, "err", err)
			}
		} else if failures > 0 {
			c.logger.Info("motion writes recovered", "failures", failures)
			failures = 0
		}
		if sleep(ctx, b.Delay(err)) != nil {
			return
		}
	}
}

// telemetryLoop polls the battery every TelemetryInterval until ctx ends.
func (c *Controller) telemetryLoop(ctx context.Context, r *robot.Robot) {
	b := Backoff{Interval: c.timing.TelemetryInterval, Retry: c.timing.TelemetryRetry}
	failures := 0
	for ctx.Err() == nil {
		pct, err := r.ReadBattery(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			failures++
			if shouldReport(failures) {
				c.logger.Warn("battery read failed", "failures", failures, "err", err)
			}
		} else {
			failures = 0
			c.setBattery(pct)
			c.logger.Debug("battery", "percent", pct)
		}
		if sleep(ctx, b.Delay(err)) != nil {
			return
		}
	}
}
