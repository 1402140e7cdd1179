package teleop

import (
	"context"
	"fmt"
	"time"

	"github.com/gwillem/looidrive/pkg/robot"
)

// handshake runs the bring-up sequence. Each step gates the next; any
// returned error is fatal for the session.
func (c *Controller) handshake(ctx context.Context, r *robot.Robot) error {
	c.setPhase(PhaseWaking)
	// The wake read may wait for attribute mapping; bound it by the
	// readiness budget.
	wakeCtx, cancel := context.WithTimeout(ctx, time.Duration(c.timing.ReadyAttempts)*c.timing.ReadyInterval)
	err := r.WakeCache(wakeCtx)
	cancel()
	if err != nil {
		c.logger.Debug("cache wake read failed", "err", err)
	}

	c.setPhase(PhaseWaitServices)
	c.log("Waiting for service discovery...")
	if err := c.waitReady(ctx, r); err != nil {
		return err
	}
	c.log("Services mapped")

	c.setPhase(PhaseHandshake1)
	c.log("Handshake 1...")
	if err := r.Activate(ctx, robot.ActivationWake); err != nil {
		return err
	}
	if err := sleep(ctx, c.timing.SettleDelay); err != nil {
		return err
	}

	c.setPhase(PhaseSubscribing)
	c.log("Subscribing...")
	for _, attr := range c.cfg.Subscribe {
		if err := r.Subscribe(attr, nil); err != nil {
			c.logger.Warn("subscribe failed", "attribute", string(attr), "err", err)
			c.log("Warning: %v", err)
		}
	}

	c.setPhase(PhaseHandshake2)
	c.log("Handshake 2...")
	return r.Activate(ctx, robot.ActivationDrive)
}

// waitReady probes the attribute table up to ReadyAttempts times,
// ReadyInterval apart.
func (c *Controller) waitReady(ctx context.Context, r *robot.Robot) error {
	for attempt := 1; attempt <= c.timing.ReadyAttempts; attempt++ {
		if r.Ready() {
			c.logger.Debug("services ready", "attempt", attempt)
			return nil
		}
		if err := sleep(ctx, c.timing.ReadyInterval); err != nil {
			return err
		}
	}
	return fmt.Errorf("%w: not ready after %d attempts", robot.ErrServiceDiscoveryTimeout, c.timing.ReadyAttempts)
}
