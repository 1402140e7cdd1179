package teleop

import (
	"context"
	"time"

	"github.com/gwillem/looidrive/pkg/robot"
)

const teardownTimeout = 2 * time.Second

// teardown restores input, commands neutral motion and releases the link.
// It runs once per controller; r may be nil if no link was established.
func (c *Controller) teardown(r *robot.Robot) {
	c.teardownOnce.Do(func() {
		c.sess.running.Store(false)
		c.setPhase(PhaseStopping)

		if c.restore != nil {
			c.restore()
		}

		c.sess.neutral()
		if r != nil {
			ctx, cancel := context.WithTimeout(context.Background(), teardownTimeout)
			defer cancel()

			// Nothing is written to a device whose attributes were never mapped.
			// Ready only means mapping finished: a missing motion attribute
			// still fails the write with ErrNotMapped, which is logged.
			if r.Ready() {
				if err := r.SendMotion(ctx, robot.Neutral); err != nil {
					c.logger.Warn("neutral write failed", "err", err)
				}
			}
			if err := r.Close(); err != nil {
				c.logger.Warn("release failed", "err", err)
			}
		}

		c.setPhase(PhaseDisconnected)
		c.log("Disconnected.")
	})
}
