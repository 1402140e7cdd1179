package teleop

import (
	"context"
	"time"

	"github.com/gwillem/looidrive/pkg/robot"
)

// dispatchLoop polls keys every PollInterval until quit or ctx ends.
func (c *Controller) dispatchLoop(ctx context.Context, r *robot.Robot, keys KeySource) {
	ticker := time.NewTicker(c.timing.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			key, ok := keys.Poll()
			if c.dispatch(ctx, r, key, ok, c.now()) {
				return
			}
		}
	}
}

// dispatch applies one poll tick and reports whether the operator quit.
// The auto-stop check runs on every tick, with or without a key.
func (c *Controller) dispatch(ctx context.Context, r *robot.Robot, key rune, ok bool, now time.Time) bool {
	if ok {
		action, preset, step := c.keys.Lookup(key)
		switch action {
		case robot.ActionQuit:
			c.sess.touch(now)
			c.log("Quit")
			c.Stop()
			return true
		case robot.ActionMove:
			c.sess.press(preset, now)
			c.publish()
		case robot.ActionHead:
			h := c.sess.stepHead(step, now)
			if err := r.SendHead(ctx, h); err != nil {
				c.logger.Warn("head write failed", "head", int(h), "err", err)
			}
			c.publish()
		}
	}

	if c.sess.autoStop(now, c.timing.IdleTimeout) {
		c.logger.Debug("auto-stop", "idle", now.Sub(c.lastInput()))
		c.publish()
	}
	return false
}

func (c *Controller) lastInput() time.Time {
	c.sess.mu.RLock()
	defer c.sess.mu.RUnlock()
	return c.sess.lastInputAt
}
