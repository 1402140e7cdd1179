package teleop

import (
	"time"

	"github.com/gwillem/looidrive/pkg/robot"
)

// Backoff picks the delay before a loop's next attempt.
type Backoff struct {
	Interval time.Duration // after success
	Retry    time.Duration // after failure
}

// Delay returns the wait after an attempt that ended with err.
func (b Backoff) Delay(err error) time.Duration {
	switch {
	case err == nil:
		return b.Interval
	case robot.IsCanceled(err):
		return 0
	}
	return b.Retry
}

// shouldReport limits failure logging to the first few and then every 50th.
func shouldReport(failures int) bool {
	return failures <= 3 || failures%50 == 0
}
