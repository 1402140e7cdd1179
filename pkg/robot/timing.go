package robot

import (
	"fmt"
	"time"
)

// Timing holds the session cadences. Zero fields take the defaults on load.
type Timing struct {
	CommandInterval   time.Duration `yaml:"command_interval,omitempty"`
	CommandRetry      time.Duration `yaml:"command_retry,omitempty"`
	TelemetryInterval time.Duration `yaml:"telemetry_interval,omitempty"`
	TelemetryRetry    time.Duration `yaml:"telemetry_retry,omitempty"`
	PollInterval      time.Duration `yaml:"poll_interval,omitempty"`
	IdleTimeout       time.Duration `yaml:"idle_timeout,omitempty"`
	ReadyAttempts     int           `yaml:"ready_attempts,omitempty"`
	ReadyInterval     time.Duration `yaml:"ready_interval,omitempty"`
	SettleDelay       time.Duration `yaml:"settle_delay,omitempty"`
}

// DefaultTiming returns the cadences the LOOI firmware is known to accept.
func DefaultTiming() Timing {
	return Timing{
		CommandInterval:   30 * time.Millisecond,
		CommandRetry:      100 * time.Millisecond,
		TelemetryInterval: 4 * time.Second,
		TelemetryRetry:    2 * time.Second,
		PollInterval:      10 * time.Millisecond,
		IdleTimeout:       100 * time.Millisecond,
		ReadyAttempts:     10,
		ReadyInterval:     500 * time.Millisecond,
		SettleDelay:       100 * time.Millisecond,
	}
}

// Merge returns t with the positive fields of override applied.
func (t Timing) Merge(override Timing) Timing {
	pick := func(a, b time.Duration) time.Duration {
		if b > 0 {
			return b
		}
		return a
	}
	out := Timing{
		CommandInterval:   pick(t.CommandInterval, override.CommandInterval),
		CommandRetry:      pick(t.CommandRetry, override.CommandRetry),
		TelemetryInterval: pick(t.TelemetryInterval, override.TelemetryInterval),
		TelemetryRetry:    pick(t.TelemetryRetry, override.TelemetryRetry),
		PollInterval:      pick(t.PollInterval, override.PollInterval),
		IdleTimeout:       pick(t.IdleTimeout, override.IdleTimeout),
		ReadyAttempts:     t.ReadyAttempts,
		ReadyInterval:     pick(t.ReadyInterval, override.ReadyInterval),
		SettleDelay:       pick(t.SettleDelay, override.SettleDelay),
	}
	if override.ReadyAttempts > 0 {
		out.ReadyAttempts = override.ReadyAttempts
	}
	return out
}

// Validate rejects non-positive cadences.
func (t Timing) Validate() error {
	for name, d := range map[string]time.Duration{
		"command_interval":   t.CommandInterval,
		"command_retry":      t.CommandRetry,
		"telemetry_interval": t.TelemetryInterval,
		"telemetry_retry":    t.TelemetryRetry,
		"poll_interval":      t.PollInterval,
		"idle_timeout":       t.IdleTimeout,
		"ready_interval":     t.ReadyInterval,
	} {
		if d <= 0 {
			return fmt.Errorf("timing: %s must be positive, got %s", name, d)
		}
	}
	if t.SettleDelay < 0 {
		return fmt.Errorf("timing: settle_delay must not be negative, got %s", t.SettleDelay)
	}
	if t.ReadyAttempts <= 0 {
		return fmt.Errorf("timing: ready_attempts must be positive, got %d", t.ReadyAttempts)
	}
	return nil
}
