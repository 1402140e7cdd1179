// Package teleop provides the teleoperation session for a LOOI robot.
package teleop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gwillem/looidrive/pkg/robot"
)

// Phase is the session's progress through bring-up and teardown.
type Phase string

const (
	PhaseIdle         Phase = "idle"
	PhaseSearching    Phase = "searching"
	PhaseConnecting   Phase = "connecting"
	PhaseWaking       Phase = "waking cache"
	PhaseWaitServices Phase = "waiting for services"
	PhaseHandshake1   Phase = "handshake 1"
	PhaseSubscribing  Phase = "subscribing"
	PhaseHandshake2   Phase = "handshake 2"
	PhaseReady        Phase = "ready"
	PhaseStopping     Phase = "stopping"
	PhaseDisconnected Phase = "disconnected"
)

// State represents the current state of teleoperation.
type State struct {
	Phase     Phase
	Device    robot.Device
	Motion    robot.MotionVector
	Head      robot.HeadPosition
	Battery   int // percent, -1 until first read
	BatteryAt time.Time
	Timestamp time.Time
	Error     error
}

// Controller manages one teleoperation session.
type Controller struct {
	transport robot.Transport
	cfg       *robot.Config
	timing    robot.Timing
	keys      robot.Keymap
	restore   func()
	logger    *slog.Logger
	now       func() time.Time

	sess *session

	mu      sync.RWMutex
	state   State
	stopErr error
	cancel  context.CancelFunc
	stateCh chan State
	logCh   chan string

	teardownOnce sync.Once
}

// Config holds configuration for the controller.
type Config struct {
	Transport robot.Transport
	Robot     *robot.Config
	// Restore puts the operator's input mode back. It runs first during
	// teardown.
	Restore func()
	Logger  *slog.Logger
	// Now overrides the clock used for input timing.
	Now func() time.Time
}

// NewController creates a new teleoperation controller.
func NewController(cfg Config) (*Controller, error) {
	if cfg.Transport == nil {
		return nil, errors.New("teleop: transport is required")
	}
	if cfg.Robot == nil {
		cfg.Robot = robot.DefaultConfig()
	}
	if err := cfg.Robot.Validate(); err != nil {
		return nil, err
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Controller{
		transport: cfg.Transport,
		cfg:       cfg.Robot,
		timing:    cfg.Robot.Timing,
		keys:      cfg.Robot.Keys,
		restore:   cfg.Restore,
		logger:    cfg.Logger.With("component", "teleop"),
		now:       cfg.Now,
		sess:      newSession(),
		state:     State{Phase: PhaseIdle, Head: robot.HeadCenter, Battery: -1},
		stateCh:   make(chan State, 1),
		logCh:     make(chan string, 10),
	}, nil
}

// States returns a channel that receives state updates.
func (c *Controller) States() <-chan State {
	return c.stateCh
}

// Logs returns a channel that receives log messages.
func (c *Controller) Logs() <-chan string {
	return c.logCh
}

// Hz returns the motion command frequency.
func (c *Controller) Hz() int {
	return int(time.Second / c.timing.CommandInterval)
}

// Keys returns the active key bindings.
func (c *Controller) Keys() robot.Keymap {
	return c.keys
}

// State returns the latest published state.
func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Running reports whether the control loops are active.
func (c *Controller) Running() bool {
	return c.sess.running.Load()
}

func (c *Controller) log(format string, args ...any) {
	msg := fmt.Sprintf("[%s] %s", time.Now().Format("15:04:05"), fmt.Sprintf(format, args...))
	select {
	case c.logCh <- msg:
	default:
		// Drop if channel full
	}
}

// Run drives a whole session: discover, connect, handshake, control, and
// teardown. Quitting and interrupts return nil.
func (c *Controller) Run(ctx context.Context, keys KeySource) (err error) {
	var r *robot.Robot
	defer func() {
		c.teardown(r)
		if err != nil && ctx.Err() != nil {
			err = nil
		}
		c.setError(err)
	}()

	dev, err := c.discover(ctx)
	if err != nil {
		return err
	}

	c.setPhase(PhaseConnecting)
	c.log("Connecting to %s...", dev.Address)
	link, err := c.transport.Connect(ctx, dev, c.cfg.ConnectTimeout)
	if err != nil {
		if !errors.Is(err, robot.ErrConnection) {
			err = fmt.Errorf("%w: %v", robot.ErrConnection, err)
		}
		return err
	}
	r = robot.New(link)
	c.log("Connected, initializing protocol")

	if err := c.handshake(ctx, r); err != nil {
		return err
	}

	return c.control(ctx, r, keys)
}

func (c *Controller) discover(ctx context.Context) (robot.Device, error) {
	if c.cfg.Address != "" {
		dev := robot.Device{Name: c.cfg.NameContains, Address: c.cfg.Address}
		c.setDevice(dev)
		return dev, nil
	}

	c.setPhase(PhaseSearching)
	c.log("Searching for '%s'...", c.cfg.NameContains)
	scanCtx := ctx
	if c.cfg.ScanTimeout > 0 {
		var cancel context.CancelFunc
		scanCtx, cancel = context.WithTimeout(ctx, c.cfg.ScanTimeout)
		defer cancel()
	}
	dev, err := c.transport.Discover(scanCtx, robot.NameContains(c.cfg.NameContains))
	if err != nil {
		if ctx.Err() != nil {
			return robot.Device{}, ctx.Err()
		}
		if !errors.Is(err, robot.ErrDiscovery) {
			err = fmt.Errorf("%w: %v", robot.ErrDiscovery, err)
		}
		return robot.Device{}, err
	}
	c.setDevice(dev)
	c.logger.Info("device found", "name", dev.Name, "address", dev.Address, "rssi", dev.RSSI)
	return dev, nil
}

// control runs the command and telemetry loops alongside the dispatcher
// and joins them before returning.
func (c *Controller) control(ctx context.Context, r *robot.Robot, keys KeySource) error {
	loopCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.mu.Lock()
	c.cancel = cancel
	c.mu.Unlock()
	c.sess.running.Store(true)
	c.setPhase(PhaseReady)
	c.log("Robot ready, %d Hz", c.Hz())

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		c.commandLoop(loopCtx, r)
	}()
	go func() {
		defer wg.Done()
		c.telemetryLoop(loopCtx, r)
	}()

	c.dispatchLoop(loopCtx, r, keys)
	c.Stop()
	wg.Wait()

	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stopErr
}

// Stop ends the control phase. Safe to call from any goroutine.
func (c *Controller) Stop() {
	c.stop(nil)
}

// stop clears running and cancels the loops. The first non-nil err is
// returned from Run.
func (c *Controller) stop(err error) {
	c.sess.running.Store(false)
	c.mu.Lock()
	if err != nil && c.stopErr == nil {
		c.stopErr = err
	}
	cancel := c.cancel
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// sleep waits for d or until ctx ends.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (c *Controller) setPhase(p Phase) {
	c.update(func(s *State) { s.Phase = p })
	c.logger.Info("phase", "phase", string(p))
}

func (c *Controller) setDevice(d robot.Device) {
	c.update(func(s *State) { s.Device = d })
}

func (c *Controller) setBattery(pct int) {
	c.update(func(s *State) {
		s.Battery = pct
		s.BatteryAt = time.Now()
	})
}

func (c *Controller) setError(err error) {
	if err == nil {
		return
	}
	c.update(func(s *State) { s.Error = err })
}

func (c *Controller) publish() {
	c.update(func(*State) {})
}

func (c *Controller) update(fn func(*State)) {
	c.mu.Lock()
	fn(&c.state)
	c.state.Motion = c.sess.Motion()
	c.state.Head = c.sess.Head()
	c.state.Timestamp = time.Now()
	s := c.state
	c.mu.Unlock()
	c.sendState(s)
}

func (c *Controller) sendState(s State) {
	select {
	case c.stateCh <- s:
	default:
		// Drop old state if channel full, replace with new
		select {
		case <-c.stateCh:
		default:
		}
		select {
		case c.stateCh <- s:
		default:
		}
	}
}
