package teleop

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gwillem/looidrive/pkg/robot"
)

// session is the state shared between the dispatcher and the loops.
// Only the dispatcher mutates motion and head.
type session struct {
	mu          sync.RWMutex
	motion      robot.MotionVector
	head        robot.HeadPosition
	lastInputAt time.Time

	running atomic.Bool
}

func newSession() *session {
	return &session{head: robot.HeadCenter}
}

func (s *session) Motion() robot.MotionVector {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.motion
}

func (s *session) Head() robot.HeadPosition {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.head
}

// press replaces the active preset.
func (s *session) press(m robot.MotionVector, now time.Time) {
	s.mu.Lock()
	s.motion = m
	s.lastInputAt = now
	s.mu.Unlock()
}

// touch records input that does not change motion.
func (s *session) touch(now time.Time) {
	s.mu.Lock()
	s.lastInputAt = now
	s.mu.Unlock()
}

func (s *session) stepHead(delta int, now time.Time) robot.HeadPosition {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.head = s.head.Step(delta)
	s.lastInputAt = now
	return s.head
}

// autoStop neutralises motion once input has been silent for longer than
// idle. It reports whether a transition happened.
func (s *session) autoStop(now time.Time, idle time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.motion.IsNeutral() || now.Sub(s.lastInputAt) <= idle {
		return false
	}
	s.motion = robot.Neutral
	return true
}

// neutral forces motion to neutral regardless of input.
func (s *session) neutral() {
	s.mu.Lock()
	s.motion = robot.Neutral
	s.mu.Unlock()
}
