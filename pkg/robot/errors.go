package robot

import (
	"context"
	"errors"
)

// Session errors. Everything before the handshake completes is fatal.
var (
	ErrDiscovery               = errors.New("device not found")
	ErrConnection              = errors.New("connection failed")
	ErrServiceDiscoveryTimeout = errors.New("service discovery timeout")
	ErrHandshakeWrite          = errors.New("handshake write failed")
	ErrSubscribe               = errors.New("subscribe failed")
	ErrTransientIO             = errors.New("transient i/o failure")
	ErrNotMapped               = errors.New("attribute not mapped")
	ErrReleased                = errors.New("link released")
)

// IsFatal reports whether err aborts a session before it becomes ready.
func IsFatal(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrDiscovery),
		errors.Is(err, ErrConnection),
		errors.Is(err, ErrServiceDiscoveryTimeout),
		errors.Is(err, ErrHandshakeWrite):
		return true
	}
	return false
}

// IsCanceled reports whether err comes from context cancellation.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
