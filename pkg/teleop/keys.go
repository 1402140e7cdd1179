package teleop

// KeySource reports at most one pressed key per poll and never blocks.
type KeySource interface {
	Poll() (rune, bool)
}

// KeyQueue is a KeySource fed by a terminal reader.
type KeyQueue struct {
	ch chan rune
}

// NewKeyQueue returns a queue holding up to size unread keys.
func NewKeyQueue(size int) *KeyQueue {
	if size <= 0 {
		size = 16
	}
	return &KeyQueue{ch: make(chan rune, size)}
}

// Push enqueues a key. Keys arriving while the queue is full are dropped.
func (q *KeyQueue) Push(r rune) bool {
	select {
	case q.ch <- r:
		return true
	default:
		return false
	}
}

// Poll returns the oldest unread key, if any.
func (q *KeyQueue) Poll() (rune, bool) {
	select {
	case r := <-q.ch:
		return r, true
	default:
		return 0, false
	}
}
