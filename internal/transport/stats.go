package transport

import "sync"

// Stats is a point-in-time snapshot of session counters.
type Stats struct {
	MessagesSent     uint64
	MessagesReceived uint64
	SendErrors       uint64
	ReceiveErrors    uint64
	Reconnections    uint64
	LastError        string
}

// statsTracker guards the counters; sessions may be polled for stats
// from a goroutine other than the consume loop.
type statsTracker struct {
	mu sync.Mutex
	s  Stats
}

func (t *statsTracker) sent() {
	t.mu.Lock()
	t.s.MessagesSent++
	t.mu.Unlock()
}

func (t *statsTracker) received() {
	t.mu.Lock()
	t.s.MessagesReceived++
	t.mu.Unlock()
}

func (t *statsTracker) sendError(err error) {
	t.mu.Lock()
	t.s.SendErrors++
	if err != nil {
		t.s.LastError = err.Error()
	}
	t.mu.Unlock()
}

func (t *statsTracker) receiveError(err error) {
	t.mu.Lock()
	t.s.ReceiveErrors++
	if err != nil {
		t.s.LastError = err.Error()
	}
	t.mu.Unlock()
}

func (t *statsTracker) reconnected() {
	t.mu.Lock()
	t.s.Reconnections++
	t.mu.Unlock()
}

func (t *statsTracker) snapshot() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.s
}
