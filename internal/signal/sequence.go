package signal

import "sync/atomic"

// Sequence hands out monotonic package ids. Each producer owns one
// instance; there is no process-wide generator.
type Sequence struct {
	next atomic.Uint64
}

// NewSequence starts numbering at start.
func NewSequence(start uint64) *Sequence {
	s := &Sequence{}
	s.next.Store(start)
	return s
}

// Next returns the current id and advances.
func (s *Sequence) Next() uint64 {
	return s.next.Add(1) - 1
}
