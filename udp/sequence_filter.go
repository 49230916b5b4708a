package udp

import "sync"

// SequenceFilter admits strictly increasing sequence numbers per sender.
// A sequence at or below the last accepted one is a duplicate or stale and is
// rejected; gaps are accepted as-is, nothing is buffered or reordered.
type SequenceFilter struct {
	last map[string]uint32
	mu   sync.Mutex
}

// NewSequenceFilter returns an empty filter; every sender starts at zero.
func NewSequenceFilter() *SequenceFilter {
	return &SequenceFilter{last: make(map[string]uint32)}
}

// Accept reports whether seq is newer than anything accepted from sender and, if so, records it.
func (f *SequenceFilter) Accept(sender string, seq uint32) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if seq <= f.last[sender] {
		return false
	}
	f.last[sender] = seq
	return true
}

// Last returns the highest sequence accepted from sender.
func (f *SequenceFilter) Last(sender string) uint32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last[sender]
}

// Forget drops the sender's history so a new session starts from zero.
func (f *SequenceFilter) Forget(sender string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.last, sender)
}

// Len returns the number of senders with a recorded history.
func (f *SequenceFilter) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.last)
}
