package service

import "sync/atomic"

// Metrics counts what the server loop did with inbound traffic.
type Metrics struct {
	Datagrams          int64 // datagrams handed to the loop
	Malformed          int64 // undecodable command envelopes
	DuplicateOrStale   int64 // rejected by the sequence filter
	CapacityRejections int64 // connects refused because the world is full
	Acks               int64 // acknowledgments sent
	Moves              int64 // moves applied to the world
	Broadcasts         int64 // snapshot broadcast rounds
	Evictions          int64 // sessions removed by disconnect or inactivity
	Ticks              int64 // countdown ticks
	ScoreboardDropped  int64 // score updates dropped because the publisher lagged
}

func (m *Metrics) incDatagrams()          { atomic.AddInt64(&m.Datagrams, 1) }
func (m *Metrics) incMalformed()          { atomic.AddInt64(&m.Malformed, 1) }
func (m *Metrics) incDuplicateOrStale()   { atomic.AddInt64(&m.DuplicateOrStale, 1) }
func (m *Metrics) incCapacityRejections() { atomic.AddInt64(&m.CapacityRejections, 1) }
func (m *Metrics) incAcks()               { atomic.AddInt64(&m.Acks, 1) }
func (m *Metrics) incMoves()              { atomic.AddInt64(&m.Moves, 1) }
func (m *Metrics) incBroadcasts()         { atomic.AddInt64(&m.Broadcasts, 1) }
func (m *Metrics) addEvictions(n int)     { atomic.AddInt64(&m.Evictions, int64(n)) }
func (m *Metrics) incTicks()              { atomic.AddInt64(&m.Ticks, 1) }
func (m *Metrics) incScoreboardDropped()  { atomic.AddInt64(&m.ScoreboardDropped, 1) }

// Snapshot returns a read-only copy for the HTTP API.
func (m *Metrics) Snapshot() map[string]int64 {
	return map[string]int64{
		"datagrams":           atomic.LoadInt64(&m.Datagrams),
		"malformed":           atomic.LoadInt64(&m.Malformed),
		"duplicate_or_stale":  atomic.LoadInt64(&m.DuplicateOrStale),
		"capacity_rejections": atomic.LoadInt64(&m.CapacityRejections),
		"acks":                atomic.LoadInt64(&m.Acks),
		"moves":               atomic.LoadInt64(&m.Moves),
		"broadcasts":          atomic.LoadInt64(&m.Broadcasts),
		"evictions":           atomic.LoadInt64(&m.Evictions),
		"ticks":               atomic.LoadInt64(&m.Ticks),
		"scoreboard_dropped":  atomic.LoadInt64(&m.ScoreboardDropped),
	}
}
