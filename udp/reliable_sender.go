package udp

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/beka-birhanu/vinom-treasure/game"
	"go.uber.org/zap"
)

// Retry policy of the reliable sender.
const (
	RetryLimit   = 3
	RetryTimeout = 500 * time.Millisecond
)

// ErrSendTimeout is reported when no acknowledgment arrived within the retry budget.
var ErrSendTimeout = errors.New("send timed out")

// SendError describes an abandoned reliable send.
type SendError struct {
	Sequence uint32
	Attempts int
}

func (e *SendError) Error() string {
	return fmt.Sprintf("sequence %d not acknowledged after %d attempts: %s", e.Sequence, e.Attempts, ErrSendTimeout)
}

// Unwrap allows errors.Is(err, ErrSendTimeout).
func (e *SendError) Unwrap() error {
	return ErrSendTimeout
}

// DatagramSender is the raw, unreliable send primitive.
type DatagramSender interface {
	Send([]byte) error
}

type SenderOption func(*ReliableSender)

// ReliableSender numbers outgoing commands and retransmits each until it is
// acknowledged or the retry budget is spent. Only one command is in flight at
// a time; concurrent callers queue on the sender.
type ReliableSender struct {
	out          DatagramSender     // Raw datagram transport.
	acks         <-chan uint32      // Acknowledged sequence numbers, fed by the receive loop.
	encoder      game.Encoder       // Encoder for the command envelope.
	nextSequence uint32             // Last sequence handed out; the first send uses 1.
	retryLimit   int                // Maximum send attempts per command.
	retryTimeout time.Duration      // Wait for an acknowledgment per attempt.
	logger       *zap.SugaredLogger // Logger.
	mu           sync.Mutex         // Serializes sends.
}

// NewReliableSender creates a sender writing to out and reading acknowledgments from acks.
func NewReliableSender(out DatagramSender, acks <-chan uint32, e game.Encoder, options ...SenderOption) *ReliableSender {
	r := &ReliableSender{
		out:          out,
		acks:         acks,
		encoder:      e,
		retryLimit:   RetryLimit,
		retryTimeout: RetryTimeout,
	}

	for _, opt := range options {
		opt(r)
	}

	if r.logger == nil {
		r.logger = zap.NewNop().Sugar()
	}

	return r
}

// Send assigns the next sequence to c, transmits it and waits for the matching
// acknowledgment. Retransmissions reuse the same sequence. It returns the
// acknowledged sequence, or a *SendError once RetryLimit attempts or the
// overall RetryLimit*RetryTimeout budget are exhausted.
func (r *ReliableSender) Send(c game.Command) (uint32, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextSequence++
	c.Sequence = r.nextSequence
	c.Sequenced = true

	payload, err := r.encoder.MarshalCommand(c)
	if err != nil {
		return 0, err
	}

	deadline := time.Now().Add(r.retryTimeout * time.Duration(r.retryLimit))
	attempts := 0
	for attempts < r.retryLimit && time.Now().Before(deadline) {
		attempts++
		if err := r.out.Send(payload); err != nil {
			return 0, fmt.Errorf("sending sequence %d: %w", c.Sequence, err)
		}

		if r.awaitAck(c.Sequence, min(r.retryTimeout, time.Until(deadline))) {
			return c.Sequence, nil
		}
		r.logger.Debugf("no acknowledgment for sequence %d (attempt %d/%d)", c.Sequence, attempts, r.retryLimit)
	}

	return 0, &SendError{Sequence: c.Sequence, Attempts: attempts}
}

// awaitAck waits up to timeout for seq to be acknowledged, discarding late
// acknowledgments of earlier sequences.
func (r *ReliableSender) awaitAck(seq uint32, timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case ack, ok := <-r.acks:
			if !ok {
				<-timer.C
				return false
			}
			if ack == seq {
				return true
			}
		case <-timer.C:
			return false
		}
	}
}

// SenderWithRetry overrides the retry limit and per-attempt timeout.
func SenderWithRetry(limit int, timeout time.Duration) SenderOption {
	return func(r *ReliableSender) {
		if limit > 0 {
			r.retryLimit = limit
		}
		if timeout > 0 {
			r.retryTimeout = timeout
		}
	}
}

// SenderWithLogger sets the logger
func SenderWithLogger(l *zap.SugaredLogger) SenderOption {
	return func(r *ReliableSender) {
		r.logger = l
	}
}
