// Package client runs the player side of the game: it connects, forwards move
// intents through the reliable sender and keeps the latest snapshot for the
// renderer.
package client

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/beka-birhanu/vinom-treasure/game"
	"go.uber.org/zap"
)

const (
	defaultPollTimeout = 100 * time.Millisecond
	moveBacklog        = 8
)

var (
	ErrMoveQueueFull = errors.New("move queue is full")
	ErrInvalidConfig = errors.New("invalid client config")
)

// State is the client's connection lifecycle.
type State int32

const (
	Disconnected State = iota
	Connecting
	Playing
	Quitting
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Playing:
		return "playing"
	case Quitting:
		return "quitting"
	default:
		return "unknown"
	}
}

// Input is one local key event. The zero value carries nothing.
type Input struct {
	Quit      bool
	Direction game.Direction
}

// InputSource yields local input, waiting at most timeout.
type InputSource interface {
	PollInput(timeout time.Duration) (Input, bool)
}

// Renderer draws a snapshot. snap is nil until the first one arrives.
type Renderer interface {
	Render(snap *game.Snapshot, self game.PlayerID)
}

// CommandSender delivers a command and reports the acknowledged sequence.
type CommandSender interface {
	Send(game.Command) (uint32, error)
}

type Config struct {
	Encoder        game.Encoder
	Input          InputSource
	Renderer       Renderer
	Self           game.PlayerID // highlighted by the renderer
	SendDisconnect bool          // announce quitting to the server
	PollTimeout    time.Duration
	Logger         *zap.SugaredLogger
}

// Client is the player-side loop.
type Client struct {
	encoder        game.Encoder
	input          InputSource
	renderer       Renderer
	self           game.PlayerID
	sendDisconnect bool
	pollTimeout    time.Duration
	latest         atomic.Pointer[game.Snapshot]
	state          atomic.Int32
	quit           atomic.Bool
	moves          chan game.Direction
	logger         *zap.SugaredLogger
}

func New(c *Config) (*Client, error) {
	if c.Encoder == nil || c.Input == nil || c.Renderer == nil {
		return nil, ErrInvalidConfig
	}

	cl := &Client{
		encoder:        c.Encoder,
		input:          c.Input,
		renderer:       c.Renderer,
		self:           c.Self,
		sendDisconnect: c.SendDisconnect,
		pollTimeout:    c.PollTimeout,
		moves:          make(chan game.Direction, moveBacklog),
		logger:         c.Logger,
	}
	if cl.pollTimeout <= 0 {
		cl.pollTimeout = defaultPollTimeout
	}
	if cl.logger == nil {
		cl.logger = zap.NewNop().Sugar()
	}
	return cl, nil
}

// Run connects through sender and plays until quit input, Quit or ctx ends.
// A connect that is never acknowledged does not stop the client.
func (c *Client) Run(ctx context.Context, sender CommandSender) error {
	c.state.Store(int32(Connecting))
	if _, err := sender.Send(game.Command{Kind: game.CommandConnect}); err != nil {
		c.logger.Warnf("connect was not acknowledged: %s", err)
	}
	c.state.Store(int32(Playing))

	sendCtx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.sendMoves(sendCtx, sender)
	}()

	c.play(ctx)

	c.state.Store(int32(Quitting))
	cancel()
	wg.Wait()

	if c.sendDisconnect {
		if _, err := sender.Send(game.Command{Kind: game.CommandDisconnect}); err != nil {
			c.logger.Warnf("disconnect was not acknowledged: %s", err)
		}
	}
	return nil
}

func (c *Client) play(ctx context.Context) {
	for ctx.Err() == nil && !c.quit.Load() {
		if in, ok := c.input.PollInput(c.pollTimeout); ok {
			if in.Quit {
				return
			}
			if err := c.Move(in.Direction); err != nil {
				c.logger.Debugf("ignoring input %q: %s", in.Direction, err)
			}
		}
		c.renderer.Render(c.Latest(), c.self)
	}
}

func (c *Client) sendMoves(ctx context.Context, sender CommandSender) {
	for {
		select {
		case <-ctx.Done():
			return
		case d := <-c.moves:
			if _, err := sender.Send(game.NewMove(0, d)); err != nil {
				c.logger.Debugf("move %s dropped: %s", d, err)
			}
		}
	}
}

// Move queues a move intent. Intents are dropped, not delayed, when the
// sender is backed up.
func (c *Client) Move(d game.Direction) error {
	if !d.Valid() {
		return game.ErrInvalidDirection
	}

	select {
	case c.moves <- d:
		return nil
	default:
		return ErrMoveQueueFull
	}
}

// Quit ends Run after the current poll.
func (c *Client) Quit() {
	c.quit.Store(true)
}

// HandleServerResponse decodes a snapshot datagram and replaces the latest
// snapshot. Partially malformed snapshots are kept with zero-filled fields.
func (c *Client) HandleServerResponse(payload []byte) {
	snap, err := c.encoder.UnmarshalGameState(payload)
	if snap == nil {
		c.logger.Debugf("dropping undecodable datagram: %s", err)
		return
	}
	if err != nil {
		c.logger.Debugf("partial snapshot: %s", err)
	}
	c.latest.Store(snap)
}

// Latest returns a copy of the most recent snapshot, or nil before the first one.
func (c *Client) Latest() *game.Snapshot {
	return c.latest.Load().Clone()
}

// State returns the lifecycle state.
func (c *Client) State() State {
	return State(c.state.Load())
}
