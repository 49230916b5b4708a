package client

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/beka-birhanu/vinom-treasure/game"
	text "github.com/beka-birhanu/vinom-treasure/game/text_encoder"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSender struct {
	mu       sync.Mutex
	commands []game.Command
	fail     bool
	seq      uint32
}

func (r *recordingSender) Send(c game.Command) (uint32, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands = append(r.commands, c)
	if r.fail {
		return 0, errors.New("send timed out")
	}
	r.seq++
	return r.seq, nil
}

func (r *recordingSender) kinds() []game.CommandKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	kinds := make([]game.CommandKind, len(r.commands))
	for i, c := range r.commands {
		kinds[i] = c.Kind
	}
	return kinds
}

func (r *recordingSender) directions() []game.Direction {
	r.mu.Lock()
	defer r.mu.Unlock()
	var dirs []game.Direction
	for _, c := range r.commands {
		if c.Kind == game.CommandMove {
			dirs = append(dirs, c.Direction)
		}
	}
	return dirs
}

// scriptedInput replays inputs, then reports nothing.
type scriptedInput struct {
	mu     sync.Mutex
	inputs []Input
}

func (s *scriptedInput) PollInput(timeout time.Duration) (Input, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.inputs) == 0 {
		time.Sleep(time.Millisecond)
		return Input{}, false
	}
	in := s.inputs[0]
	s.inputs = s.inputs[1:]
	return in, true
}

type recordingRenderer struct {
	mu    sync.Mutex
	last  *game.Snapshot
	self  game.PlayerID
	calls int
}

func (r *recordingRenderer) Render(snap *game.Snapshot, self game.PlayerID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.last = snap
	r.self = self
	r.calls++
}

func newTestClient(t *testing.T, inputs []Input, sendDisconnect bool) (*Client, *recordingRenderer) {
	t.Helper()
	renderer := &recordingRenderer{}
	c, err := New(&Config{
		Encoder:        &text.Text{},
		Input:          &scriptedInput{inputs: inputs},
		Renderer:       renderer,
		Self:           2,
		SendDisconnect: sendDisconnect,
		PollTimeout:    time.Millisecond,
	})
	require.NoError(t, err)
	return c, renderer
}

func TestNewValidatesConfig(t *testing.T) {
	_, err := New(&Config{})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestRunConnectsMovesAndQuits(t *testing.T) {
	c, renderer := newTestClient(t, []Input{
		{Direction: game.East},
		{Direction: game.South},
	}, false)
	sender := &recordingSender{}

	done := make(chan error)
	go func() { done <- c.Run(context.Background(), sender) }()

	require.Eventually(t, func() bool {
		return len(sender.directions()) == 2
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, Playing, c.State())

	c.Quit()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after Quit")
	}

	assert.Equal(t, Quitting, c.State())
	assert.Equal(t, game.CommandConnect, sender.kinds()[0])
	assert.Equal(t, []game.Direction{game.East, game.South}, sender.directions())

	renderer.mu.Lock()
	defer renderer.mu.Unlock()
	assert.Positive(t, renderer.calls)
	assert.Equal(t, game.PlayerID(2), renderer.self)
}

func TestQuitInputSendsDisconnectWhenEnabled(t *testing.T) {
	c, _ := newTestClient(t, []Input{{Quit: true}}, true)
	sender := &recordingSender{}

	require.NoError(t, c.Run(context.Background(), sender))
	assert.Equal(t, []game.CommandKind{game.CommandConnect, game.CommandDisconnect}, sender.kinds())
}

func TestUnacknowledgedConnectStillPlays(t *testing.T) {
	c, _ := newTestClient(t, []Input{{Direction: game.West}, {Quit: true}}, false)
	sender := &recordingSender{fail: true}

	require.NoError(t, c.Run(context.Background(), sender))
	assert.Equal(t, game.CommandConnect, sender.kinds()[0])
}

func TestRunStopsWithContext(t *testing.T) {
	c, _ := newTestClient(t, nil, false)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	assert.NoError(t, c.Run(ctx, &recordingSender{}))
}

func TestMove(t *testing.T) {
	c, _ := newTestClient(t, nil, false)

	assert.ErrorIs(t, c.Move(game.Direction('Q')), game.ErrInvalidDirection)
	for n := 0; n < moveBacklog; n++ {
		require.NoError(t, c.Move(game.North))
	}
	assert.ErrorIs(t, c.Move(game.North), ErrMoveQueueFull)
}

func TestHandleServerResponse(t *testing.T) {
	c, _ := newTestClient(t, nil, false)
	assert.Nil(t, c.Latest())

	c.HandleServerResponse([]byte("GAME_STATE|TIME:12|P1:(2, 3, 10)|P2:(0, 0, 0)|(4, 4)|"))
	snap := c.Latest()
	require.NotNil(t, snap)
	assert.Equal(t, 12, snap.TimeRemaining)
	me, ok := snap.Player(2)
	require.True(t, ok)
	assert.Equal(t, game.PlayerSnapshot{ID: 2}, me)

	// The caller's copy is independent of the stored snapshot.
	snap.Players[0].Score = 999
	assert.Equal(t, 10, c.Latest().Players[0].Score)

	// Garbage keeps the previous snapshot; partial damage is zero-filled.
	c.HandleServerResponse([]byte("ACK:3"))
	assert.Equal(t, 12, c.Latest().TimeRemaining)

	c.HandleServerResponse([]byte("GAME_STATE|TIME:x|P1:(2, 3, 10)||"))
	assert.Equal(t, 0, c.Latest().TimeRemaining)
	assert.Len(t, c.Latest().Players, 1)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "disconnected", Disconnected.String())
	assert.Equal(t, "playing", Playing.String())
	assert.Equal(t, "unknown", State(42).String())
}
