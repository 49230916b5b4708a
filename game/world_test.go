package game

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWorld(t *testing.T, c Config) *World {
	t.Helper()
	w, err := New(c)
	require.NoError(t, err)
	return w
}

func TestApplyConnect(t *testing.T) {
	w := newTestWorld(t, Config{})

	for want := PlayerID(1); want <= DefaultPlayerCap; want++ {
		id, err := w.ApplyConnect()
		require.NoError(t, err)
		assert.Equal(t, want, id)

		p, ok := w.Player(id)
		require.True(t, ok)
		assert.Equal(t, PlayerState{}, p)
	}

	t.Run("rejects beyond the cap", func(t *testing.T) {
		_, err := w.ApplyConnect()
		assert.ErrorIs(t, err, ErrCapacityExceeded)
		assert.Equal(t, DefaultPlayerCap, w.PlayerCount())
	})

	t.Run("reuses the lowest freed id", func(t *testing.T) {
		assert.True(t, w.RemovePlayer(2))
		assert.False(t, w.RemovePlayer(2))

		id, err := w.ApplyConnect()
		require.NoError(t, err)
		assert.Equal(t, PlayerID(2), id)
	})
}

func TestApplyMoveClampsAtEdges(t *testing.T) {
	w := newTestWorld(t, Config{Width: 3, Height: 3})
	id, err := w.ApplyConnect()
	require.NoError(t, err)

	tests := []struct {
		name string
		dir  Direction
		want PlayerState
	}{
		{"west at left edge", West, PlayerState{X: 0, Y: 0}},
		{"north at top edge", North, PlayerState{X: 0, Y: 0}},
		{"east", East, PlayerState{X: 1, Y: 0}},
		{"east", East, PlayerState{X: 2, Y: 0}},
		{"east at right edge", East, PlayerState{X: 2, Y: 0}},
		{"south", South, PlayerState{X: 2, Y: 1}},
		{"south", South, PlayerState{X: 2, Y: 2}},
		{"south at bottom edge", South, PlayerState{X: 2, Y: 2}},
		{"west", West, PlayerState{X: 1, Y: 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := w.ApplyMove(id, tt.dir)
			require.NoError(t, err)
			assert.Equal(t, tt.want, out.Player)
			assert.False(t, out.ScoreChanged())
		})
	}
}

func TestTreasureIsCollectedOnce(t *testing.T) {
	w := newTestWorld(t, Config{Treasures: []Cell{{X: 2, Y: 3}}})
	first, _ := w.ApplyConnect()
	second, _ := w.ApplyConnect()

	walk := func(id PlayerID) MoveOutcome {
		var out MoveOutcome
		for _, d := range []Direction{East, East, South, South, South} {
			var err error
			out, err = w.ApplyMove(id, d)
			require.NoError(t, err)
		}
		return out
	}

	out := walk(first)
	assert.True(t, out.Treasure)
	assert.Equal(t, PlayerState{X: 2, Y: 3, Score: TreasureReward}, out.Player)
	assert.Empty(t, w.Snapshot().Treasures)

	score, err := w.Score(first)
	require.NoError(t, err)
	assert.Equal(t, TreasureReward, score)

	out = walk(second)
	assert.False(t, out.Treasure)
	assert.Equal(t, PlayerState{X: 2, Y: 3, Score: 0}, out.Player)
}

func TestTrapResetsScoreAndIsConsumed(t *testing.T) {
	w := newTestWorld(t, Config{
		Treasures: []Cell{{X: 1, Y: 0}},
		Traps:     []Cell{{X: 2, Y: 0}},
	})
	id, _ := w.ApplyConnect()

	out, err := w.ApplyMove(id, East)
	require.NoError(t, err)
	assert.Equal(t, TreasureReward, out.Player.Score)

	out, err = w.ApplyMove(id, East)
	require.NoError(t, err)
	assert.True(t, out.Trap)
	assert.Equal(t, 0, out.Player.Score)
	assert.Empty(t, w.Snapshot().Traps)

	_, _ = w.ApplyMove(id, West)
	out, err = w.ApplyMove(id, East)
	require.NoError(t, err)
	assert.False(t, out.Trap)
}

func TestApplyMoveErrors(t *testing.T) {
	w := newTestWorld(t, Config{})

	_, err := w.ApplyMove(7, East)
	assert.ErrorIs(t, err, ErrPlayerNotFound)

	_, err = w.Score(7)
	assert.ErrorIs(t, err, ErrPlayerNotFound)

	id, _ := w.ApplyConnect()
	_, err = w.ApplyMove(id, Direction('Q'))
	assert.ErrorIs(t, err, ErrInvalidDirection)
}

func TestTickSaturatesAtZero(t *testing.T) {
	w := newTestWorld(t, Config{Seconds: 2})
	w.Tick()
	assert.Equal(t, 1, w.TimeRemaining())
	w.Tick()
	w.Tick()
	assert.Equal(t, 0, w.TimeRemaining())
}

func TestFreezeAtZero(t *testing.T) {
	w := newTestWorld(t, Config{Seconds: 1, FreezeAtZero: true})
	id, _ := w.ApplyConnect()

	out, err := w.ApplyMove(id, East)
	require.NoError(t, err)
	assert.Equal(t, 1, out.Player.X)

	w.Tick()
	out, err = w.ApplyMove(id, East)
	require.NoError(t, err)
	assert.Equal(t, 1, out.Player.X)
}

func TestSnapshotIsSorted(t *testing.T) {
	w := newTestWorld(t, Config{
		Seconds:   30,
		Treasures: []Cell{{X: 4, Y: 2}, {X: 1, Y: 2}, {X: 9, Y: 0}},
		Traps:     []Cell{{X: 3, Y: 3}},
	})
	_, _ = w.ApplyConnect()
	_, _ = w.ApplyConnect()

	s := w.Snapshot()
	assert.Equal(t, 30, s.TimeRemaining)
	assert.Equal(t, []PlayerSnapshot{{ID: 1}, {ID: 2}}, s.Players)
	assert.Equal(t, []Cell{{X: 9, Y: 0}, {X: 1, Y: 2}, {X: 4, Y: 2}}, s.Treasures)
	assert.Equal(t, []Cell{{X: 3, Y: 3}}, s.Traps)
}

func TestSnapshotListsAreNeverNil(t *testing.T) {
	s := newTestWorld(t, Config{}).Snapshot()
	assert.NotNil(t, s.Players)
	assert.NotNil(t, s.Treasures)
	assert.NotNil(t, s.Traps)
	assert.Empty(t, s.Treasures)
}

func TestWorstCaseSnapshot(t *testing.T) {
	w := newTestWorld(t, Config{
		Width:     6,
		Height:    4,
		PlayerCap: 2,
		Seconds:   90,
		Treasures: []Cell{{X: 1, Y: 0}, {X: 2, Y: 2}},
		Traps:     []Cell{{X: 3, Y: 3}},
	})
	id, err := w.ApplyConnect()
	require.NoError(t, err)
	_, err = w.ApplyMove(id, East)
	require.NoError(t, err)
	w.Tick()

	s := w.WorstCaseSnapshot()
	assert.Equal(t, 90, s.TimeRemaining)
	assert.Equal(t, []PlayerSnapshot{
		{ID: 1, X: 5, Y: 3, Score: 20},
		{ID: 2, X: 5, Y: 3, Score: 20},
	}, s.Players)
	assert.Equal(t, []Cell{{X: 2, Y: 2}}, s.Treasures)
	assert.Equal(t, []Cell{{X: 3, Y: 3}}, s.Traps)
}

func TestNewValidatesLayout(t *testing.T) {
	tests := []struct {
		name string
		c    Config
		err  error
	}{
		{"too small", Config{Width: 1, Height: 5}, ErrNotBigEnoughDimension},
		{"out of grid", Config{Treasures: []Cell{{X: 10, Y: 0}}}, ErrInvalidLayout},
		{"on spawn", Config{Traps: []Cell{{}}}, ErrInvalidLayout},
		{"overlap", Config{Treasures: []Cell{{X: 1, Y: 1}}, Traps: []Cell{{X: 1, Y: 1}}}, ErrInvalidLayout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.c)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestRandomLayout(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	treasures, traps, err := RandomLayout(4, 4, LayoutModel{Treasures: 5, Traps: 3}, r)
	require.NoError(t, err)
	assert.Len(t, treasures, 5)
	assert.Len(t, traps, 3)
	assert.NoError(t, ValidateLayout(4, 4, treasures, traps))

	_, _, err = RandomLayout(2, 2, LayoutModel{Treasures: 3, Traps: 1}, r)
	assert.ErrorIs(t, err, ErrInvalidLayout)
}

func TestParseDirection(t *testing.T) {
	for in, want := range map[string]Direction{"W": North, "a": West, "s": South, "D": East} {
		d, err := ParseDirection(in)
		require.NoError(t, err)
		assert.Equal(t, want, d)
	}

	for _, in := range []string{"", "X", "WA"} {
		_, err := ParseDirection(in)
		assert.ErrorIs(t, err, ErrInvalidDirection)
	}
}
