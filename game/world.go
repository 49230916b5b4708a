package game

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
)

// Game-related errors.
var (
	ErrCapacityExceeded      = errors.New("player capacity exceeded")
	ErrPlayerNotFound        = errors.New("player not found")
	ErrNotBigEnoughDimension = errors.New("dimension is not big enough")
	ErrInvalidLayout         = errors.New("invalid world layout")
)

// Game constants.
const (
	DefaultPlayerCap = 3
	DefaultWidth     = 10
	DefaultHeight    = 10
	DefaultSeconds   = 60

	TreasureReward = 10

	minDimension = 2
)

// Config describes the initial world.
type Config struct {
	Width        int
	Height       int
	PlayerCap    int
	Seconds      int
	Treasures    []Cell
	Traps        []Cell
	FreezeAtZero bool // ignore moves once the timer has run out
}

// MoveOutcome reports what a move did.
type MoveOutcome struct {
	Player   PlayerState
	Treasure bool
	Trap     bool
}

// ScoreChanged reports whether the move altered the score.
func (o MoveOutcome) ScoreChanged() bool {
	return o.Treasure || o.Trap
}

// World is the single authoritative game state.
// Players spawn at (0, 0); treasures and traps are consumed on first contact.
type World struct {
	width         int
	height        int
	capacity      int
	players       map[PlayerID]*PlayerState
	treasures     map[Cell]struct{}
	traps         map[Cell]struct{}
	timeRemaining int
	seconds       int
	maxScore      int
	freezeAtZero  bool
	sync.RWMutex
}

// New creates a world from c. Zero values fall back to the game defaults.
func New(c Config) (*World, error) {
	if c.Width == 0 {
		c.Width = DefaultWidth
	}
	if c.Height == 0 {
		c.Height = DefaultHeight
	}
	if c.PlayerCap <= 0 {
		c.PlayerCap = DefaultPlayerCap
	}
	if c.Seconds <= 0 {
		c.Seconds = DefaultSeconds
	}

	if c.Width < minDimension || c.Height < minDimension {
		return nil, ErrNotBigEnoughDimension
	}

	if err := ValidateLayout(c.Width, c.Height, c.Treasures, c.Traps); err != nil {
		return nil, err
	}

	w := &World{
		width:         c.Width,
		height:        c.Height,
		capacity:      c.PlayerCap,
		players:       make(map[PlayerID]*PlayerState),
		treasures:     make(map[Cell]struct{}, len(c.Treasures)),
		traps:         make(map[Cell]struct{}, len(c.Traps)),
		timeRemaining: c.Seconds,
		seconds:       c.Seconds,
		maxScore:      TreasureReward * len(c.Treasures),
		freezeAtZero:  c.FreezeAtZero,
	}
	for _, t := range c.Treasures {
		w.treasures[t] = struct{}{}
	}
	for _, t := range c.Traps {
		w.traps[t] = struct{}{}
	}

	return w, nil
}

// ValidateLayout checks that every cell is inside the grid, that treasures and
// traps are disjoint and that nothing sits on the spawn cell.
func ValidateLayout(width, height int, treasures, traps []Cell) error {
	seen := make(map[Cell]string)
	check := func(kind string, cells []Cell) error {
		for _, c := range cells {
			if !inBound(width, height, c) {
				return fmt.Errorf("%w: %s %s is out of the grid", ErrInvalidLayout, kind, c)
			}
			if c == (Cell{}) {
				return fmt.Errorf("%w: %s on the spawn cell", ErrInvalidLayout, kind)
			}
			if other, ok := seen[c]; ok {
				return fmt.Errorf("%w: %s %s already holds a %s", ErrInvalidLayout, kind, c, other)
			}
			seen[c] = kind
		}
		return nil
	}

	if err := check("treasure", treasures); err != nil {
		return err
	}
	return check("trap", traps)
}

func inBound(width, height int, c Cell) bool {
	return c.X >= 0 && c.X < width && c.Y >= 0 && c.Y < height
}

// Width returns the number of columns.
func (w *World) Width() int { return w.width }

// Height returns the number of rows.
func (w *World) Height() int { return w.height }

// ApplyConnect admits a new player at (0, 0) with the lowest free id.
// It fails with ErrCapacityExceeded once the cap is reached.
func (w *World) ApplyConnect() (PlayerID, error) {
	w.Lock()
	defer w.Unlock()

	if len(w.players) >= w.capacity {
		return 0, ErrCapacityExceeded
	}

	for id := PlayerID(1); int(id) <= w.capacity; id++ {
		if _, taken := w.players[id]; !taken {
			w.players[id] = &PlayerState{}
			return id, nil
		}
	}

	return 0, ErrCapacityExceeded
}

// RemovePlayer drops the player's state, freeing the id for reuse.
func (w *World) RemovePlayer(id PlayerID) bool {
	w.Lock()
	defer w.Unlock()

	if _, ok := w.players[id]; !ok {
		return false
	}
	delete(w.players, id)
	return true
}

// ApplyMove moves the player one cell, clamping at the edges, then resolves
// collision with a treasure (+10, consumed) or a trap (score reset, consumed).
func (w *World) ApplyMove(id PlayerID, d Direction) (MoveOutcome, error) {
	if !d.Valid() {
		return MoveOutcome{}, ErrInvalidDirection
	}

	w.Lock()
	defer w.Unlock()

	p, ok := w.players[id]
	if !ok {
		return MoveOutcome{}, ErrPlayerNotFound
	}

	if w.freezeAtZero && w.timeRemaining == 0 {
		return MoveOutcome{Player: *p}, nil
	}

	dx, dy := d.delta()
	p.X = clamp(p.X+dx, 0, w.width-1)
	p.Y = clamp(p.Y+dy, 0, w.height-1)

	outcome := MoveOutcome{}
	here := Cell{X: p.X, Y: p.Y}
	if _, ok := w.treasures[here]; ok {
		p.Score += TreasureReward
		delete(w.treasures, here)
		outcome.Treasure = true
	} else if _, ok := w.traps[here]; ok {
		p.Score = 0
		delete(w.traps, here)
		outcome.Trap = true
	}

	outcome.Player = *p
	return outcome, nil
}

// Tick decrements the countdown, saturating at zero.
func (w *World) Tick() {
	w.Lock()
	defer w.Unlock()

	if w.timeRemaining > 0 {
		w.timeRemaining--
	}
}

// TimeRemaining returns the countdown in seconds.
func (w *World) TimeRemaining() int {
	w.RLock()
	defer w.RUnlock()
	return w.timeRemaining
}

// Player returns a copy of the player's state.
func (w *World) Player(id PlayerID) (PlayerState, bool) {
	w.RLock()
	defer w.RUnlock()

	p, ok := w.players[id]
	if !ok {
		return PlayerState{}, false
	}
	return *p, true
}

// Score returns the player's current score.
func (w *World) Score(id PlayerID) (int, error) {
	p, ok := w.Player(id)
	if !ok {
		return 0, ErrPlayerNotFound
	}
	return p.Score, nil
}

// PlayerCount returns the number of admitted players.
func (w *World) PlayerCount() int {
	w.RLock()
	defer w.RUnlock()
	return len(w.players)
}

// Snapshot creates a copy of the current state suitable for broadcasting.
func (w *World) Snapshot() *Snapshot {
	w.RLock()
	defer w.RUnlock()

	s := &Snapshot{TimeRemaining: w.timeRemaining, Players: make([]PlayerSnapshot, 0, len(w.players))}
	for _, id := range slices.Sorted(maps.Keys(w.players)) {
		p := w.players[id]
		s.Players = append(s.Players, PlayerSnapshot{ID: id, X: p.X, Y: p.Y, Score: p.Score})
	}
	s.Treasures = sortedCells(w.treasures)
	s.Traps = sortedCells(w.traps)
	return s
}

// WorstCaseSnapshot returns the largest snapshot the world can still produce:
// every player slot taken, each player on the far corner holding every
// treasure's points, the countdown at its start and the layout untouched.
func (w *World) WorstCaseSnapshot() *Snapshot {
	w.RLock()
	defer w.RUnlock()

	s := &Snapshot{TimeRemaining: w.seconds}
	for id := PlayerID(1); int(id) <= w.capacity; id++ {
		s.Players = append(s.Players, PlayerSnapshot{ID: id, X: w.width - 1, Y: w.height - 1, Score: w.maxScore})
	}
	s.Treasures = sortedCells(w.treasures)
	s.Traps = sortedCells(w.traps)
	return s
}

func sortedCells(set map[Cell]struct{}) []Cell {
	cells := make([]Cell, 0, len(set))
	for c := range set {
		cells = append(cells, c)
	}
	slices.SortFunc(cells, func(a, b Cell) int {
		if a.Y != b.Y {
			return a.Y - b.Y
		}
		return a.X - b.X
	})
	return cells
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
