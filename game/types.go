package game

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Wire and state errors.
var (
	ErrMalformedMessage  = errors.New("malformed message")
	ErrMalformedSnapshot = errors.New("malformed snapshot")
	ErrInvalidDirection  = errors.New("invalid direction")
)

// PlayerID is the stable identity assigned to an admitted endpoint.
type PlayerID int

// Cell is a grid coordinate.
type Cell struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// String renders the cell the way it appears on the wire.
func (c Cell) String() string {
	return fmt.Sprintf("(%d, %d)", c.X, c.Y)
}

// PlayerState is the authoritative position and score of one player.
type PlayerState struct {
	X     int
	Y     int
	Score int
}

// Direction is one of the four move intents, encoded by its key letter.
type Direction byte

const (
	North Direction = 'W'
	West  Direction = 'A'
	South Direction = 'S'
	East  Direction = 'D'
)

// ParseDirection accepts W, A, S or D in either case.
func ParseDirection(s string) (Direction, error) {
	if len(s) != 1 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDirection, s)
	}
	d := Direction(strings.ToUpper(s)[0])
	if !d.Valid() {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDirection, s)
	}
	return d, nil
}

// Valid reports whether d is one of the four known directions.
func (d Direction) Valid() bool {
	switch d {
	case North, West, South, East:
		return true
	}
	return false
}

// delta returns the (dx, dy) step of the direction.
func (d Direction) delta() (int, int) {
	switch d {
	case North:
		return 0, -1
	case West:
		return -1, 0
	case South:
		return 0, 1
	case East:
		return 1, 0
	}
	return 0, 0
}

func (d Direction) String() string {
	return string(rune(d))
}

// CommandKind classifies the payload of a client command.
type CommandKind int

const (
	CommandUnknown CommandKind = iota
	CommandConnect
	CommandMove
	CommandDisconnect
)

// Command is a decoded client to server message.
// Sequenced is false only for the bare handshake, which carries no sequence number.
type Command struct {
	Sequence  uint32
	Sequenced bool
	Kind      CommandKind
	Direction Direction
}

// NewMove builds a sequenced move command.
func NewMove(seq uint32, d Direction) Command {
	return Command{Sequence: seq, Sequenced: true, Kind: CommandMove, Direction: d}
}

// PlayerSnapshot is a player as carried by a state snapshot.
type PlayerSnapshot struct {
	ID    PlayerID `json:"id"`
	X     int      `json:"x"`
	Y     int      `json:"y"`
	Score int      `json:"score"`
}

// Snapshot is the full authoritative world state broadcast to every session.
// Players are ordered by ID, cells by row then column.
type Snapshot struct {
	TimeRemaining int              `json:"timeRemaining"`
	Players       []PlayerSnapshot `json:"players"`
	Treasures     []Cell           `json:"treasures"`
	Traps         []Cell           `json:"traps"`
}

// Clone returns a deep copy of s.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	return &Snapshot{
		TimeRemaining: s.TimeRemaining,
		Players:       slices.Clone(s.Players),
		Treasures:     slices.Clone(s.Treasures),
		Traps:         slices.Clone(s.Traps),
	}
}

// Player returns the snapshot entry for id.
func (s *Snapshot) Player(id PlayerID) (PlayerSnapshot, bool) {
	for _, p := range s.Players {
		if p.ID == id {
			return p, true
		}
	}
	return PlayerSnapshot{}, false
}

// Encoder converts commands, acknowledgments and snapshots to and from datagram payloads.
//
// UnmarshalCommand is strict: any malformed envelope yields ErrMalformedMessage.
// UnmarshalGameState is lenient: a record with bad fields returns whatever
// could be decoded together with an error wrapping ErrMalformedSnapshot. The
// text form substitutes zero for bad numeric fields; the protobuf form keeps
// the fields decoded before the first bad one. A nil snapshot means the record
// could not be used at all.
type Encoder interface {
	MarshalCommand(Command) ([]byte, error)
	UnmarshalCommand([]byte) (Command, error)
	MarshalAck(uint32) ([]byte, error)
	UnmarshalAck([]byte) (uint32, error)
	MarshalGameState(*Snapshot) ([]byte, error)
	UnmarshalGameState([]byte) (*Snapshot, error)
}
