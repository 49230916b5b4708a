package pb

import (
	"github.com/beka-birhanu/vinom-treasure/game"
	"google.golang.org/protobuf/encoding/protowire"
)

// GameState field numbers.
const (
	stateTime     protowire.Number = 1
	statePlayer   protowire.Number = 2
	stateTreasure protowire.Number = 3
	stateTrap     protowire.Number = 4
)

// Player field numbers.
const (
	playerID    protowire.Number = 1
	playerX     protowire.Number = 2
	playerY     protowire.Number = 3
	playerScore protowire.Number = 4
)

// Cell field numbers.
const (
	cellX protowire.Number = 1
	cellY protowire.Number = 2
)

func marshalGameState(s *game.Snapshot) []byte {
	var b []byte
	b = appendSint(b, stateTime, s.TimeRemaining)
	for _, p := range s.Players {
		var m []byte
		m = appendVarint(m, playerID, uint64(p.ID))
		m = appendSint(m, playerX, p.X)
		m = appendSint(m, playerY, p.Y)
		m = appendSint(m, playerScore, p.Score)
		b = appendMessage(b, statePlayer, m)
	}
	for _, c := range s.Treasures {
		b = appendMessage(b, stateTreasure, marshalCell(c))
	}
	for _, c := range s.Traps {
		b = appendMessage(b, stateTrap, marshalCell(c))
	}
	return b
}

func marshalCell(c game.Cell) []byte {
	var m []byte
	m = appendSint(m, cellX, c.X)
	return appendSint(m, cellY, c.Y)
}

// unmarshalGameState stops at the first bad field and returns what it
// decoded up to there along with the error.
func unmarshalGameState(b []byte) (*game.Snapshot, error) {
	s := &game.Snapshot{}
	err := walk(b, func(num protowire.Number, typ protowire.Type, v []byte) (int, error) {
		switch num {
		case stateTime:
			t, n, err := consumeSint(typ, v)
			s.TimeRemaining = t
			return n, err
		case statePlayer:
			m, n, err := consumeMessage(typ, v)
			if err != nil {
				return 0, err
			}
			p, err := unmarshalPlayer(m)
			if err != nil {
				return 0, err
			}
			s.Players = append(s.Players, p)
			return n, nil
		case stateTreasure, stateTrap:
			m, n, err := consumeMessage(typ, v)
			if err != nil {
				return 0, err
			}
			c, err := unmarshalCell(m)
			if err != nil {
				return 0, err
			}
			if num == stateTreasure {
				s.Treasures = append(s.Treasures, c)
			} else {
				s.Traps = append(s.Traps, c)
			}
			return n, nil
		}
		return 0, nil
	})
	return s, err
}

func unmarshalPlayer(b []byte) (game.PlayerSnapshot, error) {
	var p game.PlayerSnapshot
	err := walk(b, func(num protowire.Number, typ protowire.Type, v []byte) (int, error) {
		switch num {
		case playerID:
			x, n, err := consumeVarint(typ, v)
			p.ID = game.PlayerID(x)
			return n, err
		case playerX:
			x, n, err := consumeSint(typ, v)
			p.X = x
			return n, err
		case playerY:
			y, n, err := consumeSint(typ, v)
			p.Y = y
			return n, err
		case playerScore:
			sc, n, err := consumeSint(typ, v)
			p.Score = sc
			return n, err
		}
		return 0, nil
	})
	return p, err
}

func unmarshalCell(b []byte) (game.Cell, error) {
	var c game.Cell
	err := walk(b, func(num protowire.Number, typ protowire.Type, v []byte) (int, error) {
		switch num {
		case cellX:
			x, n, err := consumeSint(typ, v)
			c.X = x
			return n, err
		case cellY:
			y, n, err := consumeSint(typ, v)
			c.Y = y
			return n, err
		}
		return 0, nil
	})
	return c, err
}
