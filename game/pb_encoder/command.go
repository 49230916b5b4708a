package pb

import (
	"github.com/beka-birhanu/vinom-treasure/game"
	"google.golang.org/protobuf/encoding/protowire"
)

// Command field numbers.
const (
	commandSequence  protowire.Number = 1
	commandSequenced protowire.Number = 2
	commandKind      protowire.Number = 3
	commandDirection protowire.Number = 4
)

func marshalCommand(c game.Command) []byte {
	var b []byte
	b = appendVarint(b, commandSequence, uint64(c.Sequence))
	b = appendVarint(b, commandSequenced, protowire.EncodeBool(c.Sequenced))
	b = appendVarint(b, commandKind, uint64(c.Kind))
	if c.Kind == game.CommandMove {
		b = appendVarint(b, commandDirection, uint64(c.Direction))
	}
	return b
}

func unmarshalCommand(b []byte) (game.Command, error) {
	var c game.Command
	err := walk(b, func(num protowire.Number, typ protowire.Type, v []byte) (int, error) {
		switch num {
		case commandSequence, commandSequenced, commandKind, commandDirection:
		default:
			return 0, nil
		}

		x, n, err := consumeVarint(typ, v)
		if err != nil {
			return 0, err
		}

		switch num {
		case commandSequence:
			c.Sequence = uint32(x)
		case commandSequenced:
			c.Sequenced = protowire.DecodeBool(x)
		case commandKind:
			c.Kind = game.CommandKind(x)
		case commandDirection:
			c.Direction = game.Direction(x)
		}
		return n, nil
	})
	if err != nil {
		return game.Command{}, err
	}

	switch c.Kind {
	case game.CommandConnect, game.CommandDisconnect:
	case game.CommandMove:
		if !c.Direction.Valid() {
			return game.Command{}, game.ErrInvalidDirection
		}
	default:
		c.Kind = game.CommandUnknown
	}

	return c, nil
}
