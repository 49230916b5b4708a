// Package pb implements a compact binary Encoder using the protobuf wire
// format. Every datagram is a Packet message carrying exactly one of a
// command, an acknowledgment or a game state.
package pb

import (
	"errors"
	"fmt"

	"github.com/beka-birhanu/vinom-treasure/game"
	"google.golang.org/protobuf/encoding/protowire"
)

var _ game.Encoder = &Protobuf{}

var (
	errUnexpectedWireType = errors.New("unexpected wire type")
	errMissingBody        = errors.New("packet carries no body")
)

// Packet field numbers.
const (
	packetCommand protowire.Number = 1
	packetAck     protowire.Number = 2
	packetState   protowire.Number = 3
)

type Protobuf struct{}

// MarshalCommand implements game.Encoder.
func (p *Protobuf) MarshalCommand(c game.Command) ([]byte, error) {
	if c.Kind == game.CommandMove && !c.Direction.Valid() {
		return nil, game.ErrInvalidDirection
	}
	if !c.Sequenced && c.Kind != game.CommandConnect {
		return nil, fmt.Errorf("%w: only connect may be unsequenced", game.ErrMalformedMessage)
	}

	b := protowire.AppendTag(nil, packetCommand, protowire.BytesType)
	return protowire.AppendBytes(b, marshalCommand(c)), nil
}

// UnmarshalCommand implements game.Encoder.
func (p *Protobuf) UnmarshalCommand(b []byte) (game.Command, error) {
	body, err := packetBody(b, packetCommand, protowire.BytesType)
	if err != nil {
		return game.Command{}, fmt.Errorf("%w: %w", game.ErrMalformedMessage, err)
	}

	c, err := unmarshalCommand(body)
	if err != nil {
		return game.Command{}, fmt.Errorf("%w: %w", game.ErrMalformedMessage, err)
	}
	return c, nil
}

// MarshalAck implements game.Encoder.
func (p *Protobuf) MarshalAck(seq uint32) ([]byte, error) {
	b := protowire.AppendTag(nil, packetAck, protowire.VarintType)
	return protowire.AppendVarint(b, uint64(seq)), nil
}

// UnmarshalAck implements game.Encoder.
func (p *Protobuf) UnmarshalAck(b []byte) (uint32, error) {
	body, err := packetBody(b, packetAck, protowire.VarintType)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", game.ErrMalformedMessage, err)
	}

	v, n := protowire.ConsumeVarint(body)
	if n < 0 {
		return 0, fmt.Errorf("%w: %w", game.ErrMalformedMessage, protowire.ParseError(n))
	}
	return uint32(v), nil
}

// MarshalGameState implements game.Encoder.
func (p *Protobuf) MarshalGameState(s *game.Snapshot) ([]byte, error) {
	b := protowire.AppendTag(nil, packetState, protowire.BytesType)
	return protowire.AppendBytes(b, marshalGameState(s)), nil
}

// UnmarshalGameState implements game.Encoder.
func (p *Protobuf) UnmarshalGameState(b []byte) (*game.Snapshot, error) {
	body, err := packetBody(b, packetState, protowire.BytesType)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", game.ErrMalformedSnapshot, err)
	}

	s, err := unmarshalGameState(body)
	if err != nil {
		return s, fmt.Errorf("%w: %w", game.ErrMalformedSnapshot, err)
	}
	return s, nil
}

// packetBody returns the raw value of the expected packet field. For a
// bytes field that is the embedded message, for a varint the varint itself.
func packetBody(b []byte, want protowire.Number, wantType protowire.Type) ([]byte, error) {
	var body []byte
	err := walk(b, func(num protowire.Number, typ protowire.Type, v []byte) (int, error) {
		if num != want {
			return 0, nil
		}
		if typ != wantType {
			return 0, fmt.Errorf("%w: field %d", errUnexpectedWireType, num)
		}

		switch typ {
		case protowire.BytesType:
			m, n := protowire.ConsumeBytes(v)
			if n < 0 {
				return 0, protowire.ParseError(n)
			}
			body = m
			return n, nil
		default:
			n := protowire.ConsumeFieldValue(num, typ, v)
			if n < 0 {
				return 0, protowire.ParseError(n)
			}
			body = v[:n]
			return n, nil
		}
	})
	if err != nil {
		return nil, err
	}
	if body == nil {
		return nil, errMissingBody
	}
	return body, nil
}

// fieldFunc handles one field whose tag has already been consumed. It returns
// the number of value bytes it consumed, or zero to have the field skipped.
type fieldFunc func(num protowire.Number, typ protowire.Type, v []byte) (int, error)

func walk(b []byte, fn fieldFunc) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]

		m, err := fn(num, typ, b)
		if err != nil {
			return err
		}
		if m == 0 {
			m = protowire.ConsumeFieldValue(num, typ, b)
		}
		if m < 0 {
			return protowire.ParseError(m)
		}
		b = b[m:]
	}
	return nil
}

func consumeVarint(typ protowire.Type, v []byte) (uint64, int, error) {
	if typ != protowire.VarintType {
		return 0, 0, errUnexpectedWireType
	}
	x, n := protowire.ConsumeVarint(v)
	if n < 0 {
		return 0, 0, protowire.ParseError(n)
	}
	return x, n, nil
}

func consumeSint(typ protowire.Type, v []byte) (int, int, error) {
	x, n, err := consumeVarint(typ, v)
	return int(protowire.DecodeZigZag(x)), n, err
}

func consumeMessage(typ protowire.Type, v []byte) ([]byte, int, error) {
	if typ != protowire.BytesType {
		return nil, 0, errUnexpectedWireType
	}
	m, n := protowire.ConsumeBytes(v)
	if n < 0 {
		return nil, 0, protowire.ParseError(n)
	}
	return m, n, nil
}

func appendSint(b []byte, num protowire.Number, v int) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, protowire.EncodeZigZag(int64(v)))
}

func appendVarint(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendMessage(b []byte, num protowire.Number, m []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, m)
}
