// Package text implements the delimited text wire format:
//
//	client -> server   connect | <seq>:connect | <seq>:MOVE:<W|A|S|D> | <seq>:disconnect
//	server -> client   ACK:<seq>
//	server -> client   GAME_STATE|TIME:<n>|P<id>:(<x>, <y>, <score>)|...|<cells>|<cells>
//
// where <cells> is a comma-joined list of "(x, y)" tuples and may be empty.
package text

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/beka-birhanu/vinom-treasure/game"
)

var _ game.Encoder = &Text{}

const (
	connectPayload    = "connect"
	disconnectPayload = "disconnect"
	movePrefix        = "MOVE:"
	ackPrefix         = "ACK:"
	stateHeader       = "GAME_STATE"
	timePrefix        = "TIME:"

	segmentSep = "|"
	fieldSep   = ":"

	minStateSegments = 4
)

// Text is the default human readable Encoder.
type Text struct{}

// MarshalCommand implements game.Encoder.
func (t *Text) MarshalCommand(c game.Command) ([]byte, error) {
	var payload string
	switch c.Kind {
	case game.CommandConnect:
		payload = connectPayload
	case game.CommandDisconnect:
		payload = disconnectPayload
	case game.CommandMove:
		if !c.Direction.Valid() {
			return nil, game.ErrInvalidDirection
		}
		payload = movePrefix + c.Direction.String()
	default:
		return nil, fmt.Errorf("%w: unknown command kind %d", game.ErrMalformedMessage, c.Kind)
	}

	if !c.Sequenced {
		if c.Kind != game.CommandConnect {
			return nil, fmt.Errorf("%w: only connect may be unsequenced", game.ErrMalformedMessage)
		}
		return []byte(payload), nil
	}

	return []byte(strconv.FormatUint(uint64(c.Sequence), 10) + fieldSep + payload), nil
}

// UnmarshalCommand implements game.Encoder.
// A well-formed envelope with an unrecognised payload decodes as CommandUnknown.
func (t *Text) UnmarshalCommand(b []byte) (game.Command, error) {
	msg := string(b)
	if msg == connectPayload {
		return game.Command{Kind: game.CommandConnect}, nil
	}

	rawSeq, payload, found := strings.Cut(msg, fieldSep)
	if !found {
		return game.Command{}, fmt.Errorf("%w: missing sequence separator in %q", game.ErrMalformedMessage, msg)
	}

	seq, err := strconv.ParseUint(rawSeq, 10, 32)
	if err != nil {
		return game.Command{}, fmt.Errorf("%w: invalid sequence %q", game.ErrMalformedMessage, rawSeq)
	}

	c := game.Command{Sequence: uint32(seq), Sequenced: true}
	switch {
	case payload == connectPayload:
		c.Kind = game.CommandConnect
	case payload == disconnectPayload:
		c.Kind = game.CommandDisconnect
	case strings.HasPrefix(payload, movePrefix):
		d, err := game.ParseDirection(strings.TrimPrefix(payload, movePrefix))
		if err != nil {
			return game.Command{}, fmt.Errorf("%w: %w", game.ErrMalformedMessage, err)
		}
		c.Kind = game.CommandMove
		c.Direction = d
	default:
		c.Kind = game.CommandUnknown
	}

	return c, nil
}

// MarshalAck implements game.Encoder.
func (t *Text) MarshalAck(seq uint32) ([]byte, error) {
	return []byte(ackPrefix + strconv.FormatUint(uint64(seq), 10)), nil
}

// UnmarshalAck implements game.Encoder.
func (t *Text) UnmarshalAck(b []byte) (uint32, error) {
	raw, ok := strings.CutPrefix(string(b), ackPrefix)
	if !ok {
		return 0, fmt.Errorf("%w: not an acknowledgment", game.ErrMalformedMessage)
	}

	seq, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid acknowledged sequence %q", game.ErrMalformedMessage, raw)
	}
	return uint32(seq), nil
}

// MarshalGameState implements game.Encoder.
func (t *Text) MarshalGameState(s *game.Snapshot) ([]byte, error) {
	segments := make([]string, 0, minStateSegments+len(s.Players))
	segments = append(segments, stateHeader, timePrefix+strconv.Itoa(s.TimeRemaining))
	for _, p := range s.Players {
		segments = append(segments, fmt.Sprintf("P%d:(%d, %d, %d)", p.ID, p.X, p.Y, p.Score))
	}
	segments = append(segments, joinCells(s.Treasures), joinCells(s.Traps))

	return []byte(strings.Join(segments, segmentSep)), nil
}

// UnmarshalGameState implements game.Encoder.
func (t *Text) UnmarshalGameState(b []byte) (*game.Snapshot, error) {
	segments := strings.Split(string(b), segmentSep)
	if len(segments) < minStateSegments || segments[0] != stateHeader {
		return nil, fmt.Errorf("%w: expected %s with at least %d segments", game.ErrMalformedSnapshot, stateHeader, minStateSegments)
	}

	p := &parser{}
	s := &game.Snapshot{}

	rawTime, ok := strings.CutPrefix(segments[1], timePrefix)
	if !ok {
		p.fail("time segment %q", segments[1])
	}
	s.TimeRemaining = p.atoi(rawTime)

	last := len(segments) - 2
	for _, seg := range segments[2:last] {
		if player, ok := p.player(seg); ok {
			s.Players = append(s.Players, player)
		}
	}

	s.Treasures = p.cells(segments[last])
	s.Traps = p.cells(segments[last+1])

	if p.err != nil {
		return s, p.err
	}
	return s, nil
}

func joinCells(cells []game.Cell) string {
	parts := make([]string, len(cells))
	for i, c := range cells {
		parts[i] = c.String()
	}
	return strings.Join(parts, ",")
}

// parser substitutes zero for unparsable numbers and keeps the first failure.
type parser struct {
	err error
}

func (p *parser) fail(format string, args ...any) {
	if p.err == nil {
		p.err = fmt.Errorf("%w: "+format, append([]any{game.ErrMalformedSnapshot}, args...)...)
	}
}

func (p *parser) atoi(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		p.fail("numeric field %q", s)
		return 0
	}
	return n
}

// player parses "P<id>:(<x>, <y>, <score>)".
func (p *parser) player(seg string) (game.PlayerSnapshot, bool) {
	body, ok := strings.CutPrefix(seg, "P")
	if !ok {
		p.fail("player segment %q", seg)
		return game.PlayerSnapshot{}, false
	}

	rawID, tuple, ok := strings.Cut(body, fieldSep)
	if !ok {
		p.fail("player segment %q", seg)
		return game.PlayerSnapshot{}, false
	}

	fields := p.tuple(tuple, 3)
	if fields == nil {
		return game.PlayerSnapshot{}, false
	}

	return game.PlayerSnapshot{
		ID:    game.PlayerID(p.atoi(rawID)),
		X:     p.atoi(fields[0]),
		Y:     p.atoi(fields[1]),
		Score: p.atoi(fields[2]),
	}, true
}

// cells parses "(x, y),(x, y)"; an empty segment is an empty list.
func (p *parser) cells(seg string) []game.Cell {
	if strings.TrimSpace(seg) == "" {
		return nil
	}

	var cells []game.Cell
	for _, raw := range strings.Split(seg, "),(") {
		fields := p.tuple(raw, 2)
		if fields == nil {
			continue
		}
		cells = append(cells, game.Cell{X: p.atoi(fields[0]), Y: p.atoi(fields[1])})
	}
	return cells
}

func (p *parser) tuple(raw string, arity int) []string {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "(")
	raw = strings.TrimSuffix(raw, ")")

	fields := strings.Split(raw, ",")
	if len(fields) != arity {
		p.fail("tuple %q", raw)
		return nil
	}
	return fields
}
