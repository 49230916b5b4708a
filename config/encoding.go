package config

import (
	"fmt"

	"github.com/beka-birhanu/vinom-treasure/game"
	pb "github.com/beka-birhanu/vinom-treasure/game/pb_encoder"
	text "github.com/beka-birhanu/vinom-treasure/game/text_encoder"
)

// NewEncoder returns the wire codec named by encoding.
func NewEncoder(encoding string) (game.Encoder, error) {
	switch encoding {
	case EncodingText, "":
		return &text.Text{}, nil
	case EncodingBinary:
		return &pb.Protobuf{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown wire encoding %q", ErrInvalidValue, encoding)
	}
}
