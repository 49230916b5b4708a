package game

import (
	"fmt"
	"math/rand"
)

// LayoutModel defines how many treasures and traps RandomLayout scatters.
type LayoutModel struct {
	Treasures int
	Traps     int
}

// RandomLayout places treasures and traps on distinct random cells, never on
// the spawn cell. r may be nil to use the package-level source.
func RandomLayout(width, height int, m LayoutModel, r *rand.Rand) ([]Cell, []Cell, error) {
	free := width*height - 1
	if m.Treasures < 0 || m.Traps < 0 || m.Treasures+m.Traps > free {
		return nil, nil, fmt.Errorf("%w: %d treasures and %d traps do not fit %dx%d", ErrInvalidLayout, m.Treasures, m.Traps, width, height)
	}

	intn := rand.Intn
	if r != nil {
		intn = r.Intn
	}

	// Shuffle the non-spawn cells and take a prefix.
	cells := make([]Cell, 0, free)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if x == 0 && y == 0 {
				continue
			}
			cells = append(cells, Cell{X: x, Y: y})
		}
	}
	for i := len(cells) - 1; i > 0; i-- {
		j := intn(i + 1)
		cells[i], cells[j] = cells[j], cells[i]
	}

	treasures := append([]Cell(nil), cells[:m.Treasures]...)
	traps := append([]Cell(nil), cells[m.Treasures:m.Treasures+m.Traps]...)
	return treasures, traps, nil
}
