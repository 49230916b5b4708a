package config

import (
	"fmt"
	"math/rand"
	"os"

	"github.com/beka-birhanu/vinom-treasure/game"
	"gopkg.in/yaml.v3"
)

// Layout is the YAML description of a world.
//
//	width: 10
//	height: 10
//	seconds: 90
//	treasures: [[2, 3], [7, 1]]
//	traps: [[4, 4]]
type Layout struct {
	Width     int      `yaml:"width"`
	Height    int      `yaml:"height"`
	Seconds   int      `yaml:"seconds"`
	Treasures [][2]int `yaml:"treasures"`
	Traps     [][2]int `yaml:"traps"`
}

// LoadLayout reads and validates a layout file.
func LoadLayout(path string) (*Layout, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseLayout(b)
}

// ParseLayout decodes and validates a YAML layout.
func ParseLayout(b []byte) (*Layout, error) {
	var l Layout
	if err := yaml.Unmarshal(b, &l); err != nil {
		return nil, fmt.Errorf("%w: %w", game.ErrInvalidLayout, err)
	}
	if l.Width < 0 || l.Height < 0 || l.Seconds < 0 {
		return nil, fmt.Errorf("%w: negative dimension or duration", game.ErrInvalidLayout)
	}

	width, height := l.Width, l.Height
	if width == 0 {
		width = game.DefaultWidth
	}
	if height == 0 {
		height = game.DefaultHeight
	}
	if err := game.ValidateLayout(width, height, cells(l.Treasures), cells(l.Traps)); err != nil {
		return nil, err
	}
	return &l, nil
}

func cells(pairs [][2]int) []game.Cell {
	if len(pairs) == 0 {
		return nil
	}
	out := make([]game.Cell, len(pairs))
	for i, p := range pairs {
		out[i] = game.Cell{X: p[0], Y: p[1]}
	}
	return out
}

// WorldConfig builds the world configuration. A layout file, when set,
// overrides the grid size, duration and object placement from the environment;
// otherwise treasures and traps are placed at random using r.
func (c Server) WorldConfig(r *rand.Rand) (game.Config, error) {
	wc := game.Config{
		Width:        c.GridWidth,
		Height:       c.GridHeight,
		PlayerCap:    c.PlayerCap,
		Seconds:      c.GameSeconds,
		FreezeAtZero: c.FreezeAtZero,
	}

	if c.WorldLayout != "" {
		l, err := LoadLayout(c.WorldLayout)
		if err != nil {
			return game.Config{}, err
		}
		if l.Width > 0 {
			wc.Width = l.Width
		}
		if l.Height > 0 {
			wc.Height = l.Height
		}
		if l.Seconds > 0 {
			wc.Seconds = l.Seconds
		}
		wc.Treasures = cells(l.Treasures)
		wc.Traps = cells(l.Traps)
		return wc, nil
	}

	treasures, traps, err := game.RandomLayout(wc.Width, wc.Height, game.LayoutModel{
		Treasures: c.TreasureCount,
		Traps:     c.TrapCount,
	}, r)
	if err != nil {
		return game.Config{}, err
	}
	wc.Treasures = treasures
	wc.Traps = traps
	return wc, nil
}
