// Package tui draws the game grid in the terminal and turns key presses into
// client input.
package tui

import (
	"fmt"
	"sync"
	"time"

	"github.com/beka-birhanu/vinom-treasure/client"
	"github.com/beka-birhanu/vinom-treasure/game"
	"github.com/gdamore/tcell/v2"
)

// Grid glyphs.
const (
	GlyphSelf     = 'P'
	GlyphOther    = 'O'
	GlyphTreasure = 'T'
	GlyphTrap     = 'X'
	GlyphEmpty    = '.'
)

const (
	gridTop     = 2
	cellSpacing = 2
	eventQueue  = 16
)

var (
	_ client.InputSource = &Terminal{}
	_ client.Renderer    = &Terminal{}
)

var (
	styleDefault  = tcell.StyleDefault
	styleSelf     = tcell.StyleDefault.Foreground(tcell.ColorYellow).Bold(true)
	styleOther    = tcell.StyleDefault.Foreground(tcell.ColorAqua)
	styleTreasure = tcell.StyleDefault.Foreground(tcell.ColorGreen)
	styleTrap     = tcell.StyleDefault.Foreground(tcell.ColorRed)
	styleEmpty    = tcell.StyleDefault.Foreground(tcell.ColorGray)
)

// Terminal is a tcell screen acting as both input source and renderer.
type Terminal struct {
	screen tcell.Screen
	width  int
	height int
	events chan tcell.Event
	quit   chan struct{}
	once   sync.Once
}

// New initializes screen for a width x height grid and starts reading its events.
func New(screen tcell.Screen, width, height int) (*Terminal, error) {
	if err := screen.Init(); err != nil {
		return nil, err
	}
	screen.HideCursor()
	screen.Clear()

	t := &Terminal{
		screen: screen,
		width:  width,
		height: height,
		events: make(chan tcell.Event, eventQueue),
		quit:   make(chan struct{}),
	}
	go screen.ChannelEvents(t.events, t.quit)
	return t, nil
}

// PollInput waits up to timeout for a key that means something to the game.
// A closed screen reads as a quit.
func (t *Terminal) PollInput(timeout time.Duration) (client.Input, bool) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case ev, ok := <-t.events:
			if !ok {
				return client.Input{Quit: true}, true
			}
			switch ev := ev.(type) {
			case *tcell.EventKey:
				if in, ok := KeyIntent(ev); ok {
					return in, true
				}
			case *tcell.EventResize:
				t.screen.Sync()
			}
		case <-timer.C:
			return client.Input{}, false
		}
	}
}

// KeyIntent maps W/A/S/D and the arrow keys to moves, and Q, Esc or Ctrl-C to quit.
func KeyIntent(ev *tcell.EventKey) (client.Input, bool) {
	switch ev.Key() {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		return client.Input{Quit: true}, true
	case tcell.KeyUp:
		return client.Input{Direction: game.North}, true
	case tcell.KeyLeft:
		return client.Input{Direction: game.West}, true
	case tcell.KeyDown:
		return client.Input{Direction: game.South}, true
	case tcell.KeyRight:
		return client.Input{Direction: game.East}, true
	case tcell.KeyRune:
	default:
		return client.Input{}, false
	}

	r := ev.Rune()
	if r == 'q' || r == 'Q' {
		return client.Input{Quit: true}, true
	}
	d, err := game.ParseDirection(string(r))
	if err != nil {
		return client.Input{}, false
	}
	return client.Input{Direction: d}, true
}

// Render draws the header and the grid for snap, highlighting self.
func (t *Terminal) Render(snap *game.Snapshot, self game.PlayerID) {
	t.screen.Clear()

	if snap == nil {
		t.drawText(0, 0, styleDefault, "Waiting for the server...")
		t.screen.Show()
		return
	}

	score := 0
	if me, ok := snap.Player(self); ok {
		score = me.Score
	}
	t.drawText(0, 0, styleDefault, fmt.Sprintf("Time Remaining: %-5d Your Score: %d", snap.TimeRemaining, score))

	for y := 0; y < t.height; y++ {
		for x := 0; x < t.width; x++ {
			t.setCell(x, y, GlyphEmpty, styleEmpty)
		}
	}
	for _, c := range snap.Treasures {
		t.setCell(c.X, c.Y, GlyphTreasure, styleTreasure)
	}
	for _, c := range snap.Traps {
		t.setCell(c.X, c.Y, GlyphTrap, styleTrap)
	}
	// Self is drawn last so it is never hidden by another player on the same cell.
	for _, p := range snap.Players {
		if p.ID != self {
			t.setCell(p.X, p.Y, GlyphOther, styleOther)
		}
	}
	if me, ok := snap.Player(self); ok {
		t.setCell(me.X, me.Y, GlyphSelf, styleSelf)
	}

	t.drawText(0, gridTop+t.height+1, styleDefault, "W/A/S/D to move, Q to quit")
	t.screen.Show()
}

func (t *Terminal) setCell(x, y int, r rune, style tcell.Style) {
	if x < 0 || x >= t.width || y < 0 || y >= t.height {
		return
	}
	t.screen.SetContent(x*cellSpacing, gridTop+y, r, nil, style)
}

func (t *Terminal) drawText(x, y int, style tcell.Style, s string) {
	for _, r := range s {
		t.screen.SetContent(x, y, r, nil, style)
		x++
	}
}

// Close stops reading events and restores the terminal.
func (t *Terminal) Close() {
	t.once.Do(func() {
		close(t.quit)
		t.screen.Fini()
	})
}
