package i

import (
	"context"

	"github.com/beka-birhanu/vinom-treasure/game"
)

// ScoreEntry is one row of the leaderboard.
type ScoreEntry struct {
	PlayerID game.PlayerID `json:"playerId"`
	Score    int           `json:"score"`
}

// Scoreboard mirrors live scores to an external store.
type Scoreboard interface {
	// Record sets the player's score.
	Record(ctx context.Context, id game.PlayerID, score int) error

	// Remove deletes the player from the board.
	Remove(ctx context.Context, id game.PlayerID) error

	// Top returns up to n entries ordered by descending score.
	Top(ctx context.Context, n int) ([]ScoreEntry, error)

	// Reset clears the board.
	Reset(ctx context.Context) error
}
