// Package gameapi exposes the running game over HTTP.
package gameapi

import (
	"time"

	"github.com/beka-birhanu/vinom-treasure/service"
	"github.com/beka-birhanu/vinom-treasure/service/i"
)

// LeaderboardQuery selects how many leaderboard rows to return. Zero means all.
type LeaderboardQuery struct {
	Limit int `form:"limit" binding:"omitempty,min=0,max=100"`
}

// LeaderboardResponse lists players by descending score.
type LeaderboardResponse struct {
	Entries []i.ScoreEntry `json:"entries"`
}

// SessionResponse describes one admitted session.
type SessionResponse struct {
	ID               string    `json:"id"`
	PlayerID         int       `json:"playerId"`
	Endpoint         string    `json:"endpoint"`
	LastSeenSequence uint32    `json:"lastSeenSequence"`
	LastSeenAt       time.Time `json:"lastSeenAt"`
}

// SessionsResponse lists admitted sessions ordered by player id.
type SessionsResponse struct {
	Sessions []SessionResponse `json:"sessions"`
}

func newSessionResponse(s service.Session) SessionResponse {
	return SessionResponse{
		ID:               s.ID.String(),
		PlayerID:         int(s.PlayerID),
		Endpoint:         s.Endpoint,
		LastSeenSequence: s.LastSeenSequence,
		LastSeenAt:       s.LastSeenAt,
	}
}
