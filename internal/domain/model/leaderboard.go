package model

import "time"

// ScoreboardEntry is one ranked row of a contest scoreboard. Ties on
// points are broken by the earlier last accepted submission.
type ScoreboardEntry struct {
	Rank     int        `json:"rank"`
	UserID   int64      `json:"user_id"`
	Username string     `json:"username"`
	Points   int        `json:"points"`
	LastAC   *time.Time `json:"last_ac,omitempty"`
}
