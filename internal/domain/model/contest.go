package model

import "time"

type Contest struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	Start             time.Time `json:"start"`
	End               time.Time `json:"end"`
	ScoreboardVisible bool      `json:"scoreboard_visible"`
	Description       string    `json:"description,omitempty"`
}

func (c *Contest) Started(now time.Time) bool {
	return !now.Before(c.Start)
}

func (c *Contest) Ended(now time.Time) bool {
	return now.After(c.End)
}

// ContestList groups contests relative to the current instant.
type ContestList struct {
	Past    []Contest `json:"past"`
	Current []Contest `json:"current"`
	Future  []Contest `json:"future"`
}

// Participation is the per-contest aggregate of one user.
type Participation struct {
	ContestID string     `json:"contest_id"`
	UserID    int64      `json:"user_id"`
	Points    int        `json:"points"`
	LastAC    *time.Time `json:"last_ac,omitempty"`
}

// ContestView is what a participant sees when opening a contest.
type ContestView struct {
	Contest    Contest   `json:"contest"`
	Scoreboard bool      `json:"scoreboard"`
	Problems   []Problem `json:"problems"`
}
