package model

import "time"

type SubmitStatus string

const (
	SubmitSuccess      SubmitStatus = "success"
	SubmitFail         SubmitStatus = "fail"
	SubmitGateRejected SubmitStatus = "gate_rejected"
)

const (
	MsgSolved            = "Congratulations! You have solved this problem!"
	MsgIncorrect         = "Your flag is incorrect."
	MsgContestEnded      = "This contest has ended."
	MsgContestNotStarted = "This contest has not started yet."
)

// SubmitResult is the outcome of one flag submission. A wrong flag is a
// normal outcome, not an error.
type SubmitResult struct {
	Status  SubmitStatus `json:"status"`
	Message string       `json:"message"`
	// Credited is true only when this submission granted the solve.
	Credited bool `json:"-"`
}

// Submission is the append-only audit record of an attempt.
type Submission struct {
	ID        string    `json:"id"`
	Date      time.Time `json:"date"`
	UserID    int64     `json:"user_id"`
	Username  string    `json:"username,omitempty"`
	ProblemID string    `json:"problem_id"`
	ContestID *string   `json:"contest_id,omitempty"`
	Correct   bool      `json:"correct"`
}

type SubmissionFilter struct {
	Username  string
	ProblemID string
	ContestID string
	Correct   *bool
	Limit     int
}
