package model

// Problem is either a standalone problem (ContestID empty) or a problem
// bound to a contest under the (ContestID, ID) key.
type Problem struct {
	ID         string `json:"id"`
	ContestID  string `json:"contest_id,omitempty"`
	Name       string `json:"name"`
	PointValue int    `json:"point_value"`
	Category   string `json:"category"`
	Flag       string `json:"flag,omitempty"` // cleared for non-admin views
	Draft      bool   `json:"draft"`

	Description string `json:"description,omitempty"`
	Hints       string `json:"hints,omitempty"`
	Solved      bool   `json:"solved"`
}

func (p *Problem) InContest() bool {
	return p.ContestID != ""
}

// CheckFlag compares a guess to the expected flag exactly.
func (p *Problem) CheckFlag(guess string) bool {
	return guess == p.Flag
}
