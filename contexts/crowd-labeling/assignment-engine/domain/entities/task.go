package entities

import "time"

type VoteDirection string

const (
	VoteYes VoteDirection = "yes"
	VoteNo  VoteDirection = "no"
)

func (d VoteDirection) Valid() bool {
	return d == VoteYes || d == VoteNo
}

// Task is one worker's recorded answer for one item under one criterion.
// Tasks are append-only; only answered tasks count toward tallies.
type Task struct {
	TaskID      int64
	JobID       int64
	WorkerID    int64
	ItemID      int64
	CriterionID int64
	Answered    bool
	Vote        VoteDirection
	CreatedAt   time.Time
}

// Counts reports whether the task contributes to the given direction's tally.
func (t Task) Counts(direction VoteDirection) bool {
	return t.Answered && t.Vote == direction
}
