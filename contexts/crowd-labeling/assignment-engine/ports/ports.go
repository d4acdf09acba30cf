package ports

import (
	"context"
	"time"

	"crowdlabel/contexts/crowd-labeling/assignment-engine/domain/entities"
	"crowdlabel/internal/shared/events"
)

// VoteStore is the read contract the engine needs from the durable store of
// jobs, projects, criteria, items, tasks and finalized results. Every method
// must observe committed state at call time; implementations must not cache.
type VoteStore interface {
	GetJob(ctx context.Context, jobID int64) (entities.Job, error)
	ListJobs(ctx context.Context) ([]entities.Job, error)
	ListItemIDs(ctx context.Context, projectID int64) ([]int64, error)
	ListCriterionIDs(ctx context.Context, projectID int64) ([]int64, error)
	CountVotes(ctx context.Context, jobID int64, itemID int64, criterionID int64, direction entities.VoteDirection) (int, error)
	AnsweredItemIDs(ctx context.Context, jobID int64, workerID int64, criterionID int64) ([]int64, error)
	CountWorkerVotes(ctx context.Context, jobID int64, workerID int64) (int, error)
	FinalizedItemIDs(ctx context.Context, jobID int64) ([]int64, error)
}

// TallyReader is an optional VoteStore extension: stores that can group
// answered tasks in one read return every nonzero tally of the job at once.
// Pairs it omits have no answered votes.
type TallyReader interface {
	TallyVotes(ctx context.Context, jobID int64) ([]entities.ItemTally, error)
}

// TallyProjection receives refreshed aggregate state for downstream readers.
type TallyProjection interface {
	SaveTallies(ctx context.Context, jobID int64, tallies []entities.ItemTally) error
}

type EventEnvelope = events.Envelope

type EventPublisher interface {
	Publish(ctx context.Context, topic string, event EventEnvelope) error
}

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}
