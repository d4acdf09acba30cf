package queries

import (
	"context"

	domainerrors "crowdlabel/contexts/crowd-labeling/assignment-engine/domain/errors"
	"crowdlabel/contexts/crowd-labeling/assignment-engine/ports"
)

type ProgressUseCase struct {
	Votes ports.VoteStore
}

// CountWorkerVotes counts the worker's answered tasks in the job across all
// criteria. Unanswered tasks are ignored.
func (uc ProgressUseCase) CountWorkerVotes(ctx context.Context, jobID int64, workerID int64) (int, error) {
	if jobID <= 0 {
		return 0, domainerrors.ErrJobNotFound
	}
	if workerID <= 0 {
		return 0, domainerrors.ErrWorkerNotFound
	}
	total, err := uc.Votes.CountWorkerVotes(ctx, jobID, workerID)
	if err != nil {
		return 0, err
	}
	if total < 0 {
		return 0, nil
	}
	return total, nil
}
