package queries

import (
	"context"

	"crowdlabel/contexts/crowd-labeling/assignment-engine/domain/entities"
	domainerrors "crowdlabel/contexts/crowd-labeling/assignment-engine/domain/errors"
	"crowdlabel/contexts/crowd-labeling/assignment-engine/ports"
)

type JobUseCase struct {
	Votes ports.VoteStore
}

func (uc JobUseCase) Job(ctx context.Context, jobID int64) (entities.Job, error) {
	if jobID <= 0 {
		return entities.Job{}, domainerrors.ErrJobNotFound
	}
	return uc.Votes.GetJob(ctx, jobID)
}

// JobCriteria lists the criteria (filters) of the job's project. These are
// the candidate filters for every selection in the job.
func (uc JobUseCase) JobCriteria(ctx context.Context, jobID int64) ([]int64, error) {
	job, err := uc.Job(ctx, jobID)
	if err != nil {
		return nil, err
	}
	return uc.Votes.ListCriterionIDs(ctx, job.ProjectID)
}
