package queries

import (
	"context"
	"log/slog"

	application "crowdlabel/contexts/crowd-labeling/assignment-engine/application"
	domainerrors "crowdlabel/contexts/crowd-labeling/assignment-engine/domain/errors"
	"crowdlabel/contexts/crowd-labeling/assignment-engine/domain/services"
	"crowdlabel/contexts/crowd-labeling/assignment-engine/ports"
)

type SelectionOptions struct {
	// PrioritizeLeastVoted orders the result by total votes ascending. Without
	// it the order follows the store and callers must not rely on it.
	PrioritizeLeastVoted bool
}

// SelectionUseCase decides which items a worker may label next.
type SelectionUseCase struct {
	Votes   ports.VoteStore
	Options SelectionOptions
	Logger  *slog.Logger
}

// SelectItems returns the project's items that the worker has not answered
// under this job/criterion and that are still open under the job's quota.
// An empty result means no work is currently available.
func (uc SelectionUseCase) SelectItems(
	ctx context.Context,
	jobID int64,
	criterionID int64,
	workerID int64,
) ([]int64, error) {
	logger := application.ResolveLogger(uc.Logger)
	var invalid error
	switch {
	case jobID <= 0:
		invalid = domainerrors.ErrJobNotFound
	case criterionID <= 0:
		invalid = domainerrors.ErrCriterionNotFound
	case workerID <= 0:
		invalid = domainerrors.ErrWorkerNotFound
	}
	if invalid != nil {
		logger.Warn("item selection validation failed",
			"event", "assignment_select_items_validation_failed",
			"module", application.ModuleName,
			"layer", "application",
			"job_id", jobID,
			"criterion_id", criterionID,
			"worker_id", workerID,
			"error", invalid.Error(),
		)
		return nil, invalid
	}

	job, err := uc.Votes.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if _, err := job.Quota(); err != nil {
		logger.Warn("item selection rejected job configuration",
			"event", "assignment_select_items_invalid_configuration",
			"module", application.ModuleName,
			"layer", "application",
			"job_id", jobID,
			"error", err.Error(),
		)
		return nil, err
	}

	criteria, err := uc.Votes.ListCriterionIDs(ctx, job.ProjectID)
	if err != nil {
		return nil, err
	}
	if !containsID(criteria, criterionID) {
		return nil, domainerrors.ErrCriterionNotFound
	}

	candidates, err := uc.Votes.ListItemIDs(ctx, job.ProjectID)
	if err != nil {
		return nil, err
	}
	answered, err := uc.Votes.AnsweredItemIDs(ctx, jobID, workerID, criterionID)
	if err != nil {
		return nil, err
	}
	candidates = services.ExcludeAnswered(candidates, answered)

	policy := QuotaPolicy{Counter: VoteCounter{Votes: uc.Votes}}
	open, err := policy.OpenItems(ctx, job, candidates, criterionID)
	if err != nil {
		return nil, err
	}
	items := make([]int64, 0, len(open))
	totals := make(map[int64]int, len(open))
	for _, tally := range open {
		items = append(items, tally.ItemID)
		totals[tally.ItemID] = tally.Total()
	}
	if uc.Options.PrioritizeLeastVoted {
		services.SortLeastVoted(items, totals)
	}

	logger.Debug("item selection completed",
		"event", "assignment_select_items_completed",
		"module", application.ModuleName,
		"layer", "application",
		"job_id", jobID,
		"criterion_id", criterionID,
		"worker_id", workerID,
		"candidate_count", len(candidates),
		"eligible_count", len(items),
	)
	return items, nil
}

// NextItem returns the first eligible item, if any.
func (uc SelectionUseCase) NextItem(
	ctx context.Context,
	jobID int64,
	criterionID int64,
	workerID int64,
) (int64, bool, error) {
	items, err := uc.SelectItems(ctx, jobID, criterionID, workerID)
	if err != nil {
		return 0, false, err
	}
	if len(items) == 0 {
		return 0, false, nil
	}
	return items[0], true, nil
}

func containsID(ids []int64, target int64) bool {
	for _, id := range ids {
		if id == target {
			return true
		}
	}
	return false
}
