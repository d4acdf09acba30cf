package queries

import (
	"context"
	"fmt"

	"crowdlabel/contexts/crowd-labeling/assignment-engine/domain/entities"
	domainerrors "crowdlabel/contexts/crowd-labeling/assignment-engine/domain/errors"
	"crowdlabel/contexts/crowd-labeling/assignment-engine/ports"
)

// ConsensusUseCase feeds the external finalization step with per-triple
// counts. Deciding the outcome (majority, tie-break) belongs to the caller.
type ConsensusUseCase struct {
	Votes ports.VoteStore
}

// PendingTallies returns the tally of every (item, criterion) pair of the
// job's project whose item has no finalized result for the job yet.
func (uc ConsensusUseCase) PendingTallies(ctx context.Context, jobID int64) ([]entities.ItemTally, error) {
	if jobID <= 0 {
		return nil, domainerrors.ErrJobNotFound
	}
	job, err := uc.Votes.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	finalized, err := uc.Votes.FinalizedItemIDs(ctx, jobID)
	if err != nil {
		return nil, err
	}
	skip := make(map[int64]struct{}, len(finalized))
	for _, itemID := range finalized {
		skip[itemID] = struct{}{}
	}
	return uc.collect(ctx, job, func(itemID int64) bool {
		_, done := skip[itemID]
		return done
	}, nil)
}

// NonzeroTallies returns only the pairs with at least one answered vote so
// aggregate state can be refreshed without rescanning untouched items.
func (uc ConsensusUseCase) NonzeroTallies(ctx context.Context, jobID int64, projectID int64) ([]entities.ItemTally, error) {
	if jobID <= 0 {
		return nil, domainerrors.ErrJobNotFound
	}
	if projectID <= 0 {
		return nil, domainerrors.ErrProjectNotFound
	}
	job, err := uc.Votes.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.ProjectID != projectID {
		return nil, fmt.Errorf("%w: project %d does not own job %d", domainerrors.ErrProjectNotFound, projectID, jobID)
	}
	return uc.collect(ctx, job, nil, func(tally entities.Tally) bool {
		return tally.Total() > 0
	})
}

func (uc ConsensusUseCase) collect(
	ctx context.Context,
	job entities.Job,
	skipItem func(itemID int64) bool,
	keepTally func(tally entities.Tally) bool,
) ([]entities.ItemTally, error) {
	items, err := uc.Votes.ListItemIDs(ctx, job.ProjectID)
	if err != nil {
		return nil, err
	}
	criteria, err := uc.Votes.ListCriterionIDs(ctx, job.ProjectID)
	if err != nil {
		return nil, err
	}

	kept := make([]int64, 0, len(items))
	for _, itemID := range items {
		if skipItem != nil && skipItem(itemID) {
			continue
		}
		kept = append(kept, itemID)
	}

	counts, err := VoteCounter{Votes: uc.Votes}.Tallies(ctx, job.JobID, kept, criteria)
	if err != nil {
		return nil, err
	}
	tallies := make([]entities.ItemTally, 0, len(kept)*len(criteria))
	for _, itemID := range kept {
		for _, criterionID := range criteria {
			tally := counts[entities.TallyKey{ItemID: itemID, CriterionID: criterionID}]
			if keepTally != nil && !keepTally(tally) {
				continue
			}
			tallies = append(tallies, entities.ItemTally{
				ItemID:      itemID,
				CriterionID: criterionID,
				Tally:       tally,
			})
		}
	}
	return tallies, nil
}
