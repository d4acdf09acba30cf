package queries

import (
	"context"
	"errors"

	"crowdlabel/contexts/crowd-labeling/assignment-engine/domain/entities"
	domainerrors "crowdlabel/contexts/crowd-labeling/assignment-engine/domain/errors"
	"crowdlabel/contexts/crowd-labeling/assignment-engine/domain/services"
	"crowdlabel/contexts/crowd-labeling/assignment-engine/ports"
)

// VoteCounter is the single counting routine behind quota checks, selection
// and aggregation. It never caches: each call reads the store.
type VoteCounter struct {
	Votes ports.VoteStore
}

// CountVotes returns the number of answered tasks for the triple with the
// given direction. Only a missing job is an error; no tasks yields zero.
func (c VoteCounter) CountVotes(
	ctx context.Context,
	jobID int64,
	itemID int64,
	criterionID int64,
	direction entities.VoteDirection,
) (int, error) {
	if !direction.Valid() {
		return 0, domainerrors.ErrInvalidDirection
	}
	if err := c.requireJob(ctx, jobID); err != nil {
		return 0, err
	}
	return c.count(ctx, jobID, itemID, criterionID, direction)
}

// Tally returns the (in, out) pair for a triple of an already resolved job.
func (c VoteCounter) Tally(ctx context.Context, jobID int64, itemID int64, criterionID int64) (entities.Tally, error) {
	in, err := c.count(ctx, jobID, itemID, criterionID, entities.VoteYes)
	if err != nil {
		return entities.Tally{}, err
	}
	out, err := c.count(ctx, jobID, itemID, criterionID, entities.VoteNo)
	if err != nil {
		return entities.Tally{}, err
	}
	return entities.Tally{InVotes: in, OutVotes: out}, nil
}

// requireJob only checks that the job row exists. Counting needs neither the
// project nor the quota, so those failures do not stop it.
func (c VoteCounter) requireJob(ctx context.Context, jobID int64) error {
	if jobID <= 0 {
		return domainerrors.ErrJobNotFound
	}
	_, err := c.Votes.GetJob(ctx, jobID)
	if err == nil ||
		errors.Is(err, domainerrors.ErrProjectNotFound) ||
		errors.Is(err, domainerrors.ErrInvalidConfiguration) {
		return nil
	}
	return err
}

// Tallies returns the tally of every requested (item, criterion) pair; pairs
// without answered votes map to the zero Tally. A store implementing
// ports.TallyReader answers in one read, any other store is counted pair by
// pair through Tally.
func (c VoteCounter) Tallies(
	ctx context.Context,
	jobID int64,
	itemIDs []int64,
	criterionIDs []int64,
) (map[entities.TallyKey]entities.Tally, error) {
	tallies := make(map[entities.TallyKey]entities.Tally, len(itemIDs)*len(criterionIDs))
	if len(itemIDs) == 0 || len(criterionIDs) == 0 {
		return tallies, nil
	}

	reader, batched := c.Votes.(ports.TallyReader)
	if !batched {
		for _, itemID := range itemIDs {
			for _, criterionID := range criterionIDs {
				tally, err := c.Tally(ctx, jobID, itemID, criterionID)
				if err != nil {
					return nil, err
				}
				tallies[entities.TallyKey{ItemID: itemID, CriterionID: criterionID}] = tally
			}
		}
		return tallies, nil
	}

	for _, itemID := range itemIDs {
		for _, criterionID := range criterionIDs {
			tallies[entities.TallyKey{ItemID: itemID, CriterionID: criterionID}] = entities.Tally{}
		}
	}
	rows, err := reader.TallyVotes(ctx, jobID)
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		key := row.Key()
		if _, wanted := tallies[key]; !wanted {
			continue
		}
		tallies[key] = entities.Tally{InVotes: max(row.InVotes, 0), OutVotes: max(row.OutVotes, 0)}
	}
	return tallies, nil
}

func (c VoteCounter) count(
	ctx context.Context,
	jobID int64,
	itemID int64,
	criterionID int64,
	direction entities.VoteDirection,
) (int, error) {
	total, err := c.Votes.CountVotes(ctx, jobID, itemID, criterionID, direction)
	if err != nil {
		return 0, err
	}
	if total < 0 {
		return 0, nil
	}
	return total, nil
}

// QuotaPolicy decides whether a triple is still open under the job's
// votesPerTaskRule.
type QuotaPolicy struct {
	Counter VoteCounter
}

func (p QuotaPolicy) IsOpen(ctx context.Context, job entities.Job, itemID int64, criterionID int64) (bool, error) {
	_, open, err := p.Evaluate(ctx, job, itemID, criterionID)
	return open, err
}

// Evaluate returns the current tally together with the open decision so
// callers that rank candidates do not count twice.
func (p QuotaPolicy) Evaluate(
	ctx context.Context,
	job entities.Job,
	itemID int64,
	criterionID int64,
) (entities.Tally, bool, error) {
	quota, err := job.Quota()
	if err != nil {
		return entities.Tally{}, false, err
	}
	tally, err := p.Counter.Tally(ctx, job.JobID, itemID, criterionID)
	if err != nil {
		return entities.Tally{}, false, err
	}
	return tally, services.IsOpen(tally, quota), nil
}

// OpenItems keeps the items still open for the criterion, in input order,
// together with their current tallies.
func (p QuotaPolicy) OpenItems(
	ctx context.Context,
	job entities.Job,
	itemIDs []int64,
	criterionID int64,
) ([]entities.ItemTally, error) {
	quota, err := job.Quota()
	if err != nil {
		return nil, err
	}
	tallies, err := p.Counter.Tallies(ctx, job.JobID, itemIDs, []int64{criterionID})
	if err != nil {
		return nil, err
	}
	open := make([]entities.ItemTally, 0, len(itemIDs))
	for _, itemID := range itemIDs {
		tally := tallies[entities.TallyKey{ItemID: itemID, CriterionID: criterionID}]
		if !services.IsOpen(tally, quota) {
			continue
		}
		open = append(open, entities.ItemTally{ItemID: itemID, CriterionID: criterionID, Tally: tally})
	}
	return open, nil
}
