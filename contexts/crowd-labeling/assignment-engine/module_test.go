package assignmentengine

import (
	"context"
	"testing"

	"crowdlabel/contexts/crowd-labeling/assignment-engine/domain/entities"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryModuleLabelingRound(t *testing.T) {
	module := NewInMemoryModule(nil, nil)
	module.Store.SetProject(1, []int64{10, 11}, []int64{5})
	module.Store.SetJob(entities.Job{JobID: 3, ProjectID: 1, Config: entities.JobConfig{VotesPerTaskRule: entities.IntPtr(2)}})
	ctx := context.Background()

	criteria, err := module.Jobs.JobCriteria(ctx, 3)
	require.NoError(t, err)
	require.Equal(t, []int64{5}, criteria)

	// Workers keep taking the next item until nothing is left for them.
	for _, workerID := range []int64{21, 22, 23} {
		for {
			itemID, found, err := module.Selection.NextItem(ctx, 3, 5, workerID)
			require.NoError(t, err)
			if !found {
				break
			}
			module.Store.AddTask(entities.Task{
				JobID:       3,
				WorkerID:    workerID,
				ItemID:      itemID,
				CriterionID: 5,
				Answered:    true,
				Vote:        entities.VoteYes,
			})
		}
	}

	for _, itemID := range []int64{10, 11} {
		job, err := module.Jobs.Job(ctx, 3)
		require.NoError(t, err)
		open, err := module.Quota.IsOpen(ctx, job, itemID, 5)
		require.NoError(t, err)
		assert.False(t, open)

		in, err := module.Counter.CountVotes(ctx, 3, itemID, 5, entities.VoteYes)
		require.NoError(t, err)
		assert.Equal(t, 2, in, "no item is voted past quota by sequential workers")
	}

	done, err := module.Progress.CountWorkerVotes(ctx, 3, 23)
	require.NoError(t, err)
	assert.Zero(t, done)

	module.Store.FinalizeItem(3, 10)
	pending, err := module.Consensus.PendingTallies(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, []entities.ItemTally{{ItemID: 11, CriterionID: 5, Tally: entities.Tally{InVotes: 2}}}, pending)

	require.NoError(t, module.Refresher.RunOnce(ctx))
	assert.Len(t, module.Store.Projection(3), 2)
}
