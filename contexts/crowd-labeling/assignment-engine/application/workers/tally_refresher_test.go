package workers

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"crowdlabel/contexts/crowd-labeling/assignment-engine/adapters/memory"
	"crowdlabel/contexts/crowd-labeling/assignment-engine/domain/entities"
	"crowdlabel/contexts/crowd-labeling/assignment-engine/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	events []ports.EventEnvelope
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, topic string, event ports.EventEnvelope) error {
	if p.err != nil {
		return p.err
	}
	if topic != event.EventType {
		return errors.New("topic must match event type")
	}
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) byType(eventType string) []ports.EventEnvelope {
	var items []ports.EventEnvelope
	for _, event := range p.events {
		if event.EventType == eventType {
			items = append(items, event)
		}
	}
	return items
}

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time {
	return c.now
}

func seedStore() *memory.Store {
	store := memory.NewStore()
	store.SetProject(10, []int64{100, 101, 102}, []int64{1, 2})
	store.SetJob(entities.Job{JobID: 7, ProjectID: 10, Config: entities.JobConfig{VotesPerTaskRule: entities.IntPtr(2)}})
	vote := func(workerID int64, itemID int64, criterionID int64, direction entities.VoteDirection) {
		store.AddTask(entities.Task{
			JobID:       7,
			WorkerID:    workerID,
			ItemID:      itemID,
			CriterionID: criterionID,
			Answered:    true,
			Vote:        direction,
		})
	}
	vote(1, 100, 1, entities.VoteYes)
	vote(2, 100, 1, entities.VoteNo)
	vote(1, 101, 1, entities.VoteYes)
	vote(1, 102, 2, entities.VoteYes)
	vote(2, 102, 2, entities.VoteYes)
	store.FinalizeItem(7, 102)
	return store
}

func TestTallyRefresherProjectsAndAnnouncesReadyTriples(t *testing.T) {
	store := seedStore()
	publisher := &recordingPublisher{}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	refresher := TallyRefresher{
		Votes:      store,
		Projection: store,
		Publisher:  publisher,
		Clock:      fixedClock{now: now},
		IDGen:      store,
	}

	require.NoError(t, refresher.RunOnce(context.Background()))

	assert.Equal(t, []entities.ItemTally{
		{ItemID: 100, CriterionID: 1, Tally: entities.Tally{InVotes: 1, OutVotes: 1}},
		{ItemID: 101, CriterionID: 1, Tally: entities.Tally{InVotes: 1}},
		{ItemID: 102, CriterionID: 2, Tally: entities.Tally{InVotes: 2}},
	}, store.Projection(7))

	ready := publisher.byType(EventConsensusReady)
	require.Len(t, ready, 1)
	assert.Equal(t, "7", ready[0].PartitionKey)
	assert.Equal(t, now, ready[0].OccurredAt)

	var payload struct {
		JobID   int64         `json:"job_id"`
		Quota   int           `json:"quota"`
		Triples []readyTriple `json:"triples"`
	}
	require.NoError(t, json.Unmarshal(ready[0].Data, &payload))
	assert.Equal(t, int64(7), payload.JobID)
	assert.Equal(t, 2, payload.Quota)
	assert.Equal(t, []readyTriple{{ItemID: 100, CriterionID: 1, InVotes: 1, OutVotes: 1}}, payload.Triples)

	refreshed := publisher.byType(EventTalliesRefreshed)
	require.Len(t, refreshed, 1)
	var summary map[string]any
	require.NoError(t, json.Unmarshal(refreshed[0].Data, &summary))
	assert.EqualValues(t, 3, summary["nonzero_count"])
	assert.EqualValues(t, 4, summary["pending_count"])
	assert.EqualValues(t, 1, summary["ready_count"])
}

func TestTallyRefresherSkipsMisconfiguredJobs(t *testing.T) {
	store := seedStore()
	store.SetJob(entities.Job{JobID: 8, ProjectID: 10})
	store.SetJob(entities.Job{JobID: 9, ProjectID: 404, Config: entities.JobConfig{VotesPerTaskRule: entities.IntPtr(3)}})
	publisher := &recordingPublisher{}

	refresher := TallyRefresher{Votes: store, Projection: store, Publisher: publisher, IDGen: store}
	require.NoError(t, refresher.RunOnce(context.Background()))

	assert.Len(t, publisher.byType(EventTalliesRefreshed), 1)
	assert.Empty(t, store.Projection(9))
}

func TestTallyRefresherReportsPublishFailure(t *testing.T) {
	store := seedStore()
	busErr := errors.New("bus unavailable")
	publisher := &recordingPublisher{err: busErr}

	refresher := TallyRefresher{Votes: store, Publisher: publisher, IDGen: store}
	err := refresher.RunOnce(context.Background())
	assert.ErrorIs(t, err, busErr)
}

type flakyProjection struct {
	*memory.Store
	failJob int64
	err     error
}

func (p flakyProjection) SaveTallies(ctx context.Context, jobID int64, tallies []entities.ItemTally) error {
	if jobID == p.failJob {
		return p.err
	}
	return p.Store.SaveTallies(ctx, jobID, tallies)
}

func TestTallyRefresherContinuesPastFailedJob(t *testing.T) {
	store := seedStore()
	store.SetJob(entities.Job{JobID: 8, ProjectID: 10, Config: entities.JobConfig{VotesPerTaskRule: entities.IntPtr(1)}})
	store.AddTask(entities.Task{JobID: 8, WorkerID: 3, ItemID: 101, CriterionID: 2, Answered: true, Vote: entities.VoteNo})
	timeout := errors.New("redis: i/o timeout")
	publisher := &recordingPublisher{}

	refresher := TallyRefresher{
		Votes:      store,
		Projection: flakyProjection{Store: store, failJob: 7, err: timeout},
		Publisher:  publisher,
		IDGen:      store,
	}
	err := refresher.RunOnce(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, timeout)
	assert.Contains(t, err.Error(), "refresh job 7")

	assert.Empty(t, store.Projection(7))
	assert.Equal(t, []entities.ItemTally{
		{ItemID: 101, CriterionID: 2, Tally: entities.Tally{OutVotes: 1}},
	}, store.Projection(8))

	refreshed := publisher.byType(EventTalliesRefreshed)
	require.Len(t, refreshed, 1)
	assert.Equal(t, "8", refreshed[0].PartitionKey)
	ready := publisher.byType(EventConsensusReady)
	require.Len(t, ready, 1)
	assert.Equal(t, "8", ready[0].PartitionKey)
}

func TestTallyRefresherWithoutPublisherOnlyProjects(t *testing.T) {
	store := seedStore()
	refresher := TallyRefresher{Votes: store, Projection: store}
	require.NoError(t, refresher.RunOnce(context.Background()))
	assert.Len(t, store.Projection(7), 3)
}
