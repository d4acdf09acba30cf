package workers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	application "crowdlabel/contexts/crowd-labeling/assignment-engine/application"
	"crowdlabel/contexts/crowd-labeling/assignment-engine/application/queries"
	"crowdlabel/contexts/crowd-labeling/assignment-engine/domain/entities"
	domainerrors "crowdlabel/contexts/crowd-labeling/assignment-engine/domain/errors"
	"crowdlabel/contexts/crowd-labeling/assignment-engine/ports"
)

// TallyRefresher recomputes aggregate state for every job: it pushes nonzero
// tallies into the projection and announces triples that reached quota but
// have no finalized result yet.
type TallyRefresher struct {
	Votes      ports.VoteStore
	Projection ports.TallyProjection
	Publisher  ports.EventPublisher
	Clock      ports.Clock
	IDGen      ports.IDGenerator
	Logger     *slog.Logger
}

// RunOnce refreshes all jobs. Jobs that are misconfigured or whose project
// disappeared are skipped with a warning. Any other failure is logged, the
// remaining jobs are still refreshed, and the failures come back joined.
func (r TallyRefresher) RunOnce(ctx context.Context) error {
	logger := application.ResolveLogger(r.Logger)
	jobs, err := r.Votes.ListJobs(ctx)
	if err != nil {
		logger.Error("tally refresh job listing failed",
			"event", "assignment_tally_refresh_list_failed",
			"module", application.ModuleName,
			"layer", "worker",
			"error", err.Error(),
		)
		return err
	}

	refreshed := 0
	var failures []error
	for _, job := range jobs {
		if ctx.Err() != nil {
			failures = append(failures, ctx.Err())
			break
		}
		if err := r.refreshJob(ctx, job); err != nil {
			if errors.Is(err, domainerrors.ErrNotFound) || errors.Is(err, domainerrors.ErrInvalidConfiguration) {
				logger.Warn("tally refresh skipped job",
					"event", "assignment_tally_refresh_job_skipped",
					"module", application.ModuleName,
					"layer", "worker",
					"job_id", job.JobID,
					"error", err.Error(),
				)
				continue
			}
			logger.Error("tally refresh failed",
				"event", "assignment_tally_refresh_failed",
				"module", application.ModuleName,
				"layer", "worker",
				"job_id", job.JobID,
				"error", err.Error(),
			)
			failures = append(failures, fmt.Errorf("refresh job %d: %w", job.JobID, err))
			continue
		}
		refreshed++
	}

	logger.Info("tally refresh cycle completed",
		"event", "assignment_tally_refresh_completed",
		"module", application.ModuleName,
		"layer", "worker",
		"job_count", len(jobs),
		"refreshed_count", refreshed,
		"failed_count", len(failures),
	)
	return errors.Join(failures...)
}

func (r TallyRefresher) refreshJob(ctx context.Context, job entities.Job) error {
	consensus := queries.ConsensusUseCase{Votes: r.Votes}
	nonzero, err := consensus.NonzeroTallies(ctx, job.JobID, job.ProjectID)
	if err != nil {
		return err
	}
	if r.Projection != nil {
		if err := r.Projection.SaveTallies(ctx, job.JobID, nonzero); err != nil {
			return err
		}
	}

	quota, err := job.Quota()
	if err != nil {
		return err
	}
	pending, err := consensus.PendingTallies(ctx, job.JobID)
	if err != nil {
		return err
	}
	ready := make([]readyTriple, 0)
	for _, tally := range pending {
		if tally.State(quota, false) != entities.TripleStateResolvedPendingFinalization {
			continue
		}
		ready = append(ready, readyTriple{
			ItemID:      tally.ItemID,
			CriterionID: tally.CriterionID,
			InVotes:     tally.InVotes,
			OutVotes:    tally.OutVotes,
		})
	}

	now := r.now()
	if len(ready) > 0 {
		if err := r.publish(ctx, EventConsensusReady, job.JobID, now, map[string]any{
			"job_id":     job.JobID,
			"project_id": job.ProjectID,
			"quota":      quota,
			"triples":    ready,
		}); err != nil {
			return err
		}
	}
	return r.publish(ctx, EventTalliesRefreshed, job.JobID, now, map[string]any{
		"job_id":        job.JobID,
		"project_id":    job.ProjectID,
		"nonzero_count": len(nonzero),
		"pending_count": len(pending),
		"ready_count":   len(ready),
		"refreshed_at":  now.Format(time.RFC3339),
	})
}

func (r TallyRefresher) publish(
	ctx context.Context,
	eventType string,
	jobID int64,
	occurredAt time.Time,
	data map[string]any,
) error {
	// Publisher is optional for projection-only wiring.
	if r.Publisher == nil || r.IDGen == nil {
		return nil
	}
	eventID, err := r.IDGen.NewID(ctx)
	if err != nil {
		return err
	}
	envelope, err := newLabelingEnvelope(eventID, eventType, jobID, occurredAt, data)
	if err != nil {
		return err
	}
	return r.Publisher.Publish(ctx, eventType, envelope)
}

func (r TallyRefresher) now() time.Time {
	if r.Clock != nil {
		return r.Clock.Now().UTC()
	}
	return time.Now().UTC()
}
