package redisadapter

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	application "crowdlabel/contexts/crowd-labeling/assignment-engine/application"
	"crowdlabel/contexts/crowd-labeling/assignment-engine/domain/entities"
	"crowdlabel/contexts/crowd-labeling/assignment-engine/ports"

	"github.com/go-redis/redis/v8"
)

// TallyProjection writes refreshed tallies into one hash per job:
// labeling:tallies:<job> with field "<item>:<criterion>" and value "<in>,<out>".
// The engine never reads it back.
type TallyProjection struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewTallyProjection(client *redis.Client, ttl time.Duration, logger *slog.Logger) *TallyProjection {
	if logger == nil {
		logger = slog.Default()
	}
	return &TallyProjection{
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

func TalliesKey(jobID int64) string {
	return "labeling:tallies:" + strconv.FormatInt(jobID, 10)
}

func TallyField(itemID int64, criterionID int64) string {
	return strconv.FormatInt(itemID, 10) + ":" + strconv.FormatInt(criterionID, 10)
}

func EncodeTally(tally entities.Tally) string {
	return strconv.Itoa(tally.InVotes) + "," + strconv.Itoa(tally.OutVotes)
}

func (p *TallyProjection) SaveTallies(ctx context.Context, jobID int64, tallies []entities.ItemTally) error {
	if len(tallies) == 0 {
		return nil
	}
	key := TalliesKey(jobID)
	values := make([]interface{}, 0, len(tallies)*2)
	for _, tally := range tallies {
		values = append(values, TallyField(tally.ItemID, tally.CriterionID), EncodeTally(tally.Tally))
	}
	if err := p.client.HSet(ctx, key, values...).Err(); err != nil {
		return p.logError("assignment_projection_hset_failed", err, "job_id", jobID, "key", key)
	}
	if p.ttl > 0 {
		if err := p.client.Expire(ctx, key, p.ttl).Err(); err != nil {
			return p.logError("assignment_projection_expire_failed", err, "job_id", jobID, "key", key)
		}
	}
	p.logger.Debug("tally projection saved",
		"event", "assignment_projection_saved",
		"module", application.ModuleName,
		"layer", "adapter",
		"job_id", jobID,
		"tally_count", len(tallies),
	)
	return nil
}

func (p *TallyProjection) logError(event string, err error, attrs ...any) error {
	fields := make([]any, 0, len(attrs)+8)
	fields = append(fields,
		"event", event,
		"module", application.ModuleName,
		"layer", "adapter",
		"error", err.Error(),
	)
	fields = append(fields, attrs...)
	p.logger.Error("tally projection operation failed", fields...)
	return err
}

var _ ports.TallyProjection = (*TallyProjection)(nil)
