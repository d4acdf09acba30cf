package workers

import (
	"encoding/json"
	"strconv"
	"time"

	"crowdlabel/contexts/crowd-labeling/assignment-engine/ports"
)

const (
	EventTalliesRefreshed = "labeling.tallies.refreshed"
	EventConsensusReady   = "labeling.consensus.ready"
)

// newLabelingEnvelope partitions every worker event by job so consumers see a
// job's refreshes in order.
func newLabelingEnvelope(
	eventID string,
	eventType string,
	jobID int64,
	occurredAt time.Time,
	data map[string]any,
) (ports.EventEnvelope, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return ports.EventEnvelope{}, err
	}
	return ports.EventEnvelope{
		EventID:          eventID,
		EventType:        eventType,
		OccurredAt:       occurredAt.UTC(),
		SourceService:    "assignment-engine",
		TraceID:          eventID,
		SchemaVersion:    1,
		PartitionKeyPath: "job_id",
		PartitionKey:     strconv.FormatInt(jobID, 10),
		Data:             payload,
	}, nil
}

type readyTriple struct {
	ItemID      int64 `json:"item_id"`
	CriterionID int64 `json:"criterion_id"`
	InVotes     int   `json:"in_votes"`
	OutVotes    int   `json:"out_votes"`
}
