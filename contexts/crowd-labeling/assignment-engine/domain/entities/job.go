package entities

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	domainerrors "crowdlabel/contexts/crowd-labeling/assignment-engine/domain/errors"
)

// JobConfig is the typed view of the job's configuration document.
type JobConfig struct {
	VotesPerTaskRule *int `json:"votesPerTaskRule,omitempty"`
}

// UnmarshalJSON accepts votesPerTaskRule as a number or a numeric string
// ({"votesPerTaskRule": 3} and {"votesPerTaskRule": "3"}), matching the
// ::int cast the labeling database applies to the same document.
func (c *JobConfig) UnmarshalJSON(data []byte) error {
	var raw struct {
		VotesPerTaskRule json.RawMessage `json:"votesPerTaskRule"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	c.VotesPerTaskRule = nil

	value := bytes.TrimSpace(raw.VotesPerTaskRule)
	if len(value) == 0 || string(value) == "null" {
		return nil
	}
	text := string(value)
	if value[0] == '"' {
		if err := json.Unmarshal(value, &text); err != nil {
			return err
		}
		text = strings.TrimSpace(text)
	}
	quota, err := strconv.Atoi(text)
	if err != nil {
		return fmt.Errorf("votesPerTaskRule %s is not an integer", value)
	}
	c.VotesPerTaskRule = &quota
	return nil
}

type Job struct {
	JobID     int64
	ProjectID int64
	Config    JobConfig
}

// Quota returns the minimum number of answered votes an item needs per
// criterion before it stops being offered. Missing or non-positive quotas are
// configuration errors rather than "never open".
func (j Job) Quota() (int, error) {
	if j.Config.VotesPerTaskRule == nil {
		return 0, domainerrors.ErrMissingQuota
	}
	quota := *j.Config.VotesPerTaskRule
	if quota <= 0 {
		return 0, domainerrors.ErrInvalidQuota
	}
	return quota, nil
}

// IntPtr is a small helper for building configs in adapters and tests.
func IntPtr(value int) *int {
	return &value
}
