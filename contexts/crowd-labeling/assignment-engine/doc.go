// Package assignmentengine implements the crowd-labeling task-assignment and
// vote-consensus engine.
//
// The module decides which items a worker may label next under a job's
// votes-per-task quota, reports worker progress, and aggregates answered
// votes into per item/criterion tallies for an external finalization step.
// It only reads the Vote Store; every write belongs to other services.
package assignmentengine
