package errors

import (
	"errors"
	"fmt"
)

// Ids that cannot name a stored row (zero or negative) surface through the
// not-found family, the same as ids that simply do not exist.
var (
	ErrNotFound             = errors.New("not found")
	ErrJobNotFound          = fmt.Errorf("job %w", ErrNotFound)
	ErrProjectNotFound      = fmt.Errorf("project %w", ErrNotFound)
	ErrCriterionNotFound    = fmt.Errorf("criterion %w", ErrNotFound)
	ErrWorkerNotFound       = fmt.Errorf("worker %w", ErrNotFound)
	ErrInvalidConfiguration = errors.New("invalid job configuration")
	ErrMissingQuota         = fmt.Errorf("%w: votesPerTaskRule is missing", ErrInvalidConfiguration)
	ErrInvalidQuota         = fmt.Errorf("%w: votesPerTaskRule must be positive", ErrInvalidConfiguration)
)

// ErrInvalidDirection is the only input error: a direction other than yes/no
// is a caller bug, not a missing row.
var (
	ErrInvalidInput     = errors.New("invalid assignment input")
	ErrInvalidDirection = fmt.Errorf("%w: vote direction must be yes or no", ErrInvalidInput)
)
