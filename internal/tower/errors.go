package tower

import (
	"errors"
	"fmt"
)

// Domain errors for tower generation, analysis and simulation.
var (
	// ErrEmptyTower indicates a tower without any blocks.
	ErrEmptyTower = errors.New("tower: empty tower")

	// ErrInvalidDimension indicates a non-positive or non-finite block dimension or coordinate.
	ErrInvalidDimension = errors.New("tower: invalid block geometry")

	// ErrInvalidBounds indicates degenerate sampling bounds (lower >= upper).
	ErrInvalidBounds = errors.New("tower: invalid sampling bounds")

	// ErrInvalidParam indicates a parameter value outside its valid range.
	ErrInvalidParam = errors.New("tower: parameter out of valid range")

	// ErrUnreachable indicates a rejection loop exhausted its attempt budget;
	// the requested outcome is infeasible under the given parameters.
	ErrUnreachable = errors.New("tower: target unreachable within attempt budget")

	// ErrOutOfSync indicates an engine run diverged from a stored trajectory.
	ErrOutOfSync = errors.New("tower: engine out of sync with trajectory")
)

// BlockError locates a validation failure on a single block.
type BlockError struct {
	Index   int
	Field   string
	Value   float64
	Wrapped error
}

func (e *BlockError) Error() string {
	return fmt.Sprintf("block %d: %s=%g: %v", e.Index, e.Field, e.Value, e.Wrapped)
}

func (e *BlockError) Unwrap() error {
	return e.Wrapped
}

// UnreachableError reports an exhausted rejection loop.
type UnreachableError struct {
	Op       string
	Attempts int
	Detail   string
}

func (e *UnreachableError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s: gave up after %d attempts: %v", e.Op, e.Attempts, ErrUnreachable)
	}
	return fmt.Sprintf("%s: gave up after %d attempts (%s): %v", e.Op, e.Attempts, e.Detail, ErrUnreachable)
}

func (e *UnreachableError) Unwrap() error {
	return ErrUnreachable
}
