package staircase

import (
	"context"
	"fmt"

	"gonum.org/v1/gonum/stat"

	"github.com/harvard-visionlab/block-towers/internal/tower"
)

// EstimateTail is the number of trailing reversal points averaged into the
// final estimate.
const EstimateTail = 9

// Config controls a staircase search.
type Config struct {
	Target         float64 `yaml:"target" json:"target"`
	StartStd       float64 `yaml:"start_std" json:"start_std"`
	TotalReversals int     `yaml:"total_reversals" json:"total_reversals"`
	InitialStep    float64 `yaml:"initial_step" json:"initial_step"`
	NumSamples     int     `yaml:"num_samples" json:"num_samples"`
	MaxIterations  int     `yaml:"max_iterations" json:"max_iterations"`
}

func DefaultConfig() Config {
	return Config{
		Target:         0.5,
		StartStd:       0.29,
		TotalReversals: 20,
		InitialStep:    0.01,
		NumSamples:     1000,
		MaxIterations:  10000,
	}
}

func (c Config) Validate() error {
	if c.Target < 0 || c.Target > 1 {
		return fmt.Errorf("%w: target must be in [0, 1], got %v", tower.ErrInvalidParam, c.Target)
	}
	if c.StartStd < 0 {
		return fmt.Errorf("%w: start_std must be non-negative, got %v", tower.ErrInvalidParam, c.StartStd)
	}
	if c.TotalReversals < 1 {
		return fmt.Errorf("%w: total_reversals must be >= 1, got %d", tower.ErrInvalidParam, c.TotalReversals)
	}
	if !(c.InitialStep > 0) {
		return fmt.Errorf("%w: initial_step must be positive, got %v", tower.ErrInvalidParam, c.InitialStep)
	}
	if c.NumSamples < 1 {
		return fmt.Errorf("%w: num_samples must be >= 1, got %d", tower.ErrInvalidParam, c.NumSamples)
	}
	if c.MaxIterations < 1 {
		return fmt.Errorf("%w: max_iterations must be >= 1, got %d", tower.ErrInvalidParam, c.MaxIterations)
	}
	return nil
}

// State is the mutable search state. Std is the value the next measurement
// will be taken at.
type State struct {
	Std       float64
	Step      float64
	Direction int
	Reversals int
	Samples   int
	Refined   bool
	Iteration int

	StdHistory    []float64
	ProbHistory   []float64
	ReversalFlags []bool
}

func NewState(cfg Config) *State {
	return &State{
		Std:     cfg.StartStd,
		Step:    cfg.InitialStep,
		Samples: cfg.NumSamples,
	}
}

// Done reports whether the configured number of reversals was reached.
func (s *State) Done(cfg Config) bool {
	return s.Reversals >= cfg.TotalReversals
}

// Refine switches to the refinement phase once more than half of the
// reversals are in: twice the batch size, half the initial step. It fires at
// most once and reports whether it fired.
func (s *State) Refine(cfg Config) bool {
	if s.Refined || 2*s.Reversals <= cfg.TotalReversals {
		return false
	}
	s.Refined = true
	s.Samples = cfg.NumSamples * 2
	s.Step = cfg.InitialStep / 2
	return true
}

// Advance records a measurement p taken at the current Std and moves Std one
// step toward target. A downward step that would go negative leaves Std
// unchanged but still counts as a downward movement. It reports whether the
// movement was a reversal.
func (s *State) Advance(target, p float64) bool {
	s.StdHistory = append(s.StdHistory, s.Std)
	s.ProbHistory = append(s.ProbHistory, p)

	dir := -1
	if p < target {
		s.Std += s.Step
		dir = 1
	} else if s.Std-s.Step >= 0 {
		s.Std -= s.Step
	}

	reversal := s.Direction != 0 && dir != s.Direction
	if reversal {
		s.Reversals++
	}
	s.ReversalFlags = append(s.ReversalFlags, reversal)
	s.Direction = dir
	return reversal
}

// Result is the outcome of a calibration.
type Result struct {
	StdHistory    []float64 `json:"std_history"`
	ProbHistory   []float64 `json:"prob_history"`
	ReversalFlags []bool    `json:"reversal_flags"`
	Estimate      float64   `json:"estimate"`
	Iterations    int       `json:"iterations"`
}

// Estimate averages the std values recorded at the last tail reversal
// iterations, or at all of them when there are fewer. It returns 0 when no
// reversal was recorded.
func Estimate(stds []float64, flags []bool, tail int) float64 {
	at := make([]float64, 0)
	for i, rev := range flags {
		if rev && i < len(stds) {
			at = append(at, stds[i])
		}
	}
	if len(at) == 0 {
		return 0
	}
	if tail > 0 && len(at) > tail {
		at = at[len(at)-tail:]
	}
	return stat.Mean(at, nil)
}

// Measure returns the empirical outcome probability at std over n samples.
type Measure func(ctx context.Context, std float64, n int) (float64, error)

// Iteration is reported to observers after every measurement.
type Iteration struct {
	Index     int
	Std       float64
	P         float64
	Reversal  bool
	Reversals int
	Samples   int
	Step      float64
	Refined   bool
}

type Observer interface {
	OnIteration(it Iteration)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(it Iteration)

func (f ObserverFunc) OnIteration(it Iteration) { f(it) }

// Calibrate runs the staircase until cfg.TotalReversals reversals have been
// observed. It fails with tower.ErrUnreachable after cfg.MaxIterations
// measurements.
func Calibrate(ctx context.Context, measure Measure, cfg Config, observers ...Observer) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	st := NewState(cfg)
	for !st.Done(cfg) {
		select {
		case <-ctx.Done():
			return result(st), ctx.Err()
		default:
		}

		if st.Iteration >= cfg.MaxIterations {
			return result(st), &tower.UnreachableError{
				Op:       "calibrate",
				Attempts: st.Iteration,
				Detail:   fmt.Sprintf("%d/%d reversals", st.Reversals, cfg.TotalReversals),
			}
		}
		st.Iteration++
		st.Refine(cfg)

		std := st.Std
		p, err := measure(ctx, std, st.Samples)
		if err != nil {
			return result(st), fmt.Errorf("calibrate: iteration %d at std=%g: %w", st.Iteration, std, err)
		}
		rev := st.Advance(cfg.Target, p)

		for _, obs := range observers {
			obs.OnIteration(Iteration{
				Index:     st.Iteration,
				Std:       std,
				P:         p,
				Reversal:  rev,
				Reversals: st.Reversals,
				Samples:   st.Samples,
				Step:      st.Step,
				Refined:   st.Refined,
			})
		}
	}

	return result(st), nil
}

func result(st *State) *Result {
	return &Result{
		StdHistory:    st.StdHistory,
		ProbHistory:   st.ProbHistory,
		ReversalFlags: st.ReversalFlags,
		Estimate:      Estimate(st.StdHistory, st.ReversalFlags, EstimateTail),
		Iterations:    st.Iteration,
	}
}
