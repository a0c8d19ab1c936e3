package scenarios

import (
	"context"
	"fmt"
	"math"
	"slices"

	"github.com/kilianp07/mgdispatch/core/dispatch"
)

// Run replays every step of sc through mgr.
func Run(ctx context.Context, sc *Scenario, mgr *dispatch.Manager) ([]dispatch.StepResult, error) {
	topos, err := sc.Topologies()
	if err != nil {
		return nil, err
	}
	out := make([]dispatch.StepResult, 0, len(topos))
	for i, topo := range topos {
		step, err := mgr.Step(ctx, topo)
		if err != nil {
			return out, fmt.Errorf("scenario %s step %d: %w", sc.Name, i, err)
		}
		out = append(out, step)
	}
	return out, nil
}

// Check compares step results with the expectations of sc and returns one
// error per mismatch.
func Check(sc *Scenario, steps []dispatch.StepResult, tol float64) []error {
	var errs []error
	for i, st := range sc.Steps {
		if st.Expected == nil || i >= len(steps) {
			continue
		}
		res := steps[i].Result
		for label, want := range st.Expected.States {
			got, ok := res.States.Get(label)
			if !ok {
				errs = append(errs, fmt.Errorf("step %d: no state for %s", i, label))
				continue
			}
			if math.Abs(got-want) > tol {
				errs = append(errs, fmt.Errorf("step %d: %s = %.4f, want %.4f", i, label, got, want))
			}
		}
		if w := st.Expected.Warnings; w != nil && len(res.Warnings) != *w {
			errs = append(errs, fmt.Errorf("step %d: %d warnings, want %d", i, len(res.Warnings), *w))
		}
		if st.Expected.Unserved != nil && !slices.Equal(res.Unserved, st.Expected.Unserved) {
			errs = append(errs, fmt.Errorf("step %d: unserved %v, want %v", i, res.Unserved, st.Expected.Unserved))
		}
	}
	return errs
}
