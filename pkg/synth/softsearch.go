package synth

import (
	"fmt"

	"github.com/nsg-ethz/snowcap-go/internal/telemetry"
	"github.com/nsg-ethz/snowcap-go/pkg/ids"
	"github.com/nsg-ethz/snowcap-go/pkg/netsim"
	"github.com/nsg-ethz/snowcap-go/pkg/softpolicy"
)

// DefaultMaxNonImproving is how many consecutive valid plans the
// soft-policy search will accept without improving on the current best
// before it gives up and returns that best.
const DefaultMaxNonImproving = 10

// SoftResult pairs a synthesized Plan with its soft-policy cost.
type SoftResult struct {
	Plan *Plan
	Cost float64
}

// SynthesizeSoftPolicy repeatedly runs the TRTA search (each run uses a
// freshly shuffled candidate order, so repeated calls explore different
// valid orderings) and keeps the lowest-cost plan found under cost,
// stopping once maxNonImproving consecutive attempts fail to beat the
// current best. It requires at least one valid plan to exist; if the
// very first attempt cannot find one, it returns that error immediately
// rather than retrying a provably infeasible instance.
func (e *Engine) SynthesizeSoftPolicy(cost softpolicy.CostFunc, prefixes []ids.Prefix, routers []ids.RouterID, maxNonImproving int) (*SoftResult, error) {
	if maxNonImproving <= 0 {
		maxNonImproving = DefaultMaxNonImproving
	}

	var best *SoftResult
	nonImproving := 0

	for nonImproving < maxNonImproving {
		plan, err := e.Synthesize()
		if err != nil {
			if best != nil {
				break
			}
			return nil, fmt.Errorf("soft-policy synthesis: %w", err)
		}

		trace := e.replayTrace(plan)
		c := cost(trace, prefixes, routers)

		if best == nil || c < best.Cost {
			best = &SoftResult{Plan: plan, Cost: c}
			nonImproving = 0
			telemetry.Logger.WithField("cost", c).Info("soft-policy search found a new best plan")
		} else {
			nonImproving++
		}

		// Reset the live network back to its pre-synthesis state so the
		// next randomized attempt starts from the same baseline.
		for e.Net.UndoDepth() > 0 {
			e.Net.Undo()
		}
	}

	return best, nil
}

// replayTrace re-applies plan's steps from the current (baseline)
// network state to recover the full sequence of converged snapshots,
// since Synthesize only returns the final order, not every intermediate
// ForwardingState it visited.
func (e *Engine) replayTrace(plan *Plan) []*netsim.ForwardingState {
	trace := []*netsim.ForwardingState{netsim.NewForwardingState(e.Net)}
	for _, idx := range plan.Order {
		_ = e.Net.Apply(e.Mods[idx])
		trace = append(trace, netsim.NewForwardingState(e.Net))
	}
	for e.Net.UndoDepth() > 0 {
		e.Net.Undo()
	}
	return trace
}
