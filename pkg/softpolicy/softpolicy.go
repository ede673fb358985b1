// Package softpolicy implements the optional optimization objectives a
// migration plan can be scored against once it already satisfies the
// hard policy. Unlike the hard policy, violating a soft policy never
// invalidates a plan; it only makes one valid plan preferable to
// another.
package softpolicy

import (
	"github.com/nsg-ethz/snowcap-go/pkg/ids"
	"github.com/nsg-ethz/snowcap-go/pkg/netsim"
)

// CostFunc scores a sequence of converged forwarding snapshots, one per
// migration step (including the initial, pre-migration state at index
// 0). Lower is better.
type CostFunc func(trace []*netsim.ForwardingState, prefixes []ids.Prefix, routers []ids.RouterID) float64

// MinimizeTrafficShift counts, across consecutive steps, how many
// (router, prefix) pairs changed their resolved forwarding path. This is
// the default soft objective: it prefers orderings that move traffic
// around as little as possible while still reaching the target
// configuration.
func MinimizeTrafficShift(trace []*netsim.ForwardingState, prefixes []ids.Prefix, routers []ids.RouterID) float64 {
	if len(trace) < 2 {
		return 0
	}
	var shifts float64
	for i := 1; i < len(trace); i++ {
		prev, cur := trace[i-1], trace[i]
		for _, r := range routers {
			for _, p := range prefixes {
				pp := prev.Path(r, p)
				cp := cur.Path(r, p)
				if !samePath(pp.Path, cp.Path) {
					shifts++
				}
			}
		}
	}
	return shifts
}

func samePath(a, b []ids.RouterID) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
