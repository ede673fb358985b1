package netsim

import (
	"github.com/nsg-ethz/snowcap-go/pkg/ids"
)

// PathResult is the outcome of resolving the forwarding path for a single
// (router, prefix) pair: either a valid path terminating at a router with
// no further next-hop (the prefix's egress/originator), a black hole
// (some router along the way has no route at all), or a forwarding loop.
type PathResult struct {
	Result ids.CacheResult
	// Path is the sequence of routers traffic crosses, starting at the
	// query router. For ForwardingLoop it is the full path up to and
	// including the first repeated router; Loop holds the canonicalized
	// cyclic suffix separately so two runs that produce the same loop
	// shape compare equal regardless of where the walk entered it.
	Path []ids.RouterID
	Loop []ids.RouterID
}

// ForwardingState caches resolved forwarding paths for a Network. The
// cache does not track changes to the network: callers drop every cached
// entry at once with Invalidate, a full recompute being cheaper than
// fine-grained dependency tracking for this workload.
type ForwardingState struct {
	net   *Network
	cache map[ids.RouterID]map[ids.Prefix]PathResult
}

// NewForwardingState builds an empty cache bound to net.
func NewForwardingState(net *Network) *ForwardingState {
	return &ForwardingState{net: net, cache: make(map[ids.RouterID]map[ids.Prefix]PathResult)}
}

// Invalidate drops every cached path. Call after Apply, Undo, or any
// direct mutation of the bound Network.
func (f *ForwardingState) Invalidate() {
	f.cache = make(map[ids.RouterID]map[ids.Prefix]PathResult)
}

// Path returns the forwarding path for (router, prefix), computing and
// caching it if necessary.
func (f *ForwardingState) Path(r ids.RouterID, p ids.Prefix) PathResult {
	if row, ok := f.cache[r]; ok {
		if res, ok := row[p]; ok {
			return res
		}
	}
	res := f.resolve(r, p)
	if f.cache[r] == nil {
		f.cache[r] = make(map[ids.Prefix]PathResult)
	}
	f.cache[r][p] = res
	return res
}

func (f *ForwardingState) resolve(start ids.RouterID, p ids.Prefix) PathResult {
	visited := make(map[ids.RouterID]int)
	path := []ids.RouterID{start}
	visited[start] = 0

	cur := start
	for {
		rt, ok := f.net.Routers[cur]
		if !ok {
			return PathResult{Result: ids.BlackHole, Path: path}
		}
		next, ok := rt.NextHop(p)
		if !ok {
			if rt.IsRoot {
				return PathResult{Result: ids.ValidPath, Path: path}
			}
			return PathResult{Result: ids.BlackHole, Path: path}
		}
		if idx, seen := visited[next]; seen {
			loop := canonicalizeLoop(append(append([]ids.RouterID(nil), path[idx:]...), next))
			return PathResult{Result: ids.ForwardingLoop, Path: append(path, next), Loop: loop}
		}
		visited[next] = len(path)
		path = append(path, next)
		cur = next

		if _, ok := f.net.Routers[cur]; !ok {
			// next-hop is an external peer outside the simulated graph:
			// reaching it terminates the path successfully.
			return PathResult{Result: ids.ValidPath, Path: path}
		}
	}
}

// canonicalizeLoop rotates a cyclic router sequence so it starts at its
// minimum-id element, and drops the duplicated closing element. Two loops
// discovered by walks that entered the cycle at different points then
// compare equal.
func canonicalizeLoop(cycle []ids.RouterID) []ids.RouterID {
	if len(cycle) <= 1 {
		return cycle
	}
	body := cycle[:len(cycle)-1] // last element duplicates the first (closing) router
	minIdx := 0
	for i, id := range body {
		if id < body[minIdx] {
			minIdx = i
		}
	}
	out := make([]ids.RouterID, len(body))
	for i := range body {
		out[i] = body[(minIdx+i)%len(body)]
	}
	return out
}

// AllPaths returns the resolved path for every non-root router paired
// with every prefix in prefixes, used by the condition/LTL
// evaluators to build the proposition table for one converged state.
func (f *ForwardingState) AllPaths(prefixes []ids.Prefix) map[ids.RouterID]map[ids.Prefix]PathResult {
	out := make(map[ids.RouterID]map[ids.Prefix]PathResult, len(f.net.Routers))
	for id, rt := range f.net.Routers {
		if rt.IsRoot {
			continue
		}
		out[id] = make(map[ids.Prefix]PathResult, len(prefixes))
		for _, p := range prefixes {
			out[id][p] = f.Path(id, p)
		}
	}
	return out
}
