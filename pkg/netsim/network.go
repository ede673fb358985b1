// Package netsim implements the network-wide event loop: it owns every
// router, the IGP link-weight graph, the queue of in-flight BGP updates,
// and the coarse-grained undo stack the synthesis engine uses to try a
// config change and roll it back if it turns out to violate the policy.
package netsim

import (
	"container/list"
	"fmt"

	"github.com/nsg-ethz/snowcap-go/pkg/ids"
	"github.com/nsg-ethz/snowcap-go/pkg/rib"
	"github.com/nsg-ethz/snowcap-go/pkg/router"
	"github.com/nsg-ethz/snowcap-go/pkg/routemap"
)

// MaxConvergenceSteps bounds the event loop so a misconfigured (looping)
// policy cannot hang a synthesis run; convergence failure is reported as
// an error rather than silently truncated.
const MaxConvergenceSteps = 200_000

// queuedEvent is a single in-flight BGP message between two routers.
type queuedEvent struct {
	to     ids.RouterID
	from   ids.RouterID
	prefix ids.Prefix
	withdraw bool
	route  rib.Route
}

// Network owns the full simulated topology.
type Network struct {
	Routers map[ids.RouterID]*router.Router

	// igp is the configured symmetric link-weight graph. Absent entries
	// mean no direct edge.
	igp map[ids.RouterID]map[ids.RouterID]ids.LinkWeight
	// dist is the all-pairs shortest path table, recomputed by
	// RecomputeIGP whenever igp changes.
	dist map[ids.RouterID]map[ids.RouterID]float64

	queue *list.List

	undo []coarseUndo
}

// New builds an empty Network.
func New() *Network {
	return &Network{
		Routers: make(map[ids.RouterID]*router.Router),
		igp:     make(map[ids.RouterID]map[ids.RouterID]ids.LinkWeight),
		dist:    make(map[ids.RouterID]map[ids.RouterID]float64),
		queue:   list.New(),
	}
}

// AddRouter registers a router. Must be called before AddLink or any BGP
// session is wired.
func (n *Network) AddRouter(r *router.Router) {
	n.Routers[r.ID] = r
}

// AddLink installs a symmetric IGP edge of the given weight between a and
// b. Call RecomputeIGP after all links are installed (or changed) and
// before the network is used.
func (n *Network) AddLink(a, b ids.RouterID, weight ids.LinkWeight) {
	if n.igp[a] == nil {
		n.igp[a] = make(map[ids.RouterID]ids.LinkWeight)
	}
	if n.igp[b] == nil {
		n.igp[b] = make(map[ids.RouterID]ids.LinkWeight)
	}
	n.igp[a][b] = weight
	n.igp[b][a] = weight
}

// RecomputeIGP runs Floyd-Warshall over the configured link-weight graph
// and pushes the resulting distances into every router's IGP cost table.
// It does not by itself trigger BGP re-selection; call ReapplyIGP (or
// Converge after queuing a Reapply) to pick up next-hop distance changes.
func (n *Network) RecomputeIGP() {
	ids_ := make([]ids.RouterID, 0, len(n.Routers))
	for id := range n.Routers {
		ids_ = append(ids_, id)
	}

	dist := make(map[ids.RouterID]map[ids.RouterID]float64, len(ids_))
	for _, a := range ids_ {
		row := make(map[ids.RouterID]float64, len(ids_))
		for _, b := range ids_ {
			if a == b {
				row[b] = 0
			} else if w, ok := n.igp[a][b]; ok {
				row[b] = float64(w)
			} else {
				row[b] = float64(ids.Unreachable)
			}
		}
		dist[a] = row
	}

	for _, k := range ids_ {
		for _, i := range ids_ {
			for _, j := range ids_ {
				if dist[i][k]+dist[k][j] < dist[i][j] {
					dist[i][j] = dist[i][k] + dist[k][j]
				}
			}
		}
	}

	n.dist = dist
	for _, a := range ids_ {
		r := n.Routers[a]
		for _, b := range ids_ {
			r.SetIgpCost(b, dist[a][b])
		}
	}
}

// ReapplyIGP re-runs best-path selection on every router against its
// already-received routes, without touching adj-in. It is the event-loop
// counterpart to RecomputeIGP: call it after the link-weight graph
// changes and has been recomputed, so routers pick up the new IGP-cost
// tiebreak without waiting for a fresh BGP update. It only queues the
// resulting events; call Converge to let them propagate.
func (n *Network) ReapplyIGP() error {
	for id, r := range n.Routers {
		evs, err := r.Reapply()
		if err != nil {
			return err
		}
		n.enqueueRouterEvents(id, evs)
	}
	return nil
}

// IgpDistance returns the shortest-path IGP cost between two routers, or
// +Inf if unreachable.
func (n *Network) IgpDistance(a, b ids.RouterID) float64 {
	if row, ok := n.dist[a]; ok {
		if d, ok := row[b]; ok {
			return d
		}
	}
	return float64(ids.Unreachable)
}

// Advertise injects an external route advertisement from router `from`
// (typically an AS border router representing an external peer) into the
// event queue, addressed to every one of from's BGP sessions.
func (n *Network) Advertise(from ids.RouterID, route rib.Route) {
	r, ok := n.Routers[from]
	if !ok {
		return
	}
	for _, nb := range r.Neighbors() {
		n.queue.PushBack(queuedEvent{to: nb.Router, from: from, prefix: route.Prefix, route: route})
	}
}

func (n *Network) enqueueRouterEvents(from ids.RouterID, evs []router.Event) {
	for _, ev := range evs {
		n.queue.PushBack(queuedEvent{to: ev.To, from: from, prefix: ev.Prefix, withdraw: ev.Withdraw, route: ev.Route})
	}
}

// step processes exactly one queued event, returning false once the
// queue is empty.
func (n *Network) step() (bool, error) {
	front := n.queue.Front()
	if front == nil {
		return false, nil
	}
	n.queue.Remove(front)
	ev := front.Value.(queuedEvent)

	r, ok := n.Routers[ev.to]
	if !ok {
		return true, fmt.Errorf("event addressed to unknown router %v", ev.to)
	}

	var (
		out []router.Event
		err error
	)
	if ev.withdraw {
		out, err = r.HandleWithdraw(ev.from, ev.prefix)
	} else {
		out, err = r.HandleUpdate(ev.from, ev.route)
	}
	if err != nil {
		return true, err
	}
	n.enqueueRouterEvents(ev.to, out)
	return true, nil
}

// Converge drains the event queue until the network reaches a stable
// fixed point (no router has a pending update to process), or returns an
// error if MaxConvergenceSteps is exceeded without converging.
func (n *Network) Converge() error {
	for i := 0; i < MaxConvergenceSteps; i++ {
		more, err := n.step()
		if err != nil {
			return err
		}
		if !more {
			return nil
		}
	}
	return fmt.Errorf("network did not converge within %d steps", MaxConvergenceSteps)
}

// QueueLen reports the number of events still pending; used by tests that
// want to assert a quiescent network before inspecting forwarding state.
func (n *Network) QueueLen() int {
	return n.queue.Len()
}

// SetRouteMaps installs new incoming/outgoing route-map lists on a router
// and reapplies them against already-received routes, queuing whatever
// re-advertisement or withdrawal events result. Call Converge afterward
// to let the change propagate.
func (n *Network) SetRouteMaps(id ids.RouterID, in, out *routemap.List) error {
	r, ok := n.Routers[id]
	if !ok {
		return fmt.Errorf("unknown router %v", id)
	}
	r.In = in
	r.Out = out
	evs, err := r.Reapply()
	if err != nil {
		return err
	}
	n.enqueueRouterEvents(id, evs)
	return nil
}
