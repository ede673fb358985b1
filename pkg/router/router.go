// Package router models the per-router BGP and IGP state: the raw
// adjacency RIB-in per neighbor, the selected best route per prefix, the
// IGP distance table, and a reversible undo log recording every mutation
// so the network simulator can roll a speculative config change back
// without a full state snapshot.
package router

import (
	"fmt"

	"github.com/nsg-ethz/snowcap-go/pkg/ids"
	"github.com/nsg-ethz/snowcap-go/pkg/rib"
	"github.com/nsg-ethz/snowcap-go/pkg/routemap"
)

// Neighbor describes one BGP session a router holds.
type Neighbor struct {
	Router  ids.RouterID
	Session ids.SessionType
	// AS is the neighbor's autonomous system, meaningful only for eBGP
	// sessions. It drives the outbound AS-path containment check: a route
	// is never advertised to an eBGP neighbor whose AS already appears in
	// its AS-path, which is how a real router refuses to hand a route
	// back into an AS it has already crossed.
	AS ids.AsID
}

// Event is produced by HandleUpdate/HandleWithdraw/Reapply when the
// router's best route for a prefix changes and must be (re-)advertised,
// or withdrawn, to its sessions.
type Event struct {
	To       ids.RouterID
	Prefix   ids.Prefix
	Withdraw bool
	Route    rib.Route
}

// Router is one node's BGP + IGP state.
type Router struct {
	ID     ids.RouterID
	AS     ids.AsID
	IsRoot bool // external prefix originator, not a simulated control plane

	neighbors []Neighbor

	// rawIn[prefix][fromRouter] is the route exactly as received, before
	// any incoming route-map is applied. Keeping the raw route (rather
	// than only the filtered result) is what lets a route-map change be
	// replayed against already-received routes, the same way a BGP soft
	// reconfiguration re-evaluates adj-in without a fresh update.
	rawIn map[ids.Prefix]map[ids.RouterID]rib.Route
	// selected[prefix] is the currently chosen best route, or absent if
	// the router has no route to prefix.
	selected map[ids.Prefix]rib.Entry
	// advertised[prefix][toRouter] records what was last sent out, so a
	// repeated best-path selection that doesn't change the advertised
	// route can be suppressed.
	advertised map[ids.Prefix]map[ids.RouterID]rib.Route

	igpCost map[ids.RouterID]float64

	In  *routemap.List
	Out *routemap.List

	// static holds per-prefix static routes, which take priority over the
	// BGP-selected next hop when resolving a forwarding path: a static
	// route is a forwarding-table override, not a BGP attribute, so it
	// never participates in the decision process or re-advertisement.
	static map[ids.Prefix]ids.RouterID

	undo []undoRecord
}

// New builds an empty Router ready to receive neighbor sessions.
func New(id ids.RouterID, as ids.AsID) *Router {
	return &Router{
		ID:         id,
		AS:         as,
		rawIn:      make(map[ids.Prefix]map[ids.RouterID]rib.Route),
		selected:   make(map[ids.Prefix]rib.Entry),
		advertised: make(map[ids.Prefix]map[ids.RouterID]rib.Route),
		igpCost:    make(map[ids.RouterID]float64),
		static:     make(map[ids.Prefix]ids.RouterID),
	}
}

// AddNeighbor registers a BGP session. It is a configuration-time action,
// not undo-logged: the network simulator only needs undo for route-map
// and static-route changes applied mid-migration.
func (r *Router) AddNeighbor(n Neighbor) {
	r.neighbors = append(r.neighbors, n)
}

// Neighbors returns the router's configured sessions.
func (r *Router) Neighbors() []Neighbor {
	return r.neighbors
}

func (r *Router) sessionTo(to ids.RouterID) (ids.SessionType, bool) {
	for _, n := range r.neighbors {
		if n.Router == to {
			return n.Session, true
		}
	}
	return 0, false
}

// SessionTo reports the session type this router observes toward to, and
// whether a session is configured at all. Exported for the network
// simulator's configuration snapshot, which needs to read both sides of
// an existing session to rebuild its canonical ConfigExpr.
func (r *Router) SessionTo(to ids.RouterID) (ids.SessionType, bool) {
	return r.sessionTo(to)
}

// InRules returns the router's current incoming route-map rules, or nil
// if none are installed.
func (r *Router) InRules() []routemap.Rule {
	if r.In == nil {
		return nil
	}
	return r.In.Rules()
}

// OutRules returns the router's current outgoing route-map rules, or nil
// if none are installed.
func (r *Router) OutRules() []routemap.Rule {
	if r.Out == nil {
		return nil
	}
	return r.Out.Rules()
}

// StaticRoutes returns a snapshot of the router's configured static
// routes, keyed by prefix.
func (r *Router) StaticRoutes() map[ids.Prefix]ids.RouterID {
	out := make(map[ids.Prefix]ids.RouterID, len(r.static))
	for p, nh := range r.static {
		out[p] = nh
	}
	return out
}

// AddNeighborLive installs a BGP session mid-simulation: unlike
// AddNeighbor (configuration-time, not undo-logged), it records the
// change on the undo log and immediately resyncs the new session with
// this router's currently selected routes, the same initial route
// exchange a freshly established BGP session performs.
func (r *Router) AddNeighborLive(n Neighbor) []Event {
	r.pushNeighborAdd()
	r.neighbors = append(r.neighbors, n)

	var events []Event
	for prefix, best := range r.selected {
		entry := best
		if ev, changed := r.advertiseTo(n, prefix, &entry); changed {
			events = append(events, ev)
		}
	}
	return events
}

// RemoveNeighborLive tears a BGP session down mid-simulation: every route
// learned from peer is withdrawn as if the session had dropped, and the
// neighbor itself stops being a re-advertisement target. It returns the
// events produced by re-running the decision process for every affected
// prefix.
func (r *Router) RemoveNeighborLive(peer ids.RouterID) []Event {
	idx := -1
	var removed Neighbor
	for i, n := range r.neighbors {
		if n.Router == peer {
			idx, removed = i, n
			break
		}
	}
	if idx < 0 {
		return nil
	}
	r.pushNeighborRemove(idx, removed)
	r.neighbors = append(append([]Neighbor(nil), r.neighbors[:idx]...), r.neighbors[idx+1:]...)

	var events []Event
	for prefix, from := range r.rawIn {
		prev, had := from[peer]
		if !had {
			continue
		}
		r.pushRawIn(prefix, peer, prev, true)
		delete(from, peer)
		evs, _ := r.reselect(prefix)
		events = append(events, evs...)
	}
	for prefix, to := range r.advertised {
		if prevAdv, had := to[peer]; had {
			r.pushAdvertised(prefix, peer, prevAdv, true)
			delete(to, peer)
		}
	}
	return events
}

// SetStaticRouteLive installs or replaces a static route, undo-logged so
// a speculative config change can be rolled back without re-simulating.
// Static routes are a pure forwarding override: installing one does not
// touch the BGP RIB or emit re-advertisement events.
func (r *Router) SetStaticRouteLive(prefix ids.Prefix, nextHop ids.RouterID) {
	prev, had := r.static[prefix]
	r.pushStatic(prefix, prev, had)
	r.static[prefix] = nextHop
}

// RemoveStaticRouteLive withdraws a static route, if one is installed.
func (r *Router) RemoveStaticRouteLive(prefix ids.Prefix) {
	prev, had := r.static[prefix]
	if !had {
		return
	}
	r.pushStatic(prefix, prev, true)
	delete(r.static, prefix)
}

// SetIgpCost installs the IGP distance from this router to dst, as
// computed network-wide by the simulator's Floyd-Warshall pass. It does
// not by itself trigger re-selection; callers should call Reapply for
// every prefix whose best route's next-hop distance may have changed.
func (r *Router) SetIgpCost(dst ids.RouterID, cost float64) {
	r.igpCost[dst] = cost
}

// HandleUpdate processes a BGP update received from a neighbor: it
// records the raw route in adj-in and re-runs best-path selection for
// the prefix. It returns the outgoing events (advertisement or
// withdrawal) that must be propagated to other sessions.
func (r *Router) HandleUpdate(from ids.RouterID, route rib.Route) ([]Event, error) {
	if _, ok := r.sessionTo(from); !ok {
		return nil, fmt.Errorf("router %v: update from unconfigured neighbor %v", r.ID, from)
	}
	prefix := route.Prefix
	if r.rawIn[prefix] == nil {
		r.rawIn[prefix] = make(map[ids.RouterID]rib.Route)
	}
	prev, had := r.rawIn[prefix][from]
	r.pushRawIn(prefix, from, prev, had)
	r.rawIn[prefix][from] = route

	return r.reselect(prefix)
}

// HandleWithdraw removes the route previously learned from from for
// prefix and re-runs best-path selection.
func (r *Router) HandleWithdraw(from ids.RouterID, prefix ids.Prefix) ([]Event, error) {
	if _, ok := r.sessionTo(from); !ok {
		return nil, fmt.Errorf("router %v: withdraw from unconfigured neighbor %v", r.ID, from)
	}
	prev, had := r.rawIn[prefix][from]
	if !had {
		return nil, nil
	}
	r.pushRawIn(prefix, from, prev, true)
	delete(r.rawIn[prefix], from)
	return r.reselect(prefix)
}

// Reapply re-runs best-path selection for every prefix with known adj-in
// state, without changing any adj-in entry. It is used after an incoming
// or outgoing route-map (or the IGP table) changes, so the change is
// reflected against routes already on hand.
func (r *Router) Reapply() ([]Event, error) {
	var all []Event
	for prefix := range r.rawIn {
		evs, err := r.reselect(prefix)
		if err != nil {
			return nil, err
		}
		all = append(all, evs...)
	}
	return all, nil
}

// reselect recomputes the filtered adj-in, re-runs the decision process
// for prefix, and diffs the result against what was last advertised,
// emitting Events only for sessions whose announced state actually
// changes.
func (r *Router) reselect(prefix ids.Prefix) ([]Event, error) {
	var entries []rib.Entry
	for from, raw := range r.rawIn[prefix] {
		session, ok := r.sessionTo(from)
		if !ok {
			continue
		}
		filtered, allowed := r.In.Apply(from, raw)
		if !allowed {
			continue
		}
		entries = append(entries, rib.Entry{
			Route:       filtered,
			FromRouter:  from,
			FromSession: session,
			IgpCost:     r.igpCost[filtered.NextHop],
			RouterID:    from,
		})
	}

	prevSelected, hadPrevSelected := r.selected[prefix]

	var newBest *rib.Entry
	if idx := rib.Best(entries); idx >= 0 {
		newBest = &entries[idx]
	}

	r.pushSelectionChange(prefix, prevSelected, hadPrevSelected)
	if newBest == nil {
		delete(r.selected, prefix)
	} else {
		r.selected[prefix] = *newBest
	}

	var events []Event
	for _, n := range r.neighbors {
		ev, changed := r.advertiseTo(n, prefix, newBest)
		if changed {
			events = append(events, ev)
		}
	}
	return events, nil
}

// advertiseTo computes what should be sent to neighbor n for prefix given
// the new best route (nil meaning withdrawn), applies iBGP/eBGP
// re-advertisement scoping and the outgoing route-map, and diffs against
// what was last sent.
func (r *Router) advertiseTo(n Neighbor, prefix ids.Prefix, best *rib.Entry) (Event, bool) {
	if best == nil || best.FromRouter == n.Router || !r.shouldReadvertise(*best, n) {
		return r.withdrawAdvertised(n.Router, prefix)
	}

	out := best.Route
	if n.Session == ids.EBgp {
		if out.Contains(n.AS) {
			// Loop prevention: never hand a route back into an AS it has
			// already crossed.
			return r.withdrawAdvertised(n.Router, prefix)
		}
		out = out.Prepend(r.AS)
		out.LocalPref = rib.DefaultLocalPref
	}
	out, allowed := r.Out.Apply(n.Router, out)
	if !allowed {
		return r.withdrawAdvertised(n.Router, prefix)
	}

	prevAdv, hadPrev := r.advertised[prefix][n.Router]
	if hadPrev && routesEqual(prevAdv, out) {
		return Event{}, false
	}
	r.pushAdvertised(prefix, n.Router, prevAdv, hadPrev)
	if r.advertised[prefix] == nil {
		r.advertised[prefix] = make(map[ids.RouterID]rib.Route)
	}
	r.advertised[prefix][n.Router] = out
	return Event{To: n.Router, Prefix: prefix, Route: out}, true
}

func (r *Router) withdrawAdvertised(to ids.RouterID, prefix ids.Prefix) (Event, bool) {
	prevAdv, ok := r.advertised[prefix][to]
	if !ok {
		return Event{}, false
	}
	r.pushAdvertised(prefix, to, prevAdv, true)
	delete(r.advertised[prefix], to)
	return Event{To: to, Prefix: prefix, Withdraw: true}, true
}

// shouldReadvertise implements iBGP split-horizon: a route learned over
// iBGP is re-advertised only to eBGP sessions and to iBGP clients (route
// reflection), never back out over a plain iBGP peer session.
func (r *Router) shouldReadvertise(best rib.Entry, to Neighbor) bool {
	if best.FromSession == ids.EBgp {
		return true
	}
	switch to.Session {
	case ids.EBgp, ids.IBgpClient:
		return true
	case ids.IBgpPeer:
		return best.FromSession == ids.IBgpClient
	}
	return false
}

func routesEqual(a, b rib.Route) bool {
	if a.Prefix != b.Prefix || a.NextHop != b.NextHop || a.LocalPref != b.LocalPref ||
		a.Med != b.Med || a.HasMed != b.HasMed || a.Community != b.Community || a.HasCommunity != b.HasCommunity {
		return false
	}
	if len(a.AsPath) != len(b.AsPath) {
		return false
	}
	for i := range a.AsPath {
		if a.AsPath[i] != b.AsPath[i] {
			return false
		}
	}
	return true
}

// Selected returns the currently selected best route for prefix, if any.
func (r *Router) Selected(prefix ids.Prefix) (rib.Entry, bool) {
	e, ok := r.selected[prefix]
	return e, ok
}

// NextHop returns the next-hop router this router would forward prefix's
// traffic to. A configured static route always takes priority over the
// BGP-selected next hop.
func (r *Router) NextHop(prefix ids.Prefix) (ids.RouterID, bool) {
	if nh, ok := r.static[prefix]; ok {
		return nh, true
	}
	e, ok := r.selected[prefix]
	if !ok {
		return 0, false
	}
	return e.Route.NextHop, true
}

// KnownPrefixes returns every prefix this router currently has any raw
// adj-in state for.
func (r *Router) KnownPrefixes() []ids.Prefix {
	out := make([]ids.Prefix, 0, len(r.rawIn))
	for p := range r.rawIn {
		out = append(out, p)
	}
	return out
}
