// Package rib defines the BGP route and RIB-entry types shared by the
// route-map engine and the per-router decision process, and the six-step
// BGP best-path comparison itself.
package rib

import (
	"github.com/nsg-ethz/snowcap-go/pkg/ids"
)

// DefaultLocalPref is applied to a route when no set-clause or session
// default overrides it.
const DefaultLocalPref = 100

// Route is a BGP route advertisement as carried on the wire between two
// routers. Optional attributes that route-maps can strip back to their
// session default are modeled as pointers so "unset" is distinguishable
// from "set to the zero value".
type Route struct {
	Prefix    ids.Prefix
	AsPath    []ids.AsID
	NextHop   ids.RouterID
	LocalPref uint32
	Med       uint32
	Community uint32
	HasMed    bool
	HasCommunity bool
}

// Clone returns a deep copy so callers can mutate a route via a route-map
// without aliasing the original RIB entry's AS-path slice.
func (r Route) Clone() Route {
	c := r
	c.AsPath = append([]ids.AsID(nil), r.AsPath...)
	return c
}

// Prepend returns a copy of the route with as prepended to the front of
// the AS-path, as happens once per eBGP hop.
func (r Route) Prepend(as ids.AsID) Route {
	c := r.Clone()
	c.AsPath = append([]ids.AsID{as}, c.AsPath...)
	return c
}

// Contains reports whether as appears anywhere in the route's AS-path,
// the check eBGP outbound advertisement uses to refuse sending a route
// back toward an AS it has already crossed.
func (r Route) Contains(as ids.AsID) bool {
	for _, a := range r.AsPath {
		if a == as {
			return true
		}
	}
	return false
}

// NeighborAS returns the AS that most recently handed this route to us:
// the head of the AS-path for an eBGP-learned route, or localAS for a
// directly originated one.
func (r Route) NeighborAS(localAS ids.AsID) ids.AsID {
	if len(r.AsPath) == 0 {
		return localAS
	}
	return r.AsPath[0]
}

// Entry is a single RIB entry: a route together with the bookkeeping the
// decision process and re-advertisement logic need but that is not part
// of the route's own wire attributes.
type Entry struct {
	Route       Route
	FromRouter  ids.RouterID
	FromSession ids.SessionType
	// IgpCost is the IGP distance from the local router to Route.NextHop,
	// used as the fourth decision-process tiebreak. It is recomputed
	// whenever the IGP table changes, independent of any BGP update.
	IgpCost float64
	// RouterID is the BGP router-id of the neighbor the route was
	// received from, used for the final deterministic tiebreak.
	RouterID ids.RouterID
}

// Less implements the BGP best-path comparison: it reports whether a is
// strictly preferred to b. Ties at every step favor neither (Less returns
// false both ways); callers break true ties with router-id, which this
// function already folds in as step six.
func Less(a, b Entry) bool {
	if a.Route.LocalPref != b.Route.LocalPref {
		return a.Route.LocalPref > b.Route.LocalPref
	}
	if len(a.Route.AsPath) != len(b.Route.AsPath) {
		return len(a.Route.AsPath) < len(b.Route.AsPath)
	}
	aMed, bMed := medOf(a), medOf(b)
	if a.Route.NeighborAS(0) == b.Route.NeighborAS(0) && aMed != bMed {
		return aMed < bMed
	}
	aEbgp, bEbgp := a.FromSession == ids.EBgp, b.FromSession == ids.EBgp
	if aEbgp != bEbgp {
		return aEbgp
	}
	if a.IgpCost != b.IgpCost {
		return a.IgpCost < b.IgpCost
	}
	return a.RouterID < b.RouterID
}

func medOf(e Entry) uint32 {
	if e.Route.HasMed {
		return e.Route.Med
	}
	return 0
}

// Best returns the index of the most preferred entry in entries, or -1 if
// entries is empty.
func Best(entries []Entry) int {
	best := -1
	for i, e := range entries {
		if best == -1 || Less(e, entries[best]) {
			best = i
		}
	}
	return best
}
