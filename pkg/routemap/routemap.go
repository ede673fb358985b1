// Package routemap implements the route-map match/set engine: an ordered
// list of rules, each a conjunction of match clauses and a list of set
// actions, applied to a route crossing a session in one direction.
//
// This mirrors the shape of the original Rust netsim::route_map module:
// rules are evaluated in ascending Order, the first matching rule decides
// the route's fate, and a route matching no rule at all is implicitly
// allowed unchanged.
package routemap

import (
	"sort"

	"github.com/nsg-ethz/snowcap-go/pkg/ids"
	"github.com/nsg-ethz/snowcap-go/pkg/rib"
)

// Direction distinguishes a router's incoming route-map list from its
// outgoing one; used as part of a route-map rule's configuration key.
type Direction int

const (
	In Direction = iota
	Out
)

func (d Direction) String() string {
	if d == Out {
		return "out"
	}
	return "in"
}

// State is the action a matching rule takes on a route.
type State int

const (
	Allow State = iota
	Deny
)

// MatchKind enumerates the clauses a rule can test.
type MatchKind int

const (
	MatchNeighbor MatchKind = iota
	MatchPrefix
	MatchPrefixRange
	MatchAsPathContains
	MatchAsPathLength
	MatchNextHop
	MatchCommunity
	MatchCommunityRange
	MatchCommunityPresent
)

// Match is a single match clause. Only the fields relevant to Kind are
// read.
type Match struct {
	Kind       MatchKind
	Router     ids.RouterID
	Prefix     ids.Prefix
	PrefixLo   ids.Prefix
	PrefixHi   ids.Prefix
	AS         ids.AsID
	LengthLo   int
	LengthHi   int
	Community  uint32
	CommLo     uint32
	CommHi     uint32
}

func (m Match) matches(from ids.RouterID, r rib.Route) bool {
	switch m.Kind {
	case MatchNeighbor:
		return from == m.Router
	case MatchPrefix:
		return r.Prefix == m.Prefix
	case MatchPrefixRange:
		return r.Prefix >= m.PrefixLo && r.Prefix <= m.PrefixHi
	case MatchAsPathContains:
		for _, as := range r.AsPath {
			if as == m.AS {
				return true
			}
		}
		return false
	case MatchAsPathLength:
		n := len(r.AsPath)
		return n >= m.LengthLo && n <= m.LengthHi
	case MatchNextHop:
		return r.NextHop == m.Router
	case MatchCommunity:
		return r.HasCommunity && r.Community == m.Community
	case MatchCommunityRange:
		return r.HasCommunity && r.Community >= m.CommLo && r.Community <= m.CommHi
	case MatchCommunityPresent:
		return r.HasCommunity
	default:
		return false
	}
}

// SetKind enumerates the attribute a set action rewrites.
type SetKind int

const (
	SetNextHop SetKind = iota
	SetLocalPref
	SetMed
	SetCommunity
	SetClearCommunity
	SetClearMed
)

// Set is a single set action, applied after a rule's match clauses all
// succeed.
type Set struct {
	Kind      SetKind
	RouterVal ids.RouterID
	U32Val    uint32
}

func (s Set) apply(r rib.Route) rib.Route {
	out := r.Clone()
	switch s.Kind {
	case SetNextHop:
		out.NextHop = s.RouterVal
	case SetLocalPref:
		out.LocalPref = s.U32Val
	case SetMed:
		out.Med = s.U32Val
		out.HasMed = true
	case SetCommunity:
		out.Community = s.U32Val
		out.HasCommunity = true
	case SetClearCommunity:
		out.Community = 0
		out.HasCommunity = false
	case SetClearMed:
		out.Med = 0
		out.HasMed = false
	}
	return out
}

// Rule is one ordered entry in a route-map: a set of match clauses
// (conjunction), an action, and the set clauses applied on Allow.
type Rule struct {
	Order   uint32
	Matches []Match
	Action  State
	Sets    []Set
}

func (rule Rule) matches(from ids.RouterID, r rib.Route) bool {
	for _, m := range rule.Matches {
		if !m.matches(from, r) {
			return false
		}
	}
	return true
}

// List is an ordered route-map: rules are tried in ascending Order, and
// the first one whose match clauses all succeed decides the outcome. A
// route matching no rule is allowed through unchanged, matching the
// implicit default of every route-map implementation in the corpus.
type List struct {
	rules []Rule
}

// NewList builds a List from an unordered slice of rules, sorting them by
// Order once up front so Apply never has to re-sort.
func NewList(rules []Rule) *List {
	sorted := append([]Rule(nil), rules...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Order < sorted[j].Order })
	return &List{rules: sorted}
}

// Rules returns the sorted rule list, for inspection by the synthesis
// engine's config-patch diffing.
func (l *List) Rules() []Rule {
	return l.rules
}

// Apply runs the route-map against a route received from (or destined
// to) neighbor from. It reports the resulting route and whether the
// route survives (true) or is denied (false).
func (l *List) Apply(from ids.RouterID, r rib.Route) (rib.Route, bool) {
	if l == nil {
		return r, true
	}
	for _, rule := range l.rules {
		if !rule.matches(from, r) {
			continue
		}
		if rule.Action == Deny {
			return rib.Route{}, false
		}
		out := r
		for _, s := range rule.Sets {
			out = s.apply(out)
		}
		return out, true
	}
	return r, true
}
