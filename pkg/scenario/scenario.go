// Package scenario loads a migration scenario — topology, BGP sessions,
// external advertisements, and the target route-map configuration — from
// YAML, the same shorthand-friendly format the teacher uses for its
// topology and config-template files.
package scenario

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/nsg-ethz/snowcap-go/internal/telemetry"
	"github.com/nsg-ethz/snowcap-go/pkg/condition"
	"github.com/nsg-ethz/snowcap-go/pkg/ids"
	"github.com/nsg-ethz/snowcap-go/pkg/ltl"
	"github.com/nsg-ethz/snowcap-go/pkg/netsim"
	"github.com/nsg-ethz/snowcap-go/pkg/rib"
	"github.com/nsg-ethz/snowcap-go/pkg/router"
	"github.com/nsg-ethz/snowcap-go/pkg/routemap"
	"github.com/nsg-ethz/snowcap-go/pkg/util"
)

// File is the top-level shape of a scenario YAML document.
type File struct {
	Routers       []RouterSpec   `yaml:"routers"`
	Links         []LinkSpec     `yaml:"links"`
	Sessions      []SessionSpec  `yaml:"sessions"`
	Advertise     []AdvertiseSpec `yaml:"advertise"`
	TargetConfigs []ConfigSpec   `yaml:"target_configs"`
	PolicyClauses []PolicySpec  `yaml:"policy"`
}

// PolicySpec declares one hard-policy clause: Kind must hold at every
// router in Routers for Prefix, at every intermediate migration step
// ("globally", the only horizon snowcap's bounded per-step model needs).
//
// Kind "path" additionally needs Waypoints, a comma-separated shorthand
// for a condition.Pattern: each token is either a router id, "?" (Any,
// exactly one arbitrary hop), or "*" (Star, zero or more arbitrary hops).
// For example "1,*,5" requires the path to start at router 1, pass
// through any number of hops, and end at router 5.
type PolicySpec struct {
	Routers   []int  `yaml:"routers"`
	Prefix    int    `yaml:"prefix"`
	Kind      string `yaml:"kind"` // "reachable", "no_blackhole", "no_loop", "path"
	Waypoints string `yaml:"waypoints"`
}

// parseWaypoints desugars the comma-separated Waypoints shorthand into a
// condition.Pattern.
func parseWaypoints(spec string) (condition.Pattern, error) {
	var pat condition.Pattern
	for _, tok := range util.SplitCommaSeparated(spec) {
		switch tok {
		case "?":
			pat = append(pat, condition.AnyHop())
		case "*":
			pat = append(pat, condition.StarHop())
		default:
			id, err := strconv.Atoi(tok)
			if err != nil {
				return nil, fmt.Errorf("scenario: invalid waypoint token %q", tok)
			}
			pat = append(pat, condition.FixR(ids.RouterID(id)))
		}
	}
	return pat, nil
}

// RouterSpec declares one simulated or external router.
type RouterSpec struct {
	ID       int    `yaml:"id"`
	AS       uint32 `yaml:"as"`
	External bool   `yaml:"external"`
}

// LinkSpec declares one symmetric IGP edge.
type LinkSpec struct {
	A      int     `yaml:"a"`
	B      int     `yaml:"b"`
	Weight float64 `yaml:"weight"`
}

// SessionSpec declares one BGP session, stored on the A side; the
// simulator treats sessions as a directed declaration but IGP links as
// symmetric, matching how route-reflector topologies are usually
// expressed (client sessions only make sense from the reflector's side).
type SessionSpec struct {
	A    int    `yaml:"a"`
	B    int    `yaml:"b"`
	Kind string `yaml:"kind"` // "ebgp", "ibgp-peer", "ibgp-client"
}

// AdvertiseSpec declares an external route injected at an external
// router.
type AdvertiseSpec struct {
	Router    int    `yaml:"router"`
	Prefix    int    `yaml:"prefix"`
	AsPath    []uint32 `yaml:"as_path"`
	LocalPref uint32 `yaml:"local_pref"`
}

// ConfigSpec declares the target incoming/outgoing route-map for one
// router, parsed into a netsim.Modifier once the network is built.
type ConfigSpec struct {
	Router int        `yaml:"router"`
	In     []RuleSpec `yaml:"in"`
	Out    []RuleSpec `yaml:"out"`
	Label  string     `yaml:"label"`
}

// RuleSpec is the YAML shorthand for one routemap.Rule.
type RuleSpec struct {
	Order   uint32       `yaml:"order"`
	Deny    bool         `yaml:"deny"`
	Match   []MatchSpec  `yaml:"match"`
	Set     []SetSpec    `yaml:"set"`
}

// MatchSpec is the YAML shorthand for one routemap.Match.
type MatchSpec struct {
	Neighbor       *int    `yaml:"neighbor"`
	Prefix         *int    `yaml:"prefix"`
	AsPathContains *uint32 `yaml:"as_path_contains"`
	LengthLo       *int    `yaml:"length_lo"`
	LengthHi       *int    `yaml:"length_hi"`
	// LengthRange is a shorthand alternative to LengthLo/LengthHi, e.g.
	// "1-3", desugared into the enclosing low/high bounds via
	// util.ExpandRange. Ignored when LengthLo or LengthHi is set.
	LengthRange string  `yaml:"length_range"`
	Community   *uint32 `yaml:"community"`
}

// SetSpec is the YAML shorthand for one routemap.Set.
type SetSpec struct {
	NextHop      *int    `yaml:"next_hop"`
	LocalPref    *uint32 `yaml:"local_pref"`
	Med          *uint32 `yaml:"med"`
	Community    *uint32 `yaml:"community"`
	ClearCommunity bool  `yaml:"clear_community"`
}

// Load reads and parses a scenario file from path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("scenario: reading %s: %w", path, err)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("scenario: parsing %s: %w", path, err)
	}
	telemetry.Logger.WithField("routers", len(f.Routers)).Info("loaded scenario")
	return &f, nil
}

// Build constructs a converged Network from the scenario's topology,
// sessions, and advertisements (but does not apply TargetConfigs; call
// Modifiers to turn those into the synth engine's input).
func (f *File) Build() (*netsim.Network, error) {
	n := netsim.New()
	for _, rs := range f.Routers {
		r := router.New(ids.RouterID(rs.ID), ids.AsID(rs.AS))
		r.IsRoot = rs.External
		n.AddRouter(r)
	}
	for _, ss := range f.Sessions {
		session, err := parseSessionKind(ss.Kind)
		if err != nil {
			return nil, err
		}
		ra, ok := n.Routers[ids.RouterID(ss.A)]
		if !ok {
			return nil, fmt.Errorf("scenario: session references unknown router %d", ss.A)
		}
		rb, ok := n.Routers[ids.RouterID(ss.B)]
		if !ok {
			return nil, fmt.Errorf("scenario: session references unknown router %d", ss.B)
		}
		ra.AddNeighbor(router.Neighbor{Router: ids.RouterID(ss.B), Session: session, AS: rb.AS})
	}
	for _, ls := range f.Links {
		n.AddLink(ids.RouterID(ls.A), ids.RouterID(ls.B), ids.LinkWeight(ls.Weight))
	}
	n.RecomputeIGP()

	for _, a := range f.Advertise {
		asPath := make([]ids.AsID, len(a.AsPath))
		for i, as := range a.AsPath {
			asPath[i] = ids.AsID(as)
		}
		lp := a.LocalPref
		if lp == 0 {
			lp = rib.DefaultLocalPref
		}
		n.Advertise(ids.RouterID(a.Router), rib.Route{
			Prefix:    ids.Prefix(a.Prefix),
			AsPath:    asPath,
			NextHop:   ids.RouterID(a.Router),
			LocalPref: lp,
		})
	}
	if err := n.Converge(); err != nil {
		return nil, fmt.Errorf("scenario: initial convergence failed: %w", err)
	}
	return n, nil
}

func parseSessionKind(k string) (ids.SessionType, error) {
	switch k {
	case "ebgp":
		return ids.EBgp, nil
	case "ibgp-peer":
		return ids.IBgpPeer, nil
	case "ibgp-client":
		return ids.IBgpClient, nil
	default:
		return 0, fmt.Errorf("scenario: unknown session kind %q", k)
	}
}

// Modifiers converts TargetConfigs into netsim.Modifiers and their
// display labels, ready to hand to synth.New.
func (f *File) Modifiers() ([]netsim.Modifier, []string, error) {
	mods := make([]netsim.Modifier, 0, len(f.TargetConfigs))
	labels := make([]string, 0, len(f.TargetConfigs))
	for _, cs := range f.TargetConfigs {
		in, err := buildRouteMapList(cs.In)
		if err != nil {
			return nil, nil, err
		}
		out, err := buildRouteMapList(cs.Out)
		if err != nil {
			return nil, nil, err
		}
		mods = append(mods, netsim.Modifier{
			Router: ids.RouterID(cs.Router),
			In:     in,
			Out:    out,
		})
		label := cs.Label
		if label == "" {
			label = fmt.Sprintf("reconfigure router %d", cs.Router)
		}
		labels = append(labels, label)
	}
	return mods, labels, nil
}

// Policy conjoins every PolicySpec clause into a single Globally-wrapped
// hard-policy formula: one conjunct per (router, prefix) pair named in
// each clause, since the synthesis engine works with one flat formula.
func (f *File) Policy() (ltl.Formula, error) {
	var conjuncts []ltl.Formula
	for _, ps := range f.PolicyClauses {
		var pattern condition.Pattern
		if ps.Kind == "path" {
			p, err := parseWaypoints(ps.Waypoints)
			if err != nil {
				return ltl.Formula{}, err
			}
			pattern = p
		}
		for _, r := range ps.Routers {
			rid := ids.RouterID(r)
			prefix := ids.Prefix(ps.Prefix)
			var c condition.Condition
			switch ps.Kind {
			case "no_blackhole":
				c = condition.NotBlackHole(rid, prefix)
			case "no_loop":
				c = condition.NotLoop(rid, prefix)
			case "path":
				c = condition.PathMatches(rid, prefix, pattern)
			default: // "reachable" and unrecognized kinds default to reachability
				c = condition.Reachable(rid, prefix)
			}
			conjuncts = append(conjuncts, ltl.Globally(ltl.Prop(c)))
		}
	}
	// ltl.And with no conjuncts holds vacuously: a scenario declaring no
	// policy clauses imposes no hard constraint.
	return ltl.And(conjuncts...), nil
}

// Prefixes returns every distinct prefix named by a policy clause or an
// advertisement, for the soft-policy cost function.
func (f *File) Prefixes() []ids.Prefix {
	seen := make(map[ids.Prefix]bool)
	var out []ids.Prefix
	add := func(p ids.Prefix) {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	for _, ps := range f.PolicyClauses {
		add(ids.Prefix(ps.Prefix))
	}
	for _, a := range f.Advertise {
		add(ids.Prefix(a.Prefix))
	}
	return out
}

// RouterIDs returns every router declared in the scenario.
func (f *File) RouterIDs() []ids.RouterID {
	out := make([]ids.RouterID, len(f.Routers))
	for i, rs := range f.Routers {
		out[i] = ids.RouterID(rs.ID)
	}
	return out
}

func buildRouteMapList(specs []RuleSpec) (*routemap.List, error) {
	if specs == nil {
		return nil, nil
	}
	rules := make([]routemap.Rule, 0, len(specs))
	for _, rs := range specs {
		rule := routemap.Rule{Order: rs.Order, Action: routemap.Allow}
		if rs.Deny {
			rule.Action = routemap.Deny
		}
		for _, m := range rs.Match {
			match, err := buildMatch(m)
			if err != nil {
				return nil, err
			}
			rule.Matches = append(rule.Matches, match)
		}
		for _, s := range rs.Set {
			rule.Sets = append(rule.Sets, buildSet(s))
		}
		rules = append(rules, rule)
	}
	return routemap.NewList(rules), nil
}

func buildMatch(m MatchSpec) (routemap.Match, error) {
	switch {
	case m.Neighbor != nil:
		return routemap.Match{Kind: routemap.MatchNeighbor, Router: ids.RouterID(*m.Neighbor)}, nil
	case m.Prefix != nil:
		return routemap.Match{Kind: routemap.MatchPrefix, Prefix: ids.Prefix(*m.Prefix)}, nil
	case m.AsPathContains != nil:
		return routemap.Match{Kind: routemap.MatchAsPathContains, AS: ids.AsID(*m.AsPathContains)}, nil
	case m.LengthLo != nil || m.LengthHi != nil:
		lo, hi := 0, 1<<30
		if m.LengthLo != nil {
			lo = *m.LengthLo
		}
		if m.LengthHi != nil {
			hi = *m.LengthHi
		}
		return routemap.Match{Kind: routemap.MatchAsPathLength, LengthLo: lo, LengthHi: hi}, nil
	case m.LengthRange != "":
		vals, err := util.ExpandRange(m.LengthRange)
		if err != nil {
			return routemap.Match{}, fmt.Errorf("scenario: invalid length_range %q: %w", m.LengthRange, err)
		}
		if len(vals) == 0 {
			return routemap.Match{}, fmt.Errorf("scenario: empty length_range %q", m.LengthRange)
		}
		lo, hi := vals[0], vals[0]
		for _, v := range vals {
			if v < lo {
				lo = v
			}
			if v > hi {
				hi = v
			}
		}
		return routemap.Match{Kind: routemap.MatchAsPathLength, LengthLo: lo, LengthHi: hi}, nil
	case m.Community != nil:
		return routemap.Match{Kind: routemap.MatchCommunity, Community: *m.Community}, nil
	default:
		return routemap.Match{}, nil
	}
}

func buildSet(s SetSpec) routemap.Set {
	switch {
	case s.NextHop != nil:
		return routemap.Set{Kind: routemap.SetNextHop, RouterVal: ids.RouterID(*s.NextHop)}
	case s.LocalPref != nil:
		return routemap.Set{Kind: routemap.SetLocalPref, U32Val: *s.LocalPref}
	case s.Med != nil:
		return routemap.Set{Kind: routemap.SetMed, U32Val: *s.Med}
	case s.Community != nil:
		return routemap.Set{Kind: routemap.SetCommunity, U32Val: *s.Community}
	case s.ClearCommunity:
		return routemap.Set{Kind: routemap.SetClearCommunity}
	default:
		return routemap.Set{}
	}
}
