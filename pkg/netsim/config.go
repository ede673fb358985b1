package netsim

import (
	"fmt"

	"github.com/nsg-ethz/snowcap-go/pkg/ids"
	"github.com/nsg-ethz/snowcap-go/pkg/router"
	"github.com/nsg-ethz/snowcap-go/pkg/routemap"
)

// modKind tags which change a Modifier makes, so Apply/Undo know which
// fields of Modifier and coarseUndo are live. A Modifier carries exactly
// one non-route-map change at a time; Router/In/Out stay the top-level
// fields so existing callers that only ever swapped route-maps (the CLI's
// ApplyRouteMaps path, every scenario-config modifier) keep compiling
// unchanged.
type modKind int

const (
	modRouteMap modKind = iota
	modSession
	modIgpWeight
	modStatic
)

// Modifier is one atomic, reversible configuration change. The common case
// swaps a router's incoming and/or outgoing route-map; Session, IgpWeight
// and StaticRoute cover the other three configuration kinds (spec.md §9):
// adding/removing a BGP session, changing an IGP link weight, and
// installing/removing a static route. A migration plan is a total order
// over a set of Modifiers; the synthesis engine explores prefixes of that
// order by speculatively applying one modifier at a time and rolling it
// back with Undo if the resulting converged state violates the hard
// policy.
type Modifier struct {
	Router ids.RouterID
	In     *routemap.List
	Out    *routemap.List

	Session     *SessionModifier
	IgpWeight   *IgpWeightModifier
	StaticRoute *StaticRouteModifier
}

// SessionModifier adds or removes the BGP session between A and B. The
// session type may differ at each end (A sees B as an eBGP peer, B sees A
// as an iBGP client, etc.), mirroring how a route-reflector relationship
// is configured asymmetrically.
type SessionModifier struct {
	A, B       ids.RouterID
	SessionAtA ids.SessionType
	SessionAtB ids.SessionType
	Add        bool // true installs the session, false tears it down
}

// AddSession builds a Modifier that establishes a BGP session between a
// and b.
func AddSession(a, b ids.RouterID, sessionAtA, sessionAtB ids.SessionType) Modifier {
	return Modifier{Session: &SessionModifier{A: a, B: b, SessionAtA: sessionAtA, SessionAtB: sessionAtB, Add: true}}
}

// RemoveSession builds a Modifier that tears down the BGP session between
// a and b.
func RemoveSession(a, b ids.RouterID, sessionAtA, sessionAtB ids.SessionType) Modifier {
	return Modifier{Session: &SessionModifier{A: a, B: b, SessionAtA: sessionAtA, SessionAtB: sessionAtB, Add: false}}
}

// IgpWeightModifier changes the IGP link weight between Router and Peer.
type IgpWeightModifier struct {
	Router ids.RouterID
	Peer   ids.RouterID
	Weight ids.LinkWeight
}

// StaticRouteModifier installs or removes a static route on Router.
type StaticRouteModifier struct {
	Router  ids.RouterID
	Prefix  ids.Prefix
	NextHop ids.RouterID
	Remove  bool
}

// coarseUndo is the network-level undo record pushed by Apply: enough to
// put every router's BGP state back exactly as it was before the
// modifier's cascading re-convergence, plus whatever config-level state
// (route-maps, IGP weight) lives outside any single router's own undo
// log.
type coarseUndo struct {
	kind modKind

	modifier Modifier
	marks    map[ids.RouterID]int

	// modRouteMap
	prevIn  *routemap.List
	prevOut *routemap.List

	// modIgpWeight
	weightA, weightB ids.RouterID
	prevWeight       ids.LinkWeight
	hadWeight        bool
}

// Apply installs a Modifier and converges the network, recording enough
// state to reverse both the config change and every RIB mutation it
// caused anywhere in the network.
func (n *Network) Apply(m Modifier) error {
	switch {
	case m.Session != nil:
		return n.applySession(m)
	case m.IgpWeight != nil:
		return n.applyIgpWeight(m)
	case m.StaticRoute != nil:
		return n.applyStaticRoute(m)
	default:
		return n.applyRouteMap(m)
	}
}

func (n *Network) applyRouteMap(m Modifier) error {
	r, ok := n.Routers[m.Router]
	if !ok {
		return nil
	}

	cu := coarseUndo{kind: modRouteMap, modifier: m, prevIn: r.In, prevOut: r.Out, marks: n.markAll()}
	n.undo = append(n.undo, cu)

	newIn, newOut := r.In, r.Out
	if m.In != nil {
		newIn = m.In
	}
	if m.Out != nil {
		newOut = m.Out
	}
	if err := n.SetRouteMaps(m.Router, newIn, newOut); err != nil {
		return err
	}
	return n.Converge()
}

func (n *Network) applySession(m Modifier) error {
	sm := m.Session
	ra, ok := n.Routers[sm.A]
	if !ok {
		return fmt.Errorf("session modifier: unknown router %v", sm.A)
	}
	rb, ok := n.Routers[sm.B]
	if !ok {
		return fmt.Errorf("session modifier: unknown router %v", sm.B)
	}

	cu := coarseUndo{kind: modSession, modifier: m, marks: n.markAll()}
	n.undo = append(n.undo, cu)

	if sm.Add {
		n.enqueueRouterEvents(sm.A, ra.AddNeighborLive(router.Neighbor{Router: sm.B, Session: sm.SessionAtA, AS: rb.AS}))
		n.enqueueRouterEvents(sm.B, rb.AddNeighborLive(router.Neighbor{Router: sm.A, Session: sm.SessionAtB, AS: ra.AS}))
	} else {
		n.enqueueRouterEvents(sm.A, ra.RemoveNeighborLive(sm.B))
		n.enqueueRouterEvents(sm.B, rb.RemoveNeighborLive(sm.A))
	}
	return n.Converge()
}

func (n *Network) applyIgpWeight(m Modifier) error {
	wm := m.IgpWeight
	if _, ok := n.Routers[wm.Router]; !ok {
		return fmt.Errorf("igp weight modifier: unknown router %v", wm.Router)
	}
	if _, ok := n.Routers[wm.Peer]; !ok {
		return fmt.Errorf("igp weight modifier: unknown router %v", wm.Peer)
	}

	prevWeight, hadWeight := n.igp[wm.Router][wm.Peer]
	cu := coarseUndo{
		kind: modIgpWeight, modifier: m, marks: n.markAll(),
		weightA: wm.Router, weightB: wm.Peer, prevWeight: prevWeight, hadWeight: hadWeight,
	}
	n.undo = append(n.undo, cu)

	n.AddLink(wm.Router, wm.Peer, wm.Weight)
	n.RecomputeIGP()
	if err := n.ReapplyIGP(); err != nil {
		return err
	}
	return n.Converge()
}

func (n *Network) applyStaticRoute(m Modifier) error {
	sm := m.StaticRoute
	r, ok := n.Routers[sm.Router]
	if !ok {
		return fmt.Errorf("static route modifier: unknown router %v", sm.Router)
	}

	cu := coarseUndo{kind: modStatic, modifier: m, marks: n.markAll()}
	n.undo = append(n.undo, cu)

	if sm.Remove {
		r.RemoveStaticRouteLive(sm.Prefix)
	} else {
		r.SetStaticRouteLive(sm.Prefix, sm.NextHop)
	}
	// Static routes bypass BGP propagation entirely, so there is nothing
	// to converge beyond the forwarding-state cache, which the caller
	// invalidates on read.
	return nil
}

func (n *Network) markAll() map[ids.RouterID]int {
	marks := make(map[ids.RouterID]int, len(n.Routers))
	for id, rt := range n.Routers {
		marks[id] = rt.Mark()
	}
	return marks
}

// Undo reverses the most recently applied Modifier: restores whatever
// config-level state lives outside a router's own undo log, rewinds
// every router's BGP state to its pre-apply mark, and, for the
// route-map and IGP-weight cases, restores the board-level value that
// triggered re-convergence.
func (n *Network) Undo() bool {
	if len(n.undo) == 0 {
		return false
	}
	cu := n.undo[len(n.undo)-1]
	n.undo = n.undo[:len(n.undo)-1]

	for id, mark := range cu.marks {
		if rt, ok := n.Routers[id]; ok {
			rt.UndoTo(mark)
		}
	}

	switch cu.kind {
	case modRouteMap:
		if r, ok := n.Routers[cu.modifier.Router]; ok {
			r.In = cu.prevIn
			r.Out = cu.prevOut
		}
	case modIgpWeight:
		if cu.hadWeight {
			n.igp[cu.weightA][cu.weightB] = cu.prevWeight
			n.igp[cu.weightB][cu.weightA] = cu.prevWeight
		} else if n.igp[cu.weightA] != nil {
			delete(n.igp[cu.weightA], cu.weightB)
			delete(n.igp[cu.weightB], cu.weightA)
		}
		n.RecomputeIGP()
	}
	n.queue.Init()
	return true
}

// UndoDepth reports how many Modifiers are currently applied and
// reversible, for tests and the synthesis engine's bookkeeping.
func (n *Network) UndoDepth() int {
	return len(n.undo)
}

// Snapshot builds the Config describing the network's current live
// state: every router's route-map rules, every BGP session, every IGP
// link weight, and every static route.
func (n *Network) Snapshot() *Config {
	cfg := NewConfig()
	seenSessions := make(map[ids.RouterID]map[ids.RouterID]bool)
	seenLinks := make(map[ids.RouterID]map[ids.RouterID]bool)

	for id, r := range n.Routers {
		for _, rule := range r.InRules() {
			k := routeMapKey(id, routemap.In, rule.Order)
			cfg.Exprs[k] = ConfigExpr{Key: k, Rule: rule}
		}
		for _, rule := range r.OutRules() {
			k := routeMapKey(id, routemap.Out, rule.Order)
			cfg.Exprs[k] = ConfigExpr{Key: k, Rule: rule}
		}
		for prefix, nh := range r.StaticRoutes() {
			k := staticRouteKey(id, prefix)
			cfg.Exprs[k] = ConfigExpr{Key: k, NextHop: nh}
		}
		for _, nb := range r.Neighbors() {
			if seenSessions[id][nb.Router] || seenSessions[nb.Router][id] {
				continue
			}
			peer, ok := n.Routers[nb.Router]
			if !ok {
				continue
			}
			peerSession, ok := peer.SessionTo(id)
			if !ok {
				continue
			}
			k := bgpSessionKey(id, nb.Router)
			atA, atB := nb.Session, peerSession
			if id != k.A {
				atA, atB = atB, atA
			}
			cfg.Exprs[k] = ConfigExpr{Key: k, SessionAtA: atA, SessionAtB: atB}
			if seenSessions[id] == nil {
				seenSessions[id] = make(map[ids.RouterID]bool)
			}
			seenSessions[id][nb.Router] = true
		}
		for peer, w := range n.igp[id] {
			if seenLinks[id][peer] || seenLinks[peer][id] {
				continue
			}
			k := igpWeightKey(id, peer)
			cfg.Exprs[k] = ConfigExpr{Key: k, Weight: w}
			if seenLinks[id] == nil {
				seenLinks[id] = make(map[ids.RouterID]bool)
			}
			seenLinks[id][peer] = true
		}
	}
	return cfg
}

// ApplyModifier translates a single ConfigPatch entry into the equivalent
// Modifier and applies it. Route-map modifiers are translated by
// rebuilding the affected router's whole rule list, since the live router
// model replaces route-maps wholesale rather than patching a single rule.
func (n *Network) ApplyModifier(mod ConfigModifier) error {
	key := mod.key()
	switch key.Kind {
	case ExprRouteMap:
		return n.applyRouteMapModifier(mod)
	case ExprBgpSession:
		return n.applySessionModifier(mod)
	case ExprIgpWeight:
		return n.applyIgpWeightModifier(mod)
	case ExprStaticRoute:
		return n.applyStaticRouteModifier(mod)
	default:
		return fmt.Errorf("config modifier: unknown expression kind %v", key.Kind)
	}
}

func (n *Network) applyRouteMapModifier(mod ConfigModifier) error {
	key := mod.key()
	r, ok := n.Routers[key.Router]
	if !ok {
		return fmt.Errorf("route-map modifier: unknown router %v", key.Router)
	}
	rules := r.InRules()
	if key.Direction == routemap.Out {
		rules = r.OutRules()
	}
	rules = applyRuleModifier(rules, mod)

	list := routemap.NewList(rules)
	if key.Direction == routemap.Out {
		return n.Apply(Modifier{Router: key.Router, Out: list})
	}
	return n.Apply(Modifier{Router: key.Router, In: list})
}

func applyRuleModifier(rules []routemap.Rule, mod ConfigModifier) []routemap.Rule {
	out := append([]routemap.Rule(nil), rules...)
	switch mod.Kind {
	case ModInsert:
		return append(out, mod.Expr.Rule)
	case ModRemove:
		for i, rule := range out {
			if rule.Order == mod.Expr.Key.Order {
				return append(out[:i], out[i+1:]...)
			}
		}
		return out
	case ModUpdate:
		for i, rule := range out {
			if rule.Order == mod.From.Key.Order {
				out[i] = mod.To.Rule
				return out
			}
		}
		return append(out, mod.To.Rule)
	default:
		return out
	}
}

func (n *Network) applySessionModifier(mod ConfigModifier) error {
	key := mod.key()
	switch mod.Kind {
	case ModInsert:
		return n.Apply(AddSession(key.A, key.B, mod.Expr.SessionAtA, mod.Expr.SessionAtB))
	case ModRemove:
		return n.Apply(RemoveSession(key.A, key.B, mod.Expr.SessionAtA, mod.Expr.SessionAtB))
	case ModUpdate:
		if err := n.Apply(RemoveSession(key.A, key.B, mod.From.SessionAtA, mod.From.SessionAtB)); err != nil {
			return err
		}
		return n.Apply(AddSession(key.A, key.B, mod.To.SessionAtA, mod.To.SessionAtB))
	default:
		return fmt.Errorf("session modifier: unknown modifier kind %v", mod.Kind)
	}
}

func (n *Network) applyIgpWeightModifier(mod ConfigModifier) error {
	key := mod.key()
	weight := mod.Expr.Weight
	if mod.Kind == ModUpdate {
		weight = mod.To.Weight
	}
	if mod.Kind == ModRemove {
		weight = ids.Unreachable
	}
	return n.Apply(Modifier{IgpWeight: &IgpWeightModifier{Router: key.A, Peer: key.B, Weight: weight}})
}

func (n *Network) applyStaticRouteModifier(mod ConfigModifier) error {
	key := mod.key()
	switch mod.Kind {
	case ModInsert:
		return n.Apply(Modifier{StaticRoute: &StaticRouteModifier{Router: key.Router, Prefix: key.Prefix, NextHop: mod.Expr.NextHop}})
	case ModRemove:
		return n.Apply(Modifier{StaticRoute: &StaticRouteModifier{Router: key.Router, Prefix: key.Prefix, Remove: true}})
	case ModUpdate:
		return n.Apply(Modifier{StaticRoute: &StaticRouteModifier{Router: key.Router, Prefix: key.Prefix, NextHop: mod.To.NextHop}})
	default:
		return fmt.Errorf("static route modifier: unknown modifier kind %v", mod.Kind)
	}
}

// SetConfig diffs the network's current Snapshot against target and
// applies the resulting patch one modifier at a time, rolling back every
// modifier applied so far if any one of them fails.
func (n *Network) SetConfig(target *Config) error {
	patch := n.Snapshot().Diff(target)
	startDepth := n.UndoDepth()
	for _, mod := range patch {
		if err := n.ApplyModifier(mod); err != nil {
			for n.UndoDepth() > startDepth {
				n.Undo()
			}
			return err
		}
	}
	return nil
}
