// Package gadgets builds a handful of small, named example networks used
// as test fixtures and benchmark inputs: the chain, the bipartite+carousel
// fusion, the evil-twin, and a variable-size Abilene-like topology. These
// mirror the example networks used throughout the original project's own
// test suite to exercise specific corners of the decision process and
// the synthesis search.
package gadgets

import (
	"fmt"
	"math/rand"

	"github.com/nsg-ethz/snowcap-go/pkg/ids"
	"github.com/nsg-ethz/snowcap-go/pkg/netsim"
	"github.com/nsg-ethz/snowcap-go/pkg/rib"
	"github.com/nsg-ethz/snowcap-go/pkg/router"
	"github.com/nsg-ethz/snowcap-go/pkg/routemap"
)

const externalBase ids.RouterID = 1000

// chainB0, chainB1 are the two egress border routers of the Chain gadget:
// b0 is the sole initial source of the prefix, b1 the new provider the
// migration moves every chain router onto.
const (
	chainB0 ids.RouterID = externalBase
	chainB1 ids.RouterID = externalBase + 1
)

// Chain builds a length-n iBGP chain r0 - r1 - ... - r(n-1), fed at the
// head (r0) by border router b0 over eBGP, with a second border router b1
// present in the topology but not yet peered with anyone. The head-side
// router of each link treats the tail-side one as its route-reflector
// client, so b0's route is reflected down the whole chain. The returned
// migration retires b0 in favor of b1: for each router, in strict
// tail-to-head order, it establishes a direct eBGP session to b1 and then
// severs the iBGP link toward the head that used to relay b0's route.
//
// Any other order blacks a router out: cutting r(i)'s link toward the
// head before r(i+1)..r(n-1) have their own b1 session strands them,
// since that link was their only path to a route at all. Processing
// tail-first (r(n-1) down to r0) is therefore the unique safe order,
// matching the two-egress BGP-session-swap scenario this gadget models.
func Chain(n int) (*netsim.Network, []netsim.Modifier, []string, error) {
	if n < 2 {
		return nil, nil, nil, fmt.Errorf("gadgets: chain needs at least 2 routers")
	}
	net := netsim.New()

	b0 := router.New(chainB0, 65001)
	b0.IsRoot = true
	b1 := router.New(chainB1, 65002)
	b1.IsRoot = true
	net.AddRouter(b0)
	net.AddRouter(b1)

	for i := 0; i < n; i++ {
		net.AddRouter(router.New(ids.RouterID(i), 1))
	}
	b0.AddNeighbor(router.Neighbor{Router: 0, Session: ids.EBgp})
	net.Routers[0].AddNeighbor(router.Neighbor{Router: chainB0, Session: ids.EBgp})

	for i := 0; i < n-1; i++ {
		net.Routers[ids.RouterID(i)].AddNeighbor(router.Neighbor{Router: ids.RouterID(i + 1), Session: ids.IBgpClient})
		net.Routers[ids.RouterID(i+1)].AddNeighbor(router.Neighbor{Router: ids.RouterID(i), Session: ids.IBgpPeer})
		net.AddLink(ids.RouterID(i), ids.RouterID(i+1), 1)
	}
	net.RecomputeIGP()
	net.Advertise(chainB0, rib.Route{Prefix: 1, NextHop: chainB0, LocalPref: rib.DefaultLocalPref})
	if err := net.Converge(); err != nil {
		return nil, nil, nil, err
	}

	var mods []netsim.Modifier
	var labels []string
	for i := n - 1; i >= 0; i-- {
		ri := ids.RouterID(i)
		mods = append(mods, netsim.AddSession(ri, chainB1, ids.EBgp, ids.EBgp))
		labels = append(labels, fmt.Sprintf("establish r%d's direct session to b1", i))
		if i > 0 {
			mods = append(mods, netsim.RemoveSession(ri, ids.RouterID(i-1), ids.IBgpPeer, ids.IBgpClient))
			labels = append(labels, fmt.Sprintf("retire r%d's link toward the b0 side", i))
		} else {
			mods = append(mods, netsim.RemoveSession(ri, chainB0, ids.EBgp, ids.EBgp))
			labels = append(labels, "decommission b0's session at r0")
		}
	}
	return net, mods, labels, nil
}

// BipartiteCarousel builds two independent origins (left and right) both
// reachable from a shared core of k routers arranged so the decision
// process's AS-path/local-pref tiebreaks rotate the selected egress as
// each core router's policy is migrated in turn, hence "carousel": the
// fusion of a bipartite access layer with a cyclic core.
func BipartiteCarousel(k int) (*netsim.Network, []netsim.Modifier, []string, error) {
	if k < 3 {
		return nil, nil, nil, fmt.Errorf("gadgets: bipartite-carousel needs a core of at least 3")
	}
	net := netsim.New()

	left := router.New(900, 65001)
	left.IsRoot = true
	right := router.New(901, 65002)
	right.IsRoot = true
	net.AddRouter(left)
	net.AddRouter(right)

	for i := 1; i <= k; i++ {
		net.AddRouter(router.New(ids.RouterID(i), 1))
	}
	left.AddNeighbor(router.Neighbor{Router: 1, Session: ids.EBgp})
	net.Routers[1].AddNeighbor(router.Neighbor{Router: 900, Session: ids.EBgp})
	right.AddNeighbor(router.Neighbor{Router: ids.RouterID(k), Session: ids.EBgp})
	net.Routers[ids.RouterID(k)].AddNeighbor(router.Neighbor{Router: 901, Session: ids.EBgp})

	for i := 1; i <= k; i++ {
		j := i%k + 1
		net.Routers[ids.RouterID(i)].AddNeighbor(router.Neighbor{Router: ids.RouterID(j), Session: ids.IBgpPeer})
		net.Routers[ids.RouterID(j)].AddNeighbor(router.Neighbor{Router: ids.RouterID(i), Session: ids.IBgpPeer})
		net.AddLink(ids.RouterID(i), ids.RouterID(j), 1)
	}
	net.RecomputeIGP()

	net.Advertise(900, rib.Route{Prefix: 1, NextHop: 900, LocalPref: rib.DefaultLocalPref})
	net.Advertise(901, rib.Route{Prefix: 1, NextHop: 901, LocalPref: rib.DefaultLocalPref})
	if err := net.Converge(); err != nil {
		return nil, nil, nil, err
	}

	var mods []netsim.Modifier
	var labels []string
	for i := 1; i <= k; i++ {
		preferRight := routemap.NewList([]routemap.Rule{
			{Order: 1, Matches: []routemap.Match{{Kind: routemap.MatchNeighbor, Router: ids.RouterID(k)}},
				Action: routemap.Allow, Sets: []routemap.Set{{Kind: routemap.SetLocalPref, U32Val: 200}}},
		})
		mods = append(mods, netsim.Modifier{Router: ids.RouterID(i), In: preferRight})
		labels = append(labels, fmt.Sprintf("swing r%d's preference toward the right origin", i))
	}
	return net, mods, labels, nil
}

// EvilTwin builds two routers (the "twins") that both claim the same
// next-hop identity through distinct sessions, a pattern known to
// surface route-map ordering bugs where an incoming filter keyed on
// neighbor identity is migrated before the corresponding outgoing filter
// on the twin, briefly admitting a route that should have been denied.
func EvilTwin() (*netsim.Network, []netsim.Modifier, []string, error) {
	net := netsim.New()
	ext := router.New(800, 65000)
	ext.IsRoot = true
	twinA := router.New(1, 1)
	twinB := router.New(2, 1)
	core := router.New(3, 1)

	net.AddRouter(ext)
	net.AddRouter(twinA)
	net.AddRouter(twinB)
	net.AddRouter(core)

	ext.AddNeighbor(router.Neighbor{Router: 1, Session: ids.EBgp})
	ext.AddNeighbor(router.Neighbor{Router: 2, Session: ids.EBgp})
	twinA.AddNeighbor(router.Neighbor{Router: 800, Session: ids.EBgp})
	twinB.AddNeighbor(router.Neighbor{Router: 800, Session: ids.EBgp})
	twinA.AddNeighbor(router.Neighbor{Router: 3, Session: ids.IBgpPeer})
	twinB.AddNeighbor(router.Neighbor{Router: 3, Session: ids.IBgpPeer})
	core.AddNeighbor(router.Neighbor{Router: 1, Session: ids.IBgpPeer})
	core.AddNeighbor(router.Neighbor{Router: 2, Session: ids.IBgpPeer})

	net.AddLink(1, 3, 1)
	net.AddLink(2, 3, 1)
	net.RecomputeIGP()

	net.Advertise(800, rib.Route{Prefix: 1, NextHop: 800, LocalPref: rib.DefaultLocalPref})
	if err := net.Converge(); err != nil {
		return nil, nil, nil, err
	}

	denyTwin := routemap.NewList([]routemap.Rule{{Order: 1, Action: routemap.Deny}})
	mods := []netsim.Modifier{
		{Router: 2, In: denyTwin},
		{Router: 1, In: denyTwin},
	}
	labels := []string{"retire twin B's eBGP session", "retire twin A's eBGP session"}
	return net, mods, labels, nil
}

// VariableAbilene builds a variable-size Abilene-like backbone: a cyclic
// core of n routers with randomized (seeded) IGP weights, a single
// external origin attached to router 1. It approximates the topology
// shape (a sparse ring with a couple of chords) used as the "real
// network" benchmark case, without reproducing the exact Topology Zoo
// Abilene link weights; use pkg/topozoo to load the literal GML file
// when exact fidelity to a specific topology is required.
func VariableAbilene(n int, seed int64) (*netsim.Network, []netsim.Modifier, []string, error) {
	if n < 4 {
		return nil, nil, nil, fmt.Errorf("gadgets: variable Abilene needs at least 4 routers")
	}
	rng := rand.New(rand.NewSource(seed))
	net := netsim.New()

	ext := router.New(500, 65000)
	ext.IsRoot = true
	net.AddRouter(ext)
	for i := 1; i <= n; i++ {
		net.AddRouter(router.New(ids.RouterID(i), 1))
	}
	ext.AddNeighbor(router.Neighbor{Router: 1, Session: ids.EBgp})
	net.Routers[1].AddNeighbor(router.Neighbor{Router: 500, Session: ids.EBgp})

	for i := 1; i <= n; i++ {
		j := i%n + 1
		w := ids.LinkWeight(1 + rng.Intn(10))
		net.Routers[ids.RouterID(i)].AddNeighbor(router.Neighbor{Router: ids.RouterID(j), Session: ids.IBgpPeer})
		net.Routers[ids.RouterID(j)].AddNeighbor(router.Neighbor{Router: ids.RouterID(i), Session: ids.IBgpPeer})
		net.AddLink(ids.RouterID(i), ids.RouterID(j), w)
	}
	// a couple of chords across the ring, as Abilene's backbone has.
	if n >= 6 {
		net.AddLink(1, ids.RouterID(n/2), ids.LinkWeight(1+rng.Intn(10)))
		net.Routers[1].AddNeighbor(router.Neighbor{Router: ids.RouterID(n / 2), Session: ids.IBgpPeer})
		net.Routers[ids.RouterID(n/2)].AddNeighbor(router.Neighbor{Router: 1, Session: ids.IBgpPeer})
	}
	net.RecomputeIGP()
	net.Advertise(500, rib.Route{Prefix: 1, NextHop: 500, LocalPref: rib.DefaultLocalPref})
	if err := net.Converge(); err != nil {
		return nil, nil, nil, err
	}

	var mods []netsim.Modifier
	var labels []string
	for i := 2; i <= n; i++ {
		tweak := routemap.NewList([]routemap.Rule{
			{Order: 1, Action: routemap.Allow, Sets: []routemap.Set{{Kind: routemap.SetMed, U32Val: uint32(rng.Intn(50))}}},
		})
		mods = append(mods, netsim.Modifier{Router: ids.RouterID(i), In: tweak})
		labels = append(labels, fmt.Sprintf("retune MED at r%d", i))
	}
	return net, mods, labels, nil
}
