package main

import (
	"fmt"

	"github.com/nsg-ethz/snowcap-go/pkg/ids"
	"github.com/nsg-ethz/snowcap-go/pkg/netsim"
	"github.com/nsg-ethz/snowcap-go/pkg/rib"
	"github.com/nsg-ethz/snowcap-go/pkg/router"
	"github.com/nsg-ethz/snowcap-go/pkg/routemap"
	"github.com/nsg-ethz/snowcap-go/pkg/topozoo"
)

// topozooExternal is the external advertiser router ID attached to the
// topology's lowest-ID node, mirroring pkg/scenario/gadgets' externalBase
// convention of keeping the injected router out of the real node ID space.
const topozooExternal ids.RouterID = 1000

// topozooCase loads a Topology Zoo GML file, attaches an external
// advertiser for prefix 1 at the lowest-ID node, and builds one Modifier
// per remaining node that bumps its local preference — the same
// single-attribute-change shape pkg/scenario/gadgets.Chain exercises, so
// a real backbone shape (Abilene among them) can be benchmarked with the
// same search the synthetic gadgets use.
func topozooCase(path string) (*netsim.Network, []netsim.Modifier, []string, []ids.RouterID, error) {
	g, err := topozoo.Load(path)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	if len(g.Nodes) < 2 {
		return nil, nil, nil, nil, fmt.Errorf("topozoo case: %s has fewer than 2 nodes", path)
	}

	net := g.ToNetwork()

	root := ids.RouterID(g.Nodes[0].ID)
	for _, node := range g.Nodes[1:] {
		if ids.RouterID(node.ID) < root {
			root = ids.RouterID(node.ID)
		}
	}
	ext := router.New(topozooExternal, 65000)
	ext.IsRoot = true
	net.AddRouter(ext)
	ext.AddNeighbor(router.Neighbor{Router: root, Session: ids.EBgp})
	net.Routers[root].AddNeighbor(router.Neighbor{Router: topozooExternal, Session: ids.EBgp})
	net.RecomputeIGP()

	net.Advertise(topozooExternal, rib.Route{Prefix: 1, NextHop: topozooExternal, LocalPref: rib.DefaultLocalPref})
	if err := net.Converge(); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("topozoo case: initial convergence: %w", err)
	}

	var mods []netsim.Modifier
	var labels []string
	var routers []ids.RouterID
	for _, node := range g.Nodes {
		rid := ids.RouterID(node.ID)
		routers = append(routers, rid)
		if rid == root {
			continue
		}
		bump := routemap.NewList([]routemap.Rule{
			{Order: 1, Action: routemap.Allow, Sets: []routemap.Set{{Kind: routemap.SetLocalPref, U32Val: 150}}},
		})
		mods = append(mods, netsim.Modifier{Router: rid, In: bump})
		labels = append(labels, fmt.Sprintf("bump local-pref at %s (node %d)", node.Label, node.ID))
	}

	return net, mods, labels, routers, nil
}
