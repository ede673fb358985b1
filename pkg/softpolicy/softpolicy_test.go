package softpolicy

import (
	"testing"

	"github.com/nsg-ethz/snowcap-go/pkg/ids"
	"github.com/nsg-ethz/snowcap-go/pkg/netsim"
	"github.com/nsg-ethz/snowcap-go/pkg/rib"
	"github.com/nsg-ethz/snowcap-go/pkg/router"
)

func buildNet(t *testing.T, nextHop ids.RouterID) *netsim.Network {
	t.Helper()
	n := netsim.New()
	e := router.New(100, 65000)
	e.IsRoot = true
	r1 := router.New(1, 1)
	e.AddNeighbor(router.Neighbor{Router: 1, Session: ids.EBgp})
	r1.AddNeighbor(router.Neighbor{Router: 100, Session: ids.EBgp})
	n.AddRouter(e)
	n.AddRouter(r1)
	n.RecomputeIGP()
	n.Advertise(100, rib.Route{Prefix: 1, NextHop: nextHop})
	if err := n.Converge(); err != nil {
		t.Fatalf("Converge: %v", err)
	}
	return n
}

func TestMinimizeTrafficShiftZeroWhenUnchanged(t *testing.T) {
	n := buildNet(t, 100)
	fs1 := netsim.NewForwardingState(n)
	fs2 := netsim.NewForwardingState(n)
	cost := MinimizeTrafficShift([]*netsim.ForwardingState{fs1, fs2}, []ids.Prefix{1}, []ids.RouterID{1})
	if cost != 0 {
		t.Fatalf("expected zero cost for an unchanged path, got %v", cost)
	}
}

func TestMinimizeTrafficShiftSingleSnapshotIsZero(t *testing.T) {
	n := buildNet(t, 100)
	fs := netsim.NewForwardingState(n)
	cost := MinimizeTrafficShift([]*netsim.ForwardingState{fs}, []ids.Prefix{1}, []ids.RouterID{1})
	if cost != 0 {
		t.Fatalf("expected zero cost for a single-snapshot trace, got %v", cost)
	}
}
