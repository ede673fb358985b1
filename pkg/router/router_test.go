package router

import (
	"testing"

	"github.com/nsg-ethz/snowcap-go/pkg/ids"
	"github.com/nsg-ethz/snowcap-go/pkg/rib"
)

func newTestRouter(id ids.RouterID, as ids.AsID) *Router {
	r := New(id, as)
	return r
}

func TestHandleUpdateSelectsSingleRoute(t *testing.T) {
	r := newTestRouter(1, 100)
	r.AddNeighbor(Neighbor{Router: 2, Session: ids.EBgp})

	events, err := r.HandleUpdate(2, rib.Route{Prefix: 10, NextHop: 2, LocalPref: 100})
	if err != nil {
		t.Fatalf("HandleUpdate: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("expected no onward events (no other sessions), got %d", len(events))
	}

	entry, ok := r.Selected(10)
	if !ok {
		t.Fatal("expected a selected route")
	}
	if entry.Route.NextHop != 2 {
		t.Fatalf("unexpected next-hop %v", entry.Route.NextHop)
	}
}

func TestHandleUpdatePrefersHigherLocalPref(t *testing.T) {
	r := newTestRouter(1, 100)
	r.AddNeighbor(Neighbor{Router: 2, Session: ids.IBgpPeer})
	r.AddNeighbor(Neighbor{Router: 3, Session: ids.IBgpPeer})

	if _, err := r.HandleUpdate(2, rib.Route{Prefix: 10, NextHop: 2, LocalPref: 100}); err != nil {
		t.Fatal(err)
	}
	if _, err := r.HandleUpdate(3, rib.Route{Prefix: 10, NextHop: 3, LocalPref: 200}); err != nil {
		t.Fatal(err)
	}

	entry, _ := r.Selected(10)
	if entry.Route.NextHop != 3 {
		t.Fatalf("expected route via router 3 (higher local-pref), got next-hop %v", entry.Route.NextHop)
	}
}

func TestWithdrawFallsBackToRemainingRoute(t *testing.T) {
	r := newTestRouter(1, 100)
	r.AddNeighbor(Neighbor{Router: 2, Session: ids.IBgpPeer})
	r.AddNeighbor(Neighbor{Router: 3, Session: ids.IBgpPeer})

	r.HandleUpdate(2, rib.Route{Prefix: 10, NextHop: 2, LocalPref: 100})
	r.HandleUpdate(3, rib.Route{Prefix: 10, NextHop: 3, LocalPref: 200})

	if _, err := r.HandleWithdraw(3, 10); err != nil {
		t.Fatal(err)
	}
	entry, ok := r.Selected(10)
	if !ok || entry.Route.NextHop != 2 {
		t.Fatalf("expected fallback to router 2's route, got %+v ok=%v", entry, ok)
	}
}

func TestIBgpPeerDoesNotReflect(t *testing.T) {
	r := newTestRouter(1, 100)
	r.AddNeighbor(Neighbor{Router: 2, Session: ids.IBgpPeer})
	r.AddNeighbor(Neighbor{Router: 3, Session: ids.IBgpPeer})

	events, err := r.HandleUpdate(2, rib.Route{Prefix: 10, NextHop: 2, LocalPref: 100})
	if err != nil {
		t.Fatal(err)
	}
	for _, ev := range events {
		if ev.To == 3 {
			t.Fatal("iBGP peer route must not be reflected to another iBGP peer")
		}
	}
}

func TestRouteReflectorReflectsToClient(t *testing.T) {
	r := newTestRouter(1, 100)
	r.AddNeighbor(Neighbor{Router: 2, Session: ids.IBgpPeer})
	r.AddNeighbor(Neighbor{Router: 3, Session: ids.IBgpClient})

	events, err := r.HandleUpdate(2, rib.Route{Prefix: 10, NextHop: 2, LocalPref: 100})
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, ev := range events {
		if ev.To == 3 {
			found = true
		}
	}
	if !found {
		t.Fatal("expected iBGP route to be reflected to a route-reflector client")
	}
}

func TestUndoRestoresSelection(t *testing.T) {
	r := newTestRouter(1, 100)
	r.AddNeighbor(Neighbor{Router: 2, Session: ids.EBgp})

	mark := r.Mark()
	r.HandleUpdate(2, rib.Route{Prefix: 10, NextHop: 2, LocalPref: 100})
	if _, ok := r.Selected(10); !ok {
		t.Fatal("expected selection after update")
	}

	r.UndoTo(mark)
	if _, ok := r.Selected(10); ok {
		t.Fatal("expected no selection after undo")
	}
}

func TestUndoToIntermediateMark(t *testing.T) {
	r := newTestRouter(1, 100)
	r.AddNeighbor(Neighbor{Router: 2, Session: ids.IBgpPeer})
	r.AddNeighbor(Neighbor{Router: 3, Session: ids.IBgpPeer})

	r.HandleUpdate(2, rib.Route{Prefix: 10, NextHop: 2, LocalPref: 100})
	mark := r.Mark()
	r.HandleUpdate(3, rib.Route{Prefix: 10, NextHop: 3, LocalPref: 200})

	entry, _ := r.Selected(10)
	if entry.Route.NextHop != 3 {
		t.Fatal("expected router 3's route selected before undo")
	}

	r.UndoTo(mark)
	entry, ok := r.Selected(10)
	if !ok || entry.Route.NextHop != 2 {
		t.Fatalf("expected router 2's route restored after undo, got %+v ok=%v", entry, ok)
	}
}
