package ltl

import (
	"testing"

	"github.com/nsg-ethz/snowcap-go/pkg/condition"
	"github.com/nsg-ethz/snowcap-go/pkg/ids"
	"github.com/nsg-ethz/snowcap-go/pkg/netsim"
	"github.com/nsg-ethz/snowcap-go/pkg/rib"
	"github.com/nsg-ethz/snowcap-go/pkg/router"
)

func fwdStateWithRoute(t *testing.T, hasRoute bool) *netsim.ForwardingState {
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
	if hasRoute {
		n.Advertise(100, rib.Route{Prefix: 1, NextHop: 100})
		if err := n.Converge(); err != nil {
			t.Fatalf("Converge: %v", err)
		}
	}
	return netsim.NewForwardingState(n)
}

func TestGloballyHoldsAcrossWholeTrace(t *testing.T) {
	trace := Trace{fwdStateWithRoute(t, true), fwdStateWithRoute(t, true), fwdStateWithRoute(t, true)}
	f := Globally(Prop(condition.Reachable(1, 1)))
	if !Holds(f, trace) {
		t.Fatal("expected Globally to hold when reachable in every step")
	}
}

func TestGloballyFailsOnSingleViolation(t *testing.T) {
	trace := Trace{fwdStateWithRoute(t, true), fwdStateWithRoute(t, false), fwdStateWithRoute(t, true)}
	f := Globally(Prop(condition.Reachable(1, 1)))
	if Holds(f, trace) {
		t.Fatal("expected Globally to fail on a mid-trace black hole")
	}
}

func TestFinallyFindsLaterWitness(t *testing.T) {
	trace := Trace{fwdStateWithRoute(t, false), fwdStateWithRoute(t, false), fwdStateWithRoute(t, true)}
	f := Finally(Prop(condition.Reachable(1, 1)))
	if !Holds(f, trace) {
		t.Fatal("expected Finally to find the later witness")
	}
}

func TestFinallyFailsWithoutWitness(t *testing.T) {
	trace := Trace{fwdStateWithRoute(t, false), fwdStateWithRoute(t, false)}
	f := Finally(Prop(condition.Reachable(1, 1)))
	if Holds(f, trace) {
		t.Fatal("expected Finally to fail with no witness in horizon")
	}
}

func TestUntilHoldsWhenRightHoldsImmediately(t *testing.T) {
	reachable := Prop(condition.Reachable(1, 1))
	trace := Trace{fwdStateWithRoute(t, true), fwdStateWithRoute(t, true)}
	f := Until(reachable, reachable)
	if !Holds(f, trace) {
		t.Fatal("expected Until to hold when right holds immediately")
	}
}

func TestWeakUntilToleratesNoWitness(t *testing.T) {
	reachable := Prop(condition.Reachable(1, 1))
	trace := Trace{fwdStateWithRoute(t, true), fwdStateWithRoute(t, true)}
	f := WeakUntil(reachable, Prop(condition.Reachable(2, 2)))
	if !Holds(f, trace) {
		t.Fatal("expected WeakUntil to hold when left holds throughout, even with no right witness")
	}
}

func TestNextShiftsOneStep(t *testing.T) {
	trace := Trace{fwdStateWithRoute(t, false), fwdStateWithRoute(t, true)}
	f := Next(Prop(condition.Reachable(1, 1)))
	if !Holds(f, trace) {
		t.Fatal("expected Next to look one state ahead")
	}
}
