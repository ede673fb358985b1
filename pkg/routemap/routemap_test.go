package routemap

import (
	"testing"

	"github.com/nsg-ethz/snowcap-go/pkg/ids"
	"github.com/nsg-ethz/snowcap-go/pkg/rib"
)

func TestApplyNoMatchIsImplicitAllow(t *testing.T) {
	l := NewList(nil)
	r := rib.Route{Prefix: 1}
	out, ok := l.Apply(2, r)
	if !ok || out.Prefix != 1 {
		t.Fatalf("expected implicit allow, got %+v ok=%v", out, ok)
	}
}

func TestApplyFirstMatchWins(t *testing.T) {
	l := NewList([]Rule{
		{Order: 20, Matches: []Match{{Kind: MatchPrefix, Prefix: 1}}, Action: Deny},
		{Order: 10, Matches: []Match{{Kind: MatchPrefix, Prefix: 1}}, Action: Allow,
			Sets: []Set{{Kind: SetLocalPref, U32Val: 200}}},
	})
	out, ok := l.Apply(0, rib.Route{Prefix: 1, LocalPref: 100})
	if !ok {
		t.Fatal("expected allow from the lower-order rule")
	}
	if out.LocalPref != 200 {
		t.Fatalf("expected local-pref 200, got %d", out.LocalPref)
	}
}

func TestApplyDeny(t *testing.T) {
	l := NewList([]Rule{
		{Order: 1, Matches: []Match{{Kind: MatchNeighbor, Router: 5}}, Action: Deny},
	})
	_, ok := l.Apply(5, rib.Route{Prefix: 1})
	if ok {
		t.Fatal("expected deny")
	}
}

func TestApplyConjunctionOfMatches(t *testing.T) {
	l := NewList([]Rule{
		{Order: 1, Matches: []Match{
			{Kind: MatchPrefix, Prefix: 1},
			{Kind: MatchAsPathLength, LengthLo: 0, LengthHi: 1},
		}, Action: Deny},
	})
	// matches prefix but not as-path length -> falls through to implicit allow
	_, ok := l.Apply(0, rib.Route{Prefix: 1, AsPath: []ids.AsID{1, 2, 3}})
	if !ok {
		t.Fatal("partial match should not deny")
	}
	_, ok = l.Apply(0, rib.Route{Prefix: 1, AsPath: nil})
	if ok {
		t.Fatal("full match should deny")
	}
}

func TestSetClearCommunity(t *testing.T) {
	l := NewList([]Rule{
		{Order: 1, Matches: nil, Action: Allow, Sets: []Set{{Kind: SetClearCommunity}}},
	})
	out, ok := l.Apply(0, rib.Route{Community: 42, HasCommunity: true})
	if !ok || out.HasCommunity || out.Community != 0 {
		t.Fatalf("expected community cleared, got %+v", out)
	}
}

func TestNeighborAS(t *testing.T) {
	r := rib.Route{AsPath: []ids.AsID{7, 8}}
	if r.NeighborAS(1) != 7 {
		t.Fatalf("expected head of as-path, got %d", r.NeighborAS(1))
	}
	r2 := rib.Route{}
	if r2.NeighborAS(99) != 99 {
		t.Fatalf("expected local AS for originated route")
	}
}

func TestRibLess(t *testing.T) {
	a := rib.Entry{Route: rib.Route{LocalPref: 200}}
	b := rib.Entry{Route: rib.Route{LocalPref: 100}}
	if !rib.Less(a, b) {
		t.Fatal("higher local-pref should win")
	}
	if rib.Less(b, a) {
		t.Fatal("lower local-pref should not win")
	}
}

func TestRibBest(t *testing.T) {
	entries := []rib.Entry{
		{Route: rib.Route{LocalPref: 100}, RouterID: 3},
		{Route: rib.Route{LocalPref: 150}, RouterID: 1},
		{Route: rib.Route{LocalPref: 150}, RouterID: 2},
	}
	best := rib.Best(entries)
	if best != 1 {
		t.Fatalf("expected index 1 (local-pref 150, lowest router-id among ties), got %d", best)
	}
}
