package frrconn

import (
	"strings"
	"testing"

	"github.com/nsg-ethz/snowcap-go/pkg/ids"
	"github.com/nsg-ethz/snowcap-go/pkg/routemap"
)

func TestRenderRouteMapsIncludesBothDirections(t *testing.T) {
	in := routemap.NewList([]routemap.Rule{{
		Order:   10,
		Matches: []routemap.Match{{Kind: routemap.MatchPrefix, Prefix: ids.Prefix(100)}},
		Action:  routemap.Deny,
	}})
	out := routemap.NewList([]routemap.Rule{{
		Order:  10,
		Action: routemap.Allow,
		Sets:   []routemap.Set{{Kind: routemap.SetLocalPref, U32Val: 200}},
	}})

	cmds := RenderRouteMaps("PEER-R2", in, out)
	joined := strings.Join(cmds, "\n")

	if !strings.Contains(joined, "route-map PEER-R2-IN deny 10") {
		t.Fatalf("expected deny clause for -IN map, got:\n%s", joined)
	}
	if !strings.Contains(joined, "route-map PEER-R2-OUT permit 10") {
		t.Fatalf("expected permit clause for -OUT map, got:\n%s", joined)
	}
	if !strings.Contains(joined, "set local-preference 200") {
		t.Fatalf("expected local-preference set clause, got:\n%s", joined)
	}
}

func TestRenderRouteMapsNilListRendersNothing(t *testing.T) {
	cmds := RenderRouteMaps("PEER-R3", nil, nil)
	if len(cmds) != 0 {
		t.Fatalf("expected no commands for nil lists, got %v", cmds)
	}
}

func TestRenderMatchCoversEachKind(t *testing.T) {
	cases := []struct {
		m    routemap.Match
		want string
	}{
		{routemap.Match{Kind: routemap.MatchNeighbor, Router: ids.RouterID(7)}, "match peer"},
		{routemap.Match{Kind: routemap.MatchPrefix, Prefix: ids.Prefix(5)}, "prefix-list"},
		{routemap.Match{Kind: routemap.MatchAsPathContains, AS: ids.AsID(65001)}, "as-path"},
		{routemap.Match{Kind: routemap.MatchAsPathLength, LengthLo: 1, LengthHi: 3}, "length 1-3"},
		{routemap.Match{Kind: routemap.MatchNextHop, Router: ids.RouterID(2)}, "next-hop"},
		{routemap.Match{Kind: routemap.MatchCommunity, Community: 42}, "COMM-42"},
	}
	for _, c := range cases {
		got := renderMatch(c.m)
		if !strings.Contains(got, c.want) {
			t.Fatalf("renderMatch(%+v) = %q, expected substring %q", c.m, got, c.want)
		}
	}
}
