package condition

import (
	"strings"

	"github.com/nsg-ethz/snowcap-go/pkg/ids"
)

// WaypointKind enumerates the three positional atoms a Pattern is built
// from.
type WaypointKind int

const (
	// Fix matches exactly one specific router.
	Fix WaypointKind = iota
	// Any matches exactly one arbitrary router.
	Any
	// Star matches zero or more arbitrary routers.
	Star
)

// Waypoint is one positional atom in a Pattern.
type Waypoint struct {
	Kind   WaypointKind
	Router ids.RouterID
}

// Pattern is an ordered sequence of waypoints a forwarding path is
// matched against, left to right. A Star followed by a fixed router jumps
// to that router's first occurrence in the rest of the path and goes on
// from there; later occurrences are not tried. The two
// shorthands from the original notation both reduce to the waypoint
// forms here at construction time: "**" is just Star, and "*?" (one
// arbitrary hop followed by any number of further hops) is Any followed
// by Star.
type Pattern []Waypoint

// FixR returns a Waypoint pinning one specific router.
func FixR(r ids.RouterID) Waypoint { return Waypoint{Kind: Fix, Router: r} }

// AnyHop returns a single-arbitrary-router Waypoint.
func AnyHop() Waypoint { return Waypoint{Kind: Any} }

// StarHop returns a zero-or-more-router Waypoint.
func StarHop() Waypoint { return Waypoint{Kind: Star} }

// OneOrMore expands to the two-waypoint idiom for "at least one arbitrary
// hop, then any number more" (the "*?" shorthand).
func OneOrMore() Pattern { return Pattern{AnyHop(), StarHop()} }

// Match reports whether path satisfies the pattern in full: every
// waypoint must consume a matching prefix of what remains, and the whole
// path must be consumed by the end of the pattern.
func (p Pattern) Match(path []ids.RouterID) bool {
	return matchFrom(p, path)
}

// matchFrom is a small recursive matcher. A trailing Star matches any
// remainder; a Star before a fixed router scans forward to the first
// occurrence of that router, without backtracking over later ones.
func matchFrom(pat Pattern, path []ids.RouterID) bool {
	if len(pat) == 0 {
		return len(path) == 0
	}
	w := pat[0]
	switch w.Kind {
	case Fix:
		if len(path) == 0 || path[0] != w.Router {
			return false
		}
		return matchFrom(pat[1:], path[1:])
	case Any:
		if len(path) == 0 {
			return false
		}
		return matchFrom(pat[1:], path[1:])
	case Star:
		if len(pat) == 1 {
			return true
		}
		switch next := pat[1]; next.Kind {
		case Star:
			return matchFrom(pat[1:], path)
		case Any:
			return matchFrom(append(Pattern{AnyHop(), StarHop()}, pat[2:]...), path)
		case Fix:
			for i, r := range path {
				if r == next.Router {
					return matchFrom(pat[1:], path[i:])
				}
			}
		}
		return false
	default:
		return false
	}
}

func (p Pattern) String() string {
	parts := make([]string, len(p))
	for i, w := range p {
		switch w.Kind {
		case Fix:
			parts[i] = w.Router.String()
		case Any:
			parts[i] = "?"
		case Star:
			parts[i] = "*"
		}
	}
	return strings.Join(parts, ".")
}
