package router

import "github.com/nsg-ethz/snowcap-go/pkg/ids"
import "github.com/nsg-ethz/snowcap-go/pkg/rib"

// undoKind tags which field of undoRecord is populated. A tagged-variant
// stack is cheaper than deep-cloning the whole router on every
// speculative change, and it is the only state a config rollback needs
// to touch.
type undoKind int

const (
	undoRawIn undoKind = iota
	undoSelection
	undoAdvertised
	undoNeighborAdd
	undoNeighborRemove
	undoStatic
)

type undoRecord struct {
	kind undoKind

	prefix ids.Prefix

	// undoRawIn
	rawFrom ids.RouterID
	rawPrev rib.Route
	rawHad  bool

	// undoSelection
	selPrev rib.Entry
	selHad  bool

	// undoAdvertised
	advTo   ids.RouterID
	advPrev rib.Route
	advHad  bool

	// undoNeighborAdd / undoNeighborRemove
	neighbor    Neighbor
	neighborIdx int

	// undoStatic
	staticPrefix ids.Prefix
	staticPrev   ids.RouterID
	staticHad    bool
}

func (r *Router) pushRawIn(prefix ids.Prefix, from ids.RouterID, prev rib.Route, had bool) {
	r.undo = append(r.undo, undoRecord{kind: undoRawIn, prefix: prefix, rawFrom: from, rawPrev: prev, rawHad: had})
}

func (r *Router) pushSelectionChange(prefix ids.Prefix, prev rib.Entry, had bool) {
	r.undo = append(r.undo, undoRecord{kind: undoSelection, prefix: prefix, selPrev: prev, selHad: had})
}

func (r *Router) pushAdvertised(prefix ids.Prefix, to ids.RouterID, prev rib.Route, had bool) {
	r.undo = append(r.undo, undoRecord{kind: undoAdvertised, prefix: prefix, advTo: to, advPrev: prev, advHad: had})
}

func (r *Router) pushNeighborAdd() {
	r.undo = append(r.undo, undoRecord{kind: undoNeighborAdd})
}

func (r *Router) pushNeighborRemove(idx int, n Neighbor) {
	r.undo = append(r.undo, undoRecord{kind: undoNeighborRemove, neighborIdx: idx, neighbor: n})
}

func (r *Router) pushStatic(prefix ids.Prefix, prev ids.RouterID, had bool) {
	r.undo = append(r.undo, undoRecord{kind: undoStatic, staticPrefix: prefix, staticPrev: prev, staticHad: had})
}

// Mark returns a checkpoint identifying the current top of the undo log.
func (r *Router) Mark() int {
	return len(r.undo)
}

// UndoTo pops and reverses undo records back down to mark, restoring the
// router's adj-in, selected-route and last-advertised tables to exactly
// what they were when Mark was taken. It does not re-emit Events: callers
// that need the network to re-converge after an undo must trigger
// reselection themselves.
func (r *Router) UndoTo(mark int) {
	for len(r.undo) > mark {
		rec := r.undo[len(r.undo)-1]
		r.undo = r.undo[:len(r.undo)-1]
		switch rec.kind {
		case undoRawIn:
			if rec.rawHad {
				if r.rawIn[rec.prefix] == nil {
					r.rawIn[rec.prefix] = make(map[ids.RouterID]rib.Route)
				}
				r.rawIn[rec.prefix][rec.rawFrom] = rec.rawPrev
			} else if r.rawIn[rec.prefix] != nil {
				delete(r.rawIn[rec.prefix], rec.rawFrom)
			}
		case undoSelection:
			if rec.selHad {
				r.selected[rec.prefix] = rec.selPrev
			} else {
				delete(r.selected, rec.prefix)
			}
		case undoAdvertised:
			if rec.advHad {
				if r.advertised[rec.prefix] == nil {
					r.advertised[rec.prefix] = make(map[ids.RouterID]rib.Route)
				}
				r.advertised[rec.prefix][rec.advTo] = rec.advPrev
			} else if r.advertised[rec.prefix] != nil {
				delete(r.advertised[rec.prefix], rec.advTo)
			}
		case undoNeighborAdd:
			if n := len(r.neighbors); n > 0 {
				r.neighbors = r.neighbors[:n-1]
			}
		case undoNeighborRemove:
			idx := rec.neighborIdx
			if idx > len(r.neighbors) {
				idx = len(r.neighbors)
			}
			r.neighbors = append(r.neighbors[:idx:idx], append([]Neighbor{rec.neighbor}, r.neighbors[idx:]...)...)
		case undoStatic:
			if rec.staticHad {
				r.static[rec.staticPrefix] = rec.staticPrev
			} else {
				delete(r.static, rec.staticPrefix)
			}
		}
	}
}
