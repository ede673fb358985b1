// Package ltl evaluates the hard-policy formula against a bounded
// sequence of converged network states. The simulator only ever produces
// a finite trace (one converged snapshot per migration step), so this
// package uses finite-trace ("finished mode") semantics rather than the
// infinite-trace automaton construction a model checker would need:
// Globally that held for every observed state is satisfied, Finally
// needs its witness inside the observed horizon, and Until/Release fall
// back to their finite-trace definitions at the last index.
package ltl

import (
	"fmt"

	"github.com/nsg-ethz/snowcap-go/pkg/condition"
	"github.com/nsg-ethz/snowcap-go/pkg/ids"
	"github.com/nsg-ethz/snowcap-go/pkg/netsim"
)

// Op enumerates the temporal and boolean connectives a Formula node can
// be.
type Op int

const (
	OpProp Op = iota
	OpNot
	OpAnd
	OpOr
	OpNext
	OpFinally
	OpGlobally
	OpUntil
	OpRelease
	OpWeakUntil
	OpStrongRelease
)

// Formula is an LTL formula over condition.Condition propositions.
type Formula struct {
	Op    Op
	Prop  condition.Condition
	Left  *Formula
	Right *Formula
	Kids  []Formula // used by And/Or for n-ary connectives
}

// Prop builds a proposition leaf.
func Prop(c condition.Condition) Formula { return Formula{Op: OpProp, Prop: c} }

// Not negates f.
func Not(f Formula) Formula { return Formula{Op: OpNot, Left: &f} }

// And conjoins formulas.
func And(fs ...Formula) Formula { return Formula{Op: OpAnd, Kids: fs} }

// Or disjoins formulas.
func Or(fs ...Formula) Formula { return Formula{Op: OpOr, Kids: fs} }

// Next requires f to hold at the very next state.
func Next(f Formula) Formula { return Formula{Op: OpNext, Left: &f} }

// Finally requires f to hold at some state at or after the current one,
// within the observed horizon.
func Finally(f Formula) Formula { return Formula{Op: OpFinally, Left: &f} }

// Globally requires f to hold at every state at or after the current
// one, for as long as the trace is observed.
func Globally(f Formula) Formula { return Formula{Op: OpGlobally, Left: &f} }

// Until requires left to hold until right holds, with right eventually
// holding within the horizon.
func Until(left, right Formula) Formula { return Formula{Op: OpUntil, Left: &left, Right: &right} }

// Release requires right to hold until (and including) the point left
// first holds; if left never holds, right must hold throughout the
// observed horizon.
func Release(left, right Formula) Formula { return Formula{Op: OpRelease, Left: &left, Right: &right} }

// WeakUntil is Until without the obligation that left's release (right)
// ever actually occurs within the horizon.
func WeakUntil(left, right Formula) Formula { return Formula{Op: OpWeakUntil, Left: &left, Right: &right} }

// StrongRelease is Release with the added obligation that left
// eventually holds within the horizon.
func StrongRelease(left, right Formula) Formula { return Formula{Op: OpStrongRelease, Left: &left, Right: &right} }

// Trace is a bounded sequence of converged forwarding states, one per
// migration step observed so far.
type Trace []*netsim.ForwardingState

// Holds reports whether f is satisfied by trace starting at index 0 (the
// initial, pre-migration converged state).
func Holds(f Formula, trace Trace) bool {
	return eval(f, trace, 0)
}

// HoldsAt reports whether f is satisfied by trace starting at index t.
func HoldsAt(f Formula, trace Trace, t int) bool {
	return eval(f, trace, t)
}

func eval(f Formula, trace Trace, t int) bool {
	if t >= len(trace) {
		// Past the observed horizon: treat propositions and their
		// unresolved temporal obligations per finished-mode convention,
		// handled explicitly by each operator below rather than here.
		switch f.Op {
		case OpGlobally, OpWeakUntil:
			return true
		default:
			return false
		}
	}

	switch f.Op {
	case OpProp:
		return condition.Eval(f.Prop, trace[t])
	case OpNot:
		return !eval(*f.Left, trace, t)
	case OpAnd:
		for _, k := range f.Kids {
			if !eval(k, trace, t) {
				return false
			}
		}
		return true
	case OpOr:
		for _, k := range f.Kids {
			if eval(k, trace, t) {
				return true
			}
		}
		return false
	case OpNext:
		return eval(*f.Left, trace, t+1)
	case OpFinally:
		for i := t; i < len(trace); i++ {
			if eval(*f.Left, trace, i) {
				return true
			}
		}
		return false
	case OpGlobally:
		for i := t; i < len(trace); i++ {
			if !eval(*f.Left, trace, i) {
				return false
			}
		}
		return true
	case OpUntil:
		for i := t; i < len(trace); i++ {
			if eval(*f.Right, trace, i) {
				return true
			}
			if !eval(*f.Left, trace, i) {
				return false
			}
		}
		return false
	case OpWeakUntil:
		for i := t; i < len(trace); i++ {
			if eval(*f.Right, trace, i) {
				return true
			}
			if !eval(*f.Left, trace, i) {
				return false
			}
		}
		return true
	case OpRelease:
		for i := t; i < len(trace); i++ {
			if !eval(*f.Right, trace, i) {
				return false
			}
			if eval(*f.Left, trace, i) {
				return true
			}
		}
		return true
	case OpStrongRelease:
		for i := t; i < len(trace); i++ {
			if !eval(*f.Right, trace, i) {
				return false
			}
			if eval(*f.Left, trace, i) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// PolicyErrorKind classifies why a single watched clause failed.
type PolicyErrorKind int

const (
	// ErrBlackHole: the router's packets toward the prefix are dropped
	// before reaching it.
	ErrBlackHole PolicyErrorKind = iota
	// ErrForwardingLoop: the router's packets toward the prefix cycle
	// forever. Loop carries the cycle, rotated to start at its lowest
	// router id (see netsim's canonicalizeLoop) so the same loop always
	// reports identically regardless of which router observed it first.
	ErrForwardingLoop
	// ErrPathCondition: a valid path exists but does not match the
	// clause's waypoint pattern.
	ErrPathCondition
	// ErrUnallowedPath: a waypoint clause was checked against a router
	// with no valid path at all, so the pattern could not be evaluated.
	ErrUnallowedPath
	// ErrReliability: a transient-spread estimate exceeded the clause's
	// tolerance; raised by callers using condition.TransientAnalyzer, not
	// by GetWatchErrors itself.
	ErrReliability
	// ErrNoConvergence: the network did not reach a fixed point within
	// the simulator's step budget; raised by netsim/synth, not by
	// GetWatchErrors itself.
	ErrNoConvergence
	// ErrTransient: a clause failed only at an intermediate migration
	// step and later recovered; reported by callers that distinguish
	// transient from persistent violations, not by GetWatchErrors itself.
	ErrTransient
)

func (k PolicyErrorKind) String() string {
	switch k {
	case ErrBlackHole:
		return "black-hole"
	case ErrForwardingLoop:
		return "forwarding-loop"
	case ErrPathCondition:
		return "path-condition"
	case ErrUnallowedPath:
		return "unallowed-path"
	case ErrReliability:
		return "reliability"
	case ErrNoConvergence:
		return "no-convergence"
	case ErrTransient:
		return "transient"
	default:
		return "unknown"
	}
}

// PolicyError reports one hard-policy violation.
type PolicyError struct {
	Kind   PolicyErrorKind
	Router ids.RouterID
	Prefix ids.Prefix
	// Loop is populated for ErrForwardingLoop, canonicalized to start at
	// its lowest router id.
	Loop   []ids.RouterID
	Detail string
}

func (e *PolicyError) Error() string {
	msg := fmt.Sprintf("%v: %v at router %v for prefix %v", e.Kind, e.Kind, e.Router, e.Prefix)
	if e.Kind == ErrForwardingLoop && len(e.Loop) > 0 {
		msg = fmt.Sprintf("%v: loop %v for prefix %v", e.Kind, e.Loop, e.Prefix)
	}
	if e.Detail != "" {
		msg += " (" + e.Detail + ")"
	}
	return msg
}

// NewNoConvergenceError builds the PolicyError netsim/synth raise when the
// event loop does not reach a fixed point within budget.
func NewNoConvergenceError(detail string) *PolicyError {
	return &PolicyError{Kind: ErrNoConvergence, Detail: detail}
}

// NewReliabilityError builds the PolicyError a caller using
// condition.TransientAnalyzer raises when a transient-spread estimate
// exceeds tolerance.
func NewReliabilityError(router ids.RouterID, prefix ids.Prefix, detail string) *PolicyError {
	return &PolicyError{Kind: ErrReliability, Router: router, Prefix: prefix, Detail: detail}
}

// WatchError pairs one conjunct of the top-level hard policy with the
// PolicyError explaining why it currently fails.
type WatchError struct {
	ClauseIndex int
	Clause      Formula
	Err         *PolicyError
}

// Evaluator is a stateful wrapper around a hard-policy Formula: it grows
// a Trace one converged state at a time as a migration plan is tried, and
// reports which of the policy's top-level conjuncts ("watches") are
// currently violated, without re-deriving the whole trace from scratch.
// The top-level And is flattened into independent watches so a caller
// can narrow a failure down to the specific (router, prefix) clause
// responsible, the way the synthesis engine's Reduction phase needs to.
type Evaluator struct {
	clauses  []Formula
	trace    Trace
	finished bool
}

// NewEvaluator builds an Evaluator over f. If f is a top-level And, each
// child becomes its own independently tracked watch; otherwise f is
// tracked as the sole watch.
func NewEvaluator(f Formula) *Evaluator {
	clauses := []Formula{f}
	if f.Op == OpAnd {
		clauses = append([]Formula(nil), f.Kids...)
	}
	return &Evaluator{clauses: clauses}
}

// Step appends a newly converged forwarding state to the trace.
func (e *Evaluator) Step(fs *netsim.ForwardingState) {
	e.trace = append(e.trace, fs)
}

// OverwriteFinish records whether the trace is to be treated as
// complete. Check and GetWatchErrors do not read the flag: they always
// evaluate the trace observed so far in finished mode (see Check).
func (e *Evaluator) OverwriteFinish(finished bool) {
	e.finished = finished
}

// Check reports whether every watch currently holds. With OverwriteFinish
// unset, this is the same as evaluating each clause starting at index 0
// against the trace observed so far (finished-mode semantics already
// resolve Globally/WeakUntil optimistically past the horizon, which is
// the correct reading for "holds so far, nothing seen yet to the
// contrary"). OverwriteFinish(true) makes no additional difference to
// Check itself; it only affects how GetWatchErrors should be read by
// the caller once Check reports a failure, since this evaluator has no
// distinct "pending" state to begin with.
func (e *Evaluator) Check() bool {
	for _, c := range e.clauses {
		if !eval(c, e.trace, 0) {
			return false
		}
	}
	return true
}

// GetWatchErrors returns one WatchError per currently-violated watch,
// classified against the most recent forwarding state using the
// violation taxonomy condition.Eval's atoms map onto.
func (e *Evaluator) GetWatchErrors() []WatchError {
	if len(e.trace) == 0 {
		return nil
	}
	last := e.trace[len(e.trace)-1]
	var out []WatchError
	for i, c := range e.clauses {
		if eval(c, e.trace, 0) {
			continue
		}
		out = append(out, WatchError{ClauseIndex: i, Clause: c, Err: classifyClause(c, last)})
	}
	return out
}

// classifyClause finds the leaf proposition inside c (a Globally/Finally/
// etc.-wrapped Prop, as every clause scenario.File.Policy builds is) and
// classifies its current failure against fs.
func classifyClause(c Formula, fs *netsim.ForwardingState) *PolicyError {
	leaf := findProp(c)
	if leaf == nil {
		return &PolicyError{Detail: "policy clause has no leaf proposition to classify"}
	}
	cond := *leaf
	res := fs.Path(cond.Router, cond.Prefix)
	switch cond.Kind {
	case condition.AtomBlackHole:
		return &PolicyError{Kind: ErrBlackHole, Router: cond.Router, Prefix: cond.Prefix}
	case condition.AtomLoop:
		return &PolicyError{Kind: ErrForwardingLoop, Router: cond.Router, Prefix: cond.Prefix, Loop: res.Loop}
	case condition.AtomPath:
		if res.Result != ids.ValidPath {
			return &PolicyError{Kind: ErrUnallowedPath, Router: cond.Router, Prefix: cond.Prefix}
		}
		return &PolicyError{Kind: ErrPathCondition, Router: cond.Router, Prefix: cond.Prefix}
	default: // AtomReachable
		switch res.Result {
		case ids.ForwardingLoop:
			return &PolicyError{Kind: ErrForwardingLoop, Router: cond.Router, Prefix: cond.Prefix, Loop: res.Loop}
		default:
			return &PolicyError{Kind: ErrBlackHole, Router: cond.Router, Prefix: cond.Prefix}
		}
	}
}

func findProp(f Formula) *condition.Condition {
	switch f.Op {
	case OpProp:
		c := f.Prop
		return &c
	case OpNot, OpNext, OpFinally, OpGlobally:
		if f.Left != nil {
			return findProp(*f.Left)
		}
	case OpUntil, OpRelease, OpWeakUntil, OpStrongRelease:
		if f.Left != nil {
			return findProp(*f.Left)
		}
	case OpAnd, OpOr:
		for _, k := range f.Kids {
			if p := findProp(k); p != nil {
				return p
			}
		}
	}
	return nil
}

// Undo removes the most recently stepped state, for callers that
// speculatively step and then roll back a failed candidate.
func (e *Evaluator) Undo() {
	if len(e.trace) == 0 {
		return
	}
	e.trace = e.trace[:len(e.trace)-1]
}

// Reset clears the entire trace, returning the Evaluator to its initial,
// pre-migration state.
func (e *Evaluator) Reset() {
	e.trace = nil
	e.finished = false
}
