package condition

import "github.com/nsg-ethz/snowcap-go/pkg/netsim"

// FormKind tags a Formula node.
type FormKind int

const (
	FAtom FormKind = iota
	FNot
	FAnd
	FOr
)

// Formula is a boolean combination of Conditions. It is the input to
// ToCNF, which the synthesis engine uses to split a compound waypoint
// condition into independent conjuncts that can each be checked, and
// learned from, on their own.
type Formula struct {
	Kind FormKind
	Cond Condition
	Kids []Formula
}

// AtomF wraps a leaf Condition as a Formula.
func AtomF(c Condition) Formula { return Formula{Kind: FAtom, Cond: c} }

// NotF negates a Formula.
func NotF(f Formula) Formula { return Formula{Kind: FNot, Kids: []Formula{f}} }

// AndF conjoins formulas.
func AndF(fs ...Formula) Formula { return Formula{Kind: FAnd, Kids: fs} }

// OrF disjoins formulas.
func OrF(fs ...Formula) Formula { return Formula{Kind: FOr, Kids: fs} }

// EvalFormula evaluates a Formula against one converged forwarding state.
func EvalFormula(f Formula, fs *netsim.ForwardingState) bool {
	switch f.Kind {
	case FAtom:
		return Eval(f.Cond, fs)
	case FNot:
		return !EvalFormula(f.Kids[0], fs)
	case FAnd:
		for _, k := range f.Kids {
			if !EvalFormula(k, fs) {
				return false
			}
		}
		return true
	case FOr:
		for _, k := range f.Kids {
			if EvalFormula(k, fs) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// Literal is one CNF clause member: an atomic condition, possibly
// negated.
type Literal struct {
	Cond     Condition
	Negated  bool
}

// Clause is a disjunction of literals.
type Clause []Literal

// ToCNF rewrites f into conjunctive normal form: De Morgan's laws and
// double-negation elimination push all negations down to the literals
// first (negation normal form), then Or is distributed over And from the
// leaves up until every disjunction's children are themselves literals.
func ToCNF(f Formula) []Clause {
	nnf := toNNF(f, false)
	return distribute(nnf)
}

// toNNF pushes negation down to the literals. neg tracks whether the
// enclosing context negates this subtree.
func toNNF(f Formula, neg bool) Formula {
	switch f.Kind {
	case FAtom:
		if neg {
			return Formula{Kind: FNot, Kids: []Formula{f}}
		}
		return f
	case FNot:
		return toNNF(f.Kids[0], !neg)
	case FAnd:
		kids := make([]Formula, len(f.Kids))
		for i, k := range f.Kids {
			kids[i] = toNNF(k, neg)
		}
		if neg {
			return Formula{Kind: FOr, Kids: kids}
		}
		return Formula{Kind: FAnd, Kids: kids}
	case FOr:
		kids := make([]Formula, len(f.Kids))
		for i, k := range f.Kids {
			kids[i] = toNNF(k, neg)
		}
		if neg {
			return Formula{Kind: FAnd, Kids: kids}
		}
		return Formula{Kind: FOr, Kids: kids}
	default:
		return f
	}
}

// distribute converts an NNF formula (negations only at the leaves) into
// a CNF clause set.
func distribute(f Formula) []Clause {
	switch f.Kind {
	case FAtom:
		return []Clause{{{Cond: f.Cond, Negated: false}}}
	case FNot:
		return []Clause{{{Cond: f.Kids[0].Cond, Negated: true}}}
	case FAnd:
		var out []Clause
		for _, k := range f.Kids {
			out = append(out, distribute(k)...)
		}
		return out
	case FOr:
		// Fold children's clause sets pairwise: the cross product of two
		// clause sets distributes Or over And.
		clauses := []Clause{{}}
		for _, k := range f.Kids {
			kClauses := distribute(k)
			var next []Clause
			for _, c1 := range clauses {
				for _, c2 := range kClauses {
					merged := append(append(Clause(nil), c1...), c2...)
					next = append(next, merged)
				}
			}
			clauses = next
		}
		return clauses
	default:
		return nil
	}
}
