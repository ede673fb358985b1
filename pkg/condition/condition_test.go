package condition

import (
	"testing"

	"github.com/nsg-ethz/snowcap-go/pkg/ids"
)

func TestPatternFixSequence(t *testing.T) {
	p := Pattern{FixR(1), FixR(2), FixR(3)}
	if !p.Match([]ids.RouterID{1, 2, 3}) {
		t.Fatal("expected exact match")
	}
	if p.Match([]ids.RouterID{1, 3}) {
		t.Fatal("expected no match on short path")
	}
}

func TestPatternStarMatchesAnyMiddle(t *testing.T) {
	p := Pattern{FixR(1), StarHop(), FixR(9)}
	if !p.Match([]ids.RouterID{1, 2, 3, 4, 9}) {
		t.Fatal("expected star to absorb the middle hops")
	}
	if !p.Match([]ids.RouterID{1, 9}) {
		t.Fatal("expected star to match zero hops")
	}
	if p.Match([]ids.RouterID{1, 9, 9}) {
		t.Fatal("expected no match: trailing hop not consumed")
	}
}

func TestPatternOneOrMore(t *testing.T) {
	p := append(Pattern{FixR(1)}, OneOrMore()...)
	if p.Match([]ids.RouterID{1}) {
		t.Fatal("one-or-more should require at least one further hop")
	}
	if !p.Match([]ids.RouterID{1, 2}) {
		t.Fatal("expected one-or-more to match a single trailing hop")
	}
	if !p.Match([]ids.RouterID{1, 2, 3}) {
		t.Fatal("expected one-or-more to match multiple trailing hops")
	}
}

func TestToCNFDistributesOrOverAnd(t *testing.T) {
	a := AtomF(Reachable(1, 1))
	b := AtomF(Reachable(2, 1))
	c := AtomF(Reachable(3, 1))

	// a Or (b And c)  ==  (a Or b) And (a Or c)
	f := OrF(a, AndF(b, c))
	clauses := ToCNF(f)
	if len(clauses) != 2 {
		t.Fatalf("expected 2 clauses, got %d: %+v", len(clauses), clauses)
	}
	for _, cl := range clauses {
		if len(cl) != 2 {
			t.Fatalf("expected 2 literals per clause, got %d: %+v", len(cl), cl)
		}
	}
}

func TestToCNFPushesNegationToLeaves(t *testing.T) {
	a := AtomF(Reachable(1, 1))
	b := AtomF(Reachable(2, 1))
	f := NotF(AndF(a, b)) // !(a && b) == !a || !b
	clauses := ToCNF(f)
	if len(clauses) != 1 || len(clauses[0]) != 2 {
		t.Fatalf("expected single 2-literal clause, got %+v", clauses)
	}
	for _, lit := range clauses[0] {
		if !lit.Negated {
			t.Fatalf("expected both literals negated, got %+v", lit)
		}
	}
}

func TestToCNFDoubleNegation(t *testing.T) {
	a := AtomF(Reachable(1, 1))
	f := NotF(NotF(a))
	clauses := ToCNF(f)
	if len(clauses) != 1 || len(clauses[0]) != 1 || clauses[0][0].Negated {
		t.Fatalf("expected double negation eliminated, got %+v", clauses)
	}
}
