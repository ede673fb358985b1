// snowcap-bench runs the dependency-group synthesis engine against the
// example gadgets at a range of sizes and reports how many attempts and
// how much wall-clock time each search took, so a change to the search
// heuristics can be compared against a baseline.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/nsg-ethz/snowcap-go/internal/telemetry"
	"github.com/nsg-ethz/snowcap-go/pkg/cli"
	"github.com/nsg-ethz/snowcap-go/pkg/condition"
	"github.com/nsg-ethz/snowcap-go/pkg/ids"
	"github.com/nsg-ethz/snowcap-go/pkg/ltl"
	"github.com/nsg-ethz/snowcap-go/pkg/netsim"
	"github.com/nsg-ethz/snowcap-go/pkg/planstore"
	"github.com/nsg-ethz/snowcap-go/pkg/scenario/gadgets"
	"github.com/nsg-ethz/snowcap-go/pkg/synth"
	"github.com/nsg-ethz/snowcap-go/pkg/version"
)

// caseFn builds one benchmark case: a converged network, its modifiers,
// and the router IDs the universal reachability policy should range over.
type caseFn func(size int, seed int64) (*netsim.Network, []netsim.Modifier, []string, []ids.RouterID, error)

var cases = map[string]caseFn{
	"chain": func(size int, seed int64) (*netsim.Network, []netsim.Modifier, []string, []ids.RouterID, error) {
		net, mods, labels, err := gadgets.Chain(size)
		return net, mods, labels, routerRange(0, size-1), err
	},
	"carousel": func(size int, seed int64) (*netsim.Network, []netsim.Modifier, []string, []ids.RouterID, error) {
		net, mods, labels, err := gadgets.BipartiteCarousel(size)
		return net, mods, labels, routerRange(1, size), err
	},
	"abilene": func(size int, seed int64) (*netsim.Network, []netsim.Modifier, []string, []ids.RouterID, error) {
		net, mods, labels, err := gadgets.VariableAbilene(size, seed)
		return net, mods, labels, routerRange(1, size), err
	},
}

func routerRange(lo, hi int) []ids.RouterID {
	out := make([]ids.RouterID, 0, hi-lo+1)
	for i := lo; i <= hi; i++ {
		out = append(out, ids.RouterID(i))
	}
	return out
}

// reachabilityPolicy builds "Globally reachable" for prefix 1 at every
// router in routers — the invariant every gadget's migration modifiers
// are constructed to preserve.
func reachabilityPolicy(routers []ids.RouterID) ltl.Formula {
	conjuncts := make([]ltl.Formula, len(routers))
	for i, r := range routers {
		conjuncts[i] = ltl.Globally(ltl.Prop(condition.Reachable(r, ids.Prefix(1))))
	}
	return ltl.And(conjuncts...)
}

func main() {
	var (
		name      string
		minSize   int
		maxSize   int
		step      int
		seed      int64
		redisAddr string
		gmlPath   string
	)

	flag.StringVar(&name, "case", "chain", "benchmark case: chain, carousel, abilene")
	flag.IntVar(&minSize, "min", 4, "smallest network size")
	flag.IntVar(&maxSize, "max", 16, "largest network size")
	flag.IntVar(&step, "step", 4, "size increment")
	flag.Int64Var(&seed, "seed", 1, "random seed")
	flag.StringVar(&redisAddr, "redis", "", "Redis address for plan memoization (disabled when empty)")
	flag.StringVar(&gmlPath, "gml", "", "benchmark a Topology Zoo GML file instead of a synthetic case (ignores --case/--min/--max/--step)")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("snowcap-bench " + version.Info())
		return
	}

	var store *planstore.Store
	if redisAddr != "" {
		store = planstore.New(redisAddr)
		defer store.Close()
	}

	t := cli.NewTable("SIZE", "MODIFIERS", "ATTEMPTS", "STEPS", "DURATION", "VERDICT")

	runRow := func(sizeLabel string, net *netsim.Network, mods []netsim.Modifier, labels []string, routers []ids.RouterID, storeKey string) {
		policy := reachabilityPolicy(routers)
		engine := synth.New(net, mods, labels, policy, seed)

		start := time.Now()
		plan, err := engine.Synthesize()
		duration := time.Since(start)

		verdict := "safe"
		steps := 0
		if err != nil {
			verdict = "unreachable"
		} else {
			steps = len(plan.Order)
		}

		t.Row(
			sizeLabel,
			fmt.Sprintf("%d", len(mods)),
			fmt.Sprintf("%d", engine.Attempts()),
			fmt.Sprintf("%d", steps),
			duration.Round(time.Millisecond).String(),
			cli.VerdictColor(verdict),
		)

		if store != nil && err == nil {
			stepNames := make([]string, len(plan.Order))
			for i, idx := range plan.Order {
				stepNames[i] = labels[idx]
			}
			key := planstore.Key([]byte(storeKey), seed)
			_ = store.Set(key, planstore.Entry{
				Steps:      stepNames,
				Attempts:   engine.Attempts(),
				Duration:   duration,
				ComputedAt: time.Now(),
			}, 24*time.Hour)
		}
	}

	if gmlPath != "" {
		net, mods, labels, routers, err := topozooCase(gmlPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "loading %s: %v\n", gmlPath, err)
			os.Exit(1)
		}
		runRow(fmt.Sprintf("%d", len(routers)), net, mods, labels, routers, gmlPath)
		t.Flush()
		return
	}

	build, ok := cases[name]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown case %q (want one of: chain, carousel, abilene)\n", name)
		os.Exit(1)
	}

	for size := minSize; size <= maxSize; size += step {
		net, mods, labels, routers, err := build(size, seed)
		if err != nil {
			telemetry.WithField("size", size).WithField("error", err).Warn("skipping benchmark case")
			continue
		}
		runRow(fmt.Sprintf("%d", size), net, mods, labels, routers, fmt.Sprintf("%s:%d", name, size))
	}

	t.Flush()
}
