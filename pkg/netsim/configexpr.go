package netsim

import (
	"fmt"
	"reflect"

	"github.com/nsg-ethz/snowcap-go/pkg/ids"
	"github.com/nsg-ethz/snowcap-go/pkg/routemap"
	"github.com/nsg-ethz/snowcap-go/pkg/util"
)

// ExprKind enumerates the four kinds of configuration a Config can hold an
// expression for.
type ExprKind int

const (
	ExprRouteMap ExprKind = iota
	ExprIgpWeight
	ExprBgpSession
	ExprStaticRoute
)

// ConfigExprKey identifies one configuration expression without carrying
// its value, so it can be used as a map key. BGP-session and IGP-weight
// keys are canonicalized with the lower router id first (A <= B), so the
// same edge always hashes to the same key regardless of which endpoint
// the change originated from.
type ConfigExprKey struct {
	Kind ExprKind

	// ExprRouteMap
	Router    ids.RouterID
	Direction routemap.Direction
	Order     uint32

	// ExprIgpWeight, ExprBgpSession (canonical: A <= B)
	A, B ids.RouterID

	// ExprStaticRoute
	Prefix ids.Prefix
}

func routeMapKey(router ids.RouterID, dir routemap.Direction, order uint32) ConfigExprKey {
	return ConfigExprKey{Kind: ExprRouteMap, Router: router, Direction: dir, Order: order}
}

func igpWeightKey(a, b ids.RouterID) ConfigExprKey {
	if a > b {
		a, b = b, a
	}
	return ConfigExprKey{Kind: ExprIgpWeight, A: a, B: b}
}

func bgpSessionKey(a, b ids.RouterID) ConfigExprKey {
	if a > b {
		a, b = b, a
	}
	return ConfigExprKey{Kind: ExprBgpSession, A: a, B: b}
}

func staticRouteKey(router ids.RouterID, prefix ids.Prefix) ConfigExprKey {
	return ConfigExprKey{Kind: ExprStaticRoute, Router: router, Prefix: prefix}
}

// ConfigExpr is a configuration key together with the value currently (or
// prospectively) installed there. Only the fields relevant to Key.Kind are
// populated.
type ConfigExpr struct {
	Key ConfigExprKey

	Rule routemap.Rule // ExprRouteMap

	Weight ids.LinkWeight // ExprIgpWeight

	SessionAtA ids.SessionType // ExprBgpSession, session type observed at Key.A
	SessionAtB ids.SessionType // ExprBgpSession, session type observed at Key.B

	NextHop ids.RouterID // ExprStaticRoute
}

func exprEqual(a, b ConfigExpr) bool {
	if a.Key != b.Key {
		return false
	}
	switch a.Key.Kind {
	case ExprRouteMap:
		return reflect.DeepEqual(a.Rule, b.Rule)
	case ExprIgpWeight:
		return a.Weight == b.Weight
	case ExprBgpSession:
		return a.SessionAtA == b.SessionAtA && a.SessionAtB == b.SessionAtB
	case ExprStaticRoute:
		return a.NextHop == b.NextHop
	default:
		return false
	}
}

// ModKind enumerates the three kinds of change a ConfigModifier can make.
type ModKind int

const (
	ModInsert ModKind = iota
	ModRemove
	ModUpdate
)

// ConfigModifier is a single entry of a ConfigPatch: insert a new
// expression, remove an existing one, or update one in place. Update's
// From and To must share the same key.
type ConfigModifier struct {
	Kind ModKind

	Expr ConfigExpr // ModInsert, ModRemove

	From ConfigExpr // ModUpdate
	To   ConfigExpr // ModUpdate
}

func (m ConfigModifier) key() ConfigExprKey {
	if m.Kind == ModUpdate {
		return m.From.Key
	}
	return m.Expr.Key
}

// ConfigPatch is an ordered sequence of configuration modifiers.
type ConfigPatch []ConfigModifier

// Config is a full configuration snapshot: a mapping from configuration
// key to configuration expression.
type Config struct {
	Exprs map[ConfigExprKey]ConfigExpr
}

// NewConfig builds an empty Config.
func NewConfig() *Config {
	return &Config{Exprs: make(map[ConfigExprKey]ConfigExpr)}
}

// Clone returns a deep-enough copy that mutating the clone's map never
// aliases the original.
func (c *Config) Clone() *Config {
	out := NewConfig()
	for k, v := range c.Exprs {
		out.Exprs[k] = v
	}
	return out
}

// Diff computes the patch that, applied to c, reproduces target: an
// Insert for every key present only in target, a Remove for every key
// present only in c, and an Update for every key present in both whose
// value differs.
func (c *Config) Diff(target *Config) ConfigPatch {
	var patch ConfigPatch
	for k, tv := range target.Exprs {
		cv, ok := c.Exprs[k]
		if !ok {
			patch = append(patch, ConfigModifier{Kind: ModInsert, Expr: tv})
			continue
		}
		if !exprEqual(cv, tv) {
			patch = append(patch, ConfigModifier{Kind: ModUpdate, From: cv, To: tv})
		}
	}
	for k, cv := range c.Exprs {
		if _, ok := target.Exprs[k]; !ok {
			patch = append(patch, ConfigModifier{Kind: ModRemove, Expr: cv})
		}
	}
	return patch
}

// Apply returns the Config that results from applying patch to c, without
// mutating c. It validates Invariant: Insert never collides with an
// existing key, Remove's key must exist, and Update's From must match the
// value currently installed at its key.
func (c *Config) Apply(patch ConfigPatch) (*Config, error) {
	out := c.Clone()
	for _, m := range patch {
		switch m.Kind {
		case ModInsert:
			if _, exists := out.Exprs[m.Expr.Key]; exists {
				return nil, util.NewPreconditionError("Config.Apply", "config", "insert key must be absent",
					fmt.Sprintf("key %+v already installed", m.Expr.Key))
			}
			out.Exprs[m.Expr.Key] = m.Expr
		case ModRemove:
			cur, exists := out.Exprs[m.Expr.Key]
			if !exists {
				return nil, util.NewPreconditionError("Config.Apply", "config", "remove key must exist",
					fmt.Sprintf("key %+v not installed", m.Expr.Key))
			}
			if !exprEqual(cur, m.Expr) {
				return nil, util.NewPreconditionError("Config.Apply", "config", "remove value must match installed value",
					fmt.Sprintf("key %+v", m.Expr.Key))
			}
			delete(out.Exprs, m.Expr.Key)
		case ModUpdate:
			cur, exists := out.Exprs[m.From.Key]
			if !exists || !exprEqual(cur, m.From) {
				return nil, util.NewPreconditionError("Config.Apply", "config", "update From must match installed value",
					fmt.Sprintf("key %+v", m.From.Key))
			}
			if m.From.Key != m.To.Key {
				return nil, util.NewPreconditionError("Config.Apply", "config", "update must not change key",
					fmt.Sprintf("from %+v to %+v", m.From.Key, m.To.Key))
			}
			out.Exprs[m.To.Key] = m.To
		}
	}
	return out, nil
}

// Equal reports whether c and other hold exactly the same set of keyed
// expressions.
func (c *Config) Equal(other *Config) bool {
	if len(c.Exprs) != len(other.Exprs) {
		return false
	}
	for k, v := range c.Exprs {
		ov, ok := other.Exprs[k]
		if !ok || !exprEqual(v, ov) {
			return false
		}
	}
	return true
}
