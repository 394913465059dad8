// Package patterns is a catalogue of the Timescales benchmark properties, parameterized by their
// window bounds.
package patterns

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/l7mp/dverify/pkg/interval"
	"github.com/l7mp/dverify/pkg/mtl"
)

// ErrUnknownPattern is returned for a pattern name not in the catalogue.
var ErrUnknownPattern = errors.New("unknown pattern")

// ErrParams is returned when a pattern gets the wrong number of parameters.
var ErrParams = errors.New("invalid pattern parameters")

// Pattern is a parameterized formula family.
type Pattern struct {
	// Name is the family name, e.g., "AbsentAQ".
	Name string
	// Formula is the formula template with its parameters as placeholders.
	Formula string
	// Params names the window parameters.
	Params []string
	// Defaults lists the parameter sets used by the benchmark suite.
	Defaults [][]int64
	build    func(b *builder, args []int64)
}

// Build instantiates the pattern with the given parameters.
func (p Pattern) Build(args ...int64) (*mtl.Graph, error) {
	if len(args) != len(p.Params) {
		return nil, fmt.Errorf("%w: %s expects %d parameter(s) %v, got %d", ErrParams, p.Name,
			len(p.Params), p.Params, len(args))
	}
	for _, a := range args {
		if a < 0 {
			return nil, fmt.Errorf("%w: negative bound %d", ErrParams, a)
		}
	}
	b := &builder{}
	p.build(b, args)
	return b.graph()
}

// Instance renders the formula text with the parameters substituted.
func (p Pattern) Instance(args ...int64) string {
	pairs := make([]string, 0, 2*len(p.Params))
	for i, name := range p.Params {
		if i < len(args) {
			pairs = append(pairs, name, strconv.FormatInt(args[i], 10))
		}
	}
	return strings.NewReplacer(pairs...).Replace(p.Formula)
}

var catalogue = map[string]Pattern{}

func register(p Pattern) {
	catalogue[strings.ToLower(p.Name)] = p
}

// Lookup finds a pattern by name, case insensitively.
func Lookup(name string) (Pattern, bool) {
	p, ok := catalogue[strings.ToLower(name)]
	return p, ok
}

// All returns the catalogue sorted by name.
func All() []Pattern {
	ret := make([]Pattern, 0, len(catalogue))
	for _, p := range catalogue {
		ret = append(ret, p)
	}
	sort.Slice(ret, func(i, j int) bool { return ret[i].Name < ret[j].Name })
	return ret
}

// Parse builds a graph from a reference of the form "Name:arg1[:arg2]", e.g., "AbsentAQ:10" or
// "RespondGLB:3:10".
func Parse(ref string) (*mtl.Graph, error) {
	name, rest, _ := strings.Cut(ref, ":")
	p, ok := Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPattern, name)
	}

	var args []int64
	if rest != "" {
		for _, s := range strings.Split(rest, ":") {
			a, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: %q: %w", ErrParams, ref, err)
			}
			args = append(args, a)
		}
	}
	return p.Build(args...)
}

// builder assembles a node list bottom up. Propositions are declared on first use.
type builder struct {
	props []string
	nodes []mtl.Node
	cache map[string]int
}

func (b *builder) add(n mtl.Node) int {
	b.nodes = append(b.nodes, n)
	return len(b.nodes) - 1
}

// declare fixes the proposition vector order.
func (b *builder) declare(props ...string) { b.props = append(b.props, props...) }

// prop returns the node sampling a proposition, sharing one node per proposition.
func (b *builder) prop(name string) int {
	if b.cache == nil {
		b.cache = map[string]int{}
	}
	if i, ok := b.cache[name]; ok {
		return i
	}
	idx := -1
	for i, p := range b.props {
		if p == name {
			idx = i
		}
	}
	if idx < 0 {
		b.props = append(b.props, name)
		idx = len(b.props) - 1
	}
	i := b.add(mtl.Node{Kind: mtl.KindProposition, Name: name, Prop: idx})
	b.cache[name] = i
	return i
}

func (b *builder) not(x int) int { return b.add(mtl.Node{Kind: mtl.KindNot, Right: x}) }

func (b *builder) and(l, r int) int { return b.add(mtl.Node{Kind: mtl.KindAnd, Left: l, Right: r}) }

func (b *builder) or(l, r int) int { return b.add(mtl.Node{Kind: mtl.KindOr, Left: l, Right: r}) }

func (b *builder) implies(l, r int) int {
	return b.add(mtl.Node{Kind: mtl.KindImplies, Left: l, Right: r})
}

func (b *builder) once(x int, lower, upper int64) int {
	return b.add(mtl.Node{Kind: mtl.KindEventually, Right: x, Lower: lower, Upper: upper})
}

func (b *builder) historically(x int, lower, upper int64) int {
	return b.add(mtl.Node{Kind: mtl.KindAlways, Right: x, Lower: lower, Upper: upper})
}

func (b *builder) since(l, r int, lower, upper int64) int {
	return b.add(mtl.Node{Kind: mtl.KindSince, Left: l, Right: r, Lower: lower, Upper: upper})
}

func (b *builder) graph() (*mtl.Graph, error) { return mtl.NewGraph(b.props, b.nodes) }

const inf = interval.Infinity

// scope builds "{r} && !{q} && once{q}", the open scope between a q and the next r.
func (b *builder) scope() int {
	q := b.prop("q")
	and1 := b.and(b.prop("r"), b.not(q))
	return b.and(and1, b.once(q, 0, inf))
}

// respond builds "({s} -> once[A:B]{p}) and not((not {s}) since[B:] {p})".
func (b *builder) respond(lower, upper int64) int {
	s, p := b.prop("s"), b.prop("p")
	trigger := b.implies(s, b.once(p, lower, upper))
	late := b.not(b.since(b.not(s), p, upper, inf))
	return b.and(trigger, late)
}

var (
	singleBound = [][]int64{{10}, {100}, {1000}}
	rangeBounds = [][]int64{{3, 10}, {30, 100}, {300, 1000}}
)

func init() {
	register(Pattern{
		Name:     "AbsentAQ",
		Formula:  "historically((once[:N]{q}) -> ((not{p}) since {q}))",
		Params:   []string{"N"},
		Defaults: singleBound,
		build: func(b *builder, a []int64) {
			b.declare("q", "p")
			q := b.prop("q")
			lhs := b.once(q, 0, a[0])
			rhs := b.since(b.not(b.prop("p")), q, 0, inf)
			b.historically(b.implies(lhs, rhs), 0, inf)
		},
	})
	register(Pattern{
		Name:     "AbsentBQR",
		Formula:  "historically(({r} && !{q} && once{q}) -> ((not{p}) since[A:B] {q}))",
		Params:   []string{"A", "B"},
		Defaults: rangeBounds,
		build: func(b *builder, a []int64) {
			b.declare("q", "p", "r")
			lhs := b.scope()
			rhs := b.since(b.not(b.prop("p")), b.prop("q"), a[0], a[1])
			b.historically(b.implies(lhs, rhs), 0, inf)
		},
	})
	register(Pattern{
		Name:     "AbsentBR",
		Formula:  "historically({r} -> (historically[:N](not{p})))",
		Params:   []string{"N"},
		Defaults: singleBound,
		build: func(b *builder, a []int64) {
			b.declare("p", "r")
			rhs := b.historically(b.not(b.prop("p")), 0, a[0])
			b.historically(b.implies(b.prop("r"), rhs), 0, inf)
		},
	})
	register(Pattern{
		Name:     "AlwaysAQ",
		Formula:  "historically((once[:N]{q}) -> ({p} since {q}))",
		Params:   []string{"N"},
		Defaults: singleBound,
		build: func(b *builder, a []int64) {
			b.declare("q", "p")
			q := b.prop("q")
			lhs := b.once(q, 0, a[0])
			rhs := b.since(b.prop("p"), q, 0, inf)
			b.historically(b.implies(lhs, rhs), 0, inf)
		},
	})
	register(Pattern{
		Name:     "AlwaysBQR",
		Formula:  "historically(({r} && !{q} && once{q}) -> ({p} since[A:B] {q}))",
		Params:   []string{"A", "B"},
		Defaults: rangeBounds,
		build: func(b *builder, a []int64) {
			b.declare("q", "p", "r")
			lhs := b.scope()
			rhs := b.since(b.prop("p"), b.prop("q"), a[0], a[1])
			b.historically(b.implies(lhs, rhs), 0, inf)
		},
	})
	register(Pattern{
		Name:     "AlwaysBR",
		Formula:  "historically({r} -> (historically[:N]{p}))",
		Params:   []string{"N"},
		Defaults: singleBound,
		build: func(b *builder, a []int64) {
			b.declare("p", "r")
			rhs := b.historically(b.prop("p"), 0, a[0])
			b.historically(b.implies(b.prop("r"), rhs), 0, inf)
		},
	})
	register(Pattern{
		Name:     "RecurBQR",
		Formula:  "historically(({r} && !{q} && once{q}) -> ((once[:N]({p} or {q})) since {q}))",
		Params:   []string{"N"},
		Defaults: singleBound,
		build: func(b *builder, a []int64) {
			b.declare("q", "p", "r")
			lhs := b.scope()
			q := b.prop("q")
			recur := b.once(b.or(b.prop("p"), q), 0, a[0])
			b.historically(b.implies(lhs, b.since(recur, q, 0, inf)), 0, inf)
		},
	})
	register(Pattern{
		Name:     "RecurGLB",
		Formula:  "historically(once[:N]{p})",
		Params:   []string{"N"},
		Defaults: singleBound,
		build: func(b *builder, a []int64) {
			b.declare("p")
			b.historically(b.once(b.prop("p"), 0, a[0]), 0, inf)
		},
	})
	register(Pattern{
		Name: "RespondBQR",
		Formula: "historically(({r} && !{q} && once{q}) -> " +
			"((({s} -> once[A:B]{p}) and not((not {s}) since[B:] {p})) since {q}))",
		Params:   []string{"A", "B"},
		Defaults: rangeBounds,
		build: func(b *builder, a []int64) {
			b.declare("q", "p", "r", "s")
			lhs := b.scope()
			rhs := b.since(b.respond(a[0], a[1]), b.prop("q"), 0, inf)
			b.historically(b.implies(lhs, rhs), 0, inf)
		},
	})
	register(Pattern{
		Name:     "RespondGLB",
		Formula:  "historically(({s} -> once[A:B]{p}) and not((not {s}) since[B:] {p}))",
		Params:   []string{"A", "B"},
		Defaults: rangeBounds,
		build: func(b *builder, a []int64) {
			b.declare("p", "s")
			b.historically(b.respond(a[0], a[1]), 0, inf)
		},
	})
}
