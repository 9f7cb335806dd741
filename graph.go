package caseflow

import (
	"fmt"
	"path"

	"github.com/luno/jettison/errors"
)

// Next is the outcome of a routing function: either the name of the next
// step to execute or a suspension of the current run.
type Next struct {
	node    string
	suspend bool
}

func NextStep(node string) Next {
	return Next{node: node}
}

func Suspend() Next {
	return Next{suspend: true}
}

func (n Next) Suspended() bool {
	return n.suspend
}

func (n Next) Node() string {
	return n.node
}

// StepFunc transforms the state of one step. Steps consume pending external
// input, record decisions or bag entries, suspend when required input is
// absent, or drive the instance to a terminal status. Steps make no I/O
// calls and must be idempotent under replay.
type StepFunc func(s *ProcessState)

// RouteFunc chooses the next step from the current state, chiefly its
// decisions and bag. It must return Suspend whenever its governing decision
// is absent and never inspects the pause flag directly.
type RouteFunc func(s *ProcessState) Next

// Graph is a fixed, statically known set of named steps and routing
// functions. Steps without a route are terminal.
type Graph struct {
	name  string
	entry string

	steps  map[string]StepFunc
	routes map[string]RouteFunc

	// Declared edges, used for validation and diagram rendering.
	edges map[string][]string
	order []string
}

func (g *Graph) Name() string {
	return g.name
}

func (g *Graph) Entry() string {
	return g.entry
}

// Terminal reports whether the named step ends the process.
func (g *Graph) Terminal(node string) bool {
	_, ok := g.steps[node]
	if !ok {
		return false
	}

	_, routed := g.routes[node]
	return !routed
}

func NewBuilder(name string, entry string) *Builder {
	return &Builder{
		graph: &Graph{
			name:   name,
			entry:  entry,
			steps:  make(map[string]StepFunc),
			routes: make(map[string]RouteFunc),
			edges:  make(map[string][]string),
		},
	}
}

type Builder struct {
	graph *Graph
}

func (b *Builder) AddStep(name string, fn StepFunc) {
	if _, ok := b.graph.steps[name]; !ok {
		b.graph.order = append(b.graph.order, name)
	}

	b.graph.steps[name] = fn
}

// AddRoute attaches the routing function for a step along with its declared
// destinations. The route may only ever return one of the declared
// destinations or Suspend.
func (b *Builder) AddRoute(from string, fn RouteFunc, to ...string) {
	b.graph.routes[from] = fn

	dedupe := make(map[string]bool)
	for _, d := range b.graph.edges[from] {
		dedupe[path.Join(from, d)] = true
	}

	for _, d := range to {
		if dedupe[path.Join(from, d)] {
			continue
		}

		b.graph.edges[from] = append(b.graph.edges[from], d)
		dedupe[path.Join(from, d)] = true
	}
}

func (b *Builder) Build() (*Graph, error) {
	g := b.graph

	if _, ok := g.steps[g.entry]; !ok {
		return nil, errors.Wrap(ErrInvalidGraph, fmt.Sprintf("entry step %v is not defined", g.entry))
	}

	for from := range g.routes {
		if _, ok := g.steps[from]; !ok {
			return nil, errors.Wrap(ErrInvalidGraph, fmt.Sprintf("route from unknown step %v", from))
		}

		if len(g.edges[from]) == 0 {
			return nil, errors.Wrap(ErrInvalidGraph, fmt.Sprintf("route from %v declares no destinations", from))
		}
	}

	for from, destinations := range g.edges {
		for _, to := range destinations {
			if _, ok := g.steps[to]; !ok {
				return nil, errors.Wrap(ErrInvalidGraph, fmt.Sprintf("route %v -> %v targets an unknown step", from, to))
			}
		}
	}

	return g, nil
}
