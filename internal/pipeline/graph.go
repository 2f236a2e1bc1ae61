package pipeline

import (
	"container/heap"
	"sort"
	"strings"

	"github.com/specialistvlad/burstbuild/internal/stage"
)

// Graph is a finalized, acyclic pipeline.
type Graph struct {
	stages     []*stage.Stage // declaration order
	index      map[string]int
	dependents [][]int // by declaration index, ascending
	order      []string
	terminal   string
}

func newGraph(stages []*stage.Stage, index map[string]int) *Graph {
	g := &Graph{
		stages:     make([]*stage.Stage, len(stages)),
		index:      make(map[string]int, len(index)),
		dependents: make([][]int, len(stages)),
	}
	for i, s := range stages {
		cp := *s
		cp.Inputs = append([]string(nil), s.Inputs...)
		g.stages[i] = &cp
		g.index[s.Name] = i
	}
	for i, s := range g.stages {
		seen := make(map[int]bool)
		for _, in := range s.Inputs {
			j := g.index[in]
			if seen[j] {
				continue
			}
			seen[j] = true
			g.dependents[j] = append(g.dependents[j], i)
		}
	}
	for i := range g.dependents {
		sort.Ints(g.dependents[i])
	}
	return g
}

type intMinHeap []int

func (h intMinHeap) Len() int           { return len(h) }
func (h intMinHeap) Less(i, j int) bool { return h[i] < h[j] }
func (h intMinHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *intMinHeap) Push(x any)        { *h = append(*h, x.(int)) }
func (h *intMinHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// sort computes the topological order with Kahn's algorithm, breaking ties
// by declaration order. When stages remain unplaced a cycle exists.
func (g *Graph) sort() error {
	indeg := make([]int, len(g.stages))
	for i, s := range g.stages {
		indeg[i] = len(g.uniqueInputs(s))
	}

	ready := &intMinHeap{}
	for i, d := range indeg {
		if d == 0 {
			heap.Push(ready, i)
		}
	}

	order := make([]string, 0, len(g.stages))
	for ready.Len() > 0 {
		n := heap.Pop(ready).(int)
		order = append(order, g.stages[n].Name)
		for _, m := range g.dependents[n] {
			indeg[m]--
			if indeg[m] == 0 {
				heap.Push(ready, m)
			}
		}
	}
	if len(order) != len(g.stages) {
		return &CycleError{Stages: g.findCycle()}
	}
	g.order = order
	return nil
}

func (g *Graph) uniqueInputs(s *stage.Stage) []int {
	seen := make(map[int]bool)
	var out []int
	for _, in := range s.Inputs {
		j := g.index[in]
		if !seen[j] {
			seen[j] = true
			out = append(out, j)
		}
	}
	return out
}

// findCycle runs a deterministic depth-first search along input edges and
// returns one cycle, e.g. [a b a] when a consumes b and b consumes a.
func (g *Graph) findCycle() []string {
	const (
		white = iota
		gray
		black
	)
	color := make([]int, len(g.stages))
	var stack []int
	var cycle []int

	var visit func(u int) bool
	visit = func(u int) bool {
		color[u] = gray
		stack = append(stack, u)
		for _, v := range g.uniqueInputs(g.stages[u]) {
			switch color[v] {
			case white:
				if visit(v) {
					return true
				}
			case gray:
				for i := len(stack) - 1; i >= 0; i-- {
					if stack[i] == v {
						cycle = append(append([]int{}, stack[i:]...), v)
						return true
					}
				}
			}
		}
		stack = stack[:len(stack)-1]
		color[u] = black
		return false
	}

	for i := range g.stages {
		if color[i] == white && visit(i) {
			break
		}
	}

	out := make([]string, len(cycle))
	for i, idx := range cycle {
		out[i] = g.stages[idx].Name
	}
	return out
}

func (g *Graph) chooseTerminal(output string) error {
	if output != "" {
		g.terminal = output
		return nil
	}
	var sinks []string
	for _, name := range g.order {
		if len(g.dependents[g.index[name]]) == 0 {
			sinks = append(sinks, name)
		}
	}
	if len(sinks) != 1 {
		return invalidf("pipeline has %d terminal stages (%s); declare an output", len(sinks), strings.Join(sinks, ", "))
	}
	g.terminal = sinks[0]
	return nil
}

// Len returns the number of stages.
func (g *Graph) Len() int { return len(g.stages) }

// Order returns stage names in topological order: every stage appears after
// all of its inputs.
func (g *Graph) Order() []string {
	return append([]string(nil), g.order...)
}

// Stage returns the named stage definition.
func (g *Graph) Stage(name string) (*stage.Stage, bool) {
	i, ok := g.index[name]
	if !ok {
		return nil, false
	}
	return g.stages[i], true
}

// Inputs returns the declared inputs of a stage, in declaration order.
func (g *Graph) Inputs(name string) []string {
	i, ok := g.index[name]
	if !ok {
		return nil
	}
	return append([]string(nil), g.stages[i].Inputs...)
}

// Dependents returns the stages consuming the named stage's output.
func (g *Graph) Dependents(name string) []string {
	i, ok := g.index[name]
	if !ok {
		return nil
	}
	out := make([]string, len(g.dependents[i]))
	for k, j := range g.dependents[i] {
		out[k] = g.stages[j].Name
	}
	return out
}

// Terminal returns the name of the stage producing the published tree.
func (g *Graph) Terminal() string { return g.terminal }

// Sources returns the source stages in topological order.
func (g *Graph) Sources() []*stage.Stage {
	var out []*stage.Stage
	for _, name := range g.order {
		if s := g.stages[g.index[name]]; s.Kind == stage.KindSource {
			out = append(out, s)
		}
	}
	return out
}

// Downstream returns the named stages and everything that transitively
// depends on them, in topological order.
func (g *Graph) Downstream(names ...string) []string {
	marked := make(map[int]bool)
	var mark func(i int)
	mark = func(i int) {
		if marked[i] {
			return
		}
		marked[i] = true
		for _, j := range g.dependents[i] {
			mark(j)
		}
	}
	for _, n := range names {
		if i, ok := g.index[n]; ok {
			mark(i)
		}
	}
	var out []string
	for _, name := range g.order {
		if marked[g.index[name]] {
			out = append(out, name)
		}
	}
	return out
}
