package compiler

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/hollow/internal/graph"
)

// Cycle finding levels.
const (
	LevelError   = "error"
	LevelWarning = "warning"
)

// CycleWarning describes a cycle or near-cycle in declared edges.
//
// Cycles through propagating edges are errors: the graph store would
// reject the closing edge. A Conflicting edge between two holes where one
// already depends on the other is a warning, since filling one side
// decides the other before the alternatives are weighed.
type CycleWarning struct {
	Path    []string `json:"path"` // ["a", "b", "a"]
	Message string   `json:"message"`
	Level   string   `json:"level"`
}

// AnalyzeCycles reports cycles over propagating edges and conflicting
// pairs that are linked by a propagating path.
//
// The algorithm:
//  1. Build the propagation graph from Blocking and Informing edges
//  2. Use Tarjan's algorithm to find strongly connected components
//  3. Report each SCC with size > 1 as an error
//  4. Report each Conflicting edge whose endpoints reach each other
//
// Output is ordered by first appearance of the holes involved, so the
// same declaration always yields the same findings.
func AnalyzeCycles(edges []graph.Edge) []CycleWarning {
	if len(edges) == 0 {
		return []CycleWarning{}
	}

	g := buildDependencyGraph(edges)

	warnings := []CycleWarning{}
	for _, scc := range tarjanSCC(g) {
		if len(scc) > 1 {
			warnings = append(warnings, cycleSCCToWarning(scc, g))
		}
	}

	for _, e := range edges {
		if !e.Kind.Valid() || e.Kind.Propagates() {
			continue
		}
		for _, pair := range [][2]string{{e.From, e.To}, {e.To, e.From}} {
			if path := g.path(pair[0], pair[1]); path != nil {
				warnings = append(warnings, CycleWarning{
					Path: path,
					Message: fmt.Sprintf("conflicting holes %s and %s are linked by %s",
						e.From, e.To, strings.Join(path, " → ")),
					Level: LevelWarning,
				})
				break
			}
		}
	}
	return warnings
}

// dependencyGraph maps a hole to the holes it propagates into. order keeps
// first-appearance order for deterministic traversal.
type dependencyGraph struct {
	succ  map[string][]string
	order []string
}

func buildDependencyGraph(edges []graph.Edge) dependencyGraph {
	g := dependencyGraph{succ: make(map[string][]string)}
	node := func(id string) {
		if _, ok := g.succ[id]; !ok {
			g.succ[id] = []string{}
			g.order = append(g.order, id)
		}
	}
	for _, e := range edges {
		node(e.From)
		node(e.To)
		if e.Kind.Valid() && e.Kind.Propagates() && !slices.Contains(g.succ[e.From], e.To) {
			g.succ[e.From] = append(g.succ[e.From], e.To)
		}
	}
	return g
}

// path returns a propagating path from -> ... -> to, or nil.
func (g dependencyGraph) path(from, to string) []string {
	prev := map[string]string{from: ""}
	queue := []string{from}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur == to && cur != from {
			var path []string
			for n := to; n != ""; n = prev[n] {
				path = append(path, n)
			}
			slices.Reverse(path)
			return path
		}
		for _, next := range g.succ[cur] {
			if _, seen := prev[next]; !seen {
				prev[next] = cur
				queue = append(queue, next)
			}
		}
	}
	return nil
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
func tarjanSCC(g dependencyGraph) [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range g.succ[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		// root node: pop the component
		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			slices.Reverse(scc)
			sccs = append(sccs, scc)
		}
	}

	for _, node := range g.order {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}
	return sccs
}

func cycleSCCToWarning(scc []string, g dependencyGraph) CycleWarning {
	path := reconstructCyclePath(scc, g)
	return CycleWarning{
		Path:    path,
		Message: fmt.Sprintf("dependency cycle: %s", strings.Join(path, " → ")),
		Level:   LevelError,
	}
}

// reconstructCyclePath walks from the first SCC member along edges inside
// the SCC until it returns to the start.
func reconstructCyclePath(scc []string, g dependencyGraph) []string {
	if len(scc) == 0 {
		return []string{}
	}

	members := make(map[string]bool, len(scc))
	for _, node := range scc {
		members[node] = true
	}

	start := scc[0]
	current := start
	path := []string{current}
	visited := make(map[string]bool)

	for {
		visited[current] = true

		var next string
		for _, neighbor := range g.succ[current] {
			if members[neighbor] && (!visited[neighbor] || neighbor == start) {
				next = neighbor
				break
			}
		}
		if next == "" {
			break
		}

		path = append(path, next)
		if next == start {
			break
		}
		current = next
	}
	return path
}
