package graph

import (
	"fmt"
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/hollow/internal/ir"
)

// diamond: a -> b, a -> c, b -> d, c -> d, plus e standing alone.
func diamond(t *testing.T) *Store {
	t.Helper()
	s := setupTestStore(t, termSpec("a"), termSpec("b"), termSpec("c"), termSpec("d"), termSpec("e"))
	require.NoError(t, s.Link("a", "c", ir.EdgeBlocking))
	require.NoError(t, s.Link("a", "b", ir.EdgeInforming))
	require.NoError(t, s.Link("b", "d", ir.EdgeBlocking))
	require.NoError(t, s.Link("c", "d", ir.EdgeBlocking))
	return s
}

func TestView_TopologicalOrder(t *testing.T) {
	s := diamond(t)
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, s.TopologicalOrder())
}

func TestView_Depths(t *testing.T) {
	s := diamond(t)
	assert.Equal(t, map[string]int{"a": 0, "b": 1, "c": 1, "d": 2, "e": 0}, s.View().Depths())
}

func TestView_CriticalPath(t *testing.T) {
	s := diamond(t)
	// a -> b is Informing, so the Blocking chain a -> c -> d is longest.
	assert.Equal(t, []string{"a", "c", "d"}, s.CriticalPath())
}

func TestView_CriticalPathTieBreak(t *testing.T) {
	s := setupTestStore(t, termSpec("p"), termSpec("q"), termSpec("r"), termSpec("x"), termSpec("y"))
	require.NoError(t, s.Link("q", "y", ir.EdgeBlocking))
	require.NoError(t, s.Link("p", "x", ir.EdgeBlocking))
	// Both chains have two holes; p -> x ends at the earlier-created hole.
	assert.Equal(t, []string{"p", "x"}, s.CriticalPath())
}

func TestView_CriticalPathNoBlockingEdges(t *testing.T) {
	s := setupTestStore(t, termSpec("m"), termSpec("n"))
	require.NoError(t, s.Link("m", "n", ir.EdgeInforming))
	assert.Equal(t, []string{"m"}, s.CriticalPath())
	assert.Equal(t, []string{}, NewStore().CriticalPath())
}

func TestView_DependentsAndDependencies(t *testing.T) {
	s := diamond(t)
	v := s.View()
	assert.Equal(t, []string{"b", "c"}, v.Dependents("a"))
	assert.Equal(t, []string{"b", "c"}, v.Dependencies("d"))
	assert.Nil(t, v.Dependents("zz"))
}

// randomDAG links n holes with edges only from lower to higher index, so
// the result is acyclic by construction.
func randomDAG(t *testing.T, rng *rand.Rand, n int) (*Store, []Edge) {
	t.Helper()
	s := NewStore()
	for i := range n {
		_, err := s.CreateHole(termSpec(fmt.Sprintf("n%d", i)))
		require.NoError(t, err)
	}
	kinds := []ir.EdgeKind{ir.EdgeBlocking, ir.EdgeInforming, ir.EdgeConflicting}
	var edges []Edge
	for i := range n {
		for j := i + 1; j < n; j++ {
			if rng.IntN(4) != 0 {
				continue
			}
			e := Edge{From: fmt.Sprintf("n%d", i), To: fmt.Sprintf("n%d", j), Kind: kinds[rng.IntN(len(kinds))]}
			require.NoError(t, s.Link(e.From, e.To, e.Kind))
			edges = append(edges, e)
		}
	}
	return s, edges
}

func TestView_RandomDAGOrderRespectsEdges(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	for trial := range 20 {
		s, edges := randomDAG(t, rng, 5+trial)
		order := s.TopologicalOrder()
		require.Len(t, order, s.View().Len())
		pos := make(map[string]int, len(order))
		for i, id := range order {
			pos[id] = i
		}
		depths := s.View().Depths()
		for _, e := range edges {
			if !e.Kind.Propagates() {
				continue
			}
			assert.Less(t, pos[e.From], pos[e.To], "trial %d edge %s", trial, e)
			assert.Less(t, depths[e.From], depths[e.To], "trial %d edge %s", trial, e)
		}

		path := s.CriticalPath()
		for i := 1; i < len(path); i++ {
			assert.True(t, slices.Contains(edges, Edge{From: path[i-1], To: path[i], Kind: ir.EdgeBlocking}))
		}
	}
}

func TestView_RandomBackEdgesRejected(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	for trial := range 20 {
		s, edges := randomDAG(t, rng, 8)
		before := s.Edges()
		for _, e := range edges {
			if !e.Kind.Propagates() {
				continue
			}
			err := s.Link(e.To, e.From, ir.EdgeBlocking)
			assert.True(t, IsCycleError(err), "trial %d reverse of %s: %v", trial, e, err)
		}
		assert.Equal(t, before, s.Edges())
	}
}
