package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/hollow/internal/graph"
	"github.com/roach88/hollow/internal/ir"
)

func blocking(from, to string) graph.Edge {
	return graph.Edge{From: from, To: to, Kind: ir.EdgeBlocking}
}

func informing(from, to string) graph.Edge {
	return graph.Edge{From: from, To: to, Kind: ir.EdgeInforming}
}

func conflicting(from, to string) graph.Edge {
	return graph.Edge{From: from, To: to, Kind: ir.EdgeConflicting}
}

func TestAnalyzeCycles_Empty(t *testing.T) {
	warnings := AnalyzeCycles(nil)
	assert.NotNil(t, warnings)
	assert.Empty(t, warnings, "no edges should produce no warnings")
}

func TestAnalyzeCycles_DAG(t *testing.T) {
	edges := []graph.Edge{
		blocking("a", "b"),
		blocking("a", "c"),
		informing("b", "d"),
		informing("c", "d"),
	}
	assert.Empty(t, AnalyzeCycles(edges), "DAG should produce no cycle warnings")
}

func TestAnalyzeCycles_TwoNodeCycle(t *testing.T) {
	warnings := AnalyzeCycles([]graph.Edge{blocking("a", "b"), informing("b", "a")})

	require.Len(t, warnings, 1)
	assert.Equal(t, LevelError, warnings[0].Level)
	assert.Equal(t, []string{"a", "b", "a"}, warnings[0].Path)
	assert.Contains(t, warnings[0].Message, "a → b → a")
}

func TestAnalyzeCycles_ThreeNodeCycle(t *testing.T) {
	warnings := AnalyzeCycles([]graph.Edge{
		blocking("x", "y"),
		blocking("y", "z"),
		blocking("z", "x"),
		blocking("z", "w"),
	})

	require.Len(t, warnings, 1)
	assert.Equal(t, []string{"x", "y", "z", "x"}, warnings[0].Path)
}

func TestAnalyzeCycles_ConflictingEdgesDoNotCycle(t *testing.T) {
	warnings := AnalyzeCycles([]graph.Edge{conflicting("a", "b"), conflicting("b", "a")})
	assert.Empty(t, warnings, "conflicting edges never propagate")
}

func TestAnalyzeCycles_ConflictAcrossDependency(t *testing.T) {
	warnings := AnalyzeCycles([]graph.Edge{
		blocking("a", "b"),
		conflicting("b", "a"),
	})

	require.Len(t, warnings, 1)
	assert.Equal(t, LevelWarning, warnings[0].Level)
	assert.Equal(t, []string{"a", "b"}, warnings[0].Path)
}

func TestAnalyzeCycles_MultipleCycles(t *testing.T) {
	warnings := AnalyzeCycles([]graph.Edge{
		blocking("a", "b"),
		blocking("b", "a"),
		blocking("c", "d"),
		blocking("d", "c"),
	})

	require.Len(t, warnings, 2)
	assert.Equal(t, []string{"a", "b", "a"}, warnings[0].Path)
	assert.Equal(t, []string{"c", "d", "c"}, warnings[1].Path)
}

func TestAnalyzeCycles_Deterministic(t *testing.T) {
	edges := []graph.Edge{
		blocking("p", "q"),
		blocking("q", "r"),
		blocking("r", "p"),
		blocking("s", "t"),
		blocking("t", "s"),
		conflicting("p", "s"),
	}
	first := AnalyzeCycles(edges)
	for range 20 {
		assert.Equal(t, first, AnalyzeCycles(edges))
	}
}
