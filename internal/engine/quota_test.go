package engine

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVisitBudget_WithinLimit(t *testing.T) {
	b := NewVisitBudget(3)
	for i := range 3 {
		assert.NoError(t, b.Visit(fmt.Sprintf("h%d", i)))
	}
	assert.Equal(t, 3, b.Visits())
	assert.Equal(t, 3, b.Max())
}

func TestVisitBudget_Exceeded(t *testing.T) {
	b := NewVisitBudget(1)
	require.NoError(t, b.Visit("a"))

	err := b.Visit("b")
	require.Error(t, err)
	var be *BudgetExceededError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, "b", be.HoleID)
	assert.Equal(t, 2, be.Visits)
	assert.Equal(t, 1, be.Limit)
	assert.True(t, IsBudgetExceeded(fmt.Errorf("pass: %w", err)))
}

func TestVisitBudget_Unlimited(t *testing.T) {
	b := NewVisitBudget(0)
	for range 1000 {
		require.NoError(t, b.Visit("x"))
	}
	assert.False(t, IsBudgetExceeded(nil))
}
