package ir

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHoleKindClosedSet(t *testing.T) {
	require.Len(t, AllKinds, 6)
	for _, k := range AllKinds {
		assert.True(t, k.Valid())
		back, err := ParseHoleKind(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, back)
	}
	assert.False(t, HoleKind(0).Valid())
	assert.False(t, HoleKind(7).Valid())
	_, err := ParseHoleKind("Closure")
	assert.Error(t, err)
}

func TestEnumJSON(t *testing.T) {
	type rec struct {
		Kind   HoleKind   `json:"kind"`
		Status HoleStatus `json:"status"`
		Edge   EdgeKind   `json:"edge"`
		Action Action     `json:"action"`
	}
	in := rec{KindFunction, StatusConflicted, EdgeInforming, ActionMerge}
	data, err := json.Marshal(in)
	require.NoError(t, err)
	assert.JSONEq(t, `{"kind":"Function","status":"Conflicted","edge":"Informing","action":"Merge"}`, string(data))

	var out rec
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, in, out)

	assert.Error(t, json.Unmarshal([]byte(`{"kind":"Nope"}`), &out))
}

func TestEdgeKindPropagates(t *testing.T) {
	assert.True(t, EdgeBlocking.Propagates())
	assert.True(t, EdgeInforming.Propagates())
	assert.False(t, EdgeConflicting.Propagates())
	assert.Panics(t, func() { EdgeKind(9).Propagates() })
}
