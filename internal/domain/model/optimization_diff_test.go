package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRawMaterialChange_UnmarshalJSON(t *testing.T) {
	t.Run("well formed", func(t *testing.T) {
		var c RawMaterialChange
		require.NoError(t, json.Unmarshal([]byte(`{"itemId":"w1","before":10,"after":4,"weekApplied":[2,1]}`), &c))
		assert.Empty(t, c.Malformed)
		assert.Equal(t, "w1", c.ItemID)
		require.NotNil(t, c.Before)
		assert.InDelta(t, 10.0, *c.Before, 0)
		assert.Nil(t, c.Change)
		assert.Equal(t, []int{2, 1}, c.WeekApplied)
	})

	t.Run("type mismatch keeps item id", func(t *testing.T) {
		var c RawMaterialChange
		require.NoError(t, json.Unmarshal([]byte(`{"itemId":" w2 ","before":"lots","after":1}`), &c))
		assert.NotEmpty(t, c.Malformed)
		assert.Equal(t, "w2", c.ItemID)
		assert.Nil(t, c.Before)
	})

	t.Run("non-string item id", func(t *testing.T) {
		var c RawMaterialChange
		require.NoError(t, json.Unmarshal([]byte(`{"itemId":7,"before":1,"after":1}`), &c))
		assert.NotEmpty(t, c.Malformed)
		assert.Empty(t, c.ItemID)
	})
}

func TestRawOptimizationDiff_OneBadEntryDoesNotFailDocument(t *testing.T) {
	var d RawOptimizationDiff
	require.NoError(t, json.Unmarshal([]byte(`{
	  "materialChanges": [
	    {"itemId": "ok", "before": 1, "after": 2},
	    {"itemId": "bad", "after": [1]}
	  ],
	  "summary": {"totalMassSaved": 12.5, "totalItemsAffected": 2}
	}`), &d))

	require.Len(t, d.MaterialChanges, 2)
	assert.Empty(t, d.MaterialChanges[0].Malformed)
	assert.NotEmpty(t, d.MaterialChanges[1].Malformed)
	assert.Equal(t, "bad", d.MaterialChanges[1].ItemID)
	assert.InDelta(t, 12.5, d.Summary.TotalMassSaved, 0)
}

func TestChangeAndImpactType(t *testing.T) {
	for _, c := range []ChangeType{ChangeTypeReduced, ChangeTypeIncreased, ChangeTypeEliminated, ChangeTypeAdded} {
		assert.True(t, c.Valid(), c)
	}
	assert.False(t, ChangeType("moved").Valid())
	assert.True(t, ChangeTypeReduced.Saving())
	assert.True(t, ChangeTypeEliminated.Saving())
	assert.False(t, ChangeTypeAdded.Saving())
	assert.False(t, ChangeTypeIncreased.Saving())

	for _, i := range []ImpactType{ImpactMassSaving, ImpactRecyclingGain, ImpactSafetyImprovement, ImpactEfficiencyGain} {
		assert.True(t, i.Valid(), i)
	}
	assert.False(t, ImpactType("cost_saving").Valid())
}
