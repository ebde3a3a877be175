package analytics

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VihangaMunasinghe/ares-sub001/internal/domain/model"
)

func num(v float64) *float64 { return &v }

func rawChange(id, name, category, unit string, before, after float64, impact model.ImpactType) model.RawMaterialChange {
	return model.RawMaterialChange{
		ItemID:        id,
		ItemName:      name,
		Category:      category,
		Unit:          unit,
		Before:        num(before),
		After:         num(after),
		ImpactType:    string(impact),
		Justification: "solver choice",
	}
}

func TestIngest_ReducedEntry(t *testing.T) {
	raw := &model.RawOptimizationDiff{
		MaterialChanges: []model.RawMaterialChange{
			rawChange("water", "Drinking Water", "Consumables", "L", 1200, 720, model.ImpactMassSaving),
		},
		Justification: model.DiffJustification{PrimaryStrategy: "recycle water"},
	}

	res, err := Ingest(raw, IngestOptions{})
	require.NoError(t, err)
	require.Len(t, res.Diff.MaterialChanges, 1)

	got := res.Diff.MaterialChanges[0]
	assert.InDelta(t, -480.0, got.Change, 0)
	assert.Equal(t, model.ChangeTypeReduced, got.ChangeType)
	assert.Empty(t, res.Corrections)
	assert.Empty(t, res.Skipped)
	assert.Empty(t, res.Warnings)
}

func TestIngest_AddedOverridesConflictingLabel(t *testing.T) {
	entry := rawChange("tools", "3D Printed Tools", "Equipment", "units", 0, 45, model.ImpactEfficiencyGain)
	entry.ChangeType = "reduced"

	res, err := Ingest(&model.RawOptimizationDiff{MaterialChanges: []model.RawMaterialChange{entry}}, IngestOptions{})
	require.NoError(t, err)

	got := res.Diff.MaterialChanges[0]
	assert.Equal(t, model.ChangeTypeAdded, got.ChangeType)
	assert.InDelta(t, 45.0, got.Change, 0)
	require.Len(t, res.Corrections, 1)
	assert.Equal(t, Correction{Index: 0, ItemID: "tools", Field: "changeType", Supplied: "reduced", Derived: "added"}, res.Corrections[0])
}

func TestIngest_SkipsInvalidEntries(t *testing.T) {
	bad := rawChange("o2", "Oxygen", "Life Support", "kg", 0, 10, model.ImpactSafetyImprovement)
	bad.Before = num(-5)

	raw := &model.RawOptimizationDiff{MaterialChanges: []model.RawMaterialChange{
		rawChange("water", "Drinking Water", "Consumables", "L", 1200, 720, model.ImpactMassSaving),
		bad,
		rawChange("food", "Food Packs", "Consumables", "kg", 300, 250, model.ImpactMassSaving),
		rawChange("filter", "Water Filter", "Equipment", "units", 0, 2, model.ImpactRecyclingGain),
	}}

	res, err := Ingest(raw, IngestOptions{})
	require.NoError(t, err)
	assert.Len(t, res.Diff.MaterialChanges, 3)
	require.Len(t, res.Skipped, 1)
	assert.Equal(t, ValidationError{Index: 1, ItemID: "o2", Field: "before", Reason: "must be non-negative"}, res.Skipped[0])

	agg := Aggregate(res.Diff.MaterialChanges)
	assert.InDelta(t, 480.0+50+2, agg.CategoryTotal(), 1e-9)
}

func TestIngest_EntryValidation(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*model.RawMaterialChange)
		wantField string
	}{
		{name: "missing item id", mutate: func(c *model.RawMaterialChange) { c.ItemID = "  " }, wantField: "itemId"},
		{name: "missing item name", mutate: func(c *model.RawMaterialChange) { c.ItemName = "" }, wantField: "itemName"},
		{name: "missing category", mutate: func(c *model.RawMaterialChange) { c.Category = "" }, wantField: "category"},
		{name: "missing unit", mutate: func(c *model.RawMaterialChange) { c.Unit = "" }, wantField: "unit"},
		{name: "missing before", mutate: func(c *model.RawMaterialChange) { c.Before = nil }, wantField: "before"},
		{name: "negative after", mutate: func(c *model.RawMaterialChange) { c.After = num(-1) }, wantField: "after"},
		{name: "non-finite after", mutate: func(c *model.RawMaterialChange) { c.After = num(math.Inf(1)) }, wantField: "after"},
		{name: "NaN before", mutate: func(c *model.RawMaterialChange) { c.Before = num(math.NaN()) }, wantField: "before"},
		{name: "unknown impact", mutate: func(c *model.RawMaterialChange) { c.ImpactType = "morale" }, wantField: "impactType"},
		{name: "malformed entry", mutate: func(c *model.RawMaterialChange) { c.Malformed = "bad type" }, wantField: "entry"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := rawChange("x", "Item", "Cat", "kg", 10, 5, model.ImpactMassSaving)
			tt.mutate(&entry)

			res, err := Ingest(&model.RawOptimizationDiff{MaterialChanges: []model.RawMaterialChange{entry}}, IngestOptions{})
			require.Error(t, err)
			assert.True(t, IsEmptyResult(err))
			require.NotNil(t, res)
			require.Len(t, res.Skipped, 1)
			assert.Equal(t, tt.wantField, res.Skipped[0].Field)
		})
	}
}

func TestIngest_RecomputesInconsistentChange(t *testing.T) {
	entry := rawChange("water", "Drinking Water", "Consumables", "L", 1200, 720, model.ImpactMassSaving)
	entry.Change = num(-400)

	res, err := Ingest(&model.RawOptimizationDiff{MaterialChanges: []model.RawMaterialChange{entry}}, IngestOptions{})
	require.NoError(t, err)
	assert.InDelta(t, -480.0, res.Diff.MaterialChanges[0].Change, 0)
	require.Len(t, res.Corrections, 1)
	assert.Equal(t, "change", res.Corrections[0].Field)
	assert.Equal(t, "-400", res.Corrections[0].Supplied)
	assert.Equal(t, "-480", res.Corrections[0].Derived)
}

func TestIngest_ChangeWithinToleranceIsNotACorrection(t *testing.T) {
	entry := rawChange("water", "Drinking Water", "Consumables", "L", 1200, 720, model.ImpactMassSaving)
	entry.Change = num(-480.0000001)

	res, err := Ingest(&model.RawOptimizationDiff{MaterialChanges: []model.RawMaterialChange{entry}}, IngestOptions{})
	require.NoError(t, err)
	assert.Empty(t, res.Corrections)
	// the stored change is always exactly after - before
	assert.InDelta(t, -480.0, res.Diff.MaterialChanges[0].Change, 0)
}

func TestIngest_WeekApplied(t *testing.T) {
	entry := rawChange("water", "Drinking Water", "Consumables", "L", 1200, 720, model.ImpactMassSaving)
	entry.WeekApplied = []int{3, 1, 3, 0, 9}

	res, err := Ingest(&model.RawOptimizationDiff{MaterialChanges: []model.RawMaterialChange{entry}}, IngestOptions{MaxWeek: 8})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 3}, res.Diff.MaterialChanges[0].WeekApplied)
	require.Len(t, res.Corrections, 1)
	assert.Equal(t, "weekApplied", res.Corrections[0].Field)
	assert.Equal(t, "[3,1,3,0,9]", res.Corrections[0].Supplied)
	assert.Equal(t, "[1,3]", res.Corrections[0].Derived)

	entry.WeekApplied = []int{4, 2, 2}
	res, err = Ingest(&model.RawOptimizationDiff{MaterialChanges: []model.RawMaterialChange{entry}}, IngestOptions{})
	require.NoError(t, err)
	assert.Equal(t, []int{2, 4}, res.Diff.MaterialChanges[0].WeekApplied)
	assert.Empty(t, res.Corrections, "reordering alone is not a correction")
}

func TestIngest_EmptyPayload(t *testing.T) {
	res, err := Ingest(&model.RawOptimizationDiff{}, IngestOptions{})
	require.Error(t, err)
	assert.True(t, IsEmptyResult(err))
	assert.Empty(t, res.Diff.MaterialChanges)

	var empty *EmptyResultError
	require.ErrorAs(t, err, &empty)
	assert.Empty(t, empty.Skipped)
}

func TestIngest_JustificationWarning(t *testing.T) {
	raw := &model.RawOptimizationDiff{
		MaterialChanges: []model.RawMaterialChange{
			rawChange("water", "Drinking Water", "Consumables", "L", 1200, 720, model.ImpactMassSaving),
		},
		Justification: model.DiffJustification{PrimaryStrategy: "  ", KeyDecisions: []string{"a", " ", "b "}},
	}

	res, err := Ingest(raw, IngestOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{ErrEmptyJustification.Error()}, res.Warnings)
	assert.Equal(t, []string{"a", "b"}, res.Diff.Justification.KeyDecisions)
}

func TestIngest_Idempotent(t *testing.T) {
	data := []byte(samplePayload)

	first, err := DecodePayload(data)
	require.NoError(t, err)
	second, err := DecodePayload(data)
	require.NoError(t, err)

	a, err := Ingest(&first.Diff, IngestOptions{MaxWeek: 12})
	require.NoError(t, err)
	b, err := Ingest(&second.Diff, IngestOptions{MaxWeek: 12})
	require.NoError(t, err)

	aj, err := json.Marshal(a)
	require.NoError(t, err)
	bj, err := json.Marshal(b)
	require.NoError(t, err)
	assert.JSONEq(t, string(aj), string(bj))
	assert.Equal(t, Aggregate(a.Diff.MaterialChanges), Aggregate(b.Diff.MaterialChanges))
}

func TestIngest_CanonicalInvariants(t *testing.T) {
	p, err := DecodePayload([]byte(samplePayload))
	require.NoError(t, err)
	res, err := Ingest(&p.Diff, IngestOptions{})
	require.NoError(t, err)

	for _, c := range res.Diff.MaterialChanges {
		assert.Equal(t, c.After-c.Before, c.Change, c.ItemID)
		assert.Equal(t, DeriveChangeType(c.Before, c.After, c.ChangeType), c.ChangeType, c.ItemID)
	}
}

func TestDeriveChangeType(t *testing.T) {
	tests := []struct {
		name          string
		before, after float64
		supplied      model.ChangeType
		want          model.ChangeType
	}{
		{name: "added from zero", before: 0, after: 45, want: model.ChangeTypeAdded},
		{name: "added wins over label", before: 0, after: 45, supplied: model.ChangeTypeIncreased, want: model.ChangeTypeAdded},
		{name: "zero to zero reads as added", before: 0, after: 0, want: model.ChangeTypeAdded},
		{name: "eliminated", before: 12, after: 0, want: model.ChangeTypeEliminated},
		{name: "reduced", before: 1200, after: 720, want: model.ChangeTypeReduced},
		{name: "increased", before: 10, after: 15, supplied: model.ChangeTypeReduced, want: model.ChangeTypeIncreased},
		{name: "unchanged keeps increased label", before: 10, after: 10, supplied: model.ChangeTypeIncreased, want: model.ChangeTypeIncreased},
		{name: "unchanged defaults to reduced", before: 10, after: 10, want: model.ChangeTypeReduced},
		{name: "unchanged ignores eliminated label", before: 10, after: 10, supplied: model.ChangeTypeEliminated, want: model.ChangeTypeReduced},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveChangeType(tt.before, tt.after, tt.supplied))
		})
	}
}

func TestIngest_SkipsQuantityAboveBound(t *testing.T) {
	raw := &model.RawOptimizationDiff{
		MaterialChanges: []model.RawMaterialChange{
			rawChange("huge-a", "Ballast A", "Structure", "kg", 1.7e308, 0, model.ImpactMassSaving),
			rawChange("huge-b", "Ballast B", "Structure", "kg", 0, MaxQuantity*2, model.ImpactMassSaving),
			rawChange("edge", "Ballast C", "Structure", "kg", MaxQuantity, 0, model.ImpactMassSaving),
		},
	}

	res, err := Ingest(raw, IngestOptions{})
	require.NoError(t, err)
	require.Len(t, res.Diff.MaterialChanges, 1)
	assert.Equal(t, "edge", res.Diff.MaterialChanges[0].ItemID)

	require.Len(t, res.Skipped, 2)
	assert.Equal(t, "before", res.Skipped[0].Field)
	assert.Equal(t, "after", res.Skipped[1].Field)
	assert.Contains(t, res.Skipped[0].Reason, "must not exceed")
}
