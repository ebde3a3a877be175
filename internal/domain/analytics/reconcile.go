package analytics

import (
	"math"

	"github.com/VihangaMunasinghe/ares-sub001/internal/domain/model"
)

// DefaultSummaryTolerance is the relative difference allowed between a declared and a computed summary figure.
const DefaultSummaryTolerance = 0.01

// Summary field names used in InconsistentSummary warnings.
const (
	FieldTotalMassSaved      = "totalMassSaved"
	FieldTotalItemsAffected  = "totalItemsAffected"
	FieldRecyclingTasksAdded = "recyclingTasksAdded"
	FieldSafetyImprovements  = "safetyImprovements"
)

// Reconciliation pairs the solver's summary with the values recomputed from the canonical changes.
// Declared stays the headline; Warnings are advisory only.
type Reconciliation struct {
	Declared model.DiffSummary     `json:"declared"`
	Computed model.DiffSummary     `json:"computed"`
	Warnings []InconsistentSummary `json:"warnings"`
}

// Consistent reports whether every computed figure matched its declared counterpart.
func (r Reconciliation) Consistent() bool {
	return len(r.Warnings) == 0
}

// ComputeSummary derives the headline figures from canonical changes alone.
func ComputeSummary(changes []model.MaterialQuantityDiff) model.DiffSummary {
	var s model.DiffSummary
	items := make(map[string]struct{}, len(changes))
	for i := range changes {
		c := &changes[i]
		if c.ChangeType.Saving() {
			s.TotalMassSaved += math.Abs(c.Change)
		}
		items[c.ItemID] = struct{}{}
		switch c.ImpactType {
		case model.ImpactRecyclingGain:
			s.RecyclingTasksAdded++
		case model.ImpactSafetyImprovement:
			s.SafetyImprovements++
		}
	}
	s.TotalItemsAffected = len(items)
	return s
}

// Reconcile compares the declared summary of diff against recomputed values. A tolerance <= 0
// uses DefaultSummaryTolerance.
func Reconcile(diff *model.OptimizationDiff, tolerance float64) Reconciliation {
	if tolerance <= 0 {
		tolerance = DefaultSummaryTolerance
	}
	declared := diff.Summary
	computed := ComputeSummary(diff.MaterialChanges)

	checks := []struct {
		field              string
		declared, computed float64
	}{
		{FieldTotalMassSaved, declared.TotalMassSaved, computed.TotalMassSaved},
		{FieldTotalItemsAffected, float64(declared.TotalItemsAffected), float64(computed.TotalItemsAffected)},
		{FieldRecyclingTasksAdded, float64(declared.RecyclingTasksAdded), float64(computed.RecyclingTasksAdded)},
		{FieldSafetyImprovements, float64(declared.SafetyImprovements), float64(computed.SafetyImprovements)},
	}

	rec := Reconciliation{Declared: declared, Computed: computed, Warnings: []InconsistentSummary{}}
	for _, c := range checks {
		if diverges(c.declared, c.computed, tolerance) {
			rec.Warnings = append(rec.Warnings, InconsistentSummary{
				Field:    c.field,
				Declared: c.declared,
				Computed: c.computed,
			})
		}
	}
	return rec
}

// diverges measures the difference relative to the declared value, or to the computed value when
// nothing was declared.
func diverges(declared, computed, tolerance float64) bool {
	diff := math.Abs(declared - computed)
	if diff == 0 {
		return false
	}
	base := math.Abs(declared)
	if base == 0 {
		base = math.Abs(computed)
	}
	return diff/base > tolerance
}
