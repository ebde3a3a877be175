package model

import (
	"encoding/json"
	"strings"
)

// ChangeType classifies a quantity delta.
type ChangeType string

// ImpactType classifies why a change matters. It is independent of the delta's sign.
type ImpactType string

const (
	// ChangeTypeReduced marks a quantity that went down but is still present.
	ChangeTypeReduced ChangeType = "reduced"
	// ChangeTypeIncreased marks a quantity that went up from a non-zero baseline.
	ChangeTypeIncreased ChangeType = "increased"
	// ChangeTypeEliminated marks a quantity that went to zero.
	ChangeTypeEliminated ChangeType = "eliminated"
	// ChangeTypeAdded marks an item that was not present before.
	ChangeTypeAdded ChangeType = "added"
)

const (
	// ImpactMassSaving tags changes that reduce launch mass.
	ImpactMassSaving ImpactType = "mass_saving"
	// ImpactRecyclingGain tags changes that add recycling.
	ImpactRecyclingGain ImpactType = "recycling_gain"
	// ImpactSafetyImprovement tags changes made for crew safety.
	ImpactSafetyImprovement ImpactType = "safety_improvement"
	// ImpactEfficiencyGain tags changes that improve resource efficiency.
	ImpactEfficiencyGain ImpactType = "efficiency_gain"
)

// Valid returns true if the ChangeType is one of the enumerated values.
func (c ChangeType) Valid() bool {
	switch c {
	case ChangeTypeReduced, ChangeTypeIncreased, ChangeTypeEliminated, ChangeTypeAdded:
		return true
	}
	return false
}

// Saving reports whether the change counts toward mass saved.
func (c ChangeType) Saving() bool {
	return c == ChangeTypeReduced || c == ChangeTypeEliminated
}

// Valid returns true if the ImpactType is one of the enumerated values.
func (i ImpactType) Valid() bool {
	switch i {
	case ImpactMassSaving, ImpactRecyclingGain, ImpactSafetyImprovement, ImpactEfficiencyGain:
		return true
	}
	return false
}

// MaterialQuantityDiff is one canonical before/after change for a resource item.
type MaterialQuantityDiff struct {
	ItemID        string     `json:"itemId"`
	ItemName      string     `json:"itemName"`
	Category      string     `json:"category"`
	Unit          string     `json:"unit"`
	Before        float64    `json:"before"`
	After         float64    `json:"after"`
	Change        float64    `json:"change"`
	ChangeType    ChangeType `json:"changeType"`
	ImpactType    ImpactType `json:"impactType"`
	Justification string     `json:"justification"`
	WeekApplied   []int      `json:"weekApplied,omitempty"`
}

// DiffSummary holds the headline totals self-reported by the solver.
type DiffSummary struct {
	TotalMassSaved      float64 `json:"totalMassSaved"`
	TotalItemsAffected  int     `json:"totalItemsAffected"`
	RecyclingTasksAdded int     `json:"recyclingTasksAdded"`
	SafetyImprovements  int     `json:"safetyImprovements"`
}

// DiffJustification is the solver's narrative for the run.
type DiffJustification struct {
	PrimaryStrategy string   `json:"primaryStrategy"`
	KeyDecisions    []string `json:"keyDecisions"`
	TradeOffs       []string `json:"tradeOffs"`
}

// OptimizationDiff is the canonical, validated description of what a run changed.
// It is never mutated after ingestion.
type OptimizationDiff struct {
	MaterialChanges []MaterialQuantityDiff `json:"materialChanges"`
	Summary         DiffSummary            `json:"summary"`
	Justification   DiffJustification      `json:"justification"`
}

// RawMaterialChange mirrors a material change entry as delivered by the solver.
// Pointer fields distinguish absent values from zero.
type RawMaterialChange struct {
	ItemID        string   `json:"itemId"`
	ItemName      string   `json:"itemName"`
	Category      string   `json:"category"`
	Unit          string   `json:"unit"`
	Before        *float64 `json:"before"`
	After         *float64 `json:"after"`
	Change        *float64 `json:"change,omitempty"`
	ChangeType    string   `json:"changeType,omitempty"`
	ImpactType    string   `json:"impactType"`
	Justification string   `json:"justification"`
	WeekApplied   []int    `json:"weekApplied,omitempty"`

	// Malformed holds the decode error of an entry whose fields had the wrong JSON types.
	Malformed string `json:"-"`
}

// UnmarshalJSON decodes an entry without failing the surrounding document: a type mismatch in one
// entry is recorded in Malformed so the ingester can skip just that entry.
func (c *RawMaterialChange) UnmarshalJSON(data []byte) error {
	type plain RawMaterialChange
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		var ident struct {
			ItemID any `json:"itemId"`
		}
		*c = RawMaterialChange{Malformed: err.Error()}
		if json.Unmarshal(data, &ident) == nil {
			if id, ok := ident.ItemID.(string); ok {
				c.ItemID = strings.TrimSpace(id)
			}
		}
		return nil
	}
	*c = RawMaterialChange(p)
	return nil
}

// RawOptimizationDiff is the untrusted payload shape delivered by the solver.
type RawOptimizationDiff struct {
	MaterialChanges []RawMaterialChange `json:"materialChanges"`
	Summary         DiffSummary         `json:"summary"`
	Justification   DiffJustification   `json:"justification"`
}
