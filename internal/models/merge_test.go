package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func strPtr(s string) *string { return &s }

func TestApplyOverride_PatchesOnlySetAttributes(t *testing.T) {
	min := 1.0
	base := Field{
		ID:          "f1",
		Name:        "Retention",
		Type:        FieldTypeDate,
		Description: "When the file may be removed",
		Required:    false,
		SortOrder:   3,
		Constraints: Constraints{Min: &min},
		Scope:       ScopeGlobal,
	}

	effective := ApplyOverride(base, &OverridePatch{Name: strPtr("Archive Date")})

	assert.Equal(t, "f1", effective.ID)
	assert.Equal(t, "Archive Date", effective.Name)
	assert.Equal(t, FieldTypeDate, effective.Type)
	assert.Equal(t, "When the file may be removed", effective.Description)
	assert.Equal(t, 3, effective.SortOrder)
	assert.Equal(t, 1.0, *effective.Constraints.Min)
	assert.Equal(t, "Retention", base.Name, "base field must not change")
}

func TestApplyOverride_NilPatchCopiesBase(t *testing.T) {
	base := Field{ID: "s", Name: "Status", Type: FieldTypeSelect, Options: []string{"draft", "final"}}

	effective := ApplyOverride(base, nil)
	effective.Options[0] = "changed"

	assert.Equal(t, "draft", base.Options[0])
}

func TestApplyOverride_AllAttributes(t *testing.T) {
	required := true
	order := 9
	min, max := 0.0, 10.0
	maxLen := 4
	base := Field{ID: "n", Name: "Score", Type: FieldTypeNumber}

	effective := ApplyOverride(base, &OverridePatch{
		Name:         strPtr("Rating"),
		Description:  strPtr("0 to 10"),
		Options:      []string{"x"},
		Required:     &required,
		DefaultValue: strPtr("5"),
		SortOrder:    &order,
		Min:          &min,
		Max:          &max,
		MaxLength:    &maxLen,
		Pattern:      strPtr("^[0-9]+$"),
	})

	assert.Equal(t, "Rating", effective.Name)
	assert.Equal(t, "0 to 10", effective.Description)
	assert.Equal(t, []string{"x"}, effective.Options)
	assert.True(t, effective.Required)
	assert.Equal(t, "5", effective.DefaultValue)
	assert.Equal(t, 9, effective.SortOrder)
	assert.Equal(t, 0.0, *effective.Constraints.Min)
	assert.Equal(t, 10.0, *effective.Constraints.Max)
	assert.Equal(t, 4, *effective.Constraints.MaxLength)
	assert.Equal(t, "^[0-9]+$", effective.Constraints.Pattern)
	assert.Equal(t, FieldTypeNumber, effective.Type)
}

func TestApplyOverride_IsDeterministic(t *testing.T) {
	base := Field{ID: "f", Name: "A", Type: FieldTypeText}
	patch := &OverridePatch{Name: strPtr("B")}

	assert.Equal(t, ApplyOverride(base, patch), ApplyOverride(base, patch))
}

func TestFieldType_IsValid(t *testing.T) {
	assert.True(t, FieldTypeDate.IsValid())
	assert.True(t, FieldTypeMultiselect.IsValid())
	assert.False(t, FieldType("color").IsValid())
	assert.False(t, FieldType("").IsValid())
}

func TestOverridePatch_IsEmpty(t *testing.T) {
	assert.True(t, OverridePatch{}.IsEmpty())
	assert.False(t, OverridePatch{Name: strPtr("x")}.IsEmpty())
}
