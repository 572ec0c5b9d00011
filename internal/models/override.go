package models

import "time"

// OverridePatch holds the attributes a groupfolder may override on a field.
// A nil attribute means "inherit from the base field".
type OverridePatch struct {
	Name         *string  `json:"name,omitempty"`
	Description  *string  `json:"description,omitempty"`
	Options      []string `json:"options,omitempty"`
	Required     *bool    `json:"required,omitempty"`
	DefaultValue *string  `json:"default_value,omitempty"`
	SortOrder    *int     `json:"sort_order,omitempty"`
	Min          *float64 `json:"min,omitempty"`
	Max          *float64 `json:"max,omitempty"`
	MaxLength    *int     `json:"max_length,omitempty"`
	Pattern      *string  `json:"pattern,omitempty"`
}

// IsEmpty reports whether the patch overrides nothing
func (p OverridePatch) IsEmpty() bool {
	return p.Name == nil && p.Description == nil && p.Options == nil && p.Required == nil &&
		p.DefaultValue == nil && p.SortOrder == nil && p.Min == nil && p.Max == nil &&
		p.MaxLength == nil && p.Pattern == nil
}

// FieldOverride is a saved patch of one field inside one groupfolder
type FieldOverride struct {
	GroupfolderID int64  `json:"groupfolder_id"`
	FieldID       string `json:"field_id"`
	OverridePatch
	UpdatedAt time.Time `json:"updated_at"`
}
