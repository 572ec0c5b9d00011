package models

import "time"

// FieldType is the value type of a metadata field
type FieldType string

const (
	FieldTypeText        FieldType = "text"
	FieldTypeTextarea    FieldType = "textarea"
	FieldTypeNumber      FieldType = "number"
	FieldTypeDate        FieldType = "date"
	FieldTypeCheckbox    FieldType = "checkbox"
	FieldTypeSelect      FieldType = "select"
	FieldTypeMultiselect FieldType = "multiselect"
	FieldTypeURL         FieldType = "url"
)

var knownFieldTypes = map[FieldType]bool{
	FieldTypeText:        true,
	FieldTypeTextarea:    true,
	FieldTypeNumber:      true,
	FieldTypeDate:        true,
	FieldTypeCheckbox:    true,
	FieldTypeSelect:      true,
	FieldTypeMultiselect: true,
	FieldTypeURL:         true,
}

// IsValid reports whether t is one of the supported field types
func (t FieldType) IsValid() bool {
	return knownFieldTypes[t]
}

// HasOptions reports whether values of this type are picked from a fixed option list
func (t FieldType) HasOptions() bool {
	return t == FieldTypeSelect || t == FieldTypeMultiselect
}

// FieldScope tells which registry owns a field
type FieldScope string

const (
	ScopeGlobal      FieldScope = "global"
	ScopeGroupfolder FieldScope = "groupfolder"
)

// Constraints are the optional validation rules of a field
type Constraints struct {
	Min       *float64 `json:"min,omitempty" yaml:"min,omitempty"`             // number
	Max       *float64 `json:"max,omitempty" yaml:"max,omitempty"`             // number
	MaxLength *int     `json:"max_length,omitempty" yaml:"max_length,omitempty"` // text, textarea
	Pattern   string   `json:"pattern,omitempty" yaml:"pattern,omitempty"`       // text
}

// Field is a metadata field definition, either global or owned by a groupfolder
type Field struct {
	ID            string      `json:"id"`
	Name          string      `json:"name"`
	Type          FieldType   `json:"type"`
	Description   string      `json:"description,omitempty"`
	Options       []string    `json:"options,omitempty"`
	Required      bool        `json:"required"`
	DefaultValue  string      `json:"default_value,omitempty"`
	SortOrder     int         `json:"sort_order"`
	Constraints   Constraints `json:"constraints"`
	Scope         FieldScope  `json:"scope"`
	GroupfolderID *int64      `json:"groupfolder_id,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// FieldDefinition is the client-supplied part of a field, used for create and update
type FieldDefinition struct {
	ID           string      `json:"id,omitempty" yaml:"id,omitempty"`
	Name         string      `json:"name" yaml:"name"`
	Type         FieldType   `json:"type" yaml:"type"`
	Description  string      `json:"description,omitempty" yaml:"description,omitempty"`
	Options      []string    `json:"options,omitempty" yaml:"options,omitempty"`
	Required     bool        `json:"required" yaml:"required"`
	DefaultValue string      `json:"default_value,omitempty" yaml:"default_value,omitempty"`
	SortOrder    int         `json:"sort_order" yaml:"sort_order"`
	Constraints  Constraints `json:"constraints" yaml:"constraints"`
}

// Definition returns the client-editable attributes of f
func (f Field) Definition() FieldDefinition {
	return FieldDefinition{
		ID:           f.ID,
		Name:         f.Name,
		Type:         f.Type,
		Description:  f.Description,
		Options:      append([]string(nil), f.Options...),
		Required:     f.Required,
		DefaultValue: f.DefaultValue,
		SortOrder:    f.SortOrder,
		Constraints:  f.Constraints,
	}
}

// HasOption reports whether value is one of the field's options
func (f Field) HasOption(value string) bool {
	for _, o := range f.Options {
		if o == value {
			return true
		}
	}
	return false
}

// Values maps field ids to metadata values
type Values map[string]interface{}
