package models

// ApplyOverride returns the effective field for a groupfolder: every attribute set in
// the patch replaces the base attribute, everything else is inherited. ID, type, scope
// and ownership are never patched. The base field is not modified.
func ApplyOverride(base Field, patch *OverridePatch) Field {
	effective := base
	effective.Options = append([]string(nil), base.Options...)
	effective.Constraints = copyConstraints(base.Constraints)

	if patch == nil {
		return effective
	}

	if patch.Name != nil {
		effective.Name = *patch.Name
	}
	if patch.Description != nil {
		effective.Description = *patch.Description
	}
	if patch.Options != nil {
		effective.Options = append([]string(nil), patch.Options...)
	}
	if patch.Required != nil {
		effective.Required = *patch.Required
	}
	if patch.DefaultValue != nil {
		effective.DefaultValue = *patch.DefaultValue
	}
	if patch.SortOrder != nil {
		effective.SortOrder = *patch.SortOrder
	}
	if patch.Min != nil {
		v := *patch.Min
		effective.Constraints.Min = &v
	}
	if patch.Max != nil {
		v := *patch.Max
		effective.Constraints.Max = &v
	}
	if patch.MaxLength != nil {
		v := *patch.MaxLength
		effective.Constraints.MaxLength = &v
	}
	if patch.Pattern != nil {
		effective.Constraints.Pattern = *patch.Pattern
	}

	return effective
}

func copyConstraints(c Constraints) Constraints {
	out := Constraints{Pattern: c.Pattern}
	if c.Min != nil {
		v := *c.Min
		out.Min = &v
	}
	if c.Max != nil {
		v := *c.Max
		out.Max = &v
	}
	if c.MaxLength != nil {
		v := *c.MaxLength
		out.MaxLength = &v
	}
	return out
}
