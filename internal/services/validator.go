package services

import (
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"groupfolderMetadata/internal/models"
)

const (
	maxNameLength   = 255
	maxOptionLength = 255
	maxOptions      = 200
	dateLayout      = "2006-01-02"
)

var fieldIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// Validator collects validation errors keyed by the offending field
type Validator struct {
	errors []string
	fields map[string]string
}

// NewValidator creates a new validator instance
func NewValidator() *Validator {
	return &Validator{
		errors: make([]string, 0),
		fields: make(map[string]string),
	}
}

// AddError adds a validation error for field. Only the first error per field is kept.
func (v *Validator) AddError(field, message string) {
	v.errors = append(v.errors, fmt.Sprintf("%s %s", field, message))
	if _, exists := v.fields[field]; !exists {
		v.fields[field] = message
	}
}

// HasErrors returns true if there are validation errors
func (v *Validator) HasErrors() bool {
	return len(v.errors) > 0
}

// Errors returns all validation errors
func (v *Validator) Errors() []string {
	return v.errors
}

// ErrorString returns all errors as a single string
func (v *Validator) ErrorString() string {
	return strings.Join(v.errors, "; ")
}

// Err returns a validation error carrying every collected message, or nil
func (v *Validator) Err(message string) error {
	if !v.HasErrors() {
		return nil
	}
	return ValidationFailed(message, v.fields)
}

// ValidateRequired checks if a string is not empty
func (v *Validator) ValidateRequired(value, field string) *Validator {
	if strings.TrimSpace(value) == "" {
		v.AddError(field, "is required")
	}
	return v
}

// ValidateLength checks string length constraints
func (v *Validator) ValidateLength(value, field string, min, max int) *Validator {
	length := utf8.RuneCountInString(value)
	if length < min {
		v.AddError(field, fmt.Sprintf("must be at least %d characters long", min))
	}
	if max > 0 && length > max {
		v.AddError(field, fmt.Sprintf("must be no more than %d characters long", max))
	}
	return v
}

// ValidateMaxLength rejects values longer than max characters. Unlike ValidateLength a max of 0
// is a real limit: only the empty value passes.
func (v *Validator) ValidateMaxLength(value, field string, max int) *Validator {
	if utf8.RuneCountInString(value) > max {
		v.AddError(field, fmt.Sprintf("must be no more than %d characters long", max))
	}
	return v
}

// ValidateSafeText rejects control characters other than newlines and tabs
func (v *Validator) ValidateSafeText(value, field string) *Validator {
	for _, r := range value {
		if unicode.IsControl(r) && r != '\n' && r != '\r' && r != '\t' {
			v.AddError(field, "contains invalid characters")
			break
		}
	}
	return v
}

// ValidateFieldID validates an explicitly supplied field id
func (v *Validator) ValidateFieldID(id, field string) *Validator {
	if id == "" {
		return v
	}
	if !fieldIDPattern.MatchString(id) {
		v.AddError(field, "must be 1-64 letters, numbers, hyphens or underscores")
	}
	return v
}

// ValidateOptions checks the option list of a field of type t
func (v *Validator) ValidateOptions(options []string, t models.FieldType, field string) *Validator {
	if !t.HasOptions() {
		if len(options) > 0 {
			v.AddError(field, "are only allowed for select and multiselect fields")
		}
		return v
	}
	if len(options) == 0 {
		v.AddError(field, "must contain at least one option")
		return v
	}
	if len(options) > maxOptions {
		v.AddError(field, fmt.Sprintf("cannot have more than %d items", maxOptions))
		return v
	}
	seen := make(map[string]bool, len(options))
	for i, o := range options {
		if strings.TrimSpace(o) == "" {
			v.AddError(field, fmt.Sprintf("[%d] must not be empty", i))
			return v
		}
		if utf8.RuneCountInString(o) > maxOptionLength {
			v.AddError(field, fmt.Sprintf("[%d] is too long", i))
			return v
		}
		if seen[o] {
			v.AddError(field, fmt.Sprintf("contain duplicate option %q", o))
			return v
		}
		seen[o] = true
	}
	return v
}

// ValidateConstraints checks that the constraints make sense for type t
func (v *Validator) ValidateConstraints(c models.Constraints, t models.FieldType) *Validator {
	if (c.Min != nil || c.Max != nil) && t != models.FieldTypeNumber {
		v.AddError("constraints", "min and max are only allowed for number fields")
	}
	if c.Min != nil && c.Max != nil && *c.Min > *c.Max {
		v.AddError("constraints", "min must not be greater than max")
	}
	if c.MaxLength != nil {
		if t != models.FieldTypeText && t != models.FieldTypeTextarea {
			v.AddError("constraints", "max_length is only allowed for text fields")
		} else if *c.MaxLength < 0 {
			v.AddError("constraints", "max_length must not be negative")
		}
	}
	if c.Pattern != "" {
		if t != models.FieldTypeText {
			v.AddError("constraints", "pattern is only allowed for text fields")
		} else if _, err := regexp.Compile(c.Pattern); err != nil {
			v.AddError("constraints", "pattern is not a valid regular expression")
		}
	}
	return v
}

// ValidateDefinition normalizes and checks a field definition before it is stored
func ValidateDefinition(def *models.FieldDefinition) error {
	def.Name = strings.TrimSpace(def.Name)
	def.ID = strings.TrimSpace(def.ID)

	v := NewValidator()
	v.ValidateFieldID(def.ID, "id")
	v.ValidateRequired(def.Name, "name")
	v.ValidateLength(def.Name, "name", 0, maxNameLength)
	v.ValidateSafeText(def.Name, "name")
	if !def.Type.IsValid() {
		v.AddError("type", fmt.Sprintf("%q is not a recognized field type", def.Type))
	} else {
		v.ValidateOptions(def.Options, def.Type, "options")
		v.ValidateConstraints(def.Constraints, def.Type)
	}
	if v.HasErrors() {
		return v.Err("invalid field definition")
	}

	if def.DefaultValue != "" {
		field := models.Field{Type: def.Type, Options: def.Options, Constraints: def.Constraints}
		stored, _, err := NormalizeValue(field, def.DefaultValue)
		if err != nil {
			v.AddError("default_value", err.Error())
			return v.Err("invalid field definition")
		}
		def.DefaultValue = stored
	}
	return nil
}

// ValidateEffective checks a field after an override has been applied to it
func ValidateEffective(field models.Field) error {
	def := field.Definition()
	def.ID = ""
	if err := ValidateDefinition(&def); err != nil {
		return err
	}
	return nil
}

// NormalizeValue validates raw against field and returns its canonical stored form.
// clear is true when raw is null or empty, meaning the stored value should be removed.
func NormalizeValue(field models.Field, raw interface{}) (stored string, clear bool, err error) {
	if isEmptyValue(raw) {
		if field.Required {
			return "", true, fmt.Errorf("is required")
		}
		return "", true, nil
	}

	switch field.Type {
	case models.FieldTypeText, models.FieldTypeTextarea:
		s, ok := raw.(string)
		if !ok {
			return "", false, fmt.Errorf("must be a string")
		}
		v := NewValidator()
		v.ValidateSafeText(s, "value")
		if field.Constraints.MaxLength != nil {
			v.ValidateMaxLength(s, "value", *field.Constraints.MaxLength)
		}
		if v.HasErrors() {
			return "", false, fmt.Errorf("%s", v.fields["value"])
		}
		if field.Type == models.FieldTypeText && field.Constraints.Pattern != "" {
			re, reErr := regexp.Compile(field.Constraints.Pattern)
			if reErr != nil || !re.MatchString(s) {
				return "", false, fmt.Errorf("does not match the required pattern")
			}
		}
		return s, false, nil

	case models.FieldTypeNumber:
		n, ok := toFloat(raw)
		if !ok {
			return "", false, fmt.Errorf("must be a number")
		}
		if field.Constraints.Min != nil && n < *field.Constraints.Min {
			return "", false, fmt.Errorf("must be at least %s", formatNumber(*field.Constraints.Min))
		}
		if field.Constraints.Max != nil && n > *field.Constraints.Max {
			return "", false, fmt.Errorf("must be no more than %s", formatNumber(*field.Constraints.Max))
		}
		return formatNumber(n), false, nil

	case models.FieldTypeDate:
		s, ok := raw.(string)
		if !ok {
			return "", false, fmt.Errorf("must be a date in YYYY-MM-DD format")
		}
		if _, err := time.Parse(dateLayout, s); err != nil {
			return "", false, fmt.Errorf("must be a date in YYYY-MM-DD format")
		}
		return s, false, nil

	case models.FieldTypeCheckbox:
		b, ok := toBool(raw)
		if !ok {
			return "", false, fmt.Errorf("must be true or false")
		}
		if b {
			return "1", false, nil
		}
		return "0", false, nil

	case models.FieldTypeSelect:
		s, ok := raw.(string)
		if !ok || !field.HasOption(s) {
			return "", false, fmt.Errorf("must be one of the field's options")
		}
		return s, false, nil

	case models.FieldTypeMultiselect:
		items, ok := toStrings(raw)
		if !ok {
			return "", false, fmt.Errorf("must be a list of options")
		}
		if len(items) == 0 {
			if field.Required {
				return "", true, fmt.Errorf("is required")
			}
			return "", true, nil
		}
		seen := make(map[string]bool, len(items))
		picked := make([]string, 0, len(items))
		for _, item := range items {
			if !field.HasOption(item) {
				return "", false, fmt.Errorf("contains %q which is not one of the field's options", item)
			}
			if !seen[item] {
				seen[item] = true
				picked = append(picked, item)
			}
		}
		encoded, _ := json.Marshal(picked)
		return string(encoded), false, nil

	case models.FieldTypeURL:
		s, ok := raw.(string)
		if !ok {
			return "", false, fmt.Errorf("must be a URL")
		}
		u, parseErr := url.Parse(s)
		if parseErr != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return "", false, fmt.Errorf("must be an absolute http or https URL")
		}
		return s, false, nil
	}

	return "", false, fmt.Errorf("has unsupported type %q", field.Type)
}

// DecodeValue turns a stored value back into its typed form for responses
func DecodeValue(field models.Field, stored string) interface{} {
	switch field.Type {
	case models.FieldTypeNumber:
		if n, err := strconv.ParseFloat(stored, 64); err == nil {
			return n
		}
	case models.FieldTypeCheckbox:
		return stored == "1"
	case models.FieldTypeMultiselect:
		var items []string
		if err := json.Unmarshal([]byte(stored), &items); err == nil {
			return items
		}
	}
	return stored
}

// SearchText renders a stored value as plain text for the search index
func SearchText(field models.Field, stored string) string {
	switch field.Type {
	case models.FieldTypeCheckbox:
		if stored == "1" {
			return "yes"
		}
		return "no"
	case models.FieldTypeMultiselect:
		var items []string
		if err := json.Unmarshal([]byte(stored), &items); err == nil {
			return strings.Join(items, " ")
		}
	}
	return stored
}

// sortedKeys returns the keys of values in a stable order so error messages are deterministic
func sortedKeys(values models.Values) []string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func isEmptyValue(raw interface{}) bool {
	switch v := raw.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	}
	return false
}

func toFloat(raw interface{}) (float64, bool) {
	var n float64
	switch v := raw.(type) {
	case float64:
		n = v
	case float32:
		n = float64(v)
	case int:
		n = float64(v)
	case int64:
		n = float64(v)
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, false
		}
		n = f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		n = f
	default:
		return 0, false
	}
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false
	}
	return n, true
}

func toBool(raw interface{}) (bool, bool) {
	switch v := raw.(type) {
	case bool:
		return v, true
	case float64:
		if v == 0 || v == 1 {
			return v == 1, true
		}
	case int:
		if v == 0 || v == 1 {
			return v == 1, true
		}
	case json.Number:
		if s := v.String(); s == "0" || s == "1" {
			return s == "1", true
		}
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "1":
			return true, true
		case "false", "0":
			return false, true
		}
	}
	return false, false
}

func toStrings(raw interface{}) ([]string, bool) {
	switch v := raw.(type) {
	case []string:
		return v, true
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	case string:
		// stored form and default values are JSON arrays
		var out []string
		if err := json.Unmarshal([]byte(v), &out); err != nil {
			return nil, false
		}
		return out, true
	}
	return nil, false
}

func formatNumber(n float64) string {
	return strconv.FormatFloat(n, 'f', -1, 64)
}
