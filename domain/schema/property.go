package schema

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// PropertyType is the declared type of a property.
type PropertyType string

const (
	TypeString   PropertyType = "string"
	TypeInteger  PropertyType = "integer"
	TypeFloat    PropertyType = "float"
	TypeBoolean  PropertyType = "boolean"
	TypeDateTime PropertyType = "datetime"
	TypeList     PropertyType = "list"
	TypeMap      PropertyType = "map"
)

// Valid reports whether t is one of the known property types.
func (t PropertyType) Valid() bool {
	switch t {
	case TypeString, TypeInteger, TypeFloat, TypeBoolean, TypeDateTime, TypeList, TypeMap:
		return true
	}
	return false
}

// PropertyDefinition declares one property of an entity or edge type.
type PropertyDefinition struct {
	Name     string       `json:"name" yaml:"name"`
	Type     PropertyType `json:"type" yaml:"type"`
	Required bool         `json:"required,omitempty" yaml:"required,omitempty"`
}

// TypeMismatch records a present value whose kind does not match its declaration.
type TypeMismatch struct {
	Name     string       `json:"name"`
	Expected PropertyType `json:"expected"`
	Actual   ValueKind    `json:"actual"`
}

// PropertyErrors collects every property-level failure for one payload.
type PropertyErrors struct {
	Missing      []string       `json:"missing,omitempty"`
	TypeMismatch []TypeMismatch `json:"type_mismatch,omitempty"`
	Unexpected   []string       `json:"unexpected,omitempty"`
}

// Empty reports whether no failures were recorded.
func (e *PropertyErrors) Empty() bool {
	return e == nil || (len(e.Missing) == 0 && len(e.TypeMismatch) == 0 && len(e.Unexpected) == 0)
}

func (e *PropertyErrors) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing required: "+strings.Join(e.Missing, ", "))
	}
	for _, m := range e.TypeMismatch {
		parts = append(parts, fmt.Sprintf("%s: expected %s, got %s", m.Name, m.Expected, m.Actual))
	}
	if len(e.Unexpected) > 0 {
		parts = append(parts, "unexpected: "+strings.Join(e.Unexpected, ", "))
	}
	return strings.Join(parts, "; ")
}

// Details renders the errors for the apperror details map.
func (e *PropertyErrors) Details() map[string]any {
	d := map[string]any{}
	if len(e.Missing) > 0 {
		d["missing"] = e.Missing
	}
	if len(e.TypeMismatch) > 0 {
		d["type_mismatch"] = e.TypeMismatch
	}
	if len(e.Unexpected) > 0 {
		d["unexpected"] = e.Unexpected
	}
	return d
}

// Validator checks property bags against property definitions.
//
// Unknown keys are accepted unless Strict says otherwise, so older schemas
// keep working with newer clients.
type Validator struct {
	// Strict, when set, reports undeclared keys as Unexpected.
	Strict bool
}

// Validate checks props against defs. It returns nil when props are valid.
// Datetime properties given as RFC3339 strings are rewritten in props to
// DateTime values.
func (v Validator) Validate(props Properties, defs []PropertyDefinition) *PropertyErrors {
	errs := &PropertyErrors{}
	declared := make(map[string]bool, len(defs))

	for _, def := range defs {
		declared[def.Name] = true

		val, present := props[def.Name]
		if !present || val.IsNull() {
			if def.Required {
				errs.Missing = append(errs.Missing, def.Name)
			}
			continue
		}

		normalized, ok := conform(val, def.Type)
		if !ok {
			errs.TypeMismatch = append(errs.TypeMismatch, TypeMismatch{
				Name:     def.Name,
				Expected: def.Type,
				Actual:   val.Kind(),
			})
			continue
		}
		if props != nil {
			props[def.Name] = normalized
		}
	}

	if v.Strict {
		for key := range props {
			if !declared[key] {
				errs.Unexpected = append(errs.Unexpected, key)
			}
		}
		sort.Strings(errs.Unexpected)
	}

	if errs.Empty() {
		return nil
	}
	return errs
}

// conform checks val against t and returns the stored form of the value.
func conform(val Value, t PropertyType) (Value, bool) {
	switch t {
	case TypeString:
		return val, val.Kind() == KindString
	case TypeInteger:
		return val, val.Kind() == KindInt
	case TypeFloat:
		f, ok := val.Float()
		if !ok {
			return val, false
		}
		return Float(f), true
	case TypeBoolean:
		return val, val.Kind() == KindBool
	case TypeDateTime:
		switch val.Kind() {
		case KindDateTime:
			return val, true
		case KindString:
			s, _ := val.Str()
			ts, err := time.Parse(time.RFC3339Nano, s)
			if err != nil {
				return val, false
			}
			return DateTime(ts), true
		}
		return val, false
	case TypeList:
		return val, val.Kind() == KindList
	case TypeMap:
		return val, val.Kind() == KindMap
	}
	return val, false
}
