package schema

import (
	"github.com/google/jsonschema-go/jsonschema"
)

const draft2020 = "https://json-schema.org/draft/2020-12/schema"

// JSONSchemaExport holds one JSON Schema document per declared type.
type JSONSchemaExport struct {
	WorkspaceID string                        `json:"workspace_id"`
	Version     int                           `json:"version"`
	Entities    map[string]*jsonschema.Schema `json:"entities"`
	Edges       map[string]*jsonschema.Schema `json:"edges"`
}

// JSONSchema renders the property contract of every type so clients can
// validate payloads before sending them. Strict types disallow additional
// properties.
func (d *Definition) JSONSchema(strict StrictPolicy) *JSONSchemaExport {
	out := &JSONSchemaExport{
		WorkspaceID: d.WorkspaceID,
		Version:     d.Version,
		Entities:    make(map[string]*jsonschema.Schema, len(d.EntityTypes)),
		Edges:       make(map[string]*jsonschema.Schema, len(d.EdgeTypes)),
	}
	for _, et := range d.EntityTypes {
		out.Entities[et.Name] = objectSchema(et.Name, et.Description, et.Properties,
			strict != nil && strict(EntityKind, et.Name))
	}
	for _, et := range d.EdgeTypes {
		out.Edges[et.Name] = objectSchema(et.Name, et.Description, et.Properties,
			strict != nil && strict(EdgeKind, et.Name))
	}
	return out
}

func objectSchema(title, description string, defs []PropertyDefinition, strict bool) *jsonschema.Schema {
	s := &jsonschema.Schema{
		Schema:      draft2020,
		Title:       title,
		Description: description,
		Type:        "object",
		Properties:  make(map[string]*jsonschema.Schema, len(defs)),
	}
	for _, def := range defs {
		s.Properties[def.Name] = propertySchema(def.Type)
		if def.Required {
			s.Required = append(s.Required, def.Name)
		}
	}
	if strict {
		// {Not: {}} is the library's representation of the false schema.
		s.AdditionalProperties = &jsonschema.Schema{Not: &jsonschema.Schema{}}
	}
	return s
}

func propertySchema(t PropertyType) *jsonschema.Schema {
	switch t {
	case TypeString:
		return &jsonschema.Schema{Type: "string"}
	case TypeInteger:
		return &jsonschema.Schema{Type: "integer"}
	case TypeFloat:
		return &jsonschema.Schema{Type: "number"}
	case TypeBoolean:
		return &jsonschema.Schema{Type: "boolean"}
	case TypeDateTime:
		return &jsonschema.Schema{Type: "string", Format: "date-time"}
	case TypeList:
		return &jsonschema.Schema{Type: "array"}
	case TypeMap:
		return &jsonschema.Schema{Type: "object"}
	}
	return &jsonschema.Schema{}
}
