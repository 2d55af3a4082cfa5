package schema

import (
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/emergent-company/erm/domain/policy"
	"github.com/emergent-company/erm/pkg/apperror"
)

// TypeKind selects which type list a type name is looked up in.
type TypeKind string

const (
	EntityKind TypeKind = "entity"
	EdgeKind   TypeKind = "edge"
)

// EntityType declares an entity type.
type EntityType struct {
	Name        string               `json:"name" yaml:"name"`
	Description string               `json:"description,omitempty" yaml:"description,omitempty"`
	Properties  []PropertyDefinition `json:"properties" yaml:"properties"`
}

// EdgeType declares an edge type. Self loops are allowed unless NoSelfLoops is set.
type EdgeType struct {
	Name        string               `json:"name" yaml:"name"`
	Description string               `json:"description,omitempty" yaml:"description,omitempty"`
	Properties  []PropertyDefinition `json:"properties" yaml:"properties"`
	NoSelfLoops bool                 `json:"no_self_loops,omitempty" yaml:"no_self_loops,omitempty"`
}

// Definition is the versioned type contract of one workspace.
type Definition struct {
	bun.BaseModel `bun:"table:kb.workspace_schemas,alias:ws"`

	ID          string       `bun:"id,pk,type:uuid" json:"id"`
	WorkspaceID string       `bun:"workspace_id,notnull,type:uuid" json:"workspace_id"`
	EntityTypes []EntityType `bun:"entity_types,type:jsonb,notnull" json:"entity_types"`
	EdgeTypes   []EdgeType   `bun:"edge_types,type:jsonb,notnull" json:"edge_types"`
	Version     int          `bun:"version,notnull" json:"version"`
	CreatedAt   time.Time    `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt   time.Time    `bun:"updated_at,notnull,default:current_timestamp" json:"updated_at"`
}

// Input is the caller-supplied part of a schema upsert.
type Input struct {
	EntityTypes []EntityType `json:"entity_types" yaml:"entity_types"`
	EdgeTypes   []EdgeType   `json:"edge_types" yaml:"edge_types"`
}

// EntityType looks up an entity type by name.
func (d *Definition) EntityType(name string) (*EntityType, bool) {
	if d == nil {
		return nil, false
	}
	for i := range d.EntityTypes {
		if d.EntityTypes[i].Name == name {
			return &d.EntityTypes[i], true
		}
	}
	return nil, false
}

// EdgeType looks up an edge type by name.
func (d *Definition) EdgeType(name string) (*EdgeType, bool) {
	if d == nil {
		return nil, false
	}
	for i := range d.EdgeTypes {
		if d.EdgeTypes[i].Name == name {
			return &d.EdgeTypes[i], true
		}
	}
	return nil, false
}

// Validate checks the input itself before it is stored: every type and
// property name is an identifier and unique within its list, and every
// property type is known.
func (in Input) Validate() error {
	var problems []string

	seen := map[string]bool{}
	for _, et := range in.EntityTypes {
		problems = append(problems, checkTypeName("entity type", et.Name, seen)...)
		problems = append(problems, checkProperties("entity type "+et.Name, et.Properties)...)
	}

	seen = map[string]bool{}
	for _, et := range in.EdgeTypes {
		problems = append(problems, checkTypeName("edge type", et.Name, seen)...)
		problems = append(problems, checkProperties("edge type "+et.Name, et.Properties)...)
	}

	if len(problems) == 0 {
		return nil
	}
	return apperror.ErrValidation.
		WithMessage("invalid schema definition").
		WithDetails(map[string]any{"problems": problems})
}

func checkTypeName(what, name string, seen map[string]bool) []string {
	var problems []string
	if !policy.IsIdentifier(name) {
		problems = append(problems, fmt.Sprintf("%s name %q is not a valid identifier", what, name))
	}
	if seen[name] {
		problems = append(problems, fmt.Sprintf("duplicate %s %q", what, name))
	}
	seen[name] = true
	return problems
}

func checkProperties(owner string, defs []PropertyDefinition) []string {
	var problems []string
	seen := map[string]bool{}
	for _, p := range defs {
		if !policy.IsIdentifier(p.Name) {
			problems = append(problems, fmt.Sprintf("%s: property name %q is not a valid identifier", owner, p.Name))
		}
		if seen[p.Name] {
			problems = append(problems, fmt.Sprintf("%s: duplicate property %q", owner, p.Name))
		}
		seen[p.Name] = true
		if !p.Type.Valid() {
			problems = append(problems, fmt.Sprintf("%s: property %q has unknown type %q", owner, p.Name, p.Type))
		}
	}
	return problems
}

// Validate checks the stored definition's types the same way Input.Validate does.
func (d *Definition) Validate() error {
	return Input{EntityTypes: d.EntityTypes, EdgeTypes: d.EdgeTypes}.Validate()
}

// StrictPolicy decides, per type, whether undeclared property keys are
// rejected. A nil policy accepts unknown keys everywhere.
type StrictPolicy func(kind TypeKind, typeName string) bool

// StrictTypes builds a StrictPolicy from a fixed set of "kind:Type" keys,
// e.g. "entity:Person".
func StrictTypes(keys ...string) StrictPolicy {
	set := make(map[string]bool, len(keys))
	for _, k := range keys {
		set[k] = true
	}
	return func(kind TypeKind, typeName string) bool {
		return set[string(kind)+":"+typeName]
	}
}

// Checker validates payloads against a workspace schema.
type Checker struct {
	Strict StrictPolicy
}

// Check validates props for typeName of the given kind. props may be
// normalized in place (datetime strings become DateTime values).
func (c Checker) Check(def *Definition, typeName string, props Properties, kind TypeKind) error {
	var defs []PropertyDefinition
	switch kind {
	case EdgeKind:
		et, ok := def.EdgeType(typeName)
		if !ok {
			return unknownType(kind, typeName)
		}
		defs = et.Properties
	default:
		et, ok := def.EntityType(typeName)
		if !ok {
			return unknownType(kind, typeName)
		}
		defs = et.Properties
	}

	v := Validator{Strict: c.Strict != nil && c.Strict(kind, typeName)}
	if perrs := v.Validate(props, defs); perrs != nil {
		return apperror.ErrValidation.
			WithMessage(fmt.Sprintf("%s %s: %s", kind, typeName, perrs.Error())).
			WithDetails(perrs.Details())
	}
	return nil
}

// ValidateAgainstSchema validates with the permissive default policy.
func ValidateAgainstSchema(def *Definition, typeName string, props Properties, kind TypeKind) error {
	return Checker{}.Check(def, typeName, props, kind)
}

func unknownType(kind TypeKind, typeName string) error {
	return apperror.ErrUnknownType.
		WithMessage(fmt.Sprintf("unknown %s type %q", kind, typeName)).
		WithDetails(map[string]any{"kind": string(kind), "type": typeName})
}
