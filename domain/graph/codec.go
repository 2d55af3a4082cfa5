package graph

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/emergent-company/erm/domain/policy"
	"github.com/emergent-company/erm/domain/schema"
)

// Stored node and relationship layout:
//
//	id, workspace_id, type, created_by, created_at, updated_at, deleted_at
//	properties   JSON document of kind-tagged values (lossless round trip)
//	p_<key>      native copy of every scalar property whose key is an
//	             identifier, used by property filters
const propPrefix = "p_"

type wireValue struct {
	K schema.ValueKind `json:"k"`
	V json.RawMessage  `json:"v,omitempty"`
}

func encodeValue(v schema.Value) (wireValue, error) {
	w := wireValue{K: v.Kind()}
	var payload any
	switch v.Kind() {
	case schema.KindNull:
		return w, nil
	case schema.KindDateTime:
		t, _ := v.Time()
		payload = t.Format(time.RFC3339Nano)
	case schema.KindList:
		items, _ := v.Items()
		list := make([]wireValue, len(items))
		for i, item := range items {
			enc, err := encodeValue(item)
			if err != nil {
				return w, err
			}
			list[i] = enc
		}
		payload = list
	case schema.KindMap:
		fields, _ := v.Fields()
		m := make(map[string]wireValue, len(fields))
		for k, f := range fields {
			enc, err := encodeValue(f)
			if err != nil {
				return w, err
			}
			m[k] = enc
		}
		payload = m
	default:
		payload = v.Interface()
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return w, err
	}
	w.V = raw
	return w, nil
}

func decodeValue(w wireValue) (schema.Value, error) {
	switch w.K {
	case schema.KindNull:
		return schema.Null(), nil
	case schema.KindString:
		var s string
		err := json.Unmarshal(w.V, &s)
		return schema.String(s), err
	case schema.KindInt:
		var i int64
		err := json.Unmarshal(w.V, &i)
		return schema.Int(i), err
	case schema.KindFloat:
		var f float64
		err := json.Unmarshal(w.V, &f)
		return schema.Float(f), err
	case schema.KindBool:
		var b bool
		err := json.Unmarshal(w.V, &b)
		return schema.Bool(b), err
	case schema.KindDateTime:
		var s string
		if err := json.Unmarshal(w.V, &s); err != nil {
			return schema.Value{}, err
		}
		t, err := time.Parse(time.RFC3339Nano, s)
		return schema.DateTime(t), err
	case schema.KindList:
		var list []wireValue
		if err := json.Unmarshal(w.V, &list); err != nil {
			return schema.Value{}, err
		}
		items := make([]schema.Value, len(list))
		for i, item := range list {
			v, err := decodeValue(item)
			if err != nil {
				return schema.Value{}, err
			}
			items[i] = v
		}
		return schema.List(items...), nil
	case schema.KindMap:
		var m map[string]wireValue
		if err := json.Unmarshal(w.V, &m); err != nil {
			return schema.Value{}, err
		}
		fields := make(map[string]schema.Value, len(m))
		for k, f := range m {
			v, err := decodeValue(f)
			if err != nil {
				return schema.Value{}, err
			}
			fields[k] = v
		}
		return schema.Map(fields), nil
	}
	return schema.Value{}, fmt.Errorf("unknown value kind %q", w.K)
}

func encodeProperties(props schema.Properties) (string, error) {
	out := make(map[string]wireValue, len(props))
	for k, v := range props {
		enc, err := encodeValue(v)
		if err != nil {
			return "", fmt.Errorf("encode property %s: %w", k, err)
		}
		out[k] = enc
	}
	raw, err := json.Marshal(out)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func decodeProperties(raw string) (schema.Properties, error) {
	if raw == "" {
		return schema.Properties{}, nil
	}
	var in map[string]wireValue
	if err := json.Unmarshal([]byte(raw), &in); err != nil {
		return nil, fmt.Errorf("decode properties: %w", err)
	}
	props := make(schema.Properties, len(in))
	for k, w := range in {
		v, err := decodeValue(w)
		if err != nil {
			return nil, fmt.Errorf("decode property %s: %w", k, err)
		}
		props[k] = v
	}
	return props, nil
}

// nativeScalar returns the driver-native form of scalar values.
func nativeScalar(v schema.Value) (any, bool) {
	switch v.Kind() {
	case schema.KindString, schema.KindInt, schema.KindFloat, schema.KindBool:
		return v.Interface(), true
	case schema.KindDateTime:
		t, _ := v.Time()
		return t, true
	}
	return nil, false
}

func storedRecord(id, ws, typ, createdBy string, props schema.Properties, createdAt, updatedAt time.Time, deletedAt *time.Time) (map[string]any, error) {
	blob, err := encodeProperties(props)
	if err != nil {
		return nil, err
	}
	rec := map[string]any{
		"id":           id,
		"workspace_id": ws,
		"type":         typ,
		"created_by":   createdBy,
		"created_at":   createdAt.UTC(),
		"updated_at":   updatedAt.UTC(),
		"properties":   blob,
	}
	if deletedAt != nil {
		rec["deleted_at"] = deletedAt.UTC()
	}
	for k, v := range props {
		if !policy.IsIdentifier(k) {
			continue
		}
		if native, ok := nativeScalar(v); ok {
			rec[propPrefix+k] = native
		}
	}
	return rec, nil
}

func entityNode(e *Entity) (map[string]any, error) {
	return storedRecord(e.ID, e.WorkspaceID, e.Type, e.CreatedBy, e.Properties, e.CreatedAt, e.UpdatedAt, e.DeletedAt)
}

func edgeRel(e *Edge) (map[string]any, error) {
	rec, err := storedRecord(e.ID, e.WorkspaceID, e.Type, e.CreatedBy, e.Properties, e.CreatedAt, e.UpdatedAt, e.DeletedAt)
	if err != nil {
		return nil, err
	}
	rec["source_id"] = e.SourceID
	rec["target_id"] = e.TargetID
	return rec, nil
}

func entityFromMap(m map[string]any) (*Entity, error) {
	if m == nil {
		return nil, fmt.Errorf("missing node")
	}
	props, err := decodeProperties(stringField(m, "properties"))
	if err != nil {
		return nil, err
	}
	return &Entity{
		ID:          stringField(m, "id"),
		WorkspaceID: stringField(m, "workspace_id"),
		Type:        stringField(m, "type"),
		Properties:  props,
		CreatedBy:   stringField(m, "created_by"),
		CreatedAt:   timeField(m, "created_at"),
		UpdatedAt:   timeField(m, "updated_at"),
		DeletedAt:   optionalTime(m, "deleted_at"),
	}, nil
}

func edgeFromMap(m map[string]any) (*Edge, error) {
	if m == nil {
		return nil, fmt.Errorf("missing relationship")
	}
	props, err := decodeProperties(stringField(m, "properties"))
	if err != nil {
		return nil, err
	}
	return &Edge{
		ID:          stringField(m, "id"),
		WorkspaceID: stringField(m, "workspace_id"),
		Type:        stringField(m, "type"),
		SourceID:    stringField(m, "source_id"),
		TargetID:    stringField(m, "target_id"),
		Properties:  props,
		CreatedBy:   stringField(m, "created_by"),
		CreatedAt:   timeField(m, "created_at"),
		UpdatedAt:   timeField(m, "updated_at"),
		DeletedAt:   optionalTime(m, "deleted_at"),
	}, nil
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func timeField(m map[string]any, key string) time.Time {
	if t := optionalTime(m, key); t != nil {
		return *t
	}
	return time.Time{}
}

func optionalTime(m map[string]any, key string) *time.Time {
	switch v := m[key].(type) {
	case time.Time:
		t := v.UTC()
		return &t
	case string:
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

func mapField(r map[string]any, key string) map[string]any {
	m, _ := r[key].(map[string]any)
	return m
}
