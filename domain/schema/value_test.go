package schema

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValue_UnmarshalJSON_Kinds(t *testing.T) {
	tests := []struct {
		raw  string
		kind ValueKind
	}{
		{`null`, KindNull},
		{`"hello"`, KindString},
		{`42`, KindInt},
		{`-7`, KindInt},
		{`4.0`, KindFloat},
		{`1e3`, KindFloat},
		{`true`, KindBool},
		{`[1, "a"]`, KindList},
		{`{"a": 1}`, KindMap},
		{`"2024-01-01T00:00:00Z"`, KindString},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			var v Value
			require.NoError(t, json.Unmarshal([]byte(tt.raw), &v))
			assert.Equal(t, tt.kind, v.Kind())
		})
	}
}

func TestValue_ZeroIsNull(t *testing.T) {
	var v Value
	assert.True(t, v.IsNull())
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	assert.JSONEq(t, `null`, string(raw))
}

func TestProperties_JSONRoundTrip(t *testing.T) {
	ts := time.Date(2024, 3, 9, 8, 7, 6, 5000, time.UTC)
	props := Properties{
		"name":    String("Ada"),
		"age":     Int(36),
		"score":   Float(9.5),
		"active":  Bool(true),
		"born":    DateTime(ts),
		"tags":    List(String("math"), String("code")),
		"address": Map(map[string]Value{"city": String("London")}),
	}

	raw, err := json.Marshal(props)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"born":"2024-03-09T08:07:06.000005Z"`)

	var back Properties
	require.NoError(t, json.Unmarshal(raw, &back))

	// datetimes travel as strings on the wire
	born, _ := back["born"].Str()
	assert.Equal(t, "2024-03-09T08:07:06.000005Z", born)
	delete(back, "born")
	delete(props, "born")
	assert.True(t, props.Equal(back), "got %v", back)
}

func TestFromAny(t *testing.T) {
	v, err := FromAny(map[string]any{"n": 1, "l": []string{"a"}, "f": float32(0.5)})
	require.NoError(t, err)
	assert.True(t, v.Equal(Map(map[string]Value{
		"n": Int(1),
		"l": List(String("a")),
		"f": Float(0.5),
	})))

	_, err = FromAny(struct{}{})
	assert.ErrorContains(t, err, "unsupported property value")

	_, err = FromAny([]any{1, complex(1, 2)})
	assert.ErrorContains(t, err, "[1]")
}

func TestProperties_Merge(t *testing.T) {
	base := Properties{"a": Int(1), "b": String("x")}
	merged := base.Merge(Properties{"b": Null(), "c": Bool(false)})

	assert.Equal(t, []string{"a", "c"}, merged.Keys())
	assert.Len(t, base, 2, "merge must not mutate the receiver")
}

func TestValue_FloatWidensIntegers(t *testing.T) {
	f, ok := Int(3).Float()
	assert.True(t, ok)
	assert.Equal(t, 3.0, f)

	_, ok = String("3").Float()
	assert.False(t, ok)
}

func TestValue_String(t *testing.T) {
	v := Map(map[string]Value{"b": List(Int(1), Null()), "a": String("x")})
	assert.Equal(t, `{a: "x", b: [1, null]}`, v.String())
}
