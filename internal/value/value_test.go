package value

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestCloneIsDeep(t *testing.T) {
	orig := Object{
		"name":   String("Doe"),
		"nested": Object{"city": String("Oslo")},
		"list":   Array{Object{"id": Int(1)}},
	}

	cp := orig.Clone()
	cp["nested"].(Object)["city"] = String("Bergen")
	cp["list"].(Array)[0].(Object)["id"] = Int(2)
	cp["name"] = String("changed")

	assert.Equal(t, String("Doe"), orig["name"])
	assert.Equal(t, String("Oslo"), orig["nested"].(Object)["city"])
	assert.Equal(t, Int(1), orig["list"].(Array)[0].(Object)["id"])
}

func TestCloneNilObject(t *testing.T) {
	var obj Object
	cp := obj.Clone()
	require.NotNil(t, cp)
	assert.Empty(t, cp)
}

func TestEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b Value
		want bool
	}{
		{"same string", String("a"), String("a"), true},
		{"string vs int", String("1"), Int(1), false},
		{"null", Null{}, Null{}, true},
		{"missing vs null", nil, Null{}, false},
		{"missing", nil, nil, true},
		{"arrays", Array{Int(1), Int(2)}, Array{Int(1), Int(2)}, true},
		{"array order", Array{Int(1), Int(2)}, Array{Int(2), Int(1)}, false},
		{"objects", Object{"a": Int(1)}, Object{"a": Int(1)}, true},
		{"object extra key", Object{"a": Int(1)}, Object{"a": Int(1), "b": Int(2)}, false},
		{"nested", Object{"a": Array{Object{"x": Bool(true)}}}, Object{"a": Array{Object{"x": Bool(true)}}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Equal(tt.a, tt.b))
		})
	}
}

func TestNFC(t *testing.T) {
	orig := Object{
		"Jose\u0301": Array{String("Zoe\u0308"), Int(1)},
		"plain":      Object{"k": String("caf\u0065\u0301")},
	}

	got := orig.NFC()

	assert.Equal(t, Object{
		"Jos\u00e9": Array{String("Zo\u00eb"), Int(1)},
		"plain":     Object{"k": String("caf\u00e9")},
	}, got)
	assert.Equal(t, String("Zoe\u0308"), orig["Jose\u0301"].(Array)[0], "input must not change")
	assert.Equal(t, Object{}, Object(nil).NFC())
}

func TestParseNormalizesText(t *testing.T) {
	v, err := Parse([]byte(`{"Jose\u0301":"Zoe\u0308"}`))
	require.NoError(t, err)
	assert.Equal(t, Object{"Jos\u00e9": String("Zo\u00eb")}, v)
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "1", Normalize(Int(1)))
	assert.Equal(t, "1", Normalize(String("1")))
	assert.Equal(t, "true", Normalize(Bool(true)))
	assert.Equal(t, "null", Normalize(Null{}))
	assert.Equal(t, `{"a":1}`, Normalize(Object{"a": Int(1)}))
	assert.Equal(t, "", Normalize(nil))
}

func TestIdentity(t *testing.T) {
	a, ok := Identity(Int(1))
	require.True(t, ok)
	b, ok := Identity(String("1"))
	require.True(t, ok)
	assert.Equal(t, a, b)

	_, ok = Identity(nil)
	assert.False(t, ok)
	_, ok = Identity(Object{"k": Int(1)})
	assert.False(t, ok)
	_, ok = Identity(Array{})
	assert.False(t, ok)
}

func TestParseRejectsFloats(t *testing.T) {
	tests := []string{`3.14`, `1e10`, `{"value": 1.5}`, `[1, 2.0, 3]`}

	for _, input := range tests {
		t.Run(input, func(t *testing.T) {
			_, err := Parse([]byte(input))
			require.Error(t, err)
		})
	}
}

func TestParseTrailingData(t *testing.T) {
	_, err := Parse([]byte(`{"a":1} {"b":2}`))
	require.Error(t, err)
}

func TestObjectJSONRoundTrip(t *testing.T) {
	obj := Object{
		"present": String("value"),
		"missing": Null{},
		"count":   Int(7),
		"tags":    Array{String("a"), Null{}},
	}

	data, err := json.Marshal(obj)
	require.NoError(t, err)

	var decoded Object
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.True(t, Equal(obj, decoded), "decoded %v", decoded)

	_, isNull := decoded["missing"].(Null)
	assert.True(t, isNull, "expected Null, got %T", decoded["missing"])
}

func TestFromGoYAML(t *testing.T) {
	var raw map[string]any
	require.NoError(t, yaml.Unmarshal([]byte("name: Doe\nage: 40\nphones:\n  - id: 1\n    n: \"2222\"\n"), &raw))

	obj, err := ObjectFromGo(raw)
	require.NoError(t, err)
	assert.Equal(t, String("Doe"), obj["name"])
	assert.Equal(t, Int(40), obj["age"])
	assert.Equal(t, Array{Object{"id": Int(1), "n": String("2222")}}, obj["phones"])
}

func TestFromGoRejectsFloatFromYAML(t *testing.T) {
	var raw map[string]any
	require.NoError(t, yaml.Unmarshal([]byte("price: 1.5\n"), &raw))

	_, err := ObjectFromGo(raw)
	require.ErrorIs(t, err, ErrFloat)
}

func TestToGoRoundTrip(t *testing.T) {
	obj := Object{"a": Array{Int(1), Bool(false), Null{}}, "b": Object{"c": String("d")}}
	back, err := FromGo(ToGo(obj))
	require.NoError(t, err)
	assert.True(t, Equal(obj, back))
}

func TestCompareKeysRFC8785(t *testing.T) {
	assert.Less(t, compareKeysRFC8785("a", "b"), 0)
	assert.Greater(t, compareKeysRFC8785("aa", "a"), 0)
	assert.Equal(t, 0, compareKeysRFC8785("", ""))
	assert.Less(t, compareKeysRFC8785("A", "a"), 0)
}

func TestSortedKeys(t *testing.T) {
	obj := NewObject(P("zebra", Int(1)), P("alpha", Int(2)), P("beta", Int(3)))
	assert.Equal(t, []string{"alpha", "beta", "zebra"}, obj.SortedKeys())
}
