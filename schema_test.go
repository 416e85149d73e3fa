package jsnorm_test

import (
	"encoding/json"
	"testing"

	jsnorm "github.com/reoring/jsnorm"
)

func TestParsePropertySchema_Keywords(t *testing.T) {
	ps := jsnorm.ParsePropertySchema(map[string]any{
		"type":     "array",
		"readOnly": true,
		"default":  nil,
		"items": []any{
			map[string]any{"type": "string"},
			"bogus",
		},
		"additionalItems": true,
	})
	if ps.Type != "array" || !ps.ReadOnly || !ps.HasDefault || ps.Default != nil {
		t.Fatalf("unexpected scalar keywords: %+v", ps)
	}
	if !ps.IsTuple() || len(ps.TupleItems) != 2 || ps.TupleItems[0].Type != "string" {
		t.Fatalf("unexpected tuple items: %+v", ps.TupleItems)
	}
	if ps.AdditionalItems != nil {
		t.Fatalf("boolean additionalItems should be ignored")
	}
}

func TestParsePropertySchema_MalformedKeywordsAreAbsent(t *testing.T) {
	ps := jsnorm.ParsePropertySchema(map[string]any{
		"type":       7,
		"readOnly":   "yes",
		"properties": []any{},
		"items":      "x",
	})
	if ps.Type != "" || ps.ReadOnly || ps.Properties != nil || ps.Items != nil || ps.TupleItems != nil || ps.HasDefault {
		t.Fatalf("malformed keywords should be dropped: %+v", ps)
	}
}

func TestPropertyMap_UnmarshalJSON(t *testing.T) {
	var pm jsnorm.PropertyMap
	data := []byte(`{"a":{"type":"object","properties":{"b":{"default":1}}},"c":"junk"}`)
	if err := json.Unmarshal(data, &pm); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b := pm["a"].Properties["b"]
	if !b.HasDefault || b.Default != json.Number("1") {
		t.Fatalf("unexpected nested default: %+v", b)
	}
	if pm["c"] == nil {
		t.Fatalf("non-object entries should become empty schemas")
	}
}

func TestParsePropertyMapJSON_Invalid(t *testing.T) {
	for _, in := range []string{`[1]`, `{"a":`, `"x"`} {
		_, err := jsnorm.ParsePropertyMapJSON([]byte(in))
		if !jsnorm.HasCode(err, jsnorm.CodeInvalidSchema) {
			t.Fatalf("%s: expected invalid_schema, got %v", in, err)
		}
	}
}
