package jsnorm

import (
	"errors"

	json "github.com/goccy/go-json"

	eng "github.com/reoring/jsnorm/internal/engine"
	"github.com/reoring/jsnorm/source/gojson"
)

// PropertySchema is the subset of a JSON Schema property descriptor that
// drives normalization. Validation keywords are not represented.
type PropertySchema struct {
	Type     string
	ReadOnly bool

	// Default is only meaningful when HasDefault is set, so that a declared
	// `"default": null` can be told apart from no default at all.
	Default    any
	HasDefault bool

	// Object
	Properties PropertyMap

	// Array. Items is the homogeneous form; TupleItems the positional form.
	// AdditionalItems governs tuple positions past len(TupleItems).
	Items           *PropertySchema
	TupleItems      []*PropertySchema
	AdditionalItems *PropertySchema
}

// PropertyMap is the `properties` object of an object schema.
type PropertyMap map[string]*PropertySchema

// IsTuple reports whether items were declared positionally.
func (ps *PropertySchema) IsTuple() bool { return ps != nil && ps.TupleItems != nil }

// ParsePropertyMap converts a decoded `properties` object. Entries that are not
// objects become empty leaf schemas.
func ParsePropertyMap(raw map[string]any) PropertyMap {
	if raw == nil {
		return nil
	}
	pm := make(PropertyMap, len(raw))
	for name, v := range raw {
		m, _ := v.(map[string]any)
		pm[name] = ParsePropertySchema(m)
	}
	return pm
}

// ParsePropertySchema converts one decoded property schema. Unknown keywords
// are ignored and malformed keyword values are treated as absent.
func ParsePropertySchema(raw map[string]any) *PropertySchema {
	ps := &PropertySchema{}
	if raw == nil {
		return ps
	}
	ps.Type, _ = raw["type"].(string)
	ps.ReadOnly, _ = raw["readOnly"].(bool)
	if d, ok := raw["default"]; ok {
		ps.Default = d
		ps.HasDefault = true
	}
	if props, ok := raw["properties"].(map[string]any); ok {
		ps.Properties = ParsePropertyMap(props)
	}
	switch it := raw["items"].(type) {
	case map[string]any:
		ps.Items = ParsePropertySchema(it)
	case []any:
		ps.TupleItems = make([]*PropertySchema, 0, len(it))
		for _, e := range it {
			m, _ := e.(map[string]any)
			ps.TupleItems = append(ps.TupleItems, ParsePropertySchema(m))
		}
	}
	// boolean additionalItems carries no normalization metadata
	if ai, ok := raw["additionalItems"].(map[string]any); ok {
		ps.AdditionalItems = ParsePropertySchema(ai)
	}
	return ps
}

// UnmarshalJSON decodes a property schema document.
func (ps *PropertySchema) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := decodeJSONObject(data, &raw); err != nil {
		return err
	}
	*ps = *ParsePropertySchema(raw)
	return nil
}

// UnmarshalJSON decodes a `properties` object.
func (pm *PropertyMap) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := decodeJSONObject(data, &raw); err != nil {
		return err
	}
	*pm = ParsePropertyMap(raw)
	return nil
}

// ParsePropertyMapJSON decodes a `properties` object from JSON bytes.
func ParsePropertyMapJSON(data []byte) (PropertyMap, error) {
	var pm PropertyMap
	if err := json.Unmarshal(data, &pm); err != nil {
		return nil, singleIssue(CodeInvalidSchema, err.Error())
	}
	return pm, nil
}

var errSchemaNotObject = errors.New("schema must be a JSON object")

// decodeJSONObject shares the payload decoder so defaults carry the same number type as payloads.
func decodeJSONObject(data []byte, out *map[string]any) error {
	v, err := eng.DecodeAny(gojson.NewBytes(data), eng.JSONNumber)
	if err != nil {
		return err
	}
	m, ok := v.(map[string]any)
	if !ok {
		return errSchemaNotObject
	}
	*out = m
	return nil
}
