package schemadoc

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// ImportYAML imports every mapping document of a multi-document YAML stream.
// Non-mapping documents are skipped with a warning.
func ImportYAML(data []byte, opts Options) ([]Document, Diag, error) {
	d := &simpleDiag{}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	var docs []Document
	for i := 0; ; i++ {
		var node any
		if err := dec.Decode(&node); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, d, fmt.Errorf("schemadoc: yaml document %d: %w", i, err)
		}
		m := yamlAnyToStringMap(node)
		if m == nil {
			if node != nil {
				d.warnf("yaml document %d is not a mapping (skipped)", i)
			}
			continue
		}
		doc, dd, err := Import(m, opts)
		if sd, ok := dd.(*simpleDiag); ok {
			d.merge(sd)
		}
		if err != nil {
			return nil, d, fmt.Errorf("schemadoc: yaml document %d: %w", i, err)
		}
		docs = append(docs, doc)
	}
	return docs, d, nil
}

// yamlAnyToStringMap converts YAML-decoded values (which may contain map[any]any)
// into JSON-like map[string]any recursively. Non-map roots return nil.
func yamlAnyToStringMap(v any) map[string]any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, vv := range t {
			out[k] = yamlNormalizeValue(vv)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, vv := range t {
			out[fmt.Sprint(k)] = yamlNormalizeValue(vv)
		}
		return out
	default:
		return nil
	}
}

func yamlNormalizeValue(v any) any {
	switch t := v.(type) {
	case map[string]any, map[any]any:
		return yamlAnyToStringMap(t)
	case []any:
		arr := make([]any, len(t))
		for i := range t {
			arr[i] = yamlNormalizeValue(t[i])
		}
		return arr
	default:
		return v
	}
}
