// Package schemadoc imports stored schema documents into normalization-ready
// property maps.
package schemadoc

import (
	"context"
	"errors"
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/kaptinlin/jsonschema"
	"github.com/mohae/deepcopy"

	jsnorm "github.com/reoring/jsnorm"
)

// Document is an imported schema document bound to a collection.
type Document struct {
	CollectionName string
	ModelName      string
	Properties     jsnorm.PropertyMap
	// Raw is the document as supplied, before $ref expansion.
	Raw map[string]any
}

// ErrNilDocument is returned by Import for a nil input.
var ErrNilDocument = errors.New("schemadoc: nil document")

// Import reads a schema document. The input can be JSON bytes, a decoded
// map[string]any, or any value that marshals to a JSON object. Both plain
// object schemas and item-schema documents (collectionName, modelName,
// properties) are accepted.
func Import(doc any, opts Options) (Document, Diag, error) {
	d := &simpleDiag{}
	if doc == nil {
		return Document{}, d, ErrNilDocument
	}
	var root map[string]any
	switch t := doc.(type) {
	case []byte:
		if err := decodeObject(t, &root); err != nil {
			return Document{}, d, invalid("invalid JSON: %v", err)
		}
	case map[string]any:
		root = t
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return Document{}, d, invalid("cannot marshal input: %v", err)
		}
		if err := decodeObject(b, &root); err != nil {
			return Document{}, d, invalid("invalid marshaled JSON: %v", err)
		}
	}
	if root == nil {
		return Document{}, d, invalid("document must be a JSON object")
	}

	if opts.ValidateDocument {
		if err := compileCheck(root); err != nil {
			return Document{}, d, err
		}
	}

	if t, ok := root["type"].(string); ok && t != "object" {
		d.warnf("root type %q is not object; only properties are used", t)
	}

	work := deepCopyMap(root)
	resolveRefsInPlace(work, extractDefs(work), d, map[string]bool{})

	out := Document{Raw: root}
	out.CollectionName, _ = root["collectionName"].(string)
	out.ModelName, _ = root["modelName"].(string)
	if props, ok := work["properties"].(map[string]any); ok {
		out.Properties = jsnorm.ParsePropertyMap(props)
	} else {
		out.Properties = jsnorm.PropertyMap{}
	}
	return out, d, nil
}

// MarshalJSON encodes the raw document.
func (doc Document) MarshalJSON() ([]byte, error) {
	return json.Marshal(doc.Raw)
}

func compileCheck(root map[string]any) error {
	b, err := json.Marshal(root)
	if err != nil {
		return invalid("cannot marshal document: %v", err)
	}
	if _, err := jsonschema.NewCompiler().Compile(b); err != nil {
		return invalid("document does not compile: %v", err)
	}
	return nil
}

var strictDecode = jsnorm.ParseOpt{Strictness: jsnorm.Strictness{OnDuplicateKey: jsnorm.Error}}

func decodeObject(data []byte, out *map[string]any) error {
	v, err := jsnorm.DecodePayloadBytes(context.Background(), data, strictDecode)
	if err != nil {
		return err
	}
	*out, _ = v.(map[string]any)
	return nil
}

func deepCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	return deepcopy.Copy(m).(map[string]any)
}

func invalid(f string, a ...any) error {
	return jsnorm.Issues{{Path: "/", Code: jsnorm.CodeInvalidSchema, Message: fmt.Sprintf(f, a...), Offset: -1}}
}
