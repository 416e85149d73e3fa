package jsnorm

import (
	"strconv"
	"strings"

	"github.com/mohae/deepcopy"
)

// Normalize strips readOnly values and injects schema defaults into payload,
// recursing through nested objects, arrays and tuple arrays. It never fails:
// a payload that is not an object is normalized as if it were {}.
// The input is left untouched.
func Normalize(props PropertyMap, payload any) map[string]any {
	return Compile(props).Normalize(payload)
}

// NormalizeWithMeta is Normalize plus a presence map describing what happened
// to each declared key.
func NormalizeWithMeta(props PropertyMap, payload any, opt PresenceOpt) Normalized {
	return Compile(props).NormalizeWithMeta(payload, opt)
}

// Normalize applies the plan to payload.
func (p *Plan) Normalize(payload any) map[string]any {
	w := walker{}
	return w.object(p.root, payload, "")
}

// NormalizeWithMeta applies the plan and records presence flags.
func (p *Plan) NormalizeWithMeta(payload any, opt PresenceOpt) Normalized {
	w := walker{pm: PresenceMap{"": PresenceSeen}}
	out := w.object(p.root, payload, "")
	if !opt.Collect && len(opt.Include) == 0 && len(opt.Exclude) == 0 {
		opt.Collect = true
	}
	return Normalized{Value: out, Presence: applyPresenceOptions(w.pm, opt)}
}

type walker struct {
	pm PresenceMap // nil when not collecting
}

func (w *walker) mark(path string, p Presence) {
	if w.pm != nil {
		w.pm[path] |= p
	}
}

// object always returns a fresh map; a non-object v is read as {}.
func (w *walker) object(n *ObjectNode, v any, path string) map[string]any {
	in, _ := v.(map[string]any)
	out := make(map[string]any, len(in)+len(n.Fields))
	for k, val := range in {
		if _, ok := n.declared[k]; ok {
			continue
		}
		out[k] = clone(val)
	}
	for _, f := range n.Fields {
		fp := joinPointer(path, f.Name)
		val, present := in[f.Name]
		if present {
			w.mark(fp, PresenceSeen)
			if val == nil {
				w.mark(fp, PresenceWasNull)
			}
		}
		if f.ReadOnly && present {
			delete(out, f.Name)
			present = false
			w.mark(fp, PresenceReadOnlyStripped)
		}
		if !present && f.HasDefault {
			val, present = f.Default, true
			w.mark(fp, PresenceDefaultApplied)
		}
		if present {
			out[f.Name] = w.value(f.Node, val, fp)
			continue
		}
		// absent objects are synthesized so nested defaults surface; arrays are not
		if obj, ok := f.Node.(*ObjectNode); ok && !f.ReadOnly {
			if sub := w.object(obj, nil, fp); len(sub) > 0 {
				out[f.Name] = sub
				w.mark(fp, PresenceSynthesized)
			}
		}
	}
	return out
}

func (w *walker) value(n Node, v any, path string) any {
	switch t := n.(type) {
	case *ObjectNode:
		if v == nil {
			return nil
		}
		return w.object(t, v, path)
	case *ArrayNode:
		arr, ok := v.([]any)
		if !ok {
			return clone(v)
		}
		out := make([]any, len(arr))
		for i, el := range arr {
			out[i] = w.value(t.Items, el, joinPointer(path, strconv.Itoa(i)))
		}
		return out
	case *TupleNode:
		arr, ok := v.([]any)
		if !ok {
			return clone(v)
		}
		out := make([]any, len(arr))
		for i, el := range arr {
			item := t.Additional
			if i < len(t.Items) {
				item = t.Items[i]
			}
			if item == nil {
				out[i] = clone(el)
				continue
			}
			out[i] = w.value(item, el, joinPointer(path, strconv.Itoa(i)))
		}
		return out
	default:
		return clone(v)
	}
}

// clone copies containers so the output never aliases the input or a schema default.
func clone(v any) any {
	switch v.(type) {
	case map[string]any, []any:
		return deepcopy.Copy(v)
	default:
		return v
	}
}

var pointerEscaper = strings.NewReplacer("~", "~0", "/", "~1")

// joinPointer appends an RFC 6901 reference token; the root is "".
func joinPointer(base, token string) string {
	return base + "/" + pointerEscaper.Replace(token)
}
