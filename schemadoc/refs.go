package schemadoc

import "strings"

var refPrefixes = []string{"#/$defs/", "#/definitions/"}

// extractDefs indexes the local definitions of doc. $defs wins over definitions
// when both declare the same name.
func extractDefs(doc map[string]any) map[string]any {
	defs := map[string]any{}
	if m, ok := doc["definitions"].(map[string]any); ok {
		for k, v := range m {
			defs["#/definitions/"+k] = v
			defs["#/$defs/"+k] = v
		}
	}
	if m, ok := doc["$defs"].(map[string]any); ok {
		for k, v := range m {
			defs["#/$defs/"+k] = v
			if _, ok := defs["#/definitions/"+k]; !ok {
				defs["#/definitions/"+k] = v
			}
		}
	}
	return defs
}

// resolveRefsInPlace expands local $refs reachable through properties, items
// and additionalItems.
func resolveRefsInPlace(node map[string]any, defs map[string]any, d *simpleDiag, visited map[string]bool) {
	if node == nil {
		return
	}
	if pm, ok := node["properties"].(map[string]any); ok {
		for k, raw := range pm {
			if sch, ok := raw.(map[string]any); ok {
				pm[k] = resolveOne(sch, defs, d, visited)
			}
		}
	}
	switch it := node["items"].(type) {
	case map[string]any:
		node["items"] = resolveOne(it, defs, d, visited)
	case []any:
		for i, e := range it {
			if sch, ok := e.(map[string]any); ok {
				it[i] = resolveOne(sch, defs, d, visited)
			}
		}
	}
	switch ai := node["additionalItems"].(type) {
	case map[string]any:
		node["additionalItems"] = resolveOne(ai, defs, d, visited)
	case bool:
		d.warnf("boolean additionalItems ignored")
	}
}

// resolveOne expands a single schema with a local $ref, keeping fields declared
// next to the $ref over the referenced ones.
func resolveOne(s map[string]any, defs map[string]any, d *simpleDiag, visited map[string]bool) map[string]any {
	ref, ok := s["$ref"].(string)
	if !ok {
		resolveRefsInPlace(s, defs, d, visited)
		return s
	}
	if !isLocalRef(ref) {
		d.warnf("$ref %q not supported (local $defs/definitions only)", ref)
		return s
	}
	base, ok := defs[ref].(map[string]any)
	if !ok {
		d.warnf("$ref to unknown definition %s", ref)
		return s
	}
	if visited[ref] {
		d.warnf("cyclic $ref detected at %s (left unresolved)", ref)
		return s
	}
	visited[ref] = true
	expanded := deepCopyMap(base)
	resolveRefsInPlace(expanded, defs, d, visited)
	delete(visited, ref)

	delete(s, "$ref")
	resolveRefsInPlace(s, defs, d, visited)
	for k, v := range expanded {
		if _, exists := s[k]; !exists {
			s[k] = v
		}
	}
	return s
}

func isLocalRef(ref string) bool {
	for _, p := range refPrefixes {
		if strings.HasPrefix(ref, p) {
			return true
		}
	}
	return false
}
