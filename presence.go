package jsnorm

import "strings"

// Presence is the bit flag collected by the WithMeta APIs.
type Presence uint8

const (
	PresenceSeen             Presence = 1 << iota // Key appeared in the input.
	PresenceWasNull                               // Input value was null.
	PresenceDefaultApplied                        // Schema default was injected.
	PresenceReadOnlyStripped                      // Caller value was discarded (readOnly).
	PresenceSynthesized                           // Absent nested object was built from {} to surface defaults.
)

// PresenceMap maps JSON Pointers to Presence flags.
type PresenceMap map[string]Presence

// Has reports whether every bit of want is set at path.
func (pm PresenceMap) Has(path string, want Presence) bool {
	return pm[path]&want == want
}

// Paths returns the pointers carrying any bit of want.
func (pm PresenceMap) Paths(want Presence) []string {
	var out []string
	for p, v := range pm {
		if v&want != 0 {
			out = append(out, p)
		}
	}
	return out
}

// Normalized carries the normalized document along with presence metadata.
type Normalized struct {
	Value    map[string]any
	Presence PresenceMap
}

func applyPresenceOptions(pm PresenceMap, popt PresenceOpt) PresenceMap {
	if pm == nil || !popt.Collect {
		return nil
	}
	if len(popt.Include) == 0 && len(popt.Exclude) == 0 {
		return pm
	}

	shouldInclude := func(path string) bool {
		if len(popt.Include) > 0 {
			ok := false
			for _, p := range popt.Include {
				if strings.HasPrefix(path, p) {
					ok = true
					break
				}
			}
			if !ok {
				return false
			}
		}
		for _, p := range popt.Exclude {
			if strings.HasPrefix(path, p) {
				return false
			}
		}
		return true
	}

	filtered := make(PresenceMap, len(pm))
	for k, v := range pm {
		if shouldInclude(k) {
			filtered[k] = v
		}
	}
	return filtered
}
