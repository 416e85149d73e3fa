package jsnorm

// NumberMode dictates how payload numbers are decoded.
type NumberMode int

const (
	NumberJSONNumber NumberMode = iota // Preserve json.Number (lossless).
	NumberFloat64                      // Convert to float64 (with potential precision loss).
)

// Severity expresses the severity level for decode issues.
type Severity int

const (
	Ignore Severity = iota
	Warn
	Error
)

// Strictness configures enforcement for duplicate keys.
type Strictness struct {
	OnDuplicateKey Severity
}

// PresenceOpt configures presence collection for WithMeta-style normalization.
// Include and Exclude are JSON Pointer prefixes.
type PresenceOpt struct {
	Collect bool
	Include []string
	Exclude []string
}

// ParseOpt bundles payload decoding options.
type ParseOpt struct {
	Strictness Strictness
	MaxDepth   int
	MaxBytes   int64
	NumberMode NumberMode
	Presence   PresenceOpt
	// WarnSink receives non-fatal issues (duplicate keys under Warn).
	WarnSink func(Issue)
}
