package schemadoc

import "fmt"

// DefaultDialect is the $schema stamped on stored documents that omit one.
const DefaultDialect = "http://json-schema.org/draft-07/schema#"

// Options controls import behavior for schema documents.
type Options struct {
	// ValidateDocument compiles the whole document as a JSON Schema and
	// rejects it when compilation fails.
	ValidateDocument bool
}

// Diag carries non-fatal warnings produced during import.
type Diag interface {
	HasWarnings() bool
	Warnings() []string
}

type simpleDiag struct{ ws []string }

func (d *simpleDiag) HasWarnings() bool        { return len(d.ws) > 0 }
func (d *simpleDiag) Warnings() []string       { return append([]string(nil), d.ws...) }
func (d *simpleDiag) warnf(f string, a ...any) { d.ws = append(d.ws, fmt.Sprintf(f, a...)) }

func (d *simpleDiag) merge(o *simpleDiag) { d.ws = append(d.ws, o.ws...) }
