package jsnorm

import (
	"errors"
	"fmt"
	"strings"
)

// Issue codes. Normalization itself never produces issues; these come from
// payload decoding and schema loading around it.
const (
	CodeParseError     = "parse_error"
	CodeDuplicateKey   = "duplicate_key"
	CodeTooDeep        = "too_deep"
	CodeTruncated      = "truncated"
	CodeInvalidSchema  = "invalid_schema"
	CodeSchemaNotFound = "schema_not_found"
)

// Issue represents a single decode or schema-loading problem.
type Issue struct {
	Path    string // JSON Pointer (for example: /medias/2/path).
	Code    string
	Message string
	Offset  int64 // Byte offset in the input (-1 when unknown).
	Cause   error
}

// Issues is a collection of issues that implements error.
type Issues []Issue

// Error summarizes the first few issues.
func (iss Issues) Error() string {
	if len(iss) == 0 {
		return ""
	}
	const maxShown = 3
	b := &strings.Builder{}
	lim := min(len(iss), maxShown)
	for i := 0; i < lim; i++ {
		if i > 0 {
			b.WriteString("; ")
		}
		fmt.Fprintf(b, "%s at %s", iss[i].Code, iss[i].Path)
	}
	if len(iss) > lim {
		fmt.Fprintf(b, "; ... (total %d)", len(iss))
	}
	return b.String()
}

// Unwrap exposes the issue causes to errors.Is / errors.As.
func (iss Issues) Unwrap() []error {
	var errs []error
	for _, it := range iss {
		if it.Cause != nil {
			errs = append(errs, it.Cause)
		}
	}
	return errs
}

// AppendIssues appends issues to the destination, initializing the slice when
// needed.
func AppendIssues(dst Issues, more ...Issue) Issues {
	if dst == nil {
		dst = Issues{}
	}
	return append(dst, more...)
}

// AsIssues extracts Issues from an error using errors.As internally.
func AsIssues(err error) (Issues, bool) {
	if err == nil {
		return nil, false
	}
	var iss Issues
	if errors.As(err, &iss) {
		return iss, true
	}
	return nil, false
}

// HasCode reports whether err carries an issue with the given code.
func HasCode(err error, code string) bool {
	iss, ok := AsIssues(err)
	if !ok {
		return false
	}
	for _, it := range iss {
		if it.Code == code {
			return true
		}
	}
	return false
}

func singleIssue(code, msg string) Issues {
	return AppendIssues(nil, Issue{Path: "/", Code: code, Message: msg, Offset: -1})
}
