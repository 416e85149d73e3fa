// Package repository stores schema documents by collection name and hands out
// compiled normalization plans for them.
package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	jsnorm "github.com/reoring/jsnorm"
	"github.com/reoring/jsnorm/schemadoc"
)

var (
	// ErrNotFound reports that no schema is registered for a collection.
	ErrNotFound = errors.New("repository: schema not found")
	// ErrNoCollection rejects documents without a collection name.
	ErrNoCollection = errors.New("repository: document has no collection name")
	// ErrReadOnly is returned by write calls on a repository that cannot store documents.
	ErrReadOnly = errors.New("repository: read-only")
	// ErrInvalidCollection rejects names that are not a single safe path segment.
	ErrInvalidCollection = errors.New("repository: invalid collection name")
)

// ValidateCollection checks that name can serve as a file name, a key suffix
// and one URL path segment.
func ValidateCollection(name string) error {
	if name == "" {
		return ErrNoCollection
	}
	if strings.HasPrefix(name, ".") || strings.Contains(name, "..") || strings.ContainsAny(name, "/\\\x00") {
		return fmt.Errorf("%w: %q", ErrInvalidCollection, name)
	}
	return nil
}

// Entry is a stored document together with its compiled plan.
type Entry struct {
	Document schemadoc.Document
	Plan     *jsnorm.Plan
}

// NewEntry compiles doc.
func NewEntry(doc schemadoc.Document) *Entry {
	return &Entry{Document: doc, Plan: jsnorm.Compile(doc.Properties)}
}

// Repository looks up schemas by collection name.
type Repository interface {
	Find(ctx context.Context, collection string) (*Entry, error)
}

// Writer manages stored schema documents.
type Writer interface {
	Put(ctx context.Context, doc schemadoc.Document) error
	Delete(ctx context.Context, collection string) error
	List(ctx context.Context) ([]string, error)
}

// Store is a Repository that also accepts writes.
type Store interface {
	Repository
	Writer
}
