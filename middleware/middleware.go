// Package middleware holds the framework-independent part of the HTTP
// normalizers in middleware/gin and middleware/echo.
package middleware

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	json "github.com/goccy/go-json"

	jsnorm "github.com/reoring/jsnorm"
	"github.com/reoring/jsnorm/i18n"
	"github.com/reoring/jsnorm/internal/logger"
	"github.com/reoring/jsnorm/repository"
)

// SchemaCollection is the collection that stores schema documents themselves;
// requests to it are never normalized.
const SchemaCollection = "json-schemas"

// Outcome labels passed to a Recorder.
const (
	OutcomeNormalized = "normalized"
	OutcomeSkipped    = "skipped"
	OutcomeRejected   = "rejected"
	OutcomeError      = "error"
)

// Recorder observes one write request per call.
type Recorder interface {
	Observe(collection, outcome string, res jsnorm.Normalized)
}

// Options configures Normalize middlewares.
type Options struct {
	ParseOpt jsnorm.ParseOpt
	Recorder Recorder
}

type ctxKeyNormalized struct{}

// ContextWithNormalized attaches a normalization result to the context.
func ContextWithNormalized(ctx context.Context, n jsnorm.Normalized) context.Context {
	return context.WithValue(ctx, ctxKeyNormalized{}, n)
}

// NormalizedFromContext retrieves the result stored by ContextWithNormalized.
func NormalizedFromContext(ctx context.Context) (jsnorm.Normalized, bool) {
	v, ok := ctx.Value(ctxKeyNormalized{}).(jsnorm.Normalized)
	return v, ok
}

// DefaultParseOpt returns a recommended default for HTTP JSON boundaries.
// - Duplicate keys are errors
// - Presence is collected so handlers can tell injected values apart
func DefaultParseOpt() jsnorm.ParseOpt {
	return jsnorm.ParseOpt{
		Strictness: jsnorm.Strictness{OnDuplicateKey: jsnorm.Error},
		MaxDepth:   64,
		Presence:   jsnorm.PresenceOpt{Collect: true},
	}
}

// WithDefaults fills a zero ParseOpt with DefaultParseOpt.
func (o Options) WithDefaults() Options {
	p := o.ParseOpt
	if p.Strictness.OnDuplicateKey == jsnorm.Ignore && !p.Presence.Collect && p.MaxDepth == 0 && p.MaxBytes == 0 {
		o.ParseOpt = DefaultParseOpt()
	}
	return o
}

// IssueBody is the wire form of one Issue.
type IssueBody struct {
	Path    string `json:"path"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorPayload shapes Issues for JSON responses, with messages from the
// current i18n translator.
func ErrorPayload(issues jsnorm.Issues) map[string]any {
	out := make([]IssueBody, 0, len(issues))
	for _, it := range issues {
		data := map[string]string{"key": lastToken(it.Path), "path": it.Path}
		out = append(out, IssueBody{Path: it.Path, Code: it.Code, Message: i18n.T(it.Code, data)})
	}
	return map[string]any{"issues": out}
}

// CollectionFromPath returns the first segment of an URL path.
func CollectionFromPath(p string) string {
	p = strings.TrimLeft(p, "/")
	if i := strings.IndexByte(p, '/'); i >= 0 {
		p = p[:i]
	}
	return p
}

// IsWrite reports whether method carries a body to normalize.
func IsWrite(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		return true
	}
	return false
}

// Result is what Process did to a request.
type Result struct {
	Collection string
	// Skipped is set when the request was left untouched.
	Skipped    bool
	Normalized jsnorm.Normalized
	// Body is the normalized document encoded as JSON.
	Body []byte
}

// HTTPError is a response the adapters should send instead of continuing.
type HTTPError struct {
	Status  int
	Payload any
	Err     error
}

func (e *HTTPError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return http.StatusText(e.Status)
}

func (e *HTTPError) Unwrap() error { return e.Err }

// Process normalizes one request body. Requests that are not writes, that
// target SchemaCollection, or whose collection has no schema are skipped.
func Process(ctx context.Context, repo repository.Repository, method, path string, body io.Reader, opt Options) (Result, error) {
	res := Result{Collection: CollectionFromPath(path), Skipped: true}
	if !IsWrite(method) || res.Collection == "" || res.Collection == SchemaCollection {
		return res, nil
	}
	log := logger.FromContext(ctx).With("collection", res.Collection)
	observe := func(outcome string, n jsnorm.Normalized) {
		if opt.Recorder != nil {
			opt.Recorder.Observe(res.Collection, outcome, n)
		}
	}

	entry, err := repo.Find(ctx, res.Collection)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			log.Warn("schema not found; request passed through")
			observe(OutcomeSkipped, jsnorm.Normalized{})
			return res, nil
		}
		log.Error("schema lookup failed", "error", err)
		observe(OutcomeError, jsnorm.Normalized{})
		return res, &HTTPError{Status: http.StatusInternalServerError, Payload: map[string]any{"error": "schema lookup failed"}, Err: err}
	}

	if body == nil {
		body = http.NoBody
	}
	popt := opt.ParseOpt
	collectForMetrics := opt.Recorder != nil && !popt.Presence.Collect
	if collectForMetrics {
		popt.Presence = jsnorm.PresenceOpt{Collect: true}
	}
	n, err := jsnorm.NormalizeReader(ctx, entry.Plan, body, popt)
	if err != nil {
		observe(OutcomeRejected, jsnorm.Normalized{})
		if iss, ok := jsnorm.AsIssues(err); ok {
			log.Debug("payload rejected", "issues", iss.Error())
			return res, &HTTPError{Status: http.StatusBadRequest, Payload: ErrorPayload(iss), Err: err}
		}
		return res, &HTTPError{Status: http.StatusBadRequest, Payload: map[string]any{"error": err.Error()}, Err: err}
	}
	observe(OutcomeNormalized, n)
	if collectForMetrics {
		n.Presence = nil
	}

	b, err := json.Marshal(n.Value)
	if err != nil {
		return res, &HTTPError{Status: http.StatusInternalServerError, Payload: map[string]any{"error": "encode failed"}, Err: err}
	}
	res.Skipped = false
	res.Normalized = n
	res.Body = b
	return res, nil
}

func lastToken(p string) string {
	if i := strings.LastIndexByte(p, '/'); i >= 0 {
		p = p[i+1:]
	}
	return strings.NewReplacer("~1", "/", "~0", "~").Replace(p)
}
