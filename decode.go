package jsnorm

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"

	eng "github.com/reoring/jsnorm/internal/engine"
	"github.com/reoring/jsnorm/source/gojson"
)

// DecodePayload reads one JSON document from r, enforcing the duplicate-key,
// depth and size limits in opt. Failures are returned as Issues.
func DecodePayload(ctx context.Context, r io.Reader, opt ParseOpt) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if opt.MaxBytes > 0 {
		data, err := io.ReadAll(io.LimitReader(r, opt.MaxBytes+1))
		if err != nil {
			return nil, singleIssue(CodeParseError, err.Error())
		}
		if int64(len(data)) > opt.MaxBytes {
			return nil, singleIssue(CodeTruncated, "max bytes exceeded")
		}
		r = bytes.NewReader(data)
	}
	src := eng.WrapWithEnforcement(gojson.NewReader(r), eng.EnforceOptions{
		OnDuplicate: toEngineDup(opt.Strictness.OnDuplicateKey),
		MaxDepth:    opt.MaxDepth,
		IssueSink:   warnSink(opt.WarnSink),
	})
	conv := eng.JSONNumber
	if opt.NumberMode == NumberFloat64 {
		conv = eng.Float64
	}
	v, err := eng.DecodeAny(src, conv)
	if err != nil {
		return nil, toIssues(err)
	}
	return v, nil
}

// DecodePayloadBytes is DecodePayload over a byte slice.
func DecodePayloadBytes(ctx context.Context, data []byte, opt ParseOpt) (any, error) {
	return DecodePayload(ctx, bytes.NewReader(data), opt)
}

// NormalizeReader decodes a payload from r and normalizes it with plan.
// An empty or whitespace-only body normalizes like {}. Presence is collected
// according to opt.Presence.
func NormalizeReader(ctx context.Context, plan *Plan, r io.Reader, opt ParseOpt) (Normalized, error) {
	if err := ctx.Err(); err != nil {
		return Normalized{}, err
	}
	br := bufio.NewReader(r)
	skipped, empty, err := skipSpace(br)
	if err != nil {
		return Normalized{}, singleIssue(CodeParseError, err.Error())
	}
	if opt.MaxBytes > 0 {
		if skipped > opt.MaxBytes || (!empty && skipped == opt.MaxBytes) {
			return Normalized{}, singleIssue(CodeTruncated, "max bytes exceeded")
		}
		opt.MaxBytes -= skipped
	}
	var v any
	if !empty {
		if v, err = DecodePayload(ctx, br, opt); err != nil {
			return Normalized{}, err
		}
	}
	if !opt.Presence.Collect {
		return Normalized{Value: plan.Normalize(v)}, nil
	}
	return plan.NormalizeWithMeta(v, opt.Presence), nil
}

// NormalizeJSON is NormalizeReader over a byte slice with an uncompiled property map.
func NormalizeJSON(ctx context.Context, props PropertyMap, data []byte, opt ParseOpt) (Normalized, error) {
	return NormalizeReader(ctx, Compile(props), bytes.NewReader(data), opt)
}

// skipSpace consumes leading JSON whitespace, returning how many bytes it
// skipped and whether the input ended before any other byte.
func skipSpace(br *bufio.Reader) (int64, bool, error) {
	var n int64
	for {
		c, err := br.ReadByte()
		if errors.Is(err, io.EOF) {
			return n, true, nil
		}
		if err != nil {
			return n, false, err
		}
		switch c {
		case ' ', '\t', '\n', '\r':
			n++
			continue
		}
		return n, false, br.UnreadByte()
	}
}

func toEngineDup(s Severity) eng.DuplicateStrictness {
	switch s {
	case Error:
		return eng.DupError
	case Warn:
		return eng.DupWarn
	default:
		return eng.DupIgnore
	}
}

func warnSink(sink func(Issue)) func(eng.SimpleIssue) {
	if sink == nil {
		return nil
	}
	return func(si eng.SimpleIssue) {
		sink(Issue{Path: si.Path, Code: si.Code, Message: si.Message, Offset: -1})
	}
}

func toIssues(err error) Issues {
	if ii, ok := AsIssues(err); ok {
		return ii
	}
	var ie eng.IssueError
	if errors.As(err, &ie) {
		return AppendIssues(nil, Issue{Code: ie.Code, Path: ie.Path, Message: ie.Message, Offset: -1})
	}
	return AppendIssues(nil, Issue{Path: "/", Code: CodeParseError, Message: err.Error(), Offset: -1, Cause: err})
}
