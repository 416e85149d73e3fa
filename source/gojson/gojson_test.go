package gojson

import (
	"errors"
	"io"
	"testing"

	eng "github.com/reoring/jsnorm/internal/engine"
)

func kinds(t *testing.T, src eng.TokenSource) []eng.Kind {
	t.Helper()
	var out []eng.Kind
	for {
		tok, err := src.NextToken()
		if errors.Is(err, io.EOF) {
			return out
		}
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		out = append(out, tok.Kind)
	}
}

func TestNextToken_KeysAndValues(t *testing.T) {
	got := kinds(t, NewBytes([]byte(`{"a":"b","c":[1,null,false],"d":{}}`)))
	want := []eng.Kind{
		eng.KindBeginObject,
		eng.KindKey, eng.KindString,
		eng.KindKey, eng.KindBeginArray, eng.KindNumber, eng.KindNull, eng.KindBool, eng.KindEndArray,
		eng.KindKey, eng.KindBeginObject, eng.KindEndObject,
		eng.KindEndObject,
	}
	if len(got) != len(want) {
		t.Fatalf("got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("token %d: got %v want %v", i, got[i], want[i])
		}
	}
}

func TestNextToken_NumberText(t *testing.T) {
	src := NewBytes([]byte(`12345678901234567890`))
	tok, err := src.NextToken()
	if err != nil {
		t.Fatal(err)
	}
	if tok.Kind != eng.KindNumber || tok.Number != "12345678901234567890" {
		t.Fatalf("got %+v", tok)
	}
}
