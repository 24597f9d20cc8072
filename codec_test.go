package settings

import (
	"errors"
	"reflect"
	"testing"

	"github.com/goliatone/go-settings/internal/hydrate"
)

func TestJSONCodecRoundTrip(t *testing.T) {
	type nested struct {
		Name  string            `json:"name"`
		Tags  []string          `json:"tags"`
		Attrs map[string]string `json:"attrs"`
	}
	values := []any{
		true,
		int64(-42),
		3.25,
		"<b>&amp</b>",
		[]int{1, 2, 3},
		nested{Name: "n", Tags: []string{"a"}, Attrs: map[string]string{"k": "v"}},
		nested{Name: "empty"},
		[]string(nil),
		map[string]int(nil),
		(*int)(nil),
	}

	codec := NewJSONCodec()
	for _, value := range values {
		text, err := codec.Encode(value)
		if err != nil {
			t.Fatalf("Encode(%v) failed: %v", value, err)
		}
		target := reflect.New(reflect.TypeOf(value))
		if err := codec.Decode(text, target.Interface()); err != nil {
			t.Fatalf("Decode(%q) failed: %v", text, err)
		}
		if got := target.Elem().Interface(); !reflect.DeepEqual(got, value) {
			t.Fatalf("round trip mismatch: want %#v, got %#v", value, got)
		}
	}
}

func TestJSONCodecEncodingShape(t *testing.T) {
	codec := NewJSONCodec()
	text, err := codec.Encode("<en>")
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if text != `"<en>"` {
		t.Fatalf("expected unescaped output without newline, got %q", text)
	}

	escaped, _ := NewJSONCodec(WithEscapeHTML(true)).Encode("<en>")
	if escaped != `"\u003cen\u003e"` {
		t.Fatalf("expected escaped output, got %q", escaped)
	}
}

func TestJSONCodecStrictDecode(t *testing.T) {
	codec := NewJSONCodec()
	var flag bool
	if err := codec.Decode(`"true"`, &flag); err == nil {
		t.Fatalf("expected mismatch decoding string into bool")
	}
	if err := codec.Decode("", &flag); !errors.Is(err, hydrate.ErrEmptyInput) {
		t.Fatalf("expected ErrEmptyInput, got %v", err)
	}
	if err := codec.Decode("true false", &flag); err == nil {
		t.Fatalf("expected trailing data error")
	}

	type strict struct {
		A int `json:"a"`
	}
	var s strict
	if err := NewJSONCodec(WithDisallowUnknownFields()).Decode(`{"a":1,"b":2}`, &s); err == nil {
		t.Fatalf("expected unknown field error")
	}
	if err := codec.Decode(`{"a":1,"b":2}`, &s); err != nil || s.A != 1 {
		t.Fatalf("lenient decode failed: %v %+v", err, s)
	}
}
