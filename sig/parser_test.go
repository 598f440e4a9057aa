package sig

import (
	"testing"

	"github.com/mrmaniac/vos/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseWellFormed(t *testing.T) {
	cases := []struct {
		text string
		want domain.Signature
	}{
		{"fib(i32)i32", domain.Signature{Name: "fib", Args: []domain.ValueKind{domain.KindI32}, Return: domain.KindI32}},
		{"noop()void", domain.Signature{Name: "noop", Return: domain.KindVoid}},
		{"noop()", domain.Signature{Name: "noop", Return: domain.KindVoid}},
		{"add(i32;i32)i32", domain.Signature{Name: "add", Args: []domain.ValueKind{domain.KindI32, domain.KindI32}, Return: domain.KindI32}},
		{"_init_self(pointer;pointer)bool", domain.Signature{Name: "_init_self", Args: []domain.ValueKind{domain.KindPointer, domain.KindPointer}, Return: domain.KindBool}},
	}

	for _, c := range cases {
		got := Parse(c.text)
		assert.False(t, got.Malformed(), "text=%q", c.text)
		assert.True(t, got.Equal(c.want), "text=%q got=%+v want=%+v", c.text, got, c.want)
	}
}

func TestParseRoundTrip(t *testing.T) {
	texts := []string{
		"fib(i32)i32",
		"noop()void",
		"add(i32;i32)i32",
		"scatter(f32;f64;bool;string;pointer)void",
	}
	for _, text := range texts {
		got := Parse(text)
		require.False(t, got.Malformed())
		assert.Equal(t, text, got.String())
	}
}

func TestParseMalformed(t *testing.T) {
	texts := []string{
		"",
		"noparen",
		"(i32)i32",
		"bad(unknownType)i32",
		"bad(i32)unknownType",
		"bad(i32",
		"1bad(i32)i32",
	}
	for _, text := range texts {
		got := Parse(text)
		assert.True(t, got.Malformed(), "text=%q", text)
	}
}

func TestParseArgCountBoundary(t *testing.T) {
	sixteen := "f(" + repeat("i32", 16) + ")void"
	got := Parse(sixteen)
	assert.False(t, got.Malformed())
	assert.Len(t, got.Args, 16)

	seventeen := "f(" + repeat("i32", 17) + ")void"
	got = Parse(seventeen)
	assert.True(t, got.Malformed())
}

func repeat(tok string, n int) string {
	out := tok
	for i := 1; i < n; i++ {
		out += ";" + tok
	}
	return out
}
