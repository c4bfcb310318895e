package sqlutil

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuoteIdentifier(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"Simple table name", "overrides", `"overrides"`},
		{"Mixed case keeps case", "MyTable", `"MyTable"`},
		{"Embedded quote", `my"table`, `"my""table"`},
		{"Only quotes", `""`, `""""""`},
		{"Empty string", "", `""`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, QuoteIdentifier(tt.input))
		})
	}
}

func TestQuoteQualified(t *testing.T) {
	assert.Equal(t, `"public"."overrides"`, QuoteQualified("public.overrides"))
	assert.Equal(t, `"overrides"`, QuoteQualified("overrides"))
}

func TestIsValidIdentifier(t *testing.T) {
	tests := []struct {
		input string
		valid bool
	}{
		{"overrides", true},
		{"_private", true},
		{"table123", true},
		{"123table", false},
		{"", false},
		{"my-table", false},
		{"my table", false},
		{"users; DROP TABLE users", false},
		{`a"b`, false},
		{strings.Repeat("a", 63), true},
		{strings.Repeat("a", 64), false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.valid, IsValidIdentifier(tt.input))
		})
	}
}

func TestIsValidQualified(t *testing.T) {
	assert.True(t, IsValidQualified("overrides"))
	assert.True(t, IsValidQualified("public.overrides"))
	assert.False(t, IsValidQualified("a.b.c"))
	assert.False(t, IsValidQualified("public."))
	assert.False(t, IsValidQualified(".overrides"))
}

func TestQuoteSafe(t *testing.T) {
	q, err := QuoteIdentifierSafe("response")
	require.NoError(t, err)
	assert.Equal(t, `"response"`, q)

	_, err = QuoteIdentifierSafe("bad;name")
	require.Error(t, err)
	var invalid *InvalidIdentifierError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "bad;name", invalid.Name)
	assert.Contains(t, err.Error(), "invalid identifier: bad;name")

	q, err = QuoteQualifiedSafe("bench.overrides")
	require.NoError(t, err)
	assert.Equal(t, `"bench"."overrides"`, q)

	_, err = QuoteQualifiedSafe("bench.over rides")
	assert.Error(t, err)
}

func TestSplitQualified(t *testing.T) {
	s, r := SplitQualified("public.overrides")
	assert.Equal(t, "public", s)
	assert.Equal(t, "overrides", r)

	s, r = SplitQualified("overrides")
	assert.Empty(t, s)
	assert.Equal(t, "overrides", r)
}
