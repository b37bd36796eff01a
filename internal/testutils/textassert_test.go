//go:build test

package testutils

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

// recordingT captures Errorf calls so asserter failures can be inspected.
type recordingT struct {
	errors []string
}

func (r *recordingT) Errorf(format string, args ...interface{}) {
	r.errors = append(r.errors, fmt.Sprintf(format, args...))
}

func TestTextAsserterDefaults(t *testing.T) {
	// GOAL: Verify go-defaults populates the normalization options
	//
	// TEST SCENARIO: New asserter without options → trim, trailing whitespace and ANSI stripping on

	ta := NewTextAsserter(t)
	assert.True(t, ta.options.TrimSpace, "TrimSpace MUST default to true")
	assert.True(t, ta.options.IgnoreTrailingWhitespace, "IgnoreTrailingWhitespace MUST default to true")
	assert.True(t, ta.options.StripANSI, "StripANSI MUST default to true")
	assert.False(t, ta.options.IgnoreEmptyLines, "IgnoreEmptyLines MUST default to false")
	assert.False(t, ta.options.EnableColors, "EnableColors MUST default to false")
}

func TestTextAsserterNormalization(t *testing.T) {
	tests := []struct {
		name     string
		opts     []TextOption
		actual   string
		expected string
		equal    bool
	}{
		{
			name:     "identical",
			actual:   "Current result = 01",
			expected: "Current result = 01",
			equal:    true,
		},
		{
			name:     "surrounding and trailing whitespace",
			actual:   "\n  Current result = 01   \nCurrent result = 02\t\n",
			expected: "Current result = 01\nCurrent result = 02",
			equal:    true,
		},
		{
			name:     "ansi colors",
			actual:   "\x1b[36mCurrent result =\x1b[0m 01",
			expected: "Current result = 01",
			equal:    true,
		},
		{
			name:     "empty lines kept by default",
			actual:   "a\n\nb",
			expected: "a\nb",
			equal:    false,
		},
		{
			name:     "empty lines ignored",
			opts:     []TextOption{WithIgnoreEmptyLines(true)},
			actual:   "a\n\nb",
			expected: "a\nb",
			equal:    true,
		},
		{
			name:     "masked timestamp",
			opts:     []TextOption{WithMasks(MaskRFC3339)},
			actual:   `{"time":"2026-10-19T10:11:12.123456Z"}`,
			expected: `{"time":"<time>"}`,
			equal:    true,
		},
		{
			name:     "masked duration",
			opts:     []TextOption{WithMasks(MaskDuration)},
			actual:   "3 reads in 612ms",
			expected: "3 reads in <duration>",
			equal:    true,
		},
		{
			name:     "different values",
			actual:   "Current result = 01",
			expected: "Current result = 02",
			equal:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			diff := NewTextAsserter(t, tt.opts...).Diff(tt.actual, tt.expected)
			if tt.equal {
				assert.Empty(t, diff, "normalized texts MUST be equal")
			} else {
				assert.NotEmpty(t, diff, "normalized texts MUST differ")
			}
		})
	}
}

func TestTextAsserterReportsUnifiedDiff(t *testing.T) {
	// GOAL: Verify a mismatch is reported once with a unified diff
	//
	// TEST SCENARIO: Second line differs → one Errorf containing -/+ lines

	rec := &recordingT{}
	ok := NewTextAsserter(rec).Assert("a\nb", "a\nc")

	assert.False(t, ok, "Assert MUST report a mismatch")
	if assert.Len(t, rec.errors, 1, "exactly one failure MUST be reported") {
		assert.True(t, strings.Contains(rec.errors[0], "-c"), "diff MUST show the expected line")
		assert.True(t, strings.Contains(rec.errors[0], "+b"), "diff MUST show the actual line")
	}
}

func TestTextAsserterColoredDiff(t *testing.T) {
	rec := &recordingT{}
	NewTextAsserter(rec, WithEnableColors(true)).Assert("x", "y")

	if assert.Len(t, rec.errors, 1) {
		assert.Contains(t, rec.errors[0], "\x1b[", "colored diff MUST contain ANSI sequences")
	}
}
