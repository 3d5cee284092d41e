package migration_test

import (
	"regexp"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/require"

	"github.com/temirov/wikimigrate/internal/migration"
)

var normalizedSpaceKeyPattern = regexp.MustCompile(`^[A-Za-z0-9_]*$`)

func TestNormalizeSpaceKey(testInstance *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "already_valid", input: "DEMO42", expected: "DEMO42"},
		{name: "space_and_punctuation", input: "My Space!", expected: "My_Space_"},
		{name: "dashes_and_dots", input: "team-docs.v2", expected: "team_docs_v2"},
		{name: "non_ascii_letters", input: "Café", expected: "Caf_"},
		{name: "multibyte_symbols", input: "日本", expected: "__"},
		{name: "empty", input: "", expected: ""},
		{name: "truncated", input: strings.Repeat("A", migration.MaximumSpaceKeyLength+10), expected: strings.Repeat("A", migration.MaximumSpaceKeyLength)},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			require.Equal(testInstance, testCase.expected, migration.NormalizeSpaceKey(testCase.input))
		})
	}
}

func TestNormalizeSpaceKeyProperties(testInstance *testing.T) {
	inputs := []string{
		"",
		"a",
		"Engineering Wiki",
		"ops/runbooks",
		"Ünïcödé ∑ spaces",
		"tab\tand\nnewline",
		strings.Repeat("x y", 200),
		strings.Repeat("é", 300),
	}

	for _, input := range inputs {
		normalized := migration.NormalizeSpaceKey(input)
		require.Regexp(testInstance, normalizedSpaceKeyPattern, normalized, input)
		require.LessOrEqual(testInstance, len(normalized), migration.MaximumSpaceKeyLength, input)
		require.Equal(testInstance, min(utf8.RuneCountInString(input), migration.MaximumSpaceKeyLength), len(normalized), input)
		require.Equal(testInstance, normalized, migration.NormalizeSpaceKey(normalized), input)
	}
}
