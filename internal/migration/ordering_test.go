package migration_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/wikimigrate/internal/contentservice"
	"github.com/temirov/wikimigrate/internal/migration"
)

func identifiersOf(pages []contentservice.Page) []string {
	identifiers := make([]string, 0, len(pages))
	for _, orderedPage := range pages {
		identifiers = append(identifiers, orderedPage.Identifier)
	}
	return identifiers
}

func TestOrderPagesByHierarchy(testInstance *testing.T) {
	testCases := []struct {
		name     string
		pages    []contentservice.Page
		expected []string
	}{
		{
			name:     "empty",
			pages:    nil,
			expected: []string{},
		},
		{
			name:     "flat_pages_keep_source_order",
			pages:    []contentservice.Page{page("3", "c"), page("1", "a"), page("2", "b")},
			expected: []string{"3", "1", "2"},
		},
		{
			name:     "child_moves_after_parent",
			pages:    []contentservice.Page{page("B", "child", "A"), page("A", "root")},
			expected: []string{"A", "B"},
		},
		{
			name: "deep_chain_listed_backwards",
			pages: []contentservice.Page{
				page("C", "grandchild", "A", "B"),
				page("B", "child", "A"),
				page("A", "root"),
			},
			expected: []string{"A", "B", "C"},
		},
		{
			name: "siblings_keep_source_order",
			pages: []contentservice.Page{
				page("S2", "second", "R"),
				page("R", "root"),
				page("S1", "first", "R"),
				page("T", "other root"),
			},
			expected: []string{"R", "S2", "S1", "T"},
		},
		{
			name:     "ancestor_outside_batch_is_root",
			pages:    []contentservice.Page{page("B", "child", "X"), page("A", "root")},
			expected: []string{"B", "A"},
		},
		{
			name:     "self_parent_is_root",
			pages:    []contentservice.Page{page("A", "loop", "A")},
			expected: []string{"A"},
		},
		{
			name: "cycle_appended_in_source_order",
			pages: []contentservice.Page{
				page("Y", "y", "X"),
				page("R", "root"),
				page("X", "x", "Y"),
			},
			expected: []string{"R", "Y", "X"},
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			ordered := migration.OrderPagesByHierarchy(testCase.pages)
			require.Equal(testInstance, testCase.expected, identifiersOf(ordered))
		})
	}
}

func TestOrderPagesByHierarchyDoesNotMutateInput(testInstance *testing.T) {
	pages := []contentservice.Page{page("B", "child", "A"), page("A", "root")}

	_ = migration.OrderPagesByHierarchy(pages)

	require.Equal(testInstance, []string{"B", "A"}, identifiersOf(pages))
}
