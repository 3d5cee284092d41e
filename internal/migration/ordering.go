package migration

import (
	"container/heap"

	"github.com/temirov/wikimigrate/internal/contentservice"
)

// OrderPagesByHierarchy returns the pages ordered so that every page follows its nearest ancestor.
// Among pages whose ancestor has already been placed, source order is kept. A page whose ancestor
// is not part of the batch is treated as a root. Pages caught in an ancestor cycle are appended in
// source order after everything else.
func OrderPagesByHierarchy(pages []contentservice.Page) []contentservice.Page {
	indexByIdentifier := make(map[string]int, len(pages))
	for pageIndex, page := range pages {
		if _, exists := indexByIdentifier[page.Identifier]; !exists && len(page.Identifier) > 0 {
			indexByIdentifier[page.Identifier] = pageIndex
		}
	}

	childrenByParent := make(map[int][]int, len(pages))
	ready := &sourceIndexHeap{}
	for pageIndex, page := range pages {
		parentIndex, hasParent := parentIndexOf(page, pageIndex, indexByIdentifier)
		if !hasParent {
			heap.Push(ready, pageIndex)
			continue
		}
		childrenByParent[parentIndex] = append(childrenByParent[parentIndex], pageIndex)
	}

	ordered := make([]contentservice.Page, 0, len(pages))
	placed := make([]bool, len(pages))
	for ready.Len() > 0 {
		pageIndex := heap.Pop(ready).(int)
		placed[pageIndex] = true
		ordered = append(ordered, pages[pageIndex])
		for _, childIndex := range childrenByParent[pageIndex] {
			heap.Push(ready, childIndex)
		}
	}

	for pageIndex, page := range pages {
		if !placed[pageIndex] {
			ordered = append(ordered, page)
		}
	}
	return ordered
}

func parentIndexOf(page contentservice.Page, pageIndex int, indexByIdentifier map[string]int) (int, bool) {
	ancestor, hasAncestor := page.NearestAncestor()
	if !hasAncestor {
		return 0, false
	}
	parentIndex, inBatch := indexByIdentifier[ancestor.Identifier]
	if !inBatch || parentIndex == pageIndex {
		return 0, false
	}
	return parentIndex, true
}

type sourceIndexHeap []int

func (indexes sourceIndexHeap) Len() int { return len(indexes) }

func (indexes sourceIndexHeap) Less(leftIndex int, rightIndex int) bool {
	return indexes[leftIndex] < indexes[rightIndex]
}

func (indexes sourceIndexHeap) Swap(leftIndex int, rightIndex int) {
	indexes[leftIndex], indexes[rightIndex] = indexes[rightIndex], indexes[leftIndex]
}

func (indexes *sourceIndexHeap) Push(value any) {
	*indexes = append(*indexes, value.(int))
}

func (indexes *sourceIndexHeap) Pop() any {
	previous := *indexes
	lastIndex := len(previous) - 1
	value := previous[lastIndex]
	*indexes = previous[:lastIndex]
	return value
}
