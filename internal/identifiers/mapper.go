package identifiers

import (
	"sort"
	"strings"
)

// Entry is one source to destination identifier pair.
type Entry struct {
	SourceIdentifier      string
	DestinationIdentifier string
}

// Mapper maps source page identifiers to destination page identifiers.
// It is owned by a single goroutine.
type Mapper struct {
	destinations map[string]string
}

// NewMapper creates an empty Mapper.
func NewMapper() *Mapper {
	return &Mapper{destinations: map[string]string{}}
}

// NewMapperFromEntries seeds a Mapper from a previously persisted identifier map.
func NewMapperFromEntries(entries map[string]string) *Mapper {
	mapper := NewMapper()
	for sourceIdentifier, destinationIdentifier := range entries {
		mapper.Record(sourceIdentifier, destinationIdentifier)
	}
	return mapper
}

// Record stores the destination identifier for a source identifier. Blank identifiers are ignored.
func (mapper *Mapper) Record(sourceIdentifier string, destinationIdentifier string) {
	trimmedSource := strings.TrimSpace(sourceIdentifier)
	trimmedDestination := strings.TrimSpace(destinationIdentifier)
	if len(trimmedSource) == 0 || len(trimmedDestination) == 0 {
		return
	}
	mapper.destinations[trimmedSource] = trimmedDestination
}

// Resolve returns the destination identifier recorded for a source identifier.
func (mapper *Mapper) Resolve(sourceIdentifier string) (string, bool) {
	destinationIdentifier, found := mapper.destinations[strings.TrimSpace(sourceIdentifier)]
	return destinationIdentifier, found
}

// Len reports the number of recorded pairs.
func (mapper *Mapper) Len() int {
	return len(mapper.destinations)
}

// Entries returns the recorded pairs ordered by source identifier.
func (mapper *Mapper) Entries() []Entry {
	entries := make([]Entry, 0, len(mapper.destinations))
	for sourceIdentifier, destinationIdentifier := range mapper.destinations {
		entries = append(entries, Entry{SourceIdentifier: sourceIdentifier, DestinationIdentifier: destinationIdentifier})
	}
	sort.Slice(entries, func(leftIndex int, rightIndex int) bool {
		return entries[leftIndex].SourceIdentifier < entries[rightIndex].SourceIdentifier
	})
	return entries
}

// Snapshot copies the recorded pairs into a plain map.
func (mapper *Mapper) Snapshot() map[string]string {
	snapshot := make(map[string]string, len(mapper.destinations))
	for sourceIdentifier, destinationIdentifier := range mapper.destinations {
		snapshot[sourceIdentifier] = destinationIdentifier
	}
	return snapshot
}
