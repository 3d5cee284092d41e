// Package identifiers tracks how source page identifiers map onto the pages
// created on the destination.
//
// Mapper is the in-memory map consulted while pages are created. Ledger is
// its optional YAML persistence, which lets an interrupted migration resume
// without re-creating pages it already copied.
package identifiers
