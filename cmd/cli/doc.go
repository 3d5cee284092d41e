// Package cli constructs the wikimigrate command-line interface, wiring the
// Cobra command hierarchy, configuration loader, and structured logging
// primitives around the space migration command.
package cli
