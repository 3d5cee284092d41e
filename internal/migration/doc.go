// Package migration copies a content space from a source content service to
// a destination content service.
//
// The Service creates the destination space, recreates pages parent before
// child while mapping source page identifiers to their new identities, and
// transfers each page's attachments. Space-level failures abort the run;
// failures of individual pages and attachments are logged, reported, and
// counted in the MigrationResult while the run continues.
//
// CommandBuilder exposes the Service as the migrate Cobra command.
package migration
