package identifiers

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	pathutils "github.com/temirov/wikimigrate/internal/utils/path"
)

const (
	ledgerPathRequiredMessageConstant    = "identifier ledger path must be provided"
	ledgerLoadErrorTemplateConstant      = "failed to load identifier ledger %s: %w"
	ledgerParseErrorTemplateConstant     = "failed to parse identifier ledger %s: %w"
	ledgerEncodeErrorTemplateConstant    = "failed to encode identifier ledger: %w"
	ledgerDirectoryErrorTemplateConstant = "failed to create identifier ledger directory %s: %w"
	ledgerWriteErrorTemplateConstant     = "failed to write identifier ledger %s: %w"
	ledgerReplaceErrorTemplateConstant   = "failed to replace identifier ledger %s: %w"
	ledgerMismatchErrorTemplateConstant  = "identifier ledger records %s space %s, not %s"
	sourceSpaceRoleConstant              = "source"
	destinationSpaceRoleConstant         = "destination"
	temporaryLedgerSuffixConstant        = ".tmp"
	ledgerFilePermissionsConstant        = fs.FileMode(0o600)
	ledgerDirectoryPermissionsConstant   = fs.FileMode(0o755)
)

// ErrLedgerPathMissing indicates a file ledger was requested without a path.
var ErrLedgerPathMissing = errors.New(ledgerPathRequiredMessageConstant)

// Ledger is the persisted progress of a migration.
type Ledger struct {
	SourceSpaceKey          string            `yaml:"source_space_key"`
	DestinationSpaceKey     string            `yaml:"destination_space_key"`
	DestinationSpaceCreated bool              `yaml:"destination_space_created"`
	Pages                   map[string]string `yaml:"pages"`
}

// IsEmpty reports whether the ledger carries no recorded progress.
func (ledger Ledger) IsEmpty() bool {
	return len(ledger.SourceSpaceKey) == 0 && !ledger.DestinationSpaceCreated && len(ledger.Pages) == 0
}

// Validate confirms the ledger belongs to the given source space. Empty ledgers match any space.
func (ledger Ledger) Validate(sourceSpaceKey string) error {
	if ledger.IsEmpty() || len(ledger.SourceSpaceKey) == 0 || ledger.SourceSpaceKey == sourceSpaceKey {
		return nil
	}
	return LedgerMismatchError{Role: sourceSpaceRoleConstant, RecordedSpaceKey: ledger.SourceSpaceKey, RequestedSpaceKey: sourceSpaceKey}
}

// ValidateDestination confirms the recorded page identifiers belong to the given destination space.
// A ledger that has not recorded a destination space matches any key.
func (ledger Ledger) ValidateDestination(destinationSpaceKey string) error {
	if len(ledger.DestinationSpaceKey) == 0 || ledger.DestinationSpaceKey == destinationSpaceKey {
		return nil
	}
	return LedgerMismatchError{Role: destinationSpaceRoleConstant, RecordedSpaceKey: ledger.DestinationSpaceKey, RequestedSpaceKey: destinationSpaceKey}
}

// LedgerMismatchError indicates a ledger recorded for a different source or destination space.
type LedgerMismatchError struct {
	Role              string
	RecordedSpaceKey  string
	RequestedSpaceKey string
}

// Error describes the mismatch.
func (mismatchError LedgerMismatchError) Error() string {
	return fmt.Sprintf(ledgerMismatchErrorTemplateConstant, mismatchError.Role, mismatchError.RecordedSpaceKey, mismatchError.RequestedSpaceKey)
}

// LedgerStore loads and saves a Ledger.
type LedgerStore interface {
	Load(executionContext context.Context) (Ledger, error)
	Save(executionContext context.Context, ledger Ledger) error
}

// FileLedgerStore persists a Ledger as YAML on disk.
type FileLedgerStore struct {
	fileSystem FileSystem
	filePath   string
}

// NewFileLedgerStore creates a store for the ledger at filePath. A nil fileSystem selects the operating system.
func NewFileLedgerStore(fileSystem FileSystem, filePath string) (*FileLedgerStore, error) {
	expandedPath := pathutils.NewHomeExpander().Expand(filePath)
	if len(expandedPath) == 0 {
		return nil, ErrLedgerPathMissing
	}
	if fileSystem == nil {
		fileSystem = OSFileSystem{}
	}
	return &FileLedgerStore{fileSystem: fileSystem, filePath: expandedPath}, nil
}

// Path reports the ledger file location.
func (store *FileLedgerStore) Path() string {
	return store.filePath
}

// Load reads the ledger. A missing file yields an empty ledger.
func (store *FileLedgerStore) Load(executionContext context.Context) (Ledger, error) {
	if contextError := executionContext.Err(); contextError != nil {
		return Ledger{}, contextError
	}

	contentBytes, readError := store.fileSystem.ReadFile(store.filePath)
	if readError != nil {
		if errors.Is(readError, fs.ErrNotExist) {
			return Ledger{Pages: map[string]string{}}, nil
		}
		return Ledger{}, fmt.Errorf(ledgerLoadErrorTemplateConstant, store.filePath, readError)
	}

	var ledger Ledger
	if len(strings.TrimSpace(string(contentBytes))) > 0 {
		if parseError := yaml.Unmarshal(contentBytes, &ledger); parseError != nil {
			return Ledger{}, fmt.Errorf(ledgerParseErrorTemplateConstant, store.filePath, parseError)
		}
	}
	if ledger.Pages == nil {
		ledger.Pages = map[string]string{}
	}
	return ledger, nil
}

// Save writes the ledger through a temporary file that replaces the previous ledger in one rename.
func (store *FileLedgerStore) Save(executionContext context.Context, ledger Ledger) error {
	if contextError := executionContext.Err(); contextError != nil {
		return contextError
	}

	contentBytes, encodeError := yaml.Marshal(ledger)
	if encodeError != nil {
		return fmt.Errorf(ledgerEncodeErrorTemplateConstant, encodeError)
	}

	directory := filepath.Dir(store.filePath)
	if directoryError := store.fileSystem.MkdirAll(directory, ledgerDirectoryPermissionsConstant); directoryError != nil {
		return fmt.Errorf(ledgerDirectoryErrorTemplateConstant, directory, directoryError)
	}

	temporaryPath := store.filePath + temporaryLedgerSuffixConstant
	if writeError := store.fileSystem.WriteFile(temporaryPath, contentBytes, ledgerFilePermissionsConstant); writeError != nil {
		return fmt.Errorf(ledgerWriteErrorTemplateConstant, temporaryPath, writeError)
	}
	if renameError := store.fileSystem.Rename(temporaryPath, store.filePath); renameError != nil {
		_ = store.fileSystem.Remove(temporaryPath)
		return fmt.Errorf(ledgerReplaceErrorTemplateConstant, store.filePath, renameError)
	}
	return nil
}
