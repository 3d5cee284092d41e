package migration

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/temirov/wikimigrate/internal/contentservice"
	"github.com/temirov/wikimigrate/internal/identifiers"
)

const (
	// DefaultSpaceDescription replaces an empty source space description.
	DefaultSpaceDescription = "Migrated from source space"
	// DefaultAttachmentWorkers transfers attachments one at a time.
	DefaultAttachmentWorkers = 1

	// StageLoadLedger identifies a failure to read the identifier ledger.
	StageLoadLedger = "load_ledger"
	// StageFetchSourceSpace identifies a failure to read the source space.
	StageFetchSourceSpace = "fetch_source_space"
	// StageCreateDestinationSpace identifies a failure to create the destination space.
	StageCreateDestinationSpace = "create_destination_space"

	spaceKeyFieldNameConstant               = "space_key"
	requiredValueMessageConstant            = "value required"
	normalizedKeyEmptyMessageConstant       = "normalizes to an empty key"
	invalidInputErrorTemplateConstant       = "%s: %s"
	fatalPreconditionErrorTemplateConstant  = "migration aborted at %s: %v"
	ledgerSaveErrorTemplateConstant         = "unable to save identifier ledger: %w"
	sourceReaderMissingMessageConstant      = "source content reader not configured"
	destinationWriterMissingMessageConstant = "destination content writer not configured"
	logMessageMigrationStartedConstant      = "Migration started"
	logMessageMigrationFinishedConstant     = "Migration finished"
	logMessageSpaceCreatedConstant          = "Destination space created"
	logMessageSpaceReusedConstant           = "Destination space recorded in ledger, skipping creation"
	logMessagePageListingFailedConstant     = "Page listing stopped early"
	logMessagePageCreatedConstant           = "Page created"
	logMessagePageSkippedConstant           = "Page already migrated, skipping"
	logMessagePageOrphanedConstant          = "Page parent not migrated, creating at top level"
	logMessagePageFailedConstant            = "Page creation failed"
	logFieldRunIdentifierConstant           = "run_id"
	logFieldSpaceKeyConstant                = "space_key"
	logFieldDestinationSpaceKeyConstant     = "destination_space_key"
	logFieldPageIdentifierConstant          = "page_id"
	logFieldDestinationPageConstant         = "destination_page_id"
	logFieldParentIdentifierConstant        = "parent_id"
	logFieldPageTitleConstant               = "page_title"
	logFieldStatusCodeConstant              = "status_code"
	logFieldFailureKindConstant             = "failure_kind"
	logFieldResponseBodyConstant            = "response_body"
	logFieldPagesDiscoveredConstant         = "pages_discovered"
	logFieldPagesCreatedConstant            = "pages_created"
	logFieldPagesSkippedConstant            = "pages_skipped"
	logFieldPagesFailedConstant             = "pages_failed"
	logFieldOrphanedPagesConstant           = "orphaned_pages"
	logFieldAttachmentsUploadedConstant     = "attachments_uploaded"
	logFieldAttachmentsFailedConstant       = "attachments_failed"
	logFieldHierarchyOrderingConstant       = "hierarchy_ordering"
	logFieldAttachmentWorkersConstant       = "attachment_workers"
)

// ContentReader reads a space from the source content service.
type ContentReader interface {
	GetSpace(executionContext context.Context, spaceKey string) (contentservice.Space, error)
	ListPages(executionContext context.Context, spaceKey string) ([]contentservice.Page, error)
	ListAttachments(executionContext context.Context, pageIdentifier string) ([]contentservice.AttachmentReference, error)
	DownloadAttachment(executionContext context.Context, attachment contentservice.AttachmentReference) ([]byte, error)
}

// ContentWriter creates content on the destination content service.
type ContentWriter interface {
	CreateSpace(executionContext context.Context, space contentservice.Space) (contentservice.SpaceReference, error)
	CreatePage(executionContext context.Context, draft contentservice.PageDraft) (string, error)
	UploadAttachment(executionContext context.Context, upload contentservice.AttachmentUpload) error
}

// MigrationExecutor runs a space migration.
type MigrationExecutor interface {
	Execute(executionContext context.Context, options MigrationOptions) (MigrationResult, error)
}

// InvalidInputError describes migration option validation failures.
type InvalidInputError struct {
	FieldName string
	Message   string
}

// Error describes the invalid input.
func (inputError InvalidInputError) Error() string {
	return fmt.Sprintf(invalidInputErrorTemplateConstant, inputError.FieldName, inputError.Message)
}

// FatalPreconditionError reports a space-level failure that stops the run before pages are migrated.
type FatalPreconditionError struct {
	Stage string
	Cause error
}

// Error describes the aborted stage.
func (fatalError FatalPreconditionError) Error() string {
	return fmt.Sprintf(fatalPreconditionErrorTemplateConstant, fatalError.Stage, fatalError.Cause)
}

// Unwrap exposes the underlying failure.
func (fatalError FatalPreconditionError) Unwrap() error {
	return fatalError.Cause
}

// ServiceDependencies describes required collaborators for migration.
type ServiceDependencies struct {
	Logger      *zap.Logger
	Source      ContentReader
	Destination ContentWriter
	Reporter    Reporter
	LedgerStore identifiers.LedgerStore
}

// MigrationOptions configures one migration run.
type MigrationOptions struct {
	SpaceKey            string
	DestinationSpaceKey string
	AttachmentWorkers   int
	PreserveSourceOrder bool
	RunIdentifier       string
}

// MigrationResult summarizes a migration run.
type MigrationResult struct {
	SourceSpaceKey           string
	DestinationSpaceKey      string
	SpaceCreated             bool
	PagesDiscovered          int
	PagesCreated             int
	PagesSkipped             int
	PagesFailed              int
	OrphanedPages            int
	AttachmentsUploaded      int
	AttachmentsFailed        int
	AttachmentListingsFailed int
	PageListingFailed        bool
	PageIdentifiers          []identifiers.Entry
}

// Service orchestrates a space migration.
type Service struct {
	logger      *zap.Logger
	source      ContentReader
	destination ContentWriter
	reporter    Reporter
	ledgerStore identifiers.LedgerStore
}

var (
	errSourceReaderMissing      = errors.New(sourceReaderMissingMessageConstant)
	errDestinationWriterMissing = errors.New(destinationWriterMissingMessageConstant)
)

// NewService constructs a Service with the provided dependencies.
func NewService(dependencies ServiceDependencies) (*Service, error) {
	if dependencies.Source == nil {
		return nil, errSourceReaderMissing
	}
	if dependencies.Destination == nil {
		return nil, errDestinationWriterMissing
	}

	logger := dependencies.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	reporter := dependencies.Reporter
	if reporter == nil {
		reporter = discardReporter{}
	}

	return &Service{
		logger:      logger,
		source:      dependencies.Source,
		destination: dependencies.Destination,
		reporter:    reporter,
		ledgerStore: dependencies.LedgerStore,
	}, nil
}

type migrationRun struct {
	service *Service
	logger  *zap.Logger
	options MigrationOptions
	mapper  *identifiers.Mapper
	ledger  identifiers.Ledger
	result  MigrationResult
}

// Execute migrates the space named in options. Page and attachment failures are counted in the result;
// only space-level failures, ledger persistence failures, and cancellation are returned as errors.
func (service *Service) Execute(executionContext context.Context, options MigrationOptions) (MigrationResult, error) {
	sanitizedOptions, validationError := sanitizeOptions(options)
	if validationError != nil {
		return MigrationResult{}, validationError
	}

	logger := service.logger
	if len(sanitizedOptions.RunIdentifier) > 0 {
		logger = logger.With(zap.String(logFieldRunIdentifierConstant, sanitizedOptions.RunIdentifier))
	}

	run := &migrationRun{
		service: service,
		logger:  logger,
		options: sanitizedOptions,
		mapper:  identifiers.NewMapper(),
		result:  MigrationResult{SourceSpaceKey: sanitizedOptions.SpaceKey},
	}

	if ledgerError := run.loadLedger(executionContext); ledgerError != nil {
		return run.result, ledgerError
	}

	sourceSpace, spaceError := service.source.GetSpace(executionContext, sanitizedOptions.SpaceKey)
	if spaceError != nil {
		if isCancellation(spaceError) {
			return run.result, spaceError
		}
		return run.result, FatalPreconditionError{Stage: StageFetchSourceSpace, Cause: spaceError}
	}

	if spaceCreationError := run.ensureDestinationSpace(executionContext, sourceSpace); spaceCreationError != nil {
		return run.result, spaceCreationError
	}

	pages := run.listPages(executionContext)
	if contextError := executionContext.Err(); contextError != nil {
		return run.result, contextError
	}

	if !sanitizedOptions.PreserveSourceOrder {
		pages = OrderPagesByHierarchy(pages)
	}

	logger.Info(
		logMessageMigrationStartedConstant,
		zap.String(logFieldSpaceKeyConstant, run.result.SourceSpaceKey),
		zap.String(logFieldDestinationSpaceKeyConstant, run.result.DestinationSpaceKey),
		zap.Int(logFieldPagesDiscoveredConstant, run.result.PagesDiscovered),
		zap.Bool(logFieldHierarchyOrderingConstant, !sanitizedOptions.PreserveSourceOrder),
		zap.Int(logFieldAttachmentWorkersConstant, sanitizedOptions.AttachmentWorkers),
	)

	for _, page := range pages {
		if contextError := executionContext.Err(); contextError != nil {
			run.result.PageIdentifiers = run.mapper.Entries()
			return run.result, contextError
		}
		if pageError := run.migratePage(executionContext, page); pageError != nil {
			run.result.PageIdentifiers = run.mapper.Entries()
			return run.result, pageError
		}
	}

	run.result.PageIdentifiers = run.mapper.Entries()
	run.logSummary()
	return run.result, nil
}

func sanitizeOptions(options MigrationOptions) (MigrationOptions, error) {
	sanitized := options
	sanitized.SpaceKey = strings.TrimSpace(options.SpaceKey)
	sanitized.DestinationSpaceKey = strings.TrimSpace(options.DestinationSpaceKey)
	sanitized.RunIdentifier = strings.TrimSpace(options.RunIdentifier)

	if len(sanitized.SpaceKey) == 0 {
		return MigrationOptions{}, InvalidInputError{FieldName: spaceKeyFieldNameConstant, Message: requiredValueMessageConstant}
	}
	if sanitized.AttachmentWorkers <= 0 {
		sanitized.AttachmentWorkers = DefaultAttachmentWorkers
	}
	return sanitized, nil
}

func (run *migrationRun) loadLedger(executionContext context.Context) error {
	if run.service.ledgerStore == nil {
		return nil
	}

	ledger, loadError := run.service.ledgerStore.Load(executionContext)
	if loadError != nil {
		if isCancellation(loadError) {
			return loadError
		}
		return FatalPreconditionError{Stage: StageLoadLedger, Cause: loadError}
	}
	if validationError := ledger.Validate(run.options.SpaceKey); validationError != nil {
		return FatalPreconditionError{Stage: StageLoadLedger, Cause: validationError}
	}

	ledger.SourceSpaceKey = run.options.SpaceKey
	run.ledger = ledger
	run.mapper = identifiers.NewMapperFromEntries(ledger.Pages)
	return nil
}

func (run *migrationRun) saveLedger(executionContext context.Context) error {
	if run.service.ledgerStore == nil {
		return nil
	}
	run.ledger.Pages = run.mapper.Snapshot()
	if saveError := run.service.ledgerStore.Save(executionContext, run.ledger); saveError != nil {
		if isCancellation(saveError) {
			return saveError
		}
		return fmt.Errorf(ledgerSaveErrorTemplateConstant, saveError)
	}
	return nil
}

func (run *migrationRun) ensureDestinationSpace(executionContext context.Context, sourceSpace contentservice.Space) error {
	sourceKey := sourceSpace.Key
	if len(strings.TrimSpace(sourceKey)) == 0 {
		sourceKey = run.options.SpaceKey
	}

	requestedKey := run.options.DestinationSpaceKey
	if len(requestedKey) == 0 {
		requestedKey = sourceKey
	}
	destinationKey := NormalizeSpaceKey(requestedKey)
	if len(destinationKey) == 0 {
		return InvalidInputError{FieldName: spaceKeyFieldNameConstant, Message: normalizedKeyEmptyMessageConstant}
	}
	if mismatchError := run.ledger.ValidateDestination(destinationKey); mismatchError != nil {
		return FatalPreconditionError{Stage: StageLoadLedger, Cause: mismatchError}
	}
	run.result.DestinationSpaceKey = destinationKey

	if run.ledger.DestinationSpaceCreated && run.ledger.DestinationSpaceKey == destinationKey {
		run.logger.Info(
			logMessageSpaceReusedConstant,
			zap.String(logFieldSpaceKeyConstant, run.options.SpaceKey),
			zap.String(logFieldDestinationSpaceKeyConstant, destinationKey),
		)
		run.service.reporter.Printf(reportSpaceReusedTemplateConstant, run.options.SpaceKey, destinationKey)
		return nil
	}

	description := sourceSpace.Description
	if len(strings.TrimSpace(description)) == 0 {
		description = DefaultSpaceDescription
	}
	name := sourceSpace.Name
	if len(strings.TrimSpace(name)) == 0 {
		name = destinationKey
	}

	reference, creationError := run.service.destination.CreateSpace(executionContext, contentservice.Space{
		Key:         destinationKey,
		Name:        name,
		Description: description,
	})
	if creationError != nil {
		if isCancellation(creationError) {
			return creationError
		}
		return FatalPreconditionError{Stage: StageCreateDestinationSpace, Cause: creationError}
	}
	if len(reference.Key) > 0 {
		run.result.DestinationSpaceKey = reference.Key
	}
	run.result.SpaceCreated = true

	run.logger.Info(
		logMessageSpaceCreatedConstant,
		zap.String(logFieldSpaceKeyConstant, run.options.SpaceKey),
		zap.String(logFieldDestinationSpaceKeyConstant, run.result.DestinationSpaceKey),
	)
	run.service.reporter.Printf(reportSpaceCreatedTemplateConstant, run.options.SpaceKey, run.result.DestinationSpaceKey)

	run.ledger.DestinationSpaceKey = run.result.DestinationSpaceKey
	run.ledger.DestinationSpaceCreated = true
	return run.saveLedger(executionContext)
}

func (run *migrationRun) listPages(executionContext context.Context) []contentservice.Page {
	pages, listingError := run.service.source.ListPages(executionContext, run.options.SpaceKey)
	run.result.PagesDiscovered = len(pages)
	if listingError == nil || isCancellation(listingError) {
		return pages
	}

	run.result.PageListingFailed = true
	run.logger.Warn(
		logMessagePageListingFailedConstant,
		append(failureFields(listingError),
			zap.String(logFieldSpaceKeyConstant, run.options.SpaceKey),
			zap.Int(logFieldPagesDiscoveredConstant, len(pages)),
		)...,
	)
	run.service.reporter.Printf(reportPageListingFailedTemplateConstant, run.options.SpaceKey, listingError)
	return pages
}

func (run *migrationRun) migratePage(executionContext context.Context, page contentservice.Page) error {
	pageLogger := run.logger.With(
		zap.String(logFieldPageIdentifierConstant, page.Identifier),
		zap.String(logFieldPageTitleConstant, page.Title),
	)

	if run.service.ledgerStore != nil {
		if destinationIdentifier, migrated := run.mapper.Resolve(page.Identifier); migrated {
			run.result.PagesSkipped++
			pageLogger.Info(logMessagePageSkippedConstant, zap.String(logFieldDestinationPageConstant, destinationIdentifier))
			run.service.reporter.Printf(reportPageSkippedTemplateConstant, page.Title, page.Identifier, destinationIdentifier)
			return nil
		}
	}

	parentIdentifier := ""
	if ancestor, hasAncestor := page.NearestAncestor(); hasAncestor {
		resolvedParent, resolved := run.mapper.Resolve(ancestor.Identifier)
		if resolved {
			parentIdentifier = resolvedParent
		} else {
			run.result.OrphanedPages++
			pageLogger.Info(logMessagePageOrphanedConstant, zap.String(logFieldParentIdentifierConstant, ancestor.Identifier))
			run.service.reporter.Printf(reportPageOrphanedTemplateConstant, page.Title, ancestor.Identifier)
		}
	}

	destinationIdentifier, creationError := run.service.destination.CreatePage(executionContext, contentservice.PageDraft{
		SpaceKey:         run.result.DestinationSpaceKey,
		Title:            page.Title,
		Body:             page.Body,
		ParentIdentifier: parentIdentifier,
	})
	if creationError != nil {
		if isCancellation(creationError) {
			return creationError
		}
		run.result.PagesFailed++
		pageLogger.Warn(logMessagePageFailedConstant, failureFields(creationError)...)
		run.service.reporter.Printf(reportPageFailedTemplateConstant, page.Title, creationError)
		return nil
	}

	run.mapper.Record(page.Identifier, destinationIdentifier)
	run.result.PagesCreated++
	pageLogger.Info(
		logMessagePageCreatedConstant,
		zap.String(logFieldDestinationPageConstant, destinationIdentifier),
		zap.String(logFieldParentIdentifierConstant, parentIdentifier),
	)
	run.service.reporter.Printf(reportPageCreatedTemplateConstant, page.Title, page.Identifier, destinationIdentifier)

	if saveError := run.saveLedger(executionContext); saveError != nil {
		return saveError
	}

	outcome, transferError := run.service.transferAttachments(executionContext, pageLogger, attachmentTransfer{
		sourcePageIdentifier:      page.Identifier,
		destinationPageIdentifier: destinationIdentifier,
		workers:                   run.options.AttachmentWorkers,
	})
	run.result.AttachmentsUploaded += outcome.uploaded
	run.result.AttachmentsFailed += outcome.failed
	if outcome.listingFailed {
		run.result.AttachmentListingsFailed++
	}
	return transferError
}

func (run *migrationRun) logSummary() {
	run.logger.Info(
		logMessageMigrationFinishedConstant,
		zap.String(logFieldSpaceKeyConstant, run.result.SourceSpaceKey),
		zap.String(logFieldDestinationSpaceKeyConstant, run.result.DestinationSpaceKey),
		zap.Int(logFieldPagesDiscoveredConstant, run.result.PagesDiscovered),
		zap.Int(logFieldPagesCreatedConstant, run.result.PagesCreated),
		zap.Int(logFieldPagesSkippedConstant, run.result.PagesSkipped),
		zap.Int(logFieldPagesFailedConstant, run.result.PagesFailed),
		zap.Int(logFieldOrphanedPagesConstant, run.result.OrphanedPages),
		zap.Int(logFieldAttachmentsUploadedConstant, run.result.AttachmentsUploaded),
		zap.Int(logFieldAttachmentsFailedConstant, run.result.AttachmentsFailed),
	)
	run.service.reporter.Printf(
		reportSummaryTemplateConstant,
		run.result.SourceSpaceKey,
		run.result.DestinationSpaceKey,
		run.result.PagesCreated,
		run.result.PagesSkipped,
		run.result.PagesFailed,
		run.result.OrphanedPages,
		run.result.AttachmentsUploaded,
		run.result.AttachmentsFailed,
	)
}

func failureFields(failure error) []zap.Field {
	fields := []zap.Field{zap.Error(failure)}
	if statusCode := contentservice.StatusCodeOf(failure); statusCode > 0 {
		fields = append(fields, zap.Int(logFieldStatusCodeConstant, statusCode))
	}
	if failureKind, classified := contentservice.FailureKindOf(failure); classified {
		fields = append(fields, zap.String(logFieldFailureKindConstant, string(failureKind)))
	}
	if responseBody := contentservice.ResponseBodyOf(failure); len(responseBody) > 0 {
		fields = append(fields, zap.String(logFieldResponseBodyConstant, responseBody))
	}
	return fields
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
