package migration

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/temirov/wikimigrate/internal/contentservice"
	"github.com/temirov/wikimigrate/internal/credentials"
	"github.com/temirov/wikimigrate/internal/identifiers"
	"github.com/temirov/wikimigrate/internal/utils"
)

const (
	commandUseConstant                       = "migrate"
	commandShortDescriptionConstant          = "Copy a space with its pages and attachments to another content service"
	commandLongDescriptionConstant           = "migrate creates the destination space, recreates every source page beneath its migrated parent, and re-uploads page attachments. Page and attachment failures are reported and skipped; failures to read the source space or create the destination space abort the run."
	spaceFlagNameConstant                    = "space"
	spaceFlagUsageConstant                   = "Key of the source space to migrate"
	destinationSpaceFlagNameConstant         = "destination-space"
	destinationSpaceFlagUsageConstant        = "Key for the destination space (defaults to the normalized source key)"
	sourceURLFlagNameConstant                = "source-url"
	sourceURLFlagUsageConstant               = "Base URL of the source content service"
	sourceAccountFlagNameConstant            = "source-account"
	sourceAccountFlagUsageConstant           = "Account used to authenticate against the source"
	sourceTokenSourceFlagNameConstant        = "source-token-source"
	sourceTokenSourceFlagUsageConstant       = "Source API token location (env:NAME or file:/path)"
	destinationURLFlagNameConstant           = "destination-url"
	destinationURLFlagUsageConstant          = "Base URL of the destination content service"
	destinationAccountFlagNameConstant       = "destination-account"
	destinationAccountFlagUsageConstant      = "Account used to authenticate against the destination"
	destinationTokenSourceFlagNameConstant   = "destination-token-source"
	destinationTokenSourceFlagUsageConstant  = "Destination API token location (env:NAME or file:/path)"
	attachmentWorkersFlagNameConstant        = "attachment-workers"
	attachmentWorkersFlagUsageConstant       = "Number of attachments transferred concurrently per page"
	ledgerFlagNameConstant                   = "ledger"
	ledgerFlagUsageConstant                  = "Path of a YAML identifier ledger that makes repeated runs skip migrated pages"
	preserveSourceOrderFlagNameConstant      = "preserve-source-order"
	preserveSourceOrderFlagUsageConstant     = "Create pages in source listing order instead of parent-before-child order"
	sourceSideConstant                       = "source"
	destinationSideConstant                  = "destination"
	endpointResolutionErrorTemplateConstant  = "unable to resolve %s endpoint: %w"
	clientCreationErrorTemplateConstant      = "unable to construct %s client: %w"
	ledgerCreationErrorTemplateConstant      = "unable to open identifier ledger: %w"
	migrationExecutionErrorTemplateConstant  = "space migration failed: %w"
	logMessageMigrationFailedConstant        = "Space migration failed"
	logMessageMigrationSummaryConstant       = "Space migration completed"
	logFieldLedgerPathConstant               = "ledger_path"
	logFieldSourceBaseURLConstant            = "source_url"
	logFieldDestinationBaseURLConstant       = "destination_url"
	logFieldPageListingFailedConstant        = "page_listing_failed"
	logFieldAttachmentListingsFailedConstant = "attachment_listings_failed"
	logFieldSpaceCreatedConstant             = "space_created"
	logMessageMigrationConfigurationConstant = "Migration configuration resolved"
)

// LoggerProvider supplies a zap logger instance.
type LoggerProvider func() *zap.Logger

// ServiceProvider constructs a migration executor from dependencies.
type ServiceProvider func(dependencies ServiceDependencies) (MigrationExecutor, error)

// RunIdentifierProvider supplies the identifier attached to every log entry of a run.
type RunIdentifierProvider func() string

// CommandBuilder assembles the migrate Cobra command.
type CommandBuilder struct {
	LoggerProvider        LoggerProvider
	ConfigurationProvider func() CommandConfiguration
	ServiceProvider       ServiceProvider
	HTTPClient            contentservice.HTTPClient
	TokenResolver         credentials.TokenResolver
	LedgerFileSystem      identifiers.FileSystem
	RunIdentifierProvider RunIdentifierProvider
}

// Build constructs the migrate command.
func (builder *CommandBuilder) Build() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:           commandUseConstant,
		Short:         commandShortDescriptionConstant,
		Long:          commandLongDescriptionConstant,
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.NoArgs,
		RunE:          builder.run,
	}

	flags := command.Flags()
	flags.String(spaceFlagNameConstant, "", spaceFlagUsageConstant)
	flags.String(destinationSpaceFlagNameConstant, "", destinationSpaceFlagUsageConstant)
	flags.String(sourceURLFlagNameConstant, "", sourceURLFlagUsageConstant)
	flags.String(sourceAccountFlagNameConstant, "", sourceAccountFlagUsageConstant)
	flags.String(sourceTokenSourceFlagNameConstant, DefaultSourceTokenSource, sourceTokenSourceFlagUsageConstant)
	flags.String(destinationURLFlagNameConstant, "", destinationURLFlagUsageConstant)
	flags.String(destinationAccountFlagNameConstant, "", destinationAccountFlagUsageConstant)
	flags.String(destinationTokenSourceFlagNameConstant, DefaultDestinationTokenSource, destinationTokenSourceFlagUsageConstant)
	flags.Int(attachmentWorkersFlagNameConstant, DefaultAttachmentWorkers, attachmentWorkersFlagUsageConstant)
	flags.String(ledgerFlagNameConstant, "", ledgerFlagUsageConstant)
	flags.Bool(preserveSourceOrderFlagNameConstant, false, preserveSourceOrderFlagUsageConstant)

	return command, nil
}

func (builder *CommandBuilder) run(command *cobra.Command, arguments []string) error {
	configuration := builder.parseConfiguration(command)
	executionContext := command.Context()

	contextAccessor := utils.NewCommandContextAccessor()
	debugEnabled := false
	if logLevel, available := contextAccessor.LogLevel(executionContext); available {
		debugEnabled = strings.EqualFold(logLevel, string(utils.LogLevelDebug))
	}
	logger := builder.resolveLogger(debugEnabled)

	runIdentifier := builder.resolveRunIdentifier(executionContext, contextAccessor)
	executionContext = contextAccessor.WithRunIdentifier(executionContext, runIdentifier)
	command.SetContext(executionContext)
	runLogger := logger.With(zap.String(logFieldRunIdentifierConstant, runIdentifier))

	sourceEndpoint, sourceError := credentials.ResolveEndpoint(executionContext, sourceSideConstant, configuration.Source, builder.TokenResolver)
	if sourceError != nil {
		return fmt.Errorf(endpointResolutionErrorTemplateConstant, sourceSideConstant, sourceError)
	}
	destinationEndpoint, destinationError := credentials.ResolveEndpoint(executionContext, destinationSideConstant, configuration.Destination, builder.TokenResolver)
	if destinationError != nil {
		return fmt.Errorf(endpointResolutionErrorTemplateConstant, destinationSideConstant, destinationError)
	}

	sourceClient, sourceClientError := builder.newClient(runLogger, sourceEndpoint, configuration.PageSize)
	if sourceClientError != nil {
		return fmt.Errorf(clientCreationErrorTemplateConstant, sourceSideConstant, sourceClientError)
	}
	destinationClient, destinationClientError := builder.newClient(runLogger, destinationEndpoint, configuration.PageSize)
	if destinationClientError != nil {
		return fmt.Errorf(clientCreationErrorTemplateConstant, destinationSideConstant, destinationClientError)
	}

	dependencies := ServiceDependencies{
		Logger:      logger,
		Source:      sourceClient,
		Destination: destinationClient,
		Reporter:    NewWriterReporter(utils.NewFlushingWriter(command.OutOrStdout())),
	}
	if len(configuration.LedgerPath) > 0 {
		ledgerStore, ledgerError := identifiers.NewFileLedgerStore(builder.LedgerFileSystem, configuration.LedgerPath)
		if ledgerError != nil {
			return fmt.Errorf(ledgerCreationErrorTemplateConstant, ledgerError)
		}
		dependencies.LedgerStore = ledgerStore
	}

	runLogger.Debug(
		logMessageMigrationConfigurationConstant,
		zap.String(logFieldSpaceKeyConstant, configuration.SpaceKey),
		zap.String(logFieldSourceBaseURLConstant, sourceClient.BaseURL()),
		zap.String(logFieldDestinationBaseURLConstant, destinationClient.BaseURL()),
		zap.String(logFieldLedgerPathConstant, configuration.LedgerPath),
	)

	service, serviceError := builder.resolveService(dependencies)
	if serviceError != nil {
		return serviceError
	}

	result, migrationError := service.Execute(executionContext, MigrationOptions{
		SpaceKey:            configuration.SpaceKey,
		DestinationSpaceKey: configuration.DestinationSpaceKey,
		AttachmentWorkers:   configuration.AttachmentWorkers,
		PreserveSourceOrder: configuration.PreserveSourceOrder,
		RunIdentifier:       runIdentifier,
	})
	if migrationError != nil {
		if isCancellation(migrationError) {
			return migrationError
		}
		runLogger.Error(logMessageMigrationFailedConstant, zap.String(logFieldSpaceKeyConstant, configuration.SpaceKey), zap.Error(migrationError))
		return fmt.Errorf(migrationExecutionErrorTemplateConstant, migrationError)
	}

	builder.logSummary(runLogger, result)
	return nil
}

func (builder *CommandBuilder) parseConfiguration(command *cobra.Command) CommandConfiguration {
	configuration := builder.resolveConfiguration()
	flags := command.Flags()

	stringOverrides := []struct {
		flagName string
		target   *string
	}{
		{flagName: spaceFlagNameConstant, target: &configuration.SpaceKey},
		{flagName: destinationSpaceFlagNameConstant, target: &configuration.DestinationSpaceKey},
		{flagName: sourceURLFlagNameConstant, target: &configuration.Source.BaseURL},
		{flagName: sourceAccountFlagNameConstant, target: &configuration.Source.Account},
		{flagName: sourceTokenSourceFlagNameConstant, target: &configuration.Source.TokenSource},
		{flagName: destinationURLFlagNameConstant, target: &configuration.Destination.BaseURL},
		{flagName: destinationAccountFlagNameConstant, target: &configuration.Destination.Account},
		{flagName: destinationTokenSourceFlagNameConstant, target: &configuration.Destination.TokenSource},
		{flagName: ledgerFlagNameConstant, target: &configuration.LedgerPath},
	}
	for _, override := range stringOverrides {
		if flags.Changed(override.flagName) {
			flagValue, _ := flags.GetString(override.flagName)
			*override.target = flagValue
		}
	}

	if flags.Changed(attachmentWorkersFlagNameConstant) {
		configuration.AttachmentWorkers, _ = flags.GetInt(attachmentWorkersFlagNameConstant)
	}
	if flags.Changed(preserveSourceOrderFlagNameConstant) {
		configuration.PreserveSourceOrder, _ = flags.GetBool(preserveSourceOrderFlagNameConstant)
	}

	return configuration.Sanitize()
}

func (builder *CommandBuilder) resolveConfiguration() CommandConfiguration {
	if builder.ConfigurationProvider == nil {
		return DefaultCommandConfiguration()
	}
	return builder.ConfigurationProvider()
}

func (builder *CommandBuilder) resolveLogger(enableDebug bool) *zap.Logger {
	var logger *zap.Logger
	if builder.LoggerProvider != nil {
		logger = builder.LoggerProvider()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if enableDebug {
		logger = logger.WithOptions(zap.IncreaseLevel(zapcore.DebugLevel))
	}
	return logger
}

// resolveRunIdentifier prefers an identifier already carried by the command context,
// then the provider, then a generated UUID.
func (builder *CommandBuilder) resolveRunIdentifier(executionContext context.Context, contextAccessor utils.CommandContextAccessor) string {
	if runIdentifier, available := contextAccessor.RunIdentifier(executionContext); available {
		if trimmedIdentifier := strings.TrimSpace(runIdentifier); len(trimmedIdentifier) > 0 {
			return trimmedIdentifier
		}
	}
	if builder.RunIdentifierProvider != nil {
		if runIdentifier := strings.TrimSpace(builder.RunIdentifierProvider()); len(runIdentifier) > 0 {
			return runIdentifier
		}
	}
	return uuid.NewString()
}

func (builder *CommandBuilder) newClient(logger *zap.Logger, endpoint credentials.ResolvedEndpoint, pageSize int) (*contentservice.Client, error) {
	return contentservice.NewClient(logger, builder.HTTPClient, contentservice.ClientConfiguration{
		Endpoint: contentservice.Endpoint{
			BaseURL: endpoint.BaseURL,
			Account: endpoint.Account,
			Token:   endpoint.Token,
		},
		PageSize: pageSize,
	})
}

func (builder *CommandBuilder) resolveService(dependencies ServiceDependencies) (MigrationExecutor, error) {
	if builder.ServiceProvider != nil {
		return builder.ServiceProvider(dependencies)
	}
	return NewService(dependencies)
}

func (builder *CommandBuilder) logSummary(logger *zap.Logger, result MigrationResult) {
	logger.Info(
		logMessageMigrationSummaryConstant,
		zap.String(logFieldSpaceKeyConstant, result.SourceSpaceKey),
		zap.String(logFieldDestinationSpaceKeyConstant, result.DestinationSpaceKey),
		zap.Bool(logFieldSpaceCreatedConstant, result.SpaceCreated),
		zap.Int(logFieldPagesCreatedConstant, result.PagesCreated),
		zap.Int(logFieldPagesFailedConstant, result.PagesFailed),
		zap.Int(logFieldAttachmentsFailedConstant, result.AttachmentsFailed),
		zap.Int(logFieldAttachmentListingsFailedConstant, result.AttachmentListingsFailed),
		zap.Bool(logFieldPageListingFailedConstant, result.PageListingFailed),
	)
}
