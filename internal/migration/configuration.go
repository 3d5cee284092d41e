package migration

import (
	"strings"

	"github.com/temirov/wikimigrate/internal/contentservice"
	"github.com/temirov/wikimigrate/internal/credentials"
)

const (
	// DefaultSourceTokenSource names the environment variable holding the source API token.
	DefaultSourceTokenSource = "env:WIKIMIGRATE_SOURCE_TOKEN"
	// DefaultDestinationTokenSource names the environment variable holding the destination API token.
	DefaultDestinationTokenSource = "env:WIKIMIGRATE_DESTINATION_TOKEN"

	configurationKeySeparatorConstant           = "."
	spaceKeyConfigurationKeyConstant            = "space_key"
	destinationSpaceKeyConfigurationKeyConstant = "destination_space_key"
	pageSizeConfigurationKeyConstant            = "page_size"
	attachmentWorkersConfigurationKeyConstant   = "attachment_workers"
	preserveSourceOrderConfigurationKeyConstant = "preserve_source_order"
	ledgerPathConfigurationKeyConstant          = "ledger_path"
	sourceConfigurationKeyConstant              = "source"
	destinationConfigurationKeyConstant         = "destination"
	baseURLConfigurationKeyConstant             = "base_url"
	accountConfigurationKeyConstant             = "account"
	tokenSourceConfigurationKeyConstant         = "token_source"
)

// CommandConfiguration captures persisted configuration for the migrate command.
type CommandConfiguration struct {
	SpaceKey            string                            `mapstructure:"space_key"`
	DestinationSpaceKey string                            `mapstructure:"destination_space_key"`
	PageSize            int                               `mapstructure:"page_size"`
	AttachmentWorkers   int                               `mapstructure:"attachment_workers"`
	PreserveSourceOrder bool                              `mapstructure:"preserve_source_order"`
	LedgerPath          string                            `mapstructure:"ledger_path"`
	Source              credentials.EndpointConfiguration `mapstructure:"source"`
	Destination         credentials.EndpointConfiguration `mapstructure:"destination"`
}

// DefaultCommandConfiguration returns baseline configuration values for the migrate command.
func DefaultCommandConfiguration() CommandConfiguration {
	return CommandConfiguration{
		PageSize:          contentservice.DefaultPageSize,
		AttachmentWorkers: DefaultAttachmentWorkers,
		Source:            credentials.EndpointConfiguration{TokenSource: DefaultSourceTokenSource},
		Destination:       credentials.EndpointConfiguration{TokenSource: DefaultDestinationTokenSource},
	}
}

// DefaultConfigurationValues returns the default configuration keyed beneath the provided prefix.
func DefaultConfigurationValues(prefix string) map[string]any {
	defaults := DefaultCommandConfiguration()
	key := func(segments ...string) string {
		return strings.Join(append([]string{prefix}, segments...), configurationKeySeparatorConstant)
	}

	return map[string]any{
		key(spaceKeyConfigurationKeyConstant):                                         defaults.SpaceKey,
		key(destinationSpaceKeyConfigurationKeyConstant):                              defaults.DestinationSpaceKey,
		key(pageSizeConfigurationKeyConstant):                                         defaults.PageSize,
		key(attachmentWorkersConfigurationKeyConstant):                                defaults.AttachmentWorkers,
		key(preserveSourceOrderConfigurationKeyConstant):                              defaults.PreserveSourceOrder,
		key(ledgerPathConfigurationKeyConstant):                                       defaults.LedgerPath,
		key(sourceConfigurationKeyConstant, baseURLConfigurationKeyConstant):          defaults.Source.BaseURL,
		key(sourceConfigurationKeyConstant, accountConfigurationKeyConstant):          defaults.Source.Account,
		key(sourceConfigurationKeyConstant, tokenSourceConfigurationKeyConstant):      defaults.Source.TokenSource,
		key(destinationConfigurationKeyConstant, baseURLConfigurationKeyConstant):     defaults.Destination.BaseURL,
		key(destinationConfigurationKeyConstant, accountConfigurationKeyConstant):     defaults.Destination.Account,
		key(destinationConfigurationKeyConstant, tokenSourceConfigurationKeyConstant): defaults.Destination.TokenSource,
	}
}

// Sanitize trims configured values and restores defaults for non-positive sizes.
func (configuration CommandConfiguration) Sanitize() CommandConfiguration {
	sanitized := configuration
	sanitized.SpaceKey = strings.TrimSpace(configuration.SpaceKey)
	sanitized.DestinationSpaceKey = strings.TrimSpace(configuration.DestinationSpaceKey)
	sanitized.LedgerPath = strings.TrimSpace(configuration.LedgerPath)
	sanitized.Source = configuration.Source.Sanitize()
	sanitized.Destination = configuration.Destination.Sanitize()

	if sanitized.PageSize <= 0 {
		sanitized.PageSize = contentservice.DefaultPageSize
	}
	if sanitized.AttachmentWorkers <= 0 {
		sanitized.AttachmentWorkers = DefaultAttachmentWorkers
	}
	if len(sanitized.Source.TokenSource) == 0 {
		sanitized.Source.TokenSource = DefaultSourceTokenSource
	}
	if len(sanitized.Destination.TokenSource) == 0 {
		sanitized.Destination.TokenSource = DefaultDestinationTokenSource
	}
	return sanitized
}
