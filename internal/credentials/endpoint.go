package credentials

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

const (
	baseURLFieldNameConstant         = "base_url"
	accountFieldNameConstant         = "account"
	tokenSourceFieldNameConstant     = "token_source"
	requiredValueMessageConstant     = "value required"
	invalidBaseURLMessageConstant    = "must be an absolute http(s) URL"
	invalidEndpointTemplateConstant  = "%s %s: %s"
	tokenSourceParseErrorTemplate    = "%s token source: %w"
	tokenResolutionErrorTemplate     = "%s token: %w"
	httpSchemeConstant               = "http"
	httpsSchemeConstant              = "https"
	baseURLTrailingSeparatorConstant = "/"
)

// EndpointConfiguration is the persisted description of one content service endpoint.
type EndpointConfiguration struct {
	BaseURL     string `mapstructure:"base_url"`
	Account     string `mapstructure:"account"`
	TokenSource string `mapstructure:"token_source"`
}

// Sanitize trims configured values and strips trailing slashes from the base URL.
func (configuration EndpointConfiguration) Sanitize() EndpointConfiguration {
	return EndpointConfiguration{
		BaseURL:     strings.TrimRight(strings.TrimSpace(configuration.BaseURL), baseURLTrailingSeparatorConstant),
		Account:     strings.TrimSpace(configuration.Account),
		TokenSource: strings.TrimSpace(configuration.TokenSource),
	}
}

// ResolvedEndpoint carries everything a content service client needs to authenticate.
type ResolvedEndpoint struct {
	BaseURL string
	Account string
	Token   string
}

// InvalidEndpointError reports a missing or malformed endpoint setting.
type InvalidEndpointError struct {
	Side      string
	FieldName string
	Message   string
}

// Error describes the invalid endpoint setting.
func (endpointError InvalidEndpointError) Error() string {
	return fmt.Sprintf(invalidEndpointTemplateConstant, endpointError.Side, endpointError.FieldName, endpointError.Message)
}

// ResolveEndpoint validates the configuration for the named side (source or destination)
// and reads its API token through the resolver.
func ResolveEndpoint(resolutionContext context.Context, side string, configuration EndpointConfiguration, resolver TokenResolver) (ResolvedEndpoint, error) {
	sanitized := configuration.Sanitize()

	if len(sanitized.BaseURL) == 0 {
		return ResolvedEndpoint{}, InvalidEndpointError{Side: side, FieldName: baseURLFieldNameConstant, Message: requiredValueMessageConstant}
	}
	parsedURL, parseError := url.Parse(sanitized.BaseURL)
	if parseError != nil || len(parsedURL.Host) == 0 || (parsedURL.Scheme != httpSchemeConstant && parsedURL.Scheme != httpsSchemeConstant) {
		return ResolvedEndpoint{}, InvalidEndpointError{Side: side, FieldName: baseURLFieldNameConstant, Message: invalidBaseURLMessageConstant}
	}
	if len(sanitized.Account) == 0 {
		return ResolvedEndpoint{}, InvalidEndpointError{Side: side, FieldName: accountFieldNameConstant, Message: requiredValueMessageConstant}
	}
	if len(sanitized.TokenSource) == 0 {
		return ResolvedEndpoint{}, InvalidEndpointError{Side: side, FieldName: tokenSourceFieldNameConstant, Message: requiredValueMessageConstant}
	}

	tokenSource, tokenSourceError := ParseTokenSource(sanitized.TokenSource)
	if tokenSourceError != nil {
		return ResolvedEndpoint{}, fmt.Errorf(tokenSourceParseErrorTemplate, side, tokenSourceError)
	}

	if resolver == nil {
		resolver = NewTokenResolver(nil, nil)
	}
	token, tokenError := resolver.ResolveToken(resolutionContext, tokenSource)
	if tokenError != nil {
		return ResolvedEndpoint{}, fmt.Errorf(tokenResolutionErrorTemplate, side, tokenError)
	}

	return ResolvedEndpoint{
		BaseURL: sanitized.BaseURL,
		Account: sanitized.Account,
		Token:   token,
	}, nil
}
