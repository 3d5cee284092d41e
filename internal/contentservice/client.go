package contentservice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

const (
	spaceEndpointTemplateConstant             = "%s/rest/api/space/%s"
	spaceCollectionEndpointTemplateConstant   = "%s/rest/api/space"
	contentCollectionEndpointTemplateConstant = "%s/rest/api/content"
	attachmentEndpointTemplateConstant        = "%s/rest/api/content/%s/child/attachment"
	expandQueryParameterConstant              = "expand"
	spaceKeyQueryParameterConstant            = "spaceKey"
	limitQueryParameterConstant               = "limit"
	spaceDescriptionExpansionConstant         = "description.plain"
	pageListingExpansionConstant              = "body.storage,ancestors"
	attachmentListingExpansionConstant        = "metadata,extensions"
	plainRepresentationConstant               = "plain"
	pageContentTypeConstant                   = "page"
	acceptHeaderNameConstant                  = "Accept"
	contentTypeHeaderNameConstant             = "Content-Type"
	contentDispositionHeaderNameConstant      = "Content-Disposition"
	csrfProtectionHeaderNameConstant          = "X-Atlassian-Token"
	csrfProtectionBypassValueConstant         = "no-check"
	jsonMediaTypeConstant                     = "application/json"
	anyMediaTypeConstant                      = "*/*"
	formDataDispositionConstant               = "form-data"
	attachmentFormFieldNameConstant           = "file"
	dispositionNameParameterConstant          = "name"
	dispositionFilenameParameterConstant      = "filename"
	absoluteURLPrefixHTTPConstant             = "http://"
	absoluteURLPrefixHTTPSConstant            = "https://"
	pathSeparatorConstant                     = "/"
	spaceKeyFieldNameConstant                 = "space_key"
	pageIdentifierFieldNameConstant           = "page_id"
	pageTitleFieldNameConstant                = "title"
	fileNameFieldNameConstant                 = "file_name"
	downloadPathFieldNameConstant             = "download_path"
	requiredValueMessageConstant              = "value required"
	requestLogMessageConstant                 = "content service request"
	requestFailedLogMessageConstant           = "content service request failed"
	logFieldOperationConstant                 = "operation"
	logFieldMethodConstant                    = "method"
	logFieldURLConstant                       = "url"
	logFieldStatusCodeConstant                = "status_code"
)

// HTTPClient is the subset of *http.Client used by the content service client.
type HTTPClient interface {
	Do(request *http.Request) (*http.Response, error)
}

// Endpoint holds the location and credentials of one content service.
type Endpoint struct {
	BaseURL string
	Account string
	Token   string
}

// ClientConfiguration configures a Client.
type ClientConfiguration struct {
	Endpoint Endpoint
	PageSize int
}

// Client issues typed requests against one content service endpoint.
type Client struct {
	logger     *zap.Logger
	httpClient HTTPClient
	endpoint   Endpoint
	pageSize   int
}

// NewClient constructs a Client. A nil httpClient selects http.DefaultClient.
func NewClient(logger *zap.Logger, httpClient HTTPClient, configuration ClientConfiguration) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(configuration.Endpoint.BaseURL), pathSeparatorConstant)
	if len(baseURL) == 0 {
		return nil, ErrBaseURLMissing
	}

	if logger == nil {
		logger = zap.NewNop()
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	pageSize := configuration.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	endpoint := configuration.Endpoint
	endpoint.BaseURL = baseURL

	return &Client{
		logger:     logger,
		httpClient: httpClient,
		endpoint:   endpoint,
		pageSize:   pageSize,
	}, nil
}

// BaseURL reports the normalized base URL of the endpoint.
func (client *Client) BaseURL() string {
	return client.endpoint.BaseURL
}

// GetSpace reads a space together with its plain-text description.
func (client *Client) GetSpace(executionContext context.Context, spaceKey string) (Space, error) {
	trimmedKey := strings.TrimSpace(spaceKey)
	if len(trimmedKey) == 0 {
		return Space{}, InvalidInputError{FieldName: spaceKeyFieldNameConstant, Message: requiredValueMessageConstant}
	}

	query := url.Values{}
	query.Set(expandQueryParameterConstant, spaceDescriptionExpansionConstant)
	requestURL := fmt.Sprintf(spaceEndpointTemplateConstant, client.endpoint.BaseURL, url.PathEscape(trimmedKey)) + "?" + query.Encode()

	responseBody, requestError := client.execute(executionContext, requestSpecification{
		operation: OperationGetSpace,
		method:    http.MethodGet,
		url:       requestURL,
	})
	if requestError != nil {
		return Space{}, requestError
	}

	var response spaceWire
	if decodingError := json.Unmarshal(responseBody, &response); decodingError != nil {
		return Space{}, ResponseDecodingError{Operation: OperationGetSpace, Cause: decodingError}
	}

	return Space{
		Key:         response.Key,
		Name:        response.Name,
		Description: response.Description.Plain.Value,
	}, nil
}

// CreateSpace creates a space with a plain-text description.
func (client *Client) CreateSpace(executionContext context.Context, space Space) (SpaceReference, error) {
	if len(strings.TrimSpace(space.Key)) == 0 {
		return SpaceReference{}, InvalidInputError{FieldName: spaceKeyFieldNameConstant, Message: requiredValueMessageConstant}
	}

	payload := spaceWire{Key: space.Key, Name: space.Name}
	payload.Description.Plain.Value = space.Description
	payload.Description.Plain.Representation = plainRepresentationConstant

	payloadBytes, encodingError := json.Marshal(payload)
	if encodingError != nil {
		return SpaceReference{}, PayloadEncodingError{Operation: OperationCreateSpace, Cause: encodingError}
	}

	responseBody, requestError := client.execute(executionContext, requestSpecification{
		operation:   OperationCreateSpace,
		method:      http.MethodPost,
		url:         fmt.Sprintf(spaceCollectionEndpointTemplateConstant, client.endpoint.BaseURL),
		body:        payloadBytes,
		contentType: jsonMediaTypeConstant,
	})
	if requestError != nil {
		return SpaceReference{}, requestError
	}

	reference := SpaceReference{Key: space.Key, Name: space.Name}
	var response spaceWire
	if len(bytes.TrimSpace(responseBody)) > 0 {
		if decodingError := json.Unmarshal(responseBody, &response); decodingError != nil {
			return SpaceReference{}, ResponseDecodingError{Operation: OperationCreateSpace, Cause: decodingError}
		}
		if len(response.Key) > 0 {
			reference.Key = response.Key
		}
		if len(response.Name) > 0 {
			reference.Name = response.Name
		}
	}

	return reference, nil
}

// ListPages returns every page of a space, following pagination links until the server reports no more.
// When a request fails part-way the pages gathered so far are returned alongside the error.
func (client *Client) ListPages(executionContext context.Context, spaceKey string) ([]Page, error) {
	pages := make([]Page, 0, client.pageSize)
	for page, iterationError := range client.IteratePages(executionContext, spaceKey) {
		if iterationError != nil {
			return pages, iterationError
		}
		pages = append(pages, page)
	}
	return pages, nil
}

// CreatePage creates a page, optionally beneath a parent, and returns the new page identifier.
func (client *Client) CreatePage(executionContext context.Context, draft PageDraft) (string, error) {
	if len(strings.TrimSpace(draft.SpaceKey)) == 0 {
		return "", InvalidInputError{FieldName: spaceKeyFieldNameConstant, Message: requiredValueMessageConstant}
	}
	if len(strings.TrimSpace(draft.Title)) == 0 {
		return "", InvalidInputError{FieldName: pageTitleFieldNameConstant, Message: requiredValueMessageConstant}
	}

	representation := strings.TrimSpace(draft.Body.Representation)
	if len(representation) == 0 {
		representation = DefaultBodyRepresentation
	}

	payload := pageCreationWire{Type: pageContentTypeConstant, Title: draft.Title}
	payload.Space.Key = draft.SpaceKey
	payload.Body.Storage.Value = draft.Body.Value
	payload.Body.Storage.Representation = representation
	if parentIdentifier := strings.TrimSpace(draft.ParentIdentifier); len(parentIdentifier) > 0 {
		payload.Ancestors = []identifierWire{{Identifier: parentIdentifier}}
	}

	payloadBytes, encodingError := json.Marshal(payload)
	if encodingError != nil {
		return "", PayloadEncodingError{Operation: OperationCreatePage, Cause: encodingError}
	}

	responseBody, requestError := client.execute(executionContext, requestSpecification{
		operation:   OperationCreatePage,
		method:      http.MethodPost,
		url:         fmt.Sprintf(contentCollectionEndpointTemplateConstant, client.endpoint.BaseURL),
		body:        payloadBytes,
		contentType: jsonMediaTypeConstant,
	})
	if requestError != nil {
		return "", requestError
	}

	var response struct {
		Identifier flexibleIdentifier `json:"id"`
	}
	if decodingError := json.Unmarshal(responseBody, &response); decodingError != nil {
		return "", ResponseDecodingError{Operation: OperationCreatePage, Cause: decodingError}
	}
	if len(response.Identifier) == 0 {
		return "", ResponseDecodingError{Operation: OperationCreatePage, Cause: errMissingIdentifier}
	}

	return string(response.Identifier), nil
}

// ListAttachments returns the attachments of a page. A page without attachments yields an empty slice.
func (client *Client) ListAttachments(executionContext context.Context, pageIdentifier string) ([]AttachmentReference, error) {
	trimmedIdentifier := strings.TrimSpace(pageIdentifier)
	if len(trimmedIdentifier) == 0 {
		return nil, InvalidInputError{FieldName: pageIdentifierFieldNameConstant, Message: requiredValueMessageConstant}
	}

	query := url.Values{}
	query.Set(expandQueryParameterConstant, attachmentListingExpansionConstant)
	query.Set(limitQueryParameterConstant, strconv.Itoa(client.pageSize))
	firstURL := fmt.Sprintf(attachmentEndpointTemplateConstant, client.endpoint.BaseURL, url.PathEscape(trimmedIdentifier)) + "?" + query.Encode()

	attachments := []AttachmentReference{}
	for attachment, iterationError := range iterateCollection(executionContext, client, OperationListAttachments, firstURL, convertAttachment) {
		if iterationError != nil {
			return attachments, iterationError
		}
		attachments = append(attachments, attachment)
	}
	return attachments, nil
}

// DownloadAttachment fetches the binary content of an attachment.
func (client *Client) DownloadAttachment(executionContext context.Context, attachment AttachmentReference) ([]byte, error) {
	if len(strings.TrimSpace(attachment.DownloadPath)) == 0 {
		return nil, InvalidInputError{FieldName: downloadPathFieldNameConstant, Message: requiredValueMessageConstant}
	}

	return client.execute(executionContext, requestSpecification{
		operation: OperationDownloadAttachment,
		method:    http.MethodGet,
		url:       client.resolveLink(attachment.DownloadPath),
		accept:    anyMediaTypeConstant,
	})
}

// UploadAttachment attaches a file to a page using a multipart form upload.
func (client *Client) UploadAttachment(executionContext context.Context, upload AttachmentUpload) error {
	trimmedIdentifier := strings.TrimSpace(upload.PageIdentifier)
	if len(trimmedIdentifier) == 0 {
		return InvalidInputError{FieldName: pageIdentifierFieldNameConstant, Message: requiredValueMessageConstant}
	}
	if len(strings.TrimSpace(upload.FileName)) == 0 {
		return InvalidInputError{FieldName: fileNameFieldNameConstant, Message: requiredValueMessageConstant}
	}

	mediaType := strings.TrimSpace(upload.MediaType)
	if len(mediaType) == 0 {
		mediaType = DefaultAttachmentMediaType
	}

	var formBuffer bytes.Buffer
	formWriter := multipart.NewWriter(&formBuffer)
	partHeader := textproto.MIMEHeader{}
	partHeader.Set(contentDispositionHeaderNameConstant, mime.FormatMediaType(formDataDispositionConstant, map[string]string{
		dispositionNameParameterConstant:     attachmentFormFieldNameConstant,
		dispositionFilenameParameterConstant: upload.FileName,
	}))
	partHeader.Set(contentTypeHeaderNameConstant, mediaType)

	partWriter, partError := formWriter.CreatePart(partHeader)
	if partError != nil {
		return PayloadEncodingError{Operation: OperationUploadAttachment, Cause: partError}
	}
	if _, writeError := partWriter.Write(upload.Content); writeError != nil {
		return PayloadEncodingError{Operation: OperationUploadAttachment, Cause: writeError}
	}
	if closeError := formWriter.Close(); closeError != nil {
		return PayloadEncodingError{Operation: OperationUploadAttachment, Cause: closeError}
	}

	_, requestError := client.execute(executionContext, requestSpecification{
		operation:   OperationUploadAttachment,
		method:      http.MethodPost,
		url:         fmt.Sprintf(attachmentEndpointTemplateConstant, client.endpoint.BaseURL, url.PathEscape(trimmedIdentifier)),
		body:        formBuffer.Bytes(),
		contentType: formWriter.FormDataContentType(),
		headers:     map[string]string{csrfProtectionHeaderNameConstant: csrfProtectionBypassValueConstant},
	})
	return requestError
}

type requestSpecification struct {
	operation   OperationName
	method      string
	url         string
	body        []byte
	contentType string
	accept      string
	headers     map[string]string
}

func (client *Client) execute(executionContext context.Context, specification requestSpecification) ([]byte, error) {
	var requestBody io.Reader
	if specification.body != nil {
		requestBody = bytes.NewReader(specification.body)
	}

	request, requestError := http.NewRequestWithContext(executionContext, specification.method, specification.url, requestBody)
	if requestError != nil {
		return nil, OperationError{Operation: specification.operation, Kind: FailureKindTransportError, Cause: requestError}
	}

	accept := specification.accept
	if len(accept) == 0 {
		accept = jsonMediaTypeConstant
	}
	request.Header.Set(acceptHeaderNameConstant, accept)
	if len(specification.contentType) > 0 {
		request.Header.Set(contentTypeHeaderNameConstant, specification.contentType)
	}
	for headerName, headerValue := range specification.headers {
		request.Header.Set(headerName, headerValue)
	}
	if len(client.endpoint.Account) > 0 || len(client.endpoint.Token) > 0 {
		request.SetBasicAuth(client.endpoint.Account, client.endpoint.Token)
	}

	client.logger.Debug(
		requestLogMessageConstant,
		zap.String(logFieldOperationConstant, string(specification.operation)),
		zap.String(logFieldMethodConstant, specification.method),
		zap.String(logFieldURLConstant, specification.url),
	)

	response, responseError := client.httpClient.Do(request)
	if responseError != nil {
		client.logger.Debug(
			requestFailedLogMessageConstant,
			zap.String(logFieldOperationConstant, string(specification.operation)),
			zap.Error(responseError),
		)
		return nil, OperationError{Operation: specification.operation, Kind: FailureKindTransportError, Cause: responseError}
	}
	defer response.Body.Close()

	responseBody, readError := io.ReadAll(response.Body)
	if readError != nil {
		return nil, OperationError{Operation: specification.operation, Kind: FailureKindTransportError, StatusCode: response.StatusCode, Cause: readError}
	}

	if response.StatusCode != http.StatusOK && response.StatusCode != http.StatusCreated {
		client.logger.Debug(
			requestFailedLogMessageConstant,
			zap.String(logFieldOperationConstant, string(specification.operation)),
			zap.Int(logFieldStatusCodeConstant, response.StatusCode),
		)
		return nil, OperationError{
			Operation:    specification.operation,
			Kind:         ClassifyStatus(response.StatusCode),
			StatusCode:   response.StatusCode,
			ResponseBody: string(responseBody),
		}
	}

	return responseBody, nil
}

// resolveLink turns a server-provided link into an absolute URL. Relative links are resolved against the base URL.
func (client *Client) resolveLink(link string) string {
	trimmedLink := strings.TrimSpace(link)
	if strings.HasPrefix(trimmedLink, absoluteURLPrefixHTTPConstant) || strings.HasPrefix(trimmedLink, absoluteURLPrefixHTTPSConstant) {
		return trimmedLink
	}
	if !strings.HasPrefix(trimmedLink, pathSeparatorConstant) {
		trimmedLink = pathSeparatorConstant + trimmedLink
	}
	return client.endpoint.BaseURL + trimmedLink
}

type identifierWire struct {
	Identifier string `json:"id"`
}

type spaceWire struct {
	Key         string `json:"key"`
	Name        string `json:"name"`
	Description struct {
		Plain struct {
			Value          string `json:"value"`
			Representation string `json:"representation"`
		} `json:"plain"`
	} `json:"description"`
}

type pageCreationWire struct {
	Type  string `json:"type"`
	Title string `json:"title"`
	Space struct {
		Key string `json:"key"`
	} `json:"space"`
	Body struct {
		Storage struct {
			Value          string `json:"value"`
			Representation string `json:"representation"`
		} `json:"storage"`
	} `json:"body"`
	Ancestors []identifierWire `json:"ancestors,omitempty"`
}
