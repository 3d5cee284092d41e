package contentservice

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"
)

const (
	operationErrorStatusTemplateConstant  = "%s operation failed: %s (status %d)"
	operationErrorCauseTemplateConstant   = "%s operation failed: %s: %v"
	operationErrorMessageTemplateConstant = "%s operation failed: %s"
	responseBodySuffixTemplateConstant    = ": %s"
	responseDecodingErrorTemplateConstant = "%s response decoding failed: %s"
	payloadEncodingErrorTemplateConstant  = "%s payload encoding failed: %s"
	invalidInputErrorTemplateConstant     = "%s: %s"
	responseBodyPreviewLimitConstant      = 512
	responseBodyTruncationMarkerConstant  = "..."
	missingIdentifierMessageConstant      = "response did not include an identifier"
	baseURLMissingMessageConstant         = "content service base URL must be provided"
)

// OperationName describes a named content service operation.
type OperationName string

// Supported operations.
const (
	OperationGetSpace           OperationName = OperationName("GetSpace")
	OperationCreateSpace        OperationName = OperationName("CreateSpace")
	OperationListPages          OperationName = OperationName("ListPages")
	OperationCreatePage         OperationName = OperationName("CreatePage")
	OperationListAttachments    OperationName = OperationName("ListAttachments")
	OperationDownloadAttachment OperationName = OperationName("DownloadAttachment")
	OperationUploadAttachment   OperationName = OperationName("UploadAttachment")
)

// FailureKind classifies why an operation failed.
type FailureKind string

// Failure classifications.
const (
	FailureKindNotFound        FailureKind = FailureKind("not_found")
	FailureKindAuthFailure     FailureKind = FailureKind("auth_failure")
	FailureKindServerError     FailureKind = FailureKind("server_error")
	FailureKindTransportError  FailureKind = FailureKind("transport_error")
	FailureKindRequestRejected FailureKind = FailureKind("request_rejected")
)

var (
	// ErrBaseURLMissing indicates the client was constructed without an endpoint base URL.
	ErrBaseURLMissing = errors.New(baseURLMissingMessageConstant)

	errMissingIdentifier = errors.New(missingIdentifierMessageConstant)
)

// ClassifyStatus maps a non-success HTTP status code to a failure kind.
func ClassifyStatus(statusCode int) FailureKind {
	switch {
	case statusCode == http.StatusNotFound:
		return FailureKindNotFound
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return FailureKindAuthFailure
	case statusCode >= http.StatusInternalServerError:
		return FailureKindServerError
	default:
		return FailureKindRequestRejected
	}
}

// OperationError reports a failed request together with the diagnostics returned by the server.
type OperationError struct {
	Operation    OperationName
	Kind         FailureKind
	StatusCode   int
	ResponseBody string
	Cause        error
}

// Error describes the operation failure.
func (operationError OperationError) Error() string {
	if operationError.StatusCode > 0 {
		message := fmt.Sprintf(operationErrorStatusTemplateConstant, operationError.Operation, operationError.Kind, operationError.StatusCode)
		if preview := previewResponseBody(operationError.ResponseBody); len(preview) > 0 {
			message += fmt.Sprintf(responseBodySuffixTemplateConstant, preview)
		}
		return message
	}
	if operationError.Cause != nil {
		return fmt.Sprintf(operationErrorCauseTemplateConstant, operationError.Operation, operationError.Kind, operationError.Cause)
	}
	return fmt.Sprintf(operationErrorMessageTemplateConstant, operationError.Operation, operationError.Kind)
}

// Unwrap exposes the underlying cause.
func (operationError OperationError) Unwrap() error {
	return operationError.Cause
}

// ResponseDecodingError indicates a response body that could not be interpreted.
type ResponseDecodingError struct {
	Operation OperationName
	Cause     error
}

// Error describes the decoding failure.
func (decodingError ResponseDecodingError) Error() string {
	return fmt.Sprintf(responseDecodingErrorTemplateConstant, decodingError.Operation, decodingError.Cause)
}

// Unwrap exposes the underlying decoding error.
func (decodingError ResponseDecodingError) Unwrap() error {
	return decodingError.Cause
}

// PayloadEncodingError indicates a request payload that could not be encoded.
type PayloadEncodingError struct {
	Operation OperationName
	Cause     error
}

// Error describes the encoding failure.
func (encodingError PayloadEncodingError) Error() string {
	return fmt.Sprintf(payloadEncodingErrorTemplateConstant, encodingError.Operation, encodingError.Cause)
}

// Unwrap exposes the underlying encoding error.
func (encodingError PayloadEncodingError) Unwrap() error {
	return encodingError.Cause
}

// InvalidInputError surfaces validation issues for operation inputs.
type InvalidInputError struct {
	FieldName string
	Message   string
}

// Error describes the invalid input.
func (inputError InvalidInputError) Error() string {
	return fmt.Sprintf(invalidInputErrorTemplateConstant, inputError.FieldName, inputError.Message)
}

// FailureKindOf extracts the failure classification from an error chain.
func FailureKindOf(err error) (FailureKind, bool) {
	var operationError OperationError
	if errors.As(err, &operationError) {
		return operationError.Kind, true
	}
	return "", false
}

// StatusCodeOf extracts the HTTP status code from an error chain, or zero when none was received.
func StatusCodeOf(err error) int {
	var operationError OperationError
	if errors.As(err, &operationError) {
		return operationError.StatusCode
	}
	return 0
}

// ResponseBodyOf extracts the server response body from an error chain.
func ResponseBodyOf(err error) string {
	var operationError OperationError
	if errors.As(err, &operationError) {
		return operationError.ResponseBody
	}
	return ""
}

func previewResponseBody(responseBody string) string {
	trimmedBody := strings.TrimSpace(responseBody)
	if len(trimmedBody) <= responseBodyPreviewLimitConstant {
		return trimmedBody
	}
	cutIndex := responseBodyPreviewLimitConstant
	for cutIndex > 0 && !utf8.RuneStart(trimmedBody[cutIndex]) {
		cutIndex--
	}
	return trimmedBody[:cutIndex] + responseBodyTruncationMarkerConstant
}
