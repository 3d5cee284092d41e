package contentservice

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

const (
	// DefaultBodyRepresentation is the storage format declared for page bodies when the source omits one.
	DefaultBodyRepresentation = "storage"
	// DefaultAttachmentMediaType is used when an attachment's media type cannot be determined.
	DefaultAttachmentMediaType = "application/octet-stream"
	// DefaultPageSize is the listing page size requested when none is configured.
	DefaultPageSize = 50

	identifierDecodingErrorTemplateConstant = "identifier must be a string or number: %s"
)

// Space is a named container of hierarchical pages.
type Space struct {
	Key         string
	Name        string
	Description string
}

// SpaceReference identifies a space created on the destination.
type SpaceReference struct {
	Key  string
	Name string
}

// PageBody is the opaque serialized content of a page together with its declared format.
type PageBody struct {
	Value          string
	Representation string
}

// PageReference points at a page by identifier.
type PageReference struct {
	Identifier string
}

// Page is an immutable snapshot of a source page.
type Page struct {
	Identifier string
	Title      string
	Body       PageBody
	Ancestors  []PageReference
	SpaceKey   string
}

// NearestAncestor returns the direct parent of the page, which is the last entry of the ancestor chain.
func (page Page) NearestAncestor() (PageReference, bool) {
	if len(page.Ancestors) == 0 {
		return PageReference{}, false
	}
	nearest := page.Ancestors[len(page.Ancestors)-1]
	if len(strings.TrimSpace(nearest.Identifier)) == 0 {
		return PageReference{}, false
	}
	return nearest, true
}

// PageDraft describes a page to create on the destination.
type PageDraft struct {
	SpaceKey         string
	Title            string
	Body             PageBody
	ParentIdentifier string
}

// AttachmentReference describes an attachment listed on a source page.
type AttachmentReference struct {
	Identifier   string
	Title        string
	MediaType    string
	DownloadPath string
	FileSize     int64
}

// AttachmentUpload describes a file to attach to a destination page.
type AttachmentUpload struct {
	PageIdentifier string
	FileName       string
	Content        []byte
	MediaType      string
}

// flexibleIdentifier accepts identifiers encoded either as JSON strings or numbers.
type flexibleIdentifier string

func (identifier *flexibleIdentifier) UnmarshalJSON(data []byte) error {
	trimmedData := strings.TrimSpace(string(data))
	if trimmedData == "null" {
		*identifier = ""
		return nil
	}

	var textValue string
	if json.Unmarshal(data, &textValue) == nil {
		*identifier = flexibleIdentifier(strings.TrimSpace(textValue))
		return nil
	}

	var numericValue json.Number
	if json.Unmarshal(data, &numericValue) == nil {
		if integerValue, integerError := numericValue.Int64(); integerError == nil {
			*identifier = flexibleIdentifier(strconv.FormatInt(integerValue, 10))
			return nil
		}
	}

	return fmt.Errorf(identifierDecodingErrorTemplateConstant, trimmedData)
}
