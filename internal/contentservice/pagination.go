package contentservice

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
)

type collectionWire[Entry any] struct {
	Results []Entry `json:"results"`
	Links   struct {
		Next string `json:"next"`
	} `json:"_links"`
}

type pageWire struct {
	Identifier flexibleIdentifier `json:"id"`
	Title      string             `json:"title"`
	Space      struct {
		Key string `json:"key"`
	} `json:"space"`
	Body struct {
		Storage struct {
			Value          string `json:"value"`
			Representation string `json:"representation"`
		} `json:"storage"`
	} `json:"body"`
	Ancestors []struct {
		Identifier flexibleIdentifier `json:"id"`
	} `json:"ancestors"`
}

type attachmentWire struct {
	Identifier flexibleIdentifier `json:"id"`
	Title      string             `json:"title"`
	Metadata   struct {
		MediaType string `json:"mediaType"`
	} `json:"metadata"`
	Extensions struct {
		MediaType string `json:"mediaType"`
		FileSize  int64  `json:"fileSize"`
	} `json:"extensions"`
	Links struct {
		Download string `json:"download"`
	} `json:"_links"`
}

// IteratePages lazily yields the pages of a space. Each iteration starts from the first listing page.
// A failed request is yielded once as an error and ends the iteration.
func (client *Client) IteratePages(executionContext context.Context, spaceKey string) iter.Seq2[Page, error] {
	trimmedKey := strings.TrimSpace(spaceKey)
	if len(trimmedKey) == 0 {
		return func(yield func(Page, error) bool) {
			yield(Page{}, InvalidInputError{FieldName: spaceKeyFieldNameConstant, Message: requiredValueMessageConstant})
		}
	}

	query := url.Values{}
	query.Set(spaceKeyQueryParameterConstant, trimmedKey)
	query.Set(expandQueryParameterConstant, pageListingExpansionConstant)
	query.Set(limitQueryParameterConstant, strconv.Itoa(client.pageSize))
	firstURL := fmt.Sprintf(contentCollectionEndpointTemplateConstant, client.endpoint.BaseURL) + "?" + query.Encode()

	return iterateCollection(executionContext, client, OperationListPages, firstURL, func(entry pageWire) Page {
		return convertPage(entry, trimmedKey)
	})
}

func iterateCollection[Entry any, Item any](
	executionContext context.Context,
	client *Client,
	operation OperationName,
	firstURL string,
	convert func(Entry) Item,
) iter.Seq2[Item, error] {
	return func(yield func(Item, error) bool) {
		var zero Item
		visitedURLs := map[string]struct{}{}
		nextURL := firstURL
		for len(nextURL) > 0 {
			if _, visited := visitedURLs[nextURL]; visited {
				return
			}
			visitedURLs[nextURL] = struct{}{}

			responseBody, requestError := client.execute(executionContext, requestSpecification{
				operation: operation,
				method:    http.MethodGet,
				url:       nextURL,
			})
			if requestError != nil {
				yield(zero, requestError)
				return
			}

			var collection collectionWire[Entry]
			if decodingError := json.Unmarshal(responseBody, &collection); decodingError != nil {
				yield(zero, ResponseDecodingError{Operation: operation, Cause: decodingError})
				return
			}

			for _, entry := range collection.Results {
				if !yield(convert(entry), nil) {
					return
				}
			}

			nextURL = ""
			if nextLink := strings.TrimSpace(collection.Links.Next); len(nextLink) > 0 {
				nextURL = client.resolveLink(nextLink)
			}
		}
	}
}

func convertPage(entry pageWire, requestedSpaceKey string) Page {
	ancestors := make([]PageReference, 0, len(entry.Ancestors))
	for _, ancestor := range entry.Ancestors {
		if len(ancestor.Identifier) == 0 {
			continue
		}
		ancestors = append(ancestors, PageReference{Identifier: string(ancestor.Identifier)})
	}

	spaceKey := entry.Space.Key
	if len(spaceKey) == 0 {
		spaceKey = requestedSpaceKey
	}

	representation := entry.Body.Storage.Representation
	if len(representation) == 0 {
		representation = DefaultBodyRepresentation
	}

	return Page{
		Identifier: string(entry.Identifier),
		Title:      entry.Title,
		Body:       PageBody{Value: entry.Body.Storage.Value, Representation: representation},
		Ancestors:  ancestors,
		SpaceKey:   spaceKey,
	}
}

func convertAttachment(entry attachmentWire) AttachmentReference {
	mediaType := strings.TrimSpace(entry.Metadata.MediaType)
	if len(mediaType) == 0 {
		mediaType = strings.TrimSpace(entry.Extensions.MediaType)
	}
	if len(mediaType) == 0 {
		mediaType = mediaTypeForFileName(entry.Title)
	}

	return AttachmentReference{
		Identifier:   string(entry.Identifier),
		Title:        entry.Title,
		MediaType:    mediaType,
		DownloadPath: entry.Links.Download,
		FileSize:     entry.Extensions.FileSize,
	}
}

func mediaTypeForFileName(fileName string) string {
	if extensionType := mime.TypeByExtension(path.Ext(fileName)); len(extensionType) > 0 {
		return extensionType
	}
	return DefaultAttachmentMediaType
}
