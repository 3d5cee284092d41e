package migration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/temirov/wikimigrate/internal/contentservice"
)

type stubSource struct {
	space               contentservice.Space
	spaceError          error
	pages               []contentservice.Page
	listingError        error
	attachments         map[string][]contentservice.AttachmentReference
	attachmentListError map[string]error
	downloadErrors      map[string]error

	mutex           sync.Mutex
	downloadedFiles []string
}

func (source *stubSource) GetSpace(executionContext context.Context, spaceKey string) (contentservice.Space, error) {
	if contextError := executionContext.Err(); contextError != nil {
		return contentservice.Space{}, contextError
	}
	if source.spaceError != nil {
		return contentservice.Space{}, source.spaceError
	}
	space := source.space
	if len(space.Key) == 0 {
		space.Key = spaceKey
	}
	return space, nil
}

func (source *stubSource) ListPages(executionContext context.Context, spaceKey string) ([]contentservice.Page, error) {
	if contextError := executionContext.Err(); contextError != nil {
		return nil, contextError
	}
	return append([]contentservice.Page(nil), source.pages...), source.listingError
}

func (source *stubSource) ListAttachments(executionContext context.Context, pageIdentifier string) ([]contentservice.AttachmentReference, error) {
	if contextError := executionContext.Err(); contextError != nil {
		return nil, contextError
	}
	return append([]contentservice.AttachmentReference{}, source.attachments[pageIdentifier]...), source.attachmentListError[pageIdentifier]
}

func (source *stubSource) DownloadAttachment(executionContext context.Context, attachment contentservice.AttachmentReference) ([]byte, error) {
	if contextError := executionContext.Err(); contextError != nil {
		return nil, contextError
	}
	source.mutex.Lock()
	source.downloadedFiles = append(source.downloadedFiles, attachment.Title)
	source.mutex.Unlock()
	if downloadError := source.downloadErrors[attachment.Title]; downloadError != nil {
		return nil, downloadError
	}
	return []byte("content of " + attachment.Title), nil
}

type stubDestination struct {
	createSpaceError error
	pageFailures     map[string]error
	uploadFailures   map[string]error
	uploadDelay      time.Duration
	afterPageCreated func(title string)

	mutex          sync.Mutex
	createdSpaces  []contentservice.Space
	pageDrafts     []contentservice.PageDraft
	uploads        []contentservice.AttachmentUpload
	nextIdentifier int
	inFlight       atomic.Int32
	maxInFlight    atomic.Int32
}

func (destination *stubDestination) CreateSpace(executionContext context.Context, space contentservice.Space) (contentservice.SpaceReference, error) {
	if contextError := executionContext.Err(); contextError != nil {
		return contentservice.SpaceReference{}, contextError
	}
	if destination.createSpaceError != nil {
		return contentservice.SpaceReference{}, destination.createSpaceError
	}
	destination.mutex.Lock()
	defer destination.mutex.Unlock()
	destination.createdSpaces = append(destination.createdSpaces, space)
	return contentservice.SpaceReference{Key: space.Key, Name: space.Name}, nil
}

func (destination *stubDestination) CreatePage(executionContext context.Context, draft contentservice.PageDraft) (string, error) {
	if contextError := executionContext.Err(); contextError != nil {
		return "", contextError
	}
	if failure := destination.pageFailures[draft.Title]; failure != nil {
		return "", failure
	}

	destination.mutex.Lock()
	destination.nextIdentifier++
	identifier := fmt.Sprintf("dest-%d", destination.nextIdentifier)
	destination.pageDrafts = append(destination.pageDrafts, draft)
	destination.mutex.Unlock()

	if destination.afterPageCreated != nil {
		destination.afterPageCreated(draft.Title)
	}
	return identifier, nil
}

func (destination *stubDestination) UploadAttachment(executionContext context.Context, upload contentservice.AttachmentUpload) error {
	current := destination.inFlight.Add(1)
	defer destination.inFlight.Add(-1)
	for {
		observed := destination.maxInFlight.Load()
		if current <= observed || destination.maxInFlight.CompareAndSwap(observed, current) {
			break
		}
	}

	if destination.uploadDelay > 0 {
		select {
		case <-time.After(destination.uploadDelay):
		case <-executionContext.Done():
			return executionContext.Err()
		}
	}
	if contextError := executionContext.Err(); contextError != nil {
		return contextError
	}
	if failure := destination.uploadFailures[upload.FileName]; failure != nil {
		return failure
	}

	destination.mutex.Lock()
	defer destination.mutex.Unlock()
	destination.uploads = append(destination.uploads, upload)
	return nil
}

func (destination *stubDestination) draftByTitle(title string) (contentservice.PageDraft, bool) {
	destination.mutex.Lock()
	defer destination.mutex.Unlock()
	for _, draft := range destination.pageDrafts {
		if draft.Title == title {
			return draft, true
		}
	}
	return contentservice.PageDraft{}, false
}

func (destination *stubDestination) uploadedFileNames() []string {
	destination.mutex.Lock()
	defer destination.mutex.Unlock()
	names := make([]string, 0, len(destination.uploads))
	for _, upload := range destination.uploads {
		names = append(names, upload.FileName)
	}
	return names
}

func page(identifier string, title string, ancestorIdentifiers ...string) contentservice.Page {
	ancestors := make([]contentservice.PageReference, 0, len(ancestorIdentifiers))
	for _, ancestorIdentifier := range ancestorIdentifiers {
		ancestors = append(ancestors, contentservice.PageReference{Identifier: ancestorIdentifier})
	}
	return contentservice.Page{
		Identifier: identifier,
		Title:      title,
		Body:       contentservice.PageBody{Value: "<p>" + title + "</p>", Representation: contentservice.DefaultBodyRepresentation},
		Ancestors:  ancestors,
	}
}

type fakeWikiPage struct {
	Identifier string
	Title      string
	SpaceKey   string
	Body       string
	Ancestors  []string
}

type fakeWikiAttachment struct {
	Title     string
	MediaType string
	Content   []byte
}

// fakeWiki is an in-memory content service speaking the REST surface used by contentservice.Client.
type fakeWiki struct {
	mutex          sync.Mutex
	spaces         map[string]contentservice.Space
	pages          []fakeWikiPage
	attachments    map[string][]fakeWikiAttachment
	nextIdentifier int
	server         *httptest.Server
}

func newFakeWiki(testInstance *testing.T) *fakeWiki {
	testInstance.Helper()
	wiki := &fakeWiki{
		spaces:         map[string]contentservice.Space{},
		attachments:    map[string][]fakeWikiAttachment{},
		nextIdentifier: 1000,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /rest/api/space/{key}", wiki.handleGetSpace)
	mux.HandleFunc("POST /rest/api/space", wiki.handleCreateSpace)
	mux.HandleFunc("GET /rest/api/content", wiki.handleListPages)
	mux.HandleFunc("POST /rest/api/content", wiki.handleCreatePage)
	mux.HandleFunc("GET /rest/api/content/{id}/child/attachment", wiki.handleListAttachments)
	mux.HandleFunc("POST /rest/api/content/{id}/child/attachment", wiki.handleUploadAttachment)
	mux.HandleFunc("GET /download/attachments/{id}/{name}", wiki.handleDownload)

	wiki.server = httptest.NewServer(mux)
	testInstance.Cleanup(wiki.server.Close)
	return wiki
}

func (wiki *fakeWiki) URL() string {
	return wiki.server.URL
}

func (wiki *fakeWiki) addSpace(space contentservice.Space) {
	wiki.mutex.Lock()
	defer wiki.mutex.Unlock()
	wiki.spaces[space.Key] = space
}

func (wiki *fakeWiki) addPage(page fakeWikiPage, attachments ...fakeWikiAttachment) {
	wiki.mutex.Lock()
	defer wiki.mutex.Unlock()
	wiki.pages = append(wiki.pages, page)
	wiki.attachments[page.Identifier] = append(wiki.attachments[page.Identifier], attachments...)
}

func (wiki *fakeWiki) spaceKeys() []string {
	wiki.mutex.Lock()
	defer wiki.mutex.Unlock()
	keys := make([]string, 0, len(wiki.spaces))
	for key := range wiki.spaces {
		keys = append(keys, key)
	}
	return keys
}

func (wiki *fakeWiki) pagesInSpace(spaceKey string) []fakeWikiPage {
	wiki.mutex.Lock()
	defer wiki.mutex.Unlock()
	var pages []fakeWikiPage
	for _, candidate := range wiki.pages {
		if candidate.SpaceKey == spaceKey {
			pages = append(pages, candidate)
		}
	}
	return pages
}

func (wiki *fakeWiki) attachmentsOf(pageIdentifier string) []fakeWikiAttachment {
	wiki.mutex.Lock()
	defer wiki.mutex.Unlock()
	return append([]fakeWikiAttachment(nil), wiki.attachments[pageIdentifier]...)
}

func (wiki *fakeWiki) handleGetSpace(responseWriter http.ResponseWriter, request *http.Request) {
	wiki.mutex.Lock()
	space, found := wiki.spaces[request.PathValue("key")]
	wiki.mutex.Unlock()
	if !found {
		writeFakeJSON(responseWriter, http.StatusNotFound, map[string]any{"message": "No space found"})
		return
	}
	writeFakeJSON(responseWriter, http.StatusOK, map[string]any{
		"key":         space.Key,
		"name":        space.Name,
		"description": map[string]any{"plain": map[string]any{"value": space.Description, "representation": "plain"}},
	})
}

func (wiki *fakeWiki) handleCreateSpace(responseWriter http.ResponseWriter, request *http.Request) {
	var payload struct {
		Key         string `json:"key"`
		Name        string `json:"name"`
		Description struct {
			Plain struct {
				Value string `json:"value"`
			} `json:"plain"`
		} `json:"description"`
	}
	if decodeError := json.NewDecoder(request.Body).Decode(&payload); decodeError != nil {
		writeFakeJSON(responseWriter, http.StatusBadRequest, map[string]any{"message": decodeError.Error()})
		return
	}

	wiki.mutex.Lock()
	defer wiki.mutex.Unlock()
	if _, exists := wiki.spaces[payload.Key]; exists {
		writeFakeJSON(responseWriter, http.StatusBadRequest, map[string]any{"message": "A space with key " + payload.Key + " already exists"})
		return
	}
	wiki.spaces[payload.Key] = contentservice.Space{Key: payload.Key, Name: payload.Name, Description: payload.Description.Plain.Value}
	writeFakeJSON(responseWriter, http.StatusOK, map[string]any{"key": payload.Key, "name": payload.Name})
}

func (wiki *fakeWiki) handleListPages(responseWriter http.ResponseWriter, request *http.Request) {
	query := request.URL.Query()
	spaceKey := query.Get("spaceKey")
	limit, limitError := strconv.Atoi(query.Get("limit"))
	if limitError != nil || limit <= 0 {
		limit = contentservice.DefaultPageSize
	}
	start, _ := strconv.Atoi(query.Get("start"))

	pages := wiki.pagesInSpace(spaceKey)
	end := min(start+limit, len(pages))
	results := []map[string]any{}
	for _, listed := range pages[min(start, len(pages)):end] {
		ancestors := []map[string]any{}
		for _, ancestor := range listed.Ancestors {
			ancestors = append(ancestors, map[string]any{"id": ancestor})
		}
		results = append(results, map[string]any{
			"id":        listed.Identifier,
			"title":     listed.Title,
			"space":     map[string]any{"key": listed.SpaceKey},
			"body":      map[string]any{"storage": map[string]any{"value": listed.Body, "representation": "storage"}},
			"ancestors": ancestors,
		})
	}

	links := map[string]any{}
	if end < len(pages) {
		nextQuery := url.Values{}
		nextQuery.Set("spaceKey", spaceKey)
		nextQuery.Set("limit", strconv.Itoa(limit))
		nextQuery.Set("start", strconv.Itoa(end))
		links["next"] = "/rest/api/content?" + nextQuery.Encode()
	}
	writeFakeJSON(responseWriter, http.StatusOK, map[string]any{"results": results, "_links": links})
}

func (wiki *fakeWiki) handleCreatePage(responseWriter http.ResponseWriter, request *http.Request) {
	var payload struct {
		Title string `json:"title"`
		Space struct {
			Key string `json:"key"`
		} `json:"space"`
		Body struct {
			Storage struct {
				Value string `json:"value"`
			} `json:"storage"`
		} `json:"body"`
		Ancestors []struct {
			Identifier string `json:"id"`
		} `json:"ancestors"`
	}
	if decodeError := json.NewDecoder(request.Body).Decode(&payload); decodeError != nil {
		writeFakeJSON(responseWriter, http.StatusBadRequest, map[string]any{"message": decodeError.Error()})
		return
	}

	wiki.mutex.Lock()
	defer wiki.mutex.Unlock()
	if _, exists := wiki.spaces[payload.Space.Key]; !exists {
		writeFakeJSON(responseWriter, http.StatusNotFound, map[string]any{"message": "No space found"})
		return
	}
	wiki.nextIdentifier++
	created := fakeWikiPage{
		Identifier: strconv.Itoa(wiki.nextIdentifier),
		Title:      payload.Title,
		SpaceKey:   payload.Space.Key,
		Body:       payload.Body.Storage.Value,
	}
	for _, ancestor := range payload.Ancestors {
		created.Ancestors = append(created.Ancestors, ancestor.Identifier)
	}
	wiki.pages = append(wiki.pages, created)
	writeFakeJSON(responseWriter, http.StatusOK, map[string]any{"id": created.Identifier, "title": created.Title})
}

func (wiki *fakeWiki) handleListAttachments(responseWriter http.ResponseWriter, request *http.Request) {
	pageIdentifier := request.PathValue("id")
	results := []map[string]any{}
	for attachmentIndex, attachment := range wiki.attachmentsOf(pageIdentifier) {
		results = append(results, map[string]any{
			"id":       fmt.Sprintf("att%s-%d", pageIdentifier, attachmentIndex),
			"title":    attachment.Title,
			"metadata": map[string]any{"mediaType": attachment.MediaType},
			"_links":   map[string]any{"download": "/download/attachments/" + pageIdentifier + "/" + url.PathEscape(attachment.Title)},
		})
	}
	writeFakeJSON(responseWriter, http.StatusOK, map[string]any{"results": results, "_links": map[string]any{}})
}

func (wiki *fakeWiki) handleUploadAttachment(responseWriter http.ResponseWriter, request *http.Request) {
	if request.Header.Get("X-Atlassian-Token") != "no-check" {
		writeFakeJSON(responseWriter, http.StatusForbidden, map[string]any{"message": "XSRF check failed"})
		return
	}
	reader, readerError := request.MultipartReader()
	if readerError != nil {
		writeFakeJSON(responseWriter, http.StatusBadRequest, map[string]any{"message": readerError.Error()})
		return
	}
	part, partError := reader.NextPart()
	if partError != nil {
		writeFakeJSON(responseWriter, http.StatusBadRequest, map[string]any{"message": partError.Error()})
		return
	}
	content, _ := io.ReadAll(part)

	pageIdentifier := request.PathValue("id")
	wiki.mutex.Lock()
	wiki.attachments[pageIdentifier] = append(wiki.attachments[pageIdentifier], fakeWikiAttachment{
		Title:     part.FileName(),
		MediaType: part.Header.Get("Content-Type"),
		Content:   content,
	})
	wiki.mutex.Unlock()
	writeFakeJSON(responseWriter, http.StatusOK, map[string]any{"results": []map[string]any{{"title": part.FileName()}}})
}

func (wiki *fakeWiki) handleDownload(responseWriter http.ResponseWriter, request *http.Request) {
	pageIdentifier := request.PathValue("id")
	name := request.PathValue("name")
	for _, attachment := range wiki.attachmentsOf(pageIdentifier) {
		if attachment.Title == name {
			responseWriter.Header().Set("Content-Type", attachment.MediaType)
			responseWriter.WriteHeader(http.StatusOK)
			_, _ = responseWriter.Write(attachment.Content)
			return
		}
	}
	writeFakeJSON(responseWriter, http.StatusNotFound, map[string]any{"message": "attachment not found"})
}

func writeFakeJSON(responseWriter http.ResponseWriter, statusCode int, payload any) {
	responseWriter.Header().Set("Content-Type", "application/json")
	responseWriter.WriteHeader(statusCode)
	_ = json.NewEncoder(responseWriter).Encode(payload)
}
