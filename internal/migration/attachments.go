package migration

import (
	"context"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/temirov/wikimigrate/internal/contentservice"
)

const (
	logMessageAttachmentListFailedConstant = "Attachment listing failed"
	logMessageAttachmentDownloadConstant   = "Attachment download failed"
	logMessageAttachmentUploadConstant     = "Attachment upload failed"
	logMessageAttachmentUploadedConstant   = "Attachment uploaded"
	logFieldAttachmentConstant             = "attachment"
	logFieldAttachmentsListedConstant      = "attachments_listed"
	logFieldAttachmentStepConstant         = "step"
	attachmentStepDownloadConstant         = "download"
	attachmentStepUploadConstant           = "upload"
)

type attachmentTransfer struct {
	sourcePageIdentifier      string
	destinationPageIdentifier string
	workers                   int
}

type attachmentOutcome struct {
	uploaded      int
	failed        int
	listingFailed bool
}

// transferAttachments copies every attachment of a source page to its destination page.
// Each attachment succeeds or fails on its own; at most transfer.workers run at once.
func (service *Service) transferAttachments(executionContext context.Context, pageLogger *zap.Logger, transfer attachmentTransfer) (attachmentOutcome, error) {
	attachments, listingError := service.source.ListAttachments(executionContext, transfer.sourcePageIdentifier)
	listingFailed := false
	if listingError != nil {
		if isCancellation(listingError) {
			return attachmentOutcome{}, listingError
		}
		listingFailed = true
		pageLogger.Warn(logMessageAttachmentListFailedConstant, append(failureFields(listingError), zap.Int(logFieldAttachmentsListedConstant, len(attachments)))...)
		service.reporter.Printf(reportAttachmentListFailedTemplateConstant, transfer.sourcePageIdentifier, listingError)
	}
	if len(attachments) == 0 {
		return attachmentOutcome{listingFailed: listingFailed}, nil
	}

	workers := transfer.workers
	if workers <= 0 {
		workers = DefaultAttachmentWorkers
	}

	var uploaded atomic.Int64
	var failed atomic.Int64

	group, groupContext := errgroup.WithContext(executionContext)
	group.SetLimit(workers)
	for _, attachment := range attachments {
		if groupContext.Err() != nil {
			break
		}
		group.Go(func() error {
			transferError := service.transferAttachment(groupContext, pageLogger, transfer.destinationPageIdentifier, attachment)
			switch {
			case transferError == nil:
				uploaded.Add(1)
				return nil
			case isCancellation(transferError):
				return transferError
			default:
				failed.Add(1)
				return nil
			}
		})
	}
	waitError := group.Wait()

	outcome := attachmentOutcome{uploaded: int(uploaded.Load()), failed: int(failed.Load()), listingFailed: listingFailed}
	if waitError != nil {
		return outcome, waitError
	}
	return outcome, executionContext.Err()
}

func (service *Service) transferAttachment(executionContext context.Context, pageLogger *zap.Logger, destinationPageIdentifier string, attachment contentservice.AttachmentReference) error {
	attachmentLogger := pageLogger.With(zap.String(logFieldAttachmentConstant, attachment.Title))

	content, downloadError := service.source.DownloadAttachment(executionContext, attachment)
	if downloadError != nil {
		if !isCancellation(downloadError) {
			attachmentLogger.Warn(logMessageAttachmentDownloadConstant, append(failureFields(downloadError), zap.String(logFieldAttachmentStepConstant, attachmentStepDownloadConstant))...)
			service.reporter.Printf(reportAttachmentFailedTemplateConstant, attachment.Title, destinationPageIdentifier, downloadError)
		}
		return downloadError
	}

	mediaType := strings.TrimSpace(attachment.MediaType)
	if len(mediaType) == 0 {
		mediaType = contentservice.DefaultAttachmentMediaType
	}

	uploadError := service.destination.UploadAttachment(executionContext, contentservice.AttachmentUpload{
		PageIdentifier: destinationPageIdentifier,
		FileName:       attachment.Title,
		Content:        content,
		MediaType:      mediaType,
	})
	if uploadError != nil {
		if !isCancellation(uploadError) {
			attachmentLogger.Warn(logMessageAttachmentUploadConstant, append(failureFields(uploadError), zap.String(logFieldAttachmentStepConstant, attachmentStepUploadConstant))...)
			service.reporter.Printf(reportAttachmentFailedTemplateConstant, attachment.Title, destinationPageIdentifier, uploadError)
		}
		return uploadError
	}

	attachmentLogger.Info(logMessageAttachmentUploadedConstant)
	service.reporter.Printf(reportAttachmentUploadedTemplateConstant, attachment.Title, destinationPageIdentifier)
	return nil
}
