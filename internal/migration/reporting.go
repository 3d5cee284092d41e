package migration

import (
	"fmt"
	"io"
	"os"
	"sync"
)

const (
	reportSpaceCreatedTemplateConstant         = "Space %s created as %s\n"
	reportSpaceReusedTemplateConstant          = "Space %s already created as %s, reusing it\n"
	reportPageCreatedTemplateConstant          = "Page %q created: %s -> %s\n"
	reportPageSkippedTemplateConstant          = "Page %q already migrated: %s -> %s\n"
	reportPageOrphanedTemplateConstant         = "Page %q parent %s not migrated, creating at top level\n"
	reportPageFailedTemplateConstant           = "Page %q failed: %s\n"
	reportPageListingFailedTemplateConstant    = "Page listing for space %s stopped early: %s\n"
	reportAttachmentUploadedTemplateConstant   = "Attachment %s uploaded to page %s\n"
	reportAttachmentFailedTemplateConstant     = "Attachment %s on page %s failed: %s\n"
	reportAttachmentListFailedTemplateConstant = "Attachment listing for page %s stopped early: %s\n"
	reportSummaryTemplateConstant              = "Migration of %s to %s finished: %d pages created, %d skipped, %d failed, %d orphaned; %d attachments uploaded, %d failed\n"
)

// Reporter emits human-readable progress lines.
type Reporter interface {
	Printf(format string, args ...any)
}

type writerReporter struct {
	mutex  sync.Mutex
	writer io.Writer
}

// NewWriterReporter constructs a Reporter that writes to the provided io.Writer.
// Lines from concurrent attachment transfers are written whole.
func NewWriterReporter(writer io.Writer) Reporter {
	if writer == nil {
		writer = os.Stdout
	}
	return &writerReporter{writer: writer}
}

func (reporter *writerReporter) Printf(format string, args ...any) {
	reporter.mutex.Lock()
	defer reporter.mutex.Unlock()
	fmt.Fprintf(reporter.writer, format, args...)
}

type discardReporter struct{}

func (discardReporter) Printf(string, ...any) {}
