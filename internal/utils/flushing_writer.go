package utils

import (
	"io"
	"sync"
)

type errorFlusher interface {
	Flush() error
}

type silentFlusher interface {
	Flush()
}

// FlushingWriter keeps progress output visible immediately by flushing buffered writers after each write.
// Writes are serialized so concurrent attachment workers never interleave partial lines.
type FlushingWriter struct {
	writer io.Writer
	mutex  sync.Mutex
}

// NewFlushingWriter wraps the provided writer and flushes it after each write when the writer supports flushing.
func NewFlushingWriter(writer io.Writer) io.Writer {
	if writer == nil {
		return nil
	}
	if _, alreadyWrapped := writer.(*FlushingWriter); alreadyWrapped {
		return writer
	}
	return &FlushingWriter{writer: writer}
}

// Write delegates to the underlying writer and flushes it when possible.
func (flushingWriter *FlushingWriter) Write(data []byte) (int, error) {
	if flushingWriter == nil || flushingWriter.writer == nil {
		return 0, nil
	}

	flushingWriter.mutex.Lock()
	defer flushingWriter.mutex.Unlock()

	bytesWritten, writeError := flushingWriter.writer.Write(data)
	if writeError != nil {
		return bytesWritten, writeError
	}

	switch flushable := flushingWriter.writer.(type) {
	case errorFlusher:
		if flushError := flushable.Flush(); flushError != nil {
			return bytesWritten, flushError
		}
	case silentFlusher:
		flushable.Flush()
	}

	return bytesWritten, nil
}
