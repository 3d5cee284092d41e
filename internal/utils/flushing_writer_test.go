package utils_test

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/wikimigrate/internal/utils"
)

func TestFlushingWriterFlushesBufferedWriters(testInstance *testing.T) {
	var destination bytes.Buffer
	bufferedWriter := bufio.NewWriterSize(&destination, 4096)

	flushingWriter := utils.NewFlushingWriter(bufferedWriter)
	bytesWritten, writeError := flushingWriter.Write([]byte("Created space: DEMO\n"))
	require.NoError(testInstance, writeError)
	require.Equal(testInstance, len("Created space: DEMO\n"), bytesWritten)
	require.Equal(testInstance, "Created space: DEMO\n", destination.String())
}

func TestFlushingWriterWrapping(testInstance *testing.T) {
	require.Nil(testInstance, utils.NewFlushingWriter(nil))

	var destination bytes.Buffer
	wrapped := utils.NewFlushingWriter(&destination)
	require.Same(testInstance, wrapped, utils.NewFlushingWriter(wrapped))
}

type countingFlusher struct {
	bytes.Buffer
	flushCount int
}

func (flusher *countingFlusher) Flush() {
	flusher.flushCount++
}

func TestFlushingWriterSupportsSilentFlushers(testInstance *testing.T) {
	destination := &countingFlusher{}
	flushingWriter := utils.NewFlushingWriter(destination)

	_, firstWriteError := flushingWriter.Write([]byte("Uploaded attachment: x.png\n"))
	require.NoError(testInstance, firstWriteError)
	_, secondWriteError := flushingWriter.Write([]byte("Uploaded attachment: y.png\n"))
	require.NoError(testInstance, secondWriteError)

	require.Equal(testInstance, 2, destination.flushCount)
	require.Contains(testInstance, destination.String(), "y.png")
}
