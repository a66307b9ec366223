package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"strconv"

	"github.com/hbomb79/Reel/internal/catalog"
	"github.com/hbomb79/Reel/internal/metrics"
	"github.com/hbomb79/Reel/pkg/logger"
)

var log = logger.Get("Stream")

var ErrFileMissing = errors.New("video file missing on disk")

type (
	Resolver interface {
		GetRecord(ctx context.Context, id int64) (*catalog.MediaRecord, error)
	}

	// UnsatisfiableRangeError is returned from Open when the requested range
	// lies entirely outside of the file. Size is the current size of the
	// file, as required by the 416 Content-Range header.
	UnsatisfiableRangeError struct {
		Size int64
	}

	// Streamer serves the bytes of cataloged files, honouring byte ranges.
	Streamer struct {
		resolver Resolver
	}

	// Content is an opened stream for a single request. The caller
	// must Close it (Serve does so automatically).
	Content struct {
		Record *catalog.MediaRecord
		Size   int64
		Range  *Range
		body   io.ReadCloser
	}

	sectionReadCloser struct {
		*io.SectionReader
		io.Closer
	}
)

func (e *UnsatisfiableRangeError) Error() string {
	return fmt.Sprintf("%s: file is %d bytes", ErrUnsatisfiableRange, e.Size)
}

func (e *UnsatisfiableRangeError) Is(target error) bool { return target == ErrUnsatisfiableRange }

func (e *UnsatisfiableRangeError) ContentRange() string { return fmt.Sprintf("bytes */%d", e.Size) }

func New(resolver Resolver) *Streamer {
	return &Streamer{resolver: resolver}
}

// Open resolves the record with the given ID and opens its file for streaming.
//
// A malformed range header is ignored and the full file is served. Errors
// returned are catalog.ErrRecordNotFound if the record does not exist,
// ErrFileMissing if the record exists but its file does not, or an
// *UnsatisfiableRangeError.
func (streamer *Streamer) Open(ctx context.Context, id int64, rangeHeader string) (*Content, error) {
	record, err := streamer.resolver.GetRecord(ctx, id)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(record.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrFileMissing, record.Path)
		}
		return nil, fmt.Errorf("failed to open %s: %w", record.Path, err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to stat %s: %w", record.Path, err)
	}
	if info.IsDir() {
		file.Close()
		return nil, fmt.Errorf("%w: %s is a directory", ErrFileMissing, record.Path)
	}

	size := info.Size()
	byteRange, err := ParseRange(rangeHeader, size)
	switch {
	case errors.Is(err, ErrUnsatisfiableRange):
		file.Close()
		return nil, &UnsatisfiableRangeError{Size: size}
	case err != nil:
		log.Emit(logger.DEBUG, "Ignoring range header %q for record %d: %v\n", rangeHeader, id, err)
		byteRange = nil
	}

	content := &Content{Record: record, Size: size, Range: byteRange}
	if byteRange == nil {
		content.body = file
	} else {
		content.body = sectionReadCloser{io.NewSectionReader(file, byteRange.Start, byteRange.Length()), file}
	}

	return content, nil
}

func (content *Content) Status() int {
	if content.Range != nil {
		return http.StatusPartialContent
	}

	return http.StatusOK
}

func (content *Content) Length() int64 {
	if content.Range != nil {
		return content.Range.Length()
	}

	return content.Size
}

func (content *Content) ContentType() string { return "video/" + content.Record.Format }

// SetHeaders populates the response headers for this content.
func (content *Content) SetHeaders(header http.Header) {
	header.Set("Content-Type", content.ContentType())
	header.Set("Content-Length", strconv.FormatInt(content.Length(), 10))
	header.Set("Accept-Ranges", "bytes")
	if content.Range != nil {
		header.Set("Content-Range", content.Range.ContentRange(content.Size))
	}
}

func (content *Content) Read(p []byte) (int, error) { return content.body.Read(p) }

func (content *Content) Close() error { return content.body.Close() }

// Serve writes the headers, status and body of this content to the
// response writer, and closes the content.
func (content *Content) Serve(w http.ResponseWriter) (int64, error) {
	defer content.Close()
	defer metrics.TrackStream()()

	content.SetHeaders(w.Header())
	w.WriteHeader(content.Status())
	metrics.RecordStreamRequest(strconv.Itoa(content.Status()))

	n, err := io.Copy(w, content.body)
	metrics.RecordStreamBytes(n)
	if err != nil {
		log.Emit(logger.DEBUG, "Stream of record %d ended early after %d bytes: %v\n", content.Record.ID, n, err)
		return n, err
	}

	return n, nil
}
