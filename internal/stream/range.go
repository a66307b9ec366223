package stream

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrMalformedRange     = errors.New("malformed range")
	ErrUnsatisfiableRange = errors.New("range not satisfiable")
)

// Range is a single, inclusive byte span of a file.
type Range struct {
	Start int64
	End   int64
}

func (r Range) Length() int64 { return r.End - r.Start + 1 }

// ContentRange renders the value of the Content-Range header for
// this range of a file which is 'size' bytes long.
func (r Range) ContentRange(size int64) string {
	return fmt.Sprintf("bytes %d-%d/%d", r.Start, r.End, size)
}

// ParseRange parses a Range header against a file of the given size. An
// empty header yields a nil range and no error.
//
// Only a single 'bytes=' range is understood; anything else (including
// multiple ranges) is ErrMalformedRange. A syntactically valid range which
// starts beyond the end of the file is ErrUnsatisfiableRange. The end of the
// range is clamped to the last byte of the file.
func ParseRange(header string, size int64) (*Range, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return nil, nil
	}

	byteRange, ok := strings.CutPrefix(header, "bytes=")
	if !ok || strings.Contains(byteRange, ",") {
		return nil, ErrMalformedRange
	}

	startStr, endStr, ok := strings.Cut(byteRange, "-")
	if !ok {
		return nil, ErrMalformedRange
	}
	startStr, endStr = strings.TrimSpace(startStr), strings.TrimSpace(endStr)

	if startStr == "" {
		// Suffix form: the last N bytes
		n, err := parseOffset(endStr)
		if err != nil {
			return nil, err
		}
		if n == 0 || size == 0 {
			return nil, ErrUnsatisfiableRange
		}

		return &Range{Start: max(size-n, 0), End: size - 1}, nil
	}

	start, err := parseOffset(startStr)
	if err != nil {
		return nil, err
	}

	end := size - 1
	if endStr != "" {
		if end, err = parseOffset(endStr); err != nil {
			return nil, err
		}
		if end < start {
			return nil, ErrMalformedRange
		}
	}

	if start >= size {
		return nil, ErrUnsatisfiableRange
	}

	return &Range{Start: start, End: min(end, size-1)}, nil
}

func parseOffset(s string) (int64, error) {
	if s == "" {
		return 0, ErrMalformedRange
	}

	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 0 {
		return 0, ErrMalformedRange
	}

	return n, nil
}
