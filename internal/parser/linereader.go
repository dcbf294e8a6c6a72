package parser

import (
	"bufio"
	"errors"
	"io"
)

const initialScanBufSize = 64 * 1024 // 64KB

// lineReader reads JSONL files line by line. Lines longer than
// maxLen are reported as oversized instead of aborting the
// scan. The buffer starts small and grows on demand up to
// maxLen.
type lineReader struct {
	r      *bufio.Reader
	maxLen int
	buf    []byte
	lineNo int
	err    error
}

func newLineReader(r io.Reader, maxLen int) *lineReader {
	return &lineReader{
		r:      bufio.NewReaderSize(r, initialScanBufSize),
		maxLen: maxLen,
		buf:    make([]byte, 0, initialScanBufSize),
	}
}

// next returns the next non-empty line (without trailing
// newline) and true, or false at EOF or on a read error. An
// oversized line is returned with oversized set and no
// content. The returned slice is only valid until the next
// call.
func (lr *lineReader) next() (line []byte, oversized, ok bool) {
	for {
		line, oversized, err := lr.readLine()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				lr.err = err
			}
			return nil, false, false
		}
		if oversized || len(line) > 0 {
			return line, oversized, true
		}
	}
}

// line returns the 1-based number of the line last returned.
func (lr *lineReader) line() int { return lr.lineNo }

// Err returns the first non-EOF read error.
func (lr *lineReader) Err() error { return lr.err }

// readLine reads a full line, returning a non-nil error only at
// EOF or read failure.
func (lr *lineReader) readLine() ([]byte, bool, error) {
	lr.buf = lr.buf[:0]
	oversized := false

	for {
		chunk, isPrefix, err := lr.r.ReadLine()
		if err != nil {
			if (len(lr.buf) > 0 || oversized) && errors.Is(err, io.EOF) {
				break
			}
			return nil, false, err
		}

		if oversized {
			if !isPrefix {
				break
			}
			continue
		}

		lr.buf = append(lr.buf, chunk...)

		if len(lr.buf) > lr.maxLen {
			oversized = true
			lr.buf = lr.buf[:0]
			if !isPrefix {
				break
			}
			continue
		}

		if !isPrefix {
			break
		}
	}

	lr.lineNo++
	if oversized {
		return nil, true, nil
	}
	return lr.buf, false, nil
}
