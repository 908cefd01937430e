// Package lineio reads newline-delimited text without giving up on lines
// that are too long to hold.
package lineio

import (
	"bufio"
	"bytes"
	"errors"
	"io"
)

// DefaultMaxLine bounds a single line
const DefaultMaxLine = 1 << 20

// Each calls fn for every line of r with the trailing "\n" or "\r\n"
// removed. Lines longer than limit bytes are discarded and counted instead
// of ending the read. The slice passed to fn is reused after fn returns.
func Each(r io.Reader, limit int, fn func(line []byte)) (oversized int, err error) {
	if limit <= 0 {
		limit = DefaultMaxLine
	}
	br := bufio.NewReaderSize(r, 64*1024)

	var buf []byte
	tooLong := false
	for {
		chunk, err := br.ReadSlice('\n')
		if len(chunk) > 0 && !tooLong {
			n := len(chunk)
			if chunk[n-1] == '\n' {
				n--
			}
			if len(buf)+n > limit {
				tooLong = true
				buf = buf[:0]
			} else {
				buf = append(buf, chunk...)
			}
		}

		switch {
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case err == nil || errors.Is(err, io.EOF):
			if tooLong {
				oversized++
			} else if len(buf) > 0 {
				fn(bytes.TrimRight(buf, "\r\n"))
			}
			buf = buf[:0]
			tooLong = false
			if err != nil {
				return oversized, nil
			}
		default:
			return oversized, err
		}
	}
}
