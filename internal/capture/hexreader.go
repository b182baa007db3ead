package capture

import (
	"bufio"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
)

// maxLineLength bounds one capture line. A maximal datagram is 65534
// octets, i.e. under 200 KiB with separators. Longer lines are discarded
// and reported as malformed.
const maxLineLength = 256 * 1024

// HexReader yields one raw datagram per non-empty capture line.
//
// Not safe for concurrent use.
type HexReader struct {
	br   *bufio.Reader
	buf  []byte
	line int
}

// NewHexReader wraps r.
func NewHexReader(r io.Reader) *HexReader {
	return &HexReader{br: bufio.NewReaderSize(r, 4096)} //nolint:mnd // read buffer
}

// Next returns the next datagram and the line it came from.
// Blank and comment-only lines are skipped.
//
// Returns:
//   - []byte: The decoded octets (freshly allocated)
//   - int: 1-based line number
//   - error: io.EOF at end of input, *LineError for a malformed or
//     overlong line (reading may continue after it), or the underlying
//     read error
func (r *HexReader) Next() ([]byte, int, error) {
	for {
		text, tooLong, err := r.readLine()
		if errors.Is(err, io.EOF) {
			return nil, r.line, io.EOF
		}
		if err != nil {
			return nil, r.line, fmt.Errorf("reading capture: %w", err)
		}
		r.line++

		if tooLong {
			return nil, r.line, &LineError{Line: r.line, Reason: fmt.Sprintf("line exceeds %d bytes", maxLineLength)}
		}
		raw, err := ParseHex(text)
		if err != nil {
			return nil, r.line, &LineError{Line: r.line, Reason: err.Error()}
		}
		if raw == nil {
			continue
		}
		return raw, r.line, nil
	}
}

// readLine reads up to and including the next newline. A line longer than
// maxLineLength is consumed in full but not kept, and the bool reports it. io.EOF
// is returned only when no bytes remain.
func (r *HexReader) readLine() (string, bool, error) {
	r.buf = r.buf[:0]
	read := 0
	tooLong := false
	for {
		frag, err := r.br.ReadSlice('\n')
		read += len(frag)
		if !tooLong {
			if len(r.buf)+len(frag) > maxLineLength {
				tooLong = true
				r.buf = r.buf[:0]
			} else {
				r.buf = append(r.buf, frag...)
			}
		}

		switch {
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case errors.Is(err, io.EOF):
			if read == 0 {
				return "", false, io.EOF
			}
		case err != nil:
			return "", false, err
		}
		return string(r.buf), tooLong, nil
	}
}

// ParseHex decodes a single capture line. It returns nil, nil when the line
// holds nothing but whitespace or a comment.
func ParseHex(line string) ([]byte, error) {
	if i := strings.IndexByte(line, '#'); i >= 0 {
		line = line[:i]
	}

	digits := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\r', '\n', ':', '-':
			return -1
		}
		return r
	}, line)

	if digits == "" {
		return nil, nil
	}
	if len(digits)%2 != 0 {
		return nil, fmt.Errorf("odd number of hex digits (%d)", len(digits))
	}

	raw, err := hex.DecodeString(digits)
	if err != nil {
		return nil, err
	}
	return raw, nil
}
