package relay

import (
	"bytes"
	"strings"
	"unicode/utf8"
)

const initialBufferSize = 16 * 1024

// LineBuffer reassembles a chunked byte stream into text units that end on
// a newline. Bytes after the last newline are held back until more data or
// Flush arrives. It never looks at the content beyond finding newlines.
type LineBuffer struct {
	buf     []byte
	maxLine int
}

// NewLineBuffer creates a buffer. maxLine > 0 forces a unit out once that
// many bytes have piled up without a newline; 0 means no internal cap.
func NewLineBuffer(maxLine int) *LineBuffer {
	return &LineBuffer{
		buf:     make([]byte, 0, initialBufferSize),
		maxLine: maxLine,
	}
}

// Append adds chunk and returns everything up to and including the last
// newline seen so far, if there is one.
func (b *LineBuffer) Append(chunk []byte) (string, bool) {
	b.buf = append(b.buf, chunk...)

	if i := bytes.LastIndexByte(b.buf, '\n'); i >= 0 {
		return b.take(i + 1), true
	}

	if b.maxLine > 0 && len(b.buf) >= b.maxLine {
		cut := completeRunesPrefix(b.buf)
		if cut == 0 {
			cut = len(b.buf)
		}
		return b.take(cut), true
	}

	return "", false
}

// Flush returns whatever is left, for input that does not end in a newline.
func (b *LineBuffer) Flush() (string, bool) {
	if len(b.buf) == 0 {
		return "", false
	}
	return b.take(len(b.buf)), true
}

// Pending reports how many bytes are held back
func (b *LineBuffer) Pending() int {
	return len(b.buf)
}

// take decodes the first n bytes and keeps the rest
func (b *LineBuffer) take(n int) string {
	unit := decode(b.buf[:n])
	b.buf = append(b.buf[:0], b.buf[n:]...)
	return unit
}

// decode converts bytes to text, replacing invalid sequences with U+FFFD
func decode(p []byte) string {
	return strings.ToValidUTF8(string(p), "\uFFFD")
}

// completeRunesPrefix returns the length of p without a trailing rune that
// was cut in half by a chunk boundary.
func completeRunesPrefix(p []byte) int {
	for i := len(p) - 1; i >= 0 && i >= len(p)-utf8.UTFMax; i-- {
		if utf8.RuneStart(p[i]) {
			if !utf8.FullRune(p[i:]) {
				return i
			}
			break
		}
	}
	return len(p)
}
