package vcas

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
)

// Framer turns an arbitrary byte stream into complete newline-terminated
// protocol lines. Partial frames persist in the accumulator across calls,
// so the stream may be split at any boundary, including mid-line.
type Framer struct {
	buf    []byte
	logger *zap.Logger
}

// NewFramer returns a Framer. A nil logger is replaced with a no-op one.
func NewFramer(logger *zap.Logger) *Framer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Framer{logger: logger}
}

// Feed appends data to the accumulator and returns every complete line
// found, trimmed and without its newline. All frames available after
// this feed are drained in one pass, so repeated feeds stay O(n)
// amortized. A segment that is not valid UTF-8 is logged and skipped
// without disturbing the rest of the buffer. Empty lines are dropped.
func (f *Framer) Feed(data []byte) []string {
	f.buf = append(f.buf, data...)

	var lines []string
	start := 0
	for {
		i := bytes.IndexByte(f.buf[start:], '\n')
		if i < 0 {
			break
		}
		segment := f.buf[start : start+i]
		start += i + 1

		if !utf8.Valid(segment) {
			f.logger.Warn("dropping undecodable frame", zap.Binary("segment", segment))
			continue
		}
		line := strings.TrimSpace(string(segment))
		if line != "" {
			lines = append(lines, line)
		}
	}

	// Keep only the unterminated tail.
	f.buf = append(f.buf[:0], f.buf[start:]...)
	return lines
}

// Pending returns the number of buffered bytes awaiting a newline.
func (f *Framer) Pending() int {
	return len(f.buf)
}

// Reset discards any buffered partial frame. Called when a connection is
// torn down so a reconnect starts from a clean stream.
func (f *Framer) Reset() {
	f.buf = f.buf[:0]
}
