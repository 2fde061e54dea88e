package link

import "bytes"

// MaxLineLength bounds an unterminated fragment. Anything longer is
// discarded up to the next newline.
const MaxLineLength = 64 * 1024

// Framer splits a byte stream into trimmed, non-empty lines. The zero value
// is ready to use.
type Framer struct {
	buf      []byte
	dropping bool
}

// Feed appends p and returns every complete line now available, plus the
// number of oversized fragments discarded during this call.
func (f *Framer) Feed(p []byte) (lines [][]byte, dropped int) {
	f.buf = append(f.buf, p...)
	start := 0
	for {
		i := bytes.IndexByte(f.buf[start:], '\n')
		if i < 0 {
			break
		}
		raw := f.buf[start : start+i]
		start += i + 1
		if f.dropping {
			f.dropping = false
			continue
		}
		line := bytes.TrimSpace(raw)
		if len(line) == 0 {
			continue
		}
		lines = append(lines, append([]byte(nil), line...))
	}

	rest := f.buf[start:]
	if len(rest) > MaxLineLength {
		f.buf = f.buf[:0]
		if !f.dropping {
			dropped++
		}
		f.dropping = true
		return lines, dropped
	}
	if start > 0 {
		f.buf = append(f.buf[:0], rest...)
	}
	return lines, dropped
}

// Reset discards any buffered partial line.
func (f *Framer) Reset() {
	f.buf = f.buf[:0]
	f.dropping = false
}

// Buffered reports the size of the pending partial line.
func (f *Framer) Buffered() int { return len(f.buf) }
