package chapters

import (
	"bufio"
	"bytes"
	"errors"
	"io"
)

// LineReader splits text into lines the way universal newlines do: "\n",
// "\r\n" and a lone "\r" each end a line.
type LineReader struct {
	br   *bufio.Reader
	line []byte
	done bool
}

func NewLineReader(r io.Reader) *LineReader {
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReader(r)
	}
	return &LineReader{br: br}
}

// ReadLine returns the next line without its terminator. The slice is only
// valid until the next call. It returns io.EOF once the input is exhausted;
// a final line with no terminator is still returned first.
func (l *LineReader) ReadLine() ([]byte, error) {
	if l.done {
		return nil, io.EOF
	}

	l.line = l.line[:0]
	for {
		n := l.br.Buffered()
		if n == 0 {
			n = 1
		}
		chunk, err := l.br.Peek(n)
		if len(chunk) == 0 {
			if errors.Is(err, io.EOF) {
				l.done = true
				if len(l.line) > 0 {
					return l.line, nil
				}
			}
			return nil, err
		}

		i := bytes.IndexAny(chunk, "\r\n")
		if i < 0 {
			l.line = append(l.line, chunk...)
			l.br.Discard(len(chunk))
			continue
		}

		l.line = append(l.line, chunk[:i]...)
		term := chunk[i]
		l.br.Discard(i + 1)
		if term == '\r' {
			if next, err := l.br.Peek(1); err == nil && next[0] == '\n' {
				l.br.Discard(1)
			}
		}
		return l.line, nil
	}
}
