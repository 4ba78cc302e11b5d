package chapters

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/text/encoding"
	"golang.org/x/text/transform"

	"github.com/kerbaras/txt2epub/pkg/charset"
	"github.com/kerbaras/txt2epub/pkg/logger"
)

// DefaultEncodings is the scan fallback order.
var DefaultEncodings = []string{charset.UTF8Sig, charset.UTF8, "euc-kr"}

// ErrUndecodable means no candidate encoding could decode the file. It is
// distinct from a scan that finds zero chapters.
var ErrUndecodable = errors.New("file could not be decoded with any candidate encoding")

var errDecode = errors.New("decode error")

// cancelCheckLines is how often a scan pass looks at its context.
const cancelCheckLines = 4096

// ChapterRecord is one matched heading line.
type ChapterRecord struct {
	Selected         bool
	Text             string
	LineNo           int
	IllustrationPath string
}

type candidate struct {
	name string
	// decoder is nil for the UTF-8 family, which is validated in place.
	decoder  encoding.Encoding
	stripBOM bool
	ascii    bool
}

// Scanner finds chapter heading lines in a text file.
type Scanner struct {
	candidates []candidate
	logger     *zap.Logger
}

// NewScanner builds a scanner that tries encodings in order. Unknown names are
// logged and skipped; an empty list uses DefaultEncodings.
func NewScanner(encodings []string, l *zap.Logger) *Scanner {
	s := &Scanner{logger: logger.OrNop(l)}
	if len(encodings) == 0 {
		encodings = DefaultEncodings
	}

	for _, name := range encodings {
		name = charset.Normalize(name)
		switch name {
		case charset.UTF8Sig:
			s.candidates = append(s.candidates, candidate{name: name, stripBOM: true})
		case charset.UTF8, "utf8":
			s.candidates = append(s.candidates, candidate{name: charset.UTF8})
		case charset.ASCII, "us-ascii":
			s.candidates = append(s.candidates, candidate{name: charset.ASCII, ascii: true})
		default:
			enc, err := charset.Lookup(name)
			if err != nil {
				s.logger.Warn("ignoring scan encoding", zap.String("encoding", name), zap.Error(err))
				continue
			}
			s.candidates = append(s.candidates, candidate{name: name, decoder: enc})
		}
	}
	return s
}

// Encodings returns the candidate names in the order they are tried.
func (s *Scanner) Encodings() []string {
	names := make([]string, len(s.candidates))
	for i, c := range s.candidates {
		names[i] = c.name
	}
	return names
}

// Scan returns every line that fully matches at least one pattern, in file
// order, all selected. With no patterns it returns an empty result without
// touching the file.
func (s *Scanner) Scan(ctx context.Context, path string, patterns []*Pattern) ([]ChapterRecord, error) {
	if len(patterns) == 0 {
		return []ChapterRecord{}, nil
	}

	for _, c := range s.candidates {
		records, err := s.scanWith(ctx, path, c, patterns)
		if err == nil {
			s.logger.Debug("chapter scan finished",
				zap.String("path", path),
				zap.String("encoding", c.name),
				zap.Int("chapters", len(records)),
			)
			return records, nil
		}
		if !errors.Is(err, errDecode) {
			return nil, err
		}
		s.logger.Debug("scan candidate rejected",
			zap.String("path", path),
			zap.String("encoding", c.name),
			zap.Error(err),
		)
	}

	return nil, fmt.Errorf("%w: %s (tried %s)", ErrUndecodable, path, strings.Join(s.Encodings(), ", "))
}

func (s *Scanner) scanWith(ctx context.Context, path string, c candidate, patterns []*Pattern) ([]ChapterRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	var src io.Reader = f
	if c.decoder != nil {
		src = transform.NewReader(f, c.decoder.NewDecoder())
	}
	br := bufio.NewReaderSize(src, 64*1024)

	if c.stripBOM {
		if head, _ := br.Peek(3); bytes.Equal(head, []byte{0xEF, 0xBB, 0xBF}) {
			if _, err := br.Discard(3); err != nil {
				return nil, err
			}
		}
	}

	lines := NewLineReader(br)
	records := []ChapterRecord{}
	for lineNo := 1; ; lineNo++ {
		if lineNo%cancelCheckLines == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		raw, readErr := lines.ReadLine()
		if errors.Is(readErr, io.EOF) {
			break
		}
		if readErr != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, readErr)
		}

		if !c.valid(raw) {
			return nil, fmt.Errorf("%w: %s at line %d", errDecode, c.name, lineNo)
		}

		line := string(raw)
		if matchAny(patterns, line, s.logger) {
			records = append(records, ChapterRecord{
				Selected: true,
				Text:     line,
				LineNo:   lineNo,
			})
		}
	}

	return records, nil
}

// valid reports whether a line decoded cleanly. Decoders substitute U+FFFD
// for bad input, so its presence in legacy output marks a failure.
func (c candidate) valid(line []byte) bool {
	switch {
	case c.ascii:
		for _, b := range line {
			if b >= utf8.RuneSelf {
				return false
			}
		}
		return true
	case c.decoder != nil:
		return !bytes.ContainsRune(line, utf8.RuneError)
	default:
		return utf8.Valid(line)
	}
}

// Scan runs a scan with DefaultEncodings.
func Scan(ctx context.Context, path string, patterns []*Pattern) ([]ChapterRecord, error) {
	return NewScanner(nil, nil).Scan(ctx, path, patterns)
}
