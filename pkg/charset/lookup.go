package charset

import (
	"errors"
	"fmt"
	"strings"

	htmlcharset "golang.org/x/net/html/charset"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/encoding/unicode/utf32"
)

// Canonical names for the encodings that need no conversion.
const (
	UTF8    = "utf-8"
	UTF8Sig = "utf-8-sig"
	ASCII   = "ascii"
)

// ErrUnknownEncoding is returned when a name maps to no supported decoder.
var ErrUnknownEncoding = errors.New("unknown encoding")

// aliases covers names the detector emits that are not WHATWG or IANA labels.
var aliases = map[string]encoding.Encoding{
	"utf-8":     unicode.UTF8,
	"utf8":      unicode.UTF8,
	"ascii":     unicode.UTF8,
	"us-ascii":  unicode.UTF8,
	"utf-8-sig": unicode.UTF8BOM,
	"gb-18030":  simplifiedchinese.GB18030,
	"utf-32le":  utf32.UTF32(utf32.LittleEndian, utf32.IgnoreBOM),
	"utf-32be":  utf32.UTF32(utf32.BigEndian, utf32.IgnoreBOM),

	"iso-2022-kr": ISO2022KR,
	"csiso2022kr": ISO2022KR,
}

// replacementName is the WHATWG label set whose decoder collapses the whole
// input into a single U+FFFD. Such names fall through to IANA or fail.
const replacementName = "replacement"

// Normalize lowercases and trims an encoding name. An empty name is utf-8.
func Normalize(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return UTF8
	}
	return name
}

// IsNormalized reports whether text in the named encoding is already valid
// UTF-8 and needs no conversion.
func IsNormalized(name string) bool {
	switch Normalize(name) {
	case UTF8, UTF8Sig, ASCII:
		return true
	}
	return false
}

// Lookup resolves an encoding name to a decoder-capable encoding.
func Lookup(name string) (encoding.Encoding, error) {
	key := Normalize(name)
	if enc, ok := aliases[key]; ok {
		return enc, nil
	}

	if enc, canonical := htmlcharset.Lookup(key); enc != nil && canonical != replacementName {
		return enc, nil
	}

	enc, err := ianaindex.IANA.Encoding(key)
	if err == nil && enc != nil {
		return enc, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownEncoding, name)
}
