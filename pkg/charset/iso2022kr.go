package charset

import (
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/transform"
)

// ISO2022KR is the 7-bit Korean mail encoding of RFC 1557. SO switches to
// KS X 1001 in the G1 set, SI switches back to ASCII, and every line starts
// in ASCII. x/text ships no decoder for it.
var ISO2022KR encoding.Encoding = iso2022KR{}

const (
	asciiShiftOut = 0x0E
	asciiShiftIn  = 0x0F
	asciiEsc      = 0x1B
)

// iso2022KRDesignator announces KS X 1001 in G1. It carries no text.
const iso2022KRDesignator = "\x1b$)C"

const replacementUTF8 = "\uFFFD"

type iso2022KR struct{}

func (iso2022KR) NewDecoder() *encoding.Decoder {
	return &encoding.Decoder{Transformer: &iso2022KRDecoder{euc: korean.EUCKR.NewDecoder()}}
}

func (iso2022KR) NewEncoder() *encoding.Encoder {
	return &encoding.Encoder{Transformer: &iso2022KREncoder{euc: korean.EUCKR.NewEncoder()}}
}

func (iso2022KR) String() string { return "ISO-2022-KR" }

type iso2022KRDecoder struct {
	euc     transform.Transformer
	shifted bool
}

func (d *iso2022KRDecoder) Reset() {
	d.shifted = false
}

func (d *iso2022KRDecoder) Transform(dst, src []byte, atEOF bool) (nDst, nSrc int, err error) {
	for nSrc < len(src) {
		// room for one replacement or one three byte hangul syllable
		if len(dst)-nDst < utf8.UTFMax {
			return nDst, nSrc, transform.ErrShortDst
		}

		c := src[nSrc]
		switch {
		case c == asciiEsc:
			rest := src[nSrc:]
			if len(rest) < len(iso2022KRDesignator) && !atEOF && iso2022KRDesignator[:len(rest)] == string(rest) {
				return nDst, nSrc, transform.ErrShortSrc
			}
			if len(rest) >= len(iso2022KRDesignator) && string(rest[:len(iso2022KRDesignator)]) == iso2022KRDesignator {
				nSrc += len(iso2022KRDesignator)
				continue
			}
			nDst += copy(dst[nDst:], replacementUTF8)
			nSrc++

		case c == asciiShiftOut:
			d.shifted = true
			nSrc++

		case c == asciiShiftIn:
			d.shifted = false
			nSrc++

		case c == '\n' || c == '\r':
			d.shifted = false
			dst[nDst] = c
			nDst++
			nSrc++

		case c >= utf8.RuneSelf:
			nDst += copy(dst[nDst:], replacementUTF8)
			nSrc++

		case d.shifted && c > ' ' && c < 0x7F:
			if nSrc+1 >= len(src) {
				if !atEOF {
					return nDst, nSrc, transform.ErrShortSrc
				}
				nDst += copy(dst[nDst:], replacementUTF8)
				nSrc++
				continue
			}
			pair := [2]byte{c | 0x80, src[nSrc+1] | 0x80}
			d.euc.Reset()
			n, _, eucErr := d.euc.Transform(dst[nDst:], pair[:], true)
			if eucErr != nil {
				nDst += copy(dst[nDst:], replacementUTF8)
			} else {
				nDst += n
			}
			nSrc += 2

		default:
			dst[nDst] = c
			nDst++
			nSrc++
		}
	}
	return nDst, nSrc, nil
}

type iso2022KREncoder struct {
	euc     transform.Transformer
	shifted bool
	started bool
}

func (e *iso2022KREncoder) Reset() {
	e.shifted = false
	e.started = false
}

func (e *iso2022KREncoder) Transform(dst, src []byte, atEOF bool) (nDst, nSrc int, err error) {
	for nSrc < len(src) {
		// designator, shift and a two byte pair
		if len(dst)-nDst < len(iso2022KRDesignator)+3 {
			return nDst, nSrc, transform.ErrShortDst
		}
		if !e.started {
			nDst += copy(dst[nDst:], iso2022KRDesignator)
			e.started = true
		}

		c := src[nSrc]
		if c < utf8.RuneSelf {
			if e.shifted {
				dst[nDst] = asciiShiftIn
				nDst++
				e.shifted = false
			}
			dst[nDst] = c
			nDst++
			nSrc++
			continue
		}

		if !atEOF && !utf8.FullRune(src[nSrc:]) {
			return nDst, nSrc, transform.ErrShortSrc
		}
		_, size := utf8.DecodeRune(src[nSrc:])

		var pair [2]byte
		e.euc.Reset()
		n, _, eucErr := e.euc.Transform(pair[:], src[nSrc:nSrc+size], true)
		if eucErr != nil {
			return nDst, nSrc, eucErr
		}
		if n != 2 {
			return nDst, nSrc, encoding.ErrInvalidUTF8
		}

		if !e.shifted {
			dst[nDst] = asciiShiftOut
			nDst++
			e.shifted = true
		}
		dst[nDst] = pair[0] & 0x7F
		dst[nDst+1] = pair[1] & 0x7F
		nDst += 2
		nSrc += size
	}

	if atEOF && e.shifted {
		if len(dst)-nDst < 1 {
			return nDst, nSrc, transform.ErrShortDst
		}
		dst[nDst] = asciiShiftIn
		nDst++
		e.shifted = false
	}
	return nDst, nSrc, nil
}
