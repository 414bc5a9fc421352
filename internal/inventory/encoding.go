package inventory

import (
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// Encoding is one entry in the ordered decode chain. A nil Enc means plain
// UTF-8 validation without transformation.
type Encoding struct {
	Name string
	Enc  encoding.Encoding
}

// DefaultEncodings is the chain tried for every file, in order: UTF-8,
// BOM-aware UTF-16, then Latin-1. Latin-1 accepts any byte sequence, so
// with the default chain only NUL-sniffed binaries are ever skipped;
// callers that trim the chain get EncodingExhausted behavior.
func DefaultEncodings() []Encoding {
	return []Encoding{
		{Name: "utf-8"},
		{Name: "utf-16", Enc: unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM)},
		{Name: "latin-1", Enc: charmap.ISO8859_1},
	}
}

// Decode returns the first successful decoding of raw along the chain and
// the name of the encoding that produced it. All entries failing yields
// ErrEncodingExhausted.
func Decode(raw []byte, chain []Encoding) (string, string, error) {
	for _, e := range chain {
		if e.Enc == nil {
			if utf8.Valid(raw) {
				return string(raw), e.Name, nil
			}
			continue
		}
		decoded, err := e.Enc.NewDecoder().Bytes(raw)
		if err != nil {
			continue
		}
		if !utf8.Valid(decoded) {
			continue
		}
		return string(decoded), e.Name, nil
	}
	return "", "", ErrEncodingExhausted
}
