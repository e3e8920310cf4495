package content

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/unicode"

	"github.com/mcdonaldj/filepack/internal/errdefs"
)

// DefaultEncoding is used when no encoding name is given.
const DefaultEncoding = "utf-8"

// errInvalidUTF8 reports bytes that are not valid UTF-8 under the utf-8 encoding.
var errInvalidUTF8 = errors.New("invalid utf-8 byte sequence")

// errNotASCII reports a byte or character outside the 7-bit range.
var errNotASCII = errors.New("not representable in ascii")

// aliases resolves common spellings that the IANA index lacks or that the
// WHATWG index maps to a wider encoding.
var aliases = map[string]string{
	"ascii":          "us-ascii",
	"us_ascii":       "us-ascii",
	"646":            "us-ascii",
	"us":             "us-ascii",
	"csascii":        "us-ascii",
	"iso646-us":      "us-ascii",
	"iso-ir-6":       "us-ascii",
	"cp367":          "us-ascii",
	"ibm367":         "us-ascii",
	"ansi_x3.4-1968": "us-ascii",
	"latin-1":        "iso-8859-1",
	"latin_1":        "iso-8859-1",
	"l1":             "iso-8859-1",
	"iso8859-1":      "iso-8859-1",
	"iso8859_1":      "iso-8859-1",
	"utf8":           "utf-8",
	"utf_8":          "utf-8",
}

// Codec converts between text and the bytes of one character encoding.
type Codec struct {
	name  string
	enc   encoding.Encoding
	ascii bool
}

// Name returns the canonical encoding name.
func (c Codec) Name() string { return c.name }

// LookupEncoding resolves an IANA or WHATWG encoding name.
// The empty string resolves to utf-8.
func LookupEncoding(name string) (Codec, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultEncoding
	}
	if alias, ok := aliases[strings.ToLower(name)]; ok {
		name = alias
	}
	if strings.EqualFold(name, "us-ascii") {
		return Codec{name: "us-ascii", ascii: true}, nil
	}

	if enc, err := ianaindex.IANA.Encoding(name); err == nil && enc != nil {
		canonical, err := ianaindex.IANA.Name(enc)
		if err != nil {
			canonical = strings.ToLower(name)
		}
		return Codec{name: strings.ToLower(canonical), enc: enc}, nil
	}
	if enc, err := htmlindex.Get(name); err == nil {
		canonical, err := htmlindex.Name(enc)
		if err != nil {
			canonical = strings.ToLower(name)
		}
		return Codec{name: canonical, enc: enc}, nil
	}
	return Codec{}, fmt.Errorf("%w: %q", errdefs.ErrUnknownEncoding, name)
}

func (c Codec) isUTF8() bool {
	return c.enc == unicode.UTF8 || c.enc == encoding.Nop
}

// Decode converts raw bytes to text.
// Under utf-8 the bytes must already be valid; nothing is replaced.
func (c Codec) Decode(data []byte) (string, error) {
	if c.ascii {
		for _, b := range data {
			if b >= utf8.RuneSelf {
				return "", errNotASCII
			}
		}
		return string(data), nil
	}
	if c.isUTF8() {
		if !utf8.Valid(data) {
			return "", errInvalidUTF8
		}
		return string(data), nil
	}
	out, err := c.enc.NewDecoder().Bytes(data)
	if err != nil {
		return "", fmt.Errorf("decoding %s: %w", c.name, err)
	}
	return string(out), nil
}

// Encode converts text to bytes, failing on characters the encoding cannot represent.
func (c Codec) Encode(text string) ([]byte, error) {
	if c.ascii {
		for i := 0; i < len(text); i++ {
			if text[i] >= utf8.RuneSelf {
				return nil, errNotASCII
			}
		}
		return []byte(text), nil
	}
	if c.isUTF8() {
		if !utf8.ValidString(text) {
			return nil, errInvalidUTF8
		}
		return []byte(text), nil
	}
	out, err := c.enc.NewEncoder().Bytes([]byte(text))
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", c.name, err)
	}
	return out, nil
}
