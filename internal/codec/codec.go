package codec

import (
	"errors"
	"net/url"
	"strings"
	"unicode/utf8"
)

var (
	ErrEmptyInput      = errors.New("please enter text")
	ErrInvalidEncoding = errors.New("invalid encoding")
)

const upperhex = "0123456789ABCDEF"

// Encode percent-encodes everything outside A-Z a-z 0-9 and -_.!~*'(),
// the same set a browser's encodeURIComponent leaves alone.
func Encode(value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", ErrEmptyInput
	}
	var b strings.Builder
	b.Grow(len(value) * 3)
	for i := 0; i < len(value); i++ {
		c := value[i]
		if isUnreserved(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(upperhex[c>>4])
		b.WriteByte(upperhex[c&15])
	}
	return b.String(), nil
}

// Decode treats '+' as a space before unescaping, so form-encoded input
// decodes the way people expect.
func Decode(value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", ErrEmptyInput
	}
	out, err := url.PathUnescape(strings.ReplaceAll(value, "+", "%20"))
	if err != nil || !utf8.ValidString(out) {
		return "", ErrInvalidEncoding
	}
	return out, nil
}

func isUnreserved(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	switch c {
	case '-', '_', '.', '!', '~', '*', '\'', '(', ')':
		return true
	}
	return false
}
