package parser

import (
	"fmt"
	"path/filepath"
	"strings"
)

const upperhex = "0123456789ABCDEF"

// shouldEscape reports whether b is percent-encoded in project
// directory names. Controls, non-ASCII bytes and a set of
// punctuation wider than URL path encoding are escaped; '%'
// itself is escaped so that decoding is unambiguous.
func shouldEscape(b byte) bool {
	if b < 0x20 || b >= 0x7f {
		return true
	}
	switch b {
	case ' ', '"', '#', '<', '>', '`', '?', '{', '}',
		'/', ':', '@', '[', ']', '!', '%':
		return true
	}
	return false
}

// EncodeProjectPath converts an absolute path into the
// percent-encoded directory name used under projects/:
// the leading separator is dropped, unsafe bytes become %XX
// and the result is prefixed with "-".
func EncodeProjectPath(path string) string {
	s := strings.TrimPrefix(filepath.ToSlash(path), "/")

	var b strings.Builder
	b.Grow(len(s) + 1)
	b.WriteByte('-')
	for i := 0; i < len(s); i++ {
		c := s[i]
		if shouldEscape(c) {
			b.WriteByte('%')
			b.WriteByte(upperhex[c>>4])
			b.WriteByte(upperhex[c&0x0f])
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

// DecodeProjectPath reverses EncodeProjectPath. Malformed
// escapes are kept literally rather than rejected. The result
// is not validated; use DecodeAndValidate for untrusted names.
func DecodeProjectPath(name string) string {
	s := strings.TrimPrefix(name, "-")

	out := make([]byte, 0, len(s)+1)
	out = append(out, '/')
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '%' && i+2 < len(s) {
			hi, ok1 := unhex(s[i+1])
			lo, ok2 := unhex(s[i+2])
			if ok1 && ok2 {
				out = append(out, hi<<4|lo)
				i += 2
				continue
			}
		}
		out = append(out, c)
	}
	return strings.ToValidUTF8(string(out), "\uFFFD")
}

func unhex(c byte) (byte, bool) {
	switch {
	case '0' <= c && c <= '9':
		return c - '0', true
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10, true
	case 'A' <= c && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

// ValidateProjectPath fails with ErrUnsafePath when path is not
// absolute or contains a ".." component.
func ValidateProjectPath(path string) error {
	for _, comp := range strings.Split(filepath.ToSlash(path), "/") {
		if comp == ".." {
			return fmt.Errorf(
				"%w: %q contains a parent-directory component",
				ErrUnsafePath, path,
			)
		}
	}
	if !strings.HasPrefix(filepath.ToSlash(path), "/") {
		return fmt.Errorf(
			"%w: %q is not absolute", ErrUnsafePath, path,
		)
	}
	return nil
}

// DecodeAndValidate decodes an encoded project directory name
// and validates the result. It is the only decoder discovery
// trusts.
func DecodeAndValidate(name string) (string, error) {
	p := DecodeProjectPath(name)
	if err := ValidateProjectPath(p); err != nil {
		return "", err
	}
	return p, nil
}
