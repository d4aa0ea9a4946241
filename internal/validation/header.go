package validation

import (
	"fmt"
	"strings"
)

// MaxHeaderValueLength bounds stored header values.
const MaxHeaderValueLength = 8192

// ValidateHeader checks that name is an RFC 9110 token and value holds no
// control characters other than horizontal tab.
func ValidateHeader(name, value string) error {
	if name == "" {
		return fmt.Errorf("invalid header: name cannot be empty")
	}
	for i := 0; i < len(name); i++ {
		if !isTokenChar(name[i]) {
			return fmt.Errorf("invalid header name %q: character %q not allowed", name, name[i])
		}
	}
	if len(value) > MaxHeaderValueLength {
		return fmt.Errorf("invalid header %s: value must be at most %d bytes", name, MaxHeaderValueLength)
	}
	if i := strings.IndexFunc(value, func(r rune) bool { return (r < 0x20 && r != '\t') || r == 0x7f }); i >= 0 {
		return fmt.Errorf("invalid header %s: value contains control character at %d", name, i)
	}
	return nil
}

func isTokenChar(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	}
	return strings.IndexByte("!#$%&'*+-.^_`|~", c) >= 0
}
