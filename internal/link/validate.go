package link

import (
	"net"
	"net/url"
	"regexp"
	"strings"
	"unicode"
)

const (
	TypeURL       = "URL"
	TypeURIScheme = "URI scheme"
)

var schemePattern = regexp.MustCompile(`^(?i)([a-z][a-z0-9+.-]*):`)

type Validation struct {
	OK   bool   `json:"ok"`
	Type string `json:"type"`
}

// ValidateLink classifies an already trimmed value as an http(s) URL, a
// custom URI scheme, or neither.
func ValidateLink(value string) Validation {
	if IsValidURL(value) {
		return Validation{OK: true, Type: TypeURL}
	}
	if IsValidURIScheme(value) {
		return Validation{OK: true, Type: TypeURIScheme}
	}
	return Validation{}
}

// IsValidURL accepts http and https URLs whose host is localhost, an IP
// literal, or a dotted name.
func IsValidURL(value string) bool {
	if hasSpace(value) {
		return false
	}
	u, err := url.Parse(value)
	if err != nil {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return false
	}
	host := u.Hostname()
	if host == "" {
		return false
	}
	return host == "localhost" || net.ParseIP(host) != nil || strings.Contains(strings.Trim(host, "."), ".")
}

func IsValidURIScheme(value string) bool {
	if hasSpace(value) {
		return false
	}
	match := schemePattern.FindStringSubmatch(value)
	if match == nil {
		return false
	}
	scheme := strings.ToLower(match[1])
	if scheme == "http" || scheme == "https" {
		return false
	}

	if strings.HasPrefix(strings.ToLower(value), scheme+"://") {
		return len(value) > len(scheme)+3
	}
	// scheme:path, as in tel: or mailto:
	return len(value) > len(scheme)+1
}

func hasSpace(value string) bool {
	return strings.IndexFunc(value, unicode.IsSpace) >= 0
}
