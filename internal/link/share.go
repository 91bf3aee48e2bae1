package link

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

var (
	ErrNoLinks     = errors.New("enter a link first")
	ErrInvalidLink = errors.New("invalid link format")
)

// ShareURL points base at a prefilled multi-link page: link1..linkN.
func ShareURL(base string, values []string) (string, error) {
	if len(values) == 0 {
		return "", ErrNoLinks
	}
	if len(values) > MaxLinks {
		return "", ErrListFull
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	q := url.Values{}
	for i, v := range values {
		v = strings.TrimSpace(v)
		if !ValidateLink(v).OK {
			return "", fmt.Errorf("%w: link %d", ErrInvalidLink, i+1)
		}
		q.Set(fmt.Sprintf("link%d", i+1), v)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// ShareLinkURL is the single-link variant using the "link" parameter.
func ShareLinkURL(base, value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", ErrNoLinks
	}
	if !ValidateLink(value).OK {
		return "", ErrInvalidLink
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("link", value)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// ParseShareQuery reads link1..link10, falling back to a single "link".
func ParseShareQuery(q url.Values) []string {
	var links []string
	for i := 1; i <= MaxLinks; i++ {
		if v := strings.TrimSpace(q.Get(fmt.Sprintf("link%d", i))); v != "" {
			links = append(links, v)
		}
	}
	if len(links) > 0 {
		return links
	}
	if v := strings.TrimSpace(q.Get("link")); v != "" {
		return []string{v}
	}
	return nil
}
