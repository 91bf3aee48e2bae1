package codec

import (
	"errors"
	"net/url"
	"regexp"
	"strings"
)

var (
	ErrNoURL      = errors.New("please paste a URL first")
	ErrInvalidURL = errors.New("invalid URL, please check the input")

	schemePrefix = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.-]*:`)
)

type Pretty struct {
	Text          string `json:"text"`
	AssumedScheme bool   `json:"assumed_scheme"`
}

func (p Pretty) Note() string {
	if p.AssumedScheme {
		return "Assumed https:// because no scheme was provided."
	}
	return "Done"
}

// PrettyPrint splits a URL into its base, one query parameter per line
// (in original order) and the fragment.
func PrettyPrint(value string) (Pretty, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return Pretty{}, ErrNoURL
	}

	var res Pretty
	candidate := trimmed
	if !schemePrefix.MatchString(candidate) {
		candidate = "https://" + candidate
		res.AssumedScheme = true
	}

	u, err := url.Parse(candidate)
	if err != nil {
		return Pretty{}, ErrInvalidURL
	}
	scheme := strings.ToLower(u.Scheme)
	if (scheme == "http" || scheme == "https") && u.Host == "" {
		return Pretty{}, ErrInvalidURL
	}

	lines := []string{base(u)}
	params := orderedParams(u.RawQuery)
	if len(params) > 0 {
		lines = append(lines, "")
	}
	for _, p := range params {
		if p[1] != "" {
			lines = append(lines, p[0]+"="+p[1])
		} else {
			lines = append(lines, p[0])
		}
	}
	if u.Fragment != "" {
		lines = append(lines, "#"+u.Fragment)
	}

	res.Text = strings.Join(lines, "\n")
	return res, nil
}

func base(u *url.URL) string {
	if u.Opaque != "" {
		return u.Scheme + ":" + u.Opaque
	}
	return u.Scheme + "://" + u.Host + u.EscapedPath()
}

// orderedParams keeps duplicate keys and their order, which url.Values
// does not.
func orderedParams(raw string) [][2]string {
	var out [][2]string
	for _, part := range strings.Split(raw, "&") {
		if part == "" {
			continue
		}
		key, val, _ := strings.Cut(part, "=")
		if k, err := url.QueryUnescape(key); err == nil {
			key = k
		}
		if v, err := url.QueryUnescape(val); err == nil {
			val = v
		}
		out = append(out, [2]string{key, val})
	}
	return out
}
