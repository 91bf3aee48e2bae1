package utils

import (
	"errors"
	"html/template"
	"io"
	"net"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/miekg/dns"
	"golang.org/x/net/idna"
)

var ErrEmptyDomain = errors.New("domain is empty")

type TemplateRegistry struct {
	Templates *template.Template
}

func (t *TemplateRegistry) Render(w io.Writer, name string, data interface{}, c echo.Context) error {
	return t.Templates.ExecuteTemplate(w, name, data)
}

func IsIP(val interface{}) bool {
	if str, ok := val.(string); ok {
		return net.ParseIP(str) != nil
	}
	return false
}

// NormalizeDomain turns whatever the user typed into the validator box
// ("Example.com/path", "https://example.com:443/x", "bücher.de") into the
// ASCII host the well-known files are fetched from.
func NormalizeDomain(input string) (string, error) {
	value := strings.ToLower(strings.TrimSpace(input))
	if value == "" {
		return "", ErrEmptyDomain
	}

	var host string
	if strings.Contains(value, "://") {
		u, err := url.Parse(value)
		if err != nil {
			return "", err
		}
		host = u.Hostname()
	} else {
		host = strings.Split(value, "/")[0]
		if h, _, err := net.SplitHostPort(host); err == nil {
			host = h
		}
	}
	host = strings.TrimSuffix(host, ".")
	if host == "" {
		return "", ErrEmptyDomain
	}

	if net.ParseIP(host) != nil {
		return host, nil
	}

	ascii, err := idna.Lookup.ToASCII(host)
	if err != nil {
		return "", err
	}
	if _, ok := dns.IsDomainName(ascii); !ok || !strings.Contains(ascii, ".") {
		return "", errors.New("invalid domain: " + host)
	}
	return ascii, nil
}

type ProxyConfig struct {
	TrustProxy    bool
	UseCloudflare bool
}

func ExtractIP(c echo.Context, cfg ProxyConfig) string {
	if cfg.UseCloudflare {
		if cfIP := c.Request().Header.Get("CF-Connecting-IP"); cfIP != "" {
			return cfIP
		}
	}

	if cfg.TrustProxy {
		if xff := c.Request().Header.Get("X-Forwarded-For"); xff != "" {
			parts := strings.Split(xff, ",")
			return strings.TrimSpace(parts[0])
		}
	}

	return c.RealIP()
}
