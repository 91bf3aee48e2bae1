package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const maxBodyReadBytes = 2 * 1024 * 1024

var errNoEnvelopeStatus = errors.New("envelope has no status")

// envelopeBody is what a proxy strategy extracts from its response.
type envelopeBody struct {
	Raw         string
	ContentType string
	Redirected  bool
	NotFound    bool
	// Status is the upstream code reported inside a wrapped envelope when
	// it is neither 200 nor 404.
	Status int
}

// Envelope is one proxy response strategy. Each kind knows how to address
// the target through the proxy and how to unwrap what comes back.
type Envelope interface {
	URL(target string) string
	Normalize(resp *http.Response, target string) (envelopeBody, error)
}

type Proxy struct {
	Name     string
	Envelope Envelope
}

// DirectEnvelope fetches the target itself. It is the only strategy that
// can observe redirects.
type DirectEnvelope struct{}

func (DirectEnvelope) URL(target string) string { return target }

func (DirectEnvelope) Normalize(resp *http.Response, target string) (envelopeBody, error) {
	raw, err := readBody(resp)
	if err != nil {
		return envelopeBody{}, err
	}
	redirected := false
	if resp.Request != nil && resp.Request.URL != nil {
		redirected = resp.Request.URL.String() != target
	}
	return envelopeBody{
		Raw:         raw,
		ContentType: resp.Header.Get("Content-Type"),
		Redirected:  redirected,
	}, nil
}

// RawEnvelope is a passthrough relay such as corsproxy.io: Endpoint is
// followed by the escaped target.
type RawEnvelope struct {
	Endpoint string
}

func (e RawEnvelope) URL(target string) string {
	return e.Endpoint + url.QueryEscape(target)
}

func (RawEnvelope) Normalize(resp *http.Response, _ string) (envelopeBody, error) {
	raw, err := readBody(resp)
	if err != nil {
		return envelopeBody{}, err
	}
	return envelopeBody{Raw: raw, ContentType: resp.Header.Get("Content-Type")}, nil
}

// WrappedEnvelope is an AllOrigins style relay answering with
// {"contents": "...", "status": {"http_code": 200, "content_type": "..."}}.
type WrappedEnvelope struct {
	Endpoint string
	Now      func() time.Time
}

type wrappedResponse struct {
	Contents *string `json:"contents"`
	Status   *struct {
		HTTPCode    int    `json:"http_code"`
		ContentType string `json:"content_type"`
	} `json:"status"`
}

func (e WrappedEnvelope) URL(target string) string {
	now := time.Now
	if e.Now != nil {
		now = e.Now
	}
	q := url.Values{}
	q.Set("url", target)
	q.Set("timestamp", strconv.FormatInt(now().UnixMilli(), 10))
	return e.Endpoint + "?" + q.Encode()
}

func (WrappedEnvelope) Normalize(resp *http.Response, _ string) (envelopeBody, error) {
	var data wrappedResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyReadBytes)).Decode(&data); err != nil {
		return envelopeBody{}, fmt.Errorf("decode envelope: %w", err)
	}

	if data.Status == nil {
		return envelopeBody{}, errNoEnvelopeStatus
	}
	switch data.Status.HTTPCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return envelopeBody{NotFound: true}, nil
	default:
		return envelopeBody{Status: data.Status.HTTPCode}, nil
	}

	body := envelopeBody{ContentType: "unknown"}
	if data.Status.ContentType != "" {
		body.ContentType = data.Status.ContentType
	}
	if data.Contents != nil {
		body.Raw = *data.Contents
	}
	if strings.HasPrefix(body.Raw, "data:") {
		if mime, _, ok := strings.Cut(strings.TrimPrefix(body.Raw, "data:"), ";"); ok && mime != "" {
			body.ContentType = mime
		}
	}
	return body, nil
}

func readBody(resp *http.Response) (string, error) {
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyReadBytes))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	return string(b), nil
}

// DefaultProxies is the direct fetch plus the two public relays.
func DefaultProxies() []Proxy {
	return []Proxy{
		{Name: "Direct", Envelope: DirectEnvelope{}},
		{Name: "AllOrigins", Envelope: WrappedEnvelope{Endpoint: "https://api.allorigins.win/get"}},
		{Name: "CORS Proxy IO", Envelope: RawEnvelope{Endpoint: "https://corsproxy.io/?"}},
	}
}
