package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"deeplink/internal/model"
	"deeplink/internal/utils"

	"github.com/dlclark/regexp2"
)

const DefaultProxyTimeout = 8 * time.Second

// jsonBlock grabs the outermost array or object from a body that carries
// junk around the JSON (HTML wrappers, BOMs, trailing logs).
var jsonBlock = regexp2.MustCompile(`\[[\s\S]*\]|\{[\s\S]*\}`, regexp2.ECMAScript)

type Fetcher struct {
	Client  Doer
	Proxies []Proxy
	Timeout time.Duration
	Metrics *Metrics
}

func NewFetcher(client Doer, proxies []Proxy, timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = DefaultProxyTimeout
	}
	return &Fetcher{Client: client, Proxies: proxies, Timeout: timeout}
}

func notFound(proxy string) *model.ProxyResult {
	return &model.ProxyResult{
		Error:  "Not Found",
		Status: http.StatusNotFound,
		Meta:   model.FetchMeta{ContentType: "unknown", ProxyName: proxy},
	}
}

// FetchFromProxy performs one GET of targetURL through p. A 404, either
// from the proxy or reported inside its envelope, is returned as a result
// rather than an error.
func (f *Fetcher) FetchFromProxy(ctx context.Context, p Proxy, targetURL string, timeout time.Duration) (res *model.ProxyResult, err error) {
	defer func() {
		switch {
		case err != nil:
			f.Metrics.RecordProxy(p.Name, OutcomeError)
		case res.NotFound():
			f.Metrics.RecordProxy(p.Name, OutcomeNotFound)
		default:
			f.Metrics.RecordProxy(p.Name, OutcomeSuccess)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	utils.Log.Debug("proxy fetch", utils.Field("proxy", p.Name), utils.Field("url", targetURL))

	req, err := newRequest(ctx, p.Envelope.URL(targetURL), "application/json, text/plain, */*")
	if err != nil {
		return nil, &FetchError{Proxy: p.Name, Err: err}
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, &FetchError{Proxy: p.Name, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return notFound(p.Name), nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{Proxy: p.Name, Status: resp.StatusCode, Err: errors.New(http.StatusText(resp.StatusCode))}
	}

	body, err := p.Envelope.Normalize(resp, targetURL)
	if err != nil {
		return nil, &FetchError{Proxy: p.Name, Err: err}
	}
	if body.NotFound {
		return notFound(p.Name), nil
	}
	if body.Status != 0 {
		return nil, &FetchError{Proxy: p.Name, Status: body.Status, Err: errors.New("upstream error")}
	}

	raw := body.Raw
	if raw == "" {
		return nil, &FetchError{Proxy: p.Name, Err: ErrEmptyBody}
	}
	if strings.HasPrefix(raw, "data:") {
		if _, encoded, ok := strings.Cut(raw, "base64,"); ok {
			decoded, err := decodeBase64(encoded)
			if err != nil {
				return nil, &FetchError{Proxy: p.Name, Err: fmt.Errorf("decode data url: %w", err)}
			}
			raw = decoded
		}
	}

	parsed, err := ParseJSONLoose(raw)
	if err != nil {
		return nil, &FetchError{Proxy: p.Name, Err: err}
	}

	contentType := body.ContentType
	if contentType == "" {
		contentType = "unknown"
	}
	return &model.ProxyResult{
		JSON: parsed,
		Meta: model.FetchMeta{
			ContentType: contentType,
			Redirected:  body.Redirected,
			ProxyName:   p.Name,
		},
	}, nil
}

// TryFetchWithProxies races every configured proxy and returns the first
// success. A 404 counts as success. The losers are cancelled.
func (f *Fetcher) TryFetchWithProxies(ctx context.Context, targetURL string) (*model.ProxyResult, error) {
	if len(f.Proxies) == 0 {
		return nil, ErrAllProxiesFailed
	}

	raceCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	type outcome struct {
		res *model.ProxyResult
		err error
	}
	results := make(chan outcome, len(f.Proxies))
	for _, p := range f.Proxies {
		go func(p Proxy) {
			res, err := f.FetchFromProxy(raceCtx, p, targetURL, f.Timeout)
			results <- outcome{res: res, err: err}
		}(p)
	}

	errs := make([]error, 0, len(f.Proxies))
	for range f.Proxies {
		o := <-results
		if o.err == nil {
			utils.Log.Debug("proxy race won", utils.Field("proxy", o.res.Meta.ProxyName), utils.Field("url", targetURL))
			return o.res, nil
		}
		errs = append(errs, o.err)
	}
	return nil, fmt.Errorf("%w: %w", ErrAllProxiesFailed, errors.Join(errs...))
}

// ParseJSONLoose parses raw as JSON, falling back to the outermost
// bracketed block when the body carries extra text.
func ParseJSONLoose(raw string) (interface{}, error) {
	var v interface{}
	if err := json.Unmarshal([]byte(raw), &v); err == nil {
		return v, nil
	}

	m, err := jsonBlock.FindStringMatch(raw)
	if err != nil || m == nil {
		return nil, ErrNoJSON
	}
	if err := json.Unmarshal([]byte(m.String()), &v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoJSON, err)
	}
	return v, nil
}

func decodeBase64(s string) (string, error) {
	s = strings.TrimSpace(s)
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		b, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
		if err != nil {
			return "", err
		}
	}
	return string(b), nil
}
