package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"deeplink/internal/model"
	"deeplink/internal/utils"

	"github.com/miekg/dns"
)

const DefaultDNSTimeout = 8 * time.Second

var errNoARecords = errors.New("no A records")

// DNSProvider resolves the first A record of a domain.
type DNSProvider interface {
	Name() string
	LookupA(ctx context.Context, domain string) (string, error)
}

// DoHProvider speaks the JSON flavour of DNS-over-HTTPS served by Google
// and Cloudflare.
type DoHProvider struct {
	Label    string
	Endpoint string
	Client   Doer
}

type dohResponse struct {
	Status int `json:"Status"`
	Answer []struct {
		Name string `json:"name"`
		Type uint16 `json:"type"`
		Data string `json:"data"`
	} `json:"Answer"`
}

func (p *DoHProvider) Name() string { return p.Label }

func (p *DoHProvider) LookupA(ctx context.Context, domain string) (string, error) {
	q := url.Values{}
	q.Set("name", domain)
	q.Set("type", "A")
	req, err := newRequest(ctx, p.Endpoint+"?"+q.Encode(), "application/dns-json")
	if err != nil {
		return "", err
	}
	resp, err := p.Client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%s: status %d", p.Label, resp.StatusCode)
	}

	var data dohResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyReadBytes)).Decode(&data); err != nil {
		return "", fmt.Errorf("%s: decode: %w", p.Label, err)
	}
	if data.Status != dns.RcodeSuccess {
		return "", fmt.Errorf("%s: %s", p.Label, dns.RcodeToString[data.Status])
	}
	for _, ans := range data.Answer {
		if ans.Type == dns.TypeA && ans.Data != "" {
			return ans.Data, nil
		}
	}
	return "", fmt.Errorf("%s: %w", p.Label, errNoARecords)
}

// WireProvider queries a classic resolver over UDP.
type WireProvider struct {
	Label    string
	Resolver string
}

func (p *WireProvider) Name() string { return p.Label }

func (p *WireProvider) LookupA(ctx context.Context, domain string) (string, error) {
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(domain), dns.TypeA)
	m.RecursionDesired = true

	c := new(dns.Client)
	if deadline, ok := ctx.Deadline(); ok {
		c.Timeout = time.Until(deadline)
	}
	in, _, err := c.ExchangeContext(ctx, m, p.Resolver)
	if err != nil {
		return "", err
	}
	if in.Rcode != dns.RcodeSuccess {
		return "", fmt.Errorf("%s: %s", p.Label, dns.RcodeToString[in.Rcode])
	}
	for _, ans := range in.Answer {
		if a, ok := ans.(*dns.A); ok {
			return a.A.String(), nil
		}
	}
	return "", fmt.Errorf("%s: %w", p.Label, errNoARecords)
}

type DNSService struct {
	Providers []DNSProvider
	Timeout   time.Duration
	Metrics   *Metrics
}

// NewDNSService races Google and Cloudflare DoH, plus resolver over the
// wire when it is set.
func NewDNSService(client Doer, resolver string, timeout time.Duration) *DNSService {
	if timeout <= 0 {
		timeout = DefaultDNSTimeout
	}
	providers := []DNSProvider{
		&DoHProvider{Label: "Google DoH", Endpoint: "https://dns.google/resolve", Client: client},
		&DoHProvider{Label: "Cloudflare DoH", Endpoint: "https://cloudflare-dns.com/dns-query", Client: client},
	}
	if resolver != "" {
		providers = append(providers, &WireProvider{Label: "Resolver " + resolver, Resolver: resolver})
	}
	return &DNSService{Providers: providers, Timeout: timeout}
}

// CheckDNS returns the first provider to produce an A record. When every
// provider fails the result carries TIMEOUT if the shared deadline fired
// and FETCH_ERROR otherwise.
func (s *DNSService) CheckDNS(ctx context.Context, domain string) *model.DNSResult {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	type answer struct {
		provider string
		ip       string
		err      error
	}
	answers := make(chan answer, len(s.Providers))
	for _, p := range s.Providers {
		go func(p DNSProvider) {
			utils.Log.Debug("dns provider", utils.Field("provider", p.Name()), utils.Field("domain", domain))
			ip, err := p.LookupA(ctx, domain)
			answers <- answer{provider: p.Name(), ip: ip, err: err}
		}(p)
	}

	for range s.Providers {
		a := <-answers
		if a.err == nil {
			s.Metrics.RecordDNS(a.provider, "")
			return &model.DNSResult{
				Success:  true,
				IP:       a.ip,
				Duration: time.Since(start).Milliseconds(),
				Provider: a.provider,
			}
		}
		utils.Log.Debug("dns provider failed", utils.Field("provider", a.provider), utils.Field("error", a.err.Error()))
	}

	res := &model.DNSResult{
		Error:    "Failed to fetch",
		Code:     model.DNSCodeFetchError,
		Duration: time.Since(start).Milliseconds(),
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		res.Error = "DNS timeout"
		res.Code = model.DNSCodeTimeout
	}
	s.Metrics.RecordDNS("", res.Code)
	return res
}
