package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"time"

	"deeplink/internal/model"
	"deeplink/internal/utils"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

const (
	DefaultWorkerURL     = "https://deeplink-validator.pongsupavit.workers.dev"
	DefaultWorkerTimeout = 8 * time.Second
)

// WorkerClient calls the backend worker that fetches DNS and both
// association files server side in one bundle.
type WorkerClient struct {
	URL     string
	Client  Doer
	Timeout time.Duration
	Metrics *Metrics

	limiter *rate.Limiter
	group   singleflight.Group
}

// NewWorkerClient allows rps calls per second with the given burst. A
// non-positive rps disables the quota.
func NewWorkerClient(workerURL string, client Doer, timeout time.Duration, rps float64, burst int) *WorkerClient {
	if timeout <= 0 {
		timeout = DefaultWorkerTimeout
	}
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	if burst < 1 {
		burst = 1
	}
	return &WorkerClient{
		URL:     workerURL,
		Client:  client,
		Timeout: timeout,
		limiter: rate.NewLimiter(limit, burst),
	}
}

// FetchBundle asks the worker for the DNS, AASA and assetlinks results of
// domain. Concurrent calls for the same domain share one request and one
// quota token.
func (w *WorkerClient) FetchBundle(ctx context.Context, domain string) (*model.WorkerBundle, error) {
	if w.URL == "" {
		return nil, ErrWorkerNotConfigured
	}

	ch := w.group.DoChan(domain, func() (interface{}, error) {
		if !w.limiter.Allow() {
			return nil, ErrWorkerQuota
		}
		// Shared by every caller waiting on domain, not bound to this one.
		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.Timeout)
		defer cancel()
		return w.fetch(callCtx, domain)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			w.Metrics.RecordWorker(OutcomeError)
			utils.Log.Warn("worker bundle failed", utils.Field("domain", domain), utils.Field("error", res.Err.Error()))
			return nil, res.Err
		}
		w.Metrics.RecordWorker(OutcomeSuccess)
		return res.Val.(*model.WorkerBundle), nil
	}
}

func (w *WorkerClient) fetch(ctx context.Context, domain string) (*model.WorkerBundle, error) {
	utils.Log.Debug("worker bundle", utils.Field("domain", domain))

	req, err := newRequest(ctx, w.URL+"?url="+url.QueryEscape(domain), "application/json")
	if err != nil {
		return nil, fmt.Errorf("build worker request: %w", err)
	}
	resp, err := w.Client.Do(req)
	if err != nil {
		return nil, &FetchError{Proxy: "Worker", Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{Proxy: "Worker", Status: resp.StatusCode, Err: fmt.Errorf("worker bundle fetch failed")}
	}

	var bundle model.WorkerBundle
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyReadBytes)).Decode(&bundle); err != nil {
		return nil, &FetchError{Proxy: "Worker", Err: fmt.Errorf("decode bundle: %w", err)}
	}
	return &bundle, nil
}
