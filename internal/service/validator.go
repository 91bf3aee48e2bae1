package service

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"deeplink/internal/model"
	"deeplink/internal/utils"
)

const (
	AASAPath       = "/.well-known/apple-app-site-association"
	AssetLinksPath = "/.well-known/assetlinks.json"
)

type FileFetcher interface {
	TryFetchWithProxies(ctx context.Context, targetURL string) (*model.ProxyResult, error)
}

type DNSChecker interface {
	CheckDNS(ctx context.Context, domain string) *model.DNSResult
}

type BundleFetcher interface {
	FetchBundle(ctx context.Context, domain string) (*model.WorkerBundle, error)
}

type Stage string

const (
	StageStart    Stage = "start"
	StageDNS      Stage = "dns"
	StageIOS      Stage = "ios"
	StageAndroid  Stage = "android"
	StageFallback Stage = "fallback"
)

// Progress is emitted once when a run starts (StageStart) and then each
// time a part of the state resolves.
type Progress struct {
	Stage Stage
	State model.ValidationState
}

// Validator checks a domain's association files: DNS plus both files in
// parallel, then the backend worker for whatever failed.
type Validator struct {
	Files   FileFetcher
	DNS     DNSChecker
	Worker  BundleFetcher
	// TLS, when set, inspects the certificate alongside the file fetches.
	TLS     TLSProber
	Metrics *Metrics
	// Scheme of the association file URLs, https outside tests.
	Scheme  string
}

func NewValidator(files FileFetcher, dns DNSChecker, worker BundleFetcher) *Validator {
	return &Validator{Files: files, DNS: dns, Worker: worker, Scheme: "https"}
}

func (v *Validator) AASAURL(domain string) string {
	return v.Scheme + "://" + domain + AASAPath
}

func (v *Validator) AssetLinksURL(domain string) string {
	return v.Scheme + "://" + domain + AssetLinksPath
}

// Validate runs one validation in a private session.
func (v *Validator) Validate(ctx context.Context, req model.ValidationRequest) (*model.Report, error) {
	return v.Run(ctx, NewSession(), req, nil)
}

// Run validates req inside s, replacing any run already in flight there.
// progress, when set, is called from several goroutines but never
// concurrently, and never after a newer run has begun in s. A run that is
// replaced before it finishes returns ErrSuperseded.
func (v *Validator) Run(ctx context.Context, s *Session, req model.ValidationRequest, progress func(Progress)) (*model.Report, error) {
	start := time.Now()
	ctx, gen := s.Begin(ctx, req)
	defer s.end(gen)

	utils.Log.Debug("validation start", utils.Field("domain", req.Domain), utils.Field("generation", gen))

	update := func(stage Stage, fn func(*model.ValidationState)) {
		var send func(model.ValidationState)
		if progress != nil {
			send = func(state model.ValidationState) { progress(Progress{Stage: stage, State: state}) }
		}
		s.emit(gen, fn, send)
	}
	update(StageStart, func(*model.ValidationState) {})

	var tlsInfo *model.TLSInfo
	var wg sync.WaitGroup
	if v.TLS != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tlsInfo = v.TLS.Probe(ctx, req.Domain)
		}()
	}
	wg.Add(3)
	go func() {
		defer wg.Done()
		res := v.DNS.CheckDNS(ctx, req.Domain)
		update(StageDNS, func(st *model.ValidationState) { st.DNS = res })
	}()
	go func() {
		defer wg.Done()
		res := v.fetchFile(ctx, v.AASAURL(req.Domain))
		update(StageIOS, func(st *model.ValidationState) { st.IOS = res })
	}()
	go func() {
		defer wg.Done()
		res := v.fetchFile(ctx, v.AssetLinksURL(req.Domain))
		update(StageAndroid, func(st *model.ValidationState) { st.Android = res })
	}()
	wg.Wait()

	if !s.Current(gen) {
		return nil, ErrSuperseded
	}
	_, state := s.Snapshot()

	usedFallback := NeedsFallback(state)
	if usedFallback {
		utils.Log.Debug("worker fallback", utils.Field("domain", req.Domain))
		bundle, err := v.fetchBundle(ctx, req.Domain)
		update(StageFallback, func(st *model.ValidationState) { MergeFallback(st, bundle, err) })
	}

	if !s.Current(gen) {
		return nil, ErrSuperseded
	}
	_, state = s.Snapshot()

	report := v.BuildReport(req, state)
	if tlsInfo != nil {
		report.TLS = tlsInfo
		report.Common = append(report.Common, AnalyzeTLS(tlsInfo))
	}
	report.UsedFallback = usedFallback
	report.Elapsed = time.Since(start)
	report.CheckedAt = start.UTC()
	v.Metrics.RecordValidation(report.Elapsed, usedFallback)
	return report, nil
}

func (v *Validator) fetchFile(ctx context.Context, fileURL string) *model.ProxyResult {
	res, err := v.Files.TryFetchWithProxies(ctx, fileURL)
	if err != nil {
		utils.Log.Debug("file fetch failed", utils.Field("url", fileURL), utils.Field("error", err.Error()))
		msg, status := FailureSummary(err)
		return &model.ProxyResult{
			Error:  msg,
			Status: status,
			Meta:   model.FetchMeta{ContentType: "unknown"},
		}
	}
	return res
}

func (v *Validator) fetchBundle(ctx context.Context, domain string) (*model.WorkerBundle, error) {
	if v.Worker == nil {
		return nil, ErrWorkerNotConfigured
	}
	return v.Worker.FetchBundle(ctx, domain)
}

// NeedsFallback reports whether DNS failed or a platform file failed for
// any reason other than a definitive 404.
func NeedsFallback(st model.ValidationState) bool {
	if st.DNS == nil || !st.DNS.Success {
		return true
	}
	hardFail := func(r *model.ProxyResult) bool {
		return r == nil || (r.Error != "" && r.Status != 404)
	}
	return hardFail(st.IOS) || hardFail(st.Android)
}

// MergeFallback folds a worker bundle into st. Only failed parts are
// replaced. When the worker itself failed, platform failures other than
// 404 and 403 collapse to "Service Unavailable" and a missing DNS result
// becomes a connectivity failure.
func MergeFallback(st *model.ValidationState, bundle *model.WorkerBundle, err error) {
	if err != nil || bundle == nil {
		if st.DNS == nil {
			st.DNS = &model.DNSResult{Error: "Connectivity failure"}
		}
		st.IOS = unavailable(st.IOS)
		st.Android = unavailable(st.Android)
		return
	}

	if st.DNS == nil || !st.DNS.Success {
		if bundle.DNS != nil {
			st.DNS = bundle.DNS
		} else {
			st.DNS = &model.DNSResult{Error: "DNS lookup failed"}
		}
	}
	if st.IOS.Failed() {
		st.IOS = fromWorker(bundle.IOS, "AASA fetch failed")
	}
	if st.Android.Failed() {
		st.Android = fromWorker(bundle.Android, "Assetlinks fetch failed")
	}
}

func unavailable(r *model.ProxyResult) *model.ProxyResult {
	res := &model.ProxyResult{Error: "Service Unavailable", Meta: model.FetchMeta{ContentType: "unknown"}}
	if r == nil {
		return res
	}
	if !r.Failed() || r.NotFound() || r.Status == http.StatusForbidden {
		return r
	}
	res.Status = r.Status
	return res
}

func fromWorker(w *model.WorkerFetch, fallbackErr string) *model.ProxyResult {
	if w != nil && w.Success {
		meta := model.FetchMeta{ContentType: w.ContentType, Redirected: w.Redirected, ProxyName: "Worker"}
		if w.ResponseMeta != nil {
			if meta.ContentType == "" {
				meta.ContentType = w.ResponseMeta.ContentType
			}
			meta.Redirected = meta.Redirected || w.ResponseMeta.Redirected
		}
		if meta.ContentType == "" {
			meta.ContentType = "unknown"
		}
		return &model.ProxyResult{JSON: w.JSON, Meta: meta}
	}

	res := &model.ProxyResult{Error: fallbackErr, Meta: model.FetchMeta{ContentType: "unknown"}}
	if w != nil {
		if w.Error != "" {
			res.Error = w.Error
		}
		res.Status = w.Status
	}
	return res
}

// BuildReport runs the analysis over a settled state.
func (v *Validator) BuildReport(req model.ValidationRequest, st model.ValidationState) *model.Report {
	report := &model.Report{
		Request: req,
		DNS:     st.DNS,
		Common:  AnalyzeCommon(st.DNS, req.Domain, st.IOS, st.Android),
		IOS:     model.PlatformReport{URL: v.AASAURL(req.Domain)},
		Android: model.PlatformReport{URL: v.AssetLinksURL(req.Domain)},
	}

	if st.IOS.Failed() {
		report.IOS.Error, report.IOS.NotFound = failure(st.IOS)
	} else {
		report.IOS.Checks = AnalyzeIOS(st.IOS.JSON, req.IOSPrefix, req.IOSBundle, st.IOS.Meta, report.IOS.URL)
		report.IOS.Apps = ExtractIOSApps(st.IOS.JSON).Sorted()
		report.IOS.Source = st.IOS.JSON
	}

	if st.Android.Failed() {
		report.Android.Error, report.Android.NotFound = failure(st.Android)
	} else {
		report.Android.Checks = AnalyzeAndroid(st.Android.JSON, req.AndroidPackage, st.Android.Meta, report.Android.URL)
		report.Android.Apps = ExtractAndroidApps(st.Android.JSON).Sorted()
		report.Android.Source = st.Android.JSON
	}
	return report
}

func failure(r *model.ProxyResult) (string, bool) {
	if r == nil {
		return "Service Unavailable", false
	}
	return r.Error, r.NotFound() || strings.Contains(strings.ToLower(r.Error), "not found")
}
