package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"deeplink/internal/utils"
)

func init() {
	utils.TestInitLogger()
}

const aasaBody = `{"applinks":{"details":[{"appID":"ABCDE12345.com.example.app","paths":["*"]}]}}`

func direct() Proxy {
	return Proxy{Name: "Direct", Envelope: DirectEnvelope{}}
}

func TestFetchFromProxy_Direct(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(aasaBody))
		case "/moved":
			http.Redirect(w, r, "/ok", http.StatusFound)
		case "/missing":
			http.NotFound(w, r)
		case "/forbidden":
			w.WriteHeader(http.StatusForbidden)
		case "/empty":
			w.WriteHeader(http.StatusOK)
		case "/wrapped":
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte("<pre>\n" + aasaBody + "\n</pre>"))
		case "/garbage":
			_, _ = w.Write([]byte("<html>nothing here</html>"))
		case "/dataurl":
			_, _ = w.Write([]byte("data:application/json;base64," + base64.StdEncoding.EncodeToString([]byte(aasaBody))))
		}
	}))
	defer ts.Close()

	f := NewFetcher(ts.Client(), nil, time.Second)
	ctx := context.Background()

	t.Run("ok", func(t *testing.T) {
		res, err := f.FetchFromProxy(ctx, direct(), ts.URL+"/ok", time.Second)
		if err != nil {
			t.Fatal(err)
		}
		if res.Failed() || res.Meta.ContentType != "application/json" || res.Meta.Redirected || res.Meta.ProxyName != "Direct" {
			t.Errorf("unexpected result %+v", res)
		}
		if _, ok := asMap(res.JSON)["applinks"]; !ok {
			t.Errorf("JSON not parsed: %v", res.JSON)
		}
	})

	t.Run("redirect observed", func(t *testing.T) {
		res, err := f.FetchFromProxy(ctx, direct(), ts.URL+"/moved", time.Second)
		if err != nil {
			t.Fatal(err)
		}
		if !res.Meta.Redirected {
			t.Error("expected Redirected")
		}
	})

	t.Run("404 is a result", func(t *testing.T) {
		res, err := f.FetchFromProxy(ctx, direct(), ts.URL+"/missing", time.Second)
		if err != nil {
			t.Fatal(err)
		}
		if !res.NotFound() || res.Error != "Not Found" {
			t.Errorf("expected definitive 404, got %+v", res)
		}
	})

	t.Run("403 is an error", func(t *testing.T) {
		_, err := f.FetchFromProxy(ctx, direct(), ts.URL+"/forbidden", time.Second)
		var fe *FetchError
		if !errors.As(err, &fe) || fe.Status != http.StatusForbidden {
			t.Fatalf("expected FetchError 403, got %v", err)
		}
	})

	t.Run("empty body", func(t *testing.T) {
		_, err := f.FetchFromProxy(ctx, direct(), ts.URL+"/empty", time.Second)
		if !errors.Is(err, ErrEmptyBody) {
			t.Fatalf("expected ErrEmptyBody, got %v", err)
		}
	})

	t.Run("loose json", func(t *testing.T) {
		res, err := f.FetchFromProxy(ctx, direct(), ts.URL+"/wrapped", time.Second)
		if err != nil {
			t.Fatal(err)
		}
		if res.Meta.ContentType != "text/html" {
			t.Errorf("content type = %q", res.Meta.ContentType)
		}
		if len(ExtractIOSApps(res.JSON)) != 1 {
			t.Errorf("expected one team, got %v", res.JSON)
		}
	})

	t.Run("no json", func(t *testing.T) {
		_, err := f.FetchFromProxy(ctx, direct(), ts.URL+"/garbage", time.Second)
		if !errors.Is(err, ErrNoJSON) {
			t.Fatalf("expected ErrNoJSON, got %v", err)
		}
	})

	t.Run("data url", func(t *testing.T) {
		res, err := f.FetchFromProxy(ctx, direct(), ts.URL+"/dataurl", time.Second)
		if err != nil {
			t.Fatal(err)
		}
		if len(ExtractIOSApps(res.JSON)) != 1 {
			t.Errorf("data url not decoded: %v", res.JSON)
		}
	})
}

func TestFetchFromProxy_Wrapped(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Query().Get("url") {
		case "https://ok.example/file":
			_, _ = w.Write([]byte(`{"contents":"[{\"relation\":[\"x\"],\"target\":{}}]","status":{"http_code":200,"content_type":"application/json"}}`))
		case "https://gone.example/file":
			_, _ = w.Write([]byte(`{"contents":null,"status":{"http_code":404}}`))
		case "https://broken.example/file":
			_, _ = w.Write([]byte(`{"contents":"oops","status":{"http_code":502}}`))
		case "https://bare.example/file":
			_, _ = w.Write([]byte(`{"contents":"[]"}`))
		case "https://data.example/file":
			encoded := base64.StdEncoding.EncodeToString([]byte(`[]`))
			_, _ = w.Write([]byte(`{"contents":"data:text/plain;base64,` + encoded + `","status":{"http_code":200}}`))
		}
	}))
	defer ts.Close()

	p := Proxy{Name: "AllOrigins", Envelope: WrappedEnvelope{Endpoint: ts.URL + "/get"}}
	f := NewFetcher(ts.Client(), nil, time.Second)
	ctx := context.Background()

	res, err := f.FetchFromProxy(ctx, p, "https://ok.example/file", time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if res.Meta.ContentType != "application/json" || res.Meta.ProxyName != "AllOrigins" {
		t.Errorf("unexpected meta %+v", res.Meta)
	}

	res, err = f.FetchFromProxy(ctx, p, "https://gone.example/file", time.Second)
	if err != nil || !res.NotFound() {
		t.Errorf("inner 404 should be definitive, got %+v, %v", res, err)
	}

	_, err = f.FetchFromProxy(ctx, p, "https://broken.example/file", time.Second)
	var fe *FetchError
	if !errors.As(err, &fe) || fe.Status != 502 {
		t.Errorf("expected inner 502 error, got %v", err)
	}

	_, err = f.FetchFromProxy(ctx, p, "https://bare.example/file", time.Second)
	if !errors.Is(err, errNoEnvelopeStatus) {
		t.Errorf("envelope without status should fail, got %v", err)
	}

	res, err = f.FetchFromProxy(ctx, p, "https://data.example/file", time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if res.Meta.ContentType != "text/plain" {
		t.Errorf("content type from data url = %q", res.Meta.ContentType)
	}
}

func TestFetchFromProxy_Raw(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.RawQuery != "https%3A%2F%2Fexample.com%2F.well-known%2Fassetlinks.json" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(`[]`))
	}))
	defer ts.Close()

	p := Proxy{Name: "CORS Proxy IO", Envelope: RawEnvelope{Endpoint: ts.URL + "/?"}}
	f := NewFetcher(ts.Client(), nil, time.Second)
	res, err := f.FetchFromProxy(context.Background(), p, "https://example.com/.well-known/assetlinks.json", time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if res.Meta.ContentType == "" {
		t.Error("content type should default")
	}
}

func TestTryFetchWithProxies_FirstSuccessWins(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
		_, _ = w.Write([]byte(`{"slow":true}`))
	}))
	defer slow.Close()
	fast := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"fast":true}`))
	}))
	defer fast.Close()
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer failing.Close()

	f := NewFetcher(http.DefaultClient, []Proxy{
		{Name: "slow", Envelope: RawEnvelope{Endpoint: slow.URL + "/?"}},
		{Name: "failing", Envelope: RawEnvelope{Endpoint: failing.URL + "/?"}},
		{Name: "fast", Envelope: RawEnvelope{Endpoint: fast.URL + "/?"}},
	}, 5*time.Second)

	start := time.Now()
	res, err := f.TryFetchWithProxies(context.Background(), "https://example.com/x")
	if err != nil {
		t.Fatal(err)
	}
	if res.Meta.ProxyName != "fast" {
		t.Errorf("winner = %q, want fast", res.Meta.ProxyName)
	}
	if time.Since(start) > time.Second {
		t.Error("race waited for the slow proxy")
	}
}

func TestTryFetchWithProxies_NotFoundCountsAsSuccess(t *testing.T) {
	missing := httptest.NewServer(http.NotFoundHandler())
	defer missing.Close()
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer failing.Close()

	f := NewFetcher(http.DefaultClient, []Proxy{
		{Name: "failing", Envelope: RawEnvelope{Endpoint: failing.URL + "/?"}},
		{Name: "missing", Envelope: RawEnvelope{Endpoint: missing.URL + "/?"}},
	}, time.Second)

	res, err := f.TryFetchWithProxies(context.Background(), "https://example.com/x")
	if err != nil {
		t.Fatal(err)
	}
	if !res.NotFound() {
		t.Errorf("expected 404 result, got %+v", res)
	}
}

func TestTryFetchWithProxies_AllFail(t *testing.T) {
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer failing.Close()

	f := NewFetcher(http.DefaultClient, []Proxy{
		{Name: "a", Envelope: RawEnvelope{Endpoint: failing.URL + "/?"}},
		{Name: "b", Envelope: RawEnvelope{Endpoint: failing.URL + "/?"}},
	}, time.Second)

	_, err := f.TryFetchWithProxies(context.Background(), "https://example.com/x")
	if !errors.Is(err, ErrAllProxiesFailed) {
		t.Fatalf("expected ErrAllProxiesFailed, got %v", err)
	}
	var fe *FetchError
	if !errors.As(err, &fe) || fe.Status != http.StatusForbidden {
		t.Errorf("joined error should carry proxy failures, got %v", err)
	}

	_, err = NewFetcher(http.DefaultClient, nil, time.Second).TryFetchWithProxies(context.Background(), "https://example.com/x")
	if !errors.Is(err, ErrAllProxiesFailed) {
		t.Errorf("no proxies: got %v", err)
	}
}

func TestFailureSummary(t *testing.T) {
	fetchErr := func(proxy string, status int) error {
		return &FetchError{Proxy: proxy, Status: status, Err: errors.New("boom")}
	}
	join := func(errs ...error) error {
		return fmt.Errorf("%w: %w", ErrAllProxiesFailed, errors.Join(errs...))
	}

	tests := []struct {
		name       string
		err        error
		wantMsg    string
		wantStatus int
	}{
		{"network only", join(fetchErr("a", 0), fetchErr("b", 0)), "all proxies failed", 0},
		{"statuses sorted", join(fetchErr("a", 502), fetchErr("b", 500)), "all proxies failed (HTTP 500, 502)", 500},
		{"order independent", join(fetchErr("b", 500), fetchErr("a", 502), fetchErr("c", 500)), "all proxies failed (HTTP 500, 502)", 500},
		{"forbidden wins", join(fetchErr("a", 500), fetchErr("b", 403)), "all proxies failed (HTTP 403, 500)", 403},
		{"no proxies", ErrAllProxiesFailed, "all proxies failed", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, status := FailureSummary(tt.err)
			if msg != tt.wantMsg || status != tt.wantStatus {
				t.Errorf("FailureSummary = %q, %d; want %q, %d", msg, status, tt.wantMsg, tt.wantStatus)
			}
		})
	}
}

func TestFetchFromProxy_Timeout(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer ts.Close()

	f := NewFetcher(ts.Client(), nil, time.Second)
	_, err := f.FetchFromProxy(context.Background(), direct(), ts.URL, 50*time.Millisecond)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline error, got %v", err)
	}
}

func TestParseJSONLoose(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{"plain object", `{"a":1}`, false},
		{"plain array", `[1,2]`, false},
		{"bom prefixed", "\ufeff{\"a\":1}", false},
		{"surrounded", `callback({"a":1});`, false},
		{"none", `hello`, true},
		{"broken", `{"a":}`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseJSONLoose(tt.raw)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseJSONLoose(%q) err = %v, wantErr %v", tt.raw, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrNoJSON) {
				t.Errorf("error should wrap ErrNoJSON: %v", err)
			}
		})
	}
}
