package service

import (
	"reflect"
	"testing"

	"deeplink/internal/model"
)

func mustJSON(t *testing.T, raw string) interface{} {
	t.Helper()
	v, err := ParseJSONLoose(raw)
	if err != nil {
		t.Fatal(err)
	}
	return v
}

func statuses(checks []model.Check) map[string]model.CheckStatus {
	out := make(map[string]model.CheckStatus, len(checks))
	for _, c := range checks {
		out[c.Title] = c.Status
	}
	return out
}

func titles(checks []model.Check) []string {
	out := make([]string, 0, len(checks))
	for _, c := range checks {
		out = append(out, c.Title)
	}
	return out
}

func TestAnalyzeCommon(t *testing.T) {
	ok := &model.ProxyResult{JSON: map[string]interface{}{}, Meta: model.FetchMeta{ContentType: "application/json"}}
	redirected := &model.ProxyResult{JSON: []interface{}{}, Meta: model.FetchMeta{Redirected: true}}
	missing := &model.ProxyResult{Error: "Not Found", Status: 404}

	checks := AnalyzeCommon(&model.DNSResult{Success: true, IP: "1.2.3.4", Duration: 42}, "example.com", ok, missing)
	if got := titles(checks); !reflect.DeepEqual(got, []string{"DNS Validation Passed", "HTTPS Connection", "No Redirects"}) {
		t.Fatalf("titles = %v", got)
	}
	if checks[0].Details[1] != "IP Address: 1.2.3.4" || checks[0].Details[2] != "Response Time: 42ms" {
		t.Errorf("dns details = %v", checks[0].Details)
	}
	if checks[2].Status != model.StatusPass {
		t.Errorf("no redirect status = %s", checks[2].Status)
	}

	checks = AnalyzeCommon(&model.DNSResult{Success: true}, "example.com", missing, redirected)
	if checks[2].Status != model.StatusWarning {
		t.Errorf("redirect should warn, got %s", checks[2].Status)
	}

	checks = AnalyzeCommon(&model.DNSResult{Error: "DNS timeout", Code: model.DNSCodeTimeout}, "example.com", missing, missing)
	if len(checks) != 1 {
		t.Fatalf("nothing fetched: expected only the DNS check, got %v", titles(checks))
	}
	if checks[0].Title != "DNS Validation Failed" || checks[0].Status != model.StatusFail {
		t.Errorf("dns check = %+v", checks[0])
	}
	if checks[0].Details[0] != "Reason: DNS timeout" || len(checks[0].Fixes) != 4 {
		t.Errorf("dns failure details = %v fixes = %v", checks[0].Details, checks[0].Fixes)
	}

	if checks := AnalyzeCommon(nil, "example.com", nil, nil); checks[0].Status != model.StatusFail {
		t.Error("nil DNS should fail")
	}
}

func TestAnalyzeIOS(t *testing.T) {
	modern := mustJSON(t, `{"applinks":{"details":[{"appID":"ABCDE12345.com.example.app"},{"appIDs":["ABCDE12345.com.example.other","ZZZ.x"]}]}}`)
	legacy := mustJSON(t, `{"applinks":{"apps":[],"details":{"ABCDE12345.com.example.app":{}}}}`)
	webcredsOnly := mustJSON(t, `{"webcredentials":{"apps":["ABCDE12345.com.example.app"]}}`)

	tests := []struct {
		name   string
		doc    interface{}
		prefix string
		bundle string
		ct     string
		want   map[string]model.CheckStatus
	}{
		{
			name: "modern match", doc: modern, prefix: "ABCDE12345", bundle: "com.example.app", ct: "application/json",
			want: map[string]model.CheckStatus{
				"AASA File is Found":         model.StatusPass,
				"MIME Type":                  model.StatusPass,
				"Universal Links (applinks)": model.StatusPass,
				"AASA Format":                model.StatusPass,
				"App ID Match":               model.StatusPass,
			},
		},
		{
			name: "appIDs match", doc: modern, prefix: "ABCDE12345", bundle: "com.example.other", ct: "application/pkcs7-mime",
			want: map[string]model.CheckStatus{"App ID Match": model.StatusPass, "MIME Type": model.StatusPass},
		},
		{
			name: "mismatch", doc: modern, prefix: "ABCDE12345", bundle: "com.example.nope", ct: "text/plain; charset=utf-8",
			want: map[string]model.CheckStatus{"App ID Match": model.StatusFail, "MIME Type": model.StatusPass},
		},
		{
			name: "legacy", doc: legacy, ct: "text/html",
			want: map[string]model.CheckStatus{"AASA Format": model.StatusWarning, "MIME Type": model.StatusFail},
		},
		{
			name: "missing applinks", doc: webcredsOnly, ct: "unknown",
			want: map[string]model.CheckStatus{
				"Universal Links (applinks)": model.StatusFail,
				"AASA Format":                model.StatusWarning,
				"MIME Type":                  model.StatusWarning,
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checks := AnalyzeIOS(tt.doc, tt.prefix, tt.bundle, model.FetchMeta{ContentType: tt.ct}, "https://example.com"+AASAPath)
			got := statuses(checks)
			for title, want := range tt.want {
				if got[title] != want {
					t.Errorf("%s = %q, want %q", title, got[title], want)
				}
			}
			if _, ok := got["App ID Match"]; ok != (tt.prefix != "" && tt.bundle != "") {
				t.Errorf("App ID Match present = %v", ok)
			}
		})
	}

	checks := AnalyzeIOS(modern, "", "", model.FetchMeta{ContentType: "application/json"}, "u")
	if got := titles(checks); !reflect.DeepEqual(got, []string{"AASA File is Found", "MIME Type", "Universal Links (applinks)", "AASA Format"}) {
		t.Errorf("order = %v", got)
	}
}

func TestAnalyzeAndroid(t *testing.T) {
	valid := mustJSON(t, `[{"relation":["delegate_permission/common.handle_all_urls"],"target":{"namespace":"android_app","package_name":"com.example.app","sha256_cert_fingerprints":["AA:BB"]}}]`)
	noRelation := mustJSON(t, `[{"target":{"package_name":"com.example.app"}}]`)
	object := mustJSON(t, `{"relation":["x"],"target":{}}`)

	checks := AnalyzeAndroid(valid, "com.example.app", model.FetchMeta{ContentType: "application/json"}, "u")
	if got := titles(checks); !reflect.DeepEqual(got, []string{"Asset Links is Found", "MIME Type", "Valid JSON", "Asset Links Format", "Package Match"}) {
		t.Fatalf("order = %v", got)
	}
	for _, c := range checks {
		if c.Status != model.StatusPass {
			t.Errorf("%s = %s, want pass", c.Title, c.Status)
		}
	}

	got := statuses(AnalyzeAndroid(valid, "com.example.other", model.FetchMeta{ContentType: "text/plain"}, "u"))
	if got["MIME Type"] != model.StatusWarning || got["Package Match"] != model.StatusFail {
		t.Errorf("statuses = %v", got)
	}

	got = statuses(AnalyzeAndroid(noRelation, "", model.FetchMeta{ContentType: "application/json"}, "u"))
	if got["Asset Links Format"] != model.StatusFail {
		t.Errorf("missing relation should fail, got %v", got)
	}
	if _, ok := got["Package Match"]; ok {
		t.Error("Package Match without a package")
	}

	got = statuses(AnalyzeAndroid(object, "com.example.app", model.FetchMeta{ContentType: "application/json"}, "u"))
	if got["Asset Links Format"] != model.StatusFail || got["Package Match"] != model.StatusFail {
		t.Errorf("non-array document = %v", got)
	}
}

func TestExtractIOSApps(t *testing.T) {
	doc := mustJSON(t, `{"applinks":{"details":[
		{"appID":"TEAM1.com.example.app"},
		{"appIDs":["TEAM1.com.example.app","TEAM1.com.example.beta","TEAM2.org.other"]},
		{"appIDs":[null,""]}
	]}}`)
	got := ExtractIOSApps(doc).Sorted()
	want := map[string][]string{
		"TEAM1": {"com.example.app", "com.example.beta"},
		"TEAM2": {"org.other"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ExtractIOSApps = %v, want %v", got, want)
	}
	if len(ExtractIOSApps(mustJSON(t, `[]`))) != 0 {
		t.Error("array document should yield no apps")
	}
}

func TestExtractAndroidApps(t *testing.T) {
	doc := mustJSON(t, `[
		{"relation":["x"],"target":{"package_name":"com.b","sha256_cert_fingerprints":["FF","AA","FF"]}},
		{"relation":["x"],"target":{"package_name":"com.a"}},
		{"relation":["x"],"target":{"namespace":"web","site":"https://example.com"}}
	]`)
	apps := ExtractAndroidApps(doc)
	if got := apps.Keys(); !reflect.DeepEqual(got, []string{"com.a", "com.b"}) {
		t.Errorf("keys = %v", got)
	}
	if got := apps.Values("com.b"); !reflect.DeepEqual(got, []string{"AA", "FF"}) {
		t.Errorf("fingerprints = %v", got)
	}
	if got := apps.Values("com.a"); len(got) != 0 {
		t.Errorf("com.a fingerprints = %v", got)
	}
	if len(ExtractAndroidApps(mustJSON(t, `{}`))) != 0 {
		t.Error("object document should yield no apps")
	}
}
