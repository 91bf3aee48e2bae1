package service

import (
	"fmt"
	"sort"
	"strings"

	"deeplink/internal/model"
)

var (
	appleRefs = []model.Reference{
		{Label: "Apple Reference", URL: "https://developer.apple.com/documentation/xcode/supporting-associated-domains#:~:text=You%20must%20host%20the%20file%20using%20https"},
		{Label: "Android Reference", URL: "https://developer.android.com/training/app-links/verify-applinks#auto-verification"},
	}
	redirectRefs = []model.Reference{
		{Label: "Apple Reference", URL: "https://developer.apple.com/documentation/xcode/supporting-associated-domains#:~:text=with%20no%20redirects"},
		{Label: "Android Reference", URL: "https://developer.android.com/training/app-links/verify-applinks#auto-verification"},
	}
	dnsFixes = []string{
		"Verify domain name spelling",
		"Check DNS records (A/CNAME)",
		"Ensure domain is publicly accessible",
		"Wait for DNS propagation (up to 48h)",
	}
	validAASAMimes = []string{"application/json", "application/pkcs7-mime", "text/plain"}
)

func status(fail, warn bool) model.CheckStatus {
	switch {
	case fail:
		return model.StatusFail
	case warn:
		return model.StatusWarning
	default:
		return model.StatusPass
	}
}

// AnalyzeCommon builds the platform independent checks: DNS, and when at
// least one file was fetched, HTTPS and redirects.
func AnalyzeCommon(dns *model.DNSResult, domain string, ios, android *model.ProxyResult) []model.Check {
	var checks []model.Check

	if dns != nil && dns.Success {
		checks = append(checks, model.Check{
			Title: "DNS Validation Passed",
			Text:  "Domain is valid and reachable",
			Details: []string{
				"Domain: " + domain,
				"IP Address: " + dns.IP,
				fmt.Sprintf("Response Time: %dms", dns.Duration),
			},
			Status: model.StatusPass,
		})
	} else {
		reason := "DNS lookup failed"
		if dns != nil && dns.Error != "" {
			reason = dns.Error
		}
		checks = append(checks, model.Check{
			Title:   "DNS Validation Failed",
			Text:    "Domain is invalid or unreachable",
			Details: []string{"Reason: " + reason},
			Fixes:   dnsFixes,
			Status:  model.StatusFail,
		})
	}

	iosFetched := ios != nil && !ios.Failed()
	androidFetched := android != nil && !android.Failed()
	if !iosFetched && !androidFetched {
		return checks
	}

	checks = append(checks, model.Check{
		Title:  "HTTPS Connection",
		Text:   "Domain supports secure HTTPS connections. Required by both Apple and Google for auto-verification.",
		Refs:   appleRefs,
		Status: model.StatusPass,
	})

	redirected := (iosFetched && ios.Meta.Redirected) || (androidFetched && android.Meta.Redirected)
	text := "Deep link files are served directly without redirects. Required by both Apple and Google."
	if redirected {
		text = "Warning: Redirects detected. Apple and Google require serving these files directly."
	}
	checks = append(checks, model.Check{
		Title:  "No Redirects",
		Text:   text,
		Refs:   redirectRefs,
		Status: status(false, redirected),
	})
	return checks
}

// AnalyzeIOS checks a fetched apple-app-site-association document.
func AnalyzeIOS(doc interface{}, prefix, bundle string, meta model.FetchMeta, fileURL string) []model.Check {
	checks := []model.Check{{
		Title:  "AASA File is Found",
		Text:   "Successfully reached file: " + fileURL,
		Link:   fileURL,
		Status: model.StatusPass,
	}}

	contentType := meta.ContentType
	if contentType == "" {
		contentType = "unknown"
	}
	mimeValid := false
	for _, m := range validAASAMimes {
		if strings.Contains(contentType, m) {
			mimeValid = true
			break
		}
	}
	unknown := contentType == "unknown"
	checks = append(checks, model.Check{
		Title:  "MIME Type",
		Text:   "Content-Type: " + contentType + ". Apple prefers application/json.",
		Code:   contentType,
		Status: status(!mimeValid && !unknown, unknown),
	})

	applinks, hasAppLinks := asMap(doc)["applinks"]
	hasAppLinks = hasAppLinks && truthy(applinks)
	text := "Found applinks section."
	if !hasAppLinks {
		text = "Missing applinks section."
	}
	checks = append(checks, model.Check{Title: "Universal Links (applinks)", Text: text, Status: status(!hasAppLinks, false)})

	_, modern := asMap(applinks)["details"].([]interface{})
	text = "Using modern format (iOS 13+)."
	if !modern {
		text = "Using legacy format."
	}
	checks = append(checks, model.Check{Title: "AASA Format", Text: text, Status: status(false, !modern)})

	if prefix != "" && bundle != "" {
		target := prefix + "." + bundle
		matched := false
		for _, id := range aasaAppIDs(doc) {
			if id == target {
				matched = true
				break
			}
		}
		text = "Matched App ID: " + target
		if !matched {
			text = "Mismatch: " + target + " not found."
		}
		checks = append(checks, model.Check{Title: "App ID Match", Text: text, Code: target, Status: status(!matched, false)})
	}
	return checks
}

// AnalyzeAndroid checks a fetched assetlinks.json document.
func AnalyzeAndroid(doc interface{}, pkg string, meta model.FetchMeta, fileURL string) []model.Check {
	checks := []model.Check{{
		Title:  "Asset Links is Found",
		Text:   "Successfully reached file: " + fileURL,
		Link:   fileURL,
		Status: model.StatusPass,
	}}

	checks = append(checks,
		model.Check{
			Title:  "MIME Type",
			Text:   "Header: " + meta.ContentType + ". Google requires application/json.",
			Code:   meta.ContentType,
			Status: status(false, !strings.Contains(meta.ContentType, "application/json")),
		},
		model.Check{Title: "Valid JSON", Text: "Successfully parsed.", Status: model.StatusPass},
	)

	statements, isArray := doc.([]interface{})
	valid := false
	for _, item := range statements {
		m := asMap(item)
		if truthy(m["relation"]) && truthy(m["target"]) {
			valid = true
			break
		}
	}
	text := "Valid structure."
	if !isArray || !valid {
		text = "Invalid format."
	}
	checks = append(checks, model.Check{Title: "Asset Links Format", Text: text, Status: status(!valid, false)})

	if pkg != "" {
		found := false
		for _, item := range statements {
			if asString(asMap(asMap(item)["target"])["package_name"]) == pkg {
				found = true
				break
			}
		}
		text = "Found package " + pkg + "."
		if !found {
			text = "Could not find package " + pkg + "."
		}
		checks = append(checks, model.Check{Title: "Package Match", Text: text, Code: pkg, Status: status(!found, false)})
	}
	return checks
}

// Apps groups identifiers by owner: team id to bundle ids for iOS, package
// name to certificate fingerprints for Android.
type Apps map[string]map[string]struct{}

func (a Apps) add(key, value string) {
	set, ok := a[key]
	if !ok {
		set = make(map[string]struct{})
		a[key] = set
	}
	if value != "" {
		set[value] = struct{}{}
	}
}

// Keys returns the owners in sorted order.
func (a Apps) Keys() []string {
	keys := make([]string, 0, len(a))
	for k := range a {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Values returns the sorted members of key.
func (a Apps) Values(key string) []string {
	values := make([]string, 0, len(a[key]))
	for v := range a[key] {
		values = append(values, v)
	}
	sort.Strings(values)
	return values
}

func (a Apps) Sorted() map[string][]string {
	out := make(map[string][]string, len(a))
	for k := range a {
		out[k] = a.Values(k)
	}
	return out
}

// ExtractIOSApps collects appID and appIDs of every applinks detail and
// splits each at the first dot into team and bundle id.
func ExtractIOSApps(doc interface{}) Apps {
	apps := Apps{}
	for _, id := range aasaAppIDs(doc) {
		team, bundle, _ := strings.Cut(id, ".")
		apps.add(team, bundle)
	}
	return apps
}

// ExtractAndroidApps maps each package name to its certificate fingerprints.
func ExtractAndroidApps(doc interface{}) Apps {
	apps := Apps{}
	statements, _ := doc.([]interface{})
	for _, item := range statements {
		target := asMap(asMap(item)["target"])
		pkg := asString(target["package_name"])
		if pkg == "" {
			continue
		}
		apps.add(pkg, "")
		certs, _ := target["sha256_cert_fingerprints"].([]interface{})
		for _, c := range certs {
			apps.add(pkg, asString(c))
		}
	}
	return apps
}

func aasaAppIDs(doc interface{}) []string {
	details, _ := asMap(asMap(doc)["applinks"])["details"].([]interface{})
	var ids []string
	for _, d := range details {
		m := asMap(d)
		if id := asString(m["appID"]); id != "" {
			ids = append(ids, id)
		}
		switch v := m["appIDs"].(type) {
		case []interface{}:
			for _, id := range v {
				if s := asString(id); s != "" {
					ids = append(ids, s)
				}
			}
		case string:
			if v != "" {
				ids = append(ids, v)
			}
		}
	}
	return ids
}

func asMap(v interface{}) map[string]interface{} {
	m, _ := v.(map[string]interface{})
	return m
}

func asString(v interface{}) string {
	s, _ := v.(string)
	return s
}

// truthy follows JSON truthiness: null, false, 0 and "" are false.
func truthy(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		return t != ""
	default:
		return true
	}
}
