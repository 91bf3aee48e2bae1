package model

import "time"

// ValidationRequest is built once from user input and never mutated
// while a validation run is in flight.
type ValidationRequest struct {
	Domain         string `json:"domain" validate:"required,max=253"`
	IOSPrefix      string `json:"ios_prefix,omitempty" validate:"omitempty,alphanum,max=32"`
	IOSBundle      string `json:"ios_bundle,omitempty" validate:"omitempty,max=255"`
	AndroidPackage string `json:"android_package,omitempty" validate:"omitempty,max=255"`
}

type FetchMeta struct {
	ContentType string `json:"contentType"`
	Redirected  bool   `json:"redirected"`
	ProxyName   string `json:"proxyName,omitempty"`
}

// ProxyResult is either a parsed file (JSON + Meta) or an error. A 404 is
// carried as Error with Status set, it is a definitive answer.
type ProxyResult struct {
	JSON   interface{} `json:"json,omitempty"`
	Meta   FetchMeta   `json:"responseMeta"`
	Error  string      `json:"error,omitempty"`
	Status int         `json:"status,omitempty"`
}

func (r *ProxyResult) Failed() bool {
	return r == nil || r.Error != ""
}

func (r *ProxyResult) NotFound() bool {
	return r != nil && r.Error != "" && r.Status == 404
}

type DNSResult struct {
	Success  bool   `json:"success"`
	IP       string `json:"ip,omitempty"`
	Duration int64  `json:"duration"`
	Provider string `json:"provider,omitempty"`
	Error    string `json:"error,omitempty"`
	Code     string `json:"code,omitempty"`
}

const (
	DNSCodeTimeout    = "TIMEOUT"
	DNSCodeFetchError = "FETCH_ERROR"
)

type ValidationState struct {
	Domain  string       `json:"domain"`
	DNS     *DNSResult   `json:"dns"`
	IOS     *ProxyResult `json:"ios"`
	Android *ProxyResult `json:"android"`
}

// WorkerFetch is one platform entry of the backend worker bundle.
type WorkerFetch struct {
	Success      bool        `json:"success"`
	JSON         interface{} `json:"json,omitempty"`
	ContentType  string      `json:"contentType,omitempty"`
	Redirected   bool        `json:"redirected,omitempty"`
	ResponseMeta *FetchMeta  `json:"responseMeta,omitempty"`
	Error        string      `json:"error,omitempty"`
	Status       int         `json:"status,omitempty"`
}

type WorkerBundle struct {
	DNS     *DNSResult   `json:"dns"`
	IOS     *WorkerFetch `json:"ios"`
	Android *WorkerFetch `json:"android"`
}

type CheckStatus string

const (
	StatusPass    CheckStatus = "pass"
	StatusFail    CheckStatus = "fail"
	StatusWarning CheckStatus = "warning"
	StatusNeutral CheckStatus = "neutral"
)

type Reference struct {
	Label string `json:"label"`
	URL   string `json:"url"`
}

// Check is one line of a validation report.
type Check struct {
	Title   string      `json:"title"`
	Text    string      `json:"text"`
	Details []string    `json:"details,omitempty"`
	Fixes   []string    `json:"fixes,omitempty"`
	Code    string      `json:"code,omitempty"`
	Link    string      `json:"link,omitempty"`
	Refs    []Reference `json:"refs,omitempty"`
	Status  CheckStatus `json:"status"`
}

type PlatformReport struct {
	URL      string              `json:"url"`
	Error    string              `json:"error,omitempty"`
	NotFound bool                `json:"not_found,omitempty"`
	Checks   []Check             `json:"checks,omitempty"`
	Apps     map[string][]string `json:"apps,omitempty"`
	Source   interface{}         `json:"source,omitempty"`
}

// TLSInfo describes the certificate served on the domain's HTTPS port.
type TLSInfo struct {
	Issuer      string    `json:"issuer"`
	Subject     string    `json:"subject"`
	Expiry      time.Time `json:"expiry"`
	DaysLeft    int       `json:"days_left"`
	Protocol    string    `json:"protocol"`
	CipherSuite string    `json:"cipher_suite"`
	Verified    bool      `json:"verified"`
	VerifyError string    `json:"verify_error,omitempty"`
	Error       string    `json:"error,omitempty"`
}

type Report struct {
	Request      ValidationRequest `json:"request"`
	DNS          *DNSResult        `json:"dns"`
	TLS          *TLSInfo          `json:"tls,omitempty"`
	Common       []Check           `json:"common"`
	IOS          PlatformReport    `json:"ios"`
	Android      PlatformReport    `json:"android"`
	UsedFallback bool              `json:"used_fallback"`
	Elapsed      time.Duration     `json:"elapsed"`
	CheckedAt    time.Time         `json:"checked_at"`
}

// HistoryEntry mirrors one item of the link tester history list.
type HistoryEntry struct {
	Value string `json:"value"`
	Time  int64  `json:"time"`
}

type ReportEntry struct {
	Timestamp string `json:"timestamp"`
	Summary   string `json:"summary"`
}
