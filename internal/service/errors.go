package service

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
)

var (
	ErrEmptyBody           = errors.New("empty response")
	ErrNoJSON              = errors.New("no valid JSON found")
	ErrAllProxiesFailed    = errors.New("all proxies failed")
	ErrWorkerNotConfigured = errors.New("worker URL not configured")
	ErrWorkerQuota         = errors.New("worker quota exhausted")
	ErrSuperseded          = errors.New("validation superseded by a newer run")
)

// FetchError is a failure of one proxy; Status is set when the proxy (or
// the target behind it) answered with a non-success HTTP status.
type FetchError struct {
	Proxy  string
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s fetch failed (%d): %v", e.Proxy, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Proxy, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// FailureSummary condenses a proxy race error into text that is the same
// for the same outcome. It names the HTTP statuses the proxies saw, and
// status is the most telling of them (403 first, else the lowest).
func FailureSummary(err error) (msg string, status int) {
	var fetchErrs []*FetchError
	collectFetchErrors(err, &fetchErrs)

	seen := map[int]bool{}
	var statuses []int
	for _, fe := range fetchErrs {
		if fe.Status != 0 && !seen[fe.Status] {
			seen[fe.Status] = true
			statuses = append(statuses, fe.Status)
		}
	}
	if len(statuses) == 0 {
		return ErrAllProxiesFailed.Error(), 0
	}
	sort.Ints(statuses)

	status = statuses[0]
	if seen[http.StatusForbidden] {
		status = http.StatusForbidden
	}
	codes := make([]string, len(statuses))
	for i, s := range statuses {
		codes[i] = strconv.Itoa(s)
	}
	return fmt.Sprintf("%s (HTTP %s)", ErrAllProxiesFailed, strings.Join(codes, ", ")), status
}

func collectFetchErrors(err error, out *[]*FetchError) {
	switch e := err.(type) {
	case nil:
	case *FetchError:
		*out = append(*out, e)
	case interface{ Unwrap() []error }:
		for _, inner := range e.Unwrap() {
			collectFetchErrors(inner, out)
		}
	case interface{ Unwrap() error }:
		collectFetchErrors(e.Unwrap(), out)
	}
}
