package view

import (
	"encoding/json"
	"sort"
	"strings"
	"time"

	"deeplink/internal/model"
)

const accessDeniedText = "The server or a bot protection system (like Cloudflare) is blocking the validator. Please try testing on a real mobile device."

type AppGroup struct {
	Owner   string
	Members []string
}

// Column is one platform of the report.
type Column struct {
	Name        string
	Icon        string
	URL         string
	Checks      []model.Check
	GroupLabel  string
	Groups      []AppGroup
	NoMatch     string
	SourceTitle string
	SourceID    string
	Source      string
}

type ReportView struct {
	Domain       string
	Common       []model.Check
	IOS          Column
	Android      Column
	UsedFallback bool
	Elapsed      string
	CheckedAt    string
}

// BuildReport shapes a report for the templates. App groups are filtered
// by the identifier the user asked about.
func BuildReport(r *model.Report) ReportView {
	v := ReportView{
		Domain:       r.Request.Domain,
		Common:       r.Common,
		UsedFallback: r.UsedFallback,
		Elapsed:      r.Elapsed.Round(time.Millisecond).String(),
		CheckedAt:    r.CheckedAt.Format(time.RFC3339),
	}
	v.IOS = buildColumn(r.IOS, "iOS", "🍎", "IDs", r.Request.IOSBundle)
	v.IOS.SourceTitle, v.IOS.SourceID = "apple-app-site-association", "ios-json"
	v.Android = buildColumn(r.Android, "Android", "🤖", "Packages", r.Request.AndroidPackage)
	v.Android.SourceTitle, v.Android.SourceID = "assetlinks.json", "android-json"
	return v
}

func buildColumn(p model.PlatformReport, name, icon, label, filter string) Column {
	c := Column{Name: name, Icon: icon, URL: p.URL, GroupLabel: label}
	if p.Error != "" {
		c.Checks = []model.Check{ErrorCheck(p.Error, p.URL, true)}
		return c
	}
	c.Checks = p.Checks
	groups, matched := FilterApps(p.Apps, filter)
	if matched {
		c.Groups = groups
	} else if len(p.Apps) > 0 && filter != "" {
		c.NoMatch = `No matches for "` + filter + `".`
	}
	if p.Source != nil {
		if b, err := json.MarshalIndent(p.Source, "", "  "); err == nil {
			c.Source = string(b)
		}
	}
	return c
}

// ErrorCheck classifies a fetch failure. optional marks a file whose
// absence is acceptable: a not-found answer then renders neutral.
func ErrorCheck(message, fileURL string, optional bool) model.Check {
	lower := strings.ToLower(message)
	denied := strings.Contains(message, "403") || strings.Contains(lower, "access denied") || strings.Contains(lower, "forbidden")
	notFound := strings.Contains(message, "404") || strings.Contains(lower, "not found")

	c := model.Check{Title: "Fetch Error", Text: "Error: " + message, Link: fileURL, Status: model.StatusFail}
	switch {
	case denied:
		c.Title = "Access Denied (403)"
		c.Text = accessDeniedText
		c.Link = ""
	case notFound:
		c.Title = "File Not Found"
	}
	if optional && notFound && !denied {
		c.Status = model.StatusNeutral
	}
	return c
}

// FilterApps keeps the members containing filter, case-insensitively, and
// drops owners left empty. ok is false when nothing survived.
func FilterApps(apps map[string][]string, filter string) (groups []AppGroup, ok bool) {
	owners := make([]string, 0, len(apps))
	for k := range apps {
		owners = append(owners, k)
	}
	sort.Strings(owners)

	needle := strings.ToLower(filter)
	for _, owner := range owners {
		var members []string
		for _, m := range apps[owner] {
			if needle == "" || strings.Contains(strings.ToLower(m), needle) {
				members = append(members, m)
			}
		}
		if len(members) > 0 {
			groups = append(groups, AppGroup{Owner: owner, Members: members})
		}
	}
	return groups, len(groups) > 0
}

// HistoryRun is one stored watch run with the diff from the run before it.
type HistoryRun struct {
	Timestamp string
	Summary   string
	Diff      string
}

// BuildHistory pairs entries (newest first) with diffs, where diffs[i]
// leads from entries[i+1] to entries[i]. The oldest run has no diff.
func BuildHistory(entries []model.ReportEntry, diffs []string) []HistoryRun {
	runs := make([]HistoryRun, len(entries))
	for i, e := range entries {
		runs[i] = HistoryRun{Timestamp: e.Timestamp, Summary: e.Summary}
		if i < len(diffs) {
			runs[i].Diff = diffs[i]
		}
	}
	return runs
}

// ValidatorForm echoes the validator inputs back into the page.
type ValidatorForm struct {
	Domain         string `json:"domain" form:"domain" query:"domain"`
	Prefix         string `json:"prefix" form:"prefix" query:"prefix"`
	IOSBundle      string `json:"ios_bundle" form:"ios_bundle" query:"ios_bundle"`
	AndroidPackage string `json:"android_package" form:"android_package" query:"android_package"`
}
