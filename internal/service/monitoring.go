package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"deeplink/internal/model"
	"deeplink/internal/utils"
)

// WatchStore is the storage the watch monitor writes to.
type WatchStore interface {
	GetWatchedDomains(ctx context.Context) ([]string, error)
	AddReportHistory(ctx context.Context, domain, summary string) (bool, error)
}

type MonitorService struct {
	Storage   WatchStore
	Validator *Validator
}

func NewMonitorService(s WatchStore, v *Validator) *MonitorService {
	return &MonitorService{Storage: s, Validator: v}
}

// RunCheck revalidates domain and records its summary when it changed.
// Watched domains are stored normalized; entries that no longer parse are
// rejected.
func (m *MonitorService) RunCheck(ctx context.Context, domain string) error {
	if _, err := utils.NormalizeDomain(domain); err != nil {
		utils.Log.Warn("invalid watched domain", utils.Field("domain", domain), utils.Field("error", err.Error()))
		return err
	}
	req := model.ValidationRequest{Domain: domain}
	utils.Log.Info("running scheduled check", utils.Field("domain", req.Domain))

	report, err := m.Validator.Validate(ctx, req)
	if err != nil {
		return fmt.Errorf("validate %s: %w", req.Domain, err)
	}
	added, err := m.Storage.AddReportHistory(ctx, req.Domain, Summarize(report))
	if err != nil {
		return fmt.Errorf("store report of %s: %w", req.Domain, err)
	}
	utils.Log.Info("finished check", utils.Field("domain", req.Domain), utils.Field("changed", added))
	return nil
}

// Summarize renders a report as stable text, one check per line, so two
// runs can be diffed. Timings are left out.
func Summarize(r *model.Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "domain: %s\n", r.Request.Domain)
	if r.DNS != nil && r.DNS.Success {
		fmt.Fprintf(&b, "dns: %s\n", r.DNS.IP)
	} else {
		b.WriteString("dns: unresolved\n")
	}
	for _, c := range r.Common {
		fmt.Fprintf(&b, "[%s] %s\n", c.Status, c.Title)
	}
	writePlatform(&b, "ios", r.IOS)
	writePlatform(&b, "android", r.Android)
	return b.String()
}

func writePlatform(b *strings.Builder, name string, p model.PlatformReport) {
	if p.Error != "" {
		fmt.Fprintf(b, "%s: error %s\n", name, p.Error)
		return
	}
	fmt.Fprintf(b, "%s:\n", name)
	for _, c := range p.Checks {
		fmt.Fprintf(b, "  [%s] %s\n", c.Status, c.Title)
	}
	owners := make([]string, 0, len(p.Apps))
	for k := range p.Apps {
		owners = append(owners, k)
	}
	sort.Strings(owners)
	for _, k := range owners {
		fmt.Fprintf(b, "  app %s: %s\n", k, strings.Join(p.Apps[k], ", "))
	}
}
