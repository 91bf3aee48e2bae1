package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"deeplink/internal/config"
	"deeplink/internal/model"
	"deeplink/internal/service"
	"deeplink/internal/utils"
	"deeplink/internal/view"

	"github.com/fatih/color"
)

func main() {
	os.Exit(run(os.Args[1:], color.Output, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("deeplink-check", flag.ContinueOnError)
	fs.SetOutput(stderr)
	prefix := fs.String("prefix", "", "iOS team ID (app ID prefix)")
	bundle := fs.String("bundle", "", "iOS bundle ID to look for")
	pkg := fs.String("package", "", "Android package name to look for")
	asJSON := fs.Bool("json", false, "print the report as JSON")
	noColor := fs.Bool("no-color", false, "disable colors")
	noTLS := fs.Bool("no-tls", false, "skip the TLS certificate check")
	timeout := fs.Duration("timeout", 30*time.Second, "overall timeout")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: deeplink-check [flags] <domain>...")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}
	if *noColor {
		color.NoColor = true
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}
	utils.InitLogger(cfg.Debug)
	v := newValidator(cfg, !*noTLS)

	code := 0
	for _, input := range fs.Args() {
		req, err := service.NewValidationRequest(input, *prefix, *bundle, *pkg)
		if err != nil {
			fmt.Fprintf(stdout, "[%s] %s: %s\n", color.HiRedString("!"), input, err)
			code = 1
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), *timeout)
		report, err := v.Validate(ctx, req)
		cancel()
		if err != nil {
			fmt.Fprintf(stdout, "[%s] %s: %s\n", color.HiRedString("!"), req.Domain, err)
			code = 1
			continue
		}

		if *asJSON {
			enc := json.NewEncoder(stdout)
			enc.SetIndent("", "  ")
			_ = enc.Encode(report)
		} else {
			printReport(stdout, report)
		}
		if failed(report) {
			code = 1
		}
	}
	return code
}

func newValidator(cfg *config.Config, withTLS bool) *service.Validator {
	client := service.NewHTTPClient()
	files := service.NewFetcher(client, service.DefaultProxies(), cfg.ProxyTimeout)
	dns := service.NewDNSService(client, cfg.DNSResolver, cfg.ProxyTimeout)
	worker := service.NewWorkerClient(cfg.WorkerURL, client, cfg.WorkerTimeout, cfg.WorkerRPS, cfg.WorkerBurst)

	v := service.NewValidator(files, dns, worker)
	if withTLS {
		v.TLS = service.NewTLSProbe()
	}
	return v
}

func printReport(w io.Writer, r *model.Report) {
	rv := view.BuildReport(r)
	fmt.Fprintf(w, "%s %s\n", color.HiMagentaString("Validating"), color.HiWhiteString(rv.Domain))
	printChecks(w, "", rv.Common)
	for _, col := range []view.Column{rv.IOS, rv.Android} {
		fmt.Fprintf(w, "\n%s %s\n", color.HiWhiteString(col.Name), col.URL)
		printChecks(w, "  ", col.Checks)
		for _, g := range col.Groups {
			members := append([]string(nil), g.Members...)
			sort.Strings(members)
			fmt.Fprintf(w, "  %s %s: %v\n", col.GroupLabel, g.Owner, members)
		}
		if col.NoMatch != "" {
			fmt.Fprintf(w, "  %s\n", color.HiYellowString(col.NoMatch))
		}
	}
	note := ""
	if rv.UsedFallback {
		note = " (worker fallback)"
	}
	fmt.Fprintf(w, "\nChecked in %s%s\n", rv.Elapsed, note)
}

func printChecks(w io.Writer, indent string, checks []model.Check) {
	for _, c := range checks {
		fmt.Fprintf(w, "%s[%s] %s: %s\n", indent, mark(c.Status), color.HiWhiteString(c.Title), c.Text)
	}
}

func mark(s model.CheckStatus) string {
	switch s {
	case model.StatusPass:
		return color.HiGreenString("+")
	case model.StatusFail:
		return color.HiRedString("-")
	case model.StatusWarning:
		return color.HiYellowString("!")
	default:
		return color.WhiteString("~")
	}
}

// failed reports whether any check in r failed.
func failed(r *model.Report) bool {
	rv := view.BuildReport(r)
	for _, section := range [][]model.Check{rv.Common, rv.IOS.Checks, rv.Android.Checks} {
		for _, c := range section {
			if c.Status == model.StatusFail {
				return true
			}
		}
	}
	return false
}
