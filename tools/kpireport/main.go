package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"charging-kpi/internal/analytics/application"
	"charging-kpi/internal/analytics/interfaces"
	"charging-kpi/internal/config"
	"charging-kpi/internal/observability/logging"
	"charging-kpi/internal/sessions/domain"
	"charging-kpi/internal/sessions/infrastructure/memory"
	"charging-kpi/internal/sessions/infrastructure/xlsx"
)

type options struct {
	in         string
	url        string
	from       string
	to         string
	sites      string
	kpi        string
	bucket     string
	reducer    string
	top        string
	portfolio  bool
	cumulative bool
	rows       bool
	format     string
	out        string
}

func main() {
	os.Exit(realMain(os.Args[1:], os.Stdout, os.Stderr))
}

// realMain returns the process exit code. The -out file is only written once the
// report has been built.
func realMain(args []string, stdout, stderr io.Writer) int {
	opts, err := parseFlags(args)
	if err != nil {
		fmt.Fprintln(stderr, err.Error())
		return 2
	}

	logger, err := logging.NewCLILogger()
	if err != nil {
		fmt.Fprintln(stderr, "logger:", err)
		return 2
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(stderr, "config:", err)
		return 2
	}

	var report bytes.Buffer
	if err := run(context.Background(), cfg, opts, &report, logger); err != nil {
		var loadErr *domain.LoadError
		if errors.As(err, &loadErr) && len(loadErr.Columns) > 0 {
			fmt.Fprintln(stderr, "missing columns:", strings.Join(loadErr.Columns, ", "))
		} else {
			fmt.Fprintln(stderr, err)
		}
		return 1
	}

	if opts.out == "" {
		if _, err := stdout.Write(report.Bytes()); err != nil {
			fmt.Fprintln(stderr, "write report:", err)
			return 1
		}
		return 0
	}
	if err := os.MkdirAll(filepath.Dir(opts.out), 0o755); err != nil {
		fmt.Fprintln(stderr, "create out dir:", err)
		return 2
	}
	if err := os.WriteFile(opts.out, report.Bytes(), 0o644); err != nil {
		fmt.Fprintln(stderr, "write out file:", err)
		return 1
	}
	return 0
}

func parseFlags(args []string) (options, error) {
	var opts options
	fs := flag.NewFlagSet("kpireport", flag.ContinueOnError)
	fs.StringVar(&opts.in, "in", "", "path to the session export workbook (.xlsx)")
	fs.StringVar(&opts.url, "url", "", "download URL of the session export workbook")
	fs.StringVar(&opts.from, "from", "", "first end date, YYYY-MM-DD or RFC3339")
	fs.StringVar(&opts.to, "to", "", "last end date, YYYY-MM-DD (inclusive) or RFC3339")
	fs.StringVar(&opts.sites, "site", "", "comma separated site names (default all)")
	fs.StringVar(&opts.kpi, "kpi", "", "trend KPI: energy_kwh, cost, duration_hours, avg_power_kw")
	fs.StringVar(&opts.bucket, "bucket", "", "trend bucket: none, hour, day, month, year")
	fs.StringVar(&opts.reducer, "reducer", "", "trend reducer: sum or mean")
	fs.StringVar(&opts.top, "top", "", "number of providers kept before the rest bucket (0 disables)")
	fs.BoolVar(&opts.portfolio, "portfolio", false, "add the portfolio total series")
	fs.BoolVar(&opts.cumulative, "cumulative", false, "accumulate trend values")
	fs.BoolVar(&opts.rows, "rows", false, "include filtered sessions in JSON output")
	fs.StringVar(&opts.format, "format", "json", "output format: json, xlsx or pdf")
	fs.StringVar(&opts.out, "out", "", "output file (default stdout)")
	if err := fs.Parse(args); err != nil {
		return opts, err
	}

	if opts.in == "" && opts.url == "" {
		return opts, errors.New("missing -in or -url")
	}
	if opts.in != "" && opts.url != "" {
		return opts, errors.New("use either -in or -url")
	}
	switch opts.format {
	case "json", "xlsx", "pdf":
	default:
		return opts, fmt.Errorf("unknown -format %q", opts.format)
	}
	if opts.top != "" {
		if _, err := strconv.Atoi(opts.top); err != nil {
			return opts, fmt.Errorf("invalid -top %q", opts.top)
		}
	}
	return opts, nil
}

func (o options) queryInput() application.QueryInput {
	var sites []string
	for _, site := range strings.Split(o.sites, ",") {
		if site = strings.TrimSpace(site); site != "" {
			sites = append(sites, site)
		}
	}
	return application.QueryInput{
		From:        o.from,
		To:          o.to,
		Sites:       sites,
		KPI:         o.kpi,
		Bucket:      o.bucket,
		Reducer:     o.reducer,
		TopN:        o.top,
		Portfolio:   o.portfolio,
		Cumulative:  o.cumulative,
		IncludeRows: o.rows,
	}
}

func (o options) source() (domain.Source, error) {
	if o.url != "" {
		return domain.Source{Name: o.url, URL: o.url}, nil
	}
	data, err := os.ReadFile(o.in)
	if err != nil {
		return domain.Source{}, fmt.Errorf("read workbook: %w", err)
	}
	return domain.Source{Name: filepath.Base(o.in), Data: data}, nil
}

func run(ctx context.Context, cfg config.Config, opts options, out io.Writer, logger *zap.Logger) error {
	loader := xlsx.NewLoader(xlsx.WithFetchTimeout(cfg.FetchTimeout), xlsx.WithMaxBytes(cfg.MaxUploadBytes))
	cache, err := memory.NewCachingLoader(loader, 1)
	if err != nil {
		return err
	}
	svc, err := application.NewDashboardService(cache, application.Options{
		Schema:         cfg.Schema(),
		Normalize:      cfg.NormalizeOptions(),
		DefaultTopN:    cfg.DefaultTopN,
		PortfolioLabel: cfg.PortfolioLabel,
	}, logger)
	if err != nil {
		return err
	}

	query, err := svc.ParseQuery(opts.queryInput())
	if err != nil {
		return err
	}
	src, err := opts.source()
	if err != nil {
		return err
	}
	ds, err := svc.Load(ctx, src)
	if err != nil {
		return err
	}
	view, err := svc.View(ctx, ds, query)
	if err != nil {
		return err
	}

	var data []byte
	switch opts.format {
	case "xlsx":
		data, err = interfaces.BuildKPIReportXLSX(view, time.Now().UTC())
	case "pdf":
		data, err = interfaces.BuildKPIReportPDF(view, time.Now().UTC())
	default:
		data, err = json.MarshalIndent(view, "", "  ")
		data = append(data, '\n')
	}
	if err != nil {
		return err
	}
	_, err = out.Write(data)
	return err
}
