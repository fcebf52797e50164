package application

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"charging-kpi/internal/analytics/domain/statistic"
	"charging-kpi/internal/observability/logging"
	"charging-kpi/internal/observability/metrics"
	sessions "charging-kpi/internal/sessions/domain"
)

// WorkbookLoader turns a source into a raw table. The string result identifies the content.
type WorkbookLoader interface {
	Load(ctx context.Context, src sessions.Source, schema sessions.Schema) (*sessions.RawTable, string, bool, error)
}

// Clock provides time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// Options configures a DashboardService.
type Options struct {
	Schema         sessions.Schema
	Normalize      sessions.NormalizeOptions
	DefaultTopN    int
	PortfolioLabel string
	Clock          Clock
}

// Dataset is one normalized workbook.
type Dataset struct {
	ID       string            `json:"id"`
	Name     string            `json:"name,omitempty"`
	LoadedAt time.Time         `json:"loaded_at"`
	Table    sessions.Table    `json:"-"`
	Warnings sessions.Warnings `json:"warnings"`
}

// ViewWarnings are the non-fatal findings shown next to a view.
type ViewWarnings struct {
	InvalidRows   []sessions.RowIssue `json:"invalid_rows"`
	AnomalousRows []sessions.RowIssue `json:"anomalous_rows"`
	CoercedValues int                 `json:"coerced_values"`
	EmptyResult   bool                `json:"empty_result"`
}

// View is everything the dashboard renders for one query.
type View struct {
	DatasetID      string     `json:"dataset_id"`
	DatasetName    string     `json:"dataset_name,omitempty"`
	AvailableSites []string   `json:"available_sites"`
	DataFrom       *time.Time `json:"data_from,omitempty"`
	DataTo         *time.Time `json:"data_to,omitempty"`

	KPI     statistic.KPI         `json:"kpi"`
	Bucket  statistic.Granularity `json:"bucket"`
	Reducer statistic.Reducer     `json:"reducer"`

	Empty    bool `json:"empty"`
	Sessions int  `json:"sessions"`

	SiteKPIs             []statistic.SiteKPI       `json:"site_kpis"`
	Trend                []statistic.TrendPoint    `json:"trend"`
	AuthDistribution     []statistic.CategoryShare `json:"auth_distribution"`
	ProviderDistribution []statistic.CategoryShare `json:"provider_distribution"`
	AuthTrend            []statistic.TrendPoint    `json:"auth_trend"`
	ProviderTrend        []statistic.TrendPoint    `json:"provider_trend"`
	AuthColors           sessions.ColorMap         `json:"auth_colors"`
	ProviderColors       sessions.ColorMap         `json:"provider_colors"`
	Rows                 []sessions.DerivedSession `json:"rows,omitempty"`

	Warnings ViewWarnings `json:"warnings"`
}

// DashboardService runs the session pipeline for one request.
type DashboardService struct {
	loader         WorkbookLoader
	schema         sessions.Schema
	normalize      sessions.NormalizeOptions
	defaultTopN    int
	portfolioLabel string
	clock          Clock
	logger         *zap.Logger
}

// NewDashboardService builds a DashboardService.
func NewDashboardService(loader WorkbookLoader, opts Options, logger *zap.Logger) (*DashboardService, error) {
	if loader == nil {
		return nil, ErrNilLoader
	}
	if len(opts.Schema.Required) == 0 {
		opts.Schema = sessions.DefaultSchema()
	}
	if opts.PortfolioLabel == "" {
		opts.PortfolioLabel = statistic.PortfolioLabel
	}
	if opts.DefaultTopN < 0 {
		opts.DefaultTopN = 0
	}
	if opts.Clock == nil {
		opts.Clock = systemClock{}
	}
	return &DashboardService{
		loader:         loader,
		schema:         opts.Schema,
		normalize:      opts.Normalize,
		defaultTopN:    opts.DefaultTopN,
		portfolioLabel: opts.PortfolioLabel,
		clock:          opts.Clock,
		logger:         logging.OrNop(logger),
	}, nil
}

// ParseQuery validates in with the service defaults.
func (s *DashboardService) ParseQuery(in QueryInput) (Query, error) {
	return ParseQuery(in, s.normalize.Location, s.defaultTopN)
}

// Load reads and normalizes a workbook. Load errors stop the request; row problems
// are returned as dataset warnings.
func (s *DashboardService) Load(ctx context.Context, src sessions.Source) (*Dataset, error) {
	start := time.Now()
	source := metrics.SourceUpload
	if src.IsRemote() {
		source = metrics.SourceURL
	}

	raw, key, hit, err := s.loader.Load(ctx, src, s.schema)
	if err != nil {
		reason := "unknown"
		if loadErr, ok := sessions.AsLoadError(err); ok {
			reason = string(loadErr.Reason)
		}
		metrics.IncLoadError(reason)
		metrics.ObserveLoad(source, metrics.ResultError, time.Since(start))
		s.logger.Warn("workbook load failed",
			zap.String("source", source),
			zap.String("name", src.Name),
			zap.String("reason", reason),
			zap.Error(err),
		)
		return nil, err
	}
	metrics.IncLoadCache(hit)

	table, warnings := sessions.Normalize(raw, s.normalize)
	metrics.AddSessionRows(metrics.RowsValid, table.Len())
	metrics.AddSessionRows(metrics.RowsInvalid, len(warnings.InvalidRows))
	metrics.AddSessionRows(metrics.RowsAnomalous, len(warnings.AnomalousRows))
	metrics.AddSessionRows(metrics.RowsCoerced, warnings.CoercedValues)
	metrics.ObserveLoad(source, metrics.ResultSuccess, time.Since(start))

	s.logger.Info("workbook loaded",
		zap.String("dataset", key),
		zap.String("source", source),
		zap.String("name", src.Name),
		zap.Bool("cache_hit", hit),
		zap.Int("records", raw.Len()),
		zap.Int("sessions", table.Len()),
		zap.Int("invalid_rows", len(warnings.InvalidRows)),
		zap.Int("anomalous_rows", len(warnings.AnomalousRows)),
		zap.Int("coerced_values", warnings.CoercedValues),
	)
	return &Dataset{
		ID:       key,
		Name:     src.Name,
		LoadedAt: s.clock.Now(),
		Table:    table,
		Warnings: warnings,
	}, nil
}

// View filters the dataset, buckets providers over the filtered rows and computes every
// aggregate. A filter that matches nothing yields an empty view, not an error.
func (s *DashboardService) View(ctx context.Context, ds *Dataset, q Query) (*View, error) {
	if ds == nil {
		return nil, ErrNilDataset
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()

	view := &View{
		DatasetID:      ds.ID,
		DatasetName:    ds.Name,
		AvailableSites: ds.Table.Sites(),
		KPI:            q.KPI,
		Bucket:         q.Bucket,
		Reducer:        q.Reducer,
		AuthColors:     sessions.AssignColors(ds.Table.AuthTypes(), sessions.PlotlyPalette),
		Warnings: ViewWarnings{
			InvalidRows:   ds.Warnings.InvalidRows,
			AnomalousRows: ds.Warnings.AnomalousRows,
			CoercedValues: ds.Warnings.CoercedValues,
		},
	}
	if minEnded, maxEnded, ok := ds.Table.Bounds(); ok {
		view.DataFrom, view.DataTo = &minEnded, &maxEnded
	}

	sites := q.Sites
	if q.AllSites {
		sites = view.AvailableSites
	}
	filtered := sessions.Filter(ds.Table, q.Range, sites)
	if filtered.Empty() {
		view.Empty = true
		view.Warnings.EmptyResult = true
		metrics.IncEmptyView()
		metrics.ObserveView(metrics.ResultSuccess, time.Since(start))
		s.logger.Info("dashboard view empty",
			zap.String("dataset", ds.ID),
			zap.Strings("sites", sites),
		)
		return view, nil
	}

	working := sessions.CategorizeProviders(filtered.Table, q.TopN)
	if err := s.fill(view, working, q); err != nil {
		metrics.ObserveView(metrics.ResultError, time.Since(start))
		return nil, err
	}
	metrics.ObserveView(metrics.ResultSuccess, time.Since(start))
	s.logger.Info("dashboard view computed",
		zap.String("dataset", ds.ID),
		zap.Int("sessions", view.Sessions),
		zap.String("kpi", string(q.KPI)),
		zap.String("bucket", string(q.Bucket)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return view, nil
}

func (s *DashboardService) fill(view *View, working sessions.Table, q Query) error {
	view.Sessions = working.Len()
	view.SiteKPIs = statistic.SiteKPIs(working)

	trend, err := statistic.BuildTrend(working, statistic.TrendSpec{
		KPI:                   q.KPI,
		Bucket:                q.Bucket,
		Reducer:               q.Reducer,
		IncludePortfolioTotal: q.IncludePortfolio,
		PortfolioLabel:        s.portfolioLabel,
		Cumulative:            q.Cumulative,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidQuery, err)
	}
	view.Trend = trend

	if view.AuthDistribution, err = statistic.Distribution(working, statistic.CategoryAuthType); err != nil {
		return err
	}
	if view.ProviderDistribution, err = statistic.Distribution(working, statistic.CategoryProvider); err != nil {
		return err
	}

	shareBucket := q.Bucket
	if shareBucket == statistic.GranularityNone {
		shareBucket = statistic.GranularityDay
	}
	if view.AuthTrend, err = statistic.CategoryTrend(working, shareBucket, statistic.CategoryAuthType); err != nil {
		return err
	}
	if view.ProviderTrend, err = statistic.CategoryTrend(working, shareBucket, statistic.CategoryProvider); err != nil {
		return err
	}

	view.ProviderColors = sessions.AssignColors(providerLabels(view.ProviderDistribution), sessions.D3Palette)
	if q.IncludeRows {
		view.Rows = working.Rows()
	}
	return nil
}

func providerLabels(shares []statistic.CategoryShare) []string {
	labels := make([]string, 0, len(shares))
	for _, share := range shares {
		labels = append(labels, share.Label)
	}
	return labels
}
