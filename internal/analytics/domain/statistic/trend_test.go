package statistic

import (
	"errors"
	"math"
	"testing"
	"time"

	sessions "charging-kpi/internal/sessions/domain"
)

func TestBuildTrend_PortfolioTotal(t *testing.T) {
	table := tableOf(
		sessionSpec{site: "Alpha", ended: at(2024, 1, 5, 10), energy: ptr(10)},
		sessionSpec{site: "Alpha", ended: at(2024, 1, 6, 10), energy: ptr(5)},
		sessionSpec{site: "Beta", ended: at(2024, 1, 7, 10), energy: ptr(7)},
		sessionSpec{site: "Alpha", ended: at(2024, 2, 5, 10), energy: ptr(1)},
		sessionSpec{site: "Beta", ended: at(2024, 2, 8, 10), energy: ptr(2)},
	)

	points, err := BuildTrend(table, TrendSpec{
		KPI:                   KPIEnergyKWh,
		Bucket:                GranularityMonth,
		Reducer:               ReducerSum,
		IncludePortfolioTotal: true,
	})
	if err != nil {
		t.Fatalf("build trend: %v", err)
	}
	if len(points) != 6 {
		t.Fatalf("expected 6 points, got %d", len(points))
	}

	perMonth := make(map[TimeKey]float64)
	portfolio := make(map[TimeKey]float64)
	for _, p := range points {
		if p.Synthetic {
			if p.Group != PortfolioLabel {
				t.Fatalf("unexpected portfolio label %s", p.Group)
			}
			portfolio[p.TimeKey] = *p.Value
			continue
		}
		perMonth[p.TimeKey] += *p.Value
	}
	if len(portfolio) != 2 {
		t.Fatalf("expected 2 portfolio points, got %v", portfolio)
	}
	for key, total := range portfolio {
		if total != perMonth[key] {
			t.Fatalf("portfolio %s = %v, want %v", key, total, perMonth[key])
		}
	}
	if points[0].TimeKey != "2024-01" || points[0].Group != "Alpha" || *points[0].Value != 15 {
		t.Fatalf("unexpected first point %+v", points[0])
	}
}

func TestBuildTrend_NoneKeepsRawValues(t *testing.T) {
	table := tableOf(
		sessionSpec{site: "Beta", ended: at(2024, 1, 2, 10), hours: 2, energy: ptr(30)},
		sessionSpec{site: "Alpha", ended: at(2024, 1, 1, 10), hours: 4, energy: ptr(8)},
		sessionSpec{site: "Alpha", ended: at(2024, 1, 3, 10), hours: 1, energy: nil},
	)

	points, err := BuildTrend(table, TrendSpec{KPI: KPIAvgPowerKW, Bucket: GranularityNone, Reducer: ReducerMean})
	if err != nil {
		t.Fatalf("build trend: %v", err)
	}
	if len(points) != 3 {
		t.Fatalf("expected one point per session, got %d", len(points))
	}
	if points[0].Group != "Alpha" || *points[0].Value != 2 {
		t.Fatalf("unexpected first point %+v", points[0])
	}
	if points[1].Group != "Beta" || *points[1].Value != 15 {
		t.Fatalf("unexpected second point %+v", points[1])
	}
	if points[2].Value != nil {
		t.Fatalf("expected missing power to stay missing")
	}
}

func TestBuildTrend_MeanByDayAndCumulative(t *testing.T) {
	table := tableOf(
		sessionSpec{site: "Alpha", ended: at(2024, 1, 1, 8), cost: ptr(2)},
		sessionSpec{site: "Alpha", ended: at(2024, 1, 1, 18), cost: ptr(4)},
		sessionSpec{site: "Alpha", ended: at(2024, 1, 2, 9), cost: ptr(9)},
	)

	points, err := BuildTrend(table, TrendSpec{KPI: KPICost, Bucket: GranularityDay, Reducer: ReducerMean, Cumulative: true})
	if err != nil {
		t.Fatalf("build trend: %v", err)
	}
	if len(points) != 2 {
		t.Fatalf("expected 2 points, got %d", len(points))
	}
	if *points[0].Value != 3 || *points[0].Cumulative != 3 {
		t.Fatalf("unexpected first point %+v", points[0])
	}
	if *points[1].Value != 9 || *points[1].Cumulative != 12 {
		t.Fatalf("unexpected second point %+v", points[1])
	}
}

func TestBuildTrend_RejectsCountReducer(t *testing.T) {
	table := tableOf(sessionSpec{site: "Alpha", ended: at(2024, 1, 1, 8)})
	_, err := BuildTrend(table, TrendSpec{KPI: KPICost, Bucket: GranularityDay, Reducer: ReducerCount})
	if !errors.Is(err, ErrInvalidReducer) {
		t.Fatalf("expected ErrInvalidReducer, got %v", err)
	}
}

func TestCumulative_RequiresSortedInput(t *testing.T) {
	jan := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	feb := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	points := []TrendPoint{
		{Bucket: feb, Group: "Alpha", Value: ptr(1)},
		{Bucket: jan, Group: "Alpha", Value: ptr(2)},
	}
	if _, err := Cumulative(points); !errors.Is(err, ErrUnsortedSeries) {
		t.Fatalf("expected ErrUnsortedSeries, got %v", err)
	}

	points = []TrendPoint{
		{Bucket: jan, Group: "Alpha", Value: ptr(1)},
		{Bucket: feb, Group: "Beta", Value: ptr(5)},
		{Bucket: feb, Group: "Alpha", Value: nil},
		{Bucket: jan, Group: "Beta", Synthetic: true, Value: ptr(4)},
	}
	out, err := Cumulative(points)
	if err != nil {
		t.Fatalf("cumulative: %v", err)
	}
	if *out[2].Cumulative != 1 {
		t.Fatalf("missing value must not change the running total, got %v", *out[2].Cumulative)
	}
	if *out[3].Cumulative != 4 {
		t.Fatalf("synthetic series must be independent, got %v", *out[3].Cumulative)
	}
	if points[0].Cumulative != nil {
		t.Fatalf("input mutated")
	}
}

func TestCategoryTrend_SharesPerBucket(t *testing.T) {
	table := tableOf(
		sessionSpec{site: "Alpha", ended: at(2024, 1, 1, 8), provider: "EnBW"},
		sessionSpec{site: "Alpha", ended: at(2024, 1, 1, 9), provider: "EnBW"},
		sessionSpec{site: "Beta", ended: at(2024, 1, 1, 10), provider: "Ionity"},
		sessionSpec{site: "Beta", ended: at(2024, 1, 2, 10), provider: "Ionity"},
	)

	points, err := CategoryTrend(table, GranularityDay, CategoryProvider)
	if err != nil {
		t.Fatalf("category trend: %v", err)
	}
	if len(points) != 3 {
		t.Fatalf("expected 3 points, got %d", len(points))
	}
	if math.Abs(*points[0].SharePct-200.0/3) > 1e-9 || *points[0].Value != 2 {
		t.Fatalf("unexpected first point %+v", points[0])
	}
	if *points[2].SharePct != 100 {
		t.Fatalf("expected single category bucket at 100%%, got %v", *points[2].SharePct)
	}
	if _, err := CategoryTrend(table, GranularityNone, CategoryProvider); err == nil {
		t.Fatalf("expected error without bucket")
	}
}

func TestBuildTrend_MixedOffsetsShareMonth(t *testing.T) {
	var specs []sessionSpec
	for _, in := range []struct {
		ended  string
		energy float64
	}{
		{"2024-03-30T10:00:00+01:00", 4},
		{"2024-03-31T10:00:00+02:00", 6},
	} {
		ended, ok := sessions.ParseTimestamp(in.ended, time.UTC, nil)
		if !ok {
			t.Fatalf("parse %s", in.ended)
		}
		specs = append(specs, sessionSpec{site: "Alpha", ended: ended, energy: ptr(in.energy)})
	}

	points, err := BuildTrend(tableOf(specs...), TrendSpec{
		KPI:     KPIEnergyKWh,
		Bucket:  GranularityMonth,
		Reducer: ReducerSum,
	})
	if err != nil {
		t.Fatalf("build trend: %v", err)
	}
	if len(points) != 1 {
		t.Fatalf("expected 1 point, got %d", len(points))
	}
	if points[0].TimeKey != "2024-03" || points[0].Value == nil || *points[0].Value != 10 {
		t.Fatalf("unexpected point %+v", points[0])
	}
}

func TestTimeKey(t *testing.T) {
	ts := time.Date(2024, 3, 9, 14, 30, 0, 0, time.UTC)
	cases := map[Granularity]TimeKey{
		GranularityHour:  "2024-03-09T14",
		GranularityDay:   "2024-03-09",
		GranularityMonth: "2024-03",
		GranularityYear:  "2024",
	}
	for g, want := range cases {
		key, err := NewTimeKey(g, g.Truncate(ts))
		if err != nil || key != want {
			t.Fatalf("%s: got %s, %v; want %s", g, key, err, want)
		}
	}
	if _, err := ParseGranularity("week"); !errors.Is(err, ErrInvalidGranularity) {
		t.Fatalf("expected invalid granularity")
	}
	if g, err := ParseGranularity("month"); err != nil || g != GranularityMonth {
		t.Fatalf("expected MONTH, got %s %v", g, err)
	}
}
