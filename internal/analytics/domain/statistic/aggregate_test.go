package statistic

import (
	"math"
	"testing"
	"time"

	sessions "charging-kpi/internal/sessions/domain"
)

func ptr(v float64) *float64 { return &v }

type sessionSpec struct {
	site     string
	ended    time.Time
	hours    float64
	energy   *float64
	cost     *float64
	auth     string
	provider string
}

func tableOf(specs ...sessionSpec) sessions.Table {
	rows := make([]sessions.DerivedSession, 0, len(specs))
	for i, s := range specs {
		hours := s.hours
		if hours == 0 {
			hours = 1
		}
		started := s.ended.Add(-time.Duration(hours * float64(time.Hour)))
		rows = append(rows, sessions.Derive(sessions.ChargingSession{
			Row:       i + 2,
			SiteName:  s.site,
			StartedAt: started,
			EndedAt:   s.ended,
			EnergyKWh: s.energy,
			Cost:      s.cost,
			AuthType:  s.auth,
			Provider:  s.provider,
		}))
	}
	return sessions.NewTable(rows)
}

func at(year int, month time.Month, day, hour int) time.Time {
	return time.Date(year, month, day, hour, 0, 0, 0, time.UTC)
}

func TestAggregate_SumMatchesDirectSum(t *testing.T) {
	table := tableOf(
		sessionSpec{site: "Alpha", ended: at(2024, 1, 1, 10), energy: ptr(10), cost: ptr(3)},
		sessionSpec{site: "Alpha", ended: at(2024, 1, 2, 10), energy: ptr(20), cost: ptr(4)},
		sessionSpec{site: "Alpha", ended: at(2024, 1, 3, 10), energy: nil, cost: ptr(5)},
		sessionSpec{site: "Beta", ended: at(2024, 1, 3, 10), energy: ptr(7.5), cost: nil},
	)
	energySum := Metric{KPI: KPIEnergyKWh, Reducer: ReducerSum}
	energyMean := Metric{KPI: KPIEnergyKWh, Reducer: ReducerMean}
	energyCount := Metric{KPI: KPIEnergyKWh, Reducer: ReducerCount}

	rows, err := Aggregate(table, AggregateSpec{
		GroupBy: GroupBy{Site: true},
		Metrics: []Metric{energySum, energyMean, energyCount},
	})
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	if len(rows) != 2 || rows[0].Site != "Alpha" || rows[1].Site != "Beta" {
		t.Fatalf("unexpected rows %+v", rows)
	}
	alpha := rows[0]
	if *alpha.Value(energySum) != 30 {
		t.Fatalf("expected Alpha sum 30, got %v", *alpha.Value(energySum))
	}
	if *alpha.Value(energyMean) != 15 {
		t.Fatalf("expected Alpha mean 15 excluding missing, got %v", *alpha.Value(energyMean))
	}
	if *alpha.Value(energyCount) != 2 || alpha.Count != 3 {
		t.Fatalf("expected 2 values in 3 rows, got %v/%d", *alpha.Value(energyCount), alpha.Count)
	}

	var direct, total float64
	for _, row := range table.Rows() {
		if row.EnergyKWh != nil {
			direct += *row.EnergyKWh
		}
	}
	for _, row := range rows {
		total += *row.Value(energySum)
	}
	if direct != total {
		t.Fatalf("aggregate sum %v differs from direct sum %v", total, direct)
	}
}

func TestAggregate_AllMissingMeanIsNil(t *testing.T) {
	table := tableOf(sessionSpec{site: "Alpha", ended: at(2024, 1, 1, 10)})
	mean := Metric{KPI: KPIAvgPowerKW, Reducer: ReducerMean}
	sum := Metric{KPI: KPICost, Reducer: ReducerSum}

	rows, err := Aggregate(table, AggregateSpec{GroupBy: GroupBy{Site: true}, Metrics: []Metric{mean, sum}})
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	if rows[0].Value(mean) != nil {
		t.Fatalf("expected nil mean")
	}
	if v := rows[0].Value(sum); v == nil || *v != 0 {
		t.Fatalf("expected zero sum, got %v", v)
	}
}

func TestAggregate_ShareOfPeriodSumsToHundred(t *testing.T) {
	table := tableOf(
		sessionSpec{site: "Alpha", ended: at(2024, 1, 1, 10), auth: "RFID"},
		sessionSpec{site: "Alpha", ended: at(2024, 1, 5, 10), auth: "App"},
		sessionSpec{site: "Beta", ended: at(2024, 1, 9, 10), auth: "App"},
		sessionSpec{site: "Beta", ended: at(2024, 1, 9, 11), auth: ""},
		sessionSpec{site: "Beta", ended: at(2024, 2, 1, 10), auth: "Ad-hoc"},
		sessionSpec{site: "Alpha", ended: at(2024, 2, 2, 10), auth: "RFID"},
		sessionSpec{site: "Alpha", ended: at(2024, 2, 3, 10), auth: "RFID"},
	)

	rows, err := Aggregate(table, AggregateSpec{
		GroupBy:       GroupBy{Bucket: GranularityMonth, Category: CategoryAuthType},
		ShareOfPeriod: true,
	})
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	totals := make(map[TimeKey]float64)
	for _, row := range rows {
		if row.SharePct == nil {
			t.Fatalf("missing share for %+v", row)
		}
		if row.Category == "" {
			t.Fatalf("empty category must be excluded")
		}
		totals[row.TimeKey] += *row.SharePct
	}
	if len(totals) != 2 {
		t.Fatalf("expected 2 buckets, got %v", totals)
	}
	for key, sum := range totals {
		if math.Abs(sum-100) > 1e-6 {
			t.Fatalf("bucket %s shares sum to %v", key, sum)
		}
	}
	if rows[0].TimeKey != "2024-01" || rows[0].Category != "App" || rows[0].Count != 2 {
		t.Fatalf("unexpected first row %+v", rows[0])
	}
}

func TestAggregate_Validation(t *testing.T) {
	table := tableOf(sessionSpec{site: "Alpha", ended: at(2024, 1, 1, 10)})
	cases := map[string]AggregateSpec{
		"share without bucket": {GroupBy: GroupBy{Category: CategoryAuthType}, ShareOfPeriod: true},
		"bad kpi":              {GroupBy: GroupBy{Site: true}, Metrics: []Metric{{KPI: "x", Reducer: ReducerSum}}},
		"bad reducer":          {GroupBy: GroupBy{Site: true}, Metrics: []Metric{{KPI: KPICost, Reducer: "max"}}},
		"bad bucket":           {GroupBy: GroupBy{Site: true, Bucket: "WEEK"}},
		"nothing":              {},
	}
	for name, spec := range cases {
		if _, err := Aggregate(table, spec); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestSiteKPIs(t *testing.T) {
	table := tableOf(
		sessionSpec{site: "Beta", ended: at(2024, 1, 1, 10), hours: 2, energy: ptr(22), cost: ptr(8)},
		sessionSpec{site: "Alpha", ended: at(2024, 1, 1, 10), hours: 1, energy: ptr(11), cost: ptr(4)},
		sessionSpec{site: "Alpha", ended: at(2024, 1, 2, 10), hours: 3, energy: nil, cost: ptr(6)},
	)

	kpis := SiteKPIs(table)
	if len(kpis) != 2 || kpis[0].Site != "Alpha" {
		t.Fatalf("unexpected kpis %+v", kpis)
	}
	alpha := kpis[0]
	if alpha.Sessions != 2 || alpha.EnergySumKWh != 11 || alpha.CostSum != 10 {
		t.Fatalf("unexpected alpha %+v", alpha)
	}
	if alpha.AvgPowerMeanKW == nil || *alpha.AvgPowerMeanKW != 11 {
		t.Fatalf("expected mean power 11 from the one defined session, got %v", alpha.AvgPowerMeanKW)
	}
	if alpha.DurationMeanHours == nil || *alpha.DurationMeanHours != 2 {
		t.Fatalf("expected mean duration 2, got %v", alpha.DurationMeanHours)
	}
}

func TestDistribution(t *testing.T) {
	table := tableOf(
		sessionSpec{site: "Alpha", ended: at(2024, 1, 1, 10), provider: "EnBW"},
		sessionSpec{site: "Alpha", ended: at(2024, 1, 1, 11), provider: "Ionity"},
		sessionSpec{site: "Alpha", ended: at(2024, 1, 1, 12), provider: "Ionity"},
		sessionSpec{site: "Alpha", ended: at(2024, 1, 1, 13), provider: ""},
	)
	table = sessions.CategorizeProviders(table, 1)

	shares, err := Distribution(table, CategoryProvider)
	if err != nil {
		t.Fatalf("distribution: %v", err)
	}
	if len(shares) != 2 || shares[0].Label != "Ionity" || shares[1].Label != sessions.RestLabel {
		t.Fatalf("unexpected shares %+v", shares)
	}
	if math.Abs(shares[0].Percent+shares[1].Percent-100) > 1e-9 {
		t.Fatalf("percentages do not sum to 100: %+v", shares)
	}
	if _, err := Distribution(table, CategoryNone); err == nil {
		t.Fatalf("expected error without category")
	}
}
