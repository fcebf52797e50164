package interfaces

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	"charging-kpi/internal/analytics/application"
	"charging-kpi/internal/analytics/domain/statistic"
)

const (
	// ContentTypePDF is the PDF report media type.
	ContentTypePDF = "application/pdf"
	// ContentTypeXLSX is the XLSX report media type.
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	emptyNotice = "No sessions match the selected filter."
)

// BuildKPIReportPDF renders the site KPI table, the trend and both distributions.
func BuildKPIReportPDF(view *application.View, generatedAt time.Time) ([]byte, error) {
	if view == nil {
		return nil, application.ErrNilDataset
	}
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Charging KPI Report")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	if view.DatasetName != "" {
		pdf.Cell(0, 6, tr(fmt.Sprintf("Workbook: %s", view.DatasetName)))
		pdf.Ln(5)
	}
	pdf.Cell(0, 6, fmt.Sprintf("Generated: %s", generatedAt.Format(time.RFC3339)))
	pdf.Ln(5)
	if view.DataFrom != nil && view.DataTo != nil {
		pdf.Cell(0, 6, fmt.Sprintf("Data: %s to %s", view.DataFrom.Format("2006-01-02"), view.DataTo.Format("2006-01-02")))
		pdf.Ln(5)
	}
	pdf.Cell(0, 6, fmt.Sprintf("Sessions: %d", view.Sessions))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Invalid rows: %d  Anomalous rows: %d  Coerced values: %d",
		len(view.Warnings.InvalidRows), len(view.Warnings.AnomalousRows), view.Warnings.CoercedValues))
	pdf.Ln(8)

	if view.Empty {
		pdf.Cell(0, 6, emptyNotice)
		pdf.Ln(5)
		return outputPDF(pdf)
	}

	pdf.SetFont("Arial", "B", 10)
	pdf.Cell(0, 6, "KPIs by site")
	pdf.Ln(7)
	siteHeader := []string{"Site", "Sessions", "kWh sum", "kWh mean", "Cost sum", "Cost mean", "kW mean", "h mean"}
	siteWidths := []float64{46, 18, 22, 20, 22, 20, 20, 18}
	for i, h := range siteHeader {
		pdf.CellFormat(siteWidths[i], 6, h, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 9)
	for _, kpi := range view.SiteKPIs {
		pdf.CellFormat(siteWidths[0], 6, tr(kpi.Site), "1", 0, "L", false, 0, "")
		pdf.CellFormat(siteWidths[1], 6, fmt.Sprintf("%d", kpi.Sessions), "1", 0, "R", false, 0, "")
		pdf.CellFormat(siteWidths[2], 6, fmt.Sprintf("%.3f", kpi.EnergySumKWh), "1", 0, "R", false, 0, "")
		pdf.CellFormat(siteWidths[3], 6, formatOptional(kpi.EnergyMeanKWh, 3), "1", 0, "R", false, 0, "")
		pdf.CellFormat(siteWidths[4], 6, fmt.Sprintf("%.2f", kpi.CostSum), "1", 0, "R", false, 0, "")
		pdf.CellFormat(siteWidths[5], 6, formatOptional(kpi.CostMean, 2), "1", 0, "R", false, 0, "")
		pdf.CellFormat(siteWidths[6], 6, formatOptional(kpi.AvgPowerMeanKW, 2), "1", 0, "R", false, 0, "")
		pdf.CellFormat(siteWidths[7], 6, formatOptional(kpi.DurationMeanHours, 2), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}
	pdf.Ln(6)

	pdf.SetFont("Arial", "B", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Trend: %s (%s, %s)", view.KPI, view.Reducer, view.Bucket))
	pdf.Ln(7)
	pdf.CellFormat(40, 6, "Period", "1", 0, "C", false, 0, "")
	pdf.CellFormat(70, 6, "Series", "1", 0, "C", false, 0, "")
	pdf.CellFormat(35, 6, "Value", "1", 0, "C", false, 0, "")
	pdf.CellFormat(35, 6, "Cumulative", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 9)
	for _, p := range view.Trend {
		pdf.CellFormat(40, 6, p.TimeKey.String(), "1", 0, "L", false, 0, "")
		pdf.CellFormat(70, 6, tr(p.Group), "1", 0, "L", false, 0, "")
		pdf.CellFormat(35, 6, formatOptional(p.Value, 3), "1", 0, "R", false, 0, "")
		pdf.CellFormat(35, 6, formatOptional(p.Cumulative, 3), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}
	pdf.Ln(6)

	writeDistributionPDF(pdf, tr, "Authentication types", view.AuthDistribution)
	writeDistributionPDF(pdf, tr, "Providers", view.ProviderDistribution)

	return outputPDF(pdf)
}

func writeDistributionPDF(pdf *gofpdf.Fpdf, tr func(string) string, title string, shares []statistic.CategoryShare) {
	pdf.SetFont("Arial", "B", 10)
	pdf.Cell(0, 6, title)
	pdf.Ln(7)
	pdf.CellFormat(80, 6, "Label", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Sessions", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Share %", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 9)
	for _, share := range shares {
		pdf.CellFormat(80, 6, tr(share.Label), "1", 0, "L", false, 0, "")
		pdf.CellFormat(30, 6, fmt.Sprintf("%d", share.Count), "1", 0, "R", false, 0, "")
		pdf.CellFormat(30, 6, fmt.Sprintf("%.1f", share.Percent), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}
	pdf.Ln(6)
}

func outputPDF(pdf *gofpdf.Fpdf) ([]byte, error) {
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildKPIReportXLSX renders the view into one sheet per table.
func BuildKPIReportXLSX(view *application.View, generatedAt time.Time) ([]byte, error) {
	if view == nil {
		return nil, application.ErrNilDataset
	}
	f := excelize.NewFile()
	defer f.Close()

	summarySheet := "summary"
	sitesSheet := "site_kpis"
	trendSheet := "trend"
	sharesSheet := "distribution"
	warningsSheet := "warnings"
	f.SetSheetName("Sheet1", summarySheet)
	for _, name := range []string{sitesSheet, trendSheet, sharesSheet, warningsSheet} {
		if _, err := f.NewSheet(name); err != nil {
			return nil, err
		}
	}

	_ = f.SetCellValue(summarySheet, "A1", "Charging KPI Report")
	_ = f.SetCellValue(summarySheet, "A3", "Workbook")
	_ = f.SetCellValue(summarySheet, "B3", view.DatasetName)
	_ = f.SetCellValue(summarySheet, "A4", "Dataset")
	_ = f.SetCellValue(summarySheet, "B4", view.DatasetID)
	_ = f.SetCellValue(summarySheet, "A5", "Generated")
	_ = f.SetCellValue(summarySheet, "B5", generatedAt.Format(time.RFC3339))
	_ = f.SetCellValue(summarySheet, "A6", "Sessions")
	_ = f.SetCellValue(summarySheet, "B6", view.Sessions)
	_ = f.SetCellValue(summarySheet, "A7", "KPI")
	_ = f.SetCellValue(summarySheet, "B7", string(view.KPI))
	_ = f.SetCellValue(summarySheet, "A8", "Bucket")
	_ = f.SetCellValue(summarySheet, "B8", string(view.Bucket))
	_ = f.SetCellValue(summarySheet, "A9", "Reducer")
	_ = f.SetCellValue(summarySheet, "B9", string(view.Reducer))
	_ = f.SetCellValue(summarySheet, "A10", "Invalid rows")
	_ = f.SetCellValue(summarySheet, "B10", len(view.Warnings.InvalidRows))
	_ = f.SetCellValue(summarySheet, "A11", "Anomalous rows")
	_ = f.SetCellValue(summarySheet, "B11", len(view.Warnings.AnomalousRows))
	_ = f.SetCellValue(summarySheet, "A12", "Coerced values")
	_ = f.SetCellValue(summarySheet, "B12", view.Warnings.CoercedValues)
	if view.Empty {
		_ = f.SetCellValue(summarySheet, "A14", emptyNotice)
	}

	setRow(f, sitesSheet, 1, "Site", "Sessions", "Energy sum (kWh)", "Energy mean (kWh)", "Cost sum", "Cost mean", "Avg power mean (kW)", "Duration mean (h)")
	for i, kpi := range view.SiteKPIs {
		setRow(f, sitesSheet, i+2,
			kpi.Site, kpi.Sessions, kpi.EnergySumKWh, optional(kpi.EnergyMeanKWh),
			kpi.CostSum, optional(kpi.CostMean), optional(kpi.AvgPowerMeanKW), optional(kpi.DurationMeanHours),
		)
	}

	setRow(f, trendSheet, 1, "Period", "Series", "Value", "Cumulative", "Portfolio")
	for i, p := range view.Trend {
		setRow(f, trendSheet, i+2, p.TimeKey.String(), p.Group, optional(p.Value), optional(p.Cumulative), p.Synthetic)
	}

	setRow(f, sharesSheet, 1, "Category", "Label", "Sessions", "Share %")
	row := 2
	for _, share := range view.AuthDistribution {
		setRow(f, sharesSheet, row, "auth_type", share.Label, share.Count, share.Percent)
		row++
	}
	for _, share := range view.ProviderDistribution {
		setRow(f, sharesSheet, row, "provider", share.Label, share.Count, share.Percent)
		row++
	}

	setRow(f, warningsSheet, 1, "Row", "Kind", "Reason", "Field")
	row = 2
	for _, issue := range view.Warnings.InvalidRows {
		setRow(f, warningsSheet, row, issue.Row, "invalid", string(issue.Reason), string(issue.Field))
		row++
	}
	for _, issue := range view.Warnings.AnomalousRows {
		setRow(f, warningsSheet, row, issue.Row, "anomalous", string(issue.Reason), string(issue.Field))
		row++
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func setRow(f *excelize.File, sheet string, row int, values ...any) {
	for i, v := range values {
		cell, err := excelize.CoordinatesToCellName(i+1, row)
		if err != nil {
			return
		}
		_ = f.SetCellValue(sheet, cell, v)
	}
}

// optional leaves the cell blank for a missing value.
func optional(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func formatOptional(v *float64, decimals int) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.*f", decimals, *v)
}
