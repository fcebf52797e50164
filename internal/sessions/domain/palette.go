package domain

// RestColor is reserved for RestLabel in every palette.
const RestColor = "#B0B0B0"

// PlotlyPalette is the qualitative palette used for authentication types.
var PlotlyPalette = []string{
	"#636EFA", "#EF553B", "#00CC96", "#AB63FA", "#FFA15A",
	"#19D3F3", "#FF6692", "#B6E880", "#FF97FF", "#FECB52",
}

// D3Palette is the category10 palette used for provider buckets.
var D3Palette = []string{
	"#1F77B4", "#FF7F0E", "#2CA02C", "#D62728", "#9467BD",
	"#8C564B", "#E377C2", "#7F7F7F", "#BCBD22", "#17BECF",
}

// ColorMap assigns a colour to each category label.
type ColorMap map[string]string

// AssignColors maps labels to palette entries in first-seen order, cycling when the
// palette runs out. Empty labels are skipped and RestLabel always gets RestColor.
func AssignColors(labels []string, palette []string) ColorMap {
	colors := make(ColorMap)
	next := 0
	for _, label := range labels {
		if label == "" {
			continue
		}
		if _, ok := colors[label]; ok {
			continue
		}
		if label == RestLabel {
			colors[label] = RestColor
			continue
		}
		if len(palette) == 0 {
			colors[label] = RestColor
			continue
		}
		colors[label] = palette[next%len(palette)]
		next++
	}
	return colors
}
