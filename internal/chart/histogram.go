// Package chart renders an optional quality-score histogram for a completed
// dataset build, adapted from the teacher's growth-chart renderer: same
// bytes.Buffer + Render(chart.PNG, &buf) shape, a bar chart instead of a
// time series since a histogram has no time axis.
package chart

import (
	"bytes"
	"fmt"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

const bucketCount = 10

// RenderHistogram buckets scores into 10 equal-width bins over [0,1] and
// renders a PNG bar chart. Returns an error if scores is empty.
func RenderHistogram(scores []float64) ([]byte, error) {
	if len(scores) == 0 {
		return nil, fmt.Errorf("cannot render histogram: no scores")
	}

	var buckets [bucketCount]int
	for _, s := range scores {
		idx := int(s * bucketCount)
		if idx < 0 {
			idx = 0
		}
		if idx >= bucketCount {
			idx = bucketCount - 1
		}
		buckets[idx]++
	}

	bars := make([]chart.Value, bucketCount)
	for i, count := range buckets {
		bars[i] = chart.Value{
			Value: float64(count),
			Label: fmt.Sprintf("%.1f", float64(i)/bucketCount),
		}
	}

	graph := chart.BarChart{
		Title:      "Quality Score Distribution",
		Width:      960,
		Height:     480,
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 20, Right: 20, Bottom: 40}},
		BarColor:   drawing.ColorFromHex("2a6fb0"),
		Bars:       bars,
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("failed to render quality histogram: %w", err)
	}
	return buf.Bytes(), nil
}
