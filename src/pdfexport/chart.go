package pdfexport

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/wcharczuk/go-chart/v2"
)

// ErrEmptyChart is returned when every bar of a chart is zero.
var ErrEmptyChart = errors.New("chart has no data")

// Bar is one labelled value of a bar chart.
type Bar struct {
	Label string
	Value float64
}

// RenderBarChart rasterizes a bar chart to PNG bytes of width×height pixels.
func RenderBarChart(title string, bars []Bar, width, height int) ([]byte, error) {
	if len(bars) == 0 {
		return nil, ErrEmptyChart
	}

	values := make([]chart.Value, len(bars))
	negative, nonZero := false, false
	for i, b := range bars {
		values[i] = chart.Value{Label: b.Label, Value: b.Value}
		if b.Value < 0 {
			negative = true
		}
		if b.Value != 0 {
			nonZero = true
		}
	}
	if !nonZero {
		return nil, ErrEmptyChart
	}

	barWidth := max((width-120)/(2*len(bars)), 4)
	graph := chart.BarChart{
		Title:      title,
		Width:      width,
		Height:     height,
		BarWidth:   barWidth,
		BarSpacing: barWidth,
		Background: chart.Style{
			Padding: chart.Box{Top: 50, Left: 20, Right: 20, Bottom: 10},
		},
		UseBaseValue: negative,
		BaseValue:    0,
		Bars:         values,
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("render chart %q: %w", title, err)
	}
	return buf.Bytes(), nil
}
