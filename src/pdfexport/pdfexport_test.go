package pdfexport

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/fxportal/src/models"
	"github.com/username/fxportal/src/processors"
)

func solidPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: 20, G: 90, B: 160, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestFit(t *testing.T) {
	t.Run("wide image is bounded by width and centered vertically", func(t *testing.T) {
		r := Fit(200, 100, 210, 297, 10)
		assert.InDelta(t, 190, r.W, 1e-9)
		assert.InDelta(t, 95, r.H, 1e-9)
		assert.InDelta(t, 10, r.X, 1e-9)
		assert.InDelta(t, (297-95)/2.0, r.Y, 1e-9)
	})

	t.Run("tall image is bounded by height and centered horizontally", func(t *testing.T) {
		r := Fit(100, 400, 210, 297, 10)
		assert.InDelta(t, 277, r.H, 1e-9)
		assert.InDelta(t, 69.25, r.W, 1e-9)
		assert.InDelta(t, (210-69.25)/2, r.X, 1e-9)
		assert.InDelta(t, 10, r.Y, 1e-9)
	})

	t.Run("aspect ratio preserved", func(t *testing.T) {
		r := Fit(1200, 700, 297, 210, 15)
		assert.InDelta(t, 1200.0/700.0, r.W/r.H, 1e-9)
	})

	t.Run("degenerate", func(t *testing.T) {
		assert.Equal(t, Rect{}, Fit(0, 10, 210, 297, 10))
		assert.Equal(t, Rect{}, Fit(10, 10, 10, 10, 10))
	})
}

func TestCompose(t *testing.T) {
	t.Run("no pages", func(t *testing.T) {
		_, err := Compose(nil, Options{})
		assert.ErrorIs(t, err, ErrNoPages)
	})

	t.Run("one page per raster", func(t *testing.T) {
		pages := []Page{
			{Title: "Résumé", Image: solidPNG(t, 40, 20)},
			{Image: solidPNG(t, 20, 40)},
		}
		out, err := Compose(pages, Options{Orientation: "L"})
		require.NoError(t, err)
		assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
		assert.Equal(t, 2, bytes.Count(out, []byte("/Type /Page\n")))
	})

	t.Run("invalid image", func(t *testing.T) {
		_, err := Compose([]Page{{Image: []byte("not a png")}}, Options{})
		assert.Error(t, err)
	})
}

func TestRenderBarChart(t *testing.T) {
	_, err := RenderBarChart("vide", []Bar{{Label: "a"}, {Label: "b"}}, 600, 400)
	assert.ErrorIs(t, err, ErrEmptyChart)

	_, err = RenderBarChart("vide", nil, 600, 400)
	assert.ErrorIs(t, err, ErrEmptyChart)

	img, err := RenderBarChart("P&L", []Bar{{"janv.", 120}, {"févr.", -40}, {"mars", 75}}, 600, 400)
	require.NoError(t, err)
	cfg, err := png.DecodeConfig(bytes.NewReader(img))
	require.NoError(t, err)
	assert.Equal(t, 600, cfg.Width)
	assert.Equal(t, 400, cfg.Height)
}

func TestTCAReportExport(t *testing.T) {
	records := []models.TCARecord{
		{TransactionDate: "2024-02-10", Amount: 1000, ExecutionRate: 3.3, PnLInterbankTND: 25, SpreadInterbankPct: 0.4},
		{TransactionDate: "2024-05-03", Amount: 500, ExecutionRate: 3.4, PnLInterbankTND: -5, SpreadInterbankPct: 0.2},
	}
	report := TCAReport{
		Title:   "TCA EUR",
		Year:    2024,
		Monthly: processors.MonthlySeries(records, 2024),
		Annual:  processors.AnnualSummaries(records),
	}

	pages, err := report.Pages()
	require.NoError(t, err)
	assert.Len(t, pages, 3)

	out, err := report.Export(Options{})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))

	empty := TCAReport{Year: 2024, Monthly: processors.MonthlySeries(nil, 2024)}
	_, err = empty.Export(Options{})
	assert.ErrorIs(t, err, ErrNoPages)
}
