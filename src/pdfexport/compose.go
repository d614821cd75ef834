package pdfexport

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/go-pdf/fpdf"
)

// ErrNoPages is returned when there is nothing to export.
var ErrNoPages = errors.New("no pages to export")

const titleHeight = 12.0

// Page is one raster page of an export.
type Page struct {
	Title string
	Image []byte // PNG
}

// Options sets the page geometry, in millimetres.
type Options struct {
	Format      string // A4, A3, Letter...
	Orientation string // P or L
	Margin      float64
	Title       string // document metadata
}

func (o Options) withDefaults() Options {
	if o.Format == "" {
		o.Format = "A4"
	}
	if o.Orientation == "" {
		o.Orientation = "P"
	}
	if o.Margin <= 0 {
		o.Margin = 10
	}
	return o
}

// Compose lays out one image per page, scaled to fit and centered below the page
// title, and returns the PDF document.
func Compose(pages []Page, opts Options) ([]byte, error) {
	if len(pages) == 0 {
		return nil, ErrNoPages
	}
	opts = opts.withDefaults()

	pdf := fpdf.New(opts.Orientation, "mm", opts.Format, "")
	if pdf.Err() {
		return nil, fmt.Errorf("new pdf: %w", pdf.Error())
	}
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(tr(opts.Title), false)
	pdf.SetCreator("fxportal", false)
	pdf.SetMargins(opts.Margin, opts.Margin, opts.Margin)
	pdf.SetAutoPageBreak(false, 0)

	imageOpts := fpdf.ImageOptions{ImageType: "PNG"}
	for i, page := range pages {
		pdf.AddPage()
		pageW, pageH := pdf.GetPageSize()

		top := 0.0
		if page.Title != "" {
			pdf.SetFont("Helvetica", "B", 14)
			pdf.SetXY(opts.Margin, opts.Margin)
			pdf.CellFormat(pageW-2*opts.Margin, titleHeight, tr(page.Title), "", 0, "C", false, 0, "")
			top = titleHeight
		}

		name := fmt.Sprintf("page-%d", i+1)
		info := pdf.RegisterImageOptionsReader(name, imageOpts, bytes.NewReader(page.Image))
		if pdf.Err() {
			return nil, fmt.Errorf("page %d: %w", i+1, pdf.Error())
		}

		r := Fit(info.Width(), info.Height(), pageW, pageH-top, opts.Margin)
		pdf.ImageOptions(name, r.X, r.Y+top, r.W, r.H, false, imageOpts, 0, "")
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("write pdf: %w", err)
	}
	return buf.Bytes(), nil
}
