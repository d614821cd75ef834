package pdfexport

// Rect is a placement on a page, in page units.
type Rect struct {
	X, Y, W, H float64
}

// Fit scales an image of imgW×imgH into the page area inside margin, preserving
// the aspect ratio, and centers it. Degenerate inputs yield a zero Rect.
func Fit(imgW, imgH, pageW, pageH, margin float64) Rect {
	availW := pageW - 2*margin
	availH := pageH - 2*margin
	if imgW <= 0 || imgH <= 0 || availW <= 0 || availH <= 0 {
		return Rect{}
	}

	scale := min(availW/imgW, availH/imgH)
	w := imgW * scale
	h := imgH * scale
	return Rect{
		X: (pageW - w) / 2,
		Y: (pageH - h) / 2,
		W: w,
		H: h,
	}
}
