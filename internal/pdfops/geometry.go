package pdfops

import (
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// Fallback page dimensions in points (ISO A4). Malformed box metadata is
// common in real-world PDFs; geometry resolution degrades to these values
// instead of failing.
const (
	FallbackPageWidth  = 595.0
	FallbackPageHeight = 842.0
)

// BoxDims returns the dimensions of a page box given as the raw four-value
// rectangle [x0 y0 x1 y1]. A box is valid iff it has exactly four numeric
// components and yields strictly positive width and height after taking
// absolute differences of opposite corners.
func BoxDims(box []float64) (w, h float64, ok bool) {
	if len(box) != 4 {
		return 0, 0, false
	}
	w = abs(box[2] - box[0])
	h = abs(box[3] - box[1])
	if w <= 0 || h <= 0 {
		return 0, 0, false
	}
	return w, h, true
}

// BoxRect returns the origin and dimensions of a valid raw box, with the
// origin normalized to the lower-left corner. Used by callers that place
// overlays relative to a box rather than the page origin.
func BoxRect(box []float64) (x, y, w, h float64, ok bool) {
	w, h, ok = BoxDims(box)
	if !ok {
		return 0, 0, 0, 0, false
	}
	return min(box[0], box[2]), min(box[1], box[3]), w, h, true
}

// ResolveBox picks the visible page dimensions from the raw crop and media
// boxes: crop box if present and valid, else media box, else the A4
// fallback. A nil slice means the box is absent or unparseable. This
// function never fails.
func ResolveBox(crop, media []float64) (w, h float64) {
	if w, h, ok := BoxDims(crop); ok {
		return w, h
	}
	if w, h, ok := BoxDims(media); ok {
		return w, h
	}
	return FallbackPageWidth, FallbackPageHeight
}

// PageSize resolves the visible dimensions of page pageNr (1-based) of a
// loaded document. Any parse failure, missing attribute or non-positive
// dimension falls back silently; this never returns an error.
func PageSize(ctx *model.Context, pageNr int) (w, h float64) {
	d, _, inh, err := ctx.PageDict(pageNr, false)
	if err != nil || d == nil {
		return FallbackPageWidth, FallbackPageHeight
	}

	crop := rawBox(ctx, d, "CropBox")
	media := rawBox(ctx, d, "MediaBox")

	// Boxes may be inherited from an ancestor Pages node, in which case
	// the page dict itself carries no entry.
	if crop == nil && inh != nil {
		crop = rectValues(inh.CropBox)
	}
	if media == nil && inh != nil {
		media = rectValues(inh.MediaBox)
	}
	return ResolveBox(crop, media)
}

// rawBox extracts a box entry from a page dict as raw float values,
// dereferencing indirect objects. Returns nil when the entry is absent or
// contains anything non-numeric.
func rawBox(ctx *model.Context, d types.Dict, key string) []float64 {
	obj, found := d.Find(key)
	if !found {
		return nil
	}
	obj, err := ctx.Dereference(obj)
	if err != nil {
		return nil
	}
	arr, ok := obj.(types.Array)
	if !ok {
		return nil
	}

	vals := make([]float64, 0, len(arr))
	for _, el := range arr {
		el, err := ctx.Dereference(el)
		if err != nil {
			return nil
		}
		switch n := el.(type) {
		case types.Integer:
			vals = append(vals, float64(n.Value()))
		case types.Float:
			vals = append(vals, n.Value())
		default:
			return nil
		}
	}
	return vals
}

// rectValues converts an already-resolved rectangle to raw box values.
func rectValues(r *types.Rectangle) []float64 {
	if r == nil {
		return nil
	}
	return []float64{r.LL.X, r.LL.Y, r.UR.X, r.UR.Y}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
