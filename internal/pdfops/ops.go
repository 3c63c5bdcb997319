// Package pdfops implements the document transformations of the edit
// pipeline: page-wise merge, whole-document rotation, and per-page overlay
// composition for text watermarks, image watermarks and freehand
// signatures. Overlay content is drawn with gofpdf (which carries the core
// font metrics) and composited with pdfcpu.
package pdfops

import (
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/phpdave11/gofpdf"

	"pdf-editor/internal/models"
)

// Toolbox implements the pipeline's transformations on PDF files. It is
// stateless; one instance serves all jobs.
type Toolbox struct{}

// NewToolbox creates a Toolbox.
func NewToolbox() *Toolbox {
	return &Toolbox{}
}

// PageCount returns the number of pages of the document.
func (t *Toolbox) PageCount(path string) (int, error) {
	count, err := api.PageCountFile(path)
	if err != nil {
		return 0, fmt.Errorf("read pdf: %w", err)
	}
	return count, nil
}

// PageSize resolves the visible dimensions of one page in points, falling
// back to A4 when the document or page cannot be read.
func (t *Toolbox) PageSize(path string, pageNr int) (w, h float64, err error) {
	ctx, err := api.ReadContextFile(path)
	if err != nil {
		return FallbackPageWidth, FallbackPageHeight, nil
	}
	w, h = PageSize(ctx, pageNr)
	return w, h, nil
}

// Merge concatenates the inputs page-wise, in input order, into out.
func (t *Toolbox) Merge(inputs []string, out string) error {
	conf := model.NewDefaultConfiguration()
	if err := api.MergeCreateFile(inputs, out, false, conf); err != nil {
		return fmt.Errorf("merge pdfs: %w", err)
	}
	return nil
}

// Rotate applies a page-level rotation to every page of the document in
// one pass. Zero degrees is a plain copy; pdfcpu only accepts non-zero
// quarter turns.
func (t *Toolbox) Rotate(src, dst string, degrees int) error {
	if degrees%360 == 0 {
		return copyFile(src, dst)
	}
	conf := model.NewDefaultConfiguration()
	if err := api.RotateFile(src, dst, degrees, nil, conf); err != nil {
		os.Remove(dst)
		return fmt.Errorf("rotate pdf: %w", err)
	}
	return nil
}

// WatermarkText draws a text watermark onto one page. The caller-supplied
// Y is a top-origin coordinate (the preview convention); the baseline is
// placed at Y plus the font's ascent at the requested size, so the visual
// position matches the caller's coordinate system.
func (t *Toolbox) WatermarkText(src, dst string, opt models.WatermarkTextOptions) error {
	return ApplyOverlay(src, dst, opt.Page, func(pdf *gofpdf.Fpdf, pageW, pageH float64) error {
		drawWatermarkText(pdf, opt)
		return nil
	})
}

func drawWatermarkText(pdf *gofpdf.Fpdf, opt models.WatermarkTextOptions) {
	family, style := PickFont(opt.Font, opt.Bold, opt.Italic)
	size := float64(opt.FontSize)
	pdf.SetFont(family, style, size)

	r, g, b := ParseHexColor(opt.Color)
	pdf.SetTextColor(r, g, b)
	pdf.SetDrawColor(r, g, b)
	pdf.SetAlpha(clampOpacity(opt.Opacity), "Normal")

	if opt.Text == "" {
		return
	}

	ascent := float64(pdf.GetFontDesc("", "").Ascent) * size / 1000
	baselineY := opt.Y + ascent
	textW := pdf.GetStringWidth(opt.Text)

	drawX := opt.X
	underlineW := textW
	if opt.MaxWidth > 0 {
		switch opt.Align {
		case "center":
			drawX = opt.X + (opt.MaxWidth-textW)/2
		case "right":
			drawX = opt.X + (opt.MaxWidth - textW)
		case "justify":
			spaces := strings.Count(opt.Text, " ")
			if spaces > 0 && opt.MaxWidth > textW {
				drawJustified(pdf, opt.Text, opt.X, baselineY, opt.MaxWidth, textW, spaces)
				if opt.Underline {
					drawUnderline(pdf, opt.X, baselineY, opt.MaxWidth, size)
				}
				return
			}
			// No interior spaces to distribute: left alignment.
		}
	}

	pdf.Text(drawX, baselineY, opt.Text)
	if opt.Underline {
		drawUnderline(pdf, drawX, baselineY, underlineW, size)
	}
}

// drawJustified distributes the slack between textW and maxWidth evenly
// across the interior spaces by widening the inter-word gap.
func drawJustified(pdf *gofpdf.Fpdf, s string, x, baselineY, maxWidth, textW float64, spaces int) {
	extra := (maxWidth - textW) / float64(spaces)
	gap := pdf.GetStringWidth(" ") + extra

	pos := x
	for _, word := range strings.Split(s, " ") {
		if word != "" {
			pdf.Text(pos, baselineY, word)
			pos += pdf.GetStringWidth(word)
		}
		pos += gap
	}
}

// drawUnderline strokes a rule beneath the measured text extent.
func drawUnderline(pdf *gofpdf.Fpdf, x, baselineY, width, size float64) {
	y := baselineY + math.Max(1.0, size*0.12)
	pdf.SetLineWidth(math.Max(0.8, size*0.06))
	pdf.Line(x, y, x+width, y)
}

// WatermarkImage draws the raster image at imagePath into an axis-aligned
// box on one page, honoring source transparency plus an extra opacity
// multiplier.
func (t *Toolbox) WatermarkImage(src, dst, imagePath string, opt models.WatermarkImageOptions) error {
	imgType, err := sniffImageType(imagePath)
	if err != nil {
		return fmt.Errorf("read watermark image: %w", err)
	}

	return ApplyOverlay(src, dst, opt.Page, func(pdf *gofpdf.Fpdf, pageW, pageH float64) error {
		pdf.SetAlpha(clampOpacity(opt.Opacity), "Normal")
		pdf.ImageOptions(imagePath, opt.X, opt.Y, opt.W, opt.H, false,
			gofpdf.ImageOptions{ImageType: imgType, AllowNegativePosition: true}, 0, "")
		return nil
	})
}

// sniffImageType detects the image format from the file header; uploaded
// watermark images may arrive without a usable extension.
func sniffImageType(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	head := make([]byte, 4)
	if _, err := f.Read(head); err != nil {
		return "", err
	}
	switch {
	case head[0] == 0x89 && head[1] == 'P' && head[2] == 'N' && head[3] == 'G':
		return "PNG", nil
	case head[0] == 0xff && head[1] == 0xd8:
		return "JPG", nil
	case head[0] == 'G' && head[1] == 'I' && head[2] == 'F':
		return "GIF", nil
	}
	return "", fmt.Errorf("unsupported image format (want PNG, JPEG or GIF)")
}

// DrawSignature strokes freehand polylines onto one page. Stroke points
// are fractions (0..1) of the bounding box, scaled into page coordinates;
// strokes with fewer than two points are skipped.
func (t *Toolbox) DrawSignature(src, dst string, opt models.SignatureOptions) error {
	return ApplyOverlay(src, dst, opt.Page, func(pdf *gofpdf.Fpdf, pageW, pageH float64) error {
		r, g, b := ParseHexColor(opt.Color)
		pdf.SetDrawColor(r, g, b)
		pdf.SetAlpha(clampOpacity(opt.Opacity), "Normal")
		pdf.SetLineWidth(clampStrokeWidth(opt.StrokeWidth))
		pdf.SetLineCapStyle("round")
		pdf.SetLineJoinStyle("round")

		drawn := false
		for _, stroke := range opt.Strokes {
			if len(stroke) < 2 {
				continue
			}
			pdf.MoveTo(opt.X+stroke[0][0]*opt.W, opt.Y+stroke[0][1]*opt.H)
			for _, pt := range stroke[1:] {
				pdf.LineTo(opt.X+pt[0]*opt.W, opt.Y+pt[1]*opt.H)
			}
			drawn = true
		}
		if drawn {
			pdf.DrawPath("D")
		}
		return nil
	})
}

func clampStrokeWidth(w float64) float64 {
	if w < 0.5 {
		return 0.5
	}
	if w > 8 {
		return 8
	}
	return w
}
