package pdfops

import (
	"fmt"
	"os"
	"strconv"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"github.com/phpdave11/gofpdf"
)

// PageRangeError reports a 1-based page number outside [1, pageCount].
// It is a validation error: no output file has been produced.
type PageRangeError struct {
	Page  int
	Pages int
}

func (e *PageRangeError) Error() string {
	return fmt.Sprintf("invalid page number %d (document has %d pages)", e.Page, e.Pages)
}

// DrawFunc renders tool content onto a page-sized overlay canvas. The
// canvas uses point units with a top-left origin and spans exactly the
// resolved geometry of the target page.
type DrawFunc func(pdf *gofpdf.Fpdf, pageW, pageH float64) error

// ApplyOverlay builds a transparent single-page overlay sized to page
// pageNr of src, invokes drawFn against it, and alpha-composites it onto
// exactly that page of a full copy of src written to dst. All other pages
// are copied unchanged. The page bounds are checked before any file is
// written.
func ApplyOverlay(src, dst string, pageNr int, drawFn DrawFunc) error {
	count, err := api.PageCountFile(src)
	if err != nil {
		return fmt.Errorf("read source pdf: %w", err)
	}
	if pageNr < 1 || pageNr > count {
		return &PageRangeError{Page: pageNr, Pages: count}
	}

	ctx, err := api.ReadContextFile(src)
	if err != nil {
		return fmt.Errorf("read source pdf: %w", err)
	}
	pageW, pageH := PageSize(ctx, pageNr)

	overlayPath := dst + ".overlay.pdf"
	if err := buildOverlay(overlayPath, pageW, pageH, drawFn); err != nil {
		os.Remove(overlayPath)
		return fmt.Errorf("build overlay: %w", err)
	}
	defer os.Remove(overlayPath)

	if err := copyFile(src, dst); err != nil {
		return fmt.Errorf("copy document: %w", err)
	}
	if err := stampPage(dst, overlayPath, pageNr); err != nil {
		os.Remove(dst)
		return fmt.Errorf("merge overlay onto page %d: %w", pageNr, err)
	}
	return nil
}

// buildOverlay writes a one-page PDF of the given size with drawFn's
// content on a transparent background.
func buildOverlay(path string, pageW, pageH float64, drawFn DrawFunc) error {
	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "pt",
		Size:           gofpdf.SizeType{Wd: pageW, Ht: pageH},
	})
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()

	if err := drawFn(pdf, pageW, pageH); err != nil {
		return err
	}
	if pdf.Err() {
		return pdf.Error()
	}
	return pdf.OutputFileAndClose(path)
}

// stampPage merges the one-page overlay document onto a single page of
// the target, in place. The overlay is placed unscaled and centered;
// since it matches the page geometry exactly this aligns the coordinate
// systems.
func stampPage(target, overlayPath string, pageNr int) error {
	wm, err := pdfcpu.ParsePDFWatermarkDetails(overlayPath, "pos:c, scale:1 abs, rot:0", true, types.POINTS)
	if err != nil {
		return err
	}
	conf := model.NewDefaultConfiguration()
	pages := []string{strconv.Itoa(pageNr)}
	return api.AddWatermarksFile(target, "", pages, wm, conf)
}

// copyFile copies src to dst.
func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o644)
}
