package pdfops

import (
	"strconv"
	"strings"

	"github.com/phpdave11/gofpdf"
)

// PickFont maps a logical family name plus bold/italic flags onto one of
// the twelve built-in core font variants, returned as a gofpdf family and
// style pair. Family matching is case-insensitive and accepts common
// aliases; unrecognized names default to a bold sans-serif face.
func PickFont(family string, bold, italic bool) (string, string) {
	style := ""
	if bold {
		style += "B"
	}
	if italic {
		style += "I"
	}

	switch strings.ToLower(strings.TrimSpace(family)) {
	case "helvetica", "arial", "":
		return "Helvetica", style
	case "times", "times-roman", "timesroman", "times new roman":
		return "Times", style
	case "courier", "monospace", "mono":
		return "Courier", style
	}
	if bold {
		return "Helvetica", "B"
	}
	return "Helvetica", ""
}

// FontAscent returns the ascent of the given core font at the given size,
// in points. Used to convert a top-origin Y coordinate to a baseline.
func FontAscent(family, style string, size float64) float64 {
	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "pt",
		Size:           gofpdf.SizeType{Wd: FallbackPageWidth, Ht: FallbackPageHeight},
	})
	pdf.SetFont(family, style, size)
	desc := pdf.GetFontDesc("", "")
	return float64(desc.Ascent) * size / 1000
}

// ParseHexColor parses "#rgb" or "#rrggbb" (leading # optional) into RGB
// components. Empty, malformed or out-of-range input defaults to white
// rather than failing.
func ParseHexColor(s string) (r, g, b int) {
	val := strings.TrimSpace(s)
	val = strings.TrimPrefix(val, "#")
	if len(val) == 3 {
		val = string([]byte{val[0], val[0], val[1], val[1], val[2], val[2]})
	}
	if len(val) != 6 {
		return 255, 255, 255
	}

	rv, err1 := strconv.ParseUint(val[0:2], 16, 8)
	gv, err2 := strconv.ParseUint(val[2:4], 16, 8)
	bv, err3 := strconv.ParseUint(val[4:6], 16, 8)
	if err1 != nil || err2 != nil || err3 != nil {
		return 255, 255, 255
	}
	return int(rv), int(gv), int(bv)
}

// clampOpacity converts a 0-100 integer opacity to a 0..1 alpha, clamping
// out-of-range input.
func clampOpacity(opacity int) float64 {
	if opacity < 0 {
		opacity = 0
	}
	if opacity > 100 {
		opacity = 100
	}
	return float64(opacity) / 100
}
