package models

import (
	"encoding/json"
	"fmt"
)

// Tool names a document transformation. Merge is only valid at job
// creation; requesting it through apply is a validation error.
type Tool string

const (
	ToolMerge          Tool = "merge"
	ToolRotate         Tool = "rotate"
	ToolWatermarkText  Tool = "watermark_text"
	ToolWatermarkImage Tool = "watermark_image"
	ToolDrawSignature  Tool = "draw_signature"
)

// KnownTool reports whether the tool name is one the pipeline understands.
func KnownTool(t Tool) bool {
	switch t {
	case ToolMerge, ToolRotate, ToolWatermarkText, ToolWatermarkImage, ToolDrawSignature:
		return true
	}
	return false
}

// RotateOptions rotates every page of the document by a quarter turn.
type RotateOptions struct {
	Degrees int `json:"degrees"`
}

// ParseRotateOptions decodes and validates rotate options from JSON.
func ParseRotateOptions(raw []byte) (RotateOptions, error) {
	opt := RotateOptions{Degrees: 90}
	if err := json.Unmarshal(raw, &opt); err != nil {
		return opt, fmt.Errorf("options must be valid JSON: %w", err)
	}
	switch opt.Degrees {
	case 0, 90, 180, 270:
		return opt, nil
	}
	return opt, fmt.Errorf("degrees must be one of 0, 90, 180, 270, got %d", opt.Degrees)
}

// WatermarkTextOptions places a text watermark on one page. X and Y are
// page points with a top-left origin (the preview coordinate system);
// the compositor converts Y to the text baseline using the font's ascent.
type WatermarkTextOptions struct {
	Text      string  `json:"text"`
	Opacity   int     `json:"opacity"`
	Page      int     `json:"page"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	FontSize  int     `json:"fontSize"`
	Color     string  `json:"color"`
	Font      string  `json:"font"`
	Bold      bool    `json:"bold"`
	Italic    bool    `json:"italic"`
	Underline bool    `json:"underline"`
	Align     string  `json:"align"`
	MaxWidth  float64 `json:"maxWidth,omitempty"`
}

// ParseWatermarkTextOptions decodes and validates text watermark options.
func ParseWatermarkTextOptions(raw []byte) (WatermarkTextOptions, error) {
	opt := WatermarkTextOptions{
		Opacity:  30,
		Page:     1,
		X:        72,
		Y:        72,
		FontSize: 32,
		Color:    "#ffffff",
		Font:     "Helvetica",
		Align:    "left",
	}
	if err := json.Unmarshal(raw, &opt); err != nil {
		return opt, fmt.Errorf("options must be valid JSON: %w", err)
	}
	if len(opt.Text) < 1 || len(opt.Text) > 80 {
		return opt, fmt.Errorf("text must be 1-80 characters, got %d", len(opt.Text))
	}
	if opt.Opacity < 5 || opt.Opacity > 100 {
		return opt, fmt.Errorf("opacity must be in [5,100], got %d", opt.Opacity)
	}
	if opt.FontSize < 8 || opt.FontSize > 120 {
		return opt, fmt.Errorf("fontSize must be in [8,120], got %d", opt.FontSize)
	}
	switch opt.Align {
	case "left", "center", "right", "justify":
	default:
		return opt, fmt.Errorf("align must be left, center, right or justify, got %q", opt.Align)
	}
	if opt.MaxWidth < 0 {
		return opt, fmt.Errorf("maxWidth must be positive, got %v", opt.MaxWidth)
	}
	return opt, nil
}

// WatermarkImageOptions draws an uploaded raster image into an
// axis-aligned box on one page. Coordinates are page points, top-left
// origin.
type WatermarkImageOptions struct {
	Page    int     `json:"page"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	W       float64 `json:"w"`
	H       float64 `json:"h"`
	Opacity int     `json:"opacity"`
}

// ParseWatermarkImageOptions decodes and validates image watermark options.
func ParseWatermarkImageOptions(raw []byte) (WatermarkImageOptions, error) {
	opt := WatermarkImageOptions{
		Page:    1,
		X:       72,
		Y:       72,
		W:       220,
		H:       80,
		Opacity: 100,
	}
	if err := json.Unmarshal(raw, &opt); err != nil {
		return opt, fmt.Errorf("options must be valid JSON: %w", err)
	}
	if opt.Opacity < 5 || opt.Opacity > 100 {
		return opt, fmt.Errorf("opacity must be in [5,100], got %d", opt.Opacity)
	}
	if opt.W <= 0 || opt.H <= 0 {
		return opt, fmt.Errorf("box dimensions must be positive, got w=%v h=%v", opt.W, opt.H)
	}
	return opt, nil
}

// SignatureOptions draws freehand polylines scaled into a bounding box.
// Each stroke is a sequence of [x, y] points expressed as fractions (0..1)
// of the box; strokes with fewer than two points are skipped at draw time.
type SignatureOptions struct {
	Page        int           `json:"page"`
	X           float64       `json:"x"`
	Y           float64       `json:"y"`
	W           float64       `json:"w"`
	H           float64       `json:"h"`
	Strokes     [][][]float64 `json:"strokes"`
	StrokeWidth float64       `json:"strokeWidth"`
	Opacity     int           `json:"opacity"`
	Color       string        `json:"color"`
}

// ParseSignatureOptions decodes and validates signature options.
func ParseSignatureOptions(raw []byte) (SignatureOptions, error) {
	opt := SignatureOptions{
		Page:        1,
		X:           72,
		Y:           72,
		W:           260,
		H:           120,
		StrokeWidth: 2,
		Opacity:     100,
		Color:       "#ffffff",
	}
	if err := json.Unmarshal(raw, &opt); err != nil {
		return opt, fmt.Errorf("options must be valid JSON: %w", err)
	}
	if len(opt.Strokes) == 0 {
		return opt, fmt.Errorf("at least one stroke is required")
	}
	for i, stroke := range opt.Strokes {
		for j, pt := range stroke {
			if len(pt) != 2 {
				return opt, fmt.Errorf("stroke %d point %d must be an [x, y] pair", i, j)
			}
		}
	}
	if opt.StrokeWidth < 0.5 || opt.StrokeWidth > 8 {
		return opt, fmt.Errorf("strokeWidth must be in [0.5,8], got %v", opt.StrokeWidth)
	}
	if opt.Opacity < 10 || opt.Opacity > 100 {
		return opt, fmt.Errorf("opacity must be in [10,100], got %d", opt.Opacity)
	}
	if opt.W <= 0 || opt.H <= 0 {
		return opt, fmt.Errorf("box dimensions must be positive, got w=%v h=%v", opt.W, opt.H)
	}
	return opt, nil
}
