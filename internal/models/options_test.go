package models

import (
	"fmt"
	"strings"
	"testing"
)

func TestKnownTool(t *testing.T) {
	for _, tool := range []Tool{ToolMerge, ToolRotate, ToolWatermarkText, ToolWatermarkImage, ToolDrawSignature} {
		if !KnownTool(tool) {
			t.Errorf("expected %s to be known", tool)
		}
	}
	if KnownTool("split") {
		t.Error("split should not be a known tool")
	}
}

func TestParseRotateOptions(t *testing.T) {
	opt, err := ParseRotateOptions([]byte(`{}`))
	if err != nil {
		t.Fatalf("empty options should default: %v", err)
	}
	if opt.Degrees != 90 {
		t.Errorf("expected default 90 degrees, got %d", opt.Degrees)
	}

	for _, deg := range []int{0, 90, 180, 270} {
		if _, err := ParseRotateOptions([]byte(fmt.Sprintf(`{"degrees":%d}`, deg))); err != nil {
			t.Errorf("degrees %d should be valid: %v", deg, err)
		}
	}
	if _, err := ParseRotateOptions([]byte(`{"degrees":45}`)); err == nil {
		t.Error("expected error for 45 degrees")
	}
	if _, err := ParseRotateOptions([]byte(`not json`)); err == nil {
		t.Error("expected error for malformed JSON")
	}
}

func TestParseWatermarkTextOptions_Defaults(t *testing.T) {
	opt, err := ParseWatermarkTextOptions([]byte(`{"text":"DRAFT"}`))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if opt.Opacity != 30 || opt.Page != 1 || opt.X != 72 || opt.Y != 72 {
		t.Errorf("unexpected defaults: %+v", opt)
	}
	if opt.FontSize != 32 || opt.Color != "#ffffff" || opt.Font != "Helvetica" || opt.Align != "left" {
		t.Errorf("unexpected font defaults: %+v", opt)
	}
}

func TestParseWatermarkTextOptions_Validation(t *testing.T) {
	cases := []struct {
		name string
		json string
	}{
		{"empty text", `{"text":""}`},
		{"text too long", `{"text":"` + strings.Repeat("x", 81) + `"}`},
		{"opacity too low", `{"text":"a","opacity":4}`},
		{"opacity too high", `{"text":"a","opacity":101}`},
		{"font too small", `{"text":"a","fontSize":7}`},
		{"font too large", `{"text":"a","fontSize":121}`},
		{"bad align", `{"text":"a","align":"middle"}`},
		{"negative maxWidth", `{"text":"a","maxWidth":-1}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ParseWatermarkTextOptions([]byte(tc.json)); err == nil {
				t.Errorf("expected validation error for %s", tc.json)
			}
		})
	}

	if _, err := ParseWatermarkTextOptions([]byte(`{"text":"a","align":"justify","maxWidth":300}`)); err != nil {
		t.Errorf("justify with maxWidth should be valid: %v", err)
	}
}

func TestParseWatermarkImageOptions(t *testing.T) {
	opt, err := ParseWatermarkImageOptions([]byte(`{}`))
	if err != nil {
		t.Fatalf("empty options should default: %v", err)
	}
	if opt.W != 220 || opt.H != 80 || opt.Opacity != 100 {
		t.Errorf("unexpected defaults: %+v", opt)
	}

	if _, err := ParseWatermarkImageOptions([]byte(`{"w":0}`)); err == nil {
		t.Error("expected error for zero width")
	}
	if _, err := ParseWatermarkImageOptions([]byte(`{"opacity":4}`)); err == nil {
		t.Error("expected error for opacity below 5")
	}
}

func TestParseSignatureOptions(t *testing.T) {
	valid := `{"strokes":[[[0.1,0.1],[0.9,0.9]]]}`
	opt, err := ParseSignatureOptions([]byte(valid))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if opt.W != 260 || opt.H != 120 || opt.StrokeWidth != 2 || opt.Opacity != 100 {
		t.Errorf("unexpected defaults: %+v", opt)
	}

	cases := []struct {
		name string
		json string
	}{
		{"no strokes", `{"strokes":[]}`},
		{"point not a pair", `{"strokes":[[[0.1]]]}`},
		{"stroke width too low", `{"strokes":[[[0,0],[1,1]]],"strokeWidth":0.4}`},
		{"stroke width too high", `{"strokes":[[[0,0],[1,1]]],"strokeWidth":9}`},
		{"opacity too low", `{"strokes":[[[0,0],[1,1]]],"opacity":9}`},
		{"zero height box", `{"strokes":[[[0,0],[1,1]]],"h":0}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ParseSignatureOptions([]byte(tc.json)); err == nil {
				t.Errorf("expected validation error for %s", tc.json)
			}
		})
	}
}
