package severity

import (
	"errors"
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/sreenivasabhakthan/intelligent-pesticide-system/internal/domain"
)

var (
	brown = color.RGBA{R: 150, G: 111, B: 32, A: 255} // infected only
	green = color.RGBA{R: 0, G: 200, B: 0, A: 255}    // healthy only
	olive = color.RGBA{R: 150, G: 142, B: 32, A: 255} // inside both ranges
	white = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	blue  = color.RGBA{R: 0, G: 0, B: 200, A: 255}
)

func fill(w, h int, pixels ...color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	i := 0
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, pixels[i%len(pixels)])
			i++
		}
	}
	return img
}

func TestToHSV(t *testing.T) {
	tests := []struct {
		name string
		in   color.Color
		want HSV
	}{
		{"brown", brown, HSV{H: 20, S: 201, V: 150}},
		{"green", green, HSV{H: 60, S: 255, V: 200}},
		{"olive", olive, HSV{H: 28, S: 201, V: 150}},
		{"white", white, HSV{H: 0, S: 0, V: 255}},
		{"black", color.Black, HSV{}},
		{"blue", blue, HSV{H: 120, S: 255, V: 200}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ToHSV(tt.in); got != tt.want {
				t.Fatalf("ToHSV(%v) = %+v, want %+v", tt.in, got, tt.want)
			}
		})
	}
}

func TestRangeContainsIsInclusive(t *testing.T) {
	r := DefaultRanges().Infected
	if !r.Contains(r.Lower) || !r.Contains(r.Upper) {
		t.Fatal("range bounds must be inclusive")
	}
	if r.Contains(HSV{H: 31, S: 150, V: 100}) {
		t.Fatal("hue above upper bound accepted")
	}
	if r.Contains(HSV{H: 20, S: 99, V: 100}) {
		t.Fatal("saturation below lower bound accepted")
	}
}

func TestEstimate(t *testing.T) {
	e := NewEstimator(DefaultRanges())

	tests := []struct {
		name     string
		img      image.Image
		severity float64
		masked   int
	}{
		{"all infected", fill(4, 4, brown), 100, 16},
		{"all healthy", fill(4, 4, green), 0, 0},
		{"half and half", fill(2, 2, brown, green), 50, 2},
		{"one third", fill(3, 1, brown, green, green), 33.33, 1},
		{"irrelevant pixels ignored", fill(4, 1, brown, green, white, blue), 50, 1},
		{"overlap counted once", fill(2, 1, olive, green), 50, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := e.Estimate(tt.img)
			if err != nil {
				t.Fatalf("Estimate: %v", err)
			}
			if res.Severity != tt.severity {
				t.Errorf("severity = %v, want %v", res.Severity, tt.severity)
			}
			if got := res.Mask.Count(); got != tt.masked {
				t.Errorf("mask count = %d, want %d", got, tt.masked)
			}
		})
	}
}

func TestEstimateNoRelevantPixels(t *testing.T) {
	img := fill(5, 3, white, blue, color.Black)
	res, err := NewEstimator(DefaultRanges()).Estimate(img)
	if err != nil {
		t.Fatalf("Estimate: %v", err)
	}
	if res.Severity != 0 {
		t.Fatalf("severity = %v, want 0", res.Severity)
	}
	if res.Mask.Width != 5 || res.Mask.Height != 3 {
		t.Fatalf("mask is %dx%d, want 5x3", res.Mask.Width, res.Mask.Height)
	}
	for y := 0; y < 3; y++ {
		for x := 0; x < 5; x++ {
			if res.Mask.At(x, y) {
				t.Fatalf("mask set at (%d,%d)", x, y)
			}
		}
	}
}

func TestEstimateMaskFollowsPixels(t *testing.T) {
	img := fill(2, 2, brown, green)
	// offset bounds must not leak into mask coordinates
	sub := img.SubImage(image.Rect(1, 0, 2, 2))
	res, err := NewEstimator(DefaultRanges()).Estimate(sub)
	if err != nil {
		t.Fatalf("Estimate: %v", err)
	}
	if res.Mask.Width != 1 || res.Mask.Height != 2 {
		t.Fatalf("mask is %dx%d, want 1x2", res.Mask.Width, res.Mask.Height)
	}
	// column 1 holds green on row 0 and green on row 1
	if res.Mask.At(0, 0) || res.Mask.At(0, 1) {
		t.Fatal("healthy column marked infected")
	}
	if res.Severity != 0 {
		t.Fatalf("severity = %v, want 0", res.Severity)
	}
}

func TestEstimateSeverityBounded(t *testing.T) {
	e := NewEstimator(DefaultRanges())
	palette := []color.Color{brown, green, olive, white, blue}
	for n := 1; n <= len(palette); n++ {
		res, err := e.Estimate(fill(7, 3, palette[:n]...))
		if err != nil {
			t.Fatalf("Estimate: %v", err)
		}
		if res.Severity < 0 || res.Severity > 100 {
			t.Fatalf("severity %v out of range", res.Severity)
		}
		if scaled := res.Severity * 100; math.Abs(scaled-math.Round(scaled)) > 1e-6 {
			t.Fatalf("severity %v has more than two decimals", res.Severity)
		}
	}
}

func TestEstimateEmptyImage(t *testing.T) {
	e := NewEstimator(DefaultRanges())
	if _, err := e.Estimate(image.NewRGBA(image.Rect(0, 0, 0, 0))); !errors.Is(err, ErrEmptyImage) {
		t.Fatalf("err = %v, want ErrEmptyImage", err)
	}
	if _, err := e.Estimate(nil); !errors.Is(err, ErrEmptyImage) {
		t.Fatalf("err = %v, want ErrEmptyImage", err)
	}
}

func TestLabelBoundaries(t *testing.T) {
	tests := []struct {
		severity float64
		want     domain.InfectionLabel
	}{
		{0, domain.LabelLow},
		{9.99, domain.LabelLow},
		{10, domain.LabelMild},
		{29.99, domain.LabelMild},
		{30, domain.LabelModerate},
		{59.99, domain.LabelModerate},
		{60, domain.LabelSevere},
		{100, domain.LabelSevere},
	}
	for _, tt := range tests {
		if got := Label(tt.severity); got != tt.want {
			t.Errorf("Label(%v) = %s, want %s", tt.severity, got, tt.want)
		}
	}
}
