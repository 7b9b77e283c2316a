// Package severity estimates leaf infection severity from the colour of its
// pixels. Pixels are classified in 8-bit HSV space using the OpenCV
// convention: hue in [0,179], saturation and value in [0,255].
package severity

import (
	"errors"
	"image"
	"image/color"
	"math"

	colorful "github.com/lucasb-eyer/go-colorful"

	"github.com/sreenivasabhakthan/intelligent-pesticide-system/internal/domain"
)

var ErrEmptyImage = errors.New("image has no pixels")

type HSV struct {
	H, S, V uint8
}

// Range is an inclusive HSV box, matching cv2.inRange.
type Range struct {
	Lower HSV
	Upper HSV
}

func (r Range) Contains(p HSV) bool {
	return p.H >= r.Lower.H && p.H <= r.Upper.H &&
		p.S >= r.Lower.S && p.S <= r.Upper.S &&
		p.V >= r.Lower.V && p.V <= r.Upper.V
}

type Ranges struct {
	Healthy  Range
	Infected Range
}

// DefaultRanges returns the fixed healthy-vegetation and infected-tissue boxes.
func DefaultRanges() Ranges {
	return Ranges{
		Healthy: Range{
			Lower: HSV{H: 25, S: 40, V: 40},
			Upper: HSV{H: 90, S: 255, V: 255},
		},
		Infected: Range{
			Lower: HSV{H: 10, S: 100, V: 20},
			Upper: HSV{H: 30, S: 255, V: 200},
		},
	}
}

// Bands are the upper (exclusive) severity limits of each infection label.
type Bands struct {
	Low      float64
	Mild     float64
	Moderate float64
}

func DefaultBands() Bands {
	return Bands{Low: 10, Mild: 30, Moderate: 60}
}

func (b Bands) Label(severity float64) domain.InfectionLabel {
	switch {
	case severity < b.Low:
		return domain.LabelLow
	case severity < b.Mild:
		return domain.LabelMild
	case severity < b.Moderate:
		return domain.LabelModerate
	default:
		return domain.LabelSevere
	}
}

// Label classifies severity with the default bands.
func Label(severity float64) domain.InfectionLabel {
	return DefaultBands().Label(severity)
}

// Mask is a row-major boolean grid with the dimensions of the analysed image.
// Coordinates are zero-based regardless of the source image bounds.
type Mask struct {
	Width  int
	Height int
	bits   []bool
}

func NewMask(width, height int) *Mask {
	return &Mask{Width: width, Height: height, bits: make([]bool, width*height)}
}

func (m *Mask) At(x, y int) bool {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return false
	}
	return m.bits[y*m.Width+x]
}

func (m *Mask) set(x, y int) {
	m.bits[y*m.Width+x] = true
}

func (m *Mask) Count() int {
	n := 0
	for _, b := range m.bits {
		if b {
			n++
		}
	}
	return n
}

type Result struct {
	Severity float64
	Mask     *Mask
}

type Estimator struct {
	ranges Ranges
}

func NewEstimator(ranges Ranges) *Estimator {
	return &Estimator{ranges: ranges}
}

// Estimate returns the share of infected pixels among all pixels that fall in
// either range, as a percentage rounded to two decimals. An image with no
// pixel in either range has severity 0 and an empty mask.
func (e *Estimator) Estimate(img image.Image) (Result, error) {
	if img == nil {
		return Result{}, ErrEmptyImage
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= 0 || h <= 0 {
		return Result{}, ErrEmptyImage
	}

	mask := NewMask(w, h)
	infected, relevant := 0, 0
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			p := ToHSV(img.At(b.Min.X+x, b.Min.Y+y))
			inf := e.ranges.Infected.Contains(p)
			if inf {
				infected++
				mask.set(x, y)
			}
			if inf || e.ranges.Healthy.Contains(p) {
				relevant++
			}
		}
	}

	if relevant == 0 {
		return Result{Severity: 0, Mask: NewMask(w, h)}, nil
	}
	severity := math.Round(float64(infected)/float64(relevant)*100*100) / 100
	return Result{Severity: severity, Mask: mask}, nil
}

// ToHSV converts a colour to 8-bit HSV. Alpha is ignored.
func ToHSV(c color.Color) HSV {
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	cf := colorful.Color{R: float64(n.R) / 255, G: float64(n.G) / 255, B: float64(n.B) / 255}
	h, s, v := cf.Hsv()

	hue := math.Round(h / 2)
	if hue >= 180 {
		hue -= 180
	}
	return HSV{
		H: uint8(hue),
		S: uint8(math.Round(s * 255)),
		V: uint8(math.Round(v * 255)),
	}
}
