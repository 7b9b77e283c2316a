package utils

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/jpeg"
	"image/png"
	"path/filepath"
	"strings"

	"github.com/nfnt/resize"
	"go.uber.org/zap"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported image format")
	ErrImageTooLarge     = errors.New("image dimensions too large")
)

// Masker reports whether the pixel at zero-based (x, y) is marked.
type Masker interface {
	At(x, y int) bool
}

var highlight = color.RGBA{R: 255, A: 255}

type ImageProcessor struct {
	allowed   map[string]bool
	maxPixels int64
	log       *zap.Logger
}

// NewImageProcessor limits decoded images to maxPixels; zero or less means no
// limit.
func NewImageProcessor(allowedFormats []string, maxPixels int64, log *zap.Logger) *ImageProcessor {
	allowed := make(map[string]bool, len(allowedFormats))
	for _, f := range allowedFormats {
		allowed[strings.ToLower(f)] = true
	}
	return &ImageProcessor{allowed: allowed, maxPixels: maxPixels, log: log}
}

// CheckExtension rejects filenames outside the allowed extension list.
func (p *ImageProcessor) CheckExtension(filename string) error {
	ext := strings.ToLower(filepath.Ext(filename))
	if !p.allowed[ext] {
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	return nil
}

// Decode reads JPEG or PNG bytes into an image. The header is checked first so
// an oversized image is rejected before its pixels are allocated.
func (p *ImageProcessor) Decode(data []byte) (image.Image, string, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return nil, "", ErrUnsupportedFormat
		}
		return nil, "", fmt.Errorf("decode image header: %w", err)
	}
	if p.maxPixels > 0 && int64(cfg.Width)*int64(cfg.Height) > p.maxPixels {
		p.log.Warn("Image rejected",
			zap.Int("width", cfg.Width),
			zap.Int("height", cfg.Height),
			zap.Int64("max_pixels", p.maxPixels))
		return nil, "", fmt.Errorf("%w: %dx%d", ErrImageTooLarge, cfg.Width, cfg.Height)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return nil, "", ErrUnsupportedFormat
		}
		return nil, "", fmt.Errorf("decode image: %w", err)
	}

	p.log.Debug("Image decoded",
		zap.String("format", format),
		zap.Int("width", img.Bounds().Dx()),
		zap.Int("height", img.Bounds().Dy()))

	return img, format, nil
}

// RenderOverlay copies img and paints every masked pixel pure red.
func (p *ImageProcessor) RenderOverlay(img image.Image, mask Masker) *image.RGBA {
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			if mask.At(x, y) {
				out.SetRGBA(x, y, highlight)
			}
		}
	}
	return out
}

// Thumbnail scales img down to maxWidth, keeping the aspect ratio. Images
// that already fit, and a zero maxWidth, are returned unchanged.
func (p *ImageProcessor) Thumbnail(img image.Image, maxWidth uint) image.Image {
	if maxWidth == 0 || uint(img.Bounds().Dx()) <= maxWidth {
		return img
	}
	return resize.Resize(maxWidth, 0, img, resize.Lanczos3)
}

func (p *ImageProcessor) EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func PNGDataURL(data []byte) string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(data)
}
