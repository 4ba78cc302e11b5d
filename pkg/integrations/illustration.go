package integrations

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"os"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// IllustrationSettings bounds the images embedded next to chapter headings.
type IllustrationSettings struct {
	MaxWidth  int
	MaxHeight int
	Quality   int
	Grayscale bool
}

func DefaultIllustrationSettings() IllustrationSettings {
	return IllustrationSettings{
		MaxWidth:  1200,
		MaxHeight: 1600,
		Quality:   85,
	}
}

// IllustrationProcessor re-encodes chapter illustrations as JPEG no larger
// than the configured box.
type IllustrationProcessor struct {
	settings IllustrationSettings
}

func NewIllustrationProcessor(settings IllustrationSettings) *IllustrationProcessor {
	defaults := DefaultIllustrationSettings()
	if settings.MaxWidth <= 0 {
		settings.MaxWidth = defaults.MaxWidth
	}
	if settings.MaxHeight <= 0 {
		settings.MaxHeight = defaults.MaxHeight
	}
	if settings.Quality <= 0 || settings.Quality > 100 {
		settings.Quality = defaults.Quality
	}
	return &IllustrationProcessor{settings: settings}
}

// Process decodes a PNG, JPEG, GIF or WebP image and returns it as JPEG.
func (p *IllustrationProcessor) Process(input io.Reader) ([]byte, error) {
	img, _, err := image.Decode(input)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	bounds := img.Bounds()
	width, height := p.fit(bounds.Dx(), bounds.Dy())

	// JPEG has no alpha; transparent areas become white.
	canvas := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	if width == bounds.Dx() && height == bounds.Dy() {
		draw.Draw(canvas, canvas.Bounds(), img, bounds.Min, draw.Over)
	} else {
		draw.CatmullRom.Scale(canvas, canvas.Bounds(), img, bounds, draw.Over, nil)
	}

	var out image.Image = canvas
	if p.settings.Grayscale {
		out = toGrayscale(canvas)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, out, &jpeg.Options{Quality: p.settings.Quality}); err != nil {
		return nil, fmt.Errorf("failed to encode JPEG: %w", err)
	}
	return buf.Bytes(), nil
}

func (p *IllustrationProcessor) ProcessFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open illustration: %w", err)
	}
	defer f.Close()

	return p.Process(f)
}

// fit scales width and height down to the box, keeping the aspect ratio.
func (p *IllustrationProcessor) fit(width, height int) (int, int) {
	if width <= p.settings.MaxWidth && height <= p.settings.MaxHeight {
		return width, height
	}

	scale := float64(p.settings.MaxWidth) / float64(width)
	if hs := float64(p.settings.MaxHeight) / float64(height); hs < scale {
		scale = hs
	}

	w := int(float64(width) * scale)
	h := int(float64(height) * scale)
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	return w, h
}

func toGrayscale(img image.Image) image.Image {
	bounds := img.Bounds()
	gray := image.NewGray(bounds)
	draw.Draw(gray, bounds, img, bounds.Min, draw.Src)
	return gray
}
