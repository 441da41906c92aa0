package integrations

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// ImageProcessor scales cover images to fit a box
type ImageProcessor struct {
	MaxWidth  int
	MaxHeight int
	Quality   int
}

func NewImageProcessor(maxWidth, maxHeight int) *ImageProcessor {
	return &ImageProcessor{MaxWidth: maxWidth, MaxHeight: maxHeight, Quality: 85}
}

// Decode reads a JPEG, PNG, GIF or WebP image
func (p *ImageProcessor) Decode(input io.Reader) (image.Image, error) {
	img, _, err := image.Decode(input)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}

// Fit scales img down, keeping its aspect ratio, until it fits the box
func (p *ImageProcessor) Fit(img image.Image) image.Image {
	bounds := img.Bounds()
	w, h := p.calculateDimensions(bounds.Dx(), bounds.Dy())
	if w == bounds.Dx() && h == bounds.Dy() {
		return img
	}
	return p.resize(img, w, h)
}

// calculateDimensions calculates the new dimensions while maintaining aspect ratio
func (p *ImageProcessor) calculateDimensions(width, height int) (int, int) {
	if width <= p.MaxWidth && height <= p.MaxHeight {
		return width, height // No resize needed
	}

	widthScale := float64(p.MaxWidth) / float64(width)
	heightScale := float64(p.MaxHeight) / float64(height)

	// Use the smaller scale to ensure image fits within bounds
	scale := widthScale
	if heightScale < widthScale {
		scale = heightScale
	}

	return max(int(float64(width)*scale), 1), max(int(float64(height)*scale), 1)
}

func (p *ImageProcessor) resize(img image.Image, width, height int) image.Image {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Over, nil)
	return dst
}

// JPEG decodes data, fits it to the box and re-encodes it as JPEG
func (p *ImageProcessor) JPEG(data []byte) ([]byte, error) {
	img, err := p.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, p.Fit(img), &jpeg.Options{Quality: p.Quality}); err != nil {
		return nil, fmt.Errorf("failed to encode JPEG: %w", err)
	}
	return buf.Bytes(), nil
}
