package integrations

import (
	"fmt"
	"image"
	"image/color"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// CoverPreview draws an image in the terminal with upper half blocks, two
// pixels per cell: the foreground is the top pixel, the background the bottom.
type CoverPreview struct {
	Cols int
	Rows int
}

func (c CoverPreview) Render(r io.Reader) (string, error) {
	if c.Cols <= 0 || c.Rows <= 0 {
		return "", fmt.Errorf("cover preview needs a positive size, got %dx%d", c.Cols, c.Rows)
	}
	processor := NewImageProcessor(c.Cols, c.Rows*2)
	img, err := processor.Decode(r)
	if err != nil {
		return "", err
	}
	return halfBlocks(processor.Fit(img)), nil
}

func halfBlocks(img image.Image) string {
	b := img.Bounds()
	var out strings.Builder
	for y := b.Min.Y; y < b.Max.Y; y += 2 {
		for x := b.Min.X; x < b.Max.X; x++ {
			style := lipgloss.NewStyle().Foreground(hexColor(img.At(x, y)))
			if y+1 < b.Max.Y {
				style = style.Background(hexColor(img.At(x, y+1)))
			}
			out.WriteString(style.Render("▀"))
		}
		if y+2 < b.Max.Y {
			out.WriteByte('\n')
		}
	}
	return out.String()
}

func hexColor(c color.Color) lipgloss.Color {
	r, g, b, _ := c.RGBA()
	return lipgloss.Color(fmt.Sprintf("#%02x%02x%02x", r>>8, g>>8, b>>8))
}
