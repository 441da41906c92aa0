package document

import (
	"math"
	"strings"
)

// Size of one character cell in points at scale 1
const (
	CellWidth  = 6.0
	CellHeight = 12.0
)

// GridSize returns the number of columns and rows page occupies at scale
func GridSize(page *Page, scale float64) (cols, rows int) {
	w, h := page.Width, page.Height
	if w <= 0 {
		w = DefaultPageWidth
	}
	if h <= 0 {
		h = DefaultPageHeight
	}
	cols = int(math.Ceil(w * scale / CellWidth))
	rows = int(math.Ceil(h * scale / CellHeight))
	return max(cols, 1), max(rows, 1)
}

// Render places the glyphs of page on a character grid. Later glyphs
// overwrite earlier ones, trailing blanks are trimmed and, when maxCols is
// positive, lines are cut to that width.
func Render(page *Page, scale float64, maxCols int) []string {
	if page == nil {
		return nil
	}
	if scale <= 0 {
		scale = 1
	}
	cols, rows := GridSize(page, scale)
	h := page.Height
	if h <= 0 {
		h = DefaultPageHeight
	}

	grid := make([][]rune, rows)
	for i := range grid {
		grid[i] = []rune(strings.Repeat(" ", cols))
	}

	for _, g := range page.Glyphs {
		row := int(math.Floor((h - g.Y) * scale / CellHeight))
		col := int(math.Floor(g.X * scale / CellWidth))
		if row < 0 || row >= rows {
			continue
		}
		for _, r := range g.S {
			if col >= cols {
				break
			}
			if col >= 0 && r != '\n' && r != '\r' {
				if r == '\t' {
					r = ' '
				}
				grid[row][col] = r
			}
			col++
		}
	}

	lines := make([]string, rows)
	for i, row := range grid {
		if maxCols > 0 && len(row) > maxCols {
			row = row[:maxCols]
		}
		lines[i] = strings.TrimRight(string(row), " ")
	}
	return lines
}
