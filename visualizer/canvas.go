package visualizer

import (
	"math"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

// Default logical canvas size.
const (
	DefaultWidth  = 600
	DefaultHeight = 100
)

// blocks are the glyphs for eighths of a cell filled from the bottom.
var blocks = []string{" ", "▁", "▂", "▃", "▄", "▅", "▆", "▇", "█"}

type cell struct {
	level int // eighths filled, 0..8
	color string
}

// CanvasOption configures a Canvas.
type CanvasOption func(*Canvas)

// WithLogicalSize sets the size in logical pixels the grid is scaled to.
func WithLogicalSize(width, height float64) CanvasOption {
	return func(c *Canvas) {
		if width > 0 && height > 0 {
			c.width, c.height = width, height
		}
	}
}

// Canvas is a Surface backed by a grid of terminal cells. Drawing happens in
// logical pixels; each cell covers width/cols by height/rows of them.
type Canvas struct {
	cols, rows    int
	width, height float64

	mu    sync.RWMutex
	cells []cell
}

// NewCanvas creates a cols x rows canvas.
func NewCanvas(cols, rows int, opts ...CanvasOption) *Canvas {
	if cols < 1 {
		cols = 1
	}
	if rows < 1 {
		rows = 1
	}
	c := &Canvas{
		cols:   cols,
		rows:   rows,
		width:  DefaultWidth,
		height: DefaultHeight,
		cells:  make([]cell, cols*rows),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Canvas) Width() float64  { return c.width }
func (c *Canvas) Height() float64 { return c.height }

// Size returns the grid dimensions in cells.
func (c *Canvas) Size() (cols, rows int) { return c.cols, c.rows }

func (c *Canvas) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.cells {
		c.cells[i] = cell{}
	}
}

// FillRoundedRect fills the cells covered by the rectangle. Corners are too
// small to show at cell resolution, so radius is ignored. The top cell of a
// bar gets a partial block.
func (c *Canvas) FillRoundedRect(x, y, w, h, radius float64, fill Gradient) {
	if w <= 0 || h <= 0 {
		return
	}
	cw := c.width / float64(c.cols)
	ch := c.height / float64(c.rows)
	c0 := int(math.Floor(x / cw))
	c1 := int(math.Ceil((x+w)/cw)) - 1
	if c0 < 0 {
		c0 = 0
	}
	if c1 >= c.cols {
		c1 = c.cols - 1
	}
	bottom := y + h

	c.mu.Lock()
	defer c.mu.Unlock()
	for row := 0; row < c.rows; row++ {
		top := float64(row) * ch
		cellBottom := top + ch
		covered := math.Min(cellBottom, bottom) - math.Max(top, y)
		if covered <= 0 {
			continue
		}
		level := int(math.Round(covered / ch * 8))
		if level == 0 {
			continue
		}
		if level > 8 {
			level = 8
		}
		for col := c0; col <= c1; col++ {
			idx := row*c.cols + col
			if level <= c.cells[idx].level {
				continue
			}
			cx := (float64(col) + 0.5) * cw
			cy := math.Max(top, y) + covered/2
			c.cells[idx] = cell{level: level, color: fill.ColorAt(cx, cy).Hex()}
		}
	}
}

// String renders the grid, one line per row.
func (c *Canvas) String() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var b strings.Builder
	for row := 0; row < c.rows; row++ {
		if row > 0 {
			b.WriteByte('\n')
		}
		for col := 0; col < c.cols; col++ {
			cl := c.cells[row*c.cols+col]
			if cl.level == 0 {
				b.WriteString(" ")
				continue
			}
			b.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color(cl.color)).Render(blocks[cl.level]))
		}
	}
	return b.String()
}
