package client

import (
	"image"
	"image/color"
	"sync"

	"github.com/fogleman/gg"

	"github.com/vovakirdan/boardsync/internal/board"
)

// Background is the committed surface's paper colour. Erase strokes paint it.
const Background = "#ffffff"

// Canvas keeps two raster surfaces. The active surface holds only the stroke
// being drawn locally and is wiped after every commit. The committed surface
// is only ever drawn onto; it is repainted from state solely on clear and undo.
type Canvas struct {
	mu        sync.Mutex
	width     int
	height    int
	active    *gg.Context
	committed *gg.Context
}

// NewCanvas allocates both surfaces.
func NewCanvas(width, height int) *Canvas {
	c := &Canvas{
		width:     width,
		height:    height,
		active:    gg.NewContext(width, height),
		committed: gg.NewContext(width, height),
	}
	c.committed.SetHexColor(Background)
	c.committed.Clear()
	return c
}

func strokeColor(s board.Stroke) string {
	if s.Mode == board.ModeErase {
		return Background
	}
	if s.Color == "" {
		return board.DefaultColor
	}
	return s.Color
}

func strokeWidth(s board.Stroke) float64 {
	if s.StrokeWidth <= 0 {
		return board.DefaultStrokeWidth
	}
	return s.StrokeWidth
}

// path draws pts onto dc with the stroke's style. A lone point becomes a dot.
func path(dc *gg.Context, s board.Stroke, pts []board.Point) {
	if len(pts) == 0 {
		return
	}
	dc.SetHexColor(strokeColor(s))
	w := strokeWidth(s)
	if len(pts) == 1 {
		dc.DrawCircle(pts[0].X, pts[0].Y, w/2)
		dc.Fill()
		return
	}
	dc.SetLineWidth(w)
	dc.SetLineCapRound()
	dc.SetLineJoinRound()
	dc.MoveTo(pts[0].X, pts[0].Y)
	for _, p := range pts[1:] {
		dc.LineTo(p.X, p.Y)
	}
	dc.Stroke()
}

// DrawActive renders a local segment onto the active surface.
func (c *Canvas) DrawActive(s board.Stroke, pts []board.Point) {
	c.mu.Lock()
	defer c.mu.Unlock()
	path(c.active, s, pts)
}

// Commit moves the active surface's pixels onto the committed surface and wipes it.
func (c *Canvas) Commit() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.committed.DrawImage(c.active.Image(), 0, 0)
	c.clearActive()
}

func (c *Canvas) clearActive() {
	c.active.SetColor(color.Transparent)
	c.active.Clear()
}

// DrawCommitted renders a remote segment directly onto the committed surface.
func (c *Canvas) DrawCommitted(s board.Stroke, pts []board.Point) {
	c.mu.Lock()
	defer c.mu.Unlock()
	path(c.committed, s, pts)
}

// Repaint rebuilds the committed surface from a full state.
func (c *Canvas) Repaint(state board.RoomState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.committed.SetHexColor(Background)
	c.committed.Clear()
	for _, s := range state.Strokes {
		path(c.committed, s, s.Points)
	}
}

// Image composites the active surface over the committed one.
func (c *Canvas) Image() image.Image {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := gg.NewContext(c.width, c.height)
	out.DrawImage(c.committed.Image(), 0, 0)
	out.DrawImage(c.active.Image(), 0, 0)
	return out.Image()
}

// ActiveImage returns a copy of the active surface.
func (c *Canvas) ActiveImage() image.Image {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := gg.NewContext(c.width, c.height)
	out.DrawImage(c.active.Image(), 0, 0)
	return out.Image()
}

// SavePNG writes the composited canvas to a file.
func (c *Canvas) SavePNG(filename string) error {
	return gg.SavePNG(filename, c.Image())
}
