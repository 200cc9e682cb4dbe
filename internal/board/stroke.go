package board

import (
	"encoding/json"
	"fmt"
	"time"
)

// StrokeMode says whether a stroke paints or erases.
type StrokeMode string

const (
	ModeDraw  StrokeMode = "draw"
	ModeErase StrokeMode = "erase"
)

// Defaults applied to strokes that arrive without style attributes.
const (
	DefaultColor       = "#000000"
	DefaultStrokeWidth = 2.0
)

// Point is a single canvas coordinate. On the wire it is an [x, y] pair.
type Point struct {
	X float64
	Y float64
}

// MarshalJSON encodes the point as a two element array.
func (p Point) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]float64{p.X, p.Y})
}

// UnmarshalJSON accepts either [x, y] or {"x": .., "y": ..}.
func (p *Point) UnmarshalJSON(data []byte) error {
	var pair []float64
	if err := json.Unmarshal(data, &pair); err == nil {
		if len(pair) != 2 {
			return fmt.Errorf("point must have 2 coordinates, got %d", len(pair))
		}
		p.X, p.Y = pair[0], pair[1]
		return nil
	}
	var obj struct {
		X *float64 `json:"x"`
		Y *float64 `json:"y"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("decode point: %w", err)
	}
	if obj.X == nil || obj.Y == nil {
		return fmt.Errorf("point requires x and y")
	}
	p.X, p.Y = *obj.X, *obj.Y
	return nil
}

// Stroke is one continuous pen movement on the board.
type Stroke struct {
	ID          string     `json:"id"`
	Points      []Point    `json:"points"`
	Color       string     `json:"color"`
	StrokeWidth float64    `json:"strokeWidth"`
	Mode        StrokeMode `json:"mode"`
}

// Clone returns a deep copy of the stroke.
func (s Stroke) Clone() Stroke {
	s.Points = clonePoints(s.Points)
	return s
}

func clonePoints(points []Point) []Point {
	out := make([]Point, len(points))
	copy(out, points)
	return out
}

// SizeClass says whether a PDF manifest is held verbatim.
type SizeClass string

const (
	SizeInline         SizeClass = "inline"
	SizeLargeReference SizeClass = "large-reference"
)

// PdfManifest describes the document shown under the strokes.
type PdfManifest struct {
	SourceReference string    `json:"sourceReference"`
	CurrentPage     int       `json:"currentPage"`
	SizeClass       SizeClass `json:"sizeClass"`
}

// RoomState is the full snapshot of a room: the unit of transfer and persistence.
type RoomState struct {
	Strokes   []Stroke     `json:"strokes"`
	Pdf       *PdfManifest `json:"pdf"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

// NewRoomState returns an empty room.
func NewRoomState() RoomState {
	return RoomState{Strokes: []Stroke{}}
}

// Clone returns a deep copy of the state.
func (s RoomState) Clone() RoomState {
	out := RoomState{
		Strokes:   make([]Stroke, len(s.Strokes)),
		UpdatedAt: s.UpdatedAt,
	}
	for i, st := range s.Strokes {
		out.Strokes[i] = st.Clone()
	}
	if s.Pdf != nil {
		pdf := *s.Pdf
		out.Pdf = &pdf
	}
	return out
}

// StrokeIDs lists stroke ids in drawing order.
func (s RoomState) StrokeIDs() []string {
	ids := make([]string, 0, len(s.Strokes))
	for _, st := range s.Strokes {
		ids = append(ids, st.ID)
	}
	return ids
}

// Stroke looks up a stroke by id.
func (s RoomState) Stroke(id string) (Stroke, bool) {
	if i := s.indexOf(id); i >= 0 {
		return s.Strokes[i], true
	}
	return Stroke{}, false
}

func (s RoomState) indexOf(id string) int {
	for i := range s.Strokes {
		if s.Strokes[i].ID == id {
			return i
		}
	}
	return -1
}
