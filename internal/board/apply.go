package board

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// DefaultInlineLimit is the largest PDF source reference kept verbatim.
const DefaultInlineLimit = 256 << 10

// LargeReferencePrefix starts the marker stored in place of oversized sources.
const LargeReferencePrefix = "large-reference:sha256:"

// Reducer folds events into room state.
type Reducer struct {
	// InlineLimit caps the bytes of a PDF source reference held in memory.
	// Zero means DefaultInlineLimit.
	InlineLimit int
}

// Apply folds one event into the state using the default reducer.
func Apply(s RoomState, e Event) RoomState {
	return Reducer{}.Apply(s, e)
}

// Apply returns the state after e. The input state is never modified.
func (r Reducer) Apply(s RoomState, e Event) RoomState {
	next := s.Clone()
	if e != nil {
		e.fold(&next, r)
	}
	return next
}

// Replay folds a sequence of events onto an empty room.
func (r Reducer) Replay(events ...Event) RoomState {
	s := NewRoomState()
	for _, e := range events {
		s = r.Apply(s, e)
	}
	return s
}

func (r Reducer) limit() int {
	if r.InlineLimit <= 0 {
		return DefaultInlineLimit
	}
	return r.InlineLimit
}

// Downgrade bounds the size of a manifest. Oversized sources are replaced
// by a deterministic marker derived from their content.
func (r Reducer) Downgrade(m PdfManifest) PdfManifest {
	if m.CurrentPage < 1 {
		m.CurrentPage = 1
	}
	if strings.HasPrefix(m.SourceReference, LargeReferencePrefix) {
		m.SizeClass = SizeLargeReference
		return m
	}
	if len(m.SourceReference) > r.limit() {
		sum := sha256.Sum256([]byte(m.SourceReference))
		m.SourceReference = fmt.Sprintf("%s%s:%d", LargeReferencePrefix, hex.EncodeToString(sum[:16]), len(m.SourceReference))
		m.SizeClass = SizeLargeReference
		return m
	}
	m.SizeClass = SizeInline
	return m
}

func (e StrokeStart) fold(s *RoomState, _ Reducer) {
	incoming := e.Stroke.Clone()
	if incoming.Mode == "" {
		incoming.Mode = ModeDraw
	}
	i := s.indexOf(incoming.ID)
	if i < 0 {
		s.Strokes = append(s.Strokes, incoming)
		return
	}
	// Merge into the entry that an early update may have synthesized.
	existing := &s.Strokes[i]
	if incoming.Color != "" {
		existing.Color = incoming.Color
	}
	if incoming.StrokeWidth > 0 {
		existing.StrokeWidth = incoming.StrokeWidth
	}
	existing.Mode = incoming.Mode
	if len(existing.Points) == 0 {
		existing.Points = incoming.Points
	}
}

func (e StrokeUpdate) fold(s *RoomState, _ Reducer) {
	i := s.indexOf(e.StrokeID)
	if i < 0 {
		s.Strokes = append(s.Strokes, Stroke{
			ID:          e.StrokeID,
			Points:      clonePoints(e.Points),
			Color:       DefaultColor,
			StrokeWidth: DefaultStrokeWidth,
			Mode:        ModeDraw,
		})
		return
	}
	st := &s.Strokes[i]
	if !e.Append {
		st.Points = clonePoints(e.Points)
		return
	}
	segment := e.Points
	if n := len(st.Points); n > 0 && len(segment) > 0 && segment[0] == st.Points[n-1] {
		segment = segment[1:]
	}
	st.Points = append(st.Points, segment...)
}

func (e Undo) fold(s *RoomState, _ Reducer) {
	if i := s.indexOf(e.StrokeID); i >= 0 {
		s.Strokes = append(s.Strokes[:i], s.Strokes[i+1:]...)
	}
}

func (Clear) fold(s *RoomState, _ Reducer) {
	s.Strokes = []Stroke{}
}

func (ClearAll) fold(s *RoomState, r Reducer) {
	Clear{}.fold(s, r)
}

func (e PdfSet) fold(s *RoomState, r Reducer) {
	m := r.Downgrade(e.Manifest)
	s.Pdf = &m
}

func (e SetPage) fold(s *RoomState, _ Reducer) {
	if s.Pdf == nil || e.Page < 1 {
		return
	}
	s.Pdf.CurrentPage = e.Page
}
