package board

import (
	"errors"
	"fmt"
)

// EventKind is the wire tag of an event.
type EventKind string

const (
	KindStrokeStart  EventKind = "stroke-start"
	KindStrokeUpdate EventKind = "stroke-update"
	KindUndo         EventKind = "undo"
	KindClear        EventKind = "clear"
	KindClearAll     EventKind = "clear_all"
	KindPdfSet       EventKind = "pdf-set"
	KindSetPage      EventKind = "set-page"
)

// KnownKind reports whether k names one of the event variants.
func KnownKind(k EventKind) bool {
	switch k {
	case KindStrokeStart, KindStrokeUpdate, KindUndo, KindClear, KindClearAll, KindPdfSet, KindSetPage:
		return true
	}
	return false
}

// ErrInvalidEvent marks events that are missing required fields.
var ErrInvalidEvent = errors.New("invalid event")

// Event is the only mutation primitive for a room. The set of
// implementations is closed: every variant must define its own fold.
type Event interface {
	Kind() EventKind
	Validate() error
	fold(s *RoomState, r Reducer)
}

// StrokeStart begins a stroke.
type StrokeStart struct {
	Stroke Stroke
}

// StrokeUpdate carries points for an existing stroke. Without Append the
// point list replaces the stored one; with Append it is a contiguous segment.
type StrokeUpdate struct {
	StrokeID string
	Points   []Point
	Append   bool
	Final    bool
}

// Undo removes a stroke.
type Undo struct {
	StrokeID string
}

// Clear empties the stroke list and keeps the PDF.
type Clear struct{}

// ClearAll is the remote-control alias of Clear.
type ClearAll struct{}

// PdfSet replaces the PDF manifest.
type PdfSet struct {
	Manifest PdfManifest
}

// SetPage moves the existing PDF to another page.
type SetPage struct {
	Page int
}

func (StrokeStart) Kind() EventKind  { return KindStrokeStart }
func (StrokeUpdate) Kind() EventKind { return KindStrokeUpdate }
func (Undo) Kind() EventKind         { return KindUndo }
func (Clear) Kind() EventKind        { return KindClear }
func (ClearAll) Kind() EventKind     { return KindClearAll }
func (PdfSet) Kind() EventKind       { return KindPdfSet }
func (SetPage) Kind() EventKind      { return KindSetPage }

func (e StrokeStart) Validate() error {
	if e.Stroke.ID == "" {
		return fmt.Errorf("%w: stroke.id is required", ErrInvalidEvent)
	}
	switch e.Stroke.Mode {
	case "", ModeDraw, ModeErase:
	default:
		return fmt.Errorf("%w: unknown stroke mode %q", ErrInvalidEvent, e.Stroke.Mode)
	}
	if e.Stroke.StrokeWidth < 0 {
		return fmt.Errorf("%w: strokeWidth must not be negative", ErrInvalidEvent)
	}
	return nil
}

func (e StrokeUpdate) Validate() error {
	if e.StrokeID == "" {
		return fmt.Errorf("%w: strokeId is required", ErrInvalidEvent)
	}
	return nil
}

func (e Undo) Validate() error {
	if e.StrokeID == "" {
		return fmt.Errorf("%w: strokeId is required", ErrInvalidEvent)
	}
	return nil
}

func (Clear) Validate() error    { return nil }
func (ClearAll) Validate() error { return nil }

func (e PdfSet) Validate() error {
	if e.Manifest.SourceReference == "" {
		return fmt.Errorf("%w: manifest.sourceReference is required", ErrInvalidEvent)
	}
	if e.Manifest.CurrentPage < 0 {
		return fmt.Errorf("%w: manifest.currentPage must be positive", ErrInvalidEvent)
	}
	return nil
}

func (e SetPage) Validate() error {
	if e.Page < 1 {
		return fmt.Errorf("%w: page must be a positive integer", ErrInvalidEvent)
	}
	return nil
}
