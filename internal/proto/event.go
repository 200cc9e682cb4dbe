package proto

import (
	"encoding/json"
	"fmt"

	"github.com/vovakirdan/boardsync/internal/board"
)

// EventData is the JSON shape of a board event. Type selects the variant.
type EventData struct {
	Type     string             `json:"type"`
	Stroke   *board.Stroke      `json:"stroke,omitempty"`
	StrokeID string             `json:"strokeId,omitempty"`
	Points   []board.Point      `json:"points,omitempty"`
	Append   bool               `json:"append,omitempty"`
	Final    bool               `json:"final,omitempty"`
	Manifest *board.PdfManifest `json:"manifest,omitempty"`
	Page     int                `json:"page,omitempty"`
}

// DecodeEvent parses and validates a raw event payload.
func DecodeEvent(raw json.RawMessage) (board.Event, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: event is required", board.ErrInvalidEvent)
	}
	var data EventData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("%w: %v", board.ErrInvalidEvent, err)
	}
	return data.ToEvent()
}

// ToEvent converts the wire shape into a validated domain event.
func (d EventData) ToEvent() (board.Event, error) {
	var ev board.Event
	switch board.EventKind(d.Type) {
	case board.KindStrokeStart:
		if d.Stroke == nil {
			return nil, fmt.Errorf("%w: stroke is required", board.ErrInvalidEvent)
		}
		st := d.Stroke.Clone()
		if st.Color == "" {
			st.Color = board.DefaultColor
		}
		if st.StrokeWidth == 0 {
			st.StrokeWidth = board.DefaultStrokeWidth
		}
		if st.Mode == "" {
			st.Mode = board.ModeDraw
		}
		ev = board.StrokeStart{Stroke: st}
	case board.KindStrokeUpdate:
		ev = board.StrokeUpdate{StrokeID: d.StrokeID, Points: d.Points, Append: d.Append, Final: d.Final}
	case board.KindUndo:
		ev = board.Undo{StrokeID: d.StrokeID}
	case board.KindClear:
		ev = board.Clear{}
	case board.KindClearAll:
		ev = board.ClearAll{}
	case board.KindPdfSet:
		if d.Manifest == nil {
			return nil, fmt.Errorf("%w: manifest is required", board.ErrInvalidEvent)
		}
		ev = board.PdfSet{Manifest: *d.Manifest}
	case board.KindSetPage:
		ev = board.SetPage{Page: d.Page}
	case "":
		return nil, fmt.Errorf("%w: type is required", board.ErrInvalidEvent)
	default:
		return nil, fmt.Errorf("%w: unknown type %q", board.ErrInvalidEvent, d.Type)
	}
	if err := ev.Validate(); err != nil {
		return nil, err
	}
	return ev, nil
}

// EventDataFrom converts a domain event into its wire shape.
func EventDataFrom(e board.Event) EventData {
	d := EventData{Type: string(e.Kind())}
	switch ev := e.(type) {
	case board.StrokeStart:
		st := ev.Stroke.Clone()
		d.Stroke = &st
	case board.StrokeUpdate:
		d.StrokeID = ev.StrokeID
		d.Points = ev.Points
		d.Append = ev.Append
		d.Final = ev.Final
	case board.Undo:
		d.StrokeID = ev.StrokeID
	case board.PdfSet:
		m := ev.Manifest
		d.Manifest = &m
	case board.SetPage:
		d.Page = ev.Page
	}
	return d
}

// EncodeEvent marshals a domain event for transmission.
func EncodeEvent(e board.Event) (json.RawMessage, error) {
	return json.Marshal(EventDataFrom(e))
}
