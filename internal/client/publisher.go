package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/vovakirdan/boardsync/internal/board"
	"github.com/vovakirdan/boardsync/internal/proto"
)

// API calls the board's request/response endpoints.
type API struct {
	base   string
	token  string
	client *http.Client
}

// NewAPI builds a client for a server base URL such as http://localhost:8080.
func NewAPI(baseURL, token string) *API {
	return &API{
		base:   strings.TrimRight(baseURL, "/"),
		token:  token,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// RequestError is a non-2xx answer from the server.
type RequestError struct {
	Status  int
	Code    string
	Message string
}

func (e *RequestError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("event not sent: %s (%d %s)", e.Message, e.Status, e.Code)
	}
	return fmt.Sprintf("event not sent: %s (%d)", e.Message, e.Status)
}

type errorReply struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func (a *API) do(ctx context.Context, method, path string, body, out any) error {
	var payload *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		payload = bytes.NewReader(data)
	}

	var req *http.Request
	var err error
	if payload != nil {
		req, err = http.NewRequestWithContext(ctx, method, a.base+path, payload)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, a.base+path, nil)
	}
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var reply errorReply
		_ = json.NewDecoder(resp.Body).Decode(&reply)
		if reply.Error == "" {
			reply.Error = http.StatusText(resp.StatusCode)
		}
		return &RequestError{Status: resp.StatusCode, Code: reply.Code, Message: reply.Error}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Publish sends one event.
func (a *API) Publish(ctx context.Context, roomID string, ev board.Event) (proto.PublishResponse, error) {
	raw, err := proto.EncodeEvent(ev)
	if err != nil {
		return proto.PublishResponse{}, err
	}
	var resp proto.PublishResponse
	err = a.do(ctx, http.MethodPost, "/api/whiteboard/events", proto.PublishRequest{RoomID: roomID, Event: raw}, &resp)
	return resp, err
}

// FetchState reads the full room state.
func (a *API) FetchState(ctx context.Context, roomID string) (proto.StateResponse, error) {
	var resp proto.StateResponse
	err := a.do(ctx, http.MethodGet, "/api/whiteboard/state?roomId="+url.QueryEscape(roomID), nil, &resp)
	return resp, err
}

// SetPage moves the room's PDF to page.
func (a *API) SetPage(ctx context.Context, roomID string, page int) (board.PdfManifest, error) {
	var resp proto.PageResponse
	if err := a.do(ctx, http.MethodPost, "/api/whiteboard/page", proto.PageRequest{RoomID: roomID, Page: page}, &resp); err != nil {
		return board.PdfManifest{}, err
	}
	if resp.Pdf == nil {
		return board.PdfManifest{}, fmt.Errorf("page response without manifest")
	}
	return *resp.Pdf, nil
}

// StreamURL is the WebSocket subscription URL for a room.
func (a *API) StreamURL(roomID string) string {
	u := a.base
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	q := url.Values{}
	q.Set("roomId", roomID)
	if a.token != "" {
		q.Set("token", a.token)
	}
	return u + "/ws?" + q.Encode()
}
