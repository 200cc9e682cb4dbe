package livekit

import (
	"context"
	"errors"
	"time"

	"github.com/livekit/protocol/auth"

	"github.com/vovakirdan/boardsync/internal/rtc"
)

// RoomPrefix is prepended to board room ids to form media room names.
const RoomPrefix = "board-"

// Engine implements rtc.Engine using LiveKit access tokens.
// LiveKit creates rooms on demand when the first participant joins.
type Engine struct {
	apiKey    string
	apiSecret string
	wsURL     string
	validFor  time.Duration
}

// New creates a LiveKit engine.
func New(apiKey, apiSecret, wsURL string) *Engine {
	return &Engine{
		apiKey:    apiKey,
		apiSecret: apiSecret,
		wsURL:     wsURL,
		validFor:  time.Hour,
	}
}

// RoomName maps a normalized board room id to its media room.
func RoomName(roomID string) string {
	return RoomPrefix + roomID
}

// JoinInfo signs a token that lets identity join and exchange data in the board's media room.
func (e *Engine) JoinInfo(_ context.Context, roomID, identity, name string) (*rtc.JoinInfo, error) {
	if roomID == "" || identity == "" {
		return nil, errors.New("livekit: room and identity are required")
	}
	room := RoomName(roomID)

	allow := true
	grant := &auth.VideoGrant{
		RoomJoin:       true,
		Room:           room,
		CanSubscribe:   &allow,
		CanPublishData: &allow,
	}

	at := auth.NewAccessToken(e.apiKey, e.apiSecret)
	at.SetVideoGrant(grant).
		SetIdentity(identity).
		SetName(name).
		SetValidFor(e.validFor)

	token, err := at.ToJWT()
	if err != nil {
		return nil, err
	}

	return &rtc.JoinInfo{
		URL:      e.wsURL,
		Token:    token,
		RoomName: room,
		Identity: identity,
	}, nil
}

var _ rtc.Engine = (*Engine)(nil)
