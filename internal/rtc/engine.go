package rtc

import "context"

// JoinInfo contains what a client needs to join the media room paired with a board.
type JoinInfo struct {
	URL      string `json:"url"`
	Token    string `json:"token"`
	RoomName string `json:"room_name"`
	Identity string `json:"identity"`
}

// Engine abstracts the realtime media backend that runs alongside a board.
type Engine interface {
	// JoinInfo creates join credentials for a participant of the board room.
	JoinInfo(ctx context.Context, roomID, identity, name string) (*JoinInfo, error)
}
