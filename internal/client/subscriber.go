package client

import (
	"context"
	"errors"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/boardsync/internal/proto"
)

// SubscriberOptions configures a Subscriber.
type SubscriberOptions struct {
	RoomID string
	// PollInterval is used when the server does not announce one.
	PollInterval time.Duration
	// RetryStream is how long to poll before trying the stream again.
	RetryStream time.Duration
	Clock       clock.Clock
	Logger      *zerolog.Logger
}

// Subscriber keeps a Replica in sync over a WebSocket stream, polling the
// fetch-state endpoint when the stream is unavailable or the server asks for it.
type Subscriber struct {
	api     *API
	replica *Replica
	opts    SubscriberOptions
}

// NewSubscriber builds a subscriber.
func NewSubscriber(api *API, replica *Replica, opts SubscriberOptions) *Subscriber {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 2 * time.Second
	}
	if opts.RetryStream <= 0 {
		opts.RetryStream = 30 * time.Second
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Logger == nil {
		nop := zerolog.Nop()
		opts.Logger = &nop
	}
	return &Subscriber{api: api, replica: replica, opts: opts}
}

var errPollingMode = errors.New("server requested polling mode")

// Run alternates between streaming and polling until ctx is done.
func (s *Subscriber) Run(ctx context.Context) error {
	log := s.opts.Logger.With().Str("room", s.opts.RoomID).Logger()
	for {
		err := s.stream(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		interval := s.opts.PollInterval
		if errors.Is(err, errPollingMode) {
			if _, announced := s.replica.Mode(); announced > 0 {
				interval = announced
			}
			log.Info().Dur("interval", interval).Msg("polling room state")
		} else {
			log.Warn().Err(err).Msg("stream unavailable, polling room state")
		}

		if err := s.poll(ctx, interval); err != nil {
			return err
		}
	}
}

func (s *Subscriber) stream(ctx context.Context) error {
	conn, _, err := websocket.Dial(ctx, s.api.StreamURL(s.opts.RoomID), nil)
	if err != nil {
		return err
	}
	defer conn.CloseNow()
	conn.SetReadLimit(4 << 20)

	for {
		var msg proto.StreamMessage
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			return err
		}
		if err := s.replica.Handle(msg); err != nil {
			s.opts.Logger.Warn().Err(err).Str("room", s.opts.RoomID).Str("type", msg.Type).Msg("stream message rejected")
			continue
		}
		if msg.Type == proto.MessageConnected && msg.Mode == proto.ModePolling {
			conn.Close(websocket.StatusNormalClosure, "polling")
			return errPollingMode
		}
	}
}

// poll refreshes the replica every interval until RetryStream elapses.
func (s *Subscriber) poll(ctx context.Context, interval time.Duration) error {
	_ = s.PollOnce(ctx)

	ticker := s.opts.Clock.Ticker(interval)
	defer ticker.Stop()
	retry := s.opts.Clock.Timer(s.opts.RetryStream)
	defer retry.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-retry.C:
			return nil
		case <-ticker.C:
			_ = s.PollOnce(ctx)
		}
	}
}

// PollOnce replaces the replica with the server's full state.
func (s *Subscriber) PollOnce(ctx context.Context) error {
	resp, err := s.api.FetchState(ctx, s.opts.RoomID)
	if err != nil {
		if ctx.Err() == nil {
			s.opts.Logger.Warn().Err(err).Str("room", s.opts.RoomID).Msg("fetch state failed")
		}
		return err
	}
	s.replica.Reset(resp.State)
	return nil
}
