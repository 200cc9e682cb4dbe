package client

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// SessionOptions configures a Session.
type SessionOptions struct {
	BaseURL      string
	Token        string
	RoomID       string
	Width        int
	Height       int
	PollInterval time.Duration
	Clock        clock.Clock
	Logger       *zerolog.Logger
}

// Session wires capture, rendering, sending and syncing for one room.
type Session struct {
	API        *API
	Canvas     *Canvas
	Replica    *Replica
	Outbox     *Outbox
	Recorder   *Recorder
	Subscriber *Subscriber
}

// NewSession builds every client component for one room.
func NewSession(opts SessionOptions) *Session {
	if opts.Width <= 0 {
		opts.Width = 1280
	}
	if opts.Height <= 0 {
		opts.Height = 720
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}

	api := NewAPI(opts.BaseURL, opts.Token)
	canvas := NewCanvas(opts.Width, opts.Height)
	replica := NewReplica(canvas)
	outbox := NewOutbox(opts.RoomID, APIPublisher(api), opts.Logger)
	recorder := NewRecorder(outbox, RecorderOptions{
		Clock:   opts.Clock,
		Canvas:  canvas,
		OnStart: replica.MarkLocal,
	})
	subscriber := NewSubscriber(api, replica, SubscriberOptions{
		RoomID:       opts.RoomID,
		PollInterval: opts.PollInterval,
		Clock:        opts.Clock,
		Logger:       opts.Logger,
	})

	return &Session{
		API:        api,
		Canvas:     canvas,
		Replica:    replica,
		Outbox:     outbox,
		Recorder:   recorder,
		Subscriber: subscriber,
	}
}

// Run drives the outbox, the recorder's throttle and the subscriber until ctx is done.
func (s *Session) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.Outbox.Run(ctx)
		return nil
	})
	g.Go(func() error {
		s.Recorder.Run(ctx)
		return nil
	})
	g.Go(func() error {
		return s.Subscriber.Run(ctx)
	})
	return g.Wait()
}
