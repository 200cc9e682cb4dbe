package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"time"

	"github.com/vovakirdan/boardsync/internal/client"
)

func main() {
	if err := run(); err != nil {
		log.Printf("board_smoke: %v", err)
		os.Exit(1)
	}
}

func run() error {
	base := flag.String("base", "http://localhost:8080", "server base URL")
	token := flag.String("token", "", "bearer token, empty for anonymous")
	room := flag.String("room", "smoke", "whiteboard room id")
	points := flag.Int("points", 60, "points in the test stroke")
	out := flag.String("png", "", "write the synced canvas to this PNG file")
	timeout := flag.Duration("timeout", 10*time.Second, "total timeout for the run")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	sess := client.NewSession(client.SessionOptions{
		BaseURL: *base,
		Token:   *token,
		RoomID:  *room,
	})

	runCtx, stop := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- sess.Run(runCtx) }()

	// Draw a sine wave across the canvas.
	id := sess.Recorder.Down(40, 360)
	for i := 1; i < *points; i++ {
		x := 40 + float64(i)*1200/float64(*points)
		y := 360 + 200*math.Sin(float64(i)/8)
		sess.Recorder.Move(x, y)
		time.Sleep(5 * time.Millisecond)
	}
	sess.Recorder.Up()
	log.Printf("drew stroke %s with %d points", id, *points)

	for sess.Outbox.Pending() > 0 {
		select {
		case <-ctx.Done():
			stop()
			return fmt.Errorf("outbox not drained: %w", ctx.Err())
		case <-time.After(20 * time.Millisecond):
		}
	}

	resp, err := sess.API.FetchState(ctx, *room)
	if err != nil {
		stop()
		return fmt.Errorf("fetch state: %w", err)
	}
	var got int
	for _, s := range resp.State.Strokes {
		if s.ID == id {
			got = len(s.Points)
		}
	}
	if got == 0 {
		stop()
		return fmt.Errorf("stroke %s missing from state (source %s)", id, resp.Source)
	}
	sent, failed, merged := sess.Outbox.Stats()
	log.Printf("state source=%s strokes=%d points=%d sent=%d failed=%d merged=%d",
		resp.Source, len(resp.State.Strokes), got, sent, failed, merged)

	if *out != "" {
		if err := sess.Canvas.SavePNG(*out); err != nil {
			stop()
			return fmt.Errorf("save png: %w", err)
		}
		log.Printf("wrote %s", *out)
	}

	stop()
	if err := <-done; err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("session: %w", err)
	}
	return nil
}
