package core

import (
	"context"
	"strconv"
	"testing"

	"github.com/vovakirdan/boardsync/internal/board"
)

func benchmarkPublish(b *testing.B, recipients int) {
	hub := NewHub(nil, nil, Options{})
	ctx := context.Background()

	sinks := make([]*ChanSink, 0, recipients)
	for range recipients {
		s := NewChanSink(1024)
		if _, _, err := hub.Subscribe(ctx, "room-bench", s); err != nil {
			b.Fatalf("subscribe: %v", err)
		}
		sinks = append(sinks, s)
		go func(cs *ChanSink) {
			for range cs.Notifications() {
			}
		}(s)
	}

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		ev := board.StrokeUpdate{
			StrokeID: "s" + strconv.Itoa(i%16),
			Points:   []board.Point{{X: float64(i), Y: float64(i)}},
			Append:   true,
		}
		if _, err := hub.Publish(ctx, "room-bench", ev); err != nil {
			b.Fatalf("publish: %v", err)
		}
	}
}

func BenchmarkPublish1(b *testing.B)   { benchmarkPublish(b, 1) }
func BenchmarkPublish10(b *testing.B)  { benchmarkPublish(b, 10) }
func BenchmarkPublish100(b *testing.B) { benchmarkPublish(b, 100) }
