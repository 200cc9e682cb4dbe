package core

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/boardsync/internal/board"
	"github.com/vovakirdan/boardsync/internal/store"
)

// PersistStats counts background save outcomes.
type PersistStats struct {
	Saved     int64
	Failed    int64
	Coalesced int64
}

// PersistFailure is reported on the persister's error channel.
type PersistFailure struct {
	RoomID string
	Err    error
}

// persistShard owns a subset of rooms so saves for one room stay ordered.
// Pending saves for the same room collapse into the latest snapshot.
type persistShard struct {
	mu       sync.Mutex
	pending  map[string]board.RoomState
	order    []string
	busy     bool
	inflight string
	notify   chan struct{}
}

// Persister mirrors room snapshots to the durable store in the background.
// Enqueue never blocks and failures are logged, never returned to publishers.
type Persister struct {
	store   store.SnapshotStore
	timeout time.Duration
	log     *zerolog.Logger
	shards  []*persistShard
	errs    chan PersistFailure

	stop      chan struct{}
	closed    chan struct{}
	stopOnce  sync.Once
	startOnce sync.Once
	workers   sync.WaitGroup
	logger    sync.WaitGroup

	saved     atomic.Int64
	failed    atomic.Int64
	coalesced atomic.Int64
}

// NewPersister constructs a persister with the given number of shards.
func NewPersister(st store.SnapshotStore, shards int, timeout time.Duration, logger *zerolog.Logger) *Persister {
	if shards <= 0 {
		shards = 1
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	p := &Persister{
		store:   st,
		timeout: timeout,
		log:     logger,
		shards:  make([]*persistShard, shards),
		errs:    make(chan PersistFailure, 64),
		stop:    make(chan struct{}),
		closed:  make(chan struct{}),
	}
	for i := range p.shards {
		p.shards[i] = &persistShard{
			pending: make(map[string]board.RoomState),
			notify:  make(chan struct{}, 1),
		}
	}
	return p
}

// Start launches shard workers and the failure logger.
func (p *Persister) Start() {
	p.startOnce.Do(func() {
		p.logger.Add(1)
		go p.logFailures()

		for _, sh := range p.shards {
			p.workers.Add(1)
			go p.run(sh)
		}
	})
}

func (p *Persister) shardFor(roomID string) *persistShard {
	return p.shards[xxhash.Sum64String(roomID)%uint64(len(p.shards))]
}

// Enqueue schedules a save of the room snapshot.
func (p *Persister) Enqueue(roomID string, state board.RoomState) {
	sh := p.shardFor(roomID)

	sh.mu.Lock()
	if _, queued := sh.pending[roomID]; queued {
		p.coalesced.Add(1)
	} else {
		sh.order = append(sh.order, roomID)
	}
	sh.pending[roomID] = state
	sh.mu.Unlock()

	select {
	case sh.notify <- struct{}{}:
	default:
	}
}

func (p *Persister) run(sh *persistShard) {
	defer p.workers.Done()
	for {
		select {
		case <-sh.notify:
			p.drain(sh)
		case <-p.stop:
			p.drain(sh)
			return
		}
	}
}

func (p *Persister) drain(sh *persistShard) {
	for {
		sh.mu.Lock()
		if len(sh.order) == 0 {
			sh.busy = false
			sh.inflight = ""
			sh.mu.Unlock()
			return
		}
		roomID := sh.order[0]
		sh.order = sh.order[1:]
		state := sh.pending[roomID]
		delete(sh.pending, roomID)
		sh.busy = true
		sh.inflight = roomID
		sh.mu.Unlock()

		p.save(roomID, state)
	}
}

func (p *Persister) save(roomID string, state board.RoomState) {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	if err := p.store.Save(ctx, roomID, state); err != nil {
		p.failed.Add(1)
		select {
		case p.errs <- PersistFailure{RoomID: roomID, Err: err}:
		default:
			p.log.Warn().Err(err).Str("room", roomID).Msg("persist failed (error channel full)")
		}
		return
	}
	p.saved.Add(1)
}

func (p *Persister) logFailures() {
	defer p.logger.Done()
	for f := range p.errs {
		p.log.Warn().Err(f.Err).Str("room", f.RoomID).Msg("persist snapshot failed")
	}
}

// Flush waits until every queued save has been attempted.
func (p *Persister) Flush(ctx context.Context) error {
	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()
	for {
		if p.idle() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// FlushRoom waits until no save for roomID is queued or running. Saves for one
// room run in order on its shard, so on return the store holds the latest
// snapshot enqueued before the call, or that save has failed.
func (p *Persister) FlushRoom(ctx context.Context, roomID string) error {
	sh := p.shardFor(roomID)
	ticker := time.NewTicker(2 * time.Millisecond)
	defer ticker.Stop()
	for {
		sh.mu.Lock()
		_, queued := sh.pending[roomID]
		running := sh.busy && sh.inflight == roomID
		sh.mu.Unlock()
		if !queued && !running {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (p *Persister) idle() bool {
	for _, sh := range p.shards {
		sh.mu.Lock()
		busy := sh.busy || len(sh.order) > 0
		sh.mu.Unlock()
		if busy {
			return false
		}
	}
	return true
}

// Close drains pending saves and stops the workers, bounded by ctx.
func (p *Persister) Close(ctx context.Context) error {
	p.Start()
	p.stopOnce.Do(func() {
		close(p.stop)
		go func() {
			p.workers.Wait()
			close(p.errs)
			p.logger.Wait()
			close(p.closed)
		}()
	})

	select {
	case <-p.closed:
		return nil
	case <-ctx.Done():
		return errors.Join(errors.New("persister: pending saves abandoned"), ctx.Err())
	}
}

// Stats returns save counters.
func (p *Persister) Stats() PersistStats {
	return PersistStats{
		Saved:     p.saved.Load(),
		Failed:    p.failed.Load(),
		Coalesced: p.coalesced.Load(),
	}
}
