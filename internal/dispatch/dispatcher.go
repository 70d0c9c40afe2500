package dispatch

import (
	"context"
	"sync"
	"sync/atomic"
)

// Config controls buffering behavior.
type Config struct {
	Enabled    bool
	BufferSize int
	// DropIfFull drops instead of blocking the caller when the buffer is full.
	DropIfFull bool
}

// Handler consumes one item on the worker goroutine.
type Handler[T any] func(ctx context.Context, item T)

// Dispatcher forwards items to a handler on a single background goroutine.
// Close drains whatever is already buffered before returning.
type Dispatcher[T any] struct {
	cfg       Config
	handle    Handler[T]
	ch        chan T
	done      chan struct{}
	wg        sync.WaitGroup
	sending   sync.RWMutex
	dropped   atomic.Uint64
	closed    atomic.Bool
	closeOnce sync.Once
}

// New starts a dispatcher. A disabled config or nil handler returns nil; every
// method is nil-safe.
func New[T any](cfg Config, handle Handler[T]) *Dispatcher[T] {
	if !cfg.Enabled || handle == nil {
		return nil
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}

	d := &Dispatcher[T]{
		cfg:    cfg,
		handle: handle,
		ch:     make(chan T, cfg.BufferSize),
		done:   make(chan struct{}),
	}

	d.wg.Add(1)
	go d.run()

	return d
}

func (d *Dispatcher[T]) run() {
	defer d.wg.Done()

	for {
		select {
		case item := <-d.ch:
			d.handle(context.Background(), item)
		case <-d.done:
			d.drain()
			return
		}
	}
}

func (d *Dispatcher[T]) drain() {
	for {
		select {
		case item := <-d.ch:
			d.handle(context.Background(), item)
		default:
			return
		}
	}
}

// Emit enqueues item. It reports false when the item was dropped or the
// dispatcher is closed.
func (d *Dispatcher[T]) Emit(ctx context.Context, item T) bool {
	if d == nil {
		return false
	}
	d.sending.RLock()
	defer d.sending.RUnlock()
	if d.closed.Load() {
		return false
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if d.cfg.DropIfFull {
		select {
		case d.ch <- item:
			return true
		case <-d.done:
			return false
		default:
			d.dropped.Add(1)
			return false
		}
	}

	select {
	case d.ch <- item:
		return true
	case <-ctx.Done():
		d.dropped.Add(1)
		return false
	case <-d.done:
		return false
	}
}

// Close stops accepting items and waits for the buffer to drain. Every item
// Emit accepted is handled before Close returns.
func (d *Dispatcher[T]) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		close(d.done)
		// Wait out in-flight Emits; one may land after the worker's drain.
		d.sending.Lock()
		d.sending.Unlock()
		d.wg.Wait()
		d.drain()
	})
}

// Dropped returns how many items were discarded because of backpressure.
func (d *Dispatcher[T]) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
