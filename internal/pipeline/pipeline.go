// Package pipeline fans decoded frames out to a session's sink over a
// bounded channel with a CONFIG/keyframe-aware backpressure policy: a
// full queue evicts its oldest plain frame to make room; CONFIG and
// keyframe frames are never dropped. When nothing can be evicted, a
// plain incoming frame is dropped and a CONFIG or keyframe push blocks.
package pipeline

import (
	"log/slog"
	"sync"

	"github.com/scrcpygo/mirror/internal/demux"
)

// FrameSink receives decoded frames for one media stream, in order.
type FrameSink interface {
	OnFrame(stream string, frame demux.CodecFrame)
}

// Broadcaster delivers frames from a single producer (one demuxer) to a
// single bounded-capacity consumer channel. A session has exactly one
// sink per stream, so there is no subscriber registry, only one queue
// with a drop policy.
type Broadcaster struct {
	stream string
	log    *slog.Logger

	mu        sync.Mutex
	spaceCond *sync.Cond
	buf       []demux.CodecFrame
	cap       int
	closed    bool
	notify    chan struct{}
}

// NewBroadcaster creates a bounded queue of the given capacity for one
// named stream ("video", "audio").
func NewBroadcaster(stream string, capacity int, log *slog.Logger) *Broadcaster {
	if capacity <= 0 {
		capacity = 1
	}
	if log == nil {
		log = slog.Default()
	}
	b := &Broadcaster{
		stream: stream,
		log:    log,
		cap:    capacity,
		notify: make(chan struct{}, 1),
	}
	b.spaceCond = sync.NewCond(&b.mu)
	return b
}

// Push enqueues frame, applying the full-channel policy: when the queue
// is full, the oldest non-CONFIG, non-keyframe frame already queued is
// evicted to make room, regardless of the incoming frame's own kind. If
// every queued frame is itself CONFIG/keyframe, there is nothing safe to
// evict: a plain incoming frame is dropped instead, but a CONFIG or
// keyframe frame blocks the caller until Pop or Close frees a slot,
// since neither may ever be dropped.
func (b *Broadcaster) Push(frame demux.CodecFrame) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for !b.closed && len(b.buf) >= b.cap {
		idx := b.oldestDroppable()
		if idx >= 0 {
			b.buf = append(b.buf[:idx], b.buf[idx+1:]...)
			break
		}
		if !frame.IsConfig && !frame.IsKey {
			b.log.Warn("dropping frame: queue full of config/keyframe frames", "stream", b.stream)
			return
		}
		b.spaceCond.Wait()
	}

	if b.closed {
		return
	}

	b.buf = append(b.buf, frame)
	b.signal()
}

func (b *Broadcaster) oldestDroppable() int {
	for i, f := range b.buf {
		if !f.IsConfig && !f.IsKey {
			return i
		}
	}
	return -1
}

func (b *Broadcaster) signal() {
	select {
	case b.notify <- struct{}{}:
	default:
	}
}

// Pop removes and returns the oldest queued frame, blocking on done or
// new data via the returned ok flag. Callers should loop: for { frame,
// ok := b.Pop(done); if !ok { return } }.
func (b *Broadcaster) Pop(done <-chan struct{}) (demux.CodecFrame, bool) {
	for {
		b.mu.Lock()
		if len(b.buf) > 0 {
			frame := b.buf[0]
			b.buf = b.buf[1:]
			b.spaceCond.Broadcast()
			b.mu.Unlock()
			return frame, true
		}
		closed := b.closed
		b.mu.Unlock()
		if closed {
			return demux.CodecFrame{}, false
		}

		select {
		case <-b.notify:
		case <-done:
			return demux.CodecFrame{}, false
		}
	}
}

// Close marks the queue closed; further Push calls are no-ops and Pop
// drains remaining frames before returning ok=false.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	b.signal()
	b.spaceCond.Broadcast()
}

// Len reports the current queue depth, for tests and metrics.
func (b *Broadcaster) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.buf)
}
