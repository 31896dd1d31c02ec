// Package control implements the bidirectional control socket: a
// single-writer outbound queue and an inbound reader that correlates
// SET_CLIPBOARD/GET_CLIPBOARD requests against ACK_CLIPBOARD/CLIPBOARD
// replies.
package control

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/scrcpygo/mirror/internal/errs"
	"github.com/scrcpygo/mirror/internal/proto"
)

// EventSink receives inbound device messages that are not claimed by a
// pending waiter: unsolicited clipboard changes, UHID output reports,
// app list replies, and display power state changes.
type EventSink interface {
	OnDeviceEvent(msg proto.DeviceMessage)
}

// state is the control channel's own small state machine, independent
// of the session coordinator's: Ready while accepting sends,
// SendingFrame is not tracked explicitly since sends are serialized by
// a single writer goroutine; Broken is terminal.
type state int

const (
	stateReady state = iota
	stateBroken
)

type pendingGet struct {
	done chan clipboardResult
}

type clipboardResult struct {
	text string
	err  error
}

type pendingSet struct {
	sequence uint64
	done     chan error
}

// Channel is one control socket's outbound queue plus inbound reader.
type Channel struct {
	conn io.ReadWriteCloser
	sink EventSink
	log  *slog.Logger

	outbox chan proto.ControlMessage

	mu          sync.Mutex
	st          state
	brokenErr   error
	pendingGets []*pendingGet
	pendingSets map[uint64]*pendingSet

	done chan struct{}
}

// New builds a control channel over conn. Start must be called to begin
// the reader/writer goroutines.
func New(conn io.ReadWriteCloser, sink EventSink, log *slog.Logger) *Channel {
	if log == nil {
		log = slog.Default()
	}
	return &Channel{
		conn:        conn,
		sink:        sink,
		log:         log,
		outbox:      make(chan proto.ControlMessage, 64),
		pendingSets: make(map[uint64]*pendingSet),
		done:        make(chan struct{}),
	}
}

// Start launches the writer and reader goroutines. Both exit when ctx
// is done or the channel transitions to Broken.
func (c *Channel) Start(ctx context.Context) {
	go c.writeLoop(ctx)
	go c.readLoop()
	// A loop blocked in conn.Read/Write cannot see ctx; failing the
	// channel closes conn, which releases it.
	go func() {
		select {
		case <-ctx.Done():
			c.fail(errs.NewSessionClosed("control channel"))
		case <-c.done:
		}
	}()
}

// Send enqueues msg for the writer goroutine. It does not block on the
// network; it blocks only if the outbox is full, applying natural
// backpressure to callers injecting input faster than the socket can
// drain.
func (c *Channel) Send(ctx context.Context, msg proto.ControlMessage) error {
	c.mu.Lock()
	if c.st == stateBroken {
		err := c.brokenErr
		c.mu.Unlock()
		return err
	}
	c.mu.Unlock()

	select {
	case c.outbox <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return c.currentError()
	}
}

// SendClipboard issues a SET_CLIPBOARD with the given sequence and
// blocks until the matching ACK_CLIPBOARD arrives, ctx is done, or the
// channel breaks/closes.
func (c *Channel) SendClipboard(ctx context.Context, sequence uint64, text string, paste bool) error {
	waiter := &pendingSet{sequence: sequence, done: make(chan error, 1)}

	c.mu.Lock()
	if c.st == stateBroken {
		err := c.brokenErr
		c.mu.Unlock()
		return err
	}
	c.pendingSets[sequence] = waiter
	c.mu.Unlock()

	msg := proto.ControlMessage{
		Type:              proto.TypeSetClipboard,
		ClipboardSequence: sequence,
		ClipboardText:     text,
		ClipboardPaste:    paste,
	}
	if err := c.Send(ctx, msg); err != nil {
		c.removePendingSet(sequence)
		return err
	}

	select {
	case err := <-waiter.done:
		return err
	case <-ctx.Done():
		c.removePendingSet(sequence)
		return ctx.Err()
	case <-c.done:
		return c.currentError()
	}
}

// GetClipboard issues a GET_CLIPBOARD and blocks for the next CLIPBOARD
// reply, which completes the oldest outstanding get (FIFO).
func (c *Channel) GetClipboard(ctx context.Context, copyKey uint8) (string, error) {
	waiter := &pendingGet{done: make(chan clipboardResult, 1)}

	c.mu.Lock()
	if c.st == stateBroken {
		err := c.brokenErr
		c.mu.Unlock()
		return "", err
	}
	c.pendingGets = append(c.pendingGets, waiter)
	c.mu.Unlock()

	msg := proto.ControlMessage{Type: proto.TypeGetClipboard, ClipboardCopyKey: copyKey}
	if err := c.Send(ctx, msg); err != nil {
		c.removePendingGet(waiter)
		return "", err
	}

	select {
	case res := <-waiter.done:
		return res.text, res.err
	case <-ctx.Done():
		c.removePendingGet(waiter)
		return "", ctx.Err()
	case <-c.done:
		return "", c.currentError()
	}
}

func (c *Channel) currentError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.brokenErr != nil {
		return c.brokenErr
	}
	return errs.NewSessionClosed("control channel")
}

func (c *Channel) removePendingSet(sequence uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.pendingSets, sequence)
}

func (c *Channel) removePendingGet(target *pendingGet) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, g := range c.pendingGets {
		if g == target {
			c.pendingGets = append(c.pendingGets[:i], c.pendingGets[i+1:]...)
			return
		}
	}
}

func (c *Channel) writeLoop(ctx context.Context) {
	for {
		select {
		case msg := <-c.outbox:
			encoded, err := msg.Encode()
			if err != nil {
				c.log.Error("dropping unencodable control message", "type", msg.Type, "error", err)
				continue
			}
			if _, err := c.conn.Write(encoded); err != nil {
				c.fail(errs.NewChannelBroken("write control message", err))
				return
			}
		case <-ctx.Done():
			c.fail(errs.NewSessionClosed("control channel"))
			return
		case <-c.done:
			return
		}
	}
}

func (c *Channel) readLoop() {
	for {
		msg, err := proto.DecodeDeviceMessage(c.conn)
		if err != nil {
			c.fail(errs.NewChannelBroken("read device message", err))
			return
		}
		c.dispatch(msg)
	}
}

func (c *Channel) dispatch(msg proto.DeviceMessage) {
	switch msg.Type {
	case proto.TypeAckClipboard:
		c.mu.Lock()
		waiter, ok := c.pendingSets[msg.AckSequence]
		if ok {
			delete(c.pendingSets, msg.AckSequence)
		}
		c.mu.Unlock()
		if ok {
			waiter.done <- nil
			return
		}
		c.log.Warn("ack_clipboard with no matching pending set", "sequence", msg.AckSequence)

	case proto.TypeClipboard:
		c.mu.Lock()
		var waiter *pendingGet
		if len(c.pendingGets) > 0 {
			waiter = c.pendingGets[0]
			c.pendingGets = c.pendingGets[1:]
		}
		c.mu.Unlock()
		if waiter != nil {
			waiter.done <- clipboardResult{text: msg.ClipboardText}
			return
		}
		if c.sink != nil {
			c.sink.OnDeviceEvent(msg)
		}

	default:
		if c.sink != nil {
			c.sink.OnDeviceEvent(msg)
		}
	}
}

// Done returns a channel closed once the control channel transitions to
// Broken, letting a supervisor fold its failure into a wider fan-in.
func (c *Channel) Done() <-chan struct{} {
	return c.done
}

// Err returns the cause recorded when the channel broke, or nil if it
// has not broken yet.
func (c *Channel) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.brokenErr
}

// fail transitions the channel to Broken, failing every pending waiter
// with the same cause.
func (c *Channel) fail(cause error) {
	c.mu.Lock()
	if c.st == stateBroken {
		c.mu.Unlock()
		return
	}
	c.st = stateBroken
	c.brokenErr = cause
	gets := c.pendingGets
	c.pendingGets = nil
	sets := c.pendingSets
	c.pendingSets = make(map[uint64]*pendingSet)
	c.mu.Unlock()

	for _, g := range gets {
		g.done <- clipboardResult{err: cause}
	}
	for _, s := range sets {
		s.done <- cause
	}
	close(c.done)
	c.conn.Close()
}
