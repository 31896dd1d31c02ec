package session

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/scrcpygo/mirror/internal/control"
	"github.com/scrcpygo/mirror/internal/demux"
	"github.com/scrcpygo/mirror/internal/errs"
	"github.com/scrcpygo/mirror/internal/handshake"
	"github.com/scrcpygo/mirror/internal/pipeline"
	"github.com/scrcpygo/mirror/internal/proto"
	"github.com/scrcpygo/mirror/internal/transport"
	"github.com/scrcpygo/mirror/internal/wire"
)

// Coordinator binds one session's transport, handshake, demuxers,
// pipelines, and control channel into a single supervised lifecycle.
// It is the one type most callers interact with directly.
type Coordinator struct {
	cfg       Config
	transport transport.Transport
	opener    SocketOpener
	sink      Sink
	log       *slog.Logger

	mu              sync.Mutex
	state           State
	terminatedCause error

	ctx      context.Context
	cancel   context.CancelFunc
	stopOnce sync.Once
	closedCh chan struct{}

	sockets SocketSet
	control *control.Channel

	videoQueue *pipeline.Broadcaster
	audioQueue *pipeline.Broadcaster

	wg          sync.WaitGroup
	workerErr   error
	workerErrMu sync.Mutex
}

// New builds a coordinator in Configured state. Start must be called to
// deploy, handshake, and begin serving frames.
func New(cfg Config, tp transport.Transport, opener SocketOpener, sink Sink, log *slog.Logger) *Coordinator {
	if log == nil {
		log = slog.Default()
	}
	return &Coordinator{
		cfg:       cfg.WithDefaults(),
		transport: tp,
		opener:    opener,
		sink:      sink,
		log:       log,
		closedCh:  make(chan struct{}),
	}
}

// State reports the coordinator's current lifecycle position.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Done returns a channel closed once the session reaches Closed.
func (c *Coordinator) Done() <-chan struct{} { return c.closedCh }

// TerminatedBecause returns the cause recorded when the session closed,
// or nil for a clean caller-requested Stop, or if it has not closed yet.
func (c *Coordinator) TerminatedBecause() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.terminatedCause
}

func (c *Coordinator) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// Start runs the deploy -> handshake -> serve sequence. It
// returns once the session is Running, or with an error if any step
// before that failed. A config that fails Validate is rejected before
// anything starts and leaves the session Configured; after a failure in
// any later step the session is already Closed.
func (c *Coordinator) Start(ctx context.Context) error {
	if err := c.cfg.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	if c.state != StateConfigured {
		c.mu.Unlock()
		return errs.NewSessionClosing("start")
	}
	c.state = StateDeployed
	c.mu.Unlock()

	c.ctx, c.cancel = context.WithCancel(context.Background())

	sockets, err := c.opener.Open(ctx, c.cfg)
	if err != nil {
		c.abortStart(err)
		return err
	}
	c.sockets = sockets

	c.setState(StateHandshaking)

	if c.cfg.VideoEnabled {
		if _, err := handshake.ReadVideo(sockets.Video); err != nil {
			sockets.Close()
			c.abortStart(err)
			return err
		}
	}
	if c.cfg.AudioEnabled {
		var err error
		if c.cfg.VideoEnabled {
			// The dummy byte and device name arrive only on the first
			// socket; behind a video socket, audio opens with its codec id.
			var codec uint32
			if codec, err = wire.ReadU32(sockets.Audio); err == nil &&
				codec != proto.CodecIDAudioDisabled && proto.AudioCodecName(codec) == "" {
				err = errs.NewHandshakeError("read audio codec id", fmt.Errorf("unknown codec id 0x%08x", codec))
			}
		} else {
			_, err = handshake.ReadAudio(sockets.Audio)
		}
		if err != nil {
			sockets.Close()
			c.abortStart(err)
			return err
		}
	}

	c.setState(StateRunning)
	c.runWorkers()
	return nil
}

// abortStart tears down a session that failed before reaching Running:
// there are no workers yet, so shutdown collapses to killing the server
// and recording the cause.
func (c *Coordinator) abortStart(cause error) {
	c.setState(StateClosed)
	c.mu.Lock()
	c.terminatedCause = cause
	c.mu.Unlock()
	if c.transport != nil {
		c.transport.KillServer(context.Background())
	}
	if c.sink != nil {
		c.sink.OnTerminated(cause)
	}
	close(c.closedCh)
}

// runWorkers spawns the per-stream demux/delivery goroutines and the
// control channel, then starts the supervisor that folds the first
// worker failure into an automatic shutdown.
//
// A failing worker must not wait for its siblings to notice: a demux
// worker blocked in conn.Read only unblocks once its socket is closed,
// which is shutdown's job. So the supervisor reacts to gctx's
// cancellation (fired the instant any g.Go func returns an error, not
// once every worker has exited) rather than to g.Wait, which would
// deadlock waiting on a worker that shutdown alone can release.
func (c *Coordinator) runWorkers() {
	g, gctx := errgroup.WithContext(c.ctx)

	spawn := func(fn func() error) {
		c.wg.Add(1)
		g.Go(func() error {
			defer c.wg.Done()
			err := fn()
			if err != nil {
				c.recordWorkerErr(err)
			}
			return err
		})
	}

	if c.cfg.VideoEnabled {
		c.videoQueue = pipeline.NewBroadcaster("video", c.cfg.ChannelCapacity, c.log)
		spawn(func() error { return c.demuxWorker(StreamVideo, c.sockets.Video, c.videoQueue) })
		spawn(func() error { c.deliverWorker(gctx, StreamVideo, c.videoQueue); return nil })
	}
	if c.cfg.AudioEnabled {
		c.audioQueue = pipeline.NewBroadcaster("audio", c.cfg.ChannelCapacity, c.log)
		spawn(func() error { return c.demuxWorker(StreamAudio, c.sockets.Audio, c.audioQueue) })
		spawn(func() error { c.deliverWorker(gctx, StreamAudio, c.audioQueue); return nil })
	}
	if c.cfg.ControlEnabled {
		c.control = control.New(c.sockets.Control, controlSink{c}, c.log)
		c.control.Start(c.ctx)
		spawn(func() error {
			<-c.control.Done()
			if err := c.control.Err(); err != nil && !errs.IsSessionClosed(err) {
				return err
			}
			return nil
		})
	}

	go func() {
		<-gctx.Done()
		c.terminate(c.loadWorkerErr())
	}()
}

func (c *Coordinator) recordWorkerErr(err error) {
	c.workerErrMu.Lock()
	defer c.workerErrMu.Unlock()
	if c.workerErr == nil {
		c.workerErr = err
	}
}

func (c *Coordinator) loadWorkerErr() error {
	c.workerErrMu.Lock()
	defer c.workerErrMu.Unlock()
	return c.workerErr
}

// demuxWorker decodes frames off conn until it errors or reaches clean
// EOF, pushing each into queue. maxPayload defaults inside demux.New. A
// read failure observed after the coordinator's own context has been
// cancelled is the expected result of shutdown closing conn out from
// under a blocked Read, not a protocol failure, so it is reported as a
// clean stream end exactly like a remote io.EOF.
func (c *Coordinator) demuxWorker(stream MediaStream, conn io.Reader, queue *pipeline.Broadcaster) error {
	d := demux.New(conn, c.cfg.MaxPayloadBytes, c.log)
	for {
		frame, err := d.Next()
		if err != nil {
			queue.Close()
			if err == io.EOF || c.ctx.Err() != nil {
				if c.sink != nil {
					c.sink.OnStreamEnd(stream)
				}
				return nil
			}
			return err
		}
		queue.Push(frame)
	}
}

// deliverWorker drains queue and forwards each frame to the sink until
// the queue closes (stream ended or session is shutting down).
func (c *Coordinator) deliverWorker(ctx context.Context, stream MediaStream, queue *pipeline.Broadcaster) {
	for {
		frame, ok := queue.Pop(ctx.Done())
		if !ok {
			return
		}
		if c.sink != nil {
			c.sink.OnFrame(stream, frame)
		}
	}
}

// controlSink adapts Coordinator to control.EventSink without exposing
// the method on Coordinator's own public surface.
type controlSink struct{ c *Coordinator }

func (s controlSink) OnDeviceEvent(msg proto.DeviceMessage) {
	if s.c.sink != nil {
		s.c.sink.OnDeviceEvent(msg)
	}
}

// Send forwards a control message, failing immediately once the session
// is not Running.
func (c *Coordinator) Send(ctx context.Context, msg ControlMessage) error {
	if err := c.requireRunning(); err != nil {
		return err
	}
	return c.control.Send(ctx, msg)
}

// SendClipboard issues SET_CLIPBOARD and waits for the matching
// ACK_CLIPBOARD.
func (c *Coordinator) SendClipboard(ctx context.Context, sequence uint64, text string, paste bool) error {
	if err := c.requireRunning(); err != nil {
		return err
	}
	return c.control.SendClipboard(ctx, sequence, text, paste)
}

// GetClipboard issues GET_CLIPBOARD and waits for the next CLIPBOARD
// reply, FIFO against any other outstanding get.
func (c *Coordinator) GetClipboard(ctx context.Context, copyKey uint8) (string, error) {
	if err := c.requireRunning(); err != nil {
		return "", err
	}
	return c.control.GetClipboard(ctx, copyKey)
}

func (c *Coordinator) requireRunning() error {
	switch c.State() {
	case StateRunning:
		if c.control == nil {
			return errs.NewSessionClosing("control is disabled for this session")
		}
		return nil
	case StateStopping:
		return errs.NewSessionClosing("session is stopping")
	case StateClosed:
		return errs.NewSessionClosed("session is closed")
	default:
		return errs.NewSessionClosing("session is not yet running")
	}
}

// Stop begins the graceful shutdown sequence and blocks until the
// session reaches Closed or ctx is done. A caller-requested Stop records
// a nil cause unless a worker had already failed first.
func (c *Coordinator) Stop(ctx context.Context) error {
	c.terminate(nil)
	select {
	case <-c.closedCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// terminate runs the shutdown sequence exactly once; the first caller's
// cause wins, whether that is an explicit Stop (nil) or a worker failure
// racing in from the supervisor goroutine.
func (c *Coordinator) terminate(cause error) {
	c.stopOnce.Do(func() { c.shutdown(cause) })
}

// shutdown runs the teardown sequence: mark Stopping so outbound
// control calls fail fast, cancel the control channel so its waiters
// complete with SessionClosed, close the media sockets to unblock the
// demux workers, wait up to ShutdownGrace for every worker to exit, kill
// the server process, then mark Closed and notify the sink exactly once.
func (c *Coordinator) shutdown(cause error) {
	c.setState(StateStopping)
	c.mu.Lock()
	c.terminatedCause = cause
	c.mu.Unlock()

	if c.cancel != nil {
		c.cancel()
	}
	c.sockets.Close()
	if c.videoQueue != nil {
		c.videoQueue.Close()
	}
	if c.audioQueue != nil {
		c.audioQueue.Close()
	}

	drained := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(drained)
	}()

	select {
	case <-drained:
	case <-time.After(c.cfg.ShutdownGrace):
		c.log.Warn("session shutdown exceeded grace period; forcing close", "grace", c.cfg.ShutdownGrace)
	}

	if c.transport != nil {
		c.transport.KillServer(context.Background())
	}

	c.setState(StateClosed)
	if c.sink != nil {
		c.sink.OnTerminated(cause)
	}
	close(c.closedCh)
}
