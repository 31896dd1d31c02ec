package session

import (
	"context"
	"fmt"
	"net"

	"github.com/scrcpygo/mirror/internal/errs"
	"github.com/scrcpygo/mirror/internal/transport"
)

// SocketSet holds the raw connections opened for one session. A field is
// nil when its stream is disabled in Config. Video is always accepted
// before audio, which is always accepted before control: the
// server dials back on the reverse tunnel in that fixed order.
type SocketSet struct {
	Video   net.Conn
	Audio   net.Conn
	Control net.Conn
}

// Close closes every non-nil socket, ignoring errors: it is only ever
// called during teardown, when a close failure has nothing useful left
// to report to.
func (s SocketSet) Close() {
	if s.Video != nil {
		s.Video.Close()
	}
	if s.Audio != nil {
		s.Audio.Close()
	}
	if s.Control != nil {
		s.Control.Close()
	}
}

// SocketOpener deploys and spawns the server and returns the sockets it
// opens back on the reverse tunnel, in wire order. Tests substitute a
// fake opener backed by net.Pipe; production uses TunnelOpener.
type SocketOpener interface {
	Open(ctx context.Context, cfg Config) (SocketSet, error)
}

// TunnelOpener is the production SocketOpener: it pushes the server jar,
// opens an adb reverse tunnel, listens locally, spawns the device-side
// server, and accepts the sockets it dials back in order.
type TunnelOpener struct {
	Transport    transport.Transport
	LocalJarPath string
}

func (o *TunnelOpener) Open(ctx context.Context, cfg Config) (SocketSet, error) {
	scidHex, err := cfg.SCIDHex()
	if err != nil {
		return SocketSet{}, errs.NewTransportError("render scid", err)
	}

	if err := o.Transport.Push(ctx, o.LocalJarPath); err != nil {
		return SocketSet{}, err
	}

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return SocketSet{}, errs.NewTransportError("listen for reverse tunnel", err)
	}
	defer listener.Close()

	port := listener.Addr().(*net.TCPAddr).Port
	if err := o.Transport.OpenTunnel(ctx, scidHex, port); err != nil {
		return SocketSet{}, err
	}
	defer o.Transport.CloseTunnel(context.Background(), scidHex)

	args := transport.ServerArgs{
		ServerVersion:  cfg.ServerVersion,
		SCIDHex:        scidHex,
		LogLevel:       cfg.LogLevel,
		VideoEnabled:   cfg.VideoEnabled,
		AudioEnabled:   cfg.AudioEnabled,
		ControlEnabled: cfg.ControlEnabled,
		VideoCodec:     cfg.VideoCodec,
		AudioCodec:     cfg.AudioCodec,
		MaxSize:        cfg.MaxSize,
		VideoBitRate:   cfg.VideoBitRate,
		MaxFPS:         cfg.MaxFPS,
		TunnelForward:  cfg.TunnelForward,
		Cleanup:        true,
	}
	proc, err := o.Transport.SpawnServer(ctx, args)
	if err != nil {
		return SocketSet{}, err
	}
	_ = proc // lifetime tracked by the coordinator via Transport.KillServer

	var sockets SocketSet
	order := []struct {
		enabled bool
		dst     *net.Conn
		name    string
	}{
		{cfg.VideoEnabled, &sockets.Video, "video"},
		{cfg.AudioEnabled, &sockets.Audio, "audio"},
		{cfg.ControlEnabled, &sockets.Control, "control"},
	}

	for _, sock := range order {
		if !sock.enabled {
			continue
		}
		conn, err := acceptOne(ctx, listener)
		if err != nil {
			sockets.Close()
			return SocketSet{}, errs.NewTransportError(fmt.Sprintf("accept %s socket", sock.name), err)
		}
		*sock.dst = conn
	}
	return sockets, nil
}

func acceptOne(ctx context.Context, listener net.Listener) (net.Conn, error) {
	type result struct {
		conn net.Conn
		err  error
	}
	resc := make(chan result, 1)
	go func() {
		conn, err := listener.Accept()
		resc <- result{conn, err}
	}()

	select {
	case res := <-resc:
		return res.conn, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
