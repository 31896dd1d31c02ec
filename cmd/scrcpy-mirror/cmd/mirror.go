package cmd

import (
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dchest/uniuri"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	scrcpyconfig "github.com/scrcpygo/mirror/config"
	"github.com/scrcpygo/mirror/internal/logging"
	"github.com/scrcpygo/mirror/internal/proto"
	"github.com/scrcpygo/mirror/internal/session"
	"github.com/scrcpygo/mirror/internal/transport"
)

type mirrorOptions struct {
	serial      string
	jarPath     string
	scid        uint32
	videoCodec  string
	audioCodec  string
	noVideo     bool
	noAudio     bool
	noControl   bool
	maxSize     int
	bitRate     int
	maxFPS      int
}

func newMirrorCommand() *cobra.Command {
	opts := &mirrorOptions{}

	cmd := &cobra.Command{
		Use:   "mirror",
		Short: "Start a mirroring session against a device",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMirror(context.Background(), opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.serial, "serial", "s", "", "adb device serial (required)")
	flags.StringVar(&opts.jarPath, "jar", os.Getenv("SCRCPY_MIRROR_SERVER_JAR"), "local path to the scrcpy-server jar to push")
	flags.Uint32Var(&opts.scid, "scid", 0, "session id, random if 0")
	flags.StringVar(&opts.videoCodec, "video-codec", "", "override the configured video codec")
	flags.StringVar(&opts.audioCodec, "audio-codec", "", "override the configured audio codec")
	flags.BoolVar(&opts.noVideo, "no-video", false, "disable the video stream")
	flags.BoolVar(&opts.noAudio, "no-audio", false, "disable the audio stream")
	flags.BoolVar(&opts.noControl, "no-control", false, "disable the control channel")
	flags.IntVar(&opts.maxSize, "max-size", 0, "cap the longer mirrored dimension, 0 for device native")
	flags.IntVar(&opts.bitRate, "bit-rate", 0, "override the configured video bit rate")
	flags.IntVar(&opts.maxFPS, "max-fps", 0, "cap the mirrored frame rate, 0 for unbounded")
	cmd.MarkFlagRequired("serial")

	return cmd
}

func runMirror(ctx context.Context, opts *mirrorOptions) error {
	log := logging.Logger()

	scid := opts.scid
	if scid == 0 {
		scid = deriveSCID(uuid.New())
	}

	cfg := scrcpyconfig.SessionDefaults(scid)
	if opts.videoCodec != "" {
		cfg.VideoCodec = opts.videoCodec
	}
	if opts.audioCodec != "" {
		cfg.AudioCodec = opts.audioCodec
	}
	if opts.noVideo {
		cfg.VideoEnabled = false
	}
	if opts.noAudio {
		cfg.AudioEnabled = false
	}
	if opts.noControl {
		cfg.ControlEnabled = false
	}
	if opts.maxSize > 0 {
		cfg.MaxSize = opts.maxSize
	}
	if opts.bitRate > 0 {
		cfg.VideoBitRate = opts.bitRate
	}
	if opts.maxFPS > 0 {
		cfg.MaxFPS = opts.maxFPS
	}

	tp, err := transport.NewAdbTransport(opts.serial, "")
	if err != nil {
		return err
	}

	runID := uniuri.NewLen(8)
	opener := &session.TunnelOpener{Transport: tp, LocalJarPath: opts.jarPath}
	sink := &loggingSink{log: logging.WithSession(log, fmt.Sprintf("%08x", scid), opts.serial).With("run_id", runID)}

	coord := session.New(cfg, tp, opener, sink, log)

	startCtx, cancelStart := context.WithTimeout(ctx, 15*time.Second)
	defer cancelStart()
	if err := coord.Start(startCtx); err != nil {
		return err
	}
	log.Info("mirroring session running", "scid", fmt.Sprintf("%08x", scid), "serial", opts.serial)

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt, syscall.SIGTERM)
	select {
	case <-sigc:
		log.Info("shutdown requested")
	case <-coord.Done():
		log.Warn("session terminated", "because", errKind(coord.TerminatedBecause()))
		return coord.TerminatedBecause()
	}

	stopCtx, cancelStop := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelStop()
	return coord.Stop(stopCtx)
}

// deriveSCID folds a random uuid down into the wire's 31-bit range.
func deriveSCID(id uuid.UUID) uint32 {
	v := binary.BigEndian.Uint32(id[:4])
	return v & 0x7FFFFFFF
}

func errKind(err error) string {
	if err == nil {
		return "none"
	}
	return err.Error()
}

// loggingSink prints a summary line per event instead of dumping raw
// frame payloads, which would flood the terminal at any real frame rate.
type loggingSink struct {
	log        interface {
		Info(msg string, args ...any)
		Warn(msg string, args ...any)
	}
	videoFrames int
	audioFrames int
}

func (s *loggingSink) OnFrame(stream session.MediaStream, frame session.CodecFrame) {
	switch stream {
	case session.StreamVideo:
		s.videoFrames++
	case session.StreamAudio:
		s.audioFrames++
	}
	if (s.videoFrames+s.audioFrames)%120 == 0 {
		s.log.Info("frame throughput", "video_frames", s.videoFrames, "audio_frames", s.audioFrames)
	}
}

func (s *loggingSink) OnDeviceEvent(msg session.DeviceMessage) {
	switch msg.Type {
	case proto.TypeClipboard:
		s.log.Info("device clipboard changed", "length", len(msg.ClipboardText))
	default:
		s.log.Info("device event", "type", msg.Type)
	}
}

func (s *loggingSink) OnStreamEnd(stream session.MediaStream) {
	s.log.Warn("stream ended", "stream", stream)
}

func (s *loggingSink) OnTerminated(cause error) {
	s.log.Info("session terminated", "cause", errKind(cause))
}
