// Package session owns the coordinator that binds transport, handshake,
// demuxer, and control channel into one mirroring session with a single
// lifecycle.
package session

import (
	"fmt"
	"time"

	"github.com/scrcpygo/mirror/internal/errs"
	"github.com/scrcpygo/mirror/internal/logging"
	"github.com/scrcpygo/mirror/internal/proto"
)

// Config is a session's immutable configuration.
type Config struct {
	SCID          uint32
	LogLevel      string
	VideoEnabled  bool
	AudioEnabled  bool
	ControlEnabled bool
	VideoCodec    string
	AudioCodec    string
	MaxSize       int
	VideoBitRate  int
	MaxFPS        int
	TunnelForward bool
	ServerVersion string

	// ChannelCapacity bounds each media stream's frame queue.
	ChannelCapacity int
	// MaxPayloadBytes overrides demux.DefaultMaxPayload when > 0.
	MaxPayloadBytes int
	// ShutdownGrace bounds how long a worker has to observe EOF/cancel
	// before being force-aborted.
	ShutdownGrace time.Duration
}

// SCIDHex renders SCID as the wire's 8-lowercase-hex-digit form.
func (c Config) SCIDHex() (string, error) {
	return proto.EncodeSCID(c.SCID)
}

// Validate checks the fields the coordinator cannot safely default,
// returning a typed *errs.ConfigError rather than panicking later.
func (c Config) Validate() error {
	if c.SCID >= 1<<31 {
		return errs.NewConfigError("validate scid", fmt.Errorf("scid %d out of range [0, 2^31)", c.SCID))
	}
	if !logging.ValidLevel(c.LogLevel) {
		return errs.NewConfigError("validate log_level", fmt.Errorf("unknown log level %q", c.LogLevel))
	}
	if c.VideoEnabled {
		if _, ok := proto.VideoCodecID(c.VideoCodec); !ok {
			return errs.NewConfigError("validate video_codec", fmt.Errorf("unknown video codec %q", c.VideoCodec))
		}
	}
	if c.AudioEnabled {
		if _, ok := proto.AudioCodecID(c.AudioCodec); !ok {
			return errs.NewConfigError("validate audio_codec", fmt.Errorf("unknown audio codec %q", c.AudioCodec))
		}
	}
	if c.ServerVersion == "" {
		return errs.NewConfigError("validate server_version", fmt.Errorf("server_version is required"))
	}
	return nil
}

// WithDefaults fills in the zero-value fields that have a sane default,
// returning a copy.
func (c Config) WithDefaults() Config {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.ChannelCapacity <= 0 {
		c.ChannelCapacity = 64
	}
	if c.ShutdownGrace <= 0 {
		c.ShutdownGrace = 2 * time.Second
	}
	return c
}
