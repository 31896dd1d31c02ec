// Package handshake performs the scrcpy device-metadata exchange that
// begins every video and audio socket.
package handshake

import (
	"fmt"
	"io"

	"github.com/scrcpygo/mirror/internal/errs"
	"github.com/scrcpygo/mirror/internal/proto"
	"github.com/scrcpygo/mirror/internal/wire"
)

// deviceNameLen is the fixed width of the device name field on the
// video socket, matching the server's fixed-size metadata buffer.
const deviceNameLen = 64

// DeviceMeta is what the handshake on the video socket reveals about
// the mirrored device.
type DeviceMeta struct {
	Name   string
	Width  uint32
	Height uint32
	Codec  uint32
}

// AudioMeta is what the handshake on the audio socket reveals. Disabled
// is true when the server reports audio capture could not start
// (codec id 0), which is a clean outcome, not an error.
type AudioMeta struct {
	Codec    uint32
	Disabled bool
}

// ReadVideo performs the video-socket handshake: a dummy byte, a
// fixed-width device name, then width/height/codec id. A nonzero dummy
// byte is itself a protocol error.
func ReadVideo(r io.Reader) (DeviceMeta, error) {
	dummy, err := wire.ReadU8(r)
	if err != nil {
		return DeviceMeta{}, wrapHandshake("read video dummy byte", err)
	}
	if dummy != 0 {
		return DeviceMeta{}, errs.NewHandshakeError("read video dummy byte", fmt.Errorf("expected 0, got %d", dummy))
	}
	name, err := wire.ReadFixedString(r, deviceNameLen)
	if err != nil {
		return DeviceMeta{}, wrapHandshake("read device name", err)
	}
	width, err := wire.ReadU32(r)
	if err != nil {
		return DeviceMeta{}, wrapHandshake("read video width", err)
	}
	height, err := wire.ReadU32(r)
	if err != nil {
		return DeviceMeta{}, wrapHandshake("read video height", err)
	}
	codec, err := wire.ReadU32(r)
	if err != nil {
		return DeviceMeta{}, wrapHandshake("read video codec id", err)
	}
	if proto.VideoCodecName(codec) == "" {
		return DeviceMeta{}, errs.NewHandshakeError("read video codec id", fmt.Errorf("unknown codec id 0x%08x", codec))
	}
	return DeviceMeta{Name: name, Width: width, Height: height, Codec: codec}, nil
}

// ReadAudio performs the audio-socket handshake, used only when video
// is disabled and audio is the first socket opened: a dummy byte, the
// device name, then the audio codec id. A codec id of 0 means the
// server could not start audio capture; Disabled is set and no error is
// returned.
func ReadAudio(r io.Reader) (AudioMeta, error) {
	dummy, err := wire.ReadU8(r)
	if err != nil {
		return AudioMeta{}, wrapHandshake("read audio dummy byte", err)
	}
	if dummy != 0 {
		return AudioMeta{}, errs.NewHandshakeError("read audio dummy byte", fmt.Errorf("expected 0, got %d", dummy))
	}
	if _, err := wire.ReadFixedString(r, deviceNameLen); err != nil {
		return AudioMeta{}, wrapHandshake("read device name", err)
	}
	codec, err := wire.ReadU32(r)
	if err != nil {
		return AudioMeta{}, wrapHandshake("read audio codec id", err)
	}
	if codec == proto.CodecIDAudioDisabled {
		return AudioMeta{Codec: codec, Disabled: true}, nil
	}
	if proto.AudioCodecName(codec) == "" {
		return AudioMeta{}, errs.NewHandshakeError("read audio codec id", fmt.Errorf("unknown codec id 0x%08x", codec))
	}
	return AudioMeta{Codec: codec}, nil
}

func wrapHandshake(op string, err error) error {
	if errs.IsTruncatedFrame(err) || errs.IsTransport(err) {
		return err
	}
	return errs.NewHandshakeError(op, err)
}
