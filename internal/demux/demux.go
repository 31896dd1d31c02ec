// Package demux decodes the packet-frame stream each media socket
// produces after its handshake completes.
package demux

import (
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"

	"github.com/scrcpygo/mirror/internal/errs"
	"github.com/scrcpygo/mirror/internal/proto"
)

// packetHeaderSize is the fixed 12-byte `u64 pts_and_flags | u32
// payload_len` header preceding every frame.
const packetHeaderSize = 12

// DefaultMaxPayload is the packet payload safety cap used when a
// session does not override it.
const DefaultMaxPayload = 16 * 1024 * 1024

// CodecFrame is one decoded packet-frame, stripped of its wire framing.
type CodecFrame struct {
	// PTSUs is the presentation timestamp in microseconds. HasPTS is
	// false for a CONFIG packet whose wire PTS field was zero, per
	// ("pts_us = None when the PTS field is zero").
	PTSUs    uint64
	HasPTS   bool
	IsConfig bool
	IsKey    bool
	Payload  []byte
}

// Demuxer decodes one media socket's packet-frame stream, tracking PTS
// monotonicity across calls to Next.
type Demuxer struct {
	r          io.Reader
	maxPayload uint32
	log        *slog.Logger

	havePTS bool
	lastPTS uint64
}

// New builds a demuxer reading from r. maxPayload <= 0 selects
// DefaultMaxPayload. log receives a warning on non-monotonic PTS.
func New(r io.Reader, maxPayload int, log *slog.Logger) *Demuxer {
	if maxPayload <= 0 {
		maxPayload = DefaultMaxPayload
	}
	if log == nil {
		log = slog.Default()
	}
	return &Demuxer{r: r, maxPayload: uint32(maxPayload), log: log}
}

// Next decodes the next frame. A clean io.EOF at a frame boundary is
// returned unwrapped so callers can distinguish ordinary stream end
// from a mid-frame TruncatedFrame. A read error that isn't an EOF
// variant (e.g. a closed socket) comes back as a TransportError instead
// of TruncatedFrame, matching the convention in internal/wire.
func (d *Demuxer) Next() (CodecFrame, error) {
	var header [packetHeaderSize]byte
	n, err := io.ReadFull(d.r, header[:])
	if err != nil {
		if n == 0 && err == io.EOF {
			return CodecFrame{}, io.EOF
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return CodecFrame{}, errs.NewTruncatedFrame("read packet header", err)
		}
		return CodecFrame{}, errs.NewTransportError("read packet header", err)
	}

	ptsFlags := binary.BigEndian.Uint64(header[0:8])
	payloadLen := binary.BigEndian.Uint32(header[8:12])

	if payloadLen > d.maxPayload {
		return CodecFrame{}, errs.NewMalformedFrame("read packet payload",
			fmt.Errorf("payload_len %d exceeds cap %d", payloadLen, d.maxPayload))
	}

	payload := make([]byte, payloadLen)
	if _, err := io.ReadFull(d.r, payload); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return CodecFrame{}, errs.NewTruncatedFrame("read packet payload", err)
		}
		return CodecFrame{}, errs.NewTransportError("read packet payload", err)
	}

	isConfig := ptsFlags&proto.PacketFlagConfig != 0
	isKey := ptsFlags&proto.PacketFlagKeyFrame != 0
	pts := ptsFlags & proto.PacketPTSMask

	frame := CodecFrame{IsConfig: isConfig, IsKey: isKey, Payload: payload}
	if isConfig && pts == 0 {
		frame.HasPTS = false
	} else {
		frame.HasPTS = true
		frame.PTSUs = pts
	}

	if frame.HasPTS {
		if d.havePTS && pts < d.lastPTS {
			d.log.Warn("non-monotonic PTS on media stream", "previous", d.lastPTS, "got", pts)
		}
		d.havePTS = true
		d.lastPTS = pts
	}

	return frame, nil
}
