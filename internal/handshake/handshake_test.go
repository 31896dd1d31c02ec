package handshake

import (
	"bytes"
	"testing"

	"github.com/scrcpygo/mirror/internal/errs"
	"github.com/scrcpygo/mirror/internal/proto"
	"github.com/scrcpygo/mirror/internal/wire"
	"github.com/stretchr/testify/require"
)

func buildVideoHandshake(name string, width, height, codec uint32) []byte {
	var buf []byte
	buf = wire.WriteU8(buf, 0) // dummy byte
	nameBuf := make([]byte, deviceNameLen)
	copy(nameBuf, name)
	buf = append(buf, nameBuf...)
	buf = wire.WriteU32(buf, width)
	buf = wire.WriteU32(buf, height)
	buf = wire.WriteU32(buf, codec)
	return buf
}

func TestReadVideoHandshake(t *testing.T) {
	raw := buildVideoHandshake("Pixel 8 Pro", 1080, 2400, proto.CodecIDH264)
	meta, err := ReadVideo(bytes.NewReader(raw))
	require.NoError(t, err)
	require.Equal(t, "Pixel 8 Pro", meta.Name)
	require.EqualValues(t, 1080, meta.Width)
	require.EqualValues(t, 2400, meta.Height)
	require.Equal(t, proto.CodecIDH264, meta.Codec)
}

func TestReadVideoHandshakeUnknownCodecIsHandshakeError(t *testing.T) {
	raw := buildVideoHandshake("Pixel 8 Pro", 1080, 2400, 0xFFFFFFFF)
	_, err := ReadVideo(bytes.NewReader(raw))
	require.Error(t, err)
	require.True(t, errs.IsHandshake(err))
}

func TestReadVideoHandshakeTruncatedIsTruncatedFrame(t *testing.T) {
	raw := buildVideoHandshake("Pixel 8 Pro", 1080, 2400, proto.CodecIDH264)
	_, err := ReadVideo(bytes.NewReader(raw[:10]))
	require.Error(t, err)
	require.True(t, errs.IsTruncatedFrame(err))
}

func TestReadVideoHandshakeNonzeroDummyByteIsHandshakeError(t *testing.T) {
	raw := buildVideoHandshake("Pixel 8 Pro", 1080, 2400, proto.CodecIDH264)
	raw[0] = 1
	_, err := ReadVideo(bytes.NewReader(raw))
	require.Error(t, err)
	require.True(t, errs.IsHandshake(err))
}

func buildAudioHandshake(name string, codec uint32) []byte {
	var buf []byte
	buf = wire.WriteU8(buf, 0)
	nameBuf := make([]byte, deviceNameLen)
	copy(nameBuf, name)
	buf = append(buf, nameBuf...)
	buf = wire.WriteU32(buf, codec)
	return buf
}

func TestReadAudioHandshakeEnabled(t *testing.T) {
	raw := buildAudioHandshake("Pixel 8 Pro", proto.CodecIDOpus)
	meta, err := ReadAudio(bytes.NewReader(raw))
	require.NoError(t, err)
	require.False(t, meta.Disabled)
	require.Equal(t, proto.CodecIDOpus, meta.Codec)
}

func TestReadAudioHandshakeDisabled(t *testing.T) {
	raw := buildAudioHandshake("Pixel 8 Pro", proto.CodecIDAudioDisabled)
	meta, err := ReadAudio(bytes.NewReader(raw))
	require.NoError(t, err)
	require.True(t, meta.Disabled)
}

func TestReadAudioHandshakeUnknownCodecIsHandshakeError(t *testing.T) {
	raw := buildAudioHandshake("Pixel 8 Pro", 0xABCDEF01)
	_, err := ReadAudio(bytes.NewReader(raw))
	require.Error(t, err)
	require.True(t, errs.IsHandshake(err))
}
