package demux

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"github.com/scrcpygo/mirror/internal/errs"
	"github.com/stretchr/testify/require"
)

func encodeFrame(ptsFlags uint64, payload []byte) []byte {
	var buf [12]byte
	binary.BigEndian.PutUint64(buf[0:8], ptsFlags)
	binary.BigEndian.PutUint32(buf[8:12], uint32(len(payload)))
	return append(buf[:], payload...)
}

func TestNextDecodesPlainFrame(t *testing.T) {
	payload := []byte("nal-unit-bytes")
	raw := encodeFrame(1000, payload)

	d := New(bytes.NewReader(raw), 0, nil)
	frame, err := d.Next()
	require.NoError(t, err)
	require.True(t, frame.HasPTS)
	require.EqualValues(t, 1000, frame.PTSUs)
	require.False(t, frame.IsConfig)
	require.False(t, frame.IsKey)
	require.Equal(t, payload, frame.Payload)
}

func TestNextDecodesConfigWithZeroPTSAsNoPTS(t *testing.T) {
	raw := encodeFrame(configFlag(), []byte{0x01, 0x02})
	d := New(bytes.NewReader(raw), 0, nil)
	frame, err := d.Next()
	require.NoError(t, err)
	require.True(t, frame.IsConfig)
	require.False(t, frame.HasPTS)
}

func TestNextDecodesConfigWithNonZeroPTSKeepsPTS(t *testing.T) {
	raw := encodeFrame(configFlag()|500, []byte{0x01})
	d := New(bytes.NewReader(raw), 0, nil)
	frame, err := d.Next()
	require.NoError(t, err)
	require.True(t, frame.IsConfig)
	require.True(t, frame.HasPTS)
	require.EqualValues(t, 500, frame.PTSUs)
}

func TestNextDecodesKeyFrameFlag(t *testing.T) {
	raw := encodeFrame(keyFrameFlag()|10, []byte{0xAA})
	d := New(bytes.NewReader(raw), 0, nil)
	frame, err := d.Next()
	require.NoError(t, err)
	require.True(t, frame.IsKey)
}

func TestNextCleanEOFAtBoundary(t *testing.T) {
	d := New(bytes.NewReader(nil), 0, nil)
	_, err := d.Next()
	require.Equal(t, io.EOF, err)
}

func TestNextTruncatedInsideHeaderIsTruncatedFrame(t *testing.T) {
	d := New(bytes.NewReader([]byte{0x00, 0x01, 0x02}), 0, nil)
	_, err := d.Next()
	require.Error(t, err)
	require.True(t, errs.IsTruncatedFrame(err))
}

func TestNextTruncatedInsidePayloadIsTruncatedFrame(t *testing.T) {
	raw := encodeFrame(1, []byte{0x01, 0x02, 0x03, 0x04})
	d := New(bytes.NewReader(raw[:len(raw)-2]), 0, nil)
	_, err := d.Next()
	require.Error(t, err)
	require.True(t, errs.IsTruncatedFrame(err))
}

func TestNextOversizePayloadIsMalformedFrame(t *testing.T) {
	var buf [12]byte
	binary.BigEndian.PutUint64(buf[0:8], 1)
	binary.BigEndian.PutUint32(buf[8:12], 100)
	d := New(bytes.NewReader(buf[:]), 10, nil)
	_, err := d.Next()
	require.Error(t, err)
	require.True(t, errs.IsMalformedFrame(err))
}

func TestNextForwardsDecreasingPTSUnchanged(t *testing.T) {
	var raw []byte
	raw = append(raw, encodeFrame(100, []byte{1})...)
	raw = append(raw, encodeFrame(200, []byte{2})...)
	raw = append(raw, encodeFrame(50, []byte{3})...) // decrease, still forwarded

	d := New(bytes.NewReader(raw), 0, nil)
	var seen []uint64
	for i := 0; i < 3; i++ {
		f, err := d.Next()
		require.NoError(t, err)
		seen = append(seen, f.PTSUs)
	}
	require.Equal(t, []uint64{100, 200, 50}, seen)
}

func configFlag() uint64    { return uint64(1) << 63 }
func keyFrameFlag() uint64  { return uint64(1) << 62 }
