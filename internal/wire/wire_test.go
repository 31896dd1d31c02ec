package wire

import (
	"bytes"
	"testing"

	"github.com/scrcpygo/mirror/internal/errs"
	"github.com/stretchr/testify/require"
)

func TestIntegerRoundTrip(t *testing.T) {
	var buf []byte
	buf = WriteU8(buf, 0xAB)
	buf = WriteU16(buf, 0x1234)
	buf = WriteU32(buf, 0xDEADBEEF)
	buf = WriteU64(buf, 0x0102030405060708)
	buf = WriteI32(buf, -1)
	buf = WriteI64(buf, -2)
	buf = WriteBool(buf, true)

	r := bytes.NewReader(buf)

	u8, err := ReadU8(r)
	require.NoError(t, err)
	require.EqualValues(t, 0xAB, u8)

	u16, err := ReadU16(r)
	require.NoError(t, err)
	require.EqualValues(t, 0x1234, u16)

	u32, err := ReadU32(r)
	require.NoError(t, err)
	require.EqualValues(t, 0xDEADBEEF, u32)

	u64, err := ReadU64(r)
	require.NoError(t, err)
	require.EqualValues(t, 0x0102030405060708, u64)

	i32, err := ReadI32(r)
	require.NoError(t, err)
	require.EqualValues(t, -1, i32)

	i64, err := ReadI64(r)
	require.NoError(t, err)
	require.EqualValues(t, -2, i64)

	b, err := ReadBool(r)
	require.NoError(t, err)
	require.True(t, b)
}

func TestFixedStringTrimsTrailingNULs(t *testing.T) {
	buf := make([]byte, 64)
	copy(buf, "Pixel 8 Pro")
	name, err := ReadFixedString(bytes.NewReader(buf), 64)
	require.NoError(t, err)
	require.Equal(t, "Pixel 8 Pro", name)
}

func TestLen32BlobRoundTrip(t *testing.T) {
	var buf []byte
	buf = WriteLen32String(buf, "clipboard contents")
	s, err := ReadLen32String(bytes.NewReader(buf))
	require.NoError(t, err)
	require.Equal(t, "clipboard contents", s)
}

func TestLen32BlobOversizeIsMalformedFrame(t *testing.T) {
	var buf []byte
	buf = WriteU32(buf, MaxBlobSize+1)
	_, err := ReadLen32Blob(bytes.NewReader(buf))
	require.Error(t, err)
	require.True(t, errs.IsMalformedFrame(err))
}

func TestShortReadInsideFieldIsTruncatedFrame(t *testing.T) {
	// Only 2 of 4 bytes present for a u32.
	_, err := ReadU32(bytes.NewReader([]byte{0x00, 0x01}))
	require.Error(t, err)
	require.True(t, errs.IsTruncatedFrame(err))
}

func TestLen16BlobRoundTrip(t *testing.T) {
	var buf []byte
	buf = WriteLen16Blob(buf, []byte("uhid-report"))
	data, err := ReadLen16Blob(bytes.NewReader(buf))
	require.NoError(t, err)
	require.Equal(t, []byte("uhid-report"), data)
}
