// Package wire implements the scrcpy fixed-layout binary primitives:
// big-endian integers, NUL-padded fixed strings, and length-prefixed
// blobs/strings. Every decoder reports an EOF, whether at the start of
// a field or inside it, as TruncatedFrame and any other read error as
// TransportError; the len32 decoders enforce the implementation-defined
// safety cap.
package wire

import (
	"encoding/binary"
	"fmt"
	"io"
	"strings"

	"github.com/scrcpygo/mirror/internal/errs"
)

// MaxBlobSize bounds any len32_blob/len32_string read. Exceeding it is a
// MalformedFrame, not a panic or unbounded allocation.
const MaxBlobSize = 16 * 1024 * 1024

func shortRead(op string, err error) error {
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return errs.NewTruncatedFrame(op, err)
	}
	return errs.NewTransportError(op, err)
}

// ReadU8 reads one unsigned byte.
func ReadU8(r io.Reader) (uint8, error) {
	var buf [1]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, shortRead("read u8", err)
	}
	return buf[0], nil
}

// ReadBool reads a u8 and interprets 0/1 as false/true. Any other value
// is accepted as true per common wire tolerance, matching scrcpy's own
// leniency for boolean fields.
func ReadBool(r io.Reader) (bool, error) {
	v, err := ReadU8(r)
	if err != nil {
		return false, err
	}
	return v != 0, nil
}

// ReadU16 reads a big-endian uint16.
func ReadU16(r io.Reader) (uint16, error) {
	var buf [2]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, shortRead("read u16", err)
	}
	return binary.BigEndian.Uint16(buf[:]), nil
}

// ReadU32 reads a big-endian uint32.
func ReadU32(r io.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, shortRead("read u32", err)
	}
	return binary.BigEndian.Uint32(buf[:]), nil
}

// ReadI32 reads a big-endian int32.
func ReadI32(r io.Reader) (int32, error) {
	v, err := ReadU32(r)
	return int32(v), err
}

// ReadU64 reads a big-endian uint64.
func ReadU64(r io.Reader) (uint64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, shortRead("read u64", err)
	}
	return binary.BigEndian.Uint64(buf[:]), nil
}

// ReadI64 reads a big-endian int64.
func ReadI64(r io.Reader) (int64, error) {
	v, err := ReadU64(r)
	return int64(v), err
}

// ReadFixedString reads n bytes, trims trailing NULs, and decodes the
// remainder as UTF-8.
func ReadFixedString(r io.Reader, n int) (string, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", shortRead(fmt.Sprintf("read fixed_string(%d)", n), err)
	}
	return strings.TrimRight(string(buf), "\x00"), nil
}

// ReadLen32Blob reads a u32 length followed by that many bytes, failing
// with MalformedFrame if the length exceeds MaxBlobSize.
func ReadLen32Blob(r io.Reader) ([]byte, error) {
	n, err := ReadU32(r)
	if err != nil {
		return nil, err
	}
	if n > MaxBlobSize {
		return nil, errs.NewMalformedFrame("read len32_blob", fmt.Errorf("length %d exceeds cap %d", n, MaxBlobSize))
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, shortRead("read len32_blob body", err)
	}
	return buf, nil
}

// ReadLen32String reads a len32_blob and interprets it as UTF-8.
func ReadLen32String(r io.Reader) (string, error) {
	b, err := ReadLen32Blob(r)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ReadLen16Blob reads a u16 length followed by that many bytes. Used by
// the UHID control messages, which are length-prefixed with 16 bits
// rather than 32.
func ReadLen16Blob(r io.Reader) ([]byte, error) {
	n, err := ReadU16(r)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, shortRead("read len16_blob body", err)
	}
	return buf, nil
}

// --- writers ---

// WriteU8 appends an unsigned byte.
func WriteU8(buf []byte, v uint8) []byte { return append(buf, v) }

// WriteBool appends a u8 of 0 or 1.
func WriteBool(buf []byte, v bool) []byte {
	if v {
		return append(buf, 1)
	}
	return append(buf, 0)
}

// WriteU16 appends a big-endian uint16.
func WriteU16(buf []byte, v uint16) []byte {
	var tmp [2]byte
	binary.BigEndian.PutUint16(tmp[:], v)
	return append(buf, tmp[:]...)
}

// WriteU32 appends a big-endian uint32.
func WriteU32(buf []byte, v uint32) []byte {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	return append(buf, tmp[:]...)
}

// WriteI32 appends a big-endian int32.
func WriteI32(buf []byte, v int32) []byte { return WriteU32(buf, uint32(v)) }

// WriteI16 appends a big-endian int16.
func WriteI16(buf []byte, v int16) []byte { return WriteU16(buf, uint16(v)) }

// WriteU64 appends a big-endian uint64.
func WriteU64(buf []byte, v uint64) []byte {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], v)
	return append(buf, tmp[:]...)
}

// WriteI64 appends a big-endian int64.
func WriteI64(buf []byte, v int64) []byte { return WriteU64(buf, uint64(v)) }

// WriteLen32Blob appends a u32 length followed by the blob's bytes.
func WriteLen32Blob(buf []byte, data []byte) []byte {
	buf = WriteU32(buf, uint32(len(data)))
	return append(buf, data...)
}

// WriteLen32String appends a len32_blob encoding of a UTF-8 string.
func WriteLen32String(buf []byte, s string) []byte {
	return WriteLen32Blob(buf, []byte(s))
}

// WriteLen16Blob appends a u16 length followed by the blob's bytes.
func WriteLen16Blob(buf []byte, data []byte) []byte {
	buf = WriteU16(buf, uint16(len(data)))
	return append(buf, data...)
}
