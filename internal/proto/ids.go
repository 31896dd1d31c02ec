// Package proto holds the scrcpy wire constants and typed message
// catalogs shared by the handshaker, demuxer, and control channel.
package proto

import (
	"fmt"
	"regexp"
)

// Video codec ids, the ASCII bytes of their short name packed big-endian
// into a u32.
const (
	CodecIDH264 = uint32(0x68323634) // "h264"
	CodecIDH265 = uint32(0x68323635) // "h265"
	CodecIDAV1  = uint32(0x00617631) // "av1"
)

// Audio codec ids.
const (
	CodecIDOpus = uint32(0x6f707573) // "opus"
	CodecIDAAC  = uint32(0x00616163) // "aac"
	CodecIDFLAC = uint32(0x666c6163) // "flac"
	CodecIDRaw  = uint32(0x00726177) // "raw"
	// CodecIDAudioDisabled is the in-band "audio unavailable" marker:
	// not an error, a clean audio-disabled outcome.
	CodecIDAudioDisabled = uint32(0)
)

// VideoCodecName resolves a codec id to the SessionConfig-facing name,
// or "" if unrecognized.
func VideoCodecName(id uint32) string {
	switch id {
	case CodecIDH264:
		return "h264"
	case CodecIDH265:
		return "h265"
	case CodecIDAV1:
		return "av1"
	}
	return ""
}

// AudioCodecName resolves an audio codec id to its SessionConfig-facing
// name, or "" if unrecognized (CodecIDAudioDisabled included).
func AudioCodecName(id uint32) string {
	switch id {
	case CodecIDOpus:
		return "opus"
	case CodecIDAAC:
		return "aac"
	case CodecIDFLAC:
		return "flac"
	case CodecIDRaw:
		return "raw"
	}
	return ""
}

// VideoCodecID resolves a SessionConfig video_codec name to its wire id.
func VideoCodecID(name string) (uint32, bool) {
	switch name {
	case "h264":
		return CodecIDH264, true
	case "h265":
		return CodecIDH265, true
	case "av1":
		return CodecIDAV1, true
	}
	return 0, false
}

// AudioCodecID resolves a SessionConfig audio_codec name to its wire id.
func AudioCodecID(name string) (uint32, bool) {
	switch name {
	case "opus":
		return CodecIDOpus, true
	case "aac":
		return CodecIDAAC, true
	case "flac":
		return CodecIDFLAC, true
	case "raw":
		return CodecIDRaw, true
	}
	return 0, false
}

// Packet header flag bits: bit63 = CONFIG, bit62 = KEYFRAME, the
// remaining 62 bits are the PTS in microseconds.
const (
	PacketFlagConfig   = uint64(1) << 63
	PacketFlagKeyFrame = uint64(1) << 62
	PacketPTSMask      = uint64(0x3FFFFFFFFFFFFFFF)
)

var scidPattern = regexp.MustCompile(`^[0-9a-f]{8}$`)

// EncodeSCID renders a 31-bit non-negative session id as exactly eight
// lowercase hex digits, as the server mandates.
func EncodeSCID(scid uint32) (string, error) {
	if scid >= 1<<31 {
		return "", fmt.Errorf("scid %d out of range [0, 2^31)", scid)
	}
	return fmt.Sprintf("%08x", scid), nil
}

// DecodeSCID parses an 8-hex-digit scid back into its integer form,
// validating the exact wire pattern.
func DecodeSCID(s string) (uint32, error) {
	if !scidPattern.MatchString(s) {
		return 0, fmt.Errorf("scid %q does not match ^[0-9a-f]{8}$", s)
	}
	var v uint32
	if _, err := fmt.Sscanf(s, "%08x", &v); err != nil {
		return 0, err
	}
	return v, nil
}
