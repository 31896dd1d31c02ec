package proto

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/scrcpygo/mirror/internal/errs"
)

func roundTripControl(t *testing.T, msg ControlMessage) ControlMessage {
	t.Helper()
	encoded, err := msg.Encode()
	require.NoError(t, err)
	require.Equal(t, msg.Type, encoded[0])

	decoded, err := DecodeControlMessage(bytes.NewReader(encoded))
	require.NoError(t, err)
	return decoded
}

func TestControlMessageRoundTrip(t *testing.T) {
	cases := []ControlMessage{
		{
			Type: TypeInjectKeycode, KeyAction: ActionDown,
			Keycode: 66, Repeat: 0, MetaState: 0,
		},
		{Type: TypeInjectText, Text: "hello scrcpy"},
		{
			Type: TypeInjectTouchEvent, TouchAction: ActionDown, PointerID: 0,
			TouchPosition: Position{X: 100, Y: 200, ScreenWidth: 1080, ScreenHeight: 2400},
			Pressure:      0xFFFF, ActionButton: 1, Buttons: 1,
		},
		{
			Type:          TypeInjectScrollEvent,
			ScrollPosition: Position{X: 50, Y: 60, ScreenWidth: 1080, ScreenHeight: 2400},
			HScroll:        -100, VScroll: 200, ScrollButtons: 0,
		},
		{Type: TypeBackOrScreenOn, ScreenOnAction: ActionDown},
		{Type: TypeExpandNotificationPane},
		{Type: TypeExpandSettingsPane},
		{Type: TypeCollapsePanels},
		{Type: TypeGetClipboard, ClipboardCopyKey: CopyKeyCopy},
		{Type: TypeSetClipboard, ClipboardSequence: 42, ClipboardText: "copied", ClipboardPaste: true},
		{Type: TypeSetDisplayPower, DisplayPowerOn: true},
		{Type: TypeRotateDevice},
		{
			Type: TypeUHIDCreate, UHIDID: 1, UHIDVendorID: 0x046d, UHIDProductID: 0xc52b,
			UHIDName: "scrcpy mouse", UHIDReportDesc: []byte{0x05, 0x01, 0x09, 0x02},
		},
		{Type: TypeUHIDInput, UHIDID: 1, UHIDData: []byte{0x01, 0x02, 0x03}},
		{Type: TypeUHIDDestroy, UHIDID: 1},
		{Type: TypeOpenHardKeyboardSettings},
		{Type: TypeStartApp, AppName: "com.android.settings"},
		{Type: TypeResetVideo},
	}

	for _, tc := range cases {
		decoded := roundTripControl(t, tc)
		require.Equal(t, tc, decoded)
	}
}

func TestControlMessageEncodeUnknownTypeIsMalformedFrame(t *testing.T) {
	_, err := ControlMessage{Type: 200}.Encode()
	require.Error(t, err)
	require.True(t, errs.IsMalformedFrame(err))
}

func TestDeviceMessageRoundTrip(t *testing.T) {
	var buf []byte

	// CLIPBOARD
	buf = append(buf, TypeClipboard)
	buf = appendLen32String(buf, "device clipboard")
	dm, err := DecodeDeviceMessage(bytes.NewReader(buf))
	require.NoError(t, err)
	require.Equal(t, TypeClipboard, dm.Type)
	require.Equal(t, "device clipboard", dm.ClipboardText)

	// ACK_CLIPBOARD
	buf = nil
	buf = append(buf, TypeAckClipboard)
	buf = appendU64(buf, 7)
	dm, err = DecodeDeviceMessage(bytes.NewReader(buf))
	require.NoError(t, err)
	require.EqualValues(t, 7, dm.AckSequence)

	// UHID_OUTPUT
	buf = nil
	buf = append(buf, TypeUHIDOutput)
	buf = appendU16(buf, 3)
	buf = appendLen16Blob(buf, []byte{0xAA, 0xBB})
	dm, err = DecodeDeviceMessage(bytes.NewReader(buf))
	require.NoError(t, err)
	require.EqualValues(t, 3, dm.UHIDID)
	require.Equal(t, []byte{0xAA, 0xBB}, dm.UHIDData)

	// APP_LIST
	buf = nil
	buf = append(buf, TypeAppList)
	buf = appendU32(buf, 2)
	buf = appendLen16Blob(buf, []byte("Chrome"))
	buf = appendLen16Blob(buf, []byte("com.android.chrome"))
	buf = append(buf, 0)
	buf = appendLen16Blob(buf, []byte("Settings"))
	buf = appendLen16Blob(buf, []byte("com.android.settings"))
	buf = append(buf, 1)
	dm, err = DecodeDeviceMessage(bytes.NewReader(buf))
	require.NoError(t, err)
	require.Equal(t, []AppListEntry{
		{Name: "Chrome", Package: "com.android.chrome", IsSystem: false},
		{Name: "Settings", Package: "com.android.settings", IsSystem: true},
	}, dm.Apps)

	// DISPLAY_POWER_STATE
	buf = nil
	buf = append(buf, TypeDisplayPowerState, 1)
	dm, err = DecodeDeviceMessage(bytes.NewReader(buf))
	require.NoError(t, err)
	require.True(t, dm.DisplayOn)
}

func TestDeviceMessageUnknownTypeIsMalformedFrame(t *testing.T) {
	_, err := DecodeDeviceMessage(bytes.NewReader([]byte{0x7F}))
	require.Error(t, err)
	require.True(t, errs.IsMalformedFrame(err))
}

func TestEncodeDecodeSCID(t *testing.T) {
	s, err := EncodeSCID(0x1A2B3C4D)
	require.NoError(t, err)
	require.Equal(t, "1a2b3c4d", s)

	v, err := DecodeSCID(s)
	require.NoError(t, err)
	require.EqualValues(t, 0x1A2B3C4D, v)

	_, err = EncodeSCID(1 << 31)
	require.Error(t, err)

	_, err = DecodeSCID("not-hex!")
	require.Error(t, err)
}

func appendU16(buf []byte, v uint16) []byte { return append(buf, byte(v>>8), byte(v)) }
func appendU32(buf []byte, v uint32) []byte {
	return append(buf, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}
func appendU64(buf []byte, v uint64) []byte {
	for i := 7; i >= 0; i-- {
		buf = append(buf, byte(v>>(8*uint(i))))
	}
	return buf
}
func appendLen32String(buf []byte, s string) []byte {
	n := uint32(len(s))
	buf = append(buf, byte(n>>24), byte(n>>16), byte(n>>8), byte(n))
	return append(buf, s...)
}
func appendLen16Blob(buf []byte, data []byte) []byte {
	buf = appendU16(buf, uint16(len(data)))
	return append(buf, data...)
}
