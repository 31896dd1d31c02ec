package proto

import (
	"fmt"
	"io"

	"github.com/scrcpygo/mirror/internal/errs"
	"github.com/scrcpygo/mirror/internal/wire"
)

// Outbound control message type ids.
const (
	TypeInjectKeycode            = uint8(0)
	TypeInjectText               = uint8(1)
	TypeInjectTouchEvent         = uint8(2)
	TypeInjectScrollEvent        = uint8(3)
	TypeBackOrScreenOn           = uint8(4)
	TypeExpandNotificationPane   = uint8(5)
	TypeExpandSettingsPane       = uint8(6)
	TypeCollapsePanels           = uint8(7)
	TypeGetClipboard             = uint8(8)
	TypeSetClipboard             = uint8(9)
	TypeSetDisplayPower          = uint8(10)
	TypeRotateDevice             = uint8(11)
	TypeUHIDCreate               = uint8(12)
	TypeUHIDInput                = uint8(13)
	TypeUHIDDestroy              = uint8(14)
	TypeOpenHardKeyboardSettings = uint8(15)
	TypeStartApp                 = uint8(16)
	TypeResetVideo               = uint8(17)
)

// Inbound device message type ids.
const (
	TypeClipboard         = uint8(0)
	TypeAckClipboard      = uint8(1)
	TypeUHIDOutput        = uint8(2)
	TypeAppList           = uint8(3)
	TypeDisplayPowerState = uint8(4)
)

// Key/touch/scroll action codes shared by the inject messages.
const (
	ActionDown = uint8(0)
	ActionUp   = uint8(1)
	ActionMove = uint8(2)
)

// Copy-key-code sentinel used by GET_CLIPBOARD.
const (
	CopyKeyNone = uint8(0)
	CopyKeyCopy = uint8(1)
	CopyKeyCut  = uint8(2)
)

// Position is the common (x, y, screen_width, screen_height) tuple that
// the touch and scroll messages embed.
type Position struct {
	X, Y                 int32
	ScreenWidth, ScreenHeight uint16
}

func (p Position) encode(buf []byte) []byte {
	buf = wire.WriteI32(buf, p.X)
	buf = wire.WriteI32(buf, p.Y)
	buf = wire.WriteU16(buf, p.ScreenWidth)
	buf = wire.WriteU16(buf, p.ScreenHeight)
	return buf
}

// ControlMessage is a single outbound control channel message. Exactly
// one of the typed payload fields is meaningful, selected by Type.
type ControlMessage struct {
	Type uint8

	// INJECT_KEYCODE
	KeyAction    uint8
	Keycode      uint32
	Repeat       uint32
	MetaState    uint32

	// INJECT_TEXT
	Text string

	// INJECT_TOUCH_EVENT
	TouchAction    uint8
	PointerID      uint64
	TouchPosition  Position
	Pressure       uint16 // unsigned 0.16 fixed point, 0xFFFF == 1.0
	ActionButton   uint32
	Buttons        uint32

	// INJECT_SCROLL_EVENT
	ScrollPosition Position
	HScroll        int16
	VScroll        int16
	ScrollButtons  uint32

	// BACK_OR_SCREEN_ON
	ScreenOnAction uint8

	// SET_DISPLAY_POWER
	DisplayPowerOn bool

	// GET_CLIPBOARD
	ClipboardCopyKey uint8

	// SET_CLIPBOARD
	ClipboardSequence uint64
	ClipboardText     string
	ClipboardPaste    bool

	// ROTATE_DEVICE has no payload.

	// UHID_CREATE
	UHIDID          uint16
	UHIDVendorID    uint16
	UHIDProductID   uint16
	UHIDName        string
	UHIDReportDesc  []byte

	// UHID_INPUT (reuses UHIDID)
	UHIDData []byte

	// UHID_DESTROY (reuses UHIDID)

	// START_APP
	AppName string
}

// Encode serializes m into its wire representation: a single type byte
// followed by the type's fixed payload. Returns MalformedFrame for an
// unrecognized Type so callers never silently emit garbage on the wire.
func (m ControlMessage) Encode() ([]byte, error) {
	buf := []byte{m.Type}

	switch m.Type {
	case TypeInjectKeycode:
		buf = wire.WriteU8(buf, m.KeyAction)
		buf = wire.WriteU32(buf, m.Keycode)
		buf = wire.WriteU32(buf, m.Repeat)
		buf = wire.WriteU32(buf, m.MetaState)

	case TypeInjectText:
		buf = wire.WriteLen32String(buf, m.Text)

	case TypeInjectTouchEvent:
		buf = wire.WriteU8(buf, m.TouchAction)
		buf = wire.WriteU64(buf, m.PointerID)
		buf = m.TouchPosition.encode(buf)
		buf = wire.WriteU16(buf, m.Pressure)
		buf = wire.WriteU32(buf, m.ActionButton)
		buf = wire.WriteU32(buf, m.Buttons)

	case TypeInjectScrollEvent:
		buf = m.ScrollPosition.encode(buf)
		buf = wire.WriteI16(buf, m.HScroll)
		buf = wire.WriteI16(buf, m.VScroll)
		buf = wire.WriteU32(buf, m.ScrollButtons)

	case TypeBackOrScreenOn:
		buf = wire.WriteU8(buf, m.ScreenOnAction)

	case TypeExpandNotificationPane, TypeExpandSettingsPane, TypeCollapsePanels,
		TypeRotateDevice, TypeResetVideo, TypeOpenHardKeyboardSettings:
		// no payload

	case TypeGetClipboard:
		buf = wire.WriteU8(buf, m.ClipboardCopyKey)

	case TypeSetClipboard:
		buf = wire.WriteU64(buf, m.ClipboardSequence)
		buf = wire.WriteBool(buf, m.ClipboardPaste)
		buf = wire.WriteLen32String(buf, m.ClipboardText)

	case TypeSetDisplayPower:
		buf = wire.WriteBool(buf, m.DisplayPowerOn)

	case TypeUHIDCreate:
		buf = wire.WriteU16(buf, m.UHIDID)
		buf = wire.WriteU16(buf, m.UHIDVendorID)
		buf = wire.WriteU16(buf, m.UHIDProductID)
		buf = wire.WriteLen16Blob(buf, []byte(m.UHIDName))
		buf = wire.WriteLen16Blob(buf, m.UHIDReportDesc)

	case TypeUHIDInput:
		buf = wire.WriteU16(buf, m.UHIDID)
		buf = wire.WriteLen16Blob(buf, m.UHIDData)

	case TypeUHIDDestroy:
		buf = wire.WriteU16(buf, m.UHIDID)

	case TypeStartApp:
		buf = wire.WriteLen32String(buf, m.AppName)

	default:
		return nil, errs.NewMalformedFrame("encode control message", fmt.Errorf("unknown type %d", m.Type))
	}

	return buf, nil
}

// DecodeControlMessage reads one framed outbound control message back
// from its wire form. Primarily exercised by tests asserting a
// round-trip encode/decode; a real server-side peer would use the same
// decode table to dispatch injected input.
func DecodeControlMessage(r io.Reader) (ControlMessage, error) {
	t, err := wire.ReadU8(r)
	if err != nil {
		return ControlMessage{}, err
	}

	msg := ControlMessage{Type: t}
	switch t {
	case TypeInjectKeycode:
		if msg.KeyAction, err = wire.ReadU8(r); err != nil {
			return ControlMessage{}, err
		}
		if msg.Keycode, err = wire.ReadU32(r); err != nil {
			return ControlMessage{}, err
		}
		if msg.Repeat, err = wire.ReadU32(r); err != nil {
			return ControlMessage{}, err
		}
		if msg.MetaState, err = wire.ReadU32(r); err != nil {
			return ControlMessage{}, err
		}

	case TypeInjectText:
		if msg.Text, err = wire.ReadLen32String(r); err != nil {
			return ControlMessage{}, err
		}

	case TypeInjectTouchEvent:
		if msg.TouchAction, err = wire.ReadU8(r); err != nil {
			return ControlMessage{}, err
		}
		if msg.PointerID, err = wire.ReadU64(r); err != nil {
			return ControlMessage{}, err
		}
		if msg.TouchPosition, err = decodePosition(r); err != nil {
			return ControlMessage{}, err
		}
		if msg.Pressure, err = wire.ReadU16(r); err != nil {
			return ControlMessage{}, err
		}
		if msg.ActionButton, err = wire.ReadU32(r); err != nil {
			return ControlMessage{}, err
		}
		if msg.Buttons, err = wire.ReadU32(r); err != nil {
			return ControlMessage{}, err
		}

	case TypeInjectScrollEvent:
		if msg.ScrollPosition, err = decodePosition(r); err != nil {
			return ControlMessage{}, err
		}
		if msg.HScroll, err = wire.ReadI16(r); err != nil {
			return ControlMessage{}, err
		}
		if msg.VScroll, err = wire.ReadI16(r); err != nil {
			return ControlMessage{}, err
		}
		if msg.ScrollButtons, err = wire.ReadU32(r); err != nil {
			return ControlMessage{}, err
		}

	case TypeBackOrScreenOn:
		if msg.ScreenOnAction, err = wire.ReadU8(r); err != nil {
			return ControlMessage{}, err
		}

	case TypeSetDisplayPower:
		if msg.DisplayPowerOn, err = wire.ReadBool(r); err != nil {
			return ControlMessage{}, err
		}

	case TypeExpandNotificationPane, TypeExpandSettingsPane, TypeCollapsePanels,
		TypeRotateDevice, TypeResetVideo, TypeOpenHardKeyboardSettings:
		// no payload

	case TypeGetClipboard:
		if msg.ClipboardCopyKey, err = wire.ReadU8(r); err != nil {
			return ControlMessage{}, err
		}

	case TypeSetClipboard:
		if msg.ClipboardSequence, err = wire.ReadU64(r); err != nil {
			return ControlMessage{}, err
		}
		if msg.ClipboardPaste, err = wire.ReadBool(r); err != nil {
			return ControlMessage{}, err
		}
		if msg.ClipboardText, err = wire.ReadLen32String(r); err != nil {
			return ControlMessage{}, err
		}

	case TypeUHIDCreate:
		if msg.UHIDID, err = wire.ReadU16(r); err != nil {
			return ControlMessage{}, err
		}
		if msg.UHIDVendorID, err = wire.ReadU16(r); err != nil {
			return ControlMessage{}, err
		}
		if msg.UHIDProductID, err = wire.ReadU16(r); err != nil {
			return ControlMessage{}, err
		}
		var nameBytes []byte
		if nameBytes, err = wire.ReadLen16Blob(r); err != nil {
			return ControlMessage{}, err
		}
		msg.UHIDName = string(nameBytes)
		if msg.UHIDReportDesc, err = wire.ReadLen16Blob(r); err != nil {
			return ControlMessage{}, err
		}

	case TypeUHIDInput:
		if msg.UHIDID, err = wire.ReadU16(r); err != nil {
			return ControlMessage{}, err
		}
		if msg.UHIDData, err = wire.ReadLen16Blob(r); err != nil {
			return ControlMessage{}, err
		}

	case TypeUHIDDestroy:
		if msg.UHIDID, err = wire.ReadU16(r); err != nil {
			return ControlMessage{}, err
		}

	case TypeStartApp:
		if msg.AppName, err = wire.ReadLen32String(r); err != nil {
			return ControlMessage{}, err
		}

	default:
		return ControlMessage{}, errs.NewMalformedFrame("decode control message", fmt.Errorf("unknown type %d", t))
	}

	return msg, nil
}

func decodePosition(r io.Reader) (Position, error) {
	x, err := wire.ReadI32(r)
	if err != nil {
		return Position{}, err
	}
	y, err := wire.ReadI32(r)
	if err != nil {
		return Position{}, err
	}
	w, err := wire.ReadU16(r)
	if err != nil {
		return Position{}, err
	}
	h, err := wire.ReadU16(r)
	if err != nil {
		return Position{}, err
	}
	return Position{X: x, Y: y, ScreenWidth: w, ScreenHeight: h}, nil
}

// DeviceMessage is a single inbound device message.
type DeviceMessage struct {
	Type uint8

	// CLIPBOARD
	ClipboardText string

	// ACK_CLIPBOARD
	AckSequence uint64

	// UHID_OUTPUT
	UHIDID   uint16
	UHIDData []byte

	// APP_LIST
	Apps []AppListEntry

	// DISPLAY_POWER_STATE
	DisplayOn bool
}

// AppListEntry is one entry within an APP_LIST message: a launchable
// app's display name, its package identifier, and whether it is a
// system app.
type AppListEntry struct {
	Name     string
	Package  string
	IsSystem bool
}

// DecodeDeviceMessage reads one framed device message from r: a type
// byte followed by the type's payload. Unknown types are a
// MalformedFrame, since the reader has no way to skip an unrecognized
// payload of unknown length.
func DecodeDeviceMessage(r io.Reader) (DeviceMessage, error) {
	t, err := wire.ReadU8(r)
	if err != nil {
		return DeviceMessage{}, err
	}

	msg := DeviceMessage{Type: t}
	switch t {
	case TypeClipboard:
		text, err := wire.ReadLen32String(r)
		if err != nil {
			return DeviceMessage{}, err
		}
		msg.ClipboardText = text

	case TypeAckClipboard:
		seq, err := wire.ReadU64(r)
		if err != nil {
			return DeviceMessage{}, err
		}
		msg.AckSequence = seq

	case TypeUHIDOutput:
		id, err := wire.ReadU16(r)
		if err != nil {
			return DeviceMessage{}, err
		}
		data, err := wire.ReadLen16Blob(r)
		if err != nil {
			return DeviceMessage{}, err
		}
		msg.UHIDID = id
		msg.UHIDData = data

	case TypeAppList:
		count, err := wire.ReadU32(r)
		if err != nil {
			return DeviceMessage{}, err
		}
		apps := make([]AppListEntry, 0, count)
		for i := uint32(0); i < count; i++ {
			nameBytes, err := wire.ReadLen16Blob(r)
			if err != nil {
				return DeviceMessage{}, err
			}
			pkgBytes, err := wire.ReadLen16Blob(r)
			if err != nil {
				return DeviceMessage{}, err
			}
			isSystem, err := wire.ReadBool(r)
			if err != nil {
				return DeviceMessage{}, err
			}
			apps = append(apps, AppListEntry{Name: string(nameBytes), Package: string(pkgBytes), IsSystem: isSystem})
		}
		msg.Apps = apps

	case TypeDisplayPowerState:
		on, err := wire.ReadBool(r)
		if err != nil {
			return DeviceMessage{}, err
		}
		msg.DisplayOn = on

	default:
		return DeviceMessage{}, errs.NewMalformedFrame("decode device message", fmt.Errorf("unknown type %d", t))
	}

	return msg, nil
}
