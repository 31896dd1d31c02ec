package session

import (
	"github.com/scrcpygo/mirror/internal/demux"
	"github.com/scrcpygo/mirror/internal/proto"
)

// CodecFrame and DeviceMessage are re-exported so a Sink implementation
// never has to import the internal demux/proto packages directly.
type CodecFrame = demux.CodecFrame
type DeviceMessage = proto.DeviceMessage
type ControlMessage = proto.ControlMessage
