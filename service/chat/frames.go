package chat

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// Frame types over the socket. Inbound from clients:
const (
	FrameRegister = "register"         // {token}
	FrameJoin     = "join_module_chat" // {moduleSlug}
	FrameCallUser = "call_user"        // {targetUserId, roomId}
	FrameCallGrp  = "call_group"       // {targetUserIds, roomId}
)

// Outbound to clients:
const (
	FrameNewMessage   = "new_module_message"  // {message}
	FrameNotification = "module_notification" // {moduleSlug, senderId}
	FrameIncomingCall = "incoming_call"       // {callerId, callerName, roomId}
	FrameCallUnavail  = "call_unavailable"    // {targetUserId}
	FrameError        = "error"               // {code, msg}
)

type Frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type RegisterData struct {
	Token string `json:"token"`
}

type JoinData struct {
	ModuleSlug string `json:"moduleSlug"`
}

type CallUserData struct {
	TargetUserID string `json:"targetUserId"`
	RoomID       string `json:"roomId"`
}

type CallGroupData struct {
	TargetUserIDs []string `json:"targetUserIds"`
	RoomID        string   `json:"roomId"`
}

type NotificationData struct {
	ModuleSlug string `json:"moduleSlug"`
	SenderID   string `json:"senderId"`
}

// IncomingCallData is opaque signaling: the gateway routes it, the
// conferencing widget interprets it.
type IncomingCallData struct {
	CallerID   string `json:"callerId"`
	CallerName string `json:"callerName"`
	RoomID     string `json:"roomId"`
}

var errEmptyData = errors.New("frame missing data")

func decodeData(frame Frame, out any) error {
	if frame.Data == nil {
		return errEmptyData
	}
	return json.Unmarshal(frame.Data, out)
}

func ParseFrame(raw []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return Frame{}, errors.Wrap(err, "parse frame")
	}
	if f.Type == "" {
		return Frame{}, errors.New("frame missing type")
	}
	return f, nil
}

// EncodeFrame marshals a typed payload into the wire form. Payloads are
// plain structs; a marshal failure is a programming error and returns
// nil, which senders drop.
func EncodeFrame(frameType string, data any) []byte {
	var raw json.RawMessage
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			return nil
		}
		raw = b
	}
	out, err := json.Marshal(Frame{Type: frameType, Data: raw})
	if err != nil {
		return nil
	}
	return out
}
