package chat

import (
	"encoding/json"
	"testing"
)

func TestParseFrame(t *testing.T) {
	f, err := ParseFrame([]byte(`{"type":"join_module_chat","data":{"moduleSlug":"sales"}}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if f.Type != FrameJoin {
		t.Fatalf("type mismatch: %s", f.Type)
	}
	var data JoinData
	if err := decodeData(f, &data); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if data.ModuleSlug != "sales" {
		t.Fatalf("slug mismatch: %s", data.ModuleSlug)
	}
}

func TestParseFrameRejectsGarbage(t *testing.T) {
	if _, err := ParseFrame([]byte(`not json`)); err == nil {
		t.Fatalf("garbage accepted")
	}
	if _, err := ParseFrame([]byte(`{"data":{}}`)); err == nil {
		t.Fatalf("missing type accepted")
	}
}

func TestEncodeFrameRoundTrip(t *testing.T) {
	raw := EncodeFrame(FrameIncomingCall, IncomingCallData{
		CallerID:   "u1",
		CallerName: "alice",
		RoomID:     "room-7",
	})
	if raw == nil {
		t.Fatalf("encode returned nil")
	}
	f, err := ParseFrame(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	var call IncomingCallData
	if err := json.Unmarshal(f.Data, &call); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if call.CallerID != "u1" || call.CallerName != "alice" || call.RoomID != "room-7" {
		t.Fatalf("round trip mismatch: %+v", call)
	}
}

func TestEncodeFrameNilData(t *testing.T) {
	raw := EncodeFrame(FrameError, nil)
	f, err := ParseFrame(raw)
	if err != nil || f.Type != FrameError {
		t.Fatalf("nil-data frame broken: %v %+v", err, f)
	}
}
