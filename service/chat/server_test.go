package chat

import (
	"encoding/json"
	"testing"
	"time"

	"NioBoard/module/message"
	"NioBoard/tools/security"
)

func newTestServer() *Server {
	return NewServer(Config{
		JWT:    security.DefaultOptions([]byte("test-secret")),
		NodeID: "node-test",
	}, nil, nil)
}

func bind(s *Server, id, role string) *Client {
	c := newClient(8)
	s.reg.Bind(c, security.Principal{ID: id, Username: id, Role: role})
	return c
}

// recv pulls one frame off the client queue, or fails after the wait.
func recv(t *testing.T, c *Client) Frame {
	t.Helper()
	select {
	case raw := <-c.send:
		f, err := ParseFrame(raw)
		if err != nil {
			t.Fatalf("bad frame on queue: %v", err)
		}
		return f
	case <-time.After(2 * time.Second):
		t.Fatalf("no frame delivered")
		return Frame{}
	}
}

func assertIdle(t *testing.T, c *Client) {
	t.Helper()
	select {
	case raw := <-c.send:
		t.Fatalf("unexpected frame: %s", raw)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBroadcastMessageOnlyToSubscribers(t *testing.T) {
	s := newTestServer()
	joined := bind(s, "u1", security.RoleUser)
	lurker := bind(s, "u2", security.RoleUser)
	s.reg.Subscribe(joined, "sales")

	s.BroadcastMessage("sales", message.Message{ID: "m1", Body: "hi"})

	f := recv(t, joined)
	if f.Type != FrameNewMessage {
		t.Fatalf("want %s, got %s", FrameNewMessage, f.Type)
	}
	var msg message.Message
	if err := json.Unmarshal(f.Data, &msg); err != nil || msg.ID != "m1" {
		t.Fatalf("payload mismatch: %v %+v", err, msg)
	}
	assertIdle(t, lurker)
}

func TestBroadcastActivityFiltersByGrant(t *testing.T) {
	s := newTestServer()
	sender := bind(s, "u-sender", security.RoleUser)
	grantee := bind(s, "u-grantee", security.RoleUser)
	outsider := bind(s, "u-outsider", security.RoleUser)
	adminConn := bind(s, "u-admin", security.RoleAdmin)

	s.BroadcastActivity("sales", "u-sender", []string{"u-sender", "u-grantee"})

	f := recv(t, grantee)
	if f.Type != FrameNotification {
		t.Fatalf("want notification, got %s", f.Type)
	}
	var data NotificationData
	if err := json.Unmarshal(f.Data, &data); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if data.ModuleSlug != "sales" || data.SenderID != "u-sender" {
		t.Fatalf("notification payload mismatch: %+v", data)
	}

	// Admins are implicit grantees.
	if f := recv(t, adminConn); f.Type != FrameNotification {
		t.Fatalf("admin should receive the signal")
	}

	// The author and non-grantees hear nothing; the signal must not
	// leak module existence.
	assertIdle(t, sender)
	assertIdle(t, outsider)
}

func TestCallRouting(t *testing.T) {
	s := newTestServer()
	caller := bind(s, "u-caller", security.RoleUser)
	callee := bind(s, "u-callee", security.RoleUser)

	frame := Frame{Type: FrameCallUser, Data: json.RawMessage(`{"targetUserId":"u-callee","roomId":"room-1"}`)}
	s.handleCallUser(caller, frame)

	f := recv(t, callee)
	if f.Type != FrameIncomingCall {
		t.Fatalf("want incoming call, got %s", f.Type)
	}
	var call IncomingCallData
	if err := json.Unmarshal(f.Data, &call); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if call.CallerID != "u-caller" || call.CallerName != "u-caller" || call.RoomID != "room-1" {
		t.Fatalf("call payload mismatch: %+v", call)
	}
}

func TestCallUserOfflineTarget(t *testing.T) {
	s := newTestServer()
	caller := bind(s, "u-caller", security.RoleUser)

	frame := Frame{Type: FrameCallUser, Data: json.RawMessage(`{"targetUserId":"u-ghost","roomId":"room-1"}`)}
	s.handleCallUser(caller, frame)

	f := recv(t, caller)
	if f.Type != FrameCallUnavail {
		t.Fatalf("caller should learn the target is unavailable, got %s", f.Type)
	}
}

func TestActivityFromBridgeIsNotRepublished(t *testing.T) {
	// bridge == nil: deliverActivity alone must still reach locals.
	s := newTestServer()
	grantee := bind(s, "u1", security.RoleUser)

	s.deliverActivity("sales", "remote-sender", []string{"u1"})
	if f := recv(t, grantee); f.Type != FrameNotification {
		t.Fatalf("local delivery failed for bridged signal")
	}
}
