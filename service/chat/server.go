package chat

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"NioBoard/logger"
	"NioBoard/module/board"
	"NioBoard/module/message"
	"NioBoard/service/natsx"
	redisstore "NioBoard/service/storage/redis"
	"NioBoard/tools/security"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// AccessChecker is the grant authority the gateway consults before a
// connection may join a module channel.
type AccessChecker interface {
	RequireAccess(ctx context.Context, p security.Principal, slug string) (board.Module, error)
}

type Config struct {
	JWT         security.Options
	NodeID      string
	PresenceTTL time.Duration // redis mirror TTL, default 60s
	SendBuffer  int           // per-connection send queue, default 64
}

// Server owns the gateway state: the presence registry, the fanout
// pool, and (optionally) the NATS bridge to sibling instances.
type Server struct {
	cfg    Config
	reg    *Registry
	fan    *Fanout
	access AccessChecker
	bridge *natsx.Bridge
}

func NewServer(cfg Config, access AccessChecker, bridge *natsx.Bridge) *Server {
	if cfg.PresenceTTL <= 0 {
		cfg.PresenceTTL = 60 * time.Second
	}
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = 64
	}
	return &Server{
		cfg:    cfg,
		reg:    NewRegistry(),
		fan:    NewFanout(4, 512),
		access: access,
		bridge: bridge,
	}
}

func (s *Server) Registry() *Registry { return s.reg }

// StartBridge begins re-emitting sibling instances' activity signals to
// this instance's connections. No-op when the bridge is nil.
func (s *Server) StartBridge() error {
	if s.bridge == nil {
		return nil
	}
	return s.bridge.Subscribe(func(env natsx.Envelope) {
		s.deliverActivity(env.ModuleSlug, env.SenderID, env.AllowedIDs)
	})
}

// BroadcastMessage pushes the full message to connections that joined
// the module's chat channel.
func (s *Server) BroadcastMessage(moduleSlug string, msg message.Message) {
	payload := EncodeFrame(FrameNewMessage, msg)
	s.fan.Broadcast(s.reg.Subscribers(moduleSlug), payload)
}

// BroadcastActivity pushes the lightweight "module has new activity"
// signal — but only to connected principals holding the module grant
// (admins always qualify), never to the author. Filtering server-side
// keeps module existence from leaking to principals without access.
func (s *Server) BroadcastActivity(moduleSlug, senderID string, allowedUserIDs []string) {
	s.deliverActivity(moduleSlug, senderID, allowedUserIDs)
	if s.bridge != nil {
		s.bridge.PublishActivity(moduleSlug, senderID, allowedUserIDs)
	}
}

func (s *Server) deliverActivity(moduleSlug, senderID string, allowedUserIDs []string) {
	allowed := make(map[string]struct{}, len(allowedUserIDs))
	for _, id := range allowedUserIDs {
		allowed[id] = struct{}{}
	}
	var targets []*Client
	for _, c := range s.reg.Connected() {
		p, bound := c.identity()
		if !bound || p.ID == senderID {
			continue
		}
		if _, ok := allowed[p.ID]; !ok && !p.IsAdmin() {
			continue
		}
		targets = append(targets, c)
	}
	payload := EncodeFrame(FrameNotification, NotificationData{ModuleSlug: moduleSlug, SenderID: senderID})
	s.fan.Broadcast(targets, payload)
}

// HandleWS upgrades the connection and runs its read loop. Lifecycle:
// Connected (anonymous) -> Identified (register frame) -> Disconnected.
// There is no resume; a reconnect starts over and re-joins its modules.
func (s *Server) HandleWS(c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Infof("[ws] upgrade failed: %v", err)
		return
	}

	cl := newClient(s.cfg.SendBuffer)
	done := make(chan struct{})
	go s.writePump(ws, cl, done)

	for {
		_, raw, rerr := ws.ReadMessage()
		if rerr != nil {
			if websocket.IsCloseError(rerr,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
			) {
				logger.Debug("[ws] peer closed")
			} else {
				logger.Infof("[ws] read err: %v", rerr)
			}
			break
		}
		frame, perr := ParseFrame(raw)
		if perr != nil {
			logger.Infof("[ws] bad frame: %v", perr)
			continue
		}
		s.dispatch(c.Request.Context(), cl, frame)
	}

	cl.shutdown()
	// Only the connection that still owns the binding clears the
	// presence key; an evicted connection must not delete the key its
	// successor just wrote.
	if s.reg.Unbind(cl) {
		p, _ := cl.identity()
		octx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := redisstore.PresenceOffline(octx, p.ID); err != nil {
			logger.Warnf("[ws] presence offline %s: %v", p.ID, err)
		}
		cancel()
	}
	<-done
	_ = ws.Close()
}

func (s *Server) dispatch(ctx context.Context, cl *Client, frame Frame) {
	switch frame.Type {
	case FrameRegister:
		s.handleRegister(ctx, cl, frame)
	case FrameJoin:
		s.handleJoin(ctx, cl, frame)
	case FrameCallUser:
		s.handleCallUser(cl, frame)
	case FrameCallGrp:
		s.handleCallGroup(cl, frame)
	default:
		logger.Debug("[ws] unknown frame type " + frame.Type)
	}
}

func (s *Server) handleRegister(ctx context.Context, cl *Client, frame Frame) {
	var data RegisterData
	if err := decodeData(frame, &data); err != nil {
		cl.enqueue(EncodeFrame(FrameError, gin.H{"msg": "malformed register"}))
		return
	}
	p, err := security.Verify(s.cfg.JWT, data.Token)
	if err != nil {
		cl.enqueue(EncodeFrame(FrameError, gin.H{"msg": "invalid token"}))
		return
	}
	if evicted := s.reg.Bind(cl, p); evicted != nil {
		// Single-binding policy: the older session loses its socket.
		evicted.shutdown()
	}
	if err := redisstore.PresenceOnline(ctx, p.ID, s.cfg.NodeID, s.cfg.PresenceTTL); err != nil {
		logger.Warnf("[ws] presence online %s: %v", p.ID, err)
	}
	logger.Infof("[ws] registered user %s", p.ID)
}

func (s *Server) handleJoin(ctx context.Context, cl *Client, frame Frame) {
	p, bound := cl.identity()
	if !bound {
		cl.enqueue(EncodeFrame(FrameError, gin.H{"msg": "register first"}))
		return
	}
	var data JoinData
	if err := decodeData(frame, &data); err != nil {
		cl.enqueue(EncodeFrame(FrameError, gin.H{"msg": "malformed join"}))
		return
	}
	if _, err := s.access.RequireAccess(ctx, p, data.ModuleSlug); err != nil {
		cl.enqueue(EncodeFrame(FrameError, gin.H{"msg": "access denied"}))
		return
	}
	s.reg.Subscribe(cl, data.ModuleSlug)
}

func (s *Server) handleCallUser(cl *Client, frame Frame) {
	p, bound := cl.identity()
	if !bound {
		return
	}
	var data CallUserData
	if err := decodeData(frame, &data); err != nil {
		return
	}
	payload := EncodeFrame(FrameIncomingCall, IncomingCallData{
		CallerID:   p.ID,
		CallerName: p.Username,
		RoomID:     data.RoomID,
	})
	if !s.reg.Route(data.TargetUserID, payload) {
		cl.enqueue(EncodeFrame(FrameCallUnavail, gin.H{"targetUserId": data.TargetUserID}))
	}
}

func (s *Server) handleCallGroup(cl *Client, frame Frame) {
	p, bound := cl.identity()
	if !bound {
		return
	}
	var data CallGroupData
	if err := decodeData(frame, &data); err != nil {
		return
	}
	payload := EncodeFrame(FrameIncomingCall, IncomingCallData{
		CallerID:   p.ID,
		CallerName: p.Username,
		RoomID:     data.RoomID,
	})
	for _, target := range data.TargetUserIDs {
		// Offline members are skipped silently; the call proceeds with
		// whoever is reachable.
		s.reg.Route(target, payload)
	}
}

// writePump owns all writes to the socket: queued payloads, pings, and
// the periodic presence TTL renewal for bound clients.
func (s *Server) writePump(ws *websocket.Conn, cl *Client, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.cfg.PresenceTTL / 3)
	defer ticker.Stop()
	for {
		select {
		case payload := <-cl.send:
			_ = ws.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := ws.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = ws.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
			if p, bound := cl.identity(); bound {
				rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				if err := redisstore.PresenceOnline(rctx, p.ID, s.cfg.NodeID, s.cfg.PresenceTTL); err != nil {
					logger.Debug("[ws] presence renew failed: " + err.Error())
				}
				cancel()
			}
		case <-cl.closed:
			_ = ws.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
