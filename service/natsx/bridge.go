package natsx

import (
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"

	"NioBoard/logger"
)

// Bridge relays module activity signals between gateway instances over
// core NATS (fire-and-forget: an unsubscribed instance simply misses a
// signal, and its clients fall back to polling the unread endpoint).
type Bridge struct {
	nc      *nats.Conn
	subject string
	nodeID  string
	sub     *nats.Subscription
}

// Envelope is the wire form of a relayed activity signal. Origin keeps
// an instance from re-emitting its own publishes.
type Envelope struct {
	Origin     string   `json:"origin"`
	ModuleSlug string   `json:"moduleSlug"`
	SenderID   string   `json:"senderId"`
	AllowedIDs []string `json:"allowedIds"`
}

func Connect(url, subject, nodeID string) (*Bridge, error) {
	nc, err := nats.Connect(url,
		nats.Name("nioboard-"+nodeID),
		nats.ReconnectWait(500*time.Millisecond),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, errors.Wrap(err, "nats connect")
	}
	return &Bridge{nc: nc, subject: subject, nodeID: nodeID}, nil
}

// PublishActivity relays a local activity signal to sibling instances.
// Failures are logged and swallowed: the local fanout already ran.
func (b *Bridge) PublishActivity(moduleSlug, senderID string, allowedIDs []string) {
	if b == nil {
		return
	}
	raw, err := json.Marshal(Envelope{
		Origin:     b.nodeID,
		ModuleSlug: moduleSlug,
		SenderID:   senderID,
		AllowedIDs: allowedIDs,
	})
	if err != nil {
		return
	}
	if err := b.nc.Publish(b.subject, raw); err != nil {
		logger.Warnf("[natsx] publish activity failed: %v", err)
	}
}

// Subscribe registers the handler for signals published by sibling
// instances. Own publishes are filtered out by origin.
func (b *Bridge) Subscribe(handle func(Envelope)) error {
	if b == nil {
		return nil
	}
	sub, err := b.nc.Subscribe(b.subject, func(m *nats.Msg) {
		var env Envelope
		if err := json.Unmarshal(m.Data, &env); err != nil {
			logger.Warnf("[natsx] bad envelope: %v", err)
			return
		}
		if env.Origin == b.nodeID {
			return
		}
		handle(env)
	})
	if err != nil {
		return errors.Wrap(err, "nats subscribe")
	}
	b.sub = sub
	return nil
}

func (b *Bridge) Close() {
	if b == nil {
		return
	}
	if b.sub != nil {
		_ = b.sub.Unsubscribe()
	}
	b.nc.Close()
}
