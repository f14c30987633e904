package chat

import (
	"sync"

	"NioBoard/tools/security"
)

// Client is one live websocket. It starts anonymous; a register frame
// binds it to a principal. Module subscriptions are per-connection and
// die with it (a reconnect re-joins from scratch).
type Client struct {
	mu        sync.RWMutex
	principal security.Principal
	bound     bool

	send chan []byte
	subs map[string]struct{}

	closeOnce sync.Once
	closed    chan struct{}
}

func newClient(sendBuf int) *Client {
	return &Client{
		send:   make(chan []byte, sendBuf),
		subs:   make(map[string]struct{}),
		closed: make(chan struct{}),
	}
}

// identity snapshots the binding state. The read loop, the write pump
// and the fanout all read it from their own goroutines while Bind
// writes it, so every access goes through the client mutex.
func (c *Client) identity() (security.Principal, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.principal, c.bound
}

func (c *Client) setIdentity(p security.Principal) {
	c.mu.Lock()
	c.principal = p
	c.bound = true
	c.mu.Unlock()
}

// enqueue never blocks; a slow client just misses the payload.
func (c *Client) enqueue(payload []byte) bool {
	if payload == nil {
		return false
	}
	select {
	case <-c.closed:
		return false
	case c.send <- payload:
		return true
	default:
		return false
	}
}

func (c *Client) shutdown() {
	c.closeOnce.Do(func() { close(c.closed) })
}

// Registry is the process-wide presence state: which principal owns
// which live connection, and which module channels each connection has
// joined. It is owned by the gateway server (injected, not a package
// singleton) and must tolerate concurrent register/unregister/lookup.
//
// Policy: one binding per principal, last registration wins; the evicted
// connection is shut down. A second browser tab steals the realtime
// session. Deliberate, see DESIGN.md.
type Registry struct {
	mu     sync.RWMutex
	byUser map[string]*Client
}

func NewRegistry() *Registry {
	return &Registry{byUser: make(map[string]*Client)}
}

// Bind attaches the principal to the client, evicting any prior
// binding. Returns the evicted client, if any, so the caller can close
// its socket outside the lock.
func (r *Registry) Bind(c *Client, p security.Principal) (evicted *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if old, ok := r.byUser[p.ID]; ok && old != c {
		evicted = old
	}
	c.setIdentity(p)
	r.byUser[p.ID] = c
	return evicted
}

// Unbind removes the client's binding if it is still the current one
// (a later registration may have already replaced it). Reports whether
// this client held the current binding, so only the owning connection
// tears down shared presence state.
func (r *Registry) Unbind(c *Client) bool {
	p, bound := c.identity()
	if !bound {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.byUser[p.ID]; ok && cur == c {
		delete(r.byUser, p.ID)
		return true
	}
	return false
}

func (r *Registry) Lookup(principalID string) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byUser[principalID]
	return c, ok
}

// Route delivers an opaque signaling payload to the target's current
// binding; absent or slow targets drop it silently (no queue, no retry).
func (r *Registry) Route(targetID string, payload []byte) bool {
	c, ok := r.Lookup(targetID)
	if !ok {
		return false
	}
	return c.enqueue(payload)
}

// Subscribe joins the client to a module channel. Caller has already
// checked the access grant.
func (r *Registry) Subscribe(c *Client, moduleSlug string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c.subs[moduleSlug] = struct{}{}
}

// Subscribers snapshots the clients joined to a module channel.
func (r *Registry) Subscribers(moduleSlug string) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Client
	for _, c := range r.byUser {
		if _, ok := c.subs[moduleSlug]; ok {
			out = append(out, c)
		}
	}
	return out
}

// Connected snapshots every bound client.
func (r *Registry) Connected() []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Client, 0, len(r.byUser))
	for _, c := range r.byUser {
		out = append(out, c)
	}
	return out
}
