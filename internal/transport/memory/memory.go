// Package memory is an in-process relay network. Every Node joined to a
// Hub sees each message published on the topics it subscribed to,
// including its own. Delivery is asynchronous and best-effort: a node
// whose inbox is full drops messages, like a congested relay peer.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/rndlabs/daily-stoic-waku/internal/eventbus"
	"github.com/rndlabs/daily-stoic-waku/internal/transport"
)

const defaultInbox = 256

type Hub struct {
	bus   eventbus.Bus
	inbox int

	mu    sync.Mutex
	nodes map[*Node]struct{}
}

type HubOption func(*Hub)

// WithInbox sets the per-subscription buffer size.
func WithInbox(n int) HubOption {
	return func(h *Hub) {
		if n > 0 {
			h.inbox = n
		}
	}
}

func NewHub(opts ...HubOption) *Hub {
	h := &Hub{bus: eventbus.New(), inbox: defaultInbox, nodes: map[*Node]struct{}{}}
	for _, o := range opts {
		o(h)
	}
	return h
}

// Join attaches a new node to the hub.
func (h *Hub) Join() *Node {
	n := &Node{hub: h}
	h.mu.Lock()
	h.nodes[n] = struct{}{}
	h.mu.Unlock()
	return n
}

func (h *Hub) leave(n *Node) {
	h.mu.Lock()
	delete(h.nodes, n)
	h.mu.Unlock()
}

func (h *Hub) size() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.nodes)
}

type Node struct {
	hub *Hub

	mu     sync.Mutex
	closed bool
	unsubs []func()
}

var _ transport.Transport = (*Node)(nil)

func (n *Node) Publish(ctx context.Context, topic string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", transport.ErrPublish, err)
	}
	n.mu.Lock()
	closed := n.closed
	n.mu.Unlock()
	if closed {
		return transport.ErrClosed
	}
	n.hub.bus.Publish(eventbus.Event{Type: topic, Data: append([]byte(nil), payload...)})
	return nil
}

func (n *Node) Subscribe(ctx context.Context, topics []string, h transport.Handler) (func(), error) {
	if h == nil {
		return nil, fmt.Errorf("memory: nil handler")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	want := make(map[string]struct{}, len(topics))
	for _, t := range topics {
		want[t] = struct{}{}
	}

	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return nil, transport.ErrClosed
	}
	ch, unsub := n.hub.bus.Subscribe(n.hub.inbox)
	n.unsubs = append(n.unsubs, unsub)
	n.mu.Unlock()

	go func() {
		for e := range ch {
			if _, ok := want[e.Type]; !ok {
				continue
			}
			payload, _ := e.Data.([]byte)
			h(e.Type, payload)
		}
	}()
	return unsub, nil
}

// PeerCount reports the other nodes joined to the hub.
func (n *Node) PeerCount(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	n.mu.Lock()
	closed := n.closed
	n.mu.Unlock()
	if closed {
		return 0, transport.ErrClosed
	}
	return max(0, n.hub.size()-1), nil
}

func (n *Node) Close() error {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return nil
	}
	n.closed = true
	unsubs := n.unsubs
	n.unsubs = nil
	n.mu.Unlock()

	for _, u := range unsubs {
		u()
	}
	n.hub.leave(n)
	return nil
}
