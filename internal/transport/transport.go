// Package transport is the boundary between the broadcaster and the
// publish/subscribe network that carries its messages.
//
// Drivers live in subpackages. They only move bytes: peer discovery,
// relaying and delivery guarantees belong to the network itself.
package transport

import (
	"context"
	"errors"
)

var (
	// ErrPublish wraps a publish the local node refused to accept.
	ErrPublish = errors.New("publish rejected")
	// ErrClosed is returned by every operation after Close.
	ErrClosed = errors.New("transport closed")
)

// Handler receives inbound messages. Drivers may call it from their own
// delivery goroutine, so it must return quickly and never block.
type Handler func(topic string, payload []byte)

type Transport interface {
	// Publish hands payload to the local node for relay. A nil error means
	// the node accepted it, not that any peer received it.
	Publish(ctx context.Context, topic string, payload []byte) error
	// Subscribe delivers every message on topics to h, once per message.
	// Ordering across senders is not guaranteed.
	Subscribe(ctx context.Context, topics []string, h Handler) (unsubscribe func(), err error)
	// PeerCount reports how many remote peers are currently reachable.
	PeerCount(ctx context.Context) (int, error)
	Close() error
}
