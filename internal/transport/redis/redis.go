// Package redis carries dailystoic traffic over Redis Pub/Sub. Content
// topics map one-to-one onto Redis channels; peers are the other clients
// subscribed to the configured peer topics.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/rndlabs/daily-stoic-waku/internal/protocol"
	"github.com/rndlabs/daily-stoic-waku/internal/transport"
	logx "github.com/rndlabs/daily-stoic-waku/pkg/logx"
)

type Config struct {
	Addr        string
	Username    string
	Password    string
	DB          int
	DialTimeout time.Duration
	// PeerTopics are the channels whose subscribers count as peers.
	// Defaults to the dailystoic broadcast and request topics, so peers are
	// visible before this node subscribes.
	PeerTopics []string
}

type Transport struct {
	rdb        *goredis.Client
	log        logx.Logger
	peerTopics []string

	mu     sync.Mutex
	closed bool
	own    map[string]int // channel -> subscriptions held by this node
	subs   map[*goredis.PubSub]struct{}
}

var _ transport.Transport = (*Transport)(nil)

func New(cfg Config, log logx.Logger) (*Transport, error) {
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		return nil, errors.New("redis: addr is required")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	dial := cfg.DialTimeout
	if dial <= 0 {
		dial = 5 * time.Second
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		Username:    cfg.Username,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: dial,
		PoolTimeout: 5 * time.Second,
		PoolSize:    10,
		Protocol:    2,
	})
	peerTopics := append([]string(nil), cfg.PeerTopics...)
	if len(peerTopics) == 0 {
		peerTopics = []string{protocol.BroadcastTopic.String(), protocol.RequestTopic.String()}
	}
	return &Transport{
		rdb:        rdb,
		log:        log,
		peerTopics: peerTopics,
		own:        map[string]int{},
		subs:       map[*goredis.PubSub]struct{}{},
	}, nil
}

func (t *Transport) isClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

func (t *Transport) Publish(ctx context.Context, topic string, payload []byte) error {
	if t.isClosed() {
		return transport.ErrClosed
	}
	if err := t.rdb.Publish(ctx, topic, payload).Err(); err != nil {
		return fmt.Errorf("%w: redis publish %s: %v", transport.ErrPublish, topic, err)
	}
	return nil
}

func (t *Transport) Subscribe(ctx context.Context, topics []string, h transport.Handler) (func(), error) {
	if h == nil {
		return nil, errors.New("redis: nil handler")
	}
	if len(topics) == 0 {
		return nil, errors.New("redis: no topics")
	}
	if t.isClosed() {
		return nil, transport.ErrClosed
	}

	ps := t.rdb.Subscribe(ctx, topics...)
	// Wait for the server to confirm so the subscription is live on return.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("redis subscribe: %w", err)
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		_ = ps.Close()
		return nil, transport.ErrClosed
	}
	t.subs[ps] = struct{}{}
	for _, tp := range topics {
		t.own[tp]++
	}
	t.mu.Unlock()

	msgs := ps.Channel()
	go func() {
		for m := range msgs {
			h(m.Channel, []byte(m.Payload))
		}
		t.log.Debug("redis subscription closed", logx.Any("topics", topics))
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			t.mu.Lock()
			if _, ok := t.subs[ps]; ok {
				delete(t.subs, ps)
				for _, tp := range topics {
					if t.own[tp]--; t.own[tp] <= 0 {
						delete(t.own, tp)
					}
				}
			}
			t.mu.Unlock()
			_ = ps.Close()
		})
	}, nil
}

// PeerCount pings the server, then reports the largest subscriber count
// across the peer topics, excluding this node's own subscriptions.
func (t *Transport) PeerCount(ctx context.Context) (int, error) {
	if t.isClosed() {
		return 0, transport.ErrClosed
	}
	if err := t.rdb.Ping(ctx).Err(); err != nil {
		return 0, fmt.Errorf("redis ping: %w", err)
	}

	topics := t.peerTopics
	t.mu.Lock()
	own := make(map[string]int, len(t.own))
	for k, v := range t.own {
		own[k] = v
	}
	t.mu.Unlock()

	counts, err := t.rdb.PubSubNumSub(ctx, topics...).Result()
	if err != nil {
		return 0, fmt.Errorf("redis pubsub numsub: %w", err)
	}
	peers := 0
	for _, tp := range topics {
		n := int(counts[tp]) - own[tp]
		if n > peers {
			peers = n
		}
	}
	return peers, nil
}

func (t *Transport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	subs := t.subs
	t.subs = map[*goredis.PubSub]struct{}{}
	t.own = map[string]int{}
	t.mu.Unlock()

	for ps := range subs {
		_ = ps.Close()
	}
	return t.rdb.Close()
}
