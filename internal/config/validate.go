package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/rndlabs/daily-stoic-waku/internal/schedule"
	logx "github.com/rndlabs/daily-stoic-waku/pkg/logx"
)

// Validate checks every section and returns all problems joined.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	var errs []error
	add := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	if _, ok := logx.ParseLevel(c.Logging.Level); !ok {
		add(fmt.Errorf("logging.level: unknown level %q", c.Logging.Level))
	}
	switch strings.ToLower(strings.TrimSpace(c.Logging.Format)) {
	case "", "text", "json":
	default:
		add(fmt.Errorf("logging.format: must be text or json, got %q", c.Logging.Format))
	}

	switch strings.ToLower(strings.TrimSpace(c.Transport.Driver)) {
	case DriverRedis:
		if strings.TrimSpace(c.Transport.Redis.Addr) == "" {
			add(errors.New("transport.redis.addr: required"))
		}
		if c.Transport.Redis.DB < 0 {
			add(errors.New("transport.redis.db: must be >= 0"))
		}
		_, err := ParseDurationField("transport.redis.dial_timeout", c.Transport.Redis.DialTimeout)
		add(err)
	case DriverMemory:
	default:
		add(fmt.Errorf("transport.driver: must be %s or %s, got %q", DriverRedis, DriverMemory, c.Transport.Driver))
	}

	if _, err := schedule.Parse(c.Broadcast.Schedule); err != nil {
		add(fmt.Errorf("broadcast.schedule: %w", err))
	}
	if tz := strings.TrimSpace(c.Broadcast.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			add(fmt.Errorf("broadcast.timezone: %w", err))
		}
	}
	_, err := ParseDurationField("broadcast.publish_timeout", c.Broadcast.PublishTimeout)
	add(err)

	if c.Readiness.MinPeers < 0 {
		add(errors.New("readiness.min_peers: must be >= 0"))
	}
	if c.Readiness.MaxAttempts < 0 {
		add(errors.New("readiness.max_attempts: must be >= 0"))
	}
	_, err = ParseDurationField("readiness.backoff", c.Readiness.Backoff)
	add(err)
	_, err = ParseDurationField("readiness.max_backoff", c.Readiness.MaxBackoff)
	add(err)

	if c.Listener.DecodeLogRate < 0 {
		add(errors.New("listener.decode_log_rate: must be >= 0"))
	}

	switch strings.ToLower(strings.TrimSpace(c.Journal.Driver)) {
	case "", JournalNone:
	case JournalFile, JournalSQLite:
		if strings.TrimSpace(c.Journal.Path) == "" {
			add(fmt.Errorf("journal.path: required for driver %q", c.Journal.Driver))
		}
		_, err = ParseDurationField("journal.busy_timeout", c.Journal.BusyTimeout)
		add(err)
	default:
		add(fmt.Errorf("journal.driver: unknown driver %q", c.Journal.Driver))
	}

	if c.HTTP.Enabled {
		if _, _, err := net.SplitHostPort(strings.TrimSpace(c.HTTP.Addr)); err != nil {
			add(fmt.Errorf("http.addr: %w", err))
		}
	}

	return errors.Join(errs...)
}
