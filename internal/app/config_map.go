package app

import (
	"strings"
	"time"

	"github.com/rndlabs/daily-stoic-waku/internal/broadcaster"
	"github.com/rndlabs/daily-stoic-waku/internal/config"
	"github.com/rndlabs/daily-stoic-waku/internal/observability"
	"github.com/rndlabs/daily-stoic-waku/internal/storage"
	"github.com/rndlabs/daily-stoic-waku/internal/transport/redis"
	logx "github.com/rndlabs/daily-stoic-waku/pkg/logx"
)

func mapLogConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		Format:  cfg.Logging.Format,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

func mapBroadcasterConfig(cfg *config.Config) (broadcaster.Config, error) {
	def := broadcaster.DefaultConfig()

	publishTimeout, err := config.ParseDurationOrDefault("broadcast.publish_timeout", cfg.Broadcast.PublishTimeout, def.PublishTimeout)
	if err != nil {
		return broadcaster.Config{}, err
	}
	backoff, err := config.ParseDurationOrDefault("readiness.backoff", cfg.Readiness.Backoff, def.ReadyBackoff)
	if err != nil {
		return broadcaster.Config{}, err
	}
	maxBackoff, err := config.ParseDurationOrDefault("readiness.max_backoff", cfg.Readiness.MaxBackoff, def.ReadyMaxBackoff)
	if err != nil {
		return broadcaster.Config{}, err
	}
	attempts := cfg.Readiness.MaxAttempts
	if attempts <= 0 {
		attempts = def.ReadyAttempts
	}

	return broadcaster.Config{
		Schedule:         cfg.Broadcast.Schedule,
		Timezone:         strings.TrimSpace(cfg.Broadcast.Timezone),
		BroadcastOnStart: cfg.Broadcast.OnStart,
		MinPeers:         cfg.Readiness.MinPeers,
		ReadyAttempts:    attempts,
		ReadyBackoff:     backoff,
		ReadyMaxBackoff:  maxBackoff,
		PublishTimeout:   publishTimeout,
		DecodeLogRate:    cfg.Listener.DecodeLogRate,
	}, nil
}

func mapRedisConfig(cfg *config.Config) (redis.Config, error) {
	rc := cfg.Transport.Redis
	dial, err := config.ParseDurationOrDefault("transport.redis.dial_timeout", rc.DialTimeout, 5*time.Second)
	if err != nil {
		return redis.Config{}, err
	}
	return redis.Config{
		Addr:        strings.TrimSpace(rc.Addr),
		Username:    rc.Username,
		Password:    rc.Password,
		DB:          rc.DB,
		DialTimeout: dial,
		PeerTopics:  rc.PeerTopics,
	}, nil
}

// mapStorageConfig reports enabled=false when the journal is off.
func mapStorageConfig(cfg *config.Config) (storage.Config, bool, error) {
	jc := cfg.Journal
	driver := strings.ToLower(strings.TrimSpace(jc.Driver))
	if driver == "" || driver == config.JournalNone {
		return storage.Config{}, false, nil
	}
	busy, err := config.ParseDurationOrDefault("journal.busy_timeout", jc.BusyTimeout, time.Second)
	if err != nil {
		return storage.Config{}, false, err
	}
	return storage.Config{Driver: driver, Path: strings.TrimSpace(jc.Path), BusyTimeout: busy}, true, nil
}

func mapServerConfig(cfg *config.Config) observability.ServerConfig {
	return observability.ServerConfig{
		Addr:          strings.TrimSpace(cfg.HTTP.Addr),
		Pprof:         cfg.HTTP.Pprof,
		Token:         strings.TrimSpace(cfg.HTTP.Token),
		AllowInsecure: cfg.HTTP.AllowInsecure,
	}
}
