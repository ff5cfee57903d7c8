package config

import (
	"reflect"
	"strings"

	logx "github.com/rndlabs/daily-stoic-waku/pkg/logx"
)

// SummarizeConfigChange returns (1) the list of changed sections and
// (2) safe structured attrs for logging (never includes passwords).
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 7)
	attrs := make([]logx.Field, 0, 16)

	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
		)
	}

	if !reflect.DeepEqual(oldCfg.Transport, newCfg.Transport) {
		changed = append(changed, "transport")
		attrs = append(attrs,
			logx.String("transport.driver", newCfg.Transport.Driver),
			logx.String("transport.redis.addr", strings.TrimSpace(newCfg.Transport.Redis.Addr)),
			logx.Bool("transport.redis.password_set", newCfg.Transport.Redis.Password != ""),
		)
	}

	if oldCfg.Broadcast != newCfg.Broadcast {
		changed = append(changed, "broadcast")
		attrs = append(attrs,
			logx.String("broadcast.schedule", newCfg.Broadcast.Schedule),
			logx.String("broadcast.timezone", newCfg.Broadcast.Timezone),
			logx.Bool("broadcast.on_start", newCfg.Broadcast.OnStart),
		)
	}

	if oldCfg.Readiness != newCfg.Readiness {
		changed = append(changed, "readiness")
		attrs = append(attrs, logx.Int("readiness.min_peers", newCfg.Readiness.MinPeers))
	}

	if oldCfg.Listener != newCfg.Listener {
		changed = append(changed, "listener")
		attrs = append(attrs, logx.Float64("listener.decode_log_rate", newCfg.Listener.DecodeLogRate))
	}

	if oldCfg.Journal != newCfg.Journal {
		changed = append(changed, "journal")
		attrs = append(attrs,
			logx.String("journal.driver", newCfg.Journal.Driver),
			logx.String("journal.path", newCfg.Journal.Path),
		)
	}

	if oldCfg.HTTP != newCfg.HTTP {
		changed = append(changed, "http")
		attrs = append(attrs,
			logx.Bool("http.enabled", newCfg.HTTP.Enabled),
			logx.String("http.addr", newCfg.HTTP.Addr),
			logx.Bool("http.pprof", newCfg.HTTP.Pprof),
			logx.Bool("http.token_set", newCfg.HTTP.Token != ""),
		)
	}

	return changed, attrs
}

// RestartRequired reports which changed sections cannot be hot-applied.
func RestartRequired(changed []string) []string {
	out := make([]string, 0, len(changed))
	for _, s := range changed {
		if s != "logging" {
			out = append(out, s)
		}
	}
	return out
}
