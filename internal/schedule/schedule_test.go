package schedule

import (
	"testing"
	"time"
)

func TestParseVariants(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		raw      string
		kind     Kind
		source   string
		duration time.Duration
	}{
		{name: "default", raw: "24h", kind: KindInterval, source: "duration", duration: 24 * time.Hour},
		{name: "cron", raw: "0 7 * * *", kind: KindCron, source: "cron"},
		{name: "cron seconds", raw: "30 0 7 * * *", kind: KindCron, source: "cron"},
		{name: "descriptor", raw: "@daily", kind: KindCron, source: "cron"},
		{name: "prefixed cron", raw: "cron:0 0 * * *", kind: KindCron, source: "cron"},
		{name: "prefixed interval", raw: "interval:45s", kind: KindInterval, source: "duration", duration: 45 * time.Second},
		{name: "every prefix", raw: "EVERY: 02:30", kind: KindInterval, source: "hhmm", duration: 150 * time.Minute},
		{name: "hhmm", raw: "24:00", kind: KindInterval, source: "hhmm", duration: 24 * time.Hour},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.raw)
			if err != nil {
				t.Fatalf("Parse(%q) error: %v", tt.raw, err)
			}
			if got.Kind != tt.kind {
				t.Fatalf("Kind = %v, want %v", got.Kind, tt.kind)
			}
			if got.Source != tt.source {
				t.Fatalf("Source = %s, want %s", got.Source, tt.source)
			}
			if tt.kind == KindInterval && got.Every != tt.duration {
				t.Fatalf("Every = %v, want %v", got.Every, tt.duration)
			}
		})
	}
}

func TestParseInvalid(t *testing.T) {
	t.Parallel()
	for _, raw := range []string{"", "not-a-schedule", "0s", "-5m", "00:00", "01:75", "cron:", "interval:", "@sometimes", "61 * * * *"} {
		if _, err := Parse(raw); err == nil {
			t.Fatalf("Parse(%q): expected error", raw)
		}
	}
}

func TestParsedString(t *testing.T) {
	t.Parallel()
	p, _ := Parse("@daily")
	if p.String() != "cron(@daily)" {
		t.Fatalf("String = %q", p.String())
	}
	p, _ = Parse("90m")
	if p.String() != "every 1h30m0s" {
		t.Fatalf("String = %q", p.String())
	}
}
