// Package schedule parses broadcast schedule strings into either a cron
// expression or a fixed interval.
package schedule

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

type Kind int

const (
	KindCron Kind = iota
	KindInterval
)

func (k Kind) String() string {
	if k == KindCron {
		return "cron"
	}
	return "interval"
}

// Parsed represents a parsed schedule string.
//
// Supported forms:
//   - Cron: "0 7 * * *", "30 0 7 * * *" (optional seconds), "@daily", "@every 6h"
//   - Interval duration: "24h", "2h30m"
//   - Interval HH:MM: "24:00" (24 hours), "02:30" (2 hours 30 minutes)
//
// Optional prefixes:
//   - "cron:" forces cron parsing
//   - "interval:" or "every:" forces interval parsing
type Parsed struct {
	Kind   Kind
	Cron   string
	Every  time.Duration
	Source string // "cron" | "duration" | "hhmm"
}

func (p Parsed) String() string {
	if p.Kind == KindCron {
		return "cron(" + p.Cron + ")"
	}
	return "every " + p.Every.String()
}

// Parser is the cron parser used for every cron schedule: standard five
// fields, an optional leading seconds field, and descriptors.
var Parser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

var reHHMM = regexp.MustCompile(`^\s*(\d{1,3}):(\d{2})\s*$`)

// Parse parses and validates a schedule string.
func Parse(raw string) (Parsed, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Parsed{}, fmt.Errorf("schedule required")
	}

	low := strings.ToLower(s)
	switch {
	case strings.HasPrefix(low, "cron:"):
		return parseCron(strings.TrimSpace(s[len("cron:"):]))
	case strings.HasPrefix(low, "interval:"):
		return parseInterval(s[len("interval:"):])
	case strings.HasPrefix(low, "every:"):
		return parseInterval(s[len("every:"):])
	}

	// Any whitespace or a leading '@' means cron.
	if strings.ContainsAny(s, " \t\n\r") || strings.HasPrefix(s, "@") {
		return parseCron(s)
	}
	if reHHMM.MatchString(s) {
		return parseInterval(s)
	}
	if d, err := time.ParseDuration(s); err == nil {
		if d <= 0 {
			return Parsed{}, fmt.Errorf("interval must be > 0")
		}
		return Parsed{Kind: KindInterval, Every: d, Source: "duration"}, nil
	}

	return Parsed{}, fmt.Errorf(
		"invalid schedule %q (use cron like '0 7 * * *', HH:MM like '24:00', or duration like '24h')",
		raw,
	)
}

func parseCron(expr string) (Parsed, error) {
	if expr == "" {
		return Parsed{}, fmt.Errorf("cron schedule required after 'cron:'")
	}
	if _, err := Parser.Parse(expr); err != nil {
		return Parsed{}, fmt.Errorf("invalid cron %q: %w", expr, err)
	}
	return Parsed{Kind: KindCron, Cron: expr, Source: "cron"}, nil
}

func parseInterval(v string) (Parsed, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return Parsed{}, fmt.Errorf("interval required")
	}
	if m := reHHMM.FindStringSubmatch(v); m != nil {
		var hh int
		for i := 0; i < len(m[1]); i++ {
			hh = hh*10 + int(m[1][i]-'0')
		}
		mm := int(m[2][0]-'0')*10 + int(m[2][1]-'0')
		if mm > 59 {
			return Parsed{}, fmt.Errorf("invalid minutes in %q", v)
		}
		d := time.Duration(hh)*time.Hour + time.Duration(mm)*time.Minute
		if d <= 0 {
			return Parsed{}, fmt.Errorf("interval must be > 0")
		}
		return Parsed{Kind: KindInterval, Every: d, Source: "hhmm"}, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return Parsed{}, fmt.Errorf("invalid interval %q (use HH:MM or Go duration like '24h')", v)
	}
	if d <= 0 {
		return Parsed{}, fmt.Errorf("interval must be > 0")
	}
	return Parsed{Kind: KindInterval, Every: d, Source: "duration"}, nil
}
