package broadcaster

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/rndlabs/daily-stoic-waku/internal/eventbus"
	"github.com/rndlabs/daily-stoic-waku/internal/observability"
	"github.com/rndlabs/daily-stoic-waku/internal/protocol"
	"github.com/rndlabs/daily-stoic-waku/internal/schedule"
	logx "github.com/rndlabs/daily-stoic-waku/pkg/logx"
)

// runInterval broadcasts on every tick. The ticker is free-running:
// request-triggered broadcasts never reset it.
func (s *Service) runInterval(ctx context.Context, every time.Duration) error {
	t := s.clock.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.Chan():
			_, _ = s.BroadcastOnce(ctx, TriggerSchedule)
		}
	}
}

// newCron builds the cron runner for sched on wall-clock time in loc.
// The caller starts it.
func (s *Service) newCron(ctx context.Context, sched schedule.Parsed, loc *time.Location) (*cron.Cron, error) {
	c := cron.New(
		cron.WithParser(schedule.Parser),
		cron.WithLocation(loc),
		cron.WithChain(cron.Recover(cronLogger{s.log})),
	)
	if _, err := c.AddFunc(sched.Cron, func() {
		_, _ = s.BroadcastOnce(ctx, TriggerSchedule)
	}); err != nil {
		return nil, fmt.Errorf("schedule: %w", err)
	}
	return c, nil
}

// onMessage is the transport handler. It must not block: anything other
// than the request topic is dropped, requests are copied and queued.
func (s *Service) onMessage(topic string, payload []byte) {
	if topic != s.requestTopic {
		s.metrics.ObserveRequest(observability.ResultFiltered)
		s.log.Trace("ignoring message", logx.String("topic", topic), logx.Int("bytes", len(payload)))
		return
	}
	n, ok := s.queue.push(append([]byte(nil), payload...))
	if !ok {
		return
	}
	s.metrics.SetQueueDepth(n)
}

// drain decodes queued requests in arrival order. Each well-formed request
// yields exactly one broadcast; malformed ones are counted and dropped.
func (s *Service) drain(ctx context.Context) error {
	for {
		payload, ok := s.queue.pop(ctx)
		if !ok {
			return ctx.Err()
		}
		s.metrics.SetQueueDepth(s.queue.len())

		req, err := protocol.UnmarshalRequest(payload)
		if err != nil {
			s.metrics.ObserveRequest(observability.ResultRejected)
			s.publishEvent(eventbus.TypeRequestRejected, err)
			fields := []logx.Field{logx.Int("bytes", len(payload)), logx.Err(err)}
			if s.decodeLogs.Allow() {
				s.log.Warn("dropping malformed request", fields...)
			} else {
				s.log.Debug("dropping malformed request", fields...)
			}
			continue
		}

		s.metrics.ObserveRequest(observability.ResultAccepted)
		s.publishEvent(eventbus.TypeRequestAccepted, req)
		s.log.Debug("request received", logx.Time("requested_at", req.Time()))
		_, _ = s.BroadcastOnce(ctx, TriggerRequest)
	}
}

func (s *Service) publishEvent(typ string, data any) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(eventbus.Event{Type: typ, Time: s.clock.Now(), Data: data})
}

// cronLogger adapts logx to cron.Logger.
type cronLogger struct{ log logx.Logger }

func (l cronLogger) Info(msg string, kv ...any) {
	l.log.Debug("cron: "+msg, logx.Any("kv", kv))
}

func (l cronLogger) Error(err error, msg string, kv ...any) {
	l.log.Error("cron: "+msg, logx.Err(err), logx.Any("kv", kv))
}
