package broadcaster

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/rndlabs/daily-stoic-waku/internal/eventbus"
	"github.com/rndlabs/daily-stoic-waku/internal/protocol"
	"github.com/rndlabs/daily-stoic-waku/internal/storage"
	logx "github.com/rndlabs/daily-stoic-waku/pkg/logx"
)

// BroadcastOnce picks a quote, stamps it with the current time and
// publishes it on the broadcast topic. Failures are logged and counted,
// never retried.
func (s *Service) BroadcastOnce(ctx context.Context, trigger Trigger) (protocol.DailyStoic, error) {
	q := s.quotes.Pick()
	msg := protocol.NewDailyStoic(q.Author, q.Text, s.clock.Now())
	payload := msg.Marshal()
	id := uuid.NewString()

	pctx := ctx
	if s.cfg.PublishTimeout > 0 {
		var cancel context.CancelFunc
		pctx, cancel = context.WithTimeout(ctx, s.cfg.PublishTimeout)
		defer cancel()
	}

	start := s.clock.Now()
	err := s.tr.Publish(pctx, s.broadcastTopic, payload)
	took := s.clock.Since(start)
	if err != nil {
		err = fmt.Errorf("publish %s: %w", trigger, err)
	}

	s.metrics.ObserveBroadcast(string(trigger), err, took)

	fields := []logx.Field{
		logx.String("id", id),
		logx.String("trigger", string(trigger)),
		logx.String("author", msg.Author),
		logx.Uint64("timestamp", msg.Timestamp),
		logx.Int("bytes", len(payload)),
	}
	evType := eventbus.TypeBroadcastPublished
	if err != nil {
		evType = eventbus.TypeBroadcastFailed
		s.log.Error("broadcast failed", append(fields, logx.Err(err))...)
	} else {
		s.log.Info("broadcast published", fields...)
	}
	s.publishEvent(evType, Result{ID: id, Trigger: trigger, Message: msg, Err: err})

	if s.journal != nil {
		rec := storage.BroadcastRecord{
			ID:        id,
			At:        start,
			Trigger:   string(trigger),
			Topic:     s.broadcastTopic,
			Author:    msg.Author,
			Timestamp: msg.Timestamp,
			Size:      len(payload),
			OK:        err == nil,
			TookMS:    took.Milliseconds(),
		}
		if err != nil {
			rec.Error = err.Error()
		}
		if jerr := s.journal.AppendBroadcast(context.WithoutCancel(ctx), rec); jerr != nil {
			s.log.Warn("journal append failed", logx.String("id", id), logx.Err(jerr))
		}
	}

	return msg, err
}
