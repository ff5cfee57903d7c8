package broadcaster

import (
	"context"
	"fmt"

	logx "github.com/rndlabs/daily-stoic-waku/pkg/logx"
)

// waitReady polls PeerCount until MinPeers is reached, backing off
// exponentially on the service clock between attempts.
func (s *Service) waitReady(ctx context.Context) error {
	backoff := s.cfg.ReadyBackoff
	var (
		peers   int
		lastErr error
	)
	for attempt := 1; attempt <= s.cfg.ReadyAttempts; attempt++ {
		n, err := s.tr.PeerCount(ctx)
		if err == nil {
			peers = n
			s.metrics.SetPeers(n)
			if n >= s.cfg.MinPeers {
				s.log.Info("transport ready", logx.Int("peers", n), logx.Int("attempt", attempt))
				return nil
			}
		}
		lastErr = err
		s.log.Debug("waiting for peers",
			logx.Int("peers", peers),
			logx.Int("min_peers", s.cfg.MinPeers),
			logx.Int("attempt", attempt),
			logx.Duration("backoff", backoff),
			logx.Err(err),
		)
		if attempt == s.cfg.ReadyAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %w", ErrNotReady, ctx.Err())
		case <-s.clock.After(backoff):
		}
		backoff *= 2
		if s.cfg.ReadyMaxBackoff > 0 && backoff > s.cfg.ReadyMaxBackoff {
			backoff = s.cfg.ReadyMaxBackoff
		}
	}

	if lastErr != nil {
		return fmt.Errorf("%w: %d/%d peers after %d attempts: %w", ErrNotReady, peers, s.cfg.MinPeers, s.cfg.ReadyAttempts, lastErr)
	}
	return fmt.Errorf("%w: %d/%d peers after %d attempts", ErrNotReady, peers, s.cfg.MinPeers, s.cfg.ReadyAttempts)
}
