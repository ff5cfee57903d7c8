package app

import (
	"github.com/coreos/go-systemd/v22/daemon"

	"github.com/rndlabs/daily-stoic-waku/internal/broadcaster"
	logx "github.com/rndlabs/daily-stoic-waku/pkg/logx"
)

// sdNotifier reports lifecycle changes to systemd (Type=notify units).
// Outside systemd every call is a no-op.
type sdNotifier struct {
	log logx.Logger
	// send is daemon.SdNotify; replaced in tests.
	send func(unsetEnvironment bool, state string) (bool, error)
}

func newSdNotifier(log logx.Logger) *sdNotifier {
	return &sdNotifier{log: log, send: daemon.SdNotify}
}

func (n *sdNotifier) notify(state string) {
	sent, err := n.send(false, state)
	if err != nil {
		n.log.Warn("sd_notify failed", logx.String("state", state), logx.Err(err))
		return
	}
	if sent {
		n.log.Debug("sd_notify sent", logx.String("state", state))
	}
}

// onState is installed as a broadcaster state hook.
func (n *sdNotifier) onState(st broadcaster.State) {
	switch st {
	case broadcaster.StateRunning:
		n.notify(daemon.SdNotifyReady + "\nSTATUS=broadcasting")
	case broadcaster.StateShuttingDown:
		n.notify(daemon.SdNotifyStopping + "\nSTATUS=shutting down")
	default:
		n.notify("STATUS=" + st.String())
	}
}
