package app

import (
	"context"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	logx "hwbot/pkg/logx"
)

const (
	sdReady    = daemon.SdNotifyReady
	sdStopping = daemon.SdNotifyStopping
)

// sdNotify is a no-op outside systemd (NOTIFY_SOCKET unset).
func sdNotify(log logx.Logger, state string) {
	sent, err := daemon.SdNotify(false, state)
	if err != nil {
		log.Warn("sd_notify failed", logx.String("state", state), logx.Err(err))
		return
	}
	if sent {
		log.Debug("sd_notify sent", logx.String("state", state))
	}
}

// watchdogLoop pings the systemd watchdog at half its interval until ctx is done.
// Pings are withheld while stalled reports true, letting systemd restart the unit.
// It returns immediately when WatchdogSec is not configured.
func watchdogLoop(ctx context.Context, log logx.Logger, stalled func() bool) error {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil {
		return err
	}
	if interval <= 0 {
		return nil
	}
	log.Info("systemd watchdog enabled", logx.Duration("interval", interval))

	t := time.NewTicker(interval / 2)
	defer t.Stop()
	withheld := false
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
		}
		if stalled != nil && stalled() {
			if !withheld {
				log.Warn("poll cycle stalled; withholding watchdog ping")
				withheld = true
			}
			continue
		}
		if withheld {
			log.Info("poll cycle recovered; resuming watchdog pings")
			withheld = false
		}
		sdNotify(log, daemon.SdNotifyWatchdog)
	}
}
