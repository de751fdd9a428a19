package portal

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

const DefaultHeartbeatInterval = 60 * time.Second

// Heartbeater pings the portal on a fixed interval until ctx is done.
type Heartbeater struct {
	Client    *Client
	GatewayID string
	MAC       string
	Interval  time.Duration
	Log       *logrus.Entry

	// Stats fills the load figures for each ping. Nil sends zeros.
	Stats func() Heartbeat
}

func (h *Heartbeater) Run(ctx context.Context) error {
	interval := h.Interval
	if interval <= 0 {
		interval = DefaultHeartbeatInterval
	}
	log := h.Log
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	started := time.Now()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		var hb Heartbeat
		if h.Stats != nil {
			hb = h.Stats()
		}
		hb.GatewayID = h.GatewayID
		hb.MAC = h.MAC
		if hb.WifidogUptime == 0 {
			hb.WifidogUptime = int64(time.Since(started).Seconds())
		}

		if err := h.Client.Ping(ctx, hb); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.WithError(err).Warn("ping failed")
		} else {
			log.Debug("pong")
		}

		wait(ctx, interval)
	}
}

func wait(ctx context.Context, interval time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(interval):
	}
}
