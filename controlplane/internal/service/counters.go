package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"captive-portal/controlplane/internal/metrics"
	"captive-portal/controlplane/internal/model"
	"captive-portal/controlplane/internal/repository"
)

// CounterSample is one cumulative traffic reading from a gateway.
type CounterSample struct {
	Incoming int64
	Outgoing int64
	// Uptime is seconds of connection time; nil means the gateway did not
	// send one and time since the session started is used.
	Uptime *int64
	Raw    string
}

// ApplyCounters merges a sample into an AUTH session. Aggregates only move
// up: a sample below the stored totals is recorded as stale and changes
// nothing. Non-AUTH sessions are returned unchanged.
func (s *Service) ApplyCounters(ctx context.Context, sess model.Session, sample CounterSample) (model.Session, error) {
	if sample.Incoming < 0 || sample.Outgoing < 0 || (sample.Uptime != nil && *sample.Uptime < 0) {
		return model.Session{}, ValidationError{Msg: "counters must not be negative"}
	}
	now := s.clock()
	result := "ignored"
	var out model.Session
	err := s.repo.WithTx(ctx, func(repo repository.Repository) error {
		cur, err := repo.GetSession(ctx, sess.ID)
		if err != nil {
			return err
		}
		out = cur
		if cur.Status != model.StatusAuth {
			return nil
		}

		uptime := int64(now.Sub(cur.StartedAt) / time.Second)
		if sample.Uptime != nil {
			uptime = *sample.Uptime
		}
		stale := sample.Incoming < cur.BytesIn || sample.Outgoing < cur.BytesOut || uptime < cur.UptimeSeconds

		if _, err := repo.MergeSessionCounters(ctx, cur.ID, sample.Incoming, sample.Outgoing, uptime, now); err != nil {
			return err
		}
		report := model.NewCounterReport(cur.ID, cur.GatewayID, sample.Incoming, sample.Outgoing, sample.Uptime, sample.Raw, now)
		report.Stale = stale
		if err := repo.CreateCounterReport(ctx, &report); err != nil {
			return err
		}
		if out, err = repo.GetSession(ctx, cur.ID); err != nil {
			return err
		}
		result = "applied"
		if stale {
			result = "stale"
		}
		return nil
	})
	if err != nil {
		metrics.CounterReports.WithLabelValues("error").Inc()
		return model.Session{}, err
	}
	metrics.CounterReports.WithLabelValues(result).Inc()
	if result == "stale" {
		s.log.WithFields(logrus.Fields{
			"session_id": out.ID,
			"incoming":   sample.Incoming,
			"outgoing":   sample.Outgoing,
		}).Debug("stale counter report")
	}
	return out, nil
}

func (s *Service) CounterReports(ctx context.Context, sessionID string, limit int) ([]model.CounterReport, error) {
	if _, err := s.repo.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	return s.repo.ListCounterReports(ctx, sessionID, limit)
}
