package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"captive-portal/controlplane/internal/metrics"
	"captive-portal/controlplane/internal/model"
	"captive-portal/controlplane/internal/repository"
)

type SweepOptions struct {
	PendingTTL  time.Duration
	IdleTimeout time.Duration
}

type SweepResult struct {
	Unused int `json:"unused"`
	Idle   int `json:"idle"`
}

// Sweep expires PENDING sessions whose token was never redeemed within
// PendingTTL, and AUTH sessions not reported on for IdleTimeout. A zero
// duration disables that half.
func (s *Service) Sweep(ctx context.Context, opts SweepOptions) (SweepResult, error) {
	now := s.clock()
	var res SweepResult

	if opts.PendingTTL > 0 {
		n, err := s.expireWhere(ctx, repository.SessionFilter{
			Statuses:      []model.SessionStatus{model.StatusPending},
			StartedBefore: now.Add(-opts.PendingTTL),
		}, model.ReasonTokenUnused)
		if err != nil {
			return res, err
		}
		res.Unused = n
	}
	if opts.IdleTimeout > 0 {
		n, err := s.expireWhere(ctx, repository.SessionFilter{
			Statuses:       []model.SessionStatus{model.StatusAuth},
			LastSeenBefore: now.Add(-opts.IdleTimeout),
		}, model.ReasonIdleTimeout)
		if err != nil {
			return res, err
		}
		res.Idle = n
	}

	if res.Unused+res.Idle > 0 {
		s.log.WithFields(logrus.Fields{"unused": res.Unused, "idle": res.Idle}).Info("expired sessions")
	}
	return res, nil
}

func (s *Service) expireWhere(ctx context.Context, f repository.SessionFilter, reason string) (int, error) {
	sessions, err := s.repo.ListSessions(ctx, f)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, sess := range sessions {
		// The status filter on the transition keeps a session that moved on
		// since the listing from being expired.
		ok, err := s.repo.TransitionSession(ctx, sess.ID, f.Statuses, model.StatusExpired, reason, s.clock())
		if err != nil {
			return n, err
		}
		if ok {
			metrics.SessionsTerminated.WithLabelValues(string(model.StatusExpired), reason).Inc()
			n++
		}
	}
	return n, nil
}
