package service

import (
	"context"
	"time"

	"captive-portal/controlplane/internal/evaluator"
	"captive-portal/controlplane/internal/model"
	"captive-portal/controlplane/internal/repository"
)

// Usage builds the evaluation snapshot for sess at instant at. Byte usage
// is summed per quota window across every session of the user seen in the
// window, minus what each session had already consumed before the window
// opened.
func (s *Service) Usage(ctx context.Context, sess model.Session, policy *model.Policy, at time.Time) (evaluator.Usage, error) {
	usage := evaluator.Usage{At: at, Windows: map[model.Window]int64{}}

	live, err := s.repo.ListSessions(ctx, repository.SessionFilter{
		UserID:   sess.UserID,
		Statuses: []model.SessionStatus{model.StatusAuth},
	})
	if err != nil {
		return evaluator.Usage{}, err
	}
	macs := map[string]struct{}{sess.ClientMAC: {}}
	for _, l := range live {
		macs[l.ClientMAC] = struct{}{}
	}
	usage.ActiveDevices = len(macs)

	if policy == nil {
		return usage, nil
	}
	loc := policy.Location()
	for _, w := range model.Windows {
		if policy.Limit(w) <= 0 {
			continue
		}
		used, err := s.windowBytes(ctx, sess.UserID, evaluator.WindowStart(w, at, loc))
		if err != nil {
			return evaluator.Usage{}, err
		}
		usage.Windows[w] = used
	}
	return usage, nil
}

func (s *Service) windowBytes(ctx context.Context, userID string, start time.Time) (int64, error) {
	sessions, err := s.repo.ListSessions(ctx, repository.SessionFilter{UserID: userID, SeenSince: start})
	if err != nil {
		return 0, err
	}
	var total int64
	for _, sess := range sessions {
		used := sess.TotalBytes()
		if sess.StartedAt.Before(start) {
			base, err := s.repo.CounterBaselineBefore(ctx, sess.ID, start)
			if err != nil {
				return 0, err
			}
			used -= base.Incoming + base.Outgoing
		}
		if used > 0 {
			total += used
		}
	}
	return total, nil
}
