package service

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"captive-portal/controlplane/internal/model"
	"captive-portal/controlplane/internal/repository"
)

// LogoutRequest names the session by token or client MAC. The caller fields
// describe who is asking.
type LogoutRequest struct {
	Token        string
	MAC          string
	CallerUserID string
	CallerIP     string
}

// Logout revokes the named session with reason "logout". The caller must
// own the session or share its client address, whether the session is named
// by token or by MAC. It reports false, without distinguishing why, when no
// live session matches or the caller is neither.
func (s *Service) Logout(ctx context.Context, req LogoutRequest) (bool, error) {
	var (
		sess model.Session
		err  error
	)
	switch {
	case req.Token != "":
		sess, err = s.FindByToken(ctx, req.Token)
	case req.MAC != "":
		sess, err = s.repo.LatestSessionByMAC(ctx, req.MAC, model.LiveStatuses...)
	default:
		return false, nil
	}
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if sess.Status.Terminal() {
		return false, nil
	}

	owner := req.CallerUserID != "" && req.CallerUserID == sess.UserID
	sameIP := req.CallerIP != "" && req.CallerIP == sess.ClientIP
	if !owner && !sameIP {
		s.log.WithFields(logrus.Fields{
			"session_id": sess.ID,
			"caller_ip":  req.CallerIP,
		}).Warn("logout refused for foreign session")
		return false, nil
	}

	cur, err := s.Revoke(ctx, sess, model.ReasonLogout)
	if err != nil {
		return false, err
	}
	return cur.Status == model.StatusRevoked && cur.EndReason == model.ReasonLogout, nil
}
