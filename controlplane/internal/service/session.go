package service

import (
	"context"
	"errors"
	"strings"

	"github.com/sirupsen/logrus"

	"captive-portal/controlplane/internal/metrics"
	"captive-portal/controlplane/internal/model"
	"captive-portal/controlplane/internal/repository"
)

const issueAttempts = 3

type IssueRequest struct {
	UserID    string
	GatewayID string
	ClientMAC string
	ClientIP  string
	SSID      string
	PolicyID  *string
}

// IssuedSession carries the only copy of the bearer token.
type IssuedSession struct {
	Session model.Session
	Token   string
}

// Issue creates a PENDING session bound to a user, gateway and client MAC.
// Live sessions the user already holds for the same MAC on the same gateway
// are revoked as superseded.
func (s *Service) Issue(ctx context.Context, req IssueRequest) (IssuedSession, error) {
	req.UserID = strings.TrimSpace(req.UserID)
	req.ClientMAC = model.NormalizeMAC(req.ClientMAC)
	if req.UserID == "" || req.ClientMAC == "" {
		return IssuedSession{}, ValidationError{Msg: "user and client mac are required"}
	}
	if _, err := s.Gateway(ctx, req.GatewayID); err != nil {
		return IssuedSession{}, err
	}

	for attempt := 1; ; attempt++ {
		token, hash, err := newToken()
		if err != nil {
			return IssuedSession{}, err
		}
		issued, superseded, err := s.issueOnce(ctx, req, token, hash)
		if errors.Is(err, repository.ErrDuplicate) && attempt < issueAttempts {
			s.log.WithField("attempt", attempt).Warn("session token collision, retrying")
			continue
		}
		if err != nil {
			return IssuedSession{}, err
		}
		for range superseded {
			metrics.SessionsTerminated.WithLabelValues(string(model.StatusRevoked), model.ReasonSuperseded).Inc()
		}
		metrics.SessionsIssued.Inc()
		s.log.WithFields(logrus.Fields{
			"session_id": issued.Session.ID,
			"user_id":    req.UserID,
			"gw_id":      req.GatewayID,
			"mac":        req.ClientMAC,
			"superseded": len(superseded),
		}).Info("session issued")
		return issued, nil
	}
}

func (s *Service) issueOnce(ctx context.Context, req IssueRequest, token, hash string) (IssuedSession, []string, error) {
	now := s.clock()
	var (
		out        IssuedSession
		superseded []string
	)
	err := s.repo.WithTx(ctx, func(repo repository.Repository) error {
		prior, err := repo.ListSessions(ctx, repository.SessionFilter{
			UserID:    req.UserID,
			GatewayID: req.GatewayID,
			ClientMAC: req.ClientMAC,
			Statuses:  model.LiveStatuses,
		})
		if err != nil {
			return err
		}
		for _, p := range prior {
			ok, err := repo.TransitionSession(ctx, p.ID, model.LiveStatuses, model.StatusRevoked, model.ReasonSuperseded, now)
			if err != nil {
				return err
			}
			if ok {
				superseded = append(superseded, p.ID)
			}
		}

		sess := model.NewSession(req.UserID, req.GatewayID, req.ClientMAC, req.ClientIP, req.SSID, hash, now)
		sess.PolicyID = req.PolicyID
		if err := repo.CreateSession(ctx, &sess); err != nil {
			return err
		}
		out = IssuedSession{Session: sess, Token: token}
		return nil
	})
	return out, superseded, err
}

// FindByToken returns repository.ErrNotFound for unknown or empty tokens.
func (s *Service) FindByToken(ctx context.Context, token string) (model.Session, error) {
	if token == "" {
		return model.Session{}, repository.ErrNotFound
	}
	return s.repo.GetSessionByTokenHash(ctx, HashToken(token))
}

// FindByTokenAndMAC also requires the session to belong to mac. A mismatch
// is reported as not found.
func (s *Service) FindByTokenAndMAC(ctx context.Context, token, mac string) (model.Session, error) {
	sess, err := s.FindByToken(ctx, token)
	if err != nil {
		return model.Session{}, err
	}
	if sess.ClientMAC != model.NormalizeMAC(mac) {
		return model.Session{}, repository.ErrNotFound
	}
	return sess, nil
}

func (s *Service) FindActiveByUser(ctx context.Context, userID string) (model.Session, error) {
	return s.repo.LatestSessionByUser(ctx, userID, model.LiveStatuses...)
}

func (s *Service) FindActiveByIP(ctx context.Context, ip string) (model.Session, error) {
	return s.repo.LatestSessionByIP(ctx, ip, model.LiveStatuses...)
}

func (s *Service) LatestByUser(ctx context.Context, userID string) (model.Session, error) {
	return s.repo.LatestSessionByUser(ctx, userID)
}

func (s *Service) LatestByMAC(ctx context.Context, mac string) (model.Session, error) {
	return s.repo.LatestSessionByMAC(ctx, mac)
}

func (s *Service) GetSession(ctx context.Context, id string) (model.Session, error) {
	return s.repo.GetSession(ctx, id)
}

func (s *Service) ListSessions(ctx context.Context, status model.SessionStatus, limit int) ([]model.Session, error) {
	f := repository.SessionFilter{Limit: limit}
	if status != "" {
		f.Statuses = []model.SessionStatus{status}
	}
	return s.repo.ListSessions(ctx, f)
}

// PromoteToAuth moves a PENDING session to AUTH. Promoting an AUTH session
// is a no-op; promoting a terminal one returns ErrTerminal.
func (s *Service) PromoteToAuth(ctx context.Context, sess model.Session) (model.Session, error) {
	ok, err := s.repo.TransitionSession(ctx, sess.ID, []model.SessionStatus{model.StatusPending}, model.StatusAuth, "", s.clock())
	if err != nil {
		return model.Session{}, err
	}
	cur, err := s.repo.GetSession(ctx, sess.ID)
	if err != nil {
		return model.Session{}, err
	}
	if ok {
		s.log.WithFields(logrus.Fields{"session_id": cur.ID, "mac": cur.ClientMAC}).Info("session authorized")
	}
	if cur.Status.Terminal() {
		return cur, ErrTerminal
	}
	return cur, nil
}

func (s *Service) Revoke(ctx context.Context, sess model.Session, reason string) (model.Session, error) {
	return s.terminate(ctx, sess, model.StatusRevoked, reason)
}

func (s *Service) Expire(ctx context.Context, sess model.Session, reason string) (model.Session, error) {
	return s.terminate(ctx, sess, model.StatusExpired, reason)
}

func (s *Service) Block(ctx context.Context, sess model.Session, reason string) (model.Session, error) {
	return s.terminate(ctx, sess, model.StatusBlocked, reason)
}

// BlockSession is the admin path: look the session up by id and block it.
func (s *Service) BlockSession(ctx context.Context, id string) (model.Session, error) {
	sess, err := s.repo.GetSession(ctx, id)
	if err != nil {
		return model.Session{}, err
	}
	return s.Block(ctx, sess, model.ReasonAdminBlock)
}

// terminate is idempotent: once a session is terminal its status, reason
// and EndedAt are kept and later calls return the stored row.
func (s *Service) terminate(ctx context.Context, sess model.Session, to model.SessionStatus, reason string) (model.Session, error) {
	ok, err := s.repo.TransitionSession(ctx, sess.ID, model.LiveStatuses, to, reason, s.clock())
	if err != nil {
		return model.Session{}, err
	}
	if ok {
		metrics.SessionsTerminated.WithLabelValues(string(to), reason).Inc()
		s.log.WithFields(logrus.Fields{
			"session_id": sess.ID,
			"status":     to,
			"reason":     reason,
		}).Info("session ended")
	}
	return s.repo.GetSession(ctx, sess.ID)
}

// Provision issues a session for user bound to the policy selected for them
// now. With no applicable policy the session is issued unbound and the
// gateway's first auth call denies it.
func (s *Service) Provision(ctx context.Context, user model.User, req IssueRequest) (IssuedSession, error) {
	req.UserID = user.ID
	p, err := s.selector.SelectPolicy(ctx, user)
	if err != nil {
		return IssuedSession{}, err
	}
	if p != nil {
		req.PolicyID = &p.ID
	}
	return s.Issue(ctx, req)
}
