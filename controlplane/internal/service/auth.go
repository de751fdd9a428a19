package service

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"captive-portal/controlplane/internal/evaluator"
	"captive-portal/controlplane/internal/model"
	"captive-portal/controlplane/internal/repository"
)

// Denial reasons produced before policy evaluation.
const (
	ReasonUnknownToken    = "unknown_token"
	ReasonMACMismatch     = "mac_mismatch"
	ReasonGatewayMismatch = "gateway_mismatch"
	ReasonNotAuthorized   = "not_authorized"
	ReasonInvalidCounters = "invalid_counters"
)

// Gateway auth stages.
const (
	StageLogin    = "login"
	StageCounters = "counters"
	StageLogout   = "logout"
)

// AuthRequest is a single token check sent by a gateway.
type AuthRequest struct {
	Token     string
	MAC       string
	GatewayID string
	Stage     string
	Incoming  *int64
	Outgoing  *int64
	Uptime    *int64
	Raw       string
}

type AuthResult struct {
	Allowed bool
	Reason  string
	Session *model.Session
}

func denied(reason string, sess *model.Session) AuthResult {
	return AuthResult{Allowed: false, Reason: reason, Session: sess}
}

// ValidateToken answers a gateway's GET auth call. Allowed sessions are
// promoted to AUTH; a policy denial revokes the session with the denial
// reason. Unknown tokens and MAC mismatches are denied without touching
// any session.
func (s *Service) ValidateToken(ctx context.Context, req AuthRequest) (AuthResult, error) {
	sess, err := s.FindByToken(ctx, req.Token)
	if errors.Is(err, repository.ErrNotFound) {
		return denied(ReasonUnknownToken, nil), nil
	}
	if err != nil {
		return AuthResult{}, err
	}
	if req.MAC != "" && model.NormalizeMAC(req.MAC) != sess.ClientMAC {
		s.log.WithFields(logrus.Fields{"session_id": sess.ID, "mac": req.MAC}).Warn("token presented from another mac")
		return denied(ReasonMACMismatch, &sess), nil
	}
	if req.GatewayID != "" && req.GatewayID != sess.GatewayID {
		return denied(ReasonGatewayMismatch, &sess), nil
	}
	if sess.Status.Terminal() {
		return denied(sess.EndReason, &sess), nil
	}

	switch req.Stage {
	case StageLogout:
		sess, err = s.Revoke(ctx, sess, model.ReasonLogout)
		if err != nil {
			return AuthResult{}, err
		}
		return denied(model.ReasonLogout, &sess), nil
	case StageCounters:
		if sess.Status == model.StatusAuth && req.Incoming != nil && req.Outgoing != nil {
			updated, err := s.ApplyCounters(ctx, sess, CounterSample{
				Incoming: *req.Incoming,
				Outgoing: *req.Outgoing,
				Uptime:   req.Uptime,
				Raw:      req.Raw,
			})
			if IsValidation(err) {
				return denied(ReasonInvalidCounters, &sess), nil
			}
			if err != nil {
				return AuthResult{}, err
			}
			sess = updated
		}
	}

	return s.enforce(ctx, sess)
}

// enforce evaluates sess and applies the outcome to the store.
func (s *Service) enforce(ctx context.Context, sess model.Session) (AuthResult, error) {
	decision, err := s.decide(ctx, &sess, true)
	if err != nil {
		return AuthResult{}, err
	}
	if !decision.Allowed {
		sess, err = s.Revoke(ctx, sess, decision.Reason)
		if err != nil {
			return AuthResult{}, err
		}
		return denied(decision.Reason, &sess), nil
	}

	sess, err = s.PromoteToAuth(ctx, sess)
	if errors.Is(err, ErrTerminal) {
		return denied(sess.EndReason, &sess), nil
	}
	if err != nil {
		return AuthResult{}, err
	}
	return AuthResult{Allowed: true, Session: &sess}, nil
}

func (s *Service) decide(ctx context.Context, sess *model.Session, assign bool) (evaluator.Decision, error) {
	policy, err := s.policyFor(ctx, sess, assign)
	if err != nil {
		return evaluator.Decision{}, err
	}
	usage, err := s.Usage(ctx, *sess, policy, s.clock())
	if err != nil {
		return evaluator.Decision{}, err
	}
	return evaluator.Evaluate(*sess, policy, usage), nil
}

// CounterEntry is one client in a gateway's batch counter report.
type CounterEntry struct {
	Token    string
	MAC      string
	Incoming int64
	Outgoing int64
	Uptime   *int64
	Raw      string
}

type CounterVerdict struct {
	MAC     string
	Allowed bool
	Reason  string
}

// IngestCounters processes a batch independently per entry: a failure on
// one client yields a deny for that client only. Verdicts keep input order.
func (s *Service) IngestCounters(ctx context.Context, gatewayID string, entries []CounterEntry) []CounterVerdict {
	out := make([]CounterVerdict, 0, len(entries))
	for _, e := range entries {
		res, err := s.ingestOne(ctx, gatewayID, e)
		if err != nil {
			s.log.WithError(err).WithFields(logrus.Fields{"gw_id": gatewayID, "mac": e.MAC}).Error("counter entry failed")
			res = denied("error", nil)
		}
		out = append(out, CounterVerdict{MAC: e.MAC, Allowed: res.Allowed, Reason: res.Reason})
	}
	return out
}

func (s *Service) ingestOne(ctx context.Context, gatewayID string, e CounterEntry) (AuthResult, error) {
	sess, err := s.FindByTokenAndMAC(ctx, e.Token, e.MAC)
	if errors.Is(err, repository.ErrNotFound) {
		return denied(ReasonUnknownToken, nil), nil
	}
	if err != nil {
		return AuthResult{}, err
	}
	if gatewayID != "" && gatewayID != sess.GatewayID {
		return denied(ReasonGatewayMismatch, &sess), nil
	}
	if sess.Status != model.StatusAuth {
		return denied(ReasonNotAuthorized, &sess), nil
	}
	updated, err := s.ApplyCounters(ctx, sess, CounterSample{
		Incoming: e.Incoming,
		Outgoing: e.Outgoing,
		Uptime:   e.Uptime,
		Raw:      e.Raw,
	})
	if IsValidation(err) {
		return denied(ReasonInvalidCounters, &sess), nil
	}
	if err != nil {
		return AuthResult{}, err
	}
	return s.enforce(ctx, updated)
}
