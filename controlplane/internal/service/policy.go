package service

import (
	"context"
	"errors"
	"strings"

	"github.com/sirupsen/logrus"

	"captive-portal/controlplane/internal/model"
	"captive-portal/controlplane/internal/repository"
)

// PolicySelector picks the policy that governs a user's new session. A nil
// policy with a nil error means no policy applies.
type PolicySelector interface {
	SelectPolicy(ctx context.Context, user model.User) (*model.Policy, error)
}

// PolicyOverrides looks up an operator-set policy name for a user.
type PolicyOverrides interface {
	PolicyOverride(ctx context.Context, userID string) (name string, ok bool, err error)
}

// RulePolicySelector resolves, in order: an override by name, the policy
// assigned to the user, then the default policy by name.
type RulePolicySelector struct {
	repo        repository.Repository
	overrides   PolicyOverrides
	defaultName string
	log         *logrus.Entry
}

// NewRulePolicySelector accepts a nil overrides source.
func NewRulePolicySelector(repo repository.Repository, overrides PolicyOverrides, defaultName string, log *logrus.Entry) *RulePolicySelector {
	return &RulePolicySelector{repo: repo, overrides: overrides, defaultName: defaultName, log: log}
}

func (r *RulePolicySelector) SelectPolicy(ctx context.Context, user model.User) (*model.Policy, error) {
	if r.overrides != nil {
		name, ok, err := r.overrides.PolicyOverride(ctx, user.ID)
		switch {
		case err != nil:
			r.log.WithError(err).WithField("user_id", user.ID).Warn("policy override lookup failed")
		case ok:
			p, err := r.repo.GetPolicyByName(ctx, name)
			if err == nil {
				return &p, nil
			}
			if !errors.Is(err, repository.ErrNotFound) {
				return nil, err
			}
			r.log.WithFields(logrus.Fields{"user_id": user.ID, "policy": name}).Warn("override names unknown policy")
		}
	}

	if user.PolicyID != nil {
		p, err := r.repo.GetPolicy(ctx, *user.PolicyID)
		if err == nil {
			return &p, nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
	}

	if r.defaultName == "" {
		return nil, nil
	}
	p, err := r.repo.GetPolicyByName(ctx, r.defaultName)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ImportResult counts what ImportPolicies did per policy name.
type ImportResult struct {
	Created   int `json:"created"`
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
}

// ImportPolicies upserts policies by name. A policy whose rules change gets
// its Version bumped; sessions keep the policy id they were bound to.
func (s *Service) ImportPolicies(ctx context.Context, policies []model.Policy) (ImportResult, error) {
	var res ImportResult
	err := s.repo.WithTx(ctx, func(repo repository.Repository) error {
		for _, in := range policies {
			name := strings.TrimSpace(in.Name)
			if name == "" {
				return ValidationError{Msg: "policy name is required"}
			}
			cur, err := repo.GetPolicyByName(ctx, name)
			switch {
			case errors.Is(err, repository.ErrNotFound):
				p := model.NewPolicy(name)
				copyRules(&p, in)
				if err := repo.SavePolicy(ctx, &p); err != nil {
					return err
				}
				res.Created++
			case err != nil:
				return err
			case cur.SameRules(in):
				res.Unchanged++
			default:
				copyRules(&cur, in)
				cur.Version++
				if err := repo.SavePolicy(ctx, &cur); err != nil {
					return err
				}
				res.Updated++
			}
		}
		return nil
	})
	if err != nil {
		return ImportResult{}, err
	}
	s.log.WithFields(logrus.Fields{
		"created":   res.Created,
		"updated":   res.Updated,
		"unchanged": res.Unchanged,
	}).Info("policies imported")
	return res, nil
}

func copyRules(dst *model.Policy, src model.Policy) {
	dst.MaxDevices = src.MaxDevices
	dst.DailyBytes = src.DailyBytes
	dst.WeeklyBytes = src.WeeklyBytes
	dst.MonthlyBytes = src.MonthlyBytes
	dst.MaxUptimeSeconds = src.MaxUptimeSeconds
	dst.Timezone = src.Timezone
	dst.Schedule = src.Schedule
	dst.Active = src.Active
}

func (s *Service) ListPolicies(ctx context.Context) ([]model.Policy, error) {
	return s.repo.ListPolicies(ctx)
}

// policyFor returns the session's bound policy, selecting and binding one
// first when assign is set. Display paths pass assign=false.
func (s *Service) policyFor(ctx context.Context, sess *model.Session, assign bool) (*model.Policy, error) {
	if sess.PolicyID != nil {
		p, err := s.repo.GetPolicy(ctx, *sess.PolicyID)
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return &p, nil
	}

	user, err := s.repo.GetUser(ctx, sess.UserID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	p, err := s.selector.SelectPolicy(ctx, user)
	if err != nil || p == nil || !assign {
		return p, err
	}

	ok, err := s.repo.AssignSessionPolicy(ctx, sess.ID, p.ID)
	if err != nil {
		return nil, err
	}
	if !ok {
		// Bound concurrently; use whatever won.
		cur, err := s.repo.GetSession(ctx, sess.ID)
		if err != nil {
			return nil, err
		}
		*sess = cur
		return s.policyFor(ctx, sess, false)
	}
	sess.PolicyID = &p.ID
	return p, nil
}
