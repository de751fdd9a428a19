package service

import (
	"context"

	"captive-portal/controlplane/internal/evaluator"
	"captive-portal/controlplane/internal/model"
)

// PortalStatus is what the portal page shows a signed-in client.
type PortalStatus struct {
	Session  model.Session      `json:"session"`
	Policy   *model.Policy      `json:"policy,omitempty"`
	Decision evaluator.Decision `json:"decision"`
	Devices  int                `json:"active_devices"`
}

// Status evaluates sess for display only; nothing is written.
func (s *Service) Status(ctx context.Context, sess model.Session) (PortalStatus, error) {
	policy, err := s.policyFor(ctx, &sess, false)
	if err != nil {
		return PortalStatus{}, err
	}
	usage, err := s.Usage(ctx, sess, policy, s.clock())
	if err != nil {
		return PortalStatus{}, err
	}
	return PortalStatus{
		Session:  sess,
		Policy:   policy,
		Decision: evaluator.Evaluate(sess, policy, usage),
		Devices:  usage.ActiveDevices,
	}, nil
}
