// Package evaluator decides whether a captive-portal session may keep its
// network access under a policy.
//
// Evaluate is a pure function: it reads a session, a policy and a usage
// snapshot and returns a Decision. Callers act on the result. Dimensions are
// checked in a fixed order and the first violation wins:
//
//	schedule -> device cap -> uptime cap -> byte quotas (daily, weekly, monthly)
package evaluator

import (
	"time"

	"captive-portal/controlplane/internal/model"
)

// Denial reasons.
const (
	ReasonNoPolicy       = "no_policy"
	ReasonPolicyInactive = "policy_inactive"
	ReasonSchedule       = "schedule_denied"
	ReasonDeviceCap      = "device_cap_exceeded"
	ReasonUptime         = "uptime_exceeded"
	reasonQuotaPrefix    = "quota_exceeded:"
)

// QuotaReason returns the denial reason for an exhausted quota window.
func QuotaReason(w model.Window) string {
	return reasonQuotaPrefix + string(w)
}

// Usage is the state an evaluation is made against.
type Usage struct {
	// At is the evaluation instant; schedules are checked against it.
	At time.Time
	// ActiveDevices counts distinct client MACs the user holds access on,
	// including the evaluated session.
	ActiveDevices int
	// Windows holds bytes used per quota window.
	Windows map[model.Window]int64
}

type WindowUsage struct {
	Used  int64 `json:"used"`
	Limit int64 `json:"limit"`
}

type Decision struct {
	Allowed bool                         `json:"allowed"`
	Reason  string                       `json:"reason,omitempty"`
	Windows map[model.Window]WindowUsage `json:"windows_usage"`
}

func deny(reason string, windows map[model.Window]WindowUsage) Decision {
	return Decision{Allowed: false, Reason: reason, Windows: windows}
}

// Evaluate applies policy to session. A nil policy is a denial.
func Evaluate(session model.Session, policy *model.Policy, usage Usage) Decision {
	windows := map[model.Window]WindowUsage{}
	if policy == nil {
		return deny(ReasonNoPolicy, windows)
	}
	for _, w := range model.Windows {
		if limit := policy.Limit(w); limit > 0 {
			windows[w] = WindowUsage{Used: usage.Windows[w], Limit: limit}
		}
	}

	if !policy.Active {
		return deny(ReasonPolicyInactive, windows)
	}
	if !ScheduleAllows(policy.Schedule, usage.At.In(policy.Location())) {
		return deny(ReasonSchedule, windows)
	}
	if policy.MaxDevices > 0 && usage.ActiveDevices > policy.MaxDevices {
		return deny(ReasonDeviceCap, windows)
	}
	if policy.MaxUptimeSeconds > 0 && session.UptimeSeconds >= policy.MaxUptimeSeconds {
		return deny(ReasonUptime, windows)
	}
	for _, w := range model.Windows {
		if wu, ok := windows[w]; ok && wu.Used >= wu.Limit {
			return deny(QuotaReason(w), windows)
		}
	}
	return Decision{Allowed: true, Windows: windows}
}
