package repository

import (
	"context"
	"errors"
	"time"

	"captive-portal/controlplane/internal/model"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("duplicate")
)

// SessionFilter narrows ListSessions. Zero fields are ignored.
type SessionFilter struct {
	UserID         string
	GatewayID      string
	ClientMAC      string
	Statuses       []model.SessionStatus
	SeenSince      time.Time
	StartedBefore  time.Time
	LastSeenBefore time.Time
	Limit          int
}

// CounterBaseline is the highest cumulative counters recorded for a session
// before some instant.
type CounterBaseline struct {
	Incoming int64
	Outgoing int64
}

type Repository interface {
	WithTx(ctx context.Context, fn func(repo Repository) error) error

	CreateUser(ctx context.Context, u *model.User) error
	GetUser(ctx context.Context, id string) (model.User, error)
	GetUserByUsername(ctx context.Context, username string) (model.User, error)

	CreateGateway(ctx context.Context, g *model.Gateway) error
	SaveGateway(ctx context.Context, g *model.Gateway) error
	ListGateways(ctx context.Context) ([]model.Gateway, error)
	GetGatewayByGatewayID(ctx context.Context, gatewayID string) (model.Gateway, error)

	SavePolicy(ctx context.Context, p *model.Policy) error
	ListPolicies(ctx context.Context) ([]model.Policy, error)
	GetPolicy(ctx context.Context, id string) (model.Policy, error)
	GetPolicyByName(ctx context.Context, name string) (model.Policy, error)

	CreateSession(ctx context.Context, s *model.Session) error
	GetSession(ctx context.Context, id string) (model.Session, error)
	GetSessionByTokenHash(ctx context.Context, tokenHash string) (model.Session, error)
	LatestSessionByUser(ctx context.Context, userID string, statuses ...model.SessionStatus) (model.Session, error)
	LatestSessionByIP(ctx context.Context, ip string, statuses ...model.SessionStatus) (model.Session, error)
	LatestSessionByMAC(ctx context.Context, mac string, statuses ...model.SessionStatus) (model.Session, error)
	ListSessions(ctx context.Context, f SessionFilter) ([]model.Session, error)

	// TransitionSession moves a session to status `to` only if its current
	// status is one of `from`. It reports whether a row changed.
	TransitionSession(ctx context.Context, id string, from []model.SessionStatus, to model.SessionStatus, reason string, at time.Time) (bool, error)
	// AssignSessionPolicy sets the policy only while none is assigned.
	AssignSessionPolicy(ctx context.Context, id, policyID string) (bool, error)
	// MergeSessionCounters raises usage to max(current, reported) while the
	// session is AUTH. It reports whether a row changed.
	MergeSessionCounters(ctx context.Context, id string, incoming, outgoing, uptime int64, seenAt time.Time) (bool, error)

	CreateCounterReport(ctx context.Context, r *model.CounterReport) error
	ListCounterReports(ctx context.Context, sessionID string, limit int) ([]model.CounterReport, error)
	CounterBaselineBefore(ctx context.Context, sessionID string, before time.Time) (CounterBaseline, error)
}
