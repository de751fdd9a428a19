package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"captive-portal/controlplane/internal/model"
	"captive-portal/controlplane/internal/repository"
	"captive-portal/controlplane/internal/testutil"
)

const (
	clientMAC = "AA:BB:CC:DD:EE:FF"
	otherMAC  = "11:22:33:44:55:66"
)

// staticSelector always answers with the same policy.
type staticSelector struct {
	policy *model.Policy
	err    error
}

func (s staticSelector) SelectPolicy(context.Context, model.User) (*model.Policy, error) {
	return s.policy, s.err
}

type fixture struct {
	t      *testing.T
	ctx    context.Context
	repo   *repository.GormRepository
	svc    *Service
	now    time.Time
	user   model.User
	policy *model.Policy
}

// newFixture seeds gateway gw-01 and user alice. A nil policy makes the
// selector answer "no policy".
func newFixture(t *testing.T, policy *model.Policy) *fixture {
	t.Helper()
	f := &fixture{
		t:    t,
		ctx:  context.Background(),
		repo: testutil.NewRepo(t),
		// Monday.
		now: time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC),
	}
	if policy != nil {
		require.NoError(t, f.repo.SavePolicy(f.ctx, policy))
		f.policy = policy
	}
	f.svc = New(f.repo, staticSelector{policy: policy}, WithClock(func() time.Time { return f.now }))

	_, err := f.svc.CreateGateway(f.ctx, "gw-01", "Lobby", "")
	require.NoError(t, err)
	f.user, err = f.svc.CreateUser(f.ctx, "alice", "Alice", "s3cret", "")
	require.NoError(t, err)
	return f
}

func (f *fixture) advance(d time.Duration) {
	f.now = f.now.Add(d)
}

func (f *fixture) issue(mac string) IssuedSession {
	f.t.Helper()
	issued, err := f.svc.Issue(f.ctx, IssueRequest{
		UserID:    f.user.ID,
		GatewayID: "gw-01",
		ClientMAC: mac,
		ClientIP:  "192.168.10.23",
	})
	require.NoError(f.t, err)
	return issued
}

// authorized issues a session and redeems its token.
func (f *fixture) authorized(mac string) IssuedSession {
	f.t.Helper()
	issued := f.issue(mac)
	res, err := f.svc.ValidateToken(f.ctx, AuthRequest{Token: issued.Token, MAC: mac})
	require.NoError(f.t, err)
	require.True(f.t, res.Allowed, "reason: %s", res.Reason)
	return issued
}

func (f *fixture) session(id string) model.Session {
	f.t.Helper()
	s, err := f.repo.GetSession(f.ctx, id)
	require.NoError(f.t, err)
	return s
}

func openPolicy() *model.Policy {
	p := model.NewPolicy("default")
	return &p
}

func ptr[T any](v T) *T {
	return &v
}

func TestIssueTokensAreUniqueAndNotStored(t *testing.T) {
	f := newFixture(t, openPolicy())

	seen := map[string]bool{}
	for i := 0; i < 40; i++ {
		f.advance(time.Second)
		issued := f.issue(otherMAC)
		require.False(t, seen[issued.Token], "token reused")
		seen[issued.Token] = true

		assert.Len(t, issued.Token, 43)
		assert.Equal(t, HashToken(issued.Token), issued.Session.TokenHash)
		assert.NotContains(t, issued.Session.TokenHash, issued.Token)
		assert.Equal(t, model.StatusPending, issued.Session.Status)
	}
}

func TestIssueSupersedesLiveSessionForSameDevice(t *testing.T) {
	f := newFixture(t, openPolicy())
	first := f.authorized(clientMAC)
	other := f.issue(otherMAC)

	f.advance(time.Minute)
	second := f.issue(clientMAC)

	old := f.session(first.Session.ID)
	assert.Equal(t, model.StatusRevoked, old.Status)
	assert.Equal(t, model.ReasonSuperseded, old.EndReason)
	assert.Equal(t, model.StatusPending, f.session(second.Session.ID).Status)
	assert.Equal(t, model.StatusPending, f.session(other.Session.ID).Status, "other devices are untouched")
}

func TestIssueRejectsUnknownGatewayAndMissingMAC(t *testing.T) {
	f := newFixture(t, openPolicy())

	_, err := f.svc.Issue(f.ctx, IssueRequest{UserID: f.user.ID, GatewayID: "gw-404", ClientMAC: clientMAC})
	assert.ErrorIs(t, err, ErrUnknownGateway)

	_, err = f.svc.Issue(f.ctx, IssueRequest{UserID: f.user.ID, GatewayID: "gw-01"})
	assert.True(t, IsValidation(err))
}

func TestFindByTokenAndMAC(t *testing.T) {
	f := newFixture(t, openPolicy())
	issued := f.issue(clientMAC)

	s, err := f.svc.FindByTokenAndMAC(f.ctx, issued.Token, "aa-bb-cc-dd-ee-ff")
	require.NoError(t, err)
	assert.Equal(t, issued.Session.ID, s.ID)

	_, err = f.svc.FindByTokenAndMAC(f.ctx, issued.Token, otherMAC)
	assert.True(t, IsNotFound(err))
	_, err = f.svc.FindByToken(f.ctx, "")
	assert.True(t, IsNotFound(err))
}

func TestLookupsByUserIPAndMAC(t *testing.T) {
	f := newFixture(t, openPolicy())
	first := f.issue(clientMAC)
	f.advance(time.Minute)
	second := f.issue(otherMAC)

	s, err := f.svc.FindActiveByUser(f.ctx, f.user.ID)
	require.NoError(t, err)
	assert.Equal(t, second.Session.ID, s.ID)

	s, err = f.svc.FindActiveByIP(f.ctx, "192.168.10.23")
	require.NoError(t, err)
	assert.Equal(t, second.Session.ID, s.ID)

	_, err = f.svc.Revoke(f.ctx, second.Session, model.ReasonLogout)
	require.NoError(t, err)

	s, err = f.svc.FindActiveByUser(f.ctx, f.user.ID)
	require.NoError(t, err)
	assert.Equal(t, first.Session.ID, s.ID)

	s, err = f.svc.LatestByUser(f.ctx, f.user.ID)
	require.NoError(t, err)
	assert.Equal(t, second.Session.ID, s.ID, "latest ignores status")

	s, err = f.svc.LatestByMAC(f.ctx, "11:22:33:44:55:66")
	require.NoError(t, err)
	assert.Equal(t, model.StatusRevoked, s.Status)
}

func TestTerminalStateIsSticky(t *testing.T) {
	f := newFixture(t, openPolicy())
	issued := f.authorized(clientMAC)

	revoked, err := f.svc.Revoke(f.ctx, issued.Session, model.ReasonLogout)
	require.NoError(t, err)
	require.Equal(t, model.StatusRevoked, revoked.Status)
	require.NotNil(t, revoked.EndedAt)
	endedAt := *revoked.EndedAt

	f.advance(time.Hour)
	again, err := f.svc.Expire(f.ctx, issued.Session, model.ReasonIdleTimeout)
	require.NoError(t, err)
	assert.Equal(t, model.StatusRevoked, again.Status)
	assert.Equal(t, model.ReasonLogout, again.EndReason)
	assert.True(t, endedAt.Equal(*again.EndedAt))

	_, err = f.svc.Block(f.ctx, issued.Session, model.ReasonAdminBlock)
	require.NoError(t, err)
	assert.Equal(t, model.StatusRevoked, f.session(issued.Session.ID).Status)

	_, err = f.svc.PromoteToAuth(f.ctx, issued.Session)
	assert.ErrorIs(t, err, ErrTerminal)

	res, err := f.svc.ValidateToken(f.ctx, AuthRequest{Token: issued.Token})
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, model.ReasonLogout, res.Reason)

	after, err := f.svc.ApplyCounters(f.ctx, issued.Session, CounterSample{Incoming: 10, Outgoing: 10})
	require.NoError(t, err)
	assert.Zero(t, after.TotalBytes())
	assert.Equal(t, model.StatusRevoked, after.Status)
}

func TestPromoteToAuthIsIdempotent(t *testing.T) {
	f := newFixture(t, openPolicy())
	issued := f.issue(clientMAC)

	s, err := f.svc.PromoteToAuth(f.ctx, issued.Session)
	require.NoError(t, err)
	assert.Equal(t, model.StatusAuth, s.Status)

	s, err = f.svc.PromoteToAuth(f.ctx, issued.Session)
	require.NoError(t, err)
	assert.Equal(t, model.StatusAuth, s.Status)
}

func TestBlockSession(t *testing.T) {
	f := newFixture(t, openPolicy())
	issued := f.authorized(clientMAC)

	s, err := f.svc.BlockSession(f.ctx, issued.Session.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusBlocked, s.Status)
	assert.Equal(t, model.ReasonAdminBlock, s.EndReason)

	_, err = f.svc.BlockSession(f.ctx, "missing")
	assert.True(t, IsNotFound(err))
}

func TestListSessionsByStatus(t *testing.T) {
	f := newFixture(t, openPolicy())
	f.authorized(clientMAC)
	f.advance(time.Second)
	f.issue(otherMAC)

	all, err := f.svc.ListSessions(f.ctx, "", 0)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	auth, err := f.svc.ListSessions(f.ctx, model.StatusAuth, 0)
	require.NoError(t, err)
	require.Len(t, auth, 1)
	assert.Equal(t, clientMAC, auth[0].ClientMAC)
}

func TestProvisionBindsSelectedPolicy(t *testing.T) {
	f := newFixture(t, openPolicy())

	issued, err := f.svc.Provision(f.ctx, f.user, IssueRequest{GatewayID: "gw-01", ClientMAC: clientMAC, ClientIP: "192.168.10.23"})
	require.NoError(t, err)
	require.NotNil(t, issued.Session.PolicyID)
	assert.Equal(t, f.policy.ID, *issued.Session.PolicyID)
	assert.Equal(t, f.user.ID, issued.Session.UserID)
}
