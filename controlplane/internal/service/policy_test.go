package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"captive-portal/controlplane/internal/logging"
	"captive-portal/controlplane/internal/model"
	"captive-portal/controlplane/internal/testutil"
)

type mapOverrides struct {
	names map[string]string
	err   error
}

func (m mapOverrides) PolicyOverride(_ context.Context, userID string) (string, bool, error) {
	if m.err != nil {
		return "", false, m.err
	}
	name, ok := m.names[userID]
	return name, ok, nil
}

func TestRulePolicySelector(t *testing.T) {
	ctx := context.Background()
	repo := testutil.NewRepo(t)
	for _, name := range []string{"default", "staff", "vip"} {
		p := model.NewPolicy(name)
		require.NoError(t, repo.SavePolicy(ctx, &p))
	}
	staff, err := repo.GetPolicyByName(ctx, "staff")
	require.NoError(t, err)

	plain := model.User{ID: "u-plain"}
	assigned := model.User{ID: "u-staff", PolicyID: &staff.ID}
	dangling := model.User{ID: "u-dangling", PolicyID: ptr("gone")}

	overrides := mapOverrides{names: map[string]string{
		"u-staff": "vip",
		"u-plain": "missing",
	}}

	tests := []struct {
		name      string
		overrides PolicyOverrides
		def       string
		user      model.User
		want      string
	}{
		{"override wins", overrides, "default", assigned, "vip"},
		{"unknown override falls through", overrides, "default", plain, "default"},
		{"assigned policy", nil, "default", assigned, "staff"},
		{"dangling assignment uses default", nil, "default", dangling, "default"},
		{"override error ignored", mapOverrides{err: errors.New("redis down")}, "default", assigned, "staff"},
		{"no default", nil, "", plain, ""},
		{"unknown default", nil, "nope", plain, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sel := NewRulePolicySelector(repo, tt.overrides, tt.def, logging.Discard())
			p, err := sel.SelectPolicy(ctx, tt.user)
			require.NoError(t, err)
			if tt.want == "" {
				assert.Nil(t, p)
				return
			}
			require.NotNil(t, p)
			assert.Equal(t, tt.want, p.Name)
		})
	}
}

func TestPolicyOverrideKey(t *testing.T) {
	assert.Equal(t, "portal:policy:user:42", PolicyOverrideKey("42"))
	assert.Nil(t, NewRedisPolicyOverrides(nil))
}

func TestImportPolicies(t *testing.T) {
	f := newFixture(t, nil)

	daily := model.Policy{Name: "daily", DailyBytes: 1000, Timezone: "UTC", Active: true}
	night := model.Policy{Name: "night", Timezone: "UTC", Active: true, Schedule: []model.ScheduleWindow{{Start: "22:00", End: "06:00"}}}

	res, err := f.svc.ImportPolicies(f.ctx, []model.Policy{daily, night})
	require.NoError(t, err)
	assert.Equal(t, ImportResult{Created: 2}, res)

	res, err = f.svc.ImportPolicies(f.ctx, []model.Policy{daily, night})
	require.NoError(t, err)
	assert.Equal(t, ImportResult{Unchanged: 2}, res)

	daily.DailyBytes = 2000
	res, err = f.svc.ImportPolicies(f.ctx, []model.Policy{daily})
	require.NoError(t, err)
	assert.Equal(t, ImportResult{Updated: 1}, res)

	policies, err := f.svc.ListPolicies(f.ctx)
	require.NoError(t, err)
	require.Len(t, policies, 2)
	assert.Equal(t, "daily", policies[0].Name)
	assert.Equal(t, 2, policies[0].Version)
	assert.Equal(t, int64(2000), policies[0].DailyBytes)
	assert.Equal(t, 1, policies[1].Version)
	assert.Equal(t, night.Schedule, policies[1].Schedule)

	_, err = f.svc.ImportPolicies(f.ctx, []model.Policy{{Name: " "}})
	assert.True(t, IsValidation(err))
}

func TestCreateUserWithPolicy(t *testing.T) {
	f := newFixture(t, openPolicy())

	u, err := f.svc.CreateUser(f.ctx, "bob", "", "pw", "default")
	require.NoError(t, err)
	require.NotNil(t, u.PolicyID)
	assert.Equal(t, f.policy.ID, *u.PolicyID)
	assert.Equal(t, "bob", u.Name)

	_, err = f.svc.CreateUser(f.ctx, "carol", "", "pw", "missing")
	assert.True(t, IsValidation(err))

	_, err = f.svc.CreateUser(f.ctx, "bob", "", "pw", "")
	assert.True(t, IsValidation(err), "duplicate username")
}

func TestLocalAuthenticator(t *testing.T) {
	f := newFixture(t, nil)
	auth := NewLocalAuthenticator(f.repo)

	u, err := auth.Authenticate(f.ctx, " alice ", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, f.user.ID, u.ID)

	_, err = auth.Authenticate(f.ctx, "alice", "wrong")
	assert.True(t, IsAuth(err))
	_, err = auth.Authenticate(f.ctx, "mallory", "s3cret")
	assert.True(t, IsAuth(err))
}
