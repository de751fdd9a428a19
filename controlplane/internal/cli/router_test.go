package cli

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"captive-portal/controlplane/internal/config"
	"captive-portal/controlplane/internal/logging"
	"captive-portal/controlplane/internal/model"
	"captive-portal/controlplane/internal/service"
	"captive-portal/controlplane/internal/testutil"
)

const clientMAC = "AA:BB:CC:DD:EE:FF"

func newTestRouter(t *testing.T, trusted ...netip.Prefix) (http.Handler, *service.Service) {
	t.Helper()
	ctx := context.Background()
	repo := testutil.NewRepo(t)
	p := model.NewPolicy(config.DefaultPolicyName)
	require.NoError(t, repo.SavePolicy(ctx, &p))

	log := logging.Discard()
	svc := service.New(repo, service.NewRulePolicySelector(repo, nil, config.DefaultPolicyName, log), service.WithLogger(log))
	_, err := svc.CreateGateway(ctx, "gw-01", "Lobby", "")
	require.NoError(t, err)

	env := config.Env{
		JWTSecret:       "secret",
		AdminUser:       "admin",
		AdminPass:       "hunter2",
		DefaultPolicy:   config.DefaultPolicyName,
		GatewayAuthPath: config.DefaultGatewayAuthPath,
		TrustedProxies:  trusted,
	}
	r, err := NewRouter(svc, service.NewLocalAuthenticator(repo), env, log)
	require.NoError(t, err)
	return r, svc
}

func get(r http.Handler, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestHealthz(t *testing.T) {
	r, _ := newTestRouter(t)
	rec := get(r, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestGatewayProtocolMounted(t *testing.T) {
	r, svc := newTestRouter(t)
	ctx := context.Background()

	rec := get(r, "/wifidog/ping?gw_id=gw-01&sys_uptime=100")
	assert.Equal(t, "Pong", rec.Body.String())
	gw, err := svc.Gateway(ctx, "gw-01")
	require.NoError(t, err)
	assert.NotNil(t, gw.LastHeartbeatAt)

	user, err := svc.CreateUser(ctx, "alice", "", "s3cret", "")
	require.NoError(t, err)
	issued, err := svc.Provision(ctx, user, service.IssueRequest{GatewayID: "gw-01", ClientMAC: clientMAC, ClientIP: "10.0.0.5"})
	require.NoError(t, err)

	q := url.Values{"stage": {"login"}, "token": {issued.Token}, "mac": {clientMAC}, "gw_id": {"gw-01"}}
	rec = get(r, "/wifidog/auth?"+q.Encode())
	assert.Equal(t, "Auth: 1", rec.Body.String())

	rec = get(r, "/wifidog/login?gw_id=gw-01&mac="+clientMAC)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMetricsExposed(t *testing.T) {
	r, _ := newTestRouter(t)
	get(r, "/wifidog/auth?token=nope&mac="+clientMAC+"&gw_id=gw-01")

	rec := get(r, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "captive_auth_decisions_total")
}

func TestAdminAPIMounted(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := get(r, "/api/admin/gateways")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/gateways", nil)
	req.SetBasicAuth("admin", "hunter2")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "gw-01")
}

func provisionVictim(t *testing.T, svc *service.Service) service.IssuedSession {
	t.Helper()
	ctx := context.Background()
	user, err := svc.CreateUser(ctx, "bob", "", "pw", "")
	require.NoError(t, err)
	issued, err := svc.Provision(ctx, user, service.IssueRequest{GatewayID: "gw-01", ClientMAC: clientMAC, ClientIP: "10.0.0.5"})
	require.NoError(t, err)
	return issued
}

func spoofed(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	req.RemoteAddr = "192.168.99.99:41000"
	req.Header.Set("X-Real-IP", "10.0.0.5")
	req.Header.Set("X-Forwarded-For", "10.0.0.5")
	return req
}

func TestForwardedHeadersIgnoredFromUntrustedPeer(t *testing.T) {
	r, svc := newTestRouter(t)
	issued := provisionVictim(t, svc)

	for _, body := range []string{`{"mac":"` + clientMAC + `"}`, `{"token":"` + issued.Token + `"}`} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, spoofed(http.MethodPost, "/api/logout", body))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"ok":false}`, rec.Body.String())
	}

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, spoofed(http.MethodGet, "/api/portal/status", ""))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	sess, err := svc.GetSession(context.Background(), issued.Session.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, sess.Status)
}

func TestForwardedHeadersHonouredFromTrustedProxy(t *testing.T) {
	r, svc := newTestRouter(t, netip.MustParsePrefix("192.168.99.0/24"))
	issued := provisionVictim(t, svc)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, spoofed(http.MethodPost, "/api/logout", `{"mac":"`+clientMAC+`"}`))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":true}`, rec.Body.String())

	sess, err := svc.GetSession(context.Background(), issued.Session.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusRevoked, sess.Status)
	assert.Equal(t, model.ReasonLogout, sess.EndReason)
}
