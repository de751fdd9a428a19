package ui

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"captive-portal/controlplane/internal/logging"
	"captive-portal/controlplane/internal/middleware"
	"captive-portal/controlplane/internal/model"
	"captive-portal/controlplane/internal/repository"
	"captive-portal/controlplane/internal/service"
	"captive-portal/controlplane/internal/testutil"
)

const clientMAC = "AA:BB:CC:DD:EE:FF"

type env struct {
	repo   *repository.GormRepository
	svc    *service.Service
	router http.Handler
}

func setup(t *testing.T) *env {
	t.Helper()
	ctx := context.Background()
	repo := testutil.NewRepo(t)
	p := model.NewPolicy("default")
	p.DailyBytes = 1 << 30
	require.NoError(t, repo.SavePolicy(ctx, &p))

	log := logging.Discard()
	svc := service.New(repo, service.NewRulePolicySelector(repo, nil, "default", log), service.WithLogger(log))
	_, err := svc.CreateGateway(ctx, "gw-01", "Lobby", "")
	require.NoError(t, err)
	_, err = svc.CreateUser(ctx, "alice", "Alice", "s3cret", "")
	require.NoError(t, err)

	h, err := NewHandler(svc, service.NewLocalAuthenticator(repo), middleware.NewHumanAuth("test-secret", false), "/wifidog/auth", log)
	require.NoError(t, err)
	r := chi.NewRouter()
	r.Route("/wifidog", h.RegisterRoutes)
	return &env{repo: repo, svc: svc, router: r}
}

func (e *env) get(target string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *env) post(target string, form url.Values, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func portalCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == middleware.HumanCookie && c.Value != "" {
			return c
		}
	}
	t.Fatal("no portal cookie set")
	return nil
}

func loginValues(user, pass string) url.Values {
	return url.Values{
		"username":   {user},
		"password":   {pass},
		"gw_id":      {"gw-01"},
		"gw_address": {"10.0.0.1"},
		"gw_port":    {"2060"},
		"mac":        {clientMAC},
	}
}

func TestLoginRejectsUnknownGateway(t *testing.T) {
	e := setup(t)

	assert.Equal(t, http.StatusForbidden, e.get("/wifidog/login?gw_id=gw-404&mac="+clientMAC).Code)
	assert.Equal(t, http.StatusForbidden, e.get("/wifidog/login").Code)

	form := loginValues("alice", "s3cret")
	form.Set("gw_id", "gw-404")
	assert.Equal(t, http.StatusForbidden, e.post("/wifidog/login", form).Code)
}

func TestLoginFormRendersGatewayParams(t *testing.T) {
	e := setup(t)

	rec := e.get("/wifidog/login?gw_id=gw-01&gw_address=10.0.0.1&gw_port=2060&mac=" + clientMAC)
	assert.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `name="username"`)
	assert.Contains(t, body, `name="gw_id" value="gw-01"`)
	assert.Contains(t, body, `value="`+clientMAC+`"`)
}

func TestLoginFailures(t *testing.T) {
	e := setup(t)

	rec := e.post("/wifidog/login", loginValues("alice", "wrong"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid username or password")
	assert.Empty(t, rec.Result().Cookies())

	form := loginValues("alice", "s3cret")
	form.Del("mac")
	rec = e.post("/wifidog/login", form)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "device address")

	rec = e.post("/wifidog/login", loginValues("", ""))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLoginProvisionsAndRedirectsToGateway(t *testing.T) {
	e := setup(t)

	rec := e.post("/wifidog/login", loginValues("alice", "s3cret"))
	require.Equal(t, http.StatusSeeOther, rec.Code)
	cookie := portalCookie(t, rec)
	next := rec.Header().Get("Location")
	assert.Contains(t, next, "provision=1")

	// Signed in but not yet provisioned: the connecting page links onwards.
	rec = e.get("/wifidog/login?gw_id=gw-01&gw_address=10.0.0.1&mac="+clientMAC, cookie)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "provision=1")

	rec = e.get(next, cookie)
	require.Equal(t, http.StatusFound, rec.Code)
	target, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "http", target.Scheme)
	assert.Equal(t, "10.0.0.1:2060", target.Host)
	assert.Equal(t, "/wifidog/auth", target.Path)

	token := target.Query().Get("token")
	require.NotEmpty(t, token)
	sess, err := e.svc.FindByToken(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, sess.Status)
	assert.Equal(t, clientMAC, sess.ClientMAC)
	assert.Equal(t, "gw-01", sess.GatewayID)
	assert.NotNil(t, sess.PolicyID)
}

func TestProvisionRequiresSignIn(t *testing.T) {
	e := setup(t)

	rec := e.get("/wifidog/login?gw_id=gw-01&gw_address=10.0.0.1&mac=" + clientMAC + "&provision=1")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `name="password"`)

	sessions, err := e.svc.ListSessions(context.Background(), "", 0)
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestPortalShowsResolvedSession(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	user, err := e.svc.GetUserByUsername(ctx, "alice")
	require.NoError(t, err)
	issued, err := e.svc.Provision(ctx, user, service.IssueRequest{GatewayID: "gw-01", ClientMAC: clientMAC, ClientIP: "10.10.0.5"})
	require.NoError(t, err)

	rec := e.get("/wifidog/portal?token=" + issued.Token)
	assert.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, clientMAC)
	assert.Contains(t, body, "daily usage")

	// No token, foreign address, no cookie.
	rec = e.get("/wifidog/portal?gw_id=gw-01")
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/wifidog/login?gw_id=gw-01", rec.Header().Get("Location"))
}

func TestLogoutRevokesAndRedirects(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	user, err := e.svc.GetUserByUsername(ctx, "alice")
	require.NoError(t, err)
	issued, err := e.svc.Provision(ctx, user, service.IssueRequest{GatewayID: "gw-01", ClientMAC: clientMAC, ClientIP: "10.10.0.5"})
	require.NoError(t, err)

	// MAC only, from an unrelated address: refused silently.
	rec := e.post("/wifidog/logout", url.Values{"mac": {clientMAC}, "gw_id": {"gw-01"}})
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	sess, err := e.svc.GetSession(ctx, issued.Session.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, sess.Status)

	// The token alone from an unrelated address is refused too.
	rec = e.post("/wifidog/logout", url.Values{"token": {issued.Token}, "gw_id": {"gw-01"}})
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	sess, err = e.svc.GetSession(ctx, issued.Session.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, sess.Status)

	cookie := portalCookie(t, e.post("/wifidog/login", loginValues("alice", "s3cret")))
	rec = e.post("/wifidog/logout", url.Values{"token": {issued.Token}, "gw_id": {"gw-01"}}, cookie)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/wifidog/login?gw_id=gw-01", rec.Header().Get("Location"))
	sess, err = e.svc.GetSession(ctx, issued.Session.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusRevoked, sess.Status)

	rec = e.get("/wifidog/portal?token=" + issued.Token)
	assert.Equal(t, http.StatusFound, rec.Code)
}
