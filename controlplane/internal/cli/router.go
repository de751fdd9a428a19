package cli

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"captive-portal/controlplane/internal/config"
	apiHandler "captive-portal/controlplane/internal/handler/api"
	protocolHandler "captive-portal/controlplane/internal/handler/protocol"
	uiHandler "captive-portal/controlplane/internal/handler/ui"
	"captive-portal/controlplane/internal/metrics"
	appmw "captive-portal/controlplane/internal/middleware"
	"captive-portal/controlplane/internal/service"
)

// NewRouter assembles every HTTP surface of the control plane.
func NewRouter(svc *service.Service, authn service.Authenticator, env config.Env, log *logrus.Entry) (http.Handler, error) {
	human := appmw.NewHumanAuth(env.JWTSecret, env.CookieSecure)
	ui, err := uiHandler.NewHandler(svc, authn, human, env.GatewayAuthPath, log)
	if err != nil {
		return nil, err
	}
	proto := protocolHandler.NewHandler(svc, log)
	api := apiHandler.NewHandler(svc, human, env.AdminUser, env.AdminPass, log)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(appmw.TrustedRealIP(env.TrustedProxies))
	r.Use(appmw.RequestLog(log))
	r.Use(chimw.Recoverer)
	r.Use(chimw.StripSlashes)
	r.Use(metrics.Middleware)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/wifidog", func(r chi.Router) {
		proto.RegisterRoutes(r)
		ui.RegisterRoutes(r)
	})

	// Register API routes with Huma
	api.RegisterRoutes(r)

	return r, nil
}
