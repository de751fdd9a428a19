package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"captive-portal/controlplane/internal/evaluator"
	"captive-portal/controlplane/internal/middleware"
	"captive-portal/controlplane/internal/model"
	"captive-portal/controlplane/internal/service"
)

const apiTitle = "Captive Portal API"

type Handler struct {
	svc       *service.Service
	human     *middleware.HumanAuth
	adminUser string
	adminPass string
	log       *logrus.Entry
}

func NewHandler(svc *service.Service, human *middleware.HumanAuth, adminUser, adminPass string, log *logrus.Entry) *Handler {
	return &Handler{svc: svc, human: human, adminUser: adminUser, adminPass: adminPass, log: log}
}

// --- Request/Response types ---

type StatusInput struct {
	Token string `query:"token" doc:"Session token; optional when the caller's address or sign-in identifies the session"`
}

type PortalStatusBody struct {
	SessionID     string                                 `json:"session_id"`
	Status        model.SessionStatus                    `json:"status"`
	GatewayID     string                                 `json:"gateway_id"`
	ClientMAC     string                                 `json:"client_mac"`
	BytesIn       int64                                  `json:"bytes_in"`
	BytesOut      int64                                  `json:"bytes_out"`
	UptimeSeconds int64                                  `json:"uptime_seconds"`
	Policy        string                                 `json:"policy,omitempty"`
	ActiveDevices int                                    `json:"active_devices"`
	Allowed       bool                                   `json:"allowed"`
	Reason        string                                 `json:"reason,omitempty"`
	Windows       map[model.Window]evaluator.WindowUsage `json:"windows_usage"`
}

type PortalStatusOutput struct {
	Body PortalStatusBody
}

type LogoutInput struct {
	Body struct {
		Token string `json:"token,omitempty"`
		MAC   string `json:"mac,omitempty"`
	}
}

type LogoutOutput struct {
	Body struct {
		OK bool `json:"ok"`
	}
}

type GatewaysOutput struct {
	Body []model.Gateway
}

type CreateGatewayInput struct {
	Body struct {
		GatewayID string `json:"gateway_id" required:"true" minLength:"1" maxLength:"64"`
		Name      string `json:"name,omitempty"`
		MAC       string `json:"mac,omitempty"`
	}
}

type GatewayOutput struct {
	Body model.Gateway
}

type ListSessionsInput struct {
	Status string `query:"status" enum:"PENDING,AUTH,REVOKED,EXPIRED,BLOCKED" doc:"Only sessions in this status"`
	Limit  int    `query:"limit" minimum:"0" maximum:"1000" default:"100"`
}

type SessionsOutput struct {
	Body []model.Session
}

type SessionInput struct {
	ID string `path:"id"`
}

type SessionOutput struct {
	Body model.Session
}

type CountersInput struct {
	ID    string `path:"id"`
	Limit int    `query:"limit" minimum:"0" maximum:"1000" default:"100"`
}

type CountersOutput struct {
	Body []model.CounterReport
}

type PoliciesOutput struct {
	Body []model.Policy
}

// --- Register routes ---

func (h *Handler) RegisterRoutes(r chi.Router) {
	// Portal client endpoints
	r.Group(func(r chi.Router) {
		r.Use(h.human.Optional)
		r.Use(middleware.WithClientIP)
		api := humachi.New(r, huma.DefaultConfig(apiTitle, "1.0.0"))
		huma.Register(api, huma.Operation{
			OperationID: "portal-status",
			Method:      http.MethodGet,
			Path:        "/api/portal/status",
			Summary:     "Current session, usage and access decision",
		}, h.portalStatus)
		huma.Register(api, huma.Operation{
			OperationID: "logout",
			Method:      http.MethodPost,
			Path:        "/api/logout",
			Summary:     "End a session by token or client MAC",
		}, h.logout)
	})

	// Operator endpoints
	r.Group(func(r chi.Router) {
		r.Use(middleware.BasicAuth(h.adminUser, h.adminPass, h.log))
		config := huma.DefaultConfig(apiTitle+" (admin)", "1.0.0")
		config.OpenAPIPath = "/api/admin/openapi"
		config.DocsPath = ""
		config.SchemasPath = "/api/admin/schemas"
		api := humachi.New(r, config)
		huma.Register(api, huma.Operation{
			OperationID: "list-gateways",
			Method:      http.MethodGet,
			Path:        "/api/admin/gateways",
			Summary:     "List gateways",
		}, h.listGateways)
		huma.Register(api, huma.Operation{
			OperationID:   "create-gateway",
			Method:        http.MethodPost,
			Path:          "/api/admin/gateways",
			Summary:       "Register a gateway",
			DefaultStatus: http.StatusCreated,
		}, h.createGateway)
		huma.Register(api, huma.Operation{
			OperationID: "list-sessions",
			Method:      http.MethodGet,
			Path:        "/api/admin/sessions",
			Summary:     "List sessions",
		}, h.listSessions)
		huma.Register(api, huma.Operation{
			OperationID: "block-session",
			Method:      http.MethodPost,
			Path:        "/api/admin/sessions/{id}/block",
			Summary:     "Block a session",
		}, h.blockSession)
		huma.Register(api, huma.Operation{
			OperationID: "session-counters",
			Method:      http.MethodGet,
			Path:        "/api/admin/sessions/{id}/counters",
			Summary:     "Counter reports for a session, newest first",
		}, h.sessionCounters)
		huma.Register(api, huma.Operation{
			OperationID: "list-policies",
			Method:      http.MethodGet,
			Path:        "/api/admin/policies",
			Summary:     "List policies",
		}, h.listPolicies)
	})
}

// --- Handlers ---

func (h *Handler) portalStatus(ctx context.Context, input *StatusInput) (*PortalStatusOutput, error) {
	claims, _ := middleware.HumanFromContext(ctx)
	sess, err := h.svc.ResolveSession(ctx, service.ResolveRequest{
		Token:    input.Token,
		ClientIP: middleware.ClientIPFromContext(ctx),
		UserID:   claims.UserID,
	})
	if err != nil {
		return nil, toHumaError(err)
	}
	if sess == nil {
		return nil, huma.Error404NotFound("no session")
	}
	st, err := h.svc.Status(ctx, *sess)
	if err != nil {
		return nil, toHumaError(err)
	}

	resp := &PortalStatusOutput{Body: PortalStatusBody{
		SessionID:     st.Session.ID,
		Status:        st.Session.Status,
		GatewayID:     st.Session.GatewayID,
		ClientMAC:     st.Session.ClientMAC,
		BytesIn:       st.Session.BytesIn,
		BytesOut:      st.Session.BytesOut,
		UptimeSeconds: st.Session.UptimeSeconds,
		ActiveDevices: st.Devices,
		Allowed:       st.Decision.Allowed && !st.Session.Status.Terminal(),
		Reason:        st.Decision.Reason,
		Windows:       st.Decision.Windows,
	}}
	if st.Session.Status.Terminal() {
		resp.Body.Reason = st.Session.EndReason
	}
	if st.Policy != nil {
		resp.Body.Policy = st.Policy.Name
	}
	return resp, nil
}

func (h *Handler) logout(ctx context.Context, input *LogoutInput) (*LogoutOutput, error) {
	claims, _ := middleware.HumanFromContext(ctx)
	ok, err := h.svc.Logout(ctx, service.LogoutRequest{
		Token:        input.Body.Token,
		MAC:          input.Body.MAC,
		CallerUserID: claims.UserID,
		CallerIP:     middleware.ClientIPFromContext(ctx),
	})
	if err != nil {
		return nil, toHumaError(err)
	}
	resp := &LogoutOutput{}
	resp.Body.OK = ok
	return resp, nil
}

func (h *Handler) listGateways(ctx context.Context, input *struct{}) (*GatewaysOutput, error) {
	gateways, err := h.svc.ListGateways(ctx)
	if err != nil {
		return nil, toHumaError(err)
	}
	return &GatewaysOutput{Body: gateways}, nil
}

func (h *Handler) createGateway(ctx context.Context, input *CreateGatewayInput) (*GatewayOutput, error) {
	gw, err := h.svc.CreateGateway(ctx, input.Body.GatewayID, input.Body.Name, input.Body.MAC)
	if err != nil {
		return nil, toHumaError(err)
	}
	return &GatewayOutput{Body: gw}, nil
}

func (h *Handler) listSessions(ctx context.Context, input *ListSessionsInput) (*SessionsOutput, error) {
	sessions, err := h.svc.ListSessions(ctx, model.SessionStatus(input.Status), input.Limit)
	if err != nil {
		return nil, toHumaError(err)
	}
	return &SessionsOutput{Body: sessions}, nil
}

func (h *Handler) blockSession(ctx context.Context, input *SessionInput) (*SessionOutput, error) {
	sess, err := h.svc.BlockSession(ctx, input.ID)
	if err != nil {
		return nil, toHumaError(err)
	}
	return &SessionOutput{Body: sess}, nil
}

func (h *Handler) sessionCounters(ctx context.Context, input *CountersInput) (*CountersOutput, error) {
	reports, err := h.svc.CounterReports(ctx, input.ID, input.Limit)
	if err != nil {
		return nil, toHumaError(err)
	}
	return &CountersOutput{Body: reports}, nil
}

func (h *Handler) listPolicies(ctx context.Context, input *struct{}) (*PoliciesOutput, error) {
	policies, err := h.svc.ListPolicies(ctx)
	if err != nil {
		return nil, toHumaError(err)
	}
	return &PoliciesOutput{Body: policies}, nil
}

func toHumaError(err error) error {
	if service.IsValidation(err) {
		return huma.Error400BadRequest(err.Error())
	}
	if service.IsNotFound(err) {
		return huma.Error404NotFound("not found")
	}
	if service.IsAuth(err) {
		return huma.Error401Unauthorized("unauthorized")
	}
	return huma.Error500InternalServerError(err.Error())
}
