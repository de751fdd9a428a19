package ui

import (
	"bytes"
	"embed"
	"errors"
	"html/template"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"captive-portal/controlplane/internal/middleware"
	"captive-portal/controlplane/internal/model"
	"captive-portal/controlplane/internal/service"
)

//go:embed templates/*.html
var templatesFS embed.FS

var validate = validator.New()

const (
	defaultGatewayPort = "2060"
	loginPath          = "/wifidog/login"
)

type Handler struct {
	svc       *service.Service
	authn     service.Authenticator
	human     *middleware.HumanAuth
	templates *template.Template
	authPath  string
	log       *logrus.Entry
}

// NewHandler builds the human-facing portal pages. authPath is the path on
// the gateway that accepts a provisioned token.
func NewHandler(svc *service.Service, authn service.Authenticator, human *middleware.HumanAuth, authPath string, log *logrus.Entry) (*Handler, error) {
	tmpl, err := template.New("").Funcs(template.FuncMap{
		"bytes": func(n int64) string {
			if n < 0 {
				n = 0
			}
			return humanize.Bytes(uint64(n))
		},
	}).ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	return &Handler{svc: svc, authn: authn, human: human, templates: tmpl, authPath: authPath, log: log}, nil
}

// RegisterRoutes mounts the portal pages on the /wifidog sub-router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.human.Optional)
		r.Get("/login", h.login)
		r.Post("/login", h.submitLogin)
		r.Get("/portal", h.portal)
		r.Post("/logout", h.logout)
	})
}

// gatewayParams are the values a gateway appends when it redirects a
// client to the login page. They are carried through the form unchanged.
type gatewayParams struct {
	GatewayID string `validate:"required"`
	Address   string
	Port      string `validate:"omitempty,numeric"`
	MAC       string `validate:"required,mac"`
	IP        string `validate:"omitempty,ip"`
	URL       string
	SSID      string
}

func readGatewayParams(v url.Values) gatewayParams {
	return gatewayParams{
		GatewayID: strings.TrimSpace(v.Get("gw_id")),
		Address:   strings.TrimSpace(v.Get("gw_address")),
		Port:      strings.TrimSpace(v.Get("gw_port")),
		MAC:       strings.TrimSpace(v.Get("mac")),
		IP:        strings.TrimSpace(v.Get("ip")),
		URL:       v.Get("url"),
		SSID:      v.Get("ssid"),
	}
}

func (p gatewayParams) values() url.Values {
	v := url.Values{}
	set := func(k, val string) {
		if val != "" {
			v.Set(k, val)
		}
	}
	set("gw_id", p.GatewayID)
	set("gw_address", p.Address)
	set("gw_port", p.Port)
	set("mac", p.MAC)
	set("ip", p.IP)
	set("url", p.URL)
	set("ssid", p.SSID)
	return v
}

func (p gatewayParams) provisionURL() string {
	v := p.values()
	v.Set("provision", "1")
	return loginPath + "?" + v.Encode()
}

type loginForm struct {
	Username string `validate:"required,max=64"`
	Password string `validate:"required,max=256"`
	Gateway  gatewayParams
}

type loginPage struct {
	Params   gatewayParams
	Hidden   url.Values
	Username string
	Error    string
	Fields   map[string]string
}

type connectingPage struct {
	Username     string
	ProvisionURL string
}

type portalPage struct {
	Username string
	Status   service.PortalStatus
	Token    string
	LoginURL string
}

func (h *Handler) render(w http.ResponseWriter, status int, name string, data any) {
	var buf bytes.Buffer
	if err := h.templates.ExecuteTemplate(&buf, name, data); err != nil {
		h.log.WithError(err).WithField("template", name).Error("render")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

func (h *Handler) renderLogin(w http.ResponseWriter, status int, page loginPage) {
	page.Hidden = page.Params.values()
	h.render(w, status, "login.html", page)
}

// knownGateway writes 403 and returns false for unregistered gateways.
func (h *Handler) knownGateway(w http.ResponseWriter, r *http.Request, gatewayID string) (model.Gateway, bool) {
	gw, err := h.svc.Gateway(r.Context(), gatewayID)
	if err != nil {
		if !errors.Is(err, service.ErrUnknownGateway) {
			h.log.WithError(err).Error("gateway lookup")
			http.Error(w, "internal error", http.StatusInternalServerError)
			return model.Gateway{}, false
		}
		h.log.WithFields(logrus.Fields{"gw_id": gatewayID, "remote_ip": middleware.ClientIP(r)}).Warn("login from unknown gateway")
		http.Error(w, "unknown gateway", http.StatusForbidden)
		return model.Gateway{}, false
	}
	return gw, true
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	params := readGatewayParams(q)
	gw, ok := h.knownGateway(w, r, params.GatewayID)
	if !ok {
		return
	}

	claims, signedIn := middleware.HumanFromContext(r.Context())
	switch {
	case !signedIn:
		h.renderLogin(w, http.StatusOK, loginPage{Params: params})
	case q.Get("provision") == "1":
		h.provision(w, r, params, gw, claims)
	default:
		h.render(w, http.StatusOK, "connecting.html", connectingPage{
			Username:     claims.Username,
			ProvisionURL: params.provisionURL(),
		})
	}
}

func (h *Handler) submitLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	form := loginForm{
		Username: strings.TrimSpace(r.PostForm.Get("username")),
		Password: r.PostForm.Get("password"),
		Gateway:  readGatewayParams(r.PostForm),
	}
	if _, ok := h.knownGateway(w, r, form.Gateway.GatewayID); !ok {
		return
	}
	if err := validate.Struct(form); err != nil {
		h.renderLogin(w, http.StatusBadRequest, loginPage{
			Params:   form.Gateway,
			Username: form.Username,
			Error:    "Please check the highlighted fields.",
			Fields:   fieldErrors(err),
		})
		return
	}

	user, err := h.authn.Authenticate(r.Context(), form.Username, form.Password)
	if err != nil {
		status := http.StatusUnauthorized
		msg := "Invalid username or password."
		if !service.IsAuth(err) {
			h.log.WithError(err).Error("authenticate")
			status = http.StatusInternalServerError
			msg = "Sign-in is unavailable, try again shortly."
		}
		h.renderLogin(w, status, loginPage{Params: form.Gateway, Username: form.Username, Error: msg})
		return
	}
	if err := h.human.SetCookie(w, user); err != nil {
		h.log.WithError(err).Error("sign portal cookie")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, form.Gateway.provisionURL(), http.StatusSeeOther)
}

func (h *Handler) provision(w http.ResponseWriter, r *http.Request, params gatewayParams, gw model.Gateway, claims middleware.HumanClaims) {
	ctx := r.Context()
	user, err := h.svc.GetUser(ctx, claims.UserID)
	if service.IsNotFound(err) {
		h.human.ClearCookie(w)
		h.renderLogin(w, http.StatusOK, loginPage{Params: params})
		return
	}
	if err != nil {
		h.log.WithError(err).Error("load user")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if err := validate.Struct(params); err != nil {
		http.Error(w, "invalid gateway parameters", http.StatusBadRequest)
		return
	}

	host := params.Address
	if host == "" {
		host = gw.ManagementIP
	}
	if host == "" {
		http.Error(w, "gateway address unknown", http.StatusBadRequest)
		return
	}
	port := params.Port
	if port == "" {
		port = defaultGatewayPort
	}

	clientIP := params.IP
	if clientIP == "" {
		clientIP = middleware.ClientIP(r)
	}
	issued, err := h.svc.Provision(ctx, user, service.IssueRequest{
		GatewayID: gw.GatewayID,
		ClientMAC: params.MAC,
		ClientIP:  clientIP,
		SSID:      params.SSID,
	})
	if err != nil {
		if service.IsValidation(err) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.log.WithError(err).Error("issue session")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	target := url.URL{
		Scheme:   "http",
		Host:     net.JoinHostPort(host, port),
		Path:     h.authPath,
		RawQuery: url.Values{"token": {issued.Token}}.Encode(),
	}
	http.Redirect(w, r, target.String(), http.StatusFound)
}

func (h *Handler) portal(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	token := r.URL.Query().Get("token")
	claims, _ := middleware.HumanFromContext(ctx)

	sess, err := h.svc.ResolveSession(ctx, service.ResolveRequest{
		Token:    token,
		ClientIP: middleware.ClientIP(r),
		UserID:   claims.UserID,
	})
	if err != nil {
		h.log.WithError(err).Error("resolve session")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if sess == nil || sess.Status.Terminal() {
		gatewayID := r.URL.Query().Get("gw_id")
		if sess != nil {
			gatewayID = sess.GatewayID
		}
		http.Redirect(w, r, loginPath+"?"+url.Values{"gw_id": {gatewayID}}.Encode(), http.StatusFound)
		return
	}

	status, err := h.svc.Status(ctx, *sess)
	if err != nil {
		h.log.WithError(err).Error("portal status")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	h.render(w, http.StatusOK, "portal.html", portalPage{
		Username: claims.Username,
		Status:   status,
		Token:    token,
		LoginURL: loginPath + "?" + url.Values{"gw_id": {sess.GatewayID}}.Encode(),
	})
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	claims, _ := middleware.HumanFromContext(r.Context())
	ok, err := h.svc.Logout(r.Context(), service.LogoutRequest{
		Token:        strings.TrimSpace(r.PostForm.Get("token")),
		MAC:          strings.TrimSpace(r.PostForm.Get("mac")),
		CallerUserID: claims.UserID,
		CallerIP:     middleware.ClientIP(r),
	})
	if err != nil {
		h.log.WithError(err).Error("logout")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if ok {
		h.human.ClearCookie(w)
	}
	target := loginPath
	if gw := r.PostForm.Get("gw_id"); gw != "" {
		target += "?" + url.Values{"gw_id": {gw}}.Encode()
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func fieldErrors(err error) map[string]string {
	out := map[string]string{}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return out
	}
	for _, fe := range verrs {
		out[fe.Field()] = fe.Tag()
	}
	return out
}
