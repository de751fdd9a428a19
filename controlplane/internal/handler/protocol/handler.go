// Package protocol serves the endpoints captive-portal gateways call
// directly: heartbeat ping and token/counter auth. Answers are always 200;
// failures degrade to a deny.
package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"captive-portal/controlplane/internal/metrics"
	"captive-portal/controlplane/internal/middleware"
	"captive-portal/controlplane/internal/service"
)

const maxBatchBody = 1 << 20

type Handler struct {
	svc *service.Service
	log *logrus.Entry
}

func NewHandler(svc *service.Service, log *logrus.Entry) *Handler {
	return &Handler{svc: svc, log: log}
}

// RegisterRoutes mounts ping and auth on r, which is expected to be the
// /wifidog sub-router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ping", h.ping)
	r.Get("/auth", h.auth)
	r.Post("/auth", h.authBatch)
}

func (h *Handler) ping(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	mac := q.Get("gw_mac")
	if mac == "" {
		mac = q.Get("mac")
	}
	_, err := h.svc.RecordHeartbeat(r.Context(), service.Heartbeat{
		GatewayID:     q.Get("gw_id"),
		MAC:           mac,
		SysUptime:     queryInt(q.Get("sys_uptime")),
		SysLoad:       queryFloat(q.Get("sys_load")),
		SysMemFree:    queryInt(q.Get("sys_memfree")),
		WifidogUptime: queryInt(q.Get("wifidog_uptime")),
		RemoteIP:      middleware.ClientIP(r),
	})
	if err != nil && !errors.Is(err, service.ErrUnknownGateway) {
		h.log.WithError(err).WithField("gw_id", q.Get("gw_id")).Error("record heartbeat")
	}
	writeText(w, "Pong")
}

func (h *Handler) auth(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	res, err := h.svc.ValidateToken(r.Context(), service.AuthRequest{
		Token:     q.Get("token"),
		MAC:       q.Get("mac"),
		GatewayID: q.Get("gw_id"),
		Stage:     q.Get("stage"),
		Incoming:  queryInt(q.Get("incoming")),
		Outgoing:  queryInt(q.Get("outgoing")),
		Uptime:    queryInt(q.Get("uptime")),
		Raw:       r.URL.RawQuery,
	})
	if err != nil {
		h.log.WithError(err).WithField("gw_id", q.Get("gw_id")).Error("validate token")
		res = service.AuthResult{Reason: "error"}
	}
	metrics.Decision("auth", res.Allowed, res.Reason)
	if res.Allowed {
		writeText(w, "Auth: 1")
		return
	}
	writeText(w, "Auth: 0")
}

type counterEntry struct {
	Token    string `json:"token"`
	MAC      string `json:"mac"`
	Incoming int64  `json:"incoming"`
	Outgoing int64  `json:"outgoing"`
	Uptime   *int64 `json:"uptime,omitempty"`
}

type counterBatch struct {
	GatewayID string         `json:"gw_id"`
	Clients   []counterEntry `json:"clients"`
}

type batchVerdict struct {
	MAC  string `json:"mac"`
	Auth int    `json:"auth"`
}

type batchResponse struct {
	Resp []batchVerdict `json:"resp"`
}

// authBatch accepts either a bare JSON array of clients or an object with
// gw_id and clients. An unreadable body yields an empty verdict list.
func (h *Handler) authBatch(w http.ResponseWriter, r *http.Request) {
	resp := batchResponse{Resp: []batchVerdict{}}

	batch, raws, err := decodeBatch(io.LimitReader(r.Body, maxBatchBody))
	if err != nil {
		h.log.WithError(err).Warn("malformed counter batch")
		writeJSON(w, resp)
		return
	}
	gatewayID := batch.GatewayID
	if gatewayID == "" {
		gatewayID = r.URL.Query().Get("gw_id")
	}

	entries := make([]service.CounterEntry, 0, len(batch.Clients))
	for i, c := range batch.Clients {
		entries = append(entries, service.CounterEntry{
			Token:    c.Token,
			MAC:      c.MAC,
			Incoming: c.Incoming,
			Outgoing: c.Outgoing,
			Uptime:   c.Uptime,
			Raw:      string(raws[i]),
		})
	}
	for _, v := range h.svc.IngestCounters(r.Context(), gatewayID, entries) {
		metrics.Decision("counters", v.Allowed, v.Reason)
		auth := 0
		if v.Allowed {
			auth = 1
		}
		resp.Resp = append(resp.Resp, batchVerdict{MAC: v.MAC, Auth: auth})
	}
	writeJSON(w, resp)
}

func decodeBatch(r io.Reader) (counterBatch, []json.RawMessage, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return counterBatch{}, nil, err
	}
	body = bytes.TrimSpace(body)

	var items []json.RawMessage
	var batch counterBatch
	if len(body) > 0 && body[0] == '[' {
		if err := json.Unmarshal(body, &items); err != nil {
			return counterBatch{}, nil, err
		}
	} else {
		var envelope struct {
			GatewayID string            `json:"gw_id"`
			Clients   []json.RawMessage `json:"clients"`
		}
		if err := json.Unmarshal(body, &envelope); err != nil {
			return counterBatch{}, nil, err
		}
		batch.GatewayID = envelope.GatewayID
		items = envelope.Clients
	}

	// A malformed entry keeps whatever MAC can be read and, having no
	// token, is denied on its own.
	batch.Clients = make([]counterEntry, len(items))
	for i, raw := range items {
		if err := json.Unmarshal(raw, &batch.Clients[i]); err != nil {
			var loose struct {
				MAC string `json:"mac"`
			}
			_ = json.Unmarshal(raw, &loose)
			batch.Clients[i] = counterEntry{MAC: loose.MAC}
		}
	}
	return batch, items, nil
}

func queryInt(s string) *int64 {
	if s == "" {
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil
	}
	return &v
}

func queryFloat(s string) *float64 {
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

func writeText(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, body)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(v)
}
