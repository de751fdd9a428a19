package service

import (
	"context"
	"errors"
	"strings"

	"github.com/sirupsen/logrus"

	"captive-portal/controlplane/internal/metrics"
	"captive-portal/controlplane/internal/model"
	"captive-portal/controlplane/internal/repository"
)

// Heartbeat is one ping from a gateway. Nil telemetry fields were not sent.
type Heartbeat struct {
	GatewayID     string
	MAC           string
	SysUptime     *int64
	SysLoad       *float64
	SysMemFree    *int64
	WifidogUptime *int64
	RemoteIP      string
}

func (s *Service) CreateGateway(ctx context.Context, gatewayID, name, mac string) (model.Gateway, error) {
	gatewayID = strings.TrimSpace(gatewayID)
	if gatewayID == "" {
		return model.Gateway{}, ValidationError{Msg: "gateway_id is required"}
	}
	g := model.NewGateway(gatewayID, strings.TrimSpace(name), mac)
	if err := s.repo.CreateGateway(ctx, &g); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return model.Gateway{}, ValidationError{Msg: "gateway already exists"}
		}
		return model.Gateway{}, err
	}
	return g, nil
}

func (s *Service) ListGateways(ctx context.Context) ([]model.Gateway, error) {
	return s.repo.ListGateways(ctx)
}

// Gateway returns the registered gateway or ErrUnknownGateway.
func (s *Service) Gateway(ctx context.Context, gatewayID string) (model.Gateway, error) {
	if gatewayID == "" {
		return model.Gateway{}, ErrUnknownGateway
	}
	g, err := s.repo.GetGatewayByGatewayID(ctx, gatewayID)
	if errors.Is(err, repository.ErrNotFound) {
		return model.Gateway{}, ErrUnknownGateway
	}
	return g, err
}

// RecordHeartbeat stores gateway telemetry. Heartbeats from unregistered
// gateways are logged and dropped with ErrUnknownGateway; nothing is created.
// LastHeartbeatAt never moves backwards.
func (s *Service) RecordHeartbeat(ctx context.Context, hb Heartbeat) (model.Gateway, error) {
	now := s.clock()
	var out model.Gateway
	err := s.repo.WithTx(ctx, func(repo repository.Repository) error {
		g, err := repo.GetGatewayByGatewayID(ctx, hb.GatewayID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrUnknownGateway
			}
			return err
		}
		if hb.SysUptime != nil {
			g.SysUptime = *hb.SysUptime
		}
		if hb.SysLoad != nil {
			g.SysLoad = *hb.SysLoad
		}
		if hb.SysMemFree != nil {
			g.SysMemFree = *hb.SysMemFree
		}
		if hb.WifidogUptime != nil {
			g.WifidogUptime = *hb.WifidogUptime
		}
		if g.LastHeartbeatAt == nil || now.After(*g.LastHeartbeatAt) {
			g.LastHeartbeatAt = &now
		}
		if g.MACAddress == "" && hb.MAC != "" {
			g.MACAddress = model.NormalizeMAC(hb.MAC)
		}
		if g.ManagementIP == "" && hb.RemoteIP != "" {
			g.ManagementIP = hb.RemoteIP
		}
		if err := repo.SaveGateway(ctx, &g); err != nil {
			return err
		}
		out = g
		return nil
	})
	switch {
	case errors.Is(err, ErrUnknownGateway):
		metrics.Heartbeats.WithLabelValues("unknown").Inc()
		s.log.WithFields(logrus.Fields{"gw_id": hb.GatewayID, "remote_ip": hb.RemoteIP}).
			Warn("heartbeat from unknown gateway")
		return model.Gateway{}, err
	case err != nil:
		metrics.Heartbeats.WithLabelValues("error").Inc()
		return model.Gateway{}, err
	}
	metrics.Heartbeats.WithLabelValues("known").Inc()
	return out, nil
}
