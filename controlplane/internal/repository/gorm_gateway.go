package repository

import (
	"context"

	"captive-portal/controlplane/internal/model"
)

func (r *GormRepository) CreateGateway(ctx context.Context, g *model.Gateway) error {
	return mapErr(r.db.WithContext(ctx).Create(g).Error)
}

func (r *GormRepository) SaveGateway(ctx context.Context, g *model.Gateway) error {
	return mapErr(r.db.WithContext(ctx).Save(g).Error)
}

func (r *GormRepository) ListGateways(ctx context.Context) ([]model.Gateway, error) {
	var out []model.Gateway
	if err := r.db.WithContext(ctx).Order("gateway_id").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *GormRepository) GetGatewayByGatewayID(ctx context.Context, gatewayID string) (model.Gateway, error) {
	var g model.Gateway
	if err := r.db.WithContext(ctx).First(&g, "gateway_id = ?", gatewayID).Error; err != nil {
		return model.Gateway{}, mapErr(err)
	}
	return g, nil
}
