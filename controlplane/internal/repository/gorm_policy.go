package repository

import (
	"context"

	"captive-portal/controlplane/internal/model"
)

func (r *GormRepository) SavePolicy(ctx context.Context, p *model.Policy) error {
	return mapErr(r.db.WithContext(ctx).Save(p).Error)
}

func (r *GormRepository) ListPolicies(ctx context.Context) ([]model.Policy, error) {
	var out []model.Policy
	if err := r.db.WithContext(ctx).Order("name").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *GormRepository) GetPolicy(ctx context.Context, id string) (model.Policy, error) {
	var p model.Policy
	if err := r.db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		return model.Policy{}, mapErr(err)
	}
	return p, nil
}

func (r *GormRepository) GetPolicyByName(ctx context.Context, name string) (model.Policy, error) {
	var p model.Policy
	if err := r.db.WithContext(ctx).First(&p, "name = ?", name).Error; err != nil {
		return model.Policy{}, mapErr(err)
	}
	return p, nil
}
