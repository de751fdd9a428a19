package repository

import (
	"context"

	"captive-portal/controlplane/internal/model"
)

func (r *GormRepository) CreateUser(ctx context.Context, u *model.User) error {
	return mapErr(r.db.WithContext(ctx).Create(u).Error)
}

func (r *GormRepository) GetUser(ctx context.Context, id string) (model.User, error) {
	var u model.User
	if err := r.db.WithContext(ctx).First(&u, "id = ?", id).Error; err != nil {
		return model.User{}, mapErr(err)
	}
	return u, nil
}

func (r *GormRepository) GetUserByUsername(ctx context.Context, username string) (model.User, error) {
	var u model.User
	if err := r.db.WithContext(ctx).First(&u, "username = ?", username).Error; err != nil {
		return model.User{}, mapErr(err)
	}
	return u, nil
}
