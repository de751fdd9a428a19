package service

import (
	"context"
	"errors"
	"strings"

	"captive-portal/controlplane/internal/model"
	"captive-portal/controlplane/internal/repository"
)

// Authenticator verifies a human's credentials on the login form.
type Authenticator interface {
	Authenticate(ctx context.Context, username, password string) (model.User, error)
}

// LocalAuthenticator checks bcrypt hashes stored in the users table.
type LocalAuthenticator struct {
	repo repository.Repository
}

func NewLocalAuthenticator(repo repository.Repository) *LocalAuthenticator {
	return &LocalAuthenticator{repo: repo}
}

func (a *LocalAuthenticator) Authenticate(ctx context.Context, username, password string) (model.User, error) {
	u, err := a.repo.GetUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.User{}, AuthError{Msg: "invalid username or password"}
		}
		return model.User{}, err
	}
	if !u.VerifyPassword(password) {
		return model.User{}, AuthError{Msg: "invalid username or password"}
	}
	return u, nil
}

// CreateUser registers a portal account. policyName may be empty.
func (s *Service) CreateUser(ctx context.Context, username, name, password, policyName string) (model.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return model.User{}, ValidationError{Msg: "username and password are required"}
	}
	if name == "" {
		name = username
	}
	u, err := model.NewUser(username, name, password)
	if err != nil {
		return model.User{}, err
	}
	if policyName != "" {
		p, err := s.repo.GetPolicyByName(ctx, policyName)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return model.User{}, ValidationError{Msg: "unknown policy " + policyName}
			}
			return model.User{}, err
		}
		u.PolicyID = &p.ID
	}
	if err := s.repo.CreateUser(ctx, &u); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return model.User{}, ValidationError{Msg: "username already exists"}
		}
		return model.User{}, err
	}
	return u, nil
}

func (s *Service) GetUser(ctx context.Context, id string) (model.User, error) {
	return s.repo.GetUser(ctx, id)
}

func (s *Service) GetUserByUsername(ctx context.Context, username string) (model.User, error) {
	return s.repo.GetUserByUsername(ctx, strings.TrimSpace(username))
}
