package service

import (
	"context"
	"errors"

	"captive-portal/controlplane/internal/model"
	"captive-portal/controlplane/internal/repository"
)

// ResolveRequest is what a portal request can tell us about its client.
type ResolveRequest struct {
	Token    string
	ClientIP string
	UserID   string
}

// SessionResolver finds the session a request refers to. A nil session with
// a nil error is a miss and lets the next resolver try.
type SessionResolver interface {
	Resolve(ctx context.Context, req ResolveRequest) (*model.Session, error)
}

// DefaultResolvers is the lookup order used by the portal pages: explicit
// token, then the requesting client address, then the logged-in user.
func DefaultResolvers(repo repository.Repository) []SessionResolver {
	return []SessionResolver{
		TokenResolver{repo: repo},
		ClientIPResolver{repo: repo},
		UserResolver{repo: repo},
	}
}

type TokenResolver struct {
	repo repository.Repository
}

func (r TokenResolver) Resolve(ctx context.Context, req ResolveRequest) (*model.Session, error) {
	if req.Token == "" {
		return nil, nil
	}
	return found(r.repo.GetSessionByTokenHash(ctx, HashToken(req.Token)))
}

type ClientIPResolver struct {
	repo repository.Repository
}

func (r ClientIPResolver) Resolve(ctx context.Context, req ResolveRequest) (*model.Session, error) {
	if req.ClientIP == "" {
		return nil, nil
	}
	return found(r.repo.LatestSessionByIP(ctx, req.ClientIP, model.LiveStatuses...))
}

type UserResolver struct {
	repo repository.Repository
}

func (r UserResolver) Resolve(ctx context.Context, req ResolveRequest) (*model.Session, error) {
	if req.UserID == "" {
		return nil, nil
	}
	return found(r.repo.LatestSessionByUser(ctx, req.UserID, model.LiveStatuses...))
}

func found(s model.Session, err error) (*model.Session, error) {
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// ResolveSession walks the resolver chain and stops at the first hit.
func (s *Service) ResolveSession(ctx context.Context, req ResolveRequest) (*model.Session, error) {
	for _, r := range s.resolvers {
		sess, err := r.Resolve(ctx, req)
		if err != nil {
			return nil, err
		}
		if sess != nil {
			return sess, nil
		}
	}
	return nil, nil
}
