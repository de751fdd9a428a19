// Package service implements the captive-portal control plane: the gateway
// registry, the session store, counter ingestion and the access decisions
// answered to gateways.
package service

import (
	"time"

	"github.com/sirupsen/logrus"

	"captive-portal/controlplane/internal/logging"
	"captive-portal/controlplane/internal/repository"
)

type Service struct {
	repo      repository.Repository
	selector  PolicySelector
	resolvers []SessionResolver
	log       *logrus.Entry
	now       func() time.Time
}

type Option func(*Service)

func WithLogger(log *logrus.Entry) Option {
	return func(s *Service) { s.log = log }
}

// WithClock replaces time.Now; tests use it to pin evaluation instants.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithResolvers replaces the default token -> client IP -> user chain.
func WithResolvers(resolvers ...SessionResolver) Option {
	return func(s *Service) { s.resolvers = resolvers }
}

func New(repo repository.Repository, selector PolicySelector, opts ...Option) *Service {
	s := &Service{
		repo:     repo,
		selector: selector,
		log:      logging.Discard(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.resolvers == nil {
		s.resolvers = DefaultResolvers(repo)
	}
	return s
}

func (s *Service) clock() time.Time {
	return s.now().UTC()
}
