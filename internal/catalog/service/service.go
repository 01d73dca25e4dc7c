// Package service resolves display names and contact details used to enrich
// notification text. Lookups are cached and never fail the caller.
package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"marketplace_backend/internal/catalog/repository"
	"marketplace_backend/platform/logger"
	"marketplace_backend/platform/phone"

	"github.com/google/uuid"
)

const (
	defaultCacheTTL    = 10 * time.Minute
	fallbackService    = "your service request"
	fallbackPartyLabel = "the other party"
)

type cachedEntry struct {
	value     any
	expiresAt time.Time
}

// Service is the catalog collaborator.
type Service struct {
	repo     repository.Repository
	log      *logger.Logger
	ttl      time.Duration
	now      func() time.Time
	services sync.Map // map[uuid.UUID]cachedEntry
	contacts sync.Map // map[uuid.UUID]cachedEntry
}

// New creates a catalog service with the default cache TTL.
func New(repo repository.Repository, log *logger.Logger) *Service {
	return &Service{repo: repo, log: log, ttl: defaultCacheTTL, now: time.Now}
}

// ServiceName returns the display name of a service type, or a generic label
// when it cannot be resolved.
func (s *Service) ServiceName(ctx context.Context, serviceID uuid.UUID) string {
	if serviceID == uuid.Nil {
		return fallbackService
	}
	if v, ok := s.load(&s.services, serviceID); ok {
		return v.(string)
	}

	st, err := s.repo.GetServiceType(ctx, serviceID)
	if err != nil {
		s.log.Debug("service type lookup failed", "serviceId", serviceID, "error", err)
		return fallbackService
	}
	name := strings.TrimSpace(st.Name)
	if name == "" {
		return fallbackService
	}
	s.store(&s.services, serviceID, name)
	return name
}

// ProviderContact returns a provider's contact details.
func (s *Service) ProviderContact(ctx context.Context, providerID uuid.UUID) (repository.Contact, bool) {
	return s.UserContact(ctx, providerID)
}

// UserContact returns a user's contact details with the phone number in E.164.
func (s *Service) UserContact(ctx context.Context, userID uuid.UUID) (repository.Contact, bool) {
	if userID == uuid.Nil {
		return repository.Contact{}, false
	}
	if v, ok := s.load(&s.contacts, userID); ok {
		return v.(repository.Contact), true
	}

	c, err := s.repo.GetContact(ctx, userID)
	if err != nil {
		s.log.Debug("contact lookup failed", "userId", userID, "error", err)
		return repository.Contact{}, false
	}
	c.DisplayName = strings.TrimSpace(c.DisplayName)
	c.Email = strings.TrimSpace(c.Email)
	c.Phone = phone.NormalizeE164(c.Phone)
	s.store(&s.contacts, userID, c)
	return c, true
}

// DisplayName returns a user's display name or a neutral label.
func (s *Service) DisplayName(ctx context.Context, userID uuid.UUID) string {
	if c, ok := s.UserContact(ctx, userID); ok && c.DisplayName != "" {
		return c.DisplayName
	}
	return fallbackPartyLabel
}

func (s *Service) load(cache *sync.Map, key uuid.UUID) (any, bool) {
	cached, ok := cache.Load(key)
	if !ok {
		return nil, false
	}
	entry := cached.(cachedEntry)
	if s.now().Before(entry.expiresAt) {
		return entry.value, true
	}
	cache.Delete(key)
	return nil, false
}

func (s *Service) store(cache *sync.Map, key uuid.UUID, value any) {
	cache.Store(key, cachedEntry{value: value, expiresAt: s.now().Add(s.ttl)})
}
