package planners

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/MarcoPoloResearchLab/seatplan/internal/auth"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const defaultProvider = "local"

var (
	// ErrInvalidIdentity indicates the claims did not contain a usable identifier.
	ErrInvalidIdentity = errors.New("planners: invalid identity")

	errMissingDatabase = errors.New("planners: database connection required")
	errMissingIDSource = errors.New("planners: plan id source required")
)

// PlanIDSource issues identifiers for newly created plans.
type PlanIDSource interface {
	NewID() (string, error)
}

// ServiceConfig describes the dependencies required for plan resolution.
type ServiceConfig struct {
	Database *gorm.DB
	IDs      PlanIDSource
	Clock    func() time.Time
	Logger   *zap.Logger
}

// Service maps provider logins to the plan each planner owns.
type Service struct {
	db     *gorm.DB
	ids    PlanIDSource
	now    func() time.Time
	logger *zap.Logger
	cache  sync.Map
}

// NewService constructs the planner identity service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, errMissingDatabase
	}
	if cfg.IDs == nil {
		return nil, errMissingIDSource
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		db:     cfg.Database,
		ids:    cfg.IDs,
		now:    clock,
		logger: logger,
	}, nil
}

// ResolvePlanID returns the plan id of the planner described by claims,
// allocating a fresh plan the first time a provider+subject pair is seen.
func (s *Service) ResolvePlanID(ctx context.Context, claims auth.SessionClaims) (string, error) {
	provider, subject := deriveProviderSubject(claims)
	if subject == "" {
		return "", ErrInvalidIdentity
	}

	cacheKey := provider + ":" + subject
	if cached, ok := s.cache.Load(cacheKey); ok {
		if planID, ok := cached.(string); ok {
			return planID, nil
		}
	}

	var identity Identity
	err := s.db.WithContext(ctx).
		Where("provider = ? AND subject = ?", provider, subject).
		First(&identity).
		Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		planID, err := s.ids.NewID()
		if err != nil {
			return "", fmt.Errorf("planners: allocate plan id: %w", err)
		}
		identity = Identity{
			Provider:    provider,
			Subject:     subject,
			PlanID:      planID,
			Email:       normalize(claims.Email),
			DisplayName: normalize(claims.DisplayName),
			LastSeenAt:  s.now(),
		}
		if err := s.db.WithContext(ctx).Create(&identity).Error; err != nil {
			return "", err
		}
		s.logger.Info("planner registered",
			zap.String("provider", provider),
			zap.String("plan_id", planID))
	case err != nil:
		return "", err
	default:
		updates := map[string]interface{}{"last_seen_at": s.now()}
		if email := normalize(claims.Email); email != "" && email != identity.Email {
			updates["planner_email"] = email
		}
		if display := normalize(claims.DisplayName); display != "" && display != identity.DisplayName {
			updates["planner_display_name"] = display
		}
		if err := s.db.WithContext(ctx).Model(&Identity{}).
			Where("provider = ? AND subject = ?", provider, subject).
			Updates(updates).
			Error; err != nil {
			s.logger.Warn("planner identity refresh failed", zap.Error(err), zap.String("plan_id", identity.PlanID))
		}
	}

	s.cache.Store(cacheKey, identity.PlanID)
	return identity.PlanID, nil
}

// deriveProviderSubject splits "provider:subject" planner ids; bare ids and
// the token subject fall back to the local provider.
func deriveProviderSubject(claims auth.SessionClaims) (string, string) {
	provider := defaultProvider
	subject := normalize(claims.Subject)

	raw := normalize(claims.PlannerID)
	if raw != "" {
		if segments := strings.SplitN(raw, ":", 2); len(segments) == 2 {
			if normalize(segments[0]) != "" && normalize(segments[1]) != "" {
				provider = normalize(segments[0])
				subject = normalize(segments[1])
			}
		} else if subject == "" {
			subject = raw
		}
	}

	if subject == "" {
		subject = normalize(claims.Email)
	}
	return provider, subject
}
