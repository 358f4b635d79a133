package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spec-kit/helpdesk-service/internal/cache"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/query"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

// referenceTTL bounds how stale cached lookup tables may be.
const referenceTTL = 10 * time.Minute

// ReferenceService serves lookup tables through the analytics cache.
type ReferenceService struct {
	references repository.ReferenceRepository
	cache      *cache.Cache
}

// NewReferenceService constructs the service. A nil cache disables caching.
func NewReferenceService(references repository.ReferenceRepository, c *cache.Cache) *ReferenceService {
	if c == nil {
		c = cache.New(cache.Options{})
	}
	return &ReferenceService{references: references, cache: c}
}

func (s *ReferenceService) Statuses(ctx context.Context) ([]domain.Status, error) {
	return cached(ctx, s.cache, "ref:statuses", s.references.Statuses)
}

func (s *ReferenceService) Severities(ctx context.Context) ([]domain.Severity, error) {
	return cached(ctx, s.cache, "ref:severities", s.references.Severities)
}

func (s *ReferenceService) Sites(ctx context.Context) ([]domain.Site, error) {
	return cached(ctx, s.cache, "ref:sites", s.references.Sites)
}

func (s *ReferenceService) Categories(ctx context.Context) ([]domain.Category, error) {
	return cached(ctx, s.cache, "ref:categories", s.references.Categories)
}

func (s *ReferenceService) Vendors(ctx context.Context) ([]domain.Vendor, error) {
	return cached(ctx, s.cache, "ref:vendors", s.references.Vendors)
}

// Resolve maps a status or priority term to exactly one id. Numeric values
// pass through unchanged.
func (s *ReferenceService) Resolve(field, value string) (int64, error) {
	field, value = strings.ToLower(strings.TrimSpace(field)), strings.TrimSpace(value)
	if field != "status" && field != "priority" {
		return 0, apperrors.NewValidationError("field must be status or priority", map[string]any{"field": field})
	}
	if value == "" {
		return 0, apperrors.NewValidationError("value is required", map[string]any{"field": field})
	}
	id, err := query.TranslateStrict(field, value)
	if err == nil {
		return id, nil
	}
	var se *query.SemanticError
	if !errors.As(err, &se) {
		return 0, apperrors.NewInternalError(err)
	}
	details := map[string]any{"field": field, "value": value}
	if se.Kind == query.SemanticAmbiguous {
		details["candidates"] = se.Candidates
		return 0, apperrors.NewSemanticError(apperrors.CodeAmbiguousSemantic,
			fmt.Sprintf("%q matches several %s values", value, field), details)
	}
	return 0, apperrors.NewSemanticError(apperrors.CodeUnknownSemantic,
		fmt.Sprintf("%q is not a known %s", value, field), details)
}

// Assets lists assets, optionally limited to one site.
func (s *ReferenceService) Assets(ctx context.Context, siteID *int) ([]domain.Asset, error) {
	key := cache.Key("ref:assets", siteID)
	return cached(ctx, s.cache, key, func(ctx context.Context) ([]domain.Asset, error) {
		return s.references.Assets(ctx, siteID)
	})
}

func cached[T any](ctx context.Context, c *cache.Cache, key string, load func(context.Context) ([]T, error)) ([]T, error) {
	rows, err := cache.GetOrCompute(ctx, c, key, referenceTTL, load)
	if err != nil {
		return nil, storeError(err)
	}
	return rows, nil
}
