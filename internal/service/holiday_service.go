package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/noah-isme/college-timetable-api/pkg/errors"
	"github.com/noah-isme/college-timetable-api/pkg/holiday"
)

// maxHolidaySpan keeps a single lookup to a few academic years.
const maxHolidaySpan = 5 * 366 * 24 * time.Hour

type holidayResolver interface {
	Holidays(start, end string) []holiday.Holiday
}

// HolidayService resolves non-teaching dates and caches the results.
type HolidayService struct {
	resolver holidayResolver
	cache    *CacheService
	ttl      time.Duration
	logger   *zap.Logger
}

// NewHolidayService constructs the service. cache may be nil.
func NewHolidayService(resolver holidayResolver, cache *CacheService, ttl time.Duration, logger *zap.Logger) *HolidayService {
	if resolver == nil {
		resolver = holiday.NewResolver()
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HolidayService{resolver: resolver, cache: cache, ttl: ttl, logger: logger}
}

// List returns holidays between start and end inclusive, sorted by date.
func (s *HolidayService) List(ctx context.Context, start, end string) ([]holiday.Holiday, error) {
	if err := validateRange(start, end); err != nil {
		return nil, err
	}
	var result []holiday.Holiday
	hit, err := s.cache.Remember(ctx, s.cache.Key("holidays", start, end), s.ttl, &result, func(context.Context) (interface{}, error) {
		return s.resolver.Holidays(start, end), nil
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve holidays")
	}
	s.logger.Debug("holidays resolved", zap.String("start", start), zap.String("end", end), zap.Int("count", len(result)), zap.Bool("cache_hit", hit))
	if result == nil {
		result = []holiday.Holiday{}
	}
	return result, nil
}

// Dates returns only the holiday dates between start and end.
func (s *HolidayService) Dates(ctx context.Context, start, end string) ([]string, error) {
	list, err := s.List(ctx, start, end)
	if err != nil {
		return nil, err
	}
	return holiday.Dates(list), nil
}

func validateRange(start, end string) error {
	from, err := time.Parse(holiday.DateLayout, start)
	if err != nil {
		return appErrors.Clone(appErrors.ErrValidation, "start must be a YYYY-MM-DD date")
	}
	to, err := time.Parse(holiday.DateLayout, end)
	if err != nil {
		return appErrors.Clone(appErrors.ErrValidation, "end must be a YYYY-MM-DD date")
	}
	if to.Before(from) {
		return appErrors.Clone(appErrors.ErrValidation, "end must not be before start")
	}
	if to.Sub(from) > maxHolidaySpan {
		return appErrors.Clone(appErrors.ErrValidation, "range is too long")
	}
	return nil
}
