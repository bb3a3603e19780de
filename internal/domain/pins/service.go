// Package pins handles directly submitted pins and month-scoped pin listing.
package pins

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/2gPigeon/jig-intern-public/internal/domain/import/normalizer"
	"github.com/2gPigeon/jig-intern-public/internal/domain/import/repository"
	"github.com/2gPigeon/jig-intern-public/pkg/apperr"
)

var monthPattern = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)

type Repository interface {
	PinExists(ctx context.Context, ownerID string, parts normalizer.Parts) (bool, error)
	PutPin(ctx context.Context, pin repository.PinRecord) error
	ListPins(ctx context.Context, ownerID, yearMonth string) ([]repository.PinRecord, error)
}

type Service struct {
	repo   Repository
	loc    *time.Location
	logger *slog.Logger
	now    func() time.Time
}

func NewService(repo Repository, loc *time.Location, logger *slog.Logger) *Service {
	if loc == nil {
		loc = normalizer.MustLoadLocation(normalizer.DefaultLocation)
	}
	return &Service{repo: repo, loc: loc, logger: logger, now: time.Now}
}

// Submit stores a pin stamped with the current time. A pin already stored for
// the same second is kept and apperr.ErrConflict is returned.
func (s *Service) Submit(ctx context.Context, ownerID string, amount, lat, lon float64) (*repository.PinRecord, error) {
	parts := normalizer.TimestampParts(s.now().In(s.loc))

	exists, err := s.repo.PinExists(ctx, ownerID, parts)
	if err != nil {
		return nil, fmt.Errorf("failed to check pin: %w", err)
	}
	if exists {
		return nil, fmt.Errorf("pin %s %s %s: %w", parts.YearMonth, parts.Day, parts.Time, apperr.ErrConflict)
	}

	pin := repository.PinRecord{
		OwnerID:    ownerID,
		TimeBucket: parts.YearMonth,
		Day:        parts.Day,
		Time:       parts.Time,
		Data:       amount,
		Latitude:   lat,
		Longitude:  lon,
	}
	if err := s.repo.PutPin(ctx, pin); err != nil {
		return nil, fmt.Errorf("failed to write pin: %w", err)
	}
	return &pin, nil
}

// List returns the caller's pins for month (YYYY-MM); an empty month means
// the current one.
func (s *Service) List(ctx context.Context, ownerID, month string) ([]repository.PinRecord, error) {
	if month == "" {
		month = s.now().In(s.loc).Format("2006-01")
	}
	if !monthPattern.MatchString(month) {
		return nil, apperr.Invalid("month must be YYYY-MM, got %q", month)
	}
	pins, err := s.repo.ListPins(ctx, ownerID, month)
	if err != nil {
		return nil, fmt.Errorf("failed to list pins: %w", err)
	}
	return pins, nil
}
