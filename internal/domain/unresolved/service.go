// Package unresolved drains payment rows whose place could not be geocoded.
package unresolved

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/2gPigeon/jig-intern-public/internal/domain/geocode"
	"github.com/2gPigeon/jig-intern-public/internal/domain/import/normalizer"
	"github.com/2gPigeon/jig-intern-public/internal/domain/import/repository"
)

const defaultSuggestionLimit = 5

// Repository is the store surface reconciliation needs.
type Repository interface {
	ListUnresolved(ctx context.Context, ownerID string) ([]repository.UnresolvedItem, error)
	GetUnresolved(ctx context.Context, ownerID, id string) (*repository.UnresolvedItem, error)
	DeleteUnresolved(ctx context.Context, ownerID, id string) error
	PinExists(ctx context.Context, ownerID string, parts normalizer.Parts) (bool, error)
	PutPin(ctx context.Context, pin repository.PinRecord) error
}

// Geocoder records manual corrections and proposes cached candidates.
type Geocoder interface {
	Correct(ctx context.Context, place string, lat, lon float64) error
	Suggest(ctx context.Context, place string, limit int) ([]geocode.Suggestion, error)
}

// Service resolves unresolved items with caller-supplied coordinates.
type Service struct {
	repo     Repository
	geocoder Geocoder
	logger   *slog.Logger
}

func NewService(repo Repository, geocoder Geocoder, logger *slog.Logger) *Service {
	return &Service{repo: repo, geocoder: geocoder, logger: logger}
}

// List returns the caller's pending items in store order.
func (s *Service) List(ctx context.Context, ownerID string) ([]repository.UnresolvedItem, error) {
	items, err := s.repo.ListUnresolved(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list unresolved items: %w", err)
	}
	return items, nil
}

// Resolve pins the item at lat/lon, teaches the geocode cache the place and
// removes the item. An unknown id yields apperr.ErrNotFound.
//
// The pin is only written when none exists for the item's timestamp, so
// a row imported meanwhile is not overwritten.
func (s *Service) Resolve(ctx context.Context, ownerID, id string, lat, lon float64) error {
	item, err := s.repo.GetUnresolved(ctx, ownerID, id)
	if err != nil {
		return err
	}

	exists, err := s.repo.PinExists(ctx, ownerID, item.TimestampParts)
	if err != nil {
		return fmt.Errorf("failed to check pin: %w", err)
	}
	if !exists {
		pin := repository.PinRecord{
			OwnerID:    ownerID,
			TimeBucket: item.TimestampParts.YearMonth,
			Day:        item.TimestampParts.Day,
			Time:       item.TimestampParts.Time,
			Data:       item.Amount,
			Latitude:   lat,
			Longitude:  lon,
		}
		if err := s.repo.PutPin(ctx, pin); err != nil {
			return fmt.Errorf("failed to write pin: %w", err)
		}
	}

	if err := s.geocoder.Correct(ctx, item.Place, lat, lon); err != nil {
		return fmt.Errorf("failed to record manual location: %w", err)
	}

	if err := s.repo.DeleteUnresolved(ctx, ownerID, id); err != nil {
		return fmt.Errorf("failed to delete unresolved item: %w", err)
	}

	s.logger.Info("unresolved item resolved",
		slog.String("owner_id", ownerID),
		slog.String("id", id),
		slog.Bool("pin_written", !exists),
	)
	return nil
}

// Suggestions lists cached places resembling the item's place.
func (s *Service) Suggestions(ctx context.Context, ownerID, id string, limit int) ([]geocode.Suggestion, error) {
	item, err := s.repo.GetUnresolved(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultSuggestionLimit
	}
	return s.geocoder.Suggest(ctx, item.Place, limit)
}
