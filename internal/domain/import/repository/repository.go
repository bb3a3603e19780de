// Package repository persists pins, unresolved items, geocode cache entries
// and import jobs over the ordered key-value store.
//
// Key layout:
//
//	("pins", owner, YYYY-MM, DD, hh:mm:ss)
//	("unresolved", owner, id)
//	("geocode", scope, placeKey)
//	("jobs", jobId)
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/2gPigeon/jig-intern-public/internal/domain/import/normalizer"
	"github.com/2gPigeon/jig-intern-public/pkg/apperr"
	"github.com/2gPigeon/jig-intern-public/pkg/kv"
)

const (
	prefixPins       = "pins"
	prefixUnresolved = "unresolved"
	prefixGeocode    = "geocode"
	prefixJobs       = "jobs"
)

// ImportRepository is the record store used by the import pipeline.
// Each method is atomic on its own; PinExists followed by PutPin is not.
type ImportRepository interface {
	PinExists(ctx context.Context, ownerID string, parts normalizer.Parts) (bool, error)
	PutPin(ctx context.Context, pin PinRecord) error
	ListPins(ctx context.Context, ownerID, yearMonth string) ([]PinRecord, error)

	PutUnresolved(ctx context.Context, item UnresolvedItem) error
	GetUnresolved(ctx context.Context, ownerID, id string) (*UnresolvedItem, error)
	ListUnresolved(ctx context.Context, ownerID string) ([]UnresolvedItem, error)
	DeleteUnresolved(ctx context.Context, ownerID, id string) error

	GetCache(ctx context.Context, scope, placeKey string) (*GeocodeCacheEntry, error)
	PutCache(ctx context.Context, scope string, entry GeocodeCacheEntry) error
	ListCache(ctx context.Context, scope string) ([]GeocodeCacheEntry, error)

	CreateJob(ctx context.Context, job ImportJob) error
	GetJob(ctx context.Context, jobID string) (*ImportJob, error)
	UpdateJob(ctx context.Context, job ImportJob) error
	ListJobsByStatus(ctx context.Context, status JobStatus) ([]ImportJob, error)
}

// KVImportRepository implements ImportRepository on a kv.Store.
type KVImportRepository struct {
	store kv.Store
}

// NewKVImportRepository creates a repository over store.
func NewKVImportRepository(store kv.Store) *KVImportRepository {
	return &KVImportRepository{store: store}
}

var _ ImportRepository = (*KVImportRepository)(nil)

func pinKey(ownerID string, parts normalizer.Parts) kv.Key {
	return kv.Key{prefixPins, ownerID, parts.YearMonth, parts.Day, parts.Time}
}

func (r *KVImportRepository) PinExists(ctx context.Context, ownerID string, parts normalizer.Parts) (bool, error) {
	_, err := r.store.Get(ctx, pinKey(ownerID, parts))
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check pin: %w", err)
	}
	return true, nil
}

// PutPin overwrites unconditionally.
func (r *KVImportRepository) PutPin(ctx context.Context, pin PinRecord) error {
	if !pin.Parts().Valid() {
		return apperr.Invalid("pin timestamp is incomplete")
	}
	return r.put(ctx, pinKey(pin.OwnerID, pin.Parts()), pin)
}

// ListPins returns the owner's pins in key order; an empty yearMonth lists all months.
func (r *KVImportRepository) ListPins(ctx context.Context, ownerID, yearMonth string) ([]PinRecord, error) {
	prefix := kv.Key{prefixPins, ownerID}
	if yearMonth != "" {
		prefix = append(prefix, yearMonth)
	}
	return list[PinRecord](ctx, r.store, prefix)
}

func (r *KVImportRepository) PutUnresolved(ctx context.Context, item UnresolvedItem) error {
	return r.put(ctx, kv.Key{prefixUnresolved, item.OwnerID, item.ID}, item)
}

func (r *KVImportRepository) GetUnresolved(ctx context.Context, ownerID, id string) (*UnresolvedItem, error) {
	var item UnresolvedItem
	if err := r.get(ctx, kv.Key{prefixUnresolved, ownerID, id}, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *KVImportRepository) ListUnresolved(ctx context.Context, ownerID string) ([]UnresolvedItem, error) {
	return list[UnresolvedItem](ctx, r.store, kv.Key{prefixUnresolved, ownerID})
}

func (r *KVImportRepository) DeleteUnresolved(ctx context.Context, ownerID, id string) error {
	if err := r.store.Delete(ctx, kv.Key{prefixUnresolved, ownerID, id}); err != nil {
		return fmt.Errorf("failed to delete unresolved item: %w", err)
	}
	return nil
}

func (r *KVImportRepository) GetCache(ctx context.Context, scope, placeKey string) (*GeocodeCacheEntry, error) {
	var entry GeocodeCacheEntry
	if err := r.get(ctx, kv.Key{prefixGeocode, scope, placeKey}, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *KVImportRepository) PutCache(ctx context.Context, scope string, entry GeocodeCacheEntry) error {
	return r.put(ctx, kv.Key{prefixGeocode, scope, entry.PlaceKey}, entry)
}

func (r *KVImportRepository) ListCache(ctx context.Context, scope string) ([]GeocodeCacheEntry, error) {
	return list[GeocodeCacheEntry](ctx, r.store, kv.Key{prefixGeocode, scope})
}

func (r *KVImportRepository) CreateJob(ctx context.Context, job ImportJob) error {
	return r.put(ctx, kv.Key{prefixJobs, job.JobID}, job)
}

func (r *KVImportRepository) GetJob(ctx context.Context, jobID string) (*ImportJob, error) {
	var job ImportJob
	if err := r.get(ctx, kv.Key{prefixJobs, jobID}, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *KVImportRepository) UpdateJob(ctx context.Context, job ImportJob) error {
	return r.put(ctx, kv.Key{prefixJobs, job.JobID}, job)
}

// ListJobsByStatus scans every job record and keeps those in status.
func (r *KVImportRepository) ListJobsByStatus(ctx context.Context, status JobStatus) ([]ImportJob, error) {
	jobs, err := list[ImportJob](ctx, r.store, kv.Key{prefixJobs})
	if err != nil {
		return nil, err
	}
	filtered := jobs[:0]
	for _, job := range jobs {
		if job.Status == status {
			filtered = append(filtered, job)
		}
	}
	return filtered, nil
}

func (r *KVImportRepository) put(ctx context.Context, key kv.Key, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	if err := r.store.Set(ctx, key, data); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

func (r *KVImportRepository) get(ctx context.Context, key kv.Key, v any) error {
	data, err := r.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return fmt.Errorf("%s: %w", key, apperr.ErrNotFound)
		}
		return fmt.Errorf("failed to read %s: %w", key, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return nil
}

func list[T any](ctx context.Context, store kv.Store, prefix kv.Key) ([]T, error) {
	entries, err := store.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", prefix, err)
	}
	out := make([]T, 0, len(entries))
	for _, e := range entries {
		var v T
		if err := json.Unmarshal(e.Value, &v); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", e.Key, err)
		}
		out = append(out, v)
	}
	return out, nil
}
