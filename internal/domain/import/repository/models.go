package repository

import (
	"time"

	"github.com/2gPigeon/jig-intern-public/internal/domain/import/normalizer"
)

// PinRecord is one geocoded payment. Its identity is (owner, month, day, time).
type PinRecord struct {
	OwnerID    string  `json:"ownerId"`
	TimeBucket string  `json:"timeBucket"`
	Day        string  `json:"day"`
	Time       string  `json:"time"`
	Data       float64 `json:"data"`
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
}

// Parts returns the dedup key components of the pin.
func (p PinRecord) Parts() normalizer.Parts {
	return normalizer.Parts{YearMonth: p.TimeBucket, Day: p.Day, Time: p.Time}
}

// UnresolvedItem is a payment row whose place could not be geocoded.
type UnresolvedItem struct {
	ID             string           `json:"id"`
	OwnerID        string           `json:"ownerId"`
	Place          string           `json:"place"`
	Amount         float64          `json:"amount"`
	Timestamp      string           `json:"timestamp"`
	TimestampParts normalizer.Parts `json:"timestampParts"`
	JobID          string           `json:"jobId,omitempty"`
	CreatedAt      time.Time        `json:"createdAt"`
}

// Cache entry sources.
const (
	SourceManual = "manual"
)

// GeocodeCacheEntry is a global place -> coordinate mapping.
type GeocodeCacheEntry struct {
	PlaceKey    string    `json:"placeKey"`
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
	DisplayName string    `json:"displayName"`
	Source      string    `json:"source"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// JobStatus is the lifecycle state of an import job.
type JobStatus string

const (
	JobStatusProcessing JobStatus = "processing"
	JobStatusDone       JobStatus = "done"
	JobStatusError      JobStatus = "error"
)

// Terminal reports whether no further transition is allowed.
func (s JobStatus) Terminal() bool {
	return s == JobStatusDone || s == JobStatusError
}

// ImportJob tracks one background import.
type ImportJob struct {
	JobID           string     `json:"jobId"`
	OwnerID         string     `json:"ownerId"`
	Status          JobStatus  `json:"status"`
	ImportedCount   int        `json:"importedCount"`
	SkippedCount    int        `json:"skippedCount"`
	UnresolvedCount int        `json:"unresolvedCount"`
	Filename        string     `json:"filename"`
	FileID          string     `json:"fileId,omitempty"`
	StartedAt       time.Time  `json:"startedAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
	FinishedAt      *time.Time `json:"finishedAt,omitempty"`
	Error           string     `json:"error,omitempty"`
}
