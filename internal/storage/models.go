package storage

import (
	"time"

	"github.com/google/uuid"
)

// Prediction is one persisted price estimate.
type Prediction struct {
	ID              uuid.UUID     `json:"id"`
	BatchID         uuid.NullUUID `json:"batch_id"`
	Model           string        `json:"model"`
	ArtifactVersion string        `json:"artifact_version"`
	Name            string        `json:"name"`
	Price           float64       `json:"price"`
	Cached          bool          `json:"cached"`
	CreatedAt       time.Time     `json:"created_at"`
}

// ListFilter narrows a history listing.
type ListFilter struct {
	Model   string
	BatchID uuid.NullUUID
	Limit   int
}

// Listing limits.
const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

func (f ListFilter) limit() int {
	switch {
	case f.Limit <= 0:
		return DefaultListLimit
	case f.Limit > MaxListLimit:
		return MaxListLimit
	}
	return f.Limit
}
