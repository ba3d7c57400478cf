package health

import (
	"time"

	"github.com/google/uuid"

	pkgerrors "healthsync/pkg/errors"
)

// OfflineBatch is a batch of points captured while offline or staged for
// upload. Synced transitions false -> true exactly once and never reverses.
type OfflineBatch struct {
	ID         string             `json:"id"`
	Points     []MeasurementPoint `json:"points"`
	CapturedAt time.Time          `json:"capturedAt"`
	Synced     bool               `json:"synced"`
	Source     string             `json:"source"`
}

// NewOfflineBatch wraps points in a new unsynced batch
func NewOfflineBatch(points []MeasurementPoint, source string) (OfflineBatch, error) {
	if len(points) == 0 {
		return OfflineBatch{}, pkgerrors.NewValidationError("batch must contain at least one point")
	}
	copied := make([]MeasurementPoint, len(points))
	copy(copied, points)

	return OfflineBatch{
		ID:         uuid.NewString(),
		Points:     copied,
		CapturedAt: time.Now().UTC(),
		Synced:     false,
		Source:     source,
	}, nil
}

// MarkSynced flips the one-way synced flag
func (b *OfflineBatch) MarkSynced() {
	b.Synced = true
}

// OlderThan reports whether the batch was captured before the cutoff
func (b OfflineBatch) OlderThan(cutoff time.Time) bool {
	return b.CapturedAt.Before(cutoff)
}
