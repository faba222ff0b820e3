package measurements

import (
	"context"
	"math"
	"time"
)

const (
	// manualDedupWindow bounds how far apart two manual entries can be and
	// still be considered the same reading.
	manualDedupWindow = 5 * time.Minute

	// Manual readings within the window are duplicates when their values
	// differ by no more than max(0.1% of the stored value, 0.1). The absolute
	// floor absorbs unit-conversion rounding noise near zero.
	manualToleranceRatio = 0.001
	manualToleranceFloor = 0.1
)

// Deduplicator decides whether a candidate measurement repeats one already
// stored. It only reads; the small race window between the check and the
// write is accepted (a near-identical extra point is clinically harmless and
// does not move the alert rules, which read bounded windows).
type Deduplicator struct {
	repo Repository
}

func NewDeduplicator(repo Repository) *Deduplicator {
	return &Deduplicator{repo: repo}
}

// FindDuplicate returns the stored measurement the candidate duplicates, or
// nil when the candidate is new. Device-sourced readings match on exact
// (source, externalId) identity; the vendor is the source of truth for
// idempotency and value differences are ignored. Manual readings match on
// time proximity plus value tolerance.
func (d *Deduplicator) FindDuplicate(ctx context.Context, candidate *Measurement) (*Measurement, error) {
	if candidate.IsDeviceSourced() {
		return d.repo.FindByExternalId(ctx, candidate.Source, *candidate.ExternalId)
	}
	if candidate.Source != SourceManual {
		// Device reading without a vendor id; nothing to match on.
		return nil, nil
	}

	nearby, err := d.repo.FindManualNear(ctx, candidate.PatientId, candidate.Type, candidate.Time, manualDedupWindow)
	if err != nil {
		return nil, err
	}

	for i := range nearby {
		existing := &nearby[i]
		tolerance := math.Max(math.Abs(existing.Value)*manualToleranceRatio, manualToleranceFloor)
		if math.Abs(candidate.Value-existing.Value) <= tolerance {
			return existing, nil
		}
	}
	return nil, nil
}
