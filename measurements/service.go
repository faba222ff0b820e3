package measurements

import (
	"context"
	"strings"
	"time"

	"github.com/nephrawn/monitor-worker/units"
	"go.uber.org/zap"
)

// Evaluator is notified after a measurement commits so clinical alert rules
// can run against the new history. Implementations recover their own
// failures; evaluation must never fail an accepted submission.
type Evaluator interface {
	HandleMeasurement(ctx context.Context, patientId string, t units.Type)
}

type Ingestor interface {
	SubmitMeasurement(ctx context.Context, submission Submission) (*Result, error)
}

func NewIngestor(repo Repository, dedup *Deduplicator, evaluator Evaluator, logger *zap.SugaredLogger) Ingestor {
	return &ingestor{
		repo:      repo,
		dedup:     dedup,
		evaluator: evaluator,
		logger:    logger,
	}
}

type ingestor struct {
	repo      Repository
	dedup     *Deduplicator
	evaluator Evaluator
	logger    *zap.SugaredLogger
}

// SubmitMeasurement runs the ingestion pipeline: normalize, deduplicate,
// write, evaluate. Unit and plausibility rejections happen before any store
// access; duplicates are a successful outcome, not an error.
func (i *ingestor) SubmitMeasurement(ctx context.Context, submission Submission) (*Result, error) {
	value, canonicalUnit, err := units.ToCanonical(submission.Type, submission.Value, submission.Unit)
	if err != nil {
		return nil, err
	}
	if err := units.CheckPlausible(submission.Type, value); err != nil {
		return nil, err
	}

	effective := time.Now().UTC()
	if submission.Time != nil {
		effective = submission.Time.UTC()
	}

	candidate := &Measurement{
		PatientId:  submission.PatientId,
		Type:       submission.Type,
		Value:      value,
		Unit:       canonicalUnit,
		Source:     submission.Source,
		ExternalId: submission.ExternalId,
		Time:       effective,
	}

	var convertedFrom *string
	if converted := submission.Unit != "" && !sameUnit(submission.Unit, canonicalUnit); converted {
		inputUnit := submission.Unit
		candidate.InputUnit = &inputUnit
		convertedFrom = &inputUnit
	}

	existing, err := i.dedup.FindDuplicate(ctx, candidate)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		i.logger.Infow("duplicate measurement ignored",
			"patientId", submission.PatientId,
			"type", submission.Type,
			"source", submission.Source,
			"existingId", existing.Id.Hex(),
		)
		return &Result{Measurement: existing, IsDuplicate: true}, nil
	}

	persisted, err := i.repo.Create(ctx, candidate)
	if err != nil {
		return nil, err
	}

	i.logger.Infow("measurement accepted",
		"patientId", persisted.PatientId,
		"type", persisted.Type,
		"value", persisted.Value,
		"unit", persisted.Unit,
		"source", persisted.Source,
	)

	// The measurement is durable at this point; alerting is downstream and
	// must not affect the submission outcome.
	i.evaluator.HandleMeasurement(ctx, persisted.PatientId, persisted.Type)

	return &Result{Measurement: persisted, ConvertedFrom: convertedFrom}, nil
}

func sameUnit(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
