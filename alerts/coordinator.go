package alerts

import (
	"context"

	"go.uber.org/zap"
)

// Notifier is told about newly created alerts. Implementations own their own
// failure handling; notification outcomes never propagate back into alert
// persistence.
type Notifier interface {
	NotifyAlertCreated(ctx context.Context, alert *Alert)
}

// Coordinator applies a fired trigger to the alert store and fans out to the
// notifier only on creation. Re-triggering an ongoing condition updates the
// OPEN alert in place and stays quiet.
type Coordinator struct {
	repo     Repository
	notifier Notifier
	logger   *zap.SugaredLogger
}

func NewCoordinator(repo Repository, notifier Notifier, logger *zap.SugaredLogger) *Coordinator {
	return &Coordinator{
		repo:     repo,
		notifier: notifier,
		logger:   logger,
	}
}

func (c *Coordinator) ApplyTrigger(ctx context.Context, patientId string, rule Rule, trigger Trigger) (*Alert, bool, error) {
	alert, created, err := c.repo.Upsert(ctx, patientId, rule, trigger)
	if err != nil {
		return nil, false, err
	}

	if created {
		c.logger.Infow("alert created",
			"patientId", patientId,
			"ruleId", rule.Id(),
			"severity", trigger.Severity,
		)
		c.notifier.NotifyAlertCreated(ctx, alert)
	} else {
		c.logger.Debugw("open alert updated",
			"patientId", patientId,
			"ruleId", rule.Id(),
			"severity", trigger.Severity,
		)
	}

	return alert, created, nil
}
