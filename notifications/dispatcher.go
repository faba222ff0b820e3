package notifications

import (
	"context"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/nephrawn/monitor-worker/alerts"
	"github.com/nephrawn/monitor-worker/enrollments"
	"github.com/nephrawn/monitor-worker/mailer"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type DispatcherConfig struct {
	AlertCooldown     time.Duration `envconfig:"NEPHRAWN_NOTIFY_ALERT_COOLDOWN" default:"1h"`
	RecipientCooldown time.Duration `envconfig:"NEPHRAWN_NOTIFY_RECIPIENT_COOLDOWN" default:"1h"`
}

func NewDispatcherConfig() (DispatcherConfig, error) {
	cfg := DispatcherConfig{}
	err := envconfig.Process("", &cfg)
	return cfg, err
}

// AlertUpdater is the slice of the alert store the dispatcher needs: marking
// an alert as notified after a successful send.
type AlertUpdater interface {
	SetLastNotified(ctx context.Context, id primitive.ObjectID, at time.Time) error
}

// Dispatcher turns a newly created alert into at most one email, walking a
// chain of short-circuiting gates. Every outcome, including every skip,
// writes exactly one NotificationLog row; the log is the audit trail for
// "why didn't the clinician get notified".
type Dispatcher struct {
	config      DispatcherConfig
	logs        LogsRepository
	preferences PreferencesRepository
	enrollments enrollments.Repository
	alerts      AlertUpdater
	mailer      mailer.Client
	limiter     *RateLimiter
	logger      *zap.SugaredLogger
}

func NewDispatcher(
	config DispatcherConfig,
	logs LogsRepository,
	preferences PreferencesRepository,
	enrollmentsRepo enrollments.Repository,
	alertUpdater AlertUpdater,
	mailerClient mailer.Client,
	limiter *RateLimiter,
	logger *zap.SugaredLogger,
) *Dispatcher {
	return &Dispatcher{
		config:      config,
		logs:        logs,
		preferences: preferences,
		enrollments: enrollmentsRepo,
		alerts:      alertUpdater,
		mailer:      mailerClient,
		limiter:     limiter,
		logger:      logger,
	}
}

// NotifyAlertCreated implements alerts.Notifier. Only alert creation enters
// here; in-place updates of an ongoing condition do not re-notify.
func (d *Dispatcher) NotifyAlertCreated(ctx context.Context, alert *alerts.Alert) {
	now := time.Now().UTC()
	entry := &NotificationLog{
		PatientId: alert.PatientId,
		AlertId:   alert.Id,
		Channel:   ChannelEmail,
		SentAt:    now,
	}

	// Gate 1: the alert itself was recently notified.
	if alert.LastNotifiedAt != nil && alert.LastNotifiedAt.After(now.Add(-d.config.AlertCooldown)) {
		d.record(ctx, entry.skipped(ReasonAlertCooldown))
		return
	}

	// Gate 2: resolve the responsible clinician.
	enrollment, err := d.enrollments.FindPrimary(ctx, alert.PatientId)
	if err != nil {
		d.logger.Errorw("failed to resolve primary clinician",
			"patientId", alert.PatientId,
			"alertId", alert.Id.Hex(),
			zap.Error(err),
		)
		return
	}
	if enrollment == nil {
		d.record(ctx, entry.skipped(ReasonNoPrimaryClinician))
		return
	}
	entry.ClinicianId = enrollment.ClinicianId
	entry.Recipient = enrollment.ClinicianEmail

	// Gate 3: the clinician's notification preferences.
	preferences, err := d.preferences.Get(ctx, enrollment.ClinicianId)
	if err != nil {
		d.logger.Errorw("failed to load notification preferences",
			"clinicianId", enrollment.ClinicianId,
			zap.Error(err),
		)
		return
	}
	if !preferences.Wants(alert.Severity) {
		d.record(ctx, entry.skipped(ReasonPreferenceDisabled))
		return
	}

	// Gate 4: a second, independent cooldown keyed on (clinician, patient),
	// so multiple distinct rules firing in quick succession produce one email.
	recentlySent, err := d.logs.HasRecentSent(ctx, enrollment.ClinicianId, alert.PatientId, now.Add(-d.config.RecipientCooldown))
	if err != nil {
		d.logger.Errorw("failed to check recipient cooldown",
			"clinicianId", enrollment.ClinicianId,
			"patientId", alert.PatientId,
			zap.Error(err),
		)
		return
	}
	if recentlySent {
		d.record(ctx, entry.skipped(ReasonRecipientCooldown))
		return
	}

	// Gate 5: send.
	entry.Subject = emailSubject(alert)
	d.limiter.WaitOrContinue()
	err = d.mailer.Send(ctx, mailer.Email{
		To:      string(enrollment.ClinicianEmail),
		Subject: entry.Subject,
		HTML:    emailHTML(alert, enrollment.ClinicianName),
		Text:    emailText(alert, enrollment.ClinicianName),
	})
	if err != nil {
		// lastNotifiedAt stays untouched so a later retry path is not blocked
		// by a failed attempt.
		d.logger.Errorw("failed to send alert notification",
			"clinicianId", enrollment.ClinicianId,
			"alertId", alert.Id.Hex(),
			zap.Error(err),
		)
		d.record(ctx, entry.failed(err))
		return
	}

	if err := d.alerts.SetLastNotified(ctx, alert.Id, now); err != nil {
		d.logger.Errorw("failed to update alert last notified time",
			"alertId", alert.Id.Hex(),
			zap.Error(err),
		)
	}
	d.record(ctx, entry.sent())

	d.logger.Infow("alert notification sent",
		"clinicianId", enrollment.ClinicianId,
		"patientId", alert.PatientId,
		"alertId", alert.Id.Hex(),
		"severity", alert.Severity,
	)
}

func (d *Dispatcher) record(ctx context.Context, entry *NotificationLog) {
	if err := d.logs.Create(ctx, entry); err != nil {
		d.logger.Errorw("failed to write notification log",
			"patientId", entry.PatientId,
			"alertId", entry.AlertId.Hex(),
			"status", entry.Status,
			zap.Error(err),
		)
	}
}

// Wants reports whether the clinician opted in to emails of this severity.
func (p *Preferences) Wants(severity alerts.Severity) bool {
	if !p.EmailEnabled {
		return false
	}
	switch severity {
	case alerts.SeverityInfo:
		return p.NotifyOnInfo
	case alerts.SeverityWarning:
		return p.NotifyOnWarning
	case alerts.SeverityCritical:
		return p.NotifyOnCritical
	}
	return false
}

func (n *NotificationLog) skipped(reason string) *NotificationLog {
	n.Status = StatusSkipped
	n.Reason = reason
	return n
}

func (n *NotificationLog) failed(err error) *NotificationLog {
	n.Status = StatusFailed
	message := err.Error()
	n.Error = &message
	return n
}

func (n *NotificationLog) sent() *NotificationLog {
	n.Status = StatusSent
	return n
}
