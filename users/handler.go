package users

import (
	"context"
	"time"

	"github.com/nephrawn/monitor-worker/alerts"
	"github.com/nephrawn/monitor-worker/enrollments"
	"github.com/nephrawn/monitor-worker/measurements"
	"github.com/nephrawn/monitor-worker/notifications"
	ev "github.com/tidepool-org/go-common/events"
	"go.uber.org/zap"
)

const (
	defaultTimeout = 30 * time.Second
)

// userEventsHandler removes everything the platform holds for a deleted
// patient account: measurement history, alerts, notification logs and
// enrollments.
type userEventsHandler struct {
	ev.NoopUserEventsHandler

	measurements  measurements.Repository
	alerts        alerts.Repository
	notifications notifications.LogsRepository
	enrollments   enrollments.Repository
	logger        *zap.SugaredLogger
}

func NewUserDataDeletionHandler(
	measurementsRepo measurements.Repository,
	alertsRepo alerts.Repository,
	notificationLogs notifications.LogsRepository,
	enrollmentsRepo enrollments.Repository,
	logger *zap.SugaredLogger,
) (ev.EventHandler, error) {
	return ev.NewUserEventsHandler(&userEventsHandler{
		measurements:  measurementsRepo,
		alerts:        alertsRepo,
		notifications: notificationLogs,
		enrollments:   enrollmentsRepo,
		logger:        logger,
	}), nil
}

func (u *userEventsHandler) HandleDeleteUserEvent(payload ev.DeleteUserEvent) error {
	patientId := payload.UserID
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	u.logger.Infow("deleting monitoring data for user", "userId", patientId)

	if err := u.measurements.DeleteAllForPatient(ctx, patientId); err != nil {
		u.logger.Errorw("could not delete measurements", "userId", patientId, zap.Error(err))
		return err
	}
	if err := u.alerts.DeleteAllForPatient(ctx, patientId); err != nil {
		u.logger.Errorw("could not delete alerts", "userId", patientId, zap.Error(err))
		return err
	}
	if err := u.notifications.DeleteAllForPatient(ctx, patientId); err != nil {
		u.logger.Errorw("could not delete notification logs", "userId", patientId, zap.Error(err))
		return err
	}
	if err := u.enrollments.DeleteAllForPatient(ctx, patientId); err != nil {
		u.logger.Errorw("could not delete enrollments", "userId", patientId, zap.Error(err))
		return err
	}

	u.logger.Infow("successfully deleted monitoring data for user", "userId", patientId)
	return nil
}
