package users

import (
	"strings"

	"github.com/nephrawn/monitor-worker/alerts"
	"github.com/nephrawn/monitor-worker/enrollments"
	"github.com/nephrawn/monitor-worker/measurements"
	"github.com/nephrawn/monitor-worker/notifications"
	ev "github.com/tidepool-org/go-common/events"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	UserEventsTopic = "user-events"
)

var Module = fx.Provide(fx.Annotated{
	Group:  "consumers",
	Target: NewEventConsumer,
})

type Params struct {
	fx.In

	Measurements  measurements.Repository
	Alerts        alerts.Repository
	Notifications notifications.LogsRepository
	Enrollments   enrollments.Repository
	Logger        *zap.SugaredLogger
}

func NewEventConsumer(p Params) (ev.EventConsumer, error) {
	config := ev.NewConfig()
	if err := config.LoadFromEnv(); err != nil {
		return nil, err
	}
	config.KafkaTopic = UserEventsTopic

	// The topics managed by us use '-' as separator, while the device vendor
	// bridge uses '.'; normalize the prefix for this consumer.
	if strings.HasSuffix(config.KafkaTopicPrefix, ".") {
		config.KafkaTopicPrefix = strings.TrimSuffix(config.KafkaTopicPrefix, ".") + "-"
	}

	return ev.NewFaultTolerantConsumerGroup(config, func() (ev.MessageConsumer, error) {
		handler, err := NewUserDataDeletionHandler(p.Measurements, p.Alerts, p.Notifications, p.Enrollments, p.Logger)
		if err != nil {
			return nil, err
		}
		return ev.NewCloudEventsMessageHandler([]ev.EventHandler{
			handler,
		})
	})
}
