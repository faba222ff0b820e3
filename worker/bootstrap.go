package worker

import (
	"net/http"

	"github.com/nephrawn/monitor-worker/alerts"
	"github.com/nephrawn/monitor-worker/devices"
	"github.com/nephrawn/monitor-worker/enrollments"
	"github.com/nephrawn/monitor-worker/mailer"
	"github.com/nephrawn/monitor-worker/measurements"
	"github.com/nephrawn/monitor-worker/notifications"
	"github.com/nephrawn/monitor-worker/store"
	"github.com/nephrawn/monitor-worker/stream"
	"github.com/nephrawn/monitor-worker/users"
	"github.com/tidepool-org/go-common/events"
	"go.uber.org/fx"
)

var dependencies = fx.Provide(
	loggerProvider,
	healthCheckServerProvider,
	evaluatorProvider,
	notifierProvider,
	alertUpdaterProvider,
)

var Modules = []fx.Option{
	dependencies,
	store.Module,
	measurements.Module,
	alerts.Module,
	notifications.Module,
	mailer.Module,
	enrollments.Module,
	devices.Module,
	users.Module,
}

func New() *fx.App {
	invokes := fx.Invoke(
		startConsumers,
		startHealthCheckServer,
	)
	return fx.New(append(Modules, invokes)...)
}

type Components struct {
	fx.In

	Consumers         []events.EventConsumer `group:"consumers"`
	HealthCheckServer *http.Server
	Lifecycle         fx.Lifecycle
	Shutdowner        fx.Shutdowner
}

func startConsumers(components Components) {
	for _, consumer := range components.Consumers {
		stream.AttachConsumerGroupHooks(consumer, components.Lifecycle, components.Shutdowner)
	}
}
