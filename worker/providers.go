package worker

import (
	"github.com/nephrawn/monitor-worker/alerts"
	"github.com/nephrawn/monitor-worker/measurements"
	"github.com/nephrawn/monitor-worker/notifications"
)

// The pipeline stages only know each other through small interfaces; the
// bindings live here so the packages stay acyclic.

func evaluatorProvider(pipeline *alerts.Pipeline) measurements.Evaluator {
	return pipeline
}

func notifierProvider(dispatcher *notifications.Dispatcher) alerts.Notifier {
	return dispatcher
}

func alertUpdaterProvider(repo alerts.Repository) notifications.AlertUpdater {
	return repo
}
