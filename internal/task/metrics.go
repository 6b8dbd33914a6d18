package task

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	tasksSubmitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "topicbook_tasks_submitted_total",
		Help: "Tasks accepted by the registry.",
	})
	tasksInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "topicbook_tasks_in_flight",
		Help: "Tasks currently holding an admission slot.",
	})
	tasksCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "topicbook_tasks_completed_total",
		Help: "Tasks that reached a terminal state.",
	}, []string{"state", "kind"})
)
