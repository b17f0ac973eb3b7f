package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricAccessChecks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "janus",
		Name:      "access_checks_total",
		Help:      "Authorization queries answered, by result.",
	}, []string{"result"})
	metricMutations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "janus",
		Name:      "policy_mutations_total",
		Help:      "Registry mutations persisted, by operation.",
	}, []string{"op"})
	metricSweeps = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "janus",
		Name:      "sweeps_total",
		Help:      "Lifecycle sweeps run, by outcome.",
	}, []string{"outcome"})
	metricSweepRemoved = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "janus",
		Name:      "sweep_removed_records_total",
		Help:      "Records deleted by the lifecycle sweep.",
	})
	metricRecords = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "janus",
		Name:      "registry_records",
		Help:      "Records in the most recently loaded registry.",
	})
)
