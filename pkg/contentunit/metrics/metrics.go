package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	Namespace = "contentunit"

	NameWorkflows     = "workflows_total"
	NameCompensations = "compensations_total"
	LabelOp           = "op"
	LabelOutcome      = "outcome"
	LabelResult       = "result"
)

// Recorder counts workflow outcomes and best-effort asset deletions. It
// satisfies contentunit.Recorder.
type Recorder struct {
	workflows     *prometheus.CounterVec
	compensations *prometheus.CounterVec
}

// NewRecorder registers the counters on reg. A nil reg uses the default
// Prometheus registerer.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Recorder{
		workflows: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name:      NameWorkflows,
				Help:      "Unit workflows by operation and outcome",
				Namespace: Namespace,
			},
			[]string{LabelOp, LabelOutcome},
		),
		compensations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name:      NameCompensations,
				Help:      "Best-effort asset deletions by operation and result",
				Namespace: Namespace,
			},
			[]string{LabelOp, LabelResult},
		),
	}
}

func (r *Recorder) Workflow(op, outcome string) {
	r.workflows.WithLabelValues(op, outcome).Inc()
}

func (r *Recorder) Compensation(op, result string) {
	r.compensations.WithLabelValues(op, result).Inc()
}
