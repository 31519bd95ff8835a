package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "stocktransfer"

const (
	OutcomeAccepted = "accepted"
	OutcomeRejected = "rejected"

	CommitResultOK       = "ok"
	CommitResultStale    = "stale"
	CommitResultRejected = "rejected"
	CommitResultError    = "error"
)

// Recorder captures staging and commit signals for a transfer-in session.
// All methods are safe to call on a nil *Recorder.
type Recorder struct {
	decisions *prometheus.CounterVec
	commits   *prometheus.CounterVec
	staged    prometheus.Gauge
}

// NewRecorder registers the session collectors on reg. A nil reg uses
// prometheus.DefaultRegisterer.
func NewRecorder(reg prometheus.Registerer) (*Recorder, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	r := &Recorder{
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "staging_decisions_total",
			Help:      "Staging decisions by origin and outcome.",
		}, []string{"origin", "outcome"}),
		commits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commits_total",
			Help:      "Transfer-in commit attempts by result.",
		}, []string{"result"}),
		staged: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "staged_quantity",
			Help:      "Units currently staged in the session ledger.",
		}),
	}

	for _, c := range []prometheus.Collector{r.decisions, r.commits, r.staged} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// ObserveDecision counts one staging decision.
func (r *Recorder) ObserveDecision(origin string, accepted bool) {
	if r == nil {
		return
	}
	outcome := OutcomeRejected
	if accepted {
		outcome = OutcomeAccepted
	}
	r.decisions.WithLabelValues(origin, outcome).Inc()
}

// ObserveCommit counts one commit attempt.
func (r *Recorder) ObserveCommit(result string) {
	if r == nil {
		return
	}
	r.commits.WithLabelValues(result).Inc()
}

// SetStaged records the ledger total.
func (r *Recorder) SetStaged(total int64) {
	if r == nil {
		return
	}
	r.staged.Set(float64(total))
}
