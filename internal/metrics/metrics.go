package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"dubber/internal/stages"
	"dubber/internal/workflow"
)

const (
	namespace = "dubber"

	jobsTotal          = "jobs_total"
	submissionsTotal   = "submissions_total"
	pollErrorsTotal    = "poll_errors_total"
	jobProgressPercent = "job_progress_percent"
	jobStage           = "job_stage"
	jobDurationSeconds = "job_duration_seconds"

	// Labels
	outcomeLabel = "outcome"
	stageLabel   = "stage"

	// OutcomeRejected counts submissions that never received a job ID.
	OutcomeRejected = "rejected"
)

// Collector turns controller events into Prometheus metrics held in its
// own registry.
type Collector struct {
	registry    *prometheus.Registry
	jobs        *prometheus.CounterVec
	submissions prometheus.Counter
	pollErrors  prometheus.Counter
	progress    prometheus.Gauge
	stage       *prometheus.GaugeVec
	duration    prometheus.Histogram

	mu sync.Mutex
}

// New registers the dubber collectors on a fresh registry.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		jobs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      jobsTotal,
				Help:      "number of jobs that reached a final outcome",
			},
			[]string{outcomeLabel},
		),
		submissions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      submissionsTotal,
			Help:      "number of jobs accepted by the backend",
		}),
		pollErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      pollErrorsTotal,
			Help:      "number of failed status checks",
		}),
		progress: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      jobProgressPercent,
			Help:      "progress of the current job",
		}),
		stage: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      jobStage,
				Help:      "1 for the stage the current job is in",
			},
			[]string{stageLabel},
		),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      jobDurationSeconds,
			Help:      "time from submission to final outcome",
			Buckets:   []float64{15, 30, 60, 120, 300, 600, 1200, 3600},
		}),
	}
	c.registry.MustRegister(c.jobs, c.submissions, c.pollErrors, c.progress, c.stage, c.duration)
	return c
}

// Registry exposes the registry for export.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// HandleEvent implements workflow.Listener.
func (c *Collector) HandleEvent(e workflow.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch e.Kind {
	case workflow.EventSubmitted:
		c.submissions.Inc()
		c.setStage(e.Job)
	case workflow.EventProgress:
		c.setStage(e.Job)
	case workflow.EventPollError:
		c.pollErrors.Inc()
	case workflow.EventCompleted, workflow.EventFailed, workflow.EventCancelled:
		outcome := e.Job.Status.String()
		if e.Job.ID == "" {
			outcome = OutcomeRejected
		}
		c.jobs.With(prometheus.Labels{outcomeLabel: outcome}).Inc()
		if e.Job.ID != "" && !e.Job.SubmittedAt.IsZero() && !e.At.Before(e.Job.SubmittedAt) {
			c.duration.Observe(e.At.Sub(e.Job.SubmittedAt).Seconds())
		}
		c.setStage(e.Job)
	case workflow.EventReset:
		c.progress.Set(0)
		c.stage.Reset()
	}
}

func (c *Collector) setStage(j workflow.Job) {
	c.progress.Set(float64(stages.Clamp(j.Progress)))
	current := j.Stage()
	for _, name := range stages.All() {
		value := 0.0
		if name == current {
			value = 1
		}
		c.stage.With(prometheus.Labels{stageLabel: name.String()}).Set(value)
	}
}

// WriteTextfile writes the current metrics in the node_exporter textfile
// format.
func (c *Collector) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, c.registry)
}
