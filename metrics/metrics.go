// Package metrics exports worker pool activity to prometheus.
package metrics

import (
	"github.com/jirevwe/workpool/pool"
	"github.com/prometheus/client_golang/prometheus"
)

var _ pool.Observer = (*Collector)(nil)

// Collector is a pool.Observer that keeps prometheus metrics about jobs and
// workers.
type Collector struct {
	JobsSubmitted prometheus.Counter
	JobsCompleted prometheus.Counter
	JobsPanicked  prometheus.Counter
	WorkersLive   prometheus.Gauge
	WorkersBusy   prometheus.Gauge
	JobDuration   prometheus.Histogram
	JobWait       prometheus.Histogram
}

// New creates the collectors and registers them on reg. WorkersLive starts at
// size, the number of workers of the pool being observed.
func New(reg prometheus.Registerer, namespace string, size int) (*Collector, error) {
	c := &Collector{
		JobsSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_submitted_total",
			Help:      "Total number of jobs submitted to the pool",
		}),
		JobsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_completed_total",
			Help:      "Total number of jobs that ran to completion",
		}),
		JobsPanicked: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_panicked_total",
			Help:      "Total number of jobs that failed fatally",
		}),
		WorkersLive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "workers_live",
			Help:      "Number of workers that have not terminated",
		}),
		WorkersBusy: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "workers_busy",
			Help:      "Number of workers currently executing a job",
		}),
		JobDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Histogram of job execution time",
			Buckets:   prometheus.DefBuckets,
		}),
		JobWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_wait_seconds",
			Help:      "Histogram of time jobs spent queued before a worker started them",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	for _, collector := range []prometheus.Collector{
		c.JobsSubmitted,
		c.JobsCompleted,
		c.JobsPanicked,
		c.WorkersLive,
		c.WorkersBusy,
		c.JobDuration,
		c.JobWait,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, err
		}
	}

	c.WorkersLive.Set(float64(size))

	return c, nil
}

func (c *Collector) JobSubmitted(pool.JobInfo) {
	c.JobsSubmitted.Inc()
}

func (c *Collector) JobStarted(info pool.JobInfo) {
	c.WorkersBusy.Inc()
	c.JobWait.Observe(info.Wait().Seconds())
}

func (c *Collector) JobFinished(info pool.JobInfo) {
	c.WorkersBusy.Dec()
	c.JobDuration.Observe(info.Duration().Seconds())

	if info.Panicked() {
		c.JobsPanicked.Inc()
		return
	}
	c.JobsCompleted.Inc()
}

func (c *Collector) WorkerExited(pool.WorkerInfo) {
	c.WorkersLive.Dec()
}
