package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ImagesPulledTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rocker_images_pulled_total",
			Help: "Total number of images successfully ensured for a run, whether already cached or downloaded",
		},
	)

	ImagePullDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "rocker_image_pull_duration_seconds",
			Help:    "Time taken to ensure an image's layers are cached locally",
			Buckets: prometheus.DefBuckets,
		},
	)

	ContainersStartedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rocker_containers_started_total",
			Help: "Total number of containers started",
		},
	)

	ContainersExitedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rocker_containers_exited_total",
			Help: "Total number of containers that have exited, by whether the exit was clean",
		},
		[]string{"result"},
	)

	ContainerStartDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "rocker_container_start_duration_seconds",
			Help:    "Time from run() invocation to the container process being spawned",
			Buckets: prometheus.DefBuckets,
		},
	)

	SetupFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rocker_setup_failures_total",
			Help: "Total number of container setup failures, by stage",
		},
		[]string{"stage"},
	)

	RunningContainers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "rocker_running_containers",
			Help: "Current number of containers known to the store",
		},
	)
)

func init() {
	prometheus.MustRegister(ImagesPulledTotal)
	prometheus.MustRegister(ImagePullDuration)
	prometheus.MustRegister(ContainersStartedTotal)
	prometheus.MustRegister(ContainersExitedTotal)
	prometheus.MustRegister(ContainerStartDuration)
	prometheus.MustRegister(SetupFailuresTotal)
	prometheus.MustRegister(RunningContainers)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
