package metrics

import (
	"net/http"
	"sort"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// GaugeFunc reports a labelled set of current values, such as jobs per state.
type GaugeFunc func() map[string]int

// Exporter adapts a Collector to prometheus.Collector. Values are read from
// a fresh Snapshot on every scrape.
type Exporter struct {
	collector   *Collector
	jobsByState GaugeFunc

	submitted *prometheus.Desc
	completed *prometheus.Desc
	failed    *prometheus.Desc
	cancelled *prometheus.Desc
	decWarn   *prometheus.Desc
	decFall   *prometheus.Desc
	lodWarn   *prometheus.Desc
	stage     *prometheus.Desc
	publish   *prometheus.Desc
	artifacts *prometheus.Desc
	jobsGauge *prometheus.Desc
}

// NewExporter creates an Exporter under the given namespace. jobsByState may be nil.
func NewExporter(namespace string, c *Collector, jobsByState GaugeFunc) *Exporter {
	s := c.Snapshot()
	constLabels := prometheus.Labels{
		"generator":       s.Generator,
		"queue_backend":   s.QueueBackend,
		"storage_backend": s.StorageBackend,
	}
	desc := func(name, help string, labels ...string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "", name), help, labels, constLabels)
	}
	return &Exporter{
		collector:   c,
		jobsByState: jobsByState,
		submitted:   desc("jobs_submitted_total", "Jobs accepted by the orchestrator."),
		completed:   desc("jobs_completed_total", "Jobs that reached completed."),
		failed:      desc("jobs_failed_total", "Jobs that reached failed, by error kind.", "kind"),
		cancelled:   desc("jobs_cancelled_total", "Jobs that reached cancelled."),
		decWarn:     desc("decimation_warnings_total", "Decimation failures downgraded to warnings."),
		decFall:     desc("decimation_fallbacks_total", "Decimations completed by vertex clustering."),
		lodWarn:     desc("lod_warnings_total", "LOD generation failures downgraded to warnings."),
		stage:       desc("stage_duration_seconds", "Pipeline stage durations.", "stage"),
		publish:     desc("publish_total", "Completion notifications by result.", "result"),
		artifacts:   desc("artifact_writes_total", "Artifact persistence attempts by result.", "result"),
		jobsGauge:   desc("jobs", "Jobs currently tracked, by state.", "state"),
	}
}

// Describe implements prometheus.Collector.
func (e *Exporter) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		e.submitted, e.completed, e.failed, e.cancelled,
		e.decWarn, e.decFall, e.lodWarn, e.stage,
		e.publish, e.artifacts, e.jobsGauge,
	} {
		ch <- d
	}
}

// Collect implements prometheus.Collector.
func (e *Exporter) Collect(ch chan<- prometheus.Metric) {
	s := e.collector.Snapshot()
	counter := func(d *prometheus.Desc, v int64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(v), labels...)
	}

	counter(e.submitted, s.JobsSubmitted)
	counter(e.completed, s.JobsCompleted)
	counter(e.cancelled, s.JobsCancelled)
	for _, kind := range sortedKeys(s.FailedByKind) {
		counter(e.failed, s.FailedByKind[kind], kind)
	}
	counter(e.decWarn, s.DecimationWarnings)
	counter(e.decFall, s.DecimationFallbacks)
	counter(e.lodWarn, s.LODWarnings)
	counter(e.publish, s.PublishSuccess, "success")
	counter(e.publish, s.PublishFailure, "failure")
	counter(e.artifacts, s.ArtifactWriteSuccess, "success")
	counter(e.artifacts, s.ArtifactWriteFailure, "failure")

	for _, stage := range sortedKeys(s.StageCount) {
		ch <- prometheus.MustNewConstSummary(e.stage, uint64(s.StageCount[stage]), s.StageSeconds[stage], nil, stage)
	}

	if e.jobsByState != nil {
		states := e.jobsByState()
		for _, st := range sortedKeys(states) {
			ch <- prometheus.MustNewConstMetric(e.jobsGauge, prometheus.GaugeValue, float64(states[st]), st)
		}
	}
}

// Handler returns an http.Handler serving the exporter from a dedicated registry.
func (e *Exporter) Handler() (http.Handler, error) {
	reg := prometheus.NewRegistry()
	if err := reg.Register(e); err != nil {
		return nil, err
	}
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), nil
}

var _ prometheus.Collector = (*Exporter)(nil)

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
