package observability

import (
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	filesScannedTotal   *prometheus.CounterVec
	filesRewrittenTotal *prometheus.CounterVec
	replacementsTotal   *prometheus.CounterVec
	fileErrorsTotal     *prometheus.CounterVec
	runDuration         *prometheus.HistogramVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		filesScannedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "assetfix_files_scanned_total", Help: "Total files read and transformed"},
			[]string{"ext"},
		),
		filesRewrittenTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "assetfix_files_rewritten_total", Help: "Total files whose content changed"},
			[]string{"ext", "dry_run"},
		),
		replacementsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "assetfix_replacements_total", Help: "Total path substitutions"},
			[]string{"rule"},
		),
		fileErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "assetfix_file_errors_total", Help: "Total file read or write failures"},
			[]string{"op"},
		),
		runDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "assetfix_run_duration_seconds",
				Help:    "Duration of a full directory pass in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"mode"},
		),
	}

	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(
		m.filesScannedTotal,
		m.filesRewrittenTotal,
		m.replacementsTotal,
		m.fileErrorsTotal,
		m.runDuration,
	)

	return m
}

func (m *Metrics) Handler(reg *prometheus.Registry) http.Handler {
	if reg == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// ObserveFile records one processed file.
func (m *Metrics) ObserveFile(path string, modified, dryRun bool, replacements map[string]int) {
	if m == nil {
		return
	}

	ext := extLabel(path)
	m.filesScannedTotal.WithLabelValues(ext).Inc()
	if modified {
		m.filesRewrittenTotal.WithLabelValues(ext, boolLabel(dryRun)).Inc()
	}
	for rule, n := range replacements {
		m.replacementsTotal.WithLabelValues(rule).Add(float64(n))
	}
}

func (m *Metrics) ObserveError(op string) {
	if m == nil {
		return
	}
	m.fileErrorsTotal.WithLabelValues(op).Inc()
}

func (m *Metrics) ObserveRun(mode string, d time.Duration) {
	if m == nil {
		return
	}
	m.runDuration.WithLabelValues(mode).Observe(d.Seconds())
}

// WriteTextfile dumps the registry in the node_exporter textfile format.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	return prometheus.WriteToTextfile(path, g)
}

func extLabel(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == "" {
		return "none"
	}
	return ext
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
