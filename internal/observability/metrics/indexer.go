package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lexgo/statute-consult/internal/core/domain"
)

type IndexerMetrics struct {
	registry *prometheus.Registry

	buildsTotal     *prometheus.CounterVec
	buildDuration   *prometheus.HistogramVec
	documentsTotal  *prometheus.CounterVec
	chunksLastBuild *prometheus.GaugeVec
}

func NewIndexerMetrics(service string) *IndexerMetrics {
	registry := prometheus.NewRegistry()

	buildsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lexgo",
			Subsystem: "indexer",
			Name:      "builds_total",
			Help:      "Total index builds by status.",
		},
		[]string{"service", "status"},
	)
	buildDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "lexgo",
			Subsystem: "indexer",
			Name:      "build_duration_seconds",
			Help:      "Index build duration in seconds by status.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		},
		[]string{"service", "status"},
	)
	documentsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lexgo",
			Subsystem: "indexer",
			Name:      "documents_total",
			Help:      "Total statute documents seen across builds by outcome.",
		},
		[]string{"service", "outcome"},
	)
	chunksLastBuild := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "lexgo",
			Subsystem: "indexer",
			Name:      "chunks_last_build",
			Help:      "Article chunks produced by the most recent successful build.",
		},
		[]string{"service"},
	)

	registry.MustRegister(buildsTotal, buildDuration, documentsTotal, chunksLastBuild)

	return &IndexerMetrics{
		registry:        registry,
		buildsTotal:     buildsTotal,
		buildDuration:   buildDuration,
		documentsTotal:  documentsTotal,
		chunksLastBuild: chunksLastBuild,
	}
}

func (m *IndexerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *IndexerMetrics) FinishBuild(service string, report domain.BuildReport, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}

	m.buildsTotal.WithLabelValues(service, status).Inc()
	m.buildDuration.WithLabelValues(service, status).Observe(duration.Seconds())

	indexed := report.Documents - report.DroppedDocuments
	if indexed > 0 {
		m.documentsTotal.WithLabelValues(service, "indexed").Add(float64(indexed))
	}
	if report.DroppedDocuments > 0 {
		m.documentsTotal.WithLabelValues(service, "dropped").Add(float64(report.DroppedDocuments))
	}
	if err == nil {
		m.chunksLastBuild.WithLabelValues(service).Set(float64(report.Chunks))
	}
}
