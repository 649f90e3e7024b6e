// Package metrics exposes Prometheus counters for the conversion pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RecordsRead counts records pulled from input streams.
	RecordsRead = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "strata",
		Name:      "records_read_total",
		Help:      "Records read from input documents",
	})

	// RecordsSkipped counts malformed lines or elements dropped during load.
	RecordsSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "strata",
		Name:      "records_skipped_total",
		Help:      "Malformed input records skipped",
	})

	// RecordsWritten counts rows committed to output artifacts.
	RecordsWritten = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "strata",
		Name:      "records_written_total",
		Help:      "Rows written to columnar outputs",
	})

	// ChunksAssembled counts chunks turned into record batches.
	ChunksAssembled = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "strata",
		Name:      "chunks_assembled_total",
		Help:      "Chunks assembled into columnar batches",
	})

	// CoercionFailures counts cells null-filled because a value could not be
	// cast to its field's resolved type.
	CoercionFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "strata",
		Name:      "coercion_failures_total",
		Help:      "Cells null-filled due to failed type coercion",
	})

	// SchemaDriftRepairs counts columns null-filled or rewritten to match the
	// running output schema.
	SchemaDriftRepairs = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "strata",
		Name:      "schema_drift_repairs_total",
		Help:      "Columns reconciled against the running output schema",
	})

	// FilesConverted counts per-file conversion outcomes by status.
	FilesConverted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "strata",
		Name:      "files_converted_total",
		Help:      "File conversions by outcome",
	}, []string{"status"})
)

// Handler serves the default Prometheus registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
