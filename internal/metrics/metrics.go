package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 处理流水线和问答接口的Prometheus指标
var (
	DocumentsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ragpdf_documents_processed_total",
			Help: "Total number of processed documents",
		},
		[]string{"status"}, // completed, failed, already_indexed
	)

	PagesExtracted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ragpdf_pages_extracted_total",
			Help: "Total number of extracted pages by method",
		},
		[]string{"method"}, // native-text, ocr, failed
	)

	ChunksIndexed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ragpdf_chunks_indexed_total",
			Help: "Total number of chunks written to the vector index",
		},
	)

	ProcessingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ragpdf_processing_duration_seconds",
			Help:    "Duration of document processing stages",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"stage"}, // extract, clean, chunk, embed, index, total
	)

	QuestionsAnswered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ragpdf_questions_answered_total",
			Help: "Total number of answered questions",
		},
		[]string{"status"}, // ok, no_context, error
	)

	QuestionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ragpdf_question_duration_seconds",
			Help:    "End to end duration of question answering",
			Buckets: prometheus.DefBuckets,
		},
	)
)

// ObserveStage 记录某个处理阶段的耗时
func ObserveStage(stage string, start time.Time) {
	ProcessingDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

// Handler 返回Prometheus指标的HTTP处理器
func Handler() http.Handler {
	return promhttp.Handler()
}
