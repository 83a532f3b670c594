package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	SearchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "support_assistant_search_duration_seconds",
			Help:    "Knowledge base search duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
		},
		[]string{"status"},
	)

	RetrievalResults = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "support_assistant_retrieval_results",
			Help:    "Number of documents returned per retrieval after the reranker gate",
			Buckets: []float64{0, 1, 2, 3, 5, 10},
		},
	)

	RerankerRejected = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "support_assistant_reranker_rejected_total",
			Help: "Hits dropped for scoring below the reranker threshold",
		},
	)

	LLMTokensUsed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "support_assistant_llm_tokens_used",
			Help: "Total LLM tokens used",
		},
		[]string{"type"},
	)

	DocumentsIndexed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "support_assistant_documents_indexed_total",
			Help: "Total knowledge base documents upserted",
		},
	)

	SessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "support_assistant_sessions_active",
			Help: "Transcripts currently held by the session store",
		},
	)

	SessionsSwept = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "support_assistant_sessions_swept_total",
			Help: "Transcripts removed by the expiry sweeper",
		},
	)

	DuplicateTurnsSuppressed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "support_assistant_duplicate_turns_suppressed_total",
			Help: "Transcript appends dropped as duplicates",
		},
	)

	ToolCallsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "support_assistant_tool_calls_total",
			Help: "Knowledge base search tool invocations by the model",
		},
	)

	EvaluationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "support_assistant_evaluations_total",
			Help: "Answer evaluations by mode and rating",
		},
		[]string{"mode", "rating"},
	)
)

func Init() {
	prometheus.MustRegister(SearchDuration)
	prometheus.MustRegister(RetrievalResults)
	prometheus.MustRegister(RerankerRejected)
	prometheus.MustRegister(LLMTokensUsed)
	prometheus.MustRegister(DocumentsIndexed)
	prometheus.MustRegister(SessionsActive)
	prometheus.MustRegister(SessionsSwept)
	prometheus.MustRegister(DuplicateTurnsSuppressed)
	prometheus.MustRegister(ToolCallsTotal)
	prometheus.MustRegister(EvaluationsTotal)
}

func Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
