package metrics

// RAG groups the instruments recorded by the ingestion, search and answer
// paths. A nil *RAG is valid and records nothing.
type RAG struct {
	reg *Registry

	UploadsTotal   *Counter
	IngestDuration *Histogram
	ChunksIndexed  *Counter
	SearchDuration *Histogram
	LLMRetries     *Counter
	BreakerOpen    *Gauge
}

// NewRAG registers the RAG instruments on reg.
func NewRAG(reg *Registry) *RAG {
	return &RAG{
		reg:            reg,
		UploadsTotal:   reg.Counter("rag_uploads_total", "PDF uploads accepted."),
		IngestDuration: reg.Histogram("rag_ingest_duration_seconds", "Time to extract, chunk, embed and index a PDF.", nil),
		ChunksIndexed:  reg.Counter("rag_chunks_indexed_total", "Chunks written to the vector store."),
		SearchDuration: reg.Histogram("rag_search_duration_seconds", "Semantic search latency.", nil),
		LLMRetries:     reg.Counter("rag_llm_retries_total", "Retried LLM calls."),
		BreakerOpen:    reg.Gauge("rag_llm_breaker_open", "1 while the LLM circuit breaker is not closed."),
	}
}

// Registry returns the backing registry.
func (m *RAG) Registry() *Registry {
	if m == nil {
		return nil
	}
	return m.reg
}

// LLMRetry counts one retried backend call.
func (m *RAG) LLMRetry() {
	if m == nil {
		return
	}
	m.LLMRetries.Inc()
}

// BreakerChanged tracks whether the LLM breaker is closed.
func (m *RAG) BreakerChanged(closed bool) {
	if m == nil {
		return
	}
	if closed {
		m.BreakerOpen.Set(0)
	} else {
		m.BreakerOpen.Set(1)
	}
}

// IngestDone counts a finished ingestion job by outcome.
func (m *RAG) IngestDone(status string) {
	if m == nil {
		return
	}
	m.reg.Counter(WithLabels("rag_ingest_jobs_total", "status", status), "Ingestion jobs by final status.").Inc()
}

// Answer counts an answer by synthesis mode and outcome.
func (m *RAG) Answer(mode, outcome string) {
	if m == nil {
		return
	}
	m.reg.Counter(WithLabels("rag_answers_total", "mode", mode, "outcome", outcome), "Answers by mode and outcome.").Inc()
}

// HTTPRequest counts a served request.
func (m *RAG) HTTPRequest(method, route string, status int) {
	if m == nil {
		return
	}
	m.reg.Counter(WithLabels("rag_http_requests_total", "method", method, "route", route, "code", statusClass(status)), "HTTP requests by route and status class.").Inc()
}

func statusClass(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
