package observability

const (
	AttrServiceName     = "service.name"
	AttrServiceVersion  = "service.version"
	AttrAgentName       = "agent.name"
	AttrAgentLLM        = "agent.llm"
	AttrToolName        = "tool.name"
	AttrLLMModel        = "llm.model"
	AttrLLMTokensInput  = "llm.tokens.input"
	AttrLLMTokensOutput = "llm.tokens.output"
	AttrErrorType       = "error.type"
	AttrStatusCode      = "http.status_code"
	AttrKernelEventID   = "kernel.event_id"

	AttrHTTPMethod       = "http.method"
	AttrHTTPPath         = "http.path"
	AttrHTTPStatusCode   = "http.status_code"
	AttrHTTPResponseSize = "http.response_size"

	// SpanAgentCall/SpanAgentRun, SpanLLMRequest/SpanLLMCall, and
	// SpanMemoryLookup/SpanMemorySearch are aliases of the same span: the
	// kernel's own spans use the first name, the DebugExporter's capture
	// filter recognizes both.
	SpanAgentCall     = "agent.call"
	SpanAgentRun      = SpanAgentCall
	SpanLLMRequest    = "agent.llm_request"
	SpanLLMCall       = SpanLLMRequest
	SpanToolExecution = "agent.tool_execution"
	SpanMemoryLookup  = "agent.memory_lookup"
	SpanMemorySearch  = SpanMemoryLookup
	SpanPlanStep      = "executor.plan_step"
	SpanHTTPRequest   = "http.request"

	DefaultServiceName = "kernel"
	DefaultMetricsPath = "/metrics"
	DefaultOTLPEndpoint = "localhost:4317"
	DefaultSamplingRate = 1.0
)
