package schemas

// Request and result envelopes for every exposed engine operation. These are
// the boundary serialization structures; handlers decode straight into them.

// ResolveRequest asks for a ranked action sequence satisfying an intent.
type ResolveRequest struct {
	AppID         string `json:"app_id"`
	Intent        string `json:"intent"`
	CurrentPageID string `json:"current_page_id,omitempty"`
	MaxSteps      int    `json:"max_steps,omitempty"`
}

// ResolveResult is the outcome of a path resolution. On failure Success is
// false and ErrorCode carries the taxonomy entry; a partially-built path is
// never returned as success.
type ResolveResult struct {
	Success      bool          `json:"success"`
	Path         *ActionPath   `json:"path,omitempty"`
	Alternatives []*ActionPath `json:"alternatives,omitempty"`
	TargetPage   *PageSummary  `json:"target_page,omitempty"`
	Confidence   float64       `json:"confidence"`
	ErrorCode    ErrorCode     `json:"error_code,omitempty"`
	Message      string        `json:"message,omitempty"`
}

// NextActionRequest asks only for the immediate next step toward an intent.
type NextActionRequest struct {
	AppID         string `json:"app_id,omitempty"`
	CurrentPageID string `json:"current_page_id"`
	Intent        string `json:"intent"`
}

// NextActionResult returns the first step of the resolved path, or
// IsComplete when the caller is already on the target page.
type NextActionResult struct {
	Success        bool        `json:"success"`
	Action         *ActionStep `json:"action"`
	IsComplete     bool        `json:"is_complete"`
	RemainingSteps int         `json:"remaining_steps"`
	ErrorCode      ErrorCode   `json:"error_code,omitempty"`
	Message        string      `json:"message,omitempty"`
}

// MatchRequest carries the noisy evidence for page identification. At least
// one of Observation or Title must be present.
type MatchRequest struct {
	AppID       string         `json:"app_id"`
	Observation *UIObservation `json:"observation,omitempty"`
	Title       string         `json:"title,omitempty"`
}

// PageCandidate is a page that scored above the candidate floor but below
// the acceptance threshold.
type PageCandidate struct {
	Page  PageSummary `json:"page"`
	Score float64     `json:"score"`
}

// AvailableAction describes one outgoing transition of a matched page.
type AvailableAction struct {
	Action       Action  `json:"action"`
	LeadsTo      string  `json:"leads_to"`
	LeadsToName  string  `json:"leads_to_name,omitempty"`
	SuccessRate  float64 `json:"success_rate"`
	Observations int64   `json:"observations"`
}

// MatchResult reports the best-scoring known page, if any, plus runner-up
// candidates ordered by score descending.
type MatchResult struct {
	Matched          bool              `json:"matched"`
	Page             *PageSummary      `json:"page,omitempty"`
	Score            float64           `json:"score"`
	AvailableActions []AvailableAction `json:"available_actions,omitempty"`
	Candidates       []PageCandidate   `json:"candidates,omitempty"`
	ErrorCode        ErrorCode         `json:"error_code,omitempty"`
	Message          string            `json:"message,omitempty"`
}

// ReportRequest records one observed execution outcome on an edge,
// creating the edge on first sight. One call is one trial; callers must not
// double-report a single physical execution.
type ReportRequest struct {
	AppID      string `json:"app_id"`
	FromPageID string `json:"from_page"`
	Action     Action `json:"action"`
	ToPageID   string `json:"to_page"`
	Success    bool   `json:"success"`
	LatencyMs  int64  `json:"latency_ms,omitempty"`
}

// TransitionStats is the derived view of an edge's counters returned after a
// report.
type TransitionStats struct {
	SuccessCount int64   `json:"success_count"`
	FailCount    int64   `json:"fail_count"`
	Observations int64   `json:"observations"`
	SuccessRate  float64 `json:"success_rate"`
	AvgLatencyMs int64   `json:"avg_latency_ms"`
}

// ReportResult confirms a recorded outcome. Updated is false when the report
// created the edge.
type ReportResult struct {
	Success      bool            `json:"success"`
	TransitionID string          `json:"transition_id"`
	Updated      bool            `json:"updated"`
	Stats        TransitionStats `json:"stats"`
	ErrorCode    ErrorCode       `json:"error_code,omitempty"`
	Message      string          `json:"message,omitempty"`
}

// RetrieveRequest asks the context assembler for a structured retrieval
// bundle around a query.
type RetrieveRequest struct {
	AppID         string `json:"app_id"`
	Query         string `json:"query"`
	CurrentPageID string `json:"current_page_id,omitempty"`
	TopK          int    `json:"top_k,omitempty"`
}

// RelevantPage is one vector-retrieved page with its similarity score.
type RelevantPage struct {
	Page           PageSummary `json:"page"`
	Intents        []string    `json:"intents,omitempty"`
	RelevanceScore float64     `json:"relevance_score"`
}

// CaseBuckets splits retrieved historical cases by polarity.
type CaseBuckets struct {
	Successful []HistoricalCase `json:"successful"`
	Failed     []HistoricalCase `json:"failed"`
}

// RetrievalContext is the structured half of an assembled bundle.
type RetrievalContext struct {
	RelevantPages   []RelevantPage `json:"relevant_pages"`
	RecommendedPath *ActionPath    `json:"recommended_path,omitempty"`
	HistoricalCases CaseBuckets    `json:"historical_cases"`
}

// RetrieveResult pairs the deterministic prompt rendering with the raw
// context it was rendered from.
type RetrieveResult struct {
	Prompt           string            `json:"prompt"`
	Context          RetrievalContext  `json:"context"`
	SuggestedActions []AvailableAction `json:"suggested_actions"`
	ErrorCode        ErrorCode         `json:"error_code,omitempty"`
	Message          string            `json:"message,omitempty"`
}

// AddPageRequest registers a page explicitly, ahead of observation.
type AddPageRequest struct {
	AppID       string      `json:"app_id"`
	Name        string      `json:"name"`
	Type        PageType    `json:"type,omitempty"`
	Description string      `json:"description,omitempty"`
	Intents     []string    `json:"intents,omitempty"`
	Signature   []WidgetRef `json:"signature,omitempty"`
}

// RegisterIntentRequest registers a goal and optionally binds it to its
// target page.
type RegisterIntentRequest struct {
	AppID        string   `json:"app_id"`
	Text         string   `json:"intent_text"`
	Keywords     []string `json:"keywords,omitempty"`
	TargetPageID string   `json:"target_page,omitempty"`
}

// TransitionInput seeds an edge during bulk ingestion, optionally with prior
// statistics from a previous exploration run.
type TransitionInput struct {
	SourcePageID string `json:"source_page_id"`
	TargetPageID string `json:"target_page_id"`
	Action       Action `json:"action"`
	SuccessCount int64  `json:"success_count,omitempty"`
	FailCount    int64  `json:"fail_count,omitempty"`
	AvgLatencyMs int64  `json:"avg_latency_ms,omitempty"`
}

// IngestRequest registers a captured exploration snapshot in one call:
// pages first, then transitions, then intents.
type IngestRequest struct {
	AppID       string                  `json:"app_id"`
	Pages       []AddPageRequest        `json:"pages,omitempty"`
	Transitions []TransitionInput       `json:"transitions,omitempty"`
	Intents     []RegisterIntentRequest `json:"intents,omitempty"`
}

// IngestResult counts what the snapshot ingestion created.
type IngestResult struct {
	PagesAdded       int       `json:"pages_added"`
	TransitionsAdded int       `json:"transitions_added"`
	IntentsAdded     int       `json:"intents_added"`
	ErrorCode        ErrorCode `json:"error_code,omitempty"`
	Message          string    `json:"message,omitempty"`
}
