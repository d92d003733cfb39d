package schemas

import (
	"fmt"
	"time"
)

// -- Canonical Navigation Graph Data Model --

// PageType classifies the role a page plays inside an application.
type PageType string

const (
	PageHome   PageType = "home"
	PageList   PageType = "list"
	PageDetail PageType = "detail"
	PageForm   PageType = "form"
	PageSearch PageType = "search"
	PageOther  PageType = "other"
)

// ActionType is the kind of gesture or input an agent performs on a widget.
type ActionType string

const (
	ActionClick     ActionType = "click"
	ActionLongPress ActionType = "long_press"
	ActionInput     ActionType = "input"
	ActionSwipe     ActionType = "swipe"
	ActionScroll    ActionType = "scroll"
	ActionBack      ActionType = "back"
)

// WidgetType classifies a UI widget observed on a page.
type WidgetType string

const (
	WidgetButton   WidgetType = "button"
	WidgetText     WidgetType = "text"
	WidgetInput    WidgetType = "input"
	WidgetImage    WidgetType = "image"
	WidgetList     WidgetType = "list"
	WidgetTab      WidgetType = "tab"
	WidgetIcon     WidgetType = "icon"
	WidgetCheckbox WidgetType = "checkbox"
	WidgetOther    WidgetType = "other"
)

// WidgetRef is a compact (type, text) fingerprint of a single widget. A page's
// structural signature is a set of these; the locator compares the set seen on
// screen against the stored one.
type WidgetRef struct {
	Type WidgetType `json:"type"`
	Text string     `json:"text"`
}

// Key returns the canonical form used for set membership during structural
// comparison.
func (w WidgetRef) Key() string {
	return string(w.Type) + "\x00" + w.Text
}

// Page represents a distinct reachable state of the application under test.
// The ID is immutable once assigned; description, signature and embedding may
// be refined as more evidence is observed.
type Page struct {
	ID          string      `json:"id"`
	AppID       string      `json:"app_id"`
	Name        string      `json:"name"`
	Type        PageType    `json:"type"`
	Description string      `json:"description,omitempty"`
	Intents     []string    `json:"intents,omitempty"`
	Signature   []WidgetRef `json:"signature,omitempty"`
	Embedding   []float32   `json:"embedding,omitempty"`
	Depth       int         `json:"depth,omitempty"`
	VisitCount  int64       `json:"visit_count,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
}

// PageSummary is the trimmed page view returned inside query results.
type PageSummary struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Type        PageType `json:"type"`
	Description string   `json:"description,omitempty"`
}

// Summary projects a Page into its result-envelope form.
func (p Page) Summary() PageSummary {
	return PageSummary{ID: p.ID, Name: p.Name, Type: p.Type, Description: p.Description}
}

// Action identifies the concrete interaction that triggers a transition. The
// target signature prefers the stable widget ID and falls back to the widget
// text, so edges survive cosmetic relabeling when an ID is available.
type Action struct {
	Type       ActionType `json:"type"`
	TargetID   string     `json:"target_id,omitempty"`
	TargetText string     `json:"target_text,omitempty"`
	InputText  string     `json:"input_text,omitempty"`
}

// Signature returns the action's identity within its source page. Two
// transitions out of the same page are distinct edges iff their signatures
// differ.
func (a Action) Signature() string {
	target := a.TargetID
	if target == "" {
		target = a.TargetText
	}
	return fmt.Sprintf("%s/%s", a.Type, target)
}

// Transition is a directed edge between two pages carrying reliability
// statistics. Counts only ever grow; the learner is the sole writer.
type Transition struct {
	ID             string    `json:"id"`
	AppID          string    `json:"app_id"`
	SourcePageID   string    `json:"source_page_id"`
	TargetPageID   string    `json:"target_page_id"`
	Action         Action    `json:"action"`
	SuccessCount   int64     `json:"success_count"`
	FailCount      int64     `json:"fail_count"`
	TotalLatencyMs int64     `json:"total_latency_ms"`
	LastUpdated    time.Time `json:"last_updated"`
}

// Observations is the total number of recorded trials for this edge.
func (t Transition) Observations() int64 {
	return t.SuccessCount + t.FailCount
}

// SuccessRate is observed successes over observed trials. An edge with no
// observations has rate 0 by definition.
func (t Transition) SuccessRate() float64 {
	total := t.Observations()
	if total == 0 {
		return 0
	}
	return float64(t.SuccessCount) / float64(total)
}

// AvgLatencyMs is the running mean latency over all recorded trials.
func (t Transition) AvgLatencyMs() int64 {
	total := t.Observations()
	if total == 0 {
		return 0
	}
	return t.TotalLatencyMs / total
}

// Intent is a named goal an agent can pursue, optionally bound to the page
// that satisfies it.
type Intent struct {
	ID           string    `json:"id"`
	AppID        string    `json:"app_id"`
	Text         string    `json:"text"`
	Keywords     []string  `json:"keywords,omitempty"`
	TargetPageID string    `json:"target_page_id,omitempty"`
	Embedding    []float32 `json:"embedding,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// ActionStep is one hop of a recommended path.
type ActionStep struct {
	Index            int     `json:"step"`
	Action           Action  `json:"action"`
	ExpectedPageID   string  `json:"expected_page"`
	ExpectedPageName string  `json:"expected_page_name,omitempty"`
	SuccessRate      float64 `json:"success_rate"`
	Description      string  `json:"description,omitempty"`
}

// ActionPath is an ordered walk through the graph from a start page to an end
// page. Paths are computed on demand and never persisted.
type ActionPath struct {
	StartPageID string       `json:"start_page"`
	EndPageID   string       `json:"end_page"`
	Steps       []ActionStep `json:"steps"`
	Confidence  float64      `json:"confidence"`
	// Cost is the search weight of the walk, kept for alternative bounding.
	Cost float64 `json:"-"`
}

// TotalSteps is the number of transitions in the walk.
func (p ActionPath) TotalSteps() int {
	return len(p.Steps)
}

// UIObservation is what a locator caller actually saw on screen: a title, a
// partial widget list, or both. Either field may be empty, not both.
type UIObservation struct {
	Title   string      `json:"title,omitempty"`
	Widgets []WidgetRef `json:"widgets,omitempty"`
}

// Empty reports whether the observation carries no usable signal.
func (o UIObservation) Empty() bool {
	return o.Title == "" && len(o.Widgets) == 0
}

// HistoricalCase is one recorded execution outcome, retained in a bounded
// most-recent-first log for context assembly.
type HistoricalCase struct {
	ID         string    `json:"id"`
	AppID      string    `json:"app_id"`
	FromPageID string    `json:"from_page"`
	ToPageID   string    `json:"to_page"`
	Action     Action    `json:"action"`
	Success    bool      `json:"success"`
	LatencyMs  int64     `json:"latency_ms"`
	ReportedAt time.Time `json:"reported_at"`
}

// GraphStats summarizes the stored graph for an application.
type GraphStats struct {
	Pages        int     `json:"pages"`
	Transitions  int     `json:"transitions"`
	Intents      int     `json:"intents"`
	AvgOutDegree float64 `json:"avg_out_degree"`
}

// GraphExport is a full dump of an application's stored graph.
type GraphExport struct {
	Pages       []Page       `json:"pages"`
	Transitions []Transition `json:"transitions"`
	Intents     []Intent     `json:"intents"`
}
