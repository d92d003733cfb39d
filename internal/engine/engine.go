// Package engine implements the navigation core: intent-to-path search over
// the transition graph, multi-signal page localization, online recalibration
// of edge reliability from reported outcomes, and deterministic context
// assembly for a downstream LLM caller.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/draven0x/wayfinder/api/schemas"
	"github.com/draven0x/wayfinder/internal/config"
)

// Engine owns the navigation core. It is constructed once per process and is
// safe for concurrent use: reads go against graph snapshots, and transition
// statistics are only ever mutated under a sharded per-edge lock.
type Engine struct {
	graph    schemas.GraphStore
	vectors  schemas.VectorIndex
	embedder schemas.Embedder
	cfg      config.EngineConfig
	history  *caseLog
	log      *zap.Logger
	now      func() time.Time

	edgeLocks [edgeLockShards]chan struct{}
}

const edgeLockShards = 64

// New wires the engine to its capability handles. All tunable thresholds come
// in through the configuration; callers load them via config.SetDefaults.
func New(graph schemas.GraphStore, vectors schemas.VectorIndex, embedder schemas.Embedder, cfg config.EngineConfig, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{
		graph:    graph,
		vectors:  vectors,
		embedder: embedder,
		cfg:      cfg,
		history:  newCaseLog(cfg.HistoryCap),
		log:      logger.Named("engine"),
		now:      time.Now,
	}
	for i := range e.edgeLocks {
		e.edgeLocks[i] = make(chan struct{}, 1)
	}
	return e
}

// AddPage registers a page explicitly. The record is fully constructed before
// it is published to the graph, and its embedding is seeded into the vector
// index so the locator and assembler can find it semantically.
func (e *Engine) AddPage(ctx context.Context, req schemas.AddPageRequest) (schemas.Page, error) {
	if req.AppID == "" || strings.TrimSpace(req.Name) == "" {
		return schemas.Page{}, schemas.NewEngineError(schemas.ErrInvalidParameter, "app_id and name are required")
	}
	pageType := req.Type
	if pageType == "" {
		pageType = schemas.PageOther
	}

	page := schemas.Page{
		ID:          schemas.PageID(req.AppID, req.Name),
		AppID:       req.AppID,
		Name:        strings.TrimSpace(req.Name),
		Type:        pageType,
		Description: req.Description,
		Intents:     req.Intents,
		Signature:   req.Signature,
		CreatedAt:   e.now(),
	}

	vec, err := e.embedder.EmbedText(ctx, pageEmbeddingText(page))
	if err != nil {
		return schemas.Page{}, schemas.WrapEngineError(schemas.ErrVectorStore, err, "embed page %q", page.Name)
	}
	page.Embedding = vec

	if err := e.graph.PutPage(ctx, page); err != nil {
		return schemas.Page{}, schemas.WrapEngineError(schemas.ErrGraph, err, "store page %q", page.Name)
	}
	if err := e.vectors.Upsert(ctx, page.ID, vec, schemas.VectorKindPage); err != nil {
		return schemas.Page{}, schemas.WrapEngineError(schemas.ErrVectorStore, err, "index page %q", page.Name)
	}

	e.log.Info("Page registered",
		zap.String("app", req.AppID),
		zap.String("page", page.ID),
		zap.String("name", page.Name))
	return page, nil
}

// RegisterIntent registers a user goal, optionally bound to the page that
// satisfies it. A bound target page must already exist.
func (e *Engine) RegisterIntent(ctx context.Context, req schemas.RegisterIntentRequest) (schemas.Intent, error) {
	if req.AppID == "" || strings.TrimSpace(req.Text) == "" {
		return schemas.Intent{}, schemas.NewEngineError(schemas.ErrInvalidParameter, "app_id and intent_text are required")
	}
	if req.TargetPageID != "" {
		if _, err := e.graph.GetPage(ctx, req.TargetPageID); err != nil {
			if errors.Is(err, schemas.ErrNotFound) {
				return schemas.Intent{}, schemas.NewEngineError(schemas.ErrPageNotFound, "target page %q is not registered", req.TargetPageID)
			}
			return schemas.Intent{}, schemas.WrapEngineError(schemas.ErrGraph, err, "look up target page %q", req.TargetPageID)
		}
	}

	intent := schemas.Intent{
		ID:           schemas.IntentID(req.AppID, req.Text),
		AppID:        req.AppID,
		Text:         strings.TrimSpace(req.Text),
		Keywords:     req.Keywords,
		TargetPageID: req.TargetPageID,
		CreatedAt:    e.now(),
	}

	vec, err := e.embedder.EmbedText(ctx, intentEmbeddingText(intent))
	if err != nil {
		return schemas.Intent{}, schemas.WrapEngineError(schemas.ErrVectorStore, err, "embed intent %q", intent.Text)
	}
	intent.Embedding = vec

	if err := e.graph.PutIntent(ctx, intent); err != nil {
		return schemas.Intent{}, schemas.WrapEngineError(schemas.ErrGraph, err, "store intent %q", intent.Text)
	}
	if err := e.vectors.Upsert(ctx, intent.ID, vec, schemas.VectorKindIntent); err != nil {
		return schemas.Intent{}, schemas.WrapEngineError(schemas.ErrVectorStore, err, "index intent %q", intent.Text)
	}

	e.log.Info("Intent registered",
		zap.String("app", req.AppID),
		zap.String("intent", intent.ID),
		zap.String("text", intent.Text))
	return intent, nil
}

// Ingest registers a captured exploration snapshot in bulk: pages first, then
// transitions (optionally seeded with prior statistics), then intents. On the
// first failure it stops and reports what was already applied.
func (e *Engine) Ingest(ctx context.Context, req schemas.IngestRequest) schemas.IngestResult {
	if req.AppID == "" {
		return schemas.IngestResult{ErrorCode: schemas.ErrInvalidParameter, Message: "app_id is required"}
	}

	var result schemas.IngestResult
	for _, p := range req.Pages {
		p.AppID = req.AppID
		if _, err := e.AddPage(ctx, p); err != nil {
			return failIngest(result, err)
		}
		result.PagesAdded++
	}

	for _, ti := range req.Transitions {
		t := schemas.Transition{
			ID:             schemas.TransitionID(ti.SourcePageID, ti.Action),
			AppID:          req.AppID,
			SourcePageID:   ti.SourcePageID,
			TargetPageID:   ti.TargetPageID,
			Action:         ti.Action,
			SuccessCount:   ti.SuccessCount,
			FailCount:      ti.FailCount,
			TotalLatencyMs: ti.AvgLatencyMs * (ti.SuccessCount + ti.FailCount),
			LastUpdated:    e.now(),
		}
		if err := e.graph.PutTransition(ctx, t); err != nil {
			return failIngest(result, schemas.WrapEngineError(schemas.ErrGraph, err, "store transition %s", t.ID))
		}
		result.TransitionsAdded++
	}

	for _, in := range req.Intents {
		in.AppID = req.AppID
		if _, err := e.RegisterIntent(ctx, in); err != nil {
			return failIngest(result, err)
		}
		result.IntentsAdded++
	}

	e.log.Info("Snapshot ingested",
		zap.String("app", req.AppID),
		zap.Int("pages", result.PagesAdded),
		zap.Int("transitions", result.TransitionsAdded),
		zap.Int("intents", result.IntentsAdded))
	return result
}

func failIngest(partial schemas.IngestResult, err error) schemas.IngestResult {
	partial.ErrorCode = schemas.CodeOf(err)
	partial.Message = err.Error()
	return partial
}

// Stats reports stored graph sizes for an application.
func (e *Engine) Stats(ctx context.Context, appID string) (schemas.GraphStats, error) {
	stats, err := e.graph.Stats(ctx, appID)
	if err != nil {
		return schemas.GraphStats{}, schemas.WrapEngineError(schemas.ErrGraph, err, "graph stats")
	}
	return stats, nil
}

// Export dumps the stored graph for an application.
func (e *Engine) Export(ctx context.Context, appID string) (schemas.GraphExport, error) {
	export, err := e.graph.Export(ctx, appID)
	if err != nil {
		return schemas.GraphExport{}, schemas.WrapEngineError(schemas.ErrGraph, err, "graph export")
	}
	return export, nil
}

// ReachableIntents lists the intents satisfiable within maxDepth hops of the
// given page, deduplicated, in breadth-first discovery order.
func (e *Engine) ReachableIntents(ctx context.Context, pageID string, maxDepth int) ([]string, error) {
	if maxDepth <= 0 {
		maxDepth = e.cfg.MaxSteps
	}

	type queued struct {
		id    string
		depth int
	}
	visited := map[string]bool{pageID: true}
	queue := []queued{{id: pageID}}
	seen := map[string]bool{}
	intents := []string{}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		page, err := e.graph.GetPage(ctx, cur.id)
		if err != nil {
			if errors.Is(err, schemas.ErrNotFound) {
				if cur.id == pageID {
					return nil, schemas.NewEngineError(schemas.ErrPageNotFound, "page %q is not registered", pageID)
				}
				// Dangling edge target, skip it.
				continue
			}
			return nil, schemas.WrapEngineError(schemas.ErrGraph, err, "load page %q", cur.id)
		}
		for _, it := range page.Intents {
			if !seen[it] {
				seen[it] = true
				intents = append(intents, it)
			}
		}

		if cur.depth >= maxDepth {
			continue
		}
		out, err := e.graph.Outgoing(ctx, cur.id)
		if err != nil {
			return nil, schemas.WrapEngineError(schemas.ErrGraph, err, "outgoing of %q", cur.id)
		}
		for _, t := range out {
			if !visited[t.TargetPageID] {
				visited[t.TargetPageID] = true
				queue = append(queue, queued{id: t.TargetPageID, depth: cur.depth + 1})
			}
		}
	}
	return intents, nil
}

// pageEmbeddingText is the canonical text a page is embedded from: its name,
// description and satisfiable intents, so intent queries land near it.
func pageEmbeddingText(p schemas.Page) string {
	parts := []string{p.Name}
	if p.Description != "" {
		parts = append(parts, p.Description)
	}
	parts = append(parts, p.Intents...)
	return strings.Join(parts, " ")
}

func intentEmbeddingText(in schemas.Intent) string {
	parts := []string{in.Text}
	parts = append(parts, in.Keywords...)
	return strings.Join(parts, " ")
}

// pageName resolves a page's display name, best-effort.
func (e *Engine) pageName(ctx context.Context, id string) string {
	page, err := e.graph.GetPage(ctx, id)
	if err != nil {
		return ""
	}
	return page.Name
}

// fmtAction renders an action for step descriptions and the assembled prompt.
func fmtAction(a schemas.Action) string {
	target := a.TargetText
	if target == "" {
		target = a.TargetID
	}
	if target == "" {
		return string(a.Type)
	}
	return fmt.Sprintf("%s %q", a.Type, target)
}
