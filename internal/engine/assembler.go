package engine

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/draven0x/wayfinder/api/schemas"
)

// Retrieve assembles the navigation context around a query: semantically
// relevant pages, a recommended path from the caller's position, and recent
// execution cases split by polarity, all rendered into a deterministic prompt
// for the downstream caller. Identical state and query always produce the
// same prompt.
func (e *Engine) Retrieve(ctx context.Context, req schemas.RetrieveRequest) schemas.RetrieveResult {
	if req.AppID == "" || strings.TrimSpace(req.Query) == "" {
		return schemas.RetrieveResult{
			ErrorCode: schemas.ErrInvalidParameter,
			Message:   "app_id and query are required",
		}
	}
	topK := req.TopK
	if topK <= 0 {
		topK = e.cfg.RetrievalTopK
	}

	relevant, err := e.relevantPages(ctx, req.AppID, req.Query, topK)
	if err != nil {
		return schemas.RetrieveResult{ErrorCode: schemas.CodeOf(err), Message: err.Error()}
	}

	bundle := schemas.RetrievalContext{
		RelevantPages: relevant,
		HistoricalCases: schemas.CaseBuckets{
			Successful: e.history.Recent(req.AppID, true, e.cfg.HistoryPerPolarity),
			Failed:     e.history.Recent(req.AppID, false, e.cfg.HistoryPerPolarity),
		},
	}

	// A recommended path is best-effort; retrieval still succeeds when the
	// query resolves to no reachable intent.
	var suggested []schemas.AvailableAction
	if req.CurrentPageID != "" {
		resolved := e.Resolve(ctx, schemas.ResolveRequest{
			AppID:         req.AppID,
			Intent:        req.Query,
			CurrentPageID: req.CurrentPageID,
		})
		if resolved.Success && resolved.Path.TotalSteps() > 0 {
			bundle.RecommendedPath = resolved.Path
			if resolved.Path.Confidence >= e.cfg.SuggestionConfidence {
				first := resolved.Path.Steps[0]
				suggested = append(suggested, schemas.AvailableAction{
					Action:      first.Action,
					LeadsTo:     first.ExpectedPageID,
					LeadsToName: first.ExpectedPageName,
					SuccessRate: first.SuccessRate,
				})
			}
		}
	}

	result := schemas.RetrieveResult{
		Prompt:           renderPrompt(req.Query, bundle, suggested),
		Context:          bundle,
		SuggestedActions: suggested,
	}
	e.log.Debug("Context assembled",
		zap.String("app", req.AppID),
		zap.Int("relevant_pages", len(relevant)),
		zap.Bool("path", bundle.RecommendedPath != nil))
	return result
}

// relevantPages vector-searches stored pages against the query and hydrates
// each hit, skipping entries the graph no longer holds.
func (e *Engine) relevantPages(ctx context.Context, appID, query string, topK int) ([]schemas.RelevantPage, error) {
	vec, err := e.embedder.EmbedText(ctx, query)
	if err != nil {
		return nil, schemas.WrapEngineError(schemas.ErrVectorStore, err, "embed query")
	}
	hits, err := e.vectors.Query(ctx, vec, schemas.VectorKindPage, topK)
	if err != nil {
		return nil, schemas.WrapEngineError(schemas.ErrVectorStore, err, "query page index")
	}

	pages := make([]schemas.RelevantPage, 0, len(hits))
	for _, hit := range hits {
		page, perr := e.graph.GetPage(ctx, hit.ID)
		if perr != nil || page.AppID != appID {
			continue
		}
		pages = append(pages, schemas.RelevantPage{
			Page:           page.Summary(),
			Intents:        page.Intents,
			RelevanceScore: hit.Score,
		})
	}
	return pages, nil
}

// renderPrompt lays the bundle out as stable, sectioned English text. Section
// order and number formatting are fixed so downstream prompt caches stay
// warm.
func renderPrompt(query string, bundle schemas.RetrievalContext, suggested []schemas.AvailableAction) string {
	var b strings.Builder

	fmt.Fprintf(&b, "User intent: %s\n", query)

	b.WriteString("\nRelevant known pages:\n")
	if len(bundle.RelevantPages) == 0 {
		b.WriteString("  (none)\n")
	}
	for _, rp := range bundle.RelevantPages {
		fmt.Fprintf(&b, "  - %s (%s, relevance %.2f)", rp.Page.Name, rp.Page.Type, rp.RelevanceScore)
		if rp.Page.Description != "" {
			fmt.Fprintf(&b, ": %s", rp.Page.Description)
		}
		if len(rp.Intents) > 0 {
			fmt.Fprintf(&b, " [supports: %s]", strings.Join(rp.Intents, ", "))
		}
		b.WriteString("\n")
	}

	if path := bundle.RecommendedPath; path != nil {
		fmt.Fprintf(&b, "\nRecommended path (confidence %.2f):\n", path.Confidence)
		for _, step := range path.Steps {
			fmt.Fprintf(&b, "  %d. %s (success rate %.2f)\n", step.Index, step.Description, step.SuccessRate)
		}
	}

	b.WriteString("\nRecent successful executions:\n")
	writeCases(&b, bundle.HistoricalCases.Successful)
	b.WriteString("\nRecent failed executions:\n")
	writeCases(&b, bundle.HistoricalCases.Failed)

	if len(suggested) > 0 {
		b.WriteString("\nSuggested next action:\n")
		for _, a := range suggested {
			leads := a.LeadsToName
			if leads == "" {
				leads = a.LeadsTo
			}
			fmt.Fprintf(&b, "  - %s, expected to reach %s (success rate %.2f)\n", fmtAction(a.Action), leads, a.SuccessRate)
		}
	}

	return b.String()
}

func writeCases(b *strings.Builder, cases []schemas.HistoricalCase) {
	if len(cases) == 0 {
		b.WriteString("  (none)\n")
		return
	}
	for _, c := range cases {
		fmt.Fprintf(b, "  - %s: %s -> %s (%dms)\n", fmtAction(c.Action), c.FromPageID, c.ToPageID, c.LatencyMs)
	}
}
