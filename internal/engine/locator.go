package engine

import (
	"context"
	"errors"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/draven0x/wayfinder/api/schemas"
)

// Match identifies which known page a noisy UI observation corresponds to.
// Title, structure and semantic evidence are scored independently and fused
// as a weighted sum; weights of absent signals are renormalized away so a
// title-only probe is not penalized for missing widgets.
func (e *Engine) Match(ctx context.Context, req schemas.MatchRequest) schemas.MatchResult {
	obs := schemas.UIObservation{Title: req.Title}
	if req.Observation != nil {
		obs = *req.Observation
		if obs.Title == "" {
			obs.Title = req.Title
		}
	}
	if req.AppID == "" || obs.Empty() {
		return schemas.MatchResult{
			ErrorCode: schemas.ErrInvalidParameter,
			Message:   "app_id and a non-empty observation are required",
		}
	}

	pages, err := e.graph.AllPages(ctx, req.AppID)
	if err != nil {
		wrapped := schemas.WrapEngineError(schemas.ErrGraph, err, "list pages of %q", req.AppID)
		return schemas.MatchResult{ErrorCode: schemas.CodeOf(wrapped), Message: wrapped.Error()}
	}
	if len(pages) == 0 {
		return schemas.MatchResult{Matched: false}
	}

	semantic, err := e.semanticScores(ctx, obs)
	if err != nil {
		return schemas.MatchResult{ErrorCode: schemas.CodeOf(err), Message: err.Error()}
	}

	type scored struct {
		page  schemas.Page
		score float64
	}
	ranked := make([]scored, 0, len(pages))
	for _, p := range pages {
		s := e.fuseSignals(
			titleSignal(obs.Title, p),
			structureSignal(obs.Widgets, p.Signature),
			semantic[p.ID],
			obs,
		)
		ranked = append(ranked, scored{page: p, score: s})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].page.ID < ranked[j].page.ID
	})

	best := ranked[0]
	result := schemas.MatchResult{Score: best.score}

	if best.score >= e.cfg.MatchThreshold {
		summary := best.page.Summary()
		result.Matched = true
		result.Page = &summary
		actions, aerr := e.availableActions(ctx, best.page.ID)
		if aerr != nil {
			return schemas.MatchResult{ErrorCode: schemas.CodeOf(aerr), Message: aerr.Error()}
		}
		result.AvailableActions = actions
		ranked = ranked[1:]
	}

	for _, r := range ranked {
		if r.score < e.cfg.MatchFloor {
			break
		}
		result.Candidates = append(result.Candidates, schemas.PageCandidate{
			Page:  r.page.Summary(),
			Score: r.score,
		})
	}

	e.log.Debug("Page match",
		zap.String("app", req.AppID),
		zap.Bool("matched", result.Matched),
		zap.Float64("score", result.Score))
	return result
}

// fuseSignals combines the three evidence channels. Only channels the
// observation can actually inform participate; their weights are scaled so
// active weights always sum to one.
func (e *Engine) fuseSignals(title, structure, semantic float64, obs schemas.UIObservation) float64 {
	var sum, weight float64
	if obs.Title != "" {
		sum += e.cfg.TitleWeight * title
		weight += e.cfg.TitleWeight
	}
	if len(obs.Widgets) > 0 {
		sum += e.cfg.StructureWeight * structure
		weight += e.cfg.StructureWeight
	}
	if !obs.Empty() {
		sum += e.cfg.SemanticWeight * semantic
		weight += e.cfg.SemanticWeight
	}
	if weight == 0 {
		return 0
	}
	return sum / weight
}

// titleSignal is exact match on the normalized title. Near-miss titles are
// left to the semantic channel rather than fuzzy string distance.
func titleSignal(title string, p schemas.Page) float64 {
	if title == "" {
		return 0
	}
	if normalizeTitle(title) == normalizeTitle(p.Name) {
		return 1
	}
	return 0
}

func normalizeTitle(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// structureSignal is the Jaccard overlap between the observed widget set and
// the page's stored signature.
func structureSignal(observed []schemas.WidgetRef, signature []schemas.WidgetRef) float64 {
	if len(observed) == 0 || len(signature) == 0 {
		return 0
	}
	stored := make(map[string]bool, len(signature))
	for _, w := range signature {
		stored[w.Key()] = true
	}
	seen := make(map[string]bool, len(observed))
	intersection := 0
	for _, w := range observed {
		k := w.Key()
		if seen[k] {
			continue
		}
		seen[k] = true
		if stored[k] {
			intersection++
		}
	}
	union := len(stored) + len(seen) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// semanticScores embeds the observation and maps cosine neighbors from the
// page index to a [0, 1] score per page ID.
func (e *Engine) semanticScores(ctx context.Context, obs schemas.UIObservation) (map[string]float64, error) {
	vec, err := e.embedder.EmbedStructure(ctx, obs)
	if err != nil {
		return nil, schemas.WrapEngineError(schemas.ErrVectorStore, err, "embed observation")
	}
	hits, err := e.vectors.Query(ctx, vec, schemas.VectorKindPage, 10)
	if err != nil {
		return nil, schemas.WrapEngineError(schemas.ErrVectorStore, err, "query page index")
	}
	scores := make(map[string]float64, len(hits))
	for _, h := range hits {
		if h.Score > 0 {
			scores[h.ID] = h.Score
		}
	}
	return scores, nil
}

// PageActions lists the outgoing actions of a registered page.
func (e *Engine) PageActions(ctx context.Context, pageID string) ([]schemas.AvailableAction, error) {
	if _, err := e.graph.GetPage(ctx, pageID); err != nil {
		if errors.Is(err, schemas.ErrNotFound) {
			return nil, schemas.NewEngineError(schemas.ErrPageNotFound, "page %q is not registered", pageID)
		}
		return nil, schemas.WrapEngineError(schemas.ErrGraph, err, "load page %q", pageID)
	}
	return e.availableActions(ctx, pageID)
}

// availableActions lists a page's outgoing transitions ordered by success
// rate, then observation count, then action signature.
func (e *Engine) availableActions(ctx context.Context, pageID string) ([]schemas.AvailableAction, error) {
	out, err := e.graph.Outgoing(ctx, pageID)
	if err != nil {
		return nil, schemas.WrapEngineError(schemas.ErrGraph, err, "outgoing of %q", pageID)
	}
	actions := make([]schemas.AvailableAction, 0, len(out))
	for _, t := range out {
		actions = append(actions, schemas.AvailableAction{
			Action:       t.Action,
			LeadsTo:      t.TargetPageID,
			LeadsToName:  e.pageName(ctx, t.TargetPageID),
			SuccessRate:  t.SuccessRate(),
			Observations: t.Observations(),
		})
	}
	sort.SliceStable(actions, func(i, j int) bool {
		if actions[i].SuccessRate != actions[j].SuccessRate {
			return actions[i].SuccessRate > actions[j].SuccessRate
		}
		if actions[i].Observations != actions[j].Observations {
			return actions[i].Observations > actions[j].Observations
		}
		return actions[i].Action.Signature() < actions[j].Action.Signature()
	})
	return actions, nil
}
