package engine

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/draven0x/wayfinder/api/schemas"
)

// minEdgeRate floors the success rate before the log transform so a fully
// failing edge stays finite-cost and merely becomes extremely expensive.
const minEdgeRate = 1e-6

// Resolve turns a natural-language intent into a ranked action sequence from
// the caller's current page to the page that satisfies the intent. Failures
// are encoded in the result envelope; a partial path is never returned as
// success.
func (e *Engine) Resolve(ctx context.Context, req schemas.ResolveRequest) schemas.ResolveResult {
	if req.AppID == "" || strings.TrimSpace(req.Intent) == "" {
		return resolveFailure(schemas.ErrInvalidParameter, "app_id and intent are required")
	}
	maxSteps := req.MaxSteps
	if maxSteps <= 0 || maxSteps > e.cfg.MaxSteps {
		maxSteps = e.cfg.MaxSteps
	}

	current, err := e.currentOrHome(ctx, req.AppID, req.CurrentPageID)
	if err != nil {
		return resolveFailureErr(err)
	}

	targets, err := e.resolveIntentTargets(ctx, req.AppID, req.Intent)
	if err != nil {
		return resolveFailureErr(err)
	}
	if len(targets) == 0 {
		return resolveFailure(schemas.ErrIntentNotFound, "no registered intent or page matches %q", req.Intent)
	}

	// Try targets in confidence order and keep the cheapest reachable one.
	var (
		best       *schemas.ActionPath
		bestTarget string
	)
	for _, tgt := range targets {
		if tgt.pageID == current.ID {
			trivial := &schemas.ActionPath{
				StartPageID: current.ID,
				EndPageID:   current.ID,
				Steps:       []schemas.ActionStep{},
				Confidence:  1.0,
			}
			best, bestTarget = trivial, tgt.pageID
			break
		}
		edges, found, serr := e.shortestPath(ctx, current.ID, tgt.pageID, maxSteps, nil)
		if serr != nil {
			return resolveFailureErr(serr)
		}
		if !found {
			continue
		}
		path := e.buildPath(ctx, current.ID, tgt.pageID, edges)
		if best == nil || path.Cost < best.Cost ||
			(path.Cost == best.Cost && path.TotalSteps() < best.TotalSteps()) {
			best, bestTarget = path, tgt.pageID
		}
	}
	if best == nil {
		return resolveFailure(schemas.ErrPathNotFound,
			"no path within %d steps from %q satisfies %q", maxSteps, current.ID, req.Intent)
	}

	result := schemas.ResolveResult{
		Success:    true,
		Path:       best,
		Confidence: best.Confidence,
	}
	if page, perr := e.graph.GetPage(ctx, bestTarget); perr == nil {
		summary := page.Summary()
		result.TargetPage = &summary
	}
	if best.TotalSteps() > 0 {
		result.Alternatives = e.alternativePaths(ctx, current.ID, bestTarget, maxSteps, best)
	}

	e.log.Debug("Intent resolved",
		zap.String("app", req.AppID),
		zap.String("intent", req.Intent),
		zap.String("target", bestTarget),
		zap.Int("steps", best.TotalSteps()),
		zap.Float64("confidence", best.Confidence))
	return result
}

// NextAction resolves the full path and returns only its first step. When the
// caller is already on the target page the result is flagged complete.
func (e *Engine) NextAction(ctx context.Context, req schemas.NextActionRequest) schemas.NextActionResult {
	if req.CurrentPageID == "" || strings.TrimSpace(req.Intent) == "" {
		return schemas.NextActionResult{
			ErrorCode: schemas.ErrInvalidParameter,
			Message:   "current_page_id and intent are required",
		}
	}
	resolved := e.Resolve(ctx, schemas.ResolveRequest{
		AppID:         req.AppID,
		Intent:        req.Intent,
		CurrentPageID: req.CurrentPageID,
	})
	if !resolved.Success {
		return schemas.NextActionResult{ErrorCode: resolved.ErrorCode, Message: resolved.Message}
	}
	if resolved.Path.TotalSteps() == 0 {
		return schemas.NextActionResult{Success: true, IsComplete: true}
	}
	first := resolved.Path.Steps[0]
	return schemas.NextActionResult{
		Success:        true,
		Action:         &first,
		RemainingSteps: resolved.Path.TotalSteps() - 1,
	}
}

func resolveFailure(code schemas.ErrorCode, format string, args ...any) schemas.ResolveResult {
	return schemas.ResolveResult{ErrorCode: code, Message: fmt.Sprintf(format, args...)}
}

func resolveFailureErr(err error) schemas.ResolveResult {
	return schemas.ResolveResult{ErrorCode: schemas.CodeOf(err), Message: err.Error()}
}

// currentOrHome loads the caller's page, defaulting to the application's home
// page when no current page is given.
func (e *Engine) currentOrHome(ctx context.Context, appID, currentPageID string) (schemas.Page, error) {
	if currentPageID != "" {
		page, err := e.graph.GetPage(ctx, currentPageID)
		if err != nil {
			if errors.Is(err, schemas.ErrNotFound) {
				return schemas.Page{}, schemas.NewEngineError(schemas.ErrPageNotFound, "page %q is not registered", currentPageID)
			}
			return schemas.Page{}, schemas.WrapEngineError(schemas.ErrGraph, err, "load page %q", currentPageID)
		}
		return page, nil
	}

	pages, err := e.graph.AllPages(ctx, appID)
	if err != nil {
		return schemas.Page{}, schemas.WrapEngineError(schemas.ErrGraph, err, "list pages of %q", appID)
	}
	var home *schemas.Page
	for i := range pages {
		if pages[i].Type != schemas.PageHome {
			continue
		}
		if home == nil || pages[i].Depth < home.Depth ||
			(pages[i].Depth == home.Depth && pages[i].ID < home.ID) {
			home = &pages[i]
		}
	}
	if home == nil {
		return schemas.Page{}, schemas.NewEngineError(schemas.ErrPageNotFound, "application %q has no home page", appID)
	}
	return *home, nil
}

type intentTarget struct {
	pageID     string
	confidence float64
}

// resolveIntentTargets maps free-form intent text to candidate target pages.
// An exact text or keyword hit on a registered intent wins outright; otherwise
// semantic neighbors above the similarity floor are considered, first among
// registered intents and then among pages directly.
func (e *Engine) resolveIntentTargets(ctx context.Context, appID, text string) ([]intentTarget, error) {
	query := strings.ToLower(strings.TrimSpace(text))

	intents, err := e.graph.AllIntents(ctx, appID)
	if err != nil {
		return nil, schemas.WrapEngineError(schemas.ErrGraph, err, "list intents of %q", appID)
	}
	for _, in := range intents {
		if in.TargetPageID == "" {
			continue
		}
		if strings.ToLower(in.Text) == query || keywordHit(query, in.Keywords) {
			return []intentTarget{{pageID: in.TargetPageID, confidence: 1.0}}, nil
		}
	}

	vec, err := e.embedder.EmbedText(ctx, text)
	if err != nil {
		return nil, schemas.WrapEngineError(schemas.ErrVectorStore, err, "embed intent query")
	}

	hits, err := e.vectors.Query(ctx, vec, schemas.VectorKindIntent, 3)
	if err != nil {
		return nil, schemas.WrapEngineError(schemas.ErrVectorStore, err, "query intent index")
	}
	var targets []intentTarget
	for _, hit := range hits {
		if hit.Score < e.cfg.SimilarityFloor {
			continue
		}
		in, ierr := e.graph.GetIntent(ctx, hit.ID)
		if ierr != nil || in.AppID != appID || in.TargetPageID == "" {
			continue
		}
		targets = append(targets, intentTarget{pageID: in.TargetPageID, confidence: hit.Score})
	}
	if len(targets) > 0 {
		return dedupeTargets(targets), nil
	}

	// No registered intent is close enough; fall back to matching pages
	// themselves against the query.
	hits, err = e.vectors.Query(ctx, vec, schemas.VectorKindPage, 3)
	if err != nil {
		return nil, schemas.WrapEngineError(schemas.ErrVectorStore, err, "query page index")
	}
	for _, hit := range hits {
		if hit.Score < e.cfg.SimilarityFloor {
			continue
		}
		page, perr := e.graph.GetPage(ctx, hit.ID)
		if perr != nil || page.AppID != appID {
			continue
		}
		targets = append(targets, intentTarget{pageID: page.ID, confidence: hit.Score})
	}
	return dedupeTargets(targets), nil
}

func keywordHit(query string, keywords []string) bool {
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" && strings.Contains(query, kw) {
			return true
		}
	}
	return false
}

func dedupeTargets(targets []intentTarget) []intentTarget {
	sort.SliceStable(targets, func(i, j int) bool {
		return targets[i].confidence > targets[j].confidence
	})
	seen := map[string]bool{}
	out := targets[:0]
	for _, t := range targets {
		if !seen[t.pageID] {
			seen[t.pageID] = true
			out = append(out, t)
		}
	}
	return out
}

// edgeCost prices a transition for the search. Observed edges cost the
// negative log of their success rate; unseen edges are priced at the
// configured prior so exploration stays possible without dominating proven
// routes.
func (e *Engine) edgeCost(t schemas.Transition) float64 {
	rate := t.SuccessRate()
	if t.Observations() == 0 {
		rate = e.cfg.UnseenEdgePrior
	}
	if rate < minEdgeRate {
		rate = minEdgeRate
	}
	if rate > 1 {
		rate = 1
	}
	return -math.Log(rate)
}

func edgeKey(t schemas.Transition) string {
	return t.SourcePageID + "|" + t.Action.Signature()
}

// searchState is one (page, steps-used) node of the bounded search. Tracking
// the step count in the state keeps a shorter but costlier route alive when
// the globally cheapest one would blow the step budget.
type searchState struct {
	pageID  string
	steps   int
	cost    float64
	latency int64
	prev    *searchState
	via     *schemas.Transition
	index   int
}

type searchQueue []*searchState

func (q searchQueue) Len() int { return len(q) }

func (q searchQueue) Less(i, j int) bool {
	if q[i].cost != q[j].cost {
		return q[i].cost < q[j].cost
	}
	if q[i].steps != q[j].steps {
		return q[i].steps < q[j].steps
	}
	if q[i].latency != q[j].latency {
		return q[i].latency < q[j].latency
	}
	return q[i].pageID < q[j].pageID
}

func (q searchQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *searchQueue) Push(x any) {
	s := x.(*searchState)
	s.index = len(*q)
	*q = append(*q, s)
}

func (q *searchQueue) Pop() any {
	old := *q
	n := len(old)
	s := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return s
}

// shortestPath runs a uniform-cost search from start to goal, bounded to
// maxSteps transitions and skipping any edge in forbidden. It returns the
// edge sequence of the cheapest surviving route, with ties broken by fewer
// steps, then lower cumulative latency.
func (e *Engine) shortestPath(ctx context.Context, start, goal string, maxSteps int, forbidden map[string]bool) ([]schemas.Transition, bool, error) {
	best := map[string]float64{}
	stateKey := func(page string, steps int) string {
		return fmt.Sprintf("%s#%d", page, steps)
	}

	queue := &searchQueue{}
	heap.Init(queue)
	heap.Push(queue, &searchState{pageID: start})
	best[stateKey(start, 0)] = 0

	for queue.Len() > 0 {
		cur := heap.Pop(queue).(*searchState)
		if cur.pageID == goal {
			var edges []schemas.Transition
			for s := cur; s.via != nil; s = s.prev {
				edges = append(edges, *s.via)
			}
			for i, j := 0, len(edges)-1; i < j; i, j = i+1, j-1 {
				edges[i], edges[j] = edges[j], edges[i]
			}
			return edges, true, nil
		}
		if cur.cost > best[stateKey(cur.pageID, cur.steps)] {
			continue
		}
		if cur.steps >= maxSteps {
			continue
		}

		out, err := e.graph.Outgoing(ctx, cur.pageID)
		if err != nil {
			return nil, false, schemas.WrapEngineError(schemas.ErrGraph, err, "outgoing of %q", cur.pageID)
		}
		for i := range out {
			t := out[i]
			if forbidden[edgeKey(t)] {
				continue
			}
			nextCost := cur.cost + e.edgeCost(t)
			key := stateKey(t.TargetPageID, cur.steps+1)
			if prev, ok := best[key]; ok && prev <= nextCost {
				continue
			}
			best[key] = nextCost
			heap.Push(queue, &searchState{
				pageID:  t.TargetPageID,
				steps:   cur.steps + 1,
				cost:    nextCost,
				latency: cur.latency + t.AvgLatencyMs(),
				prev:    cur,
				via:     &t,
			})
		}
	}
	return nil, false, nil
}

// buildPath decorates an edge sequence into the result-envelope walk. The
// path confidence is the product of observed success rates, so any edge that
// has never succeeded zeroes it while the path itself is still usable.
func (e *Engine) buildPath(ctx context.Context, start, goal string, edges []schemas.Transition) *schemas.ActionPath {
	path := &schemas.ActionPath{
		StartPageID: start,
		EndPageID:   goal,
		Steps:       make([]schemas.ActionStep, 0, len(edges)),
		Confidence:  1.0,
	}
	for i, t := range edges {
		rate := t.SuccessRate()
		path.Confidence *= rate
		path.Cost += e.edgeCost(t)
		name := e.pageName(ctx, t.TargetPageID)
		step := schemas.ActionStep{
			Index:            i + 1,
			Action:           t.Action,
			ExpectedPageID:   t.TargetPageID,
			ExpectedPageName: name,
			SuccessRate:      rate,
		}
		if name != "" {
			step.Description = fmt.Sprintf("%s to reach %s", fmtAction(t.Action), name)
		} else {
			step.Description = fmt.Sprintf("%s to reach %s", fmtAction(t.Action), t.TargetPageID)
		}
		path.Steps = append(path.Steps, step)
	}
	return path
}

// alternativePaths finds structurally distinct fallback routes by re-running
// the search with every edge of the already-found paths forbidden. A route is
// kept only while its cost stays within the configured factor of the best.
func (e *Engine) alternativePaths(ctx context.Context, start, goal string, maxSteps int, primary *schemas.ActionPath) []*schemas.ActionPath {
	forbidden := map[string]bool{}
	forbid := func(p *schemas.ActionPath) {
		prev := p.StartPageID
		for _, step := range p.Steps {
			forbidden[prev+"|"+step.Action.Signature()] = true
			prev = step.ExpectedPageID
		}
	}
	forbid(primary)

	var alternatives []*schemas.ActionPath
	for len(alternatives) < e.cfg.MaxAlternatives {
		edges, found, err := e.shortestPath(ctx, start, goal, maxSteps, forbidden)
		if err != nil || !found {
			break
		}
		alt := e.buildPath(ctx, start, goal, edges)
		if alt.Cost > primary.Cost*e.cfg.AlternativeCostFactor {
			break
		}
		alternatives = append(alternatives, alt)
		forbid(alt)
	}
	return alternatives
}
