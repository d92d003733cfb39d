package knowledgegraph

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/draven0x/wayfinder/api/schemas"
	"go.uber.org/zap"
)

// InMemoryGraph provides a fast, ephemeral, in-memory implementation of the
// GraphStore capability. It's great for tests, demos, or short-lived sessions
// where persistence isn't required.
//
// All records are deep-copied on the way in and out, so a caller can never
// observe a half-constructed page and never mutate stored state through a
// returned reference.
type InMemoryGraph struct {
	mu          sync.RWMutex
	pages       map[string]schemas.Page
	transitions map[string]schemas.Transition // key: sourcePageID + "|" + action signature
	outgoing    map[string][]string           // key: page ID, value: transition keys
	intents     map[string]schemas.Intent
	log         *zap.Logger
}

// Ensures InMemoryGraph implements the capability at compile time.
var _ schemas.GraphStore = (*InMemoryGraph)(nil)

// NewInMemoryGraph creates a new, empty in-memory graph store.
func NewInMemoryGraph(logger *zap.Logger) *InMemoryGraph {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InMemoryGraph{
		pages:       make(map[string]schemas.Page),
		transitions: make(map[string]schemas.Transition),
		outgoing:    make(map[string][]string),
		intents:     make(map[string]schemas.Intent),
		log:         logger.Named("InMemoryGraph"),
	}
}

func transitionKey(sourcePageID, actionSig string) string {
	return sourcePageID + "|" + actionSig
}

func copyPage(p schemas.Page) schemas.Page {
	out := p
	out.Intents = append([]string(nil), p.Intents...)
	out.Signature = append([]schemas.WidgetRef(nil), p.Signature...)
	out.Embedding = append([]float32(nil), p.Embedding...)
	return out
}

func copyIntent(in schemas.Intent) schemas.Intent {
	out := in
	out.Keywords = append([]string(nil), in.Keywords...)
	out.Embedding = append([]float32(nil), in.Embedding...)
	return out
}

// GetPage retrieves a page by its ID.
func (g *InMemoryGraph) GetPage(ctx context.Context, id string) (schemas.Page, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	page, ok := g.pages[id]
	if !ok {
		return schemas.Page{}, fmt.Errorf("page %q: %w", id, schemas.ErrNotFound)
	}
	return copyPage(page), nil
}

// PutPage inserts or overwrites a page. The page must be fully constructed;
// it becomes visible to readers atomically.
func (g *InMemoryGraph) PutPage(ctx context.Context, page schemas.Page) error {
	if page.ID == "" {
		return fmt.Errorf("page has empty id")
	}
	stored := copyPage(page)

	g.mu.Lock()
	g.pages[stored.ID] = stored
	g.mu.Unlock()

	g.log.Debug("Page stored", zap.String("id", page.ID), zap.String("name", page.Name))
	return nil
}

// FindPageByName returns the page with the given display name inside an app.
func (g *InMemoryGraph) FindPageByName(ctx context.Context, appID, name string) (schemas.Page, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	for _, p := range g.pages {
		if p.AppID == appID && p.Name == name {
			return copyPage(p), nil
		}
	}
	return schemas.Page{}, fmt.Errorf("page named %q in app %q: %w", name, appID, schemas.ErrNotFound)
}

// AllPages lists every page of an application, ordered by ID for determinism.
func (g *InMemoryGraph) AllPages(ctx context.Context, appID string) ([]schemas.Page, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var out []schemas.Page
	for _, p := range g.pages {
		if appID == "" || p.AppID == appID {
			out = append(out, copyPage(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// GetTransition looks an edge up by its multigraph key.
func (g *InMemoryGraph) GetTransition(ctx context.Context, sourcePageID, actionSig string) (schemas.Transition, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	t, ok := g.transitions[transitionKey(sourcePageID, actionSig)]
	if !ok {
		return schemas.Transition{}, fmt.Errorf("transition %s/%s: %w", sourcePageID, actionSig, schemas.ErrNotFound)
	}
	return t, nil
}

// PutTransition inserts or overwrites an edge and maintains the outgoing
// adjacency index. Both endpoints must already exist.
func (g *InMemoryGraph) PutTransition(ctx context.Context, t schemas.Transition) error {
	key := transitionKey(t.SourcePageID, t.Action.Signature())

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.pages[t.SourcePageID]; !ok {
		return fmt.Errorf("source page %q not found for transition", t.SourcePageID)
	}
	if _, ok := g.pages[t.TargetPageID]; !ok {
		return fmt.Errorf("target page %q not found for transition", t.TargetPageID)
	}

	if _, exists := g.transitions[key]; !exists {
		g.outgoing[t.SourcePageID] = append(g.outgoing[t.SourcePageID], key)
	}
	g.transitions[key] = t

	g.log.Debug("Transition stored",
		zap.String("id", t.ID),
		zap.String("from", t.SourcePageID),
		zap.String("to", t.TargetPageID))
	return nil
}

// Outgoing returns every edge leaving a page.
func (g *InMemoryGraph) Outgoing(ctx context.Context, pageID string) ([]schemas.Transition, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	keys := g.outgoing[pageID]
	out := make([]schemas.Transition, 0, len(keys))
	for _, k := range keys {
		if t, ok := g.transitions[k]; ok {
			out = append(out, t)
		}
	}
	return out, nil
}

// GetIntent retrieves a registered intent by ID.
func (g *InMemoryGraph) GetIntent(ctx context.Context, id string) (schemas.Intent, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	in, ok := g.intents[id]
	if !ok {
		return schemas.Intent{}, fmt.Errorf("intent %q: %w", id, schemas.ErrNotFound)
	}
	return copyIntent(in), nil
}

// PutIntent inserts or overwrites a registered intent.
func (g *InMemoryGraph) PutIntent(ctx context.Context, intent schemas.Intent) error {
	if intent.ID == "" {
		return fmt.Errorf("intent has empty id")
	}
	stored := copyIntent(intent)

	g.mu.Lock()
	g.intents[stored.ID] = stored
	g.mu.Unlock()
	return nil
}

// AllIntents lists every registered intent of an application.
func (g *InMemoryGraph) AllIntents(ctx context.Context, appID string) ([]schemas.Intent, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var out []schemas.Intent
	for _, in := range g.intents {
		if appID == "" || in.AppID == appID {
			out = append(out, copyIntent(in))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Stats summarizes the stored graph for an application.
func (g *InMemoryGraph) Stats(ctx context.Context, appID string) (schemas.GraphStats, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	stats := schemas.GraphStats{}
	for _, p := range g.pages {
		if appID == "" || p.AppID == appID {
			stats.Pages++
		}
	}
	for _, t := range g.transitions {
		if appID == "" || t.AppID == appID {
			stats.Transitions++
		}
	}
	for _, in := range g.intents {
		if appID == "" || in.AppID == appID {
			stats.Intents++
		}
	}
	if stats.Pages > 0 {
		stats.AvgOutDegree = float64(stats.Transitions) / float64(stats.Pages)
	}
	return stats, nil
}

// Export dumps an application's full graph.
func (g *InMemoryGraph) Export(ctx context.Context, appID string) (schemas.GraphExport, error) {
	pages, _ := g.AllPages(ctx, appID)
	intents, _ := g.AllIntents(ctx, appID)

	g.mu.RLock()
	var transitions []schemas.Transition
	for _, t := range g.transitions {
		if appID == "" || t.AppID == appID {
			transitions = append(transitions, t)
		}
	}
	g.mu.RUnlock()
	sort.Slice(transitions, func(i, j int) bool { return transitions[i].ID < transitions[j].ID })

	return schemas.GraphExport{Pages: pages, Transitions: transitions, Intents: intents}, nil
}
