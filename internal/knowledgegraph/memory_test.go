package knowledgegraph

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/draven0x/wayfinder/api/schemas"
)

// -- Test Fixture Setup --

type graphTestFixture struct {
	Logger *zap.Logger
}

var globalFixture *graphTestFixture

func TestMain(m *testing.M) {
	// Nop logger for clean test output. Swap for zap.NewDevelopment() when
	// debugging.
	globalFixture = &graphTestFixture{Logger: zap.NewNop()}

	exitCode := m.Run()

	_ = globalFixture.Logger.Sync()
	os.Exit(exitCode)
}

// -- Test Helper Functions --

func testPage(id, appID, name string, pageType schemas.PageType) schemas.Page {
	return schemas.Page{ID: id, AppID: appID, Name: name, Type: pageType}
}

// getTestGraph returns an InMemoryGraph pre-populated with a small two-app
// graph for testing.
func getTestGraph(t *testing.T) *InMemoryGraph {
	t.Helper()
	ctx := context.Background()

	g := NewInMemoryGraph(globalFixture.Logger)

	pages := []schemas.Page{
		testPage("page-a", "shop", "Home", schemas.PageHome),
		testPage("page-b", "shop", "Orders List", schemas.PageList),
		testPage("page-c", "shop", "Order Details", schemas.PageDetail),
		testPage("page-x", "bank", "Home", schemas.PageHome),
	}
	for _, p := range pages {
		require.NoError(t, g.PutPage(ctx, p))
	}

	transitions := []schemas.Transition{
		{
			ID: "t-ab", AppID: "shop", SourcePageID: "page-a", TargetPageID: "page-b",
			Action:       schemas.Action{Type: schemas.ActionClick, TargetID: "btn-orders"},
			SuccessCount: 9, FailCount: 1,
		},
		{
			ID: "t-ac", AppID: "shop", SourcePageID: "page-a", TargetPageID: "page-c",
			Action:       schemas.Action{Type: schemas.ActionClick, TargetID: "btn-shortcut"},
			SuccessCount: 1, FailCount: 1,
		},
	}
	for _, tr := range transitions {
		require.NoError(t, g.PutTransition(ctx, tr))
	}

	require.NoError(t, g.PutIntent(ctx, schemas.Intent{
		ID: "i-1", AppID: "shop", Text: "view order details", TargetPageID: "page-c",
	}))
	return g
}

// -- Test Cases --

func TestInMemoryGraphPages(t *testing.T) {
	t.Parallel()
	g := getTestGraph(t)
	ctx := context.Background()

	t.Run("get returns the stored page", func(t *testing.T) {
		page, err := g.GetPage(ctx, "page-a")
		require.NoError(t, err)
		assert.Equal(t, "Home", page.Name)
	})

	t.Run("missing page wraps ErrNotFound", func(t *testing.T) {
		_, err := g.GetPage(ctx, "missing")
		require.Error(t, err)
		assert.True(t, errors.Is(err, schemas.ErrNotFound))
	})

	t.Run("put rejects an empty id", func(t *testing.T) {
		err := g.PutPage(ctx, schemas.Page{Name: "anonymous"})
		require.Error(t, err)
	})

	t.Run("callers cannot mutate stored state through returns", func(t *testing.T) {
		stored := testPage("page-m", "shop", "Mutable", schemas.PageOther)
		stored.Intents = []string{"original"}
		require.NoError(t, g.PutPage(ctx, stored))

		got, err := g.GetPage(ctx, "page-m")
		require.NoError(t, err)
		got.Intents[0] = "tampered"

		again, err := g.GetPage(ctx, "page-m")
		require.NoError(t, err)
		assert.Equal(t, []string{"original"}, again.Intents)
	})

	t.Run("find by name is app scoped", func(t *testing.T) {
		page, err := g.FindPageByName(ctx, "bank", "Home")
		require.NoError(t, err)
		assert.Equal(t, "page-x", page.ID)

		_, err = g.FindPageByName(ctx, "bank", "Orders List")
		assert.True(t, errors.Is(err, schemas.ErrNotFound))
	})

	t.Run("all pages filters by app and sorts by id", func(t *testing.T) {
		pages, err := g.AllPages(ctx, "shop")
		require.NoError(t, err)
		require.Len(t, pages, 4) // three seeded plus page-m from the subtest above
		for i := 1; i < len(pages); i++ {
			assert.Less(t, pages[i-1].ID, pages[i].ID)
		}
	})
}

func TestInMemoryGraphTransitions(t *testing.T) {
	t.Parallel()
	g := getTestGraph(t)
	ctx := context.Background()

	t.Run("get by source and action signature", func(t *testing.T) {
		tr, err := g.GetTransition(ctx, "page-a", schemas.Action{Type: schemas.ActionClick, TargetID: "btn-orders"}.Signature())
		require.NoError(t, err)
		assert.Equal(t, "page-b", tr.TargetPageID)
		assert.InDelta(t, 0.9, tr.SuccessRate(), 1e-9)
	})

	t.Run("missing edge wraps ErrNotFound", func(t *testing.T) {
		_, err := g.GetTransition(ctx, "page-a", "swipe/nothing")
		assert.True(t, errors.Is(err, schemas.ErrNotFound))
	})

	t.Run("put rejects dangling endpoints", func(t *testing.T) {
		err := g.PutTransition(ctx, schemas.Transition{
			ID: "t-bad", AppID: "shop", SourcePageID: "missing", TargetPageID: "page-b",
			Action: schemas.Action{Type: schemas.ActionClick, TargetID: "x"},
		})
		require.Error(t, err)
	})

	t.Run("outgoing lists all edges of a page", func(t *testing.T) {
		out, err := g.Outgoing(ctx, "page-a")
		require.NoError(t, err)
		assert.Len(t, out, 2)

		out, err = g.Outgoing(ctx, "page-c")
		require.NoError(t, err)
		assert.Empty(t, out)
	})

	t.Run("overwriting an edge does not duplicate the adjacency entry", func(t *testing.T) {
		tr, err := g.GetTransition(ctx, "page-a", schemas.Action{Type: schemas.ActionClick, TargetID: "btn-orders"}.Signature())
		require.NoError(t, err)
		tr.SuccessCount++
		require.NoError(t, g.PutTransition(ctx, tr))

		out, err := g.Outgoing(ctx, "page-a")
		require.NoError(t, err)
		assert.Len(t, out, 2)
	})
}

func TestInMemoryGraphIntents(t *testing.T) {
	t.Parallel()
	g := getTestGraph(t)
	ctx := context.Background()

	intent, err := g.GetIntent(ctx, "i-1")
	require.NoError(t, err)
	assert.Equal(t, "page-c", intent.TargetPageID)

	_, err = g.GetIntent(ctx, "missing")
	assert.True(t, errors.Is(err, schemas.ErrNotFound))

	intents, err := g.AllIntents(ctx, "shop")
	require.NoError(t, err)
	assert.Len(t, intents, 1)

	intents, err = g.AllIntents(ctx, "bank")
	require.NoError(t, err)
	assert.Empty(t, intents)
}

func TestInMemoryGraphStatsAndExport(t *testing.T) {
	t.Parallel()
	g := getTestGraph(t)
	ctx := context.Background()

	stats, err := g.Stats(ctx, "shop")
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Pages)
	assert.Equal(t, 2, stats.Transitions)
	assert.Equal(t, 1, stats.Intents)
	assert.InDelta(t, 2.0/3.0, stats.AvgOutDegree, 1e-9)

	export, err := g.Export(ctx, "shop")
	require.NoError(t, err)
	assert.Len(t, export.Pages, 3)
	assert.Len(t, export.Transitions, 2)
	assert.Len(t, export.Intents, 1)
	assert.Equal(t, "t-ab", export.Transitions[0].ID)
}

func TestInMemoryGraphConcurrentAccess(t *testing.T) {
	t.Parallel()
	g := getTestGraph(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			page := testPage(fmt.Sprintf("page-w%d", n), "shop", fmt.Sprintf("Writer %d", n), schemas.PageOther)
			assert.NoError(t, g.PutPage(ctx, page))

			_, err := g.AllPages(ctx, "shop")
			assert.NoError(t, err)
			_, err = g.Outgoing(ctx, "page-a")
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	stats, err := g.Stats(ctx, "shop")
	require.NoError(t, err)
	assert.Equal(t, 19, stats.Pages)
}
