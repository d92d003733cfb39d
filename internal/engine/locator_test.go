package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/draven0x/wayfinder/api/schemas"
)

func TestMatch(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	home, list, detail := seedShop(t, e)
	ctx := context.Background()

	t.Run("identifies a page from its exact title", func(t *testing.T) {
		res := e.Match(ctx, schemas.MatchRequest{AppID: testApp, Title: "Order Details"})
		require.Empty(t, res.ErrorCode, res.Message)
		require.True(t, res.Matched)
		assert.Equal(t, detail.ID, res.Page.ID)
		assert.GreaterOrEqual(t, res.Score, e.cfg.MatchThreshold)
	})

	t.Run("title matching ignores case and whitespace", func(t *testing.T) {
		res := e.Match(ctx, schemas.MatchRequest{AppID: testApp, Title: "  order   DETAILS "})
		require.True(t, res.Matched)
		assert.Equal(t, detail.ID, res.Page.ID)
	})

	t.Run("returns available actions for the matched page", func(t *testing.T) {
		res := e.Match(ctx, schemas.MatchRequest{AppID: testApp, Title: "Home"})
		require.True(t, res.Matched)
		assert.Equal(t, home.ID, res.Page.ID)

		require.Len(t, res.AvailableActions, 1)
		act := res.AvailableActions[0]
		assert.Equal(t, list.ID, act.LeadsTo)
		assert.Equal(t, "Orders List", act.LeadsToName)
		assert.InDelta(t, 0.9, act.SuccessRate, 1e-9)
		assert.Equal(t, int64(10), act.Observations)
	})

	t.Run("identifies a page from widget structure alone", func(t *testing.T) {
		res := e.Match(ctx, schemas.MatchRequest{
			AppID: testApp,
			Observation: &schemas.UIObservation{
				Widgets: []schemas.WidgetRef{
					{Type: schemas.WidgetButton, Text: "Orders"},
					{Type: schemas.WidgetList, Text: "items"},
					{Type: schemas.WidgetText, Text: "Home"},
				},
			},
		})
		require.Empty(t, res.ErrorCode, res.Message)
		require.True(t, res.Matched)
		assert.Equal(t, list.ID, res.Page.ID)
	})

	t.Run("weak overlap lands in the candidate band without a match", func(t *testing.T) {
		res := e.Match(ctx, schemas.MatchRequest{
			AppID: testApp,
			Observation: &schemas.UIObservation{
				Widgets: []schemas.WidgetRef{
					{Type: schemas.WidgetButton, Text: "Orders"},
					{Type: schemas.WidgetText, Text: "profile"},
				},
			},
		})
		require.Empty(t, res.ErrorCode, res.Message)
		assert.False(t, res.Matched)
		assert.Nil(t, res.Page)
		require.NotEmpty(t, res.Candidates)
		assert.Equal(t, list.ID, res.Candidates[0].Page.ID)
		assert.Less(t, res.Candidates[0].Score, e.cfg.MatchThreshold)
		assert.GreaterOrEqual(t, res.Candidates[0].Score, e.cfg.MatchFloor)
	})

	t.Run("unrelated evidence matches nothing", func(t *testing.T) {
		res := e.Match(ctx, schemas.MatchRequest{AppID: testApp, Title: "Galactic Dashboard"})
		require.Empty(t, res.ErrorCode, res.Message)
		assert.False(t, res.Matched)
		assert.Empty(t, res.Candidates)
	})

	t.Run("rejects an empty observation", func(t *testing.T) {
		res := e.Match(ctx, schemas.MatchRequest{AppID: testApp})
		assert.Equal(t, schemas.ErrInvalidParameter, res.ErrorCode)
	})
}

func TestStructureSignal(t *testing.T) {
	t.Parallel()

	sig := []schemas.WidgetRef{
		{Type: schemas.WidgetButton, Text: "Orders"},
		{Type: schemas.WidgetList, Text: "items"},
		{Type: schemas.WidgetText, Text: "Home"},
	}

	t.Run("full overlap scores one", func(t *testing.T) {
		assert.InDelta(t, 1.0, structureSignal(sig, sig), 1e-9)
	})

	t.Run("partial overlap is the jaccard index", func(t *testing.T) {
		obs := []schemas.WidgetRef{
			{Type: schemas.WidgetButton, Text: "Orders"},
			{Type: schemas.WidgetIcon, Text: "gear"},
		}
		// 1 shared of 4 distinct.
		assert.InDelta(t, 0.25, structureSignal(obs, sig), 1e-9)
	})

	t.Run("widget type participates in identity", func(t *testing.T) {
		obs := []schemas.WidgetRef{{Type: schemas.WidgetIcon, Text: "Orders"}}
		assert.InDelta(t, 0.0, structureSignal(obs, sig), 1e-9)
	})

	t.Run("duplicate observed widgets count once", func(t *testing.T) {
		obs := []schemas.WidgetRef{
			{Type: schemas.WidgetButton, Text: "Orders"},
			{Type: schemas.WidgetButton, Text: "Orders"},
		}
		assert.InDelta(t, 1.0/3.0, structureSignal(obs, sig), 1e-9)
	})

	t.Run("empty sides score zero", func(t *testing.T) {
		assert.Zero(t, structureSignal(nil, sig))
		assert.Zero(t, structureSignal(sig, nil))
	})
}
