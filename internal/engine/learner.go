package engine

import (
	"context"
	"errors"
	"hash/fnv"

	"go.uber.org/zap"

	"github.com/draven0x/wayfinder/api/schemas"
)

// Report records one observed execution outcome on an edge. An unknown edge
// is created on first sight with the reported outcome as its first trial.
// The read-modify-write of the edge counters runs under a per-edge shard
// lock, so two concurrent reports on the same edge never lose an increment.
func (e *Engine) Report(ctx context.Context, req schemas.ReportRequest) schemas.ReportResult {
	if req.AppID == "" || req.FromPageID == "" || req.ToPageID == "" || req.Action.Type == "" {
		return schemas.ReportResult{
			ErrorCode: schemas.ErrInvalidParameter,
			Message:   "app_id, from_page, to_page and action are required",
		}
	}

	sig := req.Action.Signature()
	key := req.FromPageID + "|" + sig

	lock := e.edgeLocks[shardOf(key)]
	select {
	case lock <- struct{}{}:
	case <-ctx.Done():
		return reportFailure(schemas.WrapEngineError(schemas.ErrGraph, ctx.Err(), "report cancelled"))
	}
	defer func() { <-lock }()

	updated := true
	t, err := e.graph.GetTransition(ctx, req.FromPageID, sig)
	if err != nil {
		if !errors.Is(err, schemas.ErrNotFound) {
			return reportFailure(schemas.WrapEngineError(schemas.ErrGraph, err, "load transition"))
		}
		if err := e.ensurePage(ctx, req.AppID, req.FromPageID); err != nil {
			return reportFailure(err)
		}
		if err := e.ensurePage(ctx, req.AppID, req.ToPageID); err != nil {
			return reportFailure(err)
		}
		updated = false
		t = schemas.Transition{
			ID:           schemas.TransitionID(req.FromPageID, req.Action),
			AppID:        req.AppID,
			SourcePageID: req.FromPageID,
			TargetPageID: req.ToPageID,
			Action:       req.Action,
		}
	}

	if req.Success {
		t.SuccessCount++
	} else {
		t.FailCount++
	}
	t.TotalLatencyMs += req.LatencyMs
	t.LastUpdated = e.now()

	if err := e.graph.PutTransition(ctx, t); err != nil {
		return reportFailure(schemas.WrapEngineError(schemas.ErrGraph, err, "store transition %s", t.ID))
	}

	e.history.Add(schemas.HistoricalCase{
		AppID:      req.AppID,
		FromPageID: req.FromPageID,
		ToPageID:   req.ToPageID,
		Action:     req.Action,
		Success:    req.Success,
		LatencyMs:  req.LatencyMs,
		ReportedAt: e.now(),
	})

	e.log.Debug("Outcome recorded",
		zap.String("transition", t.ID),
		zap.Bool("success", req.Success),
		zap.Bool("updated", updated),
		zap.Float64("rate", t.SuccessRate()))

	return schemas.ReportResult{
		Success:      true,
		TransitionID: t.ID,
		Updated:      updated,
		Stats: schemas.TransitionStats{
			SuccessCount: t.SuccessCount,
			FailCount:    t.FailCount,
			Observations: t.Observations(),
			SuccessRate:  t.SuccessRate(),
			AvgLatencyMs: t.AvgLatencyMs(),
		},
	}
}

// ensurePage creates a placeholder page record for an endpoint first seen in
// a report, so the graph never holds a dangling edge.
func (e *Engine) ensurePage(ctx context.Context, appID, pageID string) error {
	_, err := e.graph.GetPage(ctx, pageID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, schemas.ErrNotFound) {
		return schemas.WrapEngineError(schemas.ErrGraph, err, "load page %q", pageID)
	}
	stub := schemas.Page{
		ID:        pageID,
		AppID:     appID,
		Name:      pageID,
		Type:      schemas.PageOther,
		CreatedAt: e.now(),
	}
	if err := e.graph.PutPage(ctx, stub); err != nil {
		return schemas.WrapEngineError(schemas.ErrGraph, err, "store placeholder page %q", pageID)
	}
	return nil
}

func reportFailure(err error) schemas.ReportResult {
	return schemas.ReportResult{ErrorCode: schemas.CodeOf(err), Message: err.Error()}
}

func shardOf(key string) int {
	h := fnv.New32a()
	// fnv hash writes never fail.
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % edgeLockShards)
}
