package knowledgegraph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/draven0x/wayfinder/api/schemas"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

// DBPool abstracts the pgxpool.Pool so the adapter can be exercised with
// pgxmock in tests.
type DBPool interface {
	Ping(ctx context.Context) error
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresGraph is the persistent GraphStore implementation, the go-to for
// production deployments where the graph outlives the process.
type PostgresGraph struct {
	pool DBPool
	log  *zap.Logger
}

var _ schemas.GraphStore = (*PostgresGraph)(nil)

// NewPostgresGraph wraps a pgx pool and verifies the connection.
func NewPostgresGraph(ctx context.Context, pool DBPool, logger *zap.Logger) (*PostgresGraph, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PostgresGraph{pool: pool, log: logger.Named("PostgresGraph")}, nil
}

// EnsureSchema creates the graph tables when they do not exist yet.
func (p *PostgresGraph) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS pages (
			id TEXT PRIMARY KEY,
			app_id TEXT NOT NULL,
			name TEXT NOT NULL,
			type TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			intents JSONB NOT NULL DEFAULT '[]',
			signature JSONB NOT NULL DEFAULT '[]',
			depth INT NOT NULL DEFAULT 0,
			visit_count BIGINT NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_pages_app ON pages (app_id)`,
		`CREATE INDEX IF NOT EXISTS idx_pages_app_name ON pages (app_id, name)`,
		`CREATE TABLE IF NOT EXISTS transitions (
			source_page_id TEXT NOT NULL,
			action_sig TEXT NOT NULL,
			id TEXT NOT NULL,
			app_id TEXT NOT NULL,
			target_page_id TEXT NOT NULL,
			action JSONB NOT NULL,
			success_count BIGINT NOT NULL DEFAULT 0,
			fail_count BIGINT NOT NULL DEFAULT 0,
			total_latency_ms BIGINT NOT NULL DEFAULT 0,
			last_updated TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (source_page_id, action_sig)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_transitions_source ON transitions (source_page_id)`,
		`CREATE TABLE IF NOT EXISTS intents (
			id TEXT PRIMARY KEY,
			app_id TEXT NOT NULL,
			text TEXT NOT NULL,
			keywords JSONB NOT NULL DEFAULT '[]',
			target_page_id TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_intents_app ON intents (app_id)`,
	}
	for _, stmt := range stmts {
		if _, err := p.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to ensure graph schema: %w", err)
		}
	}
	return nil
}

// GetPage retrieves a page by its ID.
func (p *PostgresGraph) GetPage(ctx context.Context, id string) (schemas.Page, error) {
	row := p.pool.QueryRow(ctx, `
		SELECT id, app_id, name, type, description, intents, signature, depth, visit_count, created_at
		FROM pages WHERE id = $1`, id)
	page, err := scanPage(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return schemas.Page{}, fmt.Errorf("page %q: %w", id, schemas.ErrNotFound)
	}
	return page, err
}

// PutPage upserts a page. ON CONFLICT keeps the row consistent with the
// latest evidence.
func (p *PostgresGraph) PutPage(ctx context.Context, page schemas.Page) error {
	intents, err := json.Marshal(page.Intents)
	if err != nil {
		return fmt.Errorf("failed to marshal page intents: %w", err)
	}
	signature, err := json.Marshal(page.Signature)
	if err != nil {
		return fmt.Errorf("failed to marshal page signature: %w", err)
	}

	_, err = p.pool.Exec(ctx, `
		INSERT INTO pages (id, app_id, name, type, description, intents, signature, depth, visit_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			type = EXCLUDED.type,
			description = EXCLUDED.description,
			intents = EXCLUDED.intents,
			signature = EXCLUDED.signature,
			depth = EXCLUDED.depth,
			visit_count = EXCLUDED.visit_count`,
		page.ID, page.AppID, page.Name, string(page.Type), page.Description,
		intents, signature, page.Depth, page.VisitCount, page.CreatedAt)
	return err
}

// FindPageByName returns the page with the given display name inside an app.
func (p *PostgresGraph) FindPageByName(ctx context.Context, appID, name string) (schemas.Page, error) {
	row := p.pool.QueryRow(ctx, `
		SELECT id, app_id, name, type, description, intents, signature, depth, visit_count, created_at
		FROM pages WHERE app_id = $1 AND name = $2 LIMIT 1`, appID, name)
	page, err := scanPage(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return schemas.Page{}, fmt.Errorf("page named %q in app %q: %w", name, appID, schemas.ErrNotFound)
	}
	return page, err
}

// AllPages lists every page of an application.
func (p *PostgresGraph) AllPages(ctx context.Context, appID string) ([]schemas.Page, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, app_id, name, type, description, intents, signature, depth, visit_count, created_at
		FROM pages WHERE app_id = $1 ORDER BY id`, appID)
	if err != nil {
		return nil, fmt.Errorf("failed to query pages: %w", err)
	}
	defer rows.Close()

	var out []schemas.Page
	for rows.Next() {
		page, err := scanPage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, page)
	}
	return out, rows.Err()
}

// GetTransition looks an edge up by its multigraph key.
func (p *PostgresGraph) GetTransition(ctx context.Context, sourcePageID, actionSig string) (schemas.Transition, error) {
	row := p.pool.QueryRow(ctx, `
		SELECT id, app_id, source_page_id, target_page_id, action, success_count, fail_count, total_latency_ms, last_updated
		FROM transitions WHERE source_page_id = $1 AND action_sig = $2`, sourcePageID, actionSig)
	t, err := scanTransition(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return schemas.Transition{}, fmt.Errorf("transition %s/%s: %w", sourcePageID, actionSig, schemas.ErrNotFound)
	}
	return t, err
}

// PutTransition upserts an edge under its (source, action signature) key.
func (p *PostgresGraph) PutTransition(ctx context.Context, t schemas.Transition) error {
	action, err := json.Marshal(t.Action)
	if err != nil {
		return fmt.Errorf("failed to marshal transition action: %w", err)
	}

	_, err = p.pool.Exec(ctx, `
		INSERT INTO transitions (source_page_id, action_sig, id, app_id, target_page_id, action,
			success_count, fail_count, total_latency_ms, last_updated)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (source_page_id, action_sig) DO UPDATE SET
			target_page_id = EXCLUDED.target_page_id,
			action = EXCLUDED.action,
			success_count = EXCLUDED.success_count,
			fail_count = EXCLUDED.fail_count,
			total_latency_ms = EXCLUDED.total_latency_ms,
			last_updated = EXCLUDED.last_updated`,
		t.SourcePageID, t.Action.Signature(), t.ID, t.AppID, t.TargetPageID, action,
		t.SuccessCount, t.FailCount, t.TotalLatencyMs, t.LastUpdated)
	return err
}

// Outgoing returns every edge leaving a page.
func (p *PostgresGraph) Outgoing(ctx context.Context, pageID string) ([]schemas.Transition, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, app_id, source_page_id, target_page_id, action, success_count, fail_count, total_latency_ms, last_updated
		FROM transitions WHERE source_page_id = $1 ORDER BY action_sig`, pageID)
	if err != nil {
		return nil, fmt.Errorf("failed to query outgoing transitions: %w", err)
	}
	defer rows.Close()

	var out []schemas.Transition
	for rows.Next() {
		t, err := scanTransition(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// GetIntent retrieves a registered intent by ID.
func (p *PostgresGraph) GetIntent(ctx context.Context, id string) (schemas.Intent, error) {
	row := p.pool.QueryRow(ctx, `
		SELECT id, app_id, text, keywords, target_page_id, created_at
		FROM intents WHERE id = $1`, id)
	in, err := scanIntent(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return schemas.Intent{}, fmt.Errorf("intent %q: %w", id, schemas.ErrNotFound)
	}
	return in, err
}

// PutIntent upserts a registered intent.
func (p *PostgresGraph) PutIntent(ctx context.Context, intent schemas.Intent) error {
	keywords, err := json.Marshal(intent.Keywords)
	if err != nil {
		return fmt.Errorf("failed to marshal intent keywords: %w", err)
	}

	_, err = p.pool.Exec(ctx, `
		INSERT INTO intents (id, app_id, text, keywords, target_page_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			keywords = EXCLUDED.keywords,
			target_page_id = EXCLUDED.target_page_id`,
		intent.ID, intent.AppID, intent.Text, keywords, intent.TargetPageID, intent.CreatedAt)
	return err
}

// AllIntents lists every registered intent of an application.
func (p *PostgresGraph) AllIntents(ctx context.Context, appID string) ([]schemas.Intent, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, app_id, text, keywords, target_page_id, created_at
		FROM intents WHERE app_id = $1 ORDER BY id`, appID)
	if err != nil {
		return nil, fmt.Errorf("failed to query intents: %w", err)
	}
	defer rows.Close()

	var out []schemas.Intent
	for rows.Next() {
		in, err := scanIntent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, in)
	}
	return out, rows.Err()
}

// Stats summarizes the stored graph for an application.
func (p *PostgresGraph) Stats(ctx context.Context, appID string) (schemas.GraphStats, error) {
	var stats schemas.GraphStats
	row := p.pool.QueryRow(ctx, `
		SELECT
			(SELECT count(*) FROM pages WHERE app_id = $1),
			(SELECT count(*) FROM transitions WHERE app_id = $1),
			(SELECT count(*) FROM intents WHERE app_id = $1)`, appID)
	if err := row.Scan(&stats.Pages, &stats.Transitions, &stats.Intents); err != nil {
		return schemas.GraphStats{}, fmt.Errorf("failed to query graph stats: %w", err)
	}
	if stats.Pages > 0 {
		stats.AvgOutDegree = float64(stats.Transitions) / float64(stats.Pages)
	}
	return stats, nil
}

// Export dumps an application's full graph.
func (p *PostgresGraph) Export(ctx context.Context, appID string) (schemas.GraphExport, error) {
	pages, err := p.AllPages(ctx, appID)
	if err != nil {
		return schemas.GraphExport{}, err
	}
	intents, err := p.AllIntents(ctx, appID)
	if err != nil {
		return schemas.GraphExport{}, err
	}

	rows, err := p.pool.Query(ctx, `
		SELECT id, app_id, source_page_id, target_page_id, action, success_count, fail_count, total_latency_ms, last_updated
		FROM transitions WHERE app_id = $1 ORDER BY id`, appID)
	if err != nil {
		return schemas.GraphExport{}, fmt.Errorf("failed to query transitions: %w", err)
	}
	defer rows.Close()

	var transitions []schemas.Transition
	for rows.Next() {
		t, err := scanTransition(rows)
		if err != nil {
			return schemas.GraphExport{}, err
		}
		transitions = append(transitions, t)
	}
	if err := rows.Err(); err != nil {
		return schemas.GraphExport{}, err
	}

	return schemas.GraphExport{Pages: pages, Transitions: transitions, Intents: intents}, nil
}

// -- row scanning helpers --

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPage(row rowScanner) (schemas.Page, error) {
	var (
		page      schemas.Page
		pageType  string
		intents   []byte
		signature []byte
	)
	err := row.Scan(&page.ID, &page.AppID, &page.Name, &pageType, &page.Description,
		&intents, &signature, &page.Depth, &page.VisitCount, &page.CreatedAt)
	if err != nil {
		return schemas.Page{}, err
	}
	page.Type = schemas.PageType(pageType)
	if err := json.Unmarshal(intents, &page.Intents); err != nil {
		return schemas.Page{}, fmt.Errorf("failed to unmarshal page intents: %w", err)
	}
	if err := json.Unmarshal(signature, &page.Signature); err != nil {
		return schemas.Page{}, fmt.Errorf("failed to unmarshal page signature: %w", err)
	}
	return page, nil
}

func scanTransition(row rowScanner) (schemas.Transition, error) {
	var (
		t      schemas.Transition
		action []byte
	)
	err := row.Scan(&t.ID, &t.AppID, &t.SourcePageID, &t.TargetPageID, &action,
		&t.SuccessCount, &t.FailCount, &t.TotalLatencyMs, &t.LastUpdated)
	if err != nil {
		return schemas.Transition{}, err
	}
	if err := json.Unmarshal(action, &t.Action); err != nil {
		return schemas.Transition{}, fmt.Errorf("failed to unmarshal transition action: %w", err)
	}
	return t, nil
}

func scanIntent(row rowScanner) (schemas.Intent, error) {
	var (
		in       schemas.Intent
		keywords []byte
	)
	err := row.Scan(&in.ID, &in.AppID, &in.Text, &keywords, &in.TargetPageID, &in.CreatedAt)
	if err != nil {
		return schemas.Intent{}, err
	}
	if err := json.Unmarshal(keywords, &in.Keywords); err != nil {
		return schemas.Intent{}, fmt.Errorf("failed to unmarshal intent keywords: %w", err)
	}
	return in, nil
}
