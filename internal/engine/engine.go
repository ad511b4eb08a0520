package engine

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/roach88/querylift/internal/binder"
	"github.com/roach88/querylift/internal/dialect"
	"github.com/roach88/querylift/internal/flatten"
	"github.com/roach88/querylift/internal/ir"
	"github.com/roach88/querylift/internal/model"
	"github.com/roach88/querylift/internal/nullsem"
	"github.com/roach88/querylift/internal/queryir"
	"github.com/roach88/querylift/internal/querysql"
	"github.com/roach88/querylift/internal/relational"
)

// Engine translates query trees for one model and dialect.
type Engine struct {
	model   *model.Model
	dialect *dialect.Dialect
	printer *querysql.Printer
	logger  *slog.Logger
	ids     IDGenerator

	cacheSize int
	cache     *lru.TwoQueueCache[string, *compiled]
	fills     singleflight.Group

	// workers bounds TranslateAll.
	workers int

	stats counters
}

// EngineOption allows configuration of engine parameters.
type EngineOption func(*Engine)

// WithCache memoizes up to size printed plans. Zero disables the cache.
func WithCache(size int) EngineOption {
	return func(e *Engine) {
		e.cacheSize = size
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithIDGenerator sets how translations are named. Default: UUIDv7Generator.
func WithIDGenerator(g IDGenerator) EngineOption {
	return func(e *Engine) {
		e.ids = g
	}
}

// WithConcurrency bounds how many queries TranslateAll translates at once.
// Default: GOMAXPROCS.
func WithConcurrency(n int) EngineOption {
	return func(e *Engine) {
		e.workers = n
	}
}

// New creates an Engine for m and d.
func New(m *model.Model, d *dialect.Dialect, opts ...EngineOption) (*Engine, error) {
	if m == nil {
		return nil, fmt.Errorf("engine: nil model")
	}
	if d == nil {
		return nil, fmt.Errorf("engine: nil dialect")
	}
	e := &Engine{
		model:   m,
		dialect: d,
		printer: querysql.NewPrinter(d),
		logger:  slog.Default(),
		ids:     UUIDv7Generator{},
		workers: runtime.GOMAXPROCS(0),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.cacheSize < 0 {
		return nil, fmt.Errorf("engine: negative cache size %d", e.cacheSize)
	}
	if e.cacheSize > 0 {
		c, err := lru.New2Q[string, *compiled](e.cacheSize)
		if err != nil {
			return nil, fmt.Errorf("engine: create cache: %w", err)
		}
		e.cache = c
	}
	if e.workers < 1 {
		e.workers = 1
	}
	return e, nil
}

// Dialect returns the dialect the engine prints for.
func (e *Engine) Dialect() *dialect.Dialect { return e.dialect }

// Stats returns the translation counters.
func (e *Engine) Stats() Stats { return e.stats.snapshot() }

// Translate returns the SQL for q.
func (e *Engine) Translate(ctx context.Context, q queryir.Query) (*Translation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.stats.translations.Add(1)
	id := e.ids.Generate()
	t, hit, err := e.translate(q)
	if err != nil {
		e.stats.failures.Add(1)
		e.logger.Debug("translation failed", "id", id, "stage", StageOf(err), "error", err)
		return nil, err
	}
	t.ID = id
	e.logger.Debug("translated",
		"id", id,
		"hash", short(t.Hash),
		"cache_hit", hit,
		"collections", t.CollectionCounts(),
		"args", len(t.Args),
		"sql_len", len(t.SQL),
	)
	return t, nil
}

func (e *Engine) translate(q queryir.Query) (*Translation, bool, error) {
	hash, err := queryir.Hash(q)
	if err != nil {
		return nil, false, stageError(StageHash, "", err)
	}
	values, err := queryir.ParamValues(q)
	if err != nil {
		return nil, false, stageError(StageHash, hash, err)
	}

	if e.cache == nil {
		c, err := e.compile(q, hash)
		if err != nil {
			return nil, false, err
		}
		return e.rebind(c, values, false)
	}

	key, err := e.cacheKey(q, hash)
	if err != nil {
		return nil, false, stageError(StageHash, hash, err)
	}
	if c, ok := e.cache.Get(key); ok {
		e.stats.hits.Add(1)
		return e.rebind(c, values, true)
	}
	e.stats.misses.Add(1)
	v, err, _ := e.fills.Do(key, func() (any, error) {
		if c, ok := e.cache.Get(key); ok {
			return c, nil
		}
		c, err := e.compile(q, hash)
		if err != nil {
			return nil, err
		}
		e.cache.Add(key, c)
		return c, nil
	})
	if err != nil {
		return nil, false, err
	}
	return e.rebind(v.(*compiled), values, false)
}

func (e *Engine) rebind(c *compiled, values map[string]ir.IRValue, hit bool) (*Translation, bool, error) {
	t, err := c.bind(values)
	if err != nil {
		return nil, hit, stageError(StageRebind, c.hash, err)
	}
	return t, hit, nil
}

// compile runs the pipeline on q.
func (e *Engine) compile(q queryir.Query, hash string) (*compiled, error) {
	res, err := binder.Bind(e.model, e.dialect, q)
	if err != nil {
		return nil, stageError(StageBind, hash, err)
	}

	p := nullsem.Rewrite(res.Plan)
	p = relational.DedupeSubqueries(p)
	p = relational.EnsureDeterministicOrder(p)
	if e.dialect.LimitZeroDefect() {
		p = relational.CollapseEmptyPages(p)
	}
	// Last, so the tie-break keys added above keep their union columns.
	p = flatten.Prune(p)

	params, err := queryir.Params(q)
	if err != nil {
		return nil, stageError(StageVerify, hash, err)
	}
	declared := make(map[string]bool, len(params))
	for _, prm := range params {
		declared[prm.Name] = true
	}
	if err := relational.VerifyParameters(p, declared); err != nil {
		return nil, stageError(StageVerify, hash, err)
	}

	sql, args, err := e.printer.Print(p)
	if err != nil {
		return nil, stageError(StagePrint, hash, err)
	}
	return &compiled{
		sql:         sql,
		args:        args,
		columns:     res.Columns,
		collections: res.Collections,
		hash:        hash,
	}, nil
}

// TranslateAll translates qs concurrently. The result is in input order.
// The first failure cancels the remaining queries.
func (e *Engine) TranslateAll(ctx context.Context, qs []queryir.Query) ([]*Translation, error) {
	out := make([]*Translation, len(qs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i, q := range qs {
		g.Go(func() error {
			t, err := e.Translate(ctx, q)
			if err != nil {
				// Errors from a shared fill are shared too; copy before tagging.
				if te, ok := err.(*TranslationError); ok {
					tagged := *te
					tagged.Index = i
					return &tagged
				}
				return fmt.Errorf("query %d: %w", i, err)
			}
			out[i] = t
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
