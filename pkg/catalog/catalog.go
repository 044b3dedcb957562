// Package catalog keeps a set of named interval trees whose nodes live in a
// sharded arena, and serves concurrent overlap queries against them.
package catalog

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/ivtree/pkg/config"
	"github.com/Sumatoshi-tech/ivtree/pkg/dataset"
	"github.com/Sumatoshi-tech/ivtree/pkg/interval"
	"github.com/Sumatoshi-tech/ivtree/pkg/observability"
	"github.com/Sumatoshi-tech/ivtree/pkg/rbtree"
)

// Sentinel errors.
var (
	ErrUnknownTree     = errors.New("unknown tree")
	ErrUnknownHandle   = errors.New("handle is not linked into tree")
	ErrInvalidInterval = errors.New("invalid interval")
	ErrHibernated      = errors.New("catalog is hibernated")
)

const tracerName = "ivtree/catalog"

// Entry is one stored interval.
type Entry struct {
	Tree   string          `json:"tree"`
	Label  string          `json:"label,omitempty"`
	Handle interval.Handle `json:"handle"`
	Low    interval.Bound  `json:"low"`
	High   interval.Bound  `json:"high"`
}

// TreeStats describes one tree.
type TreeStats struct {
	Name   string
	Len    int
	Height int
}

// Stats describes the whole catalog.
type Stats struct {
	Trees      []TreeStats
	Nodes      int
	Shards     int
	Hibernated bool
}

type namedTree struct {
	tree   *interval.Tree
	labels map[interval.Handle]string
}

// Catalog is safe for concurrent use: queries share a read lock, mutations
// take the write lock.
type Catalog struct {
	mu         sync.RWMutex
	arenas     *rbtree.ShardedArena[interval.Node]
	trees      map[string]*namedTree
	hibernated bool

	logger  *slog.Logger
	tracer  trace.Tracer
	metrics *observability.IndexMetrics
}

// Option configures a Catalog.
type Option func(*Catalog)

// WithLogger sets the logger; slog.Default is used otherwise.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Catalog) {
		c.logger = logger
	}
}

// WithTracer sets the tracer; the global OTel tracer is used otherwise.
func WithTracer(tracer trace.Tracer) Option {
	return func(c *Catalog) {
		c.tracer = tracer
	}
}

// WithMetrics enables metric recording.
func WithMetrics(metrics *observability.IndexMetrics) Option {
	return func(c *Catalog) {
		c.metrics = metrics
	}
}

// New creates an empty catalog sized by cfg.
func New(cfg config.IndexConfig, opts ...Option) *Catalog {
	c := &Catalog{
		arenas: rbtree.NewShardedArena[interval.Node](cfg.ShardCount, cfg.HibernationThreshold),
		trees:  map[string]*namedTree{},
		logger: slog.Default(),
		tracer: otel.Tracer(tracerName),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Add stores [low, high] in the tree called name, creating the tree on first use.
func (c *Catalog) Add(ctx context.Context, name string, low, high interval.Bound, label string) (Entry, error) {
	ctx, span := c.tracer.Start(ctx, "catalog.add", trace.WithAttributes(attribute.String("tree.name", name)))
	defer span.End()

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, err := c.addLocked(name, low, high, label)
	if err != nil {
		recordError(span, err)

		return Entry{}, err
	}

	if c.metrics != nil {
		c.metrics.RecordInsert(ctx, name, 1)
	}

	return entry, nil
}

// LoadRecords adds every record and returns how many were stored. It stops
// at the first invalid record.
func (c *Catalog) LoadRecords(ctx context.Context, records []dataset.Record) (int, error) {
	ctx, span := c.tracer.Start(ctx, "catalog.load",
		trace.WithAttributes(attribute.Int("ivtree.records", len(records))))
	defer span.End()

	c.mu.Lock()
	defer c.mu.Unlock()

	perTree := map[string]int{}
	loaded := 0

	var err error

	for idx, rec := range records {
		_, err = c.addLocked(rec.Name, rec.Low, rec.High, rec.Label)
		if err != nil {
			err = fmt.Errorf("record %d: %w", idx, err)

			break
		}

		perTree[rec.Name]++
		loaded++
	}

	if c.metrics != nil {
		for name, n := range perTree {
			c.metrics.RecordInsert(ctx, name, n)
		}
	}

	if err != nil {
		recordError(span, err)

		return loaded, err
	}

	c.logger.InfoContext(ctx, "records loaded", "records", loaded, "trees", len(perTree))

	return loaded, nil
}

func (c *Catalog) addLocked(name string, low, high interval.Bound, label string) (Entry, error) {
	if c.hibernated {
		return Entry{}, ErrHibernated
	}

	if name == "" {
		return Entry{}, fmt.Errorf("%w: empty tree name", ErrInvalidInterval)
	}

	nt, ok := c.trees[name]
	if !ok {
		nt = &namedTree{
			tree:   interval.NewTree(interval.ArenaOf(c.arenas.Shard(name))),
			labels: map[interval.Handle]string{},
		}
		c.trees[name] = nt

		c.logger.Debug("tree created", "tree", name)
	}

	h, err := nt.tree.Arena().Alloc(low, high)
	if err != nil {
		return Entry{}, fmt.Errorf("%w: %w", ErrInvalidInterval, err)
	}

	nt.tree.Insert(h)

	if label != "" {
		nt.labels[h] = label
	}

	return Entry{Tree: name, Label: label, Handle: h, Low: low, High: high}, nil
}

// Remove deletes one interval and releases its node.
func (c *Catalog) Remove(ctx context.Context, name string, h interval.Handle) error {
	ctx, span := c.tracer.Start(ctx, "catalog.remove", trace.WithAttributes(attribute.String("tree.name", name)))
	defer span.End()

	c.mu.Lock()
	defer c.mu.Unlock()

	nt, err := c.lookup(name)
	if err != nil {
		recordError(span, err)

		return err
	}

	if h == interval.Nil || !nt.tree.Contains(h) {
		err = fmt.Errorf("%w: %d in %q", ErrUnknownHandle, h, name)
		recordError(span, err)

		return err
	}

	nt.tree.Remove(h)
	nt.tree.Arena().Free(h)
	delete(nt.labels, h)

	if c.metrics != nil {
		c.metrics.RecordRemove(ctx, name)
	}

	return nil
}

// Drop deletes a whole tree and releases all of its nodes.
func (c *Catalog) Drop(ctx context.Context, name string) error {
	ctx, span := c.tracer.Start(ctx, "catalog.drop", trace.WithAttributes(attribute.String("tree.name", name)))
	defer span.End()

	c.mu.Lock()
	defer c.mu.Unlock()

	nt, err := c.lookup(name)
	if err != nil {
		recordError(span, err)

		return err
	}

	handles := slices.Collect(nt.tree.All())
	arena := nt.tree.Arena()

	nt.tree.Clear()

	for _, h := range handles {
		arena.Reset(h)
		arena.Free(h)

		if c.metrics != nil {
			c.metrics.RecordRemove(ctx, name)
		}
	}

	delete(c.trees, name)
	span.SetAttributes(attribute.Int("tree.size", len(handles)))
	c.logger.InfoContext(ctx, "tree dropped", "tree", name, "intervals", len(handles))

	return nil
}

// Find returns one interval of tree name overlapping [low, high].
func (c *Catalog) Find(ctx context.Context, name string, low, high interval.Bound) (Entry, bool, error) {
	ctx, span := c.startQuery(ctx, "catalog.find", name, low, high)
	defer span.End()

	start := time.Now()

	c.mu.RLock()
	defer c.mu.RUnlock()

	nt, err := c.queryable(name, low, high)
	if err != nil {
		recordError(span, err)

		return Entry{}, false, err
	}

	h, ok := nt.tree.Find(low, high)

	hits := 0
	if ok {
		hits = 1
	}

	c.finishQuery(ctx, span, name, observability.OpFind, hits, start)

	if !ok {
		return Entry{}, false, nil
	}

	return nt.entry(name, h), true, nil
}

// Query returns every interval of tree name overlapping [low, high] in
// ascending (low, high) order.
func (c *Catalog) Query(ctx context.Context, name string, low, high interval.Bound) ([]Entry, error) {
	ctx, span := c.startQuery(ctx, "catalog.query", name, low, high)
	defer span.End()

	start := time.Now()

	c.mu.RLock()
	defer c.mu.RUnlock()

	nt, err := c.queryable(name, low, high)
	if err != nil {
		recordError(span, err)

		return nil, err
	}

	entries := []Entry{}

	var it interval.Iterator

	for h, ok := nt.tree.IterFirst(&it, low, high); ok; h, ok = it.Next() {
		entries = append(entries, nt.entry(name, h))
	}

	c.finishQuery(ctx, span, name, observability.OpQuery, len(entries), start)

	return entries, nil
}

// Names returns the tree names in sorted order.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.trees))
	for name := range c.trees {
		names = append(names, name)
	}

	slices.Sort(names)

	return names
}

// Stats reports per-tree sizes and arena usage. Tree shapes are not
// available while hibernated.
func (c *Catalog) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stats := Stats{
		Shards:     len(c.arenas.Shards()),
		Nodes:      c.arenas.Used(),
		Hibernated: c.hibernated,
		Trees:      make([]TreeStats, 0, len(c.trees)),
	}

	for name, nt := range c.trees {
		ts := TreeStats{Name: name}

		if !c.hibernated {
			ts.Len = nt.tree.Len()
			ts.Height = nt.tree.Height()
		}

		stats.Trees = append(stats.Trees, ts)
	}

	slices.SortFunc(stats.Trees, func(a, b TreeStats) int {
		return cmp.Compare(a.Name, b.Name)
	})

	return stats
}

// Verify checks every tree's structural invariants. The result joins one
// error per broken tree.
func (c *Catalog) Verify(ctx context.Context) error {
	_, span := c.tracer.Start(ctx, "catalog.verify")
	defer span.End()

	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.hibernated {
		return ErrHibernated
	}

	var errs []error

	for name, nt := range c.trees {
		err := nt.tree.Check()
		if err != nil {
			errs = append(errs, fmt.Errorf("tree %q: %w", name, err))
		}
	}

	err := errors.Join(errs...)
	if err != nil {
		recordError(span, err)
	}

	return err
}

// Ready reports ErrHibernated while the catalog cannot serve queries.
func (c *Catalog) Ready(_ context.Context) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.hibernated {
		return ErrHibernated
	}

	return nil
}

// Hibernate compresses every arena shard. Queries fail with ErrHibernated
// until Boot.
func (c *Catalog) Hibernate(ctx context.Context) error {
	return c.toggle(ctx, true)
}

// Boot restores hibernated arena shards.
func (c *Catalog) Boot(ctx context.Context) error {
	return c.toggle(ctx, false)
}

func (c *Catalog) toggle(ctx context.Context, hibernate bool) error {
	op := observability.OpBoot
	if hibernate {
		op = observability.OpHibernate
	}

	ctx, span := c.tracer.Start(ctx, "catalog."+op)
	defer span.End()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.hibernated == hibernate {
		return nil
	}

	start := time.Now()

	var err error
	if hibernate {
		err = c.arenas.Hibernate(interval.NodePacker{})
	} else {
		err = c.arenas.Boot(interval.NodePacker{})
	}

	if err != nil {
		recordError(span, err)
		c.logger.ErrorContext(ctx, "arena "+op+" failed", "error", err)

		return fmt.Errorf("%s: %w", op, err)
	}

	c.hibernated = hibernate
	elapsed := time.Since(start)

	if c.metrics != nil {
		c.metrics.RecordHibernation(ctx, op, elapsed)
	}

	c.logger.InfoContext(ctx, "arena "+op, "shards", len(c.arenas.Shards()), "elapsed", elapsed)

	return nil
}

func (c *Catalog) lookup(name string) (*namedTree, error) {
	if c.hibernated {
		return nil, ErrHibernated
	}

	nt, ok := c.trees[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTree, name)
	}

	return nt, nil
}

func (c *Catalog) queryable(name string, low, high interval.Bound) (*namedTree, error) {
	if low > high {
		return nil, fmt.Errorf("%w: [%d, %d]", ErrInvalidInterval, low, high)
	}

	return c.lookup(name)
}

func (c *Catalog) startQuery(
	ctx context.Context, spanName, name string, low, high interval.Bound,
) (context.Context, trace.Span) {
	return c.tracer.Start(ctx, spanName, trace.WithAttributes(
		attribute.String("tree.name", name),
		attribute.Int64("query.low", int64(low)),
		attribute.Int64("query.high", int64(high)),
	))
}

func (c *Catalog) finishQuery(ctx context.Context, span trace.Span, name, op string, hits int, start time.Time) {
	elapsed := time.Since(start)

	span.SetAttributes(attribute.Int("query.hits", hits))

	if c.metrics != nil {
		c.metrics.RecordQuery(ctx, name, op, hits, elapsed)
	}

	c.logger.DebugContext(ctx, "query served", "tree", name, "op", op, "hits", hits, "elapsed", elapsed)
}

func (nt *namedTree) entry(name string, h interval.Handle) Entry {
	nd := nt.tree.Node(h)

	return Entry{Tree: name, Label: nt.labels[h], Handle: h, Low: nd.Low, High: nd.High}
}

func recordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
