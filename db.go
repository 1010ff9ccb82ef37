package rediswork

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DB owns the gateway connection, one tracked collection per registered entity
// type, and the transaction bracket.
//
// Example:
//
//	db, err := rediswork.Open(ctx,
//	    rediswork.WithAddr("localhost:6379"),
//	    rediswork.WithModels(rediswork.Register[Person]()),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	people := rediswork.MustSet[Person](db)
//	people.Add(&Person{Id: 1, Name: "Emre"})
//	err = db.Flush(ctx)
type DB struct {
	gateway   Gateway
	logger    Logger
	metrics   Metrics
	retry     RetryConfig
	redisOpts *redis.Options
	models    []Model

	mu    sync.RWMutex
	sets  map[reflect.Type]trackedSet
	order []trackedSet

	txMu    sync.Mutex
	started bool
}

// trackedSet is the type-erased view of a Rediset used by DB.
type trackedSet interface {
	Schema() *Schema
	Changes() []ChangedEntry
	flush(ctx context.Context, log Logger) (deleted, upserted int, err error)
	reset()
}

// Option is a functional option for configuring DB.
type Option func(*DB) error

// Model registers one entity type. Build it with Register.
type Model func(*DB) error

// Open connects and registers models. Without WithAddr, WithRedisOptions or
// WithGateway the address comes from REDIS_ADDR.
func Open(ctx context.Context, opts ...Option) (*DB, error) {
	db := &DB{
		logger:  &NoOpLogger{},
		metrics: &NoOpMetrics{},
		retry:   DefaultConnectRetryConfig(),
		sets:    make(map[reflect.Type]trackedSet),
	}

	for _, opt := range opts {
		if err := opt(db); err != nil {
			return nil, err
		}
	}

	if db.gateway == nil {
		if db.redisOpts == nil {
			db.redisOpts = RedisOptions()
		}
		gw, err := DialRedisGateway(ctx, db.redisOpts, db.retry, db.logger, db.metrics)
		if err != nil {
			return nil, err
		}
		db.gateway = gw
	}

	for _, register := range db.models {
		if err := register(db); err != nil {
			if closeErr := db.gateway.Close(); closeErr != nil {
				db.logger.Warn("close after failed registration", "error", closeErr)
			}
			return nil, err
		}
	}

	db.logger.Info("context opened", "collections", len(db.order))
	return db, nil
}

// MustOpen is like Open but panics on error.
func MustOpen(ctx context.Context, opts ...Option) *DB {
	db, err := Open(ctx, opts...)
	if err != nil {
		panic(fmt.Sprintf("rediswork.MustOpen failed: %v", err))
	}
	return db
}

// Functional options

// WithAddr sets the server endpoint as host:port.
func WithAddr(addr string) Option {
	return func(db *DB) error {
		if addr == "" {
			return WithContext(ErrConfiguration, map[string]interface{}{
				"reason": "empty address",
			})
		}
		db.redisOpts = RedisOptionsForAddr(addr)
		return nil
	}
}

// WithRedisOptions sets the full go-redis options.
func WithRedisOptions(opts *redis.Options) Option {
	return func(db *DB) error {
		db.redisOpts = opts
		return nil
	}
}

// WithGateway uses an existing gateway instead of dialing.
func WithGateway(gw Gateway) Option {
	return func(db *DB) error {
		db.gateway = gw
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(logger Logger) Option {
	return func(db *DB) error {
		db.logger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(metrics Metrics) Option {
	return func(db *DB) error {
		db.metrics = metrics
		return nil
	}
}

// WithRetry sets the connection bootstrap retry policy.
func WithRetry(cfg RetryConfig) Option {
	return func(db *DB) error {
		if err := cfg.Validate(); err != nil {
			return err
		}
		db.retry = cfg
		return nil
	}
}

// WithModels registers entity types in the given order. Flushes follow it.
func WithModels(models ...Model) Option {
	return func(db *DB) error {
		db.models = append(db.models, models...)
		return nil
	}
}

// Register declares entity type T.
func Register[T any](opts ...SchemaOption) Model {
	return func(db *DB) error {
		schema, err := SchemaFor[T](opts...)
		if err != nil {
			return err
		}
		set, err := newRediset[T](db, schema)
		if err != nil {
			return err
		}
		return db.register(schema.Type(), set)
	}
}

func (db *DB) register(t reflect.Type, set trackedSet) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, dup := db.sets[t]; dup {
		return WithContext(ErrConfiguration, map[string]interface{}{
			"type":   set.Schema().TypeName(),
			"reason": "type registered twice",
		})
	}
	db.sets[t] = set
	db.order = append(db.order, set)
	db.logger.Debug("collection registered", "type", set.Schema().TypeName(), "index", set.Schema().IndexName())
	return nil
}

func (db *DB) lookup(t reflect.Type) (trackedSet, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	set, ok := db.sets[t]
	return set, ok
}

func (db *DB) collections() []trackedSet {
	db.mu.RLock()
	defer db.mu.RUnlock()
	out := make([]trackedSet, len(db.order))
	copy(out, db.order)
	return out
}

// Set returns the tracked collection for T.
func Set[T any](db *DB) (*Rediset[T], error) {
	var zero T
	t := reflect.TypeOf(zero)
	set, ok := db.lookup(t)
	if !ok {
		return nil, WithContext(ErrNotRegistered, map[string]interface{}{
			"type": fmt.Sprint(t),
		})
	}
	return set.(*Rediset[T]), nil
}

// MustSet is like Set but panics when T is not registered.
func MustSet[T any](db *DB) *Rediset[T] {
	set, err := Set[T](db)
	if err != nil {
		panic(err)
	}
	return set
}

// Schemas returns the registered schemas in registration order.
func (db *DB) Schemas() []*Schema {
	sets := db.collections()
	out := make([]*Schema, len(sets))
	for i, s := range sets {
		out[i] = s.Schema()
	}
	return out
}

// Gateway returns the underlying gateway.
func (db *DB) Gateway() Gateway { return db.gateway }

// Logger returns the configured logger.
func (db *DB) Logger() Logger { return db.logger }

// Flush drains every collection in registration order: deletes first, then one
// batched upsert per collection. A failure stops the flush; earlier
// collections are not rolled back. Concurrent Flush calls on one DB are not
// coordinated and must be avoided by the caller.
func (db *DB) Flush(ctx context.Context) error {
	log := loggerWith(db.logger, "flush_id", NewID())
	start := time.Now()

	var deleted, upserted int
	for _, set := range db.collections() {
		d, u, err := set.flush(ctx, log)
		deleted += d
		upserted += u
		if err != nil {
			db.metrics.Increment(MetricFlushError, "entity", set.Schema().TypeName())
			log.Error("flush failed",
				"type", set.Schema().TypeName(),
				"error", err,
			)
			return fmt.Errorf("flush %s: %w", set.Schema().TypeName(), err)
		}
	}

	db.metrics.Timing(MetricFlushDuration, time.Since(start))
	db.metrics.Increment(MetricFlushSuccess)
	db.metrics.Gauge(MetricPendingChanges, float64(len(db.Changes())))
	log.Debug("flush complete",
		"deleted", deleted,
		"upserted", upserted,
		"duration", time.Since(start),
	)
	return nil
}

// BeginTransaction opens a MULTI bracket. It is a no-op while one is open.
func (db *DB) BeginTransaction(ctx context.Context) error {
	db.txMu.Lock()
	defer db.txMu.Unlock()

	if db.started {
		return nil
	}
	if err := db.gateway.Multi(ctx); err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	db.started = true
	db.metrics.Increment(MetricTransactionBegin)
	return nil
}

// Commit sends EXEC and closes the bracket. It is a no-op when none is open.
func (db *DB) Commit(ctx context.Context) error {
	db.txMu.Lock()
	defer db.txMu.Unlock()

	if !db.started {
		return nil
	}
	db.started = false
	if err := db.gateway.Exec(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	db.metrics.Increment(MetricTransactionCommit)
	return nil
}

// Rollback sends DISCARD and closes the bracket. It is a no-op when none is open.
// Changes already flushed into the bracket are not restored to the buffers.
func (db *DB) Rollback(ctx context.Context) error {
	db.txMu.Lock()
	defer db.txMu.Unlock()

	if !db.started {
		return nil
	}
	db.started = false
	if err := db.gateway.Discard(ctx); err != nil {
		return fmt.Errorf("rollback: %w", err)
	}
	db.metrics.Increment(MetricTransactionRollback)
	return nil
}

// InTransaction reports whether a bracket is open.
func (db *DB) InTransaction() bool {
	db.txMu.Lock()
	defer db.txMu.Unlock()
	return db.started
}

// readable fails reads while a bracket is open; their replies would be queued.
func (db *DB) readable() error {
	if db.InTransaction() {
		return ErrTransactionActive
	}
	return nil
}

// BuildIndex wipes the server with FLUSHALL and recreates the index of every
// registered collection. Buffered changes are discarded. Schema bootstrap only.
func (db *DB) BuildIndex(ctx context.Context) error {
	if err := db.readable(); err != nil {
		return err
	}
	if err := db.gateway.FlushAll(ctx); err != nil {
		return fmt.Errorf("flush all: %w", err)
	}
	sets := db.collections()
	for _, set := range sets {
		set.reset()
		if err := db.gateway.CreateIndex(ctx, set.Schema()); err != nil {
			return err
		}
	}
	db.logger.Warn("all indexes rebuilt from scratch", "collections", len(sets))
	return nil
}

// EnsureIndexes creates the index of every registered collection that lacks one.
func (db *DB) EnsureIndexes(ctx context.Context) error {
	if err := db.readable(); err != nil {
		return err
	}
	for _, set := range db.collections() {
		name := set.Schema().IndexName()
		exists, err := db.gateway.IndexExists(ctx, name)
		if err != nil {
			return err
		}
		if exists {
			continue
		}
		if err := db.gateway.CreateIndex(ctx, set.Schema()); err != nil {
			return err
		}
	}
	return nil
}

// Changes returns the pending changes of every collection in registration order.
func (db *DB) Changes() []ChangedEntry {
	var out []ChangedEntry
	for _, set := range db.collections() {
		out = append(out, set.Changes()...)
	}
	return out
}

// Close closes the gateway.
func (db *DB) Close() error {
	if db.gateway == nil {
		return nil
	}
	return db.gateway.Close()
}
