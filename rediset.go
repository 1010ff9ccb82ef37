package rediswork

import (
	"context"
	"fmt"
	"sync"
)

// EntryState is the kind of a pending change.
type EntryState int

const (
	StateAdded EntryState = iota
	StateUpdated
	StateDeleted
)

func (s EntryState) String() string {
	switch s {
	case StateAdded:
		return "added"
	case StateUpdated:
		return "updated"
	case StateDeleted:
		return "deleted"
	}
	return "unknown"
}

// ChangedEntry is a read-only view of one buffered change.
type ChangedEntry struct {
	State      EntryState
	Key        string
	EntityType string
}

// Rediset is the tracked collection of entity type T. Add, Update and Delete
// buffer changes until DB.Flush; they are safe for concurrent use.
type Rediset[T any] struct {
	db       *DB
	schema   *Schema
	mapper   *Mapper[T]
	compiler *Compiler

	mu      sync.Mutex
	added   []*Document
	updated []*Document
	deleted []string
}

func newRediset[T any](db *DB, schema *Schema) (*Rediset[T], error) {
	mapper, err := NewMapper[T](schema)
	if err != nil {
		return nil, err
	}
	return &Rediset[T]{
		db:       db,
		schema:   schema,
		mapper:   mapper,
		compiler: NewCompiler(schema),
	}, nil
}

// Schema returns the entity schema.
func (s *Rediset[T]) Schema() *Schema { return s.schema }

// IndexName returns the search index of the collection.
func (s *Rediset[T]) IndexName() string { return s.schema.IndexName() }

// Add buffers new entities. The generated key is written into the alternate
// key field when one is declared.
func (s *Rediset[T]) Add(entities ...*T) error {
	docs, err := s.toDocuments(entities)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.added = append(s.added, docs...)
	s.mu.Unlock()
	return nil
}

// Update buffers full replacements of existing entities.
func (s *Rediset[T]) Update(entities ...*T) error {
	docs, err := s.toDocuments(entities)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.updated = append(s.updated, docs...)
	s.mu.Unlock()
	return nil
}

// Delete buffers deletion of entities by their key fields.
func (s *Rediset[T]) Delete(entities ...*T) error {
	keys := make([]string, 0, len(entities))
	for _, e := range entities {
		key, err := s.mapper.Key(e)
		if err != nil {
			return err
		}
		keys = append(keys, key)
	}
	s.mu.Lock()
	s.deleted = append(s.deleted, keys...)
	s.mu.Unlock()
	return nil
}

// DeleteKey buffers deletion of the entity with the given key values.
func (s *Rediset[T]) DeleteKey(keyValues ...interface{}) error {
	key, err := s.schema.KeyBuilder().Key(keyValues...)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.deleted = append(s.deleted, key)
	s.mu.Unlock()
	return nil
}

func (s *Rediset[T]) toDocuments(entities []*T) ([]*Document, error) {
	docs := make([]*Document, 0, len(entities))
	for _, e := range entities {
		doc, err := s.mapper.ToDocument(e)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// Changes lists buffered changes: deletes, then adds, then updates, matching
// flush order.
func (s *Rediset[T]) Changes() []ChangedEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := s.schema.TypeName()
	out := make([]ChangedEntry, 0, len(s.deleted)+len(s.added)+len(s.updated))
	for _, key := range s.deleted {
		out = append(out, ChangedEntry{State: StateDeleted, Key: key, EntityType: name})
	}
	for _, doc := range s.added {
		out = append(out, ChangedEntry{State: StateAdded, Key: doc.ID, EntityType: name})
	}
	for _, doc := range s.updated {
		out = append(out, ChangedEntry{State: StateUpdated, Key: doc.ID, EntityType: name})
	}
	return out
}

// flush issues one delete per buffered key, then one batched upsert.
// Entries leave the buffers only once their commands succeed; entries
// appended meanwhile stay buffered for the next flush.
func (s *Rediset[T]) flush(ctx context.Context, log Logger) (int, int, error) {
	s.mu.Lock()
	deleted := append([]string(nil), s.deleted...)
	nAdded, nUpdated := len(s.added), len(s.updated)
	docs := make([]*Document, 0, nAdded+nUpdated)
	docs = append(docs, s.added...)
	docs = append(docs, s.updated...)
	s.mu.Unlock()

	gw := s.db.gateway
	name := s.schema.TypeName()

	for i, key := range deleted {
		if err := gw.DeleteDocument(ctx, s.schema.IndexName(), key); err != nil {
			s.mu.Lock()
			s.deleted = dropFront(s.deleted, i)
			s.mu.Unlock()
			return i, 0, err
		}
	}
	s.mu.Lock()
	s.deleted = dropFront(s.deleted, len(deleted))
	s.mu.Unlock()
	if len(deleted) > 0 {
		s.db.metrics.Histogram(MetricFlushDeletes, float64(len(deleted)), "entity", name)
	}

	if len(docs) > 0 {
		if err := gw.AddOrReplaceDocuments(ctx, docs...); err != nil {
			return len(deleted), 0, err
		}
		s.mu.Lock()
		s.added = dropFront(s.added, nAdded)
		s.updated = dropFront(s.updated, nUpdated)
		s.mu.Unlock()
		s.db.metrics.Histogram(MetricFlushUpserts, float64(len(docs)), "entity", name)
	}

	log.Debug("collection flushed",
		"type", name,
		"deleted", len(deleted),
		"upserted", len(docs),
	)
	return len(deleted), len(docs), nil
}

func (s *Rediset[T]) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.added = nil
	s.updated = nil
	s.deleted = nil
}

func dropFront[E any](buf []E, n int) []E {
	if n >= len(buf) {
		return nil
	}
	return append([]E(nil), buf[n:]...)
}

// Find reads the entity with the given key values. A missing entity returns
// ErrNotFound.
func (s *Rediset[T]) Find(ctx context.Context, keyValues ...interface{}) (*T, error) {
	if err := s.db.readable(); err != nil {
		return nil, err
	}
	key, err := s.schema.KeyBuilder().Key(keyValues...)
	if err != nil {
		return nil, err
	}
	doc, err := s.db.gateway.GetDocument(ctx, key)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, WithContext(ErrNotFound, map[string]interface{}{
			"key": key,
		})
	}
	return s.mapper.FromDocument(doc)
}

// Exists reports whether an entity with the given key values is stored.
func (s *Rediset[T]) Exists(ctx context.Context, keyValues ...interface{}) (bool, error) {
	if err := s.db.readable(); err != nil {
		return false, err
	}
	key, err := s.schema.KeyBuilder().Key(keyValues...)
	if err != nil {
		return false, err
	}
	return s.db.gateway.KeyExists(ctx, key)
}

// Query starts an unfiltered query.
func (s *Rediset[T]) Query() *Query[T] {
	return newQuery(s)
}

// Where starts a query filtered by p.
func (s *Rediset[T]) Where(p Predicate) *Query[T] {
	return newQuery(s).Where(p)
}

// SortBy starts a query sorted ascending by field.
func (s *Rediset[T]) SortBy(field string) *Query[T] {
	return newQuery(s).SortBy(field)
}

// SortByDescending starts a query sorted descending by field.
func (s *Rediset[T]) SortByDescending(field string) *Query[T] {
	return newQuery(s).SortByDescending(field)
}

// Skip starts a query skipping the first n results.
func (s *Rediset[T]) Skip(n int) *Query[T] {
	return newQuery(s).Skip(n)
}

// ToList returns every stored entity.
func (s *Rediset[T]) ToList(ctx context.Context) ([]*T, error) {
	return newQuery(s).ToList(ctx)
}

// Count counts every stored entity.
func (s *Rediset[T]) Count(ctx context.Context) (int64, error) {
	return newQuery(s).Count(ctx)
}

// CountWhere counts entities matching p.
func (s *Rediset[T]) CountWhere(ctx context.Context, p Predicate) (int64, error) {
	return newQuery(s).Where(p).Count(ctx)
}

// Any reports whether some entity matches p.
func (s *Rediset[T]) Any(ctx context.Context, p Predicate) (bool, error) {
	if p == nil {
		return false, unsupported("Any requires a predicate", map[string]interface{}{
			"type": s.schema.TypeName(),
		})
	}
	n, err := s.CountWhere(ctx, p)
	return n > 0, err
}

// All reports whether every entity matches p.
func (s *Rediset[T]) All(ctx context.Context, p Predicate) (bool, error) {
	if p == nil {
		return false, unsupported("All requires a predicate", map[string]interface{}{
			"type": s.schema.TypeName(),
		})
	}
	n, err := s.CountWhere(ctx, Not(p))
	return n == 0 && err == nil, err
}

// BuildIndex creates the collection's index.
func (s *Rediset[T]) BuildIndex(ctx context.Context) error {
	if err := s.db.readable(); err != nil {
		return err
	}
	return s.db.gateway.CreateIndex(ctx, s.schema)
}

// RebuildIndex drops the index if present and creates it again. Documents are kept
// and reindexed by the server.
func (s *Rediset[T]) RebuildIndex(ctx context.Context) error {
	if err := s.db.readable(); err != nil {
		return err
	}
	exists, err := s.db.gateway.IndexExists(ctx, s.schema.IndexName())
	if err != nil {
		return err
	}
	if exists {
		if err := s.db.gateway.DropIndex(ctx, s.schema.IndexName()); err != nil {
			return err
		}
	}
	if err := s.db.gateway.CreateIndex(ctx, s.schema); err != nil {
		return fmt.Errorf("rebuild %s: %w", s.schema.IndexName(), err)
	}
	return nil
}
