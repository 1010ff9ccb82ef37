package rediswork

import (
	"context"
	"strings"
	"time"
)

// Query provides a fluent interface for filtering, sorting and paging one
// collection. Builder errors are kept and returned by the executing call.
type Query[T any] struct {
	set     *Rediset[T]
	filters []Predicate
	negate  bool
	sort    []SortKey
	skip    int
	take    int
	err     error
}

func newQuery[T any](set *Rediset[T]) *Query[T] {
	return &Query[T]{set: set, take: DefaultTake}
}

// Where adds a filter. Filters of successive calls are ANDed.
func (q *Query[T]) Where(p Predicate) *Query[T] {
	if p == nil {
		q.setErr(unsupported("nil predicate", nil))
		return q
	}
	if _, err := q.set.compiler.Compile(p); err != nil {
		q.setErr(err)
		return q
	}
	q.filters = append(q.filters, p)
	return q
}

// Not negates the combined filter.
func (q *Query[T]) Not() *Query[T] {
	q.negate = !q.negate
	return q
}

// SortBy appends an ascending sort key.
func (q *Query[T]) SortBy(field string) *Query[T] {
	return q.sortKey(Asc(field))
}

// SortByDescending appends a descending sort key.
func (q *Query[T]) SortByDescending(field string) *Query[T] {
	return q.sortKey(Desc(field))
}

func (q *Query[T]) sortKey(k SortKey) *Query[T] {
	if _, err := q.set.compiler.CompileSort(k); err != nil {
		q.setErr(err)
		return q
	}
	q.sort = append(q.sort, k)
	return q
}

// Skip sets the number of results to skip.
func (q *Query[T]) Skip(n int) *Query[T] {
	if n < 0 {
		q.setErr(unsupported("negative skip", map[string]interface{}{"skip": n}))
		return q
	}
	q.skip = n
	return q
}

// Take sets the maximum number of results, at most MaxTake.
func (q *Query[T]) Take(n int) *Query[T] {
	if n < 0 || n > MaxTake {
		q.setErr(unsupported("take out of range", map[string]interface{}{
			"take": n,
			"max":  MaxTake,
		}))
		return q
	}
	q.take = n
	return q
}

func (q *Query[T]) setErr(err error) {
	if q.err == nil {
		q.err = err
	}
}

// Filter returns the compiled filter string, "" when unfiltered.
func (q *Query[T]) Filter() (string, error) {
	if q.err != nil {
		return "", q.err
	}
	if len(q.filters) == 0 {
		if q.negate {
			return "", unsupported("Not requires a filter", nil)
		}
		return "", nil
	}

	if q.negate {
		var combined Predicate = q.filters[0]
		for _, p := range q.filters[1:] {
			combined = AndExpr{Left: combined, Right: p}
		}
		return q.set.compiler.Compile(Not(combined))
	}

	parts := make([]string, len(q.filters))
	for i, p := range q.filters {
		compiled, err := q.set.compiler.Compile(p)
		if err != nil {
			return "", err
		}
		parts[i] = compiled
	}
	return strings.Join(parts, " "), nil
}

// Spec returns the compiled query.
func (q *Query[T]) Spec() (QuerySpec, error) {
	filter, err := q.Filter()
	if err != nil {
		return QuerySpec{}, err
	}
	return QuerySpec{
		Filter: filter,
		Sort:   append([]SortKey(nil), q.sort...),
		Skip:   q.skip,
		Take:   q.take,
	}, nil
}

// ToList executes the query.
func (q *Query[T]) ToList(ctx context.Context) ([]*T, error) {
	db := q.set.db
	if err := db.readable(); err != nil {
		return nil, err
	}
	spec, err := q.Spec()
	if err != nil {
		return nil, err
	}
	if spec.Take == 0 {
		return []*T{}, nil
	}

	name := q.set.schema.TypeName()
	start := time.Now()
	rows, err := ExecuteQuery(ctx, db.gateway, q.set.schema, spec)
	db.metrics.Timing(MetricQueryDuration, time.Since(start), "entity", name)
	if err != nil {
		db.metrics.Increment(MetricQueryError, "entity", name)
		return nil, err
	}
	db.metrics.Histogram(MetricQueryResults, float64(len(rows)), "entity", name)
	db.logger.Debug("query executed",
		"type", name,
		"filter", spec.Filter,
		"sort_keys", len(spec.Sort),
		"rows", len(rows),
	)

	out := make([]*T, 0, len(rows))
	for _, row := range rows {
		e, err := q.set.mapper.FromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// First returns the first result, or ErrNotFound.
func (q *Query[T]) First(ctx context.Context) (*T, error) {
	take := q.take
	if take > 1 {
		q.take = 1
	}
	list, err := q.ToList(ctx)
	q.take = take
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, WithContext(ErrNotFound, map[string]interface{}{
			"type": q.set.schema.TypeName(),
		})
	}
	return list[0], nil
}

// Count counts matching entities, ignoring sort and paging.
func (q *Query[T]) Count(ctx context.Context) (int64, error) {
	db := q.set.db
	if err := db.readable(); err != nil {
		return 0, err
	}
	filter, err := q.Filter()
	if err != nil {
		return 0, err
	}
	return CountQuery(ctx, db.gateway, q.set.schema, filter)
}
