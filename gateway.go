package rediswork

import (
	"context"
)

// Gateway executes commands against a RediSearch-enabled server.
// RedisGateway is the production implementation; tests substitute recorders.
type Gateway interface {
	// CreateIndex creates the search index described by schema.
	CreateIndex(ctx context.Context, schema *Schema) error

	// DropIndex drops an index. Indexed documents are kept.
	DropIndex(ctx context.Context, indexName string) error

	// IndexExists reports whether an index exists.
	IndexExists(ctx context.Context, indexName string) (bool, error)

	// AddOrReplaceDocuments writes documents with full-replace semantics.
	AddOrReplaceDocuments(ctx context.Context, docs ...*Document) error

	// DeleteDocument removes a document and its data.
	DeleteDocument(ctx context.Context, indexName, id string) error

	// GetDocument reads a document by key. A missing key returns nil, nil.
	GetDocument(ctx context.Context, key string) (*Document, error)

	Search(ctx context.Context, q SearchQuery) ([]Row, error)
	Aggregate(ctx context.Context, q AggregateQuery) ([]Row, error)
	Count(ctx context.Context, indexName, filter string) (int64, error)
	KeyExists(ctx context.Context, key string) (bool, error)

	// Transaction bracket
	Multi(ctx context.Context) error
	Exec(ctx context.Context) error
	Discard(ctx context.Context) error

	// FlushAll removes every key on the server. Schema bootstrap only.
	FlushAll(ctx context.Context) error

	Ping(ctx context.Context) error
	Close() error
}

// SearchQuery is a single-sort search.
type SearchQuery struct {
	Index  string
	Filter string
	Sort   *SortKey
	Skip   int
	Take   int
	Return []string
}

// AggregateQuery is a multi-sort search through the aggregation pipeline.
type AggregateQuery struct {
	Index  string
	Filter string
	Load   []string
	Sort   []SortKey
	Skip   int
	Take   int
}

// QuerySpec is a compiled query, independent of the entity type.
type QuerySpec struct {
	Filter string
	Sort   []SortKey
	Skip   int
	Take   int
}

// ExecuteQuery runs a compiled query against the index of schema. Zero or one
// sort key uses FT.SEARCH; more use FT.AGGREGATE. Both return rows holding the
// mapped fields only.
func ExecuteQuery(ctx context.Context, gw Gateway, schema *Schema, spec QuerySpec) ([]Row, error) {
	filter := spec.Filter
	if filter == "" {
		filter = "*"
	}

	take := spec.Take
	if take <= 0 {
		take = DefaultTake
	}
	if spec.Skip < 0 || take > MaxTake {
		return nil, unsupported("paging out of range", map[string]interface{}{
			"skip": spec.Skip,
			"take": spec.Take,
			"max":  MaxTake,
		})
	}
	if spec.Skip+take > MaxTake {
		take = MaxTake - spec.Skip
	}
	if take <= 0 {
		return nil, nil
	}

	fields := schema.FieldNames()
	if len(spec.Sort) > 1 {
		return gw.Aggregate(ctx, AggregateQuery{
			Index:  schema.IndexName(),
			Filter: filter,
			Load:   fields,
			Sort:   spec.Sort,
			Skip:   spec.Skip,
			Take:   take,
		})
	}

	q := SearchQuery{
		Index:  schema.IndexName(),
		Filter: filter,
		Skip:   spec.Skip,
		Take:   take,
		Return: fields,
	}
	if len(spec.Sort) == 1 {
		sk := spec.Sort[0]
		q.Sort = &sk
	}
	return gw.Search(ctx, q)
}

// CountQuery counts the documents of schema matching filter.
func CountQuery(ctx context.Context, gw Gateway, schema *Schema, filter string) (int64, error) {
	if filter == "" {
		filter = "*"
	}
	return gw.Count(ctx, schema.IndexName(), filter)
}
