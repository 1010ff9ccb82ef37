// Package rediswork maps Go structs onto Redis hashes indexed by RediSearch and
// compiles typed predicates into RediSearch queries, with a unit of work that
// batches writes until flush.
//
// # Overview
//
// RediSearch tag fields only support exact matches and numeric fields only
// support ranges. rediswork stores three derived tags next to every string
// field so that equality, prefix, suffix and substring filters all compile to
// exact or prefix tag lookups:
//
//   - <Field>_tag          lower-cased value (equality, StartsWith)
//   - <Field>_reverse_tag  lower-cased value reversed (EndsWith)
//   - <Field>_subset_tag   every substring of 3 or more runes (Contains)
//
// # Quick Start
//
//	type Person struct {
//	    Id   int    `rw:"key"`
//	    Ref  string `rw:"altkey"`
//	    Name string
//	    Tags []string
//	}
//
//	ctx := context.Background()
//	db, err := rediswork.Open(ctx,
//	    rediswork.WithAddr("localhost:6379"),
//	    rediswork.WithModels(rediswork.Register[Person]()),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if err := db.EnsureIndexes(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
//	people := rediswork.MustSet[Person](db)
//	people.Add(&Person{Id: 1, Name: "Emre"})
//	if err := db.Flush(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
//	found, err := people.
//	    Where(rediswork.Contains("Name", "mr")).
//	    SortBy("Id").
//	    ToList(ctx)
//
// # Keys
//
// Document keys are built from the key fields in key order and namespaced by
// type name:
//
//	example.com/app.Person_[Id]_1
//	example.com/app.Order_[Customer]_7|[Number]_42
//
// The index of a type is named <TypeName>_idx and covers the <TypeName>_[ prefix.
//
// # Writes
//
// Add, Update and Delete only buffer changes. DB.Flush walks the collections
// in registration order, deleting first and then writing every added or updated
// document in one pipeline with full-replace semantics. Wrap the flush in
// BeginTransaction and Commit to apply it through MULTI/EXEC. A failed flush
// does not undo commands already sent for earlier collections.
//
// # Errors
//
// Errors wrap sentinel values; test them with errors.Is or the helpers:
//
//	_, err := people.Find(ctx, 99)
//	if rediswork.IsNotFound(err) {
//	    // ...
//	}
//
// Configuration, compilation and mapping errors are permanent (IsPermanent).
// Network errors from the server pass through unchanged.
//
// # Observability
//
// Pass WithLogger (NewProductionZapLogger) and WithMetrics
// (NewPrometheusMetrics) to Open. Each flush logs a flush_id for correlation.
//
// # Command line
//
// cmd/redisworkctl loads type descriptions from a YAML schema file and manages
// indexes, runs queries written as SQL WHERE clauses, and exports redis-cli
// scripts.
package rediswork
