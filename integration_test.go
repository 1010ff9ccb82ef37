package rediswork

import (
	"context"
	"os"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// searchEngineAddr returns the address of a server with the search module.
//
// Two modes, in order of preference:
// 1. Existing server: set TEST_REDISEARCH_ADDR=host:port
// 2. Testcontainers: starts redis-stack-server via Docker, skips without Docker
func searchEngineAddr(t *testing.T, ctx context.Context) string {
	t.Helper()
	if addr := os.Getenv("TEST_REDISEARCH_ADDR"); addr != "" {
		return addr
	}

	// Catch panic if Docker daemon is not running
	defer func() {
		if r := recover(); r != nil {
			t.Skipf("Docker daemon not available, skipping search engine test: %v", r)
		}
	}()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis/redis-stack-server:latest",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForListeningPort("6379/tcp"),
		},
		Started: true,
	})
	if err != nil {
		t.Skipf("Failed to start redis-stack container (Docker not available?): %v", err)
	}
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("Failed to terminate redis-stack container: %v", err)
		}
	})

	addr, err := container.PortEndpoint(ctx, "6379/tcp", "")
	if err != nil {
		t.Fatalf("Failed to get redis-stack endpoint: %v", err)
	}
	return addr
}

func TestIntegration_SearchEngine(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping search engine integration test in short mode")
	}
	ctx := context.Background()
	addr := searchEngineAddr(t, ctx)

	db, err := Open(ctx,
		WithAddr(addr),
		WithModels(
			Register[testPerson](WithTypeName("Person")),
			Register[testOrder](WithTypeName("Order")),
		),
	)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	if err := db.BuildIndex(ctx); err != nil {
		t.Fatalf("BuildIndex: %v", err)
	}

	people := MustSet[testPerson](db)
	orders := MustSet[testOrder](db)
	nick := "em"
	seed := []*testPerson{
		{Id: 1, Name: "Emre", Nick: &nick, Age: 31, Score: 4.5, Active: true, Balance: decimal.RequireFromString("10.25"), Tags: []string{"admin", "dev"}},
		{Id: 2, Name: "Ada", Age: 36, Score: 3},
		{Id: 3, Name: "Grace", Age: 36, Score: 5, Address: &testAddress{City: "Arlington"}},
		{Id: 4, Name: "", Age: 20},
	}
	if err := people.Add(seed...); err != nil {
		t.Fatal(err)
	}
	if err := orders.Add(
		&testOrder{Customer: "ada", Number: 2, Total: 12},
		&testOrder{Customer: "ada", Number: 1, Total: 7},
		&testOrder{Customer: "bob", Number: 1, Total: 3},
	); err != nil {
		t.Fatal(err)
	}
	if err := db.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	t.Run("Find", func(t *testing.T) {
		p, err := people.Find(ctx, 1)
		if err != nil {
			t.Fatal(err)
		}
		if p.Name != "Emre" || p.Nick == nil || *p.Nick != "em" || !p.Balance.Equal(decimal.RequireFromString("10.25")) {
			t.Errorf("Find = %+v", p)
		}
		if len(p.Tags) != 2 || p.Tags[1] != "dev" {
			t.Errorf("Tags = %v", p.Tags)
		}
	})

	t.Run("StringPredicates", func(t *testing.T) {
		tests := []struct {
			name string
			p    Predicate
			want int64
		}{
			{"equal ignores case", Eq("Name", "emre"), 1},
			{"starts with", StartsWith("Name", "Em"), 1},
			{"ends with", EndsWith("Name", "re"), 1},
			{"contains", Contains("Name", "mr"), 1},
			{"contains long", Contains("Name", "rac"), 1},
			{"contains two runes at the end", Contains("Name", "ce"), 1},
			{"contains two runes inside", Contains("Name", "ac"), 1},
			{"not equal", Ne("Name", "Emre"), 3},
			{"empty string", Eq("Name", ""), 1},
			{"in", In("Name", []string{"Ada", "Grace"}), 2},
			{"key mismatch", And(Eq("Name", "Emre"), Eq("Id", 2)), 0},
			{"or", Or(Eq("Name", "Emre"), Eq("Id", 2)), 2},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				n, err := people.CountWhere(ctx, tt.p)
				if err != nil {
					t.Fatal(err)
				}
				if n != tt.want {
					t.Errorf("count = %d, want %d", n, tt.want)
				}
			})
		}
	})

	t.Run("SingleRuneNeedleRejected", func(t *testing.T) {
		if _, err := people.CountWhere(ctx, Contains("Name", "a")); !IsCompilation(err) {
			t.Errorf("expected compilation error, got %v", err)
		}
	})

	t.Run("NumericPredicates", func(t *testing.T) {
		n, err := people.CountWhere(ctx, Gte("Age", 31))
		if err != nil || n != 3 {
			t.Errorf("Age >= 31: %d, %v", n, err)
		}
		n, err = people.CountWhere(ctx, And(Eq("Active", true), Lt("Score", 5)))
		if err != nil || n != 1 {
			t.Errorf("active and score < 5: %d, %v", n, err)
		}
		all, err := people.All(ctx, Gt("Age", 18))
		if err != nil || !all {
			t.Errorf("All(Age > 18) = %v, %v", all, err)
		}
	})

	t.Run("SortAndPage", func(t *testing.T) {
		list, err := people.Where(Gt("Age", 30)).SortByDescending("Age").SortBy("Name").ToList(ctx)
		if err != nil {
			t.Fatal(err)
		}
		var names []string
		for _, p := range list {
			names = append(names, p.Name)
		}
		if len(names) != 3 || names[0] != "Ada" || names[1] != "Grace" || names[2] != "Emre" {
			t.Errorf("order = %v", names)
		}

		page, err := people.SortBy("Id").Skip(1).Take(2).ToList(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if len(page) != 2 || page[0].Id != 2 || page[1].Id != 3 {
			t.Errorf("page = %+v", page)
		}
	})

	t.Run("CompositeKeys", func(t *testing.T) {
		o, err := orders.Find(ctx, "ada", 2)
		if err != nil {
			t.Fatal(err)
		}
		if o.Total != 12 {
			t.Errorf("Total = %v", o.Total)
		}
		first, err := orders.Where(Eq("Customer", "ada")).SortBy("Total").First(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if first.Number != 1 {
			t.Errorf("cheapest order = %+v", first)
		}
	})

	t.Run("RollbackDiscardsFlush", func(t *testing.T) {
		if err := db.BeginTransaction(ctx); err != nil {
			t.Fatal(err)
		}
		if err := people.Add(&testPerson{Id: 99, Name: "Ghost"}); err != nil {
			t.Fatal(err)
		}
		if err := db.Flush(ctx); err != nil {
			t.Fatal(err)
		}
		if err := db.Rollback(ctx); err != nil {
			t.Fatal(err)
		}
		ok, err := people.Exists(ctx, 99)
		if err != nil || ok {
			t.Errorf("Exists(99) after rollback = %v, %v", ok, err)
		}
	})

	t.Run("DeleteAndRebuild", func(t *testing.T) {
		if err := people.DeleteKey(4); err != nil {
			t.Fatal(err)
		}
		if err := db.Flush(ctx); err != nil {
			t.Fatal(err)
		}
		if _, err := people.Find(ctx, 4); !IsNotFound(err) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
		if err := people.RebuildIndex(ctx); err != nil {
			t.Fatal(err)
		}
		exists, err := db.Gateway().IndexExists(ctx, people.IndexName())
		if err != nil || !exists {
			t.Errorf("IndexExists after rebuild = %v, %v", exists, err)
		}
	})
}
