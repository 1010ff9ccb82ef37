package rediswork

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newMiniredisGateway(t *testing.T) (*RedisGateway, *miniredis.Miniredis, *InMemoryMetrics) {
	t.Helper()
	mr := miniredis.RunT(t)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), Protocol: 2})
	t.Cleanup(func() { client.Close() })

	metrics := NewInMemoryMetrics()
	g := NewRedisGateway(client, nil, metrics)
	t.Cleanup(func() { g.Close() })
	return g, mr, metrics
}

func TestRedisGatewayAddOrReplaceReplacesHash(t *testing.T) {
	g, mr, _ := newMiniredisGateway(t)
	ctx := context.Background()

	first := NewDocument("Person_[Id]_1")
	first.Set("Id", "1")
	first.Set("Name", "Emre")
	first.Set("Nick", "em")
	if err := g.AddOrReplaceDocuments(ctx, first); err != nil {
		t.Fatal(err)
	}
	if got := mr.HGet("Person_[Id]_1", "Nick"); got != "em" {
		t.Fatalf("Nick = %q", got)
	}

	second := NewDocument("Person_[Id]_1")
	second.Set("Id", "1")
	second.Set("Name", "Emre")
	if err := g.AddOrReplaceDocuments(ctx, second); err != nil {
		t.Fatal(err)
	}

	keys, err := mr.HKeys("Person_[Id]_1")
	if err != nil {
		t.Fatal(err)
	}
	if strings.Join(keys, ",") != "Id,Name" {
		t.Errorf("fields after replace = %v, stale fields must be removed", keys)
	}
}

func TestRedisGatewayGetDocument(t *testing.T) {
	g, mr, _ := newMiniredisGateway(t)
	ctx := context.Background()

	doc, err := g.GetDocument(ctx, "Person_[Id]_404")
	if err != nil {
		t.Fatal(err)
	}
	if doc != nil {
		t.Fatalf("expected nil for missing key, got %+v", doc)
	}

	mr.HSet("Person_[Id]_7", "Id", "7", "Name", "Ada")
	doc, err = g.GetDocument(ctx, "Person_[Id]_7")
	if err != nil {
		t.Fatal(err)
	}
	if doc.ID != "Person_[Id]_7" {
		t.Errorf("ID = %q", doc.ID)
	}
	if v, _ := doc.Get("Name"); v != "Ada" {
		t.Errorf("Name = %q", v)
	}
	if strings.Join(doc.Names(), ",") != "Id,Name" {
		t.Errorf("Names = %v", doc.Names())
	}
}

func TestRedisGatewayDeleteAndExists(t *testing.T) {
	g, mr, _ := newMiniredisGateway(t)
	ctx := context.Background()

	mr.HSet("Person_[Id]_1", "Id", "1")

	ok, err := g.KeyExists(ctx, "Person_[Id]_1")
	if err != nil || !ok {
		t.Fatalf("KeyExists = %v, %v", ok, err)
	}

	if err := g.DeleteDocument(ctx, "Person_idx", "Person_[Id]_1"); err != nil {
		t.Fatal(err)
	}
	if mr.Exists("Person_[Id]_1") {
		t.Error("hash should be gone after delete")
	}

	// Deleting a missing key is not an error.
	if err := g.DeleteDocument(ctx, "Person_idx", "Person_[Id]_1"); err != nil {
		t.Errorf("second delete: %v", err)
	}

	ok, err = g.KeyExists(ctx, "Person_[Id]_1")
	if err != nil || ok {
		t.Errorf("KeyExists after delete = %v, %v", ok, err)
	}
}

func TestRedisGatewayMultiExec(t *testing.T) {
	g, mr, _ := newMiniredisGateway(t)
	ctx := context.Background()

	if err := g.Multi(ctx); err != nil {
		t.Fatal(err)
	}
	doc := NewDocument("Order_[Customer]_c|[Number]_1")
	doc.Set("Total", "9.5")
	if err := g.AddOrReplaceDocuments(ctx, doc); err != nil {
		t.Fatal(err)
	}
	if mr.Exists("Order_[Customer]_c|[Number]_1") {
		t.Fatal("write must stay queued until EXEC")
	}

	if err := g.Exec(ctx); err != nil {
		t.Fatal(err)
	}
	if got := mr.HGet("Order_[Customer]_c|[Number]_1", "Total"); got != "9.5" {
		t.Errorf("Total = %q", got)
	}
}

func TestRedisGatewayDiscard(t *testing.T) {
	g, mr, _ := newMiniredisGateway(t)
	ctx := context.Background()

	if err := g.Multi(ctx); err != nil {
		t.Fatal(err)
	}
	doc := NewDocument("Person_[Id]_1")
	doc.Set("Id", "1")
	if err := g.AddOrReplaceDocuments(ctx, doc); err != nil {
		t.Fatal(err)
	}
	if err := g.Discard(ctx); err != nil {
		t.Fatal(err)
	}
	if mr.Exists("Person_[Id]_1") {
		t.Error("discarded write must not be applied")
	}

	// The connection is usable outside the bracket again.
	if err := g.Ping(ctx); err != nil {
		t.Errorf("Ping after discard: %v", err)
	}
}

func TestRedisGatewayExecReportsQueuedError(t *testing.T) {
	g, mr, _ := newMiniredisGateway(t)
	ctx := context.Background()

	mr.Set("counter", "not a number")

	if err := g.Multi(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := g.do(ctx, "INCR", "counter"); err != nil {
		t.Fatalf("queueing INCR: %v", err)
	}
	err := g.Exec(ctx)
	if err == nil {
		t.Fatal("expected EXEC to surface the queued command error")
	}
	if !strings.Contains(err.Error(), "command 0") {
		t.Errorf("error should name the failed command: %v", err)
	}
}

func TestRedisGatewayFlushAll(t *testing.T) {
	g, mr, _ := newMiniredisGateway(t)
	mr.HSet("a", "f", "1")
	mr.Set("b", "2")

	if err := g.FlushAll(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(mr.Keys()) != 0 {
		t.Errorf("keys after flush = %v", mr.Keys())
	}
}

func TestRedisGatewayIndexExistsSurfacesOtherErrors(t *testing.T) {
	// miniredis has no search module, so FT.INFO fails with an unknown command
	// error, which is not the same as a missing index.
	g, _, metrics := newMiniredisGateway(t)

	ok, err := g.IndexExists(context.Background(), "Person_idx")
	if err == nil {
		t.Fatal("expected error from a server without the search module")
	}
	if ok {
		t.Error("IndexExists must be false on error")
	}
	if metrics.Counter(MetricGatewayErrors) != 1 {
		t.Errorf("gateway errors = %d", metrics.Counter(MetricGatewayErrors))
	}
}

func TestIsUnknownIndex(t *testing.T) {
	tests := []struct {
		msg  string
		want bool
	}{
		{"Unknown Index name", true},
		{"Person_idx: no such index", true},
		{"ERR unknown command 'FT.INFO'", false},
		{"connection refused", false},
	}
	for _, tt := range tests {
		if got := isUnknownIndex(errors.New(tt.msg)); got != tt.want {
			t.Errorf("isUnknownIndex(%q) = %v, want %v", tt.msg, got, tt.want)
		}
	}
}

func TestRedisGatewayRecordsLatency(t *testing.T) {
	g, _, metrics := newMiniredisGateway(t)

	if err := g.Ping(context.Background()); err != nil {
		t.Fatal(err)
	}
	metrics.mu.Lock()
	n := len(metrics.Timings[MetricGatewayLatency])
	metrics.mu.Unlock()
	if n != 1 {
		t.Errorf("latency samples = %d, want 1", n)
	}
}

func TestDialRedisGateway(t *testing.T) {
	mr := miniredis.RunT(t)
	metrics := NewInMemoryMetrics()

	g, err := DialRedisGateway(context.Background(), &redis.Options{Addr: mr.Addr(), Protocol: 2}, DefaultConnectRetryConfig(), nil, metrics)
	if err != nil {
		t.Fatal(err)
	}
	defer g.Close()

	if err := g.Ping(context.Background()); err != nil {
		t.Fatal(err)
	}
	if metrics.Counter(MetricConnectRetries) != 0 {
		t.Errorf("retries = %d", metrics.Counter(MetricConnectRetries))
	}
}

func TestDialRedisGatewayExhaustsAttempts(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	metrics := NewInMemoryMetrics()
	retry := RetryConfig{MaxRetries: 3, InitialBackoff: time.Millisecond, BackoffMultiple: 1}
	opts := &redis.Options{Addr: addr, Protocol: 2, MaxRetries: -1, DialTimeout: time.Second}

	g, err := DialRedisGateway(context.Background(), opts, retry, nil, metrics)
	if err == nil {
		g.Close()
		t.Fatal("expected connection error")
	}
	if !IsConnection(err) {
		t.Errorf("expected ErrConnection, got %v", err)
	}
	if metrics.Counter(MetricConnectRetries) != 3 {
		t.Errorf("attempts = %d, want 3", metrics.Counter(MetricConnectRetries))
	}
}

func TestDialRedisGatewayStopsOnContext(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	retry := RetryConfig{MaxRetries: 10, InitialBackoff: time.Hour, BackoffMultiple: 1}
	opts := &redis.Options{Addr: addr, Protocol: 2, MaxRetries: -1}

	start := time.Now()
	_, err := DialRedisGateway(ctx, opts, retry, nil, nil)
	if !IsConnection(err) {
		t.Errorf("expected ErrConnection, got %v", err)
	}
	if time.Since(start) > 10*time.Second {
		t.Error("dial should stop when the context is done")
	}
}

func TestDialRedisGatewayRejectsBadRetry(t *testing.T) {
	_, err := DialRedisGateway(context.Background(), &redis.Options{Addr: "localhost:0"}, RetryConfig{}, nil, nil)
	if !IsConfiguration(err) {
		t.Errorf("expected configuration error, got %v", err)
	}
}

func TestDialRedisGatewayForcesRESP2(t *testing.T) {
	mr := miniredis.RunT(t)
	mr.HSet("Person_[Id]_1", "Name", "Emre")
	ctx := context.Background()

	opts := &redis.Options{Addr: mr.Addr()}
	g, err := DialRedisGateway(ctx, opts, DefaultConnectRetryConfig(), nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer g.Close()

	if opts.Protocol != 0 {
		t.Errorf("caller options modified: protocol %d", opts.Protocol)
	}
	if g.client.Options().Protocol != 2 {
		t.Errorf("dialed protocol = %d, want 2", g.client.Options().Protocol)
	}

	reply, err := g.do(ctx, "HGETALL", "Person_[Id]_1")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := reply.([]interface{}); !ok {
		t.Errorf("HGETALL reply is %T, want a flat RESP2 array", reply)
	}
}

func TestNewRedisGatewayReplacesRESP3Client(t *testing.T) {
	mr := miniredis.RunT(t)
	mr.HSet("Person_[Id]_1", "Name", "Emre")
	ctx := context.Background()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	g := NewRedisGateway(client, nil, nil)
	if g.client == client || !g.ownsClient {
		t.Fatal("a RESP3 client should be replaced by a gateway-owned RESP2 client")
	}
	if g.client.Options().Protocol != 2 {
		t.Errorf("protocol = %d, want 2", g.client.Options().Protocol)
	}
	if g.client.Options().Addr != mr.Addr() {
		t.Errorf("addr = %q, want %q", g.client.Options().Addr, mr.Addr())
	}

	reply, err := g.do(ctx, "HGETALL", "Person_[Id]_1")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := reply.([]interface{}); !ok {
		t.Errorf("HGETALL reply is %T, want a flat RESP2 array", reply)
	}

	if err := g.Close(); err != nil {
		t.Fatal(err)
	}
	if err := client.Ping(ctx).Err(); err != nil {
		t.Errorf("caller client closed by gateway: %v", err)
	}
}

func TestNewRedisGatewayKeepsRESP2Client(t *testing.T) {
	g, _, _ := newMiniredisGateway(t)
	if g.ownsClient {
		t.Error("a RESP2 client should be used as given")
	}
}
