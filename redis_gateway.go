package rediswork

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisGateway implements Gateway on go-redis. Documents are Redis hashes.
//
// All commands share one sticky connection so a MULTI bracket covers every
// command issued until EXEC or DISCARD. Commands from concurrent callers
// serialize on the connection mutex.
type RedisGateway struct {
	client     *redis.Client
	ownsClient bool

	mu   sync.Mutex
	conn *redis.Conn

	logger  Logger
	metrics Metrics
}

// NewRedisGateway creates a gateway on a connection taken from client.
// The caller keeps ownership of client. A client not configured for RESP2 is
// replaced by a gateway-owned client with the same options on RESP2.
func NewRedisGateway(client *redis.Client, logger Logger, metrics Metrics) *RedisGateway {
	if logger == nil {
		logger = &NoOpLogger{}
	}
	if metrics == nil {
		metrics = &NoOpMetrics{}
	}
	owns := false
	if client.Options().Protocol != 2 {
		client = redis.NewClient(searchOptions(client.Options()))
		owns = true
	}
	return &RedisGateway{
		client:     client,
		ownsClient: owns,
		conn:       client.Conn(),
		logger:     logger,
		metrics:    metrics,
	}
}

// DialRedisGateway connects to the server, retrying per retry until a PING
// succeeds. Exhausting the attempts returns ErrConnection. The connection
// always speaks RESP2 whatever opts.Protocol says; opts itself is not modified.
func DialRedisGateway(ctx context.Context, opts *redis.Options, retry RetryConfig, logger Logger, metrics Metrics) (*RedisGateway, error) {
	if err := retry.Validate(); err != nil {
		return nil, err
	}
	opts = searchOptions(opts)
	if logger == nil {
		logger = &NoOpLogger{}
	}
	if metrics == nil {
		metrics = &NoOpMetrics{}
	}

	client := redis.NewClient(opts)
	var lastErr error
dial:
	for attempt := 0; attempt < retry.MaxRetries; attempt++ {
		conn := client.Conn()
		err := conn.Ping(ctx).Err()
		if err == nil {
			logger.Info("connected to search engine", "addr", opts.Addr, "attempts", attempt+1)
			return &RedisGateway{
				client:     client,
				ownsClient: true,
				conn:       conn,
				logger:     logger,
				metrics:    metrics,
			}, nil
		}
		_ = conn.Close()
		lastErr = err
		metrics.Increment(MetricConnectRetries)
		logger.Warn("connection attempt failed", "addr", opts.Addr, "attempt", attempt+1, "error", err)

		if attempt == retry.MaxRetries-1 {
			break
		}
		select {
		case <-ctx.Done():
			lastErr = ctx.Err()
			break dial
		case <-time.After(retry.Delay(attempt)):
		}
	}

	_ = client.Close()
	return nil, WithContext(ErrConnection, map[string]interface{}{
		"addr":       opts.Addr,
		"attempts":   retry.MaxRetries,
		"last_error": fmt.Sprint(lastErr),
	})
}

// do runs one command on the shared connection.
func (g *RedisGateway) do(ctx context.Context, args ...interface{}) (interface{}, error) {
	name := strings.ToUpper(fmt.Sprint(args[0]))
	start := time.Now()

	g.mu.Lock()
	res, err := g.conn.Do(ctx, args...).Result()
	g.mu.Unlock()

	g.observe(name, start, err)
	return res, err
}

func (g *RedisGateway) observe(name string, start time.Time, err error) {
	g.metrics.Timing(MetricGatewayLatency, time.Since(start), "command", name)
	if err != nil && !errors.Is(err, redis.Nil) {
		g.metrics.Increment(MetricGatewayErrors, "command", name)
		g.logger.Debug("engine command failed", "command", name, "error", err)
	}
}

// IndexDefinitionArgs returns the FT.CREATE arguments for schema, without the
// command name.
func IndexDefinitionArgs(schema *Schema) []string {
	args := []string{
		schema.IndexName(),
		"ON", "HASH",
		"PREFIX", "1", schema.KeyPrefix(),
		"STOPWORDS", "0",
		"SCHEMA",
	}
	for _, f := range schema.MappedFields() {
		switch {
		case f.AltKey:
			args = append(args, f.Name, "TEXT", "NOINDEX")
		case f.Kind == KindString:
			args = append(args,
				f.Name, "TEXT", "SORTABLE",
				TagField(f.Name), "TAG", "SEPARATOR", TagSeparator,
				ReverseTagField(f.Name), "TAG", "SEPARATOR", TagSeparator,
				SubsetTagField(f.Name), "TAG", "SEPARATOR", TagSeparator,
			)
		case f.Kind == KindDecimal:
			args = append(args, f.Name, "TEXT")
		case f.Kind.IsNumeric():
			args = append(args, f.Name, "NUMERIC", "SORTABLE")
		case f.Kind == KindList:
			args = append(args, f.Name, "TAG", "SEPARATOR", TagSeparator)
		}
	}
	return args
}

func (g *RedisGateway) CreateIndex(ctx context.Context, schema *Schema) error {
	args := []interface{}{"FT.CREATE"}
	for _, a := range IndexDefinitionArgs(schema) {
		args = append(args, a)
	}
	if _, err := g.do(ctx, args...); err != nil {
		return fmt.Errorf("create index %s: %w", schema.IndexName(), err)
	}
	g.logger.Info("index created", "index", schema.IndexName())
	return nil
}

func (g *RedisGateway) DropIndex(ctx context.Context, indexName string) error {
	if _, err := g.do(ctx, "FT.DROPINDEX", indexName); err != nil {
		return fmt.Errorf("drop index %s: %w", indexName, err)
	}
	g.logger.Info("index dropped", "index", indexName)
	return nil
}

func (g *RedisGateway) IndexExists(ctx context.Context, indexName string) (bool, error) {
	_, err := g.do(ctx, "FT.INFO", indexName)
	if err == nil {
		return true, nil
	}
	if isUnknownIndex(err) {
		return false, nil
	}
	return false, fmt.Errorf("index info %s: %w", indexName, err)
}

func isUnknownIndex(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unknown index") || strings.Contains(msg, "no such index")
}

// AddOrReplaceDocuments replaces each hash with DEL then HSET in one pipeline.
func (g *RedisGateway) AddOrReplaceDocuments(ctx context.Context, docs ...*Document) error {
	if len(docs) == 0 {
		return nil
	}
	start := time.Now()

	g.mu.Lock()
	cmds, err := g.conn.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, doc := range docs {
			pipe.Do(ctx, "DEL", doc.ID)
			args := make([]interface{}, 0, 2+doc.Len()*2)
			args = append(args, "HSET", doc.ID)
			for _, name := range doc.names {
				args = append(args, name, doc.values[name])
			}
			pipe.Do(ctx, args...)
		}
		return nil
	})
	g.mu.Unlock()

	g.observe("HSET", start, err)
	if err != nil {
		for _, cmd := range cmds {
			if cmd.Err() != nil {
				return fmt.Errorf("write documents: %s: %w", cmd.Name(), cmd.Err())
			}
		}
		return fmt.Errorf("write documents: %w", err)
	}
	return nil
}

// DeleteDocument deletes the hash, which also removes it from the index.
func (g *RedisGateway) DeleteDocument(ctx context.Context, indexName, id string) error {
	if _, err := g.do(ctx, "DEL", id); err != nil {
		return fmt.Errorf("delete %s from %s: %w", id, indexName, err)
	}
	return nil
}

func (g *RedisGateway) GetDocument(ctx context.Context, key string) (*Document, error) {
	res, err := g.do(ctx, "HGETALL", key)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	fields, err := replyPairs(res)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	if len(fields) == 0 {
		return nil, nil
	}
	return DocumentFromMap(key, fields), nil
}

// SearchArgs returns the FT.SEARCH arguments for q, without the command name.
func SearchArgs(q SearchQuery) []interface{} {
	args := []interface{}{q.Index, q.Filter}
	if q.Sort != nil {
		args = append(args, "SORTBY", q.Sort.Field, q.Sort.Direction())
	}
	args = append(args, "LIMIT", q.Skip, q.Take)
	if len(q.Return) > 0 {
		args = append(args, "RETURN", len(q.Return))
		for _, f := range q.Return {
			args = append(args, f)
		}
	}
	return args
}

// AggregateArgs returns the FT.AGGREGATE arguments for q, without the command name.
func AggregateArgs(q AggregateQuery) []interface{} {
	args := []interface{}{q.Index, q.Filter}
	if len(q.Load) > 0 {
		args = append(args, "LOAD", len(q.Load))
		for _, f := range q.Load {
			args = append(args, "@"+f)
		}
	}
	if len(q.Sort) > 0 {
		args = append(args, "SORTBY", len(q.Sort)*2)
		for _, k := range q.Sort {
			args = append(args, "@"+k.Field, k.Direction())
		}
	}
	args = append(args, "LIMIT", q.Skip, q.Take)
	return args
}

func (g *RedisGateway) Search(ctx context.Context, q SearchQuery) ([]Row, error) {
	res, err := g.do(ctx, append([]interface{}{"FT.SEARCH"}, SearchArgs(q)...)...)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", q.Index, err)
	}
	_, rows, err := parseSearchReply(res)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", q.Index, err)
	}
	return rows, nil
}

func (g *RedisGateway) Aggregate(ctx context.Context, q AggregateQuery) ([]Row, error) {
	res, err := g.do(ctx, append([]interface{}{"FT.AGGREGATE"}, AggregateArgs(q)...)...)
	if err != nil {
		return nil, fmt.Errorf("aggregate %s: %w", q.Index, err)
	}
	rows, err := parseAggregateReply(res)
	if err != nil {
		return nil, fmt.Errorf("aggregate %s: %w", q.Index, err)
	}
	return rows, nil
}

func (g *RedisGateway) Count(ctx context.Context, indexName, filter string) (int64, error) {
	res, err := g.do(ctx, "FT.SEARCH", indexName, filter, "LIMIT", 0, 0)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", indexName, err)
	}
	total, _, err := parseSearchReply(res)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", indexName, err)
	}
	return total, nil
}

func (g *RedisGateway) KeyExists(ctx context.Context, key string) (bool, error) {
	res, err := g.do(ctx, "EXISTS", key)
	if err != nil {
		return false, fmt.Errorf("exists %s: %w", key, err)
	}
	n, ok := res.(int64)
	return ok && n > 0, nil
}

func (g *RedisGateway) Multi(ctx context.Context) error {
	_, err := g.do(ctx, "MULTI")
	return err
}

// Exec commits the bracket. An error reply for any queued command fails the call.
func (g *RedisGateway) Exec(ctx context.Context) error {
	res, err := g.do(ctx, "EXEC")
	if err != nil {
		return fmt.Errorf("exec: %w", err)
	}
	replies, ok := res.([]interface{})
	if !ok {
		return fmt.Errorf("exec: transaction aborted")
	}
	for i, r := range replies {
		if e, ok := r.(error); ok {
			return fmt.Errorf("exec: command %d: %w", i, e)
		}
	}
	return nil
}

func (g *RedisGateway) Discard(ctx context.Context) error {
	_, err := g.do(ctx, "DISCARD")
	return err
}

func (g *RedisGateway) FlushAll(ctx context.Context) error {
	_, err := g.do(ctx, "FLUSHALL")
	return err
}

func (g *RedisGateway) Ping(ctx context.Context) error {
	_, err := g.do(ctx, "PING")
	return err
}

// Close releases the connection, and the client when the gateway dialed it.
func (g *RedisGateway) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	var errs []error
	if err := g.conn.Close(); err != nil {
		errs = append(errs, fmt.Errorf("conn close: %w", err))
	}
	if g.ownsClient {
		if err := g.client.Close(); err != nil {
			errs = append(errs, fmt.Errorf("client close: %w", err))
		}
	}
	return errors.Join(errs...)
}

// parseSearchReply reads a RESP2 FT.SEARCH reply: total, then id and field
// list pairs.
func parseSearchReply(reply interface{}) (int64, []Row, error) {
	items, ok := reply.([]interface{})
	if !ok || len(items) == 0 {
		return 0, nil, fmt.Errorf("unexpected search reply %T", reply)
	}
	total, err := replyInt(items[0])
	if err != nil {
		return 0, nil, err
	}

	rest := items[1:]
	if len(rest)%2 != 0 {
		return 0, nil, fmt.Errorf("search reply has %d trailing items", len(rest))
	}
	rows := make([]Row, 0, len(rest)/2)
	for i := 0; i < len(rest); i += 2 {
		fields, err := replyPairs(rest[i+1])
		if err != nil {
			return 0, nil, err
		}
		rows = append(rows, Row(fields))
	}
	return total, rows, nil
}

// parseAggregateReply reads a RESP2 FT.AGGREGATE reply: count, then field lists.
func parseAggregateReply(reply interface{}) ([]Row, error) {
	items, ok := reply.([]interface{})
	if !ok || len(items) == 0 {
		return nil, fmt.Errorf("unexpected aggregate reply %T", reply)
	}
	rows := make([]Row, 0, len(items)-1)
	for _, item := range items[1:] {
		fields, err := replyPairs(item)
		if err != nil {
			return nil, err
		}
		rows = append(rows, Row(fields))
	}
	return rows, nil
}

// replyPairs reads a flat name/value list into a map.
func replyPairs(reply interface{}) (map[string]string, error) {
	if reply == nil {
		return map[string]string{}, nil
	}
	if m, ok := reply.(map[interface{}]interface{}); ok {
		out := make(map[string]string, len(m))
		for k, v := range m {
			out[replyString(k)] = replyString(v)
		}
		return out, nil
	}
	items, ok := reply.([]interface{})
	if !ok {
		return nil, fmt.Errorf("unexpected field list %T", reply)
	}
	if len(items)%2 != 0 {
		return nil, fmt.Errorf("odd field list length %d", len(items))
	}
	out := make(map[string]string, len(items)/2)
	for i := 0; i < len(items); i += 2 {
		out[replyString(items[i])] = replyString(items[i+1])
	}
	return out, nil
}

func replyInt(v interface{}) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case string:
		return strconv.ParseInt(n, 10, 64)
	}
	return 0, fmt.Errorf("unexpected integer reply %T", v)
}

func replyString(v interface{}) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case []byte:
		return string(s)
	case int64:
		return strconv.FormatInt(s, 10)
	case float64:
		return strconv.FormatFloat(s, 'g', -1, 64)
	}
	return fmt.Sprint(v)
}
