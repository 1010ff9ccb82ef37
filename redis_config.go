package rediswork

import (
	"os"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// RedisOptions returns redis.Options populated from standard environment variables.
//
// Environment variables read (with defaults):
//   - REDIS_ADDR (default: "localhost:6379")
//   - REDIS_PASSWORD (default: "")
//   - REDIS_DB (default: 0)
//
// The returned options pin the connection to RESP2 because search and aggregate
// replies are parsed as flat arrays.
func RedisOptions() *redis.Options {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = DefaultAddr
	}

	password := os.Getenv("REDIS_PASSWORD")

	db := getEnvAsInt("REDIS_DB", 0)

	return &redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
		Protocol: 2,
	}
}

// searchOptions returns a copy of opts pinned to RESP2. nil yields RedisOptions().
func searchOptions(opts *redis.Options) *redis.Options {
	if opts == nil {
		return RedisOptions()
	}
	o := *opts
	o.Protocol = 2
	return &o
}

// RedisOptionsForAddr returns RedisOptions with the endpoint replaced by addr.
// An empty addr keeps the environment value.
func RedisOptionsForAddr(addr string) *redis.Options {
	opts := RedisOptions()
	if addr != "" {
		opts.Addr = addr
	}
	return opts
}

// getEnvAsInt reads an integer environment variable with a default fallback.
func getEnvAsInt(key string, defaultVal int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultVal
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultVal
	}

	return value
}
