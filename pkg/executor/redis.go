package executor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sandboxlab/sandbox-core/pkg/sberrors"
)

// noKeyCommands take no key argument at all; left untouched by prefixing.
var noKeyCommands = map[string]bool{
	"PING": true, "MULTI": true, "EXEC": true, "DISCARD": true, "UNWATCH": true,
	"ECHO": true, "DBSIZE": true, "TIME": true, "INFO": true, "RANDOMKEY": true,
}

// allArgsKeyCommands take a key in every positional argument.
var allArgsKeyCommands = map[string]bool{
	"DEL": true, "EXISTS": true, "UNLINK": true, "MGET": true,
	"SDIFF": true, "SINTER": true, "SUNION": true, "WATCH": true,
}

// twoKeyCommands take exactly two key arguments, both in the first two
// positions.
var twoKeyCommands = map[string]bool{
	"RENAME": true, "RENAMENX": true, "RPOPLPUSH": true, "LMOVE": true,
	"SMOVE": true, "SDIFFSTORE": true, "SINTERSTORE": true, "SUNIONSTORE": true,
}

// RedisExecutor implements Executor against a Redis instance, rewriting
// every key argument with a per-session prefix so sessions sharing one
// Redis instance stay isolated without separate logical databases, per
// spec.md §4.2's Redis key-prefix isolation rules.
type RedisExecutor struct {
	host      string
	port      int
	keyPrefix string
	client    *redis.Client
}

func NewRedisExecutor(host string, port int, keyPrefix string) *RedisExecutor {
	return &RedisExecutor{host: host, port: port, keyPrefix: keyPrefix}
}

func (e *RedisExecutor) Connect(ctx context.Context) error {
	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", e.host, e.port),
		DialTimeout:  10 * time.Second,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		Protocol:     2, // RESP2: HGETALL stays the flat array normalizeReply expects
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return sberrors.NewConnectionFailed("failed to connect to redis", err)
	}
	e.client = client
	return nil
}

func (e *RedisExecutor) Disconnect() {
	if e.client != nil {
		_ = e.client.Close()
		e.client = nil
	}
}

func (e *RedisExecutor) IsConnected(ctx context.Context) bool {
	if e.client == nil {
		return false
	}
	return e.client.Ping(ctx).Err() == nil
}

func (e *RedisExecutor) Execute(ctx context.Context, query string, timeout int) (Result, error) {
	if e.client == nil {
		return Result{}, sberrors.NewConnectionFailed("not connected to database", nil)
	}

	tokens := tokenizeRedisCommand(query)
	if len(tokens) == 0 {
		return Failed("empty command"), nil
	}

	rewritten := e.applyKeyPrefix(tokens)

	qctx, cancel := context.WithTimeout(ctx, time.Duration(timeout)*time.Second)
	defer cancel()

	args := make([]interface{}, len(rewritten))
	for i, t := range rewritten {
		args[i] = t
	}

	start := time.Now()
	reply, err := e.client.Do(qctx, args...).Result()
	elapsed := time.Since(start).Milliseconds()
	if err != nil {
		if err == redis.Nil {
			return Ok([]string{"result"}, [][]interface{}{{nil}}, elapsed), nil
		}
		if qctx.Err() == context.DeadlineExceeded {
			return Result{}, sberrors.NewTimeout(fmt.Sprintf("query exceeded %ds timeout", timeout))
		}
		return Failed(err.Error()), nil
	}

	command := strings.ToUpper(tokens[0])
	columns, rows := e.normalizeReply(command, reply)
	return Ok(columns, rows, elapsed), nil
}

// prefixed returns the key K rewritten as "<isolation_id>:K".
func (e *RedisExecutor) prefixed(key string) string {
	return e.keyPrefix + ":" + key
}

// applyKeyPrefix rewrites the key-bearing arguments of a tokenized Redis
// command with this session's key prefix, per spec.md §4.2's
// classification table. Every session gets its own namespace of this
// form instead of a dedicated numbered database, removing the old
// 15-tenant cap that numbered databases imposed.
func (e *RedisExecutor) applyKeyPrefix(tokens []string) []string {
	if e.keyPrefix == "" || len(tokens) < 2 {
		return tokens
	}
	command := strings.ToUpper(tokens[0])
	out := append([]string(nil), tokens...)

	switch {
	case noKeyCommands[command]:
		// no key arguments to rewrite

	case command == "KEYS":
		out[1] = e.prefixed(out[1])

	case allArgsKeyCommands[command]:
		for i := 1; i < len(out); i++ {
			out[i] = e.prefixed(out[i])
		}

	case command == "MSET" || command == "MSETNX":
		for i := 1; i < len(out); i += 2 {
			out[i] = e.prefixed(out[i])
		}

	case twoKeyCommands[command]:
		for i := 1; i < len(out) && i <= 2; i++ {
			out[i] = e.prefixed(out[i])
		}

	default:
		out[1] = e.prefixed(out[1])
	}
	return out
}

// hashReplyCommands return a reply shaped as a flat key,value,key,value,...
// array that normalizes to two columns instead of one row per element.
var hashReplyCommands = map[string]bool{
	"HGETALL": true,
}

// normalizeReply maps a raw go-redis reply into the common tabular
// shape, per spec.md §4.2's key-value normalization rules: a scalar
// (string, integer, float, boolean, or nil) becomes a single row under
// "result"; HGETALL's flat key/value pairs become two columns "key",
// "value"; every other array reply (KEYS, LRANGE, SMEMBERS, HKEYS, ...)
// becomes one row per element under "result". KEYS results have this
// session's key prefix stripped back off.
func (e *RedisExecutor) normalizeReply(command string, reply interface{}) ([]string, [][]interface{}) {
	items, isArray := reply.([]interface{})
	if !isArray {
		return []string{"result"}, [][]interface{}{{e.scalar(command, reply)}}
	}

	if hashReplyCommands[command] {
		rows := make([][]interface{}, 0, (len(items)+1)/2)
		for i := 0; i+1 < len(items); i += 2 {
			rows = append(rows, []interface{}{e.scalar(command, items[i]), e.scalar(command, items[i+1])})
		}
		return []string{"key", "value"}, rows
	}

	rows := make([][]interface{}, len(items))
	for i, item := range items {
		rows[i] = []interface{}{e.scalar(command, item)}
	}
	return []string{"result"}, rows
}

// scalar unwraps a single reply element, stripping this session's key
// prefix off KEYS output and recursing one level into nested arrays
// (e.g. a transaction's per-command replies).
func (e *RedisExecutor) scalar(command string, v interface{}) interface{} {
	if nested, ok := v.([]interface{}); ok {
		out := make([]interface{}, len(nested))
		for i, item := range nested {
			out[i] = e.scalar(command, item)
		}
		return out
	}
	if s, ok := v.(string); ok && command == "KEYS" && e.keyPrefix != "" {
		return strings.TrimPrefix(s, e.keyPrefix+":")
	}
	return v
}

func (e *RedisExecutor) InitSchema(ctx context.Context, schemaSQL string) Result {
	return e.runScript(ctx, schemaSQL, "Schema initialization failed")
}

func (e *RedisExecutor) LoadSeed(ctx context.Context, seedSQL string) Result {
	return e.runScript(ctx, seedSQL, "Data loading failed")
}

func (e *RedisExecutor) runScript(ctx context.Context, script, failurePrefix string) Result {
	if strings.TrimSpace(script) == "" {
		return Result{Success: true}
	}
	for _, line := range strings.Split(script, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "//") {
			continue
		}
		res, err := e.Execute(ctx, line, 30)
		if err != nil {
			return Failed(fmt.Sprintf("%s: %v", failurePrefix, err))
		}
		if !res.Success {
			return Failed(fmt.Sprintf("%s: %s", failurePrefix, res.ErrorMessage))
		}
	}
	return Result{Success: true}
}

// Reset removes every key under this session's prefix via SCAN+DEL. When
// no prefix is configured (a non-sessioned stateless call) it falls back
// to flushing the whole logical database.
func (e *RedisExecutor) Reset(ctx context.Context) {
	if e.client == nil {
		return
	}
	if e.keyPrefix == "" {
		_ = e.client.FlushDB(ctx).Err()
		return
	}

	var cursor uint64
	for {
		keys, next, err := e.client.Scan(ctx, cursor, e.keyPrefix+":*", 100).Result()
		if err != nil {
			return
		}
		if len(keys) > 0 {
			_ = e.client.Del(ctx, keys...).Err()
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
}

// tokenizeRedisCommand splits a command line on whitespace while
// honoring single and double quoted arguments, matching the shell-style
// tokens Redis clients normally produce.
func tokenizeRedisCommand(line string) []string {
	var tokens []string
	var current strings.Builder
	var quote rune
	inQuotes := false

	flush := func() {
		if current.Len() > 0 {
			tokens = append(tokens, current.String())
			current.Reset()
		}
	}

	for _, r := range strings.TrimSpace(line) {
		switch {
		case inQuotes:
			if r == quote {
				inQuotes = false
			} else {
				current.WriteRune(r)
			}
		case r == '\'' || r == '"':
			inQuotes = true
			quote = r
		case r == ' ' || r == '\t':
			flush()
		default:
			current.WriteRune(r)
		}
	}
	flush()
	return tokens
}
