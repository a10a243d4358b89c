package executor

import (
	"context"
	"net"
	"strconv"
	"testing"

	"github.com/alicebob/miniredis/v2"
)

func newTestRedisExecutor(t *testing.T, keyPrefix string) (*RedisExecutor, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	host, portStr, err := net.SplitHostPort(mr.Addr())
	if err != nil {
		t.Fatalf("split addr: %v", err)
	}
	port, _ := strconv.Atoi(portStr)
	e := NewRedisExecutor(host, port, keyPrefix)
	if err := e.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(e.Disconnect)
	return e, mr
}

func TestRedisExecutor_SetGetWithKeyPrefix(t *testing.T) {
	e, mr := newTestRedisExecutor(t, "s_abc123")
	ctx := context.Background()

	if _, err := e.Execute(ctx, "SET counter 1", 5); err != nil {
		t.Fatalf("set: %v", err)
	}
	if !mr.Exists("s_abc123:counter") {
		t.Fatal("expected key to be stored under the isolation prefix")
	}

	result, err := e.Execute(ctx, "GET counter", 5)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if result.Rows[0][0] != "1" {
		t.Fatalf("unexpected value: %v", result.Rows[0][0])
	}
}

func TestRedisExecutor_KeysStripsPrefixOnOutput(t *testing.T) {
	e, _ := newTestRedisExecutor(t, "s_abc123")
	ctx := context.Background()

	if _, err := e.Execute(ctx, "SET foo bar", 5); err != nil {
		t.Fatalf("set: %v", err)
	}
	result, err := e.Execute(ctx, "KEYS *", 5)
	if err != nil {
		t.Fatalf("keys: %v", err)
	}
	if len(result.Columns) != 1 || result.Columns[0] != "result" {
		t.Fatalf("expected a single result column, got %v", result.Columns)
	}
	if len(result.Rows) != 1 {
		t.Fatalf("expected one row per key, got %d rows: %#v", len(result.Rows), result.Rows)
	}
	if result.Rows[0][0] != "foo" {
		t.Fatalf("expected unprefixed key name, got %v", result.Rows[0][0])
	}
}

func TestRedisExecutor_LRangeProducesOneRowPerElement(t *testing.T) {
	e, _ := newTestRedisExecutor(t, "s_abc123")
	ctx := context.Background()

	if _, err := e.Execute(ctx, "RPUSH mylist a b c", 5); err != nil {
		t.Fatalf("rpush: %v", err)
	}
	result, err := e.Execute(ctx, "LRANGE mylist 0 -1", 5)
	if err != nil {
		t.Fatalf("lrange: %v", err)
	}
	if len(result.Columns) != 1 || result.Columns[0] != "result" {
		t.Fatalf("expected a single result column, got %v", result.Columns)
	}
	want := []string{"a", "b", "c"}
	if len(result.Rows) != len(want) {
		t.Fatalf("expected %d rows, got %d: %#v", len(want), len(result.Rows), result.Rows)
	}
	for i, v := range want {
		if result.Rows[i][0] != v {
			t.Fatalf("row %d: expected %q, got %v", i, v, result.Rows[i][0])
		}
	}
}

func TestRedisExecutor_SMembersProducesOneRowPerElement(t *testing.T) {
	e, _ := newTestRedisExecutor(t, "s_abc123")
	ctx := context.Background()

	if _, err := e.Execute(ctx, "SADD tags red green blue", 5); err != nil {
		t.Fatalf("sadd: %v", err)
	}
	result, err := e.Execute(ctx, "SMEMBERS tags", 5)
	if err != nil {
		t.Fatalf("smembers: %v", err)
	}
	if len(result.Rows) != 3 {
		t.Fatalf("expected 3 rows, got %d: %#v", len(result.Rows), result.Rows)
	}
	seen := map[string]bool{}
	for _, row := range result.Rows {
		s, ok := row[0].(string)
		if !ok {
			t.Fatalf("expected string member, got %#v", row[0])
		}
		seen[s] = true
	}
	for _, want := range []string{"red", "green", "blue"} {
		if !seen[want] {
			t.Fatalf("expected member %q in result, got %#v", want, result.Rows)
		}
	}
}

func TestRedisExecutor_HGetAllProducesKeyValueColumns(t *testing.T) {
	e, _ := newTestRedisExecutor(t, "s_abc123")
	ctx := context.Background()

	if _, err := e.Execute(ctx, "HSET user:1 name John age 30", 5); err != nil {
		t.Fatalf("hset: %v", err)
	}
	result, err := e.Execute(ctx, "HGETALL user:1", 5)
	if err != nil {
		t.Fatalf("hgetall: %v", err)
	}
	if len(result.Columns) != 2 || result.Columns[0] != "key" || result.Columns[1] != "value" {
		t.Fatalf("expected key,value columns, got %v", result.Columns)
	}
	if len(result.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d: %#v", len(result.Rows), result.Rows)
	}
	fields := map[string]string{}
	for _, row := range result.Rows {
		k, _ := row[0].(string)
		v, _ := row[1].(string)
		fields[k] = v
	}
	if fields["name"] != "John" || fields["age"] != "30" {
		t.Fatalf("unexpected fields: %#v", fields)
	}
}

func TestRedisExecutor_MultiKeyCommandPrefixesEveryArg(t *testing.T) {
	e, mr := newTestRedisExecutor(t, "s_abc123")
	ctx := context.Background()

	if _, err := e.Execute(ctx, "MSET a 1 b 2", 5); err != nil {
		t.Fatalf("mset: %v", err)
	}
	if !mr.Exists("s_abc123:a") || !mr.Exists("s_abc123:b") {
		t.Fatal("expected both keys to carry the isolation prefix")
	}

	if _, err := e.Execute(ctx, "DEL a b", 5); err != nil {
		t.Fatalf("del: %v", err)
	}
	if mr.Exists("s_abc123:a") || mr.Exists("s_abc123:b") {
		t.Fatal("expected both keys to be removed")
	}
}

func TestRedisExecutor_ResetRemovesOnlyPrefixedKeys(t *testing.T) {
	e, mr := newTestRedisExecutor(t, "s_abc123")
	ctx := context.Background()

	if _, err := e.Execute(ctx, "SET mine 1", 5); err != nil {
		t.Fatalf("set: %v", err)
	}
	mr.Set("other:theirs", "1")

	e.Reset(ctx)

	if mr.Exists("s_abc123:mine") {
		t.Fatal("expected session key to be removed by reset")
	}
	if !mr.Exists("other:theirs") {
		t.Fatal("expected unrelated key to survive reset")
	}
}
