package validator

import (
	"fmt"
	"strings"
)

// redisAllowedCommands is the whitelist of data commands a student may
// run directly against their sandbox Redis instance.
var redisAllowedCommands = map[string]bool{
	// Strings
	"SET": true, "GET": true, "MSET": true, "MGET": true, "APPEND": true, "STRLEN": true,
	"INCR": true, "INCRBY": true, "INCRBYFLOAT": true, "DECR": true, "DECRBY": true,
	"SETNX": true, "SETEX": true, "PSETEX": true, "GETSET": true, "GETRANGE": true, "SETRANGE": true,
	"GETDEL": true,

	// Keys
	"DEL": true, "EXISTS": true, "EXPIRE": true, "EXPIREAT": true, "TTL": true, "PTTL": true,
	"PERSIST": true, "TYPE": true, "RENAME": true, "RENAMENX": true, "RANDOMKEY": true,
	"SCAN": true, "OBJECT": true,
	"KEYS": true, // allowed -- sandbox is isolated and small

	// Hashes
	"HSET": true, "HGET": true, "HMSET": true, "HMGET": true, "HGETALL": true, "HDEL": true,
	"HEXISTS": true, "HKEYS": true, "HVALS": true, "HLEN": true, "HINCRBY": true, "HINCRBYFLOAT": true,
	"HSETNX": true, "HSCAN": true,

	// Lists
	"LPUSH": true, "RPUSH": true, "LPOP": true, "RPOP": true, "LRANGE": true, "LLEN": true,
	"LINDEX": true, "LSET": true, "LINSERT": true, "LREM": true, "LTRIM": true,
	"RPOPLPUSH": true, "LMOVE": true, "LPOS": true,

	// Sets
	"SADD": true, "SREM": true, "SMEMBERS": true, "SISMEMBER": true, "SCARD": true,
	"SUNION": true, "SINTER": true, "SDIFF": true,
	"SUNIONSTORE": true, "SINTERSTORE": true, "SDIFFSTORE": true,
	"SRANDMEMBER": true, "SPOP": true, "SMOVE": true, "SSCAN": true,

	// Sorted sets
	"ZADD": true, "ZREM": true, "ZSCORE": true, "ZRANK": true, "ZREVRANK": true,
	"ZRANGE": true, "ZREVRANGE": true, "ZRANGEBYSCORE": true, "ZREVRANGEBYSCORE": true,
	"ZCARD": true, "ZCOUNT": true, "ZINCRBY": true,
	"ZUNIONSTORE": true, "ZINTERSTORE": true,
	"ZRANGEBYLEX": true, "ZLEXCOUNT": true, "ZSCAN": true,
	"ZPOPMIN": true, "ZPOPMAX": true, "ZRANGESTORE": true, "ZMSCORE": true,

	// HyperLogLog
	"PFADD": true, "PFCOUNT": true, "PFMERGE": true,

	// Streams
	"XADD": true, "XLEN": true, "XRANGE": true, "XREVRANGE": true, "XREAD": true,
	"XINFO": true, "XTRIM": true,

	// Pub/Sub
	"PUBLISH": true, "SUBSCRIBE": true, "UNSUBSCRIBE": true,

	// Geo
	"GEOADD": true, "GEODIST": true, "GEOHASH": true, "GEOPOS": true,
	"GEORADIUS": true, "GEORADIUSBYMEMBER": true, "GEOSEARCH": true, "GEOSEARCHSTORE": true,

	// Utility
	"PING": true, "ECHO": true, "DBSIZE": true, "TIME": true,
	"MULTI": true, "EXEC": true, "DISCARD": true, "WATCH": true, "UNWATCH": true,
	"SORT": true,

	// Info
	"INFO": true,
}

// redisDangerousCommands maps specific disallowed commands to a targeted
// rejection message, used when a command falls outside the whitelist but
// is common enough to deserve a precise explanation.
var redisDangerousCommands = map[string]category{
	"CONFIG":       catServerConfig,
	"FLUSHALL":     catDestructive,
	"FLUSHDB":      catDestructive,
	"SHUTDOWN":     catDestructive,
	"SLAVEOF":      catReplication,
	"REPLICAOF":    catReplication,
	"DEBUG":        catSystemCmd,
	"MODULE":       catExtension,
	"ACL":          catAuth,
	"AUTH":         catAuth,
	"BGSAVE":       catServerConfig,
	"BGREWRITEAOF": catServerConfig,
	"SAVE":         catServerConfig,
	"MIGRATE":      catNetwork,
	"CLUSTER":      catServerConfig,
	"CLIENT":       catInfoLeak,
	"COMMAND":      catInfoLeak,
	"LATENCY":      catInfoLeak,
	"MEMORY":       catInfoLeak,
	"SLOWLOG":      catInfoLeak,
	"SWAPDB":       catDestructive,
	"SELECT":       catServerConfig,
	"MONITOR":      catInfoLeak,
	"WAIT":         catServerConfig,
	"RESTORE":      catServerConfig,
	"DUMP":         catInfoLeak,
	"SCRIPT":       catSystemCmd,
	"EVAL":         catSystemCmd,
	"EVALSHA":      catSystemCmd,
	"FUNCTION":     catSystemCmd,
	"FCALL":        catSystemCmd,
}

// ValidateRedis checks a command against the whitelist, falling back to
// a targeted message for commonly attempted disallowed commands and a
// generic one for everything else.
func ValidateRedis(query string) error {
	fields := strings.Fields(query)
	if len(fields) == 0 {
		return nil
	}

	command := strings.ToUpper(fields[0])
	if redisAllowedCommands[command] {
		return nil
	}

	if cat, ok := redisDangerousCommands[command]; ok {
		return blockedError(messages[cat])
	}
	return blockedError(fmt.Sprintf(
		"The command '%s' is not available in the sandbox. Stick to data commands like GET, SET, HSET, LPUSH, ZADD, etc.",
		command,
	))
}
