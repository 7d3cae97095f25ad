package session

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	putStatusOK       int64 = 0
	putStatusConflict int64 = 1
	putStatusCorrupt  int64 = 2

	minRedisTTL  = time.Second
	scanPageSize = 512
)

// putRecordScript implements the version compare-and-swap server side. The
// stored envelope is parsed just far enough to reach the version counter:
// format byte, id length byte, id bytes, then an 8-byte big-endian version.
const putRecordScript = `
local function read_be64(s, i)
  local v = 0
  for off = 0, 7 do
    local b = string.byte(s, i + off)
    if not b then
      return nil
    end
    v = v * 256 + b
  end
  return v
end

local function parse_version(data)
  local format = string.byte(data, 1)
  if format ~= 1 then
    return nil
  end
  local id_len = string.byte(data, 2)
  if not id_len or id_len == 0 then
    return nil
  end
  return read_be64(data, 3 + id_len)
end

local expected = tonumber(ARGV[1])
local current = redis.call("GET", KEYS[1])

if expected == 0 then
  if current then
    return 1
  end
else
  if not current then
    return 1
  end
  local version = parse_version(current)
  if not version then
    return 2
  end
  if version ~= expected then
    return 1
  end
end

redis.call("SET", KEYS[1], ARGV[2], "PX", ARGV[3])
return 0
`

var putRecordLua = redis.NewScript(putRecordScript)

// RedisStore implements [Store] on a Redis keyspace. Key TTLs are set to the
// record expiry plus the configured grace window, so Redis expiration
// backstops the reaper without preempting lazy-expiration reads.
type RedisStore struct {
	redis  redis.UniversalClient
	prefix string
	grace  time.Duration
}

// NewRedisStore creates a session [Store] backed by the given Redis client.
// prefix sets the key namespace; grace is the window a logically expired
// record stays readable before Redis drops it.
func NewRedisStore(client redis.UniversalClient, prefix string, grace time.Duration) *RedisStore {
	if prefix == "" {
		prefix = "gs"
	}
	if grace < 0 {
		grace = 0
	}
	return &RedisStore{redis: client, prefix: prefix, grace: grace}
}

func (s *RedisStore) key(id string) string {
	return s.prefix + ":" + id
}

// Put commits rec through the Lua compare-and-swap.
func (s *RedisStore) Put(ctx context.Context, rec *Record, expectedVersion uint64) error {
	if rec == nil || rec.ID == "" {
		return errors.New("invalid session record id")
	}

	data, err := Encode(rec)
	if err != nil {
		return err
	}

	px := time.Until(time.Unix(0, rec.ExpiresAt)) + s.grace
	if px < minRedisTTL {
		px = minRedisTTL
	}

	result, err := putRecordLua.Run(
		ctx,
		s.redis,
		[]string{s.key(rec.ID)},
		expectedVersion,
		data,
		px.Milliseconds(),
	).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	status, ok := result.(int64)
	if !ok {
		return fmt.Errorf("%w: invalid put script response", ErrStoreUnavailable)
	}

	switch status {
	case putStatusOK:
		return nil
	case putStatusConflict:
		return fmt.Errorf("%w: expected %d", ErrVersionConflict, expectedVersion)
	case putStatusCorrupt:
		return fmt.Errorf("%w: stored envelope unparseable", ErrCorruptRecord)
	default:
		return fmt.Errorf("%w: unknown put script status %d", ErrStoreUnavailable, status)
	}
}

// Get fetches and decodes the record for id.
func (s *RedisStore) Get(ctx context.Context, id string) (*Record, error) {
	data, err := s.redis.Get(ctx, s.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	return Decode(data)
}

// Delete removes the record key. Deleting an absent id fails with
// [ErrNotFound] so callers can distinguish races from first deletion.
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	removed, err := s.redis.Del(ctx, s.key(id)).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if removed == 0 {
		return ErrNotFound
	}
	return nil
}

// ListIDs scans the key namespace in pages. SCAN guarantees are inherited:
// ids present for the whole sweep are seen at least once, concurrent churn is
// best-effort.
func (s *RedisStore) ListIDs(ctx context.Context) iter.Seq2[string, error] {
	pattern := s.prefix + ":*"
	trim := s.prefix + ":"

	return func(yield func(string, error) bool) {
		var cursor uint64
		for {
			keys, next, err := s.redis.Scan(ctx, cursor, pattern, scanPageSize).Result()
			if err != nil {
				yield("", fmt.Errorf("%w: %v", ErrStoreUnavailable, err))
				return
			}
			for _, key := range keys {
				id := strings.TrimPrefix(key, trim)
				if id == "" {
					continue
				}
				if !yield(id, nil) {
					return
				}
			}
			cursor = next
			if cursor == 0 {
				return
			}
		}
	}
}
