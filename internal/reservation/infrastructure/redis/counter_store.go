package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/dmehra2102/Reservation-System/internal/reservation/domain"
)

// decrementIfPositive treats a missing key as ARGV[1] and returns
// {changed, value}.
var decrementIfPositive = redis.NewScript(`
local v = redis.call('GET', KEYS[1])
if not v then v = ARGV[1] end
v = tonumber(v)
if v == nil or v ~= math.floor(v) then
	return redis.error_reply('malformed counter')
end
if v <= 0 then
	return {0, v}
end
v = v - 1
redis.call('SET', KEYS[1], string.format('%d', v))
return {1, v}
`)

// CounterStore keeps counters as decimal strings in redis.
type CounterStore struct {
	log *slog.Logger
	rdb redis.Cmdable
}

func NewCounterStore(log *slog.Logger, rdb redis.Cmdable) *CounterStore {
	return &CounterStore{log: log, rdb: rdb}
}

func (s *CounterStore) Get(ctx context.Context, key string) (int64, bool, error) {
	raw, err := s.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		s.log.Error("counter read failed", "key", key, "err", err)
		return 0, false, fmt.Errorf("get %s: %w: %w", key, domain.ErrStoreUnavailable, err)
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("get %s: %q: %w", key, raw, domain.ErrMalformedCounter)
	}
	return n, true, nil
}

func (s *CounterStore) Set(ctx context.Context, key string, value int64) error {
	if value < 0 {
		return fmt.Errorf("set %s=%d: %w", key, value, domain.ErrNegativeCounter)
	}
	if err := s.rdb.Set(ctx, key, strconv.FormatInt(value, 10), 0).Err(); err != nil {
		s.log.Error("counter write failed", "key", key, "err", err)
		return fmt.Errorf("set %s: %w: %w", key, domain.ErrStoreUnavailable, err)
	}
	return nil
}

func (s *CounterStore) DecrementIfPositive(ctx context.Context, key string, initial int64) (int64, bool, error) {
	res, err := decrementIfPositive.Run(ctx, s.rdb, []string{key}, initial).Int64Slice()
	if err != nil {
		if strings.Contains(err.Error(), "malformed counter") {
			return 0, false, fmt.Errorf("decrement %s: %w", key, domain.ErrMalformedCounter)
		}
		s.log.Error("counter decrement failed", "key", key, "err", err)
		return 0, false, fmt.Errorf("decrement %s: %w: %w", key, domain.ErrStoreUnavailable, err)
	}
	if len(res) != 2 {
		return 0, false, fmt.Errorf("decrement %s: unexpected reply %v", key, res)
	}
	return res[1], res[0] == 1, nil
}
