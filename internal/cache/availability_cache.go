package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"event-booking-api/internal/model"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrCacheMiss 快取中沒有該活動的座位快照
var ErrCacheMiss = errors.New("availability cache miss")

type AvailabilityCache interface {
	// 寫入：只有版本較新時才覆蓋 (使用Lua腳本確保原子性)
	Set(ctx context.Context, availability model.Availability) (bool, error)
	// 讀取：取得活動座位快照
	Get(ctx context.Context, eventID uuid.UUID) (model.Availability, error)
	// 刪除：活動被刪除時清除快照
	Invalidate(ctx context.Context, eventID uuid.UUID) error
}

type RedisAvailabilityCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisAvailabilityCache(client *redis.Client, ttl time.Duration) AvailabilityCache {
	return &RedisAvailabilityCache{
		client: client,
		ttl:    ttl,
	}
}

func (c *RedisAvailabilityCache) key(eventID uuid.UUID) string {
	return fmt.Sprintf("event:%s:availability", eventID)
}

// 提交後的刷新可能亂序抵達，舊版本不得覆蓋新版本
var setAvailabilityScript = redis.NewScript(`
	local key = KEYS[1]
	local version = tonumber(ARGV[1])
	local ttl_ms = tonumber(ARGV[5])

	local current = redis.call('HGET', key, 'version')
	if current and tonumber(current) >= version then
		return 0
	end

	redis.call('HSET', key,
		'version', ARGV[1],
		'available', ARGV[2],
		'total', ARGV[3],
		'status', ARGV[4])
	if ttl_ms > 0 then
		redis.call('PEXPIRE', key, ttl_ms)
	end
	return 1
`)

func (c *RedisAvailabilityCache) Set(ctx context.Context, a model.Availability) (bool, error) {
	res, err := setAvailabilityScript.Run(ctx, c.client, []string{c.key(a.EventID)},
		a.Version, a.AvailableSeats, a.TotalSeats, string(a.Status), c.ttl.Milliseconds(),
	).Int()
	if err != nil {
		return false, err
	}
	return res == 1, nil
}

func (c *RedisAvailabilityCache) Get(ctx context.Context, eventID uuid.UUID) (model.Availability, error) {
	result, err := c.client.HGetAll(ctx, c.key(eventID)).Result()
	if err != nil {
		return model.Availability{}, err
	}

	// 檢查 key 是否存在
	if len(result) == 0 {
		return model.Availability{}, ErrCacheMiss
	}

	available, err := strconv.Atoi(result["available"])
	if err != nil {
		return model.Availability{}, fmt.Errorf("invalid available: %w", err)
	}

	total, err := strconv.Atoi(result["total"])
	if err != nil {
		return model.Availability{}, fmt.Errorf("invalid total: %w", err)
	}

	version, err := strconv.ParseInt(result["version"], 10, 64)
	if err != nil {
		return model.Availability{}, fmt.Errorf("invalid version: %w", err)
	}

	return model.Availability{
		EventID:        eventID,
		AvailableSeats: available,
		TotalSeats:     total,
		Status:         model.EventStatus(result["status"]),
		Version:        version,
	}, nil
}

func (c *RedisAvailabilityCache) Invalidate(ctx context.Context, eventID uuid.UUID) error {
	return c.client.Del(ctx, c.key(eventID)).Err()
}
