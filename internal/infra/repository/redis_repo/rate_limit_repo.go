package redis_repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisClient 只需要 Eval, 方便測試替換
type RedisClient interface {
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

type IRateLimitRepository interface {
	// Allow 取一個 token, 回傳是否放行
	Allow(ctx context.Context, key string) (bool, error)
}

type RateLimitConfig struct {
	Capacity int
	RatePS   int // tokens/秒
	TTL      time.Duration
}

func GetDefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		Capacity: 10,
		RatePS:   1,
		TTL:      time.Minute,
	}
}

var ErrRateLimitScript = errors.New("rate limit script returned unexpected result")

// 結構:
//
//	ratelimit:{key}: {
//		tokens: 9.5,
//		last_refill: 1700000000000000000,
//	}
const tokenBucketScript = `
	local key = KEYS[1]
	local capacity = tonumber(ARGV[1])
	local rate = tonumber(ARGV[2])
	local now = tonumber(ARGV[3])
	local ttl = tonumber(ARGV[4])

	local bucket = redis.call('HMGET', key, 'tokens', 'last_refill')
	local currentTokens = tonumber(bucket[1])
	local lastRefill = tonumber(bucket[2])

	-- key 不存在時以滿桶初始化
	if currentTokens == nil then
		currentTokens = capacity
		lastRefill = now
	end

	local elapsedSeconds = math.max(0, now - lastRefill) / 1000000000
	currentTokens = math.min(capacity, currentTokens + elapsedSeconds * rate)

	local allowed = 0
	if currentTokens >= 1 then
		currentTokens = currentTokens - 1
		allowed = 1
	end

	redis.call('HSET', key, 'tokens', tostring(currentTokens), 'last_refill', now)
	redis.call('EXPIRE', key, ttl)
	return allowed
`

type RateLimitRedisRepo struct {
	client RedisClient
	config RateLimitConfig
	source func() RateLimitConfig
}

func NewRateLimitRepo(client RedisClient, config *RateLimitConfig) *RateLimitRedisRepo {
	r := &RateLimitRedisRepo{client: client}
	if config != nil {
		r.config = *config
	} else {
		r.config = GetDefaultRateLimitConfig()
	}
	if r.config.TTL <= 0 {
		r.config.TTL = time.Minute
	}
	return r
}

// NewRateLimitRepoWithSource 每次 Allow 都向 source 取設定, 設定檔重新載入後立即生效
func NewRateLimitRepoWithSource(client RedisClient, source func() RateLimitConfig) *RateLimitRedisRepo {
	r := NewRateLimitRepo(client, nil)
	r.source = source
	return r
}

// current 不合法的值沿用預設
func (r *RateLimitRedisRepo) current() RateLimitConfig {
	if r.source == nil {
		return r.config
	}
	cfg := r.source()
	def := GetDefaultRateLimitConfig()
	if cfg.Capacity <= 0 {
		cfg.Capacity = def.Capacity
	}
	if cfg.RatePS <= 0 {
		cfg.RatePS = def.RatePS
	}
	if cfg.TTL <= 0 {
		cfg.TTL = def.TTL
	}
	return cfg
}

func generateRateLimitKey(key string) string {
	return fmt.Sprintf("ratelimit:%s", key)
}

func (r *RateLimitRedisRepo) Allow(ctx context.Context, key string) (bool, error) {
	cfg := r.current()
	result, err := r.client.Eval(
		ctx,
		tokenBucketScript,
		[]string{generateRateLimitKey(key)},
		cfg.Capacity,
		cfg.RatePS,
		time.Now().UnixNano(),
		int64(cfg.TTL/time.Second),
	).Int64()
	if err != nil {
		return false, err
	}

	switch result {
	case 1:
		return true, nil
	case 0:
		return false, nil
	default:
		return false, fmt.Errorf("%w: %d", ErrRateLimitScript, result)
	}
}

var _ IRateLimitRepository = (*RateLimitRedisRepo)(nil)
